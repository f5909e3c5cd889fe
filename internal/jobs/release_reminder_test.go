package jobs

import (
	"context"
	"testing"
	"time"

	"hireloop/internal/domain"
	"hireloop/internal/models"
	"hireloop/internal/repository"
	"hireloop/internal/service"
	"hireloop/internal/testutil"
)

func TestReleaseReminderNotifiesOncePerWindow(t *testing.T) {
	db := testutil.OpenDB(t)
	fx := testutil.Seed(t, db)
	contracts := repository.NewContractRepository(db)
	notifications := repository.NewNotificationRepository(db)
	notifier := service.NewNotificationService(notifications, repository.NewUserRepository(db), nil, nil)
	ctx := context.Background()

	stale := fx.FreelancerContract(5000)
	fresh := fx.FreelancerContract(7000)
	for _, c := range []*models.Contract{stale, fresh} {
		if err := contracts.Create(ctx, c); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	hold := func(id uint, requestedAt time.Time) {
		t.Helper()
		if _, err := contracts.Transition(ctx, id, func(c *models.Contract) error {
			c.PaymentStatus = domain.PaymentHeld
			c.PaymentIntentID = "pi_reminder"
			c.PayeeRequestedRelease = true
			c.ReleaseRequestedAt = &requestedAt
			return nil
		}); err != nil {
			t.Fatalf("hold: %v", err)
		}
	}
	hold(stale.ID, time.Now().Add(-30*time.Hour))
	hold(fresh.ID, time.Now().Add(-time.Hour))

	r := NewReleaseReminder(contracts, notifications, notifier, 24*time.Hour)
	n, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 1 {
		t.Fatalf("sent %d reminders, want 1", n)
	}
	list, _, err := notifier.List(fx.Owner.ID, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Type != domain.NotifReleaseReminder || *list[0].ContractID != stale.ID {
		t.Fatalf("unexpected notifications %+v", list)
	}

	n, err = r.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if n != 0 {
		t.Fatalf("second run sent %d reminders, want 0", n)
	}

	stored, _ := contracts.GetByID(ctx, stale.ID)
	if stored.PaymentStatus != domain.PaymentHeld {
		t.Fatalf("reminder changed payment state to %s", stored.PaymentStatus)
	}
}
