package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"hireloop/internal/domain"
	"hireloop/internal/models"
	"hireloop/internal/service"
)

const reminderBatch = 200

type staleLister interface {
	ListStaleReleaseRequests(ctx context.Context, cutoff time.Time, limit int) ([]models.Contract, error)
}

type reminderLog interface {
	ExistsSince(ctx context.Context, userID, contractID uint, typ string, since time.Time) (bool, error)
}

// ReleaseReminder nudges business owners whose payee asked for release and
// is still waiting. An owner is reminded at most once per After window.
type ReleaseReminder struct {
	contracts staleLister
	sent      reminderLog
	notifier  service.Notifier
	after     time.Duration
	now       func() time.Time
}

func NewReleaseReminder(contracts staleLister, sent reminderLog, notifier service.Notifier, after time.Duration) *ReleaseReminder {
	if after <= 0 {
		after = 24 * time.Hour
	}
	return &ReleaseReminder{contracts: contracts, sent: sent, notifier: notifier, after: after, now: time.Now}
}

// Run sends due reminders and returns how many went out.
func (r *ReleaseReminder) Run(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.after)
	list, err := r.contracts.ListStaleReleaseRequests(ctx, cutoff, reminderBatch)
	if err != nil {
		return 0, err
	}
	sent := 0
	for i := range list {
		c := &list[i]
		dup, err := r.sent.ExistsSince(ctx, c.BusinessOwnerID, c.ID, domain.NotifReleaseReminder, cutoff)
		if err != nil {
			return sent, err
		}
		if dup {
			continue
		}
		err = r.notifier.Notify(ctx, service.NotificationRequest{
			RecipientUserID: c.BusinessOwnerID,
			Type:            domain.NotifReleaseReminder,
			Title:           "Release pending",
			Message:         fmt.Sprintf("The payee on %q is waiting for you to release payment.", c.Title),
			ContractID:      c.ID,
		})
		if err != nil {
			log.Printf("[Jobs] remind owner=%d contract=%d: %v", c.BusinessOwnerID, c.ID, err)
			continue
		}
		sent++
	}
	if sent > 0 {
		log.Printf("[Jobs] sent %d release reminders", sent)
	}
	return sent, nil
}
