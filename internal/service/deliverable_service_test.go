package service_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"hireloop/internal/domain"
	"hireloop/internal/repository"
	"hireloop/internal/service"
	"hireloop/internal/testutil"
	"hireloop/pkg/cloudinary"
)

type fakeCloud struct {
	uploads []string
	deleted []string
}

func (f *fakeCloud) UploadFile(ctx context.Context, file io.Reader, folder, publicID string) (*cloudinary.UploadResult, error) {
	if _, err := io.ReadAll(file); err != nil {
		return nil, err
	}
	f.uploads = append(f.uploads, folder+"/"+publicID)
	return &cloudinary.UploadResult{URL: "https://cdn.example/" + folder + "/" + publicID, PublicID: publicID, ResourceType: "raw"}, nil
}

func (f *fakeCloud) Delete(ctx context.Context, publicID, resourceType string) error {
	f.deleted = append(f.deleted, publicID)
	return nil
}

func TestDeliverableUploadByPayee(t *testing.T) {
	db := testutil.OpenDB(t)
	fx := testutil.Seed(t, db)
	ctx := context.Background()
	contracts := repository.NewContractRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cloud := &fakeCloud{}
	notifier := &recordingNotifier{}
	svc := service.NewDeliverableService(contracts, service.NewAccessGuard(repository.NewProfileRepository(db)),
		repository.NewDeliverableRepository(db), cloud, service.NewAuditService(auditRepo, nil), notifier)

	c := fx.FreelancerContract(5000)
	if err := contracts.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	payee := service.Actor{UserID: fx.Freelancer.ID, Role: domain.RoleFreelancer}
	owner := service.Actor{UserID: fx.Owner.ID, Role: domain.RoleBusiness}

	if _, err := svc.Add(ctx, c.ID, owner, strings.NewReader("x"), "a.pdf", ""); !errors.Is(err, service.ErrAccessDenied) {
		t.Fatalf("owner upload: err = %v, want ErrAccessDenied", err)
	}
	d, err := svc.Add(ctx, c.ID, payee, strings.NewReader("draft v1"), "draft.pdf", "first pass")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if d.ContractID != c.ID || d.UploaderUserID != fx.Freelancer.ID || !strings.HasPrefix(d.FileURL, "https://cdn.example/") {
		t.Fatalf("unexpected deliverable %+v", d)
	}
	if got := notifier.typesFor(fx.Owner.ID); len(got) != 1 || got[0] != domain.NotifDeliverable {
		t.Fatalf("owner notifications = %v", got)
	}
	if n, _ := auditRepo.CountByType(ctx, c.ID, domain.EventDeliverableAdded); n != 1 {
		t.Fatalf("deliverable audit events = %d", n)
	}

	list, err := svc.List(ctx, c.ID, owner)
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %d, %v", len(list), err)
	}
	stored, _ := contracts.GetByID(ctx, c.ID)
	if stored.PaymentStatus != domain.PaymentUnpaid {
		t.Fatalf("upload changed payment status to %s", stored.PaymentStatus)
	}

	noCloud := service.NewDeliverableService(contracts, service.NewAccessGuard(repository.NewProfileRepository(db)),
		repository.NewDeliverableRepository(db), nil, service.NewAuditService(auditRepo, nil), notifier)
	if _, err := noCloud.Add(ctx, c.ID, payee, strings.NewReader("x"), "a.pdf", ""); !errors.Is(err, service.ErrUploadsDisabled) {
		t.Fatalf("without storage: err = %v", err)
	}
}
