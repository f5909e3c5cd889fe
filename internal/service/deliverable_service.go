package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"hireloop/internal/domain"
	"hireloop/internal/models"
	"hireloop/internal/repository"
	"hireloop/pkg/cloudinary"

	"github.com/google/uuid"
)

var ErrUploadsDisabled = errors.New("file uploads are not configured")

// DeliverableService lets the payee attach work files to a contract.
// Deliverables never change payment state.
type DeliverableService struct {
	contracts *repository.ContractRepository
	guard     *AccessGuard
	repo      *repository.DeliverableRepository
	cloud     cloudinary.Client
	audit     AuditSink
	notifier  Notifier
}

func NewDeliverableService(contracts *repository.ContractRepository, guard *AccessGuard, repo *repository.DeliverableRepository, cloud cloudinary.Client, audit AuditSink, notifier Notifier) *DeliverableService {
	return &DeliverableService{contracts: contracts, guard: guard, repo: repo, cloud: cloud, audit: audit, notifier: notifier}
}

func (s *DeliverableService) Add(ctx context.Context, contractID uint, actor Actor, file io.Reader, fileName, note string) (*models.Deliverable, error) {
	c, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.RequirePayee(ctx, c, actor); err != nil {
		return nil, err
	}
	if c.Status == domain.ContractStatusCompleted || c.IsTerminal() {
		return nil, ErrPreconditionFailed
	}
	if s.cloud == nil {
		return nil, ErrUploadsDisabled
	}

	publicID := "file_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	up, err := s.cloud.UploadFile(ctx, file, cloudinary.DeliverableFolder(c.ID), publicID)
	if err != nil {
		return nil, fmt.Errorf("upload deliverable: %w", err)
	}
	d := &models.Deliverable{
		ContractID:     c.ID,
		UploaderUserID: actor.UserID,
		FileURL:        up.URL,
		FileName:       fileName,
		Note:           note,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		if derr := s.cloud.Delete(context.WithoutCancel(ctx), up.PublicID, up.ResourceType); derr != nil {
			log.Printf("[Deliverable] orphaned upload %s: %v", up.PublicID, derr)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	runEffects(ctx, []NonCriticalEffect{
		{
			Kind: EffectAudit,
			Name: domain.EventDeliverableAdded,
			Run: func(ctx context.Context) error {
				return s.audit.Record(ctx, AuditEntry{
					ContractID:  c.ID,
					ActorUserID: &actor.UserID,
					EventType:   domain.EventDeliverableAdded,
					Details:     map[string]interface{}{"deliverable_id": d.ID, "file_name": fileName},
				})
			},
		},
		{
			Kind: EffectNotify,
			Name: domain.NotifDeliverable,
			Run: func(ctx context.Context) error {
				return s.notifier.Notify(ctx, NotificationRequest{
					RecipientUserID: c.BusinessOwnerID,
					Type:            domain.NotifDeliverable,
					Title:           "New deliverable",
					Message:         fmt.Sprintf("A file was uploaded to %q.", c.Title),
					ContractID:      c.ID,
				})
			},
		},
	})
	return d, nil
}

func (s *DeliverableService) List(ctx context.Context, contractID uint, actor Actor) ([]models.Deliverable, error) {
	c, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.RequireParty(ctx, c, actor); err != nil {
		return nil, err
	}
	list, err := s.repo.ListByContract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return list, nil
}
