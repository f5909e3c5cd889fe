package service

import (
	"context"
	"log"
	"time"

	"hireloop/internal/models"
	"hireloop/internal/repository"
	"hireloop/pkg/rabbitmq"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditEntry is one append-only record of a payment lifecycle event.
type AuditEntry struct {
	ContractID  uint
	ActorUserID *uint // nil for webhook and scheduler events
	EventType   string
	Details     map[string]interface{}
}

// AuditSink receives audit entries after a transition commits.
type AuditSink interface {
	Record(ctx context.Context, e AuditEntry) error
}

// ContractEvent is the message published for every audit entry.
type ContractEvent struct {
	EventID     string                 `json:"event_id"`
	ContractID  uint                   `json:"contract_id"`
	ActorUserID *uint                  `json:"actor_user_id,omitempty"`
	EventType   string                 `json:"event_type"`
	Details     map[string]interface{} `json:"details,omitempty"`
	OccurredAt  time.Time              `json:"occurred_at"`
}

// AuditService stores entries and fans them out on the event bus.
type AuditService struct {
	repo      *repository.AuditRepository
	publisher rabbitmq.Publisher
}

func NewAuditService(repo *repository.AuditRepository, publisher rabbitmq.Publisher) *AuditService {
	if publisher == nil {
		publisher = rabbitmq.FallbackPublisher{}
	}
	return &AuditService{repo: repo, publisher: publisher}
}

// Record persists the entry. A publish failure is logged only; the stored
// row is the record of truth.
func (s *AuditService) Record(ctx context.Context, e AuditEntry) error {
	row := &models.ContractAuditEvent{
		ContractID:  e.ContractID,
		ActorUserID: e.ActorUserID,
		EventType:   e.EventType,
		Details:     datatypes.JSONMap(e.Details),
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return err
	}
	evt := ContractEvent{
		EventID:     uuid.NewString(),
		ContractID:  e.ContractID,
		ActorUserID: e.ActorUserID,
		EventType:   e.EventType,
		Details:     e.Details,
		OccurredAt:  row.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, "contract."+e.EventType, evt); err != nil {
		log.Printf("[Audit] publish contract=%d event=%s: %v", e.ContractID, e.EventType, err)
	}
	return nil
}

func (s *AuditService) Trail(ctx context.Context, contractID uint) ([]models.ContractAuditEvent, error) {
	return s.repo.ListByContract(ctx, contractID)
}
