package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"hireloop/internal/domain"
	"hireloop/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrContractNotFound   = errors.New("contract not found")
	ErrPreconditionFailed = errors.New("contract payment state does not allow this operation")
	ErrIllegalTransition  = fmt.Errorf("%w: illegal payment transition", ErrPreconditionFailed)
	ErrInvalidContract    = errors.New("invalid contract")
	ErrStorage            = errors.New("storage failure")
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorage, err)
}

// MutateFunc edits a locked copy of the contract. Returning an error aborts
// the transition and leaves the stored row untouched.
type MutateFunc func(c *models.Contract) error

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// Create validates and inserts a new contract in the unpaid state.
func (r *ContractRepository) Create(ctx context.Context, c *models.Contract) error {
	if err := prepareNew(c); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return storageErr(err)
	}
	return nil
}

func prepareNew(c *models.Contract) error {
	if c.BusinessOwnerID == 0 {
		return fmt.Errorf("%w: business owner is required", ErrInvalidContract)
	}
	if c.AmountCents <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidContract)
	}
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidContract)
	}
	switch c.TargetType {
	case domain.TargetFreelancer:
		if c.FreelancerID == nil || *c.FreelancerID == 0 || c.ServiceProviderID != nil {
			return fmt.Errorf("%w: freelancer contract must reference only a freelancer profile", ErrInvalidContract)
		}
	case domain.TargetServiceProvider:
		if c.ServiceProviderID == nil || *c.ServiceProviderID == 0 || c.FreelancerID != nil {
			return fmt.Errorf("%w: service provider contract must reference only a service provider profile", ErrInvalidContract)
		}
	default:
		return fmt.Errorf("%w: unknown target type %q", ErrInvalidContract, c.TargetType)
	}
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	if c.Currency == "" {
		c.Currency = "USD"
	}
	if !currencyPattern.MatchString(c.Currency) {
		return fmt.Errorf("%w: currency %q", ErrInvalidContract, c.Currency)
	}
	c.Status = domain.ContractStatusActive
	c.PaymentStatus = domain.PaymentUnpaid
	c.CheckoutSessionID, c.PaymentIntentID, c.TransferID = "", "", ""
	c.PayeeRequestedRelease = false
	c.ReleaseRequestedAt, c.PaidAt, c.ReleasedAt = nil, nil, nil
	c.DisputedAt, c.RefundedAt, c.CompletedAt = nil, nil, nil
	return nil
}

func (r *ContractRepository) GetByID(ctx context.Context, id uint) (*models.Contract, error) {
	var c models.Contract
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContractNotFound
		}
		return nil, storageErr(err)
	}
	return &c, nil
}

// ListForParty returns contracts the account owns as business or is paid on
// through one of the given profiles.
func (r *ContractRepository) ListForParty(ctx context.Context, ownerID uint, freelancerIDs, providerIDs []uint, limit, offset int) ([]models.Contract, error) {
	q := r.db.WithContext(ctx).Where("business_owner_id = ?", ownerID)
	if len(freelancerIDs) > 0 {
		q = q.Or("freelancer_id IN ?", freelancerIDs)
	}
	if len(providerIDs) > 0 {
		q = q.Or("service_provider_id IN ?", providerIDs)
	}
	var list []models.Contract
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error; err != nil {
		return nil, storageErr(err)
	}
	return list, nil
}

func (r *ContractRepository) ListAll(ctx context.Context, paymentStatus string, limit, offset int) ([]models.Contract, error) {
	q := r.db.WithContext(ctx).Model(&models.Contract{})
	if paymentStatus != "" {
		q = q.Where("payment_status = ?", paymentStatus)
	}
	var list []models.Contract
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error; err != nil {
		return nil, storageErr(err)
	}
	return list, nil
}

// ListStaleReleaseRequests returns held contracts whose payee asked for
// release before the cutoff.
func (r *ContractRepository) ListStaleReleaseRequests(ctx context.Context, cutoff time.Time, limit int) ([]models.Contract, error) {
	var list []models.Contract
	err := r.db.WithContext(ctx).
		Where("payment_status = ? AND payee_requested_release = ? AND release_requested_at < ?", domain.PaymentHeld, true, cutoff).
		Order("release_requested_at ASC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, storageErr(err)
	}
	return list, nil
}

// Transition locks the contract row, lets fn mutate a copy, validates the
// result against the payment state machine and writes it back with a
// conditional update on the previous payment status. fn runs while the row
// lock is held, so a gateway call made inside it is serialized per contract.
// When fn changes nothing the current row is returned without a write.
func (r *ContractRepository) Transition(ctx context.Context, id uint, fn MutateFunc) (*models.Contract, error) {
	var out *models.Contract
	var applied bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Contract
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrContractNotFound
			}
			return storageErr(err)
		}

		next := current
		if err := fn(&next); err != nil {
			return err
		}
		if err := validateTransition(&current, &next); err != nil {
			return err
		}
		if !paymentColumnsChanged(&current, &next) {
			out = &current
			applied = true
			return nil
		}

		next.UpdatedAt = time.Now()
		res := tx.Model(&models.Contract{}).
			Where("id = ? AND payment_status = ?", current.ID, current.PaymentStatus).
			Updates(mutableColumns(&next))
		if res.Error != nil {
			return storageErr(res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrPreconditionFailed
		}
		out = &next
		applied = true
		return nil
	})
	if err != nil {
		if applied {
			// commit failed after the callback succeeded
			return nil, storageErr(err)
		}
		return nil, err
	}
	return out, nil
}

// validateTransition enforces the invariants every write must keep: fixed
// commercial terms, legal payment edges and write-once correlates.
func validateTransition(cur, next *models.Contract) error {
	if cur.ID != next.ID ||
		cur.BusinessOwnerID != next.BusinessOwnerID ||
		cur.TargetType != next.TargetType ||
		!sameID(cur.FreelancerID, next.FreelancerID) ||
		!sameID(cur.ServiceProviderID, next.ServiceProviderID) ||
		cur.Title != next.Title ||
		cur.Description != next.Description ||
		cur.AmountCents != next.AmountCents ||
		cur.Currency != next.Currency ||
		!cur.CreatedAt.Equal(next.CreatedAt) {
		return fmt.Errorf("%w: contract terms are immutable", ErrIllegalTransition)
	}
	if next.Status != domain.ContractStatusActive && next.Status != domain.ContractStatusCompleted {
		return fmt.Errorf("%w: unknown lifecycle status %q", ErrIllegalTransition, next.Status)
	}
	if cur.Status == domain.ContractStatusCompleted && next.Status != domain.ContractStatusCompleted {
		return fmt.Errorf("%w: completed contract cannot be reopened", ErrIllegalTransition)
	}

	from, to := cur.PaymentStatus, next.PaymentStatus
	if from != to && !domain.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}

	if next.CheckoutSessionID != cur.CheckoutSessionID && from != domain.PaymentUnpaid {
		return fmt.Errorf("%w: checkout reference can only change while unpaid", ErrIllegalTransition)
	}
	if next.PaymentIntentID != cur.PaymentIntentID {
		if cur.PaymentIntentID != "" || from != domain.PaymentUnpaid || to != domain.PaymentHeld {
			return fmt.Errorf("%w: charge reference is set once on capture", ErrIllegalTransition)
		}
	}
	if to == domain.PaymentHeld && next.PaymentIntentID == "" {
		return fmt.Errorf("%w: held contract needs a charge reference", ErrIllegalTransition)
	}
	if next.TransferID != cur.TransferID {
		if cur.TransferID != "" || to != domain.PaymentReleased || from != domain.PaymentHeld {
			return fmt.Errorf("%w: transfer reference is set once on release", ErrIllegalTransition)
		}
	}
	if to == domain.PaymentReleased && next.TransferID == "" {
		return fmt.Errorf("%w: released contract needs a transfer reference", ErrIllegalTransition)
	}
	if next.PayeeRequestedRelease && to != domain.PaymentHeld && to != domain.PaymentDisputed {
		return fmt.Errorf("%w: release request only survives while held or disputed", ErrIllegalTransition)
	}
	if next.PayeeRequestedRelease && !cur.PayeeRequestedRelease && to != domain.PaymentHeld {
		return fmt.Errorf("%w: release can only be requested while held", ErrIllegalTransition)
	}
	return nil
}

func sameID(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func paymentColumnsChanged(cur, next *models.Contract) bool {
	return cur.Status != next.Status ||
		cur.PaymentStatus != next.PaymentStatus ||
		cur.CheckoutSessionID != next.CheckoutSessionID ||
		cur.PaymentIntentID != next.PaymentIntentID ||
		cur.TransferID != next.TransferID ||
		cur.PayeeRequestedRelease != next.PayeeRequestedRelease ||
		!sameTime(cur.ReleaseRequestedAt, next.ReleaseRequestedAt) ||
		!sameTime(cur.PaidAt, next.PaidAt) ||
		!sameTime(cur.ReleasedAt, next.ReleasedAt) ||
		!sameTime(cur.DisputedAt, next.DisputedAt) ||
		!sameTime(cur.RefundedAt, next.RefundedAt) ||
		!sameTime(cur.CompletedAt, next.CompletedAt)
}

// mutableColumns lists every column a transition may write. Terms are not
// in it, so an update can never touch them.
func mutableColumns(c *models.Contract) map[string]interface{} {
	return map[string]interface{}{
		"status":                  c.Status,
		"payment_status":          c.PaymentStatus,
		"checkout_session_id":     c.CheckoutSessionID,
		"payment_intent_id":       c.PaymentIntentID,
		"transfer_id":             c.TransferID,
		"payee_requested_release": c.PayeeRequestedRelease,
		"release_requested_at":    c.ReleaseRequestedAt,
		"paid_at":                 c.PaidAt,
		"released_at":             c.ReleasedAt,
		"disputed_at":             c.DisputedAt,
		"refunded_at":             c.RefundedAt,
		"completed_at":            c.CompletedAt,
		"updated_at":              c.UpdatedAt,
	}
}
