package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"hireloop/config"
	"hireloop/internal/domain"
	"hireloop/internal/metrics"
	"hireloop/internal/models"
	"hireloop/internal/repository"
	"hireloop/pkg/fees"
	"hireloop/pkg/payment"
)

// CaptureEvent is an authenticated "checkout completed" notification.
type CaptureEvent struct {
	ContractID        uint
	ChargeRef         string
	CheckoutSessionID string
	EventID           string
}

// CreateContractInput describes a new engagement. Amount is in major units.
type CreateContractInput struct {
	TargetType     string  `json:"target_type" binding:"required"`
	PayeeProfileID uint    `json:"payee_profile_id" binding:"required"`
	Title          string  `json:"title" binding:"required"`
	Description    string  `json:"description"`
	Amount         float64 `json:"amount" binding:"required"`
	Currency       string  `json:"currency"`
}

// CheckoutResult is returned to the business so the client can redirect.
type CheckoutResult struct {
	Contract    *models.Contract `json:"contract"`
	CheckoutURL string           `json:"checkout_url"`
	SessionID   string           `json:"session_id"`
	Fees        fees.Breakdown   `json:"fees"`
}

// EscrowService runs the contract payment lifecycle. Every mutation goes
// through ContractRepository.Transition, which re-reads the row under lock
// and checks the precondition before writing. Audit and notification work
// runs afterwards as NonCriticalEffects.
type EscrowService struct {
	contracts  *repository.ContractRepository
	guard      *AccessGuard
	gateway    payment.Gateway
	audit      AuditSink
	notifier   Notifier
	feePercent float64
	currency   string
	successURL string
	cancelURL  string
	now        func() time.Time
}

func NewEscrowService(
	contracts *repository.ContractRepository,
	guard *AccessGuard,
	gateway payment.Gateway,
	audit AuditSink,
	notifier Notifier,
	escrowCfg config.EscrowConfig,
	paymentCfg config.PaymentConfig,
) *EscrowService {
	currency := escrowCfg.DefaultCurrency
	if currency == "" {
		currency = "USD"
	}
	return &EscrowService{
		contracts:  contracts,
		guard:      guard,
		gateway:    gateway,
		audit:      audit,
		notifier:   notifier,
		feePercent: escrowCfg.PlatformFeePercent,
		currency:   currency,
		successURL: paymentCfg.SuccessURL,
		cancelURL:  paymentCfg.CancelURL,
		now:        time.Now,
	}
}

func (s *EscrowService) FeePercent() float64 { return s.feePercent }

// CreateContract opens an unpaid contract between the acting business and a payee profile.
func (s *EscrowService) CreateContract(ctx context.Context, actor Actor, in CreateContractInput) (*models.Contract, error) {
	if actor.Role != domain.RoleBusiness {
		return nil, s.fail("create", ErrAccessDenied)
	}
	// the checkout total must be representable, not just the base
	breakdown, err := fees.Calculate(in.Amount, s.feePercent)
	if err != nil {
		return nil, s.fail("create", fmt.Errorf("%w: %v", ErrInvalidContract, err))
	}
	cents := breakdown.Base
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.currency
	}
	profileID := in.PayeeProfileID
	c := &models.Contract{
		BusinessOwnerID: actor.UserID,
		TargetType:      in.TargetType,
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		AmountCents:     cents,
		Currency:        currency,
	}
	switch in.TargetType {
	case domain.TargetFreelancer:
		c.FreelancerID = &profileID
	case domain.TargetServiceProvider:
		c.ServiceProviderID = &profileID
	}
	payee, err := s.guard.PayeeOf(ctx, c)
	if err != nil {
		return nil, s.fail("create", err)
	}
	if payee.AccountID == actor.UserID {
		return nil, s.fail("create", fmt.Errorf("%w: business cannot contract its own profile", ErrInvalidContract))
	}
	if err := s.contracts.Create(ctx, c); err != nil {
		return nil, s.fail("create", err)
	}
	runEffects(ctx, []NonCriticalEffect{
		s.auditEffect(c.ID, &actor.UserID, domain.EventContractCreated, map[string]interface{}{"amount_cents": c.AmountCents, "currency": c.Currency}),
		s.notifyEffect(NotificationRequest{
			RecipientUserID: payee.AccountID,
			Type:            domain.NotifContractCreated,
			Title:           "New contract",
			Message:         fmt.Sprintf("You have a new contract: %s", c.Title),
			ContractID:      c.ID,
		}),
	})
	return c, nil
}

// Get returns a contract visible to the actor.
func (s *EscrowService) Get(ctx context.Context, id uint, actor Actor) (*models.Contract, error) {
	c, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.RequireParty(ctx, c, actor); err != nil {
		return nil, err
	}
	return c, nil
}

// ListForActor lists contracts the actor is party to; admins may filter all contracts by payment status.
func (s *EscrowService) ListForActor(ctx context.Context, actor Actor, paymentStatus string, limit, offset int) ([]models.Contract, error) {
	if actor.IsAdmin() {
		return s.contracts.ListAll(ctx, paymentStatus, limit, offset)
	}
	freelancerIDs, providerIDs, err := s.guard.profiles.ProfileIDsForUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return s.contracts.ListForParty(ctx, actor.UserID, freelancerIDs, providerIDs, limit, offset)
}

// InitiateCheckout creates a hosted checkout for base plus platform fee.
// The session is created before the row is locked; the lock only guards
// storing its reference, and a retry simply overwrites it.
func (s *EscrowService) InitiateCheckout(ctx context.Context, id uint, actor Actor) (*CheckoutResult, error) {
	const op = "initiate_checkout"
	c, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if err := s.guard.RequireBusinessOwner(c, actor); err != nil {
		return nil, s.fail(op, err)
	}
	if c.PaymentStatus != domain.PaymentUnpaid {
		return nil, s.fail(op, ErrPreconditionFailed)
	}
	breakdown, err := fees.FromMinor(c.AmountCents, s.feePercent)
	if err != nil {
		return nil, s.fail(op, fmt.Errorf("%w: %v", ErrInvalidContract, err))
	}

	start := time.Now()
	co, err := s.gateway.CreateCheckout(ctx, payment.CheckoutRequest{
		ContractID: c.ID,
		Title:      c.Title,
		TotalCents: breakdown.Total,
		Currency:   c.Currency,
		SuccessURL: expandURL(s.successURL, c.ID),
		CancelURL:  expandURL(s.cancelURL, c.ID),
	})
	metrics.ObserveGateway("create_checkout", start, err)
	if err != nil {
		return nil, s.fail(op, err)
	}

	updated, err := s.contracts.Transition(ctx, id, func(c *models.Contract) error {
		if c.PaymentStatus != domain.PaymentUnpaid {
			return ErrPreconditionFailed
		}
		c.CheckoutSessionID = co.SessionID
		return nil
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	s.committed(ctx, domain.EventCheckoutStarted, []NonCriticalEffect{
		s.auditEffect(id, &actor.UserID, domain.EventCheckoutStarted, map[string]interface{}{
			"session_id":  co.SessionID,
			"base_cents":  breakdown.Base,
			"fee_cents":   breakdown.Fee,
			"total_cents": breakdown.Total,
			"fee_percent": s.feePercent,
			"currency":    updated.Currency,
		}),
	})
	return &CheckoutResult{Contract: updated, CheckoutURL: co.URL, SessionID: co.SessionID, Fees: breakdown}, nil
}

// CaptureFromWebhook moves an unpaid contract to held. Replaying an event
// whose charge reference is already stored returns the contract unchanged.
func (s *EscrowService) CaptureFromWebhook(ctx context.Context, evt CaptureEvent) (*models.Contract, error) {
	const op = "capture"
	if evt.ContractID == 0 || evt.ChargeRef == "" {
		return nil, s.fail(op, ErrInvalidEvent)
	}
	var captured bool
	updated, err := s.contracts.Transition(ctx, evt.ContractID, func(c *models.Contract) error {
		if c.PaymentIntentID != "" && c.PaymentIntentID == evt.ChargeRef {
			return nil
		}
		if c.PaymentStatus != domain.PaymentUnpaid {
			return ErrPreconditionFailed
		}
		now := s.now()
		c.PaymentStatus = domain.PaymentHeld
		c.PaymentIntentID = evt.ChargeRef
		if evt.CheckoutSessionID != "" {
			c.CheckoutSessionID = evt.CheckoutSessionID
		}
		c.PaidAt = &now
		c.PayeeRequestedRelease = false
		c.ReleaseRequestedAt = nil
		captured = true
		return nil
	})
	if err != nil {
		return nil, s.fail(op, err)
	}
	if !captured {
		log.Printf("[Escrow] capture replay contract=%d charge=%s ignored", evt.ContractID, evt.ChargeRef)
		return updated, nil
	}

	effects := []NonCriticalEffect{
		s.auditEffect(updated.ID, nil, domain.EventPaymentHeld, map[string]interface{}{
			"charge_ref":   evt.ChargeRef,
			"event_id":     evt.EventID,
			"amount_cents": updated.AmountCents,
			"currency":     updated.Currency,
		}),
		s.notifyEffect(NotificationRequest{
			RecipientUserID: updated.BusinessOwnerID,
			Type:            domain.NotifPaymentHeld,
			Title:           "Payment received",
			Message:         fmt.Sprintf("Your payment for %q is held in escrow.", updated.Title),
			ContractID:      updated.ID,
		}),
	}
	effects = append(effects, s.notifyPayeeEffect(updated, domain.NotifPaymentHeld, "Contract funded",
		fmt.Sprintf("Funds for %q are held in escrow. You can start work.", updated.Title)))
	s.committed(ctx, domain.EventPaymentHeld, effects)
	return updated, nil
}

// RequestRelease flags a held contract as ready for payout. No funds move.
func (s *EscrowService) RequestRelease(ctx context.Context, id uint, actor Actor) (*models.Contract, error) {
	const op = "request_release"
	c, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if _, err := s.guard.RequirePayee(ctx, c, actor); err != nil {
		return nil, s.fail(op, err)
	}
	var changed bool
	updated, err := s.contracts.Transition(ctx, id, func(c *models.Contract) error {
		if c.PaymentStatus != domain.PaymentHeld {
			return ErrPreconditionFailed
		}
		if c.PayeeRequestedRelease {
			return nil
		}
		now := s.now()
		c.PayeeRequestedRelease = true
		c.ReleaseRequestedAt = &now
		changed = true
		return nil
	})
	if err != nil {
		return nil, s.fail(op, err)
	}
	if !changed {
		return updated, nil
	}
	s.committed(ctx, domain.EventReleaseRequested, []NonCriticalEffect{
		s.auditEffect(id, &actor.UserID, domain.EventReleaseRequested, nil),
		s.notifyEffect(NotificationRequest{
			RecipientUserID: updated.BusinessOwnerID,
			Type:            domain.NotifReleaseRequested,
			Title:           "Release requested",
			Message:         fmt.Sprintf("The payee asked you to release payment for %q.", updated.Title),
			ContractID:      id,
		}),
	})
	return updated, nil
}

// Release transfers the base amount to the payee. The transfer runs while
// the contract row is locked, so concurrent releases issue one transfer;
// if it fails the contract stays held. The idempotency key is derived from
// the contract so a retry after a lost commit cannot pay twice.
func (s *EscrowService) Release(ctx context.Context, id uint, actor Actor) (*models.Contract, error) {
	const op = "release"
	c, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if err := s.guard.RequireOwnerOrAdmin(c, actor); err != nil {
		return nil, s.fail(op, err)
	}
	if c.PaymentStatus != domain.PaymentHeld {
		return nil, s.fail(op, ErrPreconditionFailed)
	}
	payee, err := s.guard.PayeeOf(ctx, c)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if payee.PayoutAccountID == "" {
		return nil, s.fail(op, ErrPayeeNotOnboarded)
	}

	updated, err := s.contracts.Transition(ctx, id, func(c *models.Contract) error {
		if c.PaymentStatus != domain.PaymentHeld {
			return ErrPreconditionFailed
		}
		start := time.Now()
		ref, err := s.gateway.CreateTransfer(ctx, payment.TransferRequest{
			ContractID:         c.ID,
			DestinationAccount: payee.PayoutAccountID,
			AmountCents:        c.AmountCents,
			Currency:           c.Currency,
			IdempotencyKey:     "contract-" + strconv.FormatUint(uint64(c.ID), 10) + "-release",
		})
		metrics.ObserveGateway("create_transfer", start, err)
		if err != nil {
			return err
		}
		now := s.now()
		c.PaymentStatus = domain.PaymentReleased
		c.TransferID = ref
		c.ReleasedAt = &now
		c.PayeeRequestedRelease = false
		c.ReleaseRequestedAt = nil
		return nil
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	msg := fmt.Sprintf("%s released for %q.", formatMinor(updated.AmountCents, updated.Currency), updated.Title)
	s.committed(ctx, domain.EventPaymentReleased, []NonCriticalEffect{
		s.auditEffect(id, &actor.UserID, domain.EventPaymentReleased, map[string]interface{}{
			"transfer_id":  updated.TransferID,
			"amount_cents": updated.AmountCents,
			"currency":     updated.Currency,
		}),
		s.notifyEffect(NotificationRequest{
			RecipientUserID: updated.BusinessOwnerID,
			Type:            domain.NotifPaymentReleased,
			Title:           "Payment released",
			Message:         msg,
			ContractID:      id,
		}),
		s.notifyEffect(NotificationRequest{
			RecipientUserID: payee.AccountID,
			Type:            domain.NotifPaymentReleased,
			Title:           "You've been paid",
			Message:         msg,
			ContractID:      id,
		}),
	})
	return updated, nil
}

// Dispute freezes a held contract; release paths reject until it is resolved.
func (s *EscrowService) Dispute(ctx context.Context, id uint, actor Actor, reason string) (*models.Contract, error) {
	const op = "dispute"
	c, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if err := s.guard.RequireBusinessOwner(c, actor); err != nil {
		return nil, s.fail(op, err)
	}
	updated, err := s.contracts.Transition(ctx, id, func(c *models.Contract) error {
		if c.PaymentStatus != domain.PaymentHeld {
			return ErrPreconditionFailed
		}
		now := s.now()
		c.PaymentStatus = domain.PaymentDisputed
		c.DisputedAt = &now
		return nil
	})
	if err != nil {
		return nil, s.fail(op, err)
	}
	s.committed(ctx, domain.EventDisputeOpened, []NonCriticalEffect{
		s.auditEffect(id, &actor.UserID, domain.EventDisputeOpened, map[string]interface{}{"reason": reason}),
		s.notifyPayeeEffect(updated, domain.NotifPaymentDisputed, "Payment disputed",
			fmt.Sprintf("The business opened a dispute on %q. Funds are frozen until it is resolved.", updated.Title)),
	})
	return updated, nil
}

// ResolveDispute returns a disputed contract to held. Admin only.
func (s *EscrowService) ResolveDispute(ctx context.Context, id uint, actor Actor, note string) (*models.Contract, error) {
	const op = "resolve_dispute"
	if err := s.guard.RequireAdmin(actor); err != nil {
		return nil, s.fail(op, err)
	}
	updated, err := s.contracts.Transition(ctx, id, func(c *models.Contract) error {
		if c.PaymentStatus != domain.PaymentDisputed {
			return ErrPreconditionFailed
		}
		c.PaymentStatus = domain.PaymentHeld
		return nil
	})
	if err != nil {
		return nil, s.fail(op, err)
	}
	msg := fmt.Sprintf("The dispute on %q was resolved. Funds are held in escrow again.", updated.Title)
	s.committed(ctx, domain.EventDisputeResolved, []NonCriticalEffect{
		s.auditEffect(id, &actor.UserID, domain.EventDisputeResolved, map[string]interface{}{"note": note}),
		s.notifyEffect(NotificationRequest{
			RecipientUserID: updated.BusinessOwnerID,
			Type:            domain.NotifDisputeResolved,
			Title:           "Dispute resolved",
			Message:         msg,
			ContractID:      id,
		}),
		s.notifyPayeeEffect(updated, domain.NotifDisputeResolved, "Dispute resolved", msg),
	})
	return updated, nil
}

// Refund returns the captured charge to the business. Admin only. The
// refund call runs under the row lock; on failure nothing changes.
func (s *EscrowService) Refund(ctx context.Context, id uint, actor Actor) (*models.Contract, error) {
	const op = "refund"
	if err := s.guard.RequireAdmin(actor); err != nil {
		return nil, s.fail(op, err)
	}
	updated, err := s.contracts.Transition(ctx, id, func(c *models.Contract) error {
		if c.PaymentIntentID == "" {
			return ErrNothingToRefund
		}
		if c.PaymentStatus != domain.PaymentHeld && c.PaymentStatus != domain.PaymentDisputed {
			return ErrPreconditionFailed
		}
		start := time.Now()
		err := s.gateway.Refund(ctx, c.PaymentIntentID)
		metrics.ObserveGateway("refund", start, err)
		if err != nil {
			return err
		}
		now := s.now()
		c.PaymentStatus = domain.PaymentRefunded
		c.RefundedAt = &now
		c.PayeeRequestedRelease = false
		c.ReleaseRequestedAt = nil
		return nil
	})
	if err != nil {
		return nil, s.fail(op, err)
	}
	msg := fmt.Sprintf("Payment for %q was refunded to the business.", updated.Title)
	s.committed(ctx, domain.EventPaymentRefunded, []NonCriticalEffect{
		s.auditEffect(id, &actor.UserID, domain.EventPaymentRefunded, map[string]interface{}{
			"charge_ref":   updated.PaymentIntentID,
			"amount_cents": updated.AmountCents,
		}),
		s.notifyEffect(NotificationRequest{
			RecipientUserID: updated.BusinessOwnerID,
			Type:            domain.NotifPaymentRefunded,
			Title:           "Payment refunded",
			Message:         msg,
			ContractID:      id,
		}),
		s.notifyPayeeEffect(updated, domain.NotifPaymentRefunded, "Payment refunded", msg),
	})
	return updated, nil
}

// Complete marks the work as delivered. It does not touch payment state.
func (s *EscrowService) Complete(ctx context.Context, id uint, actor Actor) (*models.Contract, error) {
	const op = "complete"
	c, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if err := s.guard.RequireBusinessOwner(c, actor); err != nil {
		return nil, s.fail(op, err)
	}
	var changed bool
	updated, err := s.contracts.Transition(ctx, id, func(c *models.Contract) error {
		if c.Status == domain.ContractStatusCompleted {
			return nil
		}
		now := s.now()
		c.Status = domain.ContractStatusCompleted
		c.CompletedAt = &now
		changed = true
		return nil
	})
	if err != nil {
		return nil, s.fail(op, err)
	}
	if !changed {
		return updated, nil
	}
	s.committed(ctx, domain.EventContractCompleted, []NonCriticalEffect{
		s.auditEffect(id, &actor.UserID, domain.EventContractCompleted, map[string]interface{}{"payment_status": updated.PaymentStatus}),
		s.notifyPayeeEffect(updated, domain.NotifContractCompleted, "Contract completed",
			fmt.Sprintf("%q was marked complete.", updated.Title)),
	})
	return updated, nil
}

func (s *EscrowService) committed(ctx context.Context, event string, effects []NonCriticalEffect) {
	metrics.EscrowTransitions.WithLabelValues(event).Inc()
	runEffects(ctx, effects)
}

func (s *EscrowService) fail(op string, err error) error {
	metrics.EscrowFailures.WithLabelValues(op, Reason(err)).Inc()
	if errors.Is(err, ErrStorage) || errors.Is(err, ErrGateway) || errors.Is(err, ErrGatewayUnavailable) {
		log.Printf("[Escrow] %s failed: %v", op, err)
	}
	return err
}

func (s *EscrowService) auditEffect(contractID uint, actorID *uint, eventType string, details map[string]interface{}) NonCriticalEffect {
	return NonCriticalEffect{
		Kind: EffectAudit,
		Name: eventType,
		Run: func(ctx context.Context) error {
			if s.audit == nil {
				return nil
			}
			return s.audit.Record(ctx, AuditEntry{
				ContractID:  contractID,
				ActorUserID: actorID,
				EventType:   eventType,
				Details:     details,
			})
		},
	}
}

func (s *EscrowService) notifyEffect(n NotificationRequest) NonCriticalEffect {
	return NonCriticalEffect{
		Kind: EffectNotify,
		Name: n.Type,
		Run: func(ctx context.Context) error {
			if s.notifier == nil {
				return nil
			}
			return s.notifier.Notify(ctx, n)
		},
	}
}

// notifyPayeeEffect resolves the payee account when the effect runs, after
// the row lock is released.
func (s *EscrowService) notifyPayeeEffect(c *models.Contract, typ, title, message string) NonCriticalEffect {
	return NonCriticalEffect{
		Kind: EffectNotify,
		Name: typ,
		Run: func(ctx context.Context) error {
			if s.notifier == nil {
				return nil
			}
			payee, err := s.guard.PayeeOf(ctx, c)
			if err != nil {
				return err
			}
			return s.notifier.Notify(ctx, NotificationRequest{
				RecipientUserID: payee.AccountID,
				Type:            typ,
				Title:           title,
				Message:         message,
				ContractID:      c.ID,
			})
		},
	}
}

func expandURL(tpl string, id uint) string {
	return strings.ReplaceAll(tpl, "{contract_id}", strconv.FormatUint(uint64(id), 10))
}

func formatMinor(cents int64, currency string) string {
	return fmt.Sprintf("%s %d.%02d", currency, cents/100, cents%100)
}
