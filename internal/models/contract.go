package models

import (
	"time"

	"hireloop/internal/domain"
)

// Contract is an agreement between a business owner and a single payee profile.
// Amount and parties are fixed at creation; only the payment and lifecycle
// columns move afterwards.
type Contract struct {
	ID                uint   `gorm:"primaryKey" json:"id"`
	BusinessOwnerID   uint   `gorm:"not null;index" json:"business_owner_id"`
	TargetType        string `gorm:"size:20;not null" json:"target_type"` // freelancer | service_provider
	FreelancerID      *uint  `gorm:"index" json:"freelancer_id,omitempty"`
	ServiceProviderID *uint  `gorm:"index" json:"service_provider_id,omitempty"`
	Title             string `gorm:"size:255;not null" json:"title"`
	Description       string `gorm:"type:text" json:"description"`
	AmountCents       int64  `gorm:"not null" json:"amount_cents"`
	Currency          string `gorm:"size:3;not null;default:'USD'" json:"currency"`

	Status        string `gorm:"size:20;not null;default:'active';index" json:"status"`
	PaymentStatus string `gorm:"size:20;not null;default:'unpaid';index" json:"payment_status"`

	CheckoutSessionID     string     `gorm:"size:255" json:"checkout_session_id,omitempty"`
	PaymentIntentID       string     `gorm:"size:255;index" json:"payment_intent_id,omitempty"`
	TransferID            string     `gorm:"size:255" json:"transfer_id,omitempty"`
	PayeeRequestedRelease bool       `gorm:"not null;default:false" json:"payee_requested_release"`
	ReleaseRequestedAt    *time.Time `json:"release_requested_at,omitempty"`
	PaidAt                *time.Time `json:"paid_at,omitempty"`
	ReleasedAt            *time.Time `json:"released_at,omitempty"`
	DisputedAt            *time.Time `json:"disputed_at,omitempty"`
	RefundedAt            *time.Time `json:"refunded_at,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (Contract) TableName() string {
	return "contracts"
}

// PayeeProfileID returns the id of whichever profile the contract targets.
func (c *Contract) PayeeProfileID() uint {
	switch c.TargetType {
	case domain.TargetFreelancer:
		if c.FreelancerID != nil {
			return *c.FreelancerID
		}
	case domain.TargetServiceProvider:
		if c.ServiceProviderID != nil {
			return *c.ServiceProviderID
		}
	}
	return 0
}

func (c *Contract) IsTerminal() bool { return domain.IsTerminalPayment(c.PaymentStatus) }
