package payment

import (
	"context"
	"errors"
)

var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGateway            = errors.New("payment gateway error")
	ErrPayeeNotOnboarded  = errors.New("payee has no active payout account")
	ErrNothingToRefund    = errors.New("no captured charge to refund")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrMalformedEvent     = errors.New("malformed webhook event")
)

// EventCheckoutCompleted is the only inbound event that moves escrow state.
const EventCheckoutCompleted = "checkout.session.completed"

type CheckoutRequest struct {
	ContractID uint
	Title      string
	TotalCents int64
	Currency   string
	SuccessURL string
	CancelURL  string
}

type Checkout struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type TransferRequest struct {
	ContractID         uint
	DestinationAccount string
	AmountCents        int64
	Currency           string
	IdempotencyKey     string
}

// Event is an authenticated webhook event reduced to what escrow needs.
type Event struct {
	ID                string
	Type              string
	ContractID        uint
	CheckoutSessionID string
	ChargeRef         string
}

// Gateway is the only component that talks to the payment processor.
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	CreateTransfer(ctx context.Context, req TransferRequest) (string, error)
	Refund(ctx context.Context, chargeRef string) error
	VerifyWebhook(payload []byte, signatureHeader string) (*Event, error)
}
