package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// StubGateway is an offline gateway for development. Webhooks are JSON bodies
// signed with a hex HMAC-SHA256 of the raw payload.
type StubGateway struct {
	WebhookSecret string
	BaseURL       string
	seq           atomic.Int64
}

func NewStubGateway(webhookSecret, baseURL string) *StubGateway {
	if baseURL == "" {
		baseURL = "http://localhost:8080/dev/checkout"
	}
	return &StubGateway{WebhookSecret: webhookSecret, BaseURL: baseURL}
}

// StubWebhook is the body the stub gateway accepts on the webhook endpoint.
type StubWebhook struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	ContractID        uint   `json:"contract_id"`
	CheckoutSessionID string `json:"checkout_session_id"`
	ChargeRef         string `json:"charge_ref"`
}

func (s *StubGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if req.TotalCents <= 0 {
		return nil, fmt.Errorf("%w: checkout total must be positive", ErrGateway)
	}
	id := fmt.Sprintf("cs_stub_%d_%d", req.ContractID, s.seq.Add(1))
	return &Checkout{SessionID: id, URL: s.BaseURL + "/" + id}, nil
}

func (s *StubGateway) CreateTransfer(ctx context.Context, req TransferRequest) (string, error) {
	if req.DestinationAccount == "" {
		return "", ErrPayeeNotOnboarded
	}
	return fmt.Sprintf("tr_stub_%d_%d", req.ContractID, s.seq.Add(1)), nil
}

func (s *StubGateway) Refund(ctx context.Context, chargeRef string) error {
	if chargeRef == "" {
		return ErrNothingToRefund
	}
	return nil
}

func (s *StubGateway) VerifyWebhook(payload []byte, signatureHeader string) (*Event, error) {
	if s.WebhookSecret == "" || signatureHeader == "" {
		return nil, ErrInvalidSignature
	}
	if !hmac.Equal([]byte(SignPayload(s.WebhookSecret, payload)), []byte(signatureHeader)) {
		return nil, ErrInvalidSignature
	}
	var body StubWebhook
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return &Event{
		ID:                body.ID,
		Type:              body.Type,
		ContractID:        body.ContractID,
		CheckoutSessionID: body.CheckoutSessionID,
		ChargeRef:         body.ChargeRef,
	}, nil
}

// SignPayload returns the hex HMAC-SHA256 signature the stub expects.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
