package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeGateway implements Gateway with hosted Checkout and Connect transfers.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway builds a gateway. With an empty secret key every outbound
// call fails with ErrGatewayUnavailable instead of reaching Stripe.
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	g := &StripeGateway{webhookSecret: webhookSecret}
	if secretKey != "" {
		g.api = client.New(secretKey, nil)
	}
	return g
}

func (g *StripeGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if g.api == nil {
		return nil, fmt.Errorf("%w: stripe secret key not configured", ErrGatewayUnavailable)
	}
	contractRef := strconv.FormatUint(uint64(req.ContractID), 10)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(contractRef),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.TotalCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Title),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"contract_id": contractRef},
		},
		Metadata: map[string]string{"contract_id": contractRef},
	}
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		log.Printf("[Stripe] checkout contract=%d: %v", req.ContractID, err)
		return nil, mapStripeError(err)
	}
	return &Checkout{SessionID: sess.ID, URL: sess.URL}, nil
}

func (g *StripeGateway) CreateTransfer(ctx context.Context, req TransferRequest) (string, error) {
	if g.api == nil {
		return "", fmt.Errorf("%w: stripe secret key not configured", ErrGatewayUnavailable)
	}
	if req.DestinationAccount == "" {
		return "", ErrPayeeNotOnboarded
	}
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		Destination:   stripe.String(req.DestinationAccount),
		TransferGroup: stripe.String("contract-" + strconv.FormatUint(uint64(req.ContractID), 10)),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	tr, err := g.api.Transfers.New(params)
	if err != nil {
		log.Printf("[Stripe] transfer contract=%d dest=%s: %v", req.ContractID, req.DestinationAccount, err)
		var se *stripe.Error
		if errors.As(err, &se) && isDestinationError(se) {
			return "", fmt.Errorf("%w: %s", ErrPayeeNotOnboarded, se.Msg)
		}
		return "", mapStripeError(err)
	}
	return tr.ID, nil
}

func (g *StripeGateway) Refund(ctx context.Context, chargeRef string) error {
	if chargeRef == "" {
		return ErrNothingToRefund
	}
	if g.api == nil {
		return fmt.Errorf("%w: stripe secret key not configured", ErrGatewayUnavailable)
	}
	params := &stripe.RefundParams{PaymentIntent: stripe.String(chargeRef)}
	params.Context = ctx
	if _, err := g.api.Refunds.New(params); err != nil {
		log.Printf("[Stripe] refund intent=%s: %v", chargeRef, err)
		var se *stripe.Error
		if errors.As(err, &se) && string(se.Code) == "charge_already_refunded" {
			return fmt.Errorf("%w: %s", ErrNothingToRefund, se.Msg)
		}
		return mapStripeError(err)
	}
	return nil
}

// VerifyWebhook checks the Stripe-Signature header and reduces a paid
// checkout session to an Event of type EventCheckoutCompleted. That covers
// both checkout.session.completed and, for delayed payment methods,
// checkout.session.async_payment_succeeded. Other event types come back with
// only ID and Type set.
func (g *StripeGateway) VerifyWebhook(payload []byte, signatureHeader string) (*Event, error) {
	if g.webhookSecret == "" {
		return nil, ErrInvalidSignature
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: evt.ID, Type: string(evt.Type)}
	if !settlesCheckout(evt.Type) || evt.Data == nil {
		return out, nil
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		// delayed methods (ACH, SEPA) complete the session before funds
		// arrive; async_payment_succeeded carries the capture later
		out.Type = stripeCheckoutAwaitingPayment
		return out, nil
	}
	out.Type = EventCheckoutCompleted
	ref := sess.Metadata["contract_id"]
	if ref == "" {
		ref = sess.ClientReferenceID
	}
	id, err := strconv.ParseUint(ref, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: contract reference %q", ErrMalformedEvent, ref)
	}
	out.ContractID = uint(id)
	out.CheckoutSessionID = sess.ID
	if sess.PaymentIntent != nil {
		out.ChargeRef = sess.PaymentIntent.ID
	}
	return out, nil
}

const (
	stripeCheckoutAsyncSucceeded  = "checkout.session.async_payment_succeeded"
	stripeCheckoutAwaitingPayment = "checkout.session.completed.awaiting_payment"
)

func settlesCheckout(t stripe.EventType) bool {
	return t == EventCheckoutCompleted || t == stripeCheckoutAsyncSucceeded
}

func isDestinationError(se *stripe.Error) bool {
	switch string(se.Code) {
	case "account_invalid", "insufficient_capabilities_for_transfer", "no_account":
		return true
	}
	return se.Param == "destination"
}

func mapStripeError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if se.HTTPStatusCode >= http.StatusInternalServerError || se.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ErrGatewayUnavailable, se.Msg)
	}
	if se.HTTPStatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrGatewayUnavailable, se.Msg)
	}
	return fmt.Errorf("%w: %s", ErrGateway, se.Msg)
}
