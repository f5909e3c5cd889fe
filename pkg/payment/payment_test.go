package payment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

func TestStubVerifyWebhook(t *testing.T) {
	g := NewStubGateway("whsec_test", "")
	body, _ := json.Marshal(StubWebhook{
		ID:         "evt_1",
		Type:       EventCheckoutCompleted,
		ContractID: 42,
		ChargeRef:  "pi_1",
	})

	evt, err := g.VerifyWebhook(body, SignPayload("whsec_test", body))
	if err != nil {
		t.Fatalf("VerifyWebhook: %v", err)
	}
	if evt.ContractID != 42 || evt.ChargeRef != "pi_1" || evt.Type != EventCheckoutCompleted {
		t.Fatalf("unexpected event %+v", evt)
	}

	if _, err := g.VerifyWebhook(body, SignPayload("other", body)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("wrong secret: err = %v", err)
	}
	if _, err := g.VerifyWebhook(body, ""); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("missing header: err = %v", err)
	}
	tampered := append([]byte{}, body...)
	tampered[len(tampered)-2] = 'x'
	if _, err := g.VerifyWebhook(tampered, SignPayload("whsec_test", body)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("tampered body: err = %v", err)
	}
}

func TestStubTransferAndRefund(t *testing.T) {
	g := NewStubGateway("s", "")
	ctx := context.Background()
	if _, err := g.CreateTransfer(ctx, TransferRequest{ContractID: 1, AmountCents: 100}); !errors.Is(err, ErrPayeeNotOnboarded) {
		t.Fatalf("transfer without destination: err = %v", err)
	}
	ref, err := g.CreateTransfer(ctx, TransferRequest{ContractID: 1, DestinationAccount: "acct_1", AmountCents: 100})
	if err != nil || ref == "" {
		t.Fatalf("transfer: ref=%q err=%v", ref, err)
	}
	if err := g.Refund(ctx, ""); !errors.Is(err, ErrNothingToRefund) {
		t.Fatalf("refund without charge: err = %v", err)
	}
	co, err := g.CreateCheckout(ctx, CheckoutRequest{ContractID: 1, TotalCents: 550000, Currency: "USD"})
	if err != nil || co.SessionID == "" || co.URL == "" {
		t.Fatalf("checkout: %+v err=%v", co, err)
	}
}

func TestStripeGatewayWithoutCredentials(t *testing.T) {
	g := NewStripeGateway("", "whsec")
	ctx := context.Background()
	if _, err := g.CreateCheckout(ctx, CheckoutRequest{ContractID: 1, TotalCents: 100, Currency: "USD"}); !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("checkout err = %v, want ErrGatewayUnavailable", err)
	}
	if _, err := g.CreateTransfer(ctx, TransferRequest{DestinationAccount: "acct_1", AmountCents: 100}); !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("transfer err = %v, want ErrGatewayUnavailable", err)
	}
	if err := g.Refund(ctx, ""); !errors.Is(err, ErrNothingToRefund) {
		t.Fatalf("refund err = %v, want ErrNothingToRefund", err)
	}
}

func TestStripeVerifyWebhook(t *testing.T) {
	const secret = "whsec_unit"
	g := NewStripeGateway("", secret)
	payload := []byte(`{
		"id": "evt_123",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_test_1",
			"object": "checkout.session",
			"payment_status": "paid",
			"client_reference_id": "7",
			"metadata": {"contract_id": "7"},
			"payment_intent": "pi_abc"
		}}
	}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})

	evt, err := g.VerifyWebhook(payload, signed.Header)
	if err != nil {
		t.Fatalf("VerifyWebhook: %v", err)
	}
	if evt.ID != "evt_123" || evt.ContractID != 7 || evt.ChargeRef != "pi_abc" || evt.CheckoutSessionID != "cs_test_1" {
		t.Fatalf("unexpected event %+v", evt)
	}

	if _, err := g.VerifyWebhook(payload, "t=1,v1=deadbeef"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("bad signature err = %v", err)
	}
}

func TestStripeDelayedPaymentCapturesOnAsyncSuccess(t *testing.T) {
	const secret = "whsec_unit"
	g := NewStripeGateway("", secret)
	session := func(status string) string {
		return `{
			"id": "cs_sepa_1",
			"object": "checkout.session",
			"payment_status": "` + status + `",
			"metadata": {"contract_id": "12"},
			"payment_intent": "pi_sepa"
		}`
	}
	verify := func(id, typ, status string) *Event {
		t.Helper()
		payload := []byte(`{"id": "` + id + `", "object": "event", "type": "` + typ + `", "data": {"object": ` + session(status) + `}}`)
		signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload:   payload,
			Secret:    secret,
			Timestamp: time.Now(),
		})
		evt, err := g.VerifyWebhook(payload, signed.Header)
		if err != nil {
			t.Fatalf("VerifyWebhook(%s): %v", typ, err)
		}
		return evt
	}

	pending := verify("evt_completed", "checkout.session.completed", "unpaid")
	if pending.Type == EventCheckoutCompleted || pending.ContractID != 0 {
		t.Fatalf("unpaid completion must not capture: %+v", pending)
	}

	settled := verify("evt_async", "checkout.session.async_payment_succeeded", "paid")
	if settled.Type != EventCheckoutCompleted || settled.ContractID != 12 || settled.ChargeRef != "pi_sepa" || settled.CheckoutSessionID != "cs_sepa_1" {
		t.Fatalf("unexpected async event %+v", settled)
	}

	failed := verify("evt_failed", "checkout.session.async_payment_failed", "unpaid")
	if failed.Type == EventCheckoutCompleted {
		t.Fatalf("failed async payment must not capture: %+v", failed)
	}
}
