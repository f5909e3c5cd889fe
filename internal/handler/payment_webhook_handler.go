package handler

import (
	"errors"
	"io"
	"log"
	"net/http"

	"hireloop/internal/metrics"
	"hireloop/internal/repository"
	"hireloop/internal/service"
	"hireloop/pkg/payment"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

type PaymentWebhookHandler struct {
	gateway   payment.Gateway
	escrow    *service.EscrowService
	events    *repository.WebhookEventRepository
	sigHeader string
}

func NewPaymentWebhookHandler(gateway payment.Gateway, escrow *service.EscrowService, events *repository.WebhookEventRepository, sigHeader string) *PaymentWebhookHandler {
	if sigHeader == "" {
		sigHeader = "Stripe-Signature"
	}
	return &PaymentWebhookHandler{gateway: gateway, escrow: escrow, events: events, sigHeader: sigHeader}
}

// Handle verifies the processor signature before reading anything from the
// payload. Every authenticated event is acknowledged, including ones that
// are dropped; only a storage failure returns 500 so the processor retries.
func (h *PaymentWebhookHandler) Handle(c *gin.Context) {
	ctx := c.Request.Context()
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	evt, err := h.gateway.VerifyWebhook(body, c.GetHeader(h.sigHeader))
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			metrics.WebhookEvents.WithLabelValues("invalid_signature").Inc()
			log.Printf("[Webhook] rejected: invalid signature from %s", c.ClientIP())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}
		metrics.WebhookEvents.WithLabelValues("malformed").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
		return
	}

	seen, err := h.events.Seen(ctx, evt.ID)
	if err != nil {
		log.Printf("[Webhook] dedupe lookup event=%s: %v", evt.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}
	if seen {
		h.ack(c, "duplicate")
		return
	}
	if evt.Type != payment.EventCheckoutCompleted {
		h.markProcessed(c, evt, "ignored")
		h.ack(c, "ignored")
		return
	}

	_, err = h.escrow.CaptureFromWebhook(ctx, service.CaptureEvent{
		ContractID:        evt.ContractID,
		ChargeRef:         evt.ChargeRef,
		CheckoutSessionID: evt.CheckoutSessionID,
		EventID:           evt.ID,
	})
	outcome := "captured"
	switch {
	case err == nil:
	case errors.Is(err, service.ErrStorage):
		log.Printf("[Webhook] capture event=%s contract=%d: %v", evt.ID, evt.ContractID, err)
		metrics.WebhookEvents.WithLabelValues("storage_error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	case errors.Is(err, service.ErrContractNotFound),
		errors.Is(err, service.ErrPreconditionFailed),
		errors.Is(err, service.ErrInvalidEvent):
		log.Printf("[Webhook] dropped event=%s contract=%d: %v", evt.ID, evt.ContractID, err)
		outcome = "dropped"
	default:
		log.Printf("[Webhook] capture event=%s contract=%d failed: %v", evt.ID, evt.ContractID, err)
		h.ack(c, "error")
		return
	}
	h.markProcessed(c, evt, outcome)
	h.ack(c, outcome)
}

func (h *PaymentWebhookHandler) markProcessed(c *gin.Context, evt *payment.Event, outcome string) {
	if err := h.events.MarkProcessed(c.Request.Context(), evt.ID, evt.Type, outcome); err != nil {
		log.Printf("[Webhook] mark processed event=%s: %v", evt.ID, err)
	}
}

func (h *PaymentWebhookHandler) ack(c *gin.Context, outcome string) {
	metrics.WebhookEvents.WithLabelValues(outcome).Inc()
	c.JSON(http.StatusOK, gin.H{"received": true})
}
