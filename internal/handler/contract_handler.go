package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"hireloop/internal/domain"
	"hireloop/internal/models"
	"hireloop/internal/service"
	"hireloop/pkg/fees"

	"github.com/gin-gonic/gin"
)

type ContractHandler struct {
	escrow *service.EscrowService
	audit  *service.AuditService
}

func NewContractHandler(escrow *service.EscrowService, audit *service.AuditService) *ContractHandler {
	return &ContractHandler{escrow: escrow, audit: audit}
}

func (h *ContractHandler) Create(c *gin.Context) {
	var in service.CreateContractInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	contract, err := h.escrow.CreateContract(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		writeEscrowError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"contract": contract})
}

// List returns the caller's contracts. Admins see every contract and may
// filter with ?payment_status=.
func (h *ContractHandler) List(c *gin.Context) {
	status := c.Query("payment_status")
	if status != "" && !domain.IsPaymentStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown payment_status"})
		return
	}
	limit, offset := pageParams(c)
	list, err := h.escrow.ListForActor(c.Request.Context(), actorFrom(c), status, limit, offset)
	if err != nil {
		writeEscrowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contracts": list})
}

func (h *ContractHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	contract, err := h.escrow.Get(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		writeEscrowError(c, err)
		return
	}
	resp := gin.H{"contract": contract}
	if breakdown, err := fees.FromMinor(contract.AmountCents, h.escrow.FeePercent()); err != nil {
		log.Printf("[Contract] fee breakdown for contract=%d: %v", contract.ID, err)
	} else {
		resp["fees"] = breakdown
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ContractHandler) AuditTrail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, err := h.escrow.Get(c.Request.Context(), id, actorFrom(c)); err != nil {
		writeEscrowError(c, err)
		return
	}
	events, err := h.audit.Trail(c.Request.Context(), id)
	if err != nil {
		writeEscrowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// FeeQuote previews the checkout total for ?amount= in major units.
func (h *ContractHandler) FeeQuote(c *gin.Context) {
	amount, err := strconv.ParseFloat(c.Query("amount"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount required"})
		return
	}
	breakdown, err := fees.Calculate(amount, h.escrow.FeePercent())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"fee_percent": h.escrow.FeePercent(), "fees": breakdown})
}

func (h *ContractHandler) Checkout(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.escrow.InitiateCheckout(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		writeEscrowError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ContractHandler) RequestRelease(c *gin.Context) {
	h.transition(c, h.escrow.RequestRelease)
}

func (h *ContractHandler) Release(c *gin.Context) {
	h.transition(c, h.escrow.Release)
}

func (h *ContractHandler) Complete(c *gin.Context) {
	h.transition(c, h.escrow.Complete)
}

// Refund is mounted under the admin group.
func (h *ContractHandler) Refund(c *gin.Context) {
	h.transition(c, h.escrow.Refund)
}

func (h *ContractHandler) Dispute(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	h.transition(c, func(ctx context.Context, id uint, actor service.Actor) (*models.Contract, error) {
		return h.escrow.Dispute(ctx, id, actor, req.Reason)
	})
}

func (h *ContractHandler) ResolveDispute(c *gin.Context) {
	var req struct {
		Note string `json:"note"`
	}
	_ = c.ShouldBindJSON(&req)
	h.transition(c, func(ctx context.Context, id uint, actor service.Actor) (*models.Contract, error) {
		return h.escrow.ResolveDispute(ctx, id, actor, req.Note)
	})
}

func (h *ContractHandler) transition(c *gin.Context, op func(ctx context.Context, id uint, actor service.Actor) (*models.Contract, error)) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	contract, err := op(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		writeEscrowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contract": contract})
}
