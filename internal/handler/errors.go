package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"hireloop/internal/middleware"
	"hireloop/internal/service"

	"github.com/gin-gonic/gin"
)

// writeEscrowError maps an escrow error to a status and a short message.
func writeEscrowError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrContractNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "contract not found"})
	case errors.Is(err, service.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to act on this contract"})
	case errors.Is(err, service.ErrPreconditionFailed):
		c.JSON(http.StatusConflict, gin.H{"error": "contract is not in a state that allows this action"})
	case errors.Is(err, service.ErrPayeeNotOnboarded):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "payee has not set up a payout account"})
	case errors.Is(err, service.ErrNothingToRefund):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no captured payment to refund"})
	case errors.Is(err, service.ErrInvalidContract), errors.Is(err, service.ErrInvalidEvent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrGatewayUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment provider unavailable, try again"})
	case errors.Is(err, service.ErrGateway):
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider rejected the request"})
	default:
		log.Printf("[Handler] %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func actorFrom(c *gin.Context) service.Actor {
	return service.Actor{UserID: middleware.GetUserID(c), Role: middleware.GetRole(c)}
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

func pageParams(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
