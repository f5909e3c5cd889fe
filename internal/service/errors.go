package service

import (
	"errors"

	"hireloop/internal/repository"
	"hireloop/pkg/payment"
)

// Escrow operations fail with one of these; callers match with errors.Is.
var (
	ErrContractNotFound   = repository.ErrContractNotFound
	ErrPreconditionFailed = repository.ErrPreconditionFailed
	ErrInvalidContract    = repository.ErrInvalidContract
	ErrStorage            = repository.ErrStorage
	ErrAccessDenied       = errors.New("access denied")
	ErrPayeeNotOnboarded  = payment.ErrPayeeNotOnboarded
	ErrNothingToRefund    = payment.ErrNothingToRefund
	ErrGateway            = payment.ErrGateway
	ErrGatewayUnavailable = payment.ErrGatewayUnavailable
	ErrInvalidSignature   = payment.ErrInvalidSignature
	ErrInvalidEvent       = errors.New("capture event is missing contract or charge reference")
)

// Reason maps an error to a short label for metrics and logs.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrContractNotFound):
		return "not_found"
	case errors.Is(err, ErrPreconditionFailed):
		return "precondition_failed"
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ErrPayeeNotOnboarded):
		return "payee_not_onboarded"
	case errors.Is(err, ErrNothingToRefund):
		return "nothing_to_refund"
	case errors.Is(err, ErrGatewayUnavailable):
		return "gateway_unavailable"
	case errors.Is(err, ErrGateway):
		return "gateway_error"
	case errors.Is(err, ErrInvalidContract), errors.Is(err, ErrInvalidEvent):
		return "invalid"
	case errors.Is(err, ErrStorage):
		return "storage"
	}
	return "internal"
}
