package service

import (
	"context"
	"fmt"
	"log"

	"hireloop/internal/metrics"
)

// Effect kinds.
const (
	EffectAudit  = "audit"
	EffectNotify = "notify"
)

// NonCriticalEffect is follow-up work for a transition that is already
// committed. A failure is logged and counted; it never reaches the caller.
type NonCriticalEffect struct {
	Kind string
	Name string
	Run  func(ctx context.Context) error
}

// runEffects runs every effect even if an earlier one fails or panics. The
// context is detached from cancellation so a dropped client connection does
// not abort bookkeeping for a change that already happened.
func runEffects(ctx context.Context, effects []NonCriticalEffect) {
	ctx = context.WithoutCancel(ctx)
	for _, e := range effects {
		if err := runEffect(ctx, e); err != nil {
			metrics.SideEffectFailures.WithLabelValues(e.Kind).Inc()
			log.Printf("[Escrow] non-critical %s %q failed: %v", e.Kind, e.Name, err)
		}
	}
}

func runEffect(ctx context.Context, e NonCriticalEffect) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.Run(ctx)
}
