// Package fees computes the platform surcharge added to a contract at checkout.
package fees

import (
	"errors"
	"math"
)

// DefaultPercent is the platform fee applied when none is configured.
const DefaultPercent = 10.0

var ErrInvalidAmount = errors.New("fees: amount or percent out of range")

// maxMinorFloat is 2^63, the first float64 that no longer fits in an int64.
const maxMinorFloat = float64(math.MaxInt64)

// Breakdown is a fee split in minor currency units.
type Breakdown struct {
	Base  int64 `json:"base"`
	Fee   int64 `json:"fee"`
	Total int64 `json:"total"`
}

// ToMinor converts a major-unit amount (dollars) to minor units (cents), rounding half away from zero.
func ToMinor(major float64) (int64, error) {
	if math.IsNaN(major) || math.IsInf(major, 0) || major < 0 {
		return 0, ErrInvalidAmount
	}
	cents := math.Round(major * 100)
	if cents >= maxMinorFloat {
		return 0, ErrInvalidAmount
	}
	return int64(cents), nil
}

// Calculate splits a major-unit base amount into base, fee and total cents.
func Calculate(baseMajor, pct float64) (Breakdown, error) {
	cents, err := ToMinor(baseMajor)
	if err != nil {
		return Breakdown{}, err
	}
	return FromMinor(cents, pct)
}

// FromMinor computes the breakdown for an amount already stored in cents.
// pct must lie in [0, 100] and the total must fit in an int64.
func FromMinor(baseCents int64, pct float64) (Breakdown, error) {
	if baseCents < 0 || math.IsNaN(pct) || pct < 0 || pct > 100 {
		return Breakdown{}, ErrInvalidAmount
	}
	rawFee := math.Round(float64(baseCents) * pct / 100)
	if rawFee >= maxMinorFloat {
		return Breakdown{}, ErrInvalidAmount
	}
	fee := int64(rawFee)
	if fee > math.MaxInt64-baseCents {
		return Breakdown{}, ErrInvalidAmount
	}
	return Breakdown{Base: baseCents, Fee: fee, Total: baseCents + fee}, nil
}
