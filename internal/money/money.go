package money

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidAmount is returned for amounts that are missing, non-finite or
// below the configured minimum deposit.
var ErrInvalidAmount = errors.New("money: invalid amount")

// DefaultMinimum is the smallest accepted deposit in major units.
const DefaultMinimum = 1.00

// DefaultFactor is the minor-unit factor for the supported currency (USD cents).
const DefaultFactor = 100

// Normalizer converts user-facing decimal amounts into provider minor units.
type Normalizer struct {
	Minimum float64
	Factor  int64
}

// Normalize converts amount into minor units, rounding to the nearest
// integer. Rounding rather than truncation keeps fractional-cent inputs from
// systematically undercharging.
func (n Normalizer) Normalize(amount float64) (int64, error) {
	minimum := n.Minimum
	if minimum <= 0 {
		minimum = DefaultMinimum
	}
	factor := n.Factor
	if factor <= 0 {
		factor = DefaultFactor
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("%w: not a finite number", ErrInvalidAmount)
	}
	if amount < minimum {
		return 0, fmt.Errorf("%w: below minimum %.2f", ErrInvalidAmount, minimum)
	}
	return int64(math.Round(amount * float64(factor))), nil
}

// ToMajor converts minor units back into major currency units.
func (n Normalizer) ToMajor(minor int64) float64 {
	factor := n.Factor
	if factor <= 0 {
		factor = DefaultFactor
	}
	return float64(minor) / float64(factor)
}

// Format renders a minor-unit amount as a major-unit string for logs.
func (n Normalizer) Format(minor int64) string {
	return fmt.Sprintf("%.2f", n.ToMajor(minor))
}
