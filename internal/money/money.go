// Package money implements a fixed-point currency and multiplier type.
//
// Amounts are stored as integer hundredths (cents) so balances never drift
// the way float64 would; see spec Design Notes §9 "Money type".
package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a non-negative-by-convention monetary value in hundredths of a
// unit. Callers that need a signed delta (ledger entries) use plain int64.
type Amount int64

// Zero is the additive identity.
const Zero Amount = 0

// FromFloat converts a decimal float (e.g. 12.34) to an Amount, rounding to
// the nearest cent. Only used at input boundaries (JSON request bodies).
func FromFloat(f float64) Amount {
	return Amount(math.Round(f * 100))
}

// Float64 renders the amount back to a decimal float for JSON responses.
func (a Amount) Float64() float64 {
	return float64(a) / 100
}

// String renders "12.34".
func (a Amount) String() string {
	neg := a < 0
	v := int64(a)
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%d.%02d", v/100, v%100)
	if neg {
		return "-" + s
	}
	return s
}

// ParseAmount parses "12.34" style strings.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("money: invalid amount %q: %w", s, err)
	}
	return FromFloat(f), nil
}

// Add returns a+b.
func (a Amount) Add(b Amount) Amount { return a + b }

// Sub returns a-b.
func (a Amount) Sub(b Amount) Amount { return a - b }

// Positive reports whether the amount is strictly greater than zero.
func (a Amount) Positive() bool { return a > 0 }

// Multiplier is a centi-multiplier: 150 means 1.50x. Stored as int64 so the
// crash-point comparison (`currentMultiplier >= crashPoint`) never touches
// floating point.
type Multiplier int64

// OneX is the multiplier floor (1.00x).
const OneX Multiplier = 100

// MultiplierFromFloat converts a decimal multiplier (e.g. 1.50) to centi-multiplier
// units, rounding down to match the "round to two decimal places" rule in
// spec §4.1.
func MultiplierFromFloat(f float64) Multiplier {
	return Multiplier(math.Floor(f * 100))
}

// Float64 renders back to a decimal multiplier (1.50).
func (m Multiplier) Float64() float64 {
	return float64(m) / 100
}

// String renders "1.50x".
func (m Multiplier) String() string {
	return fmt.Sprintf("%d.%02dx", m/100, m%100)
}

// MulMultiplier computes stake * multiplier, rounding down to the nearest
// cent (payout must never exceed stake*multiplier due to rounding up).
func (a Amount) MulMultiplier(m Multiplier) Amount {
	return Amount((int64(a) * int64(m)) / 100)
}
