// Package core holds the domain model, the balance-propagation engine and
// the monthly aggregation engine. Everything in this package is pure: no
// database, no clock beyond what the caller passes in.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Round2 normalizes an amount to exactly 2 fractional digits (half away
// from zero). Every amount is passed through here before it is compared
// or stored, so drift never accumulates across propagations.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ParseAmount converts a user-entered decimal string to a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) separators and rounds the
// third decimal digit half-up. Signs, malformed input, and non-positive
// values are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = Round2(d)
	if d.Sign() <= 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
