// Package money converts between the major-unit amounts users see and the
// minor units payment gateways expect.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxMajorAmount bounds a single order so minor-unit values stay well inside int64.
const MaxMajorAmount = 10_000_000

var hundred = decimal.NewFromInt(100)

// ToMinorUnits validates that amount is a positive whole number not above
// MaxMajorAmount and returns it multiplied by 100.
func ToMinorUnits(amount decimal.Decimal) (major, minor int64, err error) {
	if !amount.IsPositive() {
		return 0, 0, fmt.Errorf("amount must be positive, got %s", amount)
	}
	if !amount.IsInteger() {
		return 0, 0, fmt.Errorf("amount must be a whole number, got %s", amount)
	}
	if amount.GreaterThan(decimal.NewFromInt(MaxMajorAmount)) {
		return 0, 0, fmt.Errorf("amount %s exceeds limit %d", amount, MaxMajorAmount)
	}
	return amount.IntPart(), amount.Mul(hundred).IntPart(), nil
}

// Format renders a major-unit decimal with two fraction digits.
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
