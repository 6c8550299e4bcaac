// Package money converts between wire amounts (major units, at most two
// decimals) and the minor-unit integers the ledger stores.
package money

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Scale is the number of minor-unit digits.
const Scale = 2

var (
	ErrTooManyDecimals = errors.New("amount has more than 2 decimal places")
	ErrOutOfRange      = errors.New("amount out of range")
	ErrNotANumber      = errors.New("amount is not a number")
)

var minorPerMajor = decimal.New(1, Scale)

// Amount is a monetary value in minor units (cents).
type Amount int64

// Parse reads a decimal string in major units ("12.5" -> 1250).
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrNotANumber
	}
	return FromDecimal(d)
}

// maxIntDigits is the most integer digits a major-unit value can have and
// still fit in int64 minor units.
const maxIntDigits = 19 - Scale

// FromDecimal converts a major-unit decimal to minor units. Values with more
// than Scale decimals are rejected instead of rounded.
//
// The exponent is checked against the coefficient before any arithmetic:
// rescaling 1e-20000000 or 1e20000000 would build a huge big.Int.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	if d.IsZero() {
		return 0, nil
	}
	coef := d.Coefficient()
	digits := len(coef.Abs(coef).String())
	exp := int64(d.Exponent())
	if exp < -Scale && -exp-Scale > int64(digits) {
		// the coefficient is too short to end in enough zeros
		return 0, ErrTooManyDecimals
	}
	if int64(digits)+exp > maxIntDigits {
		return 0, ErrOutOfRange
	}

	minor := d.Mul(minorPerMajor)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, ErrTooManyDecimals
	}
	if minor.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || minor.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, ErrOutOfRange
	}
	return Amount(minor.IntPart()), nil
}

// Minor returns the raw minor-unit value.
func (a Amount) Minor() int64 { return int64(a) }

// Decimal returns the value in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -Scale)
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(Scale)
}

// MarshalJSON renders the amount as a plain JSON number in major units.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		b = b[1 : len(b)-1]
	}
	v, err := Parse(string(b))
	if err != nil {
		return fmt.Errorf("money: %w", err)
	}
	*a = v
	return nil
}
