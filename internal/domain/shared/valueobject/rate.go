package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Rate is a tax rate stored as a fraction (0.095 for 9.5%)
type Rate struct {
	value decimal.Decimal
}

// NewRate creates a rate from a fraction in [0, 1]
func NewRate(fraction decimal.Decimal) (Rate, error) {
	if fraction.IsNegative() || fraction.GreaterThan(decimal.NewFromInt(1)) {
		return Rate{}, fmt.Errorf("rate must be between 0 and 1, got %s", fraction)
	}
	return Rate{value: fraction}, nil
}

// NewRateFromPercent creates a rate from a percentage such as "9.5"
func NewRateFromPercent(percent string) (Rate, error) {
	p, err := decimal.NewFromString(percent)
	if err != nil {
		return Rate{}, fmt.Errorf("invalid percentage %q: %w", percent, err)
	}
	return NewRate(p.Div(hundred))
}

// MustRateFromPercent is NewRateFromPercent that panics on bad input
func MustRateFromPercent(percent string) Rate {
	r, err := NewRateFromPercent(percent)
	if err != nil {
		panic(err)
	}
	return r
}

// ZeroRate returns a 0% rate
func ZeroRate() Rate {
	return Rate{value: decimal.Zero}
}

// Fraction returns the rate as a fraction
func (r Rate) Fraction() decimal.Decimal {
	return r.value
}

// Percent returns the rate as a percentage
func (r Rate) Percent() decimal.Decimal {
	return r.value.Mul(hundred)
}

// IsZero reports whether the rate is 0%
func (r Rate) IsZero() bool {
	return r.value.IsZero()
}

// Of returns the rated portion of m, rounded to the currency minor unit
func (r Rate) Of(m Money) Money {
	return m.Multiply(r.value).RoundToCurrency()
}

// String formats the rate as a percentage
func (r Rate) String() string {
	return r.Percent().String() + "%"
}
