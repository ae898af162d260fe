package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidArgument is returned for inputs the tax math cannot accept (negative rates, unparsable amounts).
var ErrInvalidArgument = errors.New("invalid argument")

// DefaultVATRate is the 12% VAT applied when no rate is configured.
var DefaultVATRate = decimal.RequireFromString("0.12")

const places = 2

var one = decimal.NewFromInt(1)

// Breakdown splits a sale total into its taxable base and tax component.
type Breakdown struct {
	TaxableBase decimal.Decimal `json:"taxable_base"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	Total       decimal.Decimal `json:"total"`
}

// Round rounds to 2 fractional digits, ties away from zero (round-half-up on magnitude).
func Round(x decimal.Decimal) decimal.Decimal {
	return x.Round(places)
}

// VATBreakdown computes (taxable base, tax, total) for a gross amount.
//
// When prices include tax the total is fixed first and the tax is taken as the
// remainder, so TaxableBase + TaxAmount == Total exactly.
func VATBreakdown(gross, rate decimal.Decimal, pricesIncludeTax bool) (Breakdown, error) {
	if rate.IsNegative() {
		return Breakdown{}, fmt.Errorf("%w: tax rate %s is negative", ErrInvalidArgument, rate.String())
	}

	if pricesIncludeTax {
		total := Round(gross)
		base := Round(total.Div(one.Add(rate)))
		return Breakdown{
			TaxableBase: base,
			TaxAmount:   Round(total.Sub(base)),
			Total:       total,
		}, nil
	}

	base := Round(gross)
	tax := Round(base.Mul(rate))
	return Breakdown{
		TaxableBase: base,
		TaxAmount:   tax,
		Total:       Round(base.Add(tax)),
	}, nil
}

// Parse reads a decimal amount from its string form, rejecting empty input.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty amount", ErrInvalidArgument)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return d, nil
}

// ParseRate parses a tax rate given either as a fraction below 1 ("0.12") or a
// percentage ("12", "12%"). Any bare number of 1 or more is a percentage, so
// "1" is 1% and "100" is 100%.
func ParseRate(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSuffix(s, "%")

	rate, err := Parse(s)
	if err != nil {
		return decimal.Zero, err
	}
	if percent || rate.GreaterThanOrEqual(one) {
		rate = rate.Shift(-2)
	}
	if rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: tax rate %s is negative", ErrInvalidArgument, s)
	}
	return rate, nil
}

// HasAtMostCents reports whether x carries no more than 2 fractional digits.
func HasAtMostCents(x decimal.Decimal) bool {
	return x.Equal(Round(x))
}

// LineTotal is unit price × quantity, unrounded.
func LineTotal(unitPrice decimal.Decimal, qty int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty)))
}
