package reconcile

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits kept on amounts.
const AmountScale = 3

// parseAmount reads a raw amount as a non-negative fixed-point decimal.
// Unparsable or negative values yield zero and an ErrMalformedRecord error.
// Values with more than AmountScale fractional digits are rounded and also
// reported, so the rounded amount is returned together with the error.
func parseAmount(raw string) (decimal.Decimal, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return decimal.Zero, fmt.Errorf("%w: empty amount", ErrMalformedRecord)
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q is not a number", ErrMalformedRecord, raw)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: amount %q is negative", ErrMalformedRecord, raw)
	}
	rounded := amount.Round(AmountScale)
	if !rounded.Equal(amount) {
		return rounded, fmt.Errorf("%w: amount %q has more than %d decimals, rounded to %s",
			ErrMalformedRecord, raw, AmountScale, rounded.StringFixed(AmountScale))
	}
	return rounded, nil
}

// FormatAmount renders an amount with the fixed three-digit scale.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(AmountScale)
}
