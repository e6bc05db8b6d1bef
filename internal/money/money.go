// Package money holds the display contract for monetary amounts. Amount
// arithmetic lives with the callers; this package only normalises values for
// rendering so API payloads match what the UI prints.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Format renders an amount for display. Integral amounts render without
// decimals; fractional amounts render with two decimals, trailing zeros
// stripped. The currency label is appended with a single space when present.
func Format(amount decimal.Decimal, label string) string {
	var rendered string
	if amount.IsInteger() {
		rendered = amount.StringFixed(0)
	} else {
		rendered = strings.TrimRight(amount.StringFixed(2), "0")
		rendered = strings.TrimRight(rendered, ".")
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return rendered
	}
	return rendered + " " + label
}
