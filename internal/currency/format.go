// Package currency formats payout amounts for display.
package currency

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.MustParse("en-IN"))

// Format renders an amount as Indian rupees with lakh/crore digit grouping
// and no fraction digits, e.g. ₹1,12,000.
func Format(amount float64) string {
	return printer.Sprintf("₹%v", number.Decimal(amount,
		number.MaxFractionDigits(0),
	))
}
