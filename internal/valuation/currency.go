package valuation

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var currencyPrinter = message.NewPrinter(language.English)

// FormatCurrency formats an NZD amount for display with grouping separators
// and no decimal places, e.g. 636000 -> "$636,000". Negative amounts keep the
// leading minus sign so losses read as losses.
func FormatCurrency(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return sign + currencyPrinter.Sprintf("$%.0f", math.Round(amount))
}
