package templates

import (
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// FormatCurrency renders revenue as whole dollars with thousands
// separators, e.g. "$12,345". Halves round to even.
func FormatCurrency(d decimal.Decimal) string {
	return "$" + humanize.BigComma(d.RoundBank(0).BigInt())
}

// FormatQuantity renders a unit count as a plain integer.
func FormatQuantity(q int64) string {
	return strconv.FormatInt(q, 10)
}
