// Package currency converts foreign amounts into the user's home currency.
package currency

import (
	"fmt"
	"strings"

	"github.com/dvloznov/finance-capture/internal/domain"
	"github.com/shopspring/decimal"
)

// ParseRate parses an exchange rate expressed as
// "1 unit of foreign currency = rate units of home currency".
// ok is false unless the rate is a finite number greater than zero.
func ParseRate(text string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return decimal.Zero, false
	}
	rate, err := decimal.NewFromString(s)
	if err != nil || !rate.IsPositive() {
		return decimal.Zero, false
	}
	return rate, true
}

// Convert returns amount × rate without rounding.
func Convert(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate)
}

// Annotate appends the provenance note of a conversion to a description.
// amount and rate are written as given.
func Annotate(description, amount string, from domain.Currency, rate string) string {
	return fmt.Sprintf("%s (Exch: %s %s @ %s)", description, amount, from, rate)
}

// Conversion is the input of Apply.
type Conversion struct {
	Amount      decimal.Decimal
	// AmountText is the amount as the user typed it. The note falls back to
	// Amount when it is empty.
	AmountText  string
	Description string
	From        domain.Currency
	Home        domain.Currency
	RateText    string
}

// Result is the outcome of Apply.
type Result struct {
	Amount      decimal.Decimal
	Currency    domain.Currency
	Description string
	// Converted is true when the rate was applied.
	Converted bool
	// Skipped is true when a foreign amount kept its original value because
	// the rate was malformed. This is a soft outcome, not an error.
	Skipped bool
	Rate    decimal.Decimal
}

// Apply converts a foreign amount into the home currency. Same-currency
// amounts pass through untouched. A malformed or non-positive rate never
// blocks the caller: the original amount and currency are kept.
func Apply(c Conversion) Result {
	from := domain.NormalizeCurrency(string(c.From))
	home := domain.NormalizeCurrency(string(c.Home))

	res := Result{
		Amount:      c.Amount,
		Currency:    from,
		Description: c.Description,
	}
	if from == "" || from == home {
		res.Currency = home
		return res
	}

	rate, ok := ParseRate(c.RateText)
	if !ok {
		res.Skipped = true
		return res
	}

	res.Amount = Convert(c.Amount, rate)
	res.Currency = home
	amountText := strings.TrimSpace(c.AmountText)
	if amountText == "" {
		amountText = c.Amount.String()
	}
	res.Description = Annotate(c.Description, amountText, from, strings.TrimSpace(c.RateText))
	res.Converted = true
	res.Rate = rate
	return res
}
