// Package builder turns the editable fields of a capture session into a
// canonical, validated transaction.
package builder

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-capture/internal/currency"
	"github.com/dvloznov/finance-capture/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fields are the session inputs in the text form the user typed them.
type Fields struct {
	Amount       string `json:"amount"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Date         string `json:"date"`
	Type         string `json:"type"`
	Currency     string `json:"currency"`
	ExchangeRate string `json:"exchange_rate"`
}

// Outcome is a built transaction plus the soft conversion result.
type Outcome struct {
	Transaction domain.Transaction `json:"transaction"`
	// ConversionSkipped is set when a foreign amount kept its original value
	// and currency because the exchange rate was malformed.
	ConversionSkipped bool `json:"conversion_skipped"`
	// Converted is set when the exchange rate was applied.
	Converted bool `json:"converted"`
}

// Builder builds transactions. It performs no I/O.
type Builder struct {
	// Home is the currency amounts are converted into.
	Home domain.Currency
	// Clock stamps CreatedAt. Defaults to time.Now.
	Clock func() time.Time
	// NewID assigns identifiers. Defaults to time-ordered UUIDv7.
	NewID func() string
}

// New returns a Builder with the default clock and identifier source.
func New(home domain.Currency) *Builder {
	return &Builder{Home: home}
}

// NewID returns a fresh time-ordered identifier.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Build validates f and returns the canonical transaction. All field problems
// are reported together as ValidationErrors.
func (b *Builder) Build(f Fields) (Outcome, error) {
	var errs ValidationErrors
	fail := func(field, reason string) {
		errs = append(errs, &ValidationError{Field: field, Reason: reason})
	}

	amount, amountOK := parseAmount(f.Amount)
	if !amountOK {
		if strings.TrimSpace(f.Amount) == "" {
			fail(FieldAmount, "is required")
		} else {
			fail(FieldAmount, "must be a positive number")
		}
	}

	description := strings.TrimSpace(f.Description)
	if description == "" {
		fail(FieldDescription, "is required")
	}

	date, err := civil.ParseDate(strings.TrimSpace(f.Date))
	if err != nil || !date.IsValid() {
		fail(FieldDate, "must be a calendar date in YYYY-MM-DD form")
	}

	txType, err := domain.ParseType(strings.ToLower(strings.TrimSpace(f.Type)))
	if err != nil {
		fail(FieldType, "must be expense or income")
	}

	category, catOK := domain.MatchCategory(f.Category)
	switch {
	case txType == domain.TypeIncome:
		// Income always books to the Income category.
		category = domain.CategoryIncome
	case !catOK:
		fail(FieldCategory, "must be one of the known categories")
	case txType == domain.TypeExpense && category == domain.CategoryIncome:
		fail(FieldCategory, "an expense cannot use the Income category")
	}

	from := domain.NormalizeCurrency(f.Currency)
	if from == "" {
		from = b.Home
	}
	if from != b.Home && strings.TrimSpace(f.ExchangeRate) == "" {
		fail(FieldExchangeRate, "is required for a foreign currency")
	}

	if len(errs) > 0 {
		return Outcome{}, errs
	}

	conv := currency.Apply(currency.Conversion{
		Amount:      amount,
		AmountText:  f.Amount,
		Description: description,
		From:        from,
		Home:        b.Home,
		RateText:    f.ExchangeRate,
	})
	if !conv.Amount.IsPositive() {
		return Outcome{}, ValidationErrors{{Field: FieldAmount, Reason: "must be positive after conversion"}}
	}

	tx := domain.Transaction{
		ID:          b.newID(),
		Amount:      conv.Amount,
		Currency:    conv.Currency,
		Category:    category,
		Description: conv.Description,
		Date:        date,
		Type:        txType,
		CreatedAt:   b.now().UTC(),
	}
	if err := tx.Validate(); err != nil {
		return Outcome{}, ValidationErrors{{Field: FieldCategory, Reason: err.Error()}}
	}

	return Outcome{
		Transaction:       tx,
		ConversionSkipped: conv.Skipped,
		Converted:         conv.Converted,
	}, nil
}

func (b *Builder) now() time.Time {
	if b.Clock != nil {
		return b.Clock()
	}
	return time.Now()
}

func (b *Builder) newID() string {
	if b.NewID != nil {
		return b.NewID()
	}
	return NewID()
}

func parseAmount(text string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, false
	}
	return amount, true
}

