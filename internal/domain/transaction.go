package domain

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Type is the direction of a transaction.
type Type string

const (
	TypeExpense Type = "expense"
	TypeIncome  Type = "income"
)

// ErrInvalidType is returned by ParseType for anything but expense or income.
var ErrInvalidType = errors.New("invalid transaction type")

// ParseType parses "expense" or "income".
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeExpense, TypeIncome:
		return Type(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

// Transaction is the canonical ledger record.
// Amount is denominated in Currency, which is the home currency unless a
// conversion was skipped because of a malformed exchange rate.
type Transaction struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    Currency        `json:"currency"`
	Category    Category        `json:"category"`
	Description string          `json:"description"`
	Date        civil.Date      `json:"date"`
	Type        Type            `json:"type"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Validate checks the type/category invariant and the basic field shape.
func (t Transaction) Validate() error {
	if t.ID == "" {
		return errors.New("transaction: missing id")
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("transaction %s: amount %s is not positive", t.ID, t.Amount)
	}
	if !t.Date.IsValid() {
		return fmt.Errorf("transaction %s: invalid date %s", t.ID, t.Date)
	}
	if !t.Category.Valid() {
		return fmt.Errorf("transaction %s: unknown category %q", t.ID, t.Category)
	}
	switch t.Type {
	case TypeIncome:
		if t.Category != CategoryIncome {
			return fmt.Errorf("transaction %s: income must use category %s, got %s", t.ID, CategoryIncome, t.Category)
		}
	case TypeExpense:
		if t.Category == CategoryIncome {
			return fmt.Errorf("transaction %s: expense cannot use category %s", t.ID, CategoryIncome)
		}
	default:
		return fmt.Errorf("transaction %s: %w: %q", t.ID, ErrInvalidType, t.Type)
	}
	return nil
}
