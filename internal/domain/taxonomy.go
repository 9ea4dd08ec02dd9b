// Package domain holds the closed vocabularies and the canonical transaction record.
package domain

import (
	"strings"
)

// Category is one member of the closed category set.
type Category string

const (
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryUtilities     Category = "Utilities"
	CategoryEntertainment Category = "Entertainment"
	CategoryShopping      Category = "Shopping"
	CategoryHealth        Category = "Health"
	CategorySavings       Category = "Savings" // investments and accumulation
	CategoryIncome        Category = "Income"
	CategoryOther         Category = "Other"
)

var categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryUtilities,
	CategoryEntertainment,
	CategoryShopping,
	CategoryHealth,
	CategorySavings,
	CategoryIncome,
	CategoryOther,
}

// Categories returns the closed category set in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ExpenseCategories returns every category an expense may use.
func ExpenseCategories() []Category {
	out := make([]Category, 0, len(categories)-1)
	for _, c := range categories {
		if c != CategoryIncome {
			out = append(out, c)
		}
	}
	return out
}

// Valid reports whether c is a member of the closed set.
func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// MatchCategory maps free text onto the closed set using a case-insensitive
// exact comparison. It never guesses: anything else is reported as no match.
func MatchCategory(freeText string) (Category, bool) {
	norm := normalizeCategory(freeText)
	if norm == "" {
		return "", false
	}
	for _, c := range categories {
		if normalizeCategory(string(c)) == norm {
			return c, true
		}
	}
	return "", false
}

// DefaultCategory is the category a session falls back to for a given type.
func DefaultCategory(t Type) Category {
	if t == TypeIncome {
		return CategoryIncome
	}
	return CategoryFood
}

// normalizeCategory converts to uppercase and trims whitespace for comparison.
func normalizeCategory(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Currency is a currency code, usually ISO 4217. Codes outside the home set,
// including free text such as "€", are legal values for a foreign amount and
// are never coerced into the home set.
type Currency string

const (
	CurrencyTJS Currency = "TJS"
	CurrencyUZS Currency = "UZS"
	CurrencyUSD Currency = "USD"
)

var homeCurrencies = []Currency{CurrencyTJS, CurrencyUZS, CurrencyUSD}

// HomeCurrencies returns the currencies a user may pick as home currency.
func HomeCurrencies() []Currency {
	out := make([]Currency, len(homeCurrencies))
	copy(out, homeCurrencies)
	return out
}

// IsHomeCurrency reports membership in the closed home currency set.
func IsHomeCurrency(code string) bool {
	c := NormalizeCurrency(code)
	for _, h := range homeCurrencies {
		if c == h {
			return true
		}
	}
	return false
}

// NormalizeCurrency trims and upper-cases a code. It does not validate it.
func NormalizeCurrency(code string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(code)))
}
