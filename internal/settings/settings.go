// Package settings holds the user preferences the capture core reads.
package settings

import (
	"fmt"
	"strings"

	"github.com/dvloznov/finance-capture/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Provider is the read-only view of settings the capture core depends on.
type Provider interface {
	// HomeCurrency is the currency every committed amount is denominated in.
	HomeCurrency() domain.Currency

	// Locale is the speech locale hint, e.g. "en-US".
	Locale() string
}

// Supported interface languages.
const (
	LanguageEnglish = "en"
	LanguageRussian = "ru"
)

var speechLocales = map[string]string{
	LanguageEnglish: "en-US",
	LanguageRussian: "ru-RU",
}

// Settings are the user preferences.
type Settings struct {
	Currency        domain.Currency                     `json:"currency"`
	Language        string                              `json:"language"`
	Name            string                              `json:"name"`
	Email           string                              `json:"email,omitempty"`
	MonthlyBudget   decimal.Decimal                     `json:"monthly_budget"`
	CategoryBudgets map[domain.Category]decimal.Decimal `json:"category_budgets"`
}

// Defaults returns the settings of a first-time user.
func Defaults() *Settings {
	return &Settings{
		Currency:      domain.CurrencyTJS,
		Language:      LanguageEnglish,
		Name:          "Guest",
		MonthlyBudget: decimal.NewFromInt(3000),
		CategoryBudgets: map[domain.Category]decimal.Decimal{
			domain.CategoryFood:          decimal.NewFromInt(800),
			domain.CategorySavings:       decimal.NewFromInt(600),
			domain.CategoryTransport:     decimal.NewFromInt(300),
			domain.CategoryUtilities:     decimal.NewFromInt(300),
			domain.CategoryEntertainment: decimal.NewFromInt(150),
			domain.CategoryShopping:      decimal.NewFromInt(300),
			domain.CategoryHealth:        decimal.NewFromInt(150),
			domain.CategoryOther:         decimal.NewFromInt(400),
			domain.CategoryIncome:        decimal.Zero,
		},
	}
}

// HomeCurrency implements Provider.
func (s *Settings) HomeCurrency() domain.Currency {
	return s.Currency
}

// Locale implements Provider.
func (s *Settings) Locale() string {
	if loc, ok := speechLocales[s.Language]; ok {
		return loc
	}
	return speechLocales[LanguageEnglish]
}

// Keys read by Load, relative to the "settings" section.
const (
	keyCurrency        = "settings.currency"
	keyLanguage        = "settings.language"
	keyName            = "settings.name"
	keyEmail           = "settings.email"
	keyMonthlyBudget   = "settings.monthly_budget"
	keyCategoryBudgets = "settings.category_budgets"
)

// Load merges the values present in v over Defaults. Budgets are merged per
// category, so a partial budget map keeps the default for the others.
func Load(v *viper.Viper) (*Settings, error) {
	s := Defaults()

	if v.IsSet(keyCurrency) {
		code := domain.NormalizeCurrency(v.GetString(keyCurrency))
		if !domain.IsHomeCurrency(string(code)) {
			return nil, fmt.Errorf("settings.Load: unsupported home currency %q", code)
		}
		s.Currency = code
	}

	if v.IsSet(keyLanguage) {
		lang := strings.ToLower(strings.TrimSpace(v.GetString(keyLanguage)))
		if _, ok := speechLocales[lang]; !ok {
			return nil, fmt.Errorf("settings.Load: unsupported language %q", lang)
		}
		s.Language = lang
	}

	if v.IsSet(keyName) {
		if name := strings.TrimSpace(v.GetString(keyName)); name != "" {
			s.Name = name
		}
	}
	if v.IsSet(keyEmail) {
		s.Email = strings.TrimSpace(v.GetString(keyEmail))
	}

	if v.IsSet(keyMonthlyBudget) {
		budget, err := parseBudget(v.GetString(keyMonthlyBudget))
		if err != nil {
			return nil, fmt.Errorf("settings.Load: monthly budget: %w", err)
		}
		s.MonthlyBudget = budget
	}

	if v.IsSet(keyCategoryBudgets) {
		for name, raw := range v.GetStringMapString(keyCategoryBudgets) {
			cat, ok := domain.MatchCategory(name)
			if !ok {
				return nil, fmt.Errorf("settings.Load: budget for unknown category %q", name)
			}
			budget, err := parseBudget(raw)
			if err != nil {
				return nil, fmt.Errorf("settings.Load: budget for %s: %w", cat, err)
			}
			s.CategoryBudgets[cat] = budget
		}
	}

	return s, nil
}

func parseBudget(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %q: %w", raw, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s is negative", d)
	}
	return d, nil
}

// Ensure Settings implements Provider.
var _ Provider = (*Settings)(nil)
