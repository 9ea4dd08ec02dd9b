package capture

import (
	"strings"

	"github.com/dvloznov/finance-capture/internal/builder"
	"github.com/dvloznov/finance-capture/internal/domain"
	"github.com/dvloznov/finance-capture/internal/extraction"
)

// reconcile folds an extraction result into the session fields. Amount and
// description are always replaced. Free text that does not map onto the
// closed vocabularies leaves the prior value.
func reconcile(f builder.Fields, res *extraction.Result) builder.Fields {
	if res == nil {
		return f
	}

	f.Amount = res.Amount.String()
	f.Description = strings.TrimSpace(res.Description)

	if cat, ok := domain.MatchCategory(res.Category); ok {
		f.Category = string(cat)
		switch {
		case cat == domain.CategoryIncome:
			f.Type = string(domain.TypeIncome)
		case f.Type == string(domain.TypeIncome):
			f.Type = string(domain.TypeExpense)
		}
	}

	if res.Date != nil && res.Date.IsValid() {
		f.Date = res.Date.String()
	}

	if code := domain.NormalizeCurrency(res.Currency); code != "" {
		// A home currency needs no rate; a foreign one needs a fresh rate.
		f.Currency = string(code)
		f.ExchangeRate = ""
	}

	return f
}
