package builder

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation matches every error returned by Build.
var ErrValidation = errors.New("validation failed")

// Field names used in ValidationError.
const (
	FieldAmount       = "amount"
	FieldDescription  = "description"
	FieldCategory     = "category"
	FieldDate         = "date"
	FieldType         = "type"
	FieldCurrency     = "currency"
	FieldExchangeRate = "exchange_rate"
)

// ValidationError is a required-field or invariant violation on one field.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ValidationErrors is every field problem found by one Build call, in field
// order, so each offending field can be reported next to its input.
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	parts := make([]string, 0, len(es))
	for _, e := range es {
		parts = append(parts, e.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes ValidationErrors match ErrValidation.
func (es ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Fields returns the names of the offending fields.
func (es ValidationErrors) Fields() []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.Field)
	}
	return out
}

// Has reports whether field is among the offending fields.
func (es ValidationErrors) Has(field string) bool {
	for _, e := range es {
		if e.Field == field {
			return true
		}
	}
	return false
}
