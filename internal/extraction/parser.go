package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// parseModelOutput turns raw model text into a Result.
func parseModelOutput(raw string) (*Result, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &Failure{Kind: FailureEmpty, Err: fmt.Errorf("empty response from model")}
	}

	clean := cleanModelJSON(raw)

	var parsed interface{}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, &Failure{Kind: FailureUnparseable, Err: fmt.Errorf("unmarshal JSON: %w", err)}
	}

	obj, err := firstObject(parsed)
	if err != nil {
		return nil, &Failure{Kind: FailureUnparseable, Err: err}
	}

	res, err := transformModelOutput(obj)
	if err != nil {
		return nil, &Failure{Kind: FailureUnparseable, Err: err}
	}
	return res, nil
}

// cleanModelJSON strips Markdown fences and surrounding text so only the JSON
// object remains.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(strings.TrimPrefix(s, "```json"), "```")
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only from the first '{' to the last '}' if there is junk around it.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			if !strings.HasPrefix(s, "[") {
				s = strings.TrimSpace(s[start : end+1])
			}
		}
	}

	return s
}

// firstObject accepts either an object or a non-empty array of objects.
func firstObject(v interface{}) (map[string]interface{}, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		return val, nil
	case []interface{}:
		if len(val) == 0 {
			return nil, fmt.Errorf("model returned an empty array")
		}
		obj, ok := val[0].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("array element is %T, want object", val[0])
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("model output is %T, want object", v)
	}
}

// transformModelOutput maps the generic JSON object onto a Result.
// No business validation happens here: unknown categories and odd amounts
// pass through for the caller to reconcile.
func transformModelOutput(obj map[string]interface{}) (*Result, error) {
	amount, err := getDecimalField(obj, "amount")
	if err != nil {
		return nil, err
	}
	desc, err := getOptionalStringField(obj, "description")
	if err != nil {
		return nil, err
	}
	category, err := getOptionalStringField(obj, "category")
	if err != nil {
		return nil, err
	}
	currency, err := getOptionalStringField(obj, "currency")
	if err != nil {
		return nil, err
	}
	dateStr, err := getOptionalStringField(obj, "date")
	if err != nil {
		return nil, err
	}

	res := &Result{
		Amount:      amount,
		Description: deref(desc),
		Category:    deref(category),
		Currency:    strings.ToUpper(deref(currency)),
	}

	// A malformed date is dropped rather than failing the whole extraction.
	if dateStr != nil {
		if d, err := civil.ParseDate(*dateStr); err == nil {
			res.Date = &d
		}
	}

	return res, nil
}

func getDecimalField(m map[string]interface{}, key string) (decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return decimal.Zero, fmt.Errorf("missing required field %q", key)
	}
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q: %q is not a number", key, val)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}

func getOptionalStringField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
