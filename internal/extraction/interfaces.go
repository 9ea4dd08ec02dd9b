package extraction

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Result is a best-effort guess of transaction fields produced by the
// extraction service. Category is free text, not yet matched to the closed set.
type Result struct {
	Amount      decimal.Decimal
	Description string
	Category    string
	Date        *civil.Date // receipts only, nil when absent or malformed
	Currency    string      // receipts only, empty when absent
}

// Extractor is the capability the capture controller depends on.
// Both calls are single-shot and never retried.
type Extractor interface {
	// FromSpeech extracts fields from a spoken transcript.
	FromSpeech(ctx context.Context, transcript, locale string) (*Result, error)

	// FromImage extracts fields from a photographed receipt.
	FromImage(ctx context.Context, image []byte) (*Result, error)
}

// Generator sends one prompt to a model provider and returns its raw text.
// This interface enables mocking and testing of the provider call.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Request is a provider-neutral model request.
type Request struct {
	Prompt string

	// Image and MIMEType are set for receipt requests.
	Image    []byte
	MIMEType string

	// Schema asks the provider for a structured JSON object with these
	// properties when the provider supports it.
	Schema []Property
}

// Property is one field of a structured response.
type Property struct {
	Name string
	Kind PropertyKind
}

// PropertyKind is the JSON kind of a Property.
type PropertyKind string

const (
	KindNumber PropertyKind = "number"
	KindString PropertyKind = "string"
)

// speechSchema is the response shape requested for transcripts.
var speechSchema = []Property{
	{Name: "amount", Kind: KindNumber},
	{Name: "description", Kind: KindString},
	{Name: "category", Kind: KindString},
}
