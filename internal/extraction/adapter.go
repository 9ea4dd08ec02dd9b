// Package extraction wraps the model calls that turn a transcript or a receipt
// image into a best-effort guess of transaction fields.
package extraction

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Adapter is the concrete Extractor. It normalizes provider responses into a
// Result and translates every problem into a *Failure.
type Adapter struct {
	gen     Generator
	timeout time.Duration
	log     zerolog.Logger
}

// NewAdapter creates an Adapter on top of a Generator. A zero timeout leaves
// the deadline to the caller's context.
func NewAdapter(gen Generator, timeout time.Duration, log zerolog.Logger) *Adapter {
	return &Adapter{gen: gen, timeout: timeout, log: log}
}

// FromSpeech implements Extractor.
func (a *Adapter) FromSpeech(ctx context.Context, transcript, locale string) (*Result, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, &Failure{Kind: FailureEmpty, Err: errors.New("empty transcript")}
	}

	req := Request{
		Prompt: buildSpeechPrompt(transcript, locale),
		Schema: speechSchema,
	}
	return a.run(ctx, "speech", req)
}

// FromImage implements Extractor.
func (a *Adapter) FromImage(ctx context.Context, image []byte) (*Result, error) {
	if len(image) == 0 {
		return nil, &Failure{Kind: FailureEmpty, Err: errors.New("empty image")}
	}

	req := Request{
		Prompt:   buildReceiptPrompt(),
		Image:    image,
		MIMEType: DetectMIMEType(image),
	}
	return a.run(ctx, "receipt", req)
}

func (a *Adapter) run(ctx context.Context, channel string, req Request) (*Result, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := a.gen.Generate(ctx, req)
	if err != nil {
		f := transportFailure(err)
		a.log.Warn().Err(err).Str("channel", channel).Str("kind", string(f.Kind)).Msg("Extraction call failed")
		return nil, f
	}

	res, err := parseModelOutput(raw)
	if err != nil {
		a.log.Warn().Err(err).Str("channel", channel).Str("raw_response", truncate(raw, 500)).Msg("Failed to parse extraction response")
		return nil, err
	}

	a.log.Debug().
		Str("channel", channel).
		Dur("duration", time.Since(start)).
		Str("amount", res.Amount.String()).
		Str("category", res.Category).
		Msg("Extraction completed")

	return res, nil
}

// DetectMIMEType sniffs the raster format of an image payload, defaulting to
// image/jpeg when the payload is not recognized as an image.
func DetectMIMEType(image []byte) string {
	mime := http.DetectContentType(image)
	if strings.HasPrefix(mime, "image/") {
		return mime
	}
	return "image/jpeg"
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// Ensure Adapter implements Extractor.
var _ Extractor = (*Adapter)(nil)
