package extraction

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiGenerator is the Generator backed by Gemini.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// GeminiConfig configures a GeminiGenerator.
type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint; empty uses the default.
	BaseURL string
}

// NewGeminiGenerator creates a GenAI client shared by every request.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("NewGeminiGenerator: model name is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiGenerator: create genai client: %w", err)
	}

	return &GeminiGenerator{client: client, model: cfg.Model}, nil
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	parts := []*genai.Part{{Text: req.Prompt}}
	if len(req.Image) > 0 {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: req.MIMEType,
				Data:     req.Image,
			},
		})
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: parts,
		},
	}

	var config *genai.GenerateContentConfig
	if len(req.Schema) > 0 {
		config = &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   geminiSchema(req.Schema),
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("GeminiGenerator.Generate: generate content: %w", err)
	}

	return resp.Text(), nil
}

func geminiSchema(props []Property) *genai.Schema {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(props)),
	}
	for _, p := range props {
		t := genai.TypeString
		if p.Kind == KindNumber {
			t = genai.TypeNumber
		}
		schema.Properties[p.Name] = &genai.Schema{Type: t}
	}
	return schema
}

var _ Generator = (*GeminiGenerator)(nil)
