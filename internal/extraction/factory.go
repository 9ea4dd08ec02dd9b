package extraction

import (
	"context"
	"fmt"
	"strings"
)

// Supported providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// ProviderConfig selects and configures a Generator.
type ProviderConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

// NewGenerator creates the Generator named by cfg.Provider.
func NewGenerator(ctx context.Context, cfg ProviderConfig) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderGemini, "":
		return NewGeminiGenerator(ctx, GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	case ProviderOpenAI:
		return NewOpenAIGenerator(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	default:
		return nil, fmt.Errorf("NewGenerator: unsupported provider %q", cfg.Provider)
	}
}
