package extraction

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o"

// OpenAIGenerator is the Generator backed by the OpenAI chat completions API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// OpenAIConfig configures an OpenAIGenerator.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewOpenAIGenerator creates an OpenAI client shared by every request.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("NewOpenAIGenerator: OpenAI API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(req.Image) > 0 {
		dataURL := "data:" + req.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(req.Image)
		msg.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL,
					Detail: openai.ImageURLDetailAuto,
				},
			},
		}
	} else {
		msg.Content = req.Prompt
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You extract financial transaction details. Respond with ONLY a valid JSON object.",
			},
			msg,
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("OpenAIGenerator.Generate: chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAIGenerator.Generate: no completion choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

var _ Generator = (*OpenAIGenerator)(nil)
