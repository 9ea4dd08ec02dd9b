package extraction

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiGenerator_Generate(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"amount\": 7, \"description\": \"Bus\", \"category\": \"Transport\"}"}]}}]}`)
	}))
	defer srv.Close()

	gen, err := NewGeminiGenerator(context.Background(), GeminiConfig{APIKey: "test-key", Model: "gemini-2.5-flash", BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := gen.Generate(context.Background(), Request{Prompt: "bus ticket 7", Schema: speechSchema})
	require.NoError(t, err)
	assert.Contains(t, text, `"Bus"`)
	assert.True(t, strings.HasSuffix(gotPath, "gemini-2.5-flash:generateContent"), gotPath)
	assert.Contains(t, gotBody, "generationConfig")
}

func TestGeminiGenerator_RequiresModel(t *testing.T) {
	_, err := NewGeminiGenerator(context.Background(), GeminiConfig{APIKey: "k"})
	assert.Error(t, err)
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	var gotReq map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotReq)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"amount\": 9, \"description\": \"Pharmacy\", \"category\": \"Health\"}"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	gen, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "test-key", Model: "gpt-4o-mini", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	text, err := gen.Generate(context.Background(), Request{Prompt: "receipt", Image: pngHeader, MIMEType: "image/png"})
	require.NoError(t, err)
	assert.Contains(t, text, "Pharmacy")

	assert.Equal(t, "gpt-4o-mini", gotReq["model"])
	msgs, ok := gotReq["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, msgs, 2)
	user := msgs[1].(map[string]interface{})
	parts, ok := user["content"].([]interface{})
	require.True(t, ok, "image requests use multi-part content")
	require.Len(t, parts, 2)
	image := parts[1].(map[string]interface{})["image_url"].(map[string]interface{})
	assert.True(t, strings.HasPrefix(image["url"].(string), "data:image/png;base64,"))
}

func TestOpenAIGenerator_RequiresKey(t *testing.T) {
	_, err := NewOpenAIGenerator(OpenAIConfig{})
	assert.Error(t, err)
}

func TestNewGenerator_UnknownProvider(t *testing.T) {
	_, err := NewGenerator(context.Background(), ProviderConfig{Provider: "llama"})
	assert.Error(t, err)
}
