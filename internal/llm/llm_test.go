package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsroom/internal/config"
)

func TestOpenAIChat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{
			"choices":[{"message":{"role":"assistant","content":"Hello digest"},"finish_reason":"length"}],
			"usage":{"prompt_tokens":12,"completion_tokens":4}
		}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(Options{APIKey: "sk-test", BaseURL: srv.URL, MaxRetries: 0})
	require.NoError(t, err)

	resp, err := c.Chat(context.Background(), ChatRequest{
		System:      "be brief",
		Messages:    User("write"),
		MaxTokens:   50,
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello digest", resp.Text)
	assert.True(t, resp.Truncated())
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, 4, resp.OutputTokens)

	assert.Equal(t, DefaultOpenAIModel, got["model"])
	assert.Equal(t, 0.7, got["temperature"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "write", msgs[1].(map[string]any)["content"])
}

func TestOpenAIRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(Options{APIKey: "k", BaseURL: srv.URL, MaxRetries: 0})
	require.NoError(t, err)

	_, err = c.Chat(context.Background(), ChatRequest{Messages: User("x")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(Options{APIKey: "k", BaseURL: srv.URL, MaxRetries: 0})
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), ChatRequest{Messages: User("x")})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAnthropicChat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ak", r.Header.Get("x-api-key"))
		assert.Equal(t, DefaultAnthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-sonnet-latest",
			"content":[{"type":"text","text":"Score: 8\n"},{"type":"text","text":"Suggestions:\n- tighten"}],
			"stop_reason":"max_tokens",
			"usage":{"input_tokens":100,"output_tokens":20}
		}`))
	}))
	defer srv.Close()

	c, err := NewAnthropicClient(Options{APIKey: "ak", BaseURL: srv.URL + "/", MaxRetries: 0})
	require.NoError(t, err)

	resp, err := c.Chat(context.Background(), ChatRequest{
		System:    "you are a judge",
		Messages:  []Message{{Role: "user", Content: "rate this"}, {Role: "assistant", Content: "7"}, {Role: "user", Content: "number only"}},
		MaxTokens: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, "Score: 8\nSuggestions:\n- tighten", resp.Text)
	assert.Equal(t, FinishLength, resp.FinishReason)
	assert.Equal(t, 100, resp.InputTokens)
	assert.Equal(t, 20, resp.OutputTokens)

	assert.Equal(t, DefaultAnthropicModel, got["model"])
	assert.Equal(t, 1000.0, got["max_tokens"])
	assert.Equal(t, 0.0, got["temperature"])

	system := got["system"].([]any)
	require.Len(t, system, 1)
	assert.Equal(t, "you are a judge", system[0].(map[string]any)["text"])

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", msgs[1].(map[string]any)["role"])
	content := msgs[2].(map[string]any)["content"].([]any)
	assert.Equal(t, "number only", content[0].(map[string]any)["text"])
}

func anthropicErrorServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnthropicServerError(t *testing.T) {
	srv := anthropicErrorServer(t, http.StatusBadRequest)

	c, err := NewAnthropicClient(Options{APIKey: "ak", BaseURL: srv.URL + "/", MaxRetries: 0})
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), ChatRequest{Messages: User("x")})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRateLimited))
	assert.Contains(t, err.Error(), "anthropic API error (400)")
}

func TestAnthropicRateLimit(t *testing.T) {
	srv := anthropicErrorServer(t, http.StatusTooManyRequests)

	c, err := NewAnthropicClient(Options{APIKey: "ak", BaseURL: srv.URL + "/", MaxRetries: 0})
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), ChatRequest{Messages: User("x")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "anthropic", apiErr.Provider)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestConstructorsRequireKeys(t *testing.T) {
	_, err := NewOpenAIClient(Options{})
	assert.Error(t, err)
	_, err = NewAnthropicClient(Options{})
	assert.Error(t, err)
	_, err = NewGeminiClient(context.Background(), "", "")
	assert.Error(t, err)
}

func TestNewDrafterProviders(t *testing.T) {
	cfg := config.LLM{OpenAI: config.OpenAIConfig{APIKey: "k"}}

	d, err := NewDrafter(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai", d.Provider())

	cfg.Drafter.Provider = "mystery"
	_, err = NewDrafter(context.Background(), cfg)
	assert.Error(t, err)
}

func TestGeminiFinishReason(t *testing.T) {
	assert.Equal(t, FinishLength, geminiFinishReason("MAX_TOKENS"))
	assert.Equal(t, "stop", geminiFinishReason("STOP"))
}

func TestGeminiContentsRoles(t *testing.T) {
	contents := geminiContents([]Message{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}})
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
}
