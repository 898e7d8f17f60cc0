// Package llm holds the provider-neutral chat interface and its OpenAI,
// Anthropic and Gemini implementations.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newsroom/internal/metrics"
)

// FinishLength is the normalized finish reason for output cut off by the
// token limit.
const FinishLength = "length"

var (
	// ErrRateLimited is matched by errors.Is for HTTP 429 responses.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmptyResponse means the provider answered without any text.
	ErrEmptyResponse = errors.New("empty response from model")
)

// Message is one chat turn. Role is "user" or "assistant".
type Message struct {
	Role    string
	Content string
}

// ChatRequest is a single completion call.
type ChatRequest struct {
	Model       string // optional, defaults to the client's model
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// ChatResponse is the provider-neutral result of a completion.
type ChatResponse struct {
	Text         string
	FinishReason string // "length" when truncated, otherwise provider specific
	InputTokens  int
	OutputTokens int
}

// Truncated reports whether the output hit the token limit.
func (r *ChatResponse) Truncated() bool {
	return r.FinishReason == FinishLength
}

// ChatClient is implemented by every provider.
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Provider() string
}

// User builds a single user turn.
func User(content string) []Message {
	return []Message{{Role: "user", Content: content}}
}

// APIError is a non-2xx provider response.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Body)
}

// Unwrap lets errors.Is(err, ErrRateLimited) match 429 responses.
func (e *APIError) Unwrap() error {
	if e.StatusCode == 429 {
		return ErrRateLimited
	}
	return nil
}

// observe records call latency by provider and outcome.
func observe(provider string, start time.Time, err error) {
	status := "ok"
	switch {
	case errors.Is(err, ErrRateLimited):
		status = "rate_limited"
	case err != nil:
		status = "error"
	}
	metrics.LLMCallDuration.WithLabelValues(provider, status).Observe(time.Since(start).Seconds())
}
