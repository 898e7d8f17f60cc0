package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultAnthropicModel   = "claude-3-5-sonnet-latest"
	DefaultAnthropicBaseURL = "https://api.anthropic.com/"
	DefaultAnthropicVersion = "2023-06-01"
)

// AnthropicClient calls the messages endpoint through the Anthropic SDK.
type AnthropicClient struct {
	client anthropic.Client
	model  string
}

// NewAnthropicClient creates a client for the Anthropic Messages API.
// MaxRetries and Timeout are handed to the SDK, which retries 429 and 5xx
// responses itself.
func NewAnthropicClient(opts Options) (*AnthropicClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if opts.Model == "" {
		opts.Model = DefaultAnthropicModel
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultAnthropicBaseURL
	}
	if opts.Version == "" {
		opts.Version = DefaultAnthropicVersion
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(opts.BaseURL),
		option.WithHeader("anthropic-version", opts.Version),
	}
	if opts.MaxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(opts.MaxRetries))
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}

	return &AnthropicClient{
		client: anthropic.NewClient(reqOpts...),
		model:  opts.Model,
	}, nil
}

// Provider implements ChatClient.
func (c *AnthropicClient) Provider() string { return "anthropic" }

// Chat implements ChatClient. A max_tokens stop is reported as FinishLength.
func (c *AnthropicClient) Chat(ctx context.Context, req ChatRequest) (resp *ChatResponse, err error) {
	start := time.Now()
	defer func() { observe(c.Provider(), start, err) }()

	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, &APIError{Provider: "anthropic", StatusCode: apiErr.StatusCode, Body: apiErr.RawJSON()}
		}
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, ErrEmptyResponse
	}

	finish := string(message.StopReason)
	if message.StopReason == anthropic.StopReasonMaxTokens {
		finish = FinishLength
	}

	return &ChatResponse{
		Text:         text.String(),
		FinishReason: finish,
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}, nil
}
