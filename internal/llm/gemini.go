package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultGeminiModel is the default Gemini model for drafting.
const DefaultGeminiModel = "gemini-flash-lite-latest"

// GeminiClient drafts with Gemini through the genai SDK.
type GeminiClient struct {
	modelName string
	gClient   *genai.Client
}

// NewGeminiClient creates a Gemini chat client.
func NewGeminiClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY environment variable or llm.gemini.api_key in config file")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{modelName: modelName, gClient: gClient}, nil
}

// Provider implements ChatClient.
func (c *GeminiClient) Provider() string { return "gemini" }

// Chat implements ChatClient.
func (c *GeminiClient) Chat(ctx context.Context, req ChatRequest) (resp *ChatResponse, err error) {
	start := time.Now()
	defer func() { observe(c.Provider(), start, err) }()

	modelName := c.modelName
	if req.Model != "" {
		modelName = req.Model
	}

	contents := geminiContents(req.Messages)
	if len(contents) == 0 {
		return nil, fmt.Errorf("prompt cannot be empty")
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	out, err := c.gClient.Models.GenerateContent(ctx, modelName, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate text: %w", err)
	}

	text := out.Text()
	if text == "" {
		return nil, ErrEmptyResponse
	}

	result := &ChatResponse{Text: text}
	if len(out.Candidates) > 0 {
		result.FinishReason = geminiFinishReason(out.Candidates[0].FinishReason)
	}
	if out.UsageMetadata != nil {
		result.InputTokens = int(out.UsageMetadata.PromptTokenCount)
		result.OutputTokens = int(out.UsageMetadata.CandidatesTokenCount)
	}
	return result, nil
}

func geminiContents(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Parts: []*genai.Part{{Text: m.Content}},
			Role:  role,
		})
	}
	return contents
}

func geminiFinishReason(r genai.FinishReason) string {
	if r == genai.FinishReasonMaxTokens {
		return FinishLength
	}
	return strings.ToLower(string(r))
}
