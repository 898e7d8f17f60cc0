package llm

import (
	"context"
	"fmt"

	"newsroom/internal/config"
)

// NewDrafter builds the drafting client selected by llm.drafter.provider.
func NewDrafter(ctx context.Context, cfg config.LLM) (ChatClient, error) {
	switch cfg.Drafter.Provider {
	case "gemini":
		return NewGeminiClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	case "openai", "":
		return NewOpenAIClient(Options{
			APIKey:     cfg.OpenAI.APIKey,
			Model:      cfg.OpenAI.Model,
			BaseURL:    cfg.OpenAI.BaseURL,
			Timeout:    config.Duration(cfg.OpenAI.Timeout, 0),
			MaxRetries: cfg.MaxRetries,
		})
	default:
		return nil, fmt.Errorf("unknown drafter provider: %s", cfg.Drafter.Provider)
	}
}

// NewEvaluator builds the Anthropic client used for scoring.
func NewEvaluator(cfg config.LLM) (ChatClient, error) {
	return NewAnthropicClient(Options{
		APIKey:     cfg.Anthropic.APIKey,
		Model:      cfg.Anthropic.Model,
		BaseURL:    cfg.Anthropic.BaseURL,
		Version:    cfg.Anthropic.Version,
		Timeout:    config.Duration(cfg.Anthropic.Timeout, 0),
		MaxRetries: cfg.MaxRetries,
	})
}

// NewSynthesizer builds the OpenAI client the topic synthesizer uses.
func NewSynthesizer(cfg config.LLM) (ChatClient, error) {
	return NewOpenAIClient(Options{
		APIKey:     cfg.OpenAI.APIKey,
		Model:      cfg.OpenAI.Model,
		BaseURL:    cfg.OpenAI.BaseURL,
		Timeout:    config.Duration(cfg.OpenAI.Timeout, 0),
		MaxRetries: cfg.MaxRetries,
	})
}
