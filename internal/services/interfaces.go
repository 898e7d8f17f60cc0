package services

import (
	"context"

	"newsroom/internal/config"
	"newsroom/internal/core"
	"newsroom/internal/llm"
)

// NewsletterGenerator produces a scored newsletter from category analyses.
type NewsletterGenerator interface {
	Generate(ctx context.Context, req NewsletterRequest) (*core.NewsletterResult, error)
}

// ClientFactory builds the drafting and scoring clients for one run.
type ClientFactory func(ctx context.Context, cfg config.LLM) (drafter, evaluator llm.ChatClient, err error)

// DefaultClientFactory selects the configured drafter and the Anthropic evaluator.
func DefaultClientFactory(ctx context.Context, cfg config.LLM) (llm.ChatClient, llm.ChatClient, error) {
	drafter, err := llm.NewDrafter(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	evaluator, err := llm.NewEvaluator(cfg)
	if err != nil {
		return nil, nil, err
	}
	return drafter, evaluator, nil
}
