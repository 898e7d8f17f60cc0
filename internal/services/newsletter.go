package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"newsroom/internal/analysis"
	"newsroom/internal/config"
	"newsroom/internal/core"
	"newsroom/internal/logger"
	"newsroom/internal/metrics"
	"newsroom/internal/narrative"
	"newsroom/internal/publish"
	"newsroom/internal/quality"
)

// NewsletterRequest overrides the configured defaults for one run. Zero
// values fall back to the configuration.
type NewsletterRequest struct {
	Dir          string
	Categories   []string
	OpenAIKey    string
	AnthropicKey string
	Iterations   *int
	OutputPath   string
}

// NewsletterService wires loader, loop and publishers together.
type NewsletterService struct {
	cfg     *config.Config
	clients ClientFactory
	extra   []publish.Publisher
	now     func() time.Time
}

// NewsletterOption customizes a NewsletterService.
type NewsletterOption func(*NewsletterService)

// WithClientFactory replaces how model clients are built.
func WithClientFactory(f ClientFactory) NewsletterOption {
	return func(s *NewsletterService) { s.clients = f }
}

// WithPublishers adds destinations after the output file. Their failures
// are logged, not returned.
func WithPublishers(p ...publish.Publisher) NewsletterOption {
	return func(s *NewsletterService) { s.extra = append(s.extra, p...) }
}

// NewNewsletterService creates the service.
func NewNewsletterService(cfg *config.Config, opts ...NewsletterOption) *NewsletterService {
	s := &NewsletterService{
		cfg:     cfg,
		clients: DefaultClientFactory,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate runs one newsletter. Credentials are checked before anything is
// read or written.
func (s *NewsletterService) Generate(ctx context.Context, req NewsletterRequest) (*core.NewsletterResult, error) {
	runCfg := *s.cfg
	if req.OpenAIKey != "" {
		runCfg.LLM.OpenAI.APIKey = req.OpenAIKey
	}
	if req.AnthropicKey != "" {
		runCfg.LLM.Anthropic.APIKey = req.AnthropicKey
	}
	if err := runCfg.ValidateNewsletter(); err != nil {
		return nil, err
	}

	dir := req.Dir
	if dir == "" {
		dir = runCfg.Analysis.Directory
	}
	categories := req.Categories
	if len(categories) == 0 {
		categories = runCfg.Analysis.Categories
	}
	if len(categories) == 0 {
		categories = config.DefaultCategories()
	}
	iterations := runCfg.Newsletter.Iterations
	if req.Iterations != nil {
		iterations = *req.Iterations
	}
	outputPath := req.OutputPath
	if outputPath == "" {
		outputPath = runCfg.Newsletter.OutputPath
	}

	runID := uuid.NewString()
	logger.Info("Starting newsletter run", "run_id", runID, "dir", dir, "categories", categories, "iterations", iterations)

	analyses, err := analysis.Load(dir, categories)
	if err != nil {
		return nil, err
	}
	if len(analyses) == 0 {
		return nil, fmt.Errorf("%w in %s", core.ErrNoAnalyses, dir)
	}
	sections := narrative.SectionsFrom(analyses, categories)

	drafter, evaluator, err := s.clients(ctx, runCfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create model clients: %w", err)
	}

	nl := runCfg.Newsletter
	generator := narrative.NewGenerator(drafter, narrative.Options{
		Temperature:     runCfg.LLM.Drafter.Temperature,
		MaxTokens:       runCfg.LLM.Drafter.MaxTokens,
		RefineMaxTokens: runCfg.LLM.Drafter.RefineMaxTokens,
		SectionWordsMin: nl.SectionWordsMin,
		SectionWordsMax: nl.SectionWordsMax,
	})
	scorer := quality.NewEvaluator(evaluator, quality.Options{
		Temperature:     runCfg.LLM.Evaluator.Temperature,
		MaxTokens:       runCfg.LLM.Evaluator.MaxTokens,
		RetryMaxTokens:  runCfg.LLM.Evaluator.RetryMaxTokens,
		DefaultScore:    nl.DefaultScore,
		SectionWordsMin: nl.SectionWordsMin,
		SectionWordsMax: nl.SectionWordsMax,
	})

	loop := narrative.NewLoop(generator, scorer, narrative.LoopOptions{
		Iterations:      iterations,
		SectionWordsMin: nl.SectionWordsMin,
		SectionWordsMax: nl.SectionWordsMax,
	})
	result, err := loop.Run(ctx, sections)
	if err != nil {
		return nil, err
	}

	doc := publish.Document{RunID: runID, Body: result.Best.Text, CreatedAt: s.now()}
	if _, err := (publish.FilePublisher{Path: outputPath}).Publish(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to write newsletter: %w", err)
	}
	if len(s.extra) > 0 {
		if loc, err := publish.Multi(s.extra).Publish(ctx, doc); err != nil {
			logger.Warn("Failed to publish newsletter copy", "run_id", runID, "error", err.Error())
		} else {
			logger.Info("Newsletter copy published", "run_id", runID, "location", loc)
		}
	}

	metrics.NewsletterScore.Observe(result.BestScore)
	logger.Info("Newsletter generated",
		"run_id", runID,
		"output", outputPath,
		"score", result.BestScore,
		"rounds", result.Completed(),
		"stopped_early", result.Stopped != nil && !errors.Is(result.Stopped, context.Canceled))

	return &core.NewsletterResult{
		RunID:      runID,
		Newsletter: result.Best.Text,
		Score:      result.BestScore,
		Categories: topics(sections),
		Iterations: result.Completed(),
	}, nil
}

func topics(sections []narrative.Section) []string {
	out := make([]string, len(sections))
	for i, s := range sections {
		out[i] = s.Topic
	}
	return out
}
