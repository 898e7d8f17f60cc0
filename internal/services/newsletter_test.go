package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsroom/internal/config"
	"newsroom/internal/core"
	"newsroom/internal/llm"
	"newsroom/internal/publish"
)

type stubClient struct {
	name    string
	replies []string
	calls   int
}

func (c *stubClient) Provider() string { return c.name }

func (c *stubClient) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	reply := c.replies[len(c.replies)-1]
	if c.calls < len(c.replies) {
		reply = c.replies[c.calls]
	}
	c.calls++
	return &llm.ChatResponse{Text: reply, FinishReason: "stop"}, nil
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, publish.Document) (string, error) {
	return "", errors.New("bucket missing")
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Analysis.Directory = filepath.Join(dir, "reports")
	cfg.Analysis.Categories = config.DefaultCategories()
	cfg.Newsletter.Iterations = 2
	cfg.Newsletter.SectionWordsMin = 400
	cfg.Newsletter.SectionWordsMax = 500
	cfg.Newsletter.OutputPath = filepath.Join(dir, "newsletter.txt")
	cfg.Newsletter.DefaultScore = core.DefaultScore
	cfg.LLM.Drafter.Provider = "openai"
	cfg.LLM.Drafter.Temperature = 0.7
	cfg.LLM.Drafter.MaxTokens = 4000
	cfg.LLM.Drafter.RefineMaxTokens = 1500
	cfg.LLM.Evaluator.MaxTokens = 1000
	cfg.LLM.Evaluator.RetryMaxTokens = 100
	return cfg
}

func writeAnalysis(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func stubFactory(drafter, evaluator *stubClient) ClientFactory {
	return func(context.Context, config.LLM) (llm.ChatClient, llm.ChatClient, error) {
		return drafter, evaluator, nil
	}
}

func TestGenerateMissingCredentialsWritesNothing(t *testing.T) {
	cfg := testConfig(t)
	writeAnalysis(t, cfg.Analysis.Directory, "tech.json", `{"analysis":"Chips."}`)

	called := false
	svc := NewNewsletterService(cfg, WithClientFactory(func(context.Context, config.LLM) (llm.ChatClient, llm.ChatClient, error) {
		called = true
		return nil, nil, nil
	}))

	_, err := svc.Generate(context.Background(), NewsletterRequest{OpenAIKey: "sk"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMissingCredentials)
	assert.False(t, called)

	_, statErr := os.Stat(cfg.Newsletter.OutputPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerateNoAnalyses(t *testing.T) {
	cfg := testConfig(t)
	writeAnalysis(t, cfg.Analysis.Directory, "sports.json", `{"analysis":"Finals."}`)

	svc := NewNewsletterService(cfg, WithClientFactory(stubFactory(&stubClient{}, &stubClient{})))
	_, err := svc.Generate(context.Background(), NewsletterRequest{
		Categories:   []string{"tech"},
		OpenAIKey:    "sk",
		AnthropicKey: "ak",
	})
	assert.ErrorIs(t, err, core.ErrNoAnalyses)
}

func TestGenerateWritesBestDraft(t *testing.T) {
	cfg := testConfig(t)
	writeAnalysis(t, cfg.Analysis.Directory, "tech.json", `{"analysis":"Chips."}`)
	writeAnalysis(t, cfg.Analysis.Directory, "finance.json", `{"analysis":"Rates."}`)

	drafter := &stubClient{name: "openai", replies: []string{"draft one", "draft two", "draft three"}}
	evaluator := &stubClient{name: "anthropic", replies: []string{"Score: 6", "Score: 9", "Score: 7"}}

	svc := NewNewsletterService(cfg,
		WithClientFactory(stubFactory(drafter, evaluator)),
		WithPublishers(failingPublisher{}))

	result, err := svc.Generate(context.Background(), NewsletterRequest{OpenAIKey: "sk", AnthropicKey: "ak"})
	require.NoError(t, err)

	assert.Equal(t, "draft two", result.Newsletter)
	assert.Equal(t, 9.0, result.Score)
	assert.Equal(t, []string{"tech", "finance"}, result.Categories)
	assert.Equal(t, 2, result.Iterations)
	assert.NotEmpty(t, result.RunID)

	data, err := os.ReadFile(cfg.Newsletter.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "draft two", string(data))
	assert.False(t, strings.Contains(string(data), "Score"))
}

func TestGenerateRequestOverrides(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.OpenAI.APIKey = "sk"
	cfg.LLM.Anthropic.APIKey = "ak"
	other := filepath.Join(t.TempDir(), "alt")
	writeAnalysis(t, other, "Sports.json", `{"analysis":"Finals."}`)
	out := filepath.Join(t.TempDir(), "custom.txt")
	zero := 0

	evaluator := &stubClient{replies: []string{"Score: 4"}}
	svc := NewNewsletterService(cfg, WithClientFactory(stubFactory(&stubClient{replies: []string{"only draft"}}, evaluator)))

	result, err := svc.Generate(context.Background(), NewsletterRequest{
		Dir:        other,
		Categories: []string{"Sports"},
		Iterations: &zero,
		OutputPath: out,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Sports"}, result.Categories)
	assert.Equal(t, 0, result.Iterations)
	assert.Equal(t, 1, evaluator.calls)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "only draft", string(data))
}
