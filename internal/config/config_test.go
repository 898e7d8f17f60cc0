package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsroom/internal/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "newsroom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  debug: false\n"))
	require.NoError(t, err)

	assert.Equal(t, "15s", cfg.Poller.Interval)
	assert.Equal(t, "email_database.csv", cfg.Poller.TablePath)
	assert.Equal(t, 3, cfg.Newsletter.Iterations)
	assert.Equal(t, 400, cfg.Newsletter.SectionWordsMin)
	assert.Equal(t, 500, cfg.Newsletter.SectionWordsMax)
	assert.Equal(t, core.DefaultScore, cfg.Newsletter.DefaultScore)
	assert.Equal(t, DefaultCategories(), cfg.Analysis.Categories)
	assert.Equal(t, 4000, cfg.LLM.Drafter.MaxTokens)
	assert.Equal(t, 1500, cfg.LLM.Drafter.RefineMaxTokens)
	assert.Equal(t, 100, cfg.LLM.Evaluator.RetryMaxTokens)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "imap.gmail.com:993", cfg.Mailbox.Address())
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
newsletter:
  iterations: 5
  section_words_min: 0
  section_words_max: 0
analysis:
  categories: ["tech", "finance"]
poller:
  interval: 1m
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Newsletter.Iterations)
	assert.Zero(t, cfg.Newsletter.SectionWordsMax)
	assert.Equal(t, []string{"tech", "finance"}, cfg.Analysis.Categories)
	assert.Equal(t, time.Minute, Duration(cfg.Poller.Interval, 15*time.Second))
	assert.Equal(t, path, cfg.App.ConfigFile)
}

func TestLoadEnvironmentKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ANTHROPIC_API_KEY", "ak-test")
	t.Setenv("APP_PASSWORD", "app-pass")

	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, "ak-test", cfg.LLM.Anthropic.APIKey)
	assert.Equal(t, "app-pass", cfg.Mailbox.Password)
	assert.NoError(t, cfg.ValidateNewsletter())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad duration", "poller:\n  interval: soon\n"},
		{"inverted band", "newsletter:\n  section_words_min: 600\n  section_words_max: 500\n"},
		{"unknown provider", "llm:\n  drafter:\n    provider: llama\n"},
		{"negative iterations", "newsletter:\n  iterations: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestValidateNewsletterMissingKeys(t *testing.T) {
	cfg := &Config{}
	cfg.LLM.Drafter.Provider = "openai"

	err := cfg.ValidateNewsletter()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMissingCredentials))
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")

	cfg.LLM.Drafter.Provider = "gemini"
	cfg.LLM.Anthropic.APIKey = "ak"
	err = cfg.ValidateNewsletter()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestValidateOtherCommands(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.ValidateMailbox(), core.ErrMissingCredentials)
	assert.ErrorIs(t, cfg.ValidateResearch(), core.ErrMissingCredentials)
	assert.ErrorIs(t, cfg.ValidateDatabase(), core.ErrMissingCredentials)
	assert.ErrorIs(t, cfg.ValidateSynthesizer(), core.ErrMissingCredentials)

	cfg.Mailbox.Username = "me@example.com"
	cfg.Mailbox.Password = "secret"
	cfg.Research.APIKey = "sb"
	cfg.Database.URL = "postgres://localhost/newsroom"
	cfg.LLM.OpenAI.APIKey = "sk"
	assert.NoError(t, cfg.ValidateMailbox())
	assert.NoError(t, cfg.ValidateResearch())
	assert.NoError(t, cfg.ValidateDatabase())
	assert.NoError(t, cfg.ValidateSynthesizer())
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 10*time.Second, Duration("", 10*time.Second))
	assert.Equal(t, 2*time.Minute, Duration("2m", time.Second))
	assert.Equal(t, time.Second, Duration("nope", time.Second))
}
