// Package summarize folds new emails from the email table into the
// per-category analysis documents.
package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"newsroom/internal/core"
	"newsroom/internal/llm"
	"newsroom/internal/logger"
	"newsroom/internal/metrics"
	"newsroom/internal/store"
)

const (
	DefaultRateLimitWait = 20 * time.Second
	DefaultWatchInterval = 10 * time.Second
	DefaultTemperature   = 0.7
)

// Options configures a Synthesizer.
type Options struct {
	Dir           string // where <category>.json documents live
	Model         string
	Temperature   float64
	MaxTokens     int
	RateLimitWait time.Duration
	Interval      time.Duration // watch poll interval

	Sleep core.SleepFunc
	Now   func() time.Time
}

// Synthesizer rewrites a category's analysis each time one of its emails is new.
type Synthesizer struct {
	client llm.ChatClient
	table  *store.Table
	state  *ProcessedState
	opts   Options

	lastHash string
}

// Report counts what one pass over the table did.
type Report struct {
	Processed int
	Empty     int // no body, marked processed without a model call
	Invalid   int // no category or Message-ID
	Failed    int
}

// New creates a synthesizer.
func New(client llm.ChatClient, table *store.Table, state *ProcessedState, opts Options) *Synthesizer {
	if opts.RateLimitWait <= 0 {
		opts.RateLimitWait = DefaultRateLimitWait
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultWatchInterval
	}
	if opts.Sleep == nil {
		opts.Sleep = core.Sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if state == nil {
		state = &ProcessedState{ids: make(map[string]bool)}
	}
	return &Synthesizer{client: client, table: table, state: state, opts: opts}
}

// RunOnce processes every table record whose Message-ID has not been seen.
// A record that fails is logged and left unprocessed.
func (s *Synthesizer) RunOnce(ctx context.Context) (Report, error) {
	var report Report

	records, err := s.table.Load()
	if err != nil {
		return report, err
	}

	runID := uuid.NewString()
	logger.Debug("Synthesizer pass started", "run_id", runID, "records", len(records))

	dirty := false
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		id := NormalizeMessageID(rec.MessageID)
		if strings.TrimSpace(rec.Category) == "" || id == "" {
			report.Invalid++
			continue
		}
		if s.state.Has(id) {
			continue
		}

		if strings.TrimSpace(rec.Body) == "" {
			logger.Debug("Skipping message with empty body", "message_id", id)
			s.state.Add(id)
			report.Empty++
			dirty = true
			continue
		}

		if err := s.UpdateCategory(ctx, rec.Category, rec.Body, id); err != nil {
			logger.Error("Failed to synthesize message", err, "message_id", id, "category", rec.Category)
			report.Failed++
			continue
		}
		s.state.Add(id)
		report.Processed++
		dirty = true

		if err := s.state.Save(); err != nil {
			return report, err
		}
		dirty = false
	}

	if dirty {
		if err := s.state.Save(); err != nil {
			return report, err
		}
	}

	logger.Info("Synthesizer pass finished",
		"run_id", runID,
		"processed", report.Processed,
		"empty", report.Empty,
		"invalid", report.Invalid,
		"failed", report.Failed)
	return report, nil
}

// RunIfChanged runs a pass only when the table's md5 differs from the last
// successful pass. It reports whether a pass ran.
func (s *Synthesizer) RunIfChanged(ctx context.Context) (bool, Report, error) {
	hash, err := s.table.Hash()
	if err != nil {
		return false, Report{}, err
	}
	if hash == "" {
		logger.Debug("Email table not found, waiting", "path", s.table.Path())
		return false, Report{}, nil
	}
	if hash == s.lastHash {
		logger.Debug("Email table unchanged, skipping")
		return false, Report{}, nil
	}

	report, err := s.RunOnce(ctx)
	if err != nil {
		return true, report, err
	}
	s.lastHash = hash
	return true, report, nil
}

// Watch polls the table until ctx is cancelled. Pass errors are logged.
func (s *Synthesizer) Watch(ctx context.Context) error {
	logger.Info("Watching email table", "path", s.table.Path(), "interval", s.opts.Interval.String())
	for {
		if _, _, err := s.RunIfChanged(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Synthesizer pass failed", err)
		}
		if err := s.opts.Sleep(ctx, s.opts.Interval); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// UpdateCategory appends body to the category's document, regenerates the
// analysis and keywords, and rewrites the document.
func (s *Synthesizer) UpdateCategory(ctx context.Context, category, body, messageID string) error {
	path := filepath.Join(s.opts.Dir, core.CategoryFileName(category))
	doc := readExisting(path)

	now := s.opts.Now().UTC().Format(time.RFC3339)
	doc.Category = category
	doc.Entries = append(doc.Entries, core.AnalysisEntry{Content: body, Timestamp: now})

	analysis, keywords, err := s.generate(ctx, category, doc.Entries)
	if err != nil {
		return err
	}
	doc.Analysis = analysis
	doc.Keywords = keywords
	if messageID != "" {
		doc.SourceIDs = append(doc.SourceIDs, messageID)
	}
	doc.LastUpdated = now

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := store.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write analysis for %s: %w", category, err)
	}

	metrics.AnalysesWritten.WithLabelValues(category).Inc()
	logger.Info("Category analysis updated",
		"category", category,
		"entries", len(doc.Entries),
		"keywords", len(keywords))
	return nil
}

// generate waits once and retries when the provider rate limits.
func (s *Synthesizer) generate(ctx context.Context, category string, entries []core.AnalysisEntry) (string, []string, error) {
	analysis, keywords, err := s.generateOnce(ctx, category, entries)
	if !errors.Is(err, llm.ErrRateLimited) {
		return analysis, keywords, err
	}

	logger.Warn("Rate limited, waiting before retry",
		"category", category,
		"wait", s.opts.RateLimitWait.String())
	if err := s.opts.Sleep(ctx, s.opts.RateLimitWait); err != nil {
		return "", nil, err
	}
	return s.generateOnce(ctx, category, entries)
}

func (s *Synthesizer) generateOnce(ctx context.Context, category string, entries []core.AnalysisEntry) (string, []string, error) {
	contents := make([]string, len(entries))
	for i, e := range entries {
		contents[i] = e.Content
	}

	resp, err := s.client.Chat(ctx, llm.ChatRequest{
		Model:       s.opts.Model,
		System:      AnalysisSystemPrompt,
		Messages:    llm.User(BuildAnalysisPrompt(category, contents)),
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		return "", nil, fmt.Errorf("analysis call failed: %w", err)
	}
	analysis := strings.TrimSpace(resp.Text)
	if analysis == "" {
		return "", nil, llm.ErrEmptyResponse
	}

	resp, err = s.client.Chat(ctx, llm.ChatRequest{
		Model:       s.opts.Model,
		System:      KeywordSystemPrompt,
		Messages:    llm.User(BuildKeywordPrompt(category, analysis)),
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		return "", nil, fmt.Errorf("keyword call failed: %w", err)
	}

	return analysis, ParseKeywords(resp.Text), nil
}

// readExisting loads a category document. Unreadable documents start over.
func readExisting(path string) core.TopicAnalysis {
	var doc core.TopicAnalysis
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Error("Failed to read existing analysis", err, "path", path)
		}
		return doc
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.Error("Failed to parse existing analysis, starting over", err, "path", path)
		return core.TopicAnalysis{}
	}
	return doc
}

// NormalizeMessageID strips line breaks, surrounding whitespace and one
// pair of surrounding quotes.
func NormalizeMessageID(id string) string {
	id = strings.NewReplacer("\r", "", "\n", "").Replace(id)
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, `"`)
	id = strings.TrimPrefix(id, `'`)
	id = strings.TrimSuffix(id, `"`)
	id = strings.TrimSuffix(id, `'`)
	return id
}
