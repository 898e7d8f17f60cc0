// Package quality scores newsletter drafts with a model-graded rubric.
package quality

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"newsroom/internal/core"
	"newsroom/internal/llm"
	"newsroom/internal/logger"
)

const (
	MinScore = 1.0
	MaxScore = 10.0

	retryPrompt = "Based on the newsletter you just evaluated, give ONLY a number from 1-10. Just the number, nothing else:"
)

var (
	scorePattern     = regexp.MustCompile(`(?i)Score:\s*(\d+(?:\.\d+)?)`)
	bareScorePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
)

// Options holds the scoring call settings.
type Options struct {
	Temperature     float64
	MaxTokens       int
	RetryMaxTokens  int
	DefaultScore    float64
	SectionWordsMin int // 0 with SectionWordsMax 0 drops the length criterion
	SectionWordsMax int
}

// DefaultOptions matches the stock rubric: deterministic, 1000 tokens, 400-500 words.
func DefaultOptions() Options {
	return Options{
		Temperature:     0,
		MaxTokens:       1000,
		RetryMaxTokens:  100,
		DefaultScore:    core.DefaultScore,
		SectionWordsMin: 400,
		SectionWordsMax: 500,
	}
}

// Evaluator grades drafts.
type Evaluator struct {
	client llm.ChatClient
	opts   Options
}

// NewEvaluator creates an evaluator backed by client.
func NewEvaluator(client llm.ChatClient, opts Options) *Evaluator {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}
	if opts.RetryMaxTokens <= 0 {
		opts.RetryMaxTokens = 100
	}
	if opts.DefaultScore == 0 {
		opts.DefaultScore = core.DefaultScore
	}
	return &Evaluator{client: client, opts: opts}
}

// Evaluate scores content. Only a failed grading call is an error; when no
// score can be read, one follow-up asks for a bare number and after that
// the default score is used.
func (e *Evaluator) Evaluate(ctx context.Context, content string) (core.Evaluation, error) {
	prompt := BuildPrompt(content, e.opts.SectionWordsMin, e.opts.SectionWordsMax)

	logger.Info("Evaluating draft", "provider", e.client.Provider(), "chars", len(content))
	resp, err := e.client.Chat(ctx, llm.ChatRequest{
		Messages:    llm.User(prompt),
		MaxTokens:   e.opts.MaxTokens,
		Temperature: e.opts.Temperature,
	})
	if err != nil {
		return core.Evaluation{}, fmt.Errorf("evaluation failed: %w", err)
	}

	eval := core.Evaluation{Suggestions: resp.Text}

	score, ok := ParseScore(resp.Text)
	if !ok {
		logger.Warn("No score found in evaluation, retrying with direct prompt")
		score, ok = e.retryScore(ctx, prompt, resp.Text)
	}
	if !ok {
		score = e.opts.DefaultScore
		eval.Defaulted = true
		logger.Warn("Using default score", "score", score)
	}

	eval.Score = clamp(score)
	logger.Info("Evaluation processed", "score", eval.Score, "defaulted", eval.Defaulted)
	return eval, nil
}

// retryScore asks once for a bare number, replaying the first exchange so
// the model knows which newsletter it is scoring.
func (e *Evaluator) retryScore(ctx context.Context, prompt, previous string) (float64, bool) {
	resp, err := e.client.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "user", Content: prompt},
			{Role: "assistant", Content: previous},
			{Role: "user", Content: retryPrompt},
		},
		MaxTokens:   e.opts.RetryMaxTokens,
		Temperature: e.opts.Temperature,
	})
	if err != nil {
		logger.Warn("Score retry failed", "error", err.Error())
		return 0, false
	}
	return ParseBareScore(resp.Text)
}

// ParseScore reads "Score: N" (case-insensitive) from an evaluation.
func ParseScore(text string) (float64, bool) {
	return parseWith(scorePattern, text)
}

// ParseBareScore reads the first number in text.
func ParseBareScore(text string) (float64, bool) {
	return parseWith(bareScorePattern, text)
}

func parseWith(re *regexp.Regexp, text string) (float64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func clamp(score float64) float64 {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// BuildPrompt renders the grading rubric around content.
func BuildPrompt(content string, minWords, maxWords int) string {
	var b strings.Builder
	b.WriteString("You are an AI assistant evaluating a newsletter draft. ")
	b.WriteString("Here is the newsletter content:\n\n")
	b.WriteString(content)
	b.WriteString("\n\n")
	b.WriteString("You MUST provide:\n")
	b.WriteString("1. A numerical score from 1-10 (you must give a number)\n")
	b.WriteString("2. 2-3 specific suggestions for improving the newsletter\n\n")
	b.WriteString("Your response MUST start with 'Score: ' followed by a number, then 'Suggestions:' on a new line.\n\n")
	b.WriteString("Evaluate based on:\n")
	if band := WordBand(minWords, maxWords); band != "" {
		fmt.Fprintf(&b, "- Section lengths (should be %s words each)\n", band)
	} else {
		b.WriteString("- Section lengths (balanced across sections)\n")
	}
	b.WriteString("- Writing quality and engagement\n")
	b.WriteString("- Factual accuracy and detail preservation\n")
	b.WriteString("- Overall structure and flow\n\n")
	b.WriteString("Format exactly like this:\n")
	b.WriteString("Score: [number]\n")
	b.WriteString("Suggestions:\n")
	b.WriteString("- [first suggestion]\n")
	b.WriteString("- [second suggestion]\n")
	b.WriteString("- [third suggestion]")
	return b.String()
}

// WordBand renders a words-per-section band such as "400-500". It is empty
// when the band is unconstrained.
func WordBand(minWords, maxWords int) string {
	switch {
	case minWords <= 0 && maxWords <= 0:
		return ""
	case maxWords <= 0:
		return fmt.Sprintf("at least %d", minWords)
	case minWords <= 0:
		return fmt.Sprintf("at most %d", maxWords)
	default:
		return fmt.Sprintf("%d-%d", minWords, maxWords)
	}
}
