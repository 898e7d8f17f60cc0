package narrative

import (
	"context"
	"fmt"
	"sort"

	"newsroom/internal/core"
	"newsroom/internal/logger"
	"newsroom/internal/quality"
)

// DefaultIterations is the number of refine rounds after the first draft.
const DefaultIterations = 3

// Writer drafts and refines newsletters. *Generator implements it.
type Writer interface {
	Draft(ctx context.Context, sections []Section) (core.Draft, error)
	Refine(ctx context.Context, draft core.Draft, feedback string) (core.Draft, error)
}

// Scorer grades a draft. *quality.Evaluator implements it.
type Scorer interface {
	Evaluate(ctx context.Context, content string) (core.Evaluation, error)
}

// Round is one evaluated draft. Iteration 0 is the initial draft.
type Round struct {
	Iteration int     `json:"iteration"`
	Score     float64 `json:"score"`
	Accepted  bool    `json:"accepted"`
}

// Result is the outcome of a loop run.
type Result struct {
	Best        core.Draft
	BestScore   float64
	Suggestions string // latest evaluator feedback
	History     []Round
	Stopped     error // refine or evaluate error that ended the rounds early
}

// Completed counts the refine rounds that produced a score.
func (r *Result) Completed() int {
	if len(r.History) == 0 {
		return 0
	}
	return len(r.History) - 1
}

// LoopOptions configures a Loop.
type LoopOptions struct {
	Iterations      int
	SectionWordsMin int
	SectionWordsMax int
}

// Loop runs draft, evaluate, then a fixed number of refine and evaluate
// rounds, keeping the best-scoring draft.
type Loop struct {
	writer Writer
	scorer Scorer
	opts   LoopOptions
}

// NewLoop creates a loop. Negative iterations are treated as zero.
func NewLoop(writer Writer, scorer Scorer, opts LoopOptions) *Loop {
	if opts.Iterations < 0 {
		opts.Iterations = 0
	}
	return &Loop{writer: writer, scorer: scorer, opts: opts}
}

// Run drafts from sections and refines. Draft and first evaluation errors
// are returned; later errors only stop the remaining rounds.
func (l *Loop) Run(ctx context.Context, sections []Section) (*Result, error) {
	draft, err := l.writer.Draft(ctx, sections)
	if err != nil {
		return nil, err
	}
	l.checkLengths(0, draft)

	eval, err := l.scorer.Evaluate(ctx, draft.Text)
	if err != nil {
		return nil, fmt.Errorf("initial evaluation failed: %w", err)
	}

	result := &Result{
		Best:        draft,
		BestScore:   eval.Score,
		Suggestions: eval.Suggestions,
		History:     []Round{{Iteration: 0, Score: eval.Score, Accepted: true}},
	}
	logger.Info("Initial draft scored", "score", eval.Score)

	for i := 1; i <= l.opts.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			result.Stopped = err
			break
		}

		refined, err := l.writer.Refine(ctx, result.Best, result.Suggestions)
		if err != nil {
			logger.Error("Refinement failed, keeping best draft", err, "iteration", i)
			result.Stopped = err
			break
		}
		l.checkLengths(i, refined)

		eval, err := l.scorer.Evaluate(ctx, refined.Text)
		if err != nil {
			logger.Error("Evaluation failed, keeping best draft", err, "iteration", i)
			result.Stopped = err
			break
		}

		round := Round{Iteration: i, Score: eval.Score}
		if eval.Score > result.BestScore {
			result.Best = refined
			result.BestScore = eval.Score
			round.Accepted = true
		}
		result.Suggestions = eval.Suggestions
		result.History = append(result.History, round)

		logger.Info("Refinement round scored",
			"iteration", i,
			"score", eval.Score,
			"best_score", result.BestScore,
			"accepted", round.Accepted)
	}

	return result, nil
}

func (l *Loop) checkLengths(iteration int, draft core.Draft) {
	if l.opts.SectionWordsMin <= 0 && l.opts.SectionWordsMax <= 0 {
		return
	}
	counts := quality.SectionWordCounts(draft.Text, draft.Sections)
	off := quality.OutOfBand(counts, l.opts.SectionWordsMin, l.opts.SectionWordsMax)
	if len(off) == 0 {
		return
	}
	sort.Strings(off)
	logger.Debug("Sections outside the word band",
		"iteration", iteration,
		"sections", off,
		"band", quality.WordBand(l.opts.SectionWordsMin, l.opts.SectionWordsMax))
}
