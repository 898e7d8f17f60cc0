package quality

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsroom/internal/core"
	"newsroom/internal/llm"
)

type scriptedClient struct {
	replies  []string
	errs     []error
	requests []llm.ChatRequest
}

func (c *scriptedClient) Provider() string { return "fake" }

func (c *scriptedClient) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	i := len(c.requests)
	c.requests = append(c.requests, req)
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i >= len(c.replies) {
		return nil, errors.New("no scripted reply")
	}
	return &llm.ChatResponse{Text: c.replies[i]}, nil
}

func TestEvaluateParsesScore(t *testing.T) {
	client := &scriptedClient{replies: []string{"score: 7.5\nSuggestions:\n- shorten tech"}}
	e := NewEvaluator(client, DefaultOptions())

	eval, err := e.Evaluate(context.Background(), "draft")
	require.NoError(t, err)
	assert.Equal(t, 7.5, eval.Score)
	assert.False(t, eval.Defaulted)
	assert.Equal(t, "score: 7.5\nSuggestions:\n- shorten tech", eval.Suggestions)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Equal(t, 1000, req.MaxTokens)
	assert.Equal(t, 0.0, req.Temperature)
	assert.Contains(t, req.Messages[0].Content, "draft")
	assert.Contains(t, req.Messages[0].Content, "should be 400-500 words each")
}

func TestEvaluateRetriesForBareNumber(t *testing.T) {
	client := &scriptedClient{replies: []string{"Looks good overall.", "8"}}
	e := NewEvaluator(client, DefaultOptions())

	eval, err := e.Evaluate(context.Background(), "draft")
	require.NoError(t, err)
	assert.Equal(t, 8.0, eval.Score)
	assert.False(t, eval.Defaulted)
	assert.Equal(t, "Looks good overall.", eval.Suggestions)

	require.Len(t, client.requests, 2)
	retry := client.requests[1]
	assert.Equal(t, 100, retry.MaxTokens)
	require.Len(t, retry.Messages, 3)
	assert.Equal(t, "assistant", retry.Messages[1].Role)
	assert.Equal(t, retryPrompt, retry.Messages[2].Content)
}

func TestEvaluateUnparsableScoreDefaults(t *testing.T) {
	client := &scriptedClient{replies: []string{"no idea", "cannot say"}}
	eval, err := NewEvaluator(client, DefaultOptions()).Evaluate(context.Background(), "draft")
	require.NoError(t, err)
	assert.Equal(t, core.DefaultScore, eval.Score)
	assert.True(t, eval.Defaulted)
}

func TestEvaluateRetryFailureDefaults(t *testing.T) {
	client := &scriptedClient{
		replies: []string{"no idea"},
		errs:    []error{nil, errors.New("overloaded")},
	}
	eval, err := NewEvaluator(client, DefaultOptions()).Evaluate(context.Background(), "draft")
	require.NoError(t, err)
	assert.Equal(t, core.DefaultScore, eval.Score)
	assert.True(t, eval.Defaulted)
}

func TestEvaluateCallFailure(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("down")}}
	_, err := NewEvaluator(client, DefaultOptions()).Evaluate(context.Background(), "draft")
	assert.Error(t, err)
}

func TestEvaluateClamps(t *testing.T) {
	tests := []struct {
		reply string
		want  float64
	}{
		{"Score: 42", 10},
		{"Score: 0", 1},
		{"Score: 6", 6},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			client := &scriptedClient{replies: []string{tt.reply}}
			eval, err := NewEvaluator(client, DefaultOptions()).Evaluate(context.Background(), "d")
			require.NoError(t, err)
			assert.Equal(t, tt.want, eval.Score)
		})
	}
}

func TestBuildPromptUnconstrainedBand(t *testing.T) {
	p := BuildPrompt("text", 0, 0)
	assert.Contains(t, p, "balanced across sections")
	assert.NotContains(t, p, "400-500")
}

func TestWordBand(t *testing.T) {
	assert.Equal(t, "", WordBand(0, 0))
	assert.Equal(t, "400-500", WordBand(400, 500))
	assert.Equal(t, "at least 300", WordBand(300, 0))
	assert.Equal(t, "at most 200", WordBand(0, 200))
}

func TestSectionWordCounts(t *testing.T) {
	text := "Daily Digest\n\n## Tech:\nChips are back in stock.\n\n**Finance**\nRates held steady today\nagain.\nSports\n"
	counts := SectionWordCounts(text, []string{"tech", "finance", "sports"})
	assert.Equal(t, map[string]int{"tech": 5, "finance": 5, "sports": 0}, counts)

	out := OutOfBand(counts, 1, 4)
	sort.Strings(out)
	assert.Equal(t, []string{"finance", "sports", "tech"}, out)
	assert.Empty(t, OutOfBand(counts, 0, 0))
}
