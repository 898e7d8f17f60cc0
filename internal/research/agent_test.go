package research

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSandbox struct {
	startErr   error
	browserErr error
	outputs    map[string]string // prompt substring -> raw output
	failFor    map[string]bool
	acts       []ActRequest
	stopped    []string
}

func (s *fakeSandbox) Start(context.Context) (string, error) {
	if s.startErr != nil {
		return "", s.startErr
	}
	return "inst-1", nil
}

func (s *fakeSandbox) StreamURL(context.Context, string) (string, error) {
	return "https://stream.example/inst-1", nil
}

func (s *fakeSandbox) StartBrowser(context.Context, string) error { return s.browserErr }

func (s *fakeSandbox) Act(_ context.Context, _ string, req ActRequest) (*ActResponse, error) {
	s.acts = append(s.acts, req)
	for key := range s.failFor {
		if strings.Contains(req.Prompt, key) {
			return nil, errors.New("agent crashed")
		}
	}
	for key, out := range s.outputs {
		if strings.Contains(req.Prompt, key) {
			return &ActResponse{Output: json.RawMessage(out)}, nil
		}
	}
	return &ActResponse{Output: json.RawMessage(`{"phrase":"","sources":[],"context_summary":""}`)}, nil
}

func (s *fakeSandbox) Stop(_ context.Context, id string) error {
	s.stopped = append(s.stopped, id)
	return nil
}

func TestRunCollectsFirstURLs(t *testing.T) {
	sb := &fakeSandbox{
		outputs: map[string]string{
			"about tariffs": `{"phrase":"tariffs","sources":[{"title":"T","url":"https://apnews.com/article/tariffs","reliability_notes":"wire"}],"context_summary":"s"}`,
		},
		failFor: map[string]bool{"about ai chips": true},
	}

	var slept []time.Duration
	agent := NewAgent(sb, AgentOptions{
		Temperature: 0.7,
		Backoff:     10 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	})

	results, err := agent.Run(context.Background(), []string{"tariffs", "ai chips", "empty"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"tariffs":  "https://apnews.com/article/tariffs",
		"ai chips": ErrorMarker,
		"empty":    ErrorMarker,
	}, results)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, slept)
	assert.Equal(t, []string{"inst-1"}, sb.stopped)

	require.Len(t, sb.acts, 3)
	req := sb.acts[0]
	assert.Equal(t, []string{"browser"}, req.Tools)
	assert.Equal(t, DefaultModel, req.Model)
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, systemInstruction, req.System)
	assert.Contains(t, req.Prompt, "https://apnews.com/search?q=tariffs")
	assert.Equal(t, "ResearchResult", req.Schema["title"])
}

func TestRunStopsInstanceOnBrowserFailure(t *testing.T) {
	sb := &fakeSandbox{browserErr: errors.New("no browser")}
	_, err := NewAgent(sb, AgentOptions{}).Run(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Equal(t, []string{"inst-1"}, sb.stopped)
	assert.Empty(t, sb.acts)
}

func TestRunStartFailure(t *testing.T) {
	sb := &fakeSandbox{startErr: errors.New("quota")}
	_, err := NewAgent(sb, AgentOptions{}).Run(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Empty(t, sb.stopped)
}

func TestRunCancelledDuringBackoff(t *testing.T) {
	sb := &fakeSandbox{failFor: map[string]bool{"about": true}}
	ctx, cancel := context.WithCancel(context.Background())
	agent := NewAgent(sb, AgentOptions{Sleep: func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}})

	results, err := agent.Run(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, map[string]string{"a": ErrorMarker}, results)
	assert.Equal(t, []string{"inst-1"}, sb.stopped)
}

func TestCollectSources(t *testing.T) {
	sb := &fakeSandbox{outputs: map[string]string{
		"about election": `{"urls":[{"url":"https://apnews.com/a","source":"AP News"},{"url":"","source":"Reuters"}]}`,
	}}
	agent := NewAgent(sb, AgentOptions{Sources: []string{"AP News", "Reuters", "Local Ledger"}})

	articles, err := agent.CollectSources(context.Background(), "election")
	require.NoError(t, err)
	require.Len(t, articles, 3)

	assert.Equal(t, "https://apnews.com/a", articles[0].URL)
	assert.Equal(t, "election", articles[0].Keyword)
	assert.Equal(t, NotFound, articles[1].URL)
	assert.Equal(t, "Local Ledger", articles[2].Source)
	assert.Equal(t, NotFound, articles[2].URL)

	prompt := sb.acts[0].Prompt
	assert.Contains(t, prompt, "Reuters:")
	assert.Contains(t, prompt, "Local+Ledger")
	assert.Equal(t, "URLCollection", sb.acts[0].Schema["title"])
	assert.Equal(t, []string{"inst-1"}, sb.stopped)
}
