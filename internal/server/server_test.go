package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsroom/internal/config"
	"newsroom/internal/core"
	"newsroom/internal/services"
)

type fakeGenerator struct {
	got    services.NewsletterRequest
	called bool
	result *core.NewsletterResult
	err    error
}

func (f *fakeGenerator) Generate(_ context.Context, req services.NewsletterRequest) (*core.NewsletterResult, error) {
	f.called = true
	f.got = req
	return f.result, f.err
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body"`
}

func post(t *testing.T, s *Server, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/newsletter", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, rec.Code, env.StatusCode)
	return rec, env
}

func TestNewsletterSuccessUsesDefaults(t *testing.T) {
	gen := &fakeGenerator{result: &core.NewsletterResult{Newsletter: "Weekly roundup", Score: 8}}
	s := New(gen, nil, config.Server{}, NewsletterDefaults{})

	rec, env := post(t, s, `{"openai_key":"sk-1","anthropic_key":"ak-1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))

	var body NewsletterBody
	require.NoError(t, json.Unmarshal(env.Body, &body))
	assert.Equal(t, "Weekly roundup", body.Newsletter)
	assert.Equal(t, 8.0, body.Score)
	assert.Equal(t, config.DefaultCategories(), body.Categories)

	assert.Equal(t, "outputs/category_reports", gen.got.Dir)
	assert.Equal(t, "sk-1", gen.got.OpenAIKey)
	assert.Equal(t, "ak-1", gen.got.AnthropicKey)
}

func TestNewsletterRequestOverrides(t *testing.T) {
	gen := &fakeGenerator{result: &core.NewsletterResult{Newsletter: "x", Score: 6}}
	s := New(gen, nil, config.Server{}, NewsletterDefaults{})

	rec, env := post(t, s, `{"category_dir":"/tmp/reports","categories":["tech"],"openai_key":"a","anthropic_key":"b"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body NewsletterBody
	require.NoError(t, json.Unmarshal(env.Body, &body))
	assert.Equal(t, []string{"tech"}, body.Categories)
	assert.Equal(t, "/tmp/reports", gen.got.Dir)
	assert.Equal(t, []string{"tech"}, gen.got.Categories)
}

func TestNewsletterMissingKeys(t *testing.T) {
	for _, body := range []string{``, `{}`, `{"openai_key":"a"}`, `{"anthropic_key":"b"}`} {
		gen := &fakeGenerator{}
		s := New(gen, nil, config.Server{}, NewsletterDefaults{})

		rec, env := post(t, s, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"error":"Missing required API keys"}`, string(env.Body))
		assert.False(t, gen.called)
	}
}

func TestNewsletterMissingCredentialsFromService(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("%w: GEMINI_API_KEY", core.ErrMissingCredentials)}
	s := New(gen, nil, config.Server{}, NewsletterDefaults{})

	rec, env := post(t, s, `{"openai_key":"a","anthropic_key":"b"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing required API keys"}`, string(env.Body))
}

func TestNewsletterInternalError(t *testing.T) {
	gen := &fakeGenerator{err: core.ErrNoAnalyses}
	s := New(gen, nil, config.Server{}, NewsletterDefaults{})

	rec, env := post(t, s, `{"openai_key":"a","anthropic_key":"b"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"no category analyses found"}`, string(env.Body))
}

func TestNewsletterInvalidJSON(t *testing.T) {
	s := New(&fakeGenerator{}, nil, config.Server{}, NewsletterDefaults{})
	rec, _ := post(t, s, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	cases := []struct {
		name   string
		db     Pinger
		status int
		body   string
	}{
		{"no database", nil, http.StatusOK, `{"status":"ok"}`},
		{"database up", fakePinger{}, http.StatusOK, `{"status":"ok","checks":{"database":"ok"}}`},
		{"database down", fakePinger{err: errors.New("refused")}, http.StatusServiceUnavailable, `{"status":"unhealthy","checks":{"database":"error"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(&fakeGenerator{}, tc.db, config.Server{}, NewsletterDefaults{})
			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := New(&fakeGenerator{}, nil, config.Server{}, NewsletterDefaults{})
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestCORSPreflight(t *testing.T) {
	cfg := config.Server{CORS: config.CORSConfig{Enabled: true, AllowedOrigins: []string{"https://app.example"}}}
	s := New(&fakeGenerator{}, nil, cfg, NewsletterDefaults{})

	req := httptest.NewRequest(http.MethodOptions, "/api/newsletter", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
