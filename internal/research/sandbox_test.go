package research

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSandboxLifecycle(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sb-key", r.Header.Get("Authorization"))
		paths = append(paths, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/start":
			_, _ = w.Write([]byte(`{"id":"i-9"}`))
		case "/instance/i-9/stream_url":
			_, _ = w.Write([]byte(`{"stream_url":"https://s/i-9"}`))
		case "/instance/i-9/act":
			var req ActRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, []string{"browser"}, req.Tools)
			_, _ = w.Write([]byte(`{"output":{"phrase":"p","sources":[{"url":"https://x"}]}}`))
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	sb, err := NewHTTPSandbox(SandboxOptions{APIKey: "sb-key", BaseURL: srv.URL, MaxRetries: 0})
	require.NoError(t, err)
	ctx := context.Background()

	id, err := sb.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, "i-9", id)

	stream, err := sb.StreamURL(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "https://s/i-9", stream)

	require.NoError(t, sb.StartBrowser(ctx, id))

	resp, err := sb.Act(ctx, id, ActRequest{Tools: []string{"browser"}, Prompt: "go"})
	require.NoError(t, err)
	var out Result
	require.NoError(t, json.Unmarshal(resp.Output, &out))
	assert.Equal(t, "https://x", out.Sources[0].URL)

	require.NoError(t, sb.Stop(ctx, id))

	assert.Equal(t, []string{
		"POST /start",
		"GET /instance/i-9/stream_url",
		"POST /instance/i-9/browser/start",
		"POST /instance/i-9/act",
		"POST /instance/i-9/stop",
	}, paths)
}

func TestHTTPSandboxError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("bad key"))
	}))
	defer srv.Close()

	sb, err := NewHTTPSandbox(SandboxOptions{APIKey: "k", BaseURL: srv.URL, MaxRetries: 0})
	require.NoError(t, err)
	_, err = sb.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestNewHTTPSandboxRequiresKey(t *testing.T) {
	_, err := NewHTTPSandbox(SandboxOptions{})
	assert.Error(t, err)
}

func TestKeywordsAndResultsFiles(t *testing.T) {
	dir := t.TempDir()
	kw := filepath.Join(dir, "keywords.json")
	require.NoError(t, os.WriteFile(kw, []byte(`{"keywords":["tariffs","ai chips"]}`), 0o644))

	keywords, err := LoadKeywords(kw)
	require.NoError(t, err)
	assert.Equal(t, []string{"tariffs", "ai chips"}, keywords)

	out := filepath.Join(dir, "research_results.json")
	require.NoError(t, SaveResults(out, map[string]string{"tariffs": "https://b", "ai chips": ErrorMarker, "x": "https://a"}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"tariffs\": \"https://b\"")

	loaded, err := LoadResults(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a", "https://b"}, URLs(loaded))
}
