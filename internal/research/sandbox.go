// Package research drives a remote browser sandbox to find source
// articles for keywords and topics.
package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newsroom/internal/httpretry"
)

// DefaultBaseURL is the sandbox API root.
const DefaultBaseURL = "https://api.scrapybara.com/v1"

// Sandbox is the remote automation API. An instance is addressed by id.
type Sandbox interface {
	Start(ctx context.Context) (string, error)
	StreamURL(ctx context.Context, id string) (string, error)
	StartBrowser(ctx context.Context, id string) error
	Act(ctx context.Context, id string, req ActRequest) (*ActResponse, error)
	Stop(ctx context.Context, id string) error
}

// ActRequest asks the sandbox's model to carry out a task with tools.
type ActRequest struct {
	Model       string         `json:"model"`
	Tools       []string       `json:"tools"`
	System      string         `json:"system"`
	Prompt      string         `json:"prompt"`
	Schema      map[string]any `json:"schema,omitempty"`
	Temperature float64        `json:"temperature"`
}

// ActResponse carries the structured output matching the request schema.
type ActResponse struct {
	Text   string          `json:"text"`
	Output json.RawMessage `json:"output"`
}

// HTTPSandbox talks to the sandbox over its JSON API.
type HTTPSandbox struct {
	apiKey  string
	baseURL string
	http    httpretry.Doer
}

// SandboxOptions configures an HTTPSandbox.
type SandboxOptions struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient httpretry.Doer
}

// NewHTTPSandbox creates a sandbox client.
func NewHTTPSandbox(opts SandboxOptions) (*HTTPSandbox, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("sandbox API key is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	doer := opts.HTTPClient
	if doer == nil {
		doer = httpretry.New(nil, opts.Timeout, opts.MaxRetries)
	}
	return &HTTPSandbox{
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    doer,
	}, nil
}

// Start launches a new instance and returns its id.
func (s *HTTPSandbox) Start(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := s.call(ctx, http.MethodPost, "/start", map[string]string{"instance_type": "ubuntu"}, &out); err != nil {
		return "", fmt.Errorf("failed to start instance: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("failed to start instance: no id returned")
	}
	return out.ID, nil
}

// StreamURL returns the live view URL of an instance.
func (s *HTTPSandbox) StreamURL(ctx context.Context, id string) (string, error) {
	var out struct {
		StreamURL string `json:"stream_url"`
	}
	if err := s.call(ctx, http.MethodGet, s.instancePath(id, "stream_url"), nil, &out); err != nil {
		return "", err
	}
	return out.StreamURL, nil
}

// StartBrowser starts the browser inside an instance.
func (s *HTTPSandbox) StartBrowser(ctx context.Context, id string) error {
	if err := s.call(ctx, http.MethodPost, s.instancePath(id, "browser/start"), struct{}{}, nil); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	return nil
}

// Act runs one agent task.
func (s *HTTPSandbox) Act(ctx context.Context, id string, req ActRequest) (*ActResponse, error) {
	var out ActResponse
	if err := s.call(ctx, http.MethodPost, s.instancePath(id, "act"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stop shuts an instance down.
func (s *HTTPSandbox) Stop(ctx context.Context, id string) error {
	return s.call(ctx, http.MethodPost, s.instancePath(id, "stop"), struct{}{}, nil)
}

func (s *HTTPSandbox) instancePath(id, action string) string {
	return "/instance/" + url.PathEscape(id) + "/" + action
}

func (s *HTTPSandbox) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("sandbox request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sandbox API error (%d) on %s: %s", resp.StatusCode, path, string(respBody))
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
