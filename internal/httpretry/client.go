// Package httpretry retries outbound API calls on transient failures.
package httpretry

import (
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"newsroom/internal/logger"
)

// DefaultMaxRetries is used when a negative retry count is given.
const DefaultMaxRetries = 2

// Doer executes HTTP requests. *http.Client and *Client both satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client wraps a Doer with exponential backoff and full jitter.
type Client struct {
	next       Doer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	minDelay   time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithBackoff sets the base and cap of the backoff curve.
func WithBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = base
		c.maxDelay = max
		if c.minDelay > base {
			c.minDelay = base
		}
	}
}

// New wraps next. A nil next uses an http.Client with the given timeout
// (60s when zero). A negative maxRetries selects DefaultMaxRetries and
// zero disables retries.
func New(next Doer, timeout time.Duration, maxRetries int, opts ...Option) *Client {
	if next == nil {
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		next = &http.Client{Timeout: timeout}
	}
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	c := &Client{
		next:       next,
		maxRetries: maxRetries,
		baseDelay:  time.Second,
		maxDelay:   30 * time.Second,
		minDelay:   100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends req, retrying on network errors and on 429, 500, 502, 503 and
// 504. The last attempt's response is returned as-is so callers can read
// the error body. Context cancellation is never retried.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpretry: failed to reset request body: %w", err)
				}
				req.Body = body
			}

			delay := c.delay(attempt)
			logger.Debug("Retrying request",
				"attempt", attempt,
				"max_retries", c.maxRetries,
				"method", req.Method,
				"host", req.URL.Host,
				"path", req.URL.Path,
				"wait", delay.String())

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}

		resp, err := c.next.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}

		if !Retryable(resp.StatusCode) || attempt == c.maxRetries {
			return resp, nil
		}

		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: server returned retryable status %d", resp.StatusCode)
	}

	return nil, lastErr
}

// delay is random(0, min(maxDelay, baseDelay*2^(attempt-1))), floored at minDelay.
func (c *Client) delay(attempt int) time.Duration {
	d := c.baseDelay << (attempt - 1)
	if d > c.maxDelay || d <= 0 {
		d = c.maxDelay
	}
	jittered := time.Duration(rand.Int64N(int64(d) + 1))
	if jittered < c.minDelay {
		jittered = c.minDelay
	}
	return jittered
}

// Retryable reports whether a status code is worth another attempt.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
