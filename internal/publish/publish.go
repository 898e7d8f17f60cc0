// Package publish delivers finished newsletters to their destinations.
package publish

import (
	"context"
	"errors"
	"strings"
	"time"

	"newsroom/internal/store"
)

// Document is one finished newsletter.
type Document struct {
	RunID     string
	Body      string
	CreatedAt time.Time
}

// Name is the object name used by remote destinations.
func (d Document) Name() string {
	ts := d.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	name := "newsletter-" + ts.UTC().Format("20060102-150405")
	if d.RunID != "" {
		name += "-" + d.RunID
	}
	return name + ".txt"
}

// Publisher stores a document and returns where it went.
type Publisher interface {
	Publish(ctx context.Context, doc Document) (string, error)
}

// FilePublisher writes the newsletter text to a fixed path.
type FilePublisher struct {
	Path string
}

// Publish replaces the file atomically.
func (p FilePublisher) Publish(_ context.Context, doc Document) (string, error) {
	if err := store.WriteFileAtomic(p.Path, []byte(doc.Body), 0o644); err != nil {
		return "", err
	}
	return p.Path, nil
}

// Multi publishes to every destination in order. All destinations are
// attempted; their errors are joined.
type Multi []Publisher

// Publish implements Publisher. The returned location lists every success.
func (m Multi) Publish(ctx context.Context, doc Document) (string, error) {
	var locations []string
	var errs []error
	for _, p := range m {
		loc, err := p.Publish(ctx, doc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		locations = append(locations, loc)
	}
	return strings.Join(locations, ", "), errors.Join(errs...)
}
