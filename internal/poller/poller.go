// Package poller runs the inbox polling state machine: connect, list,
// fetch new messages, persist, sleep, repeat.
package poller

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"newsroom/internal/categorization"
	"newsroom/internal/core"
	"newsroom/internal/logger"
	"newsroom/internal/mailbox"
	"newsroom/internal/metrics"
	"newsroom/internal/sanitize"
	"newsroom/internal/store"
)

// DefaultInterval is the pause between poll cycles.
const DefaultInterval = 15 * time.Second

// State is the poller's position in its cycle.
type State int

const (
	Disconnected State = iota
	Connected          // idle between cycles
	Fetching
	Persisting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Fetching:
		return "fetching"
	case Persisting:
		return "persisting"
	default:
		return "unknown"
	}
}

// Options configures a Poller.
type Options struct {
	Folder   string
	Interval time.Duration
	Sleep    core.SleepFunc
}

// Poller ingests newsletter emails into the email table.
type Poller struct {
	dialer     mailbox.Dialer
	classifier *categorization.Classifier
	table      *store.Table
	seen       store.SeenStore
	opts       Options

	state   State
	session mailbox.Session
	pending []uint32

	buckets    map[string][]core.EmailRecord
	categories []string // bucket order, first seen first
	dirty      bool     // buckets hold records not yet written
	cycleNew   int
}

// New creates a poller. Call Load before the first cycle.
func New(dialer mailbox.Dialer, classifier *categorization.Classifier, table *store.Table, seen store.SeenStore, opts Options) *Poller {
	if opts.Folder == "" {
		opts.Folder = "INBOX"
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Sleep == nil {
		opts.Sleep = core.Sleep
	}
	return &Poller{
		dialer:     dialer,
		classifier: classifier,
		table:      table,
		seen:       seen,
		opts:       opts,
		state:      Disconnected,
		buckets:    make(map[string][]core.EmailRecord),
	}
}

// State returns the current state.
func (p *Poller) State() State {
	return p.state
}

// Records returns every record currently held, deduplicated, in bucket order.
func (p *Poller) Records() []core.EmailRecord {
	var all []core.EmailRecord
	for _, cat := range p.categories {
		all = append(all, p.buckets[cat]...)
	}
	return store.Dedupe(all)
}

// Load reads the existing table, drops duplicate ids keeping the first,
// rebuilds the seen set and buckets, and rewrites the deduplicated table.
func (p *Poller) Load(ctx context.Context) error {
	records, err := p.table.Load()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	deduped := store.Dedupe(records)
	for _, r := range deduped {
		p.seen.Add(ctx, r.MessageID)
		p.addToBucket(r)
	}

	if err := p.table.Save(deduped); err != nil {
		return err
	}

	logger.Info("Loaded existing email table",
		"path", p.table.Path(),
		"records", len(deduped),
		"duplicates_dropped", len(records)-len(deduped),
		"categories", len(p.categories))
	return nil
}

// Step performs one state transition.
func (p *Poller) Step(ctx context.Context) error {
	switch p.state {
	case Disconnected:
		session, err := p.dialer.Dial(ctx)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		p.session = session
		p.state = Connected
		logger.Info("Connected to mailbox", "folder", p.opts.Folder)
		return nil

	case Connected:
		if err := p.session.Select(p.opts.Folder); err != nil {
			return err
		}
		ids, err := p.session.SearchAll()
		if err != nil {
			return err
		}
		p.pending = ids
		p.cycleNew = 0
		p.state = Fetching
		return nil

	case Fetching:
		if err := p.fetchPending(ctx); err != nil {
			return err
		}
		if p.dirty {
			p.state = Persisting
		} else {
			p.state = Connected
		}
		return nil

	case Persisting:
		if err := p.persist(); err != nil {
			return err
		}
		p.state = Connected
		return nil
	}
	return fmt.Errorf("invalid poller state %d", p.state)
}

// Cycle runs one complete poll: connect if needed, list, fetch and persist.
// It returns the number of new messages stored.
func (p *Poller) Cycle(ctx context.Context) (int, error) {
	if p.state == Disconnected {
		if err := p.Step(ctx); err != nil {
			return 0, err
		}
	}
	for {
		if err := p.Step(ctx); err != nil {
			return p.cycleNew, err
		}
		if p.state == Connected {
			return p.cycleNew, nil
		}
	}
}

// Run loads the table and polls until ctx is cancelled. Cycle errors are
// logged and followed by a reconnect attempt; they never end the loop.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.Load(ctx); err != nil {
		return fmt.Errorf("failed to load email table: %w", err)
	}
	defer p.disconnect()

	for {
		n, err := p.Cycle(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			metrics.PollCycles.WithLabelValues("error").Inc()
			logger.Error("Poll cycle failed", err, "state", p.state.String())
			p.reconnect(ctx)
		case n > 0:
			metrics.PollCycles.WithLabelValues("new").Inc()
		default:
			metrics.PollCycles.WithLabelValues("idle").Inc()
		}

		if err := p.opts.Sleep(ctx, p.opts.Interval); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

func (p *Poller) fetchPending(ctx context.Context) error {
	for len(p.pending) > 0 {
		seq := p.pending[0]
		seqID := strconv.FormatUint(uint64(seq), 10)

		if p.seen.Seen(ctx, seqID) {
			p.pending = p.pending[1:]
			continue
		}

		raw, err := p.session.FetchRaw(seq)
		if err != nil {
			return err
		}
		p.pending = p.pending[1:]

		msg, err := mailbox.Parse(raw)
		if msg == nil {
			logger.Warn("Skipping unparsable message", "seq", seq, "error", errString(err))
			p.seen.Add(ctx, seqID)
			continue
		}
		if err != nil {
			logger.Warn("Message parsed with errors", "seq", seq, "error", err.Error())
		}

		id := msg.MessageID
		if id == "" {
			id = seqID
		}
		if !p.seen.Add(ctx, id) {
			continue
		}

		record := core.EmailRecord{
			Subject:   msg.Subject,
			From:      msg.From,
			Date:      msg.Date,
			Body:      sanitize.Clean(msg.Body()),
			Category:  p.classifier.Classify(msg.From),
			MessageID: id,
		}
		p.addToBucket(record)
		p.dirty = true
		p.cycleNew++

		metrics.EmailsIngested.WithLabelValues(record.Category).Inc()
		logger.Info("New email received",
			"category", record.Category,
			"from", logger.RedactEmail(record.From))
	}
	return nil
}

func (p *Poller) persist() error {
	records := p.Records()
	store.SortByDate(records)
	if err := p.table.Save(records); err != nil {
		return err
	}
	p.dirty = false
	logger.Info("Email table updated", "path", p.table.Path(), "records", len(records))
	return nil
}

func (p *Poller) addToBucket(r core.EmailRecord) {
	if _, ok := p.buckets[r.Category]; !ok {
		p.categories = append(p.categories, r.Category)
	}
	p.buckets[r.Category] = append(p.buckets[r.Category], r)
}

// reconnect drops the session and makes one attempt to dial again.
func (p *Poller) reconnect(ctx context.Context) {
	metrics.PollReconnects.Inc()
	p.disconnect()
	if err := p.Step(ctx); err != nil {
		logger.Warn("Failed to reconnect, waiting before retry", "error", err.Error())
	}
}

// Close logs out of the current session, if any.
func (p *Poller) Close() {
	p.disconnect()
}

func (p *Poller) disconnect() {
	if p.session != nil {
		_ = p.session.Logout()
		p.session = nil
	}
	p.pending = nil
	p.state = Disconnected
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
