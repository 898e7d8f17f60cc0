package core

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// Uncategorized is the label for senders no rule claims.
const Uncategorized = "Uncategorized"

// DefaultScore is the evaluation score used when no number can be parsed.
const DefaultScore = 5.0

var (
	// ErrMissingCredentials is returned before any work starts when a required key is absent.
	ErrMissingCredentials = errors.New("missing required API keys")
	// ErrNoAnalyses means no topic analysis could be loaded for the requested topics.
	ErrNoAnalyses = errors.New("no category analyses found")
	// ErrMissingColumns is returned when an input table lacks a required column.
	ErrMissingColumns = errors.New("missing required columns")
)

// EmailRecord is one classified newsletter email. MessageID is the only key.
type EmailRecord struct {
	Subject   string `json:"subject"`    // Decoded subject line
	From      string `json:"from"`       // Sender address without display name
	Date      string `json:"date"`       // Date header exactly as received
	Body      string `json:"body"`       // Sanitized plain-text body
	Category  string `json:"category"`   // Label assigned by the sender classifier
	MessageID string `json:"message_id"` // Message-ID header, or the sequence number when absent
}

// ParsedDate parses the Date header. The bool is false when the header is unusable.
func (r EmailRecord) ParsedDate() (time.Time, bool) {
	return ParseDate(r.Date)
}

// AnalysisEntry is one piece of source content folded into a topic analysis.
type AnalysisEntry struct {
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// TopicAnalysis mirrors the <topic>.json documents produced by the synthesizer.
type TopicAnalysis struct {
	Category    string          `json:"category"`              // Topic label
	Entries     []AnalysisEntry `json:"entries,omitempty"`     // Source content, oldest first
	Analysis    string          `json:"analysis"`              // Free-text analysis used for drafting
	Keywords    []string        `json:"keywords"`              // 5-7 extracted keywords
	SourceIDs   []string        `json:"sourceIds,omitempty"`   // Message-IDs of contributing emails
	LastUpdated string          `json:"lastUpdated,omitempty"` // RFC 3339 timestamp of the last rewrite
}

// Draft is a full candidate newsletter.
type Draft struct {
	Text         string   `json:"text"`
	Sections     []string `json:"sections"`      // Topics the draft was asked to cover, in order
	FinishReason string   `json:"finish_reason"` // Completion reason reported by the model
}

// Evaluation is the evaluator's verdict on a draft.
type Evaluation struct {
	Score       float64 `json:"score"`       // 1-10, DefaultScore when unparsable
	Suggestions string  `json:"suggestions"` // Free-text improvement notes
	Defaulted   bool    `json:"defaulted"`   // True when Score fell back to DefaultScore
}

// ArticleURL is one article located by the research agent.
type ArticleURL struct {
	Keyword          string `json:"keyword"`
	Source           string `json:"source"`
	Title            string `json:"title"`
	URL              string `json:"url"`
	ReliabilityNotes string `json:"reliability_notes,omitempty"`
}

// NewsletterResult is what a newsletter run reports back to its caller.
type NewsletterResult struct {
	RunID      string   `json:"run_id"`
	Newsletter string   `json:"newsletter"`
	Score      float64  `json:"score"`
	Categories []string `json:"categories"`
	Iterations int      `json:"iterations"`
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
}

// ParseDate accepts RFC 5322 dates plus the layouts seen in older tables.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := mail.ParseDate(s); err == nil {
		return t, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CategoryFileName maps a topic label to its document name: "US News" -> "us_news.json".
func CategoryFileName(category string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(category)), " ", "_") + ".json"
}
