// Package sanitize turns raw email bodies into single-line text that is safe
// to store in a CSV cell.
package sanitize

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy = bluemonday.StrictPolicy()

	urlPattern   = regexp.MustCompile(`(?i)(?:https?://|www\.)\S+`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// Clean removes HTML tags, URLs and email addresses, collapses whitespace
// and escapes double quotes as \". Clean(Clean(s)) == Clean(s).
func Clean(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	// Each pass decodes one entity level or removes markup, so the text
	// only changes a finite number of times.
	text := s
	for {
		next := strip(text)
		if next == text {
			break
		}
		text = next
	}

	return escapeQuotes(text)
}

func strip(s string) string {
	s = html.UnescapeString(policy.Sanitize(s))
	s = urlPattern.ReplaceAllString(s, " ")
	s = emailPattern.ReplaceAllString(s, " ")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// escapeQuotes prefixes every double quote with a backslash unless one is
// already there.
func escapeQuotes(s string) string {
	if !strings.Contains(s, `"`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		if s[i] == '"' && (i == 0 || s[i-1] != '\\') {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
