package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"john.doe@example.com", "jo***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"not-an-address", "***@***"},
		{"@example.com", "***@***"},
		{"", "***@***"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, RedactEmail(tt.in))
		})
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "warn", Format: "json", Output: &buf})

	l.Info().Msg("dropped")
	l.Warn().Fields(fields([]any{"category", "Tech", "count", 3})).Msg("kept")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "Tech", entry["category"])
	assert.EqualValues(t, 3, entry["count"])
}

func TestErrorAddsErrField(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Level: "debug", Output: &buf})
	defer Configure(Options{Level: "info"})

	Error("write failed", errors.New("disk full"), "path", "/tmp/x")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "disk full", entry["error"])
	assert.Equal(t, "/tmp/x", entry["path"])
	assert.Equal(t, "error", entry["level"])
}

func TestFieldsOddArgs(t *testing.T) {
	got := fields([]any{"a", 1, "dangling"})
	assert.Equal(t, []any{"a", 1, "!BADKEY", "dangling"}, got)

	got = fields([]any{42, "b", 2})
	assert.Equal(t, []any{"!BADKEY", 42, "b", 2}, got)
}
