package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
	mu            sync.RWMutex
)

// Options controls how the default logger is built.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	Output io.Writer
}

// Init initializes the default logger with JSON output to os.Stdout.
// It ensures that the logger is initialized only once.
func Init() {
	once.Do(func() {
		set(New(Options{Level: "info", Format: "json"}))
	})
}

// Configure replaces the default logger. Commands call it once the
// configuration has been loaded.
func Configure(opts Options) {
	once.Do(func() {})
	set(New(opts))
}

// New builds a zerolog logger from opts without touching the default.
func New(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(opts.Format, "text") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func set(l zerolog.Logger) {
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
}

// Get returns the initialized default logger.
func Get() *zerolog.Logger {
	Init()
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	return &l
}

// Info logs an informational message using the default logger.
func Info(msg string, args ...any) {
	Get().Info().Fields(fields(args)).Msg(msg)
}

// Warn logs a warning message using the default logger.
func Warn(msg string, args ...any) {
	Get().Warn().Fields(fields(args)).Msg(msg)
}

// Error logs an error message using the default logger.
func Error(msg string, err error, args ...any) {
	ev := Get().Error()
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Fields(fields(args)).Msg(msg)
}

// Debug logs a debug message using the default logger.
func Debug(msg string, args ...any) {
	Get().Debug().Fields(fields(args)).Msg(msg)
}

// fields turns alternating key/value args into a zerolog field list.
// A trailing key without a value is logged under "!BADKEY".
func fields(args []any) []any {
	if len(args) == 0 {
		return nil
	}
	out := make([]any, 0, len(args)+1)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			out = append(out, "!BADKEY", args[i])
			i--
			continue
		}
		if i+1 >= len(args) {
			out = append(out, "!BADKEY", key)
			break
		}
		out = append(out, key, args[i+1])
	}
	return out
}
