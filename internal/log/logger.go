// Package log provides structured logging for embeddb.
//
// The Logger interface is backed by Go's stdlib slog so that the resolver,
// the artifact stores, the transition engine and the process supervisor can
// all log through one testable seam. Subsystems accept a Logger via
// functional options and fall back to the global default.
//
// Output semantics:
//   - User output (stdout): resolved URLs, executable paths, cache summaries
//   - Diagnostic logging (stderr): Debug, Info, Warn, Error messages
//
// Verbosity levels:
//   - ERROR (--quiet): Errors only
//   - WARN (default): Warnings and user output
//   - INFO (--verbose): Node construction, downloads, extractions
//   - DEBUG (--debug): Cache keys, lock waits, rule evaluation
package log

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
)

// Logger is the interface for structured logging.
// Methods match slog's signature for easy integration.
type Logger interface {
	// Debug logs at DEBUG level: cache hits, lock acquisition, rule matching.
	Debug(msg string, args ...any)

	// Info logs at INFO level: states being built or torn down,
	// archives being downloaded or extracted.
	Info(msg string, args ...any)

	// Warn logs at WARN level: recoverable issues such as a stale
	// temp file that could not be removed.
	Warn(msg string, args ...any)

	// Error logs at ERROR level: failures that abort a build.
	Error(msg string, args ...any)

	// With returns a Logger that adds the given key-value pairs to
	// every subsequent entry.
	With(args ...any) Logger
}

// slogLogger adapts *slog.Logger. The embedded logger supplies Debug,
// Info, Warn and Error.
type slogLogger struct {
	*slog.Logger
}

// New creates a Logger that writes through h. Attributes named in
// urlKeys are passed through SanitizeURL before h sees them.
func New(h slog.Handler) Logger {
	return slogLogger{slog.New(redactHandler{h})}
}

func (s slogLogger) With(args ...any) Logger {
	return slogLogger{s.Logger.With(args...)}
}

// NewNoop returns a logger that discards all output.
func NewNoop() Logger {
	return slogLogger{slog.New(slog.DiscardHandler)}
}

// urlKeys are the attribute keys treated as download locations.
var urlKeys = map[string]bool{
	"url":    true,
	"origin": true,
	"mirror": true,
}

// redactHandler strips credentials from URL attributes.
type redactHandler struct {
	slog.Handler
}

func (h redactHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redact(a))
		return true
	})
	return h.Handler.Handle(ctx, out)
}

func (h redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = redact(a)
	}
	return redactHandler{h.Handler.WithAttrs(clean)}
}

func (h redactHandler) WithGroup(name string) slog.Handler {
	return redactHandler{h.Handler.WithGroup(name)}
}

func redact(a slog.Attr) slog.Attr {
	if urlKeys[a.Key] && a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, SanitizeURL(a.Value.String()))
	}
	return a
}

var (
	defaultLogger = NewNoop()
	defaultMu     sync.RWMutex
)

// Default returns the global logger configured at startup.
// Returns a noop logger if SetDefault has not been called.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// For returns the default logger tagged with component, unless l is set.
// Subsystems call it when their caller supplied no logger.
func For(l Logger, component string) Logger {
	if l != nil {
		return l
	}
	return Default().With("component", component)
}

// SetDefault sets the global logger. main calls this once after
// parsing the verbosity flags.
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if l == nil {
		l = NewNoop()
	}
	defaultLogger = l
}

// SanitizeURL strips user info, query and fragment from a URL so that
// download origins carrying tokens never end up in log output.
// Unparseable input is returned as a fixed placeholder.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
