// Package debug installs the process logger and gates per-subsystem
// diagnostics.
//
// Levels say how much is logged; categories say which subsystems emit
// debug output at all:
//
//	debug.Log("providers", "opening stream", "model", id)
//	debug.Trace("streaming", "sse frame", "data", raw)
//
// Categories: providers, streaming, retry, ohttp, transport, auth, usage,
// config, or "all". CONFWHISPER_DEBUG enables categories before Init runs.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// LevelTrace sits below slog.LevelDebug. Raw wire data is logged at this
// level only.
const LevelTrace = slog.LevelDebug - 4

// Settings configures Init.
type Settings struct {
	// Level is one of TRACE, DEBUG, INFO, WARN or ERROR. Empty means INFO.
	Level string

	// Format is "json" or "text". Empty means text.
	Format string

	// Categories is a comma-separated list of debug categories.
	Categories string

	// Output defaults to os.Stderr.
	Output io.Writer
}

var categories atomic.Pointer[map[string]bool]

func init() {
	SetCategories(os.Getenv("CONFWHISPER_DEBUG"))
}

// Init enables the configured categories and installs a logger for s as the
// slog default. The logger is returned for callers that pass it explicitly.
func Init(s Settings) *slog.Logger {
	SetCategories(s.Categories)

	out := s.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(s.Level),
		ReplaceAttr: levelNames,
	}
	var h slog.Handler
	if strings.EqualFold(s.Format, "json") {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// levelNames prints LevelTrace as "TRACE" rather than "DEBUG-4".
func levelNames(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if l, ok := a.Value.Any().(slog.Level); ok && l <= LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}

// SetCategories replaces the enabled categories.
func SetCategories(list string) {
	m := parseCategories(list)
	categories.Store(&m)
}

// Enabled reports whether category emits debug output.
func Enabled(category string) bool {
	m := *categories.Load()
	return m["all"] || m[category]
}

// Log emits a debug message when category is enabled.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level message when category is enabled.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to
// INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Truncate shortens s to maxLen bytes, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		if cat = strings.TrimSpace(strings.ToLower(cat)); cat != "" {
			m[cat] = true
		}
	}
	return m
}
