// Package obslog provides the gateway's ambient structured logging.
package obslog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Level mirrors slog's severities but keeps the gateway's own small,
// stable vocabulary independent of the slog API surface.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Entry is a structured log line, also used for the live dashboard feed.
type Entry struct {
	Timestamp time.Time
	Level     Level
	Subsystem string
	Message   string
	Err       error
}

const feedBufferSize = 2048

var (
	base     *slog.Logger
	feed     chan Entry
	tailMode bool
)

// Init configures the default logger. mode "tui" additionally fans out
// every entry onto a bounded channel for a live console/dashboard feed;
// mode "cli" writes JSON lines to output and discards the feed.
func Init(mode string, level Level, output io.Writer) <-chan Entry {
	opts := &slog.HandlerOptions{Level: level.slogLevel()}

	var handler slog.Handler
	switch mode {
	case "tui":
		tailMode = true
		feed = make(chan Entry, feedBufferSize)
		handler = slog.NewTextHandler(io.Discard, opts)
	default:
		tailMode = false
		handler = slog.NewJSONHandler(output, opts)
	}

	base = slog.New(handler)
	slog.SetDefault(base)

	if tailMode {
		return feed
	}
	return nil
}

func logInternal(level Level, subsystem string, err error, format string, args ...interface{}) {
	if base == nil {
		base = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if !tailMode && !base.Enabled(context.Background(), level.slogLevel()) {
		return
	}

	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	if tailMode {
		entry := Entry{Timestamp: time.Now(), Level: level, Subsystem: subsystem, Message: msg, Err: err}
		select {
		case feed <- entry:
		default:
			fmt.Fprintf(os.Stderr, "[obslog] feed full, dropping: %s\n", msg)
		}
		return
	}

	attrs := []slog.Attr{slog.String("subsystem", subsystem)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	base.LogAttrs(context.Background(), level.slogLevel(), msg, attrs...)
}

func Debug(subsystem, format string, args ...interface{}) { logInternal(LevelDebug, subsystem, nil, format, args...) }
func Info(subsystem, format string, args ...interface{})  { logInternal(LevelInfo, subsystem, nil, format, args...) }
func Warn(subsystem, format string, args ...interface{})  { logInternal(LevelWarn, subsystem, nil, format, args...) }
func Error(subsystem string, err error, format string, args ...interface{}) {
	logInternal(LevelError, subsystem, err, format, args...)
}

// TruncateID shortens identifiers (session ids, request ids) for safe
// logging: enough to correlate, not enough to be the whole secret.
func TruncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

// AuditLine is a one-line security-relevant log event, distinct from the
// durable audit pipeline (internal/audit) — this is for operator tailing.
type AuditLine struct {
	Action    string
	Outcome   string
	SessionID string
	Target    string
	Details   string
	Error     string
}

func Audit(e AuditLine) {
	parts := make([]string, 0, 6)
	parts = append(parts, "action="+e.Action, "outcome="+e.Outcome)
	if e.SessionID != "" {
		parts = append(parts, "session="+TruncateID(e.SessionID))
	}
	if e.Target != "" {
		parts = append(parts, "target="+e.Target)
	}
	if e.Details != "" {
		parts = append(parts, "details="+e.Details)
	}
	if e.Error != "" {
		parts = append(parts, "error="+e.Error)
	}
	logInternal(LevelInfo, "audit", nil, "[AUDIT] %s", strings.Join(parts, " "))
}
