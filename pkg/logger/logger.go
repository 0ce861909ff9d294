package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var Log *slog.Logger
var Audit *slog.Logger

var (
	mu      sync.Mutex
	closers []io.Closer
)

// ParseLevel maps a config string onto a slog level; unknown values are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init installs the process logger. sink is "stdout", "stderr" or
// "file:<path>"; an empty sink means stdout.
func Init(level string, sink string) error {
	w, err := openSink(sink)
	if err != nil {
		return err
	}
	InitWithWriter(level, w)
	return nil
}

// InitWithWriter installs a text logger writing to w.
func InitWithWriter(level string, w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	Log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

func openSink(sink string) (io.Writer, error) {
	s := strings.TrimSpace(sink)
	switch {
	case s == "" || s == "stdout":
		return os.Stdout, nil
	case s == "stderr":
		return os.Stderr, nil
	case strings.HasPrefix(s, "file:"):
		path := strings.TrimPrefix(s, "file:")
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("log sink dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log sink: %w", err)
		}
		mu.Lock()
		closers = append(closers, f)
		mu.Unlock()
		return f, nil
	}
	return nil, fmt.Errorf("unknown log sink %q", sink)
}

// AttachAudit opens the JSON audit log under logsDir, rotating it aside when
// it grows past 10MB.
func AttachAudit(logsDir string) {
	fname := filepath.Join(logsDir, "audit.log")
	if fi, err := os.Stat(fname); err == nil {
		const maxSize = 10 * 1024 * 1024
		if fi.Size() > maxSize {
			bak := fname + "." + fi.ModTime().UTC().Format("20060102T150405Z")
			_ = os.Rename(fname, bak)
		}
	}
	f, err := os.OpenFile(fname, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		Error("audit_sink_open_failed", "path", fname, "error", err)
		return
	}
	mu.Lock()
	closers = append(closers, f)
	Audit = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))
	mu.Unlock()
	Info("audit_sink_attached", "path", fname)
}

// AuditEvent writes to the audit sink, or the main log when none is attached.
func AuditEvent(msg string, args ...any) {
	if Audit != nil {
		Audit.Info(msg, args...)
		return
	}
	Info(msg, args...)
}

// Sync closes any file sinks.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	for _, c := range closers {
		_ = c.Close()
	}
	closers = nil
}

func Debug(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Error(msg, args...)
}
