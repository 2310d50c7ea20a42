package orchestrator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DebugLogFile is the debug log's path relative to the data directory.
const DebugLogFile = "logs/orchestrator-debug.log"

// DebugLogger appends timestamped lines to a session debug file. Loggers
// derived with Named write to the same file and tag every line.
//
// A nil logger, a NopLogger and a closed logger discard everything, so
// components can hold one unconditionally.
type DebugLogger struct {
	sink *logSink
	tag  string
}

// logSink is the file shared by a logger and everything derived from it.
type logSink struct {
	w      io.WriteCloser
	now    func() time.Time
	closed bool
	mu     sync.Mutex
}

// NewDebugLogger opens logPath for appending, creating parent directories.
// An empty path returns a logger that discards everything.
func NewDebugLogger(logPath string) (*DebugLogger, error) {
	if logPath == "" {
		return NopLogger(), nil
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &DebugLogger{sink: &logSink{w: f, now: time.Now}}
	l.Log("=== crew debug log opened %s ===", time.Now().Format(time.RFC3339))
	return l, nil
}

// NewDebugLoggerForDataDir opens <dataDir>/logs/orchestrator-debug.log,
// falling back to a discarding logger if the file cannot be opened.
func NewDebugLoggerForDataDir(dataDir string) *DebugLogger {
	l, err := NewDebugLogger(filepath.Join(dataDir, DebugLogFile))
	if err != nil {
		return NopLogger()
	}
	return l
}

// NopLogger returns a logger that discards everything.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

// Named returns a logger sharing l's file that prefixes lines with [name].
// Names nest: l.Named("a").Named("b") tags lines [a/b].
func (l *DebugLogger) Named(name string) *DebugLogger {
	if l == nil {
		return NopLogger()
	}
	tag := l.tag
	switch {
	case tag == "":
		tag = name
	case name != "":
		tag += "/" + name
	}
	return &DebugLogger{sink: l.sink, tag: tag}
}

// Log writes one line. It matches the func(format, args...) shape taken by
// the scheduler, executor and task hooks.
func (l *DebugLogger) Log(format string, args ...interface{}) {
	if l == nil || l.sink == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)

	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	ts := s.now().Format("15:04:05.000")
	if l.tag != "" {
		fmt.Fprintf(s.w, "[%s] [%s] %s\n", ts, l.tag, msg)
		return
	}
	fmt.Fprintf(s.w, "[%s] %s\n", ts, msg)
}

// Close closes the shared file. Later writes through l or any logger derived
// from it are dropped. Closing twice is a no-op.
func (l *DebugLogger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.w.Close()
}
