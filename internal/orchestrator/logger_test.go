package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDebugLogger_NamedSharesFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "logs", "debug.log")
	root, err := NewDebugLogger(p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	topicLog := root.Named("topic main")
	topicLog.Log("turn %d", 1)
	topicLog.Named("scheduler").Log("enqueued")
	root.Log("plain")
	if err := root.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header plus 3 lines, got %d:\n%s", len(lines), data)
	}
	if !strings.Contains(lines[0], "=== crew debug log opened") {
		t.Errorf("expected header, got %q", lines[0])
	}
	for i, want := range []string{"] [topic main] turn 1", "] [topic main/scheduler] enqueued", "] plain"} {
		if !strings.HasSuffix(lines[i+1], want) {
			t.Errorf("line %d: expected suffix %q, got %q", i+1, want, lines[i+1])
		}
	}
}

func TestDebugLogger_DropsLinesAfterClose(t *testing.T) {
	p := filepath.Join(t.TempDir(), "debug.log")
	root, err := NewDebugLogger(p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	child := root.Named("child")
	if err := child.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := root.Close(); err != nil {
		t.Errorf("expected a second close to be a no-op, got %v", err)
	}
	root.Log("late root line")
	child.Log("late child line")

	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(data), "late") {
		t.Errorf("expected no lines after close:\n%s", data)
	}
}

func TestDebugLogger_NopAndNil(t *testing.T) {
	var nilLogger *DebugLogger
	nilLogger.Log("ignored")
	nilLogger.Named("x").Log("ignored")
	if err := nilLogger.Close(); err != nil {
		t.Errorf("expected nil close to succeed, got %v", err)
	}

	l, err := NewDebugLogger("")
	if err != nil {
		t.Fatalf("empty path: %v", err)
	}
	l.Log("ignored")
	if err := l.Close(); err != nil {
		t.Errorf("expected nop close to succeed, got %v", err)
	}

	if l := NewDebugLoggerForDataDir(filepath.Join(string([]byte{0}), "bad")); l == nil {
		t.Error("expected a discarding logger when the file cannot be opened")
	}
}
