package inbox

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newInbox(t *testing.T) (*Inbox, string) {
	t.Helper()
	dir := t.TempDir()
	in, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { in.Close() })
	return in, dir
}

func waitInput(t *testing.T, in *Inbox) Input {
	t.Helper()
	select {
	case got := <-in.Inputs():
		return got
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for input")
		return Input{}
	}
}

func waitSignal(t *testing.T, in *Inbox) Signal {
	t.Helper()
	select {
	case got := <-in.Signals():
		return got
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal")
		return Signal{}
	}
}

func TestNew_CreatesLayout(t *testing.T) {
	_, dir := newInbox(t)
	for _, sub := range []string{"inbox", "signals"} {
		if info, err := os.Stat(filepath.Join(dir, sub)); err != nil || !info.IsDir() {
			t.Errorf("expected %s directory, got %v", sub, err)
		}
	}
}

func TestScan_ConsumesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := Submit(dir, "topic-1", "@dev please retry"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "inbox", "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "inbox", "blank.md"), []byte("  \n"), 0644); err != nil {
		t.Fatal(err)
	}

	in, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer in.Close()
	if err := in.Scan(); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	got := waitInput(t, in)
	if got.Topic != "topic-1" || got.Text != "@dev please retry" {
		t.Errorf("unexpected input %+v", got)
	}
	if _, err := os.Stat(InputPath(dir, "topic-1")); !os.IsNotExist(err) {
		t.Error("expected the consumed file removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "inbox", "notes.txt")); err != nil {
		t.Error("expected non-markdown files left alone")
	}

	// A second scan finds nothing new.
	in.Scan()
	select {
	case extra := <-in.Inputs():
		t.Errorf("expected no duplicate delivery, got %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubmit_AppendsToPendingInput(t *testing.T) {
	dir := t.TempDir()
	if err := Submit(dir, "t", "first"); err != nil {
		t.Fatal(err)
	}
	if err := Submit(dir, "t", "second"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(InputPath(dir, "t"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "first\n\nsecond\n" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestSubmit_RejectsBadTopic(t *testing.T) {
	for _, topic := range []string{"", "../escape", `a\b`} {
		if err := Submit(t.TempDir(), topic, "x"); err == nil {
			t.Errorf("expected error for topic %q", topic)
		}
	}
}

func TestScan_SyncsSignals(t *testing.T) {
	in, dir := newInbox(t)
	if err := SendSignal(dir, SignalPause); err != nil {
		t.Fatal(err)
	}
	if err := in.Scan(); err != nil {
		t.Fatal(err)
	}
	if !in.Paused() {
		t.Fatal("expected paused")
	}

	ClearSignals(dir)
	if err := in.Scan(); err != nil {
		t.Fatal(err)
	}
	if in.Paused() {
		t.Error("expected pause lifted once the file is gone")
	}
	if in.ShouldStop() {
		t.Error("expected no stop")
	}
}

func TestWatcher_DeliversInputAndSignals(t *testing.T) {
	in, dir := newInbox(t)
	if !in.Watching() {
		t.Skip("file watcher unavailable")
	}

	if err := Submit(dir, "topic-2", "status please"); err != nil {
		t.Fatal(err)
	}
	if got := waitInput(t, in); got.Topic != "topic-2" || got.Text != "status please" {
		t.Errorf("unexpected input %+v", got)
	}

	if err := SendSignal(dir, SignalStop); err != nil {
		t.Fatal(err)
	}
	if got := waitSignal(t, in); got.Name != SignalStop || !got.On {
		t.Errorf("unexpected signal %+v", got)
	}
	if !in.ShouldStop() {
		t.Error("expected stop latched")
	}

	// Stop stays latched after the file goes away.
	ClearSignals(dir)
	time.Sleep(50 * time.Millisecond)
	if !in.ShouldStop() {
		t.Error("expected stop to be permanent")
	}
}

func TestClose_Idempotent(t *testing.T) {
	in, _ := newInbox(t)
	if err := in.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := in.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestClearSignal(t *testing.T) {
	dir := t.TempDir()
	if err := SendSignal(dir, SignalPause); err != nil {
		t.Fatal(err)
	}
	if err := ClearSignal(dir, SignalPause); err != nil {
		t.Fatalf("ClearSignal failed: %v", err)
	}
	if _, err := os.Stat(SignalPath(dir, SignalPause)); !os.IsNotExist(err) {
		t.Error("expected pause file removed")
	}
	if err := ClearSignal(dir, SignalPause); err != nil {
		t.Errorf("expected missing file tolerated, got %v", err)
	}
}
