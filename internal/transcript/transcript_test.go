package transcript

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/crew/internal/orchestrator"
	"github.com/ShayCichocki/crew/pkg/models"
)

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", FileName))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var roster = models.Roster{{ID: "lead", Role: "Team Lead"}, {ID: "dev"}}

func TestOpen_CreatesFileAndIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", FileName)
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected database file: %v", err)
	}
	db.Close()

	// Reopening re-runs migrations without error.
	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Errorf("second Migrate failed: %v", err)
	}
}

func TestPathForDataDir(t *testing.T) {
	if got := PathForDataDir(".crew"); got != filepath.Join(".crew", "transcript.db") {
		t.Errorf("unexpected path %q", got)
	}
}

func TestWriter_RecordsInOrder(t *testing.T) {
	db := setupTestDB(t)
	w, err := db.Begin("topic-1", "Build a parser", roster)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	msg := models.ConversationEvent{Type: models.EventMessage, TopicID: "topic-1", Author: models.Author{ID: "lead"}, Body: "@dev go"}
	tool := models.ConversationEvent{Type: models.EventToolResult, TopicID: "topic-1", Author: models.Author{ID: "dev"}, Tool: "fs", Body: "wrote 3 bytes", Success: true}
	turn := models.ScheduledTurn{AgentID: "dev", TopicID: "topic-1", Reason: models.TurnMention}
	task := &models.Task{ID: "t1", Status: models.TaskStatusPending, Description: "go"}

	events := []orchestrator.SessionEvent{
		{Type: orchestrator.EventMessage, TopicID: "topic-1", AgentID: "lead", Event: &msg},
		{Type: orchestrator.EventTaskCreated, TopicID: "topic-1", AgentID: "dev", Task: task},
		{Type: orchestrator.EventTurnScheduled, TopicID: "topic-1", AgentID: "dev", Turn: &turn, Message: "mention"},
		{Type: orchestrator.EventTurnRescheduled, TopicID: "topic-1", AgentID: "dev", Turn: &turn, Message: "dev is waiting for file:a.go"},
		{Type: orchestrator.EventToolResult, TopicID: "topic-1", AgentID: "dev", Event: &tool},
		{Type: orchestrator.EventStatus, TopicID: "topic-1", Status: models.TopicInProgress},
		{Type: orchestrator.EventAwaitingHuman, TopicID: "topic-1", AgentID: "dev"},
	}
	for _, ev := range events {
		if err := w.Record(ev); err != nil {
			t.Fatalf("Record(%s) failed: %v", ev.Type, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	got, err := db.Events(w.SessionID())
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("expected %d entries, got %d", len(events), len(got))
	}

	want := []struct {
		typ, author, body string
	}{
		{"message", "lead", "@dev go"},
		{"task_created", "dev", "t1 [pending] go"},
		{"turn_scheduled", "dev", "mention"},
		{"turn_rescheduled", "dev", "mention: dev is waiting for file:a.go"},
		{"tool_result", "dev", "fs ok: wrote 3 bytes"},
		{"status", "", "in_progress"},
		{"awaiting_human", "dev", ""},
	}
	for i, w := range want {
		e := got[i]
		if e.Seq != int64(i+1) || e.Type != w.typ || e.Author != w.author || e.Body != w.body {
			t.Errorf("entry %d: expected %+v, got %+v", i, w, e)
		}
		if e.Topic != "topic-1" || e.CreatedAt.IsZero() {
			t.Errorf("entry %d: missing topic or timestamp %+v", i, e)
		}
	}

	filtered, err := db.Events(w.SessionID(), "message", "tool_result")
	if err != nil || len(filtered) != 2 {
		t.Errorf("expected 2 filtered entries, got %d (%v)", len(filtered), err)
	}
}

func TestSessions(t *testing.T) {
	db := setupTestDB(t)
	first, err := db.Begin("a", "first", roster)
	if err != nil {
		t.Fatal(err)
	}
	first.Close()
	time.Sleep(2 * time.Millisecond)
	second, err := db.Begin("b", "second", roster)
	if err != nil {
		t.Fatal(err)
	}

	sessions, err := db.Sessions()
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != second.SessionID() || sessions[1].ID != first.SessionID() {
		t.Errorf("expected newest first, got %+v", sessions)
	}
	if sessions[1].EndedAt == nil || sessions[0].EndedAt != nil {
		t.Errorf("expected only the first session ended")
	}
	if len(sessions[0].Roster) != 2 || sessions[0].Roster[0] != "lead" || sessions[0].Request != "second" {
		t.Errorf("unexpected session %+v", sessions[0])
	}
}

func TestPurgeOlderThan(t *testing.T) {
	db := setupTestDB(t)
	w, err := db.Begin("a", "", roster)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Record(orchestrator.SessionEvent{Type: orchestrator.EventStatus, TopicID: "a", Status: models.TopicDone}); err != nil {
		t.Fatal(err)
	}

	if n, err := db.PurgeOlderThan(time.Hour); err != nil || n != 0 {
		t.Fatalf("expected nothing purged, got %d (%v)", n, err)
	}
	time.Sleep(2 * time.Millisecond)
	if n, err := db.PurgeOlderThan(time.Millisecond); err != nil || n != 1 {
		t.Fatalf("expected one session purged, got %d (%v)", n, err)
	}
	if entries, _ := db.Events(w.SessionID()); len(entries) != 0 {
		t.Errorf("expected events removed with their session, got %d", len(entries))
	}
}
