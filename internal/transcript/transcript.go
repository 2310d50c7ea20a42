package transcript

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/crew/internal/orchestrator"
	"github.com/ShayCichocki/crew/pkg/models"
)

// Session is one recorded crew run.
type Session struct {
	ID        string     `json:"id"`
	Topic     string     `json:"topic"`
	Request   string     `json:"request"`
	Roster    []string   `json:"roster"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Entry is one recorded outbound event.
type Entry struct {
	Seq       int64     `json:"seq"`
	Type      string    `json:"type"`
	Topic     string    `json:"topic"`
	Author    string    `json:"author,omitempty"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Writer appends one session's events in arrival order.
type Writer struct {
	db        *DB
	sessionID string
	seq       int64
	now       func() time.Time
	mu        sync.Mutex
}

// Begin records a new session and returns its writer.
func (db *DB) Begin(topic, request string, roster models.Roster) (*Writer, error) {
	ids, err := json.Marshal(roster.IDs())
	if err != nil {
		return nil, fmt.Errorf("marshal roster: %w", err)
	}
	w := &Writer{db: db, sessionID: uuid.New().String(), now: time.Now}

	db.mu.Lock()
	defer db.mu.Unlock()
	_, err = db.conn.Exec(`
		INSERT INTO sessions (id, topic, request, roster, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, w.sessionID, topic, request, string(ids), formatTime(w.now()))
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return w, nil
}

// SessionID returns the recorded session's id.
func (w *Writer) SessionID() string {
	return w.sessionID
}

// Record appends one outbound event.
func (w *Writer) Record(ev orchestrator.SessionEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	author, body := describe(ev)
	created := ev.Timestamp
	if created.IsZero() {
		created = w.now()
	}

	w.db.mu.Lock()
	defer w.db.mu.Unlock()
	_, err := w.db.conn.Exec(`
		INSERT INTO events (session_id, seq, type, topic, author, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, w.sessionID, w.seq+1, string(ev.Type), ev.TopicID, author, body, formatTime(created))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	w.seq++
	return nil
}

// Close marks the session ended.
func (w *Writer) Close() error {
	w.db.mu.Lock()
	defer w.db.mu.Unlock()
	if _, err := w.db.conn.Exec(`UPDATE sessions SET ended_at = ? WHERE id = ?`, formatTime(w.now()), w.sessionID); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// describe flattens an event into the author and body columns.
func describe(ev orchestrator.SessionEvent) (string, string) {
	author := ev.AgentID
	switch {
	case ev.Event != nil:
		body := ev.Event.Body
		if ev.Event.Type == models.EventToolResult {
			outcome := "ok"
			if !ev.Event.Success {
				outcome = "failed"
			}
			body = fmt.Sprintf("%s %s: %s", ev.Event.Tool, outcome, body)
		}
		return ev.Event.Author.ID, body
	case ev.Task != nil:
		return author, fmt.Sprintf("%s [%s] %s", ev.Task.ID, ev.Task.Status, ev.Task.Description)
	case ev.Type == orchestrator.EventStatus:
		return author, string(ev.Status)
	case ev.Turn != nil:
		if ev.Message != "" && ev.Message != string(ev.Turn.Reason) {
			return author, fmt.Sprintf("%s: %s", ev.Turn.Reason, ev.Message)
		}
		return author, string(ev.Turn.Reason)
	}
	return author, ev.Message
}

// Sessions returns recorded sessions, newest first.
func (db *DB) Sessions() ([]Session, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT id, topic, COALESCE(request, ''), roster, started_at, ended_at
		FROM sessions ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		var roster, started string
		var ended sql.NullString
		if err := rows.Scan(&s.ID, &s.Topic, &s.Request, &roster, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if err := json.Unmarshal([]byte(roster), &s.Roster); err != nil {
			return nil, fmt.Errorf("decode roster of %s: %w", s.ID, err)
		}
		if s.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("parse started_at of %s: %w", s.ID, err)
		}
		s.EndedAt = parseNullableTime(ended)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Events returns a session's entries in order. Types filters by event type
// when non-empty.
func (db *DB) Events(sessionID string, types ...string) ([]Entry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT seq, type, topic, COALESCE(author, ''), COALESCE(body, ''), created_at
		FROM events WHERE session_id = ? ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	keep := make(map[string]bool, len(types))
	for _, t := range types {
		keep[t] = true
	}

	var out []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.Seq, &e.Type, &e.Topic, &e.Author, &e.Body, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if len(keep) > 0 && !keep[e.Type] {
			continue
		}
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes sessions started before now-olderThan along with
// their events. It returns the number of sessions deleted.
func (db *DB) PurgeOlderThan(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	db.mu.Lock()
	defer db.mu.Unlock()
	result, err := db.conn.Exec(`DELETE FROM sessions WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}
