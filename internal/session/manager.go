// Package session keeps the append-only conversation history for each topic.
// It is the source of truth for the recent context handed to agents.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/crew/pkg/models"
)

// Manager stores conversation events per topic and derives topic status.
// All history is kept in memory for the life of the session.
type Manager struct {
	// topics maps topic IDs to their state.
	topics map[string]*models.TopicState
	// order records topic creation order for listing.
	order []string
	// mu protects all fields.
	mu sync.RWMutex
}

// NewManager creates an empty event log.
func NewManager() *Manager {
	return &Manager{
		topics: make(map[string]*models.TopicState),
	}
}

// CreateTopic registers a topic with a title. It is a no-op for an existing
// topic other than filling in a missing title.
func (m *Manager) CreateTopic(id, title string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.topicLocked(id)
	if t.Title == "" {
		t.Title = title
	}
}

// AppendEvent stores the event under its topic, creating the topic on first use,
// and applies the status rule. The stored event is returned with ID and
// Timestamp filled in if they were empty.
func (m *Manager) AppendEvent(ev models.ConversationEvent) models.ConversationEvent {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.Mentions != nil {
		ev.Mentions = append([]string(nil), ev.Mentions...)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.topicLocked(ev.TopicID)
	t.Events = append(t.Events, ev)
	t.Status = nextStatus(t.Status, ev)
	return ev
}

// nextStatus is a pure function of the current status and the appended event,
// so replaying a sequence reproduces the same status.
func nextStatus(cur models.TopicStatus, ev models.ConversationEvent) models.TopicStatus {
	switch ev.Type {
	case models.EventStatus:
		if ev.Status.Valid() {
			return ev.Status
		}
	case models.EventMessage:
		next := cur
		if next == models.TopicPending {
			next = models.TopicInProgress
		}
		if ev.Author.Level == models.LevelJunior {
			next = models.TopicReview
		}
		return next
	}
	return cur
}

// topicLocked returns the topic, creating it if needed. Caller must hold m.mu.
func (m *Manager) topicLocked(id string) *models.TopicState {
	t, ok := m.topics[id]
	if !ok {
		t = &models.TopicState{ID: id, Status: models.TopicPending}
		m.topics[id] = t
		m.order = append(m.order, id)
	}
	return t
}

// GetRecentEvents returns the last limit events of a topic in original order.
// A limit <= 0 returns the full history. Unknown topics yield nil.
func (m *Manager) GetRecentEvents(topicID string, limit int) []models.ConversationEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.topics[topicID]
	if !ok {
		return nil
	}
	events := t.Events
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	out := make([]models.ConversationEvent, len(events))
	copy(out, events)
	return out
}

// LastMessageBy returns the body of the most recent message authored by agentID
// in the topic, and false if there is none.
func (m *Manager) LastMessageBy(topicID, agentID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.topics[topicID]
	if !ok {
		return "", false
	}
	for i := len(t.Events) - 1; i >= 0; i-- {
		ev := t.Events[i]
		if ev.Type == models.EventMessage && ev.Author.ID == agentID {
			return ev.Body, true
		}
	}
	return "", false
}

// Topic returns a copy of the topic state.
func (m *Manager) Topic(id string) (models.TopicState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.topics[id]
	if !ok {
		return models.TopicState{}, false
	}
	c := *t
	c.Events = append([]models.ConversationEvent(nil), t.Events...)
	return c, true
}

// Status returns the current status of a topic. Unknown topics are pending.
func (m *Manager) Status(id string) models.TopicStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if t, ok := m.topics[id]; ok {
		return t.Status
	}
	return models.TopicPending
}

// Topics returns topic IDs in creation order.
func (m *Manager) Topics() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// TopicSummary is a one-line view of a topic for status output.
type TopicSummary struct {
	ID     string
	Title  string
	Status models.TopicStatus
	Events int
}

// Summaries returns per-topic counts sorted by topic ID.
func (m *Manager) Summaries() []TopicSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]TopicSummary, 0, len(m.topics))
	for _, t := range m.topics {
		out = append(out, TopicSummary{ID: t.ID, Title: t.Title, Status: t.Status, Events: len(t.Events)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
