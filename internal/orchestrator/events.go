package orchestrator

import (
	"time"

	"github.com/ShayCichocki/crew/pkg/models"
)

// EventType represents the type of session event on the outbound stream.
type EventType string

const (
	// EventMessage carries an appended agent or system message.
	EventMessage EventType = "message"
	// EventHumanInput carries appended human input.
	EventHumanInput EventType = "human_input"
	// EventStatus reports a topic status change.
	EventStatus EventType = "status"
	// EventToolResult carries an appended tool result.
	EventToolResult EventType = "tool_result"
	// EventTurnScheduled indicates a new turn entered the queue.
	EventTurnScheduled EventType = "turn_scheduled"
	// EventTurnRescheduled indicates a turn was put back because of capacity or a lock.
	EventTurnRescheduled EventType = "turn_rescheduled"
	// EventAwaitingHuman indicates autonomous turns are halted until human input.
	EventAwaitingHuman EventType = "awaiting_human"
	// EventTaskCreated indicates the lead delegated a task.
	EventTaskCreated EventType = "task_created"
	// EventTaskCompleted indicates a task was completed.
	EventTaskCompleted EventType = "task_completed"
)

// SessionEvent is one entry on the outbound stream. Only the fields relevant
// to Type are set.
type SessionEvent struct {
	// Type is the kind of event.
	Type EventType
	// TopicID is the topic the event belongs to.
	TopicID string
	// AgentID is the member the event concerns, if any.
	AgentID string
	// Event is the appended conversation event for message, human_input and
	// tool_result events.
	Event *models.ConversationEvent
	// Turn is the queued turn for turn_scheduled and turn_rescheduled events.
	Turn *models.ScheduledTurn
	// Task is the task for task_created and task_completed events.
	Task *models.Task
	// Status is the topic status for status events.
	Status models.TopicStatus
	// Message provides additional context.
	Message string
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
