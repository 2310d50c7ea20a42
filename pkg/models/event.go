package models

import "time"

// EventType tags a ConversationEvent.
type EventType string

const (
	// EventMessage is a chat message from a member, the system or a human.
	EventMessage EventType = "message"
	// EventToolCall records a tool invocation request.
	EventToolCall EventType = "tool_call"
	// EventToolResult records the outcome of a tool invocation.
	EventToolResult EventType = "tool_result"
	// EventHandoff records explicit delegation between members.
	EventHandoff EventType = "handoff"
	// EventStatus changes the topic status explicitly.
	EventStatus EventType = "status"
	// EventHumanInput is text typed or dropped in by a human.
	EventHumanInput EventType = "human_input"
)

// Valid returns true if the event type is a known value.
func (t EventType) Valid() bool {
	switch t {
	case EventMessage, EventToolCall, EventToolResult, EventHandoff, EventStatus, EventHumanInput:
		return true
	default:
		return false
	}
}

// SystemAuthorID is the author id used for coordinator notices.
const SystemAuthorID = "system"

// HumanAuthorID is the author id used for human input.
const HumanAuthorID = "human"

// Author identifies who produced an event.
type Author struct {
	ID    string `json:"id"`
	Role  string `json:"role,omitempty"`
	Name  string `json:"name,omitempty"`
	Level Level  `json:"level,omitempty"`
}

// ConversationEvent is one immutable entry in a topic's history.
// Which optional fields are populated depends on Type.
type ConversationEvent struct {
	// ID is unique per event.
	ID string `json:"id"`
	// Type tags the payload.
	Type EventType `json:"type"`
	// TopicID is the thread this event belongs to.
	TopicID string `json:"topic_id"`
	// Author produced the event (message, human_input, tool_call).
	Author Author `json:"author"`
	// Body is the message text or tool output.
	Body string `json:"body,omitempty"`
	// Mentions are roster ids referenced with @id in Body.
	Mentions []string `json:"mentions,omitempty"`
	// Tool is the tool name for tool_call / tool_result events.
	Tool string `json:"tool,omitempty"`
	// ToolArgs is the raw JSON argument payload for tool_call events.
	ToolArgs string `json:"tool_args,omitempty"`
	// Success is set on tool_result events.
	Success bool `json:"success,omitempty"`
	// From and To describe a handoff.
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
	// Status is the new topic status for status events.
	Status TopicStatus `json:"status,omitempty"`
	// Timestamp is when the event was produced.
	Timestamp time.Time `json:"timestamp"`
}

// TopicStatus is the lifecycle state of a topic.
type TopicStatus string

const (
	TopicPending    TopicStatus = "pending"
	TopicInProgress TopicStatus = "in_progress"
	TopicReview     TopicStatus = "review"
	TopicDone       TopicStatus = "done"
	TopicBlocked    TopicStatus = "blocked"
)

// Valid returns true if the status is a known value.
func (s TopicStatus) Valid() bool {
	switch s {
	case TopicPending, TopicInProgress, TopicReview, TopicDone, TopicBlocked:
		return true
	default:
		return false
	}
}

// TopicState is a conversation thread with its full event history.
type TopicState struct {
	ID      string              `json:"id"`
	Title   string              `json:"title"`
	Summary string              `json:"summary,omitempty"`
	Events  []ConversationEvent `json:"events"`
	Status  TopicStatus         `json:"status"`
}

// AgentOutput is what an agent returns from one turn. Missing fields are
// filled in by the coordinator before the message is logged.
type AgentOutput struct {
	Type      EventType `json:"type,omitempty"`
	TopicID   string    `json:"topic_id,omitempty"`
	AuthorID  string    `json:"author_id,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}
