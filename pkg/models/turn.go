package models

import "time"

// TurnReason explains why a turn was scheduled.
type TurnReason string

const (
	// TurnInit is the first turn of a topic, given to the team lead.
	TurnInit TurnReason = "init"
	// TurnMention is a turn for a member addressed with @id.
	TurnMention TurnReason = "mention"
	// TurnFollowup continues work after a tool call, error or report.
	TurnFollowup TurnReason = "followup"
	// TurnReview asks a more senior member to look at a message.
	TurnReview TurnReason = "review"
	// TurnHuman responds to human input.
	TurnHuman TurnReason = "human"
)

// Valid returns true if the reason is a known value.
func (r TurnReason) Valid() bool {
	switch r {
	case TurnInit, TurnMention, TurnFollowup, TurnReview, TurnHuman:
		return true
	default:
		return false
	}
}

// MetaAuthorID is the metadata key carrying the reviewed author on review turns.
const MetaAuthorID = "authorId"

// ScheduledTurn is one pending entry in the turn queue.
type ScheduledTurn struct {
	// AgentID is the roster member that will act.
	AgentID string `json:"agent_id"`
	// TopicID is the thread the turn belongs to.
	TopicID string `json:"topic_id"`
	// Reason explains why the turn exists.
	Reason TurnReason `json:"reason"`
	// At is the logical timestamp; the queue is ordered by it.
	At time.Time `json:"at"`
	// Metadata carries reason-specific data such as MetaAuthorID.
	Metadata map[string]string `json:"metadata,omitempty"`

	seq uint64
}

// Seq returns the enqueue sequence number used to break timestamp ties.
func (t ScheduledTurn) Seq() uint64 {
	return t.seq
}

// WithSeq returns a copy of t carrying sequence number n.
func (t ScheduledTurn) WithSeq(n uint64) ScheduledTurn {
	t.seq = n
	return t
}

// Before orders turns by timestamp, then enqueue sequence.
func (t ScheduledTurn) Before(o ScheduledTurn) bool {
	if !t.At.Equal(o.At) {
		return t.At.Before(o.At)
	}
	return t.seq < o.seq
}

// ToolResult is the outcome of one tool execution.
type ToolResult struct {
	ToolName   string `json:"tool_name"`
	Success    bool   `json:"success"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}
