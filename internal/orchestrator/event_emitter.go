package orchestrator

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// EventEmitter publishes session events to a single buffered channel.
// Emit never blocks for longer than the grace period, so the loop keeps
// running whether or not anyone is listening.
type EventEmitter struct {
	events       chan SessionEvent
	droppedCount atomic.Uint64
	onDrop       func()
	// mu is held for reading while sending so Close cannot race a send.
	mu     sync.RWMutex
	closed bool
}

// emitGrace is how long Emit waits on a full channel before dropping.
const emitGrace = 100 * time.Millisecond

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events: make(chan SessionEvent, bufferSize),
	}
}

// Emit sends an event to the events channel.
// If the channel is full, it tries with a timeout before dropping the event.
func (e *EventEmitter) Emit(event SessionEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case e.events <- event:
		return
	default:
	}

	timer := time.NewTimer(emitGrace)
	defer timer.Stop()
	select {
	case e.events <- event:
		return
	case <-timer.C:
		count := e.droppedCount.Add(1)
		if e.onDrop != nil {
			e.onDrop()
		}
		if count%10 == 1 { // Log every 10th drop to avoid spam
			log.Printf("[orchestrator] WARNING: Event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events.
func (e *EventEmitter) Events() <-chan SessionEvent {
	return e.events
}

// Close closes the events channel. Emit after Close is a no-op.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.events)
}
