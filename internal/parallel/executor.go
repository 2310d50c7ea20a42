// Package parallel bounds how many agents are active at once and arbitrates
// exclusive, agent-owned locks on named resources such as files.
package parallel

import (
	"sort"
	"sync"
	"time"

	"github.com/ShayCichocki/crew/internal/metrics"
)

// DefaultMaxConcurrent is the admission capacity when none is configured.
const DefaultMaxConcurrent = 3

// Lock is an exclusive claim on a resource key.
type Lock struct {
	Resource   string
	Owner      string
	AcquiredAt time.Time
}

// Executor combines admission control and resource locking.
// Lock acquisition is atomic across all keys of a call, so it stays correct
// when several workers dispatch concurrently.
type Executor struct {
	// maxConcurrent is the capacity of the active set.
	maxConcurrent int
	// active maps agent IDs to when they became active.
	active map[string]time.Time
	// locks maps resource keys to their current lock.
	locks map[string]Lock
	// extractors maps lowercased tool names to resource extractors.
	extractors map[string]ResourceExtractor

	metrics  *metrics.Metrics
	now      func() time.Time
	debugLog func(format string, args ...interface{})

	// mu protects active, locks and extractors.
	mu sync.Mutex
}

// Option configures an Executor.
type Option func(*Executor)

// WithMetrics sets the collectors updated on admission and lock changes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExecutor creates an Executor admitting at most maxConcurrent agents.
// Non-positive values fall back to DefaultMaxConcurrent.
func NewExecutor(maxConcurrent int, opts ...Option) *Executor {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	e := &Executor{
		maxConcurrent: maxConcurrent,
		active:        make(map[string]time.Time),
		locks:         make(map[string]Lock),
		extractors:    make(map[string]ResourceExtractor),
		now:           time.Now,
		debugLog:      func(format string, args ...interface{}) {},
	}
	for _, name := range fileSystemTools {
		e.extractors[name] = fileResources
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetDebugLog sets the debug logging function.
func (e *Executor) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		e.debugLog = fn
	}
}

// MaxConcurrent returns the admission capacity.
func (e *Executor) MaxConcurrent() int {
	return e.maxConcurrent
}

// RegisterExtractor adds or replaces the resource extractor for a tool.
func (e *Executor) RegisterExtractor(toolName string, fn ResourceExtractor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.extractors[normalizeTool(toolName)] = fn
}

// CanAgentStart is false if the agent is already active or capacity is full.
func (e *Executor) CanAgentStart(agentID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canStartLocked(agentID)
}

func (e *Executor) canStartLocked(agentID string) bool {
	if _, busy := e.active[agentID]; busy {
		return false
	}
	return len(e.active) < e.maxConcurrent
}

// MarkAgentActive adds the agent to the active set.
func (e *Executor) MarkAgentActive(agentID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active[agentID] = e.now()
	e.metrics.SetActiveAgents(len(e.active))
	e.debugLog("[parallel] %s active (%d/%d)", agentID, len(e.active), e.maxConcurrent)
}

// TryStart checks admission and marks the agent active in one step.
func (e *Executor) TryStart(agentID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.canStartLocked(agentID) {
		e.metrics.AdmissionRejected()
		e.debugLog("[parallel] admission refused for %s (%d/%d active)", agentID, len(e.active), e.maxConcurrent)
		return false
	}
	e.active[agentID] = e.now()
	e.metrics.SetActiveAgents(len(e.active))
	e.debugLog("[parallel] %s active (%d/%d)", agentID, len(e.active), e.maxConcurrent)
	return true
}

// MarkAgentIdle removes the agent from the active set and force-releases every
// lock it owns. It returns the released keys.
func (e *Executor) MarkAgentIdle(agentID string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.active, agentID)
	var released []string
	for key, l := range e.locks {
		if l.Owner == agentID {
			delete(e.locks, key)
			released = append(released, key)
		}
	}
	sort.Strings(released)
	e.metrics.SetActiveAgents(len(e.active))
	e.metrics.SetHeldLocks(len(e.locks))
	if len(released) > 0 {
		e.debugLog("[parallel] %s idle, released %v", agentID, released)
	}
	return released
}

// IsActive reports whether the agent holds an admission slot.
func (e *Executor) IsActive(agentID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[agentID]
	return ok
}

// ActiveAgents returns the active agent ids, sorted.
func (e *Executor) ActiveAgents() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, 0, len(e.active))
	for id := range e.active {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ExtractResourcesFromTool derives the resource keys a tool call touches.
// Tools without a registered extractor touch nothing.
func (e *Executor) ExtractResourcesFromTool(toolName, args string) []string {
	e.mu.Lock()
	fn := e.extractors[normalizeTool(toolName)]
	e.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(args)
}

// CanExecuteTool reports, without changing state, whether every resource of
// the call is free or already owned by agentID.
func (e *Executor) CanExecuteTool(agentID, toolName, args string) bool {
	keys := e.ExtractResourcesFromTool(toolName, args)

	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.conflictLocked(agentID, keys)
	return ok
}

// AcquireToolLocks acquires every resource of the call for agentID, or none.
// Locks already owned by agentID are renewed.
func (e *Executor) AcquireToolLocks(agentID, toolName, args string) bool {
	return e.AcquireLocks(agentID, e.ExtractResourcesFromTool(toolName, args))
}

// AcquireLocks acquires all keys for agentID atomically. If any key is held by
// a different owner no lock state changes.
func (e *Executor) AcquireLocks(agentID string, keys []string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if key, ok := e.conflictLocked(agentID, keys); !ok {
		e.metrics.LockConflict()
		e.debugLog("[parallel] %s blocked on %s (held by %s)", agentID, key, e.locks[key].Owner)
		return false
	}
	now := e.now()
	for _, key := range keys {
		e.locks[key] = Lock{Resource: key, Owner: agentID, AcquiredAt: now}
	}
	e.metrics.SetHeldLocks(len(e.locks))
	return true
}

// ReleaseToolLocks releases the keys derived for the call that agentID owns.
func (e *Executor) ReleaseToolLocks(agentID, toolName, args string) {
	e.ReleaseLocks(agentID, e.ExtractResourcesFromTool(toolName, args))
}

// ReleaseLocks releases the given keys if agentID owns them.
func (e *Executor) ReleaseLocks(agentID string, keys []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, key := range keys {
		if l, ok := e.locks[key]; ok && l.Owner == agentID {
			delete(e.locks, key)
		}
	}
	e.metrics.SetHeldLocks(len(e.locks))
}

// LockOwner returns the owner of a resource key.
func (e *Executor) LockOwner(key string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[key]
	return l.Owner, ok
}

// Locks returns a snapshot of every held lock, sorted by resource.
func (e *Executor) Locks() []Lock {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Lock, 0, len(e.locks))
	for _, l := range e.locks {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out
}

// conflictLocked returns the first key held by someone other than agentID.
// Caller must hold e.mu.
func (e *Executor) conflictLocked(agentID string, keys []string) (string, bool) {
	for _, key := range keys {
		if l, ok := e.locks[key]; ok && l.Owner != agentID {
			return key, false
		}
	}
	return "", true
}
