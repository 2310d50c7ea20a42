// Package agent defines the capability every team member implements and a
// registry that builds members' backends from their configured model string.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ShayCichocki/crew/pkg/models"
)

// ErrNoBackend indicates no registered factory matches a member's model.
var ErrNoBackend = errors.New("no agent backend for model")

// TurnContext is everything an agent sees for one turn.
type TurnContext struct {
	// Self is the roster entry of the acting member.
	Self models.Member
	// TopicID is the thread the turn belongs to.
	TopicID string
	// Reason is why the turn was scheduled.
	Reason models.TurnReason
	// Metadata is the scheduled turn's metadata (e.g. the reviewed author).
	Metadata map[string]string
	// RecentEvents is the sliding window of topic history.
	RecentEvents []models.ConversationEvent
	// Roster is the full team.
	Roster models.Roster
	// ProjectSpec is the shared project description.
	ProjectSpec string
	// Level is the member's seniority.
	Level models.Level
	// Mode is the session delivery mode.
	Mode models.DeliveryMode
	// Sandbox is the session sandbox level.
	Sandbox models.SandboxLevel
	// TaskSummary renders the task tracker state.
	TaskSummary string
}

// Agent produces one message per turn. Implementations may block on network
// or process I/O and should honor ctx cancellation.
type Agent interface {
	Execute(ctx context.Context, tc TurnContext) (models.AgentOutput, error)
}

// Func adapts a function to Agent.
type Func func(ctx context.Context, tc TurnContext) (models.AgentOutput, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, tc TurnContext) (models.AgentOutput, error) {
	return f(ctx, tc)
}

// Factory builds an agent for a roster member.
type Factory func(member models.Member) (Agent, error)

// Registry maps model-string prefixes to factories. The longest matching
// prefix wins; an empty prefix acts as the default.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with the built-in stand-in and scripted
// backends. Members without a model get the stand-in.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("", func(m models.Member) (Agent, error) { return NewFallback(m), nil })
	r.Register(FallbackModel, func(m models.Member) (Agent, error) { return NewFallback(m), nil })
	r.Register(ScriptPrefix, func(m models.Member) (Agent, error) {
		return LoadScript(strings.TrimPrefix(m.Model, ScriptPrefix))
	})
	return r
}

// Register adds or replaces the factory for a prefix.
func (r *Registry) Register(prefix string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[prefix] = f
}

// Prefixes returns registered prefixes, sorted.
func (r *Registry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for p := range r.factories {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// New builds the agent for a member from its Model string.
func (r *Registry) New(member models.Member) (Agent, error) {
	r.mu.RLock()
	var best string
	var factory Factory
	found := false
	for prefix, f := range r.factories {
		if !strings.HasPrefix(member.Model, prefix) {
			continue
		}
		if !found || len(prefix) > len(best) {
			best, factory, found = prefix, f, true
		}
	}
	r.mu.RUnlock()

	if !found {
		return nil, fmt.Errorf("%w %q (member %s)", ErrNoBackend, member.Model, member.ID)
	}
	a, err := factory(member)
	if err != nil {
		return nil, fmt.Errorf("build agent %s: %w", member.ID, err)
	}
	return a, nil
}

// Build instantiates every roster member.
func (r *Registry) Build(roster models.Roster) (map[string]Agent, error) {
	out := make(map[string]Agent, len(roster))
	for _, m := range roster {
		a, err := r.New(m)
		if err != nil {
			return nil, err
		}
		out[m.ID] = a
	}
	return out, nil
}
