// Package tools defines the Tool capability and the dispatcher the
// coordinator uses to run inline tool calls.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/crew/pkg/models"
)

// ErrUnknownTool is returned when no tool is registered under a name.
var ErrUnknownTool = errors.New("unknown tool")

// Options carries per-call execution policy.
type Options struct {
	// Sandbox constrains which actions are auto-permitted.
	Sandbox models.SandboxLevel
	// AgentID is the member that issued the call.
	AgentID string
}

// Tool executes one call with JSON arguments. A returned error means the tool
// could not run at all; a tool that ran and failed reports Success=false.
type Tool interface {
	Name() string
	Execute(ctx context.Context, args string, opts Options) (models.ToolResult, error)
}

// AuditEntry is one dispatched call and its result.
type AuditEntry struct {
	AgentID string            `json:"agent_id"`
	Args    string            `json:"args"`
	Result  models.ToolResult `json:"result"`
	At      time.Time         `json:"at"`
}

// Dispatcher maps tool names to tools and keeps an append-only audit trail.
type Dispatcher struct {
	tools map[string]Tool
	audit []AuditEntry
	now   func() time.Time
	mu    sync.RWMutex
}

// NewDispatcher creates a dispatcher with the given tools registered.
func NewDispatcher(tools ...Tool) *Dispatcher {
	d := &Dispatcher{
		tools: make(map[string]Tool),
		now:   time.Now,
	}
	for _, t := range tools {
		d.Register(t)
	}
	return d
}

// Register adds or replaces a tool. Names are case-insensitive.
func (d *Dispatcher) Register(t Tool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tools[key(t.Name())] = t
}

// Lookup returns the tool registered under name.
func (d *Dispatcher) Lookup(name string) (Tool, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tools[key(name)]
	return t, ok
}

// Names returns registered tool names, sorted.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.tools))
	for _, t := range d.tools {
		names = append(names, t.Name())
	}
	sort.Strings(names)
	return names
}

// Execute runs the named tool and records the result. Unknown tools and tool
// errors come back as failed results so the caller always has a ToolResult to
// report; the error is still returned for logging.
func (d *Dispatcher) Execute(ctx context.Context, name, args string, opts Options) (models.ToolResult, error) {
	start := d.now()

	t, ok := d.Lookup(name)
	var (
		result models.ToolResult
		err    error
	)
	if !ok {
		err = fmt.Errorf("%w: %s", ErrUnknownTool, name)
	} else {
		result, err = t.Execute(ctx, args, opts)
	}
	if err != nil {
		result = models.ToolResult{Success: false, Error: err.Error()}
	}
	if result.ToolName == "" {
		result.ToolName = name
	}
	if result.DurationMs == 0 {
		result.DurationMs = d.now().Sub(start).Milliseconds()
	}

	d.mu.Lock()
	d.audit = append(d.audit, AuditEntry{
		AgentID: opts.AgentID,
		Args:    args,
		Result:  result,
		At:      start,
	})
	d.mu.Unlock()

	return result, err
}

// Audit returns a copy of the audit trail in dispatch order.
func (d *Dispatcher) Audit() []AuditEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]AuditEntry(nil), d.audit...)
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
