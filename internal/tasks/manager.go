// Package tasks tracks delegated work items: their state machine, per-agent
// active index, dependency gating and lifecycle hooks for external systems.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/crew/pkg/models"
)

var (
	// ErrTaskNotFound is returned for an unknown task id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrDependencyNotMet is returned when a dependency is missing or not completed.
	ErrDependencyNotMet = errors.New("dependency not completed")
	// ErrInvalidTransition is returned when the state machine forbids the change.
	ErrInvalidTransition = errors.New("invalid task transition")
)

// CreateRequest describes a new task.
type CreateRequest struct {
	Description string
	Assignee    string
	AssignedBy  string
	DependsOn   []string
	Metadata    map[string]string
}

// Manager owns every task in a session. It is safe for concurrent use.
// Hooks are invoked outside the lock, after the local transition is committed.
type Manager struct {
	// tasks maps task IDs to tasks.
	tasks map[string]*models.Task
	// order records creation order.
	order []string
	// active maps agent IDs to their non-terminal task IDs in creation order.
	active map[string][]string

	hooks Hooks
	creds CredentialLookup
	logf  func(format string, args ...interface{})
	now   func() time.Time

	// mu protects tasks, order and active.
	mu sync.RWMutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithHooks sets the lifecycle hooks.
func WithHooks(h Hooks) Option {
	return func(m *Manager) { m.hooks = h }
}

// WithCredentials sets the credential lookup used to build hook contexts.
func WithCredentials(c CredentialLookup) Option {
	return func(m *Manager) { m.creds = c }
}

// WithLogger sets the log function used for hook failures.
func WithLogger(fn func(format string, args ...interface{})) Option {
	return func(m *Manager) {
		if fn != nil {
			m.logf = fn
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates an empty tracker.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		tasks:  make(map[string]*models.Task),
		active: make(map[string][]string),
		logf:   log.Printf,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateTask registers a pending task and fires OnCreate. A ticket reference
// returned by the hook is merged into the task.
func (m *Manager) CreateTask(ctx context.Context, req CreateRequest) *models.Task {
	task := &models.Task{
		ID:          uuid.New().String(),
		Description: strings.TrimSpace(req.Description),
		Assignee:    req.Assignee,
		AssignedBy:  req.AssignedBy,
		Status:      models.TaskStatusPending,
		CreatedAt:   m.now(),
	}
	if len(req.DependsOn) > 0 {
		task.DependsOn = append([]string(nil), req.DependsOn...)
	}
	if len(req.Metadata) > 0 {
		task.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			task.Metadata[k] = v
		}
	}

	m.mu.Lock()
	m.tasks[task.ID] = task
	m.order = append(m.order, task.ID)
	m.active[task.Assignee] = append(m.active[task.Assignee], task.ID)
	snapshot := task.Clone()
	m.mu.Unlock()

	if m.hooks != nil {
		ref, err := m.safeCreate(ctx, snapshot)
		if err != nil {
			m.logf("[tasks] onCreate hook failed for %s: %v", task.ID, err)
		} else if ref != nil {
			m.mu.Lock()
			task.ExternalTicketID = ref.ExternalTicketID
			task.ExternalTicketURL = ref.ExternalTicketURL
			snapshot = task.Clone()
			m.mu.Unlock()
		}
	}
	return snapshot
}

// StartTask moves a pending task to in_progress. It returns false if the task
// is unknown, not pending, or any dependency is missing or not completed.
func (m *Manager) StartTask(ctx context.Context, id string) bool {
	return m.StartTaskErr(ctx, id) == nil
}

// StartTaskErr is StartTask with the reason for rejection.
func (m *Manager) StartTaskErr(ctx context.Context, id string) error {
	m.mu.Lock()
	task, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("start %s: %w", id, ErrTaskNotFound)
	}
	if !task.Status.CanTransition(models.TaskStatusInProgress) {
		m.mu.Unlock()
		return fmt.Errorf("start %s from %s: %w", id, task.Status, ErrInvalidTransition)
	}
	if dep, ok := m.unmetDependencyLocked(task); !ok {
		m.mu.Unlock()
		return fmt.Errorf("start %s: dependency %s: %w", id, dep, ErrDependencyNotMet)
	}
	m.startLocked(task)
	snapshot := task.Clone()
	m.mu.Unlock()

	m.fire(ctx, "onStart", snapshot, m.hookStart)
	return nil
}

// CompleteTask marks a non-terminal task completed. A pending task is started
// implicitly (StartedAt stamped) so its status history stays monotonic.
func (m *Manager) CompleteTask(ctx context.Context, id, result string) bool {
	m.mu.Lock()
	task, ok := m.tasks[id]
	if !ok || !task.Active() {
		m.mu.Unlock()
		return false
	}
	m.finishLocked(task, models.TaskStatusCompleted, result, "")
	snapshot := task.Clone()
	m.mu.Unlock()

	m.fire(ctx, "onComplete", snapshot, m.hookComplete)
	return true
}

// FailTask marks a non-terminal task failed with a reason.
func (m *Manager) FailTask(ctx context.Context, id, reason string) bool {
	m.mu.Lock()
	task, ok := m.tasks[id]
	if !ok || !task.Active() {
		m.mu.Unlock()
		return false
	}
	m.finishLocked(task, models.TaskStatusFailed, "", reason)
	snapshot := task.Clone()
	m.mu.Unlock()

	m.fire(ctx, "onFail", snapshot, m.hookFail)
	return true
}

// CompleteTasksForAgent completes every non-terminal task assigned to agentID
// with a shared result and empties the agent's active index. It returns
// snapshots of the tasks it completed.
func (m *Manager) CompleteTasksForAgent(ctx context.Context, agentID, result string) []*models.Task {
	m.mu.Lock()
	ids := m.active[agentID]
	completed := make([]*models.Task, 0, len(ids))
	for _, id := range ids {
		task, ok := m.tasks[id]
		if !ok || !task.Active() {
			continue
		}
		m.finishLocked(task, models.TaskStatusCompleted, result, "")
		completed = append(completed, task.Clone())
	}
	delete(m.active, agentID)
	m.mu.Unlock()

	for _, snapshot := range completed {
		m.fire(ctx, "onComplete", snapshot, m.hookComplete)
	}
	return completed
}

// startLocked stamps the in_progress transition. Caller must hold m.mu.
func (m *Manager) startLocked(task *models.Task) {
	now := m.now()
	task.Status = models.TaskStatusInProgress
	task.StartedAt = &now
}

// finishLocked moves an active task to a terminal status and drops it from the
// active index. Caller must hold m.mu.
func (m *Manager) finishLocked(task *models.Task, status models.TaskStatus, result, reason string) {
	if task.Status == models.TaskStatusPending {
		m.startLocked(task)
	}
	now := m.now()
	task.Status = status
	task.CompletedAt = &now
	if result != "" {
		task.Result = result
	}
	if reason != "" {
		task.Error = reason
	}
	m.removeActiveLocked(task.Assignee, task.ID)
}

func (m *Manager) removeActiveLocked(agentID, taskID string) {
	ids := m.active[agentID]
	for i, id := range ids {
		if id == taskID {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(m.active, agentID)
		return
	}
	m.active[agentID] = ids
}

// unmetDependencyLocked returns the first dependency that is missing or not
// completed. Caller must hold m.mu.
func (m *Manager) unmetDependencyLocked(task *models.Task) (string, bool) {
	for _, dep := range task.DependsOn {
		d, ok := m.tasks[dep]
		if !ok || d.Status != models.TaskStatusCompleted {
			return dep, false
		}
	}
	return "", true
}

// HasActiveTask reports whether agentID owns any task not completed or failed.
func (m *Manager) HasActiveTask(agentID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active[agentID]) > 0
}

// GetActiveTasksForAgent returns snapshots of agentID's non-terminal tasks.
func (m *Manager) GetActiveTasksForAgent(agentID string) []*models.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.active[agentID]
	out := make([]*models.Task, 0, len(ids))
	for _, id := range ids {
		if t, ok := m.tasks[id]; ok {
			out = append(out, t.Clone())
		}
	}
	return out
}

// AgentsWithActiveTasks returns agent ids that own at least one active task,
// sorted for determinism.
func (m *Manager) AgentsWithActiveTasks() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.active))
	for id, ids := range m.active {
		if len(ids) > 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// GetReadyTasks returns pending tasks whose dependencies are all completed,
// in creation order.
func (m *Manager) GetReadyTasks() []*models.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Task
	for _, id := range m.order {
		t := m.tasks[id]
		if t.Status != models.TaskStatusPending {
			continue
		}
		if _, ok := m.unmetDependencyLocked(t); ok {
			out = append(out, t.Clone())
		}
	}
	return out
}

// GetTask returns a snapshot of a task.
func (m *Manager) GetTask(id string) (*models.Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// AllTasks returns snapshots of every task in creation order.
func (m *Manager) AllTasks() []*models.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Task, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tasks[id].Clone())
	}
	return out
}

// Counts returns the number of tasks per status.
func (m *Manager) Counts() map[models.TaskStatus]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[models.TaskStatus]int, 4)
	for _, t := range m.tasks {
		counts[t.Status]++
	}
	return counts
}

// Summary renders the tracker state for an agent's turn context.
func (m *Manager) Summary() string {
	all := m.AllTasks()
	if len(all) == 0 {
		return "No tasks yet."
	}
	counts := m.Counts()

	var b strings.Builder
	fmt.Fprintf(&b, "Tasks: %d pending, %d in progress, %d completed, %d failed\n",
		counts[models.TaskStatusPending], counts[models.TaskStatusInProgress],
		counts[models.TaskStatusCompleted], counts[models.TaskStatusFailed])
	for _, t := range all {
		if !t.Active() {
			continue
		}
		fmt.Fprintf(&b, "- [%s] @%s (from @%s): %s\n", t.Status, t.Assignee, t.AssignedBy, t.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Manager) hookStart(ctx context.Context, hc HookContext) error {
	return m.hooks.OnStart(ctx, hc)
}

func (m *Manager) hookComplete(ctx context.Context, hc HookContext) error {
	return m.hooks.OnComplete(ctx, hc)
}

func (m *Manager) hookFail(ctx context.Context, hc HookContext) error {
	return m.hooks.OnFail(ctx, hc)
}

// fire runs a hook, logging errors and recovering panics.
func (m *Manager) fire(ctx context.Context, name string, task *models.Task, fn func(context.Context, HookContext) error) {
	if m.hooks == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logf("[tasks] %s hook panicked for %s: %v", name, task.ID, r)
		}
	}()
	if err := fn(ctx, m.hookContext(ctx, task)); err != nil {
		m.logf("[tasks] %s hook failed for %s: %v", name, task.ID, err)
	}
}

func (m *Manager) safeCreate(ctx context.Context, task *models.Task) (ref *TicketRef, err error) {
	defer func() {
		if r := recover(); r != nil {
			ref, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return m.hooks.OnCreate(ctx, m.hookContext(ctx, task))
}

func (m *Manager) hookContext(ctx context.Context, task *models.Task) HookContext {
	hc := HookContext{Task: task}
	if m.creds == nil {
		return hc
	}
	if c, err := m.creds.Lookup(ctx, task.Assignee); err == nil {
		hc.AssigneeCredentials = c
	} else {
		m.logf("[tasks] credential lookup for %s failed: %v", task.Assignee, err)
	}
	if task.AssignedBy != "" {
		if c, err := m.creds.Lookup(ctx, task.AssignedBy); err == nil {
			hc.AssignerCredentials = c
		} else {
			m.logf("[tasks] credential lookup for %s failed: %v", task.AssignedBy, err)
		}
	}
	return hc
}
