package orchestrator

import (
	"time"

	"github.com/ShayCichocki/crew/internal/agent"
	"github.com/ShayCichocki/crew/internal/metrics"
	"github.com/ShayCichocki/crew/internal/parallel"
	"github.com/ShayCichocki/crew/internal/session"
	"github.com/ShayCichocki/crew/internal/tasks"
	"github.com/ShayCichocki/crew/internal/tools"
	"github.com/ShayCichocki/crew/pkg/models"
)

// DispatchMode selects how the loop drains the turn queue.
type DispatchMode string

const (
	// DispatchSequential runs one turn to completion before the next.
	DispatchSequential DispatchMode = "sequential"
	// DispatchConcurrent runs up to MaxConcurrent turns at once.
	DispatchConcurrent DispatchMode = "concurrent"
)

// Valid returns true if the mode is a known value.
func (m DispatchMode) Valid() bool {
	return m == DispatchSequential || m == DispatchConcurrent
}

// Defaults for the optional settings.
const (
	DefaultRecentEvents   = 20
	DefaultAdmissionRetry = 500 * time.Millisecond
	DefaultLockRetry      = 1000 * time.Millisecond
	DefaultEventBuffer    = 256
)

// RequiredConfig contains the minimal required configuration for an Orchestrator.
type RequiredConfig struct {
	// Roster is the team, fixed for the session.
	Roster models.Roster
	// Agents maps member ids to their backends. Members without an entry get
	// the deterministic stand-in.
	Agents map[string]agent.Agent
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

type orchestratorOptions struct {
	projectSpec    string
	maxConcurrent  int
	dispatch       DispatchMode
	sandbox        models.SandboxLevel
	mode           models.DeliveryMode
	recentEvents   int
	admissionRetry time.Duration
	lockRetry      time.Duration
	maxTurns       int
	eventBuffer    int
	logger         *DebugLogger
	metrics        *metrics.Metrics
	now            func() time.Time

	// Injectable collaborators, mainly for testing.
	sessions *session.Manager
	tasks    *tasks.Manager
	executor *parallel.Executor
	tools    *tools.Dispatcher
}

func defaultOptions() orchestratorOptions {
	return orchestratorOptions{
		maxConcurrent:  parallel.DefaultMaxConcurrent,
		dispatch:       DispatchSequential,
		sandbox:        models.SandboxGuided,
		mode:           models.ModeQuality,
		recentEvents:   DefaultRecentEvents,
		admissionRetry: DefaultAdmissionRetry,
		lockRetry:      DefaultLockRetry,
		eventBuffer:    DefaultEventBuffer,
		now:            time.Now,
	}
}

// WithProjectSpec sets the shared project description handed to every agent.
func WithProjectSpec(spec string) Option {
	return func(o *orchestratorOptions) { o.projectSpec = spec }
}

// WithMaxConcurrent sets the admission capacity and concurrent worker count.
func WithMaxConcurrent(n int) Option {
	return func(o *orchestratorOptions) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithDispatch sets the dispatch mode.
func WithDispatch(m DispatchMode) Option {
	return func(o *orchestratorOptions) {
		if m.Valid() {
			o.dispatch = m
		}
	}
}

// WithSandbox sets the sandbox level passed to agents and tools.
func WithSandbox(s models.SandboxLevel) Option {
	return func(o *orchestratorOptions) {
		if s.Valid() {
			o.sandbox = s
		}
	}
}

// WithMode sets the delivery mode passed to agents.
func WithMode(m models.DeliveryMode) Option {
	return func(o *orchestratorOptions) {
		if m.Valid() {
			o.mode = m
		}
	}
}

// WithRecentEvents sets the context window size per turn.
func WithRecentEvents(n int) Option {
	return func(o *orchestratorOptions) {
		if n > 0 {
			o.recentEvents = n
		}
	}
}

// WithAdmissionRetry sets the reschedule delay after an admission rejection.
func WithAdmissionRetry(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.admissionRetry = d }
}

// WithLockRetry sets the reschedule delay after a lock conflict.
func WithLockRetry(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.lockRetry = d }
}

// WithMaxTurns caps how many turns Run processes in total. Zero is unlimited.
func WithMaxTurns(n int) Option {
	return func(o *orchestratorOptions) { o.maxTurns = n }
}

// WithEventBuffer sets the outbound channel buffer size.
func WithEventBuffer(n int) Option {
	return func(o *orchestratorOptions) {
		if n > 0 {
			o.eventBuffer = n
		}
	}
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithMetrics sets the prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *orchestratorOptions) { o.metrics = m }
}

// WithClock overrides time.Now for the loop and scheduler.
func WithClock(now func() time.Time) Option {
	return func(o *orchestratorOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSessionManager sets a custom event log (mainly for testing).
func WithSessionManager(m *session.Manager) Option {
	return func(o *orchestratorOptions) { o.sessions = m }
}

// WithTaskManager sets a custom task tracker, e.g. one carrying hooks.
func WithTaskManager(m *tasks.Manager) Option {
	return func(o *orchestratorOptions) { o.tasks = m }
}

// WithExecutor sets a custom admission controller (mainly for testing).
func WithExecutor(e *parallel.Executor) Option {
	return func(o *orchestratorOptions) { o.executor = e }
}

// WithTools sets the tool dispatcher. Without one, every tool call fails as unknown.
func WithTools(d *tools.Dispatcher) Option {
	return func(o *orchestratorOptions) { o.tools = d }
}
