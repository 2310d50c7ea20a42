package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ShayCichocki/crew/internal/agent"
	"github.com/ShayCichocki/crew/internal/metrics"
	"github.com/ShayCichocki/crew/internal/parallel"
	"github.com/ShayCichocki/crew/internal/session"
	"github.com/ShayCichocki/crew/internal/tasks"
	"github.com/ShayCichocki/crew/internal/tools"
	"github.com/ShayCichocki/crew/pkg/models"
)

// ErrAlreadyRunning is returned by Run while another Run is draining the queue.
var ErrAlreadyRunning = errors.New("orchestrator already running")

// Orchestrator drains the turn queue: it invokes agents, applies guardrails,
// dispatches tool calls through the admission controller, and records
// everything in the event log and task tracker.
type Orchestrator struct {
	roster models.Roster
	opts   orchestratorOptions

	sessions  *session.Manager
	tasks     *tasks.Manager
	executor  *parallel.Executor
	tools     *tools.Dispatcher
	scheduler *Scheduler
	emitter   *EventEmitter
	sanitizer *Sanitizer
	logger    *DebugLogger
	metrics   *metrics.Metrics
	now       func() time.Time

	// agents maps member ids to their current backend.
	agents map[string]agent.Agent
	// substituted records members already swapped for the stand-in.
	substituted map[string]bool
	// lastMessage is the dedup history: each member's previous output.
	lastMessage map[string]string
	// awaitingHuman halts autonomous turns until SubmitHumanInput.
	awaitingHuman bool
	// mu protects agents, substituted, lastMessage and awaitingHuman.
	mu sync.RWMutex

	running atomic.Bool
	paused  atomic.Bool
	stopped atomic.Bool
	// turns counts admitted turns for the max-turns cap.
	turns atomic.Int64
	// inflight counts turns running on concurrent workers.
	inflight atomic.Int64
}

// New creates an Orchestrator for the roster.
func New(req RequiredConfig, opts ...Option) *Orchestrator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	orch := &Orchestrator{
		roster:      req.Roster,
		opts:        o,
		sessions:    o.sessions,
		tasks:       o.tasks,
		executor:    o.executor,
		tools:       o.tools,
		scheduler:   NewScheduler(req.Roster),
		emitter:     NewEventEmitter(o.eventBuffer),
		sanitizer:   NewSanitizer(req.Roster),
		logger:      o.logger,
		metrics:     o.metrics,
		now:         o.now,
		agents:      make(map[string]agent.Agent, len(req.Roster)),
		substituted: make(map[string]bool),
		lastMessage: make(map[string]string),
	}
	if orch.logger == nil {
		orch.logger = NopLogger()
	}

	if orch.sessions == nil {
		orch.sessions = session.NewManager()
	}
	if orch.tasks == nil {
		orch.tasks = tasks.NewManager(tasks.WithClock(o.now))
	}
	if orch.executor == nil {
		orch.executor = parallel.NewExecutor(o.maxConcurrent,
			parallel.WithMetrics(o.metrics),
			parallel.WithClock(o.now),
		)
	}
	orch.executor.SetDebugLog(orch.logger.Log)
	if orch.tools == nil {
		orch.tools = tools.NewDispatcher()
	}

	orch.emitter.onDrop = orch.metrics.EventDropped
	orch.scheduler.SetClock(o.now)
	orch.scheduler.SetDebugLog(orch.logger.Log)
	orch.scheduler.OnEnqueue(func(t models.ScheduledTurn) {
		orch.emitter.Emit(SessionEvent{
			Type:    EventTurnScheduled,
			TopicID: t.TopicID,
			AgentID: t.AgentID,
			Turn:    &t,
			Message: string(t.Reason),
		})
	})

	for _, m := range req.Roster {
		a, ok := req.Agents[m.ID]
		if !ok || a == nil {
			orch.logger.Log("[orchestrator] no backend for %s, using stand-in", m.ID)
			a = agent.NewFallback(m)
		}
		orch.agents[m.ID] = a
	}
	return orch
}

// Events returns the outbound session event stream.
func (o *Orchestrator) Events() <-chan SessionEvent { return o.emitter.Events() }

// DroppedEvents returns how many outbound events were dropped.
func (o *Orchestrator) DroppedEvents() uint64 { return o.emitter.DroppedCount() }

// Scheduler returns the turn scheduler.
func (o *Orchestrator) Scheduler() *Scheduler { return o.scheduler }

// Sessions returns the event log.
func (o *Orchestrator) Sessions() *session.Manager { return o.sessions }

// Tasks returns the task tracker.
func (o *Orchestrator) Tasks() *tasks.Manager { return o.tasks }

// Executor returns the admission controller.
func (o *Orchestrator) Executor() *parallel.Executor { return o.executor }

// Roster returns the team.
func (o *Orchestrator) Roster() models.Roster { return o.roster }

// TurnsRun returns how many turns were admitted and handed to an agent.
func (o *Orchestrator) TurnsRun() int { return int(o.turns.Load()) }

// Close closes the event stream and the debug log. Call after Run returns.
func (o *Orchestrator) Close() error {
	o.emitter.Close()
	return o.logger.Close()
}

// StartTopic opens a topic, records the initial request as human input and
// schedules the lead's init turn. It returns false for an empty roster.
func (o *Orchestrator) StartTopic(topicID, title, request string) bool {
	o.sessions.CreateTopic(topicID, title)
	if strings.TrimSpace(request) != "" {
		o.appendAndEmit(models.ConversationEvent{
			Type:    models.EventHumanInput,
			TopicID: topicID,
			Author:  humanAuthor,
			Body:    strings.TrimSpace(request),
		})
	}
	return o.scheduler.ScheduleInitialTurn(topicID)
}

// SubmitHumanInput records human input, lifts the awaiting-human halt, clears
// the dedup history and schedules human turns for the mentioned members, or
// the lead if nobody is mentioned. It returns the scheduled member ids.
func (o *Orchestrator) SubmitHumanInput(topicID, text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	mentions := ExtractMentions(text, o.roster, "")
	o.appendAndEmit(models.ConversationEvent{
		Type:     models.EventHumanInput,
		TopicID:  topicID,
		Author:   humanAuthor,
		Body:     text,
		Mentions: mentions,
	})

	o.mu.Lock()
	o.awaitingHuman = false
	o.lastMessage = make(map[string]string)
	o.mu.Unlock()

	targets := mentions
	if len(targets) == 0 {
		if lead, ok := o.roster.Lead(); ok {
			targets = []string{lead.ID}
		}
	}
	return o.scheduler.ScheduleHuman(topicID, targets)
}

// AwaitingHuman reports whether the duplicate-output guardrail halted the session.
func (o *Orchestrator) AwaitingHuman() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.awaitingHuman
}

// IsSubstituted reports whether a member's backend was replaced by the stand-in.
func (o *Orchestrator) IsSubstituted(agentID string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.substituted[agentID]
}

// Pause stops dequeueing new turns; running turns finish.
func (o *Orchestrator) Pause() {
	if !o.paused.Swap(true) {
		log.Printf("[orchestrator] paused")
	}
}

// Resume undoes Pause.
func (o *Orchestrator) Resume() {
	if o.paused.Swap(false) {
		log.Printf("[orchestrator] resumed")
	}
	o.scheduler.Notify()
}

// Paused reports whether dequeueing is paused.
func (o *Orchestrator) Paused() bool { return o.paused.Load() }

// Stop makes Run return after running turns finish. It is permanent.
func (o *Orchestrator) Stop() {
	o.stopped.Store(true)
	o.scheduler.Notify()
}

// Stopped reports whether Stop was called.
func (o *Orchestrator) Stopped() bool { return o.stopped.Load() }

// Tools returns the tool dispatcher.
func (o *Orchestrator) Tools() *tools.Dispatcher { return o.tools }

// Run drains the turn queue until it is empty, the session awaits human
// input, Stop is called, the turn cap is reached or ctx is done. Turns whose
// timestamp lies in the future are waited for.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer o.running.Store(false)

	o.logger.Log("[orchestrator] run started (dispatch=%s, max_concurrent=%d)", o.opts.dispatch, o.opts.maxConcurrent)
	if o.opts.dispatch == DispatchConcurrent {
		return o.runConcurrent(ctx)
	}
	return o.runSequential(ctx)
}

func (o *Orchestrator) runSequential(ctx context.Context) error {
	for {
		turn, ok, err := o.next(ctx, func() bool { return false })
		if err != nil || !ok {
			return err
		}
		o.safeProcess(ctx, turn)
	}
}

// next returns the next due turn, waiting for future turns and, when busy
// reports running workers, for work they may still enqueue.
func (o *Orchestrator) next(ctx context.Context, busy func() bool) (models.ScheduledTurn, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return models.ScheduledTurn{}, false, err
		}
		if o.stopped.Load() {
			return models.ScheduledTurn{}, false, nil
		}
		if o.AwaitingHuman() {
			o.logger.Log("[orchestrator] halted: awaiting human input")
			return models.ScheduledTurn{}, false, nil
		}
		if limit := o.opts.maxTurns; limit > 0 && o.turns.Load() >= int64(limit) {
			log.Printf("[orchestrator] turn limit of %d reached", limit)
			return models.ScheduledTurn{}, false, nil
		}

		var wait time.Duration
		if !o.paused.Load() {
			// Read busy first: a worker enqueues its follow-ups before it
			// stops counting as busy.
			wasBusy := busy()
			turn, w, ok := o.scheduler.NextReady(o.now())
			if ok {
				return turn, true, nil
			}
			if w == 0 && !wasBusy {
				return models.ScheduledTurn{}, false, nil
			}
			wait = w
		}
		if err := o.waitForWork(ctx, wait); err != nil {
			return models.ScheduledTurn{}, false, err
		}
	}
}

func (o *Orchestrator) waitForWork(ctx context.Context, wait time.Duration) error {
	var timeout <-chan time.Time
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-o.scheduler.Wake():
	case <-timeout:
	}
	return nil
}

// safeProcess runs one turn, converting a panic into a system notice so one
// misbehaving collaborator cannot take the loop down.
func (o *Orchestrator) safeProcess(ctx context.Context, turn models.ScheduledTurn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[orchestrator] panic in turn for %s: %v", turn.AgentID, r)
			o.systemNotice(turn.TopicID, fmt.Sprintf("Turn for %s aborted after an internal error.", turn.AgentID))
		}
	}()
	o.processTurn(ctx, turn)
}

// processTurn runs one agent turn to completion.
func (o *Orchestrator) processTurn(ctx context.Context, turn models.ScheduledTurn) {
	member, ok := o.roster.Get(turn.AgentID)
	if !ok {
		o.logger.Log("[orchestrator] dropping turn for unknown agent %s", turn.AgentID)
		return
	}

	if !o.executor.TryStart(member.ID) {
		o.reschedule(turn, o.opts.admissionRetry, "admission", fmt.Sprintf("%s is waiting for an agent slot", member.DisplayName()))
		return
	}
	defer func() {
		if released := o.executor.MarkAgentIdle(member.ID); len(released) > 0 {
			o.logger.Log("[orchestrator] released residual locks for %s: %v", member.ID, released)
		}
	}()
	if !o.claimTurn() {
		o.scheduler.enqueue(turn, false)
		return
	}

	o.metrics.Turn(string(turn.Reason))
	o.logger.Log("[orchestrator] turn %s for %s on %s", turn.Reason, member.ID, turn.TopicID)
	o.startReadyTasks(ctx, member.ID)

	out, err := o.invoke(ctx, member, turn)
	if err != nil {
		log.Printf("[orchestrator] agent %s failed: %v", member.ID, err)
		o.systemNotice(turn.TopicID, fmt.Sprintf("%s failed to respond: %v", member.DisplayName(), err))
		return
	}
	o.handleOutput(ctx, member, turn, out)
}

// claimTurn counts an admitted turn against the max-turns cap. It returns
// false once the cap is used up.
func (o *Orchestrator) claimTurn() bool {
	limit := int64(o.opts.maxTurns)
	for {
		n := o.turns.Load()
		if limit > 0 && n >= limit {
			return false
		}
		if o.turns.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// startReadyTasks moves the member's pending tasks with satisfied
// dependencies to in_progress as its turn begins.
func (o *Orchestrator) startReadyTasks(ctx context.Context, agentID string) {
	for _, t := range o.tasks.GetActiveTasksForAgent(agentID) {
		if t.Status != models.TaskStatusPending {
			continue
		}
		if err := o.tasks.StartTaskErr(ctx, t.ID); err != nil {
			o.logger.Log("[orchestrator] task %s not started: %v", t.ID, err)
		}
	}
}

func (o *Orchestrator) invoke(ctx context.Context, member models.Member, turn models.ScheduledTurn) (out models.AgentOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent panicked: %v", r)
		}
	}()

	tc := agent.TurnContext{
		Self:         member,
		TopicID:      turn.TopicID,
		Reason:       turn.Reason,
		Metadata:     turn.Metadata,
		RecentEvents: o.sessions.GetRecentEvents(turn.TopicID, o.opts.recentEvents),
		Roster:       o.roster,
		ProjectSpec:  o.opts.projectSpec,
		Level:        member.Level,
		Mode:         o.opts.mode,
		Sandbox:      o.opts.sandbox,
		TaskSummary:  o.tasks.Summary(),
	}
	return o.agentFor(member.ID).Execute(ctx, tc)
}

func (o *Orchestrator) agentFor(id string) agent.Agent {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.agents[id]
}

// handleOutput applies the output guardrails, records the message and routes
// the follow-up work.
func (o *Orchestrator) handleOutput(ctx context.Context, member models.Member, turn models.ScheduledTurn, out models.AgentOutput) {
	topicID := out.TopicID
	if topicID == "" {
		topicID = turn.TopicID
	}
	evType := out.Type
	if !evType.Valid() {
		evType = models.EventMessage
	}
	name := member.DisplayName()
	content := o.sanitizer.Clean(out.Content)
	mentions := ExtractMentions(content, o.roster, member.ID)

	if o.isDuplicate(member.ID, content) {
		o.systemNotice(topicID, fmt.Sprintf("%s repeated its previous message. Pausing until a human responds.", name))
		o.haltForHuman(topicID, member.ID)
		return
	}

	if isErrorContent(content) && o.substitute(member) {
		log.Printf("[orchestrator] %s reported an error, switching to stand-in", member.ID)
		o.systemNotice(topicID, fmt.Sprintf("%s reported an internal error. Switching it to the stand-in agent.", name))
		o.scheduler.ScheduleFollowup(topicID, member.ID)
		return
	}

	o.rememberMessage(member.ID, content)
	o.appendAndEmit(models.ConversationEvent{
		Type:      evType,
		TopicID:   topicID,
		Author:    authorOf(member),
		Body:      content,
		Mentions:  mentions,
		Timestamp: out.Timestamp,
	})

	call, found, err := ParseToolCall(content)
	if found && err != nil {
		o.systemNotice(topicID, fmt.Sprintf("Could not run the tool call from %s: %v. Use CALL_TOOL: name({\"key\": \"value\"}).", name, err))
		o.scheduler.ScheduleFollowup(topicID, member.ID)
		return
	}
	if found {
		o.handleToolCall(ctx, member, turn, topicID, call)
		return
	}
	o.handleMessage(ctx, member, topicID, content, mentions)
}

func (o *Orchestrator) handleToolCall(ctx context.Context, member models.Member, turn models.ScheduledTurn, topicID string, call ToolCall) {
	isLead := o.isLead(member.ID)
	if d, denied := checkRoleGuardrails(member, isLead, call, o.tasks.HasActiveTask(member.ID)); denied {
		o.logger.Log("[orchestrator] guardrail denied %s for %s", call.Name, member.ID)
		o.systemNotice(topicID, d.notice)
		if d.routeToLead {
			o.scheduler.RouteBackToLead(topicID, member.ID)
		}
		if d.remindAssignees {
			var assignees []string
			for _, id := range o.tasks.AgentsWithActiveTasks() {
				if id != member.ID {
					assignees = append(assignees, id)
				}
			}
			if len(o.scheduler.ScheduleMentions(topicID, assignees)) > 0 {
				o.scheduler.ScheduleFollowup(topicID, member.ID)
			}
		}
		return
	}

	// Under concurrent dispatch the acquisition below is the only check; it
	// is atomic across all keys.
	if o.opts.dispatch == DispatchSequential && !o.executor.CanExecuteTool(member.ID, call.Name, call.Args) {
		o.lockConflict(turn, member, call)
		return
	}
	if !o.executor.AcquireToolLocks(member.ID, call.Name, call.Args) {
		o.lockConflict(turn, member, call)
		return
	}

	res := o.dispatchTool(ctx, member, call)
	o.metrics.ToolCall(res.ToolName, res.Success)

	body := res.Output
	if !res.Success {
		body = res.Error
	}
	o.appendAndEmit(models.ConversationEvent{
		Type:     models.EventToolResult,
		TopicID:  topicID,
		Author:   authorOf(member),
		Body:     body,
		Tool:     call.Name,
		ToolArgs: call.Args,
		Success:  res.Success,
	})

	if !res.Success {
		o.systemNotice(topicID, fmt.Sprintf("Tool %s failed for %s: %s. Check the arguments and try again.", call.Name, member.DisplayName(), res.Error))
		o.scheduler.ScheduleFollowup(topicID, member.ID)
		return
	}

	for _, t := range o.tasks.CompleteTasksForAgent(ctx, member.ID, summarize(res.Output)) {
		o.emitter.Emit(SessionEvent{Type: EventTaskCompleted, TopicID: topicID, AgentID: member.ID, Task: t, Message: t.Description})
	}
	if !isLead {
		o.systemNotice(topicID, fmt.Sprintf("Tool %s succeeded. %s, report your results to %s.", call.Name, member.DisplayName(), o.leadName()))
		o.scheduler.ScheduleFollowup(topicID, member.ID)
	}
}

// dispatchTool runs the call with its locks held and always releases them.
func (o *Orchestrator) dispatchTool(ctx context.Context, member models.Member, call ToolCall) (res models.ToolResult) {
	defer o.executor.ReleaseToolLocks(member.ID, call.Name, call.Args)
	defer func() {
		if r := recover(); r != nil {
			res = models.ToolResult{ToolName: call.Name, Success: false, Error: fmt.Sprintf("tool panicked: %v", r)}
		}
	}()

	res, err := o.tools.Execute(ctx, call.Name, call.Args, tools.Options{Sandbox: o.opts.sandbox, AgentID: member.ID})
	if err != nil {
		o.logger.Log("[orchestrator] tool %s error for %s: %v", call.Name, member.ID, err)
	}
	return res
}

// lockConflict retries the turn later. The call was never dispatched, so it
// leaves the dedup history; the retry may repeat it verbatim.
func (o *Orchestrator) lockConflict(turn models.ScheduledTurn, member models.Member, call ToolCall) {
	o.forgetMessage(member.ID)
	keys := o.executor.ExtractResourcesFromTool(call.Name, call.Args)
	o.reschedule(turn, o.opts.lockRetry, "lock",
		fmt.Sprintf("%s is waiting for %s held by another agent", member.DisplayName(), strings.Join(keys, ", ")))
}

func (o *Orchestrator) handleMessage(ctx context.Context, member models.Member, topicID, content string, mentions []string) {
	isLead := o.isLead(member.ID)
	switch {
	case len(mentions) > 0:
		// Tasks must exist before their turns can be dequeued.
		if isLead {
			for _, id := range mentions {
				o.createDelegatedTask(ctx, member, topicID, id, content)
			}
		}
		o.scheduler.ScheduleMentions(topicID, mentions)
	case isLead:
		// Nothing to route; wait for a human or a natural follow-up.
	default:
		o.scheduler.RouteBackToLead(topicID, member.ID)
	}
	o.scheduler.ScheduleReviewIfNeeded(topicID, member.ID)
}

func (o *Orchestrator) createDelegatedTask(ctx context.Context, lead models.Member, topicID, assignee, content string) {
	desc := tasks.FallbackDescription(lead.DisplayName(), content)
	if cand, ok := tasks.ExtractTaskFromMessage(content); ok {
		if id, known := resolveMember(o.roster, cand.Assignee); known && id == assignee {
			desc = cand.Description
		}
	}
	task := o.tasks.CreateTask(ctx, tasks.CreateRequest{
		Description: desc,
		Assignee:    assignee,
		AssignedBy:  lead.ID,
		Metadata:    map[string]string{"topic": topicID},
	})
	o.emitter.Emit(SessionEvent{Type: EventTaskCreated, TopicID: topicID, AgentID: assignee, Task: task, Message: desc})
}

// reschedule discards turn and enqueues it again after delay.
func (o *Orchestrator) reschedule(turn models.ScheduledTurn, delay time.Duration, cause, msg string) {
	o.metrics.Rescheduled(cause)
	next := o.scheduler.Reschedule(turn, delay)
	o.logger.Log("[orchestrator] rescheduled %s for %s (%s)", turn.Reason, turn.AgentID, cause)
	o.emitter.Emit(SessionEvent{
		Type:    EventTurnRescheduled,
		TopicID: turn.TopicID,
		AgentID: turn.AgentID,
		Turn:    &next,
		Message: msg,
	})
}

func (o *Orchestrator) isDuplicate(agentID, content string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	prev, ok := o.lastMessage[agentID]
	return ok && prev == content
}

func (o *Orchestrator) rememberMessage(agentID, content string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastMessage[agentID] = content
}

func (o *Orchestrator) forgetMessage(agentID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.lastMessage, agentID)
}

func (o *Orchestrator) haltForHuman(topicID, agentID string) {
	o.mu.Lock()
	o.awaitingHuman = true
	o.mu.Unlock()
	o.emitter.Emit(SessionEvent{Type: EventAwaitingHuman, TopicID: topicID, AgentID: agentID})
}

// substitute swaps member for the stand-in once per session. It returns
// false if the member was already substituted.
func (o *Orchestrator) substitute(member models.Member) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.substituted[member.ID] {
		return false
	}
	o.substituted[member.ID] = true
	o.agents[member.ID] = agent.NewFallback(member)
	delete(o.lastMessage, member.ID)
	return true
}

func isErrorContent(content string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(content)), "error:")
}

func (o *Orchestrator) isLead(agentID string) bool {
	lead, ok := o.roster.Lead()
	return ok && lead.ID == agentID
}

func (o *Orchestrator) leadName() string {
	if lead, ok := o.roster.Lead(); ok {
		return lead.DisplayName()
	}
	return "the lead"
}

// appendAndEmit stores ev and publishes it, plus a status event if the
// topic's status changed.
func (o *Orchestrator) appendAndEmit(ev models.ConversationEvent) models.ConversationEvent {
	before := o.sessions.Status(ev.TopicID)
	stored := o.sessions.AppendEvent(ev)

	typ := EventMessage
	switch stored.Type {
	case models.EventHumanInput:
		typ = EventHumanInput
	case models.EventToolResult:
		typ = EventToolResult
	}
	o.emitter.Emit(SessionEvent{
		Type:      typ,
		TopicID:   stored.TopicID,
		AgentID:   stored.Author.ID,
		Event:     &stored,
		Timestamp: stored.Timestamp,
	})

	if after := o.sessions.Status(ev.TopicID); after != before {
		o.emitter.Emit(SessionEvent{Type: EventStatus, TopicID: ev.TopicID, Status: after})
	}
	return stored
}

func (o *Orchestrator) systemNotice(topicID, text string) {
	o.appendAndEmit(models.ConversationEvent{
		Type:    models.EventMessage,
		TopicID: topicID,
		Author:  systemAuthor,
		Body:    text,
	})
}

var (
	systemAuthor = models.Author{ID: models.SystemAuthorID, Name: "System", Role: "system"}
	humanAuthor  = models.Author{ID: models.HumanAuthorID, Name: "Human", Role: "human"}
)

func authorOf(m models.Member) models.Author {
	return models.Author{ID: m.ID, Role: m.Role, Name: m.DisplayName(), Level: m.Level}
}

// summarize shortens tool output for use as a task result.
func summarize(output string) string {
	output = strings.TrimSpace(output)
	if len(output) > 200 {
		return tasks.Truncate(output, 200) + "..."
	}
	return output
}
