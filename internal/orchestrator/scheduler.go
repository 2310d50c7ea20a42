package orchestrator

import (
	"sort"
	"sync"
	"time"

	"github.com/ShayCichocki/crew/pkg/models"
)

// Scheduler holds pending turns ordered by logical timestamp. Turns with the
// same timestamp dequeue in enqueue order.
type Scheduler struct {
	// roster is the team, fixed at session start.
	roster models.Roster
	// queue is kept sorted by (At, seq).
	queue []models.ScheduledTurn
	// seq is the next enqueue sequence number.
	seq uint64
	// now returns the current time; overridable for tests.
	now func() time.Time
	// onEnqueue is called outside the lock for every newly scheduled turn.
	onEnqueue func(models.ScheduledTurn)
	// debugLog receives one line per enqueue.
	debugLog func(format string, args ...interface{})
	// wake is signalled whenever the queue changes.
	wake chan struct{}
	// mu protects queue and seq.
	mu sync.Mutex
}

// NewScheduler creates an empty scheduler for the roster.
func NewScheduler(roster models.Roster) *Scheduler {
	return &Scheduler{
		roster:   roster,
		now:      time.Now,
		debugLog: func(format string, args ...interface{}) {},
		wake:     make(chan struct{}, 1),
	}
}

// SetDebugLog sets the debug logging function.
func (s *Scheduler) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debugLog = fn
}

// SetClock overrides the time source.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// OnEnqueue registers a callback for newly scheduled turns. Reschedules do
// not trigger it.
func (s *Scheduler) OnEnqueue(fn func(models.ScheduledTurn)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnqueue = fn
}

// Roster returns the team the scheduler routes to.
func (s *Scheduler) Roster() models.Roster {
	return s.roster
}

// Wake returns a channel that receives after the queue changes.
func (s *Scheduler) Wake() <-chan struct{} {
	return s.wake
}

// Notify wakes one waiter without changing the queue.
func (s *Scheduler) Notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Enqueue adds a turn. A zero At means now.
func (s *Scheduler) Enqueue(turn models.ScheduledTurn) models.ScheduledTurn {
	return s.enqueue(turn, true)
}

// Reschedule discards-and-re-enqueues a turn delay after now.
func (s *Scheduler) Reschedule(turn models.ScheduledTurn, delay time.Duration) models.ScheduledTurn {
	s.mu.Lock()
	turn.At = s.now().Add(delay)
	s.mu.Unlock()
	return s.enqueue(turn, false)
}

func (s *Scheduler) enqueue(turn models.ScheduledTurn, announce bool) models.ScheduledTurn {
	s.mu.Lock()
	if turn.At.IsZero() {
		turn.At = s.now()
	}
	s.seq++
	turn = turn.WithSeq(s.seq)
	i := sort.Search(len(s.queue), func(i int) bool { return turn.Before(s.queue[i]) })
	s.queue = append(s.queue, models.ScheduledTurn{})
	copy(s.queue[i+1:], s.queue[i:])
	s.queue[i] = turn
	cb := s.onEnqueue
	logf := s.debugLog
	s.mu.Unlock()

	logf("[scheduler] enqueued %s for %s on %s at %s", turn.Reason, turn.AgentID, turn.TopicID, turn.At.Format("15:04:05.000"))
	if announce && cb != nil {
		cb(turn)
	}
	s.Notify()
	return turn
}

// Dequeue removes and returns the earliest turn regardless of its timestamp.
func (s *Scheduler) Dequeue() (models.ScheduledTurn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return models.ScheduledTurn{}, false
	}
	turn := s.queue[0]
	s.queue = s.queue[1:]
	return turn, true
}

// NextReady removes and returns the earliest turn if it is due at now. If the
// earliest turn is in the future, wait is how long until it is due. An empty
// queue returns ok=false and wait=0.
func (s *Scheduler) NextReady(now time.Time) (turn models.ScheduledTurn, wait time.Duration, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return models.ScheduledTurn{}, 0, false
	}
	head := s.queue[0]
	if head.At.After(now) {
		return models.ScheduledTurn{}, head.At.Sub(now), false
	}
	s.queue = s.queue[1:]
	return head, 0, true
}

// Len returns the number of pending turns.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Pending returns a copy of the queue in dequeue order.
func (s *Scheduler) Pending() []models.ScheduledTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ScheduledTurn(nil), s.queue...)
}

// ScheduleInitialTurn enqueues the lead's init turn. It returns false for an
// empty roster.
func (s *Scheduler) ScheduleInitialTurn(topicID string) bool {
	lead, ok := s.roster.Lead()
	if !ok {
		return false
	}
	s.Enqueue(models.ScheduledTurn{AgentID: lead.ID, TopicID: topicID, Reason: models.TurnInit})
	return true
}

// ScheduleMentions enqueues a mention turn per roster id, in order. Unknown
// ids are skipped. It returns the ids that were scheduled.
func (s *Scheduler) ScheduleMentions(topicID string, ids []string) []string {
	return s.scheduleBatch(topicID, ids, models.TurnMention)
}

// ScheduleHuman enqueues human-reason turns for ids, in order.
func (s *Scheduler) ScheduleHuman(topicID string, ids []string) []string {
	return s.scheduleBatch(topicID, ids, models.TurnHuman)
}

// scheduleBatch stamps turns now+i so a batch keeps its order even when the
// clock does not advance between enqueues.
func (s *Scheduler) scheduleBatch(topicID string, ids []string, reason models.TurnReason) []string {
	s.mu.Lock()
	base := s.now()
	s.mu.Unlock()

	var scheduled []string
	for _, id := range ids {
		if !s.roster.Has(id) {
			continue
		}
		s.Enqueue(models.ScheduledTurn{
			AgentID: id,
			TopicID: topicID,
			Reason:  reason,
			At:      base.Add(time.Duration(len(scheduled)) * time.Millisecond),
		})
		scheduled = append(scheduled, id)
	}
	return scheduled
}

// ScheduleReviewIfNeeded routes the author's work to the closest superior:
// the member with the lowest rank strictly above the author's. With no such
// member it falls back to the lead, unless the lead is the author. Authors
// without a level are never reviewed.
func (s *Scheduler) ScheduleReviewIfNeeded(topicID, authorID string) (models.ScheduledTurn, bool) {
	reviewer, ok := s.reviewerFor(authorID)
	if !ok {
		return models.ScheduledTurn{}, false
	}
	turn := s.Enqueue(models.ScheduledTurn{
		AgentID:  reviewer,
		TopicID:  topicID,
		Reason:   models.TurnReview,
		Metadata: map[string]string{models.MetaAuthorID: authorID},
	})
	return turn, true
}

func (s *Scheduler) reviewerFor(authorID string) (string, bool) {
	author, ok := s.roster.Get(authorID)
	if !ok {
		return "", false
	}
	rank := author.Level.Rank()
	if rank == 0 {
		return "", false
	}

	var best models.Member
	bestRank := 0
	for _, m := range s.roster {
		if m.ID == authorID {
			continue
		}
		r := m.Level.Rank()
		if r > rank && (bestRank == 0 || r < bestRank) {
			best, bestRank = m, r
		}
	}
	if bestRank > 0 {
		return best.ID, true
	}

	lead, ok := s.roster.Lead()
	if !ok || lead.ID == authorID {
		return "", false
	}
	return lead.ID, true
}

// RouteBackToLead enqueues a followup for the lead unless current is the lead.
func (s *Scheduler) RouteBackToLead(topicID, currentAgentID string) bool {
	lead, ok := s.roster.Lead()
	if !ok || lead.ID == currentAgentID {
		return false
	}
	s.Enqueue(models.ScheduledTurn{AgentID: lead.ID, TopicID: topicID, Reason: models.TurnFollowup})
	return true
}

// ScheduleFollowup enqueues a followup turn for agentID.
func (s *Scheduler) ScheduleFollowup(topicID, agentID string) models.ScheduledTurn {
	return s.Enqueue(models.ScheduledTurn{AgentID: agentID, TopicID: topicID, Reason: models.TurnFollowup})
}
