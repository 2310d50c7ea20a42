package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/crew/pkg/models"
)

// FallbackModel selects the deterministic stand-in backend.
const FallbackModel = "stand-in"

// Fallback is a deterministic stand-in used when a real backend is missing or
// has started returning errors. It never calls out of process.
type Fallback struct {
	member models.Member
}

// NewFallback creates a stand-in for member.
func NewFallback(member models.Member) *Fallback {
	return &Fallback{member: member}
}

// Execute answers from the turn context alone. The team lead delegates the
// latest request to the first teammate on init and human turns; everyone else
// acknowledges without mentioning anyone.
func (f *Fallback) Execute(_ context.Context, tc TurnContext) (models.AgentOutput, error) {
	out := models.AgentOutput{
		Type:     models.EventMessage,
		TopicID:  tc.TopicID,
		AuthorID: f.member.ID,
	}

	lead, _ := tc.Roster.Lead()
	isLead := lead.ID == f.member.ID

	switch {
	case isLead && (tc.Reason == models.TurnInit || tc.Reason == models.TurnHuman):
		request := latestRequest(tc.RecentEvents)
		if mate, ok := firstTeammate(tc.Roster, f.member.ID); ok && request != "" {
			out.Content = fmt.Sprintf("@%s please handle: %s", mate.ID, request)
		} else {
			out.Content = "Noted. Waiting for further input."
		}
	case tc.Reason == models.TurnReview:
		out.Content = fmt.Sprintf("Reviewed the latest message from %s. No changes requested.", tc.Metadata[models.MetaAuthorID])
	case isLead:
		out.Content = "Acknowledged. Standing by."
	default:
		out.Content = fmt.Sprintf("Acknowledged (%s). Reporting back to the lead.", tc.Reason)
	}
	return out, nil
}

// latestRequest returns the most recent human input, or failing that the
// first message in the window.
func latestRequest(events []models.ConversationEvent) string {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == models.EventHumanInput {
			return oneLine(events[i].Body)
		}
	}
	for _, ev := range events {
		if ev.Type == models.EventMessage {
			return oneLine(ev.Body)
		}
	}
	return ""
}

func firstTeammate(roster models.Roster, self string) (models.Member, bool) {
	for _, m := range roster {
		if m.ID != self {
			return m, true
		}
	}
	return models.Member{}, false
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
