package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/ShayCichocki/crew/internal/orchestrator"
	"github.com/ShayCichocki/crew/pkg/models"
)

// memberPalette cycles through roster members in order.
var memberPalette = []color.Attribute{
	color.FgMagenta,
	color.FgBlue,
	color.FgGreen,
	color.FgHiMagenta,
	color.FgHiBlue,
	color.FgHiGreen,
}

// renderer formats outbound session events as terminal lines.
type renderer struct {
	colors  map[string]*color.Color
	names   map[string]string
	verbose bool
}

func newRenderer(roster models.Roster, verbose bool) *renderer {
	r := &renderer{
		colors:  make(map[string]*color.Color, len(roster)),
		names:   make(map[string]string, len(roster)),
		verbose: verbose,
	}
	for i, m := range roster {
		r.colors[m.ID] = color.New(memberPalette[i%len(memberPalette)], color.Bold)
		r.names[m.ID] = m.DisplayName()
	}
	return r
}

// format renders one event. It returns false for events that are not shown.
func (r *renderer) format(ev orchestrator.SessionEvent) (string, bool) {
	switch ev.Type {
	case orchestrator.EventMessage:
		if ev.Event == nil {
			return "", false
		}
		if ev.Event.Author.ID == models.SystemAuthorID {
			return color.YellowString("[system] %s", ev.Event.Body), true
		}
		return fmt.Sprintf("%s %s", r.label(ev.Event.Author.ID), ev.Event.Body), true

	case orchestrator.EventHumanInput:
		if ev.Event == nil {
			return "", false
		}
		return color.CyanString("[human] %s", ev.Event.Body), true

	case orchestrator.EventToolResult:
		if ev.Event == nil {
			return "", false
		}
		body := firstLine(ev.Event.Body)
		if ev.Event.Success {
			return fmt.Sprintf("%s %s", r.label(ev.AgentID), color.GreenString("%s ✓ %s", ev.Event.Tool, body)), true
		}
		return fmt.Sprintf("%s %s", r.label(ev.AgentID), color.RedString("%s ✗ %s", ev.Event.Tool, body)), true

	case orchestrator.EventTaskCreated:
		if ev.Task == nil {
			return "", false
		}
		return color.HiBlackString("  task %s → %s: %s", ev.Task.ID, r.name(ev.Task.Assignee), firstLine(ev.Task.Description)), true

	case orchestrator.EventTaskCompleted:
		if ev.Task == nil {
			return "", false
		}
		return color.HiBlackString("  task %s %s", ev.Task.ID, ev.Task.Status), true

	case orchestrator.EventStatus:
		return color.HiBlackString("  topic %s is %s", ev.TopicID, ev.Status), true

	case orchestrator.EventAwaitingHuman:
		return color.New(color.FgYellow, color.Bold).Sprintf("⏸ waiting for human input (crew say %s \"...\")", ev.TopicID), true

	case orchestrator.EventTurnRescheduled:
		if !r.verbose {
			return "", false
		}
		return color.HiBlackString("  ↻ %s", ev.Message), true

	case orchestrator.EventTurnScheduled:
		if !r.verbose {
			return "", false
		}
		return color.HiBlackString("  → %s (%s)", r.name(ev.AgentID), ev.Message), true
	}
	return "", false
}

func (r *renderer) label(id string) string {
	c, ok := r.colors[id]
	if !ok {
		return fmt.Sprintf("[%s]", id)
	}
	return c.Sprintf("[%s]", r.name(id))
}

func (r *renderer) name(id string) string {
	if n, ok := r.names[id]; ok {
		return n
	}
	return id
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
