package main

import (
	"testing"

	"github.com/fatih/color"

	"github.com/ShayCichocki/crew/internal/config"
	"github.com/ShayCichocki/crew/internal/orchestrator"
	"github.com/ShayCichocki/crew/pkg/models"
)

func TestRenderer_Format(t *testing.T) {
	color.NoColor = true
	roster := models.Roster{{ID: "lead", Name: "Lena", Role: "Team Lead"}, {ID: "dev"}}
	r := newRenderer(roster, false)

	msg := func(author, body string) *models.ConversationEvent {
		return &models.ConversationEvent{Type: models.EventMessage, Author: models.Author{ID: author}, Body: body}
	}
	ok := &models.ConversationEvent{Type: models.EventToolResult, Tool: "fs", Body: "wrote 3 bytes to a.go", Success: true}
	failed := &models.ConversationEvent{Type: models.EventToolResult, Tool: "fs", Body: "path escapes the sandbox\nmore detail"}
	turn := &models.ScheduledTurn{AgentID: "dev", Reason: models.TurnMention}

	tests := []struct {
		name  string
		event orchestrator.SessionEvent
		want  string
		shown bool
	}{
		{"member message", orchestrator.SessionEvent{Type: orchestrator.EventMessage, Event: msg("lead", "@dev go")}, "[Lena] @dev go", true},
		{"unnamed member", orchestrator.SessionEvent{Type: orchestrator.EventMessage, Event: msg("dev", "done")}, "[dev] done", true},
		{"system notice", orchestrator.SessionEvent{Type: orchestrator.EventMessage, Event: msg(models.SystemAuthorID, "Dev, report back")}, "[system] Dev, report back", true},
		{"human input", orchestrator.SessionEvent{Type: orchestrator.EventHumanInput, Event: &models.ConversationEvent{Body: "hello"}}, "[human] hello", true},
		{"tool success", orchestrator.SessionEvent{Type: orchestrator.EventToolResult, AgentID: "dev", Event: ok}, "[dev] fs ✓ wrote 3 bytes to a.go", true},
		{"tool failure keeps first line", orchestrator.SessionEvent{Type: orchestrator.EventToolResult, AgentID: "dev", Event: failed}, "[dev] fs ✗ path escapes the sandbox …", true},
		{"task created", orchestrator.SessionEvent{Type: orchestrator.EventTaskCreated, Task: &models.Task{ID: "t1", Assignee: "lead", Description: "plan"}}, "  task t1 → Lena: plan", true},
		{"task completed", orchestrator.SessionEvent{Type: orchestrator.EventTaskCompleted, Task: &models.Task{ID: "t1", Status: models.TaskStatusCompleted}}, "  task t1 completed", true},
		{"status", orchestrator.SessionEvent{Type: orchestrator.EventStatus, TopicID: "main", Status: models.TopicReview}, "  topic main is review", true},
		{"awaiting human", orchestrator.SessionEvent{Type: orchestrator.EventAwaitingHuman, TopicID: "main"}, `⏸ waiting for human input (crew say main "...")`, true},
		{"scheduling hidden", orchestrator.SessionEvent{Type: orchestrator.EventTurnScheduled, AgentID: "dev", Turn: turn}, "", false},
		{"reschedule hidden", orchestrator.SessionEvent{Type: orchestrator.EventTurnRescheduled, Message: "waiting"}, "", false},
		{"message without payload", orchestrator.SessionEvent{Type: orchestrator.EventMessage}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, shown := r.format(tt.event)
			if shown != tt.shown || got != tt.want {
				t.Errorf("format() = %q, %v; want %q, %v", got, shown, tt.want, tt.shown)
			}
		})
	}
}

func TestRenderer_VerboseShowsScheduling(t *testing.T) {
	color.NoColor = true
	r := newRenderer(models.Roster{{ID: "dev", Name: "Dev"}}, true)

	got, shown := r.format(orchestrator.SessionEvent{Type: orchestrator.EventTurnScheduled, AgentID: "dev", Message: "mention"})
	if !shown || got != "  → Dev (mention)" {
		t.Errorf("unexpected scheduled line %q %v", got, shown)
	}
	got, shown = r.format(orchestrator.SessionEvent{Type: orchestrator.EventTurnRescheduled, Message: "Dev is waiting for file:a.go"})
	if !shown || got != "  ↻ Dev is waiting for file:a.go" {
		t.Errorf("unexpected rescheduled line %q %v", got, shown)
	}
}

func TestLookupKey(t *testing.T) {
	data, err := config.Starter().Marshal()
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		key  string
		want string
	}{
		{"session.dispatch", "sequential"},
		{"session.max_turns", "50"},
		{"SESSION.Sandbox", "guided"},
		{"paths.data_dir", ".crew"},
	}
	for _, tt := range tests {
		got, err := lookupKey(data, tt.key)
		if err != nil || got != tt.want {
			t.Errorf("lookupKey(%q) = %q, %v; want %q", tt.key, got, err, tt.want)
		}
	}
	if _, err := lookupKey(data, "session.nope"); err == nil {
		t.Error("expected unknown key error")
	}
	if _, err := lookupKey(data, "session.dispatch.deeper"); err == nil {
		t.Error("expected error walking into a scalar")
	}
}
