package models

import (
	"testing"
	"time"
)

func TestTaskStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status TaskStatus
		want   bool
	}{
		{"pending is valid", TaskStatusPending, true},
		{"in_progress is valid", TaskStatusInProgress, true},
		{"completed is valid", TaskStatusCompleted, true},
		{"failed is valid", TaskStatusFailed, true},
		{"empty string is invalid", TaskStatus(""), false},
		{"done is not a task status", TaskStatus("done"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("TaskStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestTaskStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to TaskStatus
		want     bool
	}{
		{TaskStatusPending, TaskStatusInProgress, true},
		{TaskStatusPending, TaskStatusCompleted, false},
		{TaskStatusInProgress, TaskStatusCompleted, true},
		{TaskStatusInProgress, TaskStatusFailed, true},
		{TaskStatusInProgress, TaskStatusPending, false},
		{TaskStatusCompleted, TaskStatusPending, false},
		{TaskStatusCompleted, TaskStatusFailed, false},
		{TaskStatusFailed, TaskStatusInProgress, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTask_CloneIsDeep(t *testing.T) {
	now := time.Now()
	orig := &Task{
		ID:        "t1",
		DependsOn: []string{"t0"},
		StartedAt: &now,
		Metadata:  map[string]string{"topic": "main"},
	}

	c := orig.Clone()
	c.DependsOn[0] = "changed"
	c.Metadata["topic"] = "changed"
	*c.StartedAt = now.Add(time.Hour)

	if orig.DependsOn[0] != "t0" {
		t.Errorf("expected DependsOn untouched, got %v", orig.DependsOn)
	}
	if orig.Metadata["topic"] != "main" {
		t.Errorf("expected Metadata untouched, got %v", orig.Metadata)
	}
	if !orig.StartedAt.Equal(now) {
		t.Errorf("expected StartedAt untouched, got %v", orig.StartedAt)
	}
}

func TestTask_Active(t *testing.T) {
	for _, s := range []TaskStatus{TaskStatusPending, TaskStatusInProgress} {
		if !(&Task{Status: s}).Active() {
			t.Errorf("expected %s to be active", s)
		}
	}
	for _, s := range []TaskStatus{TaskStatusCompleted, TaskStatusFailed} {
		if (&Task{Status: s}).Active() {
			t.Errorf("expected %s to be inactive", s)
		}
	}
}
