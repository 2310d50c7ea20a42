package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/crew/pkg/models"
)

// ScriptPrefix selects a scripted backend; the rest of the model string is
// the path of a YAML script file.
const ScriptPrefix = "script:"

// ScriptStep is one canned reply. A step with Error set makes Execute fail.
type ScriptStep struct {
	Content string `yaml:"content"`
	Error   string `yaml:"error,omitempty"`
}

// Scripted replays canned replies in order, then repeats Idle forever.
type Scripted struct {
	steps []ScriptStep
	idle  string
	next  int
	calls []TurnContext
	mu    sync.Mutex
}

// NewScripted creates a scripted agent from plain replies.
func NewScripted(replies ...string) *Scripted {
	steps := make([]ScriptStep, len(replies))
	for i, r := range replies {
		steps[i] = ScriptStep{Content: r}
	}
	return &Scripted{steps: steps, idle: "Nothing further from me."}
}

// NewScriptedSteps creates a scripted agent from steps, including failures.
func NewScriptedSteps(steps ...ScriptStep) *Scripted {
	return &Scripted{steps: append([]ScriptStep(nil), steps...), idle: "Nothing further from me."}
}

type scriptFile struct {
	Idle  string       `yaml:"idle"`
	Steps []ScriptStep `yaml:"steps"`
}

// LoadScript reads a YAML script file:
//
//	idle: "Nothing further."
//	steps:
//	  - content: "@dev please build the parser"
//	  - error: "upstream timeout"
func LoadScript(path string) (*Scripted, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	var f scriptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	s := NewScriptedSteps(f.Steps...)
	if f.Idle != "" {
		s.idle = f.Idle
	}
	return s, nil
}

// Execute returns the next scripted reply.
func (s *Scripted) Execute(_ context.Context, tc TurnContext) (models.AgentOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, tc)
	content := s.idle
	if s.next < len(s.steps) {
		step := s.steps[s.next]
		s.next++
		if step.Error != "" {
			return models.AgentOutput{}, errors.New(step.Error)
		}
		content = step.Content
	}
	return models.AgentOutput{Content: content}, nil
}

// Calls returns the turn contexts seen so far.
func (s *Scripted) Calls() []TurnContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TurnContext(nil), s.calls...)
}

// Remaining returns how many scripted steps have not been played.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps) - s.next
}
