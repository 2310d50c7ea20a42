package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/crew/pkg/models"
)

// Dispatch mode names accepted in session.dispatch.
const (
	DispatchSequential = "sequential"
	DispatchConcurrent = "concurrent"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Roster returns the configured team in order.
func (c *Config) Roster() models.Roster {
	return append(models.Roster(nil), c.Team.Members...)
}

// ResolvePath resolves a path from the config against the directory of the
// file that supplied it. Absolute paths are returned unchanged.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// ProjectSpecText returns the inline project spec, or the contents of
// project_spec_file resolved against the config file's directory.
func (c *Config) ProjectSpecText() (string, error) {
	if c.Team.ProjectSpec != "" || c.Team.ProjectSpecFile == "" {
		return c.Team.ProjectSpec, nil
	}
	data, err := os.ReadFile(c.ResolvePath(c.Team.ProjectSpecFile))
	if err != nil {
		return "", fmt.Errorf("read project spec: %w", err)
	}
	return string(data), nil
}

// Validate checks the roster and session settings. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidConfig}, args...)...))
	}

	seen := make(map[string]bool, len(c.Team.Members))
	for i, m := range c.Team.Members {
		id := strings.TrimSpace(m.ID)
		switch {
		case id == "":
			add("team.members[%d] has no id", i)
		case strings.ContainsAny(id, " \t@"):
			add("team member id %q may not contain spaces or '@'", id)
		case seen[strings.ToLower(id)]:
			add("duplicate team member id %q", id)
		}
		seen[strings.ToLower(id)] = true
		if m.Level != "" && !m.Level.Valid() {
			add("team member %q has unknown level %q", id, m.Level)
		}
	}

	s := c.Session
	if s.MaxConcurrent < 1 {
		add("session.max_concurrent must be at least 1, got %d", s.MaxConcurrent)
	}
	if s.Dispatch != DispatchSequential && s.Dispatch != DispatchConcurrent {
		add("session.dispatch must be %s or %s, got %q", DispatchSequential, DispatchConcurrent, s.Dispatch)
	}
	if !models.SandboxLevel(s.Sandbox).Valid() {
		add("session.sandbox must be strict, guided or wild, got %q", s.Sandbox)
	}
	if !models.DeliveryMode(s.Mode).Valid() {
		add("session.mode must be cost, time or quality, got %q", s.Mode)
	}
	if s.RecentEvents < 1 {
		add("session.recent_events must be at least 1, got %d", s.RecentEvents)
	}
	if s.AdmissionRetry < 0 || s.LockRetry < 0 {
		add("session retry delays may not be negative")
	}
	if s.MaxTurns < 0 {
		add("session.max_turns may not be negative, got %d", s.MaxTurns)
	}
	return errors.Join(errs...)
}

// Starter returns the config written by `crew init`: a lead, an engineer
// and a QA reviewer, all backed by the stand-in agent.
func Starter() *Config {
	cfg := Default()
	cfg.Team = TeamConfig{
		Members: []models.Member{
			{ID: "lead", Name: "Lead", Role: "Team Lead", Level: models.LevelPrincipal, Model: "stand-in"},
			{ID: "dev", Name: "Dev", Role: "Engineer", Level: models.LevelMid, Model: "stand-in"},
			{ID: "qa", Name: "QA", Role: "QA", Level: models.LevelSenior, Model: "stand-in"},
		},
		ProjectSpec: "Describe the project the team is working on.",
	}
	cfg.Session.MaxTurns = 50
	return cfg
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// WriteFile writes the config as YAML. It refuses to overwrite an existing
// file unless force is set.
func (c *Config) WriteFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
