package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/crew/pkg/models"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Session.MaxConcurrent != 3 {
		t.Errorf("expected max_concurrent 3, got %d", cfg.Session.MaxConcurrent)
	}
	if cfg.Session.Dispatch != DispatchSequential {
		t.Errorf("expected sequential dispatch, got %q", cfg.Session.Dispatch)
	}
	if cfg.Session.Sandbox != "guided" || cfg.Session.Mode != "quality" {
		t.Errorf("unexpected policy defaults %+v", cfg.Session)
	}
	if cfg.Session.AdmissionRetry != 500*time.Millisecond || cfg.Session.LockRetry != time.Second {
		t.Errorf("unexpected retry defaults %+v", cfg.Session)
	}
	if cfg.Paths.DataDir != ".crew" || !cfg.Transcript.Enabled {
		t.Errorf("unexpected path defaults %+v %+v", cfg.Paths, cfg.Transcript)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "crew.yaml")

	configContent := `
team:
  project_spec_file: SPEC.md
  members:
    - id: lead
      name: Lena
      role: Team Lead
      level: Principal
      model: stand-in
    - id: dev
      role: Engineer
      model: script:dev.yaml
session:
  max_concurrent: 5
  dispatch: concurrent
  sandbox: strict
  lock_retry: 250ms
  max_turns: 12
metrics:
  addr: ":9090"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "SPEC.md"), []byte("Build a compiler."), 0644); err != nil {
		t.Fatalf("failed to write spec: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	roster := cfg.Roster()
	if len(roster) != 2 || roster[0].ID != "lead" || roster[1].Model != "script:dev.yaml" {
		t.Fatalf("unexpected roster %+v", roster)
	}
	if roster[0].Level != models.LevelPrincipal {
		t.Errorf("expected normalized level, got %q", roster[0].Level)
	}
	if lead, ok := roster.Lead(); !ok || lead.ID != "lead" {
		t.Errorf("expected lead resolved, got %+v", lead)
	}

	if cfg.Session.MaxConcurrent != 5 || cfg.Session.Dispatch != DispatchConcurrent || cfg.Session.Sandbox != "strict" {
		t.Errorf("unexpected session %+v", cfg.Session)
	}
	if cfg.Session.LockRetry != 250*time.Millisecond {
		t.Errorf("expected lock_retry 250ms, got %v", cfg.Session.LockRetry)
	}
	if cfg.Session.Mode != "quality" || cfg.Session.RecentEvents != 20 {
		t.Errorf("expected defaults for unset keys, got %+v", cfg.Session)
	}
	if cfg.Metrics.Addr != ":9090" {
		t.Errorf("expected metrics addr, got %q", cfg.Metrics.Addr)
	}

	spec, err := cfg.ProjectSpecText()
	if err != nil || spec != "Build a compiler." {
		t.Errorf("expected spec read relative to the config, got %q %v", spec, err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoadFromPath_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crew.yaml")
	if err := os.WriteFile(path, []byte("session:\n  max_turns: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CREW_SESSION_MAX_TURNS", "9")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Session.MaxTurns != 9 {
		t.Errorf("expected env override 9, got %d", cfg.Session.MaxTurns)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

	if result := expandEnv("${TEST_VAR}"); result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}
	if result := expandEnv("prefix-${TEST_VAR}-suffix"); result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	if dir := getUserConfigDir(); dir != "/custom/config/crew" {
		t.Errorf("expected %q, got %q", "/custom/config/crew", dir)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"starter is valid", func(*Config) {}, ""},
		{"duplicate ids", func(c *Config) {
			c.Team.Members = append(c.Team.Members, models.Member{ID: "DEV"})
		}, "duplicate team member id"},
		{"missing id", func(c *Config) {
			c.Team.Members = append(c.Team.Members, models.Member{Name: "Nobody"})
		}, "has no id"},
		{"id with at sign", func(c *Config) {
			c.Team.Members[1].ID = "@dev"
		}, "may not contain"},
		{"unknown level", func(c *Config) {
			c.Team.Members[1].Level = "staff"
		}, "unknown level"},
		{"bad dispatch", func(c *Config) { c.Session.Dispatch = "parallel" }, "session.dispatch"},
		{"bad sandbox", func(c *Config) { c.Session.Sandbox = "none" }, "session.sandbox"},
		{"bad mode", func(c *Config) { c.Session.Mode = "speed" }, "session.mode"},
		{"zero concurrency", func(c *Config) { c.Session.MaxConcurrent = 0 }, "max_concurrent"},
		{"negative turns", func(c *Config) { c.Session.MaxTurns = -1 }, "max_turns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Starter()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in %v", tt.want, err)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Starter()
	cfg.Session.Dispatch = "x"
	cfg.Session.Mode = "y"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "dispatch") || !strings.Contains(err.Error(), "mode") {
		t.Errorf("expected both problems reported, got %v", err)
	}
}

func TestWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ProjectConfigName)
	starter := Starter()
	if err := starter.WriteFile(path, false); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := starter.WriteFile(path, false); err == nil {
		t.Error("expected refusal to overwrite without force")
	}
	if err := starter.WriteFile(path, true); err != nil {
		t.Errorf("expected forced overwrite, got %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if len(cfg.Team.Members) != 3 || cfg.Team.Members[2].ID != "qa" || !cfg.Team.Members[2].IsQA() {
		t.Errorf("unexpected members %+v", cfg.Team.Members)
	}
	if cfg.Session.MaxTurns != 50 || cfg.Session.AdmissionRetry != 500*time.Millisecond {
		t.Errorf("unexpected session %+v", cfg.Session)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected written starter to validate, got %v", err)
	}
}

func TestProjectSpecText_InlineWins(t *testing.T) {
	cfg := Default()
	cfg.Team.ProjectSpec = "inline"
	cfg.Team.ProjectSpecFile = "/does/not/exist"
	if got, err := cfg.ProjectSpecText(); err != nil || got != "inline" {
		t.Errorf("expected inline spec, got %q %v", got, err)
	}

	cfg.Team.ProjectSpec = ""
	if _, err := cfg.ProjectSpecText(); err == nil {
		t.Error("expected error for missing spec file")
	}
}

func TestResolvePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crew.yaml")
	if err := os.WriteFile(path, []byte("session:\n  max_turns: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.ResolvePath("dev.yaml"); got != filepath.Join(filepath.Dir(path), "dev.yaml") {
		t.Errorf("expected path relative to the config, got %q", got)
	}
	if got := cfg.ResolvePath("/abs/dev.yaml"); got != "/abs/dev.yaml" {
		t.Errorf("expected absolute path unchanged, got %q", got)
	}
	if got := Default().ResolvePath("dev.yaml"); got != "dev.yaml" {
		t.Errorf("expected unchanged without a config file, got %q", got)
	}
}
