// Package config handles configuration loading and management for crew.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/crew/pkg/models"
)

// ProjectConfigName is the project-level override file searched upward from cwd.
const ProjectConfigName = ".crew.yaml"

// EnvPrefix prefixes environment overrides, e.g. CREW_SESSION_MAX_TURNS.
const EnvPrefix = "CREW"

// Config holds all configuration for crew.
type Config struct {
	Team       TeamConfig       `mapstructure:"team" yaml:"team"`
	Session    SessionConfig    `mapstructure:"session" yaml:"session"`
	Paths      PathsConfig      `mapstructure:"paths" yaml:"paths"`
	Transcript TranscriptConfig `mapstructure:"transcript" yaml:"transcript"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`

	// dir is the directory of the file that supplied the project config, used
	// to resolve relative paths such as project_spec_file.
	dir string
}

// TeamConfig holds the roster and the shared project description.
type TeamConfig struct {
	// Members is the ordered roster. Order decides the lead fallback.
	Members []models.Member `mapstructure:"members" yaml:"members"`
	// ProjectSpec is the inline project description.
	ProjectSpec string `mapstructure:"project_spec" yaml:"project_spec,omitempty"`
	// ProjectSpecFile is read when ProjectSpec is empty.
	ProjectSpecFile string `mapstructure:"project_spec_file" yaml:"project_spec_file,omitempty"`
}

// SessionConfig holds loop limits and policy settings.
type SessionConfig struct {
	MaxConcurrent  int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	Dispatch       string        `mapstructure:"dispatch" yaml:"dispatch"`
	Sandbox        string        `mapstructure:"sandbox" yaml:"sandbox"`
	Mode           string        `mapstructure:"mode" yaml:"mode"`
	RecentEvents   int           `mapstructure:"recent_events" yaml:"recent_events"`
	AdmissionRetry time.Duration `mapstructure:"admission_retry" yaml:"admission_retry"`
	LockRetry      time.Duration `mapstructure:"lock_retry" yaml:"lock_retry"`
	// MaxTurns caps autonomous turns per run. Zero is unlimited.
	MaxTurns int `mapstructure:"max_turns" yaml:"max_turns"`
}

// PathsConfig holds on-disk locations.
type PathsConfig struct {
	// DataDir holds logs, the transcript and the inbox.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

// TranscriptConfig toggles the SQLite transcript.
type TranscriptConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables the endpoint.
	Addr string `mapstructure:"addr" yaml:"addr,omitempty"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (CREW_SESSION_MAX_TURNS, ...)
// 2. Project config (.crew.yaml in current directory or parent)
// 3. User config (~/.config/crew/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := newViper()

	// Load user config from XDG path
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	dir := ""
	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		// Merge project config (takes precedence)
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
		dir = filepath.Dir(projectConfig)
	}

	return unmarshal(v, dir)
}

// LoadFromPath loads configuration from a specific path, skipping the user
// config and project search.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return unmarshal(v, filepath.Dir(path))
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper, dir string) (*Config, error) {
	cfg := &Config{dir: dir}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	for i := range cfg.Team.Members {
		cfg.Team.Members[i].Level = models.ParseLevel(string(cfg.Team.Members[i].Level))
	}
	cfg.Team.ProjectSpecFile = expandEnv(cfg.Team.ProjectSpecFile)
	cfg.Paths.DataDir = expandEnv(cfg.Paths.DataDir)
	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("team.members", []models.Member{})
	v.SetDefault("team.project_spec", "")
	v.SetDefault("team.project_spec_file", "")

	v.SetDefault("session.max_concurrent", d.Session.MaxConcurrent)
	v.SetDefault("session.dispatch", d.Session.Dispatch)
	v.SetDefault("session.sandbox", d.Session.Sandbox)
	v.SetDefault("session.mode", d.Session.Mode)
	v.SetDefault("session.recent_events", d.Session.RecentEvents)
	v.SetDefault("session.admission_retry", d.Session.AdmissionRetry.String())
	v.SetDefault("session.lock_retry", d.Session.LockRetry.String())
	v.SetDefault("session.max_turns", d.Session.MaxTurns)

	v.SetDefault("paths.data_dir", d.Paths.DataDir)
	v.SetDefault("transcript.enabled", d.Transcript.Enabled)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
}

// getUserConfigDir returns the XDG config directory for crew.
func getUserConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "crew")
	}

	// Fall back to ~/.config/crew
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "crew")
	}
	return filepath.Join(home, ".config", "crew")
}

// findProjectConfig searches for .crew.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values and an empty roster.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			MaxConcurrent:  3,
			Dispatch:       "sequential",
			Sandbox:        string(models.SandboxGuided),
			Mode:           string(models.ModeQuality),
			RecentEvents:   20,
			AdmissionRetry: 500 * time.Millisecond,
			LockRetry:      1000 * time.Millisecond,
		},
		Paths: PathsConfig{
			DataDir: ".crew",
		},
		Transcript: TranscriptConfig{
			Enabled: true,
		},
	}
}
