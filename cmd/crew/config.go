package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/crew/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key]",
	Short: "Show configuration",
	Long: `View the effective crew configuration.

Without arguments, prints the merged configuration as YAML.
With one argument, prints the value at that dot-notation key (e.g. session.dispatch).

Configuration is read from ~/.config/crew/config.yaml.
Project-specific overrides can be placed in .crew.yaml.
Environment variables override both (e.g. CREW_SESSION_MAX_TURNS=10).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		}
		value, err := lookupKey(data, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the roster and session settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if len(cfg.Team.Members) == 0 {
			return fmt.Errorf("%w: no team members configured", config.ErrInvalidConfig)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Config OK: %d members\n", len(cfg.Team.Members))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file locations",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "user:    %s\n", config.GetUserConfigPath())
		project := config.GetProjectConfigPath()
		if project == "" {
			project = "(none)"
		}
		fmt.Fprintf(out, "project: %s\n", project)
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configPathCmd)
}

// lookupKey walks the rendered YAML by a dot-notation key.
func lookupKey(data []byte, key string) (string, error) {
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return "", fmt.Errorf("parse config: %w", err)
	}
	var cur interface{} = tree
	for _, part := range strings.Split(strings.ToLower(key), ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return "", fmt.Errorf("unknown configuration key: %s", key)
		}
		if cur, ok = m[part]; !ok {
			return "", fmt.Errorf("unknown configuration key: %s", key)
		}
	}
	if _, isMap := cur.(map[string]interface{}); isMap {
		out, err := yaml.Marshal(cur)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(out), "\n"), nil
	}
	if list, isList := cur.([]interface{}); isList {
		out, err := yaml.Marshal(list)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(out), "\n"), nil
	}
	return fmt.Sprint(cur), nil
}
