package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/crew/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "crew",
	Short: "Turn-based coordinator for a team of agents",
	Long: `crew runs a team of agents as a group conversation.

A team lead delegates work with @mentions, engineers run tools, QA reviews,
and a human can step in at any time through the inbox. Turns are scheduled
in order; file writes are guarded by per-resource locks and role rules.

Configuration lives in ~/.config/crew/config.yaml with project overrides in
.crew.yaml. Run 'crew init' to write a starter team.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user config merged with .crew.yaml)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sayCmd)
	rootCmd.AddCommand(signalCmd)
	rootCmd.AddCommand(transcriptCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig honors --config, falling back to the layered lookup.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}
