package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/crew/internal/config"
	"github.com/ShayCichocki/crew/internal/inbox"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Write a starter team config",
	Long: `Initialize a directory for use with crew.

This command:
  - Writes .crew.yaml with a starter team (lead, engineer, QA)
  - Creates the data directory with logs, inbox and signals

The starter team uses the stand-in backend, so 'crew run' works straight away.

Examples:
  crew init              # Initialize current directory
  crew init ./myproject  # Initialize specific directory
  crew init --force      # Overwrite an existing .crew.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		targetDir := "."
		if len(args) > 0 {
			targetDir = args[0]
		}
		return runInit(cmd.OutOrStdout(), targetDir, initForce)
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing .crew.yaml")
}

func runInit(out io.Writer, targetDir string, force bool) error {
	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Fprintf(out, "Initializing crew in %s...\n\n", absPath)

	cfg := config.Starter()
	configFile := filepath.Join(absPath, config.ProjectConfigName)
	if err := cfg.WriteFile(configFile, force); err != nil {
		printStatus(out, "✗", fmt.Sprintf("Config: %v (use --force to overwrite)", err), color.FgRed)
		return err
	}
	printStatus(out, "✓", "Wrote "+config.ProjectConfigName, color.FgGreen)

	dataDir := filepath.Join(absPath, cfg.Paths.DataDir)
	if err := os.MkdirAll(filepath.Join(dataDir, "logs"), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	// inbox.New creates the inbox and signals directories.
	in, err := inbox.New(dataDir)
	if err != nil {
		return fmt.Errorf("creating inbox: %w", err)
	}
	in.Close()
	printStatus(out, "✓", "Created "+cfg.Paths.DataDir+"/ (logs, inbox, signals)", color.FgGreen)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  1. Edit %s to describe your team and project\n", config.ProjectConfigName)
	fmt.Fprintln(out, "  2. crew run \"Build a tokenizer for the config language\"")
	fmt.Fprintln(out, "  3. crew say main \"@qa please review\" from another terminal")
	return nil
}

// printStatus prints a status line with a colored symbol.
func printStatus(out io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(out, "%s %s\n", c.Sprint(symbol), message)
}
