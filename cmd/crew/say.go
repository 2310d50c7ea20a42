package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/crew/internal/inbox"
)

var sayCmd = &cobra.Command{
	Use:   "say <topic> <text>",
	Short: "Send human input to a running session",
	Long: `Drop human input into the inbox of a running session.

Mention members with @id to address them; without a mention the team lead
answers. Input sent while no session runs is picked up by the next 'crew run'.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		topic, text := args[0], strings.Join(args[1:], " ")
		if err := inbox.Submit(dataDirFor(cfg), topic, text); err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), "✓", fmt.Sprintf("Sent to %s", topic), color.FgGreen)
		return nil
	},
}

var signalCmd = &cobra.Command{
	Use:       "signal <stop|pause|resume>",
	Short:     "Stop, pause or resume a running session",
	Long:      `Write or remove a signal file in the data directory. Stop is final for the session.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"stop", "pause", "resume"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		dataDir := dataDirFor(cfg)
		switch args[0] {
		case "stop":
			err = inbox.SendSignal(dataDir, inbox.SignalStop)
		case "pause":
			err = inbox.SendSignal(dataDir, inbox.SignalPause)
		case "resume":
			err = inbox.ClearSignal(dataDir, inbox.SignalPause)
		default:
			return fmt.Errorf("unknown signal %q (want stop, pause or resume)", args[0])
		}
		if err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), "✓", "Signal "+args[0]+" sent", color.FgGreen)
		return nil
	},
}
