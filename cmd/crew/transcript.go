package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/crew/internal/transcript"
)

var (
	transcriptTypes []string
	transcriptPurge time.Duration
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript [session-id]",
	Short: "List recorded sessions or print one",
	Long: `Inspect the SQLite transcript in the data directory.

Without arguments, lists sessions newest first.
With a session id, prints its events in order.

Examples:
  crew transcript
  crew transcript 5f0c... --type message --type tool_result
  crew transcript --purge 720h`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		db, err := transcript.Open(transcript.PathForDataDir(dataDirFor(cfg)))
		if err != nil {
			return err
		}
		defer db.Close()

		out := cmd.OutOrStdout()
		if transcriptPurge > 0 {
			n, err := db.PurgeOlderThan(transcriptPurge)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Purged %d sessions\n", n)
			return nil
		}
		if len(args) == 0 {
			return listSessions(out, db)
		}
		return printSessionEvents(out, db, args[0], transcriptTypes)
	},
}

func init() {
	transcriptCmd.Flags().StringSliceVar(&transcriptTypes, "type", nil, "Only show events of these types")
	transcriptCmd.Flags().DurationVar(&transcriptPurge, "purge", 0, "Delete sessions started longer ago than this")
}

func listSessions(out io.Writer, db *transcript.DB) error {
	sessions, err := db.Sessions()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions recorded.")
		return nil
	}
	for _, s := range sessions {
		state := "running"
		if s.EndedAt != nil {
			state = s.EndedAt.Sub(s.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(out, "%s  %s  %-10s  %s\n", s.ID, s.StartedAt.Local().Format("2006-01-02 15:04"), s.Topic, state)
	}
	return nil
}

func printSessionEvents(out io.Writer, db *transcript.DB, sessionID string, types []string) error {
	entries, err := db.Events(sessionID, types...)
	if err != nil {
		return err
	}
	for _, e := range entries {
		author := e.Author
		if author == "" {
			author = "-"
		}
		fmt.Fprintf(out, "%4d %s %-16s %-8s %s\n", e.Seq, e.CreatedAt.Local().Format("15:04:05"), e.Type, author, e.Body)
	}
	return nil
}
