package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/crew/internal/agent"
	"github.com/ShayCichocki/crew/internal/config"
	"github.com/ShayCichocki/crew/internal/inbox"
	"github.com/ShayCichocki/crew/internal/metrics"
	"github.com/ShayCichocki/crew/internal/orchestrator"
	"github.com/ShayCichocki/crew/internal/tasks"
	"github.com/ShayCichocki/crew/internal/tools"
	"github.com/ShayCichocki/crew/internal/transcript"
	"github.com/ShayCichocki/crew/pkg/models"
)

var (
	runTopic    string
	runMaxTurns int
	runDispatch string
	runSandbox  string
	runWait     bool
	runVerbose  bool
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Start a topic and let the team work on it",
	Long: `Run a team session on a request.

The request is posted to the topic as human input and the team lead takes
the first turn. Mentions (@id) schedule teammates; engineers write files
through the dry-run fs tool; QA reviews engineer messages. The session ends
when no turns are left, the team repeats itself and waits for a human, the
turn limit is hit, or a stop signal arrives.

While a session runs, another terminal can steer it:
  crew say <topic> "@dev use the existing lexer"
  crew signal pause | resume | stop

Examples:
  crew run "Add a retry policy to the HTTP client"
  crew run --wait --topic api "Design the public API"
  crew run --dispatch concurrent --max-turns 30 "Port the parser"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		flags := cmd.Flags()
		if flags.Changed("max-turns") {
			cfg.Session.MaxTurns = runMaxTurns
		}
		if flags.Changed("dispatch") {
			cfg.Session.Dispatch = runDispatch
		}
		if flags.Changed("sandbox") {
			cfg.Session.Sandbox = runSandbox
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		_, err = runCrew(ctx, cfg, runParams{
			Topic:   runTopic,
			Request: strings.Join(args, " "),
			Wait:    runWait,
			Verbose: runVerbose || os.Getenv("CREW_DEBUG") != "",
		}, cmd.OutOrStdout())
		return err
	},
}

func init() {
	runCmd.Flags().StringVar(&runTopic, "topic", "main", "Topic id for the conversation")
	runCmd.Flags().IntVar(&runMaxTurns, "max-turns", 0, "Cap on autonomous turns (0 = unlimited)")
	runCmd.Flags().StringVar(&runDispatch, "dispatch", "", "Turn dispatch: sequential or concurrent")
	runCmd.Flags().StringVar(&runSandbox, "sandbox", "", "Tool sandbox: strict, guided or wild")
	runCmd.Flags().BoolVar(&runWait, "wait", false, "Keep running and wait for inbox input when the team goes idle")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Show turn scheduling")
}

// runParams are the per-invocation settings not carried by the config.
type runParams struct {
	Topic   string
	Request string
	Wait    bool
	Verbose bool
}

// runSummary describes a finished session.
type runSummary struct {
	Turns         int
	Tasks         map[models.TaskStatus]int
	ToolCalls     int
	Writes        []tools.Write
	DroppedEvents uint64
	AwaitingHuman bool
	SessionID     string
}

// dataDirFor resolves the configured data directory.
func dataDirFor(cfg *config.Config) string {
	return cfg.ResolvePath(cfg.Paths.DataDir)
}

// resolveRoster makes script paths relative to the config file.
func resolveRoster(cfg *config.Config) models.Roster {
	roster := cfg.Roster()
	for i, m := range roster {
		if strings.HasPrefix(m.Model, agent.ScriptPrefix) {
			roster[i].Model = agent.ScriptPrefix + cfg.ResolvePath(strings.TrimPrefix(m.Model, agent.ScriptPrefix))
		}
	}
	return roster
}

// sessionOptions maps the config onto orchestrator options.
func sessionOptions(cfg *config.Config, spec string) []orchestrator.Option {
	s := cfg.Session
	return []orchestrator.Option{
		orchestrator.WithProjectSpec(spec),
		orchestrator.WithMaxConcurrent(s.MaxConcurrent),
		orchestrator.WithDispatch(orchestrator.DispatchMode(s.Dispatch)),
		orchestrator.WithSandbox(models.SandboxLevel(s.Sandbox)),
		orchestrator.WithMode(models.DeliveryMode(s.Mode)),
		orchestrator.WithRecentEvents(s.RecentEvents),
		orchestrator.WithAdmissionRetry(s.AdmissionRetry),
		orchestrator.WithLockRetry(s.LockRetry),
		orchestrator.WithMaxTurns(s.MaxTurns),
	}
}

// runCrew runs one session to completion and prints the conversation to out.
func runCrew(ctx context.Context, cfg *config.Config, p runParams, out io.Writer) (*runSummary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Team.Members) == 0 {
		return nil, fmt.Errorf("%w: no team members configured (run 'crew init')", config.ErrInvalidConfig)
	}
	if p.Topic == "" {
		p.Topic = "main"
	}
	spec, err := cfg.ProjectSpecText()
	if err != nil {
		return nil, err
	}

	roster := resolveRoster(cfg)
	agents, err := agent.DefaultRegistry().Build(roster)
	if err != nil {
		return nil, err
	}

	dataDir := dataDirFor(cfg)
	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, m)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	recorder := tools.NewRecorder()
	logger := orchestrator.NewDebugLoggerForDataDir(dataDir).Named("topic " + p.Topic)
	opts := append(sessionOptions(cfg, spec),
		orchestrator.WithLogger(logger),
		orchestrator.WithTaskManager(tasks.NewManager(tasks.WithHooks(tasks.LoggingHooks{Logf: logger.Log}))),
		orchestrator.WithMetrics(m),
		orchestrator.WithTools(tools.NewDispatcher(recorder)),
	)
	orch := orchestrator.New(orchestrator.RequiredConfig{Roster: roster, Agents: agents}, opts...)

	summary := &runSummary{}

	var writer *transcript.Writer
	if cfg.Transcript.Enabled {
		db, err := transcript.Open(transcript.PathForDataDir(dataDir))
		if err != nil {
			orch.Close()
			return nil, err
		}
		defer db.Close()
		writer, err = db.Begin(p.Topic, p.Request, roster)
		if err != nil {
			orch.Close()
			return nil, err
		}
		summary.SessionID = writer.SessionID()
	}

	// A stop file left by an earlier session would end this one at once.
	if _, err := os.Stat(inbox.SignalPath(dataDir, inbox.SignalStop)); err == nil {
		log.Printf("[run] clearing stale stop signal in %s", dataDir)
		inbox.ClearSignal(dataDir, inbox.SignalStop)
	}
	in, err := inbox.New(dataDir)
	if err != nil {
		orch.Close()
		return nil, err
	}
	defer in.Close()

	// Render and record the outbound stream until the orchestrator closes it.
	r := newRenderer(roster, p.Verbose)
	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		for ev := range orch.Events() {
			if line, ok := r.format(ev); ok {
				fmt.Fprintln(out, line)
			}
			if writer != nil {
				if err := writer.Record(ev); err != nil {
					log.Printf("[transcript] record %s: %v", ev.Type, err)
				}
			}
		}
	}()

	// Forward inbox input and signals into the session.
	wake := make(chan struct{}, 1)
	fwdCtx, stopForwarding := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		forwardInbox(fwdCtx, in, orch, wake)
	}()
	if !in.Watching() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pollInbox(fwdCtx, in, time.Second)
		}()
	}

	if err := in.Scan(); err != nil {
		log.Printf("[run] inbox scan: %v", err)
	}

	orch.StartTopic(p.Topic, p.Topic, p.Request)

	var runErr error
	for {
		err := orch.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			runErr = err
			break
		}
		if !p.Wait || orch.Stopped() || ctx.Err() != nil {
			break
		}
		if orch.AwaitingHuman() {
			printStatus(out, "⏸", fmt.Sprintf("Waiting for input: crew say %s \"...\"", p.Topic), color.FgYellow)
		}
		select {
		case <-ctx.Done():
		case <-wake:
		}
	}

	stopForwarding()
	wg.Wait()

	summary.Turns = orch.TurnsRun()
	summary.Tasks = orch.Tasks().Counts()
	summary.ToolCalls = len(orch.Tools().Audit())
	summary.Writes = recorder.Writes()
	summary.AwaitingHuman = orch.AwaitingHuman()

	orch.Close()
	<-streamDone
	summary.DroppedEvents = orch.DroppedEvents()

	if writer != nil {
		if err := writer.Close(); err != nil {
			log.Printf("[transcript] close: %v", err)
		}
	}

	printSummary(out, summary, dataDir)
	return summary, runErr
}

// forwardInbox delivers inbox input and signals until ctx is done. Every
// delivery wakes the caller's wait loop.
func forwardInbox(ctx context.Context, in *inbox.Inbox, orch *orchestrator.Orchestrator, wake chan<- struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case input := <-in.Inputs():
			scheduled := orch.SubmitHumanInput(input.Topic, input.Text)
			log.Printf("[run] human input for %s scheduled %v", input.Topic, scheduled)
		case sig := <-in.Signals():
			switch {
			case sig.Name == inbox.SignalStop && sig.On:
				orch.Stop()
			case sig.Name == inbox.SignalPause && sig.On:
				orch.Pause()
			case sig.Name == inbox.SignalPause:
				orch.Resume()
			}
		}
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

// pollInbox rescans the inbox when no file watcher is available.
func pollInbox(ctx context.Context, in *inbox.Inbox, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := in.Scan(); err != nil {
				log.Printf("[run] inbox scan: %v", err)
			}
		}
	}
}

func serveMetrics(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[metrics] server: %v", err)
		}
	}()
	return srv
}

func printSummary(out io.Writer, s *runSummary, dataDir string) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Turns: %d  Tool calls: %d  Files written (dry run): %d\n", s.Turns, s.ToolCalls, len(s.Writes))
	fmt.Fprintf(out, "Tasks: %d pending, %d in progress, %d completed, %d failed\n",
		s.Tasks[models.TaskStatusPending], s.Tasks[models.TaskStatusInProgress],
		s.Tasks[models.TaskStatusCompleted], s.Tasks[models.TaskStatusFailed])
	if s.DroppedEvents > 0 {
		printStatus(out, "!", fmt.Sprintf("%d events dropped by a slow consumer", s.DroppedEvents), color.FgYellow)
	}
	if s.AwaitingHuman {
		printStatus(out, "⏸", "Session halted waiting for human input", color.FgYellow)
	}
	if s.SessionID != "" {
		fmt.Fprintf(out, "Transcript: %s (session %s)\n", transcript.PathForDataDir(dataDir), s.SessionID)
	}
}
