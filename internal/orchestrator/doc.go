// Package orchestrator runs the turn-based coordination loop for a team of
// agents sharing one conversation.
//
// The orchestrator package provides:
//   - Turn scheduling: a time-ordered queue of (agent, topic, reason) turns
//   - Routing: @mentions, QA review escalation and report-to-lead followups
//   - Guardrails: role rules for file writes, duplicate-output halts and
//     stand-in substitution for failing backends
//   - Tool dispatch: inline CALL_TOOL parsing with per-file locks
//
// Every outbound change is published on a single buffered event stream. A
// slow consumer loses events rather than stalling the loop.
//
// Example usage:
//
//	orch := orchestrator.New(orchestrator.RequiredConfig{Roster: roster, Agents: agents},
//		orchestrator.WithTools(tools.NewDispatcher(tools.NewRecorder())),
//	)
//	orch.StartTopic("main", "Parser", "Build a parser")
//	go render(orch.Events())
//	err := orch.Run(ctx)
//	orch.Close()
package orchestrator
