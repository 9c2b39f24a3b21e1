// Package game defines the domain types shared by the scoring engines:
// sessions and their event logs, per-user aggregate state, audit findings,
// the tier table, and the events published after a session is scored.
//
// The types here are plain data. All behavior lives in the engine packages
// (internal/xp, internal/streak, internal/audit, internal/ranking) and in the
// orchestrator (internal/pipeline), which is the only component that reads
// more than one engine's output or mutates a UserGameState.
//
// A typical completed session looks like:
//
//	s := game.NewSession("user-1", 25, 30, 92)
//	s.Append(game.EventStart, "")
//	s.Append(game.EventHeartbeat, "")
//	s.Append(game.EventEnd, "")
//
// and is handed to pipeline.Orchestrator.Process together with a Source tag.
// The orchestrator returns a SessionSummary and publishes the event types in
// events.go on its bus.
package game
