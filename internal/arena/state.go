// Package arena implements the session orchestrator: it validates a
// multi-agent run request, provisions per-agent worktrees, spawns and
// supervises one interactive process per agent, reconciles state through the
// sideband file protocol, enforces the session timeout, and aggregates
// results.
package arena

import (
	"time"

	"github.com/modelarena/arena/internal/models"
	"github.com/modelarena/arena/internal/worktree"
)

// MaxAgents is the hard upper bound on models per session. Settings can
// lower it, never raise it.
const MaxAgents = 4

// pollInterval is how often the orchestrator reads agent status files.
const pollInterval = 500 * time.Millisecond

// settleCheck is how often waitForAllAgentsSettled re-evaluates agent states.
const settleCheck = 100 * time.Millisecond

// agentState is the orchestrator-owned mutable state for one agent. It is
// created during worktree setup and mutated only by the orchestrator, either
// directly or via status-file reconciliation.
type agentState struct {
	id     string
	safeID string
	model  models.ModelSpec
	status models.AgentStatus

	worktree *worktree.Worktree

	// aborted marks an intentional, agent-scoped termination so the exit
	// callback does not record it as an error.
	aborted bool

	stats     models.AgentStats
	startedAt time.Time
	endedAt   time.Time
	output    string
	err       string
}

// abort flags the agent as intentionally stopped.
func (a *agentState) abort() {
	a.aborted = true
}

// durationMs computes the agent's duration from the orchestrator's own
// clock. The agent's self-reported duration is never used.
func (a *agentState) durationMs(now time.Time) int64 {
	if a.startedAt.IsZero() {
		return 0
	}
	end := a.endedAt
	if end.IsZero() {
		end = now
	}
	return end.Sub(a.startedAt).Milliseconds()
}

// finalize freezes the agent's end timestamp and duration. No-op when
// already frozen.
func (a *agentState) finalize(now time.Time) {
	if a.endedAt.IsZero() {
		a.endedAt = now
	}
	a.stats.DurationMs = a.durationMs(now)
}

// resume clears the frozen end timestamp when an agent picks up a follow-up
// turn after completing one.
func (a *agentState) resume() {
	a.endedAt = time.Time{}
}

// wireStatus maps the local agent status onto the status-file vocabulary for
// the consolidated session document.
func (a *agentState) wireStatus() string {
	switch a.status {
	case models.AgentCompleted:
		return models.FileStatusCompleted
	case models.AgentCancelled:
		return models.FileStatusCancelled
	case models.AgentTerminated:
		return models.FileStatusError
	default:
		return models.FileStatusRunning
	}
}
