package models

import "time"

// ArenaAgentResult is an immutable snapshot of one agent's outcome, derived
// from agent state at completion time.
type ArenaAgentResult struct {
	AgentID      string
	ModelID      string
	DisplayName  string
	Status       AgentStatus
	WorktreePath string
	Output       string
	Error        string
	Stats        AgentStats
	StartedAt    time.Time
	EndedAt      time.Time
	// Diff is the agent worktree's changes against the source repository.
	// Only populated for agents that ended completed; empty when the diff
	// computation failed (the failure is logged, not fatal).
	Diff string
}

// ArenaSessionResult aggregates all agent results for one session.
type ArenaSessionResult struct {
	SessionID  string
	Status     SessionStatus
	Task       string
	SourceRepo string
	// SourceInitialized reports whether the source repository itself needed
	// first-time initialization (e.g. had no commits). Consumers need this
	// to interpret an otherwise-empty diff.
	SourceInitialized bool
	StartedAt         time.Time
	EndedAt           time.Time
	Agents            []ArenaAgentResult
}

// Agent returns the result entry for the given agent ID, or nil.
func (r *ArenaSessionResult) Agent(agentID string) *ArenaAgentResult {
	for i := range r.Agents {
		if r.Agents[i].AgentID == agentID {
			return &r.Agents[i]
		}
	}
	return nil
}
