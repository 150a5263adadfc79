package models

// Wire statuses an agent may report in its status file.
const (
	FileStatusRunning   = "running"
	FileStatusCompleted = "completed"
	FileStatusCancelled = "cancelled"
	FileStatusError     = "error"
)

// StatusFile is the agent-authored, orchestrator-read JSON record of that
// agent's self-reported progress. One file per agent, named by its
// filesystem-safe ID.
type StatusFile struct {
	Status string     `json:"status"`
	Stats  AgentStats `json:"stats"`
	Error  string     `json:"error,omitempty"`
}

// ControlSignal is an orchestrator-authored, agent-consumed instruction.
// The agent reads and deletes the file the next time it checks.
type ControlSignal struct {
	Type      string `json:"type"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

// Control signal types.
const (
	ControlStop = "stop"
)

// SessionFile is the consolidated, periodically-rewritten view of the session
// plus all agents' status, used for external introspection. Written via
// temp-file-then-rename so readers never observe a partial document.
type SessionFile struct {
	ArenaSessionID string                `json:"arenaSessionId"`
	SourceRepoPath string                `json:"sourceRepoPath"`
	WorktreeNames  []string              `json:"worktreeNames"`
	CreatedAt      int64                 `json:"createdAt"`
	UpdatedAt      int64                 `json:"updatedAt"`
	Agents         map[string]StatusFile `json:"agents"`
}
