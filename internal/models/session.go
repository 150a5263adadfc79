// Package models defines the data types shared across the arena orchestrator,
// the sideband file protocol, and the CLI.
package models

import "time"

// SessionStatus represents the lifecycle state of an arena session.
type SessionStatus string

const (
	SessionInitializing SessionStatus = "initializing"
	SessionRunning      SessionStatus = "running"
	SessionCompleted    SessionStatus = "completed"
	SessionCancelled    SessionStatus = "cancelled"
	SessionFailed       SessionStatus = "failed"
)

// Terminal reports whether the session status is final.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionCompleted, SessionCancelled, SessionFailed:
		return true
	}
	return false
}

// AgentStatus represents the lifecycle state of a single agent.
type AgentStatus string

const (
	AgentInitializing AgentStatus = "initializing"
	AgentRunning      AgentStatus = "running"
	AgentCompleted    AgentStatus = "completed"
	AgentCancelled    AgentStatus = "cancelled"
	AgentTerminated   AgentStatus = "terminated"
)

// Terminal reports whether the agent status is final. Completed is not
// terminal for reconciliation purposes: an agent that finished one turn can
// receive a follow-up turn and move back to running.
func (s AgentStatus) Terminal() bool {
	switch s {
	case AgentCancelled, AgentTerminated:
		return true
	}
	return false
}

// Settled reports whether the agent has reached a state the session can
// settle on. Unlike Terminal, this includes completed.
func (s AgentStatus) Settled() bool {
	return s == AgentCompleted || s.Terminal()
}

// ModelSpec describes one model backend participating in a session.
type ModelSpec struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name,omitempty"`
	APIKey      string `yaml:"api_key,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
}

// Name returns the display name, falling back to the model ID.
func (m ModelSpec) Name() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.ID
}

// ArenaConfig holds the immutable per-session parameters. It is frozen when
// the session starts and read-only afterwards.
type ArenaConfig struct {
	SessionID    string
	Task         string
	Models       []ModelSpec
	MaxRounds    int
	TimeoutSec   int
	ApprovalMode string
	SourceRepo   string
	Rows         int
	Cols         int
	CreatedAt    time.Time
}

// Timeout returns the session timeout as a duration.
func (c *ArenaConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// AgentStats carries the running counters an agent reports about itself.
// DurationMs is the one field the orchestrator never trusts from the agent;
// it is always recomputed from the orchestrator's own clock.
type AgentStats struct {
	Rounds       int   `json:"rounds"`
	InputTokens  int   `json:"inputTokens"`
	OutputTokens int   `json:"outputTokens"`
	ToolCalls    int   `json:"toolCalls"`
	DurationMs   int64 `json:"durationMs"`
}
