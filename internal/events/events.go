// Package events provides the typed in-process publish/subscribe channel the
// orchestrator uses to notify a UI layer of session and agent lifecycle
// changes. There is no cross-process delivery here; agent processes talk back
// through the sideband files, never through this emitter.
package events

import (
	"time"

	"github.com/modelarena/arena/internal/models"
)

// Type identifies the kind of lifecycle event.
type Type string

const (
	SessionStart    Type = "session_start"
	SessionUpdate   Type = "session_update"
	SessionComplete Type = "session_complete"
	SessionError    Type = "session_error"

	AgentStart        Type = "agent_start"
	AgentStatusChange Type = "agent_status_change"
	AgentStatsUpdate  Type = "agent_stats_update"
	AgentComplete     Type = "agent_complete"
	AgentError        Type = "agent_error"
)

// Event is one lifecycle notification. AgentID is empty for session-level
// events.
type Event struct {
	Type      Type
	SessionID string
	AgentID   string
	Timestamp time.Time

	// Status carries the new agent status for AgentStatusChange/AgentComplete.
	Status models.AgentStatus
	// SessionStatus carries the session status for session-level events.
	SessionStatus models.SessionStatus
	// Stats carries the latest stats for AgentStatsUpdate.
	Stats models.AgentStats
	// Err carries the error text for AgentError/SessionError.
	Err string
}
