// Package backend abstracts "run an interactive process and let me watch and
// control it". The orchestrator depends only on the Backend interface; the
// concrete process-control strategy (multiplexed PTY, external tmux server,
// headless) is selected by Detect at session start.
package backend

import "errors"

// ErrNoSuchAgent is returned for operations naming an unknown agent.
var ErrNoSuchAgent = errors.New("backend: no such agent")

// SpawnSpec describes one agent process to start.
type SpawnSpec struct {
	AgentID string
	Command string
	Args    []string
	Dir     string
	Env     []string // appended to the parent environment
	Rows    int
	Cols    int
}

// Snapshot is a point-in-time view of an agent's terminal surface.
type Snapshot struct {
	AgentID   string
	Lines     []string
	Plain     string
	CursorRow int
	CursorCol int
	Rows      int
	Cols      int
}

// ExitFunc is invoked once when an agent process exits. Signal is empty when
// the process exited on its own rather than being killed.
type ExitFunc func(agentID string, exitCode int, signal string)

// Backend is the capability set the orchestrator consumes.
type Backend interface {
	// Init prepares the backend before any spawn.
	Init() error

	// SpawnAgent starts one agent process.
	SpawnAgent(spec SpawnSpec) error

	// StopAgent forcibly stops one agent's process.
	StopAgent(agentID string) error

	// StopAll forcibly stops every managed process.
	StopAll()

	// SwitchTo makes the named agent the active view.
	SwitchTo(agentID string) error

	// SwitchToNext and SwitchToPrevious cycle the active view and return the
	// new active agent ID.
	SwitchToNext() string
	SwitchToPrevious() string

	// ActiveAgentID returns the agent currently in view, or "".
	ActiveAgentID() string

	// ActiveSnapshot returns the active agent's terminal snapshot.
	ActiveSnapshot() (*Snapshot, error)

	// AgentSnapshot returns an agent's terminal snapshot. scrollOffset scrolls
	// back into history when the implementation keeps any.
	AgentSnapshot(agentID string, scrollOffset int) (*Snapshot, error)

	// AgentScrollbackLen returns the number of scrollback lines kept for an
	// agent.
	AgentScrollbackLen(agentID string) int

	// ForwardInput sends input bytes to the active agent.
	ForwardInput(data []byte) error

	// ResizeAll resizes every agent's terminal.
	ResizeAll(cols, rows int) error

	// SetOnAgentExit registers the single exit callback. Must be set before
	// the first spawn.
	SetOnAgentExit(fn ExitFunc)

	// AttachHint returns human-readable instructions for attaching an
	// external viewer, or "" when not applicable.
	AttachHint() string

	// Cleanup releases backend resources. Managed processes that are still
	// running are stopped.
	Cleanup()
}
