package backend

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// CmdRunner abstracts command execution for testability.
type CmdRunner interface {
	Run(name string, args ...string) (string, error)
}

// execRunner implements CmdRunner using os/exec.
type execRunner struct{}

func (execRunner) Run(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// tmuxExitPoll is how often the tmux backend checks for vanished windows.
const tmuxExitPoll = time.Second

// Tmux drives an external tmux server: one detached session per arena
// session, one window per agent. Exit detection is by polling list-windows,
// so exit codes are not observable; a vanished window reports code 0.
type Tmux struct {
	SessionName string
	Runner      CmdRunner

	mu      sync.Mutex
	order   []string
	windows map[string]bool   // agent id -> window still live
	byName  map[string]string // window name -> agent id
	onExit  ExitFunc
	done    chan struct{}
}

// NewTmux creates a tmux backend for the given arena session ID.
func NewTmux(sessionID string) *Tmux {
	return &Tmux{
		SessionName: "arena-" + sessionID,
		Runner:      execRunner{},
		windows:     make(map[string]bool),
		byName:      make(map[string]string),
		done:        make(chan struct{}),
	}
}

// windowName normalizes an agent id into a tmux window name. Dots must not
// appear: tmux target resolution treats them as the window/pane separator, so
// a target like session:claude-3.5 fails to match.
func windowName(agentID string) string {
	var b strings.Builder
	b.Grow(len(agentID))
	for _, r := range agentID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// target returns the exact-match tmux target for an agent's window.
func (b *Tmux) target(agentID string) string {
	return b.SessionName + ":=" + windowName(agentID)
}

// Init creates the detached tmux session.
func (b *Tmux) Init() error {
	if _, err := b.Runner.Run("tmux", "has-session", "-t", b.SessionName); err == nil {
		return fmt.Errorf("tmux session %s already exists", b.SessionName)
	}
	// Placeholder window; the first spawn replaces it.
	if _, err := b.Runner.Run("tmux", "new-session", "-d", "-s", b.SessionName, "-n", "arena"); err != nil {
		return fmt.Errorf("tmux new-session: %w", err)
	}
	go b.watchWindows()
	return nil
}

// SetOnAgentExit implements Backend.
func (b *Tmux) SetOnAgentExit(fn ExitFunc) {
	b.mu.Lock()
	b.onExit = fn
	b.mu.Unlock()
}

// SpawnAgent starts the agent command in its own tmux window.
func (b *Tmux) SpawnAgent(spec SpawnSpec) error {
	name := windowName(spec.AgentID)
	b.mu.Lock()
	if prev, taken := b.byName[name]; taken {
		b.mu.Unlock()
		return fmt.Errorf("agents %s and %s map to the same tmux window name %q", prev, spec.AgentID, name)
	}
	b.byName[name] = spec.AgentID
	b.mu.Unlock()

	args := []string{"new-window", "-t", b.SessionName, "-n", name, "-c", spec.Dir}
	for _, kv := range spec.Env {
		args = append(args, "-e", kv)
	}
	args = append(args, "--", spec.Command)
	args = append(args, spec.Args...)
	if _, err := b.Runner.Run("tmux", args...); err != nil {
		b.mu.Lock()
		delete(b.byName, name)
		b.mu.Unlock()
		return fmt.Errorf("tmux new-window for %s: %w", spec.AgentID, err)
	}
	_, _ = b.Runner.Run("tmux", "set-option", "-t", b.target(spec.AgentID), "remain-on-exit", "off")

	b.mu.Lock()
	b.windows[spec.AgentID] = true
	b.order = append(b.order, spec.AgentID)
	b.mu.Unlock()
	return nil
}

// watchWindows polls the live window list and reports vanished windows as
// agent exits.
func (b *Tmux) watchWindows() {
	ticker := time.NewTicker(tmuxExitPoll)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
		}

		out, err := b.Runner.Run("tmux", "list-windows", "-t", b.SessionName, "-F", "#{window_name}")
		if err != nil {
			continue
		}
		live := make(map[string]bool)
		for _, name := range strings.Split(out, "\n") {
			live[strings.TrimSpace(name)] = true
		}

		b.mu.Lock()
		var exited []string
		for id, up := range b.windows {
			if up && !live[windowName(id)] {
				b.windows[id] = false
				exited = append(exited, id)
			}
		}
		onExit := b.onExit
		b.mu.Unlock()

		if onExit != nil {
			for _, id := range exited {
				onExit(id, 0, "")
			}
		}
	}
}

// StopAgent kills the agent's window.
func (b *Tmux) StopAgent(agentID string) error {
	b.mu.Lock()
	known := b.windows[agentID]
	b.mu.Unlock()
	if !known {
		return fmt.Errorf("%w: %s", ErrNoSuchAgent, agentID)
	}
	if _, err := b.Runner.Run("tmux", "kill-window", "-t", b.target(agentID)); err != nil {
		return fmt.Errorf("tmux kill-window %s: %w", agentID, err)
	}
	return nil
}

// StopAll kills every agent window.
func (b *Tmux) StopAll() {
	b.mu.Lock()
	ids := make([]string, 0, len(b.windows))
	for id, up := range b.windows {
		if up {
			ids = append(ids, id)
		}
	}
	b.mu.Unlock()

	for _, id := range ids {
		_ = b.StopAgent(id)
	}
}

// SwitchTo selects the agent's window.
func (b *Tmux) SwitchTo(agentID string) error {
	if _, err := b.Runner.Run("tmux", "select-window", "-t", b.target(agentID)); err != nil {
		return fmt.Errorf("tmux select-window %s: %w", agentID, err)
	}
	return nil
}

// SwitchToNext implements Backend.
func (b *Tmux) SwitchToNext() string {
	_, _ = b.Runner.Run("tmux", "next-window", "-t", b.SessionName)
	return b.ActiveAgentID()
}

// SwitchToPrevious implements Backend.
func (b *Tmux) SwitchToPrevious() string {
	_, _ = b.Runner.Run("tmux", "previous-window", "-t", b.SessionName)
	return b.ActiveAgentID()
}

// ActiveAgentID implements Backend.
func (b *Tmux) ActiveAgentID() string {
	out, err := b.Runner.Run("tmux", "display-message", "-t", b.SessionName, "-p", "#{window_name}")
	if err != nil {
		return ""
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.byName[strings.TrimSpace(out)]
}

// ActiveSnapshot implements Backend.
func (b *Tmux) ActiveSnapshot() (*Snapshot, error) {
	return b.AgentSnapshot(b.ActiveAgentID(), 0)
}

// AgentSnapshot captures the agent's pane content.
func (b *Tmux) AgentSnapshot(agentID string, scrollOffset int) (*Snapshot, error) {
	args := []string{"capture-pane", "-p", "-t", b.target(agentID)}
	if scrollOffset > 0 {
		args = append(args, "-S", fmt.Sprintf("-%d", scrollOffset))
	}
	out, err := b.Runner.Run("tmux", args...)
	if err != nil {
		return nil, fmt.Errorf("tmux capture-pane %s: %w", agentID, err)
	}
	lines := strings.Split(out, "\n")
	return &Snapshot{AgentID: agentID, Lines: lines, Plain: out, Rows: len(lines)}, nil
}

// AgentScrollbackLen implements Backend.
func (b *Tmux) AgentScrollbackLen(agentID string) int {
	out, err := b.Runner.Run("tmux", "display-message", "-t", b.target(agentID), "-p", "#{history_size}")
	if err != nil {
		return 0
	}
	n := 0
	_, _ = fmt.Sscanf(strings.TrimSpace(out), "%d", &n)
	return n
}

// ForwardInput sends literal keys to the active window.
func (b *Tmux) ForwardInput(data []byte) error {
	_, err := b.Runner.Run("tmux", "send-keys", "-t", b.SessionName, "-l", string(data))
	return err
}

// ResizeAll resizes the tmux client area; tmux manages pane sizes itself.
func (b *Tmux) ResizeAll(cols, rows int) error {
	_, err := b.Runner.Run("tmux", "resize-window", "-t", b.SessionName, "-x", fmt.Sprint(cols), "-y", fmt.Sprint(rows))
	return err
}

// AttachHint implements Backend.
func (b *Tmux) AttachHint() string {
	return fmt.Sprintf("tmux attach -t %s", b.SessionName)
}

// Cleanup kills the tmux session.
func (b *Tmux) Cleanup() {
	select {
	case <-b.done:
	default:
		close(b.done)
	}
	_, _ = b.Runner.Run("tmux", "kill-session", "-t", b.SessionName)
}
