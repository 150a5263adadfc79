package backend

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Headless runs agent processes without any terminal surface. Output is
// captured into a buffer; snapshots return the tail of that buffer. Used in
// CI and tests where no PTY or tmux server is available.
type Headless struct {
	mu     sync.Mutex
	procs  map[string]*headlessProc
	order  []string
	active string
	onExit ExitFunc
}

type headlessProc struct {
	cmd  *exec.Cmd
	buf  *lockedBuffer
	done chan struct{}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// NewHeadless creates the headless backend.
func NewHeadless() *Headless {
	return &Headless{procs: make(map[string]*headlessProc)}
}

// Init implements Backend.
func (b *Headless) Init() error { return nil }

// SetOnAgentExit implements Backend.
func (b *Headless) SetOnAgentExit(fn ExitFunc) {
	b.mu.Lock()
	b.onExit = fn
	b.mu.Unlock()
}

// SpawnAgent implements Backend.
func (b *Headless) SpawnAgent(spec SpawnSpec) error {
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)

	buf := &lockedBuffer{}
	cmd.Stdout = buf
	cmd.Stderr = buf

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn %s: %w", spec.AgentID, err)
	}

	hp := &headlessProc{cmd: cmd, buf: buf, done: make(chan struct{})}
	b.mu.Lock()
	b.procs[spec.AgentID] = hp
	b.order = append(b.order, spec.AgentID)
	if b.active == "" {
		b.active = spec.AgentID
	}
	onExit := b.onExit
	b.mu.Unlock()

	go func() {
		err := cmd.Wait()
		close(hp.done)
		code, sig := exitInfo(err)
		if onExit != nil {
			onExit(spec.AgentID, code, sig)
		}
	}()
	return nil
}

// StopAgent implements Backend.
func (b *Headless) StopAgent(agentID string) error {
	b.mu.Lock()
	hp, ok := b.procs[agentID]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchAgent, agentID)
	}

	select {
	case <-hp.done:
		return nil
	default:
	}

	_ = hp.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-hp.done:
		return nil
	case <-time.After(stopGrace):
	}
	_ = hp.cmd.Process.Kill()
	<-hp.done
	return nil
}

// StopAll implements Backend.
func (b *Headless) StopAll() {
	b.mu.Lock()
	ids := make([]string, len(b.order))
	copy(ids, b.order)
	b.mu.Unlock()

	for _, id := range ids {
		_ = b.StopAgent(id)
	}
}

// SwitchTo implements Backend.
func (b *Headless) SwitchTo(agentID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.procs[agentID]; !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchAgent, agentID)
	}
	b.active = agentID
	return nil
}

// SwitchToNext implements Backend.
func (b *Headless) SwitchToNext() string { return b.cycle(1) }

// SwitchToPrevious implements Backend.
func (b *Headless) SwitchToPrevious() string { return b.cycle(-1) }

func (b *Headless) cycle(step int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.order) == 0 {
		return ""
	}
	idx := 0
	for i, id := range b.order {
		if id == b.active {
			idx = i
			break
		}
	}
	idx = (idx + step + len(b.order)) % len(b.order)
	b.active = b.order[idx]
	return b.active
}

// ActiveAgentID implements Backend.
func (b *Headless) ActiveAgentID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// ActiveSnapshot implements Backend.
func (b *Headless) ActiveSnapshot() (*Snapshot, error) {
	return b.AgentSnapshot(b.ActiveAgentID(), 0)
}

// AgentSnapshot implements Backend.
func (b *Headless) AgentSnapshot(agentID string, scrollOffset int) (*Snapshot, error) {
	b.mu.Lock()
	hp, ok := b.procs[agentID]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchAgent, agentID)
	}

	lines := strings.Split(hp.buf.String(), "\n")
	end := len(lines) - scrollOffset
	if end < 0 {
		end = 0
	}
	lines = lines[:end]
	return &Snapshot{AgentID: agentID, Lines: lines, Plain: strings.Join(lines, "\n"), Rows: len(lines)}, nil
}

// AgentScrollbackLen implements Backend.
func (b *Headless) AgentScrollbackLen(agentID string) int {
	b.mu.Lock()
	hp, ok := b.procs[agentID]
	b.mu.Unlock()
	if !ok {
		return 0
	}
	return strings.Count(hp.buf.String(), "\n")
}

// ForwardInput writes to the active process's stdin. Headless processes are
// started without a stdin pipe, so input is not supported.
func (b *Headless) ForwardInput(data []byte) error {
	return fmt.Errorf("headless backend does not support input forwarding")
}

// ResizeAll is a no-op: there is no terminal to resize.
func (b *Headless) ResizeAll(cols, rows int) error { return nil }

// AttachHint implements Backend.
func (b *Headless) AttachHint() string { return "" }

// Cleanup implements Backend.
func (b *Headless) Cleanup() {
	b.StopAll()
	b.mu.Lock()
	b.procs = make(map[string]*headlessProc)
	b.order = nil
	b.active = ""
	b.mu.Unlock()
}
