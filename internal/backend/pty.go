package backend

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
)

// PTY is the multiplexed-PTY backend: every agent runs in its own PTY with
// vt10x emulation, and the caller switches which pane is "active".
type PTY struct {
	mu     sync.Mutex
	procs  map[string]*process
	order  []string
	active string
	onExit ExitFunc
}

// NewPTY creates the PTY backend.
func NewPTY() *PTY {
	return &PTY{procs: make(map[string]*process)}
}

// Init implements Backend.
func (b *PTY) Init() error { return nil }

// SetOnAgentExit implements Backend.
func (b *PTY) SetOnAgentExit(fn ExitFunc) {
	b.mu.Lock()
	b.onExit = fn
	b.mu.Unlock()
}

// SpawnAgent implements Backend.
func (b *PTY) SpawnAgent(spec SpawnSpec) error {
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)

	p, err := startProcess(spec.AgentID, cmd, spec.Rows, spec.Cols)
	if err != nil {
		return fmt.Errorf("spawn %s: %w", spec.AgentID, err)
	}

	b.mu.Lock()
	b.procs[spec.AgentID] = p
	b.order = append(b.order, spec.AgentID)
	if b.active == "" {
		b.active = spec.AgentID
	}
	onExit := b.onExit
	b.mu.Unlock()

	go func() {
		<-p.done
		p.cleanup()
		code, sig := exitInfo(p.exitErr)
		if onExit != nil {
			onExit(spec.AgentID, code, sig)
		}
	}()
	return nil
}

// StopAgent implements Backend.
func (b *PTY) StopAgent(agentID string) error {
	b.mu.Lock()
	p, ok := b.procs[agentID]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchAgent, agentID)
	}
	p.stop()
	return nil
}

// StopAll implements Backend.
func (b *PTY) StopAll() {
	b.mu.Lock()
	procs := make([]*process, 0, len(b.procs))
	for _, p := range b.procs {
		procs = append(procs, p)
	}
	b.mu.Unlock()

	for _, p := range procs {
		if p.running() {
			p.stop()
		}
	}
}

// SwitchTo implements Backend.
func (b *PTY) SwitchTo(agentID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.procs[agentID]; !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchAgent, agentID)
	}
	b.active = agentID
	return nil
}

// SwitchToNext implements Backend.
func (b *PTY) SwitchToNext() string { return b.cycle(1) }

// SwitchToPrevious implements Backend.
func (b *PTY) SwitchToPrevious() string { return b.cycle(-1) }

func (b *PTY) cycle(step int) string {
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
func (b *PTY) ActiveAgentID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// ActiveSnapshot implements Backend.
func (b *PTY) ActiveSnapshot() (*Snapshot, error) {
	return b.AgentSnapshot(b.ActiveAgentID(), 0)
}

// AgentSnapshot implements Backend.
func (b *PTY) AgentSnapshot(agentID string, scrollOffset int) (*Snapshot, error) {
	b.mu.Lock()
	p, ok := b.procs[agentID]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchAgent, agentID)
	}
	if scrollOffset > 0 {
		return p.scrollbackSnapshot(scrollOffset), nil
	}
	return p.snapshot(), nil
}

// AgentScrollbackLen implements Backend.
func (b *PTY) AgentScrollbackLen(agentID string) int {
	b.mu.Lock()
	p, ok := b.procs[agentID]
	b.mu.Unlock()
	if !ok {
		return 0
	}
	return p.scrollbackLen()
}

// AgentOutput returns an agent's accumulated plain-text output. Used for
// result aggregation; not part of the Backend interface surface the
// orchestrator strictly needs, but cheap to expose.
func (b *PTY) AgentOutput(agentID string) string {
	b.mu.Lock()
	p, ok := b.procs[agentID]
	b.mu.Unlock()
	if !ok {
		return ""
	}
	return p.fullOutput()
}

// ForwardInput implements Backend.
func (b *PTY) ForwardInput(data []byte) error {
	b.mu.Lock()
	p, ok := b.procs[b.active]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: no active agent", ErrNoSuchAgent)
	}
	return p.sendInput(data)
}

// ResizeAll implements Backend.
func (b *PTY) ResizeAll(cols, rows int) error {
	b.mu.Lock()
	procs := make([]*process, 0, len(b.procs))
	for _, p := range b.procs {
		procs = append(procs, p)
	}
	b.mu.Unlock()

	for _, p := range procs {
		if err := p.resize(cols, rows); err != nil {
			log.Printf("[backend] resize failed for %s: %v", p.agentID, err)
		}
	}
	return nil
}

// AttachHint implements Backend.
func (b *PTY) AttachHint() string { return "" }

// Cleanup implements Backend.
func (b *PTY) Cleanup() {
	b.StopAll()
	b.mu.Lock()
	for _, p := range b.procs {
		p.cleanup()
	}
	b.procs = make(map[string]*process)
	b.order = nil
	b.active = ""
	b.mu.Unlock()
}
