package backend

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/creack/pty"
	"github.com/hinshun/vt10x"
)

// stopGrace is how long a process gets to exit after SIGTERM before SIGKILL.
const stopGrace = 5 * time.Second

// process manages one PTY + vt10x agent process.
type process struct {
	mu         sync.RWMutex
	agentID    string
	cmd        *exec.Cmd
	ptyFile    *os.File
	vt         vt10x.Terminal
	rows, cols int
	done       chan struct{}
	exitErr    error

	scrollMu   sync.RWMutex
	scrollback []string
	partial    strings.Builder

	cleanupOnce sync.Once
}

// startProcess starts the command inside a PTY with vt10x emulation.
func startProcess(agentID string, cmd *exec.Cmd, rows, cols int) (*process, error) {
	if rows <= 0 {
		rows = 24
	}
	if cols <= 0 {
		cols = 80
	}

	vt := vt10x.New(vt10x.WithSize(cols, rows))
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return nil, fmt.Errorf("failed to start PTY: %w", err)
	}

	p := &process{
		agentID:    agentID,
		cmd:        cmd,
		ptyFile:    ptmx,
		vt:         vt,
		rows:       rows,
		cols:       cols,
		done:       make(chan struct{}),
		scrollback: make([]string, 0, 1024),
	}
	go p.readLoop()
	return p, nil
}

// readLoop reads from the PTY, feeds the terminal emulator, and accumulates
// scrollback until the process exits.
func (p *process) readLoop() {
	buf := make([]byte, 32*1024)
	for {
		n, err := p.ptyFile.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])

			p.mu.Lock()
			p.vt.Write(data)
			p.mu.Unlock()

			p.appendScrollback(data)
		}
		if err != nil {
			break
		}
	}

	p.exitErr = p.cmd.Wait()
	close(p.done)
}

// snapshot reads the current vt10x screen state.
func (p *process) snapshot() *Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	lines := make([]string, p.rows)
	for row := 0; row < p.rows; row++ {
		var sb strings.Builder
		for col := 0; col < p.cols; col++ {
			g := p.vt.Cell(col, row)
			if g.Char == 0 {
				sb.WriteByte(' ')
			} else {
				sb.WriteRune(g.Char)
			}
		}
		lines[row] = strings.TrimRight(sb.String(), " ")
	}

	cur := p.vt.Cursor()
	return &Snapshot{
		AgentID:   p.agentID,
		Lines:     lines,
		Plain:     strings.Join(lines, "\n"),
		CursorRow: cur.Y,
		CursorCol: cur.X,
		Rows:      p.rows,
		Cols:      p.cols,
	}
}

// scrollbackSnapshot returns a snapshot built from scrollback history, offset
// lines back from the end.
func (p *process) scrollbackSnapshot(offset int) *Snapshot {
	p.scrollMu.RLock()
	defer p.scrollMu.RUnlock()

	p.mu.RLock()
	rows, cols := p.rows, p.cols
	p.mu.RUnlock()

	total := len(p.scrollback)
	end := total - offset
	if end < 0 {
		end = 0
	}
	start := end - rows
	if start < 0 {
		start = 0
	}
	lines := make([]string, end-start)
	copy(lines, p.scrollback[start:end])

	return &Snapshot{
		AgentID: p.agentID,
		Lines:   lines,
		Plain:   strings.Join(lines, "\n"),
		Rows:    rows,
		Cols:    cols,
	}
}

// appendScrollback splits PTY output into ANSI-stripped lines, carrying the
// trailing partial line over to the next read.
func (p *process) appendScrollback(data []byte) {
	p.scrollMu.Lock()
	defer p.scrollMu.Unlock()

	p.partial.Write(data)
	content := p.partial.String()
	lines := strings.Split(content, "\n")
	p.partial.Reset()
	p.partial.WriteString(lines[len(lines)-1])
	for _, line := range lines[:len(lines)-1] {
		clean := strings.TrimRight(ansi.Strip(line), "\r ")
		if clean != "" {
			p.scrollback = append(p.scrollback, clean)
		}
	}
}

// scrollbackLen returns the number of retained scrollback lines.
func (p *process) scrollbackLen() int {
	p.scrollMu.RLock()
	defer p.scrollMu.RUnlock()
	return len(p.scrollback)
}

// fullOutput returns the accumulated plain-text output of the process.
func (p *process) fullOutput() string {
	p.scrollMu.RLock()
	defer p.scrollMu.RUnlock()
	return strings.Join(p.scrollback, "\n")
}

// sendInput writes data to the PTY.
func (p *process) sendInput(data []byte) error {
	_, err := p.ptyFile.Write(data)
	return err
}

// resize changes the PTY and vt10x terminal size.
func (p *process) resize(cols, rows int) error {
	p.mu.Lock()
	p.rows = rows
	p.cols = cols
	p.vt.Resize(cols, rows)
	p.mu.Unlock()

	if err := pty.Setsize(p.ptyFile, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		return fmt.Errorf("failed to resize PTY: %w", err)
	}
	return nil
}

// stop terminates the process: SIGTERM, grace period, then SIGKILL.
func (p *process) stop() {
	if p.cmd.Process == nil {
		return
	}

	_ = p.cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-p.done:
		p.cleanup()
		return
	case <-time.After(stopGrace):
	}

	_ = p.cmd.Process.Kill()
	<-p.done
	p.cleanup()
}

// cleanup releases the PTY. Safe to call multiple times.
func (p *process) cleanup() {
	p.cleanupOnce.Do(func() {
		if p.ptyFile != nil {
			_ = p.ptyFile.Close()
		}
	})
}

// running reports whether the process has not exited yet.
func (p *process) running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// exitInfo translates a cmd.Wait error into (exitCode, signalName).
func exitInfo(err error) (int, string) {
	if err == nil {
		return 0, ""
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return -1, ws.Signal().String()
		}
		return ee.ExitCode(), ""
	}
	return -1, ""
}
