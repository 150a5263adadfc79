package backend

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/mattn/go-isatty"
)

// Kind names a backend implementation.
type Kind string

const (
	KindAuto     Kind = "auto"
	KindPTY      Kind = "pty"
	KindTmux     Kind = "tmux"
	KindHeadless Kind = "headless"
)

// Detect selects a backend implementation. Auto prefers tmux when running
// inside a tmux client with the binary available, a multiplexed PTY when
// stdout is a terminal, and headless otherwise.
func Detect(kind Kind, sessionID string) (Backend, error) {
	switch kind {
	case KindPTY:
		return NewPTY(), nil
	case KindTmux:
		if _, err := exec.LookPath("tmux"); err != nil {
			return nil, fmt.Errorf("tmux backend requested but tmux not found: %w", err)
		}
		return NewTmux(sessionID), nil
	case KindHeadless:
		return NewHeadless(), nil
	case KindAuto, "":
		if os.Getenv("TMUX") != "" {
			if _, err := exec.LookPath("tmux"); err == nil {
				return NewTmux(sessionID), nil
			}
		}
		if isatty.IsTerminal(os.Stdout.Fd()) {
			return NewPTY(), nil
		}
		return NewHeadless(), nil
	default:
		return nil, fmt.Errorf("unknown backend kind: %s", kind)
	}
}
