package backend

import (
	"errors"
	"strings"
	"testing"
)

// fakeRunner records tmux invocations and returns scripted output.
type fakeRunner struct {
	calls   [][]string
	outputs map[string]string // keyed by first subcommand arg
	fails   map[string]bool
}

func (f *fakeRunner) Run(name string, args ...string) (string, error) {
	call := append([]string{name}, args...)
	f.calls = append(f.calls, call)
	if len(args) > 0 {
		if f.fails[args[0]] {
			return "", errors.New("scripted failure")
		}
		if out, ok := f.outputs[args[0]]; ok {
			return out, nil
		}
	}
	return "", nil
}

func (f *fakeRunner) called(sub string) bool {
	for _, c := range f.calls {
		if len(c) > 1 && c[1] == sub {
			return true
		}
	}
	return false
}

func newFakeTmux() (*Tmux, *fakeRunner) {
	runner := &fakeRunner{
		outputs: map[string]string{"has-session": ""},
		fails:   map[string]bool{"has-session": true}, // no pre-existing session
	}
	b := NewTmux("s-1")
	b.Runner = runner
	return b, runner
}

func TestTmuxInitCreatesDetachedSession(t *testing.T) {
	b, runner := newFakeTmux()
	defer b.Cleanup()

	if err := b.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !runner.called("new-session") {
		t.Error("Init should create a tmux session")
	}
	if b.SessionName != "arena-s-1" {
		t.Errorf("session name = %s", b.SessionName)
	}
}

func TestTmuxInitRefusesExistingSession(t *testing.T) {
	b, runner := newFakeTmux()
	runner.fails["has-session"] = false // session exists
	if err := b.Init(); err == nil {
		t.Error("Init should refuse when the session already exists")
	}
}

func TestTmuxSpawnBuildsWindowWithEnvAndDir(t *testing.T) {
	b, runner := newFakeTmux()
	defer b.Cleanup()
	if err := b.Init(); err != nil {
		t.Fatal(err)
	}

	err := b.SpawnAgent(SpawnSpec{
		AgentID: "m-a",
		Command: "agent",
		Args:    []string{"--model", "m-a"},
		Dir:     "/tmp/wt",
		Env:     []string{"ARENA_AGENT_ID=m-a"},
	})
	if err != nil {
		t.Fatalf("SpawnAgent: %v", err)
	}

	var spawn []string
	for _, c := range runner.calls {
		if len(c) > 1 && c[1] == "new-window" {
			spawn = c
		}
	}
	if spawn == nil {
		t.Fatal("no new-window call recorded")
	}
	joined := strings.Join(spawn, " ")
	for _, want := range []string{"-n m-a", "-c /tmp/wt", "-e ARENA_AGENT_ID=m-a", "agent --model m-a"} {
		if !strings.Contains(joined, want) {
			t.Errorf("new-window call missing %q: %s", want, joined)
		}
	}
}

func TestTmuxSpawnSanitizesDottedAgentID(t *testing.T) {
	b, runner := newFakeTmux()
	defer b.Cleanup()
	if err := b.Init(); err != nil {
		t.Fatal(err)
	}

	err := b.SpawnAgent(SpawnSpec{
		AgentID: "claude-3.5",
		Command: "agent",
		Dir:     "/tmp/wt",
	})
	if err != nil {
		t.Fatalf("SpawnAgent: %v", err)
	}

	var spawn []string
	for _, c := range runner.calls {
		if len(c) > 1 && c[1] == "new-window" {
			spawn = c
		}
	}
	if spawn == nil {
		t.Fatal("no new-window call recorded")
	}
	joined := strings.Join(spawn, " ")
	if !strings.Contains(joined, "-n claude-3-5") {
		t.Errorf("window name should not contain dots: %s", joined)
	}

	runner.outputs["capture-pane"] = "hello"
	if _, err := b.AgentSnapshot("claude-3.5", 0); err != nil {
		t.Fatalf("AgentSnapshot: %v", err)
	}
	var capture []string
	for _, c := range runner.calls {
		if len(c) > 1 && c[1] == "capture-pane" {
			capture = c
		}
	}
	joined = strings.Join(capture, " ")
	if !strings.Contains(joined, "arena-s-1:=claude-3-5") {
		t.Errorf("capture-pane should use the exact-match sanitized target: %s", joined)
	}
}

func TestTmuxSpawnRejectsWindowNameCollision(t *testing.T) {
	b, _ := newFakeTmux()
	defer b.Cleanup()
	if err := b.Init(); err != nil {
		t.Fatal(err)
	}

	if err := b.SpawnAgent(SpawnSpec{AgentID: "org/model", Command: "agent"}); err != nil {
		t.Fatalf("SpawnAgent: %v", err)
	}
	err := b.SpawnAgent(SpawnSpec{AgentID: "org:model", Command: "agent"})
	if err == nil {
		t.Fatal("second agent with a colliding window name should be rejected")
	}
	if !strings.Contains(err.Error(), "org/model") || !strings.Contains(err.Error(), "org:model") {
		t.Errorf("collision error should name both agents: %v", err)
	}
}

func TestTmuxStopUnknownAgent(t *testing.T) {
	b, _ := newFakeTmux()
	if err := b.StopAgent("nope"); !errors.Is(err, ErrNoSuchAgent) {
		t.Errorf("expected ErrNoSuchAgent, got %v", err)
	}
}

func TestTmuxAttachHint(t *testing.T) {
	b, _ := newFakeTmux()
	if got := b.AttachHint(); got != "tmux attach -t arena-s-1" {
		t.Errorf("AttachHint = %q", got)
	}
}

func TestTmuxSnapshot(t *testing.T) {
	b, runner := newFakeTmux()
	runner.outputs["capture-pane"] = "line one\nline two"

	snap, err := b.AgentSnapshot("m-a", 0)
	if err != nil {
		t.Fatalf("AgentSnapshot: %v", err)
	}
	if len(snap.Lines) != 2 || snap.Lines[1] != "line two" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}
