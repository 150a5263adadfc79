package backend

import (
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"
)

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestHeadlessSpawnAndExitCallback(t *testing.T) {
	requireSh(t)
	b := NewHeadless()
	defer b.Cleanup()

	var mu sync.Mutex
	exits := make(map[string]int)
	done := make(chan struct{})
	b.SetOnAgentExit(func(agentID string, code int, signal string) {
		mu.Lock()
		exits[agentID] = code
		mu.Unlock()
		close(done)
	})

	err := b.SpawnAgent(SpawnSpec{
		AgentID: "m-a",
		Command: "sh",
		Args:    []string{"-c", "echo hello; exit 3"},
		Dir:     t.TempDir(),
	})
	if err != nil {
		t.Fatalf("SpawnAgent: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("exit callback never fired")
	}

	mu.Lock()
	code := exits["m-a"]
	mu.Unlock()
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}

	snap, err := b.AgentSnapshot("m-a", 0)
	if err != nil {
		t.Fatalf("AgentSnapshot: %v", err)
	}
	if !strings.Contains(snap.Plain, "hello") {
		t.Errorf("snapshot missing process output: %q", snap.Plain)
	}
}

func TestHeadlessStopAgent(t *testing.T) {
	requireSh(t)
	b := NewHeadless()
	defer b.Cleanup()

	exited := make(chan struct{})
	b.SetOnAgentExit(func(string, int, string) { close(exited) })

	err := b.SpawnAgent(SpawnSpec{
		AgentID: "m-a",
		Command: "sh",
		Args:    []string{"-c", "sleep 60"},
		Dir:     t.TempDir(),
	})
	if err != nil {
		t.Fatalf("SpawnAgent: %v", err)
	}

	if err := b.StopAgent("m-a"); err != nil {
		t.Fatalf("StopAgent: %v", err)
	}
	select {
	case <-exited:
	case <-time.After(10 * time.Second):
		t.Fatal("stopped agent never reported exit")
	}
}

func TestHeadlessSwitchCycle(t *testing.T) {
	requireSh(t)
	b := NewHeadless()
	defer b.Cleanup()

	for _, id := range []string{"m-a", "m-b"} {
		err := b.SpawnAgent(SpawnSpec{AgentID: id, Command: "sh", Args: []string{"-c", "sleep 5"}, Dir: t.TempDir()})
		if err != nil {
			t.Fatalf("SpawnAgent %s: %v", id, err)
		}
	}

	if got := b.ActiveAgentID(); got != "m-a" {
		t.Errorf("first spawned agent should be active, got %s", got)
	}
	if got := b.SwitchToNext(); got != "m-b" {
		t.Errorf("SwitchToNext = %s, want m-b", got)
	}
	if got := b.SwitchToPrevious(); got != "m-a" {
		t.Errorf("SwitchToPrevious = %s, want m-a", got)
	}
}

func TestDetectExplicitKinds(t *testing.T) {
	if b, err := Detect(KindHeadless, "s-1"); err != nil || b == nil {
		t.Errorf("headless detect failed: %v", err)
	}
	if b, err := Detect(KindPTY, "s-1"); err != nil || b == nil {
		t.Errorf("pty detect failed: %v", err)
	}
	if _, err := Detect("bogus", "s-1"); err == nil {
		t.Error("unknown kind should error")
	}
}
