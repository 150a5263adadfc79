package worktree

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func newTestRepo(t *testing.T, withCommit bool) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	run("init")
	run("config", "user.email", "arena@test.local")
	run("config", "user.name", "arena test")
	if withCommit {
		if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		run("add", "-A")
		run("commit", "-m", "initial")
	}
	return dir
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func TestCreateBatch(t *testing.T) {
	requireGit(t)
	repo := newTestRepo(t, true)
	svc := NewService(repo, t.TempDir())

	res, err := svc.CreateBatch(context.Background(), "s-1", []string{"m-a", "org/model"})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if res.Initialized {
		t.Error("repo with commits should not report initialization")
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected per-name errors: %v", res.Errors)
	}
	if len(res.Worktrees) != 2 {
		t.Fatalf("expected 2 worktrees, got %d", len(res.Worktrees))
	}

	wt := res.Worktrees["org/model"]
	if wt == nil {
		t.Fatal("missing worktree for org/model")
	}
	if strings.Contains(filepath.Base(wt.Path), "/") {
		t.Errorf("worktree path not filesystem safe: %s", wt.Path)
	}
	if _, err := os.Stat(filepath.Join(wt.Path, "README.md")); err != nil {
		t.Errorf("worktree missing source content: %v", err)
	}
}

func TestCreateBatchInitializesEmptyRepo(t *testing.T) {
	requireGit(t)
	repo := newTestRepo(t, false)
	svc := NewService(repo, t.TempDir())

	res, err := svc.CreateBatch(context.Background(), "s-1", []string{"m-a", "m-b"})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if !res.Initialized {
		t.Error("empty repo should report first-time initialization")
	}
	if len(res.Worktrees) != 2 {
		t.Fatalf("expected 2 worktrees, got %d (errors: %v)", len(res.Worktrees), res.Errors)
	}
}

func TestDiffAndApply(t *testing.T) {
	requireGit(t)
	repo := newTestRepo(t, true)
	svc := NewService(repo, t.TempDir())

	res, err := svc.CreateBatch(context.Background(), "s-1", []string{"m-a"})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	wt := res.Worktrees["m-a"]

	// Agent writes a new file in its worktree.
	if err := os.WriteFile(filepath.Join(wt.Path, "agent.txt"), []byte("output\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	diff, err := svc.Diff(context.Background(), wt)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !strings.Contains(diff, "agent.txt") {
		t.Errorf("diff should mention the new file:\n%s", diff)
	}

	if err := svc.Apply(context.Background(), wt); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := os.Stat(filepath.Join(repo, "agent.txt")); err != nil {
		t.Errorf("applied file missing from source repo: %v", err)
	}
}

func TestApplyNoChanges(t *testing.T) {
	requireGit(t)
	repo := newTestRepo(t, true)
	svc := NewService(repo, t.TempDir())

	res, err := svc.CreateBatch(context.Background(), "s-1", []string{"m-a"})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if err := svc.Apply(context.Background(), res.Worktrees["m-a"]); err != nil {
		t.Errorf("apply with no changes should be a no-op, got %v", err)
	}
}

func TestResolveReconstructsWorktree(t *testing.T) {
	requireGit(t)
	repo := newTestRepo(t, true)
	svc := NewService(repo, t.TempDir())

	res, err := svc.CreateBatch(context.Background(), "s-1", []string{"org/model"})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	created := res.Worktrees["org/model"]

	wt, err := svc.Resolve(context.Background(), "s-1", "org/model")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if wt.Path != created.Path {
		t.Errorf("path = %s, want %s", wt.Path, created.Path)
	}
	if wt.Branch != created.Branch {
		t.Errorf("branch = %s, want %s", wt.Branch, created.Branch)
	}
	if wt.BaseRef == "" {
		t.Error("base ref not resolved")
	}

	if _, err := svc.Resolve(context.Background(), "s-1", "unknown"); err == nil {
		t.Error("resolving an unknown worktree should fail")
	}
}

func TestCleanupSession(t *testing.T) {
	requireGit(t)
	repo := newTestRepo(t, true)
	root := t.TempDir()
	svc := NewService(repo, root)

	res, err := svc.CreateBatch(context.Background(), "s-1", []string{"m-a", "m-b"})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if err := svc.CleanupSession(context.Background(), "s-1"); err != nil {
		t.Fatalf("CleanupSession: %v", err)
	}
	for _, wt := range res.Worktrees {
		if _, err := os.Stat(wt.Path); !os.IsNotExist(err) {
			t.Errorf("worktree %s not removed", wt.Path)
		}
	}
}
