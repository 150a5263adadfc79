// Package worktree provides the per-agent isolated working copies of the
// source repository, backed by git worktrees, plus diff/apply/cleanup.
package worktree

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/modelarena/arena/internal/config"
	"github.com/modelarena/arena/internal/protocol"
)

// Worktree is one isolated working copy assigned to an agent.
type Worktree struct {
	Name    string
	Path    string
	Branch  string
	BaseRef string
}

// BatchResult reports the outcome of a batch worktree creation.
type BatchResult struct {
	Worktrees map[string]*Worktree
	Errors    map[string]error
	// Initialized reports whether the source repository needed first-time
	// initialization (no commits) before worktrees could be created.
	Initialized bool
}

// Service creates, diffs, applies, and cleans up session worktrees.
type Service struct {
	sourceRepo string
	root       string
}

// NewService creates a worktree service for one source repository. Session
// artifacts (including worktrees) are placed under root/<sessionID>/.
func NewService(sourceRepo, root string) *Service {
	return &Service{sourceRepo: sourceRepo, root: root}
}

// SessionDir returns the artifact directory for a session.
func (s *Service) SessionDir(sessionID string) string {
	return config.SessionDir(s.root, sessionID)
}

// CreateBatch creates one worktree per name for the given session. Every name
// is attempted; per-name failures are collected in BatchResult.Errors so the
// caller can abort with an aggregated error rather than partially start.
func (s *Service) CreateBatch(ctx context.Context, sessionID string, names []string) (*BatchResult, error) {
	initialized, err := s.ensureInitialized(ctx)
	if err != nil {
		return nil, fmt.Errorf("source repository not usable: %w", err)
	}

	baseRef, err := gitOutput(ctx, s.sourceRepo, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("resolve source HEAD: %w", err)
	}
	baseRef = strings.TrimSpace(baseRef)

	wtDir := config.WorktreesDir(s.SessionDir(sessionID))
	if err := os.MkdirAll(wtDir, 0o755); err != nil {
		return nil, fmt.Errorf("create worktrees dir: %w", err)
	}

	// Prune stale worktree tracking (best-effort, handles manually deleted
	// directories from an earlier crashed session).
	_ = runGit(ctx, s.sourceRepo, "worktree", "prune")

	res := &BatchResult{
		Worktrees:   make(map[string]*Worktree, len(names)),
		Errors:      make(map[string]error),
		Initialized: initialized,
	}
	for _, name := range names {
		safe := protocol.SafeAgentID(name)
		path := filepath.Join(wtDir, safe)
		branch := fmt.Sprintf("arena/%s/%s", sessionID, safe)

		if err := runGit(ctx, s.sourceRepo, "worktree", "add", path, "-b", branch, baseRef); err != nil {
			res.Errors[name] = err
			continue
		}
		res.Worktrees[name] = &Worktree{Name: name, Path: path, Branch: branch, BaseRef: baseRef}
	}
	return res, nil
}

// Diff returns the worktree's changes against its base ref, including
// untracked files. Everything is staged first so new files show up; the
// worktree is private to its agent, so mutating its index is fine.
func (s *Service) Diff(ctx context.Context, wt *Worktree) (string, error) {
	if err := runGit(ctx, wt.Path, "add", "-A"); err != nil {
		return "", fmt.Errorf("stage worktree %s: %w", wt.Name, err)
	}
	out, err := gitOutput(ctx, wt.Path, "diff", "--cached", wt.BaseRef)
	if err != nil {
		return "", fmt.Errorf("diff worktree %s: %w", wt.Name, err)
	}
	return out, nil
}

// Apply commits the worktree's changes on its branch and merges that branch
// into the source repository with --no-ff. Returns nil with no merge when the
// worktree has no changes.
func (s *Service) Apply(ctx context.Context, wt *Worktree) error {
	if err := runGit(ctx, wt.Path, "add", "-A"); err != nil {
		return fmt.Errorf("stage worktree %s: %w", wt.Name, err)
	}

	staged, err := gitOutput(ctx, wt.Path, "diff", "--cached", "--stat", wt.BaseRef)
	if err != nil {
		return fmt.Errorf("check worktree %s changes: %w", wt.Name, err)
	}
	if strings.TrimSpace(staged) == "" {
		log.Printf("[worktree] %s has no changes, nothing to apply", wt.Name)
		return nil
	}

	// Commit whatever is pending on the agent branch. A previous agent commit
	// may already cover everything, in which case commit fails with "nothing
	// to commit" and the merge below still applies the branch.
	if err := runGit(ctx, wt.Path, "commit", "-m", fmt.Sprintf("arena: apply result from %s", wt.Name)); err != nil {
		pending, statErr := gitOutput(ctx, wt.Path, "status", "--porcelain")
		if statErr != nil || strings.TrimSpace(pending) != "" {
			return fmt.Errorf("commit worktree %s: %w", wt.Name, err)
		}
	}

	if err := runGit(ctx, s.sourceRepo, "merge", "--no-ff", wt.Branch, "-m", fmt.Sprintf("Merge %s", wt.Branch)); err != nil {
		// Abort the failed merge so the source repo is left clean.
		if abortErr := runGit(ctx, s.sourceRepo, "merge", "--abort"); abortErr != nil {
			log.Printf("[worktree] merge abort failed: %v", abortErr)
		}
		return fmt.Errorf("merge %s into source: %w", wt.Branch, err)
	}
	return nil
}

// Resolve reconstructs a session worktree record from its on-disk artifacts,
// for operating on a persisted session after the orchestrator is gone.
func (s *Service) Resolve(ctx context.Context, sessionID, name string) (*Worktree, error) {
	safe := protocol.SafeAgentID(name)
	path := filepath.Join(config.WorktreesDir(s.SessionDir(sessionID)), safe)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("worktree for %s: %w", name, err)
	}
	branch := fmt.Sprintf("arena/%s/%s", sessionID, safe)
	base, err := gitOutput(ctx, s.sourceRepo, "merge-base", "HEAD", branch)
	if err != nil {
		return nil, fmt.Errorf("resolve base for %s: %w", name, err)
	}
	return &Worktree{Name: name, Path: path, Branch: branch, BaseRef: strings.TrimSpace(base)}, nil
}

// CleanupSession removes every worktree and branch belonging to the session,
// then deletes the session's worktrees directory.
func (s *Service) CleanupSession(ctx context.Context, sessionID string) error {
	wtDir := config.WorktreesDir(s.SessionDir(sessionID))
	entries, err := os.ReadDir(wtDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read worktrees dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(wtDir, entry.Name())
		if err := runGit(ctx, s.sourceRepo, "worktree", "remove", "--force", path); err != nil {
			log.Printf("[worktree] remove failed for %s: %v", path, err)
			if rmErr := os.RemoveAll(path); rmErr != nil {
				log.Printf("[worktree] directory removal failed: %v", rmErr)
			}
		}
		branch := fmt.Sprintf("arena/%s/%s", sessionID, entry.Name())
		if err := runGit(ctx, s.sourceRepo, "branch", "-D", branch); err != nil {
			log.Printf("[worktree] branch delete failed for %s: %v", branch, err)
		}
	}

	_ = runGit(ctx, s.sourceRepo, "worktree", "prune")
	return os.RemoveAll(wtDir)
}

// ensureInitialized makes sure the source repository has at least one commit,
// creating an empty initial commit when HEAD is unborn. Reports whether
// initialization was needed.
func (s *Service) ensureInitialized(ctx context.Context) (bool, error) {
	if _, err := gitOutput(ctx, s.sourceRepo, "rev-parse", "--git-dir"); err != nil {
		return false, fmt.Errorf("not a git repository: %s", s.sourceRepo)
	}
	if _, err := gitOutput(ctx, s.sourceRepo, "rev-parse", "HEAD"); err == nil {
		return false, nil
	}

	log.Printf("[worktree] source repo has no commits, creating initial commit")
	if err := runGit(ctx, s.sourceRepo, "commit", "--allow-empty", "-m", "arena: initial commit"); err != nil {
		return false, fmt.Errorf("initialize source repo: %w", err)
	}
	return true, nil
}

func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %v: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func runGit(ctx context.Context, dir string, args ...string) error {
	_, err := gitOutput(ctx, dir, args...)
	return err
}
