package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/modelarena/arena/internal/arena"
	"github.com/modelarena/arena/internal/backend"
	"github.com/modelarena/arena/internal/config"
	"github.com/modelarena/arena/internal/events"
	"github.com/modelarena/arena/internal/models"
	"github.com/modelarena/arena/internal/worktree"
)

var runFlags struct {
	models       []string
	task         string
	repo         string
	timeoutSec   int
	maxRounds    int
	approvalMode string
	backendKind  string
	keep         bool
	apply        string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a task against multiple models",
	Long: `Run one task against 2-4 model backends concurrently.

Each model gets its own git worktree copy of the source repository and an
isolated agent process. The session settles when every agent finishes or the
timeout elapses; agent diffs are printed in a summary afterwards.

Examples:
  arena run -m openai/gpt-5 -m qwen3-coder-plus -t "add a --json flag to the list command"
  arena run -m a -m b -t "fix the race in the watcher" --apply a`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringArrayVarP(&runFlags.models, "model", "m", nil, "model ID to race (repeat 2-4 times)")
	f.StringVarP(&runFlags.task, "task", "t", "", "task prompt given to every agent")
	f.StringVar(&runFlags.repo, "repo", "", "source repository path (default: current directory)")
	f.IntVar(&runFlags.timeoutSec, "timeout", 0, "session timeout in seconds (default: settings or 1800)")
	f.IntVar(&runFlags.maxRounds, "max-rounds", 0, "cap on agent rounds, 0 for unlimited")
	f.StringVar(&runFlags.approvalMode, "approval-mode", "yolo", "agent approval mode")
	f.StringVar(&runFlags.backendKind, "backend", "auto", "process backend: auto, pty, tmux, headless")
	f.BoolVar(&runFlags.keep, "keep", false, "keep worktrees and session artifacts after the run")
	f.StringVar(&runFlags.apply, "apply", "", "apply this model's result to the source repo when it completes")
}

func runRun(cmd *cobra.Command, args []string) error {
	repo := runFlags.repo
	if repo == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		repo = wd
	}
	if runFlags.task == "" {
		return fmt.Errorf("a task is required (-t)")
	}

	settings, err := config.LoadSettings()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	specs := make([]models.ModelSpec, len(runFlags.models))
	for i, id := range runFlags.models {
		specs[i] = models.ModelSpec{ID: id}
	}

	root, err := config.SessionsRoot()
	if err != nil {
		return err
	}

	be, err := backend.Detect(backend.Kind(runFlags.backendKind), shortID())
	if err != nil {
		return err
	}

	orch := newOrchestrator(be, repo, root, settings)
	unsubscribe := orch.Events().Subscribe(printEvent)
	defer unsubscribe()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		orch.Cancel()
	}()

	rows, cols := terminalGeometry()
	res, err := orch.Start(ctx, arena.StartOptions{
		Task:         runFlags.task,
		Models:       specs,
		MaxRounds:    runFlags.maxRounds,
		TimeoutSec:   runFlags.timeoutSec,
		ApprovalMode: runFlags.approvalMode,
		SourceRepo:   repo,
		Rows:         rows,
		Cols:         cols,
	})
	if err != nil {
		return err
	}

	printSummary(res)
	if hint := be.AttachHint(); hint != "" {
		fmt.Println(styleHint.Render(hint))
	}

	if runFlags.apply != "" {
		if err := orch.ApplyAgentResult(context.Background(), runFlags.apply); err != nil {
			return fmt.Errorf("apply %s: %w", runFlags.apply, err)
		}
		fmt.Println(styleSuccess.Render(fmt.Sprintf("Applied %s's result to %s", runFlags.apply, repo)))
	}

	if runFlags.keep {
		orch.CleanupRuntime()
		fmt.Println(styleHint.Render("Artifacts kept under " + root))
	} else {
		if err := orch.Cleanup(context.Background()); err != nil {
			fmt.Println(styleWarning.Render("cleanup: " + err.Error()))
		}
	}

	if res.Status != models.SessionCompleted {
		return fmt.Errorf("session ended %s", res.Status)
	}
	return nil
}

func newOrchestrator(be backend.Backend, repo, root string, settings *models.Settings) *arena.Orchestrator {
	wts := worktree.NewService(repo, root)
	return arena.New(be, wts, events.NewEmitter(), settings)
}

func terminalGeometry() (rows, cols int) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 || h <= 0 {
		return 24, 80
	}
	return h, w
}

func shortID() string {
	return uuid.NewString()[:8]
}

// printEvent renders one lifecycle event as a log line. Stats updates are
// suppressed to keep the stream readable.
func printEvent(ev events.Event) {
	switch ev.Type {
	case events.SessionStart:
		fmt.Println(styleBrand.Render("arena") + styleLabel.Render(" session "+ev.SessionID))
	case events.AgentStart:
		fmt.Println(styleLabel.Render("  started ") + styleValue.Render(ev.AgentID))
	case events.AgentComplete:
		fmt.Println(styleSuccess.Render("  completed ") + styleValue.Render(ev.AgentID))
	case events.AgentError:
		fmt.Println(styleError.Render("  error ") + styleValue.Render(ev.AgentID) + styleLabel.Render(" "+ev.Err))
	case events.AgentStatusChange:
		if ev.Status == models.AgentTerminated || ev.Status == models.AgentCancelled {
			fmt.Println(styleWarning.Render("  "+string(ev.Status)+" ") + styleValue.Render(ev.AgentID))
		}
	case events.SessionError:
		fmt.Println(styleError.Render("session error: " + ev.Err))
	case events.SessionComplete:
		fmt.Println(styleLabel.Render("session " + string(ev.SessionStatus)))
	}
}

func printSummary(res *models.ArenaSessionResult) {
	fmt.Println()
	fmt.Println(styleBrand.Render("Results"))
	for _, ar := range res.Agents {
		badge := badgeForStatus(ar.Status)
		line := fmt.Sprintf("  %-12s %s", badge.Render(string(ar.Status)), styleValue.Render(ar.DisplayName))
		line += styleLabel.Render(fmt.Sprintf("  rounds=%d tools=%d tokens=%d/%d %s",
			ar.Stats.Rounds, ar.Stats.ToolCalls, ar.Stats.InputTokens, ar.Stats.OutputTokens,
			formatDuration(ar.Stats.DurationMs)))
		fmt.Println(line)
		if ar.Error != "" {
			fmt.Println(styleError.Render("    " + ar.Error))
		}
		if ar.Diff != "" {
			fmt.Println(styleLabel.Render(fmt.Sprintf("    %d changed line(s), worktree %s",
				strings.Count(ar.Diff, "\n"), ar.WorktreePath)))
		}
	}
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}
