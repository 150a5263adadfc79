package arena

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/modelarena/arena/internal/backend"
	"github.com/modelarena/arena/internal/config"
	"github.com/modelarena/arena/internal/events"
	"github.com/modelarena/arena/internal/models"
	"github.com/modelarena/arena/internal/protocol"
)

// provisionWorktrees requests one isolated worktree per agent in a single
// batch call. Any per-agent failure aborts the whole session with an
// aggregated error; a session never partially starts with missing worktrees.
func (o *Orchestrator) provisionWorktrees(ctx context.Context) error {
	o.mu.Lock()
	cfg := o.cfg
	o.mu.Unlock()

	names := make([]string, len(cfg.Models))
	for i, m := range cfg.Models {
		names[i] = m.Name()
	}

	res, err := o.worktrees.CreateBatch(ctx, cfg.SessionID, names)
	if err != nil {
		return fmt.Errorf("worktree provisioning: %w", err)
	}
	if len(res.Errors) > 0 {
		failed := make([]string, 0, len(res.Errors))
		for name := range res.Errors {
			failed = append(failed, name)
		}
		sort.Strings(failed)
		errs := make([]error, 0, len(failed)+1)
		errs = append(errs, fmt.Errorf("worktree provisioning failed for %d agent(s)", len(failed)))
		for _, name := range failed {
			errs = append(errs, fmt.Errorf("%s: %w", name, res.Errors[name]))
		}
		return errors.Join(errs...)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.sourceInit = res.Initialized
	for _, m := range cfg.Models {
		wt := res.Worktrees[m.Name()]
		st := &agentState{
			id:       m.ID,
			safeID:   protocol.SafeAgentID(m.ID),
			model:    m,
			status:   models.AgentInitializing,
			worktree: wt,
		}
		o.agents[m.ID] = st
		o.order = append(o.order, m.ID)
	}
	return nil
}

// spawnAgents starts one backend process per agent, sequentially so attached
// UIs see panes appear one by one. A spawn failure is agent-scoped: that
// agent is terminated with its error recorded and the rest proceed.
func (o *Orchestrator) spawnAgents() {
	o.mu.Lock()
	cfg := o.cfg
	order := append([]string(nil), o.order...)
	o.mu.Unlock()

	bin, binErr := o.resolveAgentBinary()

	for _, id := range order {
		o.mu.Lock()
		st := o.agents[id]
		st.status = models.AgentRunning
		st.startedAt = o.now()
		o.mu.Unlock()

		o.emitAgent(events.AgentStart, st)

		if binErr != nil {
			o.failSpawn(st, fmt.Errorf("resolve agent binary: %w", binErr))
			continue
		}

		spec := backend.SpawnSpec{
			AgentID: id,
			Command: bin,
			Args:    o.buildArgs(cfg, st),
			Dir:     st.worktree.Path,
			Env:     o.buildEnv(cfg, st),
			Rows:    cfg.Rows,
			Cols:    cfg.Cols,
		}
		if err := o.backend.SpawnAgent(spec); err != nil {
			o.failSpawn(st, err)
			continue
		}
		log.Printf("[arena] spawned agent %s in %s", id, st.worktree.Path)
	}
}

// failSpawn records an agent-scoped spawn failure.
func (o *Orchestrator) failSpawn(st *agentState, err error) {
	log.Printf("[arena] spawn failed for %s: %v", st.id, err)
	o.mu.Lock()
	st.err = err.Error()
	st.status = models.AgentTerminated
	st.finalize(o.now())
	o.mu.Unlock()
	o.emitAgent(events.AgentError, st)
}

// onAgentExit is the single exit callback registered with the backend. A
// non-zero exit that was not caused by an intentional abort is recorded as an
// agent error; in all cases the duration is finalized and a non-completed
// agent becomes terminated.
func (o *Orchestrator) onAgentExit(agentID string, exitCode int, signal string) {
	o.mu.Lock()
	st, ok := o.agents[agentID]
	if !ok || st.status.Terminal() {
		o.mu.Unlock()
		return
	}

	intentional := st.aborted || o.cancelled
	var failed bool
	if exitCode != 0 && signal == "" && !intentional {
		st.err = fmt.Sprintf("agent process exited with code %d", exitCode)
		failed = true
	}

	st.finalize(o.now())
	if st.status != models.AgentCompleted {
		st.status = models.AgentTerminated
	}
	o.mu.Unlock()

	log.Printf("[arena] agent %s exited (code=%d signal=%q)", agentID, exitCode, signal)
	if failed {
		o.emitAgent(events.AgentError, st)
	}
	o.emitAgent(events.AgentStatusChange, st)
}

// dispatchStop writes a stop control signal for the agent. Control signals
// are advisory; a write failure is logged and swallowed.
func (o *Orchestrator) dispatchStop(st *agentState, reason string) {
	if err := protocol.WriteControlSignal(o.controlDir(), st.safeID, models.ControlStop, reason); err != nil {
		log.Printf("[arena] control signal write failed for %s: %v", st.id, err)
	}
}

// buildArgs assembles the agent CLI arguments selecting the model, approval
// mode, and the interactive task prompt.
func (o *Orchestrator) buildArgs(cfg *models.ArenaConfig, st *agentState) []string {
	args := []string{
		"--model", st.model.ID,
		"--approval-mode", cfg.ApprovalMode,
	}
	if cfg.MaxRounds > 0 {
		args = append(args, "--max-rounds", fmt.Sprint(cfg.MaxRounds))
	}
	if o.modelAPIKey(st.model) != "" {
		args = append(args, "--auth-mode", "api-key")
	}
	args = append(args, "-i", cfg.Task)
	return args
}

// buildEnv assembles the agent identity environment plus optional per-model
// credential overrides.
func (o *Orchestrator) buildEnv(cfg *models.ArenaConfig, st *agentState) []string {
	o.mu.Lock()
	dir := o.sessionDir
	o.mu.Unlock()

	env := []string{
		"ARENA_AGENT=1",
		"ARENA_AGENT_ID=" + st.id,
		"ARENA_SESSION_ID=" + cfg.SessionID,
		"ARENA_SESSION_DIR=" + dir,
	}
	if key := o.modelAPIKey(st.model); key != "" {
		env = append(env, "ARENA_API_KEY="+key)
	}
	if url := o.modelBaseURL(st.model); url != "" {
		env = append(env, "ARENA_BASE_URL="+url)
	}
	return env
}

func (o *Orchestrator) modelAPIKey(m models.ModelSpec) string {
	if m.APIKey != "" {
		return m.APIKey
	}
	return o.settings.Models[m.ID].APIKey
}

func (o *Orchestrator) modelBaseURL(m models.ModelSpec) string {
	if m.BaseURL != "" {
		return m.BaseURL
	}
	return o.settings.Models[m.ID].BaseURL
}

// resolveAgentBinary finds the agent CLI.
// Check order: settings.yaml override, exec.LookPath, home fallback.
func (o *Orchestrator) resolveAgentBinary() (string, error) {
	if o.settings.AgentBinary != "" {
		if _, err := os.Stat(o.settings.AgentBinary); err == nil {
			return o.settings.AgentBinary, nil
		}
		return "", fmt.Errorf("configured agent binary not found: %s", o.settings.AgentBinary)
	}

	if path, err := exec.LookPath(defaultAgentBinary); err == nil {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err == nil {
		fallback := filepath.Join(home, config.GlobalDirName, "bin", defaultAgentBinary)
		if _, err := os.Stat(fallback); err == nil {
			return fallback, nil
		}
	}
	return "", fmt.Errorf("agent binary %q not found; install it or set agent_binary in settings.yaml", defaultAgentBinary)
}

// defaultAgentBinary is the agent CLI spawned per model when settings do not
// override it.
const defaultAgentBinary = "qwen"
