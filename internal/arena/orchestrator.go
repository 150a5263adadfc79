package arena

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modelarena/arena/internal/backend"
	"github.com/modelarena/arena/internal/config"
	"github.com/modelarena/arena/internal/events"
	"github.com/modelarena/arena/internal/models"
	"github.com/modelarena/arena/internal/worktree"
)

// Sentinel errors callers branch on.
var (
	ErrSessionNotRunning = errors.New("arena: session is not running")
	ErrAgentNotCompleted = errors.New("arena: agent has not completed")
)

// WorktreeService is the slice of the worktree layer the orchestrator
// consumes. *worktree.Service implements it; tests substitute fakes.
type WorktreeService interface {
	CreateBatch(ctx context.Context, sessionID string, names []string) (*worktree.BatchResult, error)
	Diff(ctx context.Context, wt *worktree.Worktree) (string, error)
	Apply(ctx context.Context, wt *worktree.Worktree) error
	CleanupSession(ctx context.Context, sessionID string) error
	SessionDir(sessionID string) string
}

// StartOptions is the caller's request to run one arena session.
type StartOptions struct {
	Task         string
	Models       []models.ModelSpec
	MaxRounds    int
	TimeoutSec   int
	ApprovalMode string
	SourceRepo   string
	Rows         int
	Cols         int
}

// Orchestrator owns one arena session: the session and per-agent state
// machines, backend spawning, status polling, control dispatch, timeout, and
// result collection. It holds no package-level state; callers may run
// multiple orchestrators concurrently.
type Orchestrator struct {
	backend   backend.Backend
	worktrees WorktreeService
	emitter   *events.Emitter
	settings  *models.Settings

	// now is the clock; swapped in tests.
	now func() time.Time

	mu         sync.Mutex
	cfg        *models.ArenaConfig
	status     models.SessionStatus
	agents     map[string]*agentState
	order      []string
	sessionDir string
	sourceInit bool
	startedAt  time.Time
	cancelled  bool
	result     *models.ArenaSessionResult

	masterCtx    context.Context
	masterCancel context.CancelFunc

	pollStop chan struct{}
	pollDone chan struct{}
}

// New creates an orchestrator. A nil settings uses defaults.
func New(b backend.Backend, wts WorktreeService, em *events.Emitter, settings *models.Settings) *Orchestrator {
	if em == nil {
		em = events.NewEmitter()
	}
	if settings == nil {
		settings = models.NewSettings()
	}
	return &Orchestrator{
		backend:   b,
		worktrees: wts,
		emitter:   em,
		settings:  settings,
		now:       time.Now,
		agents:    make(map[string]*agentState),
		status:    models.SessionInitializing,
	}
}

// Events returns the emitter carrying session/agent lifecycle notifications.
func (o *Orchestrator) Events() *events.Emitter { return o.emitter }

// Config returns the frozen session config, nil before Start.
func (o *Orchestrator) Config() *models.ArenaConfig {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

// Status returns the current session status.
func (o *Orchestrator) Status() models.SessionStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Result returns the cached session result, nil until the session settles.
func (o *Orchestrator) Result() *models.ArenaSessionResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result
}

// Start validates the request, provisions worktrees, spawns one process per
// agent, polls the sideband status files until every agent settles or the
// timeout elapses, and returns the aggregated session result.
//
// Validation failures return before any side effect. Any later failure marks
// the session failed, emits a session error event, and is returned to the
// caller.
func (o *Orchestrator) Start(ctx context.Context, opts StartOptions) (result *models.ArenaSessionResult, err error) {
	if err := o.validate(opts); err != nil {
		return nil, err
	}

	cfg := o.freezeConfig(opts)

	o.mu.Lock()
	o.cfg = cfg
	o.status = models.SessionInitializing
	o.startedAt = cfg.CreatedAt
	o.sessionDir = o.worktrees.SessionDir(cfg.SessionID)
	o.mu.Unlock()

	masterCtx, masterCancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.masterCtx = masterCtx
	o.masterCancel = masterCancel
	o.mu.Unlock()

	defer func() {
		if err != nil {
			o.mu.Lock()
			o.status = models.SessionFailed
			o.mu.Unlock()
			o.emitSession(events.SessionError, err.Error())
		}
	}()

	o.emitSession(events.SessionStart, "")

	o.backend.SetOnAgentExit(o.onAgentExit)
	if err = o.backend.Init(); err != nil {
		return nil, fmt.Errorf("backend init: %w", err)
	}
	if o.cancelRequested() {
		return o.settle(false), nil
	}

	if err = o.provisionWorktrees(masterCtx); err != nil {
		return nil, err
	}
	if o.cancelRequested() {
		return o.settle(false), nil
	}

	o.mu.Lock()
	o.status = models.SessionRunning
	o.mu.Unlock()
	o.emitSession(events.SessionUpdate, "")

	o.spawnAgents()
	o.startPolling()

	settled := o.waitForAllAgentsSettled(cfg.Timeout())
	return o.settle(settled), nil
}

// settle stops polling, applies timeout semantics when the session did not
// settle, collects the result, and emits the completion event. The session's
// terminal status is set exactly once.
func (o *Orchestrator) settle(settled bool) *models.ArenaSessionResult {
	o.stopPolling()

	if !settled {
		o.timeOut()
	}

	res := o.collectResult()

	o.mu.Lock()
	if !o.status.Terminal() {
		if o.cancelled {
			o.status = models.SessionCancelled
		} else {
			o.status = models.SessionCompleted
		}
	}
	res.Status = o.status
	o.result = res
	o.mu.Unlock()

	o.emitSession(events.SessionComplete, "")
	return res
}

// timeOut force-stops every unsettled agent and marks the session cancelled.
// A session timeout is a cancellation, not a failure.
func (o *Orchestrator) timeOut() {
	o.mu.Lock()
	var active []*agentState
	for _, id := range o.order {
		if st := o.agents[id]; !st.status.Settled() {
			st.abort()
			active = append(active, st)
		}
	}
	o.status = models.SessionCancelled
	o.mu.Unlock()

	for _, st := range active {
		log.Printf("[arena] session timeout, stopping agent %s", st.id)
		o.dispatchStop(st, "session timeout")
		if err := o.backend.StopAgent(st.id); err != nil {
			log.Printf("[arena] stop failed for %s: %v", st.id, err)
		}
	}

	now := o.now()
	o.mu.Lock()
	for _, st := range active {
		if st.status.Settled() {
			continue
		}
		st.status = models.AgentTerminated
		st.finalize(now)
	}
	o.mu.Unlock()

	for _, st := range active {
		o.emitAgent(events.AgentStatusChange, st)
	}
}

// Cancel stops polling, signals the master abort token, force-stops every
// managed process, and terminates every agent that has not settled.
// Idempotent; safe before or after natural completion.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	if o.cancelled {
		o.mu.Unlock()
		return
	}
	o.cancelled = true
	cancel := o.masterCancel
	o.mu.Unlock()

	o.stopPolling()
	if cancel != nil {
		cancel()
	}
	o.backend.StopAll()

	now := o.now()
	o.mu.Lock()
	var changed []*agentState
	for _, id := range o.order {
		st := o.agents[id]
		if st.status.Settled() {
			continue
		}
		st.abort()
		st.status = models.AgentTerminated
		st.finalize(now)
		changed = append(changed, st)
	}
	if !o.status.Terminal() {
		o.status = models.SessionCancelled
	}
	o.mu.Unlock()

	for _, st := range changed {
		o.emitAgent(events.AgentStatusChange, st)
	}
}

// StopAgent sends a stop control signal to one agent and force-stops its
// process. The control write is best-effort; a failure is logged, not
// returned.
func (o *Orchestrator) StopAgent(agentID, reason string) error {
	o.mu.Lock()
	running := o.status == models.SessionRunning
	st, ok := o.agents[agentID]
	if ok && running {
		st.abort()
	}
	o.mu.Unlock()
	if !running {
		return ErrSessionNotRunning
	}
	if !ok {
		return fmt.Errorf("arena: unknown agent %s", agentID)
	}

	o.dispatchStop(st, reason)
	return o.backend.StopAgent(agentID)
}

// ApplyAgentResult applies the named agent's worktree changes onto the source
// repository. Fails unless the agent is currently completed; the source repo
// is never touched in that case.
func (o *Orchestrator) ApplyAgentResult(ctx context.Context, agentID string) error {
	o.mu.Lock()
	st, ok := o.agents[agentID]
	var status models.AgentStatus
	var wt *worktree.Worktree
	if ok {
		status = st.status
		wt = st.worktree
	}
	o.mu.Unlock()

	if !ok {
		return fmt.Errorf("arena: unknown agent %s", agentID)
	}
	if status != models.AgentCompleted {
		return fmt.Errorf("%w: agent %s is %s", ErrAgentNotCompleted, agentID, status)
	}
	return o.worktrees.Apply(ctx, wt)
}

// CleanupRuntime releases backend and in-memory resources while preserving
// worktrees and on-disk session artifacts for later inspection.
func (o *Orchestrator) CleanupRuntime() {
	o.stopPolling()
	o.mu.Lock()
	if o.masterCancel != nil {
		o.masterCancel()
	}
	o.mu.Unlock()
	o.backend.Cleanup()
}

// Cleanup releases runtime resources and additionally deletes the worktrees
// and all on-disk session artifacts.
func (o *Orchestrator) Cleanup(ctx context.Context) error {
	o.CleanupRuntime()

	o.mu.Lock()
	cfg := o.cfg
	dir := o.sessionDir
	o.mu.Unlock()
	if cfg == nil {
		return nil
	}

	if err := o.worktrees.CleanupSession(ctx, cfg.SessionID); err != nil {
		return fmt.Errorf("cleanup worktrees: %w", err)
	}
	if dir != "" {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove session dir: %w", err)
		}
	}
	return nil
}

// cancelRequested reports whether the session was cancelled during setup,
// either explicitly or through the caller's context.
func (o *Orchestrator) cancelRequested() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancelled {
		return true
	}
	return o.masterCtx != nil && o.masterCtx.Err() != nil
}

// freezeConfig builds the immutable session config from the request and the
// global settings defaults.
func (o *Orchestrator) freezeConfig(opts StartOptions) *models.ArenaConfig {
	timeout := opts.TimeoutSec
	if timeout <= 0 {
		timeout = o.settings.DefaultTimeoutSec
	}
	if timeout <= 0 {
		timeout = 1800
	}
	rows, cols := opts.Rows, opts.Cols
	if rows <= 0 {
		rows = 24
	}
	if cols <= 0 {
		cols = 80
	}
	approval := opts.ApprovalMode
	if approval == "" {
		approval = "default"
	}

	return &models.ArenaConfig{
		SessionID:    uuid.NewString(),
		Task:         opts.Task,
		Models:       append([]models.ModelSpec(nil), opts.Models...),
		MaxRounds:    opts.MaxRounds,
		TimeoutSec:   timeout,
		ApprovalMode: approval,
		SourceRepo:   opts.SourceRepo,
		Rows:         rows,
		Cols:         cols,
		CreatedAt:    o.now(),
	}
}

// agentsDir returns the per-session status file directory.
func (o *Orchestrator) agentsDir() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return config.AgentsDir(o.sessionDir)
}

// controlDir returns the per-session control signal directory.
func (o *Orchestrator) controlDir() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return config.ControlDir(o.sessionDir)
}

func (o *Orchestrator) emitSession(t events.Type, errMsg string) {
	o.mu.Lock()
	var sessionID string
	if o.cfg != nil {
		sessionID = o.cfg.SessionID
	}
	status := o.status
	o.mu.Unlock()

	o.emitter.Emit(events.Event{
		Type:          t,
		SessionID:     sessionID,
		Timestamp:     o.now(),
		SessionStatus: status,
		Err:           errMsg,
	})
}

func (o *Orchestrator) emitAgent(t events.Type, st *agentState) {
	o.mu.Lock()
	var sessionID string
	if o.cfg != nil {
		sessionID = o.cfg.SessionID
	}
	ev := events.Event{
		Type:      t,
		SessionID: sessionID,
		AgentID:   st.id,
		Timestamp: o.now(),
		Status:    st.status,
		Stats:     st.stats,
		Err:       st.err,
	}
	o.mu.Unlock()

	o.emitter.Emit(ev)
}
