package arena

import (
	"log"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/modelarena/arena/internal/config"
	"github.com/modelarena/arena/internal/events"
	"github.com/modelarena/arena/internal/models"
	"github.com/modelarena/arena/internal/protocol"
)

// startPolling launches the fixed-interval status reconciliation loop. An
// fsnotify watcher on the agents directory wakes the loop early when a status
// file changes; the timer remains the source of truth, so a lost or missing
// watch degrades to plain polling.
func (o *Orchestrator) startPolling() {
	o.mu.Lock()
	if o.pollStop != nil {
		o.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	o.pollStop = stop
	o.pollDone = done
	o.mu.Unlock()

	nudge, closeWatch := watchAgentsDir(o.agentsDir())

	go func() {
		defer close(done)
		defer closeWatch()
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			case <-nudge:
			}
			o.pollTick()
		}
	}()
}

// stopPolling halts the reconciliation loop and waits for the in-flight tick
// to finish. Safe to call repeatedly.
func (o *Orchestrator) stopPolling() {
	o.mu.Lock()
	stop := o.pollStop
	done := o.pollDone
	o.pollStop = nil
	o.pollDone = nil
	o.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// watchAgentsDir returns a channel that pulses when anything in the agents
// directory changes, plus a closer. Watch setup failures are logged and
// yield an inert channel.
func watchAgentsDir(dir string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("[poll] agents dir unavailable: %v", err)
		return ch, func() {}
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("[poll] fsnotify unavailable, falling back to plain polling: %v", err)
		return ch, func() {}
	}
	if err := w.Add(dir); err != nil {
		log.Printf("[poll] watch failed for %s: %v", dir, err)
		_ = w.Close()
		return ch, func() {}
	}

	go func() {
		for {
			select {
			case _, ok := <-w.Events:
				if !ok {
					return
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("[poll] watch error: %v", err)
			}
		}
	}()
	return ch, func() { _ = w.Close() }
}

// pollTick reads every non-terminal agent's status file, applies the
// reconciliation rules, and rewrites the consolidated session document. File
// errors never abort the loop.
func (o *Orchestrator) pollTick() {
	agentsDir := o.agentsDir()

	o.mu.Lock()
	order := append([]string(nil), o.order...)
	o.mu.Unlock()

	for _, id := range order {
		o.mu.Lock()
		st := o.agents[id]
		skip := st == nil || st.status.Terminal()
		var safeID string
		if st != nil {
			safeID = st.safeID
		}
		o.mu.Unlock()
		if skip {
			continue
		}

		sf, err := protocol.ReadStatusFile(agentsDir, safeID)
		if err != nil {
			log.Printf("[poll] status read failed for %s: %v", id, err)
			continue
		}
		if sf == nil {
			// Not written yet; no update.
			continue
		}
		o.reconcile(id, sf)
	}

	o.writeConsolidated()
}

// reconcile overlays one status-file read onto local agent state. Only the
// specific from→to edges below cause a transition; anything else is ignored
// so a stale or out-of-order read cannot regress state.
func (o *Orchestrator) reconcile(id string, sf *models.StatusFile) {
	now := o.now()

	o.mu.Lock()
	st := o.agents[id]
	if st == nil || st.status.Terminal() {
		o.mu.Unlock()
		return
	}

	// Overlay reported stats, except duration: the agent's clock is not
	// trusted for that field.
	st.stats = sf.Stats
	st.stats.DurationMs = st.durationMs(now)

	var emit []events.Type
	switch {
	case sf.Status == models.FileStatusCompleted && st.status == models.AgentRunning:
		st.status = models.AgentCompleted
		st.finalize(now)
		emit = append(emit, events.AgentComplete, events.AgentStatusChange)

	case sf.Status == models.FileStatusCancelled && st.status == models.AgentRunning:
		st.status = models.AgentCancelled
		st.finalize(now)
		emit = append(emit, events.AgentStatusChange)

	case sf.Status == models.FileStatusError && st.status == models.AgentRunning:
		st.err = sf.Error
		if st.err == "" {
			st.err = "agent reported an error"
		}
		st.status = models.AgentTerminated
		st.finalize(now)
		emit = append(emit, events.AgentError, events.AgentStatusChange)

	case sf.Status == models.FileStatusRunning && st.status == models.AgentCompleted:
		// The agent received a follow-up turn; a resumed session, not a
		// restart.
		st.status = models.AgentRunning
		st.resume()
		emit = append(emit, events.AgentStatusChange)
	}
	o.mu.Unlock()

	o.emitAgent(events.AgentStatsUpdate, st)
	for _, t := range emit {
		o.emitAgent(t, st)
	}
}

// writeConsolidated atomically rewrites the session-level status document:
// read the existing document (or synthesize a minimal one), overlay the
// timestamp and the full per-agent status map, and rename a temp file over
// the real path. Best-effort: failures are logged, never raised.
func (o *Orchestrator) writeConsolidated() {
	o.mu.Lock()
	cfg := o.cfg
	dir := o.sessionDir
	o.mu.Unlock()
	if cfg == nil || dir == "" {
		return
	}
	path := config.SessionFile(dir)

	doc, err := protocol.ReadSessionFile(path)
	if err != nil {
		log.Printf("[poll] session file read failed: %v", err)
		doc = nil
	}
	if doc == nil {
		names := make([]string, len(cfg.Models))
		for i, m := range cfg.Models {
			names[i] = m.Name()
		}
		doc = &models.SessionFile{
			ArenaSessionID: cfg.SessionID,
			SourceRepoPath: cfg.SourceRepo,
			WorktreeNames:  names,
			CreatedAt:      cfg.CreatedAt.UnixMilli(),
		}
	}

	now := o.now()
	doc.UpdatedAt = now.UnixMilli()
	doc.Agents = make(map[string]models.StatusFile)

	o.mu.Lock()
	for _, id := range o.order {
		st := o.agents[id]
		stats := st.stats
		stats.DurationMs = st.durationMs(now)
		doc.Agents[st.safeID] = models.StatusFile{
			Status: st.wireStatus(),
			Stats:  stats,
			Error:  st.err,
		}
	}
	o.mu.Unlock()

	if err := protocol.WriteSessionFileAtomic(path, doc); err != nil {
		log.Printf("[poll] session file write failed: %v", err)
	}
}

// waitForAllAgentsSettled blocks until every agent reaches a settled state or
// the timeout elapses, whichever comes first, and reports which. Both the
// deadline timer and the check ticker are released as soon as either fires.
func (o *Orchestrator) waitForAllAgentsSettled(timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(settleCheck)
	defer ticker.Stop()

	for {
		if o.allSettled() {
			return true
		}
		o.mu.Lock()
		ctx := o.masterCtx
		o.mu.Unlock()

		select {
		case <-deadline.C:
			return o.allSettled()
		case <-ctx.Done():
			// A cancelled master context ends the wait, but any agent still
			// unsettled must go through the force-stop path.
			return o.allSettled()
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) allSettled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range o.order {
		if !o.agents[id].status.Settled() {
			return false
		}
	}
	return true
}
