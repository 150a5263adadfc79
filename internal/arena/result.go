package arena

import (
	"context"
	"log"
	"strings"

	"github.com/modelarena/arena/internal/models"
)

// outputProvider is implemented by backends that keep full plain-text
// scrollback per agent (the PTY backend). Others fall back to a screen
// snapshot.
type outputProvider interface {
	AgentOutput(agentID string) string
}

// collectResult assembles the session result from the final agent states.
// Diffs are computed for completed agents only; a diff failure is logged and
// leaves that agent's diff empty rather than failing the session.
func (o *Orchestrator) collectResult() *models.ArenaSessionResult {
	now := o.now()

	o.mu.Lock()
	cfg := o.cfg
	res := &models.ArenaSessionResult{
		SessionID:         cfg.SessionID,
		Task:              cfg.Task,
		SourceRepo:        cfg.SourceRepo,
		SourceInitialized: o.sourceInit,
		StartedAt:         o.startedAt,
		EndedAt:           now,
	}
	states := make([]*agentState, 0, len(o.order))
	for _, id := range o.order {
		states = append(states, o.agents[id])
	}
	o.mu.Unlock()

	for _, st := range states {
		o.mu.Lock()
		st.finalize(now)
		ar := models.ArenaAgentResult{
			AgentID:     st.id,
			ModelID:     st.model.ID,
			DisplayName: st.model.Name(),
			Status:      st.status,
			Error:       st.err,
			Stats:       st.stats,
			StartedAt:   st.startedAt,
			EndedAt:     st.endedAt,
		}
		if st.worktree != nil {
			ar.WorktreePath = st.worktree.Path
		}
		wt := st.worktree
		status := st.status
		o.mu.Unlock()

		ar.Output = o.agentOutput(st.id)

		if status == models.AgentCompleted && wt != nil {
			ctx := o.resultCtx()
			diff, err := o.worktrees.Diff(ctx, wt)
			if err != nil {
				log.Printf("[arena] diff failed for %s: %v", st.id, err)
			} else {
				ar.Diff = diff
			}
		}

		res.Agents = append(res.Agents, ar)
	}
	return res
}

// agentOutput fetches the best available plain-text output for an agent.
func (o *Orchestrator) agentOutput(agentID string) string {
	if p, ok := o.backend.(outputProvider); ok {
		if out := p.AgentOutput(agentID); out != "" {
			return out
		}
	}
	snap, err := o.backend.AgentSnapshot(agentID, 0)
	if err != nil || snap == nil {
		return ""
	}
	return strings.TrimRight(snap.Plain, "\n")
}

// resultCtx returns a context for result-time git operations. The master
// context may already be cancelled (timeout, explicit cancel); diffs still
// have to run, so fall back to a background context in that case.
func (o *Orchestrator) resultCtx() context.Context {
	o.mu.Lock()
	ctx := o.masterCtx
	o.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return context.Background()
	}
	return ctx
}
