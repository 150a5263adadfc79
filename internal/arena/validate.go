package arena

import (
	"fmt"
	"strings"

	"github.com/modelarena/arena/internal/protocol"
)

// validate rejects malformed start requests before any side effect occurs.
func (o *Orchestrator) validate(opts StartOptions) error {
	maxAgents := MaxAgents
	if o.settings.MaxAgents > 0 && o.settings.MaxAgents < maxAgents {
		maxAgents = o.settings.MaxAgents
	}

	if len(opts.Models) < 2 {
		return fmt.Errorf("arena: at least 2 models are required, got %d", len(opts.Models))
	}
	if len(opts.Models) > maxAgents {
		return fmt.Errorf("arena: at most %d models are allowed, got %d", maxAgents, len(opts.Models))
	}
	if strings.TrimSpace(opts.Task) == "" {
		return fmt.Errorf("arena: task must not be empty")
	}
	if strings.TrimSpace(opts.SourceRepo) == "" {
		return fmt.Errorf("arena: source repository path must not be empty")
	}

	seen := make(map[string]bool, len(opts.Models))
	safeSeen := make(map[string]string, len(opts.Models))
	for _, m := range opts.Models {
		if strings.TrimSpace(m.ID) == "" {
			return fmt.Errorf("arena: model id must not be empty")
		}
		if seen[m.ID] {
			return fmt.Errorf("arena: duplicate model id %q", m.ID)
		}
		seen[m.ID] = true

		safe := protocol.SafeAgentID(m.ID)
		if prev, ok := safeSeen[safe]; ok {
			// Two distinct raw ids that collide after normalization would
			// map to the same status/control file path.
			return fmt.Errorf("arena: model ids %q and %q collide after filesystem normalization (%q)", prev, m.ID, safe)
		}
		safeSeen[safe] = m.ID
	}
	return nil
}
