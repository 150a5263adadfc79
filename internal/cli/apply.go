package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelarena/arena/internal/config"
	"github.com/modelarena/arena/internal/models"
	"github.com/modelarena/arena/internal/protocol"
	"github.com/modelarena/arena/internal/worktree"
)

var applyCmd = &cobra.Command{
	Use:   "apply <session-id> <model>",
	Short: "Apply an agent's result from a persisted session",
	Long: `Merge one agent's worktree changes into the source repository.

The session must have been kept on disk (arena run --keep) and the agent must
have completed. The merge is a --no-ff merge of the agent's branch; a merge
conflict aborts cleanly and leaves the source repository untouched.`,
	Args: cobra.ExactArgs(2),
	RunE: runApply,
}

func runApply(cmd *cobra.Command, args []string) error {
	sessionID, model := args[0], args[1]

	root, err := config.SessionsRoot()
	if err != nil {
		return err
	}
	doc, err := protocol.ReadSessionFile(config.SessionFile(config.SessionDir(root, sessionID)))
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("session %s not found (was it run with --keep?)", sessionID)
	}

	safe := protocol.SafeAgentID(model)
	agent, ok := doc.Agents[safe]
	if !ok {
		return fmt.Errorf("session %s has no agent %s", sessionID, model)
	}
	if agent.Status != models.FileStatusCompleted {
		return fmt.Errorf("agent %s is %s; only completed results can be applied", model, agent.Status)
	}

	ctx := context.Background()
	svc := worktree.NewService(doc.SourceRepoPath, root)
	wt, err := svc.Resolve(ctx, sessionID, model)
	if err != nil {
		return err
	}
	if err := svc.Apply(ctx, wt); err != nil {
		return err
	}
	fmt.Println(styleSuccess.Render(fmt.Sprintf("Applied %s's result to %s", model, doc.SourceRepoPath)))
	return nil
}
