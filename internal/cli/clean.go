package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/modelarena/arena/internal/config"
)

var cleanAll bool

var cleanCmd = &cobra.Command{
	Use:   "clean [session-id]",
	Short: "Delete persisted session artifacts",
	Long: `Delete a session's worktrees, status files, and consolidated document.

With --all, every persisted session is removed. Source repositories are
never touched; only the ~/.arena/sessions artifacts go away.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "remove every persisted session")
}

func runClean(cmd *cobra.Command, args []string) error {
	root, err := config.SessionsRoot()
	if err != nil {
		return err
	}

	if cleanAll {
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		var n int
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
				return fmt.Errorf("remove session %s: %w", e.Name(), err)
			}
			n++
		}
		fmt.Println(styleSuccess.Render(fmt.Sprintf("Removed %d session(s).", n)))
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("a session ID is required (or --all)")
	}
	dir := config.SessionDir(root, args[0])
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("session %s: %w", args[0], err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove session %s: %w", args[0], err)
	}
	fmt.Println(styleSuccess.Render("Removed session " + args[0] + "."))
	return nil
}
