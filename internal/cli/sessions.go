package cli

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/modelarena/arena/internal/config"
	"github.com/modelarena/arena/internal/protocol"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"ls"},
	Short:   "List persisted arena sessions",
	Long: `List sessions whose artifacts are still on disk, newest first.

Only sessions run with --keep (or interrupted before cleanup) remain.`,
	RunE: runSessions,
}

func runSessions(cmd *cobra.Command, args []string) error {
	root, err := config.SessionsRoot()
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println(styleHint.Render("No sessions found."))
			return nil
		}
		return err
	}

	type row struct {
		id      string
		updated time.Time
		agents  map[string]string
		repo    string
	}
	var rows []row
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		doc, err := protocol.ReadSessionFile(config.SessionFile(config.SessionDir(root, e.Name())))
		if err != nil || doc == nil {
			continue
		}
		agents := make(map[string]string, len(doc.Agents))
		for id, sf := range doc.Agents {
			agents[id] = sf.Status
		}
		rows = append(rows, row{
			id:      doc.ArenaSessionID,
			updated: time.UnixMilli(doc.UpdatedAt),
			agents:  agents,
			repo:    doc.SourceRepoPath,
		})
	}
	if len(rows) == 0 {
		fmt.Println(styleHint.Render("No sessions found."))
		return nil
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].updated.After(rows[j].updated) })

	for _, r := range rows {
		fmt.Println(styleValue.Render(r.id) + styleLabel.Render("  "+r.updated.Format("2006-01-02 15:04")+"  "+r.repo))
		ids := make([]string, 0, len(r.agents))
		for id := range r.agents {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Println(styleLabel.Render("  "+id+": ") + r.agents[id])
		}
	}
	return nil
}
