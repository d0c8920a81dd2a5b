package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"syncra/internal/repo"
	"syncra/internal/store"
)

var diffCmd = &cobra.Command{
	Use:   "diff [new-blob]",
	Short: "Diff a repository blob against the most recent build in history",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		historyDB := flagString(cmd, "history-db")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := store.Open(ctx, historyDB)
		if err != nil {
			return fmt.Errorf("opening history database %q: %w", historyDB, err)
		}
		defer s.Close()

		var oldBlob, newBlob []byte
		if len(args) == 1 {
			prev, err := s.Latest(ctx)
			if err != nil {
				return fmt.Errorf("loading previous build: %w", err)
			}
			oldBlob = prev.Blob
			newBlob, err = os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %q: %w", args[0], err)
			}
		} else {
			recent, err := s.History(ctx, 2)
			if err != nil {
				return fmt.Errorf("loading build history: %w", err)
			}
			if len(recent) < 2 {
				return fmt.Errorf("need at least 2 recorded builds to diff without an explicit blob path, have %d", len(recent))
			}
			newBlob, oldBlob = recent[0].Blob, recent[1].Blob
		}

		oldRepo, err := repo.FromBlob(oldBlob)
		if err != nil {
			return fmt.Errorf("decoding previous build: %w", err)
		}
		newRepo, err := repo.FromBlob(newBlob)
		if err != nil {
			return fmt.Errorf("decoding new build: %w", err)
		}

		deltas := repo.DiffRepositories(oldRepo, newRepo)
		printDeltas(deltas)
		return nil
	},
}

func printDeltas(deltas map[string]repo.ModDelta) {
	if len(deltas) == 0 {
		pterm.Success.Println("No mods to compare.")
		return
	}

	tableData := pterm.TableData{{"Mod", "Status", "Changed paths"}}
	for name, d := range deltas {
		status := modDeltaKindString(d.Kind)
		tableData = append(tableData, []string{name, status, fmt.Sprintf("%d", len(d.Changes))})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
}

func modDeltaKindString(k repo.ModDeltaKind) string {
	switch k {
	case repo.ModUnchanged:
		return "unchanged"
	case repo.ModChanged:
		return "changed"
	case repo.ModAdded:
		return "added"
	case repo.ModRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

func init() {
	rootCmd.AddCommand(diffCmd)
}
