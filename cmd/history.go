package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"syncra/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded repository builds",
	RunE: func(cmd *cobra.Command, args []string) error {
		historyDB := flagString(cmd, "history-db")
		limit, _ := cmd.Flags().GetInt("limit")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := store.Open(ctx, historyDB)
		if err != nil {
			return fmt.Errorf("opening history database %q: %w", historyDB, err)
		}
		defer s.Close()

		builds, err := s.History(ctx, limit)
		if err != nil {
			return fmt.Errorf("listing history: %w", err)
		}
		if len(builds) == 0 {
			pterm.Info.Println("No builds recorded yet.")
			return nil
		}

		tableData := pterm.TableData{{"ID", "Time", "Hash", "Size"}}
		for _, b := range builds {
			tableData = append(tableData, []string{
				fmt.Sprintf("%d", b.ID),
				time.Unix(int64(b.Time), 0).Format(time.RFC3339),
				fmt.Sprintf("%x", b.Hash[:8]),
				fmt.Sprintf("%d bytes", len(b.Blob)),
			})
		}
		_ = pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of builds to list")
	rootCmd.AddCommand(historyCmd)
}
