package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"syncra/internal/metrics"
	"syncra/internal/repo"
	"syncra/internal/store"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Scan configured mods and packs into a versioned repository blob",
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := uuid.NewString()

		configPath := flagString(cmd, "config")
		workDir := flagString(cmd, "workdir")
		historyDB := flagString(cmd, "history-db")
		out, _ := cmd.Flags().GetString("out")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		col := metrics.New()
		stopMetrics := serveMetrics(cmd, col)
		defer func() { _ = stopMetrics(context.Background()) }()

		spinner, _ := pterm.DefaultSpinner.Start("Scanning mods...")
		r, err := repo.Build(cfg, repo.BuildOptions{
			Concurrency: concurrency,
			CacheSize:   4096,
			Metrics:     col,
			WorkDir:     workDir,
		})
		if err != nil {
			spinner.Fail("Scan failed")
			return fmt.Errorf("build (run %s): %w", runID, err)
		}
		spinner.Success(fmt.Sprintf("Scanned %d mod(s)", len(r.Mods)))

		blob, err := r.ToBlob()
		if err != nil {
			return fmt.Errorf("encoding blob: %w", err)
		}

		if err := os.WriteFile(out, blob, 0o644); err != nil {
			return fmt.Errorf("writing %q: %w", out, err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := store.Open(ctx, historyDB)
		if err != nil {
			pterm.Warning.Printf("Could not open history database %q: %v\n", historyDB, err)
		} else {
			defer s.Close()
			if _, err := s.RecordBuild(ctx, r.Time, r.Hash, blob); err != nil {
				pterm.Warning.Printf("Could not record build history: %v\n", err)
			}
		}

		pterm.Success.Printf("Wrote %s (%d bytes, hash %x)\n", out, len(blob), r.Hash[:8])
		return nil
	},
}

func init() {
	generateCmd.Flags().String("out", "syncra.mpk", "output path for the repository blob")
	generateCmd.Flags().Int("concurrency", 4, "maximum parallel mod scans")
	rootCmd.AddCommand(generateCmd)
}
