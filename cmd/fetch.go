package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"syncra/internal/download"
	"syncra/internal/metrics"
	"syncra/internal/repo"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <base-url> <old-blob> <new-blob>",
	Short: "Fetch the generic files changed between two repository blobs",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		baseURL, oldPath, newPath := args[0], args[1], args[2]

		maxConcurrent, _ := cmd.Flags().GetUint8("max-concurrent")
		rateLimitStr, _ := cmd.Flags().GetString("rate-limit")

		var rate datasize.ByteSize
		if rateLimitStr != "" {
			if err := rate.UnmarshalText([]byte(rateLimitStr)); err != nil {
				return fmt.Errorf("parsing --rate-limit %q: %w", rateLimitStr, err)
			}
		}

		oldRepo, err := loadRepoBlob(oldPath)
		if err != nil {
			return err
		}
		newRepo, err := loadRepoBlob(newPath)
		if err != nil {
			return err
		}

		deltas := repo.DiffRepositories(oldRepo, newRepo)

		col := metrics.New()
		stopMetrics := serveMetrics(cmd, col)
		defer func() { _ = stopMetrics(context.Background()) }()
		pool := download.NewDownloadPool(maxConcurrent, rate.Bytes(), col)

		type fetchTarget struct {
			mod, path string
		}
		var targets []fetchTarget
		for mod, d := range deltas {
			for path, fd := range d.Changes {
				switch fd.Kind {
				case repo.FileDeltaNew, repo.FileDeltaGenericChanged:
					targets = append(targets, fetchTarget{mod: mod, path: path})
				}
			}
		}

		if len(targets) == 0 {
			pterm.Success.Println("Nothing changed; no fetches required.")
			return nil
		}

		pterm.Info.Printf("Fetching %d changed file(s) from %s\n", len(targets), baseURL)

		subs := make([]<-chan download.Update, len(targets))
		for i, t := range targets {
			url := fmt.Sprintf("%s/%s/%s", baseURL, t.mod, t.path)
			subs[i] = pool.Submit(download.NewDownloadKey(url))
		}

		for i, sub := range subs {
			for upd := range sub {
				if upd.Kind == download.UpdateDone {
					pterm.Success.Printf("%s: %d bytes\n", targets[i].path, len(upd.Bytes))
				}
			}
		}

		return nil
	},
}

func loadRepoBlob(path string) (*repo.Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	r, err := repo.FromBlob(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %q: %w", path, err)
	}
	return r, nil
}

func init() {
	fetchCmd.Flags().Uint8("max-concurrent", 4, "maximum concurrent download workers")
	fetchCmd.Flags().String("rate-limit", "", "total download rate budget, e.g. \"4MB\" (empty = unlimited)")
	rootCmd.AddCommand(fetchCmd)
}
