package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"syncra/internal/metrics"
	"syncra/internal/repo"
	"syncra/internal/store"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the working directory for mod changes and rebuild periodically",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := flagString(cmd, "config")
		workDir := flagString(cmd, "workdir")
		historyDB := flagString(cmd, "history-db")
		interval, _ := cmd.Flags().GetDuration("interval")

		if workDir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("determining working directory: %w", err)
			}
			workDir = wd
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("creating file watcher: %w", err)
		}
		defer watcher.Close()
		if err := watcher.Add(workDir); err != nil {
			return fmt.Errorf("watching %q: %w", workDir, err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		s, err := store.Open(ctx, historyDB)
		cancel()
		if err != nil {
			return fmt.Errorf("opening history database %q: %w", historyDB, err)
		}
		defer s.Close()

		col := metrics.New()
		stopMetrics := serveMetrics(cmd, col)
		defer func() { _ = stopMetrics(context.Background()) }()

		rebuild := make(chan struct{}, 1)
		trigger := func() {
			select {
			case rebuild <- struct{}{}:
			default:
			}
		}

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("creating scheduler: %w", err)
		}
		if _, err := scheduler.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(trigger),
		); err != nil {
			return fmt.Errorf("scheduling periodic rebuild: %w", err)
		}
		scheduler.Start()
		defer func() { _ = scheduler.Shutdown() }()

		go func() {
			for {
				select {
				case event, ok := <-watcher.Events:
					if !ok {
						return
					}
					base := filepath.Base(event.Name)
					if len(base) > 0 && base[0] == '@' {
						trigger()
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return
					}
					slog.Error("watch error", "error", err)
				}
			}
		}()

		pterm.Info.Printf("Watching %q, rebuilding every %s or on @mod changes\n", workDir, interval)
		trigger()

		for range rebuild {
			if err := runOneWatchBuild(configPath, workDir, s, col); err != nil {
				pterm.Error.Println(err)
			}
		}
		return nil
	},
}

func runOneWatchBuild(configPath, workDir string, s *store.Store, col *metrics.Collector) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	prev, prevErr := s.Latest(ctx)

	r, err := repo.Build(cfg, repo.BuildOptions{CacheSize: 4096, Metrics: col, WorkDir: workDir})
	if err != nil {
		return fmt.Errorf("building repository: %w", err)
	}
	blob, err := r.ToBlob()
	if err != nil {
		return fmt.Errorf("encoding blob: %w", err)
	}
	if _, err := s.RecordBuild(ctx, r.Time, r.Hash, blob); err != nil {
		return fmt.Errorf("recording build: %w", err)
	}

	if prevErr == nil {
		oldRepo, err := repo.FromBlob(prev.Blob)
		if err == nil {
			deltas := repo.DiffRepositories(oldRepo, r)
			changed := 0
			for _, d := range deltas {
				if d.Kind != repo.ModUnchanged {
					changed++
				}
			}
			pterm.Info.Printf("Rebuilt: %d mod(s) changed since previous build\n", changed)
			return nil
		}
	}

	pterm.Success.Printf("Initial build recorded (%d mods)\n", len(r.Mods))
	return nil
}

func init() {
	watchCmd.Flags().Duration("interval", 10*time.Minute, "periodic rebuild interval, even absent filesystem events")
	rootCmd.AddCommand(watchCmd)
}
