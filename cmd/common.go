package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"syncra/internal/config"
	"syncra/internal/metrics"
)

// loadConfig reads and validates the YAML repository config at path
// (SPEC_FULL.md §6: surface decoding lives in cmd/, internal/config only
// validates).
func loadConfig(path string) (*config.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return &cfg, nil
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

// serveMetrics starts the debug Prometheus listener SPEC_FULL.md §4.10
// promises on --metrics-addr, if that flag is set. It returns a shutdown
// func the caller should defer; when the flag is empty the listener is
// never started and shutdown is a no-op.
func serveMetrics(cmd *cobra.Command, col *metrics.Collector) func(context.Context) error {
	addr := flagString(cmd, "metrics-addr")
	if addr == "" {
		return func(context.Context) error { return nil }
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(col.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			pterm.Warning.Printf("metrics listener on %s stopped: %v\n", addr, err)
		}
	}()
	pterm.Info.Printf("Exposing metrics on http://%s/metrics\n", addr)

	return srv.Shutdown
}
