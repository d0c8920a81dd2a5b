package cmd

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var rootCmd = &cobra.Command{
	Use:   "syncra",
	Short: "Builds and distributes mod repositories for a game-modding ecosystem",
	Long:  `syncra builds versioned mod repository manifests, diffs them against prior builds, and fetches changed content through a concurrent, rate-limited download pool.`,
}

// Execute initializes the root command tree and delegates to Cobra for
// argument parsing and subcommand dispatch.
func Execute() {
	if !term.IsTerminal(int(os.Stdout.Fd())) || os.Getenv("NO_COLOR") != "" {
		pterm.DisableStyling()
		pterm.RawOutput = true
	}
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "syncra.yaml", "path to the repository config file")
	rootCmd.PersistentFlags().StringP("workdir", "w", "", "directory pack wildcards and mod folders are resolved against (defaults to cwd)")
	rootCmd.PersistentFlags().String("history-db", "syncra-history.db", "path to the build-history SQLite database")
	rootCmd.PersistentFlags().String("metrics-addr", "", "optional address to expose Prometheus metrics on (e.g. :9090)")
}
