// Package main implements the specula CLI: phase-gated artifact generation,
// validation and human-approved phase advancement.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// version information, set via -ldflags
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// Persistent flags shared by every subcommand. Values only override the
// loaded configuration when the flag is set explicitly.
var (
	configPath    string
	stateFile     string
	databaseURL   string
	storageDriver string
	logLevel      string
)

// errReported signals that the command already printed its failure and
// only the exit status remains.
var errReported = errors.New("reported")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "specula",
	Short: "Phase-gated methodology workflow runtime",
	Long: `specula drives a project through the methodology phases
0, 1, 1.5, 2, 3, 4, 5 and 6 (then back to 1).

Each step produces one schema-validated artifact. A phase only advances
after two human approvals from two distinct roles.

Configuration is read from ~/.config/specula/config.yaml and SPECULA_*
environment variables; flags override both.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default ~/.config/specula/config.yaml)")
	pf.StringVar(&stateFile, "state-file", ".specula_state.json", "project state file")
	pf.StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (default $SPECULA_DATABASE_URL)")
	pf.StringVar(&storageDriver, "storage-driver", "", "storage driver: none, postgres or badger")
	pf.StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
}
