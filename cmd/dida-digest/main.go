// Package main is the entry point for the dida-digest CLI.
package main

import (
	"fmt"
	"os"
	_ "time/tzdata" // timezone setting must work on hosts without zoneinfo

	"github.com/spf13/cobra"

	"github.com/Jayphen/dida-digest/internal/config"
	"github.com/Jayphen/dida-digest/internal/logging"
)

// Version is set at build time.
var Version = "dev"

// configFile is the --config flag; empty searches the default locations.
var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "dida-digest",
		Short: "Push a daily Dida365 task digest to a WeCom group",
		Long: `dida-digest reads your open Dida365 (TickTick China) tasks, groups them
into today, the next seven days and undated priority tasks, and pushes
the summary to a WeCom group robot.

Run 'dida-digest auth login' once to authorize, then 'dida-digest run'
from cron or 'dida-digest serve' to keep it on a schedule.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initLogging()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ~/.config/dida-digest/config.yaml)")

	rootCmd.AddCommand(
		newRunCmd(),
		newAuthCmd(),
		newServeCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig returns the --config file if given, otherwise the merged
// configuration from the default locations.
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadFile(configFile)
	}
	return config.Get()
}

// initLogging initializes the logger from config.
func initLogging() {
	cfg, err := loadConfig()
	if err != nil {
		// If config fails, use defaults (console output)
		_ = logging.Init(nil)
		return
	}

	if err := logging.InitFromSettings(cfg.Logging.Settings()); err != nil {
		// Fall back to defaults on error
		_ = logging.Init(nil)
	}
}
