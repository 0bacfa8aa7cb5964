// Package main is the entry point for chordinate.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/chordinate/internal/config"
	"github.com/dshills/chordinate/internal/logging"
	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var (
	configPath string
	logLevel   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chordinate",
		Short: "Trigger commands and URLs with multi-key chord sequences",
		Long: "chordinate watches key presses for stored chord sequences such as\n" +
			"⌘K ⌘C and runs the bound shell command or opens the bound URL.",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newBindingsCmd())
	rootCmd.AddCommand(newRecordCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		if err := cfg.Set("log.level", logLevel); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newLogger builds the logger for a command. Full-screen commands must
// not write to the terminal, so they log to a file only.
func newLogger(cfg *config.Config, fullScreen bool) (*logging.Logger, error) {
	lc := logging.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		Console:    true,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}
	if fullScreen {
		lc.Console = false
		if lc.File == "" {
			lc.File = filepath.Join(config.Dir(), config.AppName+".log")
		}
	}
	return logging.New(lc)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "chordinate %s\n", version)
			fmt.Fprintf(out, "Commit: %s\n", commit)
			fmt.Fprintf(out, "Built: %s\n", date)
		},
	}
}
