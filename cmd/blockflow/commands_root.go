package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var settingsFile string

var rootCmd = &cobra.Command{
	Use:           "blockflow",
	Short:         "Pipeline execution engine: blocks in sequence, jobs in parallel",
	Long:          "blockflow interprets a declarative block/job pipeline document and runs it as a structured build: blocks strictly in order, jobs of a block concurrently on fresh agents, fail-fast between blocks.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&settingsFile, "settings", "s", "", "Optional settings file (YAML)")

	registerRunCommand(rootCmd)
	registerValidateCommand(rootCmd)
}

// newLogger builds the process logger from the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
