package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sourceplane/blockflow/internal/config"
)

func main() {
	// Minimal logger until settings configure the real one.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)

		var configErr *config.ConfigError
		if errors.As(err, &configErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
