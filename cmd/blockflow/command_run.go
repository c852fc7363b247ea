package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sourceplane/blockflow/internal/agent"
	"github.com/sourceplane/blockflow/internal/cache"
	"github.com/sourceplane/blockflow/internal/config"
	"github.com/sourceplane/blockflow/internal/ctxlog"
	"github.com/sourceplane/blockflow/internal/executor"
	"github.com/sourceplane/blockflow/internal/logstream"
	"github.com/sourceplane/blockflow/internal/report"
	"github.com/sourceplane/blockflow/internal/resolver"
	"github.com/sourceplane/blockflow/internal/scheduler"
	"github.com/sourceplane/blockflow/internal/scm"
	"github.com/sourceplane/blockflow/internal/service"
	"github.com/sourceplane/blockflow/internal/settings"
	"github.com/spf13/cobra"
)

// errPipelineFailed maps to exit code 1 in main.
var errPipelineFailed = errors.New("pipeline failed")

var (
	runOutputFile  string
	runCheckoutRef string
	runFollow      bool
)

var runCmd = &cobra.Command{
	Use:   "run <config-path>",
	Short: "Execute a pipeline document",
	Long:  "Parse, resolve and execute a pipeline document. Exits 0 on full success, 1 on any block failure, 2 on a configuration error.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd.Context(), args[0])
	},
}

func registerRunCommand(root *cobra.Command) {
	root.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runOutputFile, "output", "o", "", "Write the pipeline result to a file (json or yaml by extension)")
	runCmd.Flags().StringVar(&runCheckoutRef, "checkout", "", "Repository ref (url or url@branch) to check out into each agent")
	runCmd.Flags().BoolVar(&runFollow, "follow", false, "Stream job logs to stdout while jobs run")
}

func runPipeline(ctx context.Context, configPath string) error {
	s, err := settings.Load(settingsFile)
	if err != nil {
		return err
	}

	logger := newLogger(s.LogLevel)
	slog.SetDefault(logger)

	pipeline, err := config.Load(configPath)
	if err != nil {
		return err
	}

	plan, err := resolver.Resolve(pipeline)
	if err != nil {
		return err
	}

	// Cache is best-effort: a store that cannot open degrades every
	// cache directive to a miss instead of blocking the build.
	var store *cache.Store
	if store, err = cache.Open(s.CacheDir); err != nil {
		logger.Warn("cache store unavailable, continuing without cache", "error", err)
		store = nil
	} else {
		defer store.Close()
	}

	engineCfg := executor.Config{
		Shell:      s.Shell,
		JobTimeout: s.JobTimeout,
		LogDir:     s.LogDir,
	}
	if runCheckoutRef != "" {
		engineCfg.Checkout = func(ctx context.Context, dir string) error {
			return scm.Checkout(ctx, runCheckoutRef, dir)
		}
	}
	if runFollow {
		engineCfg.Observer = func(blockName, jobName string, log *logstream.Log) {
			go func() {
				for chunk := range log.Follow() {
					os.Stdout.Write(chunk)
				}
			}()
		}
	}

	engine := executor.New(
		agent.NewLocalProvisioner(s.AgentDir),
		store,
		service.NewCoordinator(),
		engineCfg,
	)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = ctxlog.WithLogger(runCtx, logger)

	result := scheduler.New(engine).Run(runCtx, plan)

	fmt.Print(report.Summary(result))
	if runOutputFile != "" {
		if err := report.Write(result, runOutputFile); err != nil {
			return err
		}
		fmt.Printf("✓ Result saved to: %s\n", runOutputFile)
	}

	if !result.Success {
		return errPipelineFailed
	}
	return nil
}
