// Package executor runs a single job: it acquires an agent, executes the
// block prologue and the job's commands in strict order, streams combined
// output into an observable log and guarantees agent teardown on every
// exit path.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sourceplane/blockflow/internal/agent"
	"github.com/sourceplane/blockflow/internal/cache"
	"github.com/sourceplane/blockflow/internal/ctxlog"
	"github.com/sourceplane/blockflow/internal/logstream"
	"github.com/sourceplane/blockflow/internal/model"
	"github.com/sourceplane/blockflow/internal/service"
)

// CheckoutFunc materializes a working copy inside an agent work
// directory. Wired in by the CLI when a repository ref is given.
type CheckoutFunc func(ctx context.Context, dir string) error

// Config carries the engine's runtime knobs.
type Config struct {
	Shell      string        // shell used for opaque commands, e.g. /bin/sh
	JobTimeout time.Duration // wall clock budget per job
	LogDir     string        // where log artifacts land; empty disables persistence
	Checkout   CheckoutFunc  // optional

	// Observer, when set, is handed every job's live log before the
	// first command runs, so callers can follow output as it appears.
	Observer func(blockName, jobName string, log *logstream.Log)
}

// Engine executes jobs on freshly provisioned agents.
type Engine struct {
	provisioner agent.Provisioner
	store       *cache.Store
	services    *service.Coordinator
	cfg         Config
}

// New creates an engine. The cache store may be nil, in which case cache
// directives degrade to misses.
func New(provisioner agent.Provisioner, store *cache.Store, services *service.Coordinator, cfg Config) *Engine {
	if cfg.Shell == "" {
		cfg.Shell = "/bin/sh"
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Hour
	}
	if services == nil {
		services = service.NewCoordinator()
	}
	return &Engine{
		provisioner: provisioner,
		store:       store,
		services:    services,
		cfg:         cfg,
	}
}

// RunJob executes one job of a block and reports its result. The block
// carries the effective agent spec and the shared prologue.
func (e *Engine) RunJob(ctx context.Context, block model.BlockPlan, job model.Job) (res model.JobResult) {
	logger := ctxlog.FromContext(ctx).With("block", block.Name, "job", job.Name)
	start := time.Now()

	res = model.JobResult{Name: job.Name, Status: model.StatusFailed, ExitCode: -1}

	log := logstream.New()
	if e.cfg.Observer != nil {
		e.cfg.Observer(block.Name, job.Name, log)
	}
	defer func() {
		log.Close()
		res.Duration = time.Since(start)
		path, err := e.persistLog(block.Name, job.Name, log)
		if err != nil {
			logger.Warn("failed to persist job log", "error", err)
			return
		}
		res.LogPath = path
	}()

	handle, err := e.provisioner.Provision(ctx, block.Agent.Machine.Type, block.Agent.Machine.OSImage)
	if err != nil {
		res.Reason = err.Error()
		fmt.Fprintf(log, "agent provisioning failed: %v\n", err)
		logger.Error("agent provisioning failed", "error", err)
		return res
	}
	logger.Debug("agent provisioned", "agent", handle.ID, "workdir", handle.WorkDir)

	defer func() {
		e.services.StopAll(ctx, handle.ID)
		if rerr := e.provisioner.Release(handle); rerr != nil {
			logger.Warn("failed to release agent", "agent", handle.ID, "error", rerr)
		} else {
			logger.Debug("agent released", "agent", handle.ID)
		}
	}()

	if e.cfg.Checkout != nil {
		if err := e.cfg.Checkout(ctx, handle.WorkDir); err != nil {
			res.Reason = err.Error()
			fmt.Fprintf(log, "checkout failed: %v\n", err)
			return res
		}
	}

	jobCtx, cancel := context.WithTimeout(ctx, e.cfg.JobTimeout)
	defer cancel()

	commands := make([]string, 0, len(block.Prologue)+len(job.Commands))
	commands = append(commands, block.Prologue...)
	commands = append(commands, job.Commands...)

	for _, command := range commands {
		fmt.Fprintf(log, "$ %s\n", command)

		exitCode, err := e.runCommand(jobCtx, handle, command, log)
		if err == nil {
			continue
		}

		// First non-zero exit terminates the job; the cause decides the status.
		switch {
		case ctx.Err() != nil:
			res.Status = model.StatusCanceled
			res.Reason = "job canceled"
			fmt.Fprintln(log, "job canceled")
		case errors.Is(jobCtx.Err(), context.DeadlineExceeded):
			res.Status = model.StatusTimedOut
			res.Reason = fmt.Sprintf("job exceeded %s time limit", e.cfg.JobTimeout)
			fmt.Fprintf(log, "job timed out after %s\n", e.cfg.JobTimeout)
		default:
			res.Status = model.StatusFailed
			res.ExitCode = exitCode
			fmt.Fprintf(log, "command failed with exit code %d\n", exitCode)
		}
		logger.Warn("job finished", "status", res.Status, "exitCode", res.ExitCode)
		return res
	}

	res.Status = model.StatusPassed
	res.ExitCode = 0
	logger.Info("job passed")
	return res
}

// runCommand executes a single command: a coordinator directive if it
// parses as one, otherwise an opaque shell instruction in the agent's
// work directory.
func (e *Engine) runCommand(ctx context.Context, h *agent.Handle, command string, logw io.Writer) (int, error) {
	if d, ok := parseDirective(command); ok {
		return e.runDirective(ctx, h, d, logw)
	}

	cmd := exec.CommandContext(ctx, e.cfg.Shell, "-c", command)
	cmd.Dir = h.WorkDir
	cmd.Stdout = logw
	cmd.Stderr = logw

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), err
	}
	return -1, err
}

// persistLog writes the job log artifact, pass or fail.
func (e *Engine) persistLog(blockName, jobName string, log *logstream.Log) (string, error) {
	if e.cfg.LogDir == "" {
		return "", nil
	}

	dir := filepath.Join(e.cfg.LogDir, slug(blockName))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, slug(jobName)+".log")
	if err := os.WriteFile(path, log.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write log artifact: %w", err)
	}
	return path, nil
}

// slug turns a block or job name into a filesystem-safe path element.
func slug(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
	mapped = strings.Trim(mapped, "-")
	if mapped == "" {
		return "unnamed"
	}
	return mapped
}
