// Package scheduler drives a resolved execution plan: blocks strictly in
// order, jobs of one block in full parallelism, fail-fast between blocks.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sourceplane/blockflow/internal/ctxlog"
	"github.com/sourceplane/blockflow/internal/model"
)

// JobRunner executes one job on a fresh agent. Implemented by the
// executor engine; stubbed in tests.
type JobRunner interface {
	RunJob(ctx context.Context, block model.BlockPlan, job model.Job) model.JobResult
}

// Scheduler runs execution plans.
type Scheduler struct {
	runner JobRunner
}

// New creates a scheduler around a job runner.
func New(runner JobRunner) *Scheduler {
	return &Scheduler{runner: runner}
}

// Run executes the plan and reports every job of every block. A failed
// block stops later blocks from starting (they report Skipped), but jobs
// already in flight always run to completion before the block's verdict.
// Canceling ctx aborts the running block's jobs and skips the rest.
func (s *Scheduler) Run(ctx context.Context, plan *model.ExecutionPlan) *model.PipelineResult {
	logger := ctxlog.FromContext(ctx)
	start := time.Now()

	result := &model.PipelineResult{Name: plan.PipelineName}

	halted := false
	for _, block := range plan.Blocks {
		if halted || ctx.Err() != nil {
			result.Blocks = append(result.Blocks, skippedBlock(block))
			logger.Info("block skipped", "block", block.Name)
			continue
		}

		logger.Info("block started", "block", block.Name, "jobs", len(block.Jobs))
		blockResult := s.runBlock(ctx, block)
		result.Blocks = append(result.Blocks, blockResult)

		if blockResult.Status.Passed() {
			logger.Info("block passed", "block", block.Name, "duration", blockResult.Duration)
		} else {
			halted = true
			logger.Warn("block did not pass, halting pipeline", "block", block.Name, "status", blockResult.Status)
		}
	}

	result.Success = true
	for _, block := range result.Blocks {
		if !block.Status.Passed() {
			result.Success = false
			break
		}
	}
	result.Duration = time.Since(start)
	return result
}

// runBlock starts every job of the block concurrently, each on its own
// agent, and waits for all of them before deciding the block's status.
func (s *Scheduler) runBlock(ctx context.Context, block model.BlockPlan) model.BlockResult {
	start := time.Now()
	results := make([]model.JobResult, len(block.Jobs))

	var wg sync.WaitGroup
	for i := range block.Jobs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.runner.RunJob(ctx, block, block.Jobs[i])
		}(i)
	}
	wg.Wait()

	return model.BlockResult{
		Name:     block.Name,
		Status:   blockStatus(results),
		Jobs:     results,
		Duration: time.Since(start),
	}
}

// blockStatus aggregates job results: every job must pass for the block
// to pass; a cancellation only shows through when nothing outright failed.
func blockStatus(results []model.JobResult) model.Status {
	status := model.StatusPassed
	for _, job := range results {
		switch job.Status {
		case model.StatusPassed:
		case model.StatusCanceled:
			if status == model.StatusPassed {
				status = model.StatusCanceled
			}
		default:
			status = model.StatusFailed
		}
	}
	return status
}

// skippedBlock reports a block that never started, with all of its jobs.
func skippedBlock(block model.BlockPlan) model.BlockResult {
	jobs := make([]model.JobResult, 0, len(block.Jobs))
	for _, job := range block.Jobs {
		jobs = append(jobs, model.JobResult{Name: job.Name, Status: model.StatusSkipped})
	}
	return model.BlockResult{Name: block.Name, Status: model.StatusSkipped, Jobs: jobs}
}
