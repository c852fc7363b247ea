package model

import "time"

// Status is the terminal state of a job, block or pipeline.
type Status string

const (
	StatusPassed   Status = "passed"
	StatusFailed   Status = "failed"
	StatusSkipped  Status = "skipped"
	StatusTimedOut Status = "timed_out"
	StatusCanceled Status = "canceled"
)

// JobResult records the outcome of a single job run.
type JobResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	ExitCode int           `json:"exitCode"`
	Reason   string        `json:"reason,omitempty"` // provision/teardown detail, empty on success
	Duration time.Duration `json:"duration"`
	LogPath  string        `json:"logPath,omitempty"`
}

// BlockResult aggregates the results of all jobs in one block.
type BlockResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Jobs     []JobResult   `json:"jobs"`
	Duration time.Duration `json:"duration"`
}

// PipelineResult is the final report of a pipeline run. Every job of
// every block appears here, including skipped ones.
type PipelineResult struct {
	Name     string        `json:"name"`
	Success  bool          `json:"success"`
	Blocks   []BlockResult `json:"blocks"`
	Duration time.Duration `json:"duration"`
}

// Passed reports whether the status counts as a success.
func (s Status) Passed() bool { return s == StatusPassed }
