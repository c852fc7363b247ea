package model

// ExecutionPlan is the resolved, execution-ready form of a pipeline.
// Block order is the declaration order of the source document; the
// resolver never reorders or infers dependencies.
type ExecutionPlan struct {
	PipelineName string
	Blocks       []BlockPlan
}

// BlockPlan is a block with its effective agent already resolved
// (block override if present, else the pipeline default).
type BlockPlan struct {
	Name     string
	Agent    Agent
	Prologue []string
	Jobs     []Job
}
