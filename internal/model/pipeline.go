package model

// Pipeline is the typed form of a parsed pipeline document. It is built
// once by the config package and never mutated afterwards.
type Pipeline struct {
	Version string
	Name    string
	Agent   *Agent
	Blocks  []Block

	// Extra holds unknown top-level keys, re-encoded as YAML text.
	// They are preserved for forward compatibility but never interpreted.
	Extra map[string]string
}

// Agent describes the machine a job runs on.
type Agent struct {
	Machine Machine
}

// Machine is a machine type plus OS image pair.
type Machine struct {
	Type    string
	OSImage string
}

// Block is a sequential stage of the pipeline. All jobs inside a block
// run in parallel; blocks themselves run strictly in declaration order.
type Block struct {
	Name  string
	Task  Task
	Agent *Agent // optional per-block override

	// Extra holds unknown block-level keys, preserved but not interpreted.
	Extra map[string]string
}

// Task groups a block's jobs with an optional shared prologue.
type Task struct {
	Prologue Prologue
	Jobs     []Job
}

// Prologue is the command sequence prefixed to every job in a block.
type Prologue struct {
	Commands []string
}

// Job is an ordered command sequence executed on one agent instance.
type Job struct {
	Name     string
	Commands []string
}
