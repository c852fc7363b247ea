// Package resolver linearizes a parsed pipeline into an execution plan.
// Declaration order is the scheduling order; there is no dependency
// inference and therefore no possibility of cycles, so this pass is pure
// validation plus agent merging.
package resolver

import (
	"fmt"

	"github.com/sourceplane/blockflow/internal/config"
	"github.com/sourceplane/blockflow/internal/model"
)

// Resolve produces the execution plan for a pipeline. For each block the
// effective agent is the block's own agent if declared, otherwise the
// pipeline default; a block with neither fails resolution.
func Resolve(p *model.Pipeline) (*model.ExecutionPlan, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if len(p.Blocks) == 0 {
		return nil, &config.ConfigError{Reason: "pipeline has no blocks", Location: "blocks"}
	}

	plan := &model.ExecutionPlan{
		PipelineName: p.Name,
		Blocks:       make([]model.BlockPlan, 0, len(p.Blocks)),
	}

	for i, block := range p.Blocks {
		agent, err := effectiveAgent(p, block, i)
		if err != nil {
			return nil, err
		}

		plan.Blocks = append(plan.Blocks, model.BlockPlan{
			Name:     block.Name,
			Agent:    agent,
			Prologue: block.Task.Prologue.Commands,
			Jobs:     block.Task.Jobs,
		})
	}

	return plan, nil
}

func effectiveAgent(p *model.Pipeline, block model.Block, index int) (model.Agent, error) {
	if block.Agent != nil {
		return *block.Agent, nil
	}
	if p.Agent != nil {
		return *p.Agent, nil
	}
	return model.Agent{}, &config.ConfigError{
		Reason:   fmt.Sprintf("block %q declares no agent and the pipeline has no default", block.Name),
		Location: fmt.Sprintf("blocks[%d].agent", index),
	}
}
