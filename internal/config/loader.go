package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/sourceplane/blockflow/internal/model"
	"gopkg.in/yaml.v3"
)

// Load reads and parses a pipeline YAML file.
func Load(path string) (*model.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{
			Reason:   fmt.Sprintf("failed to read pipeline file: %v", err),
			Location: path,
		}
	}
	return Parse(data)
}

// Parse validates a pipeline document against the embedded schema and
// builds the typed pipeline tree. Parsing the same document twice yields
// structurally equal pipelines.
func Parse(data []byte) (*model.Pipeline, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{
			Reason:   fmt.Sprintf("malformed YAML: %v", err),
			Location: "document",
		}
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{
			Reason:   fmt.Sprintf("malformed pipeline structure: %v", err),
			Location: "document",
		}
	}

	pipeline := doc.toModel()
	if err := validatePipeline(pipeline); err != nil {
		return nil, err
	}

	return pipeline, nil
}

// validatePipeline enforces the semantic rules the schema cannot express:
// unique job names per block, non-empty command lists and well-formed
// environment variable interpolation syntax. Interpolations are only
// flagged here, never evaluated.
func validatePipeline(p *model.Pipeline) error {
	if strings.TrimSpace(p.Version) == "" {
		return &ConfigError{Reason: "version must not be empty", Location: "version"}
	}

	for bi, block := range p.Blocks {
		blockLoc := fmt.Sprintf("blocks[%d]", bi)

		seen := make(map[string]int, len(block.Task.Jobs))
		for ji, job := range block.Task.Jobs {
			jobLoc := fmt.Sprintf("%s.task.jobs[%d]", blockLoc, ji)

			if prev, dup := seen[job.Name]; dup {
				return &ConfigError{
					Reason:   fmt.Sprintf("duplicate job name %q (first declared at jobs[%d])", job.Name, prev),
					Location: jobLoc,
				}
			}
			seen[job.Name] = ji

			if len(job.Commands) == 0 {
				return &ConfigError{
					Reason:   fmt.Sprintf("job %q has no commands", job.Name),
					Location: jobLoc + ".commands",
				}
			}

			for ci, cmd := range job.Commands {
				if err := checkInterpolation(cmd, fmt.Sprintf("%s.commands[%d]", jobLoc, ci)); err != nil {
					return err
				}
			}
		}

		for ci, cmd := range block.Task.Prologue.Commands {
			if err := checkInterpolation(cmd, fmt.Sprintf("%s.task.prologue.commands[%d]", blockLoc, ci)); err != nil {
				return err
			}
		}
	}

	return nil
}

// checkInterpolation rejects unterminated ${...} references in a command.
func checkInterpolation(cmd, location string) error {
	rest := cmd
	for {
		idx := strings.Index(rest, "${")
		if idx < 0 {
			return nil
		}
		rest = rest[idx+2:]
		end := strings.Index(rest, "}")
		if end < 0 {
			return &ConfigError{
				Reason:   fmt.Sprintf("unterminated environment variable interpolation in command %q", cmd),
				Location: location,
			}
		}
		rest = rest[end+1:]
	}
}
