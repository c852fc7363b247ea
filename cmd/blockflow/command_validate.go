package main

import (
	"fmt"

	"github.com/sourceplane/blockflow/internal/config"
	"github.com/sourceplane/blockflow/internal/resolver"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config-path>",
	Short: "Validate a pipeline document without executing it",
	Long:  "Parse and resolve a pipeline document, reporting the effective agent and job layout per block. Nothing is executed.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validatePipeline(args[0])
	},
}

func registerValidateCommand(root *cobra.Command) {
	root.AddCommand(validateCmd)
}

func validatePipeline(configPath string) error {
	fmt.Println("□ Parsing pipeline document...")
	pipeline, err := config.Load(configPath)
	if err != nil {
		return err
	}

	fmt.Println("□ Resolving execution plan...")
	plan, err := resolver.Resolve(pipeline)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Pipeline %q is valid (%d blocks)\n", pipeline.Name, len(plan.Blocks))
	for i, block := range plan.Blocks {
		fmt.Printf("  %d. %s: %d job(s), agent %s/%s\n",
			i+1, block.Name, len(block.Jobs),
			block.Agent.Machine.Type, block.Agent.Machine.OSImage)
	}
	return nil
}
