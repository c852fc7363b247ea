// Package report renders pipeline results for humans and files.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sourceplane/blockflow/internal/model"
	"gopkg.in/yaml.v3"
)

// Write persists a pipeline result to path, as YAML when the extension
// is .yaml/.yml and JSON otherwise.
func Write(result *model.PipelineResult, path string) error {
	var (
		data []byte
		err  error
	)

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(result)
	default:
		data, err = json.MarshalIndent(result, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode pipeline result: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write pipeline result: %w", err)
	}
	return nil
}

// Summary renders a per-block, per-job console summary.
func Summary(result *model.PipelineResult) string {
	var b strings.Builder

	for _, block := range result.Blocks {
		fmt.Fprintf(&b, "%s Block %q %s\n", glyph(block.Status), block.Name, block.Status)
		for _, job := range block.Jobs {
			fmt.Fprintf(&b, "  %s %s", glyph(job.Status), job.Name)
			switch job.Status {
			case model.StatusFailed:
				fmt.Fprintf(&b, " (exit %d)", job.ExitCode)
			case model.StatusTimedOut, model.StatusCanceled:
				if job.Reason != "" {
					fmt.Fprintf(&b, " (%s)", job.Reason)
				}
			}
			if job.LogPath != "" {
				fmt.Fprintf(&b, " [log: %s]", job.LogPath)
			}
			fmt.Fprintln(&b)
		}
	}

	if result.Success {
		fmt.Fprintf(&b, "✓ Pipeline %q passed in %s\n", result.Name, result.Duration.Round(time.Millisecond))
	} else {
		fmt.Fprintf(&b, "✗ Pipeline %q failed after %s\n", result.Name, result.Duration.Round(time.Millisecond))
	}
	return b.String()
}

func glyph(s model.Status) string {
	switch s {
	case model.StatusPassed:
		return "✓"
	case model.StatusSkipped:
		return "-"
	default:
		return "✗"
	}
}
