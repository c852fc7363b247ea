package config

import "fmt"

// ConfigError reports a malformed or incomplete pipeline document.
// It is always fatal: nothing is executed once one is raised.
type ConfigError struct {
	Reason   string
	Location string // document path of the offending element, e.g. blocks[1].task.jobs[0]
}

func (e *ConfigError) Error() string {
	if e.Location == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s (at %s)", e.Reason, e.Location)
}
