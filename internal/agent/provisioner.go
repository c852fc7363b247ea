// Package agent abstracts provisioning of the ephemeral compute
// environments jobs run on. The engine owns one agent instance per job
// invocation and releases it on every exit path.
package agent

import (
	"context"
	"fmt"
)

// Handle identifies a provisioned agent instance.
type Handle struct {
	ID          string
	MachineType string
	OSImage     string
	WorkDir     string
}

// Provisioner creates and destroys agent instances. Implementations are
// external collaborators; the core never retries a failed provision.
type Provisioner interface {
	Provision(ctx context.Context, machineType, osImage string) (*Handle, error)
	Release(h *Handle) error
}

// ProvisionError reports that an agent instance could not be created.
type ProvisionError struct {
	MachineType string
	OSImage     string
	Err         error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("failed to provision agent (machine=%s, os_image=%s): %v", e.MachineType, e.OSImage, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }
