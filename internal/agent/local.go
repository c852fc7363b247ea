package agent

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// LocalProvisioner backs agent instances with throwaway directories on
// the host. It is the reference implementation used by the CLI; a real
// deployment would swap in a provisioner that talks to a fleet API.
type LocalProvisioner struct {
	// BaseDir is where agent work directories are created. Empty means
	// the system temp directory.
	BaseDir string
}

// NewLocalProvisioner creates a provisioner rooted at baseDir.
func NewLocalProvisioner(baseDir string) *LocalProvisioner {
	return &LocalProvisioner{BaseDir: baseDir}
}

// Provision allocates a fresh work directory for one job.
func (p *LocalProvisioner) Provision(ctx context.Context, machineType, osImage string) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ProvisionError{MachineType: machineType, OSImage: osImage, Err: err}
	}

	id := uuid.NewString()
	base := p.BaseDir
	if base != "" {
		if err := os.MkdirAll(base, 0o755); err != nil {
			return nil, &ProvisionError{MachineType: machineType, OSImage: osImage, Err: err}
		}
	}

	dir, err := os.MkdirTemp(base, fmt.Sprintf("agent-%s-", id[:8]))
	if err != nil {
		return nil, &ProvisionError{MachineType: machineType, OSImage: osImage, Err: err}
	}

	return &Handle{
		ID:          id,
		MachineType: machineType,
		OSImage:     osImage,
		WorkDir:     dir,
	}, nil
}

// Release destroys the agent's work directory.
func (p *LocalProvisioner) Release(h *Handle) error {
	if h == nil {
		return fmt.Errorf("cannot release nil agent handle")
	}
	if err := os.RemoveAll(h.WorkDir); err != nil {
		return fmt.Errorf("failed to release agent %s: %w", h.ID, err)
	}
	return nil
}
