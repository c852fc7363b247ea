// Package service manages ephemeral background processes (databases,
// brokers) scoped to a single job's lifetime. Whatever a job starts is
// torn down when its agent is released, pass or fail.
package service

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/google/uuid"
	"github.com/sourceplane/blockflow/internal/ctxlog"
)

// Handle identifies a running service process.
type Handle struct {
	ID    string
	Name  string
	Owner string // agent instance the service belongs to
	cmd   *exec.Cmd
}

// Coordinator starts and stops services and tracks which agent owns
// each one so teardown can sweep per agent.
type Coordinator struct {
	mu      sync.Mutex
	byOwner map[string][]*Handle
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{byOwner: make(map[string][]*Handle)}
}

// Start launches a named service process for the given agent. Output is
// written to logw so the job log records service noise in order.
func (c *Coordinator) Start(ctx context.Context, owner, name string, params []string, logw io.Writer) (*Handle, error) {
	cmd := exec.CommandContext(ctx, name, params...)
	cmd.Stdout = logw
	cmd.Stderr = logw

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start service %s: %w", name, err)
	}

	h := &Handle{
		ID:    uuid.NewString(),
		Name:  name,
		Owner: owner,
		cmd:   cmd,
	}

	c.mu.Lock()
	c.byOwner[owner] = append(c.byOwner[owner], h)
	c.mu.Unlock()

	ctxlog.FromContext(ctx).Debug("service started", "service", name, "owner", owner, "pid", cmd.Process.Pid)
	return h, nil
}

// Stop kills a service process and reaps it.
func (c *Coordinator) Stop(h *Handle) error {
	if h == nil || h.cmd == nil || h.cmd.Process == nil {
		return fmt.Errorf("cannot stop nil service handle")
	}

	c.mu.Lock()
	owned := c.byOwner[h.Owner]
	for i, other := range owned {
		if other.ID == h.ID {
			c.byOwner[h.Owner] = append(owned[:i], owned[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	if err := h.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("failed to stop service %s: %w", h.Name, err)
	}
	h.cmd.Wait()
	return nil
}

// Active reports how many services an agent currently owns.
func (c *Coordinator) Active(owner string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byOwner[owner])
}

// StopAll tears down every service owned by an agent. Called
// unconditionally when the agent is released.
func (c *Coordinator) StopAll(ctx context.Context, owner string) {
	c.mu.Lock()
	owned := c.byOwner[owner]
	delete(c.byOwner, owner)
	c.mu.Unlock()

	logger := ctxlog.FromContext(ctx)
	for _, h := range owned {
		if h.cmd.Process != nil {
			if err := h.cmd.Process.Kill(); err != nil {
				logger.Warn("failed to stop service during teardown", "service", h.Name, "error", err)
			}
			h.cmd.Wait()
		}
		logger.Debug("service stopped", "service", h.Name, "owner", owner)
	}
}
