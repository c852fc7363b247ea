package service

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAndStop(t *testing.T) {
	c := NewCoordinator()

	h, err := c.Start(context.Background(), "agent-1", "sleep", []string{"60"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Active("agent-1"))

	require.NoError(t, c.Stop(h))
	assert.Equal(t, 0, c.Active("agent-1"))
}

func TestStartUnknownBinary(t *testing.T) {
	c := NewCoordinator()

	_, err := c.Start(context.Background(), "agent-1", "definitely-not-a-binary-xyz", nil, io.Discard)
	require.Error(t, err)
	assert.Equal(t, 0, c.Active("agent-1"))
}

func TestStopAllSweepsOnlyOwner(t *testing.T) {
	c := NewCoordinator()

	_, err := c.Start(context.Background(), "agent-1", "sleep", []string{"60"}, io.Discard)
	require.NoError(t, err)
	_, err = c.Start(context.Background(), "agent-1", "sleep", []string{"60"}, io.Discard)
	require.NoError(t, err)
	other, err := c.Start(context.Background(), "agent-2", "sleep", []string{"60"}, io.Discard)
	require.NoError(t, err)

	c.StopAll(context.Background(), "agent-1")

	assert.Equal(t, 0, c.Active("agent-1"))
	assert.Equal(t, 1, c.Active("agent-2"))

	require.NoError(t, c.Stop(other))
}

func TestStopAllReapsProcess(t *testing.T) {
	c := NewCoordinator()

	h, err := c.Start(context.Background(), "agent-1", "sleep", []string{"60"}, io.Discard)
	require.NoError(t, err)
	pid := h.cmd.Process.Pid
	require.Greater(t, pid, 0)

	c.StopAll(context.Background(), "agent-1")

	// StopAll kills and reaps synchronously, so the process state is
	// already recorded when it returns.
	require.NotNil(t, h.cmd.ProcessState)
}

func TestStopNilHandle(t *testing.T) {
	c := NewCoordinator()
	assert.Error(t, c.Stop(nil))
}
