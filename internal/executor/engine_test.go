package executor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sourceplane/blockflow/internal/agent"
	"github.com/sourceplane/blockflow/internal/cache"
	"github.com/sourceplane/blockflow/internal/logstream"
	"github.com/sourceplane/blockflow/internal/model"
	"github.com/sourceplane/blockflow/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvisioner wraps a real provisioner and tracks lifecycle calls.
type countingProvisioner struct {
	inner      agent.Provisioner
	mu         sync.Mutex
	provisions int
	releases   int
	lastHandle *agent.Handle
}

func (p *countingProvisioner) Provision(ctx context.Context, machineType, osImage string) (*agent.Handle, error) {
	h, err := p.inner.Provision(ctx, machineType, osImage)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		p.provisions++
		p.lastHandle = h
	}
	return h, err
}

func (p *countingProvisioner) Release(h *agent.Handle) error {
	p.mu.Lock()
	p.releases++
	p.mu.Unlock()
	return p.inner.Release(h)
}

type failingProvisioner struct{}

func (failingProvisioner) Provision(ctx context.Context, machineType, osImage string) (*agent.Handle, error) {
	return nil, &agent.ProvisionError{MachineType: machineType, OSImage: osImage, Err: errors.New("no capacity")}
}

func (failingProvisioner) Release(h *agent.Handle) error { return nil }

func testBlock() model.BlockPlan {
	return model.BlockPlan{
		Name:  "Build",
		Agent: model.Agent{Machine: model.Machine{Type: "e1-standard-2", OSImage: "ubuntu2004"}},
	}
}

func newTestEngine(t *testing.T, timeout time.Duration) (*Engine, *countingProvisioner) {
	t.Helper()
	prov := &countingProvisioner{inner: agent.NewLocalProvisioner(t.TempDir())}
	e := New(prov, nil, service.NewCoordinator(), Config{
		Shell:      "/bin/sh",
		JobTimeout: timeout,
		LogDir:     t.TempDir(),
	})
	return e, prov
}

func TestRunJobSuccess(t *testing.T) {
	e, prov := newTestEngine(t, time.Minute)

	res := e.RunJob(context.Background(), testBlock(), model.Job{
		Name:     "greet",
		Commands: []string{"echo hello"},
	})

	assert.Equal(t, model.StatusPassed, res.Status)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, 1, prov.provisions)
	assert.Equal(t, 1, prov.releases)

	require.NotEmpty(t, res.LogPath)
	data, err := os.ReadFile(res.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "$ echo hello")
	assert.Contains(t, string(data), "hello")
}

func TestPrologueRunsBeforeJobCommands(t *testing.T) {
	e, _ := newTestEngine(t, time.Minute)

	block := testBlock()
	block.Prologue = []string{"echo from-prologue"}

	res := e.RunJob(context.Background(), block, model.Job{
		Name:     "main",
		Commands: []string{"echo from-job"},
	})

	require.Equal(t, model.StatusPassed, res.Status)
	data, err := os.ReadFile(res.LogPath)
	require.NoError(t, err)

	out := string(data)
	assert.Less(t, strings.Index(out, "from-prologue"), strings.Index(out, "from-job"))
}

func TestFirstFailureStopsJob(t *testing.T) {
	e, _ := newTestEngine(t, time.Minute)

	res := e.RunJob(context.Background(), testBlock(), model.Job{
		Name:     "failing",
		Commands: []string{"echo before", "exit 3", "echo after"},
	})

	assert.Equal(t, model.StatusFailed, res.Status)
	assert.Equal(t, 3, res.ExitCode)

	data, err := os.ReadFile(res.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "before")
	assert.NotContains(t, string(data), "$ echo after")
}

func TestTimeoutReleasesAgentExactlyOnce(t *testing.T) {
	e, prov := newTestEngine(t, 100*time.Millisecond)

	res := e.RunJob(context.Background(), testBlock(), model.Job{
		Name:     "sleeper",
		Commands: []string{"sleep 5"},
	})

	assert.Equal(t, model.StatusTimedOut, res.Status)
	assert.Equal(t, 1, prov.provisions)
	assert.Equal(t, 1, prov.releases)
}

func TestProvisionFailureFailsJob(t *testing.T) {
	e := New(failingProvisioner{}, nil, service.NewCoordinator(), Config{LogDir: t.TempDir()})

	res := e.RunJob(context.Background(), testBlock(), model.Job{
		Name:     "never-runs",
		Commands: []string{"echo unreachable"},
	})

	assert.Equal(t, model.StatusFailed, res.Status)
	assert.Contains(t, res.Reason, "failed to provision agent")
}

func TestParentCancelMarksJobCanceled(t *testing.T) {
	e, prov := newTestEngine(t, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	res := e.RunJob(ctx, testBlock(), model.Job{
		Name:     "interrupted",
		Commands: []string{"sleep 5"},
	})

	assert.Equal(t, model.StatusCanceled, res.Status)
	assert.Equal(t, 1, prov.releases)
}

func TestCacheStoreAndRestoreAcrossJobs(t *testing.T) {
	store, err := cache.OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	prov := &countingProvisioner{inner: agent.NewLocalProvisioner(t.TempDir())}
	e := New(prov, store, service.NewCoordinator(), Config{
		Shell:      "/bin/sh",
		JobTimeout: time.Minute,
		LogDir:     t.TempDir(),
	})

	writer := e.RunJob(context.Background(), testBlock(), model.Job{
		Name: "producer",
		Commands: []string{
			"printf v1-contents > vendor.txt",
			"cache store deps-v1 vendor.txt",
		},
	})
	require.Equal(t, model.StatusPassed, writer.Status)

	// Second job runs on a brand new agent; the file can only come from
	// the cache.
	reader := e.RunJob(context.Background(), testBlock(), model.Job{
		Name: "consumer",
		Commands: []string{
			"cache restore deps-v1",
			"grep v1-contents vendor.txt",
		},
	})
	require.Equal(t, model.StatusPassed, reader.Status)

	data, err := os.ReadFile(reader.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cache: restored vendor.txt")
}

func TestCacheMissIsNotAFailure(t *testing.T) {
	store, err := cache.OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	prov := &countingProvisioner{inner: agent.NewLocalProvisioner(t.TempDir())}
	e := New(prov, store, service.NewCoordinator(), Config{
		Shell:      "/bin/sh",
		JobTimeout: time.Minute,
		LogDir:     t.TempDir(),
	})

	res := e.RunJob(context.Background(), testBlock(), model.Job{
		Name:     "cold-start",
		Commands: []string{"cache restore never-stored", "echo still fine"},
	})

	require.Equal(t, model.StatusPassed, res.Status)
	data, err := os.ReadFile(res.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cache: miss for key never-stored")
}

func TestServicesTornDownWithAgent(t *testing.T) {
	services := service.NewCoordinator()
	prov := &countingProvisioner{inner: agent.NewLocalProvisioner(t.TempDir())}
	e := New(prov, nil, services, Config{
		Shell:      "/bin/sh",
		JobTimeout: time.Minute,
		LogDir:     t.TempDir(),
	})

	res := e.RunJob(context.Background(), testBlock(), model.Job{
		Name:     "with-service",
		Commands: []string{"service start sleep 60", "echo running"},
	})

	require.Equal(t, model.StatusPassed, res.Status)

	data, err := os.ReadFile(res.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "service: started sleep")

	require.NotNil(t, prov.lastHandle)
	assert.Equal(t, 0, services.Active(prov.lastHandle.ID))
}

func TestObserverSeesLiveLog(t *testing.T) {
	e, _ := newTestEngine(t, time.Minute)

	var buf bytes.Buffer
	done := make(chan struct{})
	e.cfg.Observer = func(blockName, jobName string, log *logstream.Log) {
		go func() {
			defer close(done)
			for chunk := range log.Follow() {
				buf.Write(chunk)
			}
		}()
	}

	res := e.RunJob(context.Background(), testBlock(), model.Job{
		Name:     "streamer",
		Commands: []string{"echo streamed-line"},
	})

	require.Equal(t, model.StatusPassed, res.Status)
	<-done
	assert.Contains(t, buf.String(), "streamed-line")
}

func TestLogArtifactPersistedOnFailure(t *testing.T) {
	e, _ := newTestEngine(t, time.Minute)

	res := e.RunJob(context.Background(), testBlock(), model.Job{
		Name:     "doomed",
		Commands: []string{"exit 1"},
	})

	require.Equal(t, model.StatusFailed, res.Status)
	require.NotEmpty(t, res.LogPath)
	data, err := os.ReadFile(res.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "$ exit 1")
}
