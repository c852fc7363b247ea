package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndRestore(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Save("deps-abc123", []byte("blob contents")))

	got, err := s.Restore("deps-abc123")
	require.NoError(t, err)
	assert.Equal(t, []byte("blob contents"), got)
}

func TestRestoreMiss(t *testing.T) {
	s := newStore(t)

	_, err := s.Restore("never-stored")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestLastWriteWins(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Save("key", []byte("first")))
	require.NoError(t, s.Save("key", []byte("second")))

	got, err := s.Restore("key")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func TestConcurrentWritesToSameKeyNeverCorrupt(t *testing.T) {
	s := newStore(t)

	const writers = 32
	valid := make(map[string]bool, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		val := fmt.Sprintf("writer-%02d-payload", i)
		valid[val] = true
		wg.Add(1)
		go func(val string) {
			defer wg.Done()
			assert.NoError(t, s.Save("contested", []byte(val)))
		}(val)
	}
	wg.Wait()

	got, err := s.Restore("contested")
	require.NoError(t, err)
	// The surviving blob must be one intact write, not an interleaving.
	assert.True(t, valid[string(got)], "unexpected blob %q", got)
}

func TestOpenOnDisk(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save("persisted", []byte("data")))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Restore("persisted")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)
}
