// Package cache is the shared, workflow-scoped blob store jobs use to
// carry dependency archives between runs. It is strictly best-effort: a
// miss is not an error and callers must tolerate the cold path.
package cache

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// ErrMiss reports that a key is not present. Callers degrade to the
// cold path on it; nothing else treats it as a failure.
var ErrMiss = errors.New("cache: miss")

const writeStripes = 32

// Store is a keyed byte-blob store backed by badger. Writes to the same
// key are serialized so concurrent jobs cannot interleave a blob;
// between whole writes the last one wins.
type Store struct {
	db     *badger.DB
	stripe [writeStripes]sync.Mutex
}

// Open opens (or creates) a store rooted at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a store with no on-disk footprint, used in tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory cache store: %w", err)
	}
	return &Store{db: db}, nil
}

// Restore fetches the blob stored under key, or ErrMiss.
func (s *Store) Restore(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to restore cache key %s: %w", key, err)
	}
	return out, nil
}

// Save stores a blob under key, replacing any previous value.
func (s *Store) Save(key string, val []byte) error {
	lock := &s.stripe[stripeFor(key)]
	lock.Lock()
	defer lock.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), val)
	})
	if err != nil {
		return fmt.Errorf("failed to store cache key %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func stripeFor(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32() % writeStripes
}
