// Package logstream provides the ordered, append-only log a running job
// writes its combined stdout/stderr into. Observers can follow the log
// while the job is still running.
package logstream

import (
	"bytes"
	"sync"
)

// Log is an append-only byte log safe for one writer and any number of
// concurrent followers. The executor closes it when the job finishes;
// followers drain whatever is left and terminate.
type Log struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	closed bool
}

// New creates an empty log.
func New() *Log {
	l := &Log{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Write appends a chunk to the log. It implements io.Writer so command
// stdout/stderr can be wired straight in.
func (l *Log) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, err := l.buf.Write(p)
	l.cond.Broadcast()
	return n, err
}

// Bytes returns a snapshot of everything written so far.
func (l *Log) Bytes() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]byte, l.buf.Len())
	copy(out, l.buf.Bytes())
	return out
}

// Close marks the log complete and wakes all followers. Writes after
// Close are still appended; Close only signals that no more are coming.
func (l *Log) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.cond.Broadcast()
}

// Follow streams log chunks in append order, starting from the
// beginning. The returned channel closes once the log is closed and
// fully drained.
func (l *Log) Follow() <-chan []byte {
	ch := make(chan []byte)
	go func() {
		defer close(ch)
		offset := 0
		for {
			l.mu.Lock()
			for offset == l.buf.Len() && !l.closed {
				l.cond.Wait()
			}
			if offset == l.buf.Len() && l.closed {
				l.mu.Unlock()
				return
			}
			chunk := make([]byte, l.buf.Len()-offset)
			copy(chunk, l.buf.Bytes()[offset:])
			offset = l.buf.Len()
			l.mu.Unlock()

			ch <- chunk
		}
	}()
	return ch
}
