package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourceplane/blockflow/internal/agent"
	"github.com/sourceplane/blockflow/internal/cache"
)

// Cache and service steps appear in pipeline documents as opaque
// commands for compatibility. The engine recognizes them here and routes
// them to the coordinator as typed calls instead of the shell.

type directiveKind int

const (
	directiveCacheRestore directiveKind = iota
	directiveCacheStore
	directiveServiceStart
)

type directive struct {
	kind    directiveKind
	key     string   // cache key
	path    string   // workdir-relative path for cache store
	service string   // service binary name
	params  []string // service arguments
}

// parseDirective recognizes the compatibility command forms:
//
//	cache restore <key>
//	cache store <key> <path>
//	service start <name> [params...]
func parseDirective(command string) (directive, bool) {
	fields := strings.Fields(command)
	switch {
	case len(fields) == 3 && fields[0] == "cache" && fields[1] == "restore":
		return directive{kind: directiveCacheRestore, key: fields[2]}, true
	case len(fields) == 4 && fields[0] == "cache" && fields[1] == "store":
		return directive{kind: directiveCacheStore, key: fields[2], path: fields[3]}, true
	case len(fields) >= 3 && fields[0] == "service" && fields[1] == "start":
		return directive{kind: directiveServiceStart, service: fields[2], params: fields[3:]}, true
	}
	return directive{}, false
}

// cacheEnvelope wraps a cached blob with the workdir-relative path it
// restores to. The store itself treats the whole envelope as opaque bytes.
type cacheEnvelope struct {
	Path string `json:"path"`
	Data []byte `json:"data"`
}

func (e *Engine) runDirective(ctx context.Context, h *agent.Handle, d directive, logw io.Writer) (int, error) {
	switch d.kind {
	case directiveCacheRestore:
		return e.cacheRestore(h, d, logw)
	case directiveCacheStore:
		return e.cacheStore(h, d, logw)
	case directiveServiceStart:
		if _, err := e.services.Start(ctx, h.ID, d.service, d.params, logw); err != nil {
			fmt.Fprintf(logw, "service: failed to start %s: %v\n", d.service, err)
			return 1, err
		}
		fmt.Fprintf(logw, "service: started %s\n", d.service)
		return 0, nil
	}
	return 1, fmt.Errorf("unknown directive")
}

// cacheRestore is best-effort: a miss logs and succeeds so the job can
// take the cold path.
func (e *Engine) cacheRestore(h *agent.Handle, d directive, logw io.Writer) (int, error) {
	if e.store == nil {
		fmt.Fprintf(logw, "cache: disabled, treating key %s as a miss\n", d.key)
		return 0, nil
	}

	blob, err := e.store.Restore(d.key)
	if errors.Is(err, cache.ErrMiss) {
		fmt.Fprintf(logw, "cache: miss for key %s\n", d.key)
		return 0, nil
	}
	if err != nil {
		fmt.Fprintf(logw, "cache: restore failed: %v\n", err)
		return 1, err
	}

	var env cacheEnvelope
	if err := json.Unmarshal(blob, &env); err != nil {
		fmt.Fprintf(logw, "cache: corrupt entry for key %s: %v\n", d.key, err)
		return 1, err
	}

	dest := filepath.Join(h.WorkDir, env.Path)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 1, err
	}
	if err := os.WriteFile(dest, env.Data, 0o644); err != nil {
		return 1, err
	}

	fmt.Fprintf(logw, "cache: restored %s (key %s, %d bytes)\n", env.Path, d.key, len(env.Data))
	return 0, nil
}

func (e *Engine) cacheStore(h *agent.Handle, d directive, logw io.Writer) (int, error) {
	if e.store == nil {
		fmt.Fprintln(logw, "cache: disabled, store skipped")
		return 0, nil
	}

	data, err := os.ReadFile(filepath.Join(h.WorkDir, d.path))
	if err != nil {
		fmt.Fprintf(logw, "cache: cannot read %s: %v\n", d.path, err)
		return 1, err
	}

	blob, err := json.Marshal(cacheEnvelope{Path: d.path, Data: data})
	if err != nil {
		return 1, err
	}
	if err := e.store.Save(d.key, blob); err != nil {
		fmt.Fprintf(logw, "cache: store failed: %v\n", err)
		return 1, err
	}

	fmt.Fprintf(logw, "cache: stored %s under key %s (%d bytes)\n", d.path, d.key, len(data))
	return 0, nil
}
