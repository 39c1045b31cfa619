package registry

import (
	"fmt"
	"log"
	"sync"

	"github.com/kicodex/kicodexd/internal/library"
)

// Runtime is a concurrent, token-keyed map to shared, immutable Library
// handles. Readers acquire a handle under a short critical section and
// then operate without a lock; reload atomically replaces the handle so
// in-flight holders keep seeing the pre-reload Library to completion.
type Runtime struct {
	mu   sync.RWMutex
	libs map[string]*library.Library
}

func NewRuntime() *Runtime {
	return &Runtime{libs: make(map[string]*library.Library)}
}

// FromPersistent builds a runtime registry from a persisted registry,
// loading every library. A library that fails to load is logged and
// skipped; it does not fail the whole construction.
func FromPersistent(persisted *Persistent) *Runtime {
	rt := NewRuntime()
	for _, entry := range persisted.Entries() {
		lib, err := library.Load(entry.LibraryPath)
		if err != nil {
			log.Printf("[registry] skip %q: failed to load library at %s: %v", entry.Name, entry.LibraryPath, err)
			continue
		}
		rt.Insert(entry.Token, lib)
	}
	return rt
}

func (r *Runtime) Get(token string) (*library.Library, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lib, ok := r.libs[token]
	return lib, ok
}

func (r *Runtime) Insert(token string, lib *library.Library) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.libs[token] = lib
}

func (r *Runtime) Remove(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.libs, token)
}

// Tokens returns a snapshot of every registered token.
func (r *Runtime) Tokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tokens := make([]string, 0, len(r.libs))
	for t := range r.libs {
		tokens = append(tokens, t)
	}
	return tokens
}

// Reload loads libraryPath fresh and, on success, atomically replaces the
// handle for token. On failure the previous library remains live.
func (r *Runtime) Reload(token, libraryPath string) error {
	lib, err := library.Load(libraryPath)
	if err != nil {
		return fmt.Errorf("registry: reload %s: %w", libraryPath, err)
	}
	r.Insert(token, lib)
	return nil
}

// Len reports how many tokens are currently registered.
func (r *Runtime) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.libs)
}
