// Package discovery finds KiCad projects automatically, by watching
// running processes and each project's lock files, and auto-registers
// the libraries they list.
package discovery

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kicodex/kicodexd/internal/registry"
)

type projectState int

const (
	stateUnknown projectState = iota
	stateCandidate
	stateRegistered
)

// OnDiscoveryFunc is called with the persisted registry whenever
// auto-registration adds at least one library.
type OnDiscoveryFunc func(*registry.Persistent)

// OnActiveChangedFunc is called with the updated ACTIVE set whenever it
// changes.
type OnActiveChangedFunc func(active []string)

// Engine composes the process scanner and lock watcher into the
// UNKNOWN → CANDIDATE → REGISTERED state machine and the orthogonal ACTIVE
// set of currently open project directories.
type Engine struct {
	persisted *registry.Persistent
	runtime   *registry.Runtime
	port      int

	scanInterval time.Duration
	lockDebounce time.Duration

	onDiscovery     OnDiscoveryFunc
	onActiveChanged OnActiveChangedFunc

	mu     sync.Mutex
	states map[string]projectState
	active map[string]bool
}

// NewEngine builds a discovery engine. scanInterval and lockDebounce
// default to 2s and 1s respectively when zero.
func NewEngine(persisted *registry.Persistent, runtime *registry.Runtime, port int, scanInterval, lockDebounce time.Duration) *Engine {
	if scanInterval == 0 {
		scanInterval = 2 * time.Second
	}
	if lockDebounce == 0 {
		lockDebounce = time.Second
	}
	return &Engine{
		persisted:    persisted,
		runtime:      runtime,
		port:         port,
		scanInterval: scanInterval,
		lockDebounce: lockDebounce,
		states:       make(map[string]projectState),
		active:       make(map[string]bool),
	}
}

func (e *Engine) OnDiscovery(cb OnDiscoveryFunc) *Engine {
	e.onDiscovery = cb
	return e
}

func (e *Engine) OnActiveChanged(cb OnActiveChangedFunc) *Engine {
	e.onActiveChanged = cb
	return e
}

// Run starts the discovery loop: an initial scan, then a periodic scan
// tick racing against lock-file events, until ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	log.Print("[discovery] engine started")

	initial := ScanKicadProcesses()
	for _, dir := range initial {
		e.tryRegister(dir)
	}
	e.setActive(initial)

	lockWatcher, lockEvents, err := NewLockWatcher(e.lockDebounce)
	if err != nil {
		log.Printf("[discovery] failed to start lock watcher: %v", err)
		lockWatcher = nil
	}
	if lockWatcher != nil {
		for dir := range e.registeredDirs() {
			_ = lockWatcher.AddDirectory(dir)
		}
		for _, dir := range initial {
			_ = lockWatcher.AddDirectory(dir)
		}
		go lockWatcher.Start()
		defer lockWatcher.Close()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.runScanLoop(ctx) })
	g.Go(func() error { return e.runLockEventLoop(ctx, lockEvents, lockWatcher) })

	return g.Wait()
}

func (e *Engine) runScanLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			dirs := ScanKicadProcesses()
			for _, dir := range dirs {
				e.tryRegister(dir)
			}
			e.setActive(dirs)
		}
	}
}

func (e *Engine) runLockEventLoop(ctx context.Context, events chan LockEvent, lockWatcher *LockWatcher) error {
	if events == nil {
		<-ctx.Done()
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case ProjectOpened:
				log.Printf("[discovery] project opened (lock file): %s", ev.Dir)
				e.tryRegister(ev.Dir)
				e.addActive(ev.Dir)
				if lockWatcher != nil {
					_ = lockWatcher.AddDirectory(ev.Dir)
				}
			case ProjectClosed:
				log.Printf("[discovery] project closed (lock file): %s", ev.Dir)
				e.removeActive(ev.Dir)
			}
		}
	}
}

// tryRegister attempts auto-registration for dir, advancing its state from
// UNKNOWN/CANDIDATE to REGISTERED on success. REGISTERED is sticky: once
// reached, dir is never revisited by this method's state transition (a
// repeat auto_register call is harmless and just reconciles descriptors).
func (e *Engine) tryRegister(dir string) {
	count, err := AutoRegister(dir, e.persisted, e.runtime, e.port)
	if err != nil {
		log.Printf("[discovery] could not auto-register %s: %v", dir, err)
		if e.stateOf(dir) != stateRegistered {
			e.setState(dir, stateCandidate)
		}
		return
	}
	if e.stateOf(dir) != stateRegistered {
		e.setState(dir, stateRegistered)
	}
	if count > 0 {
		log.Printf("[discovery] auto-registered %d librar(y/ies) from %s", count, dir)
		if e.onDiscovery != nil {
			e.onDiscovery(e.persisted)
		}
	}
}

func (e *Engine) setState(dir string, s projectState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states[dir] = s
}

func (e *Engine) stateOf(dir string) projectState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[dir]
}

func (e *Engine) registeredDirs() map[string]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	dirs := make(map[string]bool)
	for dir, s := range e.states {
		if s == stateRegistered {
			dirs[dir] = true
		}
	}
	return dirs
}

func (e *Engine) setActive(dirs []string) {
	sorted := append([]string(nil), dirs...)
	sort.Strings(sorted)

	e.mu.Lock()
	if e.activeEqualsLocked(sorted) {
		e.mu.Unlock()
		return
	}
	e.active = make(map[string]bool, len(sorted))
	for _, d := range sorted {
		e.active[d] = true
	}
	e.mu.Unlock()
	e.publishActive()
}

func (e *Engine) addActive(dir string) {
	e.mu.Lock()
	if e.active[dir] {
		e.mu.Unlock()
		return
	}
	e.active[dir] = true
	e.mu.Unlock()
	e.publishActive()
}

func (e *Engine) removeActive(dir string) {
	e.mu.Lock()
	if !e.active[dir] {
		e.mu.Unlock()
		return
	}
	delete(e.active, dir)
	e.mu.Unlock()
	e.publishActive()
}

// activeEqualsLocked compares dirs against the current active set. Callers
// must hold e.mu.
func (e *Engine) activeEqualsLocked(dirs []string) bool {
	if len(dirs) != len(e.active) {
		return false
	}
	for _, d := range dirs {
		if !e.active[d] {
			return false
		}
	}
	return true
}

func (e *Engine) publishActive() {
	e.mu.Lock()
	dirs := make([]string, 0, len(e.active))
	for d := range e.active {
		dirs = append(dirs, d)
	}
	e.mu.Unlock()

	sort.Strings(dirs)
	if e.onActiveChanged != nil {
		e.onActiveChanged(dirs)
	}
}
