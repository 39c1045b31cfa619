// Package watcher reloads a library whenever one of its CSV or YAML files
// changes on disk.
package watcher

import (
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// watchedExtensions are the file suffixes that trigger a reload. Anything
// else (temp files, .git, editor swap files) is ignored.
var watchedExtensions = map[string]bool{
	".csv":  true,
	".yaml": true,
	".yml":  true,
}

// ReloadFunc reloads the library at libraryPath for token. Implementations
// should log and keep the prior library live on failure rather than panic.
type ReloadFunc func(token, libraryPath string) error

// Entry is one library this Watcher should watch for changes.
type Entry struct {
	Token       string
	LibraryPath string
}

// Watcher recursively watches a set of library directories and debounces
// bursts of filesystem events into a single reload per library.
type Watcher struct {
	fsw               *fsnotify.Watcher
	debounce          time.Duration
	reloadBurstPerMin int
	reload            ReloadFunc

	mu       sync.Mutex
	entries  []Entry
	timers   map[string]*time.Timer
	limiters map[string]*rate.Limiter

	done chan struct{}
}

// New builds a Watcher over entries, recursively watching each library's
// directory tree. reloadBurstPerMin caps how many reloads per token are
// allowed per minute even under a sustained stream of debounced events; 0
// disables the cap. It does not start processing events until Start is
// called.
func New(entries []Entry, debounce time.Duration, reloadBurstPerMin int, reload ReloadFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:               fsw,
		debounce:          debounce,
		reloadBurstPerMin: reloadBurstPerMin,
		reload:            reload,
		entries:           entries,
		timers:            make(map[string]*time.Timer),
		limiters:          make(map[string]*rate.Limiter),
		done:              make(chan struct{}),
	}

	if reloadBurstPerMin > 0 {
		for _, e := range entries {
			w.limiters[e.Token] = rate.NewLimiter(rate.Limit(float64(reloadBurstPerMin)/60.0), reloadBurstPerMin)
		}
	}

	for _, e := range entries {
		if err := w.addRecursive(e.LibraryPath); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	return w, nil
}

// AddEntry registers an additional library to watch after construction,
// recursively watching its directory tree. Safe to call while Start is
// running. A token that is already registered is left untouched, so the
// discovery engine can call this unconditionally every time it
// auto-registers a library.
func (w *Watcher) AddEntry(token, libraryPath string) error {
	w.mu.Lock()
	for _, e := range w.entries {
		if e.Token == token {
			w.mu.Unlock()
			return nil
		}
	}
	w.entries = append(w.entries, Entry{Token: token, LibraryPath: libraryPath})
	if w.reloadBurstPerMin > 0 {
		w.limiters[token] = rate.NewLimiter(rate.Limit(float64(w.reloadBurstPerMin)/60.0), w.reloadBurstPerMin)
	}
	w.mu.Unlock()

	return w.addRecursive(libraryPath)
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if addErr := w.fsw.Add(path); addErr != nil {
				return addErr
			}
		}
		return nil
	})
}

// Start processes filesystem events until Close is called. It returns
// only when the underlying watcher is closed.
func (w *Watcher) Start() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("[watcher] error: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !watchedExtensions[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}

	entry, ok := w.entryFor(event.Name)
	if !ok {
		return
	}

	w.scheduleReload(entry)
}

func (w *Watcher) entryFor(path string) (Entry, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, e := range w.entries {
		if strings.HasPrefix(path, e.LibraryPath) {
			return e, true
		}
	}
	return Entry{}, false
}

// scheduleReload debounces repeated events for the same token into a
// single reload, firing debounce after the last observed event.
func (w *Watcher) scheduleReload(entry Entry) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[entry.Token]; ok {
		t.Stop()
	}

	w.timers[entry.Token] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		limiter, hasLimiter := w.limiters[entry.Token]
		w.mu.Unlock()

		if hasLimiter && !limiter.Allow() {
			log.Printf("[watcher] reload rate limit hit for %s, skipping this burst", entry.LibraryPath)
			return
		}
		if err := w.reload(entry.Token, entry.LibraryPath); err != nil {
			log.Printf("[watcher] reload %s failed, keeping previous library: %v", entry.LibraryPath, err)
			return
		}
		log.Printf("[watcher] reloaded library at %s", entry.LibraryPath)
	})
}

// Close stops event processing and releases the underlying filesystem
// watches.
func (w *Watcher) Close() error {
	close(w.done)

	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()

	return w.fsw.Close()
}
