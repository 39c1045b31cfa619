package discovery

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// LockEventKind distinguishes a project opening from a project closing.
type LockEventKind int

const (
	ProjectOpened LockEventKind = iota
	ProjectClosed
)

// LockEvent is emitted when a .lck file's presence changes in a watched
// project directory.
type LockEvent struct {
	Kind LockEventKind
	Dir  string
}

// LockWatcher watches a set of project directories, non-recursively, for
// .lck file creation and removal, debouncing bursts into single events per
// lock file. A ProjectClosed event is suppressed if other .lck files
// remain in the directory.
type LockWatcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	events   chan LockEvent

	mu   sync.Mutex
	dirs map[string]bool

	done chan struct{}
}

// NewLockWatcher builds a LockWatcher that emits onto the returned channel.
// Callers must drain the channel; it is closed by Close.
func NewLockWatcher(debounce time.Duration) (*LockWatcher, chan LockEvent, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	events := make(chan LockEvent, 16)
	return &LockWatcher{
		fsw:      fsw,
		debounce: debounce,
		events:   events,
		dirs:     make(map[string]bool),
		done:     make(chan struct{}),
	}, events, nil
}

// AddDirectory registers a project directory to watch. Safe to call before
// or after Start; directories that do not exist are skipped silently.
func (w *LockWatcher) AddDirectory(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dirs[dir] {
		return nil
	}
	if _, err := os.Stat(dir); err != nil {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = true
	return nil
}

// Start processes filesystem events until Close is called.
//
// Debounce timers are keyed by the individual lock file path, not by its
// containing directory: two distinct lock files created or removed close
// together in the same directory must each get their own debounce window,
// or the second one's timer would cancel and replace the first's, losing
// the first file's event entirely.
func (w *LockWatcher) Start() {
	timers := make(map[string]*time.Timer)
	var mu sync.Mutex

	schedule := func(lockPath string, fire func()) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[lockPath]; ok {
			t.Stop()
		}
		timers[lockPath] = time.AfterFunc(w.debounce, fire)
	}

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				close(w.events)
				return
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".lck") {
				continue
			}
			dir := filepath.Dir(event.Name)
			lockPath := event.Name
			schedule(lockPath, func() {
				w.handleLockChange(dir, lockPath)
			})
		case <-w.fsw.Errors:
		case <-w.done:
			close(w.events)
			return
		}
	}
}

func (w *LockWatcher) handleLockChange(dir, lockPath string) {
	if _, err := os.Stat(lockPath); err == nil {
		w.events <- LockEvent{Kind: ProjectOpened, Dir: dir}
		return
	}

	if hasRemainingLocks(dir) {
		return
	}
	w.events <- LockEvent{Kind: ProjectClosed, Dir: dir}
}

func hasRemainingLocks(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if strings.EqualFold(filepath.Ext(e.Name()), ".lck") {
			return true
		}
	}
	return false
}

// Close stops event processing and releases filesystem watches.
func (w *LockWatcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
