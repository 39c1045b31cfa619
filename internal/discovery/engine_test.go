package discovery

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kicodex/kicodexd/internal/registry"
)

func TestEngineTryRegisterPublishesOnDiscovery(t *testing.T) {
	t.Parallel()
	projectDir, _ := setupProject(t)
	persisted := newPersistent(t)
	rt := registry.NewRuntime()

	var mu sync.Mutex
	var calls int
	engine := NewEngine(persisted, rt, 18734, time.Hour, time.Hour).
		OnDiscovery(func(p *registry.Persistent) {
			mu.Lock()
			calls++
			mu.Unlock()
		})

	engine.tryRegister(projectDir)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("onDiscovery calls = %d, want 1", calls)
	}
	if engine.stateOf(projectDir) != stateRegistered {
		t.Errorf("state = %v, want registered", engine.stateOf(projectDir))
	}
}

func TestEngineTryRegisterSecondCallDoesNotRepublish(t *testing.T) {
	t.Parallel()
	projectDir, _ := setupProject(t)
	persisted := newPersistent(t)
	rt := registry.NewRuntime()

	var mu sync.Mutex
	var calls int
	engine := NewEngine(persisted, rt, 18734, time.Hour, time.Hour).
		OnDiscovery(func(p *registry.Persistent) {
			mu.Lock()
			calls++
			mu.Unlock()
		})

	engine.tryRegister(projectDir)
	engine.tryRegister(projectDir)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("onDiscovery calls = %d, want 1 (no new libraries on second call)", calls)
	}
}

func TestEngineTryRegisterFailureDoesNotDemoteRegisteredState(t *testing.T) {
	t.Parallel()
	projectDir, _ := setupProject(t)
	persisted := newPersistent(t)
	rt := registry.NewRuntime()
	engine := NewEngine(persisted, rt, 18734, time.Hour, time.Hour)

	engine.tryRegister(projectDir)
	if engine.stateOf(projectDir) != stateRegistered {
		t.Fatalf("state = %v, want registered after first call", engine.stateOf(projectDir))
	}

	// Force the next AutoRegister call to fail by replacing the
	// already-registered library's descriptor path with a directory, so
	// ensureHttplibFile's write fails.
	httplibPath := filepath.Join(projectDir, "components.kicad_httplib")
	if err := os.MkdirAll(httplibPath, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	engine.tryRegister(projectDir)
	if engine.stateOf(projectDir) != stateRegistered {
		t.Errorf("state = %v, want registered to stay sticky across a later auto-register failure", engine.stateOf(projectDir))
	}
}

func TestEngineActiveSetChangeNotification(t *testing.T) {
	t.Parallel()
	persisted := newPersistent(t)
	rt := registry.NewRuntime()

	var mu sync.Mutex
	var lastActive []string
	engine := NewEngine(persisted, rt, 18734, time.Hour, time.Hour).
		OnActiveChanged(func(active []string) {
			mu.Lock()
			lastActive = active
			mu.Unlock()
		})

	engine.setActive([]string{"/a", "/b"})

	mu.Lock()
	defer mu.Unlock()
	if len(lastActive) != 2 || lastActive[0] != "/a" || lastActive[1] != "/b" {
		t.Errorf("lastActive = %v, want [/a /b]", lastActive)
	}
}

func TestEngineActiveSetUnchangedDoesNotRepublish(t *testing.T) {
	t.Parallel()
	persisted := newPersistent(t)
	rt := registry.NewRuntime()

	var calls int
	engine := NewEngine(persisted, rt, 18734, time.Hour, time.Hour).
		OnActiveChanged(func(active []string) { calls++ })

	engine.setActive([]string{"/a"})
	engine.setActive([]string{"/a"})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestEngineRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	persisted := newPersistent(t)
	rt := registry.NewRuntime()
	engine := NewEngine(persisted, rt, 18734, 10*time.Millisecond, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Run to stop after cancel")
	}
}

func TestEngineRunAutoRegistersRegisteredDirLockEvents(t *testing.T) {
	t.Parallel()
	projectDir, _ := setupProject(t)
	persisted := newPersistent(t)
	rt := registry.NewRuntime()

	var mu sync.Mutex
	var activeSets [][]string
	engine := NewEngine(persisted, rt, 18734, time.Hour, 20*time.Millisecond).
		OnActiveChanged(func(active []string) {
			mu.Lock()
			activeSets = append(activeSets, append([]string(nil), active...))
			mu.Unlock()
		})

	engine.tryRegister(projectDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	lockPath := filepath.Join(projectDir, "project.lck")
	if err := os.WriteFile(lockPath, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(activeSets)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for active-set change from lock event")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
