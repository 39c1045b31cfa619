package discovery

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kicodex/kicodexd/internal/registry"
)

func createMinimalLibrary(t *testing.T, dir string) {
	t.Helper()
	schemasDir := filepath.Join(dir, "schemas")
	if err := os.MkdirAll(schemasDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	writeFile(t, filepath.Join(dir, "library.yaml"), `
name: test-lib
schemas_path: schemas
tables:
  - name: Resistors
    file: resistors.csv
    schema: resistors
`)
	writeFile(t, filepath.Join(schemasDir, "resistors.yaml"), `
fields:
  value:
    display_name: Value
    visible: true
  description:
    display_name: Description
    visible: true
`)
	writeFile(t, filepath.Join(dir, "resistors.csv"), "id,value,description\n1,10k,10k Resistor\n")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	content = content[1:] // drop leading newline from the raw string literal
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func setupProject(t *testing.T) (projectDir, libDir string) {
	t.Helper()
	projectDir = t.TempDir()
	libDir = filepath.Join(projectDir, "libs", "components")
	createMinimalLibrary(t, libDir)
	writeFile(t, filepath.Join(projectDir, "kicodex.yaml"), `
libraries:
  - name: components
    path: libs/components
`)
	return projectDir, libDir
}

func newPersistent(t *testing.T) *registry.Persistent {
	t.Helper()
	p, err := registry.LoadPersistent(filepath.Join(t.TempDir(), "projects.json"))
	if err != nil {
		t.Fatalf("LoadPersistent: %v", err)
	}
	return p
}

func TestAutoRegisterWithManifest(t *testing.T) {
	t.Parallel()
	projectDir, _ := setupProject(t)
	persisted := newPersistent(t)
	rt := registry.NewRuntime()

	count, err := AutoRegister(projectDir, persisted, rt, 18734)
	if err != nil {
		t.Fatalf("AutoRegister: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	if len(persisted.Entries()) != 1 || persisted.Entries()[0].Name != "components" {
		t.Errorf("entries = %+v, want one entry named components", persisted.Entries())
	}
	if rt.Len() != 1 {
		t.Errorf("runtime.Len() = %d, want 1", rt.Len())
	}

	httplib := filepath.Join(projectDir, "components.kicad_httplib")
	if _, err := os.Stat(httplib); err != nil {
		t.Errorf("expected %s to exist: %v", httplib, err)
	}
}

func TestAutoRegisterSkipsAlreadyRegistered(t *testing.T) {
	t.Parallel()
	projectDir, libDir := setupProject(t)
	persisted := newPersistent(t)
	projPath := projectDir
	if err := persisted.Upsert(registry.Entry{
		Token:       "existing-token",
		ProjectPath: &projPath,
		LibraryPath: libDir,
		Name:        "components",
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	rt := registry.NewRuntime()

	count, err := AutoRegister(projectDir, persisted, rt, 18734)
	if err != nil {
		t.Fatalf("AutoRegister: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestAutoRegisterNoManifestIsNotAnError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	persisted := newPersistent(t)
	rt := registry.NewRuntime()

	count, err := AutoRegister(dir, persisted, rt, 18734)
	if err != nil {
		t.Fatalf("AutoRegister: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestAutoRegisterEnsuresHttplibForAlreadyRegistered(t *testing.T) {
	t.Parallel()
	projectDir, libDir := setupProject(t)
	persisted := newPersistent(t)
	projPath := projectDir
	if err := persisted.Upsert(registry.Entry{
		Token:       "my-token",
		ProjectPath: &projPath,
		LibraryPath: libDir,
		Name:        "components",
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	rt := registry.NewRuntime()

	httplib := filepath.Join(projectDir, "components.kicad_httplib")
	if _, err := os.Stat(httplib); err == nil {
		t.Fatal("httplib should not exist yet")
	}

	count, err := AutoRegister(projectDir, persisted, rt, 18734)
	if err != nil {
		t.Fatalf("AutoRegister: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0 (not newly registered)", count)
	}

	data, err := os.ReadFile(httplib)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "my-token") || !strings.Contains(string(data), "18734") {
		t.Errorf("httplib content = %s, want to contain my-token and 18734", data)
	}
}

func TestAutoRegisterRewritesStaleDescriptor(t *testing.T) {
	t.Parallel()
	projectDir, libDir := setupProject(t)
	persisted := newPersistent(t)
	projPath := projectDir
	if err := persisted.Upsert(registry.Entry{
		Token:       "correct-token",
		ProjectPath: &projPath,
		LibraryPath: libDir,
		Name:        "components",
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	rt := registry.NewRuntime()

	httplib := filepath.Join(projectDir, "components.kicad_httplib")
	if err := os.WriteFile(httplib, []byte(`{"source":{"token":"wrong-token"}}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := AutoRegister(projectDir, persisted, rt, 18734); err != nil {
		t.Fatalf("AutoRegister: %v", err)
	}

	data, err := os.ReadFile(httplib)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Contains(string(data), "wrong-token") {
		t.Error("expected stale token to be overwritten")
	}
	if !strings.Contains(string(data), "correct-token") {
		t.Error("expected correct token to be present")
	}
}

func TestAutoRegisterTwiceIsIdempotent(t *testing.T) {
	t.Parallel()
	projectDir, _ := setupProject(t)
	persisted := newPersistent(t)
	rt := registry.NewRuntime()

	if _, err := AutoRegister(projectDir, persisted, rt, 18734); err != nil {
		t.Fatalf("AutoRegister (first): %v", err)
	}
	count, err := AutoRegister(projectDir, persisted, rt, 18734)
	if err != nil {
		t.Fatalf("AutoRegister (second): %v", err)
	}
	if count != 0 {
		t.Errorf("second call count = %d, want 0", count)
	}
}
