package discovery

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/kicodex/kicodexd/internal/library"
	"github.com/kicodex/kicodexd/internal/project"
	"github.com/kicodex/kicodexd/internal/registry"
)

// httplibTemplate produces the exact bytes of a .kicad_httplib descriptor.
// Reconciliation is byte-for-byte, not JSON-equivalence, so this is built
// by hand rather than through encoding/json (which would print 1 instead
// of 1.0 for the meta version).
const httplibTemplate = `{
    "meta": {
        "version": 1.0
    },
    "name": "%s",
    "description": "%s",
    "source": {
        "type": "REST_API",
        "api_version": "v1",
        "root_url": "http://127.0.0.1:%d",
        "token": "%s"
    }
}`

func expectedHttplibContent(name, description string, port int, token string) string {
	return fmt.Sprintf(httplibTemplate, name, description, port, token)
}

func resolveDescription(name string, description *string) string {
	if description != nil {
		return *description
	}
	return fmt.Sprintf("KiCodex HTTP Library for %s", name)
}

// ensureHttplibFile writes <name>.kicad_httplib into projectDir if it is
// missing or its content differs from the expected bytes.
func ensureHttplibFile(projectDir, name string, description *string, token string, port int) error {
	path := filepath.Join(projectDir, name+".kicad_httplib")
	expected := expectedHttplibContent(name, resolveDescription(name, description), port, token)

	if existing, err := os.ReadFile(path); err == nil && string(existing) == expected {
		return nil
	}
	return os.WriteFile(path, []byte(expected), 0o644)
}

// AutoRegister reads projectDir's kicodex.yaml, loading and registering any
// library it lists that isn't already registered for this project, and
// reconciles the .kicad_httplib descriptor for libraries that already are.
// It returns the number of newly registered libraries. A directory with no
// kicodex.yaml is not an error: it returns (0, nil).
func AutoRegister(projectDir string, persisted *registry.Persistent, runtime *registry.Runtime, port int) (int, error) {
	if !project.HasManifest(projectDir) {
		return 0, nil
	}

	manifest, err := project.LoadManifest(projectDir)
	if err != nil {
		return 0, fmt.Errorf("discovery: load project manifest at %s: %w", projectDir, err)
	}

	newlyRegistered := 0
	for _, ref := range manifest.Libraries {
		existing, ok := findByProjectAndName(persisted, projectDir, ref.Name)
		if ok {
			if err := ensureHttplibFile(projectDir, ref.Name, existing.Description, existing.Token, port); err != nil {
				return newlyRegistered, fmt.Errorf("discovery: reconcile descriptor for %s: %w", ref.Name, err)
			}
			continue
		}

		libraryPath := filepath.Join(projectDir, ref.Path)
		if abs, err := filepath.Abs(libraryPath); err == nil {
			libraryPath = abs
		}

		lib, err := library.Load(libraryPath)
		if err != nil {
			return newlyRegistered, fmt.Errorf("discovery: load library %s at %s: %w", ref.Name, libraryPath, err)
		}

		token := uuid.NewString()
		projPath := projectDir
		entry := registry.Entry{
			Token:       token,
			ProjectPath: &projPath,
			LibraryPath: libraryPath,
			Name:        ref.Name,
			Description: lib.Description,
		}
		if err := persisted.Upsert(entry); err != nil {
			return newlyRegistered, fmt.Errorf("discovery: persist entry for %s: %w", ref.Name, err)
		}
		runtime.Insert(token, lib)

		if err := ensureHttplibFile(projectDir, ref.Name, lib.Description, token, port); err != nil {
			return newlyRegistered, fmt.Errorf("discovery: write descriptor for %s: %w", ref.Name, err)
		}

		newlyRegistered++
	}

	return newlyRegistered, nil
}

func findByProjectAndName(persisted *registry.Persistent, projectDir, name string) (registry.Entry, bool) {
	for _, e := range persisted.Entries() {
		if e.ProjectPath != nil && *e.ProjectPath == projectDir && e.Name == name {
			return e, true
		}
	}
	return registry.Entry{}, false
}
