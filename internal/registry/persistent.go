// Package registry implements the persistent, on-disk project registry
// and the concurrent runtime registry of loaded libraries.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Entry is one (token, project, library, name) tuple. If ProjectPath is
// nil the entry is standalone: a library not tied to a project folder.
type Entry struct {
	Token       string  `json:"token"`
	ProjectPath *string `json:"project_path,omitempty"`
	LibraryPath string  `json:"library_path"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

type persistedDoc struct {
	Projects []Entry `json:"projects"`
}

// Persistent is the durable, JSON-backed registry of ProjectEntry tuples.
// All mutation paths acquire the same lock, mutate, and save under it.
type Persistent struct {
	mu      sync.Mutex
	path    string
	entries []Entry
}

// LoadPersistent loads the registry from path. A missing file yields an
// empty registry, not an error.
func LoadPersistent(path string) (*Persistent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Persistent{path: path}, nil
		}
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}

	var doc persistedDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", path, err)
	}
	return &Persistent{path: path, entries: doc.Projects}, nil
}

// Save writes the registry to disk as pretty-printed JSON, creating parent
// directories as needed.
func (p *Persistent) Save() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saveLocked()
}

func (p *Persistent) saveLocked() error {
	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("registry: create dir %s: %w", dir, err)
		}
	}
	doc := persistedDoc{Projects: p.entries}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: marshal: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0644); err != nil {
		return fmt.Errorf("registry: write %s: %w", p.path, err)
	}
	return nil
}

// Upsert adds or replaces an entry, enforcing the uniqueness invariants:
// project-attached entries are unique by (project_path, library_path);
// standalone entries are unique by library_path alone. Any colliding prior
// entry is removed before the new one is appended.
func (p *Persistent) Upsert(entry Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.entries[:0:0]
	for _, e := range p.entries {
		if collides(e, entry) {
			continue
		}
		kept = append(kept, e)
	}
	p.entries = append(kept, entry)
	return p.saveLocked()
}

func collides(existing, candidate Entry) bool {
	if candidate.ProjectPath != nil {
		return existing.ProjectPath != nil &&
			*existing.ProjectPath == *candidate.ProjectPath &&
			existing.LibraryPath == candidate.LibraryPath
	}
	return existing.ProjectPath == nil && existing.LibraryPath == candidate.LibraryPath
}

// RemoveByProjectPath removes every entry attached to the given project.
func (p *Persistent) RemoveByProjectPath(projectPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.entries[:0:0]
	for _, e := range p.entries {
		if e.ProjectPath != nil && *e.ProjectPath == projectPath {
			continue
		}
		kept = append(kept, e)
	}
	p.entries = kept
	return p.saveLocked()
}

// RemoveByLibraryPath removes the standalone entry at libraryPath, if any.
// It never removes project-attached entries.
func (p *Persistent) RemoveByLibraryPath(libraryPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.entries[:0:0]
	for _, e := range p.entries {
		if e.ProjectPath == nil && e.LibraryPath == libraryPath {
			continue
		}
		kept = append(kept, e)
	}
	p.entries = kept
	return p.saveLocked()
}

// FindByToken returns the entry for a token, if registered.
func (p *Persistent) FindByToken(token string) (Entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.entries {
		if e.Token == token {
			return e, true
		}
	}
	return Entry{}, false
}

// Entries returns a snapshot of every registered entry.
func (p *Persistent) Entries() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Entry(nil), p.entries...)
}
