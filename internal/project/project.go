// Package project parses a KiCad-compatible project's kicodex.yaml
// manifest, which lists the libraries that project owns.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LibraryRef is one entry in a project manifest's library list.
type LibraryRef struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"` // relative to the project directory
}

// Manifest is the parsed contents of kicodex.yaml.
type Manifest struct {
	Libraries []LibraryRef `yaml:"libraries"`
}

// ManifestFileName is the project manifest's fixed file name.
const ManifestFileName = "kicodex.yaml"

// LoadManifest reads kicodex.yaml at the given project directory root.
func LoadManifest(projectDir string) (*Manifest, error) {
	path := filepath.Join(projectDir, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("project: read %s: %w", path, err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("project: parse %s: %w", path, err)
	}
	return &manifest, nil
}

// HasManifest reports whether dir contains a kicodex.yaml file, without
// parsing it. A scanned directory lacking one simply isn't a project.
func HasManifest(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ManifestFileName))
	return err == nil
}
