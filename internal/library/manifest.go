// Package library binds a library.yaml manifest to its schemas and CSV
// tables, producing an in-memory Library.
package library

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// TableDef is one entry in a library manifest's table list.
type TableDef struct {
	DisplayName string
	CSVFile     string
	SchemaName  string
}

// Manifest is the parsed, alias-resolved contents of library.yaml.
type Manifest struct {
	Name         string
	Description  *string
	TemplatesDir string
	Tables       []TableDef
}

type rawComponentType struct {
	Name         string  `yaml:"name"`
	File         string  `yaml:"file"`
	Template     *string `yaml:"template"`
	SchemaLegacy *string `yaml:"schema"`
}

func (r rawComponentType) schemaName() string {
	if r.Template != nil {
		return *r.Template
	}
	if r.SchemaLegacy != nil {
		return *r.SchemaLegacy
	}
	return ""
}

type rawManifest struct {
	Name              string             `yaml:"name"`
	Description       *string            `yaml:"description"`
	TemplatesPath     *string            `yaml:"templates_path"`
	SchemasPathLegacy *string            `yaml:"schemas_path"`
	ComponentTypes    []rawComponentType `yaml:"component_types"`
	TablesLegacy      []rawComponentType `yaml:"tables"`
	PartTablesLegacy  []rawComponentType `yaml:"part_tables"`
}

func (r rawManifest) templatesPath() string {
	if r.TemplatesPath != nil {
		return *r.TemplatesPath
	}
	if r.SchemasPathLegacy != nil {
		return *r.SchemasPathLegacy
	}
	return ""
}

func (r rawManifest) tables() []rawComponentType {
	if len(r.ComponentTypes) > 0 {
		return r.ComponentTypes
	}
	if len(r.TablesLegacy) > 0 {
		return r.TablesLegacy
	}
	return r.PartTablesLegacy
}

// LoadManifest reads and parses library.yaml at the given library root,
// accepting the legacy schemas_path/tables/part_tables/schema aliases.
func LoadManifest(libraryRoot string) (*Manifest, error) {
	path := filepath.Join(libraryRoot, "library.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("library: read %s: %w", path, err)
	}

	var raw rawManifest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("library: parse %s: %w", path, err)
	}

	tables := make([]TableDef, 0, len(raw.tables()))
	for _, t := range raw.tables() {
		tables = append(tables, TableDef{
			DisplayName: t.Name,
			CSVFile:     t.File,
			SchemaName:  t.schemaName(),
		})
	}

	return &Manifest{
		Name:         raw.Name,
		Description:  raw.Description,
		TemplatesDir: raw.templatesPath(),
		Tables:       tables,
	}, nil
}
