package library

import (
	"os"
	"path/filepath"
	"testing"
)

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func writeSampleLibrary(t *testing.T, root string) {
	t.Helper()
	mustWrite(t, filepath.Join(root, "library.yaml"), `name: "My Components Library"
templates_path: schemas
component_types:
  - file: data/resistors.csv
    template: resistor
    name: "Resistors"
  - file: data/capacitors.csv
    template: capacitor
    name: "Capacitors"
`)
	mustWrite(t, filepath.Join(root, "schemas", "_base.yaml"), `fields:
  mpn:
    display_name: "MPN"
    required: true
`)
	mustWrite(t, filepath.Join(root, "schemas", "resistor.yaml"), `based_on: _base
fields:
  resistance:
    display_name: "Resistance"
    required: true
`)
	mustWrite(t, filepath.Join(root, "schemas", "capacitor.yaml"), `based_on: _base
fields:
  capacitance:
    display_name: "Capacitance"
    required: true
`)
	mustWrite(t, filepath.Join(root, "data", "resistors.csv"), "id,mpn,value,resistance\nid-1,R1,10K,10000\n")
	mustWrite(t, filepath.Join(root, "data", "capacitors.csv"), "id,mpn,value,capacitance\nid-1,C1,100nF,100e-9\n")
}

func TestLoadManifestAcceptsLegacyAliases(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "library.yaml"), `name: "My Components Library"
schemas_path: schemas
tables:
  - file: data/resistors.csv
    schema: resistor
    name: "Resistors"
`)

	manifest, err := LoadManifest(dir)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if manifest.TemplatesDir != "schemas" {
		t.Errorf("TemplatesDir = %q, want schemas", manifest.TemplatesDir)
	}
	if len(manifest.Tables) != 1 {
		t.Fatalf("len(Tables) = %d, want 1", len(manifest.Tables))
	}
	if manifest.Tables[0].SchemaName != "resistor" {
		t.Errorf("SchemaName = %q, want resistor", manifest.Tables[0].SchemaName)
	}
	if manifest.Tables[0].DisplayName != "Resistors" {
		t.Errorf("DisplayName = %q, want Resistors", manifest.Tables[0].DisplayName)
	}
}

func TestLoadPreservesTableOrder(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeSampleLibrary(t, dir)

	lib, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if lib.Name != "My Components Library" {
		t.Errorf("Name = %q", lib.Name)
	}
	if len(lib.Tables) != 2 {
		t.Fatalf("len(Tables) = %d, want 2", len(lib.Tables))
	}
	if lib.Tables[0].DisplayName != "Resistors" {
		t.Errorf("Tables[0].DisplayName = %q, want Resistors", lib.Tables[0].DisplayName)
	}
	if lib.Tables[1].DisplayName != "Capacitors" {
		t.Errorf("Tables[1].DisplayName = %q, want Capacitors", lib.Tables[1].DisplayName)
	}
	if lib.Tables[0].Schema.Fields.Len() != 2 {
		t.Errorf("Tables[0] resolved field count = %d, want 2", lib.Tables[0].Schema.Fields.Len())
	}
}

func TestLoadSurfacesTableErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "library.yaml"), `name: "Broken"
templates_path: schemas
component_types:
  - file: data/missing.csv
    template: nonexistent
    name: "Missing"
`)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected error for missing schema/csv")
	}
}
