package library

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/kicodex/kicodexd/internal/csvstore"
	"github.com/kicodex/kicodexd/internal/schema"
)

// Table is one CSV file within a library, bound to one resolved schema.
type Table struct {
	DisplayName string
	SchemaKey   string
	Rows        []*csvstore.Row
	Schema      *schema.ResolvedSchema
}

// Library is a fully loaded, immutable in-memory library. The order of
// Tables is significant: tables are addressed by 1-based index on the
// wire, and part lookup scans tables in this order.
type Library struct {
	Name         string
	Description  *string
	TemplatesDir string
	Tables       []*Table
}

// Load reads library.yaml at libraryRoot and loads every table it lists,
// resolving schemas and CSV data concurrently per table. Table order from
// the manifest is preserved in the result regardless of load order.
func Load(libraryRoot string) (*Library, error) {
	manifest, err := LoadManifest(libraryRoot)
	if err != nil {
		return nil, err
	}

	schemasDir := filepath.Join(libraryRoot, manifest.TemplatesDir)
	resolver := schema.NewResolver(schemasDir)

	tables := make([]*Table, len(manifest.Tables))

	g, _ := errgroup.WithContext(context.Background())
	for i, def := range manifest.Tables {
		i, def := i, def
		g.Go(func() error {
			table, err := loadTable(libraryRoot, resolver, def)
			if err != nil {
				return fmt.Errorf("library: table %q (%s): %w", def.DisplayName, def.CSVFile, err)
			}
			tables[i] = table
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Library{
		Name:         manifest.Name,
		Description:  manifest.Description,
		TemplatesDir: schemasDir,
		Tables:       tables,
	}, nil
}

func loadTable(libraryRoot string, resolver *schema.Resolver, def TableDef) (*Table, error) {
	resolved, err := resolver.Resolve(def.SchemaName)
	if err != nil {
		return nil, err
	}

	csvPath := filepath.Join(libraryRoot, def.CSVFile)
	rows, err := csvstore.Load(csvPath)
	if err != nil {
		return nil, err
	}

	return &Table{
		DisplayName: def.DisplayName,
		SchemaKey:   def.SchemaName,
		Rows:        rows,
		Schema:      resolved,
	}, nil
}
