// Package partindex builds a disposable, in-memory acceleration index over
// a loaded library so the HTTP surface can look up a part by id in O(1)
// instead of scanning every table on every request. It carries no
// durable state and is rebuilt whenever a library is (re)loaded.
package partindex

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kicodex/kicodexd/internal/csvstore"
	"github.com/kicodex/kicodexd/internal/library"
)

// Index accelerates part-by-id lookup over a Library. Table order is kept
// as a sort key so "first match wins" (see library.Library.Tables order)
// is unaffected by indexing.
type Index struct {
	db     *sql.DB
	lib    *library.Library
	tables [][]*csvstore.Row // tables[tableIdx][rowIdx], mirrors lib.Tables
}

// Build constructs an in-memory SQLite index over lib. The caller owns
// the returned Index and must call Close when the library is replaced.
func Build(lib *library.Library) (*Index, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("partindex: open in-memory db: %w", err)
	}
	// A plain :memory: database is private to one connection; cap the pool
	// at one so every query in this Index sees the same data.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE parts (
		id TEXT NOT NULL,
		table_idx INTEGER NOT NULL,
		row_idx INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("partindex: create schema: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX idx_parts_id ON parts(id)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("partindex: create index: %w", err)
	}

	idx := &Index{db: db, lib: lib, tables: make([][]*csvstore.Row, len(lib.Tables))}

	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("partindex: begin tx: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO parts (id, table_idx, row_idx) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		db.Close()
		return nil, fmt.Errorf("partindex: prepare insert: %w", err)
	}

	for tableIdx, table := range lib.Tables {
		idx.tables[tableIdx] = table.Rows
		for rowIdx, row := range table.Rows {
			id, _ := row.Get("id")
			if _, err := stmt.Exec(id, tableIdx, rowIdx); err != nil {
				stmt.Close()
				tx.Rollback()
				db.Close()
				return nil, fmt.Errorf("partindex: insert row: %w", err)
			}
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		db.Close()
		return nil, fmt.Errorf("partindex: commit: %w", err)
	}

	return idx, nil
}

// PartByID returns the first table (in table order) containing a row with
// the given id, along with that row.
func (idx *Index) PartByID(id string) (tableIdx int, row *csvstore.Row, ok bool) {
	var t, r int
	err := idx.db.QueryRow(
		`SELECT table_idx, row_idx FROM parts WHERE id = ? ORDER BY table_idx ASC LIMIT 1`, id,
	).Scan(&t, &r)
	if err != nil {
		return 0, nil, false
	}
	return t, idx.tables[t][r], true
}

// CategoryCount returns the number of tables (categories) in the library.
func (idx *Index) CategoryCount() int {
	return len(idx.lib.Tables)
}

// Close releases the in-memory database backing the index.
func (idx *Index) Close() error {
	return idx.db.Close()
}
