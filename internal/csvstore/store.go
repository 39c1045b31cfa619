package csvstore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// ErrNoHeaders is returned when a CSV file has an empty header row.
var ErrNoHeaders = errors.New("csvstore: file has no headers")

const idColumn = "id"

// Load reads a CSV file and returns its rows, assigning fresh ids to any
// row that is missing one or duplicates an earlier row's id. If any id was
// assigned or replaced, the file is rewritten before Load returns.
func Load(path string) ([]*Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvstore: read %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("csvstore: read header of %s: %w", path, err)
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoHeaders, path)
	}

	hasID := false
	for _, h := range headers {
		if h == idColumn {
			hasID = true
			break
		}
	}

	var rows []*Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvstore: read %s: %w", path, err)
		}
		row := NewRow(headers)
		for i, h := range headers {
			if i < len(record) {
				row.Set(h, record[i])
			} else {
				row.Set(h, "")
			}
		}
		rows = append(rows, row)
	}

	rows, changed := assignIDs(rows, hasID)
	if changed {
		if err := writeCSV(path, rows); err != nil {
			return nil, err
		}
	}

	return rows, nil
}

// assignIDs enforces the unique non-empty id invariant described in the
// component design: the first occurrence of a value keeps it, later
// duplicates and blanks get a fresh opaque id.
func assignIDs(rows []*Row, hasID bool) ([]*Row, bool) {
	changed := false
	seen := make(map[string]bool, len(rows))

	for _, row := range rows {
		if !hasID {
			row.SetFirst(idColumn, uuid.NewString())
			changed = true
			seen[row.GetOr(idColumn)] = true
			continue
		}

		id := row.GetOr(idColumn)
		if id == "" || seen[id] {
			row.Set(idColumn, uuid.NewString())
			changed = true
		}
		seen[row.GetOr(idColumn)] = true
	}

	return rows, changed
}

// writeCSV rewrites rows to path via a sibling temp file and atomic rename.
func writeCSV(path string, rows []*Row) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+".tmp")

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("csvstore: create temp file for %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	var headers []string
	if len(rows) > 0 {
		headers = rows[0].Keys()
	}
	if headers != nil {
		if err := w.Write(headers); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("csvstore: write header for %s: %w", path, err)
		}
	}
	for _, row := range rows {
		record := make([]string, len(headers))
		for i, h := range headers {
			record[i] = row.GetOr(h)
		}
		if err := w.Write(record); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("csvstore: write row for %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("csvstore: flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("csvstore: close temp file for %s: %w", path, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("csvstore: rename into place %s: %w", path, err)
	}

	if info, err := os.Stat(path); err == nil {
		log.Printf("[csvstore] rewrote %s (%s, %d rows)", path, humanize.Bytes(uint64(info.Size())), len(rows))
	}
	return nil
}

// RenameColumn renames a column across every row of path, preserving
// column order, and rewrites the file. Missing file or missing column are
// silent no-ops.
func RenameColumn(path, oldKey, newKey string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	rows, err := Load(path)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		row.Rename(oldKey, newKey)
	}
	return writeCSV(path, rows)
}

// RemoveColumn deletes a column across every row of path and rewrites the
// file. Missing file or missing column are silent no-ops.
func RemoveColumn(path, key string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	rows, err := Load(path)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		row.Delete(key)
	}
	return writeCSV(path, rows)
}
