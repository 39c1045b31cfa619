// Package httpapi implements the four read-only HTTP endpoints the EDA
// tool speaks, the auth middleware that routes requests by bearer token,
// and the response mapper that turns CSV rows into wire responses.
package httpapi

import (
	"strconv"
	"strings"

	"github.com/kicodex/kicodexd/internal/csvstore"
	"github.com/kicodex/kicodexd/internal/library"
	"github.com/kicodex/kicodexd/internal/schema"
)

// RootResponse is the handshake stub the EDA tool expects from GET /v1/.
type RootResponse struct {
	Categories string `json:"categories"`
	Parts      string `json:"parts"`
}

// Category describes one table on the wire.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PartSummary is a row's shape within a category listing.
type PartSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PartDetail is a single part's full response shape.
type PartDetail struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	SymbolIDStr      string     `json:"symbolIdStr"`
	ExcludeFromBOM   string     `json:"exclude_from_bom"`
	ExcludeFromBoard string     `json:"exclude_from_board"`
	ExcludeFromSim   string     `json:"exclude_from_sim"`
	Fields           *FieldsMap `json:"fields"`
}

// topLevelColumns are excluded from a part detail's fields object because
// they already appear as named top-level response fields.
var topLevelColumns = map[string]bool{
	"id":                 true,
	"symbol":             true,
	"exclude_from_bom":   true,
	"exclude_from_board": true,
	"exclude_from_sim":   true,
}

// alwaysVisibleColumns are shown on the schematic regardless of their
// FieldDescriptor's Visible setting.
var alwaysVisibleColumns = map[string]bool{
	"value":     true,
	"reference": true,
}

// Categories builds the categories.json response for a library.
func Categories(lib *library.Library) []Category {
	categories := make([]Category, len(lib.Tables))
	for i, table := range lib.Tables {
		categories[i] = Category{
			ID:          categoryIDFor(i),
			Name:        table.DisplayName,
			Description: "",
		}
	}
	return categories
}

func categoryIDFor(tableIdx int) string {
	return strconv.Itoa(tableIdx + 1)
}

// PartSummaries builds the part-summary list for one table.
func PartSummaries(table *library.Table) []PartSummary {
	summaries := make([]PartSummary, len(table.Rows))
	for i, row := range table.Rows {
		summaries[i] = PartSummary{
			ID:          row.GetOr("id"),
			Name:        partName(row),
			Description: row.GetOr("description"),
		}
	}
	return summaries
}

func partName(row *csvstore.Row) string {
	if mpn, ok := row.Get("mpn"); ok && mpn != "" {
		return mpn
	}
	return row.GetOr("value")
}

// PartDetailFor builds the full detail response for one row, using its
// table's resolved schema to determine field display names, visibility,
// and default exclusion-flag values.
func PartDetailFor(row *csvstore.Row, sch *schema.ResolvedSchema) PartDetail {
	fields := NewFieldsMap()
	for _, col := range row.Keys() {
		if topLevelColumns[col] {
			continue
		}
		value := row.GetOr(col)
		fields.Set(displayNameFor(col, sch), FieldValue{
			Value:   value,
			Visible: visibilityFor(col, sch),
		})
	}

	return PartDetail{
		ID:               row.GetOr("id"),
		Name:             partName(row),
		SymbolIDStr:      row.GetOr("symbol"),
		ExcludeFromBOM:   exclusionFlag(row, "exclude_from_bom", sch.ExcludeFromBOM),
		ExcludeFromBoard: exclusionFlag(row, "exclude_from_board", sch.ExcludeFromBoard),
		ExcludeFromSim:   exclusionFlag(row, "exclude_from_sim", sch.ExcludeFromSim),
		Fields:           fields,
	}
}

func displayNameFor(column string, sch *schema.ResolvedSchema) string {
	if desc, ok := sch.Fields.Get(column); ok {
		return desc.DisplayName
	}
	return column
}

// visibilityFor returns nil when a field should be shown on the schematic,
// or a pointer to "False" when it should be hidden. value and reference
// are visible by default; every other field is hidden unless its
// FieldDescriptor explicitly sets visible: true.
func visibilityFor(column string, sch *schema.ResolvedSchema) *string {
	if alwaysVisibleColumns[column] {
		return nil
	}
	if desc, ok := sch.Fields.Get(column); ok && desc.Visible {
		return nil
	}
	hidden := "False"
	return &hidden
}

// exclusionFlag normalizes a CSV column's truthy value when present and
// non-empty, else falls back to the resolved schema's boolean.
func exclusionFlag(row *csvstore.Row, column string, schemaValue bool) string {
	if v, ok := row.Get(column); ok && v != "" {
		return boolString(isTruthy(v))
	}
	return boolString(schemaValue)
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func boolString(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
