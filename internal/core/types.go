// Package core provides code allocation and bulk import for the inventory backend.
// This package has no transport dependencies and can be used by any frontend.
package core

import "strings"

// ColumnType represents the expected data type for a CSV column.
type ColumnType int

const (
	ColumnText ColumnType = iota
	ColumnNumeric
	ColumnDate
	ColumnCode
)

// String returns the lowercase type name used in API responses.
func (t ColumnType) String() string {
	switch t {
	case ColumnNumeric:
		return "numeric"
	case ColumnDate:
		return "date"
	case ColumnCode:
		return "code"
	default:
		return "text"
	}
}

// ColumnSpec defines how one CSV column is validated and stored.
type ColumnSpec struct {
	Name       string              // Column header name (matched case-sensitively)
	DBColumn   string              // Database column name (defaults to Name)
	Type       ColumnType          // Expected data type
	Required   bool                // Value must be present and non-empty
	Normalizer func(string) string // Optional transformation applied to text values
}

// RowSchema is the declarative validation table of an import kind.
type RowSchema []ColumnSpec

// ByDBColumn returns the spec stored in column.
func (s RowSchema) ByDBColumn(column string) (ColumnSpec, bool) {
	for _, spec := range s {
		if spec.DBColumn == column {
			return spec, true
		}
	}
	return ColumnSpec{}, false
}

// Headers returns the expected CSV header names in schema order.
func (s RowSchema) Headers() []string {
	out := make([]string, len(s))
	for i, spec := range s {
		out[i] = spec.Name
	}
	return out
}

// ImportKind contains everything needed to import one entity type.
type ImportKind struct {
	Key     string    // Unique identifier: "equipment"
	Label   string    // Display name: "Equipment"
	Entity  EntityDef // Target table mapping
	Family  string    // Code family name ("" if the kind has no generated code)
	Columns RowSchema // Columns in template order
}

// CodeSpec returns the column carrying the generated code.
func (k ImportKind) CodeSpec() (ColumnSpec, bool) {
	if k.Family == "" {
		return ColumnSpec{}, false
	}
	return k.Columns.ByDBColumn(k.Entity.CodeColumn)
}

// NaturalKeySpec returns the column holding the natural key.
func (k ImportKind) NaturalKeySpec() (ColumnSpec, bool) {
	if k.Entity.NaturalKeyColumn == "" {
		return ColumnSpec{}, false
	}
	return k.Columns.ByDBColumn(k.Entity.NaturalKeyColumn)
}

// ImportRow is one data row of an import, keyed by header name.
type ImportRow struct {
	OriginalRow int               // 1-based data row position, header excluded
	Values      map[string]string // Raw cell values by header name
}

// Get returns the cleaned value of column, or "" if absent.
func (r ImportRow) Get(column string) string {
	return CleanCell(r.Values[column])
}

// IsEmpty reports whether every cell of the row is blank.
func (r ImportRow) IsEmpty() bool {
	for _, v := range r.Values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ImportPhase indicates the current stage of an import run.
type ImportPhase string

const (
	PhaseParsing    ImportPhase = "parsing"
	PhaseValidating ImportPhase = "validating"
	PhaseInserting  ImportPhase = "inserting"
	PhaseCompleted  ImportPhase = "completed"
)

// ImportProgress represents the current state of an import run.
type ImportProgress struct {
	RunID    string
	Kind     string
	Phase    ImportPhase
	Row      int // Last OriginalRow processed
	Inserted int
	Skipped  int
	Errored  int
}

// ProgressCallback is called periodically during an import run.
type ProgressCallback func(ImportProgress)
