package core

import (
	"context"
	"errors"
	"fmt"
)

// EntityKind names a persisted entity type: "equipment", "companies".
type EntityKind string

// EntityDef describes how an entity kind maps onto a store table.
type EntityDef struct {
	Kind             EntityKind
	Table            string
	CodeColumn       string // Column holding the generated code ("" if none)
	NaturalKeyColumn string // Business-unique column used for duplicate detection ("" if none)
}

// Record is one persisted entity row. Values are keyed by database column.
type Record struct {
	Kind   EntityKind     `json:"kind"`
	ID     int64          `json:"id,omitempty"`
	Values map[string]any `json:"values"`
}

// String returns the value of column as a string, or "" if unset.
func (r Record) String(column string) string {
	if r.Values == nil || column == "" {
		return ""
	}
	switch v := r.Values[column].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Store is the persistence collaborator used by the allocator and the import
// pipeline. Implementations must make Insert atomic per row and report unique
// constraint violations as *ConflictError, distinct from every other failure.
type Store interface {
	// FindByPrefix returns every code in kind's code column starting with prefix.
	FindByPrefix(ctx context.Context, kind EntityKind, prefix string) ([]string, error)

	// FindByNaturalKey returns the record whose natural key equals key,
	// or ErrNotFound.
	FindByNaturalKey(ctx context.Context, kind EntityKind, key string) (Record, error)

	// Insert persists rec and returns it with its ID set.
	Insert(ctx context.Context, kind EntityKind, rec Record) (Record, error)
}

var (
	// ErrNotFound is returned by FindByNaturalKey when no record matches.
	ErrNotFound = errors.New("record not found")

	// ErrStoreUnavailable marks connectivity failures. These abort a whole
	// operation instead of being recorded against a single row.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ConflictError reports a unique constraint violation on Field.
type ConflictError struct {
	Kind  EntityKind
	Field string
	Value string
	Err   error
}

func (e *ConflictError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("duplicate key: %s.%s = %q", e.Kind, e.Field, e.Value)
	}
	return fmt.Sprintf("duplicate key: %s.%s", e.Kind, e.Field)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// AsConflict unwraps err into a *ConflictError.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
