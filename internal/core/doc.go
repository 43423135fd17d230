// Package core provides code allocation and bulk import for the inventory backend.
//
// This package holds the domain logic independent of any transport or
// database driver. Web handlers, the server binary and tests all drive it
// through [Service]; storage is reached only through the [Store] interface.
//
// # Code Families
//
// A [CodeFamily] describes one sequence of human-readable codes: a literal
// prefix followed by a fixed number of symbols from an alphabet. Families
// are registered at init time with [RegisterFamily]. [IsValidCode] checks a
// candidate against a family; [Allocator.NextCode] scans the store and
// returns the successor of the highest code it finds.
//
// Allocation is not serialized. Two callers may compute the same code; the
// store's unique constraint rejects the second insert and [CreateWithCode]
// retries it with a fresh scan. Codes therefore increase monotonically but
// may have gaps.
//
// # Import Kinds
//
// Each importable entity is an [ImportKind] registered with [Register]:
//
//	core.Register(core.ImportKind{
//	    Key:    "companies",
//	    Entity: core.EntityDef{Kind: "companies", Table: "companies", CodeColumn: "code", NaturalKeyColumn: "tax_id"},
//	    Family: "company",
//	    Columns: core.RowSchema{
//	        {Name: "code", Type: core.ColumnCode},
//	        {Name: "name", Type: core.ColumnText, Required: true},
//	        {Name: "tax_id", Type: core.ColumnText, Required: true},
//	    },
//	})
//
// # Bulk Import
//
// [Pipeline.Run] reads a CSV stream row by row through a [RowReader] and,
// for each row, validates it, checks the natural key against the store,
// allocates a code when none was supplied and inserts it. Every row ends as
// inserted, skipped or errored in the [ImportReport]; failures never stop
// the run except for cancellation and [ErrStoreUnavailable].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each category has a code for support reference:
//
//   - DB001-DB006: store errors (duplicates, connectivity)
//   - VAL003-VAL007: validation errors
//   - SEQ001: exhausted code sequence
//   - FILE001-FILE005: file errors (size, format, encoding)
//   - IMP002-IMP005: import errors (busy, cancelled, timeout)
package core
