package core

// validation.go checks import rows against their kind's RowSchema before
// anything touches the store.
//
// Validation is per row and independent of other rows. A row can fail for
// two reasons:
//  1. A required column is absent from the header or empty in the row
//  2. A caller-supplied code does not match the kind's code family
//
// ValidateRow returns every problem (used by the create endpoint to report
// all field errors at once); ValidateRowFirst stops at the first one, which
// is all the import pipeline records.

import (
	"fmt"
	"strings"
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Column name
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	return e.Message
}

// ValidationErrors collects every problem found in one row.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// RequiredMessage is the message recorded for an empty required column.
func RequiredMessage(column string) string {
	return fmt.Sprintf("%s es obligatorio", column)
}

// RowValidator validates rows against one import kind.
type RowValidator struct {
	kind   ImportKind
	family CodeFamily
}

// NewRowValidator creates a validator for kind. family is ignored when the
// kind has no code column.
func NewRowValidator(kind ImportKind, family CodeFamily) *RowValidator {
	return &RowValidator{kind: kind, family: family}
}

// ValidateRow validates a row and returns all validation errors.
func (v *RowValidator) ValidateRow(row ImportRow) ValidationErrors {
	var errs ValidationErrors
	for _, spec := range v.kind.Columns {
		if err := v.checkColumn(row, spec); err != nil {
			errs = append(errs, *err)
		}
	}
	return errs
}

// ValidateRowFirst validates a row and returns the first error only.
func (v *RowValidator) ValidateRowFirst(row ImportRow) *ValidationError {
	for _, spec := range v.kind.Columns {
		if err := v.checkColumn(row, spec); err != nil {
			return err
		}
	}
	return nil
}

func (v *RowValidator) checkColumn(row ImportRow, spec ColumnSpec) *ValidationError {
	raw := row.Get(spec.Name)

	// A value that normalizes to nothing ("--" as an identifier) is empty.
	if raw == "" || strings.TrimSpace(normalizedCell(spec, row)) == "" {
		if spec.Required {
			return &ValidationError{Field: spec.Name, Message: RequiredMessage(spec.Name)}
		}
		return nil
	}

	if spec.Type == ColumnCode && v.family.Classify(raw) == CodeInvalid {
		return &ValidationError{
			Field:   spec.Name,
			Value:   raw,
			Message: fmt.Sprintf("%s has invalid format: %q", spec.Name, raw),
		}
	}
	return nil
}
