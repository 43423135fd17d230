package core

// pipeline.go imports a CSV stream into the store, one row at a time.
//
// Each run moves through parsing → validating → inserting → completed.
// Rows fail independently: a row that does not validate, duplicates an
// existing record or collides with a unique constraint is recorded and the
// run continues with the next row. Only two things stop a run early:
//
//   - the context is cancelled or its deadline passes
//   - the store reports ErrStoreUnavailable
//
// In both cases the partial report is returned with Truncated set, together
// with an error wrapping the cause. Rows already inserted stay inserted.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultProgressInterval is the number of rows between progress callbacks.
const DefaultProgressInterval = 100

// ImportOptions configures one pipeline run.
type ImportOptions struct {
	Reader           ReaderOptions
	DedupeBatch      bool             // Skip rows repeating a natural key seen earlier in the batch
	OnProgress       ProgressCallback // Optional
	ProgressInterval int              // Rows between callbacks (default DefaultProgressInterval)
}

// Pipeline runs bulk imports against a store.
type Pipeline struct {
	store Store
	alloc *Allocator
}

// NewPipeline creates a pipeline that allocates codes with alloc and persists
// rows in store.
func NewPipeline(store Store, alloc *Allocator) *Pipeline {
	return &Pipeline{store: store, alloc: alloc}
}

// run holds the mutable state of one invocation.
type run struct {
	kind      ImportKind
	family    CodeFamily
	hasCode   bool
	codeSpec  ColumnSpec
	keySpec   ColumnSpec
	hasKey    bool
	validator *RowValidator
	seen      map[string]int // natural key → first OriginalRow (DedupeBatch only)
	report    *ImportReport
	log       *slog.Logger
}

// Run imports every row of r as kind. A nil report is returned only when
// the header cannot be read or the options are invalid.
func (p *Pipeline) Run(ctx context.Context, kind ImportKind, r io.Reader, opts ImportOptions) (*ImportReport, error) {
	start := time.Now()
	runID := uuid.New().String()

	ctx, span := tracer.Start(ctx, "import.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("import.kind", kind.Key),
		attribute.String("import.run_id", runID),
	)

	st := &run{
		kind:   kind,
		report: &ImportReport{RunID: runID, Kind: kind.Key},
		log:    slog.With("run_id", runID, "kind", kind.Key),
	}

	if spec, ok := kind.CodeSpec(); ok {
		family, found := Family(kind.Family)
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFamily, kind.Family)
		}
		st.family, st.codeSpec, st.hasCode = family, spec, true
	}
	st.keySpec, st.hasKey = kind.NaturalKeySpec()
	st.validator = NewRowValidator(kind, st.family)
	if opts.DedupeBatch {
		st.seen = make(map[string]int)
	}

	interval := opts.ProgressInterval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	progress := func(phase ImportPhase, row int) {
		if opts.OnProgress == nil {
			return
		}
		opts.OnProgress(ImportProgress{
			RunID:    runID,
			Kind:     kind.Key,
			Phase:    phase,
			Row:      row,
			Inserted: st.report.Inserted,
			Skipped:  st.report.Skipped,
			Errored:  st.report.Errored,
		})
	}

	// Parsing
	progress(PhaseParsing, 0)
	reader, err := NewRowReader(r, opts.Reader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unreadable input")
		st.log.Warn("import rejected", "error", err)
		return nil, err
	}
	st.log.Info("import started", "columns", len(reader.Header()))
	progress(PhaseValidating, 0)

	var stopErr error
	lastRow := 0
	for {
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}

		row, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			stopErr = err
			break
		}
		lastRow = row.OriginalRow

		if row.IsEmpty() {
			continue
		}

		outcome, fatal := p.processRow(ctx, st, row)
		if fatal != nil {
			stopErr = fmt.Errorf("row %d: %w", row.OriginalRow, fatal)
			break
		}
		st.report.add(outcome)

		if st.report.TotalRows%interval == 0 {
			progress(PhaseInserting, row.OriginalRow)
		}
	}

	report := st.report
	report.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("import.total_rows", report.TotalRows),
		attribute.Int("import.inserted", report.Inserted),
		attribute.Int("import.skipped", report.Skipped),
		attribute.Int("import.errored", report.Errored),
	)

	if stopErr != nil {
		report.Truncated = true
		report.StopReason = stopErr.Error()
		span.RecordError(stopErr)
		span.SetStatus(codes.Error, "import truncated")
		st.log.Error("import stopped early",
			"last_row", lastRow,
			"inserted", report.Inserted,
			"skipped", report.Skipped,
			"errored", report.Errored,
			"error", stopErr,
		)
		return report, fmt.Errorf("import %s truncated: %w", kind.Key, stopErr)
	}

	progress(PhaseCompleted, lastRow)
	st.log.Info("import completed",
		"total_rows", report.TotalRows,
		"inserted", report.Inserted,
		"skipped", report.Skipped,
		"errored", report.Errored,
		"duration", report.Duration,
	)
	return report, nil
}

// processRow validates, deduplicates, allocates and inserts one row.
// A non-nil error means the run must stop; the row gets no outcome.
func (p *Pipeline) processRow(ctx context.Context, st *run, row ImportRow) (ImportOutcome, error) {
	out := ImportOutcome{Row: row.OriginalRow}
	if st.hasKey {
		out.NaturalKey = normalizedCell(st.keySpec, row)
	}

	errored := func(msg string) (ImportOutcome, error) {
		out.Status, out.Reason = StatusErrored, msg
		return out, nil
	}
	skipped := func(msg string) (ImportOutcome, error) {
		out.Status, out.Reason = StatusSkipped, msg
		return out, nil
	}

	// Validating
	if verr := st.validator.ValidateRowFirst(row); verr != nil {
		return errored(verr.Message)
	}

	if st.hasKey {
		if first, dup := st.seen[out.NaturalKey]; dup {
			return skipped(fmt.Sprintf("duplicate in batch — first seen at row %d", first))
		}

		_, err := p.store.FindByNaturalKey(ctx, st.kind.Entity.Kind, out.NaturalKey)
		switch {
		case err == nil:
			st.markSeen(out.NaturalKey, row.OriginalRow)
			return skipped(ReasonDuplicate)
		case errors.Is(err, ErrNotFound):
		case isFatal(ctx, err):
			return out, err
		default:
			return errored(fmt.Sprintf("lookup failed: %v", err))
		}
	}

	// Inserting
	rec := BuildRecord(st.kind, row)
	if st.hasCode {
		code := row.Get(st.codeSpec.Name)
		if code == "" {
			next, err := p.alloc.NextCode(ctx, st.family)
			if err != nil {
				if isFatal(ctx, err) {
					return out, err
				}
				return errored(err.Error())
			}
			code = next
		}
		rec.Values[st.codeSpec.DBColumn] = code
		out.Code = code
	}

	saved, err := p.store.Insert(ctx, st.kind.Entity.Kind, rec)
	if err != nil {
		if ce, ok := AsConflict(err); ok {
			return errored("duplicate: " + ce.Field)
		}
		if isFatal(ctx, err) {
			return out, err
		}
		return errored(fmt.Sprintf("insert failed: %v", err))
	}

	if st.hasKey {
		st.markSeen(out.NaturalKey, row.OriginalRow)
	}
	out.Status = StatusInserted
	out.Record = &saved
	return out, nil
}

// markSeen records key once a row proves it exists in the store. Keys of
// rows that failed are left out so a later row can still insert them.
func (st *run) markSeen(key string, row int) {
	if st.seen != nil {
		st.seen[key] = row
	}
}

// isFatal reports whether err should end the whole run rather than one row.
func isFatal(ctx context.Context, err error) bool {
	if errors.Is(err, ErrStoreUnavailable) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return ctx.Err() != nil
}

// normalizedCell returns the cleaned cell for spec with its normalizer applied.
func normalizedCell(spec ColumnSpec, row ImportRow) string {
	v := row.Get(spec.Name)
	if v != "" && spec.Normalizer != nil {
		v = spec.Normalizer(v)
	}
	return v
}
