package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// DefaultImportTimeout is the maximum duration of one import run.
const DefaultImportTimeout = 10 * time.Minute

// ServiceConfig holds the tunables of a Service. Zero values select defaults.
type ServiceConfig struct {
	MaxConcurrentImports int
	MaxWaitTime          time.Duration
	ImportTimeout        time.Duration
	MaxAttempts          int  // Inserts tried per single-entity create
	DedupeBatch          bool // Default for ImportOptions.DedupeBatch
	ProgressInterval     int
}

// Service is the entry point used by transports: imports, single-entity
// creation and code lookups over one store.
type Service struct {
	store    Store
	alloc    *Allocator
	pipeline *Pipeline
	limiter  *ImportLimiter
	cfg      ServiceConfig
}

// NewService creates a Service backed by store.
func NewService(store Store, cfg ServiceConfig) *Service {
	if cfg.ImportTimeout <= 0 {
		cfg.ImportTimeout = DefaultImportTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}

	alloc := NewAllocator(store)
	return &Service{
		store:    store,
		alloc:    alloc,
		pipeline: NewPipeline(store, alloc),
		limiter:  NewImportLimiter(cfg.MaxConcurrentImports, cfg.MaxWaitTime),
		cfg:      cfg,
	}
}

// DefaultImportOptions returns the options an import uses when the caller
// does not override them.
func (s *Service) DefaultImportOptions() ImportOptions {
	return ImportOptions{
		DedupeBatch:      s.cfg.DedupeBatch,
		ProgressInterval: s.cfg.ProgressInterval,
	}
}

// Import runs the bulk import pipeline for kindKey over r.
//
// Returns ErrUnknownKind for an unregistered kind and ErrTooManyImports when
// no import slot frees up in time. The run is bounded by the configured
// import timeout; see Pipeline.Run for the report/error contract.
func (s *Service) Import(ctx context.Context, kindKey string, r io.Reader, opts ImportOptions) (*ImportReport, error) {
	kind, ok := Get(kindKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kindKey)
	}

	release, err := s.limiter.Acquire(ctx, kind.Key)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ImportTimeout)
	defer cancel()

	return s.pipeline.Run(ctx, kind, r, opts)
}

// Create validates fields against kindKey's schema and inserts one record.
//
// A well-formed caller-supplied code is stored as-is; otherwise the next
// code is allocated, retrying once per the configured attempts if a
// concurrent caller takes it first. Validation failures are returned as
// ValidationErrors, duplicates wrap ErrDuplicate.
func (s *Service) Create(ctx context.Context, kindKey string, fields map[string]string) (Record, error) {
	kind, ok := Get(kindKey)
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrUnknownKind, kindKey)
	}

	var family CodeFamily
	if kind.Family != "" {
		if family, ok = Family(kind.Family); !ok {
			return Record{}, fmt.Errorf("%w: %s", ErrUnknownFamily, kind.Family)
		}
	}

	row := ImportRow{OriginalRow: 1, Values: fields}
	if errs := NewRowValidator(kind, family).ValidateRow(row); len(errs) > 0 {
		return Record{}, errs
	}

	if spec, ok := kind.NaturalKeySpec(); ok {
		key := normalizedCell(spec, row)
		_, err := s.store.FindByNaturalKey(ctx, kind.Entity.Kind, key)
		switch {
		case err == nil:
			return Record{}, fmt.Errorf("%w: %s = %q", ErrDuplicate, spec.Name, key)
		case !errors.Is(err, ErrNotFound):
			return Record{}, fmt.Errorf("lookup %s: %w", kind.Key, err)
		}
	}

	base := BuildRecord(kind, row)
	codeSpec, hasCode := kind.CodeSpec()
	supplied := ""
	if hasCode {
		supplied = row.Get(codeSpec.Name)
	}

	var (
		rec Record
		err error
	)
	switch {
	case !hasCode:
		rec, err = s.store.Insert(ctx, kind.Entity.Kind, base)
	case supplied != "":
		base.Values[codeSpec.DBColumn] = supplied
		rec, err = s.store.Insert(ctx, kind.Entity.Kind, base)
	default:
		build := func(code string) Record {
			values := make(map[string]any, len(base.Values)+1)
			for k, v := range base.Values {
				values[k] = v
			}
			values[codeSpec.DBColumn] = code
			return Record{Kind: base.Kind, Values: values}
		}
		rec, err = CreateWithCode(ctx, s.alloc, s.store, family, build, s.cfg.MaxAttempts)
	}

	if err != nil {
		if ce, ok := AsConflict(err); ok {
			return Record{}, fmt.Errorf("%w: %s", ErrDuplicate, ce.Error())
		}
		return Record{}, err
	}

	slog.InfoContext(ctx, "record created",
		"kind", kind.Key,
		"id", rec.ID,
		"code", rec.String(kind.Entity.CodeColumn),
	)
	return rec, nil
}

// NextCode previews the code the next allocation of familyName would return.
// Nothing is reserved.
func (s *Service) NextCode(ctx context.Context, familyName string) (string, error) {
	family, ok := Family(familyName)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownFamily, familyName)
	}
	return s.alloc.NextCode(ctx, family)
}

// ValidateCode reports whether code is well-formed for familyName.
func (s *Service) ValidateCode(familyName, code string) (bool, error) {
	family, ok := Family(familyName)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownFamily, familyName)
	}
	return IsValidCode(family, code), nil
}

// Kinds returns every registered import kind.
func (s *Service) Kinds() []ImportKind {
	return All()
}

// Families returns every registered code family.
func (s *Service) Families() []CodeFamily {
	return Families()
}

// WaitForImports blocks until running imports finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// LimiterStatus returns the import limiter's current state.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}
