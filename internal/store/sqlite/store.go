// Package sqlite implements core.Store on an embedded SQLite database.
// It backs local runs and integration tests.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/JonMunkholm/inventory/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// Store persists entities in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// embedded schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks that the database is usable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.sqlDB.PingContext(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// FindByPrefix returns every code in kind's code column starting with prefix.
// The comparison is case-sensitive, unlike SQLite's LIKE.
func (s *Store) FindByPrefix(ctx context.Context, kind core.EntityKind, prefix string) ([]string, error) {
	def, err := entity(kind)
	if err != nil {
		return nil, err
	}
	if def.CodeColumn == "" {
		return nil, fmt.Errorf("entity %s has no code column", kind)
	}

	col := quoteIdent(def.CodeColumn)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE substr(%s, 1, ?) = ?", col, quoteIdent(def.Table), col)

	rows, err := s.sqlDB.QueryContext(ctx, query, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("scan %s codes: %w", kind, classify(err))
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan %s codes: %w", kind, classify(err))
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan %s codes: %w", kind, classify(err))
	}
	return codes, nil
}

// FindByNaturalKey returns the record whose natural key equals key.
func (s *Store) FindByNaturalKey(ctx context.Context, kind core.EntityKind, key string) (core.Record, error) {
	def, err := entity(kind)
	if err != nil {
		return core.Record{}, err
	}
	if def.NaturalKeyColumn == "" {
		return core.Record{}, core.ErrNotFound
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ? LIMIT 1",
		quoteIdent(def.Table), quoteIdent(def.NaturalKeyColumn))

	rows, err := s.sqlDB.QueryContext(ctx, query, key)
	if err != nil {
		return core.Record{}, fmt.Errorf("find %s: %w", kind, classify(err))
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return core.Record{}, fmt.Errorf("find %s: %w", kind, classify(err))
		}
		return core.Record{}, core.ErrNotFound
	}

	values, err := scanMap(rows)
	if err != nil {
		return core.Record{}, fmt.Errorf("find %s: %w", kind, classify(err))
	}

	rec := core.Record{Kind: kind, Values: values}
	if id, ok := values["id"].(int64); ok {
		rec.ID = id
		delete(values, "id")
	}
	return rec, nil
}

// Insert persists rec as one row and returns it with its ID set.
func (s *Store) Insert(ctx context.Context, kind core.EntityKind, rec core.Record) (core.Record, error) {
	def, err := entity(kind)
	if err != nil {
		return core.Record{}, err
	}

	cols := make([]string, 0, len(rec.Values))
	for c := range rec.Values {
		cols = append(cols, c)
	}
	if len(cols) == 0 {
		return core.Record{}, fmt.Errorf("insert %s: no values", kind)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		args[i] = rec.Values[c]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(def.Table), strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))

	res, err := s.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		if ce := conflict(kind, err); ce != nil {
			return core.Record{}, ce
		}
		return core.Record{}, fmt.Errorf("insert %s: %w", kind, classify(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Record{}, fmt.Errorf("insert %s: read id: %w", kind, err)
	}

	rec.Kind = kind
	rec.ID = id
	return rec, nil
}

func entity(kind core.EntityKind) (core.EntityDef, error) {
	def, ok := core.Entity(kind)
	if !ok {
		return core.EntityDef{}, fmt.Errorf("unknown entity kind %q", kind)
	}
	return def, nil
}

func scanMap(rows *sql.Rows) (map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(cols))
	for i, c := range cols {
		if b, ok := vals[i].([]byte); ok {
			out[c] = string(b)
			continue
		}
		out[c] = vals[i]
	}
	return out, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// conflict converts a unique violation into a *core.ConflictError, or
// returns nil for any other error.
func conflict(kind core.EntityKind, err error) *core.ConflictError {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return nil
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
	default:
		return nil
	}
	return &core.ConflictError{Kind: kind, Field: uniqueField(err.Error()), Err: err}
}

// uniqueField extracts the column from SQLite's message:
//
//	UNIQUE constraint failed: companies.tax_id
func uniqueField(msg string) string {
	const marker = "UNIQUE constraint failed: "
	i := strings.Index(msg, marker)
	if i < 0 {
		return ""
	}
	rest := msg[i+len(marker):]
	if end := strings.IndexAny(rest, ", ("); end >= 0 {
		rest = rest[:end]
	}
	if _, col, ok := strings.Cut(rest, "."); ok {
		return col
	}
	return rest
}

// classify wraps failures that make the database unusable with
// core.ErrStoreUnavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isUnavailable(err) {
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	return err
}

func isUnavailable(err error) bool {
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED, sqlite3lib.SQLITE_IOERR,
			sqlite3lib.SQLITE_CANTOPEN, sqlite3lib.SQLITE_FULL, sqlite3lib.SQLITE_NOTADB:
			return true
		}
	}

	return strings.Contains(err.Error(), "database is closed")
}
