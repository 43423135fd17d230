// Package postgres implements core.Store on PostgreSQL using a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/inventory/internal/core"
)

// SQLSTATE codes the store distinguishes.
const (
	uniqueViolation = "23505"
)

// PoolOptions configures the connection pool.
type PoolOptions struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store persists entities in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL string, opts PoolOptions) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// FindByPrefix returns every code in kind's code column starting with prefix.
func (s *Store) FindByPrefix(ctx context.Context, kind core.EntityKind, prefix string) ([]string, error) {
	def, err := entity(kind)
	if err != nil {
		return nil, err
	}
	if def.CodeColumn == "" {
		return nil, fmt.Errorf("entity %s has no code column", kind)
	}

	col := quoteIdent(def.CodeColumn)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s LIKE $1", col, quoteIdent(def.Table), col)

	rows, err := s.pool.Query(ctx, query, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("scan %s codes: %w", kind, classify(err))
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
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

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $1 LIMIT 1",
		quoteIdent(def.Table), quoteIdent(def.NaturalKeyColumn))

	rows, err := s.pool.Query(ctx, query, key)
	if err != nil {
		return core.Record{}, fmt.Errorf("find %s: %w", kind, classify(err))
	}
	values, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Record{}, core.ErrNotFound
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("find %s: %w", kind, classify(err))
	}

	return toRecord(kind, values), nil
}

// Insert persists rec as one row and returns it with its ID set.
func (s *Store) Insert(ctx context.Context, kind core.EntityKind, rec core.Record) (core.Record, error) {
	def, err := entity(kind)
	if err != nil {
		return core.Record{}, err
	}

	cols := sortedColumns(rec.Values)
	if len(cols) == 0 {
		return core.Record{}, fmt.Errorf("insert %s: no values", kind)
	}

	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = rec.Values[c]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		quoteIdent(def.Table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	var id int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if ce := conflict(kind, def.Table, err); ce != nil {
			return core.Record{}, ce
		}
		return core.Record{}, fmt.Errorf("insert %s: %w", kind, classify(err))
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

func toRecord(kind core.EntityKind, values map[string]any) core.Record {
	rec := core.Record{Kind: kind, Values: values}
	if id, ok := values["id"].(int64); ok {
		rec.ID = id
		delete(values, "id")
	}
	return rec
}

func sortedColumns(values map[string]any) []string {
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefix turns a literal prefix into a LIKE pattern.
func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}

// conflict converts a unique violation into a *core.ConflictError, or
// returns nil for any other error.
func conflict(kind core.EntityKind, table string, err error) *core.ConflictError {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}

	field, value := parseKeyDetail(pgErr.Detail)
	if f := constraintField(table, pgErr.ConstraintName); f != "" {
		field = f
	}
	return &core.ConflictError{Kind: kind, Field: field, Value: value, Err: err}
}

// constraintField extracts the column from a "<table>_<column>_key" name.
func constraintField(table, constraint string) string {
	rest, ok := strings.CutPrefix(constraint, table+"_")
	if !ok {
		return ""
	}
	field, ok := strings.CutSuffix(rest, "_key")
	if !ok {
		return ""
	}
	return field
}

// parseKeyDetail reads column and value from a unique violation detail:
//
//	Key (serial_number)=(SN-1) already exists.
func parseKeyDetail(detail string) (field, value string) {
	rest, ok := strings.CutPrefix(detail, "Key (")
	if !ok {
		return "", ""
	}
	field, rest, ok = strings.Cut(rest, ")=(")
	if !ok {
		return "", ""
	}
	value, _, _ = strings.Cut(rest, ") already exists")
	return field, value
}

// classify wraps connectivity failures with core.ErrStoreUnavailable.
// Context errors are left as they are.
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
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception; 57P01-57P03: server shutting down.
		return strings.HasPrefix(pgErr.Code, "08") ||
			pgErr.Code == "57P01" || pgErr.Code == "57P02" || pgErr.Code == "57P03"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if pgconn.Timeout(err) {
		return true
	}

	return strings.Contains(err.Error(), "closed pool")
}
