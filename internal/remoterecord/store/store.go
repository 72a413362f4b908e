// Package store persists local records that point at remote records and
// finds them by remote id with one indexed query.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/conduit-lang/remoterecord/internal/remoterecord/config"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/reference"
)

// Dialect selects SQL syntax and driver
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DefaultTable is the table records are kept in
const DefaultTable = "remote_records"

// Driver returns the database/sql driver name for the dialect
func (d Dialect) Driver() (string, error) {
	switch d {
	case DialectPostgres:
		return "pgx", nil
	case DialectSQLite:
		return "sqlite3", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDialect, string(d))
}

// Open opens a database for the dialect
func Open(dialect Dialect, dsn string) (*sql.DB, error) {
	driver, err := dialect.Driver()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}
	return db, nil
}

// SQLStore keeps records of one kind in a SQL table
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	kind    string
	table   string
	column  string
	logger  *zap.Logger
}

// Option configures an SQLStore
type Option func(*SQLStore)

// WithTable overrides the table name
func WithTable(name string) Option {
	return func(s *SQLStore) { s.table = name }
}

// WithRemoteIDColumn overrides the column holding the remote id. Records
// expose the remote id under the same field name.
func WithRemoteIDColumn(name string) Option {
	return func(s *SQLStore) { s.column = name }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *SQLStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a store for records of kind
func New(db *sql.DB, dialect Dialect, kind string, opts ...Option) (*SQLStore, error) {
	if _, err := dialect.Driver(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(kind) == "" {
		return nil, fmt.Errorf("record kind cannot be empty")
	}

	s := &SQLStore{
		db:      db,
		dialect: dialect,
		kind:    kind,
		table:   DefaultTable,
		column:  config.DefaultIDField,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Kind returns the record kind the store serves
func (s *SQLStore) Kind() string {
	return s.kind
}

// RemoteIDColumn returns the column, and entity field, holding remote ids
func (s *SQLStore) RemoteIDColumn() string {
	return s.column
}

// Migrate creates the table and its (kind, remote id) unique index
func (s *SQLStore) Migrate(ctx context.Context) error {
	idType, tsType := "TEXT", "TIMESTAMP"
	if s.dialect == DialectPostgres {
		idType, tsType = "UUID", "TIMESTAMPTZ"
	}

	table := pq.QuoteIdentifier(s.table)
	column := pq.QuoteIdentifier(s.column)
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s PRIMARY KEY,
	kind TEXT NOT NULL,
	%s TEXT NOT NULL,
	created_at %s NOT NULL,
	updated_at %s NOT NULL
)`, table, idType, column, tsType, tsType),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (kind, %s)`,
			pq.QuoteIdentifier("idx_"+s.table+"_kind_"+s.column), table, column),
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", s.table, ConvertDBError(err))
		}
	}
	return nil
}

// All returns every record of the store's kind, oldest first
func (s *SQLStore) All(ctx context.Context) ([]*Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE kind = %s ORDER BY created_at, id",
		s.columns(), pq.QuoteIdentifier(s.table), s.placeholder(1))

	rows, err := s.db.QueryContext(ctx, query, s.kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s records: %w", s.kind, ConvertDBError(err))
	}
	defer rows.Close()
	return s.scanRows(rows)
}

// Get returns the record holding remoteID
func (s *SQLStore) Get(ctx context.Context, remoteID string) (*Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE kind = %s AND %s = %s",
		s.columns(), pq.QuoteIdentifier(s.table), s.placeholder(1),
		pq.QuoteIdentifier(s.column), s.placeholder(2))

	rec, err := s.scanRecord(s.db.QueryRowContext(ctx, query, s.kind, remoteID))
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return rec, nil
}

// FindByRemoteIDs returns the records holding any of ids with a single
// query. It satisfies collection.Index.
func (s *SQLStore) FindByRemoteIDs(ctx context.Context, ids []string) ([]reference.Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	table := pq.QuoteIdentifier(s.table)
	column := pq.QuoteIdentifier(s.column)

	var (
		query string
		args  []any
	)
	switch s.dialect {
	case DialectPostgres:
		query = fmt.Sprintf("SELECT %s FROM %s WHERE kind = $1 AND %s = ANY($2)", s.columns(), table, column)
		args = []any{s.kind, pq.Array(ids)}
	default:
		marks := make([]string, len(ids))
		args = make([]any, 0, len(ids)+1)
		args = append(args, s.kind)
		for i, id := range ids {
			marks[i] = "?"
			args = append(args, id)
		}
		query = fmt.Sprintf("SELECT %s FROM %s WHERE kind = ? AND %s IN (%s)",
			s.columns(), table, column, strings.Join(marks, ", "))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s records by remote id: %w", s.kind, ConvertDBError(err))
	}
	defer rows.Close()

	records, err := s.scanRows(rows)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("found local records by remote id",
		zap.String("kind", s.kind),
		zap.Int("requested", len(ids)),
		zap.Int("found", len(records)))
	return Entities(records), nil
}

// Create inserts a record for remoteID. It satisfies collection.Creator.
func (s *SQLStore) Create(ctx context.Context, remoteID string) (reference.Entity, error) {
	rec, err := s.Insert(ctx, remoteID)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Insert inserts and returns a record for remoteID
func (s *SQLStore) Insert(ctx context.Context, remoteID string) (*Record, error) {
	if remoteID == "" {
		return nil, fmt.Errorf("%w: column %s", ErrNotNullViolation, s.column)
	}

	rec := s.Build(remoteID)

	query := fmt.Sprintf("INSERT INTO %s (id, kind, %s, created_at, updated_at) VALUES (%s, %s, %s, %s, %s)",
		pq.QuoteIdentifier(s.table), pq.QuoteIdentifier(s.column),
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5))

	if _, err := s.db.ExecContext(ctx, query, rec.ID, rec.Kind, rec.RemoteID, rec.CreatedAt, rec.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create %s record %s: %w", s.kind, remoteID, ConvertDBError(err))
	}

	s.logger.Debug("created local record",
		zap.String("kind", s.kind),
		zap.String("remote_id", remoteID),
		zap.String("id", rec.ID.String()))
	return rec, nil
}

// Build returns an unsaved record of the store's kind that exposes remoteID
// under the store's remote id column
func (s *SQLStore) Build(remoteID string) *Record {
	rec := NewRecord(s.kind, remoteID)
	rec.remoteField = s.column
	return rec
}

// Entities adapts records to the reference.Entity slices collections take
func Entities(records []*Record) []reference.Entity {
	out := make([]reference.Entity, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out
}

func (s *SQLStore) columns() string {
	return "id, kind, " + pq.QuoteIdentifier(s.column) + ", created_at, updated_at"
}

func (s *SQLStore) placeholder(n int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLStore) scanRecord(row scanner) (*Record, error) {
	rec := &Record{remoteField: s.column}
	var created, updated time.Time
	if err := row.Scan(&rec.ID, &rec.Kind, &rec.RemoteID, &created, &updated); err != nil {
		return nil, err
	}
	rec.CreatedAt = created.UTC()
	rec.UpdatedAt = updated.UTC()
	return rec, nil
}

func (s *SQLStore) scanRows(rows *sql.Rows) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s record: %w", s.kind, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, ConvertDBError(err)
	}
	return records, nil
}
