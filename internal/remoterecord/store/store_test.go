package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T, opts ...Option) *SQLStore {
	t.Helper()
	db, err := Open(DialectSQLite, ":memory:")
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s, err := New(db, DialectSQLite, "Todo", opts...)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLite_CreateAndFind(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		_, err := s.Create(ctx, id)
		require.NoError(t, err)
	}

	found, err := s.FindByRemoteIDs(ctx, []string{"3", "1", "404"})
	require.NoError(t, err)
	require.Len(t, found, 2)

	var ids []string
	for _, e := range found {
		id, ok := e.FieldValue("remote_resource_id")
		require.True(t, ok)
		ids = append(ids, id)
	}
	assert.ElementsMatch(t, []string{"1", "3"}, ids)
}

func TestSQLite_AllIsScopedToKind(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	other, err := New(s.db, DialectSQLite, "User")
	require.NoError(t, err)

	_, err = s.Insert(ctx, "1")
	require.NoError(t, err)
	_, err = other.Insert(ctx, "1")
	require.NoError(t, err, "the same remote id may exist for another kind")

	records, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Todo", records[0].Kind)
	assert.Equal(t, "1", records[0].RemoteID)
	assert.NotEqual(t, uuid.Nil, records[0].ID)
	assert.WithinDuration(t, time.Now(), records[0].CreatedAt, time.Minute)
}

func TestSQLite_DuplicateRemoteID(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "1")
	require.NoError(t, err)
	_, err = s.Insert(ctx, "1")
	assert.True(t, IsUniqueViolation(err), "got %v", err)
}

func TestSQLite_Get(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	created, err := s.Insert(ctx, "7")
	require.NoError(t, err)

	got, err := s.Get(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = s.Get(ctx, "8")
	assert.True(t, IsNotFound(err))
}

func TestSQLite_CustomColumn(t *testing.T) {
	s := setupSQLite(t, WithTable("todos"), WithRemoteIDColumn("todo_id"))
	ctx := context.Background()

	e, err := s.Create(ctx, "5")
	require.NoError(t, err)

	id, ok := e.FieldValue("todo_id")
	assert.True(t, ok)
	assert.Equal(t, "5", id)
	_, ok = e.FieldValue("remote_resource_id")
	assert.False(t, ok)

	found, err := s.FindByRemoteIDs(ctx, []string{"5"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestFindByRemoteIDs_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s, err := New(db, DialectPostgres, "Todo")
	require.NoError(t, err)

	found, err := s.FindByRemoteIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.NoError(t, mock.ExpectationsWereMet(), "no query for an empty id set")
}

func TestPostgres_FindByRemoteIDsUsesAny(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s, err := New(db, DialectPostgres, "Todo")
	require.NoError(t, err)

	now := time.Now().UTC()
	id := uuid.New()
	mock.ExpectQuery(`SELECT id, kind, "remote_resource_id", created_at, updated_at FROM "remote_records" WHERE kind = \$1 AND "remote_resource_id" = ANY\(\$2\)`).
		WithArgs("Todo", sqlmock.AnyArg()).
		WillReturnRows(
			sqlmock.NewRows([]string{"id", "kind", "remote_resource_id", "created_at", "updated_at"}).
				AddRow(id.String(), "Todo", "1", now, now),
		)

	found, err := s.FindByRemoteIDs(context.Background(), []string{"1", "2"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	rec := found[0].(*Record)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "1", rec.RemoteID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertUsesNumberedPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s, err := New(db, DialectPostgres, "Todo")
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO "remote_records" \(id, kind, "remote_resource_id", created_at, updated_at\) VALUES \(\$1, \$2, \$3, \$4, \$5\)`).
		WithArgs(sqlmock.AnyArg(), "Todo", "9", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec, err := s.Insert(context.Background(), "9")
	require.NoError(t, err)
	assert.Equal(t, "9", rec.RemoteID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertConvertsUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s, err := New(db, DialectPostgres, "Todo")
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO`).
		WillReturnError(&pgconn.PgError{Code: "23505", Detail: "Key (kind, remote_resource_id)=(Todo, 9) already exists."})

	_, err = s.Insert(context.Background(), "9")
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.Contains(t, err.Error(), "already exists")
}

func TestPostgres_MigrateUsesNativeTypes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s, err := New(db, DialectPostgres, "Todo")
	require.NoError(t, err)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "remote_records" \(\s+id UUID PRIMARY KEY`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE UNIQUE INDEX IF NOT EXISTS "idx_remote_records_kind_remote_resource_id"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRejectsEmptyRemoteID(t *testing.T) {
	s := setupSQLite(t)
	_, err := s.Insert(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotNullViolation)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, Dialect("oracle"), "Todo")
	assert.ErrorIs(t, err, ErrUnknownDialect)

	_, err = New(nil, DialectSQLite, " ")
	assert.Error(t, err)

	_, err = Open(Dialect("oracle"), "")
	assert.ErrorIs(t, err, ErrUnknownDialect)
}

func TestConvertDBError(t *testing.T) {
	assert.Nil(t, ConvertDBError(nil))
	assert.Equal(t, ErrNotFound, ConvertDBError(sql.ErrNoRows))

	err := ConvertDBError(&pgconn.PgError{Code: "23502", ColumnName: "kind"})
	assert.ErrorIs(t, err, ErrNotNullViolation)
	assert.Contains(t, err.Error(), "kind")

	generic := errors.New("connection reset")
	assert.Equal(t, generic, ConvertDBError(generic))
}

func TestRecord_Fields(t *testing.T) {
	rec := NewRecord("Todo", "1")

	v, ok := rec.FieldValue("remote_resource_id")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	v, ok = rec.FieldValue("id")
	assert.True(t, ok)
	assert.Equal(t, rec.ID.String(), v)

	_, ok = rec.FieldValue("title")
	assert.False(t, ok)

	require.NoError(t, rec.SetFieldValue("remote_resource_id", "2"))
	assert.Equal(t, "2", rec.RemoteID)
	assert.Error(t, rec.SetFieldValue("kind", "User"))
}

func TestBuild_UsesStoreColumn(t *testing.T) {
	s := setupSQLite(t, WithRemoteIDColumn("todo_id"))

	rec := s.Build("3")
	id, ok := rec.FieldValue("todo_id")
	assert.True(t, ok)
	assert.Equal(t, "3", id)

	_, err := s.Get(context.Background(), "3")
	assert.True(t, IsNotFound(err), "Build does not persist")
}
