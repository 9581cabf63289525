package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS entries (id TEXT PRIMARY KEY, slug TEXT UNIQUE)`)
	require.NoError(t, err)
	return db
}

func entryCount(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&n))
	return n
}

func insertEntry(ctx context.Context, tx DBTX, id, slug string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO entries(id, slug) VALUES (?, ?)`, id, slug)
	return err
}

func TestWithTx_Commit(t *testing.T) {
	db := openSQLite(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		if err := insertEntry(ctx, tx, "a", "first"); err != nil {
			return err
		}
		return insertEntry(ctx, tx, "b", "second")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, entryCount(t, db))
}

func TestWithTx_PartialWorkRolledBack(t *testing.T) {
	db := openSQLite(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		require.NoError(t, insertEntry(ctx, tx, "a", "first"))
		return insertEntry(ctx, tx, "b", "first")
	})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.Equal(t, 0, entryCount(t, db))
}

func TestWithTx_PanicRolledBackAndRethrown(t *testing.T) {
	db := openSQLite(t)

	assert.PanicsWithValue(t, "kaput", func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, insertEntry(ctx, tx, "a", "first"))
			panic("kaput")
		})
	})
	assert.Equal(t, 0, entryCount(t, db))
}

func TestWithTx_BeginError(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, nil, func(context.Context, DBTX) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	assert.False(t, called)
}

func TestWithTx_CommitError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	commitErr := errors.New("connection reset")
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(commitErr)

	err = WithTx(context.Background(), db, nil, func(context.Context, DBTX) error { return nil })
	require.ErrorIs(t, err, commitErr)
	assert.Contains(t, err.Error(), "commit tx")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollbackErrorJoined(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fnErr := errors.New("boom")
	rbErr := errors.New("rollback failed")
	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(rbErr)

	err = WithTx(context.Background(), db, nil, func(context.Context, DBTX) error { return fnErr })
	require.ErrorIs(t, err, fnErr)
	require.ErrorIs(t, err, rbErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain text", errors.New("UNIQUE constraint failed"), false},
		{"postgres unique", &pgconn.PgError{Code: "23505"}, true},
		{"postgres foreign key", &pgconn.PgError{Code: "23503"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err))
		})
	}
}
