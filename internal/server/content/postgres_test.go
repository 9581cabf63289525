package content

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/duncanmcclean/guest-entries/internal/common"
	"github.com/duncanmcclean/guest-entries/internal/server/models"
	"github.com/duncanmcclean/guest-entries/internal/server/repositories/repomanager"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	insertEntryQ   = regexp.QuoteMeta(`INSERT INTO entries`)
	appendNodeQ    = regexp.QuoteMeta(`INSERT INTO structure_nodes`)
	selectURIQ     = regexp.QuoteMeta(`SELECT uri FROM entry_uris WHERE entry_id = $1`)
	upsertURIQ     = regexp.QuoteMeta(`INSERT INTO entry_uris`)
	insertRevQ     = regexp.QuoteMeta(`INSERT INTO entry_revisions`)
	touchEntryQ    = regexp.QuoteMeta(`UPDATE entries SET updated_at = $2 WHERE id = $1`)
	upsertAssetQ   = regexp.QuoteMeta(`INSERT INTO assets`)
	selectAssetQ   = regexp.QuoteMeta(`SELECT id, container, path, size, mime_type, created_at from assets`)
	slugExistsQ    = regexp.QuoteMeta(`SELECT EXISTS`)
	deleteEntryQ   = regexp.QuoteMeta(`DELETE FROM entries WHERE id = $1`)
	testCreatedAt  = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	testRevisionAt = time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
)

func newStoreWithMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresStore(db, repomanager.NewPostgresRepositoryManager()), mock, db
}

func childEntry() *models.Entry {
	return &models.Entry{
		ID:         "child",
		Collection: "pages",
		Site:       "default",
		Slug:       "team",
		ParentID:   "parent",
		Data:       map[string]any{"title": "Team"},
		CreatedAt:  testCreatedAt,
		UpdatedAt:  testCreatedAt,
	}
}

func TestPostgresStore_Create_Plain(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(insertEntryQ).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e := childEntry()
	e.ParentID = ""
	require.NoError(t, store.Create(context.Background(), e, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Create_Structured(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(insertEntryQ).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(appendNodeQ).
		WithArgs("child", "pages", "default", "parent").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(selectURIQ).
		WithArgs("parent").
		WillReturnRows(sqlmock.NewRows([]string{"uri"}).AddRow("/about"))
	mock.ExpectExec(upsertURIQ).
		WithArgs("child", "default", "/about/team").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	placement := &models.TreePlacement{Collection: "pages", Site: "default", ParentID: "parent"}
	require.NoError(t, store.Create(context.Background(), childEntry(), placement))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Create_RollsBackOnTreeFailure(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(insertEntryQ).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(appendNodeQ).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	placement := &models.TreePlacement{Collection: "pages", Site: "default", ParentID: "parent"}
	err := store.Create(context.Background(), childEntry(), placement)
	assert.True(t, errors.Is(err, common.ErrPersistence), "got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Create_SlugRace(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(insertEntryQ).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := store.Create(context.Background(), childEntry(), nil)
	assert.True(t, errors.Is(err, common.ErrPersistence))
	assert.ErrorContains(t, err, "slug already taken")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRevision(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	rev := &models.Revision{
		ID:         "r1",
		EntryID:    "child",
		Action:     models.RevisionActionRevision,
		Message:    "Guest Entry Updated",
		Attributes: models.RevisionAttributes{Title: "Team", Slug: "team", Data: map[string]any{"title": "Team"}},
		CreatedAt:  testRevisionAt,
	}
	live := childEntry()
	live.UpdatedAt = testRevisionAt

	mock.ExpectBegin()
	mock.ExpectExec(insertRevQ).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(touchEntryQ).WithArgs("child", testRevisionAt).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.SaveRevision(context.Background(), rev, live))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRevision_MissingEntry(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(insertRevQ).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(touchEntryQ).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.SaveRevision(context.Background(), &models.Revision{ID: "r1", EntryID: "child"}, childEntry())
	assert.True(t, errors.Is(err, common.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Passthroughs(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()
	ctx := context.Background()

	mock.ExpectQuery(slugExistsQ).
		WithArgs("pages", "default", "parent", "team").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	taken, err := store.SlugExists(ctx, "pages", "default", "parent", "team")
	require.NoError(t, err)
	assert.True(t, taken)

	mock.ExpectExec(upsertAssetQ).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Register(ctx, &models.Asset{ID: "a1", Container: "uploads", Path: "x.png", CreatedAt: testCreatedAt}))

	mock.ExpectExec(deleteEntryQ).WithArgs("child").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Delete(ctx, "child"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AssetExists(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()
	ctx := context.Background()

	mock.ExpectQuery(selectAssetQ).WithArgs("uploads", "x.png").
		WillReturnRows(sqlmock.NewRows([]string{"id", "container", "path", "size", "mime_type", "created_at"}).
			AddRow("a1", "uploads", "x.png", 1, "image/png", testCreatedAt))
	ok, err := store.AssetExists(ctx, "uploads", "x.png")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectQuery(selectAssetQ).WithArgs("uploads", "y.png").WillReturnError(sql.ErrNoRows)
	ok, err = store.AssetExists(ctx, "uploads", "y.png")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectQuery(selectAssetQ).WithArgs("uploads", "z.png").WillReturnError(errors.New("conn reset"))
	_, err = store.AssetExists(ctx, "uploads", "z.png")
	assert.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}
