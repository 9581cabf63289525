// Package entries provides the PostgreSQL-backed repository for content
// entries. Field data is stored as JSONB.
package entries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/duncanmcclean/guest-entries/internal/common"
	"github.com/duncanmcclean/guest-entries/internal/dbx"
	"github.com/duncanmcclean/guest-entries/internal/server/models"
)

// PostgresRepository implements entry storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// writeError maps driver errors to the store's taxonomy. A unique
// violation means another entry took the slug first.
func writeError(err error) error {
	if dbx.IsUniqueViolation(err) {
		return fmt.Errorf("%w: slug already taken: %w", common.ErrPersistence, err)
	}
	return fmt.Errorf("%w: db error: %w", common.ErrPersistence, err)
}

// Create inserts a new entry.
func (r *PostgresRepository) Create(ctx context.Context, entry *models.Entry) error {
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("encode data: %w", err)
	}

	query := `
		INSERT INTO entries (id, collection, site, slug, published, date, order_key, parent_id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.db.ExecContext(ctx, query,
		entry.ID, entry.Collection, entry.Site, entry.Slug, entry.Published, nullTime(entry.Date),
		entry.OrderKey(), entry.ParentID, data, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		return writeError(err)
	}
	return nil
}

// Update rewrites the mutable columns of an existing entry. A missing row
// yields common.ErrNotFound.
func (r *PostgresRepository) Update(ctx context.Context, entry *models.Entry) error {
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("encode data: %w", err)
	}

	query := `
		UPDATE entries SET slug = $2, published = $3, date = $4, order_key = $5, parent_id = $6, data = $7, updated_at = $8
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Slug, entry.Published, nullTime(entry.Date), entry.OrderKey(), entry.ParentID, data, entry.UpdatedAt)
	if err != nil {
		return writeError(err)
	}
	return expectOne(res)
}

// Touch only bumps updated_at.
func (r *PostgresRepository) Touch(ctx context.Context, id string, updatedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE entries SET updated_at = $2 WHERE id = $1`, id, updatedAt)
	if err != nil {
		return writeError(err)
	}
	return expectOne(res)
}

// GetByID loads one entry.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Entry, error) {
	query := `
		SELECT id, collection, site, slug, published, date, parent_id, data, created_at, updated_at
		FROM entries WHERE id = $1
	`

	var (
		e    models.Entry
		date sql.NullTime
		data []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.Collection, &e.Site, &e.Slug, &e.Published, &date, &e.ParentID, &data, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select entry: %w", err)
	}

	if date.Valid {
		d := date.Time
		e.Date = &d
	}
	e.Data = map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &e.Data); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}
	return &e, nil
}

// Delete removes an entry. Revisions, tree nodes and URIs cascade.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: db error: %w", common.ErrPersistence, err)
	}
	return expectOne(res)
}

// SlugExists reports whether slug is taken among the siblings of an entry.
func (r *PostgresRepository) SlugExists(ctx context.Context, collection, site, parentID, slug string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM entries WHERE collection = $1 AND site = $2 AND parent_id = $3 AND slug = $4
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, collection, site, parentID, slug).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return exists, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
