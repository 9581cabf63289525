// Package assets keeps the registry of uploaded files in PostgreSQL.
package assets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/duncanmcclean/guest-entries/internal/common"
	"github.com/duncanmcclean/guest-entries/internal/dbx"
	"github.com/duncanmcclean/guest-entries/internal/server/models"
)

// PostgresRepository implements asset registration over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateOrUpdate registers an asset keyed by (container, path). Writing the
// same path again refreshes size and mime type and keeps the original id.
func (r *PostgresRepository) CreateOrUpdate(ctx context.Context, asset *models.Asset) error {
	query := `
		INSERT INTO assets (id, container, path, size, mime_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (container, path)
		DO UPDATE SET
			size = EXCLUDED.size,
			mime_type = EXCLUDED.mime_type;
	`
	res, err := r.db.ExecContext(ctx, query,
		asset.ID, asset.Container, asset.Path, asset.Size, asset.MimeType, asset.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: db error: %w", common.ErrPersistence, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
	return nil
}

// GetByPath looks up a registered asset.
func (r *PostgresRepository) GetByPath(ctx context.Context, container, path string) (*models.Asset, error) {
	query := ` SELECT id, container, path, size, mime_type, created_at from assets
		WHERE container=$1 and path=$2
		`

	result := &models.Asset{}
	err := r.db.QueryRowContext(ctx, query, container, path).
		Scan(&result.ID, &result.Container, &result.Path, &result.Size, &result.MimeType, &result.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s::%s: %w", container, path, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select asset: %w", err)
	}
	return result, nil
}
