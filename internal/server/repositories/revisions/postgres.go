// Package revisions stores pending entry revisions in PostgreSQL.
package revisions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/duncanmcclean/guest-entries/internal/common"
	"github.com/duncanmcclean/guest-entries/internal/dbx"
	"github.com/duncanmcclean/guest-entries/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, rev *models.Revision) error {
	data, err := json.Marshal(rev.Attributes.Data)
	if err != nil {
		return fmt.Errorf("encode data: %w", err)
	}

	query := `
		INSERT INTO entry_revisions (id, entry_id, action, message, title, slug, published, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		rev.ID, rev.EntryID, rev.Action, rev.Message,
		rev.Attributes.Title, rev.Attributes.Slug, rev.Attributes.Published, data, rev.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: db error: %w", common.ErrPersistence, err)
	}
	return nil
}
