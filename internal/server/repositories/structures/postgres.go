// Package structures persists collection trees and the URI index derived
// from them.
package structures

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/duncanmcclean/guest-entries/internal/common"
	"github.com/duncanmcclean/guest-entries/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append places entryID as the last child of parentID ("" is the root).
func (r *PostgresRepository) Append(ctx context.Context, collection, site, entryID, parentID string) error {
	query := `
		INSERT INTO structure_nodes (entry_id, collection, site, parent_id, position)
		SELECT $1::text, $2::text, $3::text, $4::text, COALESCE(MAX(position) + 1, 0)
		FROM structure_nodes WHERE collection = $2 AND site = $3 AND parent_id = $4
	`
	if _, err := r.db.ExecContext(ctx, query, entryID, collection, site, parentID); err != nil {
		return fmt.Errorf("%w: append tree node: %w", common.ErrPersistence, err)
	}
	return nil
}

// URI returns the indexed URI of an entry, or "" when it has none.
func (r *PostgresRepository) URI(ctx context.Context, entryID string) (string, error) {
	var uri string
	err := r.db.QueryRowContext(ctx, `SELECT uri FROM entry_uris WHERE entry_id = $1`, entryID).Scan(&uri)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to select uri: %w", err)
	}
	return uri, nil
}

// SetURI upserts the URI index row for an entry.
func (r *PostgresRepository) SetURI(ctx context.Context, entryID, site, uri string) error {
	query := `
		INSERT INTO entry_uris (entry_id, site, uri)
		VALUES ($1, $2, $3)
		ON CONFLICT (entry_id)
		DO UPDATE SET site = EXCLUDED.site, uri = EXCLUDED.uri;
	`
	if _, err := r.db.ExecContext(ctx, query, entryID, site, uri); err != nil {
		return fmt.Errorf("%w: set uri: %w", common.ErrPersistence, err)
	}
	return nil
}
