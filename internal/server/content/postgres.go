// Package content implements the entry and asset stores the guest entry
// pipeline writes through: a PostgreSQL store over the repositories and an
// in-memory store for development.
package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/duncanmcclean/guest-entries/internal/common"
	"github.com/duncanmcclean/guest-entries/internal/dbx"
	"github.com/duncanmcclean/guest-entries/internal/server/models"
	"github.com/duncanmcclean/guest-entries/internal/server/repositories/repomanager"
)

// PostgresStore persists entries, revisions, tree placement and assets.
type PostgresStore struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewPostgresStore(db *sql.DB, m repomanager.RepositoryManager) *PostgresStore {
	return &PostgresStore{db: db, repomanager: m}
}

// Create inserts the entry and, for structured collections, appends it to
// the tree and indexes its URI. All of it commits or none of it does.
func (s *PostgresStore) Create(ctx context.Context, entry *models.Entry, placement *models.TreePlacement) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Entries(tx).Create(ctx, entry); err != nil {
			return err
		}
		if placement == nil {
			return nil
		}

		tree := s.repomanager.Structures(tx)
		if err := tree.Append(ctx, placement.Collection, placement.Site, entry.ID, placement.ParentID); err != nil {
			return err
		}

		var parentURI string
		if placement.ParentID != "" {
			uri, err := tree.URI(ctx, placement.ParentID)
			if err != nil {
				return fmt.Errorf("parent uri: %w", err)
			}
			parentURI = uri
		}
		return tree.SetURI(ctx, entry.ID, placement.Site, models.RenderRoute(placement.Route, entry, parentURI))
	})
}

func (s *PostgresStore) Find(ctx context.Context, id string) (*models.Entry, error) {
	return s.repomanager.Entries(s.db).GetByID(ctx, id)
}

func (s *PostgresStore) Update(ctx context.Context, entry *models.Entry) error {
	return s.repomanager.Entries(s.db).Update(ctx, entry)
}

// SaveRevision stores rev and bumps the live entry's updated_at in one
// transaction. The live entry's content is left alone.
func (s *PostgresStore) SaveRevision(ctx context.Context, rev *models.Revision, live *models.Entry) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Revisions(tx).Create(ctx, rev); err != nil {
			return err
		}
		return s.repomanager.Entries(tx).Touch(ctx, live.ID, live.UpdatedAt)
	})
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	return s.repomanager.Entries(s.db).Delete(ctx, id)
}

func (s *PostgresStore) SlugExists(ctx context.Context, collection, site, parentID, slug string) (bool, error) {
	return s.repomanager.Entries(s.db).SlugExists(ctx, collection, site, parentID, slug)
}

// Register records a stored upload; re-uploading the same path replaces
// the record.
func (s *PostgresStore) Register(ctx context.Context, asset *models.Asset) error {
	return s.repomanager.Assets(s.db).CreateOrUpdate(ctx, asset)
}

// AssetExists reports whether container already holds an asset at path.
func (s *PostgresStore) AssetExists(ctx context.Context, container, path string) (bool, error) {
	_, err := s.repomanager.Assets(s.db).GetByPath(ctx, container, path)
	switch {
	case errors.Is(err, common.ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}
