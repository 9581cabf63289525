// Package repomanager vends the content repositories bound to a database
// handle or a transaction, and migrates the content schema with goose.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/duncanmcclean/guest-entries/internal/dbx"
	"github.com/duncanmcclean/guest-entries/internal/server/migrations"
	"github.com/duncanmcclean/guest-entries/internal/server/repositories/assets"
	"github.com/duncanmcclean/guest-entries/internal/server/repositories/entries"
	"github.com/duncanmcclean/guest-entries/internal/server/repositories/revisions"
	"github.com/duncanmcclean/guest-entries/internal/server/repositories/structures"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct{}

// Entries returns an entries.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Entries(db dbx.DBTX) entries.Repository {
	return entries.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Revisions(db dbx.DBTX) revisions.Repository {
	return revisions.NewPostgresRepository(db)
}

// Assets returns an assets.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Assets(db dbx.DBTX) assets.Repository {
	return assets.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Structures(db dbx.DBTX) structures.Repository {
	return structures.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded entries, revisions, assets and
// structures migrations. Already applied versions are skipped by goose.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
