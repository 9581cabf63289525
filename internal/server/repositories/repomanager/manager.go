package repomanager

import (
	"context"
	"database/sql"

	"github.com/duncanmcclean/guest-entries/internal/dbx"
	"github.com/duncanmcclean/guest-entries/internal/server/repositories/assets"
	"github.com/duncanmcclean/guest-entries/internal/server/repositories/entries"
	"github.com/duncanmcclean/guest-entries/internal/server/repositories/revisions"
	"github.com/duncanmcclean/guest-entries/internal/server/repositories/structures"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Entries(db dbx.DBTX) entries.Repository
	Revisions(db dbx.DBTX) revisions.Repository
	Assets(db dbx.DBTX) assets.Repository
	Structures(db dbx.DBTX) structures.Repository
}
