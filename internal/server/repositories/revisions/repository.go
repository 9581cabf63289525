package revisions

import (
	"context"

	"github.com/duncanmcclean/guest-entries/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, rev *models.Revision) error
}
