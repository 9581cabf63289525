package assets

import (
	"context"

	"github.com/duncanmcclean/guest-entries/internal/server/models"
)

type Repository interface {
	CreateOrUpdate(ctx context.Context, asset *models.Asset) error
	GetByPath(ctx context.Context, container, path string) (*models.Asset, error)
}
