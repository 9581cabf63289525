package entries

import (
	"context"
	"time"

	"github.com/duncanmcclean/guest-entries/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, entry *models.Entry) error
	Update(ctx context.Context, entry *models.Entry) error
	Touch(ctx context.Context, id string, updatedAt time.Time) error
	GetByID(ctx context.Context, id string) (*models.Entry, error)
	Delete(ctx context.Context, id string) error
	SlugExists(ctx context.Context, collection, site, parentID, slug string) (bool, error)
}
