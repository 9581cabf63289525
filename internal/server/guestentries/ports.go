package guestentries

import (
	"context"

	"github.com/duncanmcclean/guest-entries/internal/server/events"
	"github.com/duncanmcclean/guest-entries/internal/server/models"
	"github.com/duncanmcclean/guest-entries/internal/server/storage"
)

// EntryStore persists entries. Create must write the entry, its tree node
// and its URI in one unit; SaveRevision must write the revision and touch
// the live entry in one unit.
type EntryStore interface {
	Create(ctx context.Context, entry *models.Entry, placement *models.TreePlacement) error
	Find(ctx context.Context, id string) (*models.Entry, error)
	Update(ctx context.Context, entry *models.Entry) error
	SaveRevision(ctx context.Context, rev *models.Revision, live *models.Entry) error
	Delete(ctx context.Context, id string) error
	SlugExists(ctx context.Context, collection, site, parentID, slug string) (bool, error)
}

// AssetRegistry records stored uploads.
type AssetRegistry interface {
	Register(ctx context.Context, asset *models.Asset) error
	AssetExists(ctx context.Context, container, path string) (bool, error)
}

// Schema is the read side of the content model.
type Schema interface {
	Collection(handle string) (*models.Collection, bool)
	Container(handle string) (models.AssetContainer, bool)
}

// Disks resolves a disk by name.
type Disks interface {
	Disk(name string) (storage.Disk, error)
}

// SiteResolver picks the site for a submission.
type SiteResolver interface {
	Resolve(explicit, requestURL, referer string) models.Site
}

// Notifier receives outcome events.
type Notifier interface {
	Dispatch(ctx context.Context, e events.Event)
}

// Opener unseals hidden form parameters.
type Opener interface {
	Open(token string) (string, error)
}

// Sealer seals hidden form parameters.
type Sealer interface {
	Seal(value string) (string, error)
}
