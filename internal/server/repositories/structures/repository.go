package structures

import "context"

type Repository interface {
	Append(ctx context.Context, collection, site, entryID, parentID string) error
	URI(ctx context.Context, entryID string) (string, error)
	SetURI(ctx context.Context, entryID, site, uri string) error
}
