package models

import "time"

// Asset is a stored upload registered with the content system.
type Asset struct {
	ID        string
	Container string
	// Path is relative to the container, without a leading slash.
	Path      string
	Size      int64
	MimeType  string
	CreatedAt time.Time
}

// AssetContainer maps a container handle to a storage disk and a base path
// on that disk.
type AssetContainer struct {
	Handle string
	Disk   string
	Path   string
}
