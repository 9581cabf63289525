package models

// Site is a locale or domain scoped partition of content.
type Site struct {
	Handle string
	URL    string
	Locale string
}

// TreePlacement places a new entry in its collection's structure.
type TreePlacement struct {
	Collection string
	Site       string
	ParentID   string
	Route      string
}
