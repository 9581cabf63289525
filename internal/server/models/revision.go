package models

import "time"

// RevisionAction values.
const (
	RevisionActionRevision = "revision"
)

// RevisionAttributes is the entry state a revision proposes.
type RevisionAttributes struct {
	Title     string
	Slug      string
	Published bool
	Data      map[string]any
}

// Revision is a pending change to an entry that editors promote later.
type Revision struct {
	ID         string
	EntryID    string
	Action     string
	Message    string
	Attributes RevisionAttributes
	CreatedAt  time.Time
}
