package content

import (
	"context"
	"fmt"
	"sync"

	"github.com/duncanmcclean/guest-entries/internal/common"
	"github.com/duncanmcclean/guest-entries/internal/server/models"
)

type treeNode struct {
	collection string
	site       string
	parentID   string
	position   int
}

// MemoryStore keeps everything in process memory. Values are cloned on
// the way in and out so callers never share maps with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[string]*models.Entry
	revisions map[string][]*models.Revision
	assets    map[string]*models.Asset
	nodes     map[string]treeNode
	uris      map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:   make(map[string]*models.Entry),
		revisions: make(map[string][]*models.Revision),
		assets:    make(map[string]*models.Asset),
		nodes:     make(map[string]treeNode),
		uris:      make(map[string]string),
	}
}

func (s *MemoryStore) Create(_ context.Context, entry *models.Entry, placement *models.TreePlacement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.ID]; ok {
		return fmt.Errorf("%w: entry %s already exists", common.ErrPersistence, entry.ID)
	}
	if s.slugTaken(entry.Collection, entry.Site, entry.ParentID, entry.Slug) {
		return fmt.Errorf("%w: slug already taken: %s", common.ErrPersistence, entry.Slug)
	}
	s.entries[entry.ID] = entry.Clone()

	if placement == nil {
		return nil
	}
	position := 0
	for _, n := range s.nodes {
		if n.collection == placement.Collection && n.site == placement.Site && n.parentID == placement.ParentID && n.position >= position {
			position = n.position + 1
		}
	}
	s.nodes[entry.ID] = treeNode{
		collection: placement.Collection,
		site:       placement.Site,
		parentID:   placement.ParentID,
		position:   position,
	}
	s.uris[entry.ID] = models.RenderRoute(placement.Route, entry, s.uris[placement.ParentID])
	return nil
}

func (s *MemoryStore) Find(_ context.Context, id string) (*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("entry %s: %w", id, common.ErrNotFound)
	}
	return e.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, entry *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.ID]; !ok {
		return fmt.Errorf("entry %s: %w", entry.ID, common.ErrNotFound)
	}
	for id, other := range s.entries {
		if id != entry.ID && other.Collection == entry.Collection && other.Site == entry.Site &&
			other.ParentID == entry.ParentID && other.Slug == entry.Slug {
			return fmt.Errorf("%w: slug already taken: %s", common.ErrPersistence, entry.Slug)
		}
	}
	s.entries[entry.ID] = entry.Clone()
	return nil
}

func (s *MemoryStore) SaveRevision(_ context.Context, rev *models.Revision, live *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.entries[live.ID]
	if !ok {
		return fmt.Errorf("entry %s: %w", live.ID, common.ErrNotFound)
	}

	r := *rev
	r.Attributes.Data = models.CloneData(rev.Attributes.Data)
	s.revisions[rev.EntryID] = append(s.revisions[rev.EntryID], &r)
	current.UpdatedAt = live.UpdatedAt
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return fmt.Errorf("entry %s: %w", id, common.ErrNotFound)
	}
	delete(s.entries, id)
	delete(s.revisions, id)
	delete(s.nodes, id)
	delete(s.uris, id)
	return nil
}

func (s *MemoryStore) SlugExists(_ context.Context, collection, site, parentID, slug string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slugTaken(collection, site, parentID, slug), nil
}

func (s *MemoryStore) Register(_ context.Context, asset *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := *asset
	s.assets[asset.Container+"/"+asset.Path] = &a
	return nil
}

// AssetExists reports whether container already holds an asset at path.
func (s *MemoryStore) AssetExists(_ context.Context, container, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.assets[container+"/"+path]
	return ok, nil
}

func (s *MemoryStore) slugTaken(collection, site, parentID, slug string) bool {
	for _, e := range s.entries {
		if e.Collection == collection && e.Site == site && e.ParentID == parentID && e.Slug == slug {
			return true
		}
	}
	return false
}
