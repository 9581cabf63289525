package guestentries

import (
	"context"
	"fmt"
	"sync"

	"github.com/duncanmcclean/guest-entries/internal/common"
	"github.com/duncanmcclean/guest-entries/internal/server/events"
	"github.com/duncanmcclean/guest-entries/internal/server/models"
	"github.com/duncanmcclean/guest-entries/internal/server/storage"
)

type fakeStore struct {
	mu         sync.Mutex
	entries    map[string]*models.Entry
	revisions  []*models.Revision
	placements []*models.TreePlacement

	creates, updates, revisionSaves, deletes int

	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: map[string]*models.Entry{}}
}

func (f *fakeStore) Create(_ context.Context, e *models.Entry, p *models.TreePlacement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return f.createErr
	}
	f.entries[e.ID] = e.Clone()
	if p != nil {
		cp := *p
		f.placements = append(f.placements, &cp)
	}
	return nil
}

func (f *fakeStore) Find(_ context.Context, id string) (*models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: entry %s", common.ErrNotFound, id)
	}
	return e.Clone(), nil
}

func (f *fakeStore) Update(_ context.Context, e *models.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	f.entries[e.ID] = e.Clone()
	return nil
}

func (f *fakeStore) SaveRevision(_ context.Context, rev *models.Revision, live *models.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revisionSaves++
	f.revisions = append(f.revisions, rev)
	f.entries[live.ID] = live.Clone()
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	delete(f.entries, id)
	return nil
}

func (f *fakeStore) SlugExists(_ context.Context, collection, site, parentID, slug string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.Collection == collection && e.Site == site && e.ParentID == parentID && e.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) writes() int {
	return f.creates + f.updates + f.revisionSaves + f.deletes
}

type fakeSchema struct {
	collections map[string]*models.Collection
	containers  map[string]models.AssetContainer
}

func (f *fakeSchema) Collection(handle string) (*models.Collection, bool) {
	c, ok := f.collections[handle]
	return c, ok
}

func (f *fakeSchema) Container(handle string) (models.AssetContainer, bool) {
	c, ok := f.containers[handle]
	return c, ok
}

type memDisk struct {
	mu    sync.Mutex
	files map[string][]byte
	types map[string]string
}

func newMemDisk() *memDisk {
	return &memDisk{files: map[string][]byte{}, types: map[string]string{}}
}

func (d *memDisk) Put(_ context.Context, key string, data []byte, contentType string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[key] = append([]byte(nil), data...)
	d.types[key] = contentType
	return nil
}

func (d *memDisk) Get(_ context.Context, key string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.files[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return data, nil
}

type fakeDisks map[string]storage.Disk

func (f fakeDisks) Disk(name string) (storage.Disk, error) {
	d, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("%w: disk %s", common.ErrConfiguration, name)
	}
	return d, nil
}

type fakeAssets struct {
	mu        sync.Mutex
	assets    []*models.Asset
	existsErr error
}

func (f *fakeAssets) AssetExists(_ context.Context, container, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	for _, a := range f.assets {
		if a.Container == container && a.Path == path {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAssets) Register(_ context.Context, a *models.Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assets = append(f.assets, a)
	return nil
}

type fixedSite struct {
	site models.Site
	got  []string
}

func (f *fixedSite) Resolve(explicit, requestURL, referer string) models.Site {
	f.got = []string{explicit, requestURL, referer}
	if explicit != "" {
		return models.Site{Handle: explicit}
	}
	return f.site
}

type recordingNotifier struct {
	events []events.Event
}

func (r *recordingNotifier) Dispatch(_ context.Context, e events.Event) {
	r.events = append(r.events, e)
}

func (r *recordingNotifier) types() []events.Type {
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
