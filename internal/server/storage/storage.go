// Package storage provides the named disks asset containers write to.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/duncanmcclean/guest-entries/internal/common"
)

// Disk stores and reads back objects by key. Keys use forward slashes and
// are relative to the disk root.
type Disk interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Manager maps disk names ("local", "s3", ...) to disks.
type Manager struct {
	mu    sync.RWMutex
	disks map[string]Disk
}

func NewManager() *Manager {
	return &Manager{disks: map[string]Disk{}}
}

// Register adds or replaces the disk under name.
func (m *Manager) Register(name string, d Disk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disks[name] = d
}

// Disk returns the named disk. Unknown names are a content model mistake
// and fail with common.ErrConfiguration.
func (m *Manager) Disk(name string) (Disk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.disks[name]
	if !ok {
		return nil, fmt.Errorf("%w: disk %q is not configured", common.ErrConfiguration, name)
	}
	return d, nil
}

// Names lists registered disks, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.disks))
	for n := range m.disks {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
