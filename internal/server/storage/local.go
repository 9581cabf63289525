package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/duncanmcclean/guest-entries/internal/common"
	"github.com/duncanmcclean/guest-entries/internal/filex"
)

// LocalDisk keeps objects as files under a root directory.
type LocalDisk struct {
	root string
}

// NewLocalDisk creates root if needed.
func NewLocalDisk(root string) (*LocalDisk, error) {
	dir, err := filex.EnsureDir(root)
	if err != nil {
		return nil, err
	}
	return &LocalDisk{root: dir}, nil
}

func (d *LocalDisk) Root() string { return d.root }

func (d *LocalDisk) Put(_ context.Context, key string, data []byte, _ string) error {
	path, err := filex.SafeJoin(d.root, key)
	if err != nil {
		return err
	}
	if err := filex.WriteAtomic(path, data); err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	return nil
}

func (d *LocalDisk) Get(_ context.Context, key string) ([]byte, error) {
	path, err := filex.SafeJoin(d.root, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", common.ErrNotFound, key)
	}
	return data, err
}
