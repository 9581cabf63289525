package guestentries

import (
	"fmt"

	"github.com/duncanmcclean/guest-entries/internal/common"
)

// AllowList decides which collections accept guest submissions.
type AllowList struct {
	collections map[string]bool
}

// NewAllowList copies the handle => allowed map.
func NewAllowList(collections map[string]bool) *AllowList {
	m := make(map[string]bool, len(collections))
	for k, v := range collections {
		m[k] = v
	}
	return &AllowList{collections: m}
}

// IsAllowed is false for unknown handles.
func (a *AllowList) IsAllowed(handle string) bool {
	return a.collections[handle]
}

// Check wraps common.ErrNotAllowlisted for refused handles.
func (a *AllowList) Check(handle string) error {
	if !a.IsAllowed(handle) {
		return fmt.Errorf("%w: %s", common.ErrNotAllowlisted, handle)
	}
	return nil
}
