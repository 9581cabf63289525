// Package events fans guest entry outcomes out to in-process listeners.
package events

import (
	"context"
	"sync"

	"github.com/duncanmcclean/guest-entries/internal/logging"
	"github.com/duncanmcclean/guest-entries/internal/server/models"
)

// Type names an outcome.
type Type string

const (
	EntryCreated Type = "guest_entry.created"
	EntryUpdated Type = "guest_entry.updated"
	EntryDeleted Type = "guest_entry.deleted"
)

// Event carries the entry as it was after the write.
type Event struct {
	Type  Type
	Entry *models.Entry
}

// Listener handles one event. It cannot fail the submission.
type Listener func(ctx context.Context, e Event)

// Dispatcher calls listeners synchronously, in subscription order.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners []Listener
	logger    logging.Logger
}

func NewDispatcher(logger logging.Logger) *Dispatcher {
	return &Dispatcher{logger: logger.With("module", "events")}
}

// Subscribe registers l for every event type.
func (d *Dispatcher) Subscribe(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// Dispatch delivers e to every listener. A panicking listener is logged
// and skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) {
	d.mu.RLock()
	listeners := append([]Listener(nil), d.listeners...)
	d.mu.RUnlock()

	for _, l := range listeners {
		d.call(ctx, l, e)
	}
}

func (d *Dispatcher) call(ctx context.Context, l Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error(ctx, "listener panicked", "event", string(e.Type), "panic", r)
		}
	}()
	l(ctx, e)
}

// LogListener records every event at info level.
func LogListener(logger logging.Logger) Listener {
	logger = logger.With("module", "events")
	return func(ctx context.Context, e Event) {
		if e.Entry == nil {
			logger.Info(ctx, string(e.Type))
			return
		}
		logger.Info(ctx, string(e.Type),
			"entry_id", e.Entry.ID,
			"collection", e.Entry.Collection,
			"site", e.Entry.Site,
			"slug", e.Entry.Slug,
		)
	}
}
