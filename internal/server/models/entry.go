// Package models defines the content records the guest-entries server reads
// and writes: entries, their revisions, registered assets, and the content
// model (collections, fields, sites, asset containers) that shapes them.
package models

import (
	"strings"
	"time"

	"github.com/duncanmcclean/guest-entries/internal/tplx"
)

// Entry is one content record belonging to a collection and a site.
type Entry struct {
	ID         string
	Collection string
	Site       string
	Slug       string
	Published  bool
	// Date is set only for entries of dated collections.
	Date      *time.Time
	ParentID  string
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewEntry returns an unpublished entry with an empty data map.
func NewEntry(id, collection, site string) *Entry {
	return &Entry{
		ID:         id,
		Collection: collection,
		Site:       site,
		Data:       map[string]any{},
	}
}

// Title returns the "title" data value when it is a string.
func (e *Entry) Title() string {
	if e == nil {
		return ""
	}
	s, _ := e.Data["title"].(string)
	return s
}

// OrderKey is the storage ordering key. Dated entries sort by date with the
// time component dropped at midnight; everything else by slug.
func (e *Entry) OrderKey() string {
	if e.Date == nil {
		return e.Slug
	}
	d := e.Date.UTC()
	layout := "2006-01-02-1504"
	if d.Hour() == 0 && d.Minute() == 0 {
		layout = "2006-01-02"
	}
	return d.Format(layout) + "." + e.Slug
}

// Clone returns a deep copy; nested maps and slices in Data are not shared.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	if e.Date != nil {
		d := *e.Date
		c.Date = &d
	}
	c.Data = CloneData(e.Data)
	return &c
}

// CloneData deep-copies a field value tree.
func CloneData(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneData(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i := range t {
			out[i] = CloneData(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// DefaultRoute nests an entry under its parent's URI.
const DefaultRoute = "{{ parent_uri }}/{{ slug }}"

// RenderRoute expands a collection route for an entry. The route sees
// slug, id, parent_uri, collection and site plus the entry's scalar data;
// a route that does not parse falls back to DefaultRoute. Repeated slashes
// are collapsed.
func RenderRoute(route string, e *Entry, parentURI string) string {
	if route == "" {
		route = DefaultRoute
	}
	vars := make(map[string]any, len(e.Data)+5)
	for k, v := range e.Data {
		vars[k] = v
	}
	vars["slug"] = e.Slug
	vars["id"] = e.ID
	vars["parent_uri"] = parentURI
	vars["collection"] = e.Collection
	vars["site"] = e.Site

	uri, err := tplx.Render(route, vars)
	if err != nil {
		uri, _ = tplx.Render(DefaultRoute, vars)
	}
	for strings.Contains(uri, "//") {
		uri = strings.ReplaceAll(uri, "//", "/")
	}
	if !strings.HasPrefix(uri, "/") {
		uri = "/" + uri
	}
	return uri
}
