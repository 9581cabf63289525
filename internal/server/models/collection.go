package models

import (
	"fmt"
	"strconv"
)

// FieldKind is the closed set of field kinds the coercer distinguishes.
type FieldKind string

const (
	FieldText       FieldKind = "text"
	FieldDate       FieldKind = "date"
	FieldAssets     FieldKind = "assets"
	FieldReplicator FieldKind = "replicator"
	FieldOther      FieldKind = "other"
)

// ParseFieldKind maps a declared field type to a FieldKind. Types the
// coercer has no special handling for become FieldOther.
func ParseFieldKind(s string) FieldKind {
	switch FieldKind(s) {
	case FieldText, FieldDate, FieldAssets, FieldReplicator:
		return FieldKind(s)
	case "textarea", "markdown", "slug":
		return FieldText
	default:
		return FieldOther
	}
}

// Field is one blueprint field.
type Field struct {
	Handle string
	Kind   FieldKind
	// Type is the declared type before folding into Kind.
	Type   string
	Config map[string]any
	// Sets is populated for replicator fields, in declaration order.
	Sets []Set
}

// Set is one replicator variant.
type Set struct {
	Handle string
	Fields []Field
}

// Field looks up a field of the set by handle.
func (s Set) Field(handle string) (Field, bool) {
	return findField(s.Fields, handle)
}

// Set returns the replicator set named handle. An empty handle selects the
// first declared set.
func (f Field) Set(handle string) (Set, bool) {
	if len(f.Sets) == 0 {
		return Set{}, false
	}
	if handle == "" {
		return f.Sets[0], true
	}
	for _, s := range f.Sets {
		if s.Handle == handle {
			return s, true
		}
	}
	return Set{}, false
}

// ConfigString returns a string config value, or "" when absent.
func (f Field) ConfigString(key string) string {
	switch v := f.Config[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// ConfigInt returns an integer config value, or 0 when absent or not numeric.
func (f Field) ConfigInt(key string) int {
	switch v := f.Config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

// ConfigStrings returns a list config value. A single string becomes a
// one-element list.
func (f Field) ConfigStrings(key string) []string {
	switch v := f.Config[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

// Collection is a named group of entries sharing a blueprint.
type Collection struct {
	Handle      string
	Dated       bool
	Revisions   bool
	Structured  bool
	TitleFormat string
	Route       string
	Sites       []string
	Fields      []Field
}

// Field looks up a top-level blueprint field by handle.
func (c *Collection) Field(handle string) (Field, bool) {
	return findField(c.Fields, handle)
}

// HasTitleField reports whether the blueprint declares a "title" field.
func (c *Collection) HasTitleField() bool {
	_, ok := c.Field("title")
	return ok
}

func findField(fields []Field, handle string) (Field, bool) {
	for _, f := range fields {
		if f.Handle == handle {
			return f, true
		}
	}
	return Field{}, false
}
