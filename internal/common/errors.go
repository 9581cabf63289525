// Package common defines the error taxonomy shared by every layer of the
// guest-entries service. Callers should use errors.Is / errors.As to match
// these values.
package common

import (
	"errors"
	"sort"
	"strings"
)

var (
	// Request-boundary errors. Both map to a forbidden response.
	ErrTampered       = errors.New("form parameters have been tampered with")
	ErrNotAllowlisted = errors.New("collection is not allowed to accept guest entries")

	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Submission errors.
	ErrValidation    = errors.New("validation failed")
	ErrConfiguration = errors.New("configuration error")
	ErrPersistence   = errors.New("persistence failure")
)

// ValidationError carries field-keyed messages. It unwraps to ErrValidation.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError returns a ValidationError with a single message for key.
func NewValidationError(key, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(key, message)
	return v
}

// Add appends a message for key.
func (v *ValidationError) Add(key, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[key] = append(v.Fields[key], message)
}

// Merge copies all messages from other into v.
func (v *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	for key, msgs := range other.Fields {
		for _, m := range msgs {
			v.Add(key, m)
		}
	}
}

// Empty reports whether no messages were collected.
func (v *ValidationError) Empty() bool {
	return v == nil || len(v.Fields) == 0
}

// First returns the first message in key order, used as a summary.
func (v *ValidationError) First() string {
	if v.Empty() {
		return ""
	}
	keys := v.Keys()
	return v.Fields[keys[0]][0]
}

// Keys returns the field keys in sorted order.
func (v *ValidationError) Keys() []string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (v *ValidationError) Error() string {
	if v.Empty() {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(v.Fields))
	for _, k := range v.Keys() {
		parts = append(parts, k+": "+strings.Join(v.Fields[k], ", "))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (v *ValidationError) Unwrap() error {
	return ErrValidation
}
