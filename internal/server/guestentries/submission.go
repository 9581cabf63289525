package guestentries

import (
	"path"
	"strings"

	"github.com/duncanmcclean/guest-entries/internal/server/models"
)

// UploadedFile is one file part of a submission, fully buffered.
type UploadedFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Size in bytes.
func (f *UploadedFile) Size() int64 { return int64(len(f.Data)) }

// Extension is the lower-cased extension without the dot.
func (f *UploadedFile) Extension() string {
	name := strings.ReplaceAll(f.Filename, `\`, "/")
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// Submission is one parsed form post. Fields values are strings, lists
// ([]any), nested maps (map[string]any) and *UploadedFile leaves.
type Submission struct {
	Fields     map[string]any
	RequestURL string
	Referer    string
}

// String returns a top-level scalar value.
func (s *Submission) String(key string) (string, bool) {
	v, ok := s.Fields[key]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// Has reports whether key was submitted at all.
func (s *Submission) Has(key string) bool {
	_, ok := s.Fields[key]
	return ok
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the uniform outcome of an operation. On failure the operation
// returns both a Result and the error; Envelope is set whenever the hidden
// parameters could be opened, so callers can honour the redirects.
type Result struct {
	Status   string
	Message  string
	Errors   map[string][]string
	Entry    *models.Entry
	Envelope *Envelope
}

// OK reports a success result.
func (r *Result) OK() bool { return r != nil && r.Status == StatusSuccess }
