package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/duncanmcclean/guest-entries/internal/server/guestentries"
)

// multipartMemory is how much of a multipart body is kept in memory before
// file parts spill to disk.
const multipartMemory = 8 << 20

var errBodyTooLarge = errors.New("request body too large")

// parseSubmission reads the request body into a field tree. Bracketed
// names (items[0][text], tags[]) become nested maps and lists; file parts
// become *guestentries.UploadedFile leaves.
func parseSubmission(r *http.Request) (*guestentries.Submission, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	root := newFormNode()
	switch mediaType {
	case "application/json":
		fields := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil && !errors.Is(err, io.EOF) {
			return nil, bodyError(err)
		}
		return &guestentries.Submission{Fields: fields, RequestURL: requestURL(r), Referer: r.Referer()}, nil

	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, bodyError(err)
		}
		root.addValues(r.Form)
		if err := root.addFiles(r.MultipartForm.File); err != nil {
			return nil, err
		}

	default:
		values, err := formValues(r)
		if err != nil {
			return nil, bodyError(err)
		}
		root.addValues(values)
	}

	return &guestentries.Submission{Fields: root.fields(), RequestURL: requestURL(r), Referer: r.Referer()}, nil
}

// formValues parses url-encoded bodies for every method; net/http only
// reads the body for POST, PUT and PATCH.
func formValues(r *http.Request) (url.Values, error) {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return r.Form, nil
	}

	values := r.URL.Query()
	if r.Body == nil {
		return values, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	parsed, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}
	for k, vs := range parsed {
		values[k] = append(values[k], vs...)
	}
	return values, nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
		return fmt.Errorf("%w: %w", errBodyTooLarge, err)
	}
	return fmt.Errorf("parse body: %w", err)
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

type formNode struct {
	value    any
	leaf     bool
	children map[string]*formNode
	next     int
}

func newFormNode() *formNode {
	return &formNode{children: map[string]*formNode{}}
}

func (n *formNode) addValues(values url.Values) {
	for _, name := range sortedNames(values) {
		for _, v := range values[name] {
			n.insert(splitName(name), v)
		}
	}
}

func (n *formNode) addFiles(files map[string][]*multipart.FileHeader) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, fh := range files[name] {
			if fh.Filename == "" && fh.Size == 0 {
				continue
			}
			f, err := readFile(fh)
			if err != nil {
				return err
			}
			n.insert(splitName(name), f)
		}
	}
	return nil
}

func readFile(fh *multipart.FileHeader) (*guestentries.UploadedFile, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	return &guestentries.UploadedFile{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (n *formNode) insert(path []string, value any) {
	if len(path) == 0 {
		n.value = value
		n.leaf = true
		return
	}

	key := path[0]
	if key == "" {
		key = strconv.Itoa(n.next)
	}
	if i, err := strconv.Atoi(key); err == nil && i >= n.next {
		n.next = i + 1
	}

	child, ok := n.children[key]
	if !ok {
		child = newFormNode()
		n.children[key] = child
	}
	child.insert(path[1:], value)
}

// fields finalizes a root node. Top-level names always form a map.
func (n *formNode) fields() map[string]any {
	out := make(map[string]any, len(n.children))
	for key, child := range n.children {
		out[key] = child.finalize()
	}
	return out
}

// finalize turns the node tree into plain values. Children keyed only by
// integers become a list ordered by index.
func (n *formNode) finalize() any {
	if len(n.children) == 0 {
		if n.leaf {
			return n.value
		}
		return nil
	}

	type indexed struct {
		i int
		v any
	}
	list := make([]indexed, 0, len(n.children))
	for key, child := range n.children {
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 {
			list = nil
			break
		}
		list = append(list, indexed{i: i, v: child.finalize()})
	}
	if list != nil {
		sort.Slice(list, func(a, b int) bool { return list[a].i < list[b].i })
		out := make([]any, 0, len(list))
		for _, item := range list {
			out = append(out, item.v)
		}
		return out
	}

	out := make(map[string]any, len(n.children))
	for key, child := range n.children {
		out[key] = child.finalize()
	}
	return out
}

// splitName splits items[0][text] into items, 0, text. A malformed
// bracket suffix is kept as part of the name.
func splitName(name string) []string {
	open := strings.IndexByte(name, '[')
	if open <= 0 || !strings.HasSuffix(name, "]") {
		return []string{name}
	}

	parts := []string{name[:open]}
	rest := name[open:]
	for len(rest) > 0 {
		if rest[0] != '[' {
			return []string{name}
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return []string{name}
		}
		parts = append(parts, rest[1:end])
		rest = rest[end+1:]
	}
	return parts
}

func sortedNames(values url.Values) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
