package guestentries

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/duncanmcclean/guest-entries/internal/common"
	"github.com/duncanmcclean/guest-entries/internal/logging"
	"github.com/duncanmcclean/guest-entries/internal/server/models"
	"github.com/google/uuid"
)

// UploadContext is the entry state a dynamic upload folder is derived from.
type UploadContext struct {
	Entry *models.Entry
	// Slug is the submitted slug, which may differ from Entry.Slug before
	// slug resolution has run.
	Slug string
}

// Uploader validates, sanitizes, stores and registers the files of an
// assets field.
type Uploader struct {
	schema  Schema
	disks   Disks
	assets  AssetRegistry
	allowed map[string]bool
	logger  logging.Logger

	now   func() time.Time
	newID func() string
}

func NewUploader(schema Schema, disks Disks, assets AssetRegistry, allowedExtensions []string, logger logging.Logger) *Uploader {
	allowed := make(map[string]bool, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[normalizeExt(ext)] = true
	}
	return &Uploader{
		schema:  schema,
		disks:   disks,
		assets:  assets,
		allowed: allowed,
		logger:  logger.With("module", "uploader"),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// Validate checks every file of raw against the allowed extensions, the
// field's max_filesize (KB) and max_items. Nothing is stored.
func (u *Uploader) Validate(field models.Field, key string, raw any) error {
	items := uploadItems(raw)

	verr := &common.ValidationError{}
	if maxItems := field.ConfigInt("max_items"); maxItems > 0 && len(items) > maxItems {
		verr.Add(key, fmt.Sprintf("The %s field must not have more than %d items.", key, maxItems))
	}

	allowed := u.allowedFor(field)
	maxKB := int64(field.ConfigInt("max_filesize"))
	for _, item := range items {
		f, ok := item.(*UploadedFile)
		if !ok {
			continue
		}
		if !allowed[f.Extension()] {
			verr.Add(key, fmt.Sprintf("The %s field must be a file of an allowed type (%s is not).", key, f.Filename))
			continue
		}
		if maxKB > 0 && f.Size() > maxKB*1024 {
			verr.Add(key, fmt.Sprintf("The %s field must not be greater than %d kilobytes.", key, maxKB))
		}
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

// Upload stores the files of raw and returns the collapsed path value.
// Existing path strings in raw are kept in their submitted position.
func (u *Uploader) Upload(ctx context.Context, uc UploadContext, field models.Field, key string, raw any) (any, error) {
	items := uploadItems(raw)
	if len(items) == 0 {
		return nil, nil
	}

	handle := field.ConfigString("container")
	if handle == "" {
		return nil, fmt.Errorf("%w: field %q has no asset container", common.ErrConfiguration, key)
	}
	container, ok := u.schema.Container(handle)
	if !ok {
		return nil, fmt.Errorf("%w: asset container %q not found", common.ErrConfiguration, handle)
	}

	if err := u.Validate(field, key, raw); err != nil {
		return nil, err
	}

	folder := u.folder(uc, field)
	stamp := u.now().Unix()
	used := make(map[string]bool, len(items))

	paths := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if p := strings.TrimLeft(v, "/"); p != "" {
				paths = append(paths, p)
			}
		case *UploadedFile:
			rel, err := u.freePath(ctx, container.Handle, used, path.Join(folder, fmt.Sprintf("%d-%s", stamp, sanitizeFilename(v.Filename))))
			if err != nil {
				return nil, err
			}
			if err := u.store(ctx, container, rel, v); err != nil {
				return nil, err
			}
			paths = append(paths, rel)
		}
	}

	return collapsePaths(paths, field.ConfigInt("max_items")), nil
}

func (u *Uploader) store(ctx context.Context, container models.AssetContainer, rel string, f *UploadedFile) error {
	disk, err := u.disks.Disk(container.Disk)
	if err != nil {
		return err
	}

	data := f.Data
	if f.Extension() == "svg" {
		data = SanitizeSVG(data)
	}
	mimeType := detectMimeType(f, data)

	key := strings.TrimLeft(path.Join(container.Path, rel), "/")
	if err := disk.Put(ctx, key, data, mimeType); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}

	asset := &models.Asset{
		ID:        u.newID(),
		Container: container.Handle,
		Path:      rel,
		Size:      int64(len(data)),
		MimeType:  mimeType,
		CreatedAt: u.now().UTC(),
	}
	if err := u.assets.Register(ctx, asset); err != nil {
		return fmt.Errorf("register %s: %w", rel, err)
	}

	u.logger.Info(ctx, "upload stored", "container", container.Handle, "path", rel, "size", asset.Size)
	return nil
}

// folder resolves the target folder: an explicit folder wins, then the
// dynamic mode (id, slug, author, or true for the first available).
func (u *Uploader) folder(uc UploadContext, field models.Field) string {
	if f := strings.Trim(field.ConfigString("folder"), "/"); f != "" {
		return f
	}

	var id, slug, author string
	if uc.Entry != nil {
		id = uc.Entry.ID
		slug = uc.Entry.Slug
		author, _ = uc.Entry.Data["author"].(string)
	}
	if uc.Slug != "" {
		slug = uc.Slug
	}

	var picked string
	switch field.ConfigString("dynamic") {
	case "id":
		picked = id
	case "slug":
		picked = slug
	case "author":
		picked = author
	case "true", "1":
		for _, candidate := range []string{id, slug, author} {
			if candidate != "" {
				picked = candidate
				break
			}
		}
	}
	return Slugify(picked)
}

func (u *Uploader) allowedFor(field models.Field) map[string]bool {
	narrow := field.ConfigStrings("allowed_extensions")
	if len(narrow) == 0 {
		return u.allowed
	}
	out := make(map[string]bool, len(narrow))
	for _, ext := range narrow {
		ext = normalizeExt(ext)
		if u.allowed[ext] {
			out[ext] = true
		}
	}
	return out
}

// uploadItems flattens raw into strings and *UploadedFile in submitted
// order. Anything else is dropped.
func uploadItems(raw any) []any {
	switch v := raw.(type) {
	case nil:
		return nil
	case *UploadedFile:
		return []any{v}
	case string:
		if v == "" {
			return nil
		}
		return []any{v}
	case []string:
		out := make([]any, 0, len(v))
		for _, s := range v {
			out = append(out, uploadItems(s)...)
		}
		return out
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			switch item.(type) {
			case string, *UploadedFile:
				out = append(out, uploadItems(item)...)
			}
		}
		return out
	default:
		return nil
	}
}

// hasUploadedFile reports whether raw carries at least one file anywhere
// in its tree.
func hasUploadedFile(raw any) bool {
	switch v := raw.(type) {
	case *UploadedFile:
		return true
	case []any:
		for _, item := range v {
			if hasUploadedFile(item) {
				return true
			}
		}
	case map[string]any:
		for _, item := range v {
			if hasUploadedFile(item) {
				return true
			}
		}
	}
	return false
}

func collapsePaths(paths []string, maxItems int) any {
	switch {
	case len(paths) == 0:
		return nil
	case len(paths) == 1 && maxItems <= 1:
		return paths[0]
	default:
		return paths
	}
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	ext := strings.ToLower(path.Ext(name))
	stem := Slugify(strings.TrimSuffix(name, path.Ext(name)))
	if stem == "" {
		stem = "file"
	}
	if ext == "." {
		ext = ""
	}
	return stem + ext
}

// maxPathAttempts bounds the suffix search in freePath.
const maxPathAttempts = 1000

// freePath suffixes p with -2, -3, ... until neither an earlier file of the
// same submission nor a registered asset of the container holds it.
func (u *Uploader) freePath(ctx context.Context, container string, used map[string]bool, p string) (string, error) {
	ext := path.Ext(p)
	for i := 1; i <= maxPathAttempts; i++ {
		candidate := p
		if i > 1 {
			candidate = strings.TrimSuffix(p, ext) + "-" + strconv.Itoa(i) + ext
		}
		if used[candidate] {
			continue
		}
		taken, err := u.assets.AssetExists(ctx, container, candidate)
		if err != nil {
			return "", fmt.Errorf("%w: asset lookup: %w", common.ErrPersistence, err)
		}
		if !taken {
			used[candidate] = true
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no free path for %q", common.ErrPersistence, p)
}

func detectMimeType(f *UploadedFile, data []byte) string {
	if t := mime.TypeByExtension("." + f.Extension()); t != "" {
		return t
	}
	if f.ContentType != "" {
		return f.ContentType
	}
	return http.DetectContentType(data)
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
