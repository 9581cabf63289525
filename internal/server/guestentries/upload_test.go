package guestentries

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/duncanmcclean/guest-entries/internal/common"
	"github.com/duncanmcclean/guest-entries/internal/logging"
	"github.com/duncanmcclean/guest-entries/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uploadFixture struct {
	uploader *Uploader
	disk     *memDisk
	assets   *fakeAssets
}

func newUploadFixture(t *testing.T) *uploadFixture {
	t.Helper()
	disk := newMemDisk()
	assets := &fakeAssets{}
	schema := &fakeSchema{containers: map[string]models.AssetContainer{
		"main": {Handle: "main", Disk: "local", Path: "assets"},
		"root": {Handle: "root", Disk: "local"},
	}}
	u := NewUploader(schema, fakeDisks{"local": disk}, assets, []string{"jpg", "png", ".SVG", "pdf"}, logging.Nop())
	u.now = func() time.Time { return time.Unix(1700000000, 0) }
	n := 0
	u.newID = func() string { n++; return "asset-" + string(rune('0'+n)) }
	return &uploadFixture{uploader: u, disk: disk, assets: assets}
}

func assetsField(config map[string]any) models.Field {
	return models.Field{Handle: "photo", Kind: models.FieldAssets, Type: "assets", Config: config}
}

func TestUploader_SingleFile(t *testing.T) {
	fx := newUploadFixture(t)
	field := assetsField(map[string]any{"container": "main", "folder": "/uploads/"})

	got, err := fx.uploader.Upload(context.Background(), UploadContext{}, field, "photo",
		&UploadedFile{Filename: `C:\tmp\My Photo.JPG`, Data: []byte("jpeg")})
	require.NoError(t, err)

	assert.Equal(t, "uploads/1700000000-my-photo.jpg", got)
	assert.Equal(t, []byte("jpeg"), fx.disk.files["assets/uploads/1700000000-my-photo.jpg"])
	assert.Equal(t, "image/jpeg", fx.disk.types["assets/uploads/1700000000-my-photo.jpg"])

	require.Len(t, fx.assets.assets, 1)
	a := fx.assets.assets[0]
	assert.Equal(t, "main", a.Container)
	assert.Equal(t, "uploads/1700000000-my-photo.jpg", a.Path)
	assert.EqualValues(t, 4, a.Size)
}

func TestUploader_ArityAndExistingPaths(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing uploaded", func(t *testing.T) {
		fx := newUploadFixture(t)
		got, err := fx.uploader.Upload(ctx, UploadContext{}, assetsField(nil), "photo", nil)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("one file with max_items above one is a list", func(t *testing.T) {
		fx := newUploadFixture(t)
		field := assetsField(map[string]any{"container": "root", "max_items": 3})
		got, err := fx.uploader.Upload(ctx, UploadContext{}, field, "photo",
			[]any{&UploadedFile{Filename: "a.png", Data: []byte("p")}})
		require.NoError(t, err)
		assert.Equal(t, []string{"1700000000-a.png"}, got)
		assert.Contains(t, fx.disk.files, "1700000000-a.png")
	})

	t.Run("existing paths keep their position", func(t *testing.T) {
		fx := newUploadFixture(t)
		field := assetsField(map[string]any{"container": "main"})
		got, err := fx.uploader.Upload(ctx, UploadContext{}, field, "photo", []any{
			&UploadedFile{Filename: "a.png", Data: []byte("1")},
			"/old/b.png",
			&UploadedFile{Filename: "a.png", Data: []byte("2")},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"1700000000-a.png", "old/b.png", "1700000000-a-2.png"}, got)
		assert.Len(t, fx.assets.assets, 2)
	})
}

func TestUploader_Configuration(t *testing.T) {
	ctx := context.Background()
	file := &UploadedFile{Filename: "a.png", Data: []byte("p")}

	for name, config := range map[string]map[string]any{
		"no container":      {},
		"unknown container": {"container": "nope"},
	} {
		t.Run(name, func(t *testing.T) {
			fx := newUploadFixture(t)
			_, err := fx.uploader.Upload(ctx, UploadContext{}, assetsField(config), "photo", file)
			assert.True(t, errors.Is(err, common.ErrConfiguration), "got %v", err)
			assert.Empty(t, fx.disk.files)
		})
	}
}

func TestUploader_Validate(t *testing.T) {
	fx := newUploadFixture(t)

	tests := []struct {
		name   string
		config map[string]any
		raw    any
		ok     bool
	}{
		{"allowed", nil, &UploadedFile{Filename: "a.PNG"}, true},
		{"disallowed extension", nil, &UploadedFile{Filename: "shell.php"}, false},
		{"no extension", nil, &UploadedFile{Filename: "README"}, false},
		{"field narrows the list", map[string]any{"allowed_extensions": []any{"pdf"}}, &UploadedFile{Filename: "a.png"}, false},
		{"field cannot widen the list", map[string]any{"allowed_extensions": []any{"exe"}}, &UploadedFile{Filename: "a.exe"}, false},
		{"too large", map[string]any{"max_filesize": 1}, &UploadedFile{Filename: "a.png", Data: make([]byte, 2048)}, false},
		{"too many", map[string]any{"max_items": 1}, []any{"x.png", "y.png"}, false},
		{"existing paths are not checked", nil, []any{"old/x.exe"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fx.uploader.Validate(assetsField(tt.config), "photo", tt.raw)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var verr *common.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Contains(t, verr.Fields, "photo")
		})
	}
}

func TestUploader_DisallowedFileStoresNothing(t *testing.T) {
	fx := newUploadFixture(t)
	field := assetsField(map[string]any{"container": "main"})

	_, err := fx.uploader.Upload(context.Background(), UploadContext{}, field, "photo", []any{
		&UploadedFile{Filename: "ok.png", Data: []byte("p")},
		&UploadedFile{Filename: "bad.html", Data: []byte("<script>")},
	})
	assert.True(t, errors.Is(err, common.ErrValidation))
	assert.Empty(t, fx.disk.files)
	assert.Empty(t, fx.assets.assets)
}

func TestUploader_SanitizesSVG(t *testing.T) {
	fx := newUploadFixture(t)
	field := assetsField(map[string]any{"container": "root"})
	svg := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 1 1"><script>alert(1)</script><rect width="1" height="1" onload="alert(2)"/></svg>`

	got, err := fx.uploader.Upload(context.Background(), UploadContext{}, field, "photo",
		&UploadedFile{Filename: "logo.svg", Data: []byte(svg)})
	require.NoError(t, err)

	stored := string(fx.disk.files[got.(string)])
	assert.NotContains(t, stored, "<script")
	assert.NotContains(t, stored, "onload")
	assert.Contains(t, stored, `viewBox="0 0 1 1"`)
	assert.Equal(t, "image/svg+xml", fx.disk.types[got.(string)])
}

func TestUploader_DynamicFolder(t *testing.T) {
	entry := models.NewEntry("Entry-42", "comments", "default")
	entry.Slug = "stored-slug"
	entry.Data["author"] = "Ada L"

	tests := []struct {
		name   string
		config map[string]any
		uc     UploadContext
		want   string
	}{
		{"explicit folder wins", map[string]any{"folder": "fixed", "dynamic": "id"}, UploadContext{Entry: entry}, "fixed"},
		{"id", map[string]any{"dynamic": "id"}, UploadContext{Entry: entry}, "entry-42"},
		{"submitted slug", map[string]any{"dynamic": "slug"}, UploadContext{Entry: entry, Slug: "new-slug"}, "new-slug"},
		{"entry slug", map[string]any{"dynamic": "slug"}, UploadContext{Entry: entry}, "stored-slug"},
		{"author", map[string]any{"dynamic": "author"}, UploadContext{Entry: entry}, "ada-l"},
		{"first available", map[string]any{"dynamic": true}, UploadContext{Entry: &models.Entry{Slug: "s"}}, "s"},
		{"root", nil, UploadContext{Entry: entry}, ""},
	}
	fx := newUploadFixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fx.uploader.folder(tt.uc, assetsField(tt.config)))
		})
	}
}

func TestUploader_NeverOverwritesRegisteredAsset(t *testing.T) {
	ctx := context.Background()
	field := assetsField(map[string]any{"container": "root"})

	t.Run("second submission gets a suffix", func(t *testing.T) {
		fx := newUploadFixture(t)
		first, err := fx.uploader.Upload(ctx, UploadContext{}, field, "photo", &UploadedFile{Filename: "a.png", Data: []byte("first")})
		require.NoError(t, err)
		second, err := fx.uploader.Upload(ctx, UploadContext{}, field, "photo", &UploadedFile{Filename: "a.png", Data: []byte("second")})
		require.NoError(t, err)

		assert.Equal(t, "1700000000-a.png", first)
		assert.Equal(t, "1700000000-a-2.png", second)
		assert.Equal(t, []byte("first"), fx.disk.files["1700000000-a.png"])
		assert.Equal(t, []byte("second"), fx.disk.files["1700000000-a-2.png"])
	})

	t.Run("lookup failure stores nothing", func(t *testing.T) {
		fx := newUploadFixture(t)
		fx.assets.existsErr = errors.New("db down")
		_, err := fx.uploader.Upload(ctx, UploadContext{}, field, "photo", &UploadedFile{Filename: "a.png", Data: []byte("x")})
		assert.True(t, errors.Is(err, common.ErrPersistence), "got %v", err)
		assert.Empty(t, fx.disk.files)
	})
}
