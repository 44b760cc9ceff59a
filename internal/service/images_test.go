package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionpointmarketing/troy-sandbox/internal/storage"
	"github.com/visionpointmarketing/troy-sandbox/internal/validation"
)

func TestAttachStoresThenCommits(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	assets := storage.NewMemoryStore()
	images := NewImages(store, assets, 0, nil)
	a := store.AddSection("hero", heroDefaults, heroFields, nil)

	key, err := images.Attach(ctx, a.ID, "backgroundImage", pixel)
	require.NoError(t, err)
	assert.Equal(t, a.ID+"-backgroundImage", key)

	payload, found, err := assets.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, pixel, payload)

	got, _ := store.Section(a.ID)
	assert.Equal(t, pixel, got.Content["backgroundImage"])

	require.True(t, store.Undo(), "attaching is one history step")
	got, _ = store.Section(a.ID)
	assert.Equal(t, heroDefaults["backgroundImage"], got.Content["backgroundImage"])
}

func TestAttachRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	assets := storage.NewMemoryStore()
	a := store.AddSection("hero", heroDefaults, heroFields, nil)

	_, err := NewImages(store, assets, 0, nil).Attach(ctx, "missing", "backgroundImage", pixel)
	assert.ErrorIs(t, err, ErrSectionNotFound)

	_, err = NewImages(store, assets, 0, nil).Attach(ctx, a.ID, "bad key", pixel)
	assert.ErrorIs(t, err, validation.ErrInvalidField)

	_, err = NewImages(store, assets, 0, nil).Attach(ctx, a.ID, "backgroundImage", "https://example.com/x.png")
	assert.ErrorIs(t, err, validation.ErrInvalidDataURL)

	_, err = NewImages(store, assets, 0, nil).Attach(ctx, a.ID, "backgroundImage", "data:text/html;base64,PGI+")
	assert.ErrorIs(t, err, validation.ErrInvalidFileType)

	_, err = NewImages(store, assets, 16, nil).Attach(ctx, a.ID, "backgroundImage", pixel)
	assert.ErrorIs(t, err, validation.ErrFileTooLarge)

	all, err := assets.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, 2, store.HistoryDepth())
	got, _ := store.Section(a.ID)
	assert.Equal(t, heroDefaults["backgroundImage"], got.Content["backgroundImage"])
}

func TestAttachStorageFailureKeepsDocument(t *testing.T) {
	store := newTestStore()
	a := store.AddSection("hero", heroDefaults, heroFields, nil)
	depth := store.HistoryDepth()
	assets := &brokenStore{AssetStore: storage.NewMemoryStore(), fail: map[string]bool{"put": true}}

	_, err := NewImages(store, assets, 0, nil).Attach(context.Background(), a.ID, "backgroundImage", pixel)
	require.ErrorIs(t, err, errBackend)

	got, _ := store.Section(a.ID)
	assert.Equal(t, heroDefaults["backgroundImage"], got.Content["backgroundImage"])
	assert.Equal(t, depth, store.HistoryDepth())
}

func uploadFile(t *testing.T, filename, contentType string, data []byte) (multipart.File, *multipart.FileHeader) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	header := form.File["file"][0]
	file, err := header.Open()
	require.NoError(t, err)
	t.Cleanup(func() { _ = file.Close() })
	return file, header
}

func TestAttachUpload(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	assets := storage.NewMemoryStore()
	images := NewImages(store, assets, 0, nil)
	a := store.AddSection("hero", heroDefaults, heroFields, nil)

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(pixel, "data:image/png;base64,"))
	require.NoError(t, err)

	file, header := uploadFile(t, "campus.png", "", raw)
	key, err := images.AttachUpload(ctx, a.ID, "backgroundImage", file, header)
	require.NoError(t, err)

	got, _ := store.Section(a.ID)
	assert.Equal(t, pixel, got.Content["backgroundImage"])
	payload, _, err := assets.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, pixel, payload)

	file, header = uploadFile(t, "notes.txt", "text/plain", []byte("hello"))
	_, err = images.AttachUpload(ctx, a.ID, "backgroundImage", file, header)
	assert.ErrorIs(t, err, validation.ErrInvalidFileType)
}
