package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/visionpointmarketing/troy-sandbox/internal/logger"
	"github.com/visionpointmarketing/troy-sandbox/internal/storage"
	"github.com/visionpointmarketing/troy-sandbox/internal/validation"
)

var ErrSectionNotFound = errors.New("section not found")

// AssetKey is the asset id an image field of a section is stored under.
func AssetKey(sectionID, field string) string {
	return sectionID + "-" + field
}

// Images stores image payloads and commits them into section content.
type Images struct {
	store    *DocumentStore
	assets   storage.AssetStore
	maxBytes int64
	log      *logger.Logger
}

func NewImages(store *DocumentStore, assets storage.AssetStore, maxBytes int64, log *logger.Logger) *Images {
	if maxBytes <= 0 {
		maxBytes = validation.MaxImageSize
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Images{store: store, assets: assets, maxBytes: maxBytes, log: log.With("component", "images")}
}

// Attach validates dataURL, stores it under AssetKey(sectionID, field) and
// then sets it as the field value. The document is untouched when storing fails.
func (im *Images) Attach(ctx context.Context, sectionID, field, dataURL string) (string, error) {
	if _, ok := im.store.Section(sectionID); !ok {
		return "", ErrSectionNotFound
	}
	if err := validation.ValidateFieldKey(field); err != nil {
		return "", err
	}
	if _, err := validation.ValidateDataURL(dataURL, im.maxBytes); err != nil {
		return "", err
	}

	key := AssetKey(sectionID, field)
	if _, err := im.assets.Put(ctx, key, dataURL); err != nil {
		im.log.Error("storing image failed", "asset_id", key, "error", err)
		return "", err
	}

	im.store.UpdateSection(sectionID, field, dataURL)
	im.log.Debug("image attached", "asset_id", key, "image", dataURL)
	return key, nil
}

// AttachUpload reads a multipart image upload and attaches it as a data URL.
func (im *Images) AttachUpload(ctx context.Context, sectionID, field string, file multipart.File, header *multipart.FileHeader) (string, error) {
	if err := validation.ValidateUpload(header, im.maxBytes); err != nil {
		return "", err
	}
	data, err := io.ReadAll(io.LimitReader(file, im.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > im.maxBytes {
		return "", validation.ErrFileTooLarge
	}
	return im.Attach(ctx, sectionID, field, validation.EncodeDataURL(validation.ContentType(header), data))
}
