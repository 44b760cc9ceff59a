package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/visionpointmarketing/troy-sandbox/internal/logger"
	"github.com/visionpointmarketing/troy-sandbox/internal/models"
	"github.com/visionpointmarketing/troy-sandbox/internal/storage"
)

// importConcurrency bounds parallel asset writes during import.
const importConcurrency = 8

// ErrImportRejected is returned when the store refuses a decoded document.
var ErrImportRejected = errors.New("document rejected")

// FormatError reports a malformed import envelope. Nothing was changed.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid document: %s: %v", e.Reason, e.Err)
	}
	return "invalid document: " + e.Reason
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Codec converts a store and its assets to and from the JSON export envelope.
type Codec struct {
	store  *DocumentStore
	assets storage.AssetStore
	log    *logger.Logger
}

func NewCodec(store *DocumentStore, assets storage.AssetStore, log *logger.Logger) *Codec {
	if log == nil {
		log = logger.Nop()
	}
	return &Codec{store: store, assets: assets, log: log.With("component", "codec")}
}

// Export snapshots the document and attaches every stored asset. An asset
// store failure degrades to an empty image map.
func (c *Codec) Export(ctx context.Context) models.Envelope {
	env := models.Envelope{
		Document: c.store.ToDocument(),
		Images:   map[string]string{},
	}
	images, err := c.assets.GetAll(ctx)
	if err != nil {
		c.log.Warn("exporting without images", "error", err)
		return env
	}
	if images != nil {
		env.Images = images
	}
	return env
}

// ExportJSON returns the indented export file.
func (c *Codec) ExportJSON(ctx context.Context) ([]byte, error) {
	env := c.Export(ctx)
	return json.MarshalIndent(env, "", "  ")
}

// Import replaces assets and document from an export file.
//
// The envelope is fully decoded before anything changes, so a FormatError
// leaves both untouched. When the file carries images, the asset store is
// cleared and repopulated before the document is replaced; a later failure
// does not restore the previous assets.
func (c *Codec) Import(ctx context.Context, data []byte) error {
	doc, images, err := decodeEnvelope(data)
	if err != nil {
		return err
	}

	if images != nil {
		if err := c.replaceAssets(ctx, images); err != nil {
			return err
		}
	}

	if !c.store.FromDocument(doc) {
		return ErrImportRejected
	}
	c.log.Info("document imported", "sections", len(doc.Sections), "images", len(images))
	return nil
}

func (c *Codec) replaceAssets(ctx context.Context, images map[string]string) error {
	if err := c.assets.Clear(ctx); err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(importConcurrency)
	for id, payload := range images {
		g.Go(func() error {
			_, err := c.assets.Put(gctx, id, payload)
			return err
		})
	}
	return g.Wait()
}

func decodeEnvelope(data []byte) (*models.Document, map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, &FormatError{Reason: "not a JSON object", Err: err}
	}

	sectionsRaw := bytes.TrimSpace(raw["sections"])
	if len(sectionsRaw) == 0 || sectionsRaw[0] != '[' {
		return nil, nil, &FormatError{Reason: "sections must be an array"}
	}

	doc := &models.Document{Version: models.DocumentVersion}
	if err := json.Unmarshal(sectionsRaw, &doc.Sections); err != nil {
		return nil, nil, &FormatError{Reason: "malformed sections", Err: err}
	}
	if v, ok := raw["version"]; ok {
		if err := json.Unmarshal(v, &doc.Version); err != nil {
			return nil, nil, &FormatError{Reason: "malformed version", Err: err}
		}
	}

	var images map[string]string
	if imagesRaw := bytes.TrimSpace(raw["images"]); len(imagesRaw) > 0 && !bytes.Equal(imagesRaw, []byte("null")) {
		if err := json.Unmarshal(imagesRaw, &images); err != nil {
			return nil, nil, &FormatError{Reason: "malformed images", Err: err}
		}
		if images == nil {
			images = map[string]string{}
		}
	}
	return doc, images, nil
}
