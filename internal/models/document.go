package models

import "time"

// DocumentVersion is the envelope version written on export.
const DocumentVersion = 1

// Document is the versioned envelope of a section sequence.
type Document struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Sections   []Section `json:"sections"`
}

// Envelope is the export file: the document plus every stored asset,
// keyed by asset id.
type Envelope struct {
	Document
	Images map[string]string `json:"images"`
}
