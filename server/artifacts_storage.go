package server

import (
	"context"
	"io"
	"time"
)

// ArtifactKind identifies one capacity-bounded artifact catalog.
type ArtifactKind string

const (
	ArtifactKindImage ArtifactKind = "image"
	ArtifactKindAudio ArtifactKind = "audio"
	ArtifactKindVideo ArtifactKind = "video"
)

// Ext returns the canonical file extension for the kind.
func (k ArtifactKind) Ext() string {
	switch k {
	case ArtifactKindImage:
		return ".png"
	case ArtifactKindAudio:
		return ".pcm"
	case ArtifactKindVideo:
		return ".mp4"
	default:
		return ".bin"
	}
}

// Dir returns the storage directory name for the kind.
func (k ArtifactKind) Dir() string {
	switch k {
	case ArtifactKindImage:
		return "images"
	case ArtifactKindAudio:
		return "audios"
	case ArtifactKindVideo:
		return "videos"
	default:
		return string(k)
	}
}

// ArtifactRecord is one entry in a kind's catalog. Records are ordered by
// CreatedAt ascending; CreatedAt is the sole ordering key and ties keep
// their original insertion order.
type ArtifactRecord struct {
	ID                  string    `json:"id"`
	Filename            string    `json:"filename"`
	Path                string    `json:"path"`
	URL                 string    `json:"url,omitempty"`
	OriginalPrompt      string    `json:"original_prompt"`
	Model               string    `json:"model"`
	HasSynthIDWatermark bool      `json:"has_synthid_watermark,omitempty"`
	Size                int64     `json:"size"`
	CreatedAt           time.Time `json:"created_at"`
}

// CatalogStore persists the per-kind metadata document. The document is the
// sole source of truth for a catalog: every operation loads it fresh,
// mutates, and rewrites it in full.
type CatalogStore interface {
	// LoadCatalog returns the stored catalog for a kind, or a nil slice
	// when no catalog document exists yet
	LoadCatalog(ctx context.Context, kind ArtifactKind) ([]ArtifactRecord, error)

	// StoreCatalog rewrites the catalog document for a kind
	StoreCatalog(ctx context.Context, kind ArtifactKind, records []ArtifactRecord) error
}

// ArtifactStorageProvider abstracts where artifact files and catalog
// documents live (local filesystem, MinIO, ...).
type ArtifactStorageProvider interface {
	CatalogStore

	// Store writes an artifact file and returns the number of bytes written
	Store(ctx context.Context, kind ArtifactKind, filename string, data io.Reader) (int64, error)

	// Retrieve opens an artifact file for reading
	Retrieve(ctx context.Context, kind ArtifactKind, filename string) (io.ReadCloser, error)

	// Delete removes an artifact file; deleting a missing file is not an error
	Delete(ctx context.Context, kind ArtifactKind, filename string) error

	// Exists checks if an artifact file exists
	Exists(ctx context.Context, kind ArtifactKind, filename string) (bool, error)

	// GetURL returns the public URL for downloading an artifact
	GetURL(kind ArtifactKind, id string) string

	// Close releases provider resources
	Close() error
}
