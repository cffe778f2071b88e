package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const catalogFilename = "metadata.json"

// FilesystemArtifactStorage implements ArtifactStorageProvider using the local filesystem.
// Each kind gets its own directory under basePath holding the artifact files
// plus a metadata.json catalog document.
type FilesystemArtifactStorage struct {
	basePath string
	baseURL  string
}

// NewFilesystemArtifactStorage creates a new filesystem-based artifact storage provider
func NewFilesystemArtifactStorage(basePath, baseURL string) (*FilesystemArtifactStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	baseURL = strings.TrimSuffix(baseURL, "/")

	return &FilesystemArtifactStorage{
		basePath: basePath,
		baseURL:  baseURL,
	}, nil
}

// Store writes an artifact file to the kind's directory
func (fs *FilesystemArtifactStorage) Store(ctx context.Context, kind ArtifactKind, filename string, data io.Reader) (int64, error) {
	filename = sanitizePath(filename)
	if filename == "" {
		return 0, fmt.Errorf("invalid artifact filename")
	}

	dir := filepath.Join(fs.basePath, kind.Dir())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create %s directory: %w", kind.Dir(), err)
	}

	filePath := filepath.Join(dir, filename)
	file, err := os.Create(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to create artifact file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	written, err := io.Copy(file, data)
	if err != nil {
		_ = os.Remove(filePath)
		return 0, fmt.Errorf("failed to write artifact data: %w", err)
	}

	return written, nil
}

// Retrieve opens an artifact file from the kind's directory
func (fs *FilesystemArtifactStorage) Retrieve(ctx context.Context, kind ArtifactKind, filename string) (io.ReadCloser, error) {
	filename = sanitizePath(filename)
	if filename == "" {
		return nil, fmt.Errorf("invalid artifact filename")
	}

	file, err := os.Open(filepath.Join(fs.basePath, kind.Dir(), filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileMissing
		}
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}

	return file, nil
}

// Delete removes an artifact file; a missing file is not an error
func (fs *FilesystemArtifactStorage) Delete(ctx context.Context, kind ArtifactKind, filename string) error {
	filename = sanitizePath(filename)
	if filename == "" {
		return fmt.Errorf("invalid artifact filename")
	}

	err := os.Remove(filepath.Join(fs.basePath, kind.Dir(), filename))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}

	return nil
}

// Exists checks if an artifact file exists
func (fs *FilesystemArtifactStorage) Exists(ctx context.Context, kind ArtifactKind, filename string) (bool, error) {
	filename = sanitizePath(filename)
	if filename == "" {
		return false, fmt.Errorf("invalid artifact filename")
	}

	_, err := os.Stat(filepath.Join(fs.basePath, kind.Dir(), filename))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check artifact existence: %w", err)
	}
	return true, nil
}

// LoadCatalog reads the kind's metadata.json document
func (fs *FilesystemArtifactStorage) LoadCatalog(ctx context.Context, kind ArtifactKind) ([]ArtifactRecord, error) {
	raw, err := os.ReadFile(filepath.Join(fs.basePath, kind.Dir(), catalogFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s catalog: %w", kind, err)
	}

	var records []ArtifactRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s catalog: %w", kind, err)
	}

	return records, nil
}

// StoreCatalog rewrites the kind's metadata.json document in full
func (fs *FilesystemArtifactStorage) StoreCatalog(ctx context.Context, kind ArtifactKind, records []ArtifactRecord) error {
	dir := filepath.Join(fs.basePath, kind.Dir())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind.Dir(), err)
	}

	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s catalog: %w", kind, err)
	}

	if err := os.WriteFile(filepath.Join(dir, catalogFilename), raw, 0644); err != nil {
		return fmt.Errorf("failed to write %s catalog: %w", kind, err)
	}

	return nil
}

// GetURL returns the public download URL for an artifact
func (fs *FilesystemArtifactStorage) GetURL(kind ArtifactKind, id string) string {
	return fmt.Sprintf("%s/generation/%s/%s", fs.baseURL, kind, sanitizePath(id))
}

// Close cleans up the filesystem storage (no-op for filesystem)
func (fs *FilesystemArtifactStorage) Close() error {
	return nil
}

// sanitizePath removes dangerous characters and path traversal attempts
func sanitizePath(path string) string {
	path = strings.ReplaceAll(path, "/", "")
	path = strings.ReplaceAll(path, "\\", "")
	path = strings.ReplaceAll(path, "..", "")
	path = strings.TrimSpace(path)
	return path
}
