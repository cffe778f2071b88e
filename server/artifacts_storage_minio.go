package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/incadev/generation-service/server/config"
)

// MinIOArtifactStorage implements ArtifactStorageProvider using MinIO/S3.
// Artifact files are stored as objects under "{kind}/{filename}" and each
// kind's catalog document under "{kind}/metadata.json".
type MinIOArtifactStorage struct {
	client     *minio.Client
	bucketName string
	baseURL    string
}

// NewMinIOArtifactStorage creates a new MinIO-based artifact storage provider
func NewMinIOArtifactStorage(cfg *config.MinIOConfig, baseURL string) (*MinIOArtifactStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	storage := &MinIOArtifactStorage{
		client:     client,
		bucketName: cfg.BucketName,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return storage, nil
}

func (m *MinIOArtifactStorage) objectName(kind ArtifactKind, filename string) string {
	return fmt.Sprintf("%s/%s", kind.Dir(), filename)
}

// Store stores an artifact file in MinIO
func (m *MinIOArtifactStorage) Store(ctx context.Context, kind ArtifactKind, filename string, data io.Reader) (int64, error) {
	filename = sanitizePath(filename)
	if filename == "" {
		return 0, fmt.Errorf("invalid artifact filename")
	}

	info, err := m.client.PutObject(ctx, m.bucketName, m.objectName(kind, filename), data, -1, minio.PutObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to store artifact in MinIO: %w", err)
	}

	return info.Size, nil
}

// Retrieve retrieves an artifact file from MinIO
func (m *MinIOArtifactStorage) Retrieve(ctx context.Context, kind ArtifactKind, filename string) (io.ReadCloser, error) {
	filename = sanitizePath(filename)
	if filename == "" {
		return nil, fmt.Errorf("invalid artifact filename")
	}

	object, err := m.client.GetObject(ctx, m.bucketName, m.objectName(kind, filename), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve artifact from MinIO: %w", err)
	}

	// GetObject is lazy; verify the object is actually readable
	if _, err := object.Stat(); err != nil {
		_ = object.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrFileMissing
		}
		return nil, fmt.Errorf("failed to stat artifact in MinIO: %w", err)
	}

	return object, nil
}

// Delete removes an artifact file from MinIO; a missing object is not an error
func (m *MinIOArtifactStorage) Delete(ctx context.Context, kind ArtifactKind, filename string) error {
	filename = sanitizePath(filename)
	if filename == "" {
		return fmt.Errorf("invalid artifact filename")
	}

	err := m.client.RemoveObject(ctx, m.bucketName, m.objectName(kind, filename), minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("failed to delete artifact from MinIO: %w", err)
	}

	return nil
}

// Exists checks if an artifact file exists in MinIO
func (m *MinIOArtifactStorage) Exists(ctx context.Context, kind ArtifactKind, filename string) (bool, error) {
	filename = sanitizePath(filename)
	if filename == "" {
		return false, fmt.Errorf("invalid artifact filename")
	}

	_, err := m.client.StatObject(ctx, m.bucketName, m.objectName(kind, filename), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to check artifact existence: %w", err)
	}
	return true, nil
}

// LoadCatalog reads the kind's catalog document object
func (m *MinIOArtifactStorage) LoadCatalog(ctx context.Context, kind ArtifactKind) ([]ArtifactRecord, error) {
	object, err := m.client.GetObject(ctx, m.bucketName, m.objectName(kind, catalogFilename), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve %s catalog from MinIO: %w", kind, err)
	}
	defer func() {
		_ = object.Close()
	}()

	raw, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s catalog from MinIO: %w", kind, err)
	}

	var records []ArtifactRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s catalog: %w", kind, err)
	}

	return records, nil
}

// StoreCatalog rewrites the kind's catalog document object in full
func (m *MinIOArtifactStorage) StoreCatalog(ctx context.Context, kind ArtifactKind, records []ArtifactRecord) error {
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s catalog: %w", kind, err)
	}

	_, err = m.client.PutObject(ctx, m.bucketName, m.objectName(kind, catalogFilename),
		bytes.NewReader(raw), int64(len(raw)), minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("failed to store %s catalog in MinIO: %w", kind, err)
	}

	return nil
}

// GetURL returns the public download URL for an artifact
func (m *MinIOArtifactStorage) GetURL(kind ArtifactKind, id string) string {
	return fmt.Sprintf("%s/generation/%s/%s", m.baseURL, kind, sanitizePath(id))
}

// Close cleans up the MinIO storage (no-op, connections are pooled)
func (m *MinIOArtifactStorage) Close() error {
	return nil
}
