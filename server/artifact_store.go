package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/incadev/generation-service/server/otel"
)

// ArtifactStore manages one kind's capacity-bounded artifact catalog.
//
// Every operation loads the catalog document fresh from the storage
// provider, mutates it, and rewrites it in full, so the document stays the
// sole source of truth across process restarts. Writers within the process
// are serialized by a mutex; concurrent writers in separate processes are
// not protected and can lose updates (single-writer deployment assumption,
// inherited from the service this one replaced).
type ArtifactStore struct {
	kind      ArtifactKind
	capacity  int
	storage   ArtifactStorageProvider
	catalog   CatalogStore
	logger    *zap.Logger
	telemetry otel.OpenTelemetry
	normalize func([]byte) []byte
	publicURL bool
	watermark bool
	now       func() time.Time
	newID     func() string

	mu sync.Mutex
}

// StoreOption customizes an ArtifactStore.
type StoreOption func(*ArtifactStore)

// WithCatalogStore keeps catalog documents in a separate store (for example
// Redis) while artifact files stay on the blob storage provider.
func WithCatalogStore(cs CatalogStore) StoreOption {
	return func(s *ArtifactStore) {
		s.catalog = cs
	}
}

// WithNormalizer runs a best-effort byte transformation on every payload
// before it is written (for example PNG normalization for images).
func WithNormalizer(f func([]byte) []byte) StoreOption {
	return func(s *ArtifactStore) {
		s.normalize = f
	}
}

// WithPublicURLs attaches a public download URL to every saved record.
func WithPublicURLs() StoreOption {
	return func(s *ArtifactStore) {
		s.publicURL = true
	}
}

// WithWatermarkFlag marks every saved record as carrying a provider-embedded
// SynthID watermark.
func WithWatermarkFlag() StoreOption {
	return func(s *ArtifactStore) {
		s.watermark = true
	}
}

// WithTelemetry records save/evict metrics.
func WithTelemetry(t otel.OpenTelemetry) StoreOption {
	return func(s *ArtifactStore) {
		s.telemetry = t
	}
}

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *ArtifactStore) {
		s.now = now
	}
}

// NewArtifactStore creates a store for one artifact kind with the given
// catalog capacity.
func NewArtifactStore(kind ArtifactKind, capacity int, storage ArtifactStorageProvider, logger *zap.Logger, opts ...StoreOption) *ArtifactStore {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &ArtifactStore{
		kind:     kind,
		capacity: capacity,
		storage:  storage,
		catalog:  storage,
		logger:   logger,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Kind returns the store's artifact kind.
func (s *ArtifactStore) Kind() ArtifactKind {
	return s.kind
}

// Capacity returns the store's catalog capacity.
func (s *ArtifactStore) Capacity() int {
	return s.capacity
}

// SaveEncoded decodes a base64 payload and saves it. Returns
// ErrInvalidPayload without touching the catalog when the payload is not
// valid base64.
func (s *ArtifactStore) SaveEncoded(ctx context.Context, encoded, originalPrompt, model string) (ArtifactRecord, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ArtifactRecord{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return s.Save(ctx, data, originalPrompt, model)
}

// Save writes the artifact file, appends a record to the catalog, and
// enforces the capacity bound by evicting the oldest records (and their
// files). The save either fully succeeds or leaves the catalog unchanged.
func (s *ArtifactStore) Save(ctx context.Context, data []byte, originalPrompt, model string) (ArtifactRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.normalize != nil {
		data = s.normalize(data)
	}

	id := s.newID()
	filename := id + s.kind.Ext()

	size, err := s.storage.Store(ctx, s.kind, filename, bytes.NewReader(data))
	if err != nil {
		return ArtifactRecord{}, fmt.Errorf("failed to store %s artifact: %w", s.kind, err)
	}

	record := ArtifactRecord{
		ID:                  id,
		Filename:            filename,
		Path:                s.kind.Dir() + "/" + filename,
		OriginalPrompt:      originalPrompt,
		Model:               model,
		HasSynthIDWatermark: s.watermark,
		Size:                size,
		CreatedAt:           s.now().UTC().Truncate(time.Second),
	}
	if s.publicURL {
		record.URL = s.storage.GetURL(s.kind, id)
	}

	records, err := s.catalog.LoadCatalog(ctx, s.kind)
	if err != nil {
		_ = s.storage.Delete(ctx, s.kind, filename)
		return ArtifactRecord{}, err
	}

	records = append(records, record)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	var evicted []ArtifactRecord
	for len(records) > s.capacity {
		evicted = append(evicted, records[0])
		records = records[1:]
	}

	if err := s.catalog.StoreCatalog(ctx, s.kind, records); err != nil {
		_ = s.storage.Delete(ctx, s.kind, filename)
		return ArtifactRecord{}, err
	}

	for _, old := range evicted {
		if err := s.storage.Delete(ctx, s.kind, old.Filename); err != nil {
			s.logger.Warn("failed to delete evicted artifact file",
				zap.String("kind", string(s.kind)),
				zap.String("id", old.ID),
				zap.Error(err))
		}
		if s.telemetry != nil {
			s.telemetry.RecordArtifactEvicted(ctx, string(s.kind))
		}
		s.logger.Debug("evicted oldest artifact",
			zap.String("kind", string(s.kind)),
			zap.String("id", old.ID),
			zap.Time("created_at", old.CreatedAt))
	}

	if s.telemetry != nil {
		s.telemetry.RecordArtifactSaved(ctx, string(s.kind))
	}
	s.logger.Info("saved artifact",
		zap.String("kind", string(s.kind)),
		zap.String("id", id),
		zap.Int64("size", size),
		zap.Int("catalog_size", len(records)))

	return record, nil
}

// List returns the catalog in ascending creation order. A missing catalog
// document yields an empty slice.
func (s *ArtifactStore) List(ctx context.Context) ([]ArtifactRecord, error) {
	records, err := s.catalog.LoadCatalog(ctx, s.kind)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []ArtifactRecord{}
	}
	return records, nil
}

// GetByID looks up a record by id. A missing id is a valid not-found
// result, not an error.
func (s *ArtifactStore) GetByID(ctx context.Context, id string) (*ArtifactRecord, bool, error) {
	records, err := s.catalog.LoadCatalog(ctx, s.kind)
	if err != nil {
		return nil, false, err
	}
	for i := range records {
		if records[i].ID == id {
			return &records[i], true, nil
		}
	}
	return nil, false, nil
}

// Open opens the artifact file for a cataloged record. Returns ErrNotFound
// for an unknown id and ErrFileMissing when the record exists but its file
// is gone from storage.
func (s *ArtifactStore) Open(ctx context.Context, id string) (io.ReadCloser, *ArtifactRecord, error) {
	record, found, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, ErrNotFound
	}

	reader, err := s.storage.Retrieve(ctx, s.kind, record.Filename)
	if err != nil {
		return nil, nil, err
	}

	return reader, record, nil
}
