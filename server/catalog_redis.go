package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/incadev/generation-service/server/config"
)

const catalogKeyPrefix = "generation:catalog:"

// RedisCatalogStore implements CatalogStore using Redis. Only the metadata
// catalog documents live in Redis; artifact files stay on the configured
// blob storage provider.
type RedisCatalogStore struct {
	client *redis.Client
	logger *zap.Logger
}

var _ CatalogStore = (*RedisCatalogStore)(nil)

// NewRedisCatalogStore creates a Redis-backed catalog document store
func NewRedisCatalogStore(ctx context.Context, cfg config.CatalogStoreConfig, logger *zap.Logger) (*RedisCatalogStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("URL is required for the redis catalog provider")
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	if dbStr, exists := cfg.Options["db"]; exists {
		if db, err := strconv.Atoi(dbStr); err == nil {
			opt.DB = db
		}
	}

	if timeoutStr, exists := cfg.Options["timeout"]; exists {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			opt.DialTimeout = timeout
			opt.ReadTimeout = timeout
			opt.WriteTimeout = timeout
		}
	}

	if username, exists := cfg.Credentials["username"]; exists {
		opt.Username = username
	}
	if password, exists := cfg.Credentials["password"]; exists {
		opt.Password = password
	}

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("connected to Redis for catalog documents",
		zap.String("addr", opt.Addr),
		zap.Int("db", opt.DB))

	return &RedisCatalogStore{
		client: client,
		logger: logger,
	}, nil
}

// LoadCatalog reads the kind's catalog document from Redis
func (r *RedisCatalogStore) LoadCatalog(ctx context.Context, kind ArtifactKind) ([]ArtifactRecord, error) {
	raw, err := r.client.Get(ctx, catalogKeyPrefix+string(kind)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s catalog from Redis: %w", kind, err)
	}

	var records []ArtifactRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s catalog: %w", kind, err)
	}

	return records, nil
}

// StoreCatalog rewrites the kind's catalog document in Redis
func (r *RedisCatalogStore) StoreCatalog(ctx context.Context, kind ArtifactKind, records []ArtifactRecord) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode %s catalog: %w", kind, err)
	}

	if err := r.client.Set(ctx, catalogKeyPrefix+string(kind), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to store %s catalog in Redis: %w", kind, err)
	}

	return nil
}

// Close closes the Redis connection
func (r *RedisCatalogStore) Close() error {
	return r.client.Close()
}
