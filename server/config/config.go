package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all application configuration
type Config struct {
	ServiceName     string          // Build-time metadata, not configurable via environment
	ServiceVersion  string          // Build-time metadata, not configurable via environment
	Environment     string          `env:"ENVIRONMENT,default=production" description:"Deployment environment (local, staging, production)"`
	Debug           bool            `env:"DEBUG,default=false"`
	ProviderConfig  ProviderConfig  `env:""`
	ServerConfig    ServerConfig    `env:",prefix=SERVER_"`
	ArtifactsConfig ArtifactsConfig `env:",prefix=ARTIFACTS_"`
	TelemetryConfig TelemetryConfig `env:",prefix=TELEMETRY_"`
}

// ProviderConfig holds configuration for the upstream generative API.
// The environment variable names are kept flat (no prefix) for parity with
// existing deployments that already export GOOGLE_API_KEY / GEMINI_MODEL.
type ProviderConfig struct {
	APIKey       string        `env:"GOOGLE_API_KEY" description:"Google generative API key"`
	GeminiAPIKey string        `env:"GEMINI_API_KEY" description:"Alternative name for the API key, used when GOOGLE_API_KEY is unset"`
	BaseURL      string        `env:"GOOGLE_BASE_URL,default=https://generativelanguage.googleapis.com/v1beta" description:"Base URL for the generative API"`
	Model        string        `env:"GEMINI_MODEL" description:"Default text/audio/video model, can be overridden per request"`
	ImageModel   string        `env:"IMAGEN_MODEL,default=imagen-4.0-generate-001" description:"Image generation model"`
	Timeout      time.Duration `env:"GEMINI_TIMEOUT,default=300s" description:"Upstream request timeout"`
}

// ResolveAPIKey returns the configured API key, accepting either the
// GOOGLE_API_KEY or GEMINI_API_KEY environment variable name.
func (p ProviderConfig) ResolveAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	return p.GeminiAPIKey
}

// TLSConfig holds TLS configuration
type TLSConfig struct {
	Enable   bool   `env:"ENABLE,default=false"`
	CertPath string `env:"CERT_PATH" description:"TLS certificate path"`
	KeyPath  string `env:"KEY_PATH" description:"TLS key path"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                  string        `env:"PORT,default=8080" description:"HTTP server port"`
	ReadTimeout           time.Duration `env:"READ_TIMEOUT,default=120s" description:"HTTP server read timeout"`
	WriteTimeout          time.Duration `env:"WRITE_TIMEOUT,default=320s" description:"HTTP server write timeout, must cover the upstream timeout"`
	IdleTimeout           time.Duration `env:"IDLE_TIMEOUT,default=120s" description:"HTTP server idle timeout"`
	DisableHealthcheckLog bool          `env:"DISABLE_HEALTHCHECK_LOG,default=true" description:"Disable logging for health check requests"`
	TLSConfig             TLSConfig     `env:",prefix=TLS_"`
}

// ArtifactsConfig holds artifact storage configuration
type ArtifactsConfig struct {
	Provider      string             `env:"PROVIDER,default=filesystem" description:"Storage provider (filesystem, minio)"`
	BasePath      string             `env:"BASE_PATH,default=./storage" description:"Base path for filesystem storage"`
	BaseURL       string             `env:"BASE_URL" description:"Public base URL for artifact downloads. If not set, will be auto-generated from server config"`
	ImageCapacity int                `env:"IMAGE_CAPACITY,default=50" description:"Maximum retained image artifacts"`
	AudioCapacity int                `env:"AUDIO_CAPACITY,default=20" description:"Maximum retained audio artifacts"`
	VideoCapacity int                `env:"VIDEO_CAPACITY,default=10" description:"Maximum retained video artifacts"`
	MinIOConfig   MinIOConfig        `env:",prefix=MINIO_" description:"MinIO settings, used when provider is minio"`
	CatalogConfig CatalogStoreConfig `env:",prefix=CATALOG_" description:"Catalog document store settings"`
}

// MinIOConfig holds MinIO/S3 storage configuration
type MinIOConfig struct {
	Endpoint   string `env:"ENDPOINT" description:"MinIO endpoint URL"`
	AccessKey  string `env:"ACCESS_KEY" description:"MinIO access key"`
	SecretKey  string `env:"SECRET_KEY" description:"MinIO secret key"`
	BucketName string `env:"BUCKET_NAME,default=artifacts" description:"Bucket name"`
	Region     string `env:"REGION,default=us-east-1" description:"Bucket region"`
	UseSSL     bool   `env:"USE_SSL,default=true" description:"Use SSL for MinIO connections"`
}

// CatalogStoreConfig selects where the per-kind metadata catalogs live.
// By default the catalog document is colocated with the blobs; setting the
// provider to redis moves the documents to Redis while blobs stay put.
type CatalogStoreConfig struct {
	Provider    string            `env:"PROVIDER,default=storage" description:"Catalog document provider (storage, redis)"`
	URL         string            `env:"URL" description:"Connection URL for the redis catalog provider"`
	Options     map[string]string `env:"OPTIONS" description:"Provider-specific options"`
	Credentials map[string]string `env:"CREDENTIALS" description:"Provider-specific credentials"`
}

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	Port         string        `env:"PORT,default=9090" description:"Metrics server port"`
	Host         string        `env:"HOST,default=" description:"Metrics server host (empty for all interfaces)"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT,default=30s" description:"Metrics server read timeout"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=30s" description:"Metrics server write timeout"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT,default=60s" description:"Metrics server idle timeout"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	Enable        bool          `env:"ENABLE,default=false" description:"Enable telemetry collection"`
	MetricsConfig MetricsConfig `env:",prefix=METRICS_"`
}

// Load loads configuration from environment variables, merging with the provided base config.
func Load(ctx context.Context, baseConfig *Config) (*Config, error) {
	return LoadWithLookuper(ctx, baseConfig, envconfig.OsLookuper())
}

// LoadWithLookuper creates and loads configuration using a custom lookuper and merges with user config
func LoadWithLookuper(ctx context.Context, baseConfig *Config, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config

	if baseConfig != nil {
		cfg = *baseConfig
	}

	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	})
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// NewWithDefaults creates a new config with defaults applied from struct tags.
func NewWithDefaults(ctx context.Context, baseConfig *Config) (*Config, error) {
	return LoadWithLookuper(ctx, baseConfig, &emptyLookuper{})
}

// emptyLookuper ensures that only default values from struct tags are used
type emptyLookuper struct{}

func (e *emptyLookuper) Lookup(key string) (string, bool) {
	return "", false
}

// Validate validates the configuration and applies corrections for invalid values
func (c *Config) Validate() error {
	if c.ArtifactsConfig.ImageCapacity < 1 {
		c.ArtifactsConfig.ImageCapacity = 1
	}
	if c.ArtifactsConfig.AudioCapacity < 1 {
		c.ArtifactsConfig.AudioCapacity = 1
	}
	if c.ArtifactsConfig.VideoCapacity < 1 {
		c.ArtifactsConfig.VideoCapacity = 1
	}

	switch c.ArtifactsConfig.Provider {
	case "filesystem", "minio":
	default:
		return fmt.Errorf("unsupported artifacts provider '%s' (supported: filesystem, minio)", c.ArtifactsConfig.Provider)
	}

	switch c.ArtifactsConfig.CatalogConfig.Provider {
	case "storage", "redis":
	default:
		return fmt.Errorf("unsupported catalog provider '%s' (supported: storage, redis)", c.ArtifactsConfig.CatalogConfig.Provider)
	}

	if c.ArtifactsConfig.CatalogConfig.Provider == "redis" && c.ArtifactsConfig.CatalogConfig.URL == "" {
		return fmt.Errorf("URL is required for the redis catalog provider")
	}

	return nil
}

// IsLocal reports whether the service runs in the local development environment.
// Local deployments skip upstream TLS verification, matching the historical
// behavior of the deployment this service replaced.
func (c *Config) IsLocal() bool {
	return c.Environment == "local"
}
