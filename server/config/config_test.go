package config_test

import (
	"context"
	"testing"
	"time"

	envconfig "github.com/sethvargo/go-envconfig"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"

	config "github.com/incadev/generation-service/server/config"
)

func TestConfig_LoadWithLookuper(t *testing.T) {
	tests := []struct {
		name         string
		envVars      map[string]string
		wantErr      bool
		validateFunc func(t *testing.T, cfg *config.Config)
	}{
		{
			name:    "loads defaults when no env vars set",
			envVars: map[string]string{},
			validateFunc: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "production", cfg.Environment)
				assert.False(t, cfg.Debug)
				assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta", cfg.ProviderConfig.BaseURL)
				assert.Equal(t, "imagen-4.0-generate-001", cfg.ProviderConfig.ImageModel)
				assert.Equal(t, 300*time.Second, cfg.ProviderConfig.Timeout)
				assert.Equal(t, "8080", cfg.ServerConfig.Port)
				assert.Equal(t, 320*time.Second, cfg.ServerConfig.WriteTimeout)
				assert.Equal(t, "filesystem", cfg.ArtifactsConfig.Provider)
				assert.Equal(t, "./storage", cfg.ArtifactsConfig.BasePath)
				assert.Equal(t, 50, cfg.ArtifactsConfig.ImageCapacity)
				assert.Equal(t, 20, cfg.ArtifactsConfig.AudioCapacity)
				assert.Equal(t, 10, cfg.ArtifactsConfig.VideoCapacity)
				assert.Equal(t, "storage", cfg.ArtifactsConfig.CatalogConfig.Provider)
				assert.False(t, cfg.TelemetryConfig.Enable)
				assert.Equal(t, "9090", cfg.TelemetryConfig.MetricsConfig.Port)
			},
		},
		{
			name: "reads provider settings",
			envVars: map[string]string{
				"GOOGLE_API_KEY": "key-a",
				"GEMINI_MODEL":   "gemini-2.5-flash",
				"GEMINI_TIMEOUT": "60s",
			},
			validateFunc: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "key-a", cfg.ProviderConfig.APIKey)
				assert.Equal(t, "gemini-2.5-flash", cfg.ProviderConfig.Model)
				assert.Equal(t, 60*time.Second, cfg.ProviderConfig.Timeout)
			},
		},
		{
			name: "reads artifact settings with prefixes",
			envVars: map[string]string{
				"ARTIFACTS_PROVIDER":         "minio",
				"ARTIFACTS_IMAGE_CAPACITY":   "5",
				"ARTIFACTS_MINIO_ENDPOINT":   "minio:9000",
				"ARTIFACTS_MINIO_ACCESS_KEY": "ak",
			},
			validateFunc: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "minio", cfg.ArtifactsConfig.Provider)
				assert.Equal(t, 5, cfg.ArtifactsConfig.ImageCapacity)
				assert.Equal(t, "minio:9000", cfg.ArtifactsConfig.MinIOConfig.Endpoint)
				assert.Equal(t, "ak", cfg.ArtifactsConfig.MinIOConfig.AccessKey)
			},
		},
		{
			name: "rejects unknown artifacts provider",
			envVars: map[string]string{
				"ARTIFACTS_PROVIDER": "s3",
			},
			wantErr: true,
		},
		{
			name: "rejects redis catalog without URL",
			envVars: map[string]string{
				"ARTIFACTS_CATALOG_PROVIDER": "redis",
			},
			wantErr: true,
		},
		{
			name: "accepts redis catalog with URL",
			envVars: map[string]string{
				"ARTIFACTS_CATALOG_PROVIDER": "redis",
				"ARTIFACTS_CATALOG_URL":      "redis://localhost:6379",
			},
			validateFunc: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "redis", cfg.ArtifactsConfig.CatalogConfig.Provider)
				assert.Equal(t, "redis://localhost:6379", cfg.ArtifactsConfig.CatalogConfig.URL)
			},
		},
		{
			name: "corrects non positive capacities",
			envVars: map[string]string{
				"ARTIFACTS_IMAGE_CAPACITY": "0",
				"ARTIFACTS_AUDIO_CAPACITY": "-3",
			},
			validateFunc: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, 1, cfg.ArtifactsConfig.ImageCapacity)
				assert.Equal(t, 1, cfg.ArtifactsConfig.AudioCapacity)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookuper := envconfig.MapLookuper(tt.envVars)
			cfg, err := config.LoadWithLookuper(context.Background(), nil, lookuper)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateFunc(t, cfg)
		})
	}
}

func TestConfig_NewWithDefaults_PreservesBaseConfig(t *testing.T) {
	base := &config.Config{
		ServiceName:    "generation-service",
		ServiceVersion: "1.2.3",
	}

	cfg, err := config.NewWithDefaults(context.Background(), base)
	require.NoError(t, err)
	assert.Equal(t, "generation-service", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, "8080", cfg.ServerConfig.Port)
}

func TestProviderConfig_ResolveAPIKey(t *testing.T) {
	p := config.ProviderConfig{APIKey: "a", GeminiAPIKey: "b"}
	assert.Equal(t, "a", p.ResolveAPIKey())

	p = config.ProviderConfig{GeminiAPIKey: "b"}
	assert.Equal(t, "b", p.ResolveAPIKey())

	p = config.ProviderConfig{}
	assert.Equal(t, "", p.ResolveAPIKey())
}

func TestConfig_IsLocal(t *testing.T) {
	cfg := &config.Config{Environment: "local"}
	assert.True(t, cfg.IsLocal())

	cfg.Environment = "production"
	assert.False(t, cfg.IsLocal())
}
