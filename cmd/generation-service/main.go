package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/incadev/generation-service/server"
	"github.com/incadev/generation-service/server/config"
	"github.com/incadev/generation-service/server/otel"
)

var (
	serviceName    = "generation-service"
	serviceVersion = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, &config.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
	})
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	var logger *zap.Logger
	if cfg.Debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	var telemetry otel.OpenTelemetry
	if cfg.TelemetryConfig.Enable {
		telemetry, err = otel.NewOpenTelemetry(cfg, logger)
		if err != nil {
			logger.Fatal("failed to initialize telemetry", zap.Error(err))
		}
	}

	var storage server.ArtifactStorageProvider
	switch cfg.ArtifactsConfig.Provider {
	case "minio":
		storage, err = server.NewMinIOArtifactStorage(&cfg.ArtifactsConfig.MinIOConfig, cfg.ArtifactsConfig.BaseURL)
		if err != nil {
			logger.Fatal("failed to initialize minio storage", zap.Error(err))
		}
	default:
		storage, err = server.NewFilesystemArtifactStorage(cfg.ArtifactsConfig.BasePath, cfg.ArtifactsConfig.BaseURL)
		if err != nil {
			logger.Fatal("failed to initialize filesystem storage", zap.Error(err))
		}
	}

	var catalog server.CatalogStore = storage
	if cfg.ArtifactsConfig.CatalogConfig.Provider == "redis" {
		redisCatalog, err := server.NewRedisCatalogStore(ctx, cfg.ArtifactsConfig.CatalogConfig, logger)
		if err != nil {
			logger.Fatal("failed to initialize redis catalog store", zap.Error(err))
		}
		catalog = redisCatalog
	}

	imageOpts := []server.StoreOption{
		server.WithCatalogStore(catalog),
		server.WithNormalizer(server.EnsurePNG),
		server.WithWatermarkFlag(),
	}
	audioOpts := []server.StoreOption{server.WithCatalogStore(catalog)}
	videoOpts := []server.StoreOption{server.WithCatalogStore(catalog)}
	if cfg.ArtifactsConfig.BaseURL != "" {
		imageOpts = append(imageOpts, server.WithPublicURLs())
		audioOpts = append(audioOpts, server.WithPublicURLs())
		videoOpts = append(videoOpts, server.WithPublicURLs())
	}
	if telemetry != nil {
		imageOpts = append(imageOpts, server.WithTelemetry(telemetry))
		audioOpts = append(audioOpts, server.WithTelemetry(telemetry))
		videoOpts = append(videoOpts, server.WithTelemetry(telemetry))
	}

	images := server.NewArtifactStore(server.ArtifactKindImage, cfg.ArtifactsConfig.ImageCapacity, storage, logger, imageOpts...)
	audios := server.NewArtifactStore(server.ArtifactKindAudio, cfg.ArtifactsConfig.AudioCapacity, storage, logger, audioOpts...)
	videos := server.NewArtifactStore(server.ArtifactKindVideo, cfg.ArtifactsConfig.VideoCapacity, storage, logger, videoOpts...)

	client := server.NewHTTPProviderClient(cfg, logger)
	facade := server.NewGenerationFacade(cfg, client, images, audios, logger, telemetry)

	srv := server.NewGenerationServer(cfg, logger, facade, images, audios, videos, telemetry)

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}

	if err := storage.Close(); err != nil {
		logger.Error("failed to close artifact storage", zap.Error(err))
	}
}
