package server

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/incadev/generation-service/server/config"
	"github.com/incadev/generation-service/server/middlewares"
	"github.com/incadev/generation-service/server/otel"
)

const maxTextPromptLength = 2000
const maxMediaPromptLength = 4000

// GenerationServer exposes the generation and retrieval endpoints over HTTP
type GenerationServer interface {
	// Start starts the generation server
	Start(ctx context.Context) error

	// Stop stops the generation server
	Stop(ctx context.Context) error
}

// GenerationServerImpl implements the GenerationServer interface
type GenerationServerImpl struct {
	cfg           *config.Config
	logger        *zap.Logger
	facade        GenerationFacade
	images        *ArtifactStore
	audios        *ArtifactStore
	videos        *ArtifactStore
	telemetry     otel.OpenTelemetry
	httpServer    *http.Server
	metricsServer *http.Server
}

var _ GenerationServer = (*GenerationServerImpl)(nil)

// NewGenerationServer creates a new generation server instance
func NewGenerationServer(cfg *config.Config, logger *zap.Logger, facade GenerationFacade, images, audios, videos *ArtifactStore, telemetry otel.OpenTelemetry) *GenerationServerImpl {
	return &GenerationServerImpl{
		cfg:       cfg,
		logger:    logger,
		facade:    facade,
		images:    images,
		audios:    audios,
		videos:    videos,
		telemetry: telemetry,
	}
}

// textGenerationRequest is the payload for the channel text endpoints
type textGenerationRequest struct {
	Prompt   string           `json:"prompt"`
	Contents []map[string]any `json:"contents"`
	Tone     string           `json:"tone"`
	Length   string           `json:"length"`
	Model    string           `json:"model"`
	LinkURL  string           `json:"link_url"`
}

// mediaGenerationRequest is the payload for the image, audio and video endpoints
type mediaGenerationRequest struct {
	Prompt           string `json:"prompt"`
	Model            string `json:"model"`
	Voice            string `json:"voice"`
	NumberOfImages   *int   `json:"number_of_images"`
	AspectRatio      string `json:"aspect_ratio"`
	PersonGeneration string `json:"person_generation"`
	ImageSize        string `json:"image_size"`
}

func validateLength(length string) error {
	switch length {
	case "", "short", "medium", "long":
		return nil
	default:
		return fmt.Errorf("length must be one of: short, medium, long")
	}
}

func (r *textGenerationRequest) validate() error {
	if r.Prompt == "" && len(r.Contents) == 0 {
		return fmt.Errorf("prompt is required")
	}
	if len(r.Prompt) > maxTextPromptLength {
		return fmt.Errorf("prompt must not exceed %d characters", maxTextPromptLength)
	}
	return validateLength(r.Length)
}

func (r *mediaGenerationRequest) validate() error {
	if r.Prompt == "" {
		return fmt.Errorf("prompt is required")
	}
	if len(r.Prompt) > maxMediaPromptLength {
		return fmt.Errorf("prompt must not exceed %d characters", maxMediaPromptLength)
	}
	return nil
}

// setupRouter configures the HTTP routes
func (s *GenerationServerImpl) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if s.cfg.Debug {
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggingMiddleware(s.cfg.ServerConfig.DisableHealthcheckLog))

	if s.cfg.TelemetryConfig.Enable && s.telemetry != nil {
		telemetryMw, err := middlewares.NewTelemetryMiddleware(*s.cfg, s.telemetry, s.logger)
		if err != nil {
			s.logger.Error("failed to create telemetry middleware", zap.Error(err))
		} else {
			r.Use(telemetryMw.Middleware())
		}
	}

	r.GET("/health", s.handleHealth)

	generation := r.Group("/generation")
	{
		generation.POST("/facebook", s.handleTextGeneration(ChannelFacebook))
		generation.POST("/instagram", s.handleTextGeneration(ChannelInstagram))
		generation.POST("/podcast", s.handleTextGeneration(ChannelPodcast))
		generation.POST("/image", s.handleImageGeneration)
		generation.POST("/audio", s.handleAudioGeneration)
		generation.POST("/video", s.handleVideoGeneration)

		generation.GET("/images", s.handleList(s.images, "images"))
		generation.GET("/audios", s.handleList(s.audios, "audios"))
		generation.GET("/videos", s.handleList(s.videos, "videos"))

		generation.GET("/image/:id", s.handleDownload(s.images, "Image"))
		generation.GET("/audio/:id", s.handleDownload(s.audios, "Audio"))
		generation.GET("/video/:id", s.handleDownload(s.videos, "Video"))
	}

	return r
}

// handleHealth handles health check requests
func (s *GenerationServerImpl) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func renderResult(c *gin.Context, result Result) {
	status := result.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.JSON(status, result)
}

func invalidRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, Result{
		Success: false,
		Status:  http.StatusBadRequest,
		Body:    err.Error(),
	})
}

// handleTextGeneration handles the channel text generation endpoints
func (s *GenerationServerImpl) handleTextGeneration(channel Channel) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req textGenerationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, fmt.Errorf("invalid request body: %w", err))
			return
		}
		if err := req.validate(); err != nil {
			invalidRequest(c, err)
			return
		}

		opts := GenerationOptions{
			Tone:   req.Tone,
			Length: req.Length,
			Model:  req.Model,
		}

		var result Result
		if len(req.Contents) > 0 {
			result = s.facade.GenerateTextFromContents(c.Request.Context(), req.Contents, channel, opts, req.LinkURL)
		} else {
			result = s.facade.GenerateText(c.Request.Context(), req.Prompt, channel, opts, req.LinkURL)
		}

		renderResult(c, result)
	}
}

// handleImageGeneration handles image generation requests
func (s *GenerationServerImpl) handleImageGeneration(c *gin.Context) {
	var req mediaGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := req.validate(); err != nil {
		invalidRequest(c, err)
		return
	}

	opts := GenerationOptions{
		Model:            req.Model,
		NumberOfImages:   req.NumberOfImages,
		AspectRatio:      req.AspectRatio,
		PersonGeneration: req.PersonGeneration,
		ImageSize:        req.ImageSize,
	}

	renderResult(c, s.facade.GenerateImage(c.Request.Context(), req.Prompt, opts))
}

// handleAudioGeneration handles audio generation requests
func (s *GenerationServerImpl) handleAudioGeneration(c *gin.Context) {
	var req mediaGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := req.validate(); err != nil {
		invalidRequest(c, err)
		return
	}

	opts := GenerationOptions{
		Model: req.Model,
		Voice: req.Voice,
	}

	renderResult(c, s.facade.GenerateAudio(c.Request.Context(), req.Prompt, opts))
}

// handleVideoGeneration handles video generation requests
func (s *GenerationServerImpl) handleVideoGeneration(c *gin.Context) {
	var req mediaGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := req.validate(); err != nil {
		invalidRequest(c, err)
		return
	}

	opts := GenerationOptions{Model: req.Model}

	renderResult(c, s.facade.GenerateVideo(c.Request.Context(), req.Prompt, opts))
}

// handleList returns a handler that lists a catalog under the given key
func (s *GenerationServerImpl) handleList(store *ArtifactStore, key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := store.List(c.Request.Context())
		if err != nil {
			s.logger.Error("failed to list artifacts",
				zap.String("kind", string(store.Kind())),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, Result{
				Success: false,
				Status:  http.StatusInternalServerError,
				Body:    fmt.Sprintf("failed to list %s", key),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"status":  http.StatusOK,
			key:       records,
		})
	}
}

// handleDownload returns a handler that streams one artifact by id
func (s *GenerationServerImpl) handleDownload(store *ArtifactStore, label string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if id == "" {
			c.JSON(http.StatusBadRequest, Result{
				Success: false,
				Status:  http.StatusBadRequest,
				Body:    fmt.Sprintf("Missing %s id", string(store.Kind())),
			})
			return
		}

		reader, record, err := store.Open(c.Request.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, ErrNotFound):
				c.JSON(http.StatusNotFound, Result{
					Success: false,
					Status:  http.StatusNotFound,
					Body:    label + " not found",
				})
			case errors.Is(err, ErrFileMissing):
				c.JSON(http.StatusNotFound, Result{
					Success: false,
					Status:  http.StatusNotFound,
					Body:    label + " file missing",
				})
			default:
				s.logger.Error("failed to retrieve artifact",
					zap.String("kind", string(store.Kind())),
					zap.String("id", id),
					zap.Error(err))
				c.JSON(http.StatusInternalServerError, Result{
					Success: false,
					Status:  http.StatusInternalServerError,
					Body:    "failed to retrieve " + string(store.Kind()),
				})
			}
			return
		}
		defer func() {
			if closeErr := reader.Close(); closeErr != nil {
				s.logger.Error("failed to close artifact reader", zap.Error(closeErr))
			}
		}()

		contentType := mime.TypeByExtension(filepath.Ext(record.Filename))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		c.Header("Content-Type", contentType)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.Filename))

		c.DataFromReader(http.StatusOK, record.Size, contentType, reader, nil)
	}
}

// Start starts the generation server
func (s *GenerationServerImpl) Start(ctx context.Context) error {
	if s.facade == nil {
		return fmt.Errorf("generation facade must be set before starting the server")
	}

	router := s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.cfg.ServerConfig.Port),
		Handler:      router,
		ReadTimeout:  s.cfg.ServerConfig.ReadTimeout,
		WriteTimeout: s.cfg.ServerConfig.WriteTimeout,
		IdleTimeout:  s.cfg.ServerConfig.IdleTimeout,
	}

	s.logger.Info("starting generation server",
		zap.String("port", s.cfg.ServerConfig.Port),
		zap.String("environment", s.cfg.Environment))

	if s.cfg.TelemetryConfig.Enable && s.telemetry != nil {
		go func() {
			metricsRouter := gin.New()
			metricsRouter.Use(gin.Recovery())
			metricsRouter.GET("/metrics", gin.WrapH(promhttp.Handler()))

			metricsCfg := s.cfg.TelemetryConfig.MetricsConfig
			s.metricsServer = &http.Server{
				Addr:         metricsCfg.Host + ":" + metricsCfg.Port,
				Handler:      metricsRouter,
				ReadTimeout:  metricsCfg.ReadTimeout,
				WriteTimeout: metricsCfg.WriteTimeout,
				IdleTimeout:  metricsCfg.IdleTimeout,
			}

			s.logger.Info("starting metrics server", zap.String("port", metricsCfg.Port))
			if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	errChan := make(chan error, 1)
	go func() {
		if s.cfg.ServerConfig.TLSConfig.Enable {
			errChan <- s.httpServer.ListenAndServeTLS(
				s.cfg.ServerConfig.TLSConfig.CertPath,
				s.cfg.ServerConfig.TLSConfig.KeyPath,
			)
		} else {
			errChan <- s.httpServer.ListenAndServe()
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("generation server context cancelled, shutting down")
		return s.Stop(context.Background())
	case err := <-errChan:
		if err != http.ErrServerClosed {
			return fmt.Errorf("generation server failed to start: %w", err)
		}
		return nil
	}
}

// Stop gracefully stops the generation server
func (s *GenerationServerImpl) Stop(ctx context.Context) error {
	s.logger.Info("stopping generation server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error

	if s.httpServer != nil {
		if shutdownErr := s.httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error("error stopping HTTP server", zap.Error(shutdownErr))
			err = shutdownErr
		}
	}

	if s.metricsServer != nil {
		if shutdownErr := s.metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error("error stopping metrics server", zap.Error(shutdownErr))
			if err == nil {
				err = shutdownErr
			}
		}
	}

	if s.telemetry != nil {
		if shutdownErr := s.telemetry.ShutDown(shutdownCtx); shutdownErr != nil {
			s.logger.Error("error shutting down telemetry", zap.Error(shutdownErr))
			if err == nil {
				err = shutdownErr
			}
		}
	}

	s.logger.Info("generation server stopped")
	return err
}
