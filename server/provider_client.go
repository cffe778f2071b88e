package server

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/incadev/generation-service/server/config"
)

// Outcome is the structured result of one upstream provider call. A failed
// call carries the provider's status and raw body; a successful call
// carries the decoded JSON payload.
type Outcome struct {
	Success bool
	Status  int
	Body    string
	Data    map[string]any
}

// Result is the value returned to callers for a generation request: either
// an error body or the provider's payload merged with derived fields.
type Result struct {
	Success bool           `json:"success"`
	Status  int            `json:"status"`
	Body    string         `json:"body,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ProviderClient dispatches requests to the upstream generative API.
type ProviderClient interface {
	// GenerateContent calls the model's generateContent endpoint
	GenerateContent(ctx context.Context, model string, payload any) Outcome

	// Predict calls the model's predict endpoint (image generation)
	Predict(ctx context.Context, model string, payload any) Outcome
}

// Wire types for the generative language API v1beta.

// Content is one conversational turn sent to the model.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a single piece of content, either text or inline binary data.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

// Blob carries base64-encoded media bytes.
type Blob struct {
	MIMEType string `json:"mimeType,omitempty"`
	Data     string `json:"data"`
}

// GenerationConfig tunes model output.
type GenerationConfig struct {
	Temperature        *float64        `json:"temperature,omitempty"`
	MaxOutputTokens    *int            `json:"maxOutputTokens,omitempty"`
	TopP               *float64        `json:"topP,omitempty"`
	TopK               *int            `json:"topK,omitempty"`
	ResponseModalities []string        `json:"responseModalities,omitempty"`
	SpeechConfig       *SpeechConfig   `json:"speechConfig,omitempty"`
	ThinkingConfig     *ThinkingConfig `json:"thinkingConfig,omitempty"`
}

// ThinkingConfig controls reasoning token spend.
type ThinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

// SpeechConfig selects the voice used for audio output.
type SpeechConfig struct {
	VoiceConfig *VoiceConfig `json:"voiceConfig,omitempty"`
}

// VoiceConfig wraps a prebuilt voice selection.
type VoiceConfig struct {
	PrebuiltVoiceConfig *PrebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

// PrebuiltVoiceConfig names one of the provider's built-in voices.
type PrebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

// GenerateContentRequest is the generateContent endpoint payload.
type GenerateContentRequest struct {
	Contents         any               `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

// ImageInstance is one prompt instance for the predict endpoint.
type ImageInstance struct {
	Prompt string `json:"prompt"`
}

// ImageParameters are the predict endpoint generation parameters.
type ImageParameters struct {
	SampleCount      int    `json:"sampleCount"`
	AspectRatio      string `json:"aspectRatio"`
	PersonGeneration string `json:"personGeneration"`
	ImageSize        string `json:"imageSize,omitempty"`
}

// PredictRequest is the predict endpoint payload (image generation).
type PredictRequest struct {
	Instances  []ImageInstance `json:"instances"`
	Parameters ImageParameters `json:"parameters"`
}

// HTTPProviderClient implements ProviderClient over the provider's REST API
type HTTPProviderClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ ProviderClient = (*HTTPProviderClient)(nil)

// NewHTTPProviderClient creates a provider client from configuration.
// Local environments skip upstream certificate verification.
func NewHTTPProviderClient(cfg *config.Config, logger *zap.Logger) *HTTPProviderClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := http.DefaultTransport
	if cfg.IsLocal() {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
		logger.Warn("upstream TLS verification disabled for local environment")
	}

	return &HTTPProviderClient{
		apiKey:  cfg.ProviderConfig.ResolveAPIKey(),
		baseURL: strings.TrimSuffix(cfg.ProviderConfig.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.ProviderConfig.Timeout,
			Transport: transport,
		},
		logger: logger,
	}
}

// GenerateContent calls the model's generateContent endpoint
func (c *HTTPProviderClient) GenerateContent(ctx context.Context, model string, payload any) Outcome {
	return c.post(ctx, fmt.Sprintf("/models/%s:generateContent", model), payload)
}

// Predict calls the model's predict endpoint
func (c *HTTPProviderClient) Predict(ctx context.Context, model string, payload any) Outcome {
	return c.post(ctx, fmt.Sprintf("/models/%s:predict", model), payload)
}

func (c *HTTPProviderClient) post(ctx context.Context, path string, payload any) Outcome {
	if c.apiKey == "" {
		return Outcome{
			Success: false,
			Status:  http.StatusInternalServerError,
			Body:    "Missing Google generative API key (set GOOGLE_API_KEY in the environment)",
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Outcome{
			Success: false,
			Status:  http.StatusInternalServerError,
			Body:    fmt.Sprintf("failed to encode provider payload: %v", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Outcome{
			Success: false,
			Status:  http.StatusInternalServerError,
			Body:    fmt.Sprintf("failed to build provider request: %v", err),
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("provider request failed", zap.String("path", path), zap.Error(err))
		return Outcome{
			Success: false,
			Status:  http.StatusBadGateway,
			Body:    fmt.Sprintf("provider request failed: %v", err),
		}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{
			Success: false,
			Status:  http.StatusBadGateway,
			Body:    fmt.Sprintf("failed to read provider response: %v", err),
		}
	}

	c.logger.Debug("provider request completed",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(started)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Outcome{
			Success: false,
			Status:  resp.StatusCode,
			Body:    string(raw),
		}
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return Outcome{
			Success: false,
			Status:  http.StatusBadGateway,
			Body:    fmt.Sprintf("failed to decode provider response: %v", err),
		}
	}

	return Outcome{
		Success: true,
		Status:  resp.StatusCode,
		Data:    data,
	}
}

// formatResponse shapes a provider outcome into a caller-facing result.
// Failures pass through with the provider's status and raw body.
func formatResponse(outcome Outcome) Result {
	if !outcome.Success {
		return Result{
			Success: false,
			Status:  outcome.Status,
			Body:    outcome.Body,
		}
	}

	payload := outcome.Data
	if payload == nil {
		payload = map[string]any{}
	}

	status := outcome.Status
	if status == 0 {
		status = http.StatusOK
	}

	return Result{
		Success: true,
		Status:  status,
		Payload: payload,
	}
}
