package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/incadev/generation-service/server/config"
)

// mockGenerationFacade implements GenerationFacade for testing
type mockGenerationFacade struct {
	generateTextFunc             func(ctx context.Context, prompt string, channel Channel, opts GenerationOptions, linkURL string) Result
	generateTextFromContentsFunc func(ctx context.Context, contents []map[string]any, channel Channel, opts GenerationOptions, linkURL string) Result
	generateImageFunc            func(ctx context.Context, prompt string, opts GenerationOptions) Result
	generateAudioFunc            func(ctx context.Context, prompt string, opts GenerationOptions) Result
	generateVideoFunc            func(ctx context.Context, prompt string, opts GenerationOptions) Result
}

func okResult() Result {
	return Result{Success: true, Status: http.StatusOK, Payload: map[string]any{"generated_text": "hola"}}
}

func (m *mockGenerationFacade) GenerateText(ctx context.Context, prompt string, channel Channel, opts GenerationOptions, linkURL string) Result {
	if m.generateTextFunc != nil {
		return m.generateTextFunc(ctx, prompt, channel, opts, linkURL)
	}
	return okResult()
}

func (m *mockGenerationFacade) GenerateTextFromContents(ctx context.Context, contents []map[string]any, channel Channel, opts GenerationOptions, linkURL string) Result {
	if m.generateTextFromContentsFunc != nil {
		return m.generateTextFromContentsFunc(ctx, contents, channel, opts, linkURL)
	}
	return okResult()
}

func (m *mockGenerationFacade) GenerateImage(ctx context.Context, prompt string, opts GenerationOptions) Result {
	if m.generateImageFunc != nil {
		return m.generateImageFunc(ctx, prompt, opts)
	}
	return okResult()
}

func (m *mockGenerationFacade) GenerateAudio(ctx context.Context, prompt string, opts GenerationOptions) Result {
	if m.generateAudioFunc != nil {
		return m.generateAudioFunc(ctx, prompt, opts)
	}
	return okResult()
}

func (m *mockGenerationFacade) GenerateVideo(ctx context.Context, prompt string, opts GenerationOptions) Result {
	if m.generateVideoFunc != nil {
		return m.generateVideoFunc(ctx, prompt, opts)
	}
	return okResult()
}

func newTestServer(t *testing.T, facade GenerationFacade) (*GenerationServerImpl, *ArtifactStore, *ArtifactStore, *ArtifactStore) {
	t.Helper()

	cfg, err := config.NewWithDefaults(context.Background(), nil)
	require.NoError(t, err)

	images := NewArtifactStore(ArtifactKindImage, 50, newMemoryArtifactStorage(), zap.NewNop())
	audios := NewArtifactStore(ArtifactKindAudio, 20, newMemoryArtifactStorage(), zap.NewNop())
	videos := NewArtifactStore(ArtifactKindVideo, 10, newMemoryArtifactStorage(), zap.NewNop())

	srv := NewGenerationServer(cfg, zap.NewNop(), facade, images, audios, videos, nil)
	return srv, images, audios, videos
}

func performJSON(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGenerationServer_Health(t *testing.T) {
	srv, _, _, _ := newTestServer(t, &mockGenerationFacade{})
	router := srv.setupRouter()

	w := performJSON(router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestGenerationServer_TextEndpoints(t *testing.T) {
	channels := map[string]Channel{
		"/generation/facebook":  ChannelFacebook,
		"/generation/instagram": ChannelInstagram,
		"/generation/podcast":   ChannelPodcast,
	}

	for path, expected := range channels {
		t.Run(path, func(t *testing.T) {
			var gotChannel Channel
			facade := &mockGenerationFacade{
				generateTextFunc: func(ctx context.Context, prompt string, channel Channel, opts GenerationOptions, linkURL string) Result {
					gotChannel = channel
					return okResult()
				},
			}
			srv, _, _, _ := newTestServer(t, facade)
			router := srv.setupRouter()

			w := performJSON(router, http.MethodPost, path, map[string]any{"prompt": "hola"})
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, expected, gotChannel)
		})
	}
}

func TestGenerationServer_TextValidation(t *testing.T) {
	srv, _, _, _ := newTestServer(t, &mockGenerationFacade{})
	router := srv.setupRouter()

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing prompt", map[string]any{}},
		{"prompt too long", map[string]any{"prompt": string(make([]byte, maxTextPromptLength+1))}},
		{"bad length", map[string]any{"prompt": "hola", "length": "gigantic"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performJSON(router, http.MethodPost, "/generation/facebook", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			var result Result
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
			assert.False(t, result.Success)
		})
	}
}

func TestGenerationServer_ContentsRouteToContentsHandler(t *testing.T) {
	called := false
	facade := &mockGenerationFacade{
		generateTextFromContentsFunc: func(ctx context.Context, contents []map[string]any, channel Channel, opts GenerationOptions, linkURL string) Result {
			called = true
			return okResult()
		},
	}
	srv, _, _, _ := newTestServer(t, facade)
	router := srv.setupRouter()

	body := map[string]any{
		"contents": []map[string]any{{"parts": []map[string]any{{"text": "previo"}}}},
	}
	w := performJSON(router, http.MethodPost, "/generation/podcast", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}

func TestGenerationServer_ResultStatusMirrored(t *testing.T) {
	facade := &mockGenerationFacade{
		generateTextFunc: func(ctx context.Context, prompt string, channel Channel, opts GenerationOptions, linkURL string) Result {
			return Result{Success: false, Status: http.StatusTooManyRequests, Body: "rate limited"}
		},
	}
	srv, _, _, _ := newTestServer(t, facade)
	router := srv.setupRouter()

	w := performJSON(router, http.MethodPost, "/generation/facebook", map[string]any{"prompt": "hola"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestGenerationServer_MediaValidation(t *testing.T) {
	srv, _, _, _ := newTestServer(t, &mockGenerationFacade{})
	router := srv.setupRouter()

	for _, path := range []string{"/generation/image", "/generation/audio", "/generation/video"} {
		t.Run(path, func(t *testing.T) {
			w := performJSON(router, http.MethodPost, path, map[string]any{})
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestGenerationServer_ImageOptionsForwarded(t *testing.T) {
	var gotOpts GenerationOptions
	facade := &mockGenerationFacade{
		generateImageFunc: func(ctx context.Context, prompt string, opts GenerationOptions) Result {
			gotOpts = opts
			return okResult()
		},
	}
	srv, _, _, _ := newTestServer(t, facade)
	router := srv.setupRouter()

	w := performJSON(router, http.MethodPost, "/generation/image", map[string]any{
		"prompt":            "un gato",
		"number_of_images":  3,
		"aspect_ratio":      "16:9",
		"person_generation": "dont_allow",
		"image_size":        "2K",
	})
	require.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, gotOpts.NumberOfImages)
	assert.Equal(t, 3, *gotOpts.NumberOfImages)
	assert.Equal(t, "16:9", gotOpts.AspectRatio)
	assert.Equal(t, "dont_allow", gotOpts.PersonGeneration)
	assert.Equal(t, "2K", gotOpts.ImageSize)
}

func TestGenerationServer_ListEndpoints(t *testing.T) {
	srv, images, _, _ := newTestServer(t, &mockGenerationFacade{})
	router := srv.setupRouter()

	_, err := images.Save(context.Background(), []byte("x"), "prompt", "model")
	require.NoError(t, err)

	w := performJSON(router, http.MethodGet, "/generation/images", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	list, ok := body["images"].([]any)
	require.True(t, ok)
	assert.Len(t, list, 1)

	w = performJSON(router, http.MethodGet, "/generation/audios", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	empty, ok := body["audios"].([]any)
	require.True(t, ok)
	assert.Empty(t, empty)
}

func TestGenerationServer_Download(t *testing.T) {
	srv, images, _, _ := newTestServer(t, &mockGenerationFacade{})
	router := srv.setupRouter()

	record, err := images.Save(context.Background(), []byte("png bytes"), "prompt", "model")
	require.NoError(t, err)

	w := performJSON(router, http.MethodGet, "/generation/image/"+record.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), record.Filename)
	assert.Equal(t, "png bytes", w.Body.String())
}

func TestGenerationServer_Download_NotFound(t *testing.T) {
	srv, _, _, _ := newTestServer(t, &mockGenerationFacade{})
	router := srv.setupRouter()

	w := performJSON(router, http.MethodGet, "/generation/image/unknown-id", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	var result Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "Image not found", result.Body)
}

func TestGenerationServer_Download_FileMissing(t *testing.T) {
	srv, _, audios, _ := newTestServer(t, &mockGenerationFacade{})
	router := srv.setupRouter()

	record, err := audios.Save(context.Background(), []byte("pcm"), "prompt", "model")
	require.NoError(t, err)

	storage := audios.storage.(*memoryArtifactStorage)
	require.NoError(t, storage.Delete(context.Background(), ArtifactKindAudio, record.Filename))

	w := performJSON(router, http.MethodGet, "/generation/audio/"+record.ID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	var result Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "Audio file missing", result.Body)
}
