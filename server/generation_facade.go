package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/incadev/generation-service/server/config"
	"github.com/incadev/generation-service/server/otel"
)

// DefaultVoice is the prebuilt voice used for audio generation when the
// caller does not select one.
const DefaultVoice = "Kore"

// GenerationOptions are the per-request knobs accepted by the facade.
type GenerationOptions struct {
	Tone             string
	Length           string
	Model            string
	Voice            string
	NumberOfImages   *int
	AspectRatio      string
	PersonGeneration string
	ImageSize        string
}

// GenerationFacade orchestrates one generation request: compose the prompt,
// dispatch to the provider, post-process and persist the response, and
// return a structured result. Stateless across requests.
type GenerationFacade interface {
	// GenerateText generates channel-ready text from a raw prompt
	GenerateText(ctx context.Context, prompt string, channel Channel, opts GenerationOptions, linkURL string) Result

	// GenerateTextFromContents generates channel-ready text from a caller-built contents sequence
	GenerateTextFromContents(ctx context.Context, contents []map[string]any, channel Channel, opts GenerationOptions, linkURL string) Result

	// GenerateImage generates images and persists them in the image catalog
	GenerateImage(ctx context.Context, prompt string, opts GenerationOptions) Result

	// GenerateAudio generates audio and persists it in the audio catalog
	GenerateAudio(ctx context.Context, prompt string, opts GenerationOptions) Result

	// GenerateVideo generates a video script; video output is not persisted
	GenerateVideo(ctx context.Context, prompt string, opts GenerationOptions) Result
}

// GenerationFacadeImpl is the concrete implementation of GenerationFacade
type GenerationFacadeImpl struct {
	cfg       *config.Config
	client    ProviderClient
	images    *ArtifactStore
	audios    *ArtifactStore
	logger    *zap.Logger
	telemetry otel.OpenTelemetry
}

var _ GenerationFacade = (*GenerationFacadeImpl)(nil)

// NewGenerationFacade creates a generation facade
func NewGenerationFacade(cfg *config.Config, client ProviderClient, images, audios *ArtifactStore, logger *zap.Logger, telemetry otel.OpenTelemetry) *GenerationFacadeImpl {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GenerationFacadeImpl{
		cfg:       cfg,
		client:    client,
		images:    images,
		audios:    audios,
		logger:    logger,
		telemetry: telemetry,
	}
}

// resolveModel picks the request model or falls back to the configured
// default.
func (f *GenerationFacadeImpl) resolveModel(opts GenerationOptions) (string, error) {
	if opts.Model != "" {
		return opts.Model, nil
	}
	if f.cfg.ProviderConfig.Model != "" {
		return f.cfg.ProviderConfig.Model, nil
	}
	return "", ErrMissingModel
}

func missingModelResult() Result {
	return Result{
		Success: false,
		Status:  http.StatusInternalServerError,
		Body:    MissingModelBody,
	}
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

// textGenerationConfig returns the tuned generation config for models that
// support a thinking budget; reasoning is disabled to keep latency and
// token spend down for short marketing copy.
func textGenerationConfig(model string) *GenerationConfig {
	if !strings.Contains(model, "gemini-2.5") {
		return nil
	}
	return &GenerationConfig{
		Temperature:     floatPtr(0.7),
		MaxOutputTokens: intPtr(1024),
		TopP:            floatPtr(0.9),
		TopK:            intPtr(40),
		ThinkingConfig:  &ThinkingConfig{ThinkingBudget: 0},
	}
}

// GenerateText generates channel-ready text from a raw prompt
func (f *GenerationFacadeImpl) GenerateText(ctx context.Context, prompt string, channel Channel, opts GenerationOptions, linkURL string) Result {
	model, err := f.resolveModel(opts)
	if err != nil {
		return missingModelResult()
	}

	wrapped := ComposeChannelPrompt(prompt, channel, opts.Tone, opts.Length)
	payload := GenerateContentRequest{
		Contents:         []Content{{Parts: []Part{{Text: wrapped}}}},
		GenerationConfig: textGenerationConfig(model),
	}

	outcome := f.client.GenerateContent(ctx, model, payload)
	f.recordGeneration(ctx, "text", model, outcome.Success)

	return f.finishTextResult(outcome, linkURL, channel)
}

// GenerateTextFromContents generates channel-ready text from a caller-built
// contents sequence, shaped like the provider's contents format.
func (f *GenerationFacadeImpl) GenerateTextFromContents(ctx context.Context, contents []map[string]any, channel Channel, opts GenerationOptions, linkURL string) Result {
	model, err := f.resolveModel(opts)
	if err != nil {
		return missingModelResult()
	}

	payload := GenerateContentRequest{
		Contents:         ComposeFromContents(contents, opts.Tone, opts.Length),
		GenerationConfig: textGenerationConfig(model),
	}

	outcome := f.client.GenerateContent(ctx, model, payload)
	f.recordGeneration(ctx, "text", model, outcome.Success)

	return f.finishTextResult(outcome, linkURL, channel)
}

// finishTextResult attaches the cleaned generated_text to a successful
// outcome; failures pass through with the provider's status and body.
func (f *GenerationFacadeImpl) finishTextResult(outcome Outcome, linkURL string, channel Channel) Result {
	result := formatResponse(outcome)
	if !result.Success {
		return result
	}

	if text, ok := ExtractPrimaryText(result.Payload); ok {
		result.Payload["generated_text"] = CleanGeneratedText(text, linkURL, channel)
	}

	return result
}

// Imagen parameter domains.
var (
	allowedAspectRatios     = map[string]bool{"1:1": true, "3:4": true, "4:3": true, "9:16": true, "16:9": true}
	allowedPersonGeneration = map[string]bool{"dont_allow": true, "allow_adult": true, "allow_all": true}
	allowedImageSizes       = map[string]bool{"1K": true, "2K": true}
)

// clampImageParameters validates the caller-supplied image options against
// the provider's accepted domains, substituting defaults for out-of-range
// values and dropping an invalid size hint.
func clampImageParameters(opts GenerationOptions) ImageParameters {
	sampleCount := 1
	if opts.NumberOfImages != nil {
		sampleCount = *opts.NumberOfImages
	}
	if sampleCount < 1 {
		sampleCount = 1
	}
	if sampleCount > 4 {
		sampleCount = 4
	}

	aspectRatio := opts.AspectRatio
	if !allowedAspectRatios[aspectRatio] {
		aspectRatio = "1:1"
	}

	personGeneration := opts.PersonGeneration
	if !allowedPersonGeneration[personGeneration] {
		personGeneration = "allow_adult"
	}

	imageSize := strings.ToUpper(opts.ImageSize)
	if !allowedImageSizes[imageSize] {
		imageSize = ""
	}

	return ImageParameters{
		SampleCount:      sampleCount,
		AspectRatio:      aspectRatio,
		PersonGeneration: personGeneration,
		ImageSize:        imageSize,
	}
}

// GenerateImage enriches the prompt, dispatches image generation, and
// persists every returned image in the bounded image catalog.
func (f *GenerationFacadeImpl) GenerateImage(ctx context.Context, prompt string, opts GenerationOptions) Result {
	// Imagen only accepts English prompts; enrichment also translates.
	enriched := f.enrichImagePrompt(ctx, prompt)

	model := f.cfg.ProviderConfig.ImageModel
	payload := PredictRequest{
		Instances:  []ImageInstance{{Prompt: enriched}},
		Parameters: clampImageParameters(opts),
	}

	outcome := f.client.Predict(ctx, model, payload)
	f.recordGeneration(ctx, "image", model, outcome.Success)

	result := formatResponse(outcome)
	if !result.Success {
		return result
	}

	predictions, ok := result.Payload["predictions"].([]any)
	if !ok {
		return result
	}

	var saved []ArtifactRecord
	for _, p := range predictions {
		prediction, ok := p.(map[string]any)
		if !ok {
			continue
		}
		encoded, ok := prediction["bytesBase64Encoded"].(string)
		if !ok {
			continue
		}

		record, err := f.images.SaveEncoded(ctx, encoded, enriched, model)
		if err != nil {
			f.logger.Warn("failed to save generated image", zap.Error(err))
			continue
		}
		saved = append(saved, record)
	}

	if len(saved) > 0 {
		result.Payload["saved_images"] = saved
	}

	return result
}

// GenerateAudio dispatches audio generation with a prebuilt voice and
// persists inline audio output in the bounded audio catalog.
func (f *GenerationFacadeImpl) GenerateAudio(ctx context.Context, prompt string, opts GenerationOptions) Result {
	model, err := f.resolveModel(opts)
	if err != nil {
		return missingModelResult()
	}

	voice := opts.Voice
	if voice == "" {
		voice = DefaultVoice
	}

	payload := GenerateContentRequest{
		Contents: []Content{{Parts: []Part{{Text: ComposeAudioPrompt(prompt)}}}},
		GenerationConfig: &GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &SpeechConfig{
				VoiceConfig: &VoiceConfig{
					PrebuiltVoiceConfig: &PrebuiltVoiceConfig{VoiceName: voice},
				},
			},
		},
	}

	outcome := f.client.GenerateContent(ctx, model, payload)
	f.recordGeneration(ctx, "audio", model, outcome.Success)

	result := formatResponse(outcome)
	if !result.Success {
		return result
	}

	if encoded, ok := firstInlineData(result.Payload); ok {
		record, err := f.audios.SaveEncoded(ctx, encoded, prompt, model)
		if err != nil {
			if errors.Is(err, ErrInvalidPayload) {
				return Result{
					Success: false,
					Status:  http.StatusBadRequest,
					Body:    fmt.Sprintf("invalid audio payload: %v", err),
				}
			}
			f.logger.Error("failed to save generated audio", zap.Error(err))
		} else {
			result.Payload["saved_audio"] = record
		}
	}

	return result
}

// firstInlineData digs the first candidate's inline media data out of a
// provider payload.
func firstInlineData(payload map[string]any) (string, bool) {
	first, ok := firstCandidate(payload)
	if !ok {
		return "", false
	}
	content, ok := first["content"].(map[string]any)
	if !ok {
		return "", false
	}
	parts, ok := content["parts"].([]any)
	if !ok || len(parts) == 0 {
		return "", false
	}
	part, ok := parts[0].(map[string]any)
	if !ok {
		return "", false
	}
	inline, ok := part["inlineData"].(map[string]any)
	if !ok {
		return "", false
	}
	data, ok := inline["data"].(string)
	return data, ok
}

// GenerateVideo dispatches video script generation. Video output is not
// persisted: the provider returns script text rather than video bytes, so
// the video catalog is only populated out of band.
func (f *GenerationFacadeImpl) GenerateVideo(ctx context.Context, prompt string, opts GenerationOptions) Result {
	model, err := f.resolveModel(opts)
	if err != nil {
		return missingModelResult()
	}

	payload := GenerateContentRequest{
		Contents: []Content{{Parts: []Part{{Text: ComposeVideoPrompt(prompt)}}}},
		GenerationConfig: &GenerationConfig{
			ResponseModalities: []string{"VIDEO"},
		},
	}

	outcome := f.client.GenerateContent(ctx, model, payload)
	f.recordGeneration(ctx, "video", model, outcome.Success)

	return formatResponse(outcome)
}

func (f *GenerationFacadeImpl) recordGeneration(ctx context.Context, kind, model string, success bool) {
	if f.telemetry != nil {
		f.telemetry.RecordGeneration(ctx, kind, model, success)
	}
}

// Heuristic for prompts that are already plain English: ASCII words only
// and none of the common Spanish function words.
var (
	asciiTextRe   = regexp.MustCompile(`^[a-zA-Z0-9\s.,!?'"-]+$`)
	spanishWordRe = regexp.MustCompile(`(?i)\b(el|la|los|las|un|una|es|son|está|están|curso|promoción)\b`)
)

// translateToEnglish returns the prompt as-is when it already looks
// English, otherwise asks the provider for a translation. Falls back to
// the original prompt on any failure.
func (f *GenerationFacadeImpl) translateToEnglish(ctx context.Context, text string) string {
	if asciiTextRe.MatchString(text) && !spanishWordRe.MatchString(text) {
		return text
	}

	model := f.cfg.ProviderConfig.Model
	if model == "" {
		return text
	}

	payload := GenerateContentRequest{
		Contents: []Content{{Parts: []Part{{
			Text: "Translate the following text to English. Only return the translated text, nothing else: " + text,
		}}}},
	}

	outcome := f.client.GenerateContent(ctx, model, payload)
	if !outcome.Success {
		return text
	}
	if translated, ok := ExtractPrimaryText(outcome.Data); ok {
		return translated
	}
	return text
}

var (
	enrichedFenceRe = regexp.MustCompile("(?s)```.*?```")
	enrichedQuoteRe = regexp.MustCompile(`^["']+|["']+$`)
)

// enrichImagePrompt turns a terse user prompt into a detailed visual prompt
// for educational marketing imagery, using the provider itself as the
// enhancer. Falls back to the translated prompt when no model is configured
// or the enhancement call fails.
func (f *GenerationFacadeImpl) enrichImagePrompt(ctx context.Context, userPrompt string) string {
	english := f.translateToEnglish(ctx, userPrompt)

	model := f.cfg.ProviderConfig.Model
	if model == "" {
		return english
	}

	enhancement := fmt.Sprintf(`You are an expert in creating visual prompts for educational marketing images.

Based on this user input: %q

Analyze the intent and create a detailed, visual image prompt following these rules:

1. If it mentions 'course' or 'curso', create a professional educational promotion showing a modern classroom or online learning environment, students or professionals engaged with the topic, a clean professional aesthetic with bright inviting colors, visible technology (laptops, tablets, screens), and subtle educational elements (books, certificates, graduation caps).

2. If it mentions 'promotion', 'discount', 'promoción', or a percentage, create an attention-grabbing promotional image with bold vibrant colors (blues, greens, oranges), clear visual hierarchy, modern dynamic composition, and a professional but energetic, tech-forward vibe.

3. If it is just a topic or subject (like 'Python', 'Excel', 'Marketing'), create an informative educational image showing a visual representation of the subject in action, a modern professional learning environment, a bright welcoming atmosphere, and a clean minimalist composition.

4. ALWAYS include: professional photography style or modern digital illustration, bright natural or studio lighting, high quality sharp details, an educational context (laptops, screens, modern classroom, online learning setup), appeal to young adults and professionals (age 18-45), Latin American or diverse representation when showing people, and a modern tech-savvy aesthetic.

5. Output format requirements: write in English (required for image generation), maximum 2 sentences, focus on VISUAL elements only, be specific about colors, composition, lighting, and style, no abstract concepts.

Return ONLY the enhanced visual prompt, nothing else. No explanations, no markdown, just the prompt text.`, english)

	payload := GenerateContentRequest{
		Contents: []Content{{Parts: []Part{{Text: enhancement}}}},
		GenerationConfig: &GenerationConfig{
			Temperature:     floatPtr(0.8),
			MaxOutputTokens: intPtr(200),
			TopP:            floatPtr(0.9),
			TopK:            intPtr(40),
		},
	}

	outcome := f.client.GenerateContent(ctx, model, payload)
	if !outcome.Success {
		return english
	}

	enhanced, ok := ExtractPrimaryText(outcome.Data)
	if !ok {
		return english
	}

	enhanced = enrichedFenceRe.ReplaceAllString(enhanced, "")
	enhanced = enrichedQuoteRe.ReplaceAllString(enhanced, "")
	enhanced = strings.TrimSpace(enhanced)
	if enhanced == "" {
		return english
	}

	return enhanced
}
