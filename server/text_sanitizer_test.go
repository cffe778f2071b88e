package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPrimaryText(t *testing.T) {
	tests := []struct {
		name     string
		payload  map[string]any
		expected string
		found    bool
	}{
		{
			name: "candidate content parts joined",
			payload: map[string]any{
				"candidates": []any{
					map[string]any{
						"content": map[string]any{
							"parts": []any{
								map[string]any{"text": "first"},
								map[string]any{"text": "second"},
							},
						},
					},
				},
			},
			expected: "first\nsecond",
			found:    true,
		},
		{
			name:     "top level text",
			payload:  map[string]any{"text": "  hello  "},
			expected: "hello",
			found:    true,
		},
		{
			name:     "top level generated_text",
			payload:  map[string]any{"generated_text": "already generated"},
			expected: "already generated",
			found:    true,
		},
		{
			name: "candidate direct text",
			payload: map[string]any{
				"candidates": []any{
					map[string]any{"text": "direct"},
				},
			},
			expected: "direct",
			found:    true,
		},
		{
			name: "candidate parts preferred over top level text",
			payload: map[string]any{
				"text": "top",
				"candidates": []any{
					map[string]any{
						"content": map[string]any{
							"parts": []any{map[string]any{"text": "from parts"}},
						},
					},
				},
			},
			expected: "from parts",
			found:    true,
		},
		{
			name:     "nothing usable",
			payload:  map[string]any{"candidates": []any{}},
			expected: "",
			found:    false,
		},
		{
			name: "whitespace only parts fall through",
			payload: map[string]any{
				"candidates": []any{
					map[string]any{
						"content": map[string]any{
							"parts": []any{map[string]any{"text": "   "}},
						},
					},
				},
				"text": "fallback",
			},
			expected: "fallback",
			found:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, ok := ExtractPrimaryText(tt.payload)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, text)
		})
	}
}

func TestCleanGeneratedText_PreambleRemoval(t *testing.T) {
	out := CleanGeneratedText("Claro, aquí tienes tu publicación:\n\nHello world", "", ChannelPodcast)
	assert.Equal(t, "Hello world", out)
}

func TestCleanGeneratedText_SeparatorCut(t *testing.T) {
	raw := "Some meta commentary about the task\n\n---\n\nThe actual post body"
	out := CleanGeneratedText(raw, "", ChannelGeneric)
	assert.Equal(t, "The actual post body", out)
}

func TestCleanGeneratedText_LastSeparatorWins(t *testing.T) {
	raw := "intro\n---\nmiddle\n-----\nfinal text"
	out := CleanGeneratedText(raw, "", ChannelGeneric)
	assert.Equal(t, "final text", out)
}

func TestCleanGeneratedText_FacebookMarkdownAndLink(t *testing.T) {
	out := CleanGeneratedText("Check this **great** course", "https://x.test/c", ChannelFacebook)
	assert.Equal(t, "Check this great course\n\nMás información e inscripciones: https://x.test/c", out)
}

func TestCleanGeneratedText_PlaceholderSubstitution(t *testing.T) {
	out := CleanGeneratedText("Inscríbete en [your link here] hoy", "https://x.test/c", ChannelGeneric)
	assert.Equal(t, "Inscríbete en https://x.test/c hoy", out)
}

func TestCleanGeneratedText_PlaceholderStrippedWithoutLink(t *testing.T) {
	out := CleanGeneratedText("Inscríbete en [your link here] hoy", "", ChannelGeneric)
	assert.NotContains(t, out, "[your link here]")
	assert.NotContains(t, out, "https://")
}

func TestCleanGeneratedText_FacebookStripsForeignURLs(t *testing.T) {
	raw := "Curso nuevo https://spam.example/buy disponible, visita https://x.test/c"
	out := CleanGeneratedText(raw, "https://x.test/c", ChannelFacebook)
	assert.NotContains(t, out, "spam.example")
	assert.Contains(t, out, "https://x.test/c")
}

func TestCleanGeneratedText_NonFacebookKeepsMarkdown(t *testing.T) {
	out := CleanGeneratedText("A **bold** statement", "", ChannelInstagram)
	assert.Equal(t, "A **bold** statement", out)
}

func TestCleanGeneratedText_Deterministic(t *testing.T) {
	raw := "Hola! Te presento:\n\n## Título\n\n- punto uno\n- punto dos\n\nVisita [tu enlace aquí]"
	first := CleanGeneratedText(raw, "https://x.test/c", ChannelFacebook)
	second := CleanGeneratedText(raw, "https://x.test/c", ChannelFacebook)
	assert.Equal(t, first, second)
}

func TestCleanGeneratedText_FixedPoint(t *testing.T) {
	inputs := []string{
		"Claro, aquí tienes tu publicación:\n\nHello world",
		"Check this **great** course",
		"intro\n\n---\n\nbody with https://x.test/c inside",
		"Hola!\n\n# Heading\n\n1. first\n2. second",
	}

	for _, raw := range inputs {
		once := CleanGeneratedText(raw, "https://x.test/c", ChannelFacebook)
		twice := CleanGeneratedText(once, "https://x.test/c", ChannelFacebook)
		require.Equal(t, once, twice, "clean must be a fixed point for %q", raw)
	}
}

func TestCleanGeneratedText_CollapsesExcessNewlines(t *testing.T) {
	out := CleanGeneratedText("line one\n\n\n\nline two", "", ChannelGeneric)
	assert.Equal(t, "line one\n\nline two", out)
}
