package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChannel(t *testing.T) {
	tests := []struct {
		input    string
		expected Channel
	}{
		{"facebook", ChannelFacebook},
		{"Facebook", ChannelFacebook},
		{"INSTAGRAM", ChannelInstagram},
		{"podcast", ChannelPodcast},
		{"tiktok", ChannelGeneric},
		{"", ChannelGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseChannel(tt.input))
		})
	}
}

func TestComposeChannelPrompt_AlwaysOpensWithLanguageDirective(t *testing.T) {
	channels := []Channel{ChannelFacebook, ChannelInstagram, ChannelPodcast, ChannelGeneric}
	for _, channel := range channels {
		prompt := ComposeChannelPrompt("curso de Python", channel, "", "")
		assert.True(t, strings.HasPrefix(prompt, languageDirective), "channel %s", channel)
		assert.Contains(t, prompt, "curso de Python")
	}
}

func TestComposeChannelPrompt_ChannelFraming(t *testing.T) {
	facebook := ComposeChannelPrompt("tema", ChannelFacebook, "", "")
	assert.Contains(t, facebook, "Facebook")
	assert.Contains(t, facebook, "emojis y hashtags")

	instagram := ComposeChannelPrompt("tema", ChannelInstagram, "", "")
	assert.Contains(t, instagram, "Instagram")
	assert.Contains(t, instagram, "150 caracteres")
	assert.Contains(t, instagram, "3 y 5 hashtags")

	podcast := ComposeChannelPrompt("tema", ChannelPodcast, "", "")
	assert.Contains(t, podcast, "guión de podcast")

	generic := ComposeChannelPrompt("tema", ChannelGeneric, "", "")
	assert.Equal(t, languageDirective+" tema", generic)
}

func TestComposeChannelPrompt_ToneAndLength(t *testing.T) {
	prompt := ComposeChannelPrompt("tema", ChannelPodcast, "casual", "short")
	assert.True(t, strings.HasSuffix(prompt, "\nTone: casual.\nLength: short."))

	noExtras := ComposeChannelPrompt("tema", ChannelPodcast, "", "")
	assert.NotContains(t, noExtras, "Tone:")
	assert.NotContains(t, noExtras, "Length:")
}

func TestComposeChannelPrompt_Deterministic(t *testing.T) {
	first := ComposeChannelPrompt("tema", ChannelInstagram, "formal", "long")
	second := ComposeChannelPrompt("tema", ChannelInstagram, "formal", "long")
	assert.Equal(t, first, second)
}

func TestComposeFromContents_PrependsDirectiveBlock(t *testing.T) {
	contents := []map[string]any{
		{"parts": []map[string]any{{"text": "user content"}}},
	}

	composed := ComposeFromContents(contents, "casual", "short")
	require.Len(t, composed, 2)

	parts, ok := composed[0]["parts"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, parts, 1)
	lead, ok := parts[0]["text"].(string)
	require.True(t, ok)
	assert.Equal(t, languageDirective+" Tone: casual. Length: short.", lead)

	assert.Equal(t, contents[0], composed[1])
}

func TestComposeFromContents_DoesNotMutateInput(t *testing.T) {
	contents := []map[string]any{
		{"parts": []map[string]any{{"text": "original"}}},
	}

	_ = ComposeFromContents(contents, "", "")
	require.Len(t, contents, 1)
	assert.Equal(t, "original", contents[0]["parts"].([]map[string]any)[0]["text"])
}

func TestComposeAudioAndVideoPrompts(t *testing.T) {
	audio := ComposeAudioPrompt("noticias de hoy")
	assert.True(t, strings.HasPrefix(audio, languageDirective))
	assert.Contains(t, audio, "noticias de hoy")

	video := ComposeVideoPrompt("promo del curso")
	assert.True(t, strings.HasPrefix(video, languageDirective))
	assert.Contains(t, video, "promo del curso")
}
