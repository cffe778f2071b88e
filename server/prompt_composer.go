package server

import "strings"

// Channel is the target publishing surface for generated text. Each channel
// carries its own prompt framing and output formatting rules.
type Channel string

const (
	ChannelFacebook  Channel = "facebook"
	ChannelInstagram Channel = "instagram"
	ChannelPodcast   Channel = "podcast"
	ChannelGeneric   Channel = "generic"
)

// ParseChannel maps a channel name to a known Channel, falling back to
// ChannelGeneric for anything unrecognized.
func ParseChannel(name string) Channel {
	switch Channel(strings.ToLower(name)) {
	case ChannelFacebook:
		return ChannelFacebook
	case ChannelInstagram:
		return ChannelInstagram
	case ChannelPodcast:
		return ChannelPodcast
	default:
		return ChannelGeneric
	}
}

// All generated content is Spanish-first; every prompt opens with this directive.
const languageDirective = "Responde siempre en español."

// ComposeChannelPrompt wraps a raw user prompt with the language directive
// and channel-specific framing, then appends optional tone and length
// instructions as trailing lines. Pure and deterministic.
func ComposeChannelPrompt(rawPrompt string, channel Channel, tone, length string) string {
	var b strings.Builder

	switch channel {
	case ChannelFacebook:
		b.WriteString(languageDirective)
		b.WriteString(" Escribe un post que este listo para copiar y pegar en una publicación de Facebook de máximo 3 párrafos cortos que contengan emojis y hashtags sobre: ")
		b.WriteString(rawPrompt)
	case ChannelInstagram:
		b.WriteString(languageDirective)
		b.WriteString(" Crea un caption para Instagram de máximo 150 caracteres. ")
		b.WriteString("Incluye emojis y exactamente entre 3 y 5 hashtags. ")
		b.WriteString("Debe ser atractivo, conciso y pensado para captar atención en scroll. ")
		b.WriteString("Tema: ")
		b.WriteString(rawPrompt)
	case ChannelPodcast:
		b.WriteString(languageDirective)
		b.WriteString(" Escribe un guión de podcast de 2-3 párrafos sobre: ")
		b.WriteString(rawPrompt)
	default:
		b.WriteString(languageDirective)
		b.WriteString(" ")
		b.WriteString(rawPrompt)
	}

	if tone != "" {
		b.WriteString("\nTone: ")
		b.WriteString(tone)
		b.WriteString(".")
	}
	if length != "" {
		b.WriteString("\nLength: ")
		b.WriteString(length)
		b.WriteString(".")
	}

	return b.String()
}

// ComposeFromContents prepends one synthetic content block carrying the
// language directive plus optional tone/length fragments to a caller-built
// contents sequence. The blocks themselves are opaque; the caller's slice
// is not mutated.
func ComposeFromContents(contents []map[string]any, tone, length string) []map[string]any {
	fragments := []string{languageDirective}
	if tone != "" {
		fragments = append(fragments, "Tone: "+tone+".")
	}
	if length != "" {
		fragments = append(fragments, "Length: "+length+".")
	}

	lead := map[string]any{
		"parts": []map[string]any{
			{"text": strings.Join(fragments, " ")},
		},
	}

	composed := make([]map[string]any, 0, len(contents)+1)
	composed = append(composed, lead)
	composed = append(composed, contents...)
	return composed
}

// ComposeAudioPrompt wraps a prompt for audio generation.
func ComposeAudioPrompt(rawPrompt string) string {
	return languageDirective + " Genera contenido de audio con estas instrucciones: " + rawPrompt
}

// ComposeVideoPrompt wraps a prompt for video script generation.
func ComposeVideoPrompt(rawPrompt string) string {
	return languageDirective + " Genera un guión corto de video y direcciones visuales basadas en: " + rawPrompt
}
