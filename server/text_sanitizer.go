package server

import (
	"regexp"
	"strings"
)

// Trailing call-to-action line appended when a link is supplied and the
// generated text does not already carry one.
const linkLinePrefix = "Más información e inscripciones: "

var (
	separatorRunRe = regexp.MustCompile(`-{3,}`)
	blankLineRe    = regexp.MustCompile(`\n[ \t]*\n`)

	// Bracketed stand-ins models emit in place of the real link.
	linkPlaceholderRe = regexp.MustCompile(`(?i)\[\s*(?:your link here|link here|your link|tu enlace aqu[ií]|enlace aqu[ií]|aqu[ií] tu enlace|inserta tu enlace(?: aqu[ií])?)\s*\]`)

	urlRe = regexp.MustCompile(`https?://\S+`)

	codeFenceLineRe  = regexp.MustCompile("(?m)^[ \t]*```.*$")
	headingRe        = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]*`)
	bulletRe         = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`)
	orderedListRe    = regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]+`)
	horizontalRuleRe = regexp.MustCompile(`(?m)^[ \t]*(?:[*_][ \t]*){3,}$`)
	underscoreEmRe   = regexp.MustCompile(`\b_([^_\n]+)_\b`)
	excessNewlinesRe = regexp.MustCompile(`\n{3,}`)
)

// Conversational openings the models like to prepend before the actual
// content. Matched against the lowercased first paragraph.
var preambleMarkers = []string{
	"hola",
	"claro",
	"por supuesto",
	"aquí tienes",
	"aqui tienes",
	"here is",
	"here's",
	"te presento",
	"i present",
	"publicación para",
	"publicacion para",
	"publication for",
	"espero que",
}

// ExtractPrimaryText pulls the primary generated text out of a raw provider
// payload. Lookup order: the first candidate's content parts joined by
// newline, a top-level "text" field, a top-level "generated_text" field,
// then the first candidate's direct "text" field. The first non-empty
// match after trimming wins.
func ExtractPrimaryText(payload map[string]any) (string, bool) {
	first, _ := firstCandidate(payload)

	if first != nil {
		if content, ok := first["content"].(map[string]any); ok {
			if parts, ok := content["parts"].([]any); ok {
				var texts []string
				for _, p := range parts {
					if part, ok := p.(map[string]any); ok {
						if t, ok := part["text"].(string); ok {
							texts = append(texts, t)
						}
					}
				}
				if joined := strings.TrimSpace(strings.Join(texts, "\n")); joined != "" {
					return joined, true
				}
			}
		}
	}

	if t, ok := payload["text"].(string); ok {
		if trimmed := strings.TrimSpace(t); trimmed != "" {
			return trimmed, true
		}
	}

	if t, ok := payload["generated_text"].(string); ok {
		if trimmed := strings.TrimSpace(t); trimmed != "" {
			return trimmed, true
		}
	}

	if first != nil {
		if t, ok := first["text"].(string); ok {
			if trimmed := strings.TrimSpace(t); trimmed != "" {
				return trimmed, true
			}
		}
	}

	return "", false
}

func firstCandidate(payload map[string]any) (map[string]any, bool) {
	candidates, ok := payload["candidates"].([]any)
	if !ok || len(candidates) == 0 {
		return nil, false
	}
	first, ok := candidates[0].(map[string]any)
	return first, ok
}

// CleanGeneratedText turns raw model output into publish-ready text for a
// channel. It strips conversational preambles, resolves or removes link
// placeholders, enforces the Facebook plain-text rules (no markup, no
// foreign links), and normalizes whitespace. Deterministic: identical
// inputs produce byte-identical output.
func CleanGeneratedText(raw, linkURL string, channel Channel) string {
	text := raw

	// Models sometimes prepend meta-commentary and separate it from the
	// payload with a horizontal rule; keep only what follows the last one.
	if locs := separatorRunRe.FindAllStringIndex(text, -1); len(locs) > 0 {
		text = text[locs[len(locs)-1][1]:]
	} else if loc := blankLineRe.FindStringIndex(text); loc != nil {
		head := strings.ToLower(text[:loc[0]])
		for _, marker := range preambleMarkers {
			if strings.Contains(head, marker) {
				text = text[loc[1]:]
				break
			}
		}
	}

	text = resolveLink(text, linkURL)

	if channel == ChannelFacebook {
		text = enforcePlainText(text, linkURL)
	}

	text = excessNewlinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func resolveLink(text, linkURL string) string {
	if linkURL == "" {
		return linkPlaceholderRe.ReplaceAllString(text, "")
	}

	if linkPlaceholderRe.MatchString(text) {
		return linkPlaceholderRe.ReplaceAllString(text, linkURL)
	}

	if !urlRe.MatchString(text) {
		return strings.TrimRight(text, " \t\n") + "\n\n" + linkLinePrefix + linkURL
	}

	return text
}

// enforcePlainText strips markdown artifacts and foreign URLs for the
// channel that only accepts plain text.
func enforcePlainText(text, linkURL string) string {
	text = codeFenceLineRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "`", "")
	text = headingRe.ReplaceAllString(text, "")
	text = horizontalRuleRe.ReplaceAllString(text, "")
	text = bulletRe.ReplaceAllString(text, "")
	text = orderedListRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "__", "")
	text = strings.ReplaceAll(text, "*", "")
	text = underscoreEmRe.ReplaceAllString(text, "$1")

	text = urlRe.ReplaceAllStringFunc(text, func(match string) string {
		if linkURL != "" && strings.EqualFold(match, linkURL) {
			return match
		}
		return ""
	})

	return text
}
