// Package postprocess cleans raw model output and splits it into messages
// that fit the platform size limit.
package postprocess

import (
	"regexp"
	"strings"
)

// DefaultChunkSize is the Discord message length limit.
const DefaultChunkSize = 2000

var (
	thinkBlock  = regexp.MustCompile(`(?is)<think>.*?</think>`)
	labelPrefix = regexp.MustCompile(`(?i)^(Bot:|AI:|Assistant:|Response:)\s*`)
	linkPunct   = regexp.MustCompile(`(\[[^\]]+\]\([^)]+\))[,.]`)
	bareURL     = regexp.MustCompile(`(?i)https?://[^\s<>()]+`)
)

// Clean removes reasoning blocks, a leading speaker label and escaped
// newlines from a model reply.
func Clean(text string) string {
	text = strings.TrimSpace(thinkBlock.ReplaceAllString(text, ""))
	text = labelPrefix.ReplaceAllString(text, "")
	return strings.ReplaceAll(text, `\n`, "\n")
}

// FixLinks adapts links for Discord: punctuation glued to a markdown link is
// dropped and bare URLs are wrapped in <> to suppress embeds. URLs that are a
// markdown link target or already inside <> are left alone.
func FixLinks(text string) string {
	text = linkPunct.ReplaceAllString(text, "$1")

	matches := bareURL.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + 2*len(matches))
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		b.WriteString(text[last:start])
		if isLinkTarget(text, start) || isBracketed(text, start, end) {
			b.WriteString(text[start:end])
		} else {
			b.WriteString("<")
			b.WriteString(text[start:end])
			b.WriteString(">")
		}
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

// Process applies Clean then FixLinks.
func Process(text string) string {
	return FixLinks(Clean(text))
}

// Chunk splits text into pieces of at most max runes. Each piece ends right
// after the last newline inside its window when that newline is past the
// window start; otherwise the window is cut hard. Concatenating the pieces
// yields text.
func Chunk(text string, max int) []string {
	if max <= 0 {
		max = DefaultChunkSize
	}
	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); {
		end := start + max
		if end < len(runes) {
			for i := end - 1; i > start; i-- {
				if runes[i] == '\n' {
					end = i + 1
					break
				}
			}
		} else {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		start = end
	}
	return chunks
}

func isLinkTarget(text string, start int) bool {
	return start >= 2 && text[start-2:start] == "]("
}

func isBracketed(text string, start, end int) bool {
	return start >= 1 && text[start-1] == '<' && end < len(text) && text[end] == '>'
}
