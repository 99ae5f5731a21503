package ingest

import (
	"regexp"
	"strings"
)

// DefaultExcerptChars bounds the file context stored with a memory turn.
const DefaultExcerptChars = 1000

var (
	emailPattern  = regexp.MustCompile(`[\w.\-]+@[\w.\-]+`)
	numberPattern = regexp.MustCompile(`\b\d{10,}\b`)
)

// Redact masks email addresses and digit runs of ten or more (phone numbers,
// account ids) before text is persisted.
func Redact(text string) string {
	text = emailPattern.ReplaceAllString(text, "[REDACTED_EMAIL]")
	return numberPattern.ReplaceAllString(text, "[REDACTED_NUMBER]")
}

// Truncate bounds text to roughly maxChars runes by keeping the first 60% and
// the last 30%, joined by an ellipsis line. Text within the bound is only
// trimmed.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultExcerptChars
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return strings.TrimSpace(text)
	}
	head := strings.TrimSpace(string(runes[:maxChars*6/10]))
	tail := strings.TrimSpace(string(runes[len(runes)-maxChars*3/10:]))
	return head + "\n...\n" + tail
}

// Excerpt is the redacted, bounded form of file context kept in memory.
func Excerpt(text string, maxChars int) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return Truncate(Redact(text), maxChars)
}
