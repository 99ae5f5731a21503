package postprocess

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"think block", "<think>\nplan the answer\n</think>\n\nGo is great.", "Go is great."},
		{"think mixed case", "<THINK>x</Think>Answer", "Answer"},
		{"multiple think blocks", "<think>a</think>One <think>b</think>two", "One two"},
		{"label", "Assistant:   Hello", "Hello"},
		{"label case-insensitive", "bot: hi", "hi"},
		{"only first label", "AI: Response: x", "Response: x"},
		{"escaped newlines", `line one\nline two`, "line one\nline two"},
		{"plain", "  nothing to do  ", "nothing to do"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestFixLinks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare url", "see https://go.dev/doc for more", "see <https://go.dev/doc> for more"},
		{"markdown link kept", "read [docs](https://go.dev).", "read [docs](https://go.dev)"},
		{"markdown link comma", "[a](http://a.io), [b](http://b.io)", "[a](http://a.io) [b](http://b.io)"},
		{"already wrapped", "at <https://go.dev> now", "at <https://go.dev> now"},
		{"two urls", "http://a.io and HTTPS://B.IO", "<http://a.io> and <HTTPS://B.IO>"},
		{"no urls", "plain text.", "plain text."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FixLinks(tt.in))
		})
	}
}

func TestChunk_Properties(t *testing.T) {
	t.Parallel()

	line := strings.Repeat("a", 700) + "\n"
	inputs := map[string]string{
		"empty":          "",
		"short":          "hello",
		"exact":          strings.Repeat("x", 2000),
		"lines":          strings.Repeat(line, 10),
		"no newlines":    strings.Repeat("y", 4500),
		"multibyte":      strings.Repeat("é🙂", 1500),
		"leading break":  "\n" + strings.Repeat("z", 2500),
		"mixed newlines": strings.Repeat("word ", 300) + "\n" + strings.Repeat("b", 3000),
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			chunks := Chunk(in, 2000)
			assert.Equal(t, in, strings.Join(chunks, ""))
			for _, c := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(c), 2000)
				assert.NotEmpty(t, c)
				assert.True(t, utf8.ValidString(c))
			}
		})
	}
}

func TestChunk_PrefersNewline(t *testing.T) {
	t.Parallel()

	line := strings.Repeat("a", 700) + "\n"
	chunks := Chunk(strings.Repeat(line, 4), 2000)
	assert.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat(line, 2), chunks[0])
	assert.True(t, strings.HasSuffix(chunks[0], "\n"))

	// A newline at the window start does not count as a break point.
	hard := Chunk("\n"+strings.Repeat("z", 2500), 2000)
	assert.Len(t, hard, 2)
	assert.Equal(t, 2000, utf8.RuneCountInString(hard[0]))
}

func TestChunk_Short(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"Go is a language."}, Chunk("Go is a language.", 0))
	assert.Nil(t, Chunk("", 2000))
}
