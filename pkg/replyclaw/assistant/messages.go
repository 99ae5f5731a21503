package assistant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/llm"
)

// User-visible texts.
const (
	MsgThinking       = "🧠 Thinking..."
	MsgTimeout        = "⏱️ The model took too long to respond."
	MsgGenericFailure = "⚠️ Something went wrong while processing your request."
	MsgEmptyRequest   = "❗ Please ask a question or upload a file."
	MsgUnreadableFile = "📎 I saw the file but couldn’t read anything useful from it. Try a different format?"

	MsgMemoryErased   = "🧹 Conversation memory erased. Personality settings remain unchanged."
	MsgNoMemory       = "ℹ️ No memory found for this server."
	MsgInvalidTone    = "❌ Invalid personality style. Use `%slistTone` to view available options."
	MsgPersonalitySet = "🎭 Personality set to **%s** for this server!"
	MsgCurrentTone    = "🎭 Current personality: **%s**"
)

// CooldownMessage renders the rate-limit notice.
func CooldownMessage(err *CooldownError) string {
	return fmt.Sprintf("⏳ You’re going too fast! Try again in `%.1f` seconds.", err.RetryAfter.Seconds())
}

// FallbackMessage renders the unknown-personality notice.
func FallbackMessage(name, fallback string) string {
	return fmt.Sprintf("⚠️ The personality `%s` was not found. Falling back to `%s`.", name, fallback)
}

// UserMessage maps a Reply error to the text shown to the requester.
func UserMessage(err error) string {
	var cd *CooldownError
	switch {
	case errors.As(err, &cd):
		return CooldownMessage(cd)
	case errors.Is(err, ErrEmptyRequest):
		return MsgEmptyRequest
	case errors.Is(err, llm.ErrTimeout):
		return MsgTimeout
	default:
		return MsgGenericFailure
	}
}

// PersonalityList renders the catalog as "**name**: instruction" lines.
func (a *Assistant) PersonalityList() string {
	var b strings.Builder
	b.WriteString("🎭 **Available Personalities:**")
	for _, name := range a.registry.Names() {
		instr, _ := a.registry.Instruction(name)
		fmt.Fprintf(&b, "\n**%s**: %s", name, instr)
	}
	return b.String()
}
