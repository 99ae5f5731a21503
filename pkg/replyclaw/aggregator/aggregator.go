// Package aggregator builds the context blocks fed to the prompt composer:
// the tenant's historical exchanges and the recent channel window.
package aggregator

import (
	"strings"
	"unicode/utf8"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/channels"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/memory"
)

// legacyPersonalityKey was stored alongside channel ids by older record
// layouts and must never be rendered as a channel.
const legacyPersonalityKey = "personality"

// Options bounds the aggregation.
type Options struct {
	// HistoryTurns is the number of most recent Turns kept per channel.
	HistoryTurns int `yaml:"history_turns"`

	// RecentLimit is the size of the recent channel window.
	RecentLimit int `yaml:"recent_messages"`

	// MinLength drops texts shorter than this many characters.
	MinLength int `yaml:"min_length"`

	// CommandPrefixes marks recent messages that are bot commands.
	CommandPrefixes []string `yaml:"command_prefixes"`
}

// DefaultOptions returns the standard aggregation bounds.
func DefaultOptions() Options {
	return Options{
		HistoryTurns:    10,
		RecentLimit:     20,
		MinLength:       5,
		CommandPrefixes: []string{"!", "/"},
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.HistoryTurns <= 0 {
		o.HistoryTurns = def.HistoryTurns
	}
	if o.RecentLimit <= 0 {
		o.RecentLimit = def.RecentLimit
	}
	if o.MinLength < 0 {
		o.MinLength = 0
	}
	if o.CommandPrefixes == nil {
		o.CommandPrefixes = def.CommandPrefixes
	}
	return o
}

// Historical renders the last HistoryTurns Turns of every channel in the
// record. Channels are visited in sorted id order; Turns inside a channel are
// chronological. A Turn whose user and bot texts are both shorter than
// MinLength is skipped.
func Historical(rec *memory.Record, opts Options) string {
	if rec == nil {
		return ""
	}
	opts = opts.withDefaults()

	var b strings.Builder
	for _, channelID := range rec.ChannelIDs() {
		if channelID == legacyPersonalityKey {
			continue
		}
		turns := rec.Turns(channelID)
		if len(turns) > opts.HistoryTurns {
			turns = turns[len(turns)-opts.HistoryTurns:]
		}
		for _, turn := range turns {
			if short(turn.User, opts.MinLength) && short(turn.Bot, opts.MinLength) {
				continue
			}
			b.WriteString("User: ")
			b.WriteString(turn.User)
			b.WriteString("\nBot: ")
			b.WriteString(turn.Bot)
			if turn.HasFile() {
				b.WriteString("\n[Related File Content]\n")
				b.WriteString(turn.FileContext)
			}
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

// Recent renders the recent channel window as "speaker: text" lines in
// chronological order. Input is most recent first and only the first
// RecentLimit entries are considered. Bot-authored messages, messages shorter
// than MinLength and bot commands are dropped. The command test looks at the
// raw content, so "  !reply" with leading spaces counts as chat.
func Recent(msgs []channels.Message, opts Options) string {
	opts = opts.withDefaults()
	if len(msgs) > opts.RecentLimit {
		msgs = msgs[:opts.RecentLimit]
	}

	lines := make([]string, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		if msg.Bot {
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" || short(content, opts.MinLength) || isCommand(msg.Content, opts.CommandPrefixes) {
			continue
		}
		lines = append(lines, msg.Author+": "+content)
	}
	return strings.Join(lines, "\n")
}

func short(s string, min int) bool {
	return utf8.RuneCountInString(s) < min
}

func isCommand(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
