// Package memory implements the per-tenant conversation memory for ReplyClaw.
//
// Each tenant owns exactly one Record: the selected personality plus the
// ordered Turns of every channel the bot has answered in. Records are
// persisted whole (no partial updates) by a Backend, and every
// load→mutate→save cycle for a tenant is serialized by Store.Update.
package memory

import (
	"sort"
	"time"
)

// Turn is one question/answer exchange. Turns are append-only.
type Turn struct {
	User        string    `json:"user"`
	Bot         string    `json:"bot"`
	FileContext string    `json:"file_context,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// HasFile reports whether the turn carries a file excerpt.
func (t Turn) HasFile() bool { return t.FileContext != "" }

// Record is the full memory of one tenant.
type Record struct {
	// Personality is the selected personality name; empty means "use the default".
	Personality string `json:"personality,omitempty"`

	// Channels maps channel ID to its turns in arrival order.
	Channels map[string][]Turn `json:"channels"`
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{Channels: make(map[string][]Turn)}
}

// Append adds a turn at the end of the channel history.
func (r *Record) Append(channelID string, turn Turn) {
	if r.Channels == nil {
		r.Channels = make(map[string][]Turn)
	}
	r.Channels[channelID] = append(r.Channels[channelID], turn)
}

// Turns returns the turns for one channel.
func (r *Record) Turns(channelID string) []Turn {
	return r.Channels[channelID]
}

// ChannelIDs returns the channel IDs with history, sorted.
func (r *Record) ChannelIDs() []string {
	ids := make([]string, 0, len(r.Channels))
	for id := range r.Channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TurnCount returns the number of turns across all channels.
func (r *Record) TurnCount() int {
	n := 0
	for _, turns := range r.Channels {
		n += len(turns)
	}
	return n
}

// Clear drops every turn but keeps the personality.
func (r *Record) Clear() {
	r.Channels = make(map[string][]Turn)
}
