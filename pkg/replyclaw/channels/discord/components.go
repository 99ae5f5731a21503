package discord

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// ComponentSpec defines the behavior of a registered button or select menu.
type ComponentSpec struct {
	// AllowedUsers restricts who can interact. Empty means anyone.
	AllowedUsers []string

	// TTL is how long the component stays registered. Zero means no expiry.
	TTL time.Duration

	// Handler is called when an authorized user interacts.
	Handler ComponentHandler
}

// ComponentHandler processes one interaction and returns the new message state.
type ComponentHandler func(ctx context.Context, evt *InteractionEvent) (*ComponentResponse, error)

// ComponentResponse is the message state after an interaction.
type ComponentResponse struct {
	Content string

	// Components replaces the message components. Nil removes them.
	Components []discordgo.MessageComponent
}

// InteractionEvent carries data from a component interaction.
type InteractionEvent struct {
	CustomID  string
	UserID    string
	Username  string
	ChannelID string
	GuildID   string
	Values    []string
}

// IsAllowed reports whether userID may use the component.
func (s *ComponentSpec) IsAllowed(userID string) bool {
	return len(s.AllowedUsers) == 0 || slices.Contains(s.AllowedUsers, userID)
}

// sweepInterval is how often expired pickers are dropped.
const sweepInterval = 30 * time.Second

type componentEntry struct {
	spec ComponentSpec

	// expiresAt is zero for components without a TTL.
	expiresAt time.Time
}

func (e componentEntry) expiredAt(t time.Time) bool {
	return !e.expiresAt.IsZero() && t.After(e.expiresAt)
}

// ComponentRegistry maps custom ids to the handlers of live pickers. Entries
// expire after their TTL; a background sweep removes them.
type ComponentRegistry struct {
	mu       sync.RWMutex
	entries  map[string]componentEntry
	now      func() time.Time
	logger   *slog.Logger
	done     chan struct{}
	stopOnce sync.Once
}

// NewComponentRegistry creates a registry and starts the expiry sweep.
func NewComponentRegistry(logger *slog.Logger) *ComponentRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &ComponentRegistry{
		entries: make(map[string]componentEntry),
		now:     time.Now,
		logger:  logger.With("component", "discord_components"),
		done:    make(chan struct{}),
	}
	go r.sweep()
	return r
}

// Register adds or replaces the spec for customID. Empty ids are ignored.
func (r *ComponentRegistry) Register(customID string, spec ComponentSpec) {
	if customID == "" {
		return
	}
	e := componentEntry{spec: spec}
	r.mu.Lock()
	if spec.TTL > 0 {
		e.expiresAt = r.now().Add(spec.TTL)
	}
	r.entries[customID] = e
	r.mu.Unlock()
}

// Unregister removes the given custom ids.
func (r *ComponentRegistry) Unregister(customIDs ...string) {
	r.mu.Lock()
	for _, id := range customIDs {
		delete(r.entries, id)
	}
	r.mu.Unlock()
}

// Get returns a copy of the spec unless it is missing or expired.
func (r *ComponentRegistry) Get(customID string) (*ComponentSpec, bool) {
	r.mu.RLock()
	e, ok := r.entries[customID]
	now := r.now()
	r.mu.RUnlock()
	if !ok || e.expiredAt(now) {
		return nil, false
	}
	return &e.spec, true
}

// Len counts registered components, including expired ones not yet swept.
func (r *ComponentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Stop ends the expiry sweep. Safe to call more than once.
func (r *ComponentRegistry) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

func (r *ComponentRegistry) sweep() {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			r.cleanupExpired()
		case <-r.done:
			return
		}
	}
}

// cleanupExpired drops expired entries and returns how many went.
func (r *ComponentRegistry) cleanupExpired() int {
	r.mu.Lock()
	now := r.now()
	removed := 0
	for id, e := range r.entries {
		if e.expiredAt(now) {
			delete(r.entries, id)
			removed++
		}
	}
	r.mu.Unlock()

	if removed > 0 {
		r.logger.Debug("expired components removed", "count", removed)
	}
	return removed
}
