// Package tenant identifies the isolation boundary for ReplyClaw memory:
// either a group conversation (a Discord guild) or a single private user.
package tenant

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the Tenant variant.
type Kind uint8

const (
	// KindNone marks the zero Tenant, which is never valid.
	KindNone Kind = iota
	// KindGuild is a group conversation.
	KindGuild
	// KindUser is a private conversation with one user.
	KindUser
)

// ErrInvalid is returned when parsing or using a Tenant with no identifier.
var ErrInvalid = errors.New("tenant: exactly one of guild or user id must be set")

// Tenant is a sum type over {Guild(id), User(id)}. Construct it with Guild or
// User; the zero value is invalid.
type Tenant struct {
	kind Kind
	id   string
}

// Guild returns the tenant for a group conversation.
func Guild(id string) Tenant { return Tenant{kind: KindGuild, id: strings.TrimSpace(id)} }

// User returns the tenant for a private conversation.
func User(id string) Tenant { return Tenant{kind: KindUser, id: strings.TrimSpace(id)} }

// ForMessage picks the guild tenant when guildID is set, the user tenant otherwise.
func ForMessage(guildID, userID string) Tenant {
	if guildID != "" {
		return Guild(guildID)
	}
	return User(userID)
}

// Kind returns the variant.
func (t Tenant) Kind() Kind { return t.kind }

// ID returns the raw platform identifier.
func (t Tenant) ID() string { return t.id }

// IsGroup reports whether the tenant is a group conversation.
func (t Tenant) IsGroup() bool { return t.kind == KindGuild }

// Valid reports whether the tenant carries a usable identifier.
func (t Tenant) Valid() bool {
	return t.kind != KindNone && t.id != "" && !strings.ContainsAny(t.id, `/\:`)
}

// Key returns the stable persistence key: guild_<id> or user_<id>.
func (t Tenant) Key() string {
	switch t.kind {
	case KindGuild:
		return "guild_" + t.id
	case KindUser:
		return "user_" + t.id
	default:
		return ""
	}
}

// String implements fmt.Stringer.
func (t Tenant) String() string {
	if k := t.Key(); k != "" {
		return k
	}
	return "<invalid tenant>"
}

// Parse is the inverse of Key.
func Parse(key string) (Tenant, error) {
	var t Tenant
	switch {
	case strings.HasPrefix(key, "guild_"):
		t = Guild(strings.TrimPrefix(key, "guild_"))
	case strings.HasPrefix(key, "user_"):
		t = User(strings.TrimPrefix(key, "user_"))
	default:
		return Tenant{}, fmt.Errorf("%w: %q", ErrInvalid, key)
	}
	if !t.Valid() {
		return Tenant{}, fmt.Errorf("%w: %q", ErrInvalid, key)
	}
	return t, nil
}
