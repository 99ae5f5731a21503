// Package channels defines the boundary between messaging platforms and the
// reply pipeline. Each platform adapter (Discord, console) turns its native
// events into a Request and implements Responder for outbound text.
package channels

import (
	"context"
	"time"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/ingest"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/tenant"
)

// Message is one entry of the recent channel window.
type Message struct {
	// Author is the speaker display name.
	Author string

	// Content is the raw message text.
	Content string

	// Bot is true when the author is an automated account.
	Bot bool

	// Timestamp is when the message was sent (informational).
	Timestamp time.Time
}

// Request is one inbound reply request as seen by the pipeline.
type Request struct {
	// Tenant owns the memory record (guild for group chats, user for DMs).
	Tenant tenant.Tenant

	// ChannelID groups Turns inside the tenant record.
	ChannelID string

	// UserID identifies the requester for cooldown accounting.
	UserID string

	// UserName is the requester display name (logging only).
	UserName string

	// Question is the raw question text; may be empty when files are attached.
	Question string

	// Attachments are the uploaded files.
	Attachments []ingest.Attachment

	// Recent is the recent channel window, most recent first. Empty for DMs.
	Recent []Message

	// FetchRecent, when set, loads the recent window on demand. It is only
	// called for group tenants that passed the cooldown check; the result
	// replaces Recent. A fetch error leaves the window empty.
	FetchRecent func(ctx context.Context) ([]Message, error)
}

// Responder delivers text back to the requester.
type Responder interface {
	// Send posts one message. Callers keep each message within the
	// platform size limit.
	Send(ctx context.Context, text string) error
}

// Placeholder is a temporary message that can be edited or removed.
type Placeholder interface {
	Edit(ctx context.Context, text string) error
	Delete(ctx context.Context) error
}

// PlaceholderResponder is implemented by responders that can show a
// transient "thinking" message while generation runs.
type PlaceholderResponder interface {
	Responder
	Placeholder(ctx context.Context, text string) (Placeholder, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, text string) error

// Send calls f.
func (f ResponderFunc) Send(ctx context.Context, text string) error { return f(ctx, text) }
