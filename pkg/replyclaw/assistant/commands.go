package assistant

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/pager"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/personality"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/tenant"
)

// Command describes one chat command for the help listing.
type Command struct {
	Name        string
	Usage       string
	Description string
}

// Commands returns the chat command set.
func (a *Assistant) Commands() []Command {
	p := a.cfg.Trigger
	return []Command{
		{Name: "reply", Usage: p + "reply <message>", Description: "Ask the bot or upload a PDF/DOCX/PPTX/TXT file."},
		{Name: "commands", Usage: p + "commands", Description: "List all commands."},
		{Name: "forget", Usage: p + "forget", Description: "Erase the bot's memory of this server."},
		{Name: "tone", Usage: p + "tone", Description: "Show the current personality."},
		{Name: "setTone", Usage: p + "setTone [style]", Description: "Set the bot's personality style."},
		{Name: "listTone", Usage: p + "listTone", Description: "Show all available personalities."},
	}
}

// ParseCommand splits "<trigger><name> <args>". Names match
// case-insensitively and are returned lower-cased; ok is false for text that
// is not a known command.
func (a *Assistant) ParseCommand(content string) (name, args string, ok bool) {
	content = strings.TrimSpace(content)
	trigger := a.cfg.Trigger
	if !strings.HasPrefix(content, trigger) {
		return "", "", false
	}
	rest := content[len(trigger):]
	word, tail := rest, ""
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		word, tail = rest[:i], rest[i:]
	}
	name = strings.ToLower(word)
	for _, c := range a.Commands() {
		if strings.ToLower(c.Name) == name {
			return name, strings.TrimSpace(tail), true
		}
	}
	return "", "", false
}

// CommandList renders Commands for chat.
func (a *Assistant) CommandList() string {
	var b strings.Builder
	b.WriteString("**🤖 Available Commands:**")
	for _, c := range a.Commands() {
		fmt.Fprintf(&b, "\n`%s` - %s", c.Usage, c.Description)
	}
	return b.String()
}

// Forget erases the tenant's conversation history and keeps its personality.
// It returns the message to show.
func (a *Assistant) Forget(ctx context.Context, t tenant.Tenant) (string, error) {
	had, err := a.store.Erase(ctx, t)
	if err != nil {
		a.logger.Error("forget failed", "tenant", t.Key(), "error", err)
		return MsgGenericFailure, err
	}
	a.logger.Info("memory erased", "tenant", t.Key(), "had_history", had)
	if !had {
		return MsgNoMemory, nil
	}
	return MsgMemoryErased, nil
}

// Personality returns the tenant's personality name.
func (a *Assistant) Personality(ctx context.Context, t tenant.Tenant) (string, error) {
	return a.store.Personality(ctx, t)
}

// CurrentTone returns the message describing the tenant's personality. A
// stored name that left the catalog is reported as the fallback it
// resolves to, preceded by the fallback notice.
func (a *Assistant) CurrentTone(ctx context.Context, t tenant.Tenant) (string, error) {
	name, err := a.store.Personality(ctx, t)
	if err != nil {
		a.logger.Error("reading personality failed", "tenant", t.Key(), "error", err)
		return MsgGenericFailure, err
	}
	if !a.registry.IsValid(name) {
		fallback := a.cfg.FallbackPersonality
		return FallbackMessage(name, fallback) + "\n" + fmt.Sprintf(MsgCurrentTone, fallback), nil
	}
	return fmt.Sprintf(MsgCurrentTone, name), nil
}

// SetPersonality validates name against the catalog and stores it. It
// returns the message to show; an unknown name yields
// personality.ErrUnknownPersonality.
func (a *Assistant) SetPersonality(ctx context.Context, t tenant.Tenant, name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !a.registry.IsValid(name) {
		return fmt.Sprintf(MsgInvalidTone, a.cfg.Trigger), fmt.Errorf("%w: %q", personality.ErrUnknownPersonality, name)
	}
	if err := a.store.SetPersonality(ctx, t, name); err != nil {
		a.logger.Error("set personality failed", "tenant", t.Key(), "error", err)
		return MsgGenericFailure, err
	}
	a.logger.Info("personality set", "tenant", t.Key(), "personality", name)
	return fmt.Sprintf(MsgPersonalitySet, name), nil
}

// PersonalityPicker returns a pager over the sorted personality names.
func (a *Assistant) PersonalityPicker(pageSize int) pager.Pager[string] {
	return pager.New(a.registry.Names(), pageSize)
}
