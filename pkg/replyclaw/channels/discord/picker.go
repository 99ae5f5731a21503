package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/assistant"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/pager"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/tenant"
)

const pickerTitle = "🎭 **Choose a personality:**"

// tonePicker is one live personality picker message.
type tonePicker struct {
	mu     sync.Mutex
	id     string
	tenant tenant.Tenant
	view   pager.Pager[string]
	a      *assistant.Assistant
}

func newTonePicker(a *assistant.Assistant, t tenant.Tenant, pageSize int) *tonePicker {
	return &tonePicker{
		id:     uuid.NewString()[:8],
		tenant: t,
		view:   a.PersonalityPicker(pageSize),
		a:      a,
	}
}

func (p *tonePicker) customID(action string) string {
	return fmt.Sprintf("tone:%s:%s", p.id, action)
}

func (p *tonePicker) customIDs() []string {
	return []string{p.customID("prev"), p.customID("next"), p.customID("select")}
}

// register binds the picker controls to its owner for ttl.
func (p *tonePicker) register(reg *ComponentRegistry, ownerID string, spec ComponentSpec) {
	spec.AllowedUsers = []string{ownerID}

	prev := spec
	prev.Handler = func(context.Context, *InteractionEvent) (*ComponentResponse, error) {
		return p.move(func(v pager.Pager[string]) pager.Pager[string] { return v.Prev() }), nil
	}
	next := spec
	next.Handler = func(context.Context, *InteractionEvent) (*ComponentResponse, error) {
		return p.move(func(v pager.Pager[string]) pager.Pager[string] { return v.Next() }), nil
	}
	sel := spec
	sel.Handler = func(ctx context.Context, evt *InteractionEvent) (*ComponentResponse, error) {
		if len(evt.Values) == 0 {
			return p.render(), nil
		}
		text, err := p.a.SetPersonality(ctx, p.tenant, evt.Values[0])
		if err == nil {
			reg.Unregister(p.customIDs()...)
		}
		return &ComponentResponse{Content: text}, nil
	}

	reg.Register(p.customID("prev"), prev)
	reg.Register(p.customID("next"), next)
	reg.Register(p.customID("select"), sel)
}

func (p *tonePicker) move(step func(pager.Pager[string]) pager.Pager[string]) *ComponentResponse {
	p.mu.Lock()
	p.view = step(p.view)
	p.mu.Unlock()
	return p.render()
}

// render builds the message for the current page.
func (p *tonePicker) render() *ComponentResponse {
	p.mu.Lock()
	view := p.view
	p.mu.Unlock()

	registry := p.a.Registry()
	content := view.Render(pickerTitle, func(name string) string {
		instr, _ := registry.Instruction(name)
		return fmt.Sprintf("**%s**: %s", name, clip(instr, 120))
	})

	options := make([]discordgo.SelectMenuOption, 0, len(view.Items()))
	for _, name := range view.Items() {
		instr, _ := registry.Instruction(name)
		options = append(options, discordgo.SelectMenuOption{
			Label:       name,
			Value:       name,
			Description: clip(instr, 100),
		})
	}

	var components []discordgo.MessageComponent
	if len(options) > 0 {
		components = append(components, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					CustomID:    p.customID("select"),
					Placeholder: "Pick a personality",
					Options:     options,
				},
			},
		})
	}
	components = append(components, discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.Button{CustomID: p.customID("prev"), Label: "◀ Prev", Style: discordgo.SecondaryButton, Disabled: !view.HasPrev()},
			discordgo.Button{CustomID: p.customID("next"), Label: "Next ▶", Style: discordgo.SecondaryButton, Disabled: !view.HasNext()},
		},
	})

	return &ComponentResponse{Content: content, Components: components}
}

// clip bounds s to n runes with an ellipsis.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
