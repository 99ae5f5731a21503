// Package discord connects the reply pipeline to Discord using discordgo.
//
// Features:
//   - Prefix commands (reply, commands, forget, tone, setTone, listTone)
//   - Attachment download with a size bound
//   - Recent channel history for guild requests
//   - Thinking placeholder edited or removed after generation
//   - Paged personality picker (buttons and a select menu)
//   - Guild, user and DM allowlists
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/assistant"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/channels"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/postprocess"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/tenant"
)

// ErrDisconnected is returned when sending before Connect.
var ErrDisconnected = errors.New("discord: not connected")

// Config holds Discord adapter settings.
type Config struct {
	// Token is the bot token.
	Token string

	// AllowedGuilds restricts which guilds the bot answers in. Empty means all.
	AllowedGuilds []string

	// AllowedUsers restricts who can use the bot. Empty means everyone.
	AllowedUsers []string

	// DirectMessages enables commands in DMs.
	DirectMessages bool

	// RecentMessages is how many channel messages are fetched as recent context.
	RecentMessages int

	// PickerPageSize is the number of personalities per picker page.
	PickerPageSize int

	// PickerTTL is how long picker controls stay active.
	PickerTTL time.Duration

	// MaxDownloadBytes bounds each attachment download.
	MaxDownloadBytes int64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DirectMessages:   true,
		RecentMessages:   20,
		PickerPageSize:   5,
		PickerTTL:        5 * time.Minute,
		MaxDownloadBytes: 25 << 20,
	}
}

// messenger is the subset of *discordgo.Session used for message traffic.
type messenger interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

// Discord runs the bot.
type Discord struct {
	cfg        Config
	assistant  *assistant.Assistant
	logger     *slog.Logger
	dg         *discordgo.Session
	session    messenger
	selfID     string
	httpClient *http.Client
	components *ComponentRegistry
	connected  atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Discord adapter that answers through a.
func New(cfg Config, a *assistant.Assistant, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.RecentMessages <= 0 {
		cfg.RecentMessages = def.RecentMessages
	}
	if cfg.RecentMessages > 100 {
		cfg.RecentMessages = 100
	}
	if cfg.PickerPageSize <= 0 {
		cfg.PickerPageSize = def.PickerPageSize
	}
	if cfg.PickerPageSize > 25 {
		cfg.PickerPageSize = 25
	}
	if cfg.PickerTTL <= 0 {
		cfg.PickerTTL = def.PickerTTL
	}
	if cfg.MaxDownloadBytes <= 0 {
		cfg.MaxDownloadBytes = def.MaxDownloadBytes
	}
	l := logger.With("component", "discord")
	ctx, cancel := context.WithCancel(context.Background())
	return &Discord{
		cfg:        cfg,
		assistant:  a,
		logger:     l,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		components: NewComponentRegistry(l),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Connect opens the gateway connection and starts handling events.
func (d *Discord) Connect(ctx context.Context) error {
	if d.cfg.Token == "" {
		return fmt.Errorf("discord: bot token is required")
	}

	session, err := discordgo.New("Bot " + d.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord: creating session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	session.AddHandler(d.onMessageCreate)
	session.AddHandler(d.onInteractionCreate)

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord: opening gateway: %w", err)
	}

	d.dg = session
	d.session = session
	d.selfID = session.State.User.ID
	d.connected.Store(true)

	d.logger.Info("connected", "bot", session.State.User.Username, "id", d.selfID)
	return nil
}

// Disconnect closes the gateway connection.
func (d *Discord) Disconnect() error {
	d.cancel()
	d.components.Stop()
	var err error
	if d.dg != nil {
		err = d.dg.Close()
	}
	d.connected.Store(false)
	d.logger.Info("disconnected")
	return err
}

// IsConnected reports whether the gateway is open.
func (d *Discord) IsConnected() bool { return d.connected.Load() }

// ── Event handlers ──

func (d *Discord) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	d.handleMessage(d.ctx, m.Message)
}

// handleMessage filters and routes one inbound message.
func (d *Discord) handleMessage(ctx context.Context, m *discordgo.Message) {
	if !d.accepts(m) {
		return
	}
	cmd, args, ok := d.assistant.ParseCommand(m.Content)
	if !ok {
		return
	}

	t := tenant.ForMessage(m.GuildID, m.Author.ID)
	log := d.logger.With("command", cmd, "tenant", t.Key(), "channel", m.ChannelID, "user", m.Author.ID)
	log.Debug("command received")

	resp := &responder{s: d.session, channelID: m.ChannelID}

	switch cmd {
	case "reply":
		req := d.buildRequest(m, t, args)
		if err := d.assistant.Reply(ctx, req, resp); err != nil {
			log.Warn("reply failed", "error", err)
		}
		return
	case "commands":
		d.send(ctx, resp, d.assistant.CommandList())
	case "forget":
		text, _ := d.assistant.Forget(ctx, t)
		d.send(ctx, resp, text)
	case "tone":
		text, _ := d.assistant.CurrentTone(ctx, t)
		d.send(ctx, resp, text)
	case "settone":
		if args != "" {
			text, _ := d.assistant.SetPersonality(ctx, t, args)
			d.send(ctx, resp, text)
			return
		}
		d.sendPicker(ctx, m, t)
	case "listtone":
		d.send(ctx, resp, d.assistant.PersonalityList())
	}
}

// accepts applies the bot, DM and allowlist filters.
func (d *Discord) accepts(m *discordgo.Message) bool {
	if m == nil || m.Author == nil || m.Author.Bot {
		return false
	}
	if d.selfID != "" && m.Author.ID == d.selfID {
		return false
	}
	if m.GuildID == "" {
		if !d.cfg.DirectMessages {
			return false
		}
	} else if !contains(d.cfg.AllowedGuilds, m.GuildID) {
		return false
	}
	return contains(d.cfg.AllowedUsers, m.Author.ID)
}

// buildRequest gathers attachments and, in guilds, a lazy recent window
// fetched only once the request passes the cooldown.
func (d *Discord) buildRequest(m *discordgo.Message, t tenant.Tenant, question string) channels.Request {
	req := channels.Request{
		Tenant:    t,
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		UserName:  displayName(m),
		Question:  question,
	}
	for _, att := range m.Attachments {
		req.Attachments = append(req.Attachments, d.attachment(att))
	}
	if t.IsGroup() {
		channelID, beforeID := m.ChannelID, m.ID
		req.FetchRecent = func(ctx context.Context) ([]channels.Message, error) {
			history, err := d.session.ChannelMessages(channelID, d.cfg.RecentMessages, beforeID, "", "", discordgo.WithContext(ctx))
			if err != nil {
				return nil, fmt.Errorf("fetching channel history: %w", err)
			}
			return toMessages(history), nil
		}
	}
	return req
}

// sendPicker posts a paged personality picker owned by the requester.
func (d *Discord) sendPicker(ctx context.Context, m *discordgo.Message, t tenant.Tenant) {
	p := newTonePicker(d.assistant, t, d.cfg.PickerPageSize)
	p.register(d.components, m.Author.ID, ComponentSpec{TTL: d.cfg.PickerTTL})
	view := p.render()
	_, err := d.session.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content:    view.Content,
		Components: view.Components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		d.components.Unregister(p.customIDs()...)
		d.logger.Warn("sending picker failed", "channel", m.ChannelID, "error", err)
	}
}

// send delivers text in chunks, logging failures.
func (d *Discord) send(ctx context.Context, resp channels.Responder, text string) {
	for _, chunk := range postprocess.Chunk(text, postprocess.DefaultChunkSize) {
		if err := resp.Send(ctx, chunk); err != nil {
			d.logger.Warn("send failed", "error", err)
			return
		}
	}
}

// onInteractionCreate handles button clicks and select menu choices.
func (d *Discord) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	data := i.MessageComponentData()

	evt := &InteractionEvent{
		CustomID:  data.CustomID,
		ChannelID: i.ChannelID,
		GuildID:   i.GuildID,
		Values:    data.Values,
	}
	if i.Member != nil && i.Member.User != nil {
		evt.UserID, evt.Username = i.Member.User.ID, i.Member.User.Username
	} else if i.User != nil {
		evt.UserID, evt.Username = i.User.ID, i.User.Username
	}

	spec, msg := d.authorize(evt)
	if spec == nil {
		respondEphemeral(s, i, msg)
		return
	}

	// Acknowledge within Discord's 3s window, then edit.
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		d.logger.Warn("ack interaction failed", "custom_id", evt.CustomID, "error", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(d.ctx, 30*time.Second)
		defer cancel()

		out, err := spec.Handler(ctx, evt)
		if err != nil {
			d.logger.Warn("component handler failed", "custom_id", evt.CustomID, "error", err)
			out = &ComponentResponse{Content: assistant.MsgGenericFailure}
		}
		components := out.Components
		if components == nil {
			components = []discordgo.MessageComponent{}
		}
		edit := &discordgo.WebhookEdit{Content: &out.Content, Components: &components}
		if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
			d.logger.Warn("edit interaction response failed", "custom_id", evt.CustomID, "error", err)
		}
	}()
}

// authorize resolves the spec for evt, or the ephemeral refusal text.
func (d *Discord) authorize(evt *InteractionEvent) (*ComponentSpec, string) {
	if evt.CustomID == "" {
		return nil, "Unknown component."
	}
	spec, ok := d.components.Get(evt.CustomID)
	if !ok {
		return nil, "⌛ This picker has expired. Run the command again."
	}
	if evt.UserID == "" || !spec.IsAllowed(evt.UserID) {
		return nil, "🚫 Only the person who opened this picker can use it."
	}
	return spec, ""
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// ── Helpers ──

// toMessages converts a newest-first history page.
func toMessages(msgs []*discordgo.Message) []channels.Message {
	out := make([]channels.Message, 0, len(msgs))
	for _, m := range msgs {
		if m == nil || m.Author == nil {
			continue
		}
		out = append(out, channels.Message{
			Author:    displayName(m),
			Content:   m.Content,
			Bot:       m.Author.Bot,
			Timestamp: m.Timestamp,
		})
	}
	return out
}

func displayName(m *discordgo.Message) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

// contains reports membership; an empty list allows everything.
func contains(list []string, id string) bool {
	if len(list) == 0 {
		return true
	}
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
