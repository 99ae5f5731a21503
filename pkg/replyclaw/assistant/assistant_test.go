package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/channels"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/ingest"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/llm"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/memory"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/personality"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/tenant"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ── fakes ──

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *fakeGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

type fakePlaceholder struct {
	text    string
	edited  string
	deleted bool
}

func (p *fakePlaceholder) Edit(ctx context.Context, text string) error {
	p.edited = text
	return nil
}

func (p *fakePlaceholder) Delete(ctx context.Context) error {
	p.deleted = true
	return nil
}

type recorder struct {
	mu           sync.Mutex
	sent         []string
	placeholders []*fakePlaceholder
}

func (r *recorder) Send(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return nil
}

func (r *recorder) Placeholder(ctx context.Context, text string) (channels.Placeholder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &fakePlaceholder{text: text}
	r.placeholders = append(r.placeholders, p)
	return p, nil
}

type emptyExtractor struct{}

func (emptyExtractor) Format() ingest.Format                   { return ingest.FormatPDF }
func (emptyExtractor) ExtractFile(path string) (string, error) { return "  \n ", nil }

type fixture struct {
	assistant *Assistant
	store     *memory.Store
	gen       *fakeGenerator
}

func newFixture(t *testing.T, cfg Config, gen *fakeGenerator) *fixture {
	t.Helper()
	backend, err := memory.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	store := memory.NewStore(backend)

	ing, err := ingest.New(ingest.Config{TempDir: t.TempDir()}, nil)
	require.NoError(t, err)
	ing.Register(".pdf", emptyExtractor{})

	reg := personality.New(map[string]string{
		"wholesome": "Be warm and kind.",
		"pirate":    "Talk like a pirate.",
	})
	return &fixture{
		assistant: New(cfg, store, reg, ing, gen, nil),
		store:     store,
		gen:       gen,
	}
}

func guildRequest(question string) channels.Request {
	return channels.Request{
		Tenant:    tenant.Guild("g1"),
		ChannelID: "c1",
		UserID:    "u1",
		UserName:  "ana",
		Question:  question,
	}
}

// ── scenarios ──

func TestReply_FirstQuestion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Config{}, &fakeGenerator{reply: "<think>hmm</think>Bot: Go is a language."})
	resp := &recorder{}

	err := f.assistant.Reply(ctx, guildRequest("What is Go?"), resp)
	require.NoError(t, err)

	assert.Equal(t, []string{"Go is a language."}, resp.sent)
	require.Len(t, resp.placeholders, 1)
	assert.Equal(t, MsgThinking, resp.placeholders[0].text)
	assert.True(t, resp.placeholders[0].deleted)

	p := f.gen.lastPrompt()
	assert.Contains(t, p, "Be warm and kind.")
	assert.Contains(t, p, "[Conversation History]\nNo significant previous interactions.")
	assert.Contains(t, p, "[Recent Channel Messages]\nNo recent relevant messages.")
	assert.Contains(t, p, "[File Attachment Summary]\nNo file uploaded.")
	assert.Contains(t, p, "[User Question]\nWhat is Go?")

	rec, err := f.store.Load(ctx, tenant.Guild("g1"))
	require.NoError(t, err)
	require.Len(t, rec.Turns("c1"), 1)
	turn := rec.Turns("c1")[0]
	assert.Equal(t, "What is Go?", turn.User)
	assert.Equal(t, "Go is a language.", turn.Bot)
	assert.False(t, turn.HasFile())
}

func TestReply_UnreadableFileWithoutQuestion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Config{}, &fakeGenerator{reply: "unused"})
	resp := &recorder{}

	req := guildRequest("")
	req.Attachments = []ingest.Attachment{ingest.BytesAttachment("notes.pdf", []byte("%PDF-1.4"))}

	err := f.assistant.Reply(ctx, req, resp)
	assert.ErrorIs(t, err, ErrEmptyRequest)
	assert.Equal(t, []string{MsgUnreadableFile, MsgEmptyRequest}, resp.sent)
	assert.Zero(t, f.gen.calls())

	rec, err := f.store.Load(ctx, tenant.Guild("g1"))
	require.NoError(t, err)
	assert.Zero(t, rec.TurnCount())
}

func TestReply_Cooldown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Config{Cooldown: 10 * time.Second}, &fakeGenerator{reply: "first answer"})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f.assistant.cooldowns.now = func() time.Time { return now }

	require.NoError(t, f.assistant.Reply(ctx, guildRequest("first question"), &recorder{}))

	resp := &recorder{}
	err := f.assistant.Reply(ctx, guildRequest("second question"), resp)
	var cd *CooldownError
	require.ErrorAs(t, err, &cd)
	assert.ErrorIs(t, err, ErrCommandOnCooldown)
	assert.Equal(t, 10*time.Second, cd.RetryAfter)
	assert.Equal(t, []string{"⏳ You’re going too fast! Try again in `10.0` seconds."}, resp.sent)
	assert.Empty(t, resp.placeholders)
	assert.Equal(t, 1, f.gen.calls())

	// Another user in the same guild is unaffected.
	other := guildRequest("hello from bob")
	other.UserID = "u2"
	require.NoError(t, f.assistant.Reply(ctx, other, &recorder{}))

	now = now.Add(11 * time.Second)
	assert.Equal(t, 2, f.assistant.PruneCooldowns())
	require.NoError(t, f.assistant.Reply(ctx, guildRequest("third question"), &recorder{}))
}

func TestReply_CooldownSkipsRecentFetch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Config{Cooldown: time.Minute}, &fakeGenerator{reply: "ok"})

	var fetches atomic.Int32
	req := func(q string) channels.Request {
		r := guildRequest(q)
		r.FetchRecent = func(context.Context) ([]channels.Message, error) {
			fetches.Add(1)
			return []channels.Message{{Author: "bob", Content: "rust is also nice"}}, nil
		}
		return r
	}

	require.NoError(t, f.assistant.Reply(ctx, req("first"), &recorder{}))
	assert.EqualValues(t, 1, fetches.Load())
	assert.Contains(t, f.gen.lastPrompt(), "[Recent Channel Messages]\nbob: rust is also nice")

	err := f.assistant.Reply(ctx, req("second"), &recorder{})
	assert.ErrorIs(t, err, ErrCommandOnCooldown)
	assert.EqualValues(t, 1, fetches.Load(), "rejected request must not fetch history")
}

func TestReply_RecentFetchFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Config{}, &fakeGenerator{reply: "fine"})
	req := guildRequest("hi there")
	req.FetchRecent = func(context.Context) ([]channels.Message, error) {
		return nil, errors.New("rate limited")
	}
	resp := &recorder{}

	require.NoError(t, f.assistant.Reply(ctx, req, resp))
	assert.Equal(t, []string{"fine"}, resp.sent)
	assert.Contains(t, f.gen.lastPrompt(), "[Recent Channel Messages]\nNo recent relevant messages.")
}

func TestReply_EmptyAnswer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Config{}, &fakeGenerator{reply: "<think>only reasoning</think>"})
	resp := &recorder{}

	require.NoError(t, f.assistant.Reply(ctx, guildRequest("anything?"), resp))
	assert.Equal(t, []string{llm.NoResponse}, resp.sent)

	rec, err := f.store.Load(ctx, tenant.Guild("g1"))
	require.NoError(t, err)
	require.Len(t, rec.Turns("c1"), 1)
	assert.Equal(t, llm.NoResponse, rec.Turns("c1")[0].Bot)
}

// ── edge cases ──

func TestReply_Timeout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Config{}, &fakeGenerator{err: llm.ErrTimeout})
	resp := &recorder{}

	err := f.assistant.Reply(ctx, guildRequest("slow question"), resp)
	assert.ErrorIs(t, err, llm.ErrTimeout)
	require.Len(t, resp.placeholders, 1)
	assert.Equal(t, MsgTimeout, resp.placeholders[0].edited)
	assert.Empty(t, resp.sent)

	rec, err := f.store.Load(ctx, tenant.Guild("g1"))
	require.NoError(t, err)
	assert.Zero(t, rec.TurnCount())
}

func TestReply_BackendFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Config{}, &fakeGenerator{err: &llm.APIError{StatusCode: 500, Body: "boom"}})
	resp := &recorder{}

	err := f.assistant.Reply(ctx, guildRequest("any question"), resp)
	assert.ErrorIs(t, err, llm.ErrBackendUnavailable)
	assert.Equal(t, []string{MsgGenericFailure}, resp.sent)
	assert.True(t, resp.placeholders[0].deleted)

	rec, err := f.store.Load(ctx, tenant.Guild("g1"))
	require.NoError(t, err)
	assert.Zero(t, rec.TurnCount())
}

func TestReply_UnknownPersonalityFallsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Config{}, &fakeGenerator{reply: "fine"})
	require.NoError(t, f.store.SetPersonality(ctx, tenant.Guild("g1"), "ghost"))
	resp := &recorder{}

	require.NoError(t, f.assistant.Reply(ctx, guildRequest("who are you"), resp))
	assert.Equal(t, []string{"⚠️ The personality `ghost` was not found. Falling back to `wholesome`.", "fine"}, resp.sent)
	assert.Contains(t, f.gen.lastPrompt(), "Be warm and kind.")
}

func TestReply_FileContextIsRedactedAndStored(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Config{}, &fakeGenerator{reply: "It lists a contact."})

	req := guildRequest("")
	req.Attachments = []ingest.Attachment{
		ingest.BytesAttachment("contact.txt", []byte("Write to jane@example.com or call 5551234567.")),
	}
	require.NoError(t, f.assistant.Reply(ctx, req, &recorder{}))

	p := f.gen.lastPrompt()
	assert.Contains(t, p, "[TXT: contact.txt]\nWrite to [REDACTED_EMAIL] or call [REDACTED_NUMBER].")
	assert.NotContains(t, p, "jane@example.com")
	assert.Contains(t, p, "Summarize or interpret the attached document.")

	rec, err := f.store.Load(ctx, tenant.Guild("g1"))
	require.NoError(t, err)
	turn := rec.Turns("c1")[0]
	assert.Contains(t, turn.FileContext, "[REDACTED_EMAIL]")
	assert.Contains(t, turn.User, "Summarize or interpret")
}

func TestReply_UsesHistoryAndRecent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Config{Cooldown: -1}, &fakeGenerator{reply: "Go is a language."})

	require.NoError(t, f.assistant.Reply(ctx, guildRequest("What is Go?"), &recorder{}))

	req := guildRequest("And Rust?")
	req.Recent = []channels.Message{
		{Author: "bob", Content: "rust is also nice"},
		{Author: "ana", Content: "!reply What is Go?"},
	}
	require.NoError(t, f.assistant.Reply(ctx, req, &recorder{}))

	p := f.gen.lastPrompt()
	assert.Contains(t, p, "User: What is Go?\nBot: Go is a language.")
	assert.Contains(t, p, "[Recent Channel Messages]\nbob: rust is also nice\n\n")

	rec, err := f.store.Load(ctx, tenant.Guild("g1"))
	require.NoError(t, err)
	assert.Len(t, rec.Turns("c1"), 2)
}

func TestReply_DirectMessageIgnoresRecent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{}, &fakeGenerator{reply: "hi"})
	req := channels.Request{
		Tenant:    tenant.User("u9"),
		ChannelID: "dm",
		UserID:    "u9",
		Question:  "hello there",
		Recent:    []channels.Message{{Author: "x", Content: "should not appear"}},
	}
	require.NoError(t, f.assistant.Reply(context.Background(), req, &recorder{}))
	assert.NotContains(t, f.gen.lastPrompt(), "should not appear")
}

func TestReply_ChunksLongAnswers(t *testing.T) {
	t.Parallel()
	line := strings.Repeat("a", 999) + "\n"
	f := newFixture(t, Config{}, &fakeGenerator{reply: strings.Repeat(line, 5)})
	resp := &recorder{}

	require.NoError(t, f.assistant.Reply(context.Background(), guildRequest("long please"), channels.ResponderFunc(resp.Send)))
	require.Len(t, resp.sent, 3)
	assert.Equal(t, strings.Repeat(line, 2), resp.sent[0])
	assert.Equal(t, strings.TrimSpace(strings.Repeat(line, 5)), strings.Join(resp.sent, ""))
}

func TestReply_InvalidTenant(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{}, &fakeGenerator{reply: "x"})
	resp := &recorder{}
	err := f.assistant.Reply(context.Background(), channels.Request{Question: "hello there"}, resp)
	assert.ErrorIs(t, err, memory.ErrInvalidTenant)
	assert.Equal(t, []string{MsgGenericFailure}, resp.sent)
	assert.Zero(t, f.gen.calls())
}

func TestReply_CorruptMemoryIsNotOverwritten(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	backend, err := memory.NewFileBackend(dir)
	require.NoError(t, err)
	require.NoError(t, backend.Write(context.Background(), "guild_g1", []byte("{not json")))

	ing, err := ingest.New(ingest.Config{TempDir: t.TempDir()}, nil)
	require.NoError(t, err)
	gen := &fakeGenerator{reply: "x"}
	a := New(Config{}, memory.NewStore(backend), personality.New(map[string]string{"wholesome": "w"}), ing, gen, nil)

	resp := &recorder{}
	err = a.Reply(context.Background(), guildRequest("hello there"), resp)
	assert.ErrorIs(t, err, memory.ErrCorruptMemory)
	assert.Equal(t, []string{MsgGenericFailure}, resp.sent)
	assert.Zero(t, gen.calls())

	data, err := backend.Read(context.Background(), "guild_g1")
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
}

// ── commands ──

func TestCommands(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Config{}, &fakeGenerator{reply: "answer text"})
	g := tenant.Guild("g1")

	msg, err := f.assistant.Forget(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, MsgNoMemory, msg)

	msg, err = f.assistant.SetPersonality(ctx, g, "PIRATE")
	require.NoError(t, err)
	assert.Equal(t, "🎭 Personality set to **pirate** for this server!", msg)

	_, err = f.assistant.SetPersonality(ctx, g, "ghost")
	assert.ErrorIs(t, err, personality.ErrUnknownPersonality)

	name, err := f.assistant.Personality(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, "pirate", name)

	require.NoError(t, f.assistant.Reply(ctx, guildRequest("say hello"), &recorder{}))
	assert.Contains(t, f.gen.lastPrompt(), "Talk like a pirate.")

	msg, err = f.assistant.Forget(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, MsgMemoryErased, msg)

	rec, err := f.store.Load(ctx, g)
	require.NoError(t, err)
	assert.Zero(t, rec.TurnCount())
	assert.Equal(t, "pirate", rec.Personality)
}

func TestCommandListing(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{Trigger: "?"}, &fakeGenerator{})

	list := f.assistant.CommandList()
	assert.True(t, strings.HasPrefix(list, "**🤖 Available Commands:**\n`?reply <message>`"))
	assert.Contains(t, list, "`?setTone [style]`")

	tones := f.assistant.PersonalityList()
	assert.Equal(t, "🎭 **Available Personalities:**\n**pirate**: Talk like a pirate.\n**wholesome**: Be warm and kind.", tones)

	p := f.assistant.PersonalityPicker(1)
	assert.Equal(t, 2, p.Pages())
	assert.Equal(t, []string{"pirate"}, p.Items())
}

func TestUserMessage(t *testing.T) {
	t.Parallel()
	assert.Equal(t, MsgEmptyRequest, UserMessage(ErrEmptyRequest))
	assert.Equal(t, MsgTimeout, UserMessage(llm.ErrTimeout))
	assert.Equal(t, MsgGenericFailure, UserMessage(errors.New("x")))
	assert.Equal(t, "⏳ You’re going too fast! Try again in `2.5` seconds.",
		UserMessage(&CooldownError{RetryAfter: 2500 * time.Millisecond}))
}

func TestParseCommand(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{}, &fakeGenerator{})

	tests := []struct {
		content  string
		wantName string
		wantArgs string
		wantOK   bool
	}{
		{"!reply what is Go?", "reply", "what is Go?", true},
		{"  !reply  ", "reply", "", true},
		{"!reply\nmultiline question", "reply", "multiline question", true},
		{"!setTone pirate", "settone", "pirate", true},
		{"!SETTONE Pirate", "settone", "Pirate", true},
		{"!listTone", "listtone", "", true},
		{"!commands", "commands", "", true},
		{"!unknown", "", "", false},
		{"reply hello", "", "", false},
		{"!replyx hi", "", "", false},
		{"! reply", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			name, args, ok := f.assistant.ParseCommand(tt.content)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantArgs, args)
		})
	}

	custom := newFixture(t, Config{Trigger: "??"}, &fakeGenerator{})
	name, _, ok := custom.assistant.ParseCommand("??forget")
	assert.True(t, ok)
	assert.Equal(t, "forget", name)
	_, _, ok = custom.assistant.ParseCommand("!forget")
	assert.False(t, ok)
}

func TestCurrentTone(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Config{}, &fakeGenerator{})

	msg, err := f.assistant.CurrentTone(ctx, tenant.User("u1"))
	require.NoError(t, err)
	assert.Equal(t, "🎭 Current personality: **wholesome**", msg)

	msg, err = f.assistant.CurrentTone(ctx, tenant.Tenant{})
	assert.Error(t, err)
	assert.Equal(t, MsgGenericFailure, msg)
}

func TestCurrentTone_RetiredPersonality(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Config{}, &fakeGenerator{})
	require.NoError(t, f.store.SetPersonality(ctx, tenant.Guild("g1"), "retired"))

	msg, err := f.assistant.CurrentTone(ctx, tenant.Guild("g1"))
	require.NoError(t, err)
	assert.Equal(t,
		"⚠️ The personality `retired` was not found. Falling back to `wholesome`.\n🎭 Current personality: **wholesome**",
		msg)
}
