// Package assistant is the reply pipeline orchestrator. One Reply call takes
// an inbound request through
//
//	Received → ContextLoaded → FilesIngested → PersonalityResolved →
//	PromptComposed → Generating → Cleaned → Persisted → Delivered
//
// and owns every user-visible message on the way. Errors returned by Reply
// are for logging; the requester has already been told.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/aggregator"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/channels"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/ingest"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/llm"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/memory"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/personality"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/postprocess"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/prompt"
)

// ErrEmptyRequest means there was neither a question nor readable file text.
var ErrEmptyRequest = errors.New("assistant: empty request")

// State is a pipeline stage, logged on every transition.
type State string

const (
	StateReceived            State = "received"
	StateContextLoaded       State = "context_loaded"
	StateFilesIngested       State = "files_ingested"
	StatePersonalityResolved State = "personality_resolved"
	StatePromptComposed      State = "prompt_composed"
	StateGenerating          State = "generating"
	StateCleaned             State = "cleaned"
	StatePersisted           State = "persisted"
	StateDelivered           State = "delivered"
)

// Config tunes the pipeline.
type Config struct {
	// Trigger is the command prefix shown in help texts. Default: "!".
	Trigger string

	// Cooldown is the per (tenant, user) window. Default: 10s. Negative disables it.
	Cooldown time.Duration

	// ChunkSize bounds each delivered message. Default: 2000.
	ChunkSize int

	// ExcerptChars bounds the file context kept in memory. Default: 1000.
	ExcerptChars int

	// FallbackPersonality is used when the stored one is unknown. Default: "wholesome".
	FallbackPersonality string

	// Context bounds the aggregated history and recent window.
	Context aggregator.Options
}

// DefaultConfig returns the standard pipeline settings.
func DefaultConfig() Config {
	return Config{
		Trigger:             "!",
		Cooldown:            10 * time.Second,
		ChunkSize:           postprocess.DefaultChunkSize,
		ExcerptChars:        ingest.DefaultExcerptChars,
		FallbackPersonality: memory.DefaultPersonality,
		Context:             aggregator.DefaultOptions(),
	}
}

// Assistant wires the pipeline components together.
type Assistant struct {
	cfg       Config
	store     *memory.Store
	registry  *personality.Registry
	ingester  *ingest.Ingester
	generator llm.Generator
	cooldowns *cooldowns
	logger    *slog.Logger
}

// New creates an Assistant.
func New(cfg Config, store *memory.Store, registry *personality.Registry, ingester *ingest.Ingester, generator llm.Generator, logger *slog.Logger) *Assistant {
	def := DefaultConfig()
	if cfg.Trigger == "" {
		cfg.Trigger = def.Trigger
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ExcerptChars <= 0 {
		cfg.ExcerptChars = def.ExcerptChars
	}
	if cfg.FallbackPersonality == "" {
		cfg.FallbackPersonality = def.FallbackPersonality
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		cfg:       cfg,
		store:     store,
		registry:  registry,
		ingester:  ingester,
		generator: generator,
		cooldowns: newCooldowns(cfg.Cooldown),
		logger:    logger.With("component", "assistant"),
	}
}

// Registry returns the personality catalog.
func (a *Assistant) Registry() *personality.Registry { return a.registry }

// Trigger returns the command prefix.
func (a *Assistant) Trigger() string { return a.cfg.Trigger }

// run carries per-request state through the pipeline.
type run struct {
	id     string
	req    channels.Request
	resp   channels.Responder
	logger *slog.Logger
	state  State
}

func (r *run) enter(s State, attrs ...any) {
	r.state = s
	r.logger.Debug("pipeline transition", append([]any{"state", s}, attrs...)...)
}

// Reply answers one request. It sends every notice, the generated answer or
// the failure text to resp and returns the error (if any) for logging.
func (a *Assistant) Reply(ctx context.Context, req channels.Request, resp channels.Responder) error {
	r := &run{
		id:   ulid.Make().String(),
		req:  req,
		resp: resp,
	}
	r.logger = a.logger.With(
		"request_id", r.id,
		"tenant", req.Tenant.Key(),
		"channel", req.ChannelID,
		"user", req.UserID,
	)
	r.enter(StateReceived, "attachments", len(req.Attachments))

	if !req.Tenant.Valid() {
		return a.fail(ctx, r, nil, memory.ErrInvalidTenant)
	}
	if err := a.cooldowns.allow(req.Tenant.Key() + ":" + req.UserID); err != nil {
		return a.fail(ctx, r, nil, err)
	}

	// Load memory and ingest files concurrently.
	var (
		rec      *memory.Record
		fileText string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rec, err = a.store.Load(gctx, req.Tenant)
		return err
	})
	g.Go(func() error {
		fileText = a.ingester.ProcessAll(gctx, req.Attachments)
		return nil
	})
	window := req.Recent
	if req.Tenant.IsGroup() && req.FetchRecent != nil {
		g.Go(func() error {
			msgs, err := req.FetchRecent(gctx)
			if err != nil {
				r.logger.Warn("recent window unavailable", "error", err)
				return nil
			}
			window = msgs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return a.fail(ctx, r, nil, fmt.Errorf("loading memory: %w", err))
	}

	history := aggregator.Historical(rec, a.cfg.Context)
	var recent string
	if req.Tenant.IsGroup() {
		recent = aggregator.Recent(window, a.cfg.Context)
	}
	r.enter(StateContextLoaded, "turns", rec.TurnCount())

	if len(req.Attachments) > 0 && fileText == "" {
		a.notify(ctx, r, MsgUnreadableFile)
	} else if fileText != "" {
		fileText = ingest.Redact(fileText)
	}
	r.enter(StateFilesIngested, "file_chars", len(fileText))

	if strings.TrimSpace(req.Question) == "" && fileText == "" {
		return a.fail(ctx, r, nil, ErrEmptyRequest)
	}

	instruction, err := a.resolvePersonality(ctx, r, rec)
	if err != nil {
		return a.fail(ctx, r, nil, err)
	}
	r.enter(StatePersonalityResolved)

	question := prompt.Question(req.Question)
	text := prompt.Compose(prompt.Input{
		Instruction: instruction,
		History:     history,
		Recent:      recent,
		FileContext: fileText,
		Question:    question,
	})
	r.enter(StatePromptComposed, "prompt_chars", len(text))

	var ph channels.Placeholder
	if pr, ok := resp.(channels.PlaceholderResponder); ok {
		if ph, err = pr.Placeholder(ctx, MsgThinking); err != nil {
			r.logger.Warn("placeholder failed", "error", err)
			ph = nil
		}
	}

	r.enter(StateGenerating)
	start := time.Now()
	raw, err := a.generator.Generate(ctx, text)
	if err != nil {
		return a.fail(ctx, r, ph, err)
	}
	if ph != nil {
		if err := ph.Delete(ctx); err != nil {
			r.logger.Warn("placeholder delete failed", "error", err)
		}
	}

	answer := postprocess.Process(raw)
	if strings.TrimSpace(answer) == "" {
		r.logger.Warn("model returned no usable text", "raw_chars", len(raw))
		answer = llm.NoResponse
	}
	r.enter(StateCleaned, "duration_ms", time.Since(start).Milliseconds(), "answer_chars", len(answer))

	turn := memory.Turn{
		User:      question,
		Bot:       answer,
		CreatedAt: time.Now().UTC(),
	}
	if fileText != "" {
		turn.FileContext = ingest.Excerpt(fileText, a.cfg.ExcerptChars)
	}
	err = a.store.Update(ctx, req.Tenant, func(rec *memory.Record) error {
		rec.Append(req.ChannelID, turn)
		return nil
	})
	if err != nil {
		r.logger.Error("reply not persisted", "error", err)
		return a.fail(ctx, r, nil, fmt.Errorf("saving turn: %w", err))
	}
	r.enter(StatePersisted)

	chunks := postprocess.Chunk(answer, a.cfg.ChunkSize)
	for i, chunk := range chunks {
		if err := resp.Send(ctx, chunk); err != nil {
			return fmt.Errorf("delivering chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	r.enter(StateDelivered, "chunks", len(chunks))
	return nil
}

// PruneCooldowns drops idle rate limiters and returns how many were removed.
func (a *Assistant) PruneCooldowns() int {
	return a.cooldowns.prune()
}

// ---------- Internal ----------

// resolvePersonality returns the instruction for the tenant's personality,
// falling back (with a notice) when the stored name is not in the catalog.
func (a *Assistant) resolvePersonality(ctx context.Context, r *run, rec *memory.Record) (string, error) {
	name := rec.Personality
	if name == "" {
		name = a.cfg.FallbackPersonality
	}
	if instr, err := a.registry.Instruction(name); err == nil {
		return instr, nil
	}

	r.logger.Warn("unknown personality, using fallback", "personality", name, "fallback", a.cfg.FallbackPersonality)
	a.notify(ctx, r, FallbackMessage(name, a.cfg.FallbackPersonality))
	instr, err := a.registry.Instruction(a.cfg.FallbackPersonality)
	if err != nil {
		return "", fmt.Errorf("fallback personality: %w", err)
	}
	return instr, nil
}

// notify sends an informational message; delivery failures are only logged.
func (a *Assistant) notify(ctx context.Context, r *run, text string) {
	if err := r.resp.Send(ctx, text); err != nil {
		r.logger.Warn("notice not delivered", "error", err)
	}
}

// fail reports err to the requester, editing the placeholder when there is
// one, and returns err.
func (a *Assistant) fail(ctx context.Context, r *run, ph channels.Placeholder, err error) error {
	var cd *CooldownError
	switch {
	case errors.As(err, &cd), errors.Is(err, ErrEmptyRequest):
		r.logger.Debug("request rejected", "state", r.state, "reason", err)
	case errors.Is(err, llm.ErrTimeout):
		r.logger.Warn("generation timed out", "state", r.state)
	default:
		r.logger.Error("reply failed", "state", r.state, "error", err)
	}

	msg := UserMessage(err)
	if ph != nil {
		if errors.Is(err, llm.ErrTimeout) {
			if editErr := ph.Edit(ctx, msg); editErr == nil {
				return err
			}
		}
		if delErr := ph.Delete(ctx); delErr != nil {
			r.logger.Warn("placeholder delete failed", "error", delErr)
		}
	}
	a.notify(ctx, r, msg)
	return err
}
