package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/tenant"
)

// DefaultPersonality is returned when a tenant never selected one.
const DefaultPersonality = "wholesome"

var (
	// ErrCorruptMemory means a stored record exists but cannot be decoded.
	// It must never be silently replaced by an empty record.
	ErrCorruptMemory = errors.New("memory: stored record is corrupt")

	// ErrInvalidTenant is returned for the zero or malformed Tenant.
	ErrInvalidTenant = tenant.ErrInvalid
)

// Backend persists serialized records by tenant key.
type Backend interface {
	// Read returns the stored bytes, or (nil, nil) when no record exists.
	Read(ctx context.Context, key string) ([]byte, error)

	// Write replaces the stored bytes for key in one step.
	Write(ctx context.Context, key string, data []byte) error

	// Close releases backend resources.
	Close() error
}

// Store is the tenant memory store. It is safe for concurrent use; writes to
// the same tenant are serialized, different tenants never contend.
type Store struct {
	backend  Backend
	fallback string
	logger   *slog.Logger

	mapMu sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithFallbackPersonality sets the name returned by Personality when unset.
func WithFallbackPersonality(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.fallback = strings.ToLower(name)
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore wraps a backend.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		fallback: DefaultPersonality,
		logger:   slog.Default(),
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "memory")
	return s
}

// lockFor returns the mutex for the given tenant key.
func (s *Store) lockFor(key string) *sync.Mutex {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	if m, ok := s.locks[key]; ok {
		return m
	}
	m := &sync.Mutex{}
	s.locks[key] = m
	return m
}

// Load returns the tenant's record. A missing record yields an empty one.
func (s *Store) Load(ctx context.Context, t tenant.Tenant) (*Record, error) {
	if !t.Valid() {
		return nil, ErrInvalidTenant
	}
	mu := s.lockFor(t.Key())
	mu.Lock()
	defer mu.Unlock()
	return s.read(ctx, t)
}

// Save overwrites the tenant's whole record.
func (s *Store) Save(ctx context.Context, t tenant.Tenant, rec *Record) error {
	if !t.Valid() {
		return ErrInvalidTenant
	}
	mu := s.lockFor(t.Key())
	mu.Lock()
	defer mu.Unlock()
	return s.write(ctx, t, rec)
}

// Update runs fn on the tenant's current record and saves the result, all
// under the tenant's lock. If fn returns an error nothing is written.
func (s *Store) Update(ctx context.Context, t tenant.Tenant, fn func(*Record) error) error {
	if !t.Valid() {
		return ErrInvalidTenant
	}
	mu := s.lockFor(t.Key())
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.read(ctx, t)
	if err != nil {
		return err
	}
	if err := fn(rec); err != nil {
		return err
	}
	return s.write(ctx, t, rec)
}

// SetPersonality stores the personality name (lowercased) for the tenant.
func (s *Store) SetPersonality(ctx context.Context, t tenant.Tenant, name string) error {
	return s.Update(ctx, t, func(r *Record) error {
		r.Personality = strings.ToLower(strings.TrimSpace(name))
		return nil
	})
}

// Personality returns the tenant's personality or the fallback when unset.
// Validity against the catalog is the caller's concern.
func (s *Store) Personality(ctx context.Context, t tenant.Tenant) (string, error) {
	rec, err := s.Load(ctx, t)
	if err != nil {
		return "", err
	}
	if rec.Personality == "" {
		return s.fallback, nil
	}
	return rec.Personality, nil
}

// Erase clears every turn of the tenant and keeps its personality. It
// reports whether there was any history to clear.
func (s *Store) Erase(ctx context.Context, t tenant.Tenant) (bool, error) {
	var had bool
	err := s.Update(ctx, t, func(r *Record) error {
		had = r.TurnCount() > 0
		r.Clear()
		return nil
	})
	return had, err
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// ---------- Internal ----------

func (s *Store) read(ctx context.Context, t tenant.Tenant) (*Record, error) {
	data, err := s.backend.Read(ctx, t.Key())
	if err != nil {
		return nil, fmt.Errorf("reading memory for %s: %w", t, err)
	}
	if len(data) == 0 {
		return NewRecord(), nil
	}

	rec := NewRecord()
	if err := json.Unmarshal(data, rec); err != nil {
		s.logger.Error("corrupt memory record", "tenant", t.Key(), "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptMemory, t, err)
	}
	if rec.Channels == nil {
		rec.Channels = make(map[string][]Turn)
	}
	return rec, nil
}

func (s *Store) write(ctx context.Context, t tenant.Tenant, rec *Record) error {
	if rec == nil {
		rec = NewRecord()
	}
	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return fmt.Errorf("marshaling memory for %s: %w", t, err)
	}
	if err := s.backend.Write(ctx, t.Key(), data); err != nil {
		return fmt.Errorf("writing memory for %s: %w", t, err)
	}
	s.logger.Debug("memory saved", "tenant", t.Key(), "turns", rec.TurnCount())
	return nil
}
