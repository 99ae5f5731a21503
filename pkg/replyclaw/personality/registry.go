// Package personality holds the immutable catalog of named personality
// instructions. The catalog is built once at startup from a "default" file
// plus every other catalog file in the same directory, and is safe for
// concurrent reads without locking afterwards.
package personality

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog/*.json
var builtin embed.FS

var (
	// ErrUnknownPersonality is returned by Instruction for names not in the catalog.
	ErrUnknownPersonality = errors.New("personality: unknown personality")

	// ErrPersonalityCollision is returned under CollisionStrict when two
	// catalog files define the same name.
	ErrPersonalityCollision = errors.New("personality: duplicate personality name")

	// ErrNoDefaultCatalog means the directory has no default.{json,yaml,yml}.
	ErrNoDefaultCatalog = errors.New("personality: default catalog not found")
)

// CollisionPolicy decides what happens when a later file redefines a name.
type CollisionPolicy string

const (
	// CollisionWarn keeps the later definition and logs the collision.
	CollisionWarn CollisionPolicy = "warn"
	// CollisionStrict fails the load.
	CollisionStrict CollisionPolicy = "strict"
)

// LoadOptions configures catalog loading.
type LoadOptions struct {
	// DefaultName is the catalog file stem read first. Default: "default".
	DefaultName string
	// Collision is the duplicate-name policy. Default: CollisionWarn.
	Collision CollisionPolicy
	// Logger receives collision warnings.
	Logger *slog.Logger
}

// Registry maps lowercase personality names to instructions.
type Registry struct {
	entries map[string]string
	sources map[string]string
}

// New builds a registry directly from a map. Keys are lowercased.
func New(entries map[string]string) *Registry {
	r := &Registry{
		entries: make(map[string]string, len(entries)),
		sources: make(map[string]string, len(entries)),
	}
	for k, v := range entries {
		name := normalize(k)
		r.entries[name] = v
		r.sources[name] = "inline"
	}
	return r
}

// Embedded returns the catalog shipped with the binary.
func Embedded() *Registry {
	sub, err := fs.Sub(builtin, "catalog")
	if err != nil {
		panic(err)
	}
	r, err := LoadFS(sub, LoadOptions{})
	if err != nil {
		panic(fmt.Sprintf("personality: embedded catalog: %v", err))
	}
	return r
}

// Load reads the catalog directory from disk.
func Load(dir string, opts LoadOptions) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("personality dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("personality dir %q is not a directory", dir)
	}
	return LoadFS(os.DirFS(dir), opts)
}

// LoadFS reads the default catalog first and then merges every other catalog
// file in lexical order.
func LoadFS(fsys fs.FS, opts LoadOptions) (*Registry, error) {
	if opts.DefaultName == "" {
		opts.DefaultName = "default"
	}
	if opts.Collision == "" {
		opts.Collision = CollisionWarn
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "personality")

	dirEntries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("listing personality catalogs: %w", err)
	}

	var defaultFile string
	var others []string
	for _, e := range dirEntries {
		if e.IsDir() || !isCatalogFile(e.Name()) {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		if stem == opts.DefaultName && defaultFile == "" {
			defaultFile = e.Name()
			continue
		}
		others = append(others, e.Name())
	}
	if defaultFile == "" {
		return nil, ErrNoDefaultCatalog
	}
	sort.Strings(others)

	r := &Registry{
		entries: make(map[string]string),
		sources: make(map[string]string),
	}
	for _, name := range append([]string{defaultFile}, others...) {
		pack, err := readCatalog(fsys, name)
		if err != nil {
			return nil, err
		}
		// Iterate in key order so collision logs are deterministic.
		keys := make([]string, 0, len(pack))
		for k := range pack {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			key := normalize(k)
			if prev, dup := r.sources[key]; dup {
				if opts.Collision == CollisionStrict {
					return nil, fmt.Errorf("%w: %q in %s and %s", ErrPersonalityCollision, key, prev, name)
				}
				logger.Warn("personality redefined, later catalog wins",
					"name", key, "previous", prev, "file", name)
			}
			r.entries[key] = pack[k]
			r.sources[key] = name
		}
	}

	logger.Debug("personalities loaded", "count", len(r.entries), "files", 1+len(others))
	return r, nil
}

// Available returns a copy of the name→instruction mapping.
func (r *Registry) Available() map[string]string {
	out := make(map[string]string, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

// Names returns the sorted personality names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for k := range r.entries {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len returns the catalog size.
func (r *Registry) Len() int { return len(r.entries) }

// IsValid reports whether name is in the catalog (case-insensitive).
func (r *Registry) IsValid(name string) bool {
	_, ok := r.entries[normalize(name)]
	return ok
}

// Instruction returns the instruction text for name.
func (r *Registry) Instruction(name string) (string, error) {
	instr, ok := r.entries[normalize(name)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPersonality, name)
	}
	return instr, nil
}

// Source returns the catalog file that defined name.
func (r *Registry) Source(name string) string {
	return r.sources[normalize(name)]
}

// ---------- Internal ----------

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func isCatalogFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// readCatalog parses a flat name→instruction map. JSON is read through the
// YAML decoder, which accepts it as a subset.
func readCatalog(fsys fs.FS, name string) (map[string]string, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", name, err)
	}
	pack := make(map[string]string)
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", name, err)
	}
	return pack, nil
}
