package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"

	"github.com/outloud-dev/outloud/internal/credentials"
	"github.com/outloud-dev/outloud/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create when no factory has been
// registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// suggestionThreshold is the minimum Jaro-Winkler similarity for an unknown
// provider name to earn a "did you mean" suggestion.
const suggestionThreshold = 0.8

// Factory constructs a TTS provider from its configuration entry. The
// credential store is consulted inside the factory (or the provider's own
// probe), never by the dispatch pipeline.
type Factory func(entry ProviderEntry, creds credentials.Store) (tts.Provider, error)

// Registry maps provider names to their constructor functions. Adding a
// backend means registering a new factory, not modifying the orchestrator.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register registers a provider factory under name. Subsequent calls with
// the same name overwrite the previous registration.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Names returns all registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create instantiates the provider registered under name using the settings
// from cfg. Returns [ErrProviderNotRegistered] — with a closest-name
// suggestion when one is plausible — for unknown names.
func (r *Registry) Create(name string, cfg *Config, creds credentials.Store) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		if suggestion := r.closest(name); suggestion != "" {
			return nil, fmt.Errorf("%w: %q (did you mean %q?)", ErrProviderNotRegistered, name, suggestion)
		}
		return nil, fmt.Errorf("%w: %q", ErrProviderNotRegistered, name)
	}
	return factory(cfg.Entry(name), creds)
}

// closest returns the registered name most similar to name, or "" when
// nothing clears the suggestion threshold.
func (r *Registry) closest(name string) string {
	var (
		best      string
		bestScore float64
	)
	for _, candidate := range r.Names() {
		score := matchr.JaroWinkler(strings.ToLower(name), candidate, true)
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	if bestScore < suggestionThreshold {
		return ""
	}
	return best
}
