package config

import (
	"errors"
	"fmt"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/testimony-project/testimony/pkg/provider/ner"
	"github.com/testimony-project/testimony/pkg/provider/ner/failover"
	"github.com/testimony-project/testimony/pkg/provider/ner/httpner"
	nerllm "github.com/testimony-project/testimony/pkg/provider/ner/llm"
	"github.com/testimony-project/testimony/pkg/provider/ner/regexner"
)

// ErrProviderNotRegistered is returned by [Registry.Create] when no factory
// has been registered under the requested backend name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory builds a recognizer backend from its configuration entry.
type Factory func(ProviderEntry) (ner.Provider, error)

// Registry maps recognizer backend names to constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a [Registry] with the built-in backends
// ("regex", "http", "llm") registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("regex", func(ProviderEntry) (ner.Provider, error) {
		return regexner.New(), nil
	})
	r.Register("http", func(entry ProviderEntry) (ner.Provider, error) {
		var opts []httpner.Option
		if entry.Model != "" {
			opts = append(opts, httpner.WithModel(entry.Model))
		}
		return httpner.New(entry.BaseURL, opts...)
	})
	r.Register("llm", func(entry ProviderEntry) (ner.Provider, error) {
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return nerllm.New(entry.LLMProvider, entry.Model, opts...)
	})
	return r
}

// Register installs (or replaces) the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Create builds the backend described by entry.
func (r *Registry) Create(entry ProviderEntry) (ner.Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotRegistered, entry.Name)
	}
	return f(entry)
}

// BuildRecognizer assembles the configured recognizer: the primary backend
// alone, or a failover group when fallbacks are listed.
func (r *Registry) BuildRecognizer(cfg RecognizerConfig) (ner.Provider, error) {
	primary, err := r.Create(cfg.Primary)
	if err != nil {
		return nil, fmt.Errorf("config: build recognizer primary: %w", err)
	}
	if len(cfg.Fallbacks) == 0 {
		return primary, nil
	}

	entries := []failover.Entry{{Provider: primary}}
	for i, fb := range cfg.Fallbacks {
		p, err := r.Create(fb)
		if err != nil {
			return nil, fmt.Errorf("config: build recognizer fallback %d: %w", i, err)
		}
		entries = append(entries, failover.Entry{Provider: p})
	}
	return failover.New(entries...), nil
}
