package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/testimony-project/testimony/internal/replace"
)

// ValidProviderNames lists the recognizer backends with built-in
// constructors. Used by [Validate] to warn about unrecognised names.
var ValidProviderNames = []string{"regex", "http", "llm"}

// ValidLLMFamilies lists the hosted model families the "llm" backend can
// talk to.
var ValidLLMFamilies = []string{"openai", "anthropic", "gemini", "ollama", "mistral"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Recognizer entries
	entries := append([]ProviderEntry{cfg.Recognizer.Primary}, cfg.Recognizer.Fallbacks...)
	for i, entry := range entries {
		prefix := "recognizer.primary"
		if i > 0 {
			prefix = fmt.Sprintf("recognizer.fallbacks[%d]", i-1)
		}
		if entry.Name == "" {
			if i == 0 && len(cfg.Recognizer.Fallbacks) > 0 {
				errs = append(errs, fmt.Errorf("%s.name is required when fallbacks are configured", prefix))
			}
			continue
		}
		if !slices.Contains(ValidProviderNames, entry.Name) {
			slog.Warn("unknown recognizer backend, may be a typo",
				"entry", prefix,
				"name", entry.Name,
				"known", ValidProviderNames)
		}
		switch entry.Name {
		case "http":
			if entry.BaseURL == "" {
				errs = append(errs, fmt.Errorf("%s.base_url is required for the http backend", prefix))
			}
		case "llm":
			if entry.LLMProvider == "" {
				errs = append(errs, fmt.Errorf("%s.llm_provider is required for the llm backend", prefix))
			} else if !slices.Contains(ValidLLMFamilies, entry.LLMProvider) {
				slog.Warn("unknown llm provider family, may be a typo",
					"entry", prefix,
					"family", entry.LLMProvider,
					"known", ValidLLMFamilies)
			}
			if entry.Model == "" {
				errs = append(errs, fmt.Errorf("%s.model is required for the llm backend", prefix))
			}
		}
	}

	// Clustering
	if t := cfg.Clustering.Threshold; t != 0 && (t <= 0 || t > 1) {
		errs = append(errs, fmt.Errorf("clustering.threshold %.2f is out of range (0, 1]", t))
	}
	if t := cfg.Clustering.LowThreshold; t != 0 && (t <= 0 || t > 1) {
		errs = append(errs, fmt.Errorf("clustering.low_threshold %.2f is out of range (0, 1]", t))
	}
	if lo, hi := cfg.Clustering.LowThreshold, cfg.Clustering.Threshold; lo != 0 && hi != 0 && lo > hi {
		errs = append(errs, fmt.Errorf("clustering.low_threshold %.2f exceeds clustering.threshold %.2f", lo, hi))
	}
	for i, rule := range cfg.Clustering.VariantRules {
		if rule.Canonical == "" {
			errs = append(errs, fmt.Errorf("clustering.variant_rules[%d].canonical is required", i))
		}
		if len(rule.Variants) == 0 {
			errs = append(errs, fmt.Errorf("clustering.variant_rules[%d].variants must not be empty", i))
		}
	}

	// Replacement
	if p := cfg.Replacement.Policy; p != "" && !replace.Policy(p).IsValid() {
		errs = append(errs, fmt.Errorf("replacement.policy %q is invalid; valid values: mark-all, context", p))
	}

	// Citation
	if n := cfg.Citation.LinesPerPage; n < 0 {
		errs = append(errs, fmt.Errorf("citation.lines_per_page %d must not be negative", n))
	}

	// Term store
	if cfg.TermStore.PostgresDSN != "" && cfg.TermStore.File != "" {
		errs = append(errs, errors.New("term_store.postgres_dsn and term_store.file are mutually exclusive"))
	}
	if cfg.TermStore.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("term_store.cache_ttl %v must not be negative", cfg.TermStore.CacheTTL.Std()))
	}

	// Loop
	if n := cfg.Loop.Window; n < 0 {
		errs = append(errs, fmt.Errorf("loop.window %d must not be negative", n))
	}
	if n := cfg.Loop.MaxIterations; n < 0 {
		errs = append(errs, fmt.Errorf("loop.max_iterations %d must not be negative", n))
	}
	if n := cfg.Loop.GradeConcurrency; n < 0 {
		errs = append(errs, fmt.Errorf("loop.grade_concurrency %d must not be negative", n))
	}
	if cfg.Loop.HeartbeatInterval < 0 {
		errs = append(errs, fmt.Errorf("loop.heartbeat_interval %v must not be negative", cfg.Loop.HeartbeatInterval.Std()))
	}

	return errors.Join(errs...)
}
