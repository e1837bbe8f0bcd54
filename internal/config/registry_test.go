package config_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/testimony-project/testimony/internal/config"
	"github.com/testimony-project/testimony/pkg/provider/ner"
	nermock "github.com/testimony-project/testimony/pkg/provider/ner/mock"
)

func TestDefaultRegistryBuildsRegex(t *testing.T) {
	t.Parallel()

	r := config.DefaultRegistry()
	p, err := r.Create(config.ProviderEntry{Name: "regex"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Name() != "regex" {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestCreateUnregisteredBackend(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()
	_, err := r.Create(config.ProviderEntry{Name: "spacy"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestBuildRecognizerSingleBackend(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()
	r.Register("mock", func(config.ProviderEntry) (ner.Provider, error) {
		return &nermock.Provider{}, nil
	})

	p, err := r.BuildRecognizer(config.RecognizerConfig{
		Primary: config.ProviderEntry{Name: "mock"},
	})
	if err != nil {
		t.Fatalf("BuildRecognizer: %v", err)
	}
	if p.Name() != "mock" {
		t.Errorf("Name() = %q, want the bare backend", p.Name())
	}
}

func TestBuildRecognizerWithFallbacks(t *testing.T) {
	t.Parallel()

	primary := &nermock.Provider{Err: errors.New("down")}
	backup := &nermock.Provider{Candidates: []ner.Candidate{{Surface: "Sarah", Type: ner.Person}}}

	r := config.NewRegistry()
	r.Register("a", func(config.ProviderEntry) (ner.Provider, error) { return primary, nil })
	r.Register("b", func(config.ProviderEntry) (ner.Provider, error) { return backup, nil })

	p, err := r.BuildRecognizer(config.RecognizerConfig{
		Primary:   config.ProviderEntry{Name: "a"},
		Fallbacks: []config.ProviderEntry{{Name: "b"}},
	})
	if err != nil {
		t.Fatalf("BuildRecognizer: %v", err)
	}
	if !strings.HasPrefix(p.Name(), "failover(") {
		t.Errorf("Name() = %q, want failover group", p.Name())
	}

	got, err := p.Recognize(context.Background(), "Sarah spoke.")
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(got) != 1 || got[0].Surface != "Sarah" {
		t.Errorf("candidates = %v, want the fallback's", got)
	}
}
