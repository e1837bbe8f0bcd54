// Package failover composes entity-recognition providers so that a failing
// primary is automatically bypassed in favour of healthy fallbacks.
//
// Each registered provider gets its own circuit breaker; a provider whose
// breaker is open is skipped for a cooldown period instead of being retried
// on every transcript. Typical wiring is a model-backed primary with the
// regex provider as the always-available last resort.
//
// Usage:
//
//	p := failover.New(
//	    failover.Entry{Provider: llmProvider},
//	    failover.Entry{Provider: regexner.New()},
//	)
//	candidates, err := p.Recognize(ctx, text)
package failover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/testimony-project/testimony/internal/resilience"
	"github.com/testimony-project/testimony/pkg/provider/ner"
)

// Compile-time assertion that Provider implements ner.Provider.
var _ ner.Provider = (*Provider)(nil)

// ErrAllFailed is returned when every registered provider fails or has an
// open circuit breaker.
var ErrAllFailed = errors.New("failover: all providers failed")

// Entry registers one provider with the group.
type Entry struct {
	// Provider is the backend to try.
	Provider ner.Provider

	// Breaker configures this entry's circuit breaker. The Name field is
	// filled from the provider when empty.
	Breaker resilience.CircuitBreakerConfig
}

type member struct {
	provider ner.Provider
	breaker  *resilience.CircuitBreaker
}

// Provider tries its entries in registration order and returns the first
// successful candidate set. Safe for concurrent use.
type Provider struct {
	members []member
	name    string
}

// New builds a failover Provider from one or more entries. The first entry is
// the primary.
func New(entries ...Entry) *Provider {
	p := &Provider{}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		cfg := e.Breaker
		if cfg.Name == "" {
			cfg.Name = e.Provider.Name()
		}
		p.members = append(p.members, member{
			provider: e.Provider,
			breaker:  resilience.NewCircuitBreaker(cfg),
		})
		names = append(names, e.Provider.Name())
	}
	p.name = "failover(" + strings.Join(names, ",") + ")"
	return p
}

// Recognize implements ner.Provider.
func (p *Provider) Recognize(ctx context.Context, text string) ([]ner.Candidate, error) {
	if len(p.members) == 0 {
		return nil, fmt.Errorf("failover: no providers registered")
	}

	var lastErr error
	for _, m := range p.members {
		var candidates []ner.Candidate
		err := m.breaker.Execute(func() error {
			var recErr error
			candidates, recErr = m.provider.Recognize(ctx, text)
			return recErr
		})
		if err == nil {
			return candidates, nil
		}
		lastErr = err
		if errors.Is(err, resilience.ErrCircuitOpen) {
			slog.Debug("skipping recognition provider, circuit open",
				"provider", m.provider.Name())
		} else {
			slog.Warn("recognition provider failed, trying next",
				"provider", m.provider.Name(),
				"error", err)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// Name implements ner.Provider.
func (p *Provider) Name() string { return p.name }
