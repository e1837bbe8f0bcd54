// Package resilience provides failure-isolation primitives for the loop and
// the entity-recognition providers.
//
// [Breaker] is a plain consecutive-failure counter: the convergence loop uses
// it to stop spinning when iterations fail back to back. [CircuitBreaker] is
// the full three-state variant (closed → open → half-open) used to bypass an
// unhealthy recognition backend for a cooldown period.
//
// All types are safe for concurrent use.
package resilience

import (
	"sync"
)

// BreakerConfig holds the tuning knobs for a [Breaker].
type BreakerConfig struct {
	// Name is a human-readable label used in log messages.
	Name string

	// MaxFailures is the number of consecutive failures before the breaker
	// trips. Default: 3.
	MaxFailures int
}

// Breaker trips after a configured number of consecutive failures. Unlike
// [CircuitBreaker] it has no timers and never recovers on its own: any
// success resets the count, and a tripped breaker stays tripped until Reset.
type Breaker struct {
	name        string
	maxFailures int

	mu      sync.Mutex
	failing int
	tripped bool
}

// NewBreaker creates a [Breaker]. Zero-value config fields get defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	return &Breaker{name: cfg.Name, maxFailures: cfg.MaxFailures}
}

// Record feeds one outcome into the breaker. A success clears the failure
// streak; a failure extends it and trips the breaker once the streak reaches
// the configured maximum.
func (b *Breaker) Record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ok {
		b.failing = 0
		return
	}
	b.failing++
	if b.failing >= b.maxFailures {
		b.tripped = true
	}
}

// Tripped reports whether the failure streak has reached the maximum.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped
}

// Failures returns the current consecutive-failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failing
}

// Reset clears the streak and un-trips the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failing = 0
	b.tripped = false
}
