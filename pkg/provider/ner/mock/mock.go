// Package mock provides a test double for the ner.Provider interface.
//
// Use Provider in unit tests to feed controlled candidate sets without a
// live model. All fields are safe to set before calling any method;
// mutating them during a concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{
//	    Candidates: []ner.Candidate{{Surface: "Sarah", Type: ner.Person}},
//	}
//	got, err := p.Recognize(ctx, text)
package mock

import (
	"context"
	"sync"

	"github.com/testimony-project/testimony/pkg/provider/ner"
)

// Compile-time assertion that Provider implements ner.Provider.
var _ ner.Provider = (*Provider)(nil)

// RecognizeCall records a single invocation of Recognize.
type RecognizeCall struct {
	// Ctx is the context passed to Recognize.
	Ctx context.Context
	// Text is the transcript text passed to Recognize.
	Text string
}

// Provider is a mock implementation of ner.Provider.
// Zero values cause Recognize to return an empty candidate set and nil
// error. Set Err to inject a failure.
type Provider struct {
	mu sync.Mutex

	// Candidates is returned from every Recognize call.
	Candidates []ner.Candidate

	// Err, if non-nil, is returned from Recognize instead of Candidates.
	Err error

	// RecognizeFunc, if non-nil, overrides Candidates/Err entirely.
	RecognizeFunc func(ctx context.Context, text string) ([]ner.Candidate, error)

	// Calls records every Recognize invocation in order.
	Calls []RecognizeCall
}

// Recognize implements ner.Provider.
func (p *Provider) Recognize(ctx context.Context, text string) ([]ner.Candidate, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, RecognizeCall{Ctx: ctx, Text: text})
	fn := p.RecognizeFunc
	candidates, err := p.Candidates, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// Name implements ner.Provider.
func (p *Provider) Name() string { return "mock" }

// CallCount returns how many times Recognize has been invoked.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
