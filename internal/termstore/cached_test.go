package termstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/testimony-project/testimony/internal/termstore"
)

// countingStore wraps a Store and counts Lookup calls.
type countingStore struct {
	mu    sync.Mutex
	inner termstore.Store
	err   error
	calls int
}

func (c *countingStore) Lookup(ctx context.Context, normalized string) (termstore.Term, bool, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return termstore.Term{}, false, c.err
	}
	return c.inner.Lookup(ctx, normalized)
}

func (c *countingStore) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestCachedServesHitsFromCache(t *testing.T) {
	t.Parallel()

	counting := &countingStore{inner: termstore.NewMemStore([]termstore.Term{
		{Name: "Ho-Chunk", Kind: termstore.KindTribe},
	})}
	cached := termstore.NewCached(counting, time.Minute)

	for range 3 {
		term, ok, err := cached.Lookup(context.Background(), "ho-chunk")
		if err != nil {
			t.Fatal(err)
		}
		if !ok || term.Kind != termstore.KindTribe {
			t.Fatalf("term = %+v, ok = %v", term, ok)
		}
	}
	if got := counting.count(); got != 1 {
		t.Errorf("inner lookups = %d, want 1", got)
	}
}

func TestCachedCachesMisses(t *testing.T) {
	t.Parallel()

	counting := &countingStore{inner: termstore.NewMemStore(nil)}
	cached := termstore.NewCached(counting, time.Minute)

	for range 3 {
		if _, ok, err := cached.Lookup(context.Background(), "madison"); err != nil || ok {
			t.Fatalf("ok = %v, err = %v", ok, err)
		}
	}
	if got := counting.count(); got != 1 {
		t.Errorf("inner lookups = %d, want 1", got)
	}
}

func TestCachedNeverCachesErrors(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("connection reset")
	counting := &countingStore{err: wantErr}
	cached := termstore.NewCached(counting, time.Minute)

	for range 2 {
		if _, _, err := cached.Lookup(context.Background(), "ho-chunk"); !errors.Is(err, wantErr) {
			t.Fatalf("err = %v, want %v", err, wantErr)
		}
	}
	if got := counting.count(); got != 2 {
		t.Errorf("inner lookups = %d, want 2 (errors must not be cached)", got)
	}
}
