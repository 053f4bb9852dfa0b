package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type countingProvider struct {
	mu    sync.Mutex
	calls int
	snap  Snapshot
	err   error
}

func (p *countingProvider) Snapshot(context.Context, string, string) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.snap, p.err
}

func (p *countingProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestCachedProviderServesFromCache(t *testing.T) {
	upstream := &countingProvider{snap: Snapshot{Title: "Dune", RuntimeMinutes: 155}}
	p := NewCachedProvider(upstream, NewMemoryCache(time.Minute), zap.NewNop())

	for i := 0; i < 3; i++ {
		snap, err := p.Snapshot(context.Background(), "438631", "movie")
		if err != nil {
			t.Fatalf("snapshot %d: %v", i, err)
		}
		if snap.Title != "Dune" || snap.RuntimeMinutes != 155 {
			t.Fatalf("snapshot %d: %+v", i, snap)
		}
	}
	if upstream.count() != 1 {
		t.Fatalf("upstream called %d times, want 1", upstream.count())
	}
}

func TestCachedProviderDistinctKeys(t *testing.T) {
	upstream := &countingProvider{snap: Snapshot{Title: "x"}}
	p := NewCachedProvider(upstream, NewMemoryCache(time.Minute), zap.NewNop())

	if _, err := p.Snapshot(context.Background(), "1", "movie"); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	// Same id under a different media type is a different cache entry.
	if _, err := p.Snapshot(context.Background(), "1", "tv"); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if upstream.count() != 2 {
		t.Fatalf("upstream called %d times, want 2", upstream.count())
	}
}

func TestCachedProviderUpstreamError(t *testing.T) {
	upstream := &countingProvider{err: errors.New("tmdb down")}
	p := NewCachedProvider(upstream, NewMemoryCache(time.Minute), zap.NewNop())

	if _, err := p.Snapshot(context.Background(), "1", "movie"); err == nil {
		t.Fatal("expected upstream error")
	}
	// Errors are not cached.
	if _, err := p.Snapshot(context.Background(), "1", "movie"); err == nil {
		t.Fatal("expected upstream error on retry")
	}
	if upstream.count() != 2 {
		t.Fatalf("upstream called %d times, want 2", upstream.count())
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(20 * time.Millisecond)

	if err := c.Set(context.Background(), "k", Snapshot{Title: "stale"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	var snap Snapshot
	ok, err := c.Get(context.Background(), "k", &snap)
	if err != nil || !ok {
		t.Fatalf("get before expiry: ok=%v err=%v", ok, err)
	}

	time.Sleep(40 * time.Millisecond)

	ok, err = c.Get(context.Background(), "k", &snap)
	if err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if ok {
		t.Fatal("expected expired entry to miss")
	}
}
