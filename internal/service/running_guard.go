package service

import (
	"context"
	"sync"
)

// ─────────────────────────────────────────────────────────────
// buildGuard: one build per source at a time
// ─────────────────────────────────────────────────────────────

// buildGuard admits a single build per key (the source path). A file-change
// rebuild firing while a scheduled one is still writing would otherwise race
// on the same artifacts. Each admitted build owns a channel that is closed
// on release, which is what Wait blocks on.
type buildGuard struct {
	mu       sync.Mutex
	inFlight map[string]chan struct{}
}

// Acquire claims key. ok is false while another build holds it; otherwise
// release must be called exactly once when the build ends.
func (g *buildGuard) Acquire(key string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight == nil {
		g.inFlight = make(map[string]chan struct{})
	}
	if _, busy := g.inFlight[key]; busy {
		return nil, false
	}
	done := make(chan struct{})
	g.inFlight[key] = done

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, key)
			g.mu.Unlock()
			close(done)
		})
	}, true
}

// Wait blocks until every build in flight at call time has been released,
// or ctx is done.
func (g *buildGuard) Wait(ctx context.Context) {
	g.mu.Lock()
	pending := make([]chan struct{}, 0, len(g.inFlight))
	for _, done := range g.inFlight {
		pending = append(pending, done)
	}
	g.mu.Unlock()

	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
}
