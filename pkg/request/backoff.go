package request

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Backoff tracks consecutive failures per upstream and holds further attempts
// back exponentially. Each success forgives one failure.
type Backoff struct {
	mu       sync.Mutex
	upstream map[string]*upstreamState
	base     time.Duration
	limit    time.Duration
}

type upstreamState struct {
	failures int
	until    time.Time
}

// NewBackoff creates a Backoff doubling from base up to limit.
func NewBackoff(base, limit time.Duration) *Backoff {
	return &Backoff{
		upstream: make(map[string]*upstreamState),
		base:     base,
		limit:    limit,
	}
}

// Delay is the hold-off after the given number of consecutive failures, without jitter.
func (b *Backoff) Delay(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	d := b.base
	for i := 1; i < failures && d < b.limit; i++ {
		d *= 2
	}
	return min(d, b.limit)
}

// Wait blocks until upstream may be contacted again or ctx is done.
func (b *Backoff) Wait(ctx context.Context, upstream string) error {
	_, until := b.State(upstream)
	wait := time.Until(until)
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failure records a failed attempt and returns the hold-off applied.
func (b *Backoff) Failure(upstream string) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.upstream[upstream]
	if !ok {
		st = &upstreamState{}
		b.upstream[upstream] = st
	}
	st.failures++
	d := b.Delay(st.failures)
	// up to 10% jitter
	d += time.Duration(rand.Int64N(int64(d)/10 + 1))
	st.until = time.Now().Add(d)
	return d
}

// Success forgives one failure; the hold-off clears once none remain.
func (b *Backoff) Success(upstream string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.upstream[upstream]
	if !ok {
		return
	}
	st.failures = max(st.failures-1, 0)
	if st.failures == 0 {
		delete(b.upstream, upstream)
	}
}

// State returns the failure count and hold-off deadline for upstream.
func (b *Backoff) State(upstream string) (failures int, until time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if st, ok := b.upstream[upstream]; ok {
		return st.failures, st.until
	}
	return 0, time.Time{}
}
