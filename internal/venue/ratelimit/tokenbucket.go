package ratelimit

import (
	"context"
	"sync"
	"time"

	"arbscan/internal/venue"
)

// TokenBucket is a stdlib-only token bucket limiter.
// - rate: tokens per second
// - capacity: maximum tokens the bucket can hold (burst)
type TokenBucket struct {
	rate     float64
	capacity float64

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 0.0000001
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		rate:     tokensPerSecond,
		capacity: float64(burst),
		tokens:   float64(burst), // start full to allow an initial burst
		last:     time.Now(),
	}
}

// wait blocks until one token is available or the context is canceled.
func (tb *TokenBucket) wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.last).Seconds()
		if elapsed > 0 {
			tb.tokens += elapsed * tb.rate
			if tb.tokens > tb.capacity {
				tb.tokens = tb.capacity
			}
			tb.last = now
		}
		if tb.tokens >= 1 {
			tb.tokens -= 1
			tb.mu.Unlock()
			return nil
		}
		deficit := 1 - tb.tokens
		tb.mu.Unlock()
		waitDur := time.Duration(deficit / tb.rate * 1e9)
		if waitDur <= 0 {
			waitDur = time.Millisecond
		}
		timer := time.NewTimer(waitDur)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Limited wraps a venue client and gates outbound calls with a token bucket.
type Limited struct {
	C  venue.Client
	TB *TokenBucket
}

func (l *Limited) Name() string { return l.C.Name() }

func (l *Limited) ResolveSymbol(ctx context.Context, asset string) (string, error) {
	return l.C.ResolveSymbol(ctx, asset)
}

func (l *Limited) FetchPrice(ctx context.Context, asset string) (venue.Quote, error) {
	if l.TB != nil {
		if err := l.TB.wait(ctx); err != nil {
			return venue.Quote{}, venue.Errf(l.C.Name(), asset, venue.KindTimeout, "rate gate: %w", err)
		}
	}
	return l.C.FetchPrice(ctx, asset)
}

func (l *Limited) ListAssets(ctx context.Context) ([]string, error) {
	if l.TB != nil {
		if err := l.TB.wait(ctx); err != nil {
			return nil, venue.Errf(l.C.Name(), "", venue.KindTimeout, "rate gate: %w", err)
		}
	}
	return l.C.ListAssets(ctx)
}
