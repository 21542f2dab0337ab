package ratelimit

import (
	"context"
	"sync"
	"time"

	"arbscan/internal/venue"
)

// MinInterval wraps a venue client and enforces a minimum time between
// outbound calls. Concurrent calls wait until the interval has elapsed since
// the last call, or return early if the context is canceled.
type MinInterval struct {
	C        venue.Client
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) Name() string { return m.C.Name() }

func (m *MinInterval) ResolveSymbol(ctx context.Context, asset string) (string, error) {
	return m.C.ResolveSymbol(ctx, asset)
}

func (m *MinInterval) FetchPrice(ctx context.Context, asset string) (venue.Quote, error) {
	if err := m.gate(ctx); err != nil {
		return venue.Quote{}, venue.Errf(m.C.Name(), asset, venue.KindTimeout, "rate gate: %w", err)
	}
	q, err := m.C.FetchPrice(ctx, asset)
	m.stamp()
	return q, err
}

func (m *MinInterval) ListAssets(ctx context.Context) ([]string, error) {
	if err := m.gate(ctx); err != nil {
		return nil, venue.Errf(m.C.Name(), "", venue.KindTimeout, "rate gate: %w", err)
	}
	out, err := m.C.ListAssets(ctx)
	m.stamp()
	return out, err
}

func (m *MinInterval) gate(ctx context.Context) error {
	if m.Interval <= 0 {
		return nil
	}
	m.mu.Lock()
	wait := time.Until(m.last.Add(m.Interval))
	m.mu.Unlock()
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *MinInterval) stamp() {
	if m.Interval <= 0 {
		return
	}
	m.mu.Lock()
	m.last = time.Now()
	m.mu.Unlock()
}
