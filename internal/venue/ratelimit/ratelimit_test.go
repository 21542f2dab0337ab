package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"arbscan/internal/venue"
)

type stubClient struct {
	calls int
}

func (s *stubClient) Name() string { return "Stub" }

func (s *stubClient) ResolveSymbol(ctx context.Context, asset string) (string, error) {
	return asset + "-USD", nil
}

func (s *stubClient) FetchPrice(ctx context.Context, asset string) (venue.Quote, error) {
	s.calls++
	return venue.Quote{Venue: "Stub", Asset: asset, Price: decimal.NewFromInt(100), At: time.Now()}, nil
}

func (s *stubClient) ListAssets(ctx context.Context) ([]string, error) {
	s.calls++
	return []string{"BTC"}, nil
}

func TestMinInterval_SpacesCalls(t *testing.T) {
	stub := &stubClient{}
	m := &MinInterval{C: stub, Interval: 50 * time.Millisecond}

	ctx := t.Context()
	if _, err := m.FetchPrice(ctx, "BTC"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	start := time.Now()
	if _, err := m.FetchPrice(ctx, "BTC"); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("second call ran after %v, want at least 50ms", elapsed)
	}
	if stub.calls != 2 {
		t.Fatalf("calls = %d, want 2", stub.calls)
	}
}

func TestMinInterval_ZeroIntervalPassesThrough(t *testing.T) {
	stub := &stubClient{}
	m := &MinInterval{C: stub}

	ctx := t.Context()
	for i := 0; i < 3; i++ {
		if _, err := m.FetchPrice(ctx, "BTC"); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if stub.calls != 3 {
		t.Fatalf("calls = %d, want 3", stub.calls)
	}
}

func TestMinInterval_CanceledContext(t *testing.T) {
	stub := &stubClient{}
	m := &MinInterval{C: stub, Interval: time.Hour}

	ctx := t.Context()
	if _, err := m.FetchPrice(ctx, "BTC"); err != nil {
		t.Fatalf("first call: %v", err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := m.FetchPrice(canceled, "BTC")
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if venue.KindOf(err) != venue.KindTimeout {
		t.Fatalf("kind = %v, want KindTimeout", venue.KindOf(err))
	}
	if stub.calls != 1 {
		t.Fatalf("calls = %d, want 1 (gated call must not reach client)", stub.calls)
	}
}

func TestMinInterval_DelegatesQuote(t *testing.T) {
	stub := &stubClient{}
	m := &MinInterval{C: stub, Interval: time.Millisecond}

	q, err := m.FetchPrice(t.Context(), "eth")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if q.Asset != "eth" || !q.Price.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected quote %+v", q)
	}
	if m.Name() != "Stub" {
		t.Fatalf("name = %q", m.Name())
	}
	sym, err := m.ResolveSymbol(t.Context(), "BTC")
	if err != nil || sym != "BTC-USD" {
		t.Fatalf("resolve = %q, %v", sym, err)
	}
}
