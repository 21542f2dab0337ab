package bitpanda

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"arbscan/internal/httpx"
	"arbscan/internal/venue"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Name is the venue identifier used in price maps and fee schedules.
const Name = "Bitpanda"

// Config controls the Bitpanda client behavior.
type Config struct {
	Endpoint  string        // ticker URL, e.g. https://api.bitpanda.com/v1/ticker
	Fiat      string        // reference fiat key inside each ticker entry
	Timeout   time.Duration // per-request bound
	TickerTTL time.Duration // how long one ticker snapshot stays valid
}

// Client fetches spot prices from the Bitpanda public ticker. The ticker is
// one flat map keyed by raw asset symbol, so a single snapshot serves both
// price lookups and listing; it is cached briefly and swapped whole on
// refresh.
type Client struct {
	cfg    Config
	client *httpx.Client

	mu   sync.RWMutex
	snap tickerSnapshot

	sf singleflight.Group
}

type tickerSnapshot struct {
	prices map[string]map[string]string // symbol -> fiat -> price
	until  time.Time
}

func New(cfg Config, hc *httpx.Client) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.bitpanda.com/v1/ticker"
	}
	if cfg.Fiat == "" {
		cfg.Fiat = "USD"
	}
	cfg.Fiat = strings.ToUpper(cfg.Fiat)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.TickerTTL <= 0 {
		cfg.TickerTTL = 10 * time.Second
	}
	return &Client{cfg: cfg, client: hc}
}

func (c *Client) Name() string { return Name }

// ResolveSymbol is the identity mapping: Bitpanda keys its ticker by the
// canonical symbol. It still verifies the asset carries a quote in the
// reference fiat.
func (c *Client) ResolveSymbol(ctx context.Context, asset string) (string, error) {
	snap, err := c.ticker(ctx)
	if err != nil {
		return "", err
	}
	sym := strings.ToUpper(asset)
	entry, ok := snap[sym]
	if !ok {
		return "", venue.Errf(Name, asset, venue.KindUnsupported, "not in ticker")
	}
	if _, ok := entry[c.cfg.Fiat]; !ok {
		return "", venue.Errf(Name, asset, venue.KindUnsupported, "no %s quote", c.cfg.Fiat)
	}
	return sym, nil
}

func (c *Client) FetchPrice(ctx context.Context, asset string) (venue.Quote, error) {
	snap, err := c.ticker(ctx)
	if err != nil {
		return venue.Quote{}, err
	}
	entry, ok := snap[strings.ToUpper(asset)]
	if !ok {
		return venue.Quote{}, venue.Errf(Name, asset, venue.KindUnsupported, "not in ticker")
	}
	raw, ok := entry[c.cfg.Fiat]
	if !ok {
		return venue.Quote{}, venue.Errf(Name, asset, venue.KindUnsupported, "no %s quote", c.cfg.Fiat)
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return venue.Quote{}, venue.Errf(Name, asset, venue.KindMalformed, "price %q: %w", raw, err)
	}
	if !price.IsPositive() {
		return venue.Quote{}, venue.Errf(Name, asset, venue.KindMalformed, "non-positive price %q", raw)
	}
	return venue.Quote{Venue: Name, Asset: strings.ToUpper(asset), Price: price, At: time.Now().UTC()}, nil
}

func (c *Client) ListAssets(ctx context.Context) ([]string, error) {
	snap, err := c.ticker(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(snap))
	for sym, entry := range snap {
		if _, ok := entry[c.cfg.Fiat]; ok {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ticker returns the current snapshot, refreshing it when expired. Refreshes
// are coalesced and the map is swapped whole, never mutated in place.
func (c *Client) ticker(ctx context.Context) (map[string]map[string]string, error) {
	c.mu.RLock()
	cur := c.snap
	c.mu.RUnlock()
	if cur.prices != nil && time.Now().Before(cur.until) {
		return cur.prices, nil
	}

	v, err, _ := c.sf.Do("ticker", func() (any, error) {
		refreshCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
		prices, err := c.fetchTicker(refreshCtx)
		if err != nil {
			return nil, err
		}
		fresh := tickerSnapshot{prices: prices, until: time.Now().Add(c.cfg.TickerTTL)}
		c.mu.Lock()
		c.snap = fresh
		c.mu.Unlock()
		return prices, nil
	})
	if err != nil {
		if cur.prices != nil {
			return cur.prices, nil
		}
		return nil, err
	}
	return v.(map[string]map[string]string), nil
}

func (c *Client) fetchTicker(ctx context.Context) (map[string]map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint, http.NoBody)
	if err != nil {
		return nil, venue.Errf(Name, "", venue.KindUpstream, "creating request: %w", err)
	}
	res, err := c.client.Do(ctx, req)
	if err != nil {
		return nil, venue.Errf(Name, "", venue.KindUpstream, "GET %s: %w", c.cfg.Endpoint, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, venue.Errf(Name, "", venue.KindUpstream, "GET %s -> %d", c.cfg.Endpoint, res.StatusCode)
	}

	var prices map[string]map[string]string
	if err := json.NewDecoder(res.Body).Decode(&prices); err != nil {
		return nil, venue.Errf(Name, "", venue.KindMalformed, "decode ticker: %w", err)
	}
	return prices, nil
}
