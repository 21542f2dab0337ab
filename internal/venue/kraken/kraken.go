package kraken

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
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
const Name = "Kraken"

// aliasMap translates Kraken's legacy asset codes to the canonical tickers
// used everywhere else.
var aliasMap = map[string]string{
	"XBT": "BTC",
	"XDG": "DOGE",
}

// Config controls the Kraken client behavior.
type Config struct {
	Endpoint     string        // base URL, e.g. https://api.kraken.com/0/public
	Fiat         string        // reference fiat, e.g. USD (quoted as ZUSD upstream)
	Timeout      time.Duration // per-request bound
	PairCacheTTL time.Duration // how long the AssetPairs catalog stays valid
}

// Client fetches spot prices from the Kraken public API. Kraken identifies
// markets by opaque pair names (XXBTZUSD), so the client keeps a catalog
// mapping canonical assets to pair names, refreshed on a TTL.
type Client struct {
	cfg    Config
	client *httpx.Client

	mu    sync.RWMutex
	pairs pairCatalog

	// coalesce concurrent catalog refreshes
	sf singleflight.Group
}

type pairCatalog struct {
	byAsset map[string]string // canonical asset -> pair name
	until   time.Time
}

func New(cfg Config, hc *httpx.Client) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.kraken.com/0/public"
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Fiat == "" {
		cfg.Fiat = "USD"
	}
	cfg.Fiat = strings.ToUpper(cfg.Fiat)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PairCacheTTL <= 0 {
		cfg.PairCacheTTL = 5 * time.Minute
	}
	return &Client{cfg: cfg, client: hc}
}

func (c *Client) Name() string { return Name }

func (c *Client) ResolveSymbol(ctx context.Context, asset string) (string, error) {
	catalog, err := c.catalog(ctx)
	if err != nil {
		return "", err
	}
	pair, ok := catalog[strings.ToUpper(asset)]
	if !ok {
		return "", venue.Errf(Name, asset, venue.KindUnsupported, "not listed against %s", c.cfg.Fiat)
	}
	return pair, nil
}

func (c *Client) FetchPrice(ctx context.Context, asset string) (venue.Quote, error) {
	pair, err := c.ResolveSymbol(ctx, asset)
	if err != nil {
		return venue.Quote{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	u := c.cfg.Endpoint + "/Ticker?pair=" + url.QueryEscape(pair)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return venue.Quote{}, venue.Errf(Name, asset, venue.KindUpstream, "creating request: %w", err)
	}
	res, err := c.client.Do(ctx, req)
	if err != nil {
		return venue.Quote{}, venue.Errf(Name, asset, venue.KindUpstream, "GET %s: %w", u, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return venue.Quote{}, venue.Errf(Name, asset, venue.KindUpstream, "GET %s -> %d", u, res.StatusCode)
	}

	var body tickerResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return venue.Quote{}, venue.Errf(Name, asset, venue.KindMalformed, "decode ticker: %w", err)
	}
	if len(body.Error) > 0 {
		return venue.Quote{}, venue.Errf(Name, asset, venue.KindUpstream, "api error: %s", strings.Join(body.Error, "; "))
	}
	tick, ok := body.Result[pair]
	if !ok {
		// Kraken occasionally answers under a variant pair name; fall back
		// to the single entry if there is exactly one.
		if len(body.Result) != 1 {
			return venue.Quote{}, venue.Errf(Name, asset, venue.KindMalformed, "pair %s missing from result", pair)
		}
		for _, v := range body.Result {
			tick = v
		}
	}
	if len(tick.Close) == 0 {
		return venue.Quote{}, venue.Errf(Name, asset, venue.KindMalformed, "pair %s has no close data", pair)
	}
	price, err := decimal.NewFromString(tick.Close[0])
	if err != nil {
		return venue.Quote{}, venue.Errf(Name, asset, venue.KindMalformed, "close %q: %w", tick.Close[0], err)
	}
	if !price.IsPositive() {
		return venue.Quote{}, venue.Errf(Name, asset, venue.KindMalformed, "non-positive close %q", tick.Close[0])
	}
	return venue.Quote{Venue: Name, Asset: strings.ToUpper(asset), Price: price, At: time.Now().UTC()}, nil
}

func (c *Client) ListAssets(ctx context.Context) ([]string, error) {
	catalog, err := c.catalog(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(catalog))
	for asset := range catalog {
		out = append(out, asset)
	}
	sort.Strings(out)
	return out, nil
}

// catalog returns the asset->pair mapping, refreshing it when expired.
// Refreshes build a fresh map and swap it in whole; in-flight readers keep
// the snapshot they already hold.
func (c *Client) catalog(ctx context.Context) (map[string]string, error) {
	c.mu.RLock()
	cur := c.pairs
	c.mu.RUnlock()
	if cur.byAsset != nil && time.Now().Before(cur.until) {
		return cur.byAsset, nil
	}

	v, err, _ := c.sf.Do("pairs", func() (any, error) {
		refreshCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
		byAsset, err := c.fetchPairs(refreshCtx)
		if err != nil {
			return nil, err
		}
		fresh := pairCatalog{byAsset: byAsset, until: time.Now().Add(c.cfg.PairCacheTTL)}
		c.mu.Lock()
		c.pairs = fresh
		c.mu.Unlock()
		return byAsset, nil
	})
	if err != nil {
		// Serve a stale catalog over failing outright if we ever had one.
		if cur.byAsset != nil {
			return cur.byAsset, nil
		}
		return nil, err
	}
	return v.(map[string]string), nil
}

func (c *Client) fetchPairs(ctx context.Context) (map[string]string, error) {
	u := c.cfg.Endpoint + "/AssetPairs"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, venue.Errf(Name, "", venue.KindUpstream, "creating request: %w", err)
	}
	res, err := c.client.Do(ctx, req)
	if err != nil {
		return nil, venue.Errf(Name, "", venue.KindUpstream, "GET %s: %w", u, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, venue.Errf(Name, "", venue.KindUpstream, "GET %s -> %d", u, res.StatusCode)
	}

	var body pairsResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, venue.Errf(Name, "", venue.KindMalformed, "decode asset pairs: %w", err)
	}
	if len(body.Error) > 0 {
		return nil, venue.Errf(Name, "", venue.KindUpstream, "api error: %s", strings.Join(body.Error, "; "))
	}

	quote := "Z" + c.cfg.Fiat
	byAsset := make(map[string]string, len(body.Result))
	for pairName, pair := range body.Result {
		if pair.Quote != quote && pair.Quote != c.cfg.Fiat {
			continue
		}
		byAsset[canonicalBase(pair.Base)] = pairName
	}
	return byAsset, nil
}

// canonicalBase strips Kraken's single-character currency-class prefix
// (XXBT -> XBT, ZUSD -> USD) and applies legacy aliases (XBT -> BTC).
func canonicalBase(base string) string {
	b := strings.ToUpper(base)
	if len(b) == 4 && (b[0] == 'X' || b[0] == 'Z') {
		b = b[1:]
	}
	if alias, ok := aliasMap[b]; ok {
		return alias
	}
	return b
}

type pairsResponse struct {
	Error  []string            `json:"error"`
	Result map[string]pairInfo `json:"result"`
}

type pairInfo struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

type tickerResponse struct {
	Error  []string              `json:"error"`
	Result map[string]tickerInfo `json:"result"`
}

type tickerInfo struct {
	// c is [last trade price, lot volume]
	Close []string `json:"c"`
}
