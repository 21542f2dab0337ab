package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"arbscan/internal/venue"

	"github.com/shopspring/decimal"
)

// Name is the venue identifier used in price maps and fee schedules.
const Name = "Coinbase"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=coinbase_test -destination=mock_http_client_test.go -source=coinbase.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches spot prices from the Coinbase public API. Coinbase symbols
// are already canonical, so no normalization is applied.
type Client struct {
	spotURL     string
	productsURL string
	fiat        string
	timeout     time.Duration
	httpClient  HTTPClient
	header      http.Header
}

// Option is a configuration option for the Coinbase client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithEndpoints overrides the spot and products base URLs.
func WithEndpoints(spotURL, productsURL string) Option {
	return func(c *Client) {
		c.spotURL = strings.TrimRight(spotURL, "/")
		c.productsURL = strings.TrimRight(productsURL, "/")
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// New creates a Coinbase client quoting against the given reference fiat.
func New(fiat string, options ...Option) *Client {
	c := &Client{
		spotURL:     "https://api.coinbase.com/v2/prices",
		productsURL: "https://api.exchange.coinbase.com/products",
		fiat:        strings.ToUpper(fiat),
		timeout:     10 * time.Second,
		httpClient:  http.DefaultClient,
		header:      http.Header{},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Client) Name() string { return Name }

// ResolveSymbol maps a canonical asset to Coinbase's product id, e.g.
// BTC -> BTC-USD. Coinbase listings are checked at fetch time, so this
// never reports an unsupported asset on its own.
func (c *Client) ResolveSymbol(_ context.Context, asset string) (string, error) {
	return strings.ToUpper(asset) + "-" + c.fiat, nil
}

func (c *Client) FetchPrice(ctx context.Context, asset string) (venue.Quote, error) {
	sym, err := c.ResolveSymbol(ctx, asset)
	if err != nil {
		return venue.Quote{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s/spot", c.spotURL, sym)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return venue.Quote{}, venue.Errf(Name, asset, venue.KindUpstream, "creating request: %w", err)
	}
	for key, values := range c.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return venue.Quote{}, venue.Errf(Name, asset, venue.KindUpstream, "GET %s: %w", url, err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return venue.Quote{}, venue.Errf(Name, asset, venue.KindUnsupported, "no %s product", sym)
	default:
		return venue.Quote{}, venue.Errf(Name, asset, venue.KindUpstream, "GET %s -> %d", url, res.StatusCode)
	}

	var body spotResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return venue.Quote{}, venue.Errf(Name, asset, venue.KindMalformed, "decode spot: %w", err)
	}
	price, err := decimal.NewFromString(body.Data.Amount)
	if err != nil {
		return venue.Quote{}, venue.Errf(Name, asset, venue.KindMalformed, "amount %q: %w", body.Data.Amount, err)
	}
	if !price.IsPositive() {
		return venue.Quote{}, venue.Errf(Name, asset, venue.KindMalformed, "non-positive amount %q", body.Data.Amount)
	}
	return venue.Quote{Venue: Name, Asset: strings.ToUpper(asset), Price: price, At: time.Now().UTC()}, nil
}

func (c *Client) ListAssets(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.productsURL, http.NoBody)
	if err != nil {
		return nil, venue.Errf(Name, "", venue.KindUpstream, "creating request: %w", err)
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, venue.Errf(Name, "", venue.KindUpstream, "GET %s: %w", c.productsURL, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, venue.Errf(Name, "", venue.KindUpstream, "GET %s -> %d", c.productsURL, res.StatusCode)
	}

	var products []product
	if err := json.NewDecoder(res.Body).Decode(&products); err != nil {
		return nil, venue.Errf(Name, "", venue.KindMalformed, "decode products: %w", err)
	}
	seen := make(map[string]struct{}, len(products))
	out := make([]string, 0, len(products))
	for _, p := range products {
		if p.QuoteCurrency != c.fiat {
			continue
		}
		base := strings.ToUpper(p.BaseCurrency)
		if _, dup := seen[base]; dup {
			continue
		}
		seen[base] = struct{}{}
		out = append(out, base)
	}
	sort.Strings(out)
	return out, nil
}

type spotResponse struct {
	Data struct {
		Amount   string `json:"amount"`
		Base     string `json:"base"`
		Currency string `json:"currency"`
	} `json:"data"`
}

type product struct {
	ID            string `json:"id"`
	BaseCurrency  string `json:"base_currency"`
	QuoteCurrency string `json:"quote_currency"`
}
