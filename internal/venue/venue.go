package venue

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a single spot price observed on one venue.
// Asset is the canonical (normalized) ticker, Price is quoted in the
// configured reference fiat.
type Quote struct {
	Venue string          `json:"venue"`
	Asset string          `json:"asset"`
	Price decimal.Decimal `json:"price"`
	At    time.Time       `json:"at"`
}

// Client is the capability every venue must provide. Implementations issue
// exactly one network request per FetchPrice call; retry and failure policy
// live with the caller.
type Client interface {
	Name() string

	// ResolveSymbol maps a canonical asset to the venue's native trading-pair
	// identifier. Returns an Unsupported error when the venue does not list
	// the asset against the reference fiat.
	ResolveSymbol(ctx context.Context, asset string) (string, error)

	// FetchPrice returns the current spot price for one canonical asset.
	// Failures are always a *Error; raw transport errors never escape.
	FetchPrice(ctx context.Context, asset string) (Quote, error)

	// ListAssets returns the canonical assets tradable against the reference
	// fiat on this venue.
	ListAssets(ctx context.Context) ([]string, error)
}
