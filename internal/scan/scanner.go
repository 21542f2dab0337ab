package scan

import (
	"context"
	"fmt"
	"sort"

	"arbscan/internal/venue"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

//go:generate mockgen -package=scan_test -destination=mock_client_test.go arbscan/internal/venue Client

// Scanner runs one detection cycle: resolve the tradable universe, aggregate
// per-asset prices across venues, detect opportunities and rank them. Venue
// failures are cycle-local and never abort a scan.
type Scanner struct {
	venues []venue.Client
	fees   map[string]decimal.Decimal
	limit  int
	log    logrus.FieldLogger
}

// Option is a configuration option for the Scanner.
type Option func(*Scanner)

// WithLogger sets the logger; by default the standard logrus logger is used.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Scanner) { s.log = log }
}

// WithMaxConcurrentAssets bounds how many assets are aggregated at once.
func WithMaxConcurrentAssets(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.limit = n
		}
	}
}

// New validates the venue/fee configuration and builds a Scanner. Zero
// venues, a venue without a fee entry, or a fee outside [0,1) are operator
// errors and fail here rather than per cycle.
func New(venues []venue.Client, fees map[string]decimal.Decimal, options ...Option) (*Scanner, error) {
	if len(venues) == 0 {
		return nil, fmt.Errorf("scan: no venues configured")
	}
	one := decimal.NewFromInt(1)
	for _, v := range venues {
		fee, ok := fees[v.Name()]
		if !ok {
			return nil, fmt.Errorf("scan: no fee rate for venue %s", v.Name())
		}
		if fee.IsNegative() || fee.GreaterThanOrEqual(one) {
			return nil, fmt.Errorf("scan: fee rate for venue %s must be in [0,1), got %s", v.Name(), fee)
		}
	}
	s := &Scanner{
		venues: venues,
		fees:   fees,
		limit:  8,
		log:    logrus.StandardLogger(),
	}
	for _, option := range options {
		option(s)
	}
	return s, nil
}

// Universe returns the canonical assets tradable on every venue, sorted
// ascending. A venue whose listing call fails contributes the empty set, so
// the intersection collapses toward empty instead of the cycle failing.
func (s *Scanner) Universe(ctx context.Context) []string {
	lists := make([][]string, len(s.venues))
	g, ctx := errgroup.WithContext(ctx)
	for i, v := range s.venues {
		g.Go(func() error {
			assets, err := v.ListAssets(ctx)
			if err != nil {
				s.log.WithField("venue", v.Name()).WithError(err).Warn("listing failed, venue treated as empty")
				return nil
			}
			lists[i] = assets
			return nil
		})
	}
	_ = g.Wait()

	counts := make(map[string]int)
	for _, assets := range lists {
		seen := make(map[string]struct{}, len(assets))
		for _, a := range assets {
			if _, dup := seen[a]; dup {
				continue
			}
			seen[a] = struct{}{}
			counts[a]++
		}
	}
	universe := make([]string, 0, len(counts))
	for a, n := range counts {
		if n == len(s.venues) {
			universe = append(universe, a)
		}
	}
	sort.Strings(universe)
	return universe
}

// Aggregate fetches one asset's price from every venue concurrently. Venues
// that fail, with any failure kind, are simply absent from the result.
func (s *Scanner) Aggregate(ctx context.Context, asset string) PriceMap {
	type result struct {
		name  string
		quote venue.Quote
		err   error
	}
	ch := make(chan result, len(s.venues))
	for _, v := range s.venues {
		go func() {
			q, err := v.FetchPrice(ctx, asset)
			ch <- result{name: v.Name(), quote: q, err: err}
		}()
	}

	prices := make(PriceMap, len(s.venues))
	for range s.venues {
		r := <-ch
		if r.err != nil {
			// Unsupported assets are routine; anything else is worth a line.
			if venue.IsUnsupported(r.err) {
				s.log.WithFields(logrus.Fields{"venue": r.name, "asset": asset}).Debug("asset not listed")
			} else {
				s.log.WithFields(logrus.Fields{"venue": r.name, "asset": asset}).WithError(r.err).Debug("price fetch failed")
			}
			continue
		}
		prices[r.name] = r.quote.Price
	}
	return prices
}

// Scan runs one full cycle and returns the ranked profitable opportunities.
// The only error it returns is context cancellation; venue trouble shows up
// as a shorter (possibly empty) result instead.
func (s *Scanner) Scan(ctx context.Context) ([]Opportunity, error) {
	assets := s.Universe(ctx)

	found := make([]*Opportunity, len(assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for i, asset := range assets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			prices := s.Aggregate(gctx, asset)
			if op, ok := Detect(asset, prices, s.fees); ok {
				found[i] = &op
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Compact in ascending asset order so Rank's stable sort is reproducible.
	records := make([]Opportunity, 0, len(found))
	for _, op := range found {
		if op != nil {
			records = append(records, *op)
		}
	}
	return Rank(records), nil
}
