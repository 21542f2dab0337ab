package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"arbscan/internal/config"
	"arbscan/internal/httpx"
	"arbscan/internal/scan"
	"arbscan/internal/venue"
	"arbscan/internal/venue/bitpanda"
	"arbscan/internal/venue/coinbase"
	"arbscan/internal/venue/kraken"
	"arbscan/internal/venue/ratelimit"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func main() {
	var configPath string
	var once bool
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
	flag.BoolVar(&once, "once", false, "run a single scan cycle and exit")
	flag.Parse()

	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	timeout := time.Duration(cfg.Scan.RequestTimeoutSec) * time.Second
	httpClient := httpx.New(timeout)

	venues, fees := buildVenues(cfg, httpClient, timeout)
	scanner, err := scan.New(venues, fees,
		scan.WithLogger(log),
		scan.WithMaxConcurrentAssets(cfg.Scan.MaxConcurrentAssets),
	)
	if err != nil {
		log.Fatalf("scanner: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runCycle := func() {
		start := time.Now()
		out, err := scanner.Scan(ctx)
		if err != nil {
			log.WithError(err).Warn("scan aborted")
			return
		}
		render(os.Stdout, out)
		log.WithFields(logrus.Fields{
			"opportunities": len(out),
			"elapsed":       time.Since(start).Round(time.Millisecond).String(),
		}).Info("cycle complete")
	}

	runCycle()
	if once {
		return
	}

	ticker := time.NewTicker(time.Duration(cfg.Scan.IntervalSec) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
			runCycle()
		}
	}
}

// buildVenues constructs the enabled venue clients, each wrapped with a rate
// limiter when a requests-per-minute budget is configured, plus the matching
// fee schedule. Fees were already range-checked by Validate.
func buildVenues(cfg config.Config, httpClient *httpx.Client, timeout time.Duration) ([]venue.Client, map[string]decimal.Decimal) {
	var venues []venue.Client
	fees := make(map[string]decimal.Decimal, 3)

	if cfg.Coinbase.Enabled {
		c := coinbase.New(cfg.Scan.Fiat,
			coinbase.WithHTTPClient(httpClient.HTTP),
			coinbase.WithEndpoints(cfg.Coinbase.SpotEndpoint, cfg.Coinbase.ProductsEndpoint),
			coinbase.WithTimeout(timeout),
		)
		venues = append(venues, limited(c, cfg.Coinbase.MaxRequestsPerMinute, cfg.Coinbase.Burst, cfg.Coinbase.MinRequestIntervalSec))
		fees[c.Name()], _ = config.ParseFee(cfg.Coinbase.Fee)
	}
	if cfg.Kraken.Enabled {
		c := kraken.New(kraken.Config{
			Endpoint:     cfg.Kraken.Endpoint,
			Fiat:         cfg.Scan.Fiat,
			Timeout:      timeout,
			PairCacheTTL: time.Duration(cfg.Kraken.PairCacheTTLSec) * time.Second,
		}, httpClient)
		venues = append(venues, limited(c, cfg.Kraken.MaxRequestsPerMinute, cfg.Kraken.Burst, cfg.Kraken.MinRequestIntervalSec))
		fees[c.Name()], _ = config.ParseFee(cfg.Kraken.Fee)
	}
	if cfg.Bitpanda.Enabled {
		c := bitpanda.New(bitpanda.Config{
			Endpoint:  cfg.Bitpanda.Endpoint,
			Fiat:      cfg.Scan.Fiat,
			Timeout:   timeout,
			TickerTTL: time.Duration(cfg.Bitpanda.TickerCacheTTLSec) * time.Second,
		}, httpClient)
		venues = append(venues, limited(c, cfg.Bitpanda.MaxRequestsPerMinute, cfg.Bitpanda.Burst, cfg.Bitpanda.MinRequestIntervalSec))
		fees[c.Name()], _ = config.ParseFee(cfg.Bitpanda.Fee)
	}
	return venues, fees
}

// limited applies the configured rate policy: a token bucket when a
// requests-per-minute budget is set, otherwise a minimum call interval.
func limited(c venue.Client, rpm, burst, minIntervalSec int) venue.Client {
	if rpm > 0 {
		if burst <= 0 {
			burst = 1
		}
		return &ratelimit.Limited{C: c, TB: ratelimit.NewTokenBucket(float64(rpm)/60.0, burst)}
	}
	if minIntervalSec > 0 {
		return &ratelimit.MinInterval{C: c, Interval: time.Duration(minIntervalSec) * time.Second}
	}
	return c
}

func render(w io.Writer, records []scan.Opportunity) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No profitable arbitrage opportunities found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ASSET\tBUY AT\tSELL AT\tBUY PRICE\tSELL PRICE\tNET PROFIT")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Asset, r.BuyVenue, r.SellVenue, r.BuyPrice, r.SellPrice, r.NetProfit.StringFixed(4))
	}
	tw.Flush()
}
