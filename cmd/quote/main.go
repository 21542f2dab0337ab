package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
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

// quote is a one-shot inspection tool: it prints the per-venue price map for
// the given assets as JSON, without running detection.
func main() {
	var assetsCSV string
	var configPath string
	flag.StringVar(&assetsCSV, "assets", getenv("ASSETS", "BTC"), "comma-separated canonical assets")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	assets := splitCSV(assetsCSV)
	if len(assets) == 0 {
		log.Fatal("no assets provided")
	}

	timeout := time.Duration(cfg.Scan.RequestTimeoutSec) * time.Second
	httpClient := httpx.New(timeout)
	venues, fees := buildVenues(cfg, httpClient, timeout)

	quiet := logrus.New()
	quiet.SetLevel(logrus.ErrorLevel)
	scanner, err := scan.New(venues, fees, scan.WithLogger(quiet))
	if err != nil {
		log.Fatalf("scanner: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout+5*time.Second)
	defer cancel()

	out := make(map[string]scan.PriceMap, len(assets))
	for _, asset := range assets {
		out[strings.ToUpper(asset)] = scanner.Aggregate(ctx, strings.ToUpper(asset))
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}

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

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
