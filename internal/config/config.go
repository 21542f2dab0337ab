package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

type Scan struct {
	IntervalSec         int    `json:"interval_sec"`
	RequestTimeoutSec   int    `json:"request_timeout_sec"`
	MaxConcurrentAssets int    `json:"max_concurrent_assets"`
	Fiat                string `json:"fiat"`
}

type Coinbase struct {
	Enabled               bool   `json:"enabled"`
	SpotEndpoint          string `json:"spot_endpoint"`
	ProductsEndpoint      string `json:"products_endpoint"`
	Fee                   string `json:"fee"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec"`
	Burst                 int    `json:"burst"`
}

type Kraken struct {
	Enabled               bool   `json:"enabled"`
	Endpoint              string `json:"endpoint"`
	Fee                   string `json:"fee"`
	PairCacheTTLSec       int    `json:"pair_cache_ttl_sec"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec"`
	Burst                 int    `json:"burst"`
}

type Bitpanda struct {
	Enabled               bool   `json:"enabled"`
	Endpoint              string `json:"endpoint"`
	Fee                   string `json:"fee"`
	TickerCacheTTLSec     int    `json:"ticker_cache_ttl_sec"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec"`
	Burst                 int    `json:"burst"`
}

type Config struct {
	Scan     Scan     `json:"scan"`
	Coinbase Coinbase `json:"coinbase"`
	Kraken   Kraken   `json:"kraken"`
	Bitpanda Bitpanda `json:"bitpanda"`
}

func Default() Config {
	return Config{
		Scan: Scan{
			IntervalSec:         60,
			RequestTimeoutSec:   10,
			MaxConcurrentAssets: 8,
			Fiat:                "USD",
		},
		Coinbase: Coinbase{
			Enabled:              true,
			SpotEndpoint:         "https://api.coinbase.com/v2/prices",
			ProductsEndpoint:     "https://api.exchange.coinbase.com/products",
			Fee:                  "0.006",
			MaxRequestsPerMinute: 600,
			Burst:                10,
		},
		Kraken: Kraken{
			Enabled:              true,
			Endpoint:             "https://api.kraken.com/0/public",
			Fee:                  "0.0026",
			PairCacheTTLSec:      300,
			MaxRequestsPerMinute: 60,
			Burst:                5,
		},
		Bitpanda: Bitpanda{
			Enabled:              true,
			Endpoint:             "https://api.bitpanda.com/v1/ticker",
			Fee:                  "0.0015",
			TickerCacheTTLSec:    10,
			MaxRequestsPerMinute: 60,
			Burst:                5,
		},
	}
}

// Load reads JSON config from path. If path is empty or the file does not
// exist, it returns defaults. Environment variables override select fields.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// Validate fails fast on operator errors: no venues, bad fee rates, missing
// fiat. Runtime venue failures are handled per cycle and never reach here.
func (c Config) Validate() error {
	if c.Scan.Fiat == "" {
		return fmt.Errorf("config: scan.fiat must be set")
	}
	if c.Scan.RequestTimeoutSec <= 0 {
		return fmt.Errorf("config: scan.request_timeout_sec must be positive")
	}
	if c.Scan.IntervalSec <= 0 {
		return fmt.Errorf("config: scan.interval_sec must be positive")
	}
	if c.Scan.MaxConcurrentAssets <= 0 {
		return fmt.Errorf("config: scan.max_concurrent_assets must be positive")
	}
	enabled := 0
	for name, v := range map[string]struct {
		on  bool
		fee string
	}{
		"coinbase": {c.Coinbase.Enabled, c.Coinbase.Fee},
		"kraken":   {c.Kraken.Enabled, c.Kraken.Fee},
		"bitpanda": {c.Bitpanda.Enabled, c.Bitpanda.Fee},
	} {
		if !v.on {
			continue
		}
		enabled++
		if _, err := ParseFee(v.fee); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("config: no venues enabled")
	}
	return nil
}

// ParseFee parses a fractional fee rate and enforces 0 <= fee < 1.
func ParseFee(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("fee %q: %w", s, err)
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Decimal{}, fmt.Errorf("fee %q: must be in [0,1)", s)
	}
	return d, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SCAN_INTERVAL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Scan.IntervalSec = x
		}
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Scan.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("MAX_CONCURRENT_ASSETS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Scan.MaxConcurrentAssets = x
		}
	}
	if v := os.Getenv("FIAT"); v != "" {
		cfg.Scan.Fiat = strings.ToUpper(v)
	}
	if v := os.Getenv("COINBASE_ENABLED"); v != "" {
		cfg.Coinbase.Enabled = envBool(v, cfg.Coinbase.Enabled)
	}
	if v := os.Getenv("COINBASE_FEE"); v != "" {
		cfg.Coinbase.Fee = v
	}
	if v := os.Getenv("COINBASE_MIN_INTERVAL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Coinbase.MinRequestIntervalSec = x
		}
	}
	if v := os.Getenv("KRAKEN_ENABLED"); v != "" {
		cfg.Kraken.Enabled = envBool(v, cfg.Kraken.Enabled)
	}
	if v := os.Getenv("KRAKEN_FEE"); v != "" {
		cfg.Kraken.Fee = v
	}
	if v := os.Getenv("KRAKEN_MIN_INTERVAL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Kraken.MinRequestIntervalSec = x
		}
	}
	if v := os.Getenv("BITPANDA_ENABLED"); v != "" {
		cfg.Bitpanda.Enabled = envBool(v, cfg.Bitpanda.Enabled)
	}
	if v := os.Getenv("BITPANDA_FEE"); v != "" {
		cfg.Bitpanda.Fee = v
	}
	if v := os.Getenv("BITPANDA_MIN_INTERVAL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Bitpanda.MinRequestIntervalSec = x
		}
	}
}

func envBool(v string, def bool) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	}
	return def
}
