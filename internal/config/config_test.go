package config

import "testing"

func TestValidate_Defaults(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidate_NoVenues(t *testing.T) {
	cfg := Default()
	cfg.Coinbase.Enabled = false
	cfg.Kraken.Enabled = false
	cfg.Bitpanda.Enabled = false
	if err := cfg.Validate(); err == nil {
		t.Fatalf("zero enabled venues must fail validation")
	}
}

func TestValidate_FeeRange(t *testing.T) {
	for _, bad := range []string{"1", "1.5", "-0.001", "abc", ""} {
		cfg := Default()
		cfg.Kraken.Fee = bad
		if err := cfg.Validate(); err == nil {
			t.Fatalf("fee %q must fail validation", bad)
		}
	}
	cfg := Default()
	cfg.Kraken.Fee = "0"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero fee is valid: %v", err)
	}
}

func TestParseFee(t *testing.T) {
	d, err := ParseFee("0.006")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "0.006" {
		t.Fatalf("want 0.006, got %s", d)
	}
}

func TestValidate_ScanBounds(t *testing.T) {
	cfg := Default()
	cfg.Scan.IntervalSec = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("zero interval must fail validation")
	}
	cfg = Default()
	cfg.Scan.Fiat = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("empty fiat must fail validation")
	}
}
