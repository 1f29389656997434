package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8545" {
		t.Fatalf("RPCAddress = %q", cfg.RPCAddress)
	}
	if cfg.Bond.CollateralFiat != "5000" {
		t.Fatalf("CollateralFiat = %q", cfg.Bond.CollateralFiat)
	}
	if cfg.Bond.RefundDepositOnRemoval {
		t.Fatalf("refund policy must default off")
	}
	if len(cfg.Oracle.Priority) != 1 || cfg.Oracle.Priority[0] != "manual" {
		t.Fatalf("Priority = %v", cfg.Oracle.Priority)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if _, err := os.Stat(cfg.GovernmentKeystorePath); err != nil {
		t.Fatalf("keystore not written: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
RPCAddress = ":9000"
DataDir = "/var/lib/evregistry"

[bond]
CollateralFiat = "2500"
RefundDepositOnRemoval = true

[oracle]
Priority = ["feed", "manual"]
MaxQuoteAgeSeconds = 120
FeedEndpoint = "http://feed.local/round"
FeedDecimals = 8
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":9000" || cfg.DataDir != "/var/lib/evregistry" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Bond.CollateralFiat != "2500" || !cfg.Bond.RefundDepositOnRemoval {
		t.Fatalf("unexpected bond config %+v", cfg.Bond)
	}
	if cfg.Oracle.MaxQuoteAge().Seconds() != 120 {
		t.Fatalf("MaxQuoteAge = %v", cfg.Oracle.MaxQuoteAge())
	}
	// Keystore path is filled in and the file materialized.
	if cfg.GovernmentKeystorePath == "" {
		t.Fatalf("keystore path not defaulted")
	}
	if _, err := os.Stat(cfg.GovernmentKeystorePath); err != nil {
		t.Fatalf("keystore not created: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("config must validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	base := func() *Config {
		cfg := &Config{RPCAddress: ":8545"}
		applyDefaults(cfg)
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad collateral", func(c *Config) { c.Bond.CollateralFiat = "many" }},
		{"negative collateral", func(c *Config) { c.Bond.CollateralFiat = "-1" }},
		{"zero quote age", func(c *Config) { c.Oracle.MaxQuoteAgeSeconds = 0 }},
		{"empty priority", func(c *Config) { c.Oracle.Priority = nil }},
		{"unknown feed", func(c *Config) { c.Oracle.Priority = []string{"astrology"} }},
		{"feed without endpoint", func(c *Config) { c.Oracle.Priority = []string{"feed"} }},
		{"missing rpc address", func(c *Config) { c.RPCAddress = " " }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if err := Validate(base()); err != nil {
		t.Fatalf("base config must validate: %v", err)
	}
}
