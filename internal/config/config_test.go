package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := defaults()
	cfg.APIKey = "key"
	cfg.APISecret = "secret"
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validate(validConfig()); err != nil {
		t.Fatalf("expected config to be valid, got %v", err)
	}
}

func TestValidateRequiresCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.APISecret = ""

	if err := validate(cfg); err == nil {
		t.Fatalf("expected validation error for missing credentials")
	}
}

func TestValidateRejectsInvalidThresholds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"buying power limit above one", func(c *Config) { c.BuyingPowerLimit = 1.5 }},
		{"avoid above buy year", func(c *Config) { c.AvoidYearThreshold = 0.99 }},
		{"zero buy dollar floor", func(c *Config) { c.BuyDollarFloor = 0 }},
		{"negative sell limit", func(c *Config) { c.SellLimit = -1 }},
		{"zero period days", func(c *Config) { c.PeriodDays = 0 }},
		{"both pass filters", func(c *Config) { c.SellPassOnly = true; c.BuyPassOnly = true }},
		{"only crypto without crypto", func(c *Config) { c.OnlyCrypto = true; c.IncludeCrypto = false }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(&cfg)
		if err := validate(cfg); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	configContents := strings.Join([]string{
		"profit_threshold: 0.25",
		"sell_limit: 3",
		"buy_limit: 4",
	}, "\n")
	if err := os.WriteFile(configPath, []byte(configContents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("APCA_API_KEY_ID", "env-key")
	t.Setenv("APCA_API_SECRET_KEY", "env-secret")

	resetFlags := resetFlagSet(t)
	defer resetFlags()

	os.Args = []string{
		"cmd",
		"--config", configPath,
		"--sell-limit", "5",
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.SellLimit != 5 {
		t.Fatalf("expected sell limit from CLI, got %d", cfg.SellLimit)
	}
	if cfg.ProfitThreshold != 0.25 {
		t.Fatalf("expected profit threshold from file, got %v", cfg.ProfitThreshold)
	}
	if cfg.BuyLimit != 4 {
		t.Fatalf("expected buy limit from file, got %d", cfg.BuyLimit)
	}
	if cfg.BuyingPowerLimit != 0.1 {
		t.Fatalf("expected default buying power limit, got %v", cfg.BuyingPowerLimit)
	}
	if cfg.APIKey != "env-key" {
		t.Fatalf("expected API key from env, got %q", cfg.APIKey)
	}
}

func TestLoadParsesWatchlist(t *testing.T) {
	t.Setenv("APCA_API_KEY_ID", "env-key")
	t.Setenv("APCA_API_SECRET_KEY", "env-secret")

	resetFlags := resetFlagSet(t)
	defer resetFlags()

	os.Args = []string{"cmd", "--crypto-watchlist", "BTC/USD, ETH/USD"}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.CryptoWatchlist) != 2 || cfg.CryptoWatchlist[0] != "BTC/USD" || cfg.CryptoWatchlist[1] != "ETH/USD" {
		t.Fatalf("unexpected watchlist: %v", cfg.CryptoWatchlist)
	}
}

func resetFlagSet(t *testing.T) func() {
	t.Helper()
	originalArgs := os.Args
	originalCommandLine := flag.CommandLine
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	return func() {
		flag.CommandLine = originalCommandLine
		os.Args = originalArgs
	}
}
