package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"dipbot/internal/policy"
)

type Config struct {
	AvoidYearThreshold     float64 `yaml:"avoid_year_threshold"`
	BuyYearThreshold       float64 `yaml:"buy_year_threshold"`
	SellYearThreshold      float64 `yaml:"sell_year_threshold"`
	BuyThreshold           float64 `yaml:"buy_threshold"`
	ProfitThreshold        float64 `yaml:"profit_threshold"`
	BuyingPowerLimit       float64 `yaml:"buying_power_limit"`
	PortfolioBuyThreshold  float64 `yaml:"portfolio_buy_threshold"`
	PortfolioSellThreshold float64 `yaml:"portfolio_sell_threshold"`
	BuyDollarFloor         float64 `yaml:"buy_dollar_floor"`
	SellDollarFloor        float64 `yaml:"sell_dollar_floor"`

	SellLimit             int  `yaml:"sell_limit"`
	BuyLimit              int  `yaml:"buy_limit"`
	SellFractional        bool `yaml:"sell_fractional"`
	ExcludePortfolioItems bool `yaml:"exclude_portfolio_items"`
	IncludeCrypto         bool `yaml:"include_crypto"`
	OnlyCrypto            bool `yaml:"only_crypto"`

	CryptoWatchlist []string `yaml:"crypto_watchlist"`
	PeriodDays      int      `yaml:"period_days"`
	MoversLimit     int      `yaml:"movers_limit"`

	SellPassOnly  bool   `yaml:"-"`
	BuyPassOnly   bool   `yaml:"-"`
	DecisionsPath string `yaml:"decisions_path"`
	MetricsAddr   string `yaml:"metrics_addr"`
	LogLevel      string `yaml:"log_level"`
	LogDir        string `yaml:"log_dir"`
	BaseURL       string `yaml:"base_url"`

	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
}

func defaults() Config {
	return Config{
		AvoidYearThreshold:     0.30,
		BuyYearThreshold:       0.95,
		SellYearThreshold:      1.0,
		BuyThreshold:           0,
		ProfitThreshold:        0.15,
		BuyingPowerLimit:       0.1,
		PortfolioBuyThreshold:  0.1,
		PortfolioSellThreshold: 1.0,
		BuyDollarFloor:         1,
		SellDollarFloor:        1,
		SellLimit:              10,
		BuyLimit:               10,
		SellFractional:         true,
		ExcludePortfolioItems:  true,
		IncludeCrypto:          true,
		CryptoWatchlist:        []string{"BTC/USD", "ETH/USD", "LTC/USD", "BCH/USD", "DOGE/USD"},
		PeriodDays:             7,
		MoversLimit:            100,
		DecisionsPath:          "decisions.ndjson",
		LogLevel:               "info",
		LogDir:                 "logs",
		BaseURL:                "https://paper-api.alpaca.markets",
	}
}

// Load resolves configuration with CLI flags taking precedence over the YAML
// file, which takes precedence over built-in defaults. Credentials come from
// the environment (optionally seeded from .env) and never from the file.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := configPathFromArgs(os.Args[1:]); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	var configPath string
	var watchlist string
	flag.StringVar(&configPath, "config", "", "path to YAML config file")
	flag.Float64Var(&cfg.AvoidYearThreshold, "avoid-year-threshold", cfg.AvoidYearThreshold, "minimum price/52wk-high ratio to consider buying")
	flag.Float64Var(&cfg.BuyYearThreshold, "buy-year-threshold", cfg.BuyYearThreshold, "maximum price/52wk-high ratio to consider buying")
	flag.Float64Var(&cfg.SellYearThreshold, "sell-year-threshold", cfg.SellYearThreshold, "maximum price/52wk-high ratio to consider selling")
	flag.Float64Var(&cfg.BuyThreshold, "buy-threshold", cfg.BuyThreshold, "maximum price-change ratio to trigger a buy")
	flag.Float64Var(&cfg.ProfitThreshold, "profit-threshold", cfg.ProfitThreshold, "minimum profit ratio required to sell")
	flag.Float64Var(&cfg.BuyingPowerLimit, "buying-power-limit", cfg.BuyingPowerLimit, "fraction of buying power usable per buy")
	flag.Float64Var(&cfg.PortfolioBuyThreshold, "portfolio-buy-threshold", cfg.PortfolioBuyThreshold, "max fraction of account value per buy")
	flag.Float64Var(&cfg.PortfolioSellThreshold, "portfolio-sell-threshold", cfg.PortfolioSellThreshold, "max fraction of account value per sell")
	flag.Float64Var(&cfg.BuyDollarFloor, "buy-dollar-floor", cfg.BuyDollarFloor, "minimum buy order in dollars")
	flag.Float64Var(&cfg.SellDollarFloor, "sell-dollar-floor", cfg.SellDollarFloor, "minimum sell order in dollars")
	flag.IntVar(&cfg.SellLimit, "sell-limit", cfg.SellLimit, "max symbols processed per sell pass, 0 for no limit")
	flag.IntVar(&cfg.BuyLimit, "buy-limit", cfg.BuyLimit, "max symbols processed per buy pass, 0 for no limit")
	flag.BoolVar(&cfg.SellFractional, "sell-fractional", cfg.SellFractional, "permit partial-position sells")
	flag.BoolVar(&cfg.ExcludePortfolioItems, "exclude-portfolio-items", cfg.ExcludePortfolioItems, "skip buy candidates already held")
	flag.BoolVar(&cfg.IncludeCrypto, "include-crypto", cfg.IncludeCrypto, "include crypto symbols")
	flag.BoolVar(&cfg.OnlyCrypto, "only-crypto", cfg.OnlyCrypto, "restrict both passes to crypto symbols")
	flag.StringVar(&watchlist, "crypto-watchlist", strings.Join(cfg.CryptoWatchlist, ","), "comma-separated crypto pairs to watch")
	flag.IntVar(&cfg.PeriodDays, "period-days", cfg.PeriodDays, "price-change lookback in days")
	flag.IntVar(&cfg.MoversLimit, "movers-limit", cfg.MoversLimit, "most-active symbols screened for the buy pass")
	flag.BoolVar(&cfg.SellPassOnly, "sell-only", false, "run only the sell pass")
	flag.BoolVar(&cfg.BuyPassOnly, "buy-only", false, "run only the buy pass")
	flag.StringVar(&cfg.DecisionsPath, "decisions-path", cfg.DecisionsPath, "path to decisions log")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "prometheus listen address, empty to disable")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	flag.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "directory for rotated log files")
	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "trading API base URL")
	flag.Parse()

	cfg.CryptoWatchlist = splitList(watchlist)
	cfg.APIKey = os.Getenv("APCA_API_KEY_ID")
	cfg.APISecret = os.Getenv("APCA_API_SECRET_KEY")

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Thresholds extracts the immutable trading policy.
func (c Config) Thresholds() policy.Thresholds {
	return policy.Thresholds{
		AvoidYearThreshold:     c.AvoidYearThreshold,
		BuyYearThreshold:       c.BuyYearThreshold,
		SellYearThreshold:      c.SellYearThreshold,
		BuyThreshold:           c.BuyThreshold,
		ProfitThreshold:        c.ProfitThreshold,
		BuyingPowerLimit:       c.BuyingPowerLimit,
		PortfolioBuyThreshold:  c.PortfolioBuyThreshold,
		PortfolioSellThreshold: c.PortfolioSellThreshold,
		BuyDollarFloor:         c.BuyDollarFloor,
		SellDollarFloor:        c.SellDollarFloor,
		SellFractional:         c.SellFractional,
		ExcludePortfolioItems:  c.ExcludePortfolioItems,
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// configPathFromArgs pre-scans the arguments so the file can seed flag
// defaults before flag.Parse runs.
func configPathFromArgs(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		for _, prefix := range []string{"-config=", "--config="} {
			if strings.HasPrefix(arg, prefix) {
				return strings.TrimPrefix(arg, prefix)
			}
		}
		if (arg == "-config" || arg == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func validate(cfg Config) error {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return fmt.Errorf("APCA_API_KEY_ID and APCA_API_SECRET_KEY are required")
	}
	if cfg.AvoidYearThreshold < 0 || cfg.AvoidYearThreshold >= cfg.BuyYearThreshold {
		return fmt.Errorf("avoid-year-threshold must be in [0, buy-year-threshold)")
	}
	if cfg.BuyYearThreshold <= 0 {
		return fmt.Errorf("buy-year-threshold must be > 0")
	}
	if cfg.SellYearThreshold <= 0 {
		return fmt.Errorf("sell-year-threshold must be > 0")
	}
	if cfg.BuyingPowerLimit <= 0 || cfg.BuyingPowerLimit > 1 {
		return fmt.Errorf("buying-power-limit must be in (0, 1]")
	}
	if cfg.PortfolioBuyThreshold <= 0 || cfg.PortfolioBuyThreshold > 1 {
		return fmt.Errorf("portfolio-buy-threshold must be in (0, 1]")
	}
	if cfg.PortfolioSellThreshold <= 0 || cfg.PortfolioSellThreshold > 1 {
		return fmt.Errorf("portfolio-sell-threshold must be in (0, 1]")
	}
	if cfg.BuyDollarFloor <= 0 {
		return fmt.Errorf("buy-dollar-floor must be > 0")
	}
	if cfg.SellDollarFloor <= 0 {
		return fmt.Errorf("sell-dollar-floor must be > 0")
	}
	if cfg.SellLimit < 0 || cfg.BuyLimit < 0 {
		return fmt.Errorf("sell-limit and buy-limit must be >= 0")
	}
	if cfg.PeriodDays <= 0 {
		return fmt.Errorf("period-days must be > 0")
	}
	if cfg.MoversLimit <= 0 {
		return fmt.Errorf("movers-limit must be > 0")
	}
	if cfg.SellPassOnly && cfg.BuyPassOnly {
		return fmt.Errorf("sell-only and buy-only are mutually exclusive")
	}
	if cfg.OnlyCrypto && !cfg.IncludeCrypto {
		return fmt.Errorf("only-crypto requires include-crypto")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	return nil
}
