package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/m1amgn/cex-dex-arbitrager/internal/chain"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/core"
)

// Thresholds: бизнес-пороги детектора, проценты и минимальный notional в валюте котировки.
type Thresholds struct {
	CexOnlyPct          float64 `yaml:"cex_only_pct"`
	CexOnlyNotional     float64 `yaml:"cex_only_notional"`
	RoundTripPct        float64 `yaml:"round_trip_pct"`
	RoundTripHighGasPct float64 `yaml:"round_trip_high_gas_pct"`
	OneSidedPct         float64 `yaml:"one_sided_pct"`
	OneSidedNotional    float64 `yaml:"one_sided_notional"`
	OneSidedHighGasPct  float64 `yaml:"one_sided_high_gas_pct"`
	OneSidedHighGasNtl  float64 `yaml:"one_sided_high_gas_notional"`
	HighTierPct         float64 `yaml:"high_tier_pct"`
	HighTierNotional    float64 `yaml:"high_tier_notional"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		CexOnlyPct:          3,
		CexOnlyNotional:     50,
		RoundTripPct:        3,
		RoundTripHighGasPct: 15,
		OneSidedPct:         3,
		OneSidedNotional:    50,
		OneSidedHighGasPct:  10,
		OneSidedHighGasNtl:  100,
		HighTierPct:         30,
		HighTierNotional:    200,
	}
}

// withDefaults fills every unset threshold from DefaultThresholds.
func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	fill := func(v *float64, def float64) {
		if *v == 0 {
			*v = def
		}
	}
	fill(&t.CexOnlyPct, d.CexOnlyPct)
	fill(&t.CexOnlyNotional, d.CexOnlyNotional)
	fill(&t.RoundTripPct, d.RoundTripPct)
	fill(&t.RoundTripHighGasPct, d.RoundTripHighGasPct)
	fill(&t.OneSidedPct, d.OneSidedPct)
	fill(&t.OneSidedNotional, d.OneSidedNotional)
	fill(&t.OneSidedHighGasPct, d.OneSidedHighGasPct)
	fill(&t.OneSidedHighGasNtl, d.OneSidedHighGasNtl)
	fill(&t.HighTierPct, d.HighTierPct)
	fill(&t.HighTierNotional, d.HighTierNotional)
	return t
}

type RedisCfg struct {
	Addr       string `yaml:"addr"`
	DB         int    `yaml:"db"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Stream     string `yaml:"stream"`
	HighStream string `yaml:"high_stream"`
	MaxLen     int64  `yaml:"max_len"`
	ActiveKey  string `yaml:"active_key"`
	MetaNS     string `yaml:"meta_ns"`
}

type GuardCfg struct {
	RPS              float64 `yaml:"rps"`
	Burst            int     `yaml:"burst"`
	BreakerFailures  uint32  `yaml:"breaker_failures"`
	BreakerCooldownS int     `yaml:"breaker_cooldown_s"`
}

type Config struct {
	LogLevel        string   `yaml:"log_level"`
	QuoteCurrencies []string `yaml:"quote_currencies"`
	Amount          float64  `yaml:"amount"`

	Networks []chain.Network `yaml:"networks"`
	// Stables: quote currency -> network -> token address.
	Stables map[string]map[string]string `yaml:"stables"`

	CEX struct {
		Venues []string `yaml:"venues"`
	} `yaml:"cex"`

	DEX struct {
		Venues             []core.VenueID    `yaml:"venues"`
		OneInchTokenEnv    string            `yaml:"one_inch_token_env"`
		OneInchToken       string            `yaml:"-"`
		MinListingVolume1h float64           `yaml:"min_listing_volume_1h"`
		V3Fee              uint32            `yaml:"v3_fee"`
		V2Factories        map[string]string `yaml:"v2_factories"`
		V3Factories        map[string]string `yaml:"v3_factories"`
	} `yaml:"dex"`

	Thresholds Thresholds `yaml:"thresholds"`
	Guard      GuardCfg   `yaml:"guard"`

	Timings struct {
		CallTimeoutMs     int `yaml:"call_timeout_ms"`
		ExplorerTimeoutMs int `yaml:"explorer_timeout_ms"`
		RoundIntervalS    int `yaml:"round_interval_s"`
		MaxConcurrency    int `yaml:"max_concurrency"`
	} `yaml:"timings"`

	Cache struct {
		TokensPath string `yaml:"tokens_path"`
		PoolsPath  string `yaml:"pools_path"`
	} `yaml:"cache"`

	Sink struct {
		Dir   string `yaml:"dir"`
		Redis bool   `yaml:"redis"`
	} `yaml:"sink"`

	Universe struct {
		Path  string `yaml:"path"`
		Redis bool   `yaml:"redis"`
	} `yaml:"universe"`

	Redis RedisCfg `yaml:"redis"`

	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`

	Dash struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"dash"`

	Discovery DiscoveryCfg `yaml:"discovery"`
}

// DiscoveryCfg drives the discover command: rank CEX tickers by 24h quote
// volume and map the window onto token contracts via CoinGecko.
type DiscoveryCfg struct {
	TickerURL       string `yaml:"ticker_url"`
	CoinGeckoURL    string `yaml:"coingecko_url"`
	CoinGeckoKeyEnv string `yaml:"coingecko_key_env"`
	CoinGeckoKey    string `yaml:"-"`
	Quote           string `yaml:"quote"`
	FromRank        int    `yaml:"from_rank"`
	ToRank          int    `yaml:"to_rank"`
	// Platforms: CoinGecko platform id -> network name.
	Platforms map[string]string `yaml:"platforms"`
}

// Load reads the YAML file, pulls secrets from the environment (.env is
// loaded first when present), applies defaults and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	c.applyEnv()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	for i := range c.Networks {
		if env := c.Networks[i].APIKeyEnv; env != "" {
			c.Networks[i].APIKey = os.Getenv(env)
		}
	}
	if c.DEX.OneInchTokenEnv == "" {
		c.DEX.OneInchTokenEnv = "ONE_INCH_BEARER_TOKEN"
	}
	c.DEX.OneInchToken = os.Getenv(c.DEX.OneInchTokenEnv)

	if c.Discovery.CoinGeckoKeyEnv == "" {
		c.Discovery.CoinGeckoKeyEnv = "COINGECKO_API_KEY"
	}
	c.Discovery.CoinGeckoKey = os.Getenv(c.Discovery.CoinGeckoKeyEnv)

	if v := os.Getenv("ARB_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("ARB_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("ARB_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("ARB_METRICS_ADDR"); v != "" {
		c.Metrics.ListenAddr = v
	}
	if v := os.Getenv("ARB_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Timings.MaxConcurrency = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if len(c.QuoteCurrencies) == 0 {
		c.QuoteCurrencies = []string{"USDT", "USDC"}
	}
	if c.Amount == 0 {
		c.Amount = 1
	}
	if c.Timings.CallTimeoutMs == 0 {
		c.Timings.CallTimeoutMs = 10_000
	}
	if c.Timings.ExplorerTimeoutMs == 0 {
		c.Timings.ExplorerTimeoutMs = 10_000
	}
	if c.Timings.MaxConcurrency == 0 {
		c.Timings.MaxConcurrency = 64
	}
	if c.DEX.MinListingVolume1h == 0 {
		c.DEX.MinListingVolume1h = 500
	}
	if c.DEX.V3Fee == 0 {
		c.DEX.V3Fee = 500
	}
	if len(c.DEX.Venues) == 0 {
		c.DEX.Venues = core.DefaultVenues()
	}
	c.Thresholds = c.Thresholds.withDefaults()
	if c.Guard.Burst == 0 {
		c.Guard.Burst = 5
	}
	if c.Guard.RPS == 0 {
		c.Guard.RPS = 10
	}
	if c.Guard.BreakerFailures == 0 {
		c.Guard.BreakerFailures = 5
	}
	if c.Guard.BreakerCooldownS == 0 {
		c.Guard.BreakerCooldownS = 60
	}
	if c.Cache.TokensPath == "" {
		c.Cache.TokensPath = "data/tokens_info.json"
	}
	if c.Cache.PoolsPath == "" {
		c.Cache.PoolsPath = "data/pools.json"
	}
	if c.Sink.Dir == "" {
		c.Sink.Dir = "results"
	}
	if c.Redis.Stream == "" {
		c.Redis.Stream = "arb:signals"
	}
	if c.Redis.HighStream == "" {
		c.Redis.HighStream = "arb:signals:high"
	}
	if c.Redis.MaxLen == 0 {
		c.Redis.MaxLen = 10_000
	}
	if c.Redis.ActiveKey == "" {
		c.Redis.ActiveKey = "asset:active"
	}
	if c.Redis.MetaNS == "" {
		c.Redis.MetaNS = "asset:meta:"
	}
	if c.Discovery.TickerURL == "" {
		c.Discovery.TickerURL = "https://api.mexc.com"
	}
	if c.Discovery.CoinGeckoURL == "" {
		c.Discovery.CoinGeckoURL = "https://api.coingecko.com/api/v3"
	}
	if c.Discovery.Quote == "" {
		c.Discovery.Quote = "USDT"
	}
	if c.Discovery.FromRank < 1 {
		c.Discovery.FromRank = 1
	}
	if c.Discovery.ToRank == 0 {
		c.Discovery.ToRank = 100
	}
	if len(c.Discovery.Platforms) == 0 {
		c.Discovery.Platforms = map[string]string{
			"ethereum":            "Ethereum",
			"arbitrum-one":        "Arbitrum",
			"base":                "Base",
			"binance-smart-chain": "BNB Smart Chain (BEP20)",
			"solana":              "Solana",
			"the-open-network":    "TON",
			"osmosis":             "Osmosis",
		}
	}
}

// Validate rejects configurations the engine cannot run with at all.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Networks) == 0 {
		errs = append(errs, errors.New("no networks configured"))
	}
	seen := make(map[string]bool, len(c.Networks))
	for _, n := range c.Networks {
		if seen[n.Name] {
			errs = append(errs, fmt.Errorf("duplicate network %q", n.Name))
		}
		seen[n.Name] = true
	}
	for _, q := range c.QuoteCurrencies {
		if _, ok := c.Stables[strings.ToUpper(q)]; !ok {
			errs = append(errs, fmt.Errorf("no stable addresses for quote currency %s", q))
		}
	}
	if c.Amount < 0 {
		errs = append(errs, errors.New("amount must be positive"))
	}
	if (c.Sink.Redis || c.Universe.Redis) && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis enabled but redis.addr is empty"))
	}
	if c.Universe.Path == "" && !c.Universe.Redis {
		errs = append(errs, errors.New("universe: set path or enable redis"))
	}
	return errors.Join(errs...)
}

func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Timings.CallTimeoutMs) * time.Millisecond
}

func (c *Config) ExplorerTimeout() time.Duration {
	return time.Duration(c.Timings.ExplorerTimeoutMs) * time.Millisecond
}

func (c *Config) RoundInterval() time.Duration {
	return time.Duration(c.Timings.RoundIntervalS) * time.Second
}

func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.Guard.BreakerCooldownS) * time.Second
}

// HighGasNetworks lists networks flagged high_gas; Ethereum when none is.
func (c *Config) HighGasNetworks() []string {
	var out []string
	for _, n := range c.Networks {
		if n.HighGas {
			out = append(out, n.Name)
		}
	}
	if len(out) == 0 {
		out = []string{"Ethereum"}
	}
	return out
}
