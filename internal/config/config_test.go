package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m1amgn/cex-dex-arbitrager/internal/chain"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/core"
)

const sample = `
networks:
  - name: Ethereum
    chain_id: 1
    rpc: https://eth.example
    explorer_abi: "https://api.etherscan.io/api?module=contract&action=getabi&address="
    api_key_env: TEST_ETHERSCAN_KEY
    high_gas: true
  - name: Solana
    kind: solana
stables:
  USDT:
    Ethereum: "0xdAC17F958D2ee523a2206206994597C13D831ec7"
  USDC:
    Ethereum: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
universe:
  path: tokens.yaml
thresholds:
  cex_only_pct: 5
`

func writeCfg(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("TEST_ETHERSCAN_KEY", "k123")
	t.Setenv("ONE_INCH_BEARER_TOKEN", "Bearer abc")
	t.Setenv("ARB_REDIS_ADDR", "127.0.0.1:6380")

	c, err := Load(writeCfg(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, []string{"USDT", "USDC"}, c.QuoteCurrencies)
	assert.Equal(t, 1.0, c.Amount)
	assert.Equal(t, "k123", c.Networks[0].APIKey)
	assert.True(t, c.Networks[0].HighGas)
	assert.Equal(t, "Bearer abc", c.DEX.OneInchToken)
	assert.Equal(t, "127.0.0.1:6380", c.Redis.Addr)
	assert.Equal(t, uint32(500), c.DEX.V3Fee)
	assert.Equal(t, 500.0, c.DEX.MinListingVolume1h)
	assert.Equal(t, core.DefaultVenues(), c.DEX.Venues)
	assert.Equal(t, "arb:signals", c.Redis.Stream)
	assert.Equal(t, int64(10_000), c.Redis.MaxLen)
	assert.Equal(t, 10_000, c.Timings.CallTimeoutMs)
	assert.Equal(t, "10s", c.CallTimeout().String())

	// a partially set thresholds block keeps the explicit value, the rest default
	assert.Equal(t, 5.0, c.Thresholds.CexOnlyPct)
	assert.Equal(t, 30.0, c.Thresholds.HighTierPct)
	assert.Equal(t, 15.0, c.Thresholds.RoundTripHighGasPct)
	assert.Equal(t, "0xdAC17F958D2ee523a2206206994597C13D831ec7", c.Stables["USDT"]["Ethereum"])
}

func TestLoad_ThresholdDefaults(t *testing.T) {
	body := `
networks: [{name: Base, chain_id: 8453}]
stables: {USDT: {Base: "0x1"}, USDC: {Base: "0x2"}}
universe: {path: tokens.yaml}
`
	c, err := Load(writeCfg(t, body))
	require.NoError(t, err)
	assert.Equal(t, DefaultThresholds(), c.Thresholds)
}

func TestLoad_ValidationErrors(t *testing.T) {
	body := `
networks: [{name: Base}, {name: Base}]
quote_currencies: [DAI]
sink: {redis: true}
`
	_, err := Load(writeCfg(t, body))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "duplicate network")
	assert.Contains(t, msg, "DAI")
	assert.Contains(t, msg, "redis.addr")
	assert.Contains(t, msg, "universe")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestHighGasNetworks(t *testing.T) {
	c := &Config{Networks: []chain.Network{{Name: "Ethereum", HighGas: true}, {Name: "Base"}}}
	assert.Equal(t, []string{"Ethereum"}, c.HighGasNetworks())

	c = &Config{Networks: []chain.Network{{Name: "Arbitrum"}}}
	assert.Equal(t, []string{"Ethereum"}, c.HighGasNetworks())
}
