package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/m1amgn/cex-dex-arbitrager/internal/config"
)

func TestNewLogger(t *testing.T) {
	log, err := newLogger("debug")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zap.DebugLevel))

	log, err = newLogger("warn")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zap.InfoLevel))

	_, err = newLogger("loud")
	assert.Error(t, err)
}

func TestUpperKeys(t *testing.T) {
	got := upperKeys(map[string]map[string]string{"usdt": {"Base": "0x1"}})
	assert.Equal(t, "0x1", got["USDT"]["Base"])
}

const testConfig = `
quote_currencies: [USDT]
networks:
  - name: Base
    chain_id: 8453
stables:
  USDT:
    Base: "0xfde4C96c8593536E31F229EA8f37b2ADa2699bb2"
cex:
  venues: [binance, gateio]
dex:
  venues: [paraswap, dexscreener]
`

func writeConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	uni := filepath.Join(dir, "tokens.yaml")
	require.NoError(t, os.WriteFile(uni, []byte("tokens: []\n"), 0o644))
	body := testConfig + `
universe:
  path: ` + uni + `
cache:
  tokens_path: ` + filepath.Join(dir, "tokens_info.json") + `
  pools_path: ` + filepath.Join(dir, "pools.json") + `
sink:
  dir: ` + filepath.Join(dir, "results") + `
`
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestBuild_WiresEnabledVenuesOnly(t *testing.T) {
	cfg := writeConfig(t)
	a, err := build(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.close()

	require.NotNil(t, a.engine)
	assert.Nil(t, a.dash)
	// пустая вселенная: проход завершается без раундов
	assert.NoError(t, a.pass(context.Background()))
	assert.DirExists(t, cfg.Sink.Dir)
}

func TestBuild_UnknownCexVenue(t *testing.T) {
	cfg := writeConfig(t)
	cfg.CEX.Venues = []string{"nope"}
	_, err := build(cfg, zap.NewNop())
	assert.Error(t, err)
}
