package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/m1amgn/cex-dex-arbitrager/internal/chain"
	"github.com/m1amgn/cex-dex-arbitrager/internal/config"
	"github.com/m1amgn/cex-dex-arbitrager/internal/connectors/cex"
	"github.com/m1amgn/cex-dex-arbitrager/internal/detector"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/core"
	"github.com/m1amgn/cex-dex-arbitrager/internal/fanout"
	"github.com/m1amgn/cex-dex-arbitrager/internal/httpx"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

const (
	tok     = "0x00000000000000000000000000000000000000a1"
	usdtEth = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
	usdtBas = "0xfde4C96c8593536E31F229EA8f37b2ADa2699bb2"
)

var stables = map[string]map[string]string{
	"USDT": {"Ethereum": usdtEth, "Base": usdtBas},
	"USDC": {"Ethereum": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"},
}

type fakeCex struct {
	name     string
	bid, ask float64
	err      error
}

func (f fakeCex) Name() string { return f.name }

func (f fakeCex) Quote(_ context.Context, base, quote string) (types.CexQuote, error) {
	if f.err != nil {
		return types.CexQuote{}, f.err
	}
	return types.CexQuote{Exchange: f.name, Pair: base + quote,
		BestBid: types.Level{Price: f.bid, Volume: 1}, BestAsk: types.Level{Price: f.ask, Volume: 1}}, nil
}

// fakeDex prices the asset at sell and answers buy calls with 1/buy.
type fakeDex struct {
	id        core.VenueID
	family    core.Family
	networks  map[string]bool
	sell, buy float64
	err       error

	mu    sync.Mutex
	calls []core.QuoteRequest
}

func (f *fakeDex) ID() core.VenueID              { return f.id }
func (f *fakeDex) Family() core.Family           { return f.family }
func (f *fakeDex) Supports(n chain.Network) bool { return f.networks[n.Name] }

func (f *fakeDex) Quote(_ context.Context, r core.QuoteRequest) (types.DexQuote, error) {
	f.mu.Lock()
	f.calls = append(f.calls, r)
	f.mu.Unlock()
	if f.err != nil {
		return types.DexQuote{}, f.err
	}
	p := f.sell
	if r.Src != tok && f.family != core.FamilyListing {
		p = 1 / f.buy
	}
	return types.DexQuote{Source: string(f.id), Network: r.Network.Name, Price: p, SrcAddress: r.Src, DestAddress: r.Dest}, nil
}

func (f *fakeDex) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recorder struct {
	mu      sync.Mutex
	signals []types.ArbitrageSignal
	results []types.BranchResult
}

func (r *recorder) Publish(_ context.Context, s types.ArbitrageSignal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, s)
	return nil
}

func (r *recorder) Record(_ context.Context, b types.BranchResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, b)
	return nil
}

func newEngine(t *testing.T, cexs []CexQuoter, dexs []core.Quoter, rec *recorder) *Engine {
	t.Helper()
	nets, err := chain.NewRegistry([]chain.Network{
		{Name: "Ethereum", ChainID: 1, HighGas: true},
		{Name: "Base", ChainID: 8453},
	})
	require.NoError(t, err)
	reg := core.NewRegistry()
	for _, q := range dexs {
		reg.Register(q)
	}
	return New(Deps{
		Log:       zap.NewNop(),
		Cex:       cexs,
		Dex:       reg,
		Networks:  nets,
		Stables:   stables,
		Evaluator: detector.NewEvaluator(config.DefaultThresholds(), "Ethereum"),
		Sink:      rec,
		Fanout:    fanout.Options{Timeout: time.Second, MaxConcurrency: 8},
		Now:       func() time.Time { return time.Unix(1700000000, 0).UTC() },
	})
}

var asset = types.Asset{Name: "tok", Blockchains: map[string]string{"Base": tok, "Ethereum": tok, "Fantom": tok}}

func TestEvaluate_DexSellOnCheapNetwork(t *testing.T) {
	rec := &recorder{}
	para := &fakeDex{id: core.VenueParaswap, family: core.FamilyAPI, networks: map[string]bool{"Base": true}, sell: 107, buy: 101}
	e := newEngine(t, []CexQuoter{fakeCex{name: "gate", bid: 99, ask: 100}, fakeCex{name: "kraken", bid: 104, ask: 106}},
		[]core.Quoter{para}, rec)

	rep, err := e.Evaluate(context.Background(), asset, "usdt")
	require.NoError(t, err)
	assert.Equal(t, "TOK", rep.Asset)
	assert.Equal(t, "USDT", rep.QuoteCurrency)
	assert.Equal(t, 2, rep.CexTasks)
	assert.Equal(t, 2, rep.DexTasks)
	require.NotNil(t, rep.Extrema.Buy)
	assert.InDelta(t, 101.0, rep.Extrema.Buy.Price, 1e-9)

	kinds := map[types.SignalKind]bool{}
	for _, s := range rec.signals {
		kinds[s.Kind] = true
	}
	assert.True(t, kinds[types.KindDexSell])
	assert.True(t, kinds[types.KindCexOnly])
	assert.Len(t, rec.results, len(rep.Evaluation.Results))

	// sell: tok -> USDT на Base, buy: USDT -> tok
	require.Equal(t, 2, para.Calls())
	srcs := []string{para.calls[0].Src, para.calls[1].Src}
	assert.ElementsMatch(t, []string{tok, usdtBas}, srcs)
}

func TestEvaluate_ScenarioD_MalformedVenueIsSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"bids":[["100.5","2"]],"asks":`))
	}))
	defer srv.Close()
	broken := cex.NewAdapter(cex.Venues()["binance"].WithBaseURL(srv.URL), httpx.NewClient(time.Second), zap.NewNop())

	rec := &recorder{}
	e := newEngine(t, []CexQuoter{broken, fakeCex{name: "gate", bid: 99, ask: 100}, fakeCex{name: "kraken", bid: 104, ask: 106}}, nil, rec)

	rep, err := e.Evaluate(context.Background(), asset, "USDT")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failures["upstream"])
	assert.Len(t, rep.Book.Cex, 2)
	require.Len(t, rec.signals, 1)
	assert.Equal(t, types.KindCexOnly, rec.signals[0].Kind)
}

func TestEvaluate_StableAssetSkipsCex(t *testing.T) {
	c := fakeCex{name: "gate", bid: 1, ask: 1}
	e := newEngine(t, []CexQuoter{c}, nil, &recorder{})
	rep, err := e.Evaluate(context.Background(), types.Asset{Name: "USDC", Blockchains: map[string]string{"Ethereum": tok}}, "USDT")
	require.NoError(t, err)
	assert.Zero(t, rep.CexTasks)
	assert.Empty(t, rep.Evaluation.Results)
}

func TestEvaluate_ListingServesBothLegs(t *testing.T) {
	ds := &fakeDex{id: core.VenueDexscreener, family: core.FamilyListing, networks: map[string]bool{"Base": true, "Ethereum": true}, sell: 102}
	e := newEngine(t, []CexQuoter{fakeCex{name: "gate", bid: 99, ask: 100}}, []core.Quoter{ds}, &recorder{})

	rep, err := e.Evaluate(context.Background(), asset, "USDT")
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Calls())
	assert.Len(t, rep.Book.Sell, 2)
	assert.Len(t, rep.Book.Buy, 2)
	assert.Equal(t, 102.0, rep.Extrema.Buy.Price)
}

func TestEvaluate_UnsupportedNetworkNeverCalled(t *testing.T) {
	jup := &fakeDex{id: core.VenueJupiter, family: core.FamilyAPI, networks: map[string]bool{"Solana": true}}
	e := newEngine(t, nil, []core.Quoter{jup}, &recorder{})
	rep, err := e.Evaluate(context.Background(), asset, "USDT")
	require.NoError(t, err)
	assert.Zero(t, jup.Calls())
	assert.Zero(t, rep.DexTasks)
}

func TestEvaluate_NoStableOnNetwork(t *testing.T) {
	para := &fakeDex{id: core.VenueParaswap, family: core.FamilyAPI, networks: map[string]bool{"Base": true, "Ethereum": true}, sell: 1, buy: 1}
	e := newEngine(t, nil, []core.Quoter{para}, &recorder{})
	// USDC задан только для Ethereum
	rep, err := e.Evaluate(context.Background(), asset, "USDC")
	require.NoError(t, err)
	assert.Equal(t, 2, rep.DexTasks)
}

func TestEvaluate_StoreFailureAborts(t *testing.T) {
	bad := &fakeDex{id: core.VenueUniswapV2, family: core.FamilyPool, networks: map[string]bool{"Base": true},
		err: fmt.Errorf("%w: rename tokens.json: read-only file system", types.ErrStore)}
	rec := &recorder{}
	e := newEngine(t, []CexQuoter{fakeCex{name: "gate", bid: 99, ask: 100}, fakeCex{name: "kraken", bid: 104, ask: 106}},
		[]core.Quoter{bad}, rec)

	_, err := e.Evaluate(context.Background(), asset, "USDT")
	assert.True(t, errors.Is(err, types.ErrStore))
	assert.Empty(t, rec.signals)
}

func TestEvaluate_AllVenuesAbsent(t *testing.T) {
	down := fakeCex{name: "okx", err: fmt.Errorf("%w: connection refused", types.ErrTransport)}
	e := newEngine(t, []CexQuoter{down}, nil, &recorder{})
	rep, err := e.Evaluate(context.Background(), asset, "USDT")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failures["transport"])
	assert.Empty(t, rep.Evaluation.Results)
	assert.Zero(t, rep.Fired())
}
