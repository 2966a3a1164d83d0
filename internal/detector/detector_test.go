package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m1amgn/cex-dex-arbitrager/internal/config"
	"github.com/m1amgn/cex-dex-arbitrager/internal/normalize"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func cq(ex string, bid, bidVol, ask, askVol float64) types.CexQuote {
	return types.CexQuote{Exchange: ex, Pair: "TOKUSDT",
		BestBid: types.Level{Price: bid, Volume: bidVol}, BestAsk: types.Level{Price: ask, Volume: askVol}}
}

func dq(src, network string, price float64) types.DexQuote {
	return types.DexQuote{Source: src, Network: network, DexID: src, Price: price}
}

func newEvaluator() *Evaluator {
	return NewEvaluator(config.DefaultThresholds(), "Ethereum")
}

// baseBook: минимальный ask 100 (gate), максимальный bid 104 (kraken).
func baseBook() normalize.Book {
	return normalize.Book{Asset: "TOK", QuoteCurrency: "USDT", Cex: []types.CexQuote{
		cq("gate", 99, 1, 100, 1),
		cq("kraken", 104, 1, 106, 1),
	}}
}

func kinds(ev Evaluation) map[types.SignalKind][]types.Tier {
	m := map[types.SignalKind][]types.Tier{}
	for _, s := range ev.Signals {
		m[s.Kind] = append(m[s.Kind], s.Tier)
	}
	return m
}

func result(ev Evaluation, k types.SignalKind) (types.BranchResult, bool) {
	for _, r := range ev.Results {
		if r.Kind == k {
			return r, true
		}
	}
	return types.BranchResult{}, false
}

func TestSelectExtrema(t *testing.T) {
	b := baseBook()
	b.Cex = append(b.Cex, cq("okx", 104, 9, 100, 9))
	b.Sell = []types.DexQuote{dq("paraswap", "Base", 101), dq("kyberswap", "Base", 103), dq("openocean", "Base", 103)}
	b.Buy = []types.DexQuote{dq("paraswap", "Base", 102), dq("jupiter", "Solana", 98), dq("1inch", "Base", 98)}

	x := SelectExtrema(b)
	require.NotNil(t, x.Ask)
	// при равной цене побеждает первый
	assert.Equal(t, "gate", x.Ask.Exchange)
	assert.Equal(t, "kraken", x.Bid.Exchange)
	assert.Equal(t, "kyberswap", x.Sell.Source)
	assert.Equal(t, "jupiter", x.Buy.Source)
	assert.Equal(t, "TOK", x.Asset)

	for _, q := range b.Cex {
		assert.LessOrEqual(t, x.Ask.BestAsk.Price, q.BestAsk.Price)
		assert.GreaterOrEqual(t, x.Bid.BestBid.Price, q.BestBid.Price)
	}
}

func TestSelectExtrema_Empty(t *testing.T) {
	x := SelectExtrema(normalize.Book{Asset: "TOK"})
	assert.Nil(t, x.Ask)
	assert.Nil(t, x.Bid)
	assert.Nil(t, x.Sell)
	assert.Nil(t, x.Buy)
	assert.Empty(t, newEvaluator().Evaluate(x, now).Results)
}

func TestScenarioA_CexOnlyFires(t *testing.T) {
	ev := newEvaluator().Evaluate(SelectExtrema(baseBook()), now)

	assert.Equal(t, map[types.SignalKind][]types.Tier{types.KindCexOnly: {types.TierStandard}}, kinds(ev))
	r, ok := result(ev, types.KindCexOnly)
	require.True(t, ok)
	assert.InDelta(t, 4.0, r.SpreadPercent, 1e-9)
	assert.Equal(t, 100.0, r.NotionalAmount)
	require.Len(t, r.Legs, 2)
	assert.Equal(t, types.Buy, r.Legs[0].Side)
	assert.Equal(t, "gate", r.Legs[0].Venue)
	assert.Equal(t, "kraken", r.Legs[1].Venue)
	assert.Equal(t, 104.0, r.Legs[1].Notional)
}

func TestScenarioB_DexSellOnCheapNetwork(t *testing.T) {
	b := baseBook()
	b.Sell = []types.DexQuote{dq("paraswap", "Base", 107)}
	ev := newEvaluator().Evaluate(SelectExtrema(b), now)

	r, ok := result(ev, types.KindDexSell)
	require.True(t, ok)
	assert.True(t, r.Fired)
	assert.InDelta(t, 7.0, r.SpreadPercent, 1e-9)
	assert.Equal(t, "Base", r.Network)
	assert.Contains(t, kinds(ev), types.KindDexSell)
	assert.Contains(t, kinds(ev), types.KindCexOnly)
}

func TestScenarioC_HighGasRaisesGate(t *testing.T) {
	b := baseBook()
	b.Sell = []types.DexQuote{dq("paraswap", "Ethereum", 107)}
	ev := newEvaluator().Evaluate(SelectExtrema(b), now)

	r, ok := result(ev, types.KindDexSell)
	require.True(t, ok)
	assert.False(t, r.Fired)
	assert.Equal(t, "below threshold", r.Reason)
	assert.NotContains(t, kinds(ev), types.KindDexSell)
}

func TestDexSell_HighGasNeedsNotional(t *testing.T) {
	b := baseBook()
	b.Sell = []types.DexQuote{dq("paraswap", "Ethereum", 115)}
	ev := newEvaluator().Evaluate(SelectExtrema(b), now)
	r, _ := result(ev, types.KindDexSell)
	// 15% ≥ 10%, ask notional 100 ≥ 100
	assert.Equal(t, []types.Tier{types.TierStandard}, r.Tiers)

	b.Cex[0].BestAsk.Volume = 0.5
	ev = newEvaluator().Evaluate(SelectExtrema(b), now)
	r, _ = result(ev, types.KindDexSell)
	assert.False(t, r.Fired)
}

func TestDexSell_SkippedWhenBuyBelowAsk(t *testing.T) {
	b := baseBook()
	b.Sell = []types.DexQuote{dq("paraswap", "Base", 107)}
	b.Buy = []types.DexQuote{dq("paraswap", "Base", 99)}
	ev := newEvaluator().Evaluate(SelectExtrema(b), now)

	r, ok := result(ev, types.KindDexSell)
	require.True(t, ok)
	assert.False(t, r.Fired)

	rt, ok := result(ev, types.KindRoundTrip)
	require.True(t, ok)
	assert.True(t, rt.Fired)
	assert.InDelta(t, 107.0/99*100-100, rt.SpreadPercent, 1e-9)
	assert.Equal(t, "Base", rt.Network)
}

func TestRoundTrip_HighGasEitherLeg(t *testing.T) {
	b := baseBook()
	b.Sell = []types.DexQuote{dq("paraswap", "Base", 110)}
	b.Buy = []types.DexQuote{dq("uniswap_v3", "Ethereum", 99)}
	ev := newEvaluator().Evaluate(SelectExtrema(b), now)

	rt, _ := result(ev, types.KindRoundTrip)
	// 11.1% < 15%
	assert.False(t, rt.Fired)
	assert.Empty(t, rt.Network)
}

func TestDexBuy(t *testing.T) {
	b := baseBook()
	b.Buy = []types.DexQuote{dq("jupiter", "Solana", 75)}
	ev := newEvaluator().Evaluate(SelectExtrema(b), now)

	r, ok := result(ev, types.KindDexBuy)
	require.True(t, ok)
	assert.InDelta(t, 104.0/75*100-100, r.SpreadPercent, 1e-9)
	// bid notional 104 < 200: только стандартный уровень
	assert.Equal(t, []types.Tier{types.TierStandard}, r.Tiers)

	b.Cex[1].BestBid.Volume = 10
	ev = newEvaluator().Evaluate(SelectExtrema(b), now)
	r, _ = result(ev, types.KindDexBuy)
	assert.Equal(t, []types.Tier{types.TierStandard, types.TierHigh}, r.Tiers)
	assert.Len(t, kinds(ev)[types.KindDexBuy], 2)
}

func TestCexOnly_HighTier(t *testing.T) {
	b := normalize.Book{Asset: "TOK", QuoteCurrency: "USDC", Cex: []types.CexQuote{
		cq("mexc", 90, 10, 100, 10),
		cq("bybit", 140, 10, 150, 10),
	}}
	ev := newEvaluator().Evaluate(SelectExtrema(b), now)
	assert.Equal(t, []types.Tier{types.TierStandard, types.TierHigh}, kinds(ev)[types.KindCexOnly])
	for _, s := range ev.Signals {
		assert.NotEmpty(t, s.ID)
		assert.Equal(t, "USDC", s.QuoteCurrency)
	}
	assert.NotEqual(t, ev.Signals[0].ID, ev.Signals[1].ID)
}

func TestZeroDenominatorShortCircuits(t *testing.T) {
	x := Extrema{Asset: "TOK", Ask: &types.CexQuote{}, Bid: &types.CexQuote{BestBid: types.Level{Price: 1, Volume: 1}}}
	ev := newEvaluator().Evaluate(x, now)
	require.Len(t, ev.Results, 1)
	assert.False(t, ev.Results[0].Fired)
	assert.Equal(t, "zero ask", ev.Results[0].Reason)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	b := baseBook()
	b.Sell = []types.DexQuote{dq("paraswap", "Base", 107)}
	x := SelectExtrema(b)
	e := newEvaluator()
	assert.Equal(t, e.Evaluate(x, now), e.Evaluate(x, now))
}

func TestThresholdsAreConfigurable(t *testing.T) {
	th := config.DefaultThresholds()
	th.CexOnlyPct = 5
	ev := NewEvaluator(th).Evaluate(SelectExtrema(baseBook()), now)
	assert.Empty(t, ev.Signals)
	assert.Len(t, ev.Results, 1)
}
