package normalize

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/m1amgn/cex-dex-arbitrager/internal/fanout"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

func TestBuyPrice(t *testing.T) {
	for _, x := range []float64{0.0005, 1, 3.2, 1e9} {
		p, ok := BuyPrice(x)
		assert.True(t, ok)
		assert.Equal(t, 1/x, p)
	}
	for _, x := range []float64{0, -1, math.Inf(1), math.NaN(), 1e-320} {
		_, ok := BuyPrice(x)
		assert.False(t, ok, "%v", x)
	}
}

func cex(name string, bid, ask float64) fanout.Result[Raw] {
	return fanout.Result[Raw]{Venue: name, Value: Raw{Leg: LegCex, Cex: types.CexQuote{
		Pair:    "ETHUSDT",
		BestBid: types.Level{Price: bid, Volume: 1},
		BestAsk: types.Level{Price: ask, Volume: 1},
	}}}
}

func dex(venue string, leg Leg, price float64) fanout.Result[Raw] {
	return fanout.Result[Raw]{Venue: venue, Value: Raw{Leg: leg, Dex: types.DexQuote{Network: "Ethereum", Price: price}}}
}

func TestNormalize(t *testing.T) {
	rs := []fanout.Result[Raw]{
		cex("binance", 2000, 2001),
		cex("kraken", 0, 2002),
		{Venue: "okx", Err: errors.New("boom"), Value: Raw{Leg: LegCex}},
		dex("paraswap", LegSell, 1999),
		dex("paraswap", LegBuy, 0.0005),
		dex("kyberswap", LegBuy, 0),
		dex("dexscreener", LegBoth, 2003),
		dex("uniswap_v3", LegSell, math.NaN()),
	}
	b := Normalize("ETH", "USDT", rs)

	assert.Equal(t, "ETH", b.Asset)
	if assert.Len(t, b.Cex, 1) {
		assert.Equal(t, "binance", b.Cex[0].Exchange)
	}
	if assert.Len(t, b.Sell, 2) {
		assert.Equal(t, "paraswap", b.Sell[0].Source)
		assert.Equal(t, types.Sell, b.Sell[0].Direction)
		assert.Equal(t, "dexscreener", b.Sell[1].Source)
	}
	if assert.Len(t, b.Buy, 2) {
		assert.InDelta(t, 2000.0, b.Buy[0].Price, 1e-9)
		assert.Equal(t, types.Buy, b.Buy[0].Direction)
		// листинг: та же цена на обе ноги
		assert.Equal(t, 2003.0, b.Buy[1].Price)
		assert.Equal(t, types.Buy, b.Buy[1].Direction)
	}
	assert.Equal(t, types.Sell, b.Sell[1].Direction)
}

func TestNormalize_Empty(t *testing.T) {
	b := Normalize("ETH", "USDC", nil)
	assert.Empty(t, b.Cex)
	assert.Empty(t, b.Sell)
	assert.Empty(t, b.Buy)
}

func TestNormalize_BuyLegReadsAssetToQuote(t *testing.T) {
	r := dex("paraswap", LegBuy, 0.5)
	r.Value.Dex.SrcAddress, r.Value.Dex.DestAddress = "0xstable", "0xasset"

	b := Normalize("ETH", "USDT", []fanout.Result[Raw]{r})
	if assert.Len(t, b.Buy, 1) {
		assert.Equal(t, 2.0, b.Buy[0].Price)
		assert.Equal(t, "0xasset", b.Buy[0].SrcAddress)
		assert.Equal(t, "0xstable", b.Buy[0].DestAddress)
	}
}
