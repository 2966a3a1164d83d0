package cex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/m1amgn/cex-dex-arbitrager/internal/httpx"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

const plainBook = `{"bids":[["100.5","2"]],"asks":[["101","3"]]}`

// одна фикстура на площадку, у всех лучший bid 100.5x2 и лучший ask 101x3
var fixtures = map[string]string{
	"binance":   plainBook,
	"bybit":     `{"retCode":0,"result":{"s":"BTCUSDT","b":[["100.5","2"]],"a":[["101","3"]]}}`,
	"bingx":     `{"code":0,"data":{"bids":[["100.5","2"],["100","1"]],"asks":[["102","1"],["101","3"]]}}`,
	"bitfinex":  `{"bids":[{"price":"100.5","amount":"2"}],"asks":[{"price":"101","amount":"3"}]}`,
	"bitget":    `{"data":{"bids":[["100.5","2"]],"asks":[["101","3"]]}}`,
	"bitmex":    `[{"symbol":"XBTUSDT","side":"Sell","size":3,"price":101},{"symbol":"XBTUSDT","side":"Buy","size":2,"price":100.5}]`,
	"bitstamp":  plainBook,
	"coinbase":  `{"bids":[["100.5","2",1]],"asks":[["101","3",1]],"sequence":1}`,
	"coinw":     `{"code":"200","data":{"bids":[["100.5","2"]],"asks":[["101","3"]]}}`,
	"cryptocom": `{"code":0,"result":{"data":[{"bids":[["100.5","2","1"]],"asks":[["101","3","1"]]}]}}`,
	"deribit":   `{"result":{"bids":[[100.5,2]],"asks":[[101,3]]}}`,
	"dydx":      `{"bids":[{"price":"100.5","size":"2"}],"asks":[{"price":"101","size":"3"}]}`,
	"garantex":  `{"timestamp":1,"bids":[{"price":"100.5","volume":"2"}],"asks":[{"price":"101","volume":"3"}]}`,
	"gateio":    `{"result":"true","bids":[[100.5,2]],"asks":[[101,3]]}`,
	"gemini":    `{"bids":[{"price":"100.5","amount":"2"}],"asks":[{"price":"101","amount":"3"}]}`,
	"huobi":     `{"status":"ok","tick":{"bids":[[100.5,2]],"asks":[[101,3]]}}`,
	"kraken":    `{"error":[],"result":{"XXBTZUSD":{"bids":[["100.5","2",1]],"asks":[["101","3",1]]}}}`,
	"kucoin":    `{"code":"200000","data":{"bids":[["100.5","2"]],"asks":[["101","3"]]}}`,
	"mexc":      plainBook,
	"okx":       `{"code":"0","data":[{"bids":[["100.5","2","0","1"]],"asks":[["101","3","0","1"]]}]}`,
	"phemex":    `{"error":null,"result":{"book":{"bids":[[1005000,20000]],"asks":[[1010000,30000]]}}}`,
	"poloniex":  `{"time":1,"scale":"0.01","bids":["100.5","2","100","1"],"asks":["101","3","102","1"]}`,
	"yobit":     `{"btc_usdt":{"bids":[[100.5,2]],"asks":[[101,3]]}}`,
	"coinex":    `{"code":0,"data":{"market":"BTCUSDT","depth":{"bids":[["100.5","2"]],"asks":[["101","3"]]}}}`,
	"backpack":  `{"bids":[["100","1"],["100.5","2"]],"asks":[["101","3"],["102","1"]]}`,
	"zigzag":    plainBook,
}

func serve(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEveryVenueParsesFixture(t *testing.T) {
	specs := Venues()
	require.Len(t, fixtures, len(specs), "fixture per venue")

	for name, body := range fixtures {
		t.Run(name, func(t *testing.T) {
			spec, ok := specs[name]
			require.True(t, ok)
			srv := serve(t, body, http.StatusOK)

			a := NewAdapter(spec.WithBaseURL(srv.URL), httpx.NewClient(time.Second), zap.NewNop())
			q, err := a.Quote(context.Background(), "BTC", "USDT")
			require.NoError(t, err)

			assert.Equal(t, name, q.Exchange)
			assert.Less(t, q.BestBid.Price, q.BestAsk.Price)
			assert.InDelta(t, 100.5, q.BestBid.Price, 1e-9)
			assert.InDelta(t, 2, q.BestBid.Volume, 1e-9)
			assert.InDelta(t, 101, q.BestAsk.Price, 1e-9)
			assert.InDelta(t, 3, q.BestAsk.Volume, 1e-9)
		})
	}
}

func TestPairFormats(t *testing.T) {
	specs := Venues()
	cases := map[string]string{
		"binance":  "BTCUSDT",
		"bitfinex": "BTCUSD",
		"bitget":   "btc_usdt",
		"bitmex":   "XBTUSDT",
		"coinbase": "BTC-USDT",
		"deribit":  "BTC-PERPETUAL",
		"dydx":     "BTC-USD",
		"gemini":   "btcusd",
		"kraken":   "XBTUSDT",
		"poloniex": "BTC_USDT",
		"yobit":    "btc_usdt",
		"zigzag":   "wbtc-usdt",
	}
	for venue, want := range cases {
		assert.Equal(t, want, specs[venue].Request("btc", "usdt").Pair, venue)
	}
	// переименование USDT->USD не трогает USDC
	assert.Equal(t, "BTCUSDC", specs["bitfinex"].Request("BTC", "USDC").Pair)
}

func TestRequest_DoesNotMutateSpec(t *testing.T) {
	spec := Venues()["binance"]
	r1 := spec.Request("ETH", "USDT")
	r2 := spec.Request("BTC", "USDC")

	assert.Contains(t, r1.URL, "symbol=ETHUSDT")
	assert.Contains(t, r2.URL, "symbol=BTCUSDC")
	assert.Equal(t, "{pair}", spec.Params["symbol"])

	path := Venues()["bitfinex"].Request("BTC", "USDT").URL
	assert.Equal(t, "https://api.bitfinex.com/v1/book/BTCUSD", path)
}

func TestQuote_Failures(t *testing.T) {
	spec := Venues()["binance"]
	hc := httpx.NewClient(time.Second)

	cases := []struct {
		name   string
		body   string
		status int
		want   error
	}{
		{"malformed", `{"bids":`, http.StatusOK, types.ErrUpstream},
		{"html", `<html>nginx</html>`, http.StatusOK, types.ErrUpstream},
		{"status", `{"code":-1121}`, http.StatusBadRequest, types.ErrUpstream},
		{"empty side", `{"bids":[],"asks":[["101","3"]]}`, http.StatusOK, types.ErrDataAbsent},
		{"missing key", `{"asks":[["101","3"]]}`, http.StatusOK, types.ErrDataAbsent},
		{"zero volume", `{"bids":[["100","0"]],"asks":[["101","3"]]}`, http.StatusOK, types.ErrDataAbsent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := serve(t, tc.body, tc.status)
			_, err := NewAdapter(spec.WithBaseURL(srv.URL), hc, zap.NewNop()).Quote(context.Background(), "BTC", "USDT")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), err.Error())
		})
	}
}

func TestQuote_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	a := NewAdapter(Venues()["mexc"].WithBaseURL(srv.URL), httpx.NewClient(5*time.Second), zap.NewNop())
	_, err := a.Quote(ctx, "BTC", "USDT")
	assert.True(t, errors.Is(err, types.ErrTransport))
}

func TestBuild(t *testing.T) {
	all, err := Build(nil, http.DefaultClient, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, all, len(Venues()))
	assert.Equal(t, "backpack", all[0].Name())

	_, err = Build([]string{"binance", "nope"}, http.DefaultClient, zap.NewNop())
	assert.ErrorContains(t, err, "nope")
}
