package dash

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

func br(asset string, kind types.SignalKind, spread float64) types.BranchResult {
	return types.BranchResult{
		Kind: kind, Asset: asset, QuoteCurrency: "USDT", SpreadPercent: spread,
		Timestamp: time.Unix(1700000000, 0),
		Legs: []types.SignalLeg{
			{Side: types.Buy, Market: types.MarketCEX, Venue: "gate"},
			{Side: types.Sell, Market: types.MarketDEX, Venue: "paraswap", Network: "Base"},
		},
	}
}

func TestStore_KeepsLatestPerBranch(t *testing.T) {
	s := NewStore(0)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, br("TOK", types.KindDexSell, 2)))
	require.NoError(t, s.Record(ctx, br("TOK", types.KindDexSell, 7)))
	require.NoError(t, s.Record(ctx, br("ABC", types.KindCexOnly, 1)))

	rows := s.List()
	require.Len(t, rows, 2)
	assert.Equal(t, "ABC", rows[0].Asset)
	assert.Equal(t, 7.0, rows[1].Spread)
	assert.Equal(t, "gate", rows[1].Buy)
	assert.Equal(t, "paraswap@Base", rows[1].Sell)
}

func TestStore_SignalsBounded(t *testing.T) {
	s := NewStore(2)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Publish(context.Background(), types.ArbitrageSignal{ID: id}))
	}
	got := s.Signals()
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestHandler(t *testing.T) {
	s := NewStore(10)
	require.NoError(t, s.Record(context.Background(), br("TOK", types.KindDexSell, 7)))
	srv := httptest.NewServer(Handler(s, nil))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/api/dash")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
	var rows []Row
	require.NoError(t, json.NewDecoder(res.Body).Decode(&rows))
	require.Len(t, rows, 1)
	assert.Equal(t, types.KindDexSell, rows[0].Kind)

	res2, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	_ = res2.Body.Close()
	assert.Equal(t, http.StatusNotFound, res2.StatusCode)

	res3, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	_ = res3.Body.Close()
	assert.Contains(t, res3.Header.Get("Content-Type"), "text/html")
}
