// Package aggregators implements the HTTP price sources: swap aggregators
// (directed quotes) and listing APIs (asset price in USD).
package aggregators

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/m1amgn/cex-dex-arbitrager/internal/chain"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/core"
	"github.com/m1amgn/cex-dex-arbitrager/internal/httpx"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

// Deps are shared by every source.
type Deps struct {
	Log      *zap.Logger
	HTTP     *http.Client
	Decimals core.DecimalsSource
}

// browserHeaders: некоторые API режут запросы без User-Agent
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Accept-Language": "en-US,en;q=0.5",
}

func base(url, def string) string {
	if url == "" {
		url = def
	}
	return strings.TrimRight(url, "/")
}

func get(ctx context.Context, d Deps, url string, headers map[string]string, out any) error {
	return httpx.Classify(httpx.GetJSON(ctx, d.HTTP, url, headers, out))
}

// Num accepts a JSON number or a numeric string.
type Num struct{ decimal.Decimal }

func (n *Num) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) || len(b) == 0 {
		n.Decimal = decimal.Zero
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			n.Decimal = decimal.Zero
			return nil
		}
		b = []byte(s)
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return err
	}
	n.Decimal = d
	return nil
}

// scaled renders amount in the token's minimal units.
func scaled(amount float64, dec int) string {
	return decimal.NewFromFloat(amount).Shift(int32(dec)).Truncate(0).String()
}

// unitPrice is raw/10^dec/amount.
func unitPrice(raw decimal.Decimal, dec int, amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	return raw.Shift(-int32(dec)).Div(decimal.NewFromFloat(amount)).InexactFloat64()
}

func decimalsOf(ctx context.Context, d Deps, n chain.Network, src, dest string) (int, int, error) {
	ds, err := d.Decimals.Decimals(ctx, n, src)
	if err != nil {
		return 0, 0, err
	}
	dd, err := d.Decimals.Decimals(ctx, n, dest)
	if err != nil {
		return 0, 0, err
	}
	return ds, dd, nil
}

func result(id core.VenueID, req core.QuoteRequest, dexID string, price float64, aux map[string]string) (types.DexQuote, error) {
	if !(price > 0) || math.IsInf(price, 0) || math.IsNaN(price) {
		return types.DexQuote{}, fmt.Errorf("%w: %s on %s: price %v", types.ErrDataAbsent, id, req.Network.Name, price)
	}
	if dexID == "" {
		dexID = string(id)
	}
	return types.DexQuote{
		Source:      string(id),
		Network:     req.Network.Name,
		DexID:       dexID,
		Price:       price,
		SrcAddress:  req.Src,
		DestAddress: req.Dest,
		Aux:         aux,
	}, nil
}
