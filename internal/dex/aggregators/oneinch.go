package aggregators

import (
	"context"
	"fmt"
	"net/url"

	"github.com/m1amgn/cex-dex-arbitrager/internal/chain"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/core"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

// OneInch needs an API token; without one the venue reports itself unsupported.
type OneInch struct {
	d     Deps
	base  string
	token string
}

func NewOneInch(d Deps, baseURL, token string) *OneInch {
	return &OneInch{d: d, base: base(baseURL, "https://api.1inch.dev"), token: token}
}

func (o *OneInch) ID() core.VenueID    { return core.VenueOneInch }
func (o *OneInch) Family() core.Family { return core.FamilyAPI }

func (o *OneInch) Supports(n chain.Network) bool { return o.token != "" && n.IsEVM() && n.ChainID > 0 }

type oneInchResp struct {
	ToAmount    Num    `json:"toAmount"`
	Description string `json:"description"`
}

func (o *OneInch) Quote(ctx context.Context, req core.QuoteRequest) (types.DexQuote, error) {
	if !o.Supports(req.Network) {
		return types.DexQuote{}, core.Unsupported(o.ID(), req.Network)
	}
	ds, dd, err := decimalsOf(ctx, o.d, req.Network, req.Src, req.Dest)
	if err != nil {
		return types.DexQuote{}, err
	}
	q := url.Values{}
	q.Set("src", req.Src)
	q.Set("dst", req.Dest)
	q.Set("amount", scaled(req.Amount, ds))

	var r oneInchResp
	u := fmt.Sprintf("%s/swap/v5.2/%d/quote?%s", o.base, req.Network.ChainID, q.Encode())
	if err := get(ctx, o.d, u, map[string]string{"Authorization": o.token}, &r); err != nil {
		return types.DexQuote{}, err
	}
	if r.Description != "" {
		return types.DexQuote{}, fmt.Errorf("%w: 1inch: %s", types.ErrUpstream, r.Description)
	}
	return result(o.ID(), req, "", unitPrice(r.ToAmount.Decimal, dd, req.Amount), nil)
}
