package aggregators

import (
	"context"
	"net/url"
	"strings"

	"github.com/m1amgn/cex-dex-arbitrager/internal/chain"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/core"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

var kyberSlugs = map[string]bool{
	"ethereum": true, "bsc": true, "arbitrum": true, "polygon": true, "optimism": true,
	"avalanche": true, "base": true, "cronos": true, "zksync": true, "fantom": true,
	"linea": true, "polygon-zkevm": true, "aurora": true, "bittorrent": true, "scroll": true,
}

// kyberSlug maps a network name onto the KyberSwap path segment.
func kyberSlug(n chain.Network) string {
	switch n.Name {
	case "BNB Smart Chain (BEP20)", "BNB Smart Chain", "BSC":
		return "bsc"
	case "Avalanche C-Chain", "Avalanche":
		return "avalanche"
	case "zkSync Era":
		return "zksync"
	}
	return strings.ToLower(n.Name)
}

type Kyberswap struct {
	d    Deps
	base string
}

func NewKyberswap(d Deps, baseURL string) *Kyberswap {
	return &Kyberswap{d: d, base: base(baseURL, "https://aggregator-api.kyberswap.com")}
}

func (k *Kyberswap) ID() core.VenueID    { return core.VenueKyberswap }
func (k *Kyberswap) Family() core.Family { return core.FamilyAPI }

func (k *Kyberswap) Supports(n chain.Network) bool { return n.IsEVM() && kyberSlugs[kyberSlug(n)] }

type kyberResp struct {
	Swaps [][]struct {
		TokenIn    string `json:"tokenIn"`
		TokenOut   string `json:"tokenOut"`
		SwapAmount Num    `json:"swapAmount"`
		AmountOut  Num    `json:"amountOut"`
		Exchange   string `json:"exchange"`
	} `json:"swaps"`
	GasUsd Num `json:"gasUsd"`
}

// Quote keeps the best priced hop that swaps src directly into dest.
func (k *Kyberswap) Quote(ctx context.Context, req core.QuoteRequest) (types.DexQuote, error) {
	if !k.Supports(req.Network) {
		return types.DexQuote{}, core.Unsupported(k.ID(), req.Network)
	}
	ds, dd, err := decimalsOf(ctx, k.d, req.Network, req.Src, req.Dest)
	if err != nil {
		return types.DexQuote{}, err
	}
	q := url.Values{}
	q.Set("tokenIn", req.Src)
	q.Set("tokenOut", req.Dest)
	q.Set("amountIn", scaled(req.Amount, ds))
	q.Set("to", "0x0000000000000000000000000000000000000000")
	q.Set("saveGas", "0")
	q.Set("gasInclude", "1")
	q.Set("slippageTolerance", "50")

	var r kyberResp
	if err := get(ctx, k.d, k.base+"/"+kyberSlug(req.Network)+"/route/encode?"+q.Encode(), nil, &r); err != nil {
		return types.DexQuote{}, err
	}
	var (
		best float64
		dex  string
	)
	for _, route := range r.Swaps {
		for _, s := range route {
			if !strings.EqualFold(s.TokenIn, req.Src) || !strings.EqualFold(s.TokenOut, req.Dest) {
				continue
			}
			in := s.SwapAmount.Shift(-int32(ds))
			if in.IsZero() {
				continue
			}
			p := s.AmountOut.Shift(-int32(dd)).Div(in).InexactFloat64()
			if p > best {
				best, dex = p, s.Exchange
			}
		}
	}
	return result(k.ID(), req, dex, best, map[string]string{"gas_usd": r.GasUsd.String()})
}
