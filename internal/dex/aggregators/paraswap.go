package aggregators

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/m1amgn/cex-dex-arbitrager/internal/chain"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/core"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

var paraswapChains = map[int64]bool{1: true, 10: true, 56: true, 137: true, 250: true, 1101: true, 8453: true, 42161: true, 43114: true}

type Paraswap struct {
	d    Deps
	base string
}

func NewParaswap(d Deps, baseURL string) *Paraswap {
	return &Paraswap{d: d, base: base(baseURL, "https://api.paraswap.io")}
}

func (p *Paraswap) ID() core.VenueID    { return core.VenueParaswap }
func (p *Paraswap) Family() core.Family { return core.FamilyAPI }

func (p *Paraswap) Supports(n chain.Network) bool { return n.IsEVM() && paraswapChains[n.ChainID] }

type paraswapResp struct {
	PriceRoute struct {
		DestAmount   Num `json:"destAmount"`
		DestDecimals int `json:"destDecimals"`
		GasCostUSD   Num `json:"gasCostUSD"`
		BestRoute    []struct {
			Swaps []struct {
				SwapExchanges []struct {
					Exchange string `json:"exchange"`
				} `json:"swapExchanges"`
			} `json:"swaps"`
		} `json:"bestRoute"`
	} `json:"priceRoute"`
	Error string `json:"error"`
}

func (p *Paraswap) Quote(ctx context.Context, req core.QuoteRequest) (types.DexQuote, error) {
	if !p.Supports(req.Network) {
		return types.DexQuote{}, core.Unsupported(p.ID(), req.Network)
	}
	ds, dd, err := decimalsOf(ctx, p.d, req.Network, req.Src, req.Dest)
	if err != nil {
		return types.DexQuote{}, err
	}
	q := url.Values{}
	q.Set("srcToken", req.Src)
	q.Set("destToken", req.Dest)
	q.Set("amount", scaled(req.Amount, ds))
	q.Set("srcDecimals", strconv.Itoa(ds))
	q.Set("destDecimals", strconv.Itoa(dd))
	q.Set("side", "SELL")
	q.Set("network", strconv.FormatInt(req.Network.ChainID, 10))

	var r paraswapResp
	if err := get(ctx, p.d, p.base+"/prices/?"+q.Encode(), nil, &r); err != nil {
		return types.DexQuote{}, err
	}
	if r.Error != "" {
		return types.DexQuote{}, fmt.Errorf("%w: paraswap: %s", types.ErrUpstream, r.Error)
	}
	var dex string
	if br := r.PriceRoute.BestRoute; len(br) > 0 && len(br[0].Swaps) > 0 && len(br[0].Swaps[0].SwapExchanges) > 0 {
		dex = br[0].Swaps[0].SwapExchanges[0].Exchange
	}
	price := unitPrice(r.PriceRoute.DestAmount.Decimal, r.PriceRoute.DestDecimals, req.Amount)
	return result(p.ID(), req, dex, price, map[string]string{"gas_usd": r.PriceRoute.GasCostUSD.String()})
}
