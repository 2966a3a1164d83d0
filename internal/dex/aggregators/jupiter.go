package aggregators

import (
	"context"
	"fmt"
	"net/url"

	"github.com/m1amgn/cex-dex-arbitrager/internal/chain"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/core"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

// Jupiter prices Solana mints against each other. Amount is not used.
type Jupiter struct {
	d    Deps
	base string
}

func NewJupiter(d Deps, baseURL string) *Jupiter {
	return &Jupiter{d: d, base: base(baseURL, "https://price.jup.ag")}
}

func (j *Jupiter) ID() core.VenueID    { return core.VenueJupiter }
func (j *Jupiter) Family() core.Family { return core.FamilyAPI }

func (j *Jupiter) Supports(n chain.Network) bool { return n.Kind == chain.KindSolana }

type jupiterResp struct {
	Data map[string]struct {
		Price Num `json:"price"`
	} `json:"data"`
}

func (j *Jupiter) Quote(ctx context.Context, req core.QuoteRequest) (types.DexQuote, error) {
	if !j.Supports(req.Network) {
		return types.DexQuote{}, core.Unsupported(j.ID(), req.Network)
	}
	q := url.Values{}
	q.Set("ids", req.Src)
	q.Set("vsToken", req.Dest)

	var r jupiterResp
	if err := get(ctx, j.d, j.base+"/v6/price?"+q.Encode(), nil, &r); err != nil {
		return types.DexQuote{}, err
	}
	e, ok := r.Data[req.Src]
	if !ok {
		return types.DexQuote{}, fmt.Errorf("%w: jupiter: no price for %s", types.ErrDataAbsent, req.Src)
	}
	return result(j.ID(), req, "", e.Price.InexactFloat64(), nil)
}
