package aggregators

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/m1amgn/cex-dex-arbitrager/internal/chain"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/core"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

// defaultGasGwei is used when the gas price endpoint fails.
const defaultGasGwei = "35"

type OpenOcean struct {
	d    Deps
	base string
}

func NewOpenOcean(d Deps, baseURL string) *OpenOcean {
	return &OpenOcean{d: d, base: base(baseURL, "https://open-api.openocean.finance")}
}

func (o *OpenOcean) ID() core.VenueID    { return core.VenueOpenOcean }
func (o *OpenOcean) Family() core.Family { return core.FamilyAPI }

func (o *OpenOcean) Supports(n chain.Network) bool { return n.IsEVM() && n.ChainID > 0 }

type openOceanGas struct {
	WithoutDecimals struct {
		Base     Num `json:"base"`
		Standard Num `json:"standard"`
	} `json:"without_decimals"`
}

type openOceanResp struct {
	Code int `json:"code"`
	Data *struct {
		OutAmount Num `json:"outAmount"`
		OutToken  struct {
			Decimals int `json:"decimals"`
		} `json:"outToken"`
		EstimatedGas Num `json:"estimatedGas"`
	} `json:"data"`
}

// gasPrice returns gwei with one decimal. Mainnet reports base, the rest standard.
func (o *OpenOcean) gasPrice(ctx context.Context, chainID int64) string {
	var g openOceanGas
	err := get(ctx, o.d, fmt.Sprintf("%s/v3/%d/gasPrice", o.base, chainID), browserHeaders, &g)
	v := g.WithoutDecimals.Standard.Decimal
	if chainID == 1 {
		v = g.WithoutDecimals.Base.Decimal
	}
	if err != nil || !v.IsPositive() {
		o.d.Log.Debug("openocean gas price fallback", zap.Int64("chain", chainID), zap.Error(err))
		return defaultGasGwei
	}
	return v.Round(1).String()
}

func (o *OpenOcean) Quote(ctx context.Context, req core.QuoteRequest) (types.DexQuote, error) {
	if !o.Supports(req.Network) {
		return types.DexQuote{}, core.Unsupported(o.ID(), req.Network)
	}
	q := url.Values{}
	q.Set("inTokenAddress", req.Src)
	q.Set("outTokenAddress", req.Dest)
	// OpenOcean принимает количество без масштабирования
	q.Set("amount", decimal.NewFromFloat(req.Amount).String())
	q.Set("slippage", "1")
	q.Set("gasPrice", o.gasPrice(ctx, req.Network.ChainID))

	var r openOceanResp
	u := fmt.Sprintf("%s/v3/%d/quote?%s", o.base, req.Network.ChainID, q.Encode())
	if err := get(ctx, o.d, u, browserHeaders, &r); err != nil {
		return types.DexQuote{}, err
	}
	if r.Data == nil {
		return types.DexQuote{}, fmt.Errorf("%w: openocean: code %d without data", types.ErrDataAbsent, r.Code)
	}
	price := unitPrice(r.Data.OutAmount.Decimal, r.Data.OutToken.Decimals, req.Amount)
	return result(o.ID(), req, "", price, map[string]string{
		"estimated_gas": r.Data.EstimatedGas.String(),
		"chain_id":      strconv.FormatInt(req.Network.ChainID, 10),
	})
}
