package aggregators

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/m1amgn/cex-dex-arbitrager/internal/chain"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/core"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

// DefaultMinVolume1h is the hourly USD turnover a Dexscreener pair needs to count.
const DefaultMinVolume1h = 500

// Dexscreener reports the USD price of Src across pairs quoted in Dest.
type Dexscreener struct {
	d         Deps
	base      string
	minVolume decimal.Decimal
}

func NewDexscreener(d Deps, baseURL string, minVolume1h float64) *Dexscreener {
	if minVolume1h <= 0 {
		minVolume1h = DefaultMinVolume1h
	}
	return &Dexscreener{d: d, base: base(baseURL, "https://api.dexscreener.com"), minVolume: decimal.NewFromFloat(minVolume1h)}
}

func (s *Dexscreener) ID() core.VenueID    { return core.VenueDexscreener }
func (s *Dexscreener) Family() core.Family { return core.FamilyListing }

func (s *Dexscreener) Supports(chain.Network) bool { return true }

type dexscreenerResp struct {
	Pairs []struct {
		DexID     string `json:"dexId"`
		PriceUsd  Num    `json:"priceUsd"`
		BaseToken struct {
			Address string `json:"address"`
		} `json:"baseToken"`
		QuoteToken struct {
			Address string `json:"address"`
		} `json:"quoteToken"`
		Volume struct {
			H1 Num `json:"h1"`
		} `json:"volume"`
	} `json:"pairs"`
}

func (s *Dexscreener) Quote(ctx context.Context, req core.QuoteRequest) (types.DexQuote, error) {
	var r dexscreenerResp
	if err := get(ctx, s.d, s.base+"/latest/dex/tokens/"+req.Src+","+req.Dest, nil, &r); err != nil {
		return types.DexQuote{}, err
	}
	var (
		best decimal.Decimal
		dex  string
		thin int
	)
	for _, p := range r.Pairs {
		if !strings.EqualFold(p.BaseToken.Address, req.Src) || !strings.EqualFold(p.QuoteToken.Address, req.Dest) {
			continue
		}
		if !p.PriceUsd.Mul(p.Volume.H1.Decimal).GreaterThan(s.minVolume) {
			thin++
			continue
		}
		if p.PriceUsd.GreaterThan(best) {
			best, dex = p.PriceUsd.Decimal, p.DexID
		}
	}
	if thin > 0 {
		s.d.Log.Debug("dexscreener pairs below volume floor", zap.String("src", req.Src), zap.Int("pairs", thin))
	}
	return result(s.ID(), req, dex, best.InexactFloat64(), nil)
}

// StonFi lists TON jettons with a USD price.
type StonFi struct {
	d    Deps
	base string
}

func NewStonFi(d Deps, baseURL string) *StonFi {
	return &StonFi{d: d, base: base(baseURL, "https://api.ston.fi")}
}

func (s *StonFi) ID() core.VenueID    { return core.VenueStonFi }
func (s *StonFi) Family() core.Family { return core.FamilyListing }

func (s *StonFi) Supports(n chain.Network) bool { return n.Kind == chain.KindTON }

type stonFiResp struct {
	Asset *struct {
		DexPriceUsd Num `json:"dex_price_usd"`
	} `json:"asset"`
}

func (s *StonFi) Quote(ctx context.Context, req core.QuoteRequest) (types.DexQuote, error) {
	if !s.Supports(req.Network) {
		return types.DexQuote{}, core.Unsupported(s.ID(), req.Network)
	}
	var r stonFiResp
	if err := get(ctx, s.d, s.base+"/v1/assets/"+req.Src, nil, &r); err != nil {
		return types.DexQuote{}, err
	}
	if r.Asset == nil {
		return types.DexQuote{}, fmt.Errorf("%w: stonfi: unknown asset %s", types.ErrDataAbsent, req.Src)
	}
	return result(s.ID(), req, "", r.Asset.DexPriceUsd.InexactFloat64(), nil)
}

// Osmosis serves one list with every token; the entry is found by denom.
type Osmosis struct {
	d    Deps
	base string
}

func NewOsmosis(d Deps, baseURL string) *Osmosis {
	return &Osmosis{d: d, base: base(baseURL, "https://data.osmosis.zone")}
}

func (o *Osmosis) ID() core.VenueID    { return core.VenueOsmosis }
func (o *Osmosis) Family() core.Family { return core.FamilyListing }

func (o *Osmosis) Supports(n chain.Network) bool { return n.Kind == chain.KindOsmosis }

type osmosisToken struct {
	Denom     string `json:"denom"`
	Symbol    string `json:"symbol"`
	Price     Num    `json:"price"`
	Volume24h Num    `json:"volume_24h"`
}

func (o *Osmosis) Quote(ctx context.Context, req core.QuoteRequest) (types.DexQuote, error) {
	if !o.Supports(req.Network) {
		return types.DexQuote{}, core.Unsupported(o.ID(), req.Network)
	}
	var list []osmosisToken
	if err := get(ctx, o.d, o.base+"/tokens/v2/all", nil, &list); err != nil {
		return types.DexQuote{}, err
	}
	for _, t := range list {
		if t.Denom == req.Src {
			return result(o.ID(), req, "", t.Price.InexactFloat64(), map[string]string{"volume_24h": t.Volume24h.String()})
		}
	}
	return types.DexQuote{}, fmt.Errorf("%w: osmosis: denom %s not listed", types.ErrDataAbsent, req.Src)
}
