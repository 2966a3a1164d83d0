package types

import (
	"math"
	"sort"
	"strings"
	"time"
)

// TokenRef: либо голый код валюты (USDT), либо токен в конкретной сети.
type TokenRef struct {
	Symbol  string `json:"symbol,omitempty"`
	Network string `json:"network,omitempty"`
	Address string `json:"address,omitempty"`
}

func (t TokenRef) OnChain() bool { return t.Network != "" && t.Address != "" }

func (t TokenRef) String() string {
	if t.OnChain() {
		return t.Network + ":" + t.Address
	}
	return t.Symbol
}

type AssetPair struct {
	Src  TokenRef `json:"src"`
	Dest TokenRef `json:"dest"`
}

// Asset is one entry of the token universe: a ticker and the networks it is
// deployed on, keyed by network name.
type Asset struct {
	Name        string            `json:"name" yaml:"name"`
	Blockchains map[string]string `json:"blockchains" yaml:"blockchains"`
}

// Networks returns the networks the asset exists on, sorted for stable task order.
func (a Asset) Networks() []string {
	out := make([]string, 0, len(a.Blockchains))
	for n, addr := range a.Blockchains {
		if strings.TrimSpace(addr) != "" {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

type Level struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

func (l Level) Notional() float64 { return l.Price * l.Volume }

func (l Level) valid() bool {
	return isPositive(l.Price) && isPositive(l.Volume)
}

type CexQuote struct {
	Exchange string `json:"exchange"`
	Pair     string `json:"pair"`
	BestBid  Level  `json:"best_bid"`
	BestAsk  Level  `json:"best_ask"`
}

// Valid reports whether both sides carry a finite positive price and volume.
func (q CexQuote) Valid() bool { return q.BestBid.valid() && q.BestAsk.valid() }

type Direction string

const (
	Sell Direction = "sell"
	Buy  Direction = "buy"
)

type DexQuote struct {
	Source      string            `json:"source"`
	Network     string            `json:"network"`
	DexID       string            `json:"dex_id"`
	Direction   Direction         `json:"direction"`
	Price       float64           `json:"price"`
	SrcAddress  string            `json:"src_address"`
	DestAddress string            `json:"dest_address"`
	Aux         map[string]string `json:"aux,omitempty"`
}

type TokenMetadata struct {
	Network  string `json:"network"`
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	ABI      string `json:"abi"`
}

type SignalKind string

const (
	KindCexOnly   SignalKind = "cex_only"
	KindRoundTrip SignalKind = "round_trip"
	KindDexSell   SignalKind = "dex_sell"
	KindDexBuy    SignalKind = "dex_buy"
)

type Tier string

const (
	TierStandard Tier = "standard"
	TierHigh     Tier = "high"
)

type Market string

const (
	MarketCEX Market = "cex"
	MarketDEX Market = "dex"
)

// SignalLeg describes one side of an opportunity: where to buy or where to sell.
type SignalLeg struct {
	Side     Direction `json:"side"`
	Market   Market    `json:"market"`
	Venue    string    `json:"venue"`
	Pair     string    `json:"pair,omitempty"`
	Network  string    `json:"network,omitempty"`
	DexID    string    `json:"dex_id,omitempty"`
	Price    float64   `json:"price"`
	Volume   float64   `json:"volume,omitempty"`
	Notional float64   `json:"notional,omitempty"`
	Src      string    `json:"src_address,omitempty"`
	Dest     string    `json:"dest_address,omitempty"`
}

type ArbitrageSignal struct {
	ID             string      `json:"id"`
	Kind           SignalKind  `json:"kind"`
	Tier           Tier        `json:"tier"`
	Asset          string      `json:"asset"`
	QuoteCurrency  string      `json:"quote_currency"`
	Legs           []SignalLeg `json:"legs"`
	SpreadPercent  float64     `json:"spread_percent"`
	NotionalAmount float64     `json:"notional_amount"`
	Network        string      `json:"network,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}

// BranchResult is the audit record every evaluated branch produces, fired or not.
type BranchResult struct {
	Kind           SignalKind  `json:"kind"`
	Asset          string      `json:"asset"`
	QuoteCurrency  string      `json:"quote_currency"`
	Fired          bool        `json:"fired"`
	Tiers          []Tier      `json:"tiers,omitempty"`
	SpreadPercent  float64     `json:"spread_percent"`
	NotionalAmount float64     `json:"notional_amount"`
	Network        string      `json:"network,omitempty"`
	Reason         string      `json:"reason,omitempty"`
	Legs           []SignalLeg `json:"legs"`
	Timestamp      time.Time   `json:"timestamp"`
}

func isPositive(x float64) bool {
	return x > 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
}
