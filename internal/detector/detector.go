// Package detector picks the best prices of a round and decides which
// arbitrage branches fire.
package detector

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/m1amgn/cex-dex-arbitrager/internal/config"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

// signalNS seeds signal IDs; the same inputs always give the same ID.
var signalNS = uuid.MustParse("5b0c1f0e-8a47-4c1e-9d0c-3f1de7a0b7a2")

type Evaluation struct {
	Results []types.BranchResult
	Signals []types.ArbitrageSignal
}

type Evaluator struct {
	th      config.Thresholds
	highGas map[string]bool
}

func NewEvaluator(th config.Thresholds, highGas ...string) *Evaluator {
	m := make(map[string]bool, len(highGas))
	for _, n := range highGas {
		m[n] = true
	}
	return &Evaluator{th: th, highGas: m}
}

// Evaluate has no side effects: equal inputs give equal output.
func (e *Evaluator) Evaluate(x Extrema, now time.Time) Evaluation {
	var ev Evaluation
	for _, b := range []func(Extrema) (branch, bool){e.cexOnly, e.roundTrip, e.dexSell, e.dexBuy} {
		br, ok := b(x)
		if !ok {
			continue
		}
		res := br.result(x, now)
		ev.Results = append(ev.Results, res)
		for _, tier := range res.Tiers {
			ev.Signals = append(ev.Signals, signal(res, tier))
		}
	}
	return ev
}

type branch struct {
	kind     types.SignalKind
	spread   float64
	notional float64
	network  string
	legs     []types.SignalLeg
	tiers    []types.Tier
	reason   string
}

func (b branch) result(x Extrema, now time.Time) types.BranchResult {
	return types.BranchResult{
		Kind:           b.kind,
		Asset:          x.Asset,
		QuoteCurrency:  x.QuoteCurrency,
		Fired:          len(b.tiers) > 0,
		Tiers:          b.tiers,
		SpreadPercent:  b.spread,
		NotionalAmount: b.notional,
		Network:        b.network,
		Reason:         b.reason,
		Legs:           b.legs,
		Timestamp:      now,
	}
}

func signal(r types.BranchResult, tier types.Tier) types.ArbitrageSignal {
	seed := fmt.Sprintf("%s|%s|%s|%s|%d|%v", r.Kind, tier, r.Asset, r.QuoteCurrency, r.Timestamp.UnixNano(), r.Legs)
	return types.ArbitrageSignal{
		ID:             uuid.NewSHA1(signalNS, []byte(seed)).String(),
		Kind:           r.Kind,
		Tier:           tier,
		Asset:          r.Asset,
		QuoteCurrency:  r.QuoteCurrency,
		Legs:           r.Legs,
		SpreadPercent:  r.SpreadPercent,
		NotionalAmount: r.NotionalAmount,
		Network:        r.Network,
		Timestamp:      r.Timestamp,
	}
}

// spread is hi/lo·100 − 100; ok is false on a zero denominator.
func spread(hi, lo float64) (float64, bool) {
	if lo == 0 {
		return 0, false
	}
	return hi/lo*100 - 100, true
}

func cexLeg(q *types.CexQuote, side types.Direction) types.SignalLeg {
	l := q.BestAsk
	if side == types.Sell {
		l = q.BestBid
	}
	return types.SignalLeg{
		Side: side, Market: types.MarketCEX, Venue: q.Exchange, Pair: q.Pair,
		Price: l.Price, Volume: l.Volume, Notional: l.Notional(),
	}
}

func dexLeg(q *types.DexQuote, side types.Direction) types.SignalLeg {
	return types.SignalLeg{
		Side: side, Market: types.MarketDEX, Venue: q.Source, Network: q.Network, DexID: q.DexID,
		Price: q.Price, Src: q.SrcAddress, Dest: q.DestAddress,
	}
}

func tiers(std, high bool) []types.Tier {
	var t []types.Tier
	if std {
		t = append(t, types.TierStandard)
	}
	if high {
		t = append(t, types.TierHigh)
	}
	return t
}

func (e *Evaluator) cexOnly(x Extrema) (branch, bool) {
	if x.Ask == nil || x.Bid == nil {
		return branch{}, false
	}
	b := branch{kind: types.KindCexOnly, legs: []types.SignalLeg{cexLeg(x.Ask, types.Buy), cexLeg(x.Bid, types.Sell)}}
	s, ok := spread(x.Bid.BestBid.Price, x.Ask.BestAsk.Price)
	if !ok {
		b.reason = "zero ask"
		return b, true
	}
	askN, bidN := x.Ask.BestAsk.Notional(), x.Bid.BestBid.Notional()
	b.spread, b.notional = s, min(askN, bidN)
	b.tiers = tiers(
		s >= e.th.CexOnlyPct && askN >= e.th.CexOnlyNotional && bidN >= e.th.CexOnlyNotional,
		s >= e.th.HighTierPct && askN >= e.th.HighTierNotional && bidN >= e.th.HighTierNotional,
	)
	if len(b.tiers) == 0 {
		b.reason = "below threshold"
	}
	return b, true
}

// roundTrip buys on one DEX and sells on another. Notional is informational.
func (e *Evaluator) roundTrip(x Extrema) (branch, bool) {
	if x.Ask == nil || x.Bid == nil || x.Sell == nil || x.Buy == nil {
		return branch{}, false
	}
	b := branch{kind: types.KindRoundTrip, legs: []types.SignalLeg{dexLeg(x.Buy, types.Buy), dexLeg(x.Sell, types.Sell)}}
	if x.Buy.Network == x.Sell.Network {
		b.network = x.Sell.Network
	}
	if !(x.Sell.Price > x.Bid.BestBid.Price && x.Buy.Price < x.Ask.BestAsk.Price) {
		b.reason = "dex legs inside cex book"
		return b, true
	}
	s, ok := spread(x.Sell.Price, x.Buy.Price)
	if !ok {
		b.reason = "zero buy"
		return b, true
	}
	b.spread = s
	b.notional = min(x.Ask.BestAsk.Notional(), x.Bid.BestBid.Notional())
	need := e.th.RoundTripPct
	if e.highGas[x.Sell.Network] || e.highGas[x.Buy.Network] {
		need = e.th.RoundTripHighGasPct
	}
	b.tiers = tiers(s >= need, s >= e.th.HighTierPct)
	if len(b.tiers) == 0 {
		b.reason = "below threshold"
	}
	return b, true
}

// gate applies the CEX↔DEX thresholds. High-gas networks need a wider
// spread and a larger CEX notional for the standard tier.
func (e *Evaluator) gate(b *branch, s, notional float64, network string) {
	b.spread, b.notional, b.network = s, notional, network
	std := s >= e.th.OneSidedPct && notional >= e.th.OneSidedNotional
	if e.highGas[network] {
		std = s >= e.th.OneSidedHighGasPct && notional >= e.th.OneSidedHighGasNtl
	}
	b.tiers = tiers(std, s >= e.th.HighTierPct && notional >= e.th.HighTierNotional)
	if len(b.tiers) == 0 {
		b.reason = "below threshold"
	}
}

// dexSell buys on the cheapest CEX and sells on a DEX.
func (e *Evaluator) dexSell(x Extrema) (branch, bool) {
	if x.Ask == nil || x.Bid == nil || x.Sell == nil {
		return branch{}, false
	}
	b := branch{kind: types.KindDexSell, network: x.Sell.Network,
		legs: []types.SignalLeg{cexLeg(x.Ask, types.Buy), dexLeg(x.Sell, types.Sell)}}
	if !(x.Sell.Price > x.Bid.BestBid.Price && (x.Buy == nil || x.Buy.Price >= x.Ask.BestAsk.Price)) {
		b.reason = "dex sell not above cex bid"
		return b, true
	}
	s, ok := spread(x.Sell.Price, x.Ask.BestAsk.Price)
	if !ok {
		b.reason = "zero ask"
		return b, true
	}
	e.gate(&b, s, x.Ask.BestAsk.Notional(), x.Sell.Network)
	return b, true
}

// dexBuy buys on a DEX and sells into the best CEX bid.
func (e *Evaluator) dexBuy(x Extrema) (branch, bool) {
	if x.Ask == nil || x.Bid == nil || x.Buy == nil {
		return branch{}, false
	}
	b := branch{kind: types.KindDexBuy, network: x.Buy.Network,
		legs: []types.SignalLeg{dexLeg(x.Buy, types.Buy), cexLeg(x.Bid, types.Sell)}}
	if !(x.Buy.Price < x.Ask.BestAsk.Price && (x.Sell == nil || x.Sell.Price <= x.Bid.BestBid.Price)) {
		b.reason = "dex buy not below cex ask"
		return b, true
	}
	s, ok := spread(x.Bid.BestBid.Price, x.Buy.Price)
	if !ok {
		b.reason = "zero buy"
		return b, true
	}
	e.gate(&b, s, x.Bid.BestBid.Notional(), x.Buy.Network)
	return b, true
}
