// Package normalize turns settled fan-out results into the book the
// detector works on: valid CEX quotes plus DEX quotes split by leg.
package normalize

import (
	"math"

	"github.com/m1amgn/cex-dex-arbitrager/internal/fanout"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

// Leg says which collection a result belongs to.
type Leg int

const (
	LegCex Leg = iota
	// LegSell is an asset -> quote-currency call; price is used as is.
	LegSell
	// LegBuy is a quote-currency -> asset call; price is inverted and the
	// addresses swapped, so the quote reads asset -> quote currency.
	LegBuy
	// LegBoth is a listing price that serves both DEX legs.
	LegBoth
)

// Raw is what a fan-out task produces before normalization.
type Raw struct {
	Leg Leg
	Cex types.CexQuote
	Dex types.DexQuote
}

type Book struct {
	Asset         string
	QuoteCurrency string
	Cex           []types.CexQuote
	Sell          []types.DexQuote
	Buy           []types.DexQuote
}

// BuyPrice is the asset price implied by a quote-currency -> asset quote.
// Zero, negative or non-finite input means no quote.
func BuyPrice(raw float64) (float64, bool) {
	if !finitePositive(raw) {
		return 0, false
	}
	p := 1 / raw
	if !finitePositive(p) {
		return 0, false
	}
	return p, true
}

// Normalize drops failed results and quotes that break the invariants.
// Order of the input is preserved inside every collection.
func Normalize(asset, quote string, rs []fanout.Result[Raw]) Book {
	b := Book{Asset: asset, QuoteCurrency: quote}
	for _, r := range rs {
		if !r.OK() {
			continue
		}
		switch r.Value.Leg {
		case LegCex:
			q := r.Value.Cex
			if q.Exchange == "" {
				q.Exchange = r.Venue
			}
			if q.Valid() {
				b.Cex = append(b.Cex, q)
			}
		case LegSell:
			if q, ok := tag(r.Venue, r.Value.Dex, types.Sell); ok {
				b.Sell = append(b.Sell, q)
			}
		case LegBuy:
			q := r.Value.Dex
			p, ok := BuyPrice(q.Price)
			if !ok {
				continue
			}
			q.Price = p
			q.SrcAddress, q.DestAddress = q.DestAddress, q.SrcAddress
			if q, ok := tag(r.Venue, q, types.Buy); ok {
				b.Buy = append(b.Buy, q)
			}
		case LegBoth:
			if q, ok := tag(r.Venue, r.Value.Dex, types.Sell); ok {
				b.Sell = append(b.Sell, q)
				q.Direction = types.Buy
				b.Buy = append(b.Buy, q)
			}
		}
	}
	return b
}

func tag(venue string, q types.DexQuote, d types.Direction) (types.DexQuote, bool) {
	if !finitePositive(q.Price) {
		return q, false
	}
	if q.Source == "" {
		q.Source = venue
	}
	q.Direction = d
	return q, true
}

func finitePositive(x float64) bool {
	return x > 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
}
