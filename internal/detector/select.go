package detector

import (
	"github.com/m1amgn/cex-dex-arbitrager/internal/normalize"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

// Extrema are the four best prices of a round. A nil field means no venue
// produced that side.
type Extrema struct {
	Asset         string
	QuoteCurrency string

	Ask  *types.CexQuote // lowest ask
	Bid  *types.CexQuote // highest bid
	Sell *types.DexQuote // highest DEX sell
	Buy  *types.DexQuote // lowest DEX buy
}

// SelectExtrema scans the book left to right. Comparisons are strict, so on
// equal prices the first quote seen wins.
func SelectExtrema(b normalize.Book) Extrema {
	x := Extrema{Asset: b.Asset, QuoteCurrency: b.QuoteCurrency}
	for i := range b.Cex {
		q := &b.Cex[i]
		if x.Ask == nil || q.BestAsk.Price < x.Ask.BestAsk.Price {
			x.Ask = q
		}
		if x.Bid == nil || q.BestBid.Price > x.Bid.BestBid.Price {
			x.Bid = q
		}
	}
	for i := range b.Sell {
		if q := &b.Sell[i]; x.Sell == nil || q.Price > x.Sell.Price {
			x.Sell = q
		}
	}
	for i := range b.Buy {
		if q := &b.Buy[i]; x.Buy == nil || q.Price < x.Buy.Price {
			x.Buy = q
		}
	}
	return x
}
