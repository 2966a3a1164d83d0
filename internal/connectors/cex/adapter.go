package cex

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/m1amgn/cex-dex-arbitrager/internal/httpx"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

type Adapter struct {
	spec Spec
	http *http.Client
	log  *zap.Logger
}

func NewAdapter(spec Spec, hc *http.Client, log *zap.Logger) *Adapter {
	return &Adapter{spec: spec, http: hc, log: log.With(zap.String("venue", spec.Name))}
}

func (a *Adapter) Name() string { return a.spec.Name }

// Quote fetches the top of book for base/quote. Every failure is an error
// wrapping one of the types sentinels.
func (a *Adapter) Quote(ctx context.Context, base, quote string) (types.CexQuote, error) {
	req := a.spec.Request(base, quote)
	body, err := httpx.GetBytes(ctx, a.http, req.URL, req.Headers)
	if err != nil {
		err = httpx.Classify(err)
		a.log.Debug("order book fetch failed", zap.String("pair", req.Pair), zap.Error(err))
		return types.CexQuote{}, err
	}
	book, err := a.spec.Parser.Parse(body, req.Pair)
	if err != nil {
		a.log.Debug("order book unparsable", zap.String("pair", req.Pair), zap.Error(err))
		return types.CexQuote{}, fmt.Errorf("%s %s: %w", a.spec.Name, req.Pair, err)
	}
	q := types.CexQuote{Exchange: a.spec.Name, Pair: req.Pair, BestBid: book.Bid, BestAsk: book.Ask}
	if !q.Valid() {
		return types.CexQuote{}, fmt.Errorf("%w: %s %s: invalid top of book", types.ErrDataAbsent, a.spec.Name, req.Pair)
	}
	return q, nil
}

// Build returns adapters for the named venues, in order. An empty list
// enables every known venue; unknown names are an error.
func Build(names []string, hc *http.Client, log *zap.Logger) ([]*Adapter, error) {
	specs := Venues()
	if len(names) == 0 {
		names = Names()
	}
	out := make([]*Adapter, 0, len(names))
	for _, n := range names {
		s, ok := specs[n]
		if !ok {
			return nil, fmt.Errorf("unknown cex venue %q", n)
		}
		out = append(out, NewAdapter(s, hc, log))
	}
	return out, nil
}
