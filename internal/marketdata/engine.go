// Package marketdata runs one pricing round: every venue is asked for the
// asset in one fan-out, the answers are normalized and the detector decides.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/m1amgn/cex-dex-arbitrager/internal/chain"
	"github.com/m1amgn/cex-dex-arbitrager/internal/detector"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/core"
	"github.com/m1amgn/cex-dex-arbitrager/internal/fanout"
	"github.com/m1amgn/cex-dex-arbitrager/internal/metrics"
	"github.com/m1amgn/cex-dex-arbitrager/internal/normalize"
	"github.com/m1amgn/cex-dex-arbitrager/internal/sink"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

// CexQuoter is satisfied by *cex.Adapter.
type CexQuoter interface {
	Name() string
	Quote(ctx context.Context, base, quote string) (types.CexQuote, error)
}

type Deps struct {
	Log      *zap.Logger
	Cex      []CexQuoter
	Dex      *core.Registry
	Networks *chain.Registry
	// Stables: quote currency -> network -> token address.
	Stables   map[string]map[string]string
	Evaluator *detector.Evaluator
	Sink      sink.Sink
	Fanout    fanout.Options
	// Amount of the asset quoted on directed DEX calls.
	Amount float64
	Now    func() time.Time
}

type Engine struct {
	d Deps
}

func New(d Deps) *Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Amount <= 0 {
		d.Amount = 1
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Fanout.Log == nil {
		d.Fanout.Log = d.Log
	}
	return &Engine{d: d}
}

// RoundReport summarizes one Evaluate call.
type RoundReport struct {
	Asset         string
	QuoteCurrency string
	CexTasks      int
	DexTasks      int
	Book          normalize.Book
	Extrema       detector.Extrema
	Evaluation    detector.Evaluation
	// Failures counts failed calls by reason.
	Failures map[string]int
	Elapsed  time.Duration
}

func (r RoundReport) Fired() int { return len(r.Evaluation.Signals) }

// IsStable reports whether symbol is one of the configured quote currencies.
func (e *Engine) IsStable(symbol string) bool {
	_, ok := e.d.Stables[strings.ToUpper(symbol)]
	return ok
}

// Evaluate prices asset against quote on every venue and hands the outcome
// to the sink. Venue failures only shrink the book; an unwritable cache
// store aborts the round.
func (e *Engine) Evaluate(ctx context.Context, asset types.Asset, quote string) (RoundReport, error) {
	start := time.Now()
	quote = strings.ToUpper(quote)
	name := strings.ToUpper(asset.Name)
	log := e.d.Log.With(zap.String("asset", name), zap.String("quote", quote))

	var tasks []fanout.Task[normalize.Raw]
	rep := RoundReport{Asset: name, QuoteCurrency: quote, Failures: map[string]int{}}

	// стейблы между собой на CEX не сравниваем
	if !e.IsStable(name) {
		for _, c := range e.d.Cex {
			tasks = append(tasks, e.cexTask(c, name, quote))
		}
		rep.CexTasks = len(tasks)
	}
	dex := e.dexTasks(log, asset, quote)
	rep.DexTasks = len(dex)
	tasks = append(tasks, dex...)

	results := fanout.Run(ctx, tasks, e.d.Fanout)
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		if errors.Is(r.Err, types.ErrStore) {
			return rep, fmt.Errorf("round %s/%s: %w", name, quote, r.Err)
		}
		rep.Failures[types.ReasonOf(r.Err)]++
	}

	rep.Book = normalize.Normalize(name, quote, results)
	rep.Extrema = detector.SelectExtrema(rep.Book)
	rep.Evaluation = e.d.Evaluator.Evaluate(rep.Extrema, e.d.Now())
	e.emit(ctx, log, rep.Evaluation)

	rep.Elapsed = time.Since(start)
	metrics.RoundDuration.Observe(rep.Elapsed.Seconds())
	log.Debug("round done",
		zap.Int("cex_tasks", rep.CexTasks), zap.Int("dex_tasks", rep.DexTasks),
		zap.Int("cex_quotes", len(rep.Book.Cex)), zap.Int("dex_sell", len(rep.Book.Sell)),
		zap.Int("dex_buy", len(rep.Book.Buy)), zap.Int("signals", rep.Fired()),
		zap.Duration("elapsed", rep.Elapsed))
	return rep, nil
}

func (e *Engine) cexTask(c CexQuoter, base, quote string) fanout.Task[normalize.Raw] {
	return fanout.Task[normalize.Raw]{
		Venue:  c.Name(),
		Market: string(types.MarketCEX),
		Run: func(ctx context.Context) (normalize.Raw, error) {
			q, err := c.Quote(ctx, base, quote)
			return normalize.Raw{Leg: normalize.LegCex, Cex: q}, err
		},
	}
}

// dexTasks builds a sell and a buy call per venue and network; listing
// venues get one call that serves both legs.
func (e *Engine) dexTasks(log *zap.Logger, asset types.Asset, quote string) []fanout.Task[normalize.Raw] {
	if e.d.Dex == nil {
		return nil
	}
	var tasks []fanout.Task[normalize.Raw]
	for _, netName := range asset.Networks() {
		n, ok := e.d.Networks.Get(netName)
		if !ok {
			log.Debug("unknown network", zap.String("network", netName))
			continue
		}
		stable, ok := e.d.Stables[quote][netName]
		if !ok || stable == "" {
			continue
		}
		addr := asset.Blockchains[netName]
		for _, q := range e.d.Dex.All() {
			if !q.Supports(n) {
				log.Debug("venue skipped", zap.String("venue", string(q.ID())), zap.String("network", n.Name))
				continue
			}
			if q.Family() == core.FamilyListing {
				tasks = append(tasks, e.dexTask(q, normalize.LegBoth, core.QuoteRequest{Network: n, Src: addr, Dest: stable, Amount: e.d.Amount}))
				continue
			}
			tasks = append(tasks,
				e.dexTask(q, normalize.LegSell, core.QuoteRequest{Network: n, Src: addr, Dest: stable, Amount: e.d.Amount}),
				e.dexTask(q, normalize.LegBuy, core.QuoteRequest{Network: n, Src: stable, Dest: addr, Amount: e.d.Amount}),
			)
		}
	}
	return tasks
}

func (e *Engine) dexTask(q core.Quoter, leg normalize.Leg, req core.QuoteRequest) fanout.Task[normalize.Raw] {
	return fanout.Task[normalize.Raw]{
		Venue:  string(q.ID()),
		Market: string(types.MarketDEX),
		Run: func(ctx context.Context) (normalize.Raw, error) {
			dq, err := q.Quote(ctx, req)
			return normalize.Raw{Leg: leg, Dex: dq}, err
		},
	}
}

// emit records metrics and hands everything to the sink. Sink failures
// are logged; they never fail the round.
func (e *Engine) emit(ctx context.Context, log *zap.Logger, ev detector.Evaluation) {
	for _, r := range ev.Results {
		metrics.Branches.WithLabelValues(string(r.Kind), strconv.FormatBool(r.Fired)).Inc()
		metrics.SpreadPct.WithLabelValues(r.Asset, r.QuoteCurrency, string(r.Kind)).Set(r.SpreadPercent)
		if e.d.Sink == nil {
			continue
		}
		if err := e.d.Sink.Record(ctx, r); err != nil {
			log.Warn("sink record failed", zap.String("kind", string(r.Kind)), zap.Error(err))
		}
	}
	for _, s := range ev.Signals {
		metrics.Signals.WithLabelValues(string(s.Kind), string(s.Tier)).Inc()
		if e.d.Sink == nil {
			continue
		}
		if err := e.d.Sink.Publish(ctx, s); err != nil {
			log.Warn("sink publish failed", zap.String("id", s.ID), zap.Error(err))
		}
	}
}
