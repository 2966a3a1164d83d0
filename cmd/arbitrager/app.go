package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/m1amgn/cex-dex-arbitrager/internal/chain"
	"github.com/m1amgn/cex-dex-arbitrager/internal/config"
	"github.com/m1amgn/cex-dex-arbitrager/internal/connectors/cex"
	"github.com/m1amgn/cex-dex-arbitrager/internal/connectors/redisfeed"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dash"
	"github.com/m1amgn/cex-dex-arbitrager/internal/detector"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/aggregators"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/core"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/pools"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/univ2"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/univ3"
	"github.com/m1amgn/cex-dex-arbitrager/internal/fanout"
	"github.com/m1amgn/cex-dex-arbitrager/internal/httpx"
	"github.com/m1amgn/cex-dex-arbitrager/internal/marketdata"
	"github.com/m1amgn/cex-dex-arbitrager/internal/sink"
	"github.com/m1amgn/cex-dex-arbitrager/internal/store"
	"github.com/m1amgn/cex-dex-arbitrager/internal/tokens"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
	"github.com/m1amgn/cex-dex-arbitrager/internal/universe"
)

// app holds everything a command needs; close releases it in reverse order.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	networks *chain.Registry
	pool     *chain.Pool
	tokens   *tokens.Cache
	engine   *marketdata.Engine
	universe universe.Source
	hub      *sink.Hub
	dash     *dash.Store

	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
}

// buildCore wires the networks and the token cache; resolve needs nothing more.
func buildCore(cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	nets, err := chain.NewRegistry(cfg.Networks)
	if err != nil {
		return nil, err
	}
	a.networks = nets

	a.pool = chain.NewPool(log)
	a.closers = append(a.closers, func() error { a.pool.Close(); return nil })

	tst, err := store.Open[types.TokenMetadata](cfg.Cache.TokensPath)
	if err != nil {
		return nil, fmt.Errorf("token cache: %w", err)
	}
	a.tokens = tokens.New(log.Named("tokens"), tst, a.pool, nil, cfg.ExplorerTimeout())

	return a, nil
}

// build wires the full scan pipeline on top of buildCore.
func build(cfg *config.Config, log *zap.Logger) (*app, error) {
	a, err := buildCore(cfg, log)
	if err != nil {
		return nil, err
	}
	hc := httpx.NewClient(cfg.CallTimeout())

	pst, err := store.Open[pools.Entry](cfg.Cache.PoolsPath)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("pool cache: %w", err)
	}
	pc := pools.NewCache(pst)

	d := aggregators.Deps{Log: log.Named("dex"), HTTP: hc, Decimals: a.tokens}
	all := core.NewRegistry()
	for _, q := range []core.Quoter{
		aggregators.NewParaswap(d, ""),
		aggregators.NewKyberswap(d, ""),
		aggregators.NewOpenOcean(d, ""),
		aggregators.NewOneInch(d, "", cfg.DEX.OneInchToken),
		aggregators.NewJupiter(d, ""),
		aggregators.NewDexscreener(d, "", cfg.DEX.MinListingVolume1h),
		aggregators.NewStonFi(d, ""),
		aggregators.NewOsmosis(d, ""),
		univ2.New(log.Named("univ2"), a.pool, a.tokens, pc, cfg.DEX.V2Factories),
		univ3.New(log.Named("univ3"), a.pool, a.tokens, pc, cfg.DEX.V3Factories, cfg.DEX.V3Fee),
	} {
		all.Register(q)
	}
	dex := core.NewRegistry()
	for _, q := range all.Enabled(cfg.DEX.Venues) {
		dex.Register(q)
	}

	adapters, err := cex.Build(cfg.CEX.Venues, hc, log.Named("cex"))
	if err != nil {
		a.close()
		return nil, err
	}
	cexs := make([]marketdata.CexQuoter, 0, len(adapters))
	for _, ad := range adapters {
		cexs = append(cexs, ad)
	}

	out, err := a.sinks()
	if err != nil {
		a.close()
		return nil, err
	}

	a.engine = marketdata.New(marketdata.Deps{
		Log:       log.Named("round"),
		Cex:       cexs,
		Dex:       dex,
		Networks:  a.networks,
		Stables:   upperKeys(cfg.Stables),
		Evaluator: detector.NewEvaluator(cfg.Thresholds, cfg.HighGasNetworks()...),
		Sink:      out,
		Fanout: fanout.Options{
			Timeout:        cfg.CallTimeout(),
			MaxConcurrency: cfg.Timings.MaxConcurrency,
			Guards: fanout.NewGuards(fanout.GuardConfig{
				ConsecutiveFailures: cfg.Guard.BreakerFailures,
				OpenFor:             cfg.BreakerCooldown(),
				RPS:                 cfg.Guard.RPS,
				Burst:               cfg.Guard.Burst,
			}, log.Named("guard")),
			Log: log.Named("fanout"),
		},
		Amount: cfg.Amount,
	})

	a.universe = universe.FileSource{Path: cfg.Universe.Path}
	if cfg.Universe.Redis {
		rdb := redisfeed.NewClient(cfg.Redis)
		a.closers = append(a.closers, rdb.Close)
		a.universe = redisfeed.NewConsumer(rdb, cfg.Redis)
	}

	log.Info("pipeline ready",
		zap.Int("cex_venues", len(cexs)),
		zap.Int("dex_venues", len(dex.All())),
		zap.Strings("high_gas", cfg.HighGasNetworks()),
		zap.Strings("quotes", cfg.QuoteCurrencies))
	return a, nil
}

// sinks собирает все включённые приёмники сигналов.
func (a *app) sinks() (sink.Multi, error) {
	out := sink.Multi{{Name: "log", Sink: sink.LogSink{Log: a.log.Named("signal")}}}

	fs, err := sink.NewFileSink(a.cfg.Sink.Dir)
	if err != nil {
		return nil, fmt.Errorf("file sink: %w", err)
	}
	a.closers = append(a.closers, fs.Close)
	out = append(out, sink.Named{Name: "file", Sink: fs})

	if a.cfg.Sink.Redis {
		rdb := redisfeed.NewClient(a.cfg.Redis)
		a.closers = append(a.closers, rdb.Close)
		out = append(out, sink.Named{Name: "redis", Sink: redisfeed.NewPublisher(rdb, a.cfg.Redis)})
	}

	if a.cfg.Dash.ListenAddr != "" {
		a.hub = sink.NewHub(a.log.Named("ws"))
		a.dash = dash.NewStore(dash.DefaultRecent)
		a.closers = append(a.closers, func() error { a.hub.Close(); return nil })
		out = append(out, sink.Named{Name: "dash", Sink: a.dash}, sink.Named{Name: "ws", Sink: a.hub})
	}
	return out, nil
}

func upperKeys(m map[string]map[string]string) map[string]map[string]string {
	out := make(map[string]map[string]string, len(m))
	for k, v := range m {
		out[strings.ToUpper(k)] = v
	}
	return out
}

// serveDash blocks; run it in a goroutine.
func (a *app) serveDash(ctx context.Context) {
	if a.dash == nil {
		return
	}
	dash.StartHTTP(ctx, dash.Handler(a.dash, a.hub), a.cfg.Dash.ListenAddr, a.log.Named("dash"))
}
