package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/m1amgn/cex-dex-arbitrager/internal/config"
	"github.com/m1amgn/cex-dex-arbitrager/internal/metrics"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

var scanInterval time.Duration

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run pricing rounds over the asset universe",
	Long: `scan evaluates every asset of the universe against every configured quote
currency. Without --interval (and round_interval_s in the config) it makes one
pass and exits; otherwise it repeats the pass until interrupted.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVar(&scanInterval, "interval", 0, "pause between passes; 0 uses round_interval_s from the config")
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфига: %w", err)
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := build(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	metrics.Serve(ctx, cfg.Metrics.ListenAddr, nil, log)
	go a.serveDash(ctx)

	every := scanInterval
	if every == 0 {
		every = cfg.RoundInterval()
	}
	for {
		if err := a.pass(ctx); err != nil {
			return err
		}
		if every <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			log.Warn("получен сигнал, выходим…")
			return nil
		case <-time.After(every):
		}
	}
}

// pass runs one round per asset and quote currency. The universe is re-read
// every pass. Only an unwritable cache stops the scan.
func (a *app) pass(ctx context.Context) error {
	start := time.Now()
	assets, err := a.universe.Assets(ctx)
	if err != nil {
		a.log.Error("universe unavailable", zap.Error(err))
		return nil
	}
	var rounds, fired int
	for _, asset := range assets {
		for _, quote := range a.cfg.QuoteCurrencies {
			if ctx.Err() != nil {
				return nil
			}
			rep, err := a.engine.Evaluate(ctx, asset, quote)
			if errors.Is(err, types.ErrStore) {
				return err
			}
			if err != nil {
				a.log.Warn("round failed", zap.String("asset", asset.Name), zap.String("quote", quote), zap.Error(err))
				continue
			}
			rounds++
			fired += rep.Fired()
		}
	}
	a.log.Info("pass done",
		zap.Int("assets", len(assets)),
		zap.Int("rounds", rounds),
		zap.Int("signals", fired),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
