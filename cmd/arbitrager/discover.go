package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/m1amgn/cex-dex-arbitrager/internal/config"
	"github.com/m1amgn/cex-dex-arbitrager/internal/connectors/redisfeed"
	"github.com/m1amgn/cex-dex-arbitrager/internal/discovery"
	"github.com/m1amgn/cex-dex-arbitrager/internal/httpx"
	"github.com/m1amgn/cex-dex-arbitrager/internal/universe"
)

var discoverOut string

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Build the asset universe from CEX volume ranks and CoinGecko contracts",
	Long: `discover ranks the pairs of the discovery quote currency by 24h quote volume,
maps the configured rank window onto token contracts and stores the result.
With --out the universe is written as a YAML file; otherwise it goes to Redis.`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().StringVar(&discoverOut, "out", "", "write the universe to this YAML file instead of Redis")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфига: %w", err)
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	var out discovery.Upserter
	if discoverOut == "" {
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("discover: set --out or redis.addr")
		}
		rdb := redisfeed.NewClient(cfg.Redis)
		defer rdb.Close()
		out = redisfeed.NewConsumer(rdb, cfg.Redis)
	}

	svc := discovery.NewService(cfg.Discovery, httpx.NewClient(cfg.CallTimeout()), out, log.Named("discovery"))
	assets, err := svc.Run(cmd.Context())
	if err != nil {
		return err
	}
	if discoverOut != "" {
		if err := universe.Write(discoverOut, assets); err != nil {
			return err
		}
		log.Info("universe written", zap.String("path", discoverOut), zap.Int("assets", len(assets)))
	}
	return nil
}
