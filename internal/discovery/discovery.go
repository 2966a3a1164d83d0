// Package discovery builds the asset universe: the busiest CEX pairs of the
// quote currency are mapped onto token contracts through the CoinGecko coin
// list and written to a universe store.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/m1amgn/cex-dex-arbitrager/internal/config"
	"github.com/m1amgn/cex-dex-arbitrager/internal/httpx"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

// Upserter stores one discovered asset. *redisfeed.Consumer satisfies it.
type Upserter interface {
	UpsertAsset(ctx context.Context, a types.Asset) error
}

type Service struct {
	cfg  config.DiscoveryCfg
	http *http.Client
	log  *zap.Logger
	out  Upserter

	retries int
	backoff time.Duration
}

func NewService(cfg config.DiscoveryCfg, hc *http.Client, out Upserter, log *zap.Logger) *Service {
	return &Service{cfg: cfg, http: hc, log: log, out: out, retries: 3, backoff: 300 * time.Millisecond}
}

// Ranked is a CEX pair inside the rank window.
type Ranked struct {
	Base        string
	Rank        int
	QuoteVolume float64
}

type t24 struct {
	Symbol      string `json:"symbol"`
	LastPrice   string `json:"lastPrice"`
	Volume      string `json:"volume"`
	QuoteVolume string `json:"quoteVolume"`
}

type cgListCoin struct {
	ID        string            `json:"id"`
	Symbol    string            `json:"symbol"`
	Platforms map[string]string `json:"platforms"`
}

// Run returns the discovered assets in rank order. Assets the store refuses
// are logged and skipped; they stay in the returned list.
func (s *Service) Run(ctx context.Context) ([]types.Asset, error) {
	s.log.Info("starting asset discovery")

	window, err := s.rankWindow(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Info("rank window", zap.Int("from", s.cfg.FromRank), zap.Int("to", s.cfg.ToRank), zap.Int("pairs", len(window)))
	if len(window) == 0 {
		return nil, nil
	}

	idx, err := s.coinIndex(ctx)
	if err != nil {
		return nil, err
	}

	var out []types.Asset
	for _, r := range window {
		a, ok := idx[strings.ToLower(r.Base)]
		if !ok {
			s.log.Debug("no contracts", zap.String("base", r.Base))
			continue
		}
		a.Name = r.Base
		out = append(out, a)
		if s.out == nil {
			continue
		}
		if err := s.out.UpsertAsset(ctx, a); err != nil {
			s.log.Warn("failed to upsert asset", zap.String("asset", a.Name), zap.Error(err))
			continue
		}
		s.log.Info("published asset", zap.String("asset", a.Name), zap.Int("rank", r.Rank), zap.Strings("networks", a.Networks()))
	}
	s.log.Info("asset discovery finished", zap.Int("assets", len(out)), zap.Int("window", len(window)))
	return out, nil
}

// rankWindow fetches the 24h tickers, keeps <BASE><QUOTE> pairs and returns
// ranks FromRank..ToRank by quote volume.
func (s *Service) rankWindow(ctx context.Context) ([]Ranked, error) {
	var tickers []t24
	url := strings.TrimRight(s.cfg.TickerURL, "/") + "/api/v3/ticker/24hr"
	if err := httpx.GetJSON(ctx, s.http, url, nil, &tickers); err != nil {
		return nil, fmt.Errorf("fetch tickers: %w", httpx.Classify(err))
	}
	quote := strings.ToUpper(s.cfg.Quote)

	rows := make([]Ranked, 0, len(tickers))
	for _, t := range tickers {
		sym := strings.ToUpper(strings.TrimSpace(t.Symbol))
		base, ok := strings.CutSuffix(sym, quote)
		if !ok || base == "" {
			continue
		}
		qv := toF(t.QuoteVolume)
		if qv <= 0 {
			qv = toF(t.LastPrice) * toF(t.Volume)
		}
		if qv <= 0 {
			continue
		}
		rows = append(rows, Ranked{Base: base, QuoteVolume: qv})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].QuoteVolume > rows[j].QuoteVolume })
	for i := range rows {
		rows[i].Rank = i + 1
	}

	start := max(s.cfg.FromRank, 1) - 1
	end := s.cfg.ToRank
	if end <= 0 || end > len(rows) {
		end = len(rows)
	}
	if start >= end {
		return nil, nil
	}
	return rows[start:end], nil
}

// coinIndex maps lowercase symbol -> asset with the configured platforms.
// On symbol clashes the first coin listed wins.
func (s *Service) coinIndex(ctx context.Context) (map[string]types.Asset, error) {
	var coins []cgListCoin
	url := strings.TrimRight(s.cfg.CoinGeckoURL, "/") + "/coins/list?include_platform=true"
	headers := map[string]string{}
	if s.cfg.CoinGeckoKey != "" {
		headers["x-cg-demo-api-key"] = s.cfg.CoinGeckoKey
		if strings.Contains(s.cfg.CoinGeckoURL, "pro-api") {
			headers = map[string]string{"x-cg-pro-api-key": s.cfg.CoinGeckoKey}
		}
	} else {
		s.log.Warn("coingecko api key not set - 429s are possible")
	}

	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * s.backoff
			s.log.Debug("coingecko retry", zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		err = httpx.GetJSON(ctx, s.http, url, headers, &coins)
		if err == nil || !errors.Is(err, types.ErrUpstream) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("fetch coingecko list: %w", httpx.Classify(err))
	}

	idx := make(map[string]types.Asset, 4096)
	for _, c := range coins {
		key := strings.ToLower(strings.TrimSpace(c.Symbol))
		if key == "" {
			continue
		}
		if _, seen := idx[key]; seen {
			continue
		}
		chains := make(map[string]string)
		for platform, raw := range c.Platforms {
			network, ok := s.cfg.Platforms[platform]
			if !ok {
				continue
			}
			if addr := normalizeAddress(raw); addr != "" {
				chains[network] = addr
			}
		}
		if len(chains) > 0 {
			idx[key] = types.Asset{Blockchains: chains}
		}
	}
	s.log.Info("coingecko index built", zap.Int("coins", len(coins)), zap.Int("with_contracts", len(idx)))
	return idx, nil
}

// normalizeAddress checksums EVM addresses; other address formats pass as is.
func normalizeAddress(raw string) string {
	raw = strings.TrimSpace(raw)
	if common.IsHexAddress(raw) {
		return common.HexToAddress(raw).Hex()
	}
	return raw
}

func toF(s string) float64 { f, _ := strconv.ParseFloat(s, 64); return f }
