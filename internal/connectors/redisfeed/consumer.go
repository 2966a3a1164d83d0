package redisfeed

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/m1amgn/cex-dex-arbitrager/internal/config"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

// Consumer reads the token universe: SET asset:active holds tickers,
// HASH asset:meta:<SYMBOL> maps network name -> token address.
type Consumer struct {
	rdb       *redis.Client
	activeKey string
	metaNS    string
}

func NewConsumer(rdb *redis.Client, cfg config.RedisCfg) *Consumer {
	return &Consumer{rdb: rdb, activeKey: cfg.ActiveKey, metaNS: cfg.MetaNS}
}

// Assets returns the active universe sorted by ticker. Tickers without a
// meta hash are skipped.
func (c *Consumer) Assets(ctx context.Context) ([]types.Asset, error) {
	syms, err := c.rdb.SMembers(ctx, c.activeKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: smembers %s: %w", c.activeKey, err)
	}
	sort.Strings(syms)
	out := make([]types.Asset, 0, len(syms))
	for _, s := range syms {
		a, err := c.ReadAsset(ctx, s)
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// ReadAsset читает HASH asset:meta:<SYMBOL>.
func (c *Consumer) ReadAsset(ctx context.Context, symbol string) (types.Asset, error) {
	m, err := c.rdb.HGetAll(ctx, c.metaNS+symbol).Result()
	if err != nil {
		return types.Asset{}, fmt.Errorf("redis: hgetall %s%s: %w", c.metaNS, symbol, err)
	}
	if len(m) == 0 {
		return types.Asset{}, redis.Nil
	}
	a := types.Asset{Name: strings.ToUpper(symbol), Blockchains: make(map[string]string, len(m))}
	for network, addr := range m {
		a.Blockchains[network] = addr
	}
	return a, nil
}

// UpsertAsset writes the meta hash and adds the ticker to the active set.
func (c *Consumer) UpsertAsset(ctx context.Context, a types.Asset) error {
	sym := strings.ToUpper(a.Name)
	if len(a.Blockchains) > 0 {
		fields := make(map[string]interface{}, len(a.Blockchains))
		for n, addr := range a.Blockchains {
			fields[n] = addr
		}
		if err := c.rdb.HSet(ctx, c.metaNS+sym, fields).Err(); err != nil {
			return err
		}
	}
	return c.rdb.SAdd(ctx, c.activeKey, sym).Err()
}
