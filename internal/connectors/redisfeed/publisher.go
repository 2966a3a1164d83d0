package redisfeed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/m1amgn/cex-dex-arbitrager/internal/config"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

// Publisher appends signals to Redis streams trimmed with MAXLEN ~.
// High-tier signals go to their own stream.
type Publisher struct {
	rdb        *redis.Client
	stream     string
	highStream string
	maxLen     int64
}

func NewPublisher(rdb *redis.Client, cfg config.RedisCfg) *Publisher {
	return &Publisher{rdb: rdb, stream: cfg.Stream, highStream: cfg.HighStream, maxLen: cfg.MaxLen}
}

func (p *Publisher) Publish(ctx context.Context, s types.ArbitrageSignal) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	stream := p.stream
	if s.Tier == types.TierHigh {
		stream = p.highStream
	}
	err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":      s.ID,
			"kind":    string(s.Kind),
			"tier":    string(s.Tier),
			"asset":   s.Asset,
			"quote":   s.QuoteCurrency,
			"spread":  s.SpreadPercent,
			"payload": payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: xadd %s: %w", stream, err)
	}
	return nil
}

// Record keeps the latest result of every branch kind per pair.
func (p *Publisher) Record(ctx context.Context, r types.BranchResult) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	key := LatestNS + r.Asset + ":" + r.QuoteCurrency
	if err := p.rdb.HSet(ctx, key, string(r.Kind), payload).Err(); err != nil {
		return fmt.Errorf("redis: hset %s: %w", key, err)
	}
	return nil
}
