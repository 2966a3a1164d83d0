// Package redisfeed connects the engine to Redis: signals go out as stream
// entries and the token universe comes in from hashes.
package redisfeed

import (
	"github.com/redis/go-redis/v9"

	"github.com/m1amgn/cex-dex-arbitrager/internal/config"
)

// LatestNS prefixes the hash holding the last branch results of a pair:
// arb:latest:<ASSET>:<QUOTE>, one field per branch kind.
const LatestNS = "arb:latest:"

func NewClient(cfg config.RedisCfg) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Username: cfg.Username,
		Password: cfg.Password,
	})
}
