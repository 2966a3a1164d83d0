// Package pools caches factory lookups of pool addresses and batches pool
// state reads through Multicall when the network has one.
package pools

import (
	"context"
	"fmt"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/singleflight"

	"github.com/m1amgn/cex-dex-arbitrager/internal/metrics"
	"github.com/m1amgn/cex-dex-arbitrager/internal/multicall"
	"github.com/m1amgn/cex-dex-arbitrager/internal/store"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

type Entry struct {
	Venue   string `json:"venue"`
	Network string `json:"network"`
	Address string `json:"address"`
}

type Cache struct {
	store *store.Store[Entry]
	sf    singleflight.Group
}

func NewCache(st *store.Store[Entry]) *Cache { return &Cache{store: st} }

// Key is direction independent: both legs of a pair share one pool.
func Key(venue, network string, a, b common.Address) string {
	x, y := strings.ToLower(a.Hex()), strings.ToLower(b.Hex())
	if y < x {
		x, y = y, x
	}
	return venue + "|" + network + "|" + x + "|" + y
}

// Address returns the cached pool of (a, b) or asks find. A zero address from
// find means there is no pool; it is reported as types.ErrDataAbsent and not cached.
func (c *Cache) Address(ctx context.Context, venue, network string, a, b common.Address,
	find func(ctx context.Context) (common.Address, error)) (common.Address, error) {

	key := Key(venue, network, a, b)
	if e, ok := c.store.Get(key); ok {
		metrics.PoolCache.WithLabelValues("hit").Inc()
		return common.HexToAddress(e.Address), nil
	}
	v, err, _ := c.sf.Do(key, func() (any, error) {
		if e, ok := c.store.Get(key); ok {
			return common.HexToAddress(e.Address), nil
		}
		metrics.PoolCache.WithLabelValues("miss").Inc()
		addr, err := find(ctx)
		if err != nil {
			return nil, err
		}
		if addr == (common.Address{}) {
			metrics.PoolCache.WithLabelValues("none").Inc()
			return nil, fmt.Errorf("%w: no %s pool on %s", types.ErrDataAbsent, venue, network)
		}
		if err := c.store.Put(key, Entry{Venue: venue, Network: network, Address: addr.Hex()}); err != nil {
			return nil, err
		}
		return addr, nil
	})
	if err != nil {
		return common.Address{}, err
	}
	return v.(common.Address), nil
}

// Batch runs calls in one Multicall aggregate when mc is set, one by one otherwise.
// Any failed call fails the batch.
func Batch(ctx context.Context, caller ethereum.ContractCaller, mc string, calls []multicall.Call) ([][]byte, error) {
	out := make([][]byte, len(calls))
	if mc != "" {
		res, err := multicall.New(caller, common.HexToAddress(mc)).Aggregate(ctx, calls)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrTransport, err)
		}
		for i, r := range res {
			if !r.Success {
				return nil, fmt.Errorf("%w: empty return from %s", types.ErrDataAbsent, calls[i].Target.Hex())
			}
			out[i] = r.Data
		}
		return out, nil
	}
	for i, c := range calls {
		to := c.Target
		b, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: c.CallData}, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", types.ErrTransport, to.Hex(), err)
		}
		out[i] = b
	}
	return out, nil
}
