// Package tokens resolves and caches on-chain token metadata.
//
// Resolution order: persisted cache, then the network's block explorer for the
// contract ABI (default ERC20 ABI when the explorer has nothing usable), then
// symbol() and decimals() over RPC. The result is written back to the cache
// before it is returned; concurrent lookups of one key share a single flight.
package tokens

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/m1amgn/cex-dex-arbitrager/internal/chain"
	"github.com/m1amgn/cex-dex-arbitrager/internal/httpx"
	"github.com/m1amgn/cex-dex-arbitrager/internal/metrics"
	"github.com/m1amgn/cex-dex-arbitrager/internal/store"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

// DefaultABI покрывает минимум ERC20, нужный для метаданных.
const DefaultABI = `[
{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

// bytes32 symbol, как у MKR и старых токенов
const bytes32SymbolABI = `[{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view","type":"function"}]`

var (
	defaultABI     = mustABI(DefaultABI)
	bytes32ABI     = mustABI(bytes32SymbolABI)
	errNoMethod    = errors.New("method not in abi")
	explorerMisses = map[string]bool{
		"":                                  true,
		"Invalid Address format":            true,
		"Contract source code not verified": true,
	}
)

func mustABI(s string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return a
}

// flightTimeout bounds one shared lookup: explorer fetch plus the RPC calls,
// in units of the explorer timeout.
const flightTimeout = 3

type Cache struct {
	log     *zap.Logger
	store   *store.Store[types.TokenMetadata]
	callers chain.Callers
	http    *http.Client
	timeout time.Duration

	sf singleflight.Group
}

func New(log *zap.Logger, st *store.Store[types.TokenMetadata], callers chain.Callers, hc *http.Client, explorerTimeout time.Duration) *Cache {
	if explorerTimeout <= 0 {
		explorerTimeout = 10 * time.Second
	}
	if hc == nil {
		hc = httpx.NewClient(explorerTimeout)
	}
	return &Cache{log: log, store: st, callers: callers, http: hc, timeout: explorerTimeout}
}

// Key is the cache key of a token: network name plus checksummed address.
func Key(network, address string) string {
	if common.IsHexAddress(address) {
		address = common.HexToAddress(address).Hex()
	}
	return network + ":" + address
}

func (c *Cache) Decimals(ctx context.Context, n chain.Network, address string) (int, error) {
	md, err := c.Resolve(ctx, n, address)
	if err != nil {
		return 0, err
	}
	return md.Decimals, nil
}

// Resolve returns the metadata of address on n, fetching and persisting it on a miss.
func (c *Cache) Resolve(ctx context.Context, n chain.Network, address string) (types.TokenMetadata, error) {
	if !n.IsEVM() {
		return types.TokenMetadata{}, fmt.Errorf("%w: token metadata on %s", types.ErrUnsupportedVenue, n.Name)
	}
	if !common.IsHexAddress(address) {
		return types.TokenMetadata{}, fmt.Errorf("%w: bad address %q", types.ErrDataAbsent, address)
	}
	key := Key(n.Name, address)
	if md, ok := c.store.Get(key); ok {
		metrics.TokenCache.WithLabelValues("hit").Inc()
		return md, nil
	}

	// полёт общий для всех ждущих, поэтому отмена одного из них его не прерывает
	ch := c.sf.DoChan(key, func() (any, error) {
		// повторная проверка: предыдущий полёт мог уже записать ключ
		if md, ok := c.store.Get(key); ok {
			return md, nil
		}
		metrics.TokenCache.WithLabelValues("miss").Inc()
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout*c.timeout)
		defer cancel()
		md, err := c.fetch(fctx, n, common.HexToAddress(address))
		if err != nil {
			return nil, err
		}
		if err := c.store.Put(key, md); err != nil {
			return nil, err
		}
		return md, nil
	})
	select {
	case <-ctx.Done():
		return types.TokenMetadata{}, fmt.Errorf("%w: resolve %s: %w", types.ErrTransport, key, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return types.TokenMetadata{}, r.Err
		}
		return r.Val.(types.TokenMetadata), nil
	}
}

func (c *Cache) fetch(ctx context.Context, n chain.Network, addr common.Address) (types.TokenMetadata, error) {
	abiJSON := c.explorerABI(ctx, n, addr)
	parsed := defaultABI
	if abiJSON != DefaultABI {
		p, err := abi.JSON(strings.NewReader(abiJSON))
		if err != nil {
			c.log.Debug("explorer abi unparsable, using default", zap.String("token", addr.Hex()), zap.Error(err))
			abiJSON, p = DefaultABI, defaultABI
		}
		parsed = p
	}

	caller, err := c.callers.Caller(ctx, n)
	if err != nil {
		return types.TokenMetadata{}, err
	}

	dec, err := readDecimals(ctx, caller, parsed, addr)
	if errors.Is(err, errNoMethod) || isUnpack(err) {
		dec, err = readDecimals(ctx, caller, defaultABI, addr)
	}
	if err != nil {
		return types.TokenMetadata{}, err
	}
	sym, err := readSymbol(ctx, caller, parsed, addr)
	if errors.Is(err, errNoMethod) || isUnpack(err) {
		sym, err = readSymbol(ctx, caller, defaultABI, addr)
	}
	if err != nil {
		// символ не обязателен для цены
		c.log.Debug("symbol unavailable", zap.String("token", addr.Hex()), zap.Error(err))
	}

	return types.TokenMetadata{
		Network:  n.Name,
		Address:  addr.Hex(),
		Symbol:   sym,
		Decimals: dec,
		ABI:      abiJSON,
	}, nil
}

type explorerResp struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

// explorerABI returns the verified ABI or DefaultABI. Explorer failures never fail the lookup.
func (c *Cache) explorerABI(ctx context.Context, n chain.Network, addr common.Address) string {
	if n.ExplorerABI == "" {
		metrics.TokenCache.WithLabelValues("fallback").Inc()
		return DefaultABI
	}
	url := n.ExplorerABI + addr.Hex()
	if n.APIKey != "" {
		url += "&apikey=" + n.APIKey
	}
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var r explorerResp
	if err := httpx.GetJSON(cctx, c.http, url, nil, &r); err != nil {
		c.log.Debug("explorer abi fetch failed", zap.String("network", n.Name), zap.Error(err))
		metrics.TokenCache.WithLabelValues("fallback").Inc()
		return DefaultABI
	}
	if r.Status != "1" || explorerMisses[r.Result] || !strings.HasPrefix(strings.TrimSpace(r.Result), "[") {
		metrics.TokenCache.WithLabelValues("fallback").Inc()
		return DefaultABI
	}
	return r.Result
}

var errUnpack = errors.New("unpack")

func isUnpack(err error) bool { return errors.Is(err, errUnpack) }

func call(ctx context.Context, caller ethereum.ContractCaller, a abi.ABI, to common.Address, method string) ([]any, error) {
	if _, ok := a.Methods[method]; !ok {
		return nil, errNoMethod
	}
	data, err := a.Pack(method)
	if err != nil {
		return nil, errNoMethod
	}
	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %v", types.ErrTransport, to.Hex(), method, err)
	}
	vals, err := a.Unpack(method, out)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("%w: %s.%s: %v", errUnpack, to.Hex(), method, err)
	}
	return vals, nil
}

func readDecimals(ctx context.Context, caller ethereum.ContractCaller, a abi.ABI, to common.Address) (int, error) {
	vals, err := call(ctx, caller, a, to, "decimals")
	if err != nil {
		return 0, err
	}
	switch v := vals[0].(type) {
	case uint8:
		return int(v), nil
	case *big.Int:
		if v.Sign() >= 0 && v.IsInt64() && v.Int64() <= 255 {
			return int(v.Int64()), nil
		}
		return 0, fmt.Errorf("%w: decimals of %s out of range: %s", types.ErrDataAbsent, to.Hex(), v)
	}
	return 0, fmt.Errorf("%w: decimals of %s: unexpected %T", types.ErrDataAbsent, to.Hex(), vals[0])
}

func readSymbol(ctx context.Context, caller ethereum.ContractCaller, a abi.ABI, to common.Address) (string, error) {
	vals, err := call(ctx, caller, a, to, "symbol")
	if isUnpack(err) {
		vals, err = call(ctx, caller, bytes32ABI, to, "symbol")
	}
	if err != nil {
		return "", err
	}
	switch v := vals[0].(type) {
	case string:
		return v, nil
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), nil
	}
	return "", fmt.Errorf("%w: symbol of %s: unexpected %T", types.ErrDataAbsent, to.Hex(), vals[0])
}
