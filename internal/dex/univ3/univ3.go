package univ3

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/m1amgn/cex-dex-arbitrager/internal/chain"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/core"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/pools"
	"github.com/m1amgn/cex-dex-arbitrager/internal/multicall"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

const factoryABI = `[
  {"inputs":[
     {"internalType":"address","name":"tokenA","type":"address"},
     {"internalType":"address","name":"tokenB","type":"address"},
     {"internalType":"uint24","name":"fee","type":"uint24"}],
   "name":"getPool","outputs":[{"internalType":"address","name":"pool","type":"address"}],
   "stateMutability":"view","type":"function"}
]`

// Минимальный ABI пула: slot0, token0 и liquidity
const poolABI = `[
  {"inputs":[],"name":"slot0","outputs":[
     {"internalType":"uint160","name":"sqrtPriceX96","type":"uint160"},
     {"internalType":"int24","name":"tick","type":"int24"},
     {"internalType":"uint16","name":"observationIndex","type":"uint16"},
     {"internalType":"uint16","name":"observationCardinality","type":"uint16"},
     {"internalType":"uint16","name":"observationCardinalityNext","type":"uint16"},
     {"internalType":"uint8","name":"feeProtocol","type":"uint8"},
     {"internalType":"bool","name":"unlocked","type":"bool"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[],"name":"token0","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"liquidity","outputs":[{"internalType":"uint128","name":"","type":"uint128"}],"stateMutability":"view","type":"function"}
]`

var (
	FactoryABI = mustABI(factoryABI)
	PoolABI    = mustABI(poolABI)
)

func mustABI(s string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return a
}

// Quoter prices a pair from the spot price of a Uniswap V3 pool (slot0).
type Quoter struct {
	log       *zap.Logger
	callers   chain.Callers
	decimals  core.DecimalsSource
	pools     *pools.Cache
	factories map[string]common.Address
	fee       uint32
}

func New(log *zap.Logger, callers chain.Callers, dec core.DecimalsSource, pc *pools.Cache, factories map[string]string, fee uint32) *Quoter {
	f := make(map[string]common.Address, len(factories))
	for n, a := range factories {
		f[n] = common.HexToAddress(a)
	}
	return &Quoter{log: log, callers: callers, decimals: dec, pools: pc, factories: f, fee: fee}
}

func (q *Quoter) ID() core.VenueID { return core.VenueUniswapV3 }
func (q *Quoter) Family() core.Family { return core.FamilyPool }

func (q *Quoter) Supports(n chain.Network) bool {
	_, ok := q.factories[n.Name]
	return ok && n.IsEVM()
}

func (q *Quoter) Quote(ctx context.Context, req core.QuoteRequest) (types.DexQuote, error) {
	n := req.Network
	if !q.Supports(n) {
		return types.DexQuote{}, core.Unsupported(q.ID(), n)
	}
	caller, err := q.callers.Caller(ctx, n)
	if err != nil {
		return types.DexQuote{}, err
	}
	src, dest := common.HexToAddress(req.Src), common.HexToAddress(req.Dest)

	pool, err := q.pools.Address(ctx, string(q.ID()), n.Name, src, dest, func(ctx context.Context) (common.Address, error) {
		input, err := FactoryABI.Pack("getPool", src, dest, big.NewInt(int64(q.fee)))
		if err != nil {
			return common.Address{}, fmt.Errorf("pack getPool: %w", err)
		}
		res, err := pools.Batch(ctx, caller, "", []multicall.Call{{Target: q.factories[n.Name], CallData: input}})
		if err != nil {
			return common.Address{}, err
		}
		outs, err := FactoryABI.Unpack("getPool", res[0])
		if err != nil || len(outs) == 0 {
			return common.Address{}, fmt.Errorf("%w: decode getPool: %v", types.ErrUpstream, err)
		}
		return outs[0].(common.Address), nil
	})
	if err != nil {
		return types.DexQuote{}, err
	}

	slot0, _ := PoolABI.Pack("slot0")
	token0, _ := PoolABI.Pack("token0")
	liq, _ := PoolABI.Pack("liquidity")
	res, err := pools.Batch(ctx, caller, n.Multicall, []multicall.Call{
		{Target: pool, CallData: slot0},
		{Target: pool, CallData: token0},
		{Target: pool, CallData: liq},
	})
	if err != nil {
		return types.DexQuote{}, err
	}

	outsS, err := PoolABI.Unpack("slot0", res[0])
	if err != nil || len(outsS) == 0 {
		return types.DexQuote{}, fmt.Errorf("%w: decode slot0: %v", types.ErrUpstream, err)
	}
	outsT, err := PoolABI.Unpack("token0", res[1])
	if err != nil || len(outsT) == 0 {
		return types.DexQuote{}, fmt.Errorf("%w: decode token0: %v", types.ErrUpstream, err)
	}
	outsL, err := PoolABI.Unpack("liquidity", res[2])
	if err != nil || len(outsL) == 0 {
		return types.DexQuote{}, fmt.Errorf("%w: decode liquidity: %v", types.ErrUpstream, err)
	}
	sqrtPriceX96 := outsS[0].(*big.Int)
	t0 := outsT[0].(common.Address)
	if l := outsL[0].(*big.Int); l.Sign() == 0 {
		return types.DexQuote{}, fmt.Errorf("%w: pool %s has no liquidity", types.ErrDataAbsent, pool.Hex())
	}

	decSrc, err := q.decimals.Decimals(ctx, n, src.Hex())
	if err != nil {
		return types.DexQuote{}, err
	}
	decDest, err := q.decimals.Decimals(ctx, n, dest.Hex())
	if err != nil {
		return types.DexQuote{}, err
	}

	price, err := SpotPrice(sqrtPriceX96, t0 == src, decSrc, decDest)
	if err != nil {
		return types.DexQuote{}, err
	}
	q.log.Debug("slot0 price",
		zap.String("network", n.Name),
		zap.String("pool", pool.Hex()),
		zap.String("sqrtPriceX96", sqrtPriceX96.String()),
		zap.Float64("price", price),
	)
	return types.DexQuote{
		Source:      string(q.ID()),
		Network:     n.Name,
		DexID:       string(q.ID()),
		Price:       price,
		SrcAddress:  req.Src,
		DestAddress: req.Dest,
		Aux:         map[string]string{"pool": pool.Hex(), "fee": fmt.Sprint(q.fee)},
	}, nil
}

// SpotPrice converts sqrtPriceX96 into the price of src in dest units.
// srcIsToken0 tells which side of the pool src is.
func SpotPrice(sqrtPriceX96 *big.Int, srcIsToken0 bool, decSrc, decDest int) (float64, error) {
	raw, err := uniswapPriceFromSqrt(sqrtPriceX96)
	if err != nil {
		return 0, err
	}
	// raw = token1 за token0 в минимальных единицах
	dec0, dec1 := decSrc, decDest
	if !srcIsToken0 {
		dec0, dec1 = decDest, decSrc
	}
	p1per0 := raw * math.Pow10(dec0-dec1)
	if p1per0 == 0 || math.IsInf(p1per0, 0) || math.IsNaN(p1per0) {
		return 0, fmt.Errorf("%w: degenerate pool price", types.ErrDataAbsent)
	}
	if srcIsToken0 {
		return p1per0, nil
	}
	return 1 / p1per0, nil
}

func uniswapPriceFromSqrt(sqrtPriceX96 *big.Int) (float64, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return 0, fmt.Errorf("%w: zero sqrtPriceX96", types.ErrDataAbsent)
	}
	f := new(big.Float).SetPrec(256).SetInt(sqrtPriceX96)
	f.Mul(f, f)
	den := new(big.Float).SetPrec(256).SetFloat64(math.Exp2(192))
	f.Quo(f, den)
	out, _ := f.Float64()
	return out, nil
}
