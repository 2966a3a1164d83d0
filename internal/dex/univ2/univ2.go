package univ2

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/m1amgn/cex-dex-arbitrager/internal/chain"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/core"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/pools"
	"github.com/m1amgn/cex-dex-arbitrager/internal/multicall"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

const factoryABI = `[
 {"constant":true,"inputs":[{"internalType":"address","name":"tokenA","type":"address"},{"internalType":"address","name":"tokenB","type":"address"}],"name":"getPair","outputs":[{"internalType":"address","name":"pair","type":"address"}],"stateMutability":"view","type":"function"}
]`

const pairABI = `[
 {"constant":true,"inputs":[],"name":"getReserves","outputs":[{"internalType":"uint112","name":"_reserve0","type":"uint112"},{"internalType":"uint112","name":"_reserve1","type":"uint112"},{"internalType":"uint32","name":"_blockTimestampLast","type":"uint32"}],"stateMutability":"view","type":"function"},
 {"constant":true,"inputs":[],"name":"token0","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

var (
	FactoryABI = mustABI(factoryABI)
	PairABI    = mustABI(pairABI)
)

func mustABI(s string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return a
}

// Quoter prices a pair from the reserves of a Uniswap V2 style pair contract.
type Quoter struct {
	log       *zap.Logger
	callers   chain.Callers
	decimals  core.DecimalsSource
	pools     *pools.Cache
	factories map[string]common.Address
}

func New(log *zap.Logger, callers chain.Callers, dec core.DecimalsSource, pc *pools.Cache, factories map[string]string) *Quoter {
	f := make(map[string]common.Address, len(factories))
	for n, a := range factories {
		f[n] = common.HexToAddress(a)
	}
	return &Quoter{log: log, callers: callers, decimals: dec, pools: pc, factories: f}
}

func (q *Quoter) ID() core.VenueID { return core.VenueUniswapV2 }
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

	pair, err := q.pools.Address(ctx, string(q.ID()), n.Name, src, dest, func(ctx context.Context) (common.Address, error) {
		input, err := FactoryABI.Pack("getPair", src, dest)
		if err != nil {
			return common.Address{}, fmt.Errorf("pack getPair: %w", err)
		}
		res, err := pools.Batch(ctx, caller, "", []multicall.Call{{Target: q.factories[n.Name], CallData: input}})
		if err != nil {
			return common.Address{}, err
		}
		outs, err := FactoryABI.Unpack("getPair", res[0])
		if err != nil || len(outs) == 0 {
			return common.Address{}, fmt.Errorf("%w: decode getPair: %v", types.ErrUpstream, err)
		}
		return outs[0].(common.Address), nil
	})
	if err != nil {
		return types.DexQuote{}, err
	}

	reserves, _ := PairABI.Pack("getReserves")
	token0, _ := PairABI.Pack("token0")
	res, err := pools.Batch(ctx, caller, n.Multicall, []multicall.Call{
		{Target: pair, CallData: reserves},
		{Target: pair, CallData: token0},
	})
	if err != nil {
		return types.DexQuote{}, err
	}
	outsR, err := PairABI.Unpack("getReserves", res[0])
	if err != nil || len(outsR) < 2 {
		return types.DexQuote{}, fmt.Errorf("%w: decode getReserves: %v", types.ErrUpstream, err)
	}
	outsT, err := PairABI.Unpack("token0", res[1])
	if err != nil || len(outsT) == 0 {
		return types.DexQuote{}, fmt.Errorf("%w: decode token0: %v", types.ErrUpstream, err)
	}
	r0, r1 := outsR[0].(*big.Int), outsR[1].(*big.Int)
	rSrc, rDest := r0, r1
	if outsT[0].(common.Address) != src {
		rSrc, rDest = r1, r0
	}

	decSrc, err := q.decimals.Decimals(ctx, n, src.Hex())
	if err != nil {
		return types.DexQuote{}, err
	}
	decDest, err := q.decimals.Decimals(ctx, n, dest.Hex())
	if err != nil {
		return types.DexQuote{}, err
	}
	price, err := ReservePrice(rSrc, rDest, decSrc, decDest)
	if err != nil {
		return types.DexQuote{}, err
	}
	q.log.Debug("reserves price",
		zap.String("network", n.Name),
		zap.String("pair", pair.Hex()),
		zap.String("reserve_src", rSrc.String()),
		zap.String("reserve_dest", rDest.String()),
		zap.Float64("price", price),
	)
	return types.DexQuote{
		Source:      string(q.ID()),
		Network:     n.Name,
		DexID:       string(q.ID()),
		Price:       price,
		SrcAddress:  req.Src,
		DestAddress: req.Dest,
		Aux:         map[string]string{"pair": pair.Hex()},
	}, nil
}

// ReservePrice is the spot price of src in dest: (rDest/10^decDest) / (rSrc/10^decSrc).
func ReservePrice(rSrc, rDest *big.Int, decSrc, decDest int) (float64, error) {
	if rSrc == nil || rDest == nil || rSrc.Sign() == 0 || rDest.Sign() == 0 {
		return 0, fmt.Errorf("%w: empty reserves", types.ErrDataAbsent)
	}
	s := decimal.NewFromBigInt(rSrc, -int32(decSrc))
	d := decimal.NewFromBigInt(rDest, -int32(decDest))
	return d.DivRound(s, 18).InexactFloat64(), nil
}
