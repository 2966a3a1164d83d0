package univ2

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/m1amgn/cex-dex-arbitrager/internal/chain"
	"github.com/m1amgn/cex-dex-arbitrager/internal/chain/chaintest"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/core"
	"github.com/m1amgn/cex-dex-arbitrager/internal/dex/pools"
	"github.com/m1amgn/cex-dex-arbitrager/internal/store"
	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

var (
	factory = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	pair    = common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc")
	usdc    = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	weth    = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
)

type decimals map[common.Address]int

func (d decimals) Decimals(_ context.Context, _ chain.Network, a string) (int, error) {
	return d[common.HexToAddress(a)], nil
}

func e(n int64, dec int) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(dec)), nil))
}

func newQuoter(t *testing.T, fake *chaintest.Caller, path string) *Quoter {
	t.Helper()
	st, err := store.Open[pools.Entry](path)
	require.NoError(t, err)
	return New(zap.NewNop(), chain.Static{"Ethereum": fake}, decimals{usdc: 6, weth: 18},
		pools.NewCache(st), map[string]string{"Ethereum": factory.Hex()})
}

func TestQuote_OrientsByToken0(t *testing.T) {
	fake := chaintest.New()
	fake.Handle(factory, FactoryABI, "getPair", pair)
	// token0 = USDC: 4 000 000 USDC / 2 000 WETH
	fake.Handle(pair, PairABI, "getReserves", e(4_000_000, 6), e(2_000, 18), uint32(1))
	fake.Handle(pair, PairABI, "token0", usdc)

	path := filepath.Join(t.TempDir(), "pools.json")
	q := newQuoter(t, fake, path)
	eth := chain.Network{Name: "Ethereum"}

	sell, err := q.Quote(context.Background(), core.QuoteRequest{Network: eth, Src: weth.Hex(), Dest: usdc.Hex(), Amount: 1})
	require.NoError(t, err)
	assert.InEpsilon(t, 2000.0, sell.Price, 1e-12)

	buy, err := q.Quote(context.Background(), core.QuoteRequest{Network: eth, Src: usdc.Hex(), Dest: weth.Hex(), Amount: 1})
	require.NoError(t, err)
	assert.InEpsilon(t, 0.0005, buy.Price, 1e-12)
	assert.Equal(t, 1, fake.Calls(factory, FactoryABI, "getPair"))

	// адрес пары пережил перезапуск
	again := newQuoter(t, fake, path)
	_, err = again.Quote(context.Background(), core.QuoteRequest{Network: eth, Src: weth.Hex(), Dest: usdc.Hex(), Amount: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.Calls(factory, FactoryABI, "getPair"))
}

func TestQuote_EmptyReserves(t *testing.T) {
	fake := chaintest.New()
	fake.Handle(factory, FactoryABI, "getPair", pair)
	fake.Handle(pair, PairABI, "getReserves", big.NewInt(0), e(1, 18), uint32(1))
	fake.Handle(pair, PairABI, "token0", usdc)

	_, err := newQuoter(t, fake, "").Quote(context.Background(),
		core.QuoteRequest{Network: chain.Network{Name: "Ethereum"}, Src: weth.Hex(), Dest: usdc.Hex(), Amount: 1})
	assert.True(t, errors.Is(err, types.ErrDataAbsent))
}

func TestQuote_RPCFailure(t *testing.T) {
	fake := chaintest.New()
	fake.Fail(factory, FactoryABI, "getPair", errors.New("429 too many requests"))

	_, err := newQuoter(t, fake, "").Quote(context.Background(),
		core.QuoteRequest{Network: chain.Network{Name: "Ethereum"}, Src: weth.Hex(), Dest: usdc.Hex(), Amount: 1})
	assert.True(t, errors.Is(err, types.ErrTransport))
}

func TestReservePrice(t *testing.T) {
	p, err := ReservePrice(e(2_000, 18), e(4_000_000, 6), 18, 6)
	require.NoError(t, err)
	assert.Equal(t, 2000.0, p)

	_, err = ReservePrice(big.NewInt(1), big.NewInt(0), 18, 6)
	assert.True(t, errors.Is(err, types.ErrDataAbsent))
}
