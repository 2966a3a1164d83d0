package multicall

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Multicall (v1) aggregate: все вызовы в одном eth_call, любой revert валит весь батч.
const multicallABI = `[
{
    "constant": false,
    "inputs": [
        {
            "components": [
                {"name": "target", "type": "address"},
                {"name": "callData", "type": "bytes"}
            ],
            "name": "calls",
            "type": "tuple[]"
        }
    ],
    "name": "aggregate",
    "outputs": [
        {"name": "blockNumber", "type": "uint256"},
        {"name": "returnData", "type": "bytes[]"}
    ],
    "payable": false,
    "stateMutability": "nonpayable",
    "type": "function"
}
]`

var parsedABI = func() abi.ABI {
	a, err := abi.JSON(strings.NewReader(multicallABI))
	if err != nil {
		panic(err)
	}
	return a
}()

// ABI exposes the aggregate ABI for tests that fake the contract.
func ABI() abi.ABI { return parsedABI }

type IClient interface {
	Aggregate(ctx context.Context, calls []Call) ([]Result, error)
}

type Client struct {
	c    ethereum.ContractCaller
	addr common.Address
}

func New(c ethereum.ContractCaller, multicallAddr common.Address) *Client {
	return &Client{c: c, addr: multicallAddr}
}

type Call struct {
	Target   common.Address
	CallData []byte
}

type Result struct {
	Success bool
	Data    []byte
}

func (c *Client) Aggregate(ctx context.Context, calls []Call) ([]Result, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	payload, err := parsedABI.Pack("aggregate", calls)
	if err != nil {
		return nil, fmt.Errorf("pack aggregate: %w", err)
	}

	res, err := c.c.CallContract(ctx, ethereum.CallMsg{To: &c.addr, Data: payload}, nil)
	if err != nil {
		return nil, fmt.Errorf("call aggregate: %w", err)
	}

	type aggregateResult struct {
		BlockNumber *big.Int
		ReturnData  [][]byte
	}
	var agg aggregateResult
	if err := parsedABI.UnpackIntoInterface(&agg, "aggregate", res); err != nil {
		return nil, fmt.Errorf("unpack aggregate: %w", err)
	}
	if len(agg.ReturnData) != len(calls) {
		return nil, fmt.Errorf("aggregate: %d results for %d calls", len(agg.ReturnData), len(calls))
	}

	out := make([]Result, len(calls))
	for i, r := range agg.ReturnData {
		out[i] = Result{Success: len(r) > 0, Data: r}
	}
	return out, nil
}
