// Package chaintest provides an in-memory contract caller for tests.
package chaintest

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

type reply struct {
	data []byte
	err  error
}

// Caller answers eth_call by (target, 4-byte selector). Arguments are ignored.
type Caller struct {
	mu      sync.Mutex
	replies map[string]reply
	calls   map[string]int
}

func New() *Caller {
	return &Caller{replies: map[string]reply{}, calls: map[string]int{}}
}

func MustABI(s string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return a
}

// Handle registers the ABI-encoded outputs of method on target.
func (c *Caller) Handle(target common.Address, a abi.ABI, method string, outs ...any) {
	m, ok := a.Methods[method]
	if !ok {
		panic(fmt.Sprintf("chaintest: no method %s", method))
	}
	data, err := m.Outputs.Pack(outs...)
	if err != nil {
		panic(fmt.Sprintf("chaintest: pack %s: %v", method, err))
	}
	c.set(target, m.ID, reply{data: data})
}

// Raw registers arbitrary return bytes for method on target.
func (c *Caller) Raw(target common.Address, a abi.ABI, method string, data []byte) {
	c.set(target, a.Methods[method].ID, reply{data: data})
}

func (c *Caller) Fail(target common.Address, a abi.ABI, method string, err error) {
	c.set(target, a.Methods[method].ID, reply{err: err})
}

func (c *Caller) set(target common.Address, selector []byte, r reply) {
	c.mu.Lock()
	c.replies[key(target, selector)] = r
	c.mu.Unlock()
}

// Calls returns how many times method was called on target.
func (c *Caller) Calls(target common.Address, a abi.ABI, method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[key(target, a.Methods[method].ID)]
}

func (c *Caller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, fmt.Errorf("chaintest: bad call")
	}
	k := key(*msg.To, msg.Data[:4])
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[k]++
	r, ok := c.replies[k]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return r.data, r.err
}

func key(target common.Address, selector []byte) string {
	return target.Hex() + ":" + hex.EncodeToString(selector[:4])
}
