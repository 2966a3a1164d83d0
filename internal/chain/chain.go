package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

type Kind string

const (
	KindEVM     Kind = "evm"
	KindSolana  Kind = "solana"
	KindTON     Kind = "ton"
	KindOsmosis Kind = "osmosis"
)

// Network: статическое описание сети: RPC, chain id, эксплорер для ABI.
type Network struct {
	Name        string `yaml:"name"`
	Kind        Kind   `yaml:"kind"`
	ChainID     int64  `yaml:"chain_id"`
	RPC         string `yaml:"rpc"`
	ExplorerABI string `yaml:"explorer_abi"`
	APIKeyEnv   string `yaml:"api_key_env"`
	APIKey      string `yaml:"-"`
	Multicall   string `yaml:"multicall"`
	// HighGas marks networks where on-chain legs need a wider spread to pay for gas.
	HighGas bool `yaml:"high_gas"`
}

func (n Network) IsEVM() bool { return n.Kind == "" || n.Kind == KindEVM }

type Registry struct {
	byName map[string]Network
	order  []string
}

func NewRegistry(nets []Network) (*Registry, error) {
	r := &Registry{byName: make(map[string]Network, len(nets))}
	for _, n := range nets {
		if strings.TrimSpace(n.Name) == "" {
			return nil, fmt.Errorf("network without name")
		}
		if _, dup := r.byName[n.Name]; dup {
			return nil, fmt.Errorf("duplicate network %q", n.Name)
		}
		r.byName[n.Name] = n
		r.order = append(r.order, n.Name)
	}
	return r, nil
}

func (r *Registry) Get(name string) (Network, bool) {
	n, ok := r.byName[name]
	return n, ok
}

func (r *Registry) All() []Network {
	out := make([]Network, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Callers hands out a read-only contract caller for an EVM network.
type Callers interface {
	Caller(ctx context.Context, n Network) (ethereum.ContractCaller, error)
}

// Pool dials each network's RPC once and reuses the client.
type Pool struct {
	log *zap.Logger

	mu      sync.Mutex
	clients map[string]*ethclient.Client
}

func NewPool(log *zap.Logger) *Pool {
	return &Pool{log: log, clients: make(map[string]*ethclient.Client, 8)}
}

func (p *Pool) Caller(ctx context.Context, n Network) (ethereum.ContractCaller, error) {
	if !n.IsEVM() {
		return nil, fmt.Errorf("%w: %s has no EVM RPC", types.ErrUnsupportedVenue, n.Name)
	}
	if n.RPC == "" {
		return nil, fmt.Errorf("%w: %s: rpc not configured", types.ErrUnsupportedVenue, n.Name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[n.Name]; ok {
		return c, nil
	}
	c, err := ethclient.DialContext(ctx, n.RPC)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", types.ErrTransport, n.Name, err)
	}
	p.log.Info("rpc connected", zap.String("network", n.Name))
	p.clients[n.Name] = c
	return c, nil
}

func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, c := range p.clients {
		c.Close()
		delete(p.clients, name)
	}
}

// Static serves fixed callers by network name; used where RPC clients are built elsewhere.
type Static map[string]ethereum.ContractCaller

func (s Static) Caller(_ context.Context, n Network) (ethereum.ContractCaller, error) {
	if c, ok := s[n.Name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: no caller for %s", types.ErrUnsupportedVenue, n.Name)
}
