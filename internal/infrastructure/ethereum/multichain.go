package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/bimakw/nexus-orchestrator/internal/config"
)

// ChainCaller is the read surface BalanceReader needs from the network
type ChainCaller interface {
	CallContract(ctx context.Context, chainID int64, to common.Address, data []byte) ([]byte, error)
	BalanceAt(ctx context.Context, chainID int64, account common.Address) (*big.Int, error)
}

// MultiChainClient routes calls to one Client per configured chain
type MultiChainClient struct {
	clients map[int64]*Client
}

var _ ChainCaller = (*MultiChainClient)(nil)

// DialAll connects to every chain in cfg.RPCURLs
func DialAll(cfg config.EthereumConfig, logger *zap.Logger) (*MultiChainClient, error) {
	urls := cfg.RPCURLs
	if len(urls) == 0 {
		return nil, fmt.Errorf("no RPC endpoints configured (ETH_RPC_URLS)")
	}

	m := &MultiChainClient{clients: make(map[int64]*Client, len(urls))}
	for chainID, url := range urls {
		client, err := NewClient(chainID, url, cfg, logger)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.clients[chainID] = client
	}
	return m, nil
}

// Close closes every client
func (m *MultiChainClient) Close() {
	for _, c := range m.clients {
		c.Close()
	}
}

// Covering filters order down to the chains with an endpoint, keeping its
// order, and returns the chains left without one
func (m *MultiChainClient) Covering(order []int64) (covered, missing []int64) {
	for _, chainID := range order {
		if _, ok := m.clients[chainID]; ok {
			covered = append(covered, chainID)
		} else {
			missing = append(missing, chainID)
		}
	}
	return covered, missing
}

func (m *MultiChainClient) client(chainID int64) (*Client, error) {
	c, ok := m.clients[chainID]
	if !ok {
		return nil, fmt.Errorf("no RPC endpoint for chain %d", chainID)
	}
	return c, nil
}

// CallContract performs an eth_call on chainID
func (m *MultiChainClient) CallContract(ctx context.Context, chainID int64, to common.Address, data []byte) ([]byte, error) {
	c, err := m.client(chainID)
	if err != nil {
		return nil, err
	}
	return c.CallContract(ctx, to, data)
}

// BalanceAt returns the native balance of account on chainID
func (m *MultiChainClient) BalanceAt(ctx context.Context, chainID int64, account common.Address) (*big.Int, error) {
	c, err := m.client(chainID)
	if err != nil {
		return nil, err
	}
	return c.BalanceAt(ctx, account)
}
