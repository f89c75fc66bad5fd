package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/bimakw/nexus-orchestrator/internal/config"
)

// Client wraps one chain's ethclient with retry logic
type Client struct {
	client  *ethclient.Client
	config  config.EthereumConfig
	logger  *zap.Logger
	chainID int64
}

// NewClient dials rpcURL and checks it serves chainID
func NewClient(chainID int64, rpcURL string, cfg config.EthereumConfig, logger *zap.Logger) (*Client, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain %d node: %w", chainID, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	remote, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	if remote.Int64() != chainID {
		client.Close()
		return nil, fmt.Errorf("chain ID mismatch: expected %d, got %d", chainID, remote.Int64())
	}

	logger.Info("Connected to chain node",
		zap.String("rpc_url", rpcURL),
		zap.Int64("chain_id", chainID),
	)

	return &Client{
		client:  client,
		config:  cfg,
		logger:  logger.With(zap.Int64("chain_id", chainID)),
		chainID: chainID,
	}, nil
}

// Close closes the connection
func (c *Client) Close() {
	c.client.Close()
}

// ChainID returns the chain this client serves
func (c *Client) ChainID() int64 {
	return c.chainID
}

// CallContract performs an eth_call against the latest block
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out []byte
	err := c.retry(ctx, "eth_call", func(ctx context.Context) error {
		var err error
		out, err = c.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		return err
	})
	return out, err
}

// BalanceAt returns the native balance of account at the latest block
func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	var out *big.Int
	err := c.retry(ctx, "eth_getBalance", func(ctx context.Context) error {
		var err error
		out, err = c.client.BalanceAt(ctx, account, nil)
		return err
	})
	return out, err
}

// retry runs fn up to MaxRetries+1 times, each attempt bounded by RequestTimeout
func (c *Client) retry(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	var err error

	for i := 0; i <= c.config.MaxRetries; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
		err = fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}

		c.logger.Warn("RPC call failed, retrying",
			zap.String("method", method),
			zap.Int("attempt", i+1),
			zap.Error(err),
		)

		if i < c.config.MaxRetries {
			select {
			case <-time.After(c.config.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("%s failed after %d retries: %w", method, c.config.MaxRetries, err)
}
