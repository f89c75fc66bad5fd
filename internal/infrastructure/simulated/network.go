// Package simulated stands in for the wallet, chain RPC and solver network
// with randomised data and configurable latencies.
package simulated

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/bimakw/nexus-orchestrator/internal/config"
)

// Network is a simulated chain and solver backend
type Network struct {
	delays config.DelayConfig
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option customises a Network
type Option func(*Network)

// WithSeed makes the random stream deterministic
func WithSeed(seed int64) Option {
	return func(n *Network) {
		n.rng = rand.New(rand.NewSource(seed))
	}
}

// NewNetwork creates a simulated network
func NewNetwork(delays config.DelayConfig, logger *zap.Logger, opts ...Option) *Network {
	n := &Network{
		delays: delays,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Network) intn(max int) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.rng.Intn(max)
}

func (n *Network) float64() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.rng.Float64()
}

// txHash synthesises a transaction identifier
func (n *Network) txHash() string {
	var b [common.HashLength]byte
	n.mu.Lock()
	n.rng.Read(b[:])
	n.mu.Unlock()
	return common.BytesToHash(b[:]).Hex()
}

// wait simulates a network round trip
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
