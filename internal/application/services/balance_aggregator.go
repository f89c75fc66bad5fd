package services

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
	"github.com/bimakw/nexus-orchestrator/internal/domain/repositories"
	nexuserr "github.com/bimakw/nexus-orchestrator/internal/errors"
	"github.com/bimakw/nexus-orchestrator/internal/infrastructure/cache"
)

// BalanceAggregator builds unified balance snapshots from per-chain reads
type BalanceAggregator struct {
	source       repositories.BalanceSource
	cache        *cache.RedisCache
	tokens       []entities.Token
	chains       []int64
	bridgeTokens []string
	workers      int
	logger       *zap.Logger
}

// AggregatorOption customises a BalanceAggregator
type AggregatorOption func(*BalanceAggregator)

// WithTokens overrides the token catalogue
func WithTokens(tokens []entities.Token) AggregatorOption {
	return func(a *BalanceAggregator) {
		a.tokens = tokens
	}
}

// WithChains overrides the supported chain list
func WithChains(chains []int64) AggregatorOption {
	return func(a *BalanceAggregator) {
		a.chains = chains
	}
}

// WithBridgeTokens overrides the bridge allow-list
func WithBridgeTokens(symbols []string) AggregatorOption {
	return func(a *BalanceAggregator) {
		a.bridgeTokens = symbols
	}
}

// WithWorkers bounds the number of concurrent chain reads
func WithWorkers(n int) AggregatorOption {
	return func(a *BalanceAggregator) {
		if n > 0 {
			a.workers = n
		}
	}
}

// NewBalanceAggregator creates a new balance aggregator
func NewBalanceAggregator(
	source repositories.BalanceSource,
	cache *cache.RedisCache,
	logger *zap.Logger,
	opts ...AggregatorOption,
) *BalanceAggregator {
	a := &BalanceAggregator{
		source:       source,
		cache:        cache,
		tokens:       entities.DefaultTokens,
		chains:       entities.DefaultChainOrder,
		bridgeTokens: entities.DefaultBridgeTokens,
		workers:      4,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Chains returns the supported chain list in walk order
func (a *BalanceAggregator) Chains() []int64 {
	return a.chains
}

// Refresh reads every supported chain and rebuilds the snapshot for identity.
// On any read failure no data is returned.
func (a *BalanceAggregator) Refresh(ctx context.Context, identity string) (*entities.BalanceSnapshot, error) {
	if identity == "" {
		return nil, nexuserr.ErrNotConnected
	}

	var (
		mu       sync.Mutex
		perChain = make(map[int64][]entities.RawBalance, len(a.chains))
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for _, chainID := range a.chains {
		chainID := chainID
		g.Go(func() error {
			balances, err := a.readChain(gCtx, identity, chainID)
			if err != nil {
				return fmt.Errorf("failed to read balances on chain %d: %w", chainID, err)
			}
			mu.Lock()
			perChain[chainID] = balances
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		balanceRefreshTotal.WithLabelValues(resultLabel(false)).Inc()
		return nil, nexuserr.Wrap(nexuserr.KindRefresh, "balance refresh failed", err)
	}

	unified := a.aggregate(perChain)
	balanceRefreshTotal.WithLabelValues(resultLabel(true)).Inc()

	return &entities.BalanceSnapshot{
		Identity:  identity,
		Unified:   unified,
		Bridge:    unified.Subset(a.bridgeTokens),
		Swap:      unified.Subset(a.swapTokens(unified)),
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Invalidate drops cached reads for identity
func (a *BalanceAggregator) Invalidate(ctx context.Context, identity string) {
	if a.cache == nil {
		return
	}
	if err := a.cache.DeletePattern(ctx, cache.BalancePattern(identity)); err != nil {
		a.logger.Warn("Failed to invalidate balance cache",
			zap.String("identity", identity),
			zap.Error(err),
		)
	}
}

func (a *BalanceAggregator) readChain(ctx context.Context, identity string, chainID int64) ([]entities.RawBalance, error) {
	cacheKey := cache.BalanceKey(identity, chainID)

	if a.cache != nil {
		var cached []entities.RawBalance
		if err := a.cache.Get(ctx, cacheKey, &cached); err == nil {
			a.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return cached, nil
		}
	}

	balances, err := a.source.FetchBalances(ctx, identity, chainID, a.tokens)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, cacheKey, balances); err != nil {
			a.logger.Warn("Failed to cache balances", zap.Error(err))
		}
	}

	return balances, nil
}

// aggregate folds raw reads into per-token totals, walking chains in
// configured order. Zero chains and zero-total tokens are dropped.
func (a *BalanceAggregator) aggregate(perChain map[int64][]entities.RawBalance) entities.UnifiedBalances {
	unified := make(entities.UnifiedBalances, len(a.tokens))

	for _, token := range a.tokens {
		tb := entities.TokenBalance{
			Symbol:   token.Symbol,
			Name:     token.Name,
			Decimals: token.Decimals,
			Total:    new(big.Int),
		}

		for _, chainID := range a.chains {
			balance := new(big.Int)
			for _, raw := range perChain[chainID] {
				if strings.EqualFold(raw.Symbol, token.Symbol) && raw.Balance != nil {
					balance.Add(balance, raw.Balance)
				}
			}
			if balance.Sign() <= 0 {
				continue
			}
			tb.Chains = append(tb.Chains, entities.ChainBalance{
				ChainID:   chainID,
				ChainName: entities.ChainName(chainID),
				Balance:   balance,
			})
			tb.Total.Add(tb.Total, balance)
		}

		if tb.Total.Sign() > 0 {
			unified[token.Symbol] = tb
		}
	}

	return unified
}

// swapTokens is every token in the unified view
func (a *BalanceAggregator) swapTokens(unified entities.UnifiedBalances) []string {
	symbols := make([]string, 0, len(a.tokens))
	for _, token := range a.tokens {
		if _, ok := unified[token.Symbol]; ok {
			symbols = append(symbols, token.Symbol)
		}
	}
	return symbols
}
