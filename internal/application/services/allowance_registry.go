package services

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bimakw/nexus-orchestrator/internal/domain/amount"
	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
	"github.com/bimakw/nexus-orchestrator/internal/domain/repositories"
	nexuserr "github.com/bimakw/nexus-orchestrator/internal/errors"
)

// AllowanceMax is the sentinel accepted by Set for an unlimited approval
const AllowanceMax = "max"

// AllowanceRegistry caches one identity's spending permissions per (chain, token).
// Mutations on the same key are applied in issue order; distinct keys run freely.
type AllowanceRegistry struct {
	identity string
	spender  string
	source   repositories.AllowanceSource
	writer   repositories.AllowanceWriter
	logger   *zap.Logger

	mu      sync.Mutex
	entries map[int64][]entities.Allowance
	tails   map[entities.AllowanceKey]chan struct{}
	closed  bool
}

// NewAllowanceRegistry creates an empty registry for identity
func NewAllowanceRegistry(
	identity string,
	spender string,
	source repositories.AllowanceSource,
	writer repositories.AllowanceWriter,
	logger *zap.Logger,
) *AllowanceRegistry {
	return &AllowanceRegistry{
		identity: identity,
		spender:  spender,
		source:   source,
		writer:   writer,
		logger:   logger,
		entries:  make(map[int64][]entities.Allowance),
		tails:    make(map[entities.AllowanceKey]chan struct{}),
	}
}

// ParseAllowanceAmount accepts a base-unit integer string or "max"
func ParseAllowanceAmount(value string) (*big.Int, error) {
	if strings.EqualFold(strings.TrimSpace(value), AllowanceMax) {
		return new(big.Int).Set(amount.MaxUint256), nil
	}
	n, err := amount.ParseBaseUnits(value)
	if err != nil {
		return nil, nexuserr.Wrap(nexuserr.KindValidation, "invalid allowance amount", err)
	}
	return n, nil
}

// Get fetches the current allowance of each token on chainID and upserts the cache
func (r *AllowanceRegistry) Get(ctx context.Context, chainID int64, tokens []string) ([]entities.Allowance, error) {
	tokens = normalizeSymbols(tokens)
	result := make([]entities.Allowance, len(tokens))

	g, gCtx := errgroup.WithContext(ctx)
	for i, token := range tokens {
		i, token := i, token
		key := entities.AllowanceKey{ChainID: chainID, Token: token}
		turn := r.issue(key)
		g.Go(func() error {
			return turn.run(gCtx, func(ctx context.Context) error {
				value, err := r.source.FetchAllowance(ctx, r.identity, chainID, token, r.spender)
				if err != nil {
					return fmt.Errorf("failed to fetch allowance for %s on chain %d: %w", token, chainID, err)
				}
				result[i] = r.apply(chainID, entities.NewAllowance(token, r.spender, value))
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nexuserr.Wrap(nexuserr.KindRefresh, "allowance fetch failed", err)
	}
	return result, nil
}

// Set approves value (base units or "max") for token on chainID
func (r *AllowanceRegistry) Set(ctx context.Context, chainID int64, token, value string) (entities.Allowance, error) {
	n, err := ParseAllowanceAmount(value)
	if err != nil {
		return entities.Allowance{}, err
	}
	return r.submit(ctx, chainID, token, n, false)
}

// Revoke resets the allowance to zero, keeping the recorded spender
func (r *AllowanceRegistry) Revoke(ctx context.Context, chainID int64, token string) (entities.Allowance, error) {
	return r.submit(ctx, chainID, token, new(big.Int), true)
}

func (r *AllowanceRegistry) submit(ctx context.Context, chainID int64, token string, value *big.Int, keepSpender bool) (entities.Allowance, error) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return entities.Allowance{}, nexuserr.New(nexuserr.KindValidation, "token is required")
	}

	key := entities.AllowanceKey{ChainID: chainID, Token: token}
	turn := r.issue(key)

	var out entities.Allowance
	err := turn.run(ctx, func(ctx context.Context) error {
		spender := r.spender
		if keepSpender {
			if existing, ok := r.lookup(key); ok && existing.Spender != "" {
				spender = existing.Spender
			}
		}
		if err := r.writer.SubmitApproval(ctx, r.identity, chainID, token, spender, value); err != nil {
			return fmt.Errorf("failed to submit approval for %s on chain %d: %w", token, chainID, err)
		}
		out = r.apply(chainID, entities.NewAllowance(token, spender, value))
		return nil
	})
	if err != nil {
		return entities.Allowance{}, nexuserr.Wrap(nexuserr.KindExecution, "allowance update failed", err)
	}

	r.logger.Info("Allowance updated",
		zap.String("identity", r.identity),
		zap.Int64("chain_id", chainID),
		zap.String("token", token),
		zap.Bool("unlimited", out.IsUnlimited),
	)
	return out, nil
}

// Entries returns a copy of the cached allowances keyed by chain
func (r *AllowanceRegistry) Entries() map[int64][]entities.Allowance {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[int64][]entities.Allowance, len(r.entries))
	for chainID, list := range r.entries {
		cp := make([]entities.Allowance, len(list))
		for i, a := range list {
			a.Amount = new(big.Int).Set(a.Amount)
			cp[i] = a
		}
		out[chainID] = cp
	}
	return out
}

// Close stops the registry from accepting late results
func (r *AllowanceRegistry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *AllowanceRegistry) lookup(key entities.AllowanceKey) (entities.Allowance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.entries[key.ChainID] {
		if a.Token == key.Token {
			return a, true
		}
	}
	return entities.Allowance{}, false
}

// apply upserts allowance, keeping at most one entry per token per chain.
// Results landing after Close are discarded.
func (r *AllowanceRegistry) apply(chainID int64, allowance entities.Allowance) entities.Allowance {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return allowance
	}

	list := r.entries[chainID]
	for i := range list {
		if list[i].Token == allowance.Token {
			list[i] = allowance
			return allowance
		}
	}
	list = append(list, allowance)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Token < list[j].Token })
	r.entries[chainID] = list
	return allowance
}

// keyTurn is one slot in a per-key FIFO
type keyTurn struct {
	registry *AllowanceRegistry
	key      entities.AllowanceKey
	prev     chan struct{}
	done     chan struct{}
}

// issue reserves the next position for key. Must be called in issue order.
func (r *AllowanceRegistry) issue(key entities.AllowanceKey) *keyTurn {
	r.mu.Lock()
	defer r.mu.Unlock()

	turn := &keyTurn{
		registry: r,
		key:      key,
		prev:     r.tails[key],
		done:     make(chan struct{}),
	}
	r.tails[key] = turn.done
	return turn
}

// run waits for the previous turn on the key, then runs fn. The turn is
// released only after its predecessor so a cancelled waiter never lets a
// later mutation overtake an earlier one.
func (t *keyTurn) run(ctx context.Context, fn func(ctx context.Context) error) error {
	if t.prev != nil {
		select {
		case <-t.prev:
		case <-ctx.Done():
			go func() {
				<-t.prev
				t.release()
			}()
			return ctx.Err()
		}
	}
	defer t.release()
	return fn(ctx)
}

func (t *keyTurn) release() {
	r := t.registry
	r.mu.Lock()
	if r.tails[t.key] == t.done {
		delete(r.tails, t.key)
	}
	r.mu.Unlock()
	close(t.done)
}

func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
