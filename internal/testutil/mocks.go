package testutil

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
	"github.com/bimakw/nexus-orchestrator/internal/domain/repositories"
)

var (
	_ repositories.BalanceSource     = (*MockBalanceSource)(nil)
	_ repositories.AllowanceSource   = (*MockAllowanceSource)(nil)
	_ repositories.AllowanceWriter   = (*MockAllowanceSource)(nil)
	_ repositories.SettlementService = (*MockSettlementService)(nil)
	_ repositories.SwapService       = (*MockSwapService)(nil)
	_ repositories.IntentJournal     = (*MockIntentJournal)(nil)
)

type MockCall struct {
	Method string
	Args   []interface{}
}

// callLog records calls made to a mock
type callLog struct {
	mu    sync.Mutex
	Calls []MockCall
}

func (c *callLog) record(method string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, MockCall{Method: method, Args: args})
}

// CallCount returns how many times method was called
func (c *callLog) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.Calls {
		if call.Method == method {
			n++
		}
	}
	return n
}

// MockBalanceSource is a mock implementation of BalanceSource
type MockBalanceSource struct {
	callLog
	mu       sync.RWMutex
	balances map[int64]map[string]*big.Int

	FetchBalancesFunc func(ctx context.Context, identity string, chainID int64, tokens []entities.Token) ([]entities.RawBalance, error)
}

func NewMockBalanceSource() *MockBalanceSource {
	return &MockBalanceSource{balances: make(map[int64]map[string]*big.Int)}
}

// SetBalance stores a balance returned by FetchBalances
func (m *MockBalanceSource) SetBalance(chainID int64, symbol string, balance *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[chainID] == nil {
		m.balances[chainID] = make(map[string]*big.Int)
	}
	m.balances[chainID][symbol] = balance
}

func (m *MockBalanceSource) FetchBalances(ctx context.Context, identity string, chainID int64, tokens []entities.Token) ([]entities.RawBalance, error) {
	m.record("FetchBalances", identity, chainID)

	if m.FetchBalancesFunc != nil {
		return m.FetchBalancesFunc(ctx, identity, chainID, tokens)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]entities.RawBalance, 0, len(tokens))
	for _, token := range tokens {
		balance, ok := m.balances[chainID][token.Symbol]
		if !ok {
			continue
		}
		out = append(out, entities.RawBalance{
			ChainID: chainID,
			Symbol:  token.Symbol,
			Balance: new(big.Int).Set(balance),
		})
	}
	return out, nil
}

// MockAllowanceSource is a mock AllowanceSource and AllowanceWriter backed by a map
type MockAllowanceSource struct {
	callLog
	mu         sync.RWMutex
	allowances map[entities.AllowanceKey]*big.Int

	FetchAllowanceFunc func(ctx context.Context, identity string, chainID int64, token, spender string) (*big.Int, error)
	SubmitApprovalFunc func(ctx context.Context, identity string, chainID int64, token, spender string, amount *big.Int) error
}

func NewMockAllowanceSource() *MockAllowanceSource {
	return &MockAllowanceSource{allowances: make(map[entities.AllowanceKey]*big.Int)}
}

// SetAllowance stores an allowance returned by FetchAllowance
func (m *MockAllowanceSource) SetAllowance(chainID int64, token string, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[entities.AllowanceKey{ChainID: chainID, Token: token}] = amount
}

func (m *MockAllowanceSource) FetchAllowance(ctx context.Context, identity string, chainID int64, token, spender string) (*big.Int, error) {
	m.record("FetchAllowance", chainID, token)

	if m.FetchAllowanceFunc != nil {
		return m.FetchAllowanceFunc(ctx, identity, chainID, token, spender)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.allowances[entities.AllowanceKey{ChainID: chainID, Token: token}]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

func (m *MockAllowanceSource) SubmitApproval(ctx context.Context, identity string, chainID int64, token, spender string, amount *big.Int) error {
	m.record("SubmitApproval", chainID, token, spender, amount.String())

	if m.SubmitApprovalFunc != nil {
		if err := m.SubmitApprovalFunc(ctx, identity, chainID, token, spender, amount); err != nil {
			return err
		}
	}

	m.SetAllowance(chainID, token, new(big.Int).Set(amount))
	return nil
}

// MockSettlementService is a mock implementation of SettlementService
type MockSettlementService struct {
	callLog

	QuoteFunc  func(ctx context.Context, intent *entities.Intent) (int, error)
	SubmitFunc func(ctx context.Context, intent *entities.Intent) error
	SettleFunc func(ctx context.Context, intent *entities.Intent) (string, error)
}

func NewMockSettlementService() *MockSettlementService {
	return &MockSettlementService{}
}

func (m *MockSettlementService) Quote(ctx context.Context, intent *entities.Intent) (int, error) {
	m.record("Quote", intent.ID)
	if m.QuoteFunc != nil {
		return m.QuoteFunc(ctx, intent)
	}
	return 45, nil
}

func (m *MockSettlementService) Submit(ctx context.Context, intent *entities.Intent) error {
	m.record("Submit", intent.ID)
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, intent)
	}
	return nil
}

func (m *MockSettlementService) Settle(ctx context.Context, intent *entities.Intent) (string, error) {
	m.record("Settle", intent.ID)
	if m.SettleFunc != nil {
		return m.SettleFunc(ctx, intent)
	}
	return TestTxHash, nil
}

// MockSwapService is a mock implementation of SwapService. By default it
// quotes 1:1 in base units.
type MockSwapService struct {
	callLog

	QuoteExactInFunc  func(ctx context.Context, from, to entities.SwapLeg, amountIn *big.Int) (*big.Int, error)
	QuoteExactOutFunc func(ctx context.Context, from, to entities.SwapLeg, amountOut *big.Int) (*big.Int, error)
	ExecuteFunc       func(ctx context.Context, order entities.SwapOrder) (string, error)
}

func NewMockSwapService() *MockSwapService {
	return &MockSwapService{}
}

func (m *MockSwapService) QuoteExactIn(ctx context.Context, from, to entities.SwapLeg, amountIn *big.Int) (*big.Int, error) {
	m.record("QuoteExactIn", from, to, amountIn.String())
	if m.QuoteExactInFunc != nil {
		return m.QuoteExactInFunc(ctx, from, to, amountIn)
	}
	return new(big.Int).Set(amountIn), nil
}

func (m *MockSwapService) QuoteExactOut(ctx context.Context, from, to entities.SwapLeg, amountOut *big.Int) (*big.Int, error) {
	m.record("QuoteExactOut", from, to, amountOut.String())
	if m.QuoteExactOutFunc != nil {
		return m.QuoteExactOutFunc(ctx, from, to, amountOut)
	}
	return new(big.Int).Set(amountOut), nil
}

func (m *MockSwapService) Execute(ctx context.Context, order entities.SwapOrder) (string, error) {
	m.record("Execute", order.Mode)
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, order)
	}
	return TestTxHash, nil
}

// MockIntentJournal is an in-memory IntentJournal
type MockIntentJournal struct {
	callLog
	mu      sync.RWMutex
	intents map[string]*entities.Intent

	AppendFunc func(ctx context.Context, intent *entities.Intent) error
}

func NewMockIntentJournal() *MockIntentJournal {
	return &MockIntentJournal{intents: make(map[string]*entities.Intent)}
}

func (m *MockIntentJournal) Append(ctx context.Context, intent *entities.Intent) error {
	m.record("Append", intent.ID, intent.Status)
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, intent)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.intents[intent.ID]; !ok {
		m.intents[intent.ID] = intent.Clone()
	}
	return nil
}

func (m *MockIntentJournal) ListByIdentity(ctx context.Context, identity string, limit, offset int) ([]*entities.Intent, error) {
	m.record("ListByIdentity", identity, limit, offset)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*entities.Intent
	for _, intent := range m.intents {
		if strings.EqualFold(intent.Identity, identity) {
			matched = append(matched, intent.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	if offset >= len(matched) {
		return []*entities.Intent{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (m *MockIntentJournal) CountByIdentity(ctx context.Context, identity string) (int64, error) {
	m.record("CountByIdentity", identity)

	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, intent := range m.intents {
		if strings.EqualFold(intent.Identity, identity) {
			n++
		}
	}
	return n, nil
}

// Len returns the number of journaled intents
func (m *MockIntentJournal) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.intents)
}

// MockHealthChecker is a mock implementation of HealthChecker
type MockHealthChecker struct {
	callLog
	mu sync.RWMutex

	Healthy bool
	Error   error
}

func NewMockHealthChecker(healthy bool) *MockHealthChecker {
	var err error
	if !healthy {
		err = errors.New("health check failed")
	}
	return &MockHealthChecker{
		Healthy: healthy,
		Error:   err,
	}
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	m.record("HealthCheck")

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Error
}

func (m *MockHealthChecker) SetHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Healthy = healthy
	if healthy {
		m.Error = nil
	} else {
		m.Error = errors.New("health check failed")
	}
}
