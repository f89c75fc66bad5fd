package testutil

import (
	"math/big"
	"time"

	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
)

// Common test addresses
const (
	AliceAddress   = "0x1111111111111111111111111111111111111111"
	BobAddress     = "0x2222222222222222222222222222222222222222"
	SpenderAddress = "0x1234567890123456789012345678901234567890"
	TestTxHash     = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

// Units returns n whole tokens in base units
func Units(n int64, decimals int) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Int).Mul(big.NewInt(n), scale)
}

// CreateTestIntent creates a pending USDC intent with default values
func CreateTestIntent(opts ...IntentOption) *entities.Intent {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	intent := &entities.Intent{
		ID:        "intent-test",
		Identity:  AliceAddress,
		Token:     "USDC",
		Decimals:  6,
		Requested: Units(100, 6),
		Sources: []entities.IntentSource{
			{ChainID: 1, ChainName: "Ethereum", Amount: Units(60, 6)},
			{ChainID: 42161, ChainName: "Arbitrum", Amount: Units(40, 6)},
		},
		Destination: entities.IntentDestination{ChainID: 137, ChainName: "Polygon", Amount: big.NewInt(99_950_000)},
		Fees: entities.IntentFees{
			BridgeFee: big.NewInt(50_000),
			GasFee:    big.NewInt(1_000_000_000_000_000),
			TotalFee:  big.NewInt(51_000),
		},
		EstimatedTime: 45,
		Status:        entities.IntentPending,
		Shortfall:     new(big.Int),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for _, opt := range opts {
		opt(intent)
	}

	return intent
}

type IntentOption func(*entities.Intent)

func WithIntentID(id string) IntentOption {
	return func(i *entities.Intent) {
		i.ID = id
	}
}

func WithIntentStatus(status entities.IntentStatus) IntentOption {
	return func(i *entities.Intent) {
		i.Status = status
	}
}

func WithIntentIdentity(identity string) IntentOption {
	return func(i *entities.Intent) {
		i.Identity = identity
	}
}

func WithIntentUpdatedAt(ts time.Time) IntentOption {
	return func(i *entities.Intent) {
		i.UpdatedAt = ts
	}
}

// CreateTestBalances builds a unified view holding token on the given chains
func CreateTestBalances(symbol string, decimals int, perChain map[int64]*big.Int) entities.UnifiedBalances {
	tb := entities.TokenBalance{
		Symbol:   symbol,
		Name:     symbol,
		Decimals: decimals,
		Total:    new(big.Int),
	}
	for _, chainID := range entities.DefaultChainOrder {
		balance, ok := perChain[chainID]
		if !ok || balance.Sign() == 0 {
			continue
		}
		tb.Chains = append(tb.Chains, entities.ChainBalance{
			ChainID:   chainID,
			ChainName: entities.ChainName(chainID),
			Balance:   new(big.Int).Set(balance),
		})
		tb.Total.Add(tb.Total, balance)
	}
	return entities.UnifiedBalances{symbol: tb}
}
