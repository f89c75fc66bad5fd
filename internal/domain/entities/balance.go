package entities

import (
	"math/big"
	"time"
)

// ChainBalance is one chain's share of a token balance
type ChainBalance struct {
	ChainID   int64
	ChainName string
	Balance   *big.Int
}

// TokenBalance is a token's balance aggregated across chains.
// Total always equals the sum of Chains[i].Balance and no chain entry is zero.
type TokenBalance struct {
	Symbol   string
	Name     string
	Decimals int
	Total    *big.Int
	Chains   []ChainBalance
}

// ChainBalanceFor returns the entry for chainID, if present
func (t *TokenBalance) ChainBalanceFor(chainID int64) (ChainBalance, bool) {
	for _, c := range t.Chains {
		if c.ChainID == chainID {
			return c, true
		}
	}
	return ChainBalance{}, false
}

// UnifiedBalances maps token symbol to its aggregated balance
type UnifiedBalances map[string]TokenBalance

// Symbols returns the token symbols present
func (u UnifiedBalances) Symbols() []string {
	symbols := make([]string, 0, len(u))
	for symbol := range u {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// Subset returns the entries whose symbol is in allow
func (u UnifiedBalances) Subset(allow []string) UnifiedBalances {
	out := make(UnifiedBalances, len(allow))
	for _, symbol := range allow {
		if tb, ok := u[symbol]; ok {
			out[symbol] = tb
		}
	}
	return out
}

// BalanceSnapshot is the result of one refresh. Snapshots are replaced
// wholesale, never patched.
type BalanceSnapshot struct {
	Identity  string
	Unified   UnifiedBalances
	Bridge    UnifiedBalances
	Swap      UnifiedBalances
	UpdatedAt time.Time
}

// RawBalance is a single (chain, token) reading from a balance source
type RawBalance struct {
	ChainID int64
	Symbol  string
	Balance *big.Int
}
