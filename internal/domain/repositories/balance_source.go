package repositories

import (
	"context"

	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
)

// BalanceSource reads raw per-chain token balances for an identity
type BalanceSource interface {
	// FetchBalances returns one reading per requested token on chainID.
	// Tokens the chain does not carry may be omitted or returned as zero.
	FetchBalances(ctx context.Context, identity string, chainID int64, tokens []entities.Token) ([]entities.RawBalance, error)
}
