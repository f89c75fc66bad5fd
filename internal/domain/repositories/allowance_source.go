package repositories

import (
	"context"
	"math/big"
)

// AllowanceSource reads the current on-chain allowance granted by identity to spender
type AllowanceSource interface {
	FetchAllowance(ctx context.Context, identity string, chainID int64, token, spender string) (*big.Int, error)
}

// AllowanceWriter submits approve/revoke transactions on behalf of identity
type AllowanceWriter interface {
	// SubmitApproval sets the allowance of spender to amount; zero revokes
	SubmitApproval(ctx context.Context, identity string, chainID int64, token, spender string, amount *big.Int) error
}
