package simulated

import (
	"context"
	"fmt"
	"math/big"

	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
	"github.com/bimakw/nexus-orchestrator/internal/domain/repositories"
)

var _ repositories.BalanceSource = (*Network)(nil)
var _ repositories.AllowanceSource = (*Network)(nil)
var _ repositories.AllowanceWriter = (*Network)(nil)

// maxDemoUnits bounds simulated balances to below 1000 whole tokens
const maxDemoUnits = 1000

// FetchBalances returns a random multiple of 10^(decimals-2) below 1000 units per token
func (n *Network) FetchBalances(ctx context.Context, identity string, chainID int64, tokens []entities.Token) ([]entities.RawBalance, error) {
	if err := wait(ctx, n.delays.Refresh); err != nil {
		return nil, err
	}

	out := make([]entities.RawBalance, 0, len(tokens))
	for _, token := range tokens {
		unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(max(token.Decimals-2, 0))), nil)
		balance := new(big.Int).Mul(big.NewInt(int64(n.intn(maxDemoUnits))), unit)
		out = append(out, entities.RawBalance{
			ChainID: chainID,
			Symbol:  token.Symbol,
			Balance: balance,
		})
	}
	return out, nil
}

// FetchAllowance returns zero half of the time, otherwise a random amount below 1000 units
func (n *Network) FetchAllowance(ctx context.Context, identity string, chainID int64, token, spender string) (*big.Int, error) {
	if err := wait(ctx, n.delays.AllowanceGet); err != nil {
		return nil, err
	}
	if n.float64() <= 0.5 {
		return new(big.Int), nil
	}
	decimals := entities.TokenDecimals(token, 6)
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Int).Mul(big.NewInt(int64(n.intn(maxDemoUnits))), unit), nil
}

// SubmitApproval simulates an approve transaction; zero takes the revoke latency
func (n *Network) SubmitApproval(ctx context.Context, identity string, chainID int64, token, spender string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid approval amount")
	}
	delay := n.delays.AllowanceSet
	if amount.Sign() == 0 {
		delay = n.delays.AllowanceRevoke
	}
	return wait(ctx, delay)
}
