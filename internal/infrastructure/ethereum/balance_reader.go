package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/bimakw/nexus-orchestrator/internal/domain/amount"
	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
	"github.com/bimakw/nexus-orchestrator/internal/domain/repositories"
)

const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

var erc20ABI = mustParseABI(erc20ABIJSON)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid ERC-20 ABI: %v", err))
	}
	return parsed
}

// BalanceReader reads live balances and allowances over RPC
type BalanceReader struct {
	caller ChainCaller
	logger *zap.Logger
}

var _ repositories.BalanceSource = (*BalanceReader)(nil)
var _ repositories.AllowanceSource = (*BalanceReader)(nil)

// NewBalanceReader creates a new balance reader
func NewBalanceReader(caller ChainCaller, logger *zap.Logger) *BalanceReader {
	return &BalanceReader{
		caller: caller,
		logger: logger,
	}
}

// FetchBalances reads each token on chainID. Tokens the chain does not carry are skipped.
func (r *BalanceReader) FetchBalances(ctx context.Context, identity string, chainID int64, tokens []entities.Token) ([]entities.RawBalance, error) {
	if !common.IsHexAddress(identity) {
		return nil, fmt.Errorf("invalid identity address %q", identity)
	}
	owner := common.HexToAddress(identity)

	out := make([]entities.RawBalance, 0, len(tokens))
	for _, token := range tokens {
		loc, ok := locateToken(chainID, token.Symbol)
		if !ok {
			continue
		}

		var (
			balance *big.Int
			err     error
		)
		if loc.native {
			balance, err = r.caller.BalanceAt(ctx, chainID, owner)
		} else {
			balance, err = r.callUint256(ctx, chainID, loc.contract, "balanceOf", owner)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s balance: %w", token.Symbol, err)
		}

		out = append(out, entities.RawBalance{
			ChainID: chainID,
			Symbol:  token.Symbol,
			Balance: balance,
		})
	}
	return out, nil
}

// FetchAllowance reads allowance(owner, spender). Native tokens need no approval
// and report the maximum.
func (r *BalanceReader) FetchAllowance(ctx context.Context, identity string, chainID int64, token, spender string) (*big.Int, error) {
	if !common.IsHexAddress(identity) || !common.IsHexAddress(spender) {
		return nil, fmt.Errorf("invalid owner or spender address")
	}

	loc, ok := locateToken(chainID, token)
	if !ok {
		return nil, fmt.Errorf("token %s is not available on chain %d", token, chainID)
	}
	if loc.native {
		return new(big.Int).Set(amount.MaxUint256), nil
	}

	return r.callUint256(ctx, chainID, loc.contract, "allowance",
		common.HexToAddress(identity), common.HexToAddress(spender))
}

func (r *BalanceReader) callUint256(ctx context.Context, chainID int64, contract common.Address, method string, args ...interface{}) (*big.Int, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	result, err := r.caller.CallContract(ctx, chainID, contract, data)
	if err != nil {
		return nil, err
	}

	values, err := erc20ABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected %s result length %d", method, len(values))
	}
	n, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result type %T", method, values[0])
	}
	return n, nil
}
