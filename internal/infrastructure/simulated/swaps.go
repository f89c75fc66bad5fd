package simulated

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
	"github.com/bimakw/nexus-orchestrator/internal/domain/repositories"
)

var _ repositories.SwapService = (*Network)(nil)

// referencePrices are USD prices the simulated market trades around
var referencePrices = map[string]decimal.Decimal{
	"USDC": decimal.NewFromInt(1),
	"USDT": decimal.NewFromInt(1),
	"DAI":  decimal.NewFromInt(1),
	"ETH":  decimal.NewFromInt(2500),
	"WBTC": decimal.NewFromInt(60000),
}

// priceJitter is the maximum relative deviation applied to a quote
var priceJitter = decimal.NewFromFloat(0.04)

// QuoteExactIn prices amountIn of from in units of to
func (n *Network) QuoteExactIn(ctx context.Context, from, to entities.SwapLeg, amountIn *big.Int) (*big.Int, error) {
	rate, err := n.rate(from.Token, to.Token)
	if err != nil {
		return nil, err
	}
	in := decimal.NewFromBigInt(amountIn, -int32(entities.TokenDecimals(from.Token, 18)))
	out := in.Mul(rate).Shift(int32(entities.TokenDecimals(to.Token, 18))).Truncate(0)
	return out.BigInt(), nil
}

// QuoteExactOut prices amountOut of to in units of from
func (n *Network) QuoteExactOut(ctx context.Context, from, to entities.SwapLeg, amountOut *big.Int) (*big.Int, error) {
	rate, err := n.rate(from.Token, to.Token)
	if err != nil {
		return nil, err
	}
	out := decimal.NewFromBigInt(amountOut, -int32(entities.TokenDecimals(to.Token, 18)))
	in := out.Div(rate).Shift(int32(entities.TokenDecimals(from.Token, 18))).Ceil()
	return in.BigInt(), nil
}

// Execute waits for the simulated swap settlement
func (n *Network) Execute(ctx context.Context, order entities.SwapOrder) (string, error) {
	if err := wait(ctx, n.delays.Swap); err != nil {
		return "", err
	}
	hash := n.txHash()
	n.logger.Debug("Swap settled",
		zap.String("identity", order.Identity),
		zap.String("from", order.From.Token),
		zap.String("to", order.To.Token),
		zap.String("tx_hash", hash),
	)
	return hash, nil
}

// rate returns how many units of to one unit of from buys, with jitter
func (n *Network) rate(from, to string) (decimal.Decimal, error) {
	fromPrice, ok := referencePrices[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price for %s", from)
	}
	toPrice, ok := referencePrices[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price for %s", to)
	}
	// jitter in [-priceJitter/2, +priceJitter/2)
	jitter := decimal.NewFromFloat(n.float64()).Sub(decimal.NewFromFloat(0.5)).Mul(priceJitter)
	return fromPrice.Div(toPrice).Mul(decimal.NewFromInt(1).Add(jitter)), nil
}
