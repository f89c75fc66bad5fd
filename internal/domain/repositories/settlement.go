package repositories

import (
	"context"
	"math/big"

	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
)

// SettlementService is the solver network an intent is handed to
type SettlementService interface {
	// Quote returns the estimated completion time in seconds for a freshly built intent
	Quote(ctx context.Context, intent *entities.Intent) (int, error)

	// Submit hands an approved intent to the network
	Submit(ctx context.Context, intent *entities.Intent) error

	// Settle waits for the executing intent to land and returns its transaction hash
	Settle(ctx context.Context, intent *entities.Intent) (string, error)
}

// SwapService prices and settles swaps
type SwapService interface {
	// QuoteExactIn returns the output amount for a fixed input
	QuoteExactIn(ctx context.Context, from, to entities.SwapLeg, amountIn *big.Int) (*big.Int, error)

	// QuoteExactOut returns the input amount needed for a fixed output
	QuoteExactOut(ctx context.Context, from, to entities.SwapLeg, amountOut *big.Int) (*big.Int, error)

	// Execute settles a priced order and returns its transaction hash
	Execute(ctx context.Context, order entities.SwapOrder) (string, error)
}
