package simulated

import (
	"context"

	"go.uber.org/zap"

	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
	"github.com/bimakw/nexus-orchestrator/internal/domain/repositories"
)

var _ repositories.SettlementService = (*Network)(nil)

const (
	minEstimatedSeconds = 30
	estimatedSpread     = 60
)

// Quote returns an estimated completion time of 30 to 89 seconds
func (n *Network) Quote(ctx context.Context, intent *entities.Intent) (int, error) {
	if err := wait(ctx, n.delays.IntentCreate); err != nil {
		return 0, err
	}
	return minEstimatedSeconds + n.intn(estimatedSpread), nil
}

// Submit hands the approved intent to the solver network
func (n *Network) Submit(ctx context.Context, intent *entities.Intent) error {
	return wait(ctx, n.delays.IntentApprove)
}

// Settle waits for the simulated fill and returns its transaction hash
func (n *Network) Settle(ctx context.Context, intent *entities.Intent) (string, error) {
	if err := wait(ctx, n.delays.Settlement); err != nil {
		return "", err
	}
	hash := n.txHash()
	n.logger.Debug("Intent settled",
		zap.String("intent_id", intent.ID),
		zap.String("tx_hash", hash),
	)
	return hash, nil
}
