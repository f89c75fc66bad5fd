package services

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
	"github.com/bimakw/nexus-orchestrator/internal/domain/repositories"
	nexuserr "github.com/bimakw/nexus-orchestrator/internal/errors"
)

const explorerTxURL = "https://etherscan.io/tx/"

var (
	bridgeSteps   = []string{entities.StepAllowance, entities.StepDeposit, entities.StepBridge, entities.StepReceive}
	transferSteps = []string{entities.StepAllowance, entities.StepDeposit, entities.StepBridge, entities.StepTransfer}
	swapSteps     = []string{entities.StepAllowance, entities.StepSwap, entities.StepBridge, entities.StepReceive}
)

// BridgeRequest moves Amount of Token to DestinationChainID
type BridgeRequest struct {
	Token              string
	Amount             *big.Int
	DestinationChainID int64
	SourceChains       []int64
}

// TransferRequest bridges and then delivers to Recipient
type TransferRequest struct {
	BridgeRequest
	Recipient string
}

// SwapExactInRequest swaps a fixed input amount
type SwapExactInRequest struct {
	From   entities.SwapLeg
	To     entities.SwapLeg
	Amount *big.Int
}

// SwapExactOutRequest swaps for a fixed output amount, spending at most MaxAmount
type SwapExactOutRequest struct {
	From      entities.SwapLeg
	To        entities.SwapLeg
	MaxAmount *big.Int
	ToAmount  *big.Int
}

// OperationResult is the outcome of a pipeline operation. Failures are
// reported through Success, never as an error.
type OperationResult struct {
	Success      bool
	TxHash       string
	IntentID     string
	InputAmount  *big.Int
	OutputAmount *big.Int
	Error        string
}

// OperationPipeline runs bridge and swap scripts against a session
type OperationPipeline struct {
	engine *IntentEngine
	swaps  repositories.SwapService
	logger *zap.Logger
}

// NewOperationPipeline creates a new operation pipeline
func NewOperationPipeline(engine *IntentEngine, swaps repositories.SwapService, logger *zap.Logger) *OperationPipeline {
	return &OperationPipeline{
		engine: engine,
		swaps:  swaps,
		logger: logger,
	}
}

// operation emits one operation's events in order to its handler and to
// the session's subscribers
type operation struct {
	name    string
	session *Session
	onEvent EventHandler
	started time.Time
}

func (o *operation) emit(name string, args map[string]any) {
	event := entities.NewEvent(name, args)
	if o.onEvent != nil {
		o.onEvent(event)
	}
	o.session.Publish(event)
}

// Bridge creates an intent, approves it and waits for settlement
func (p *OperationPipeline) Bridge(ctx context.Context, session *Session, req BridgeRequest, onEvent EventHandler) OperationResult {
	op := p.begin("bridge", session, onEvent)
	return p.finish(op, func() (OperationResult, error) {
		op.emit(entities.EventStepsList, map[string]any{"steps": slices.Clone(bridgeSteps)})
		return p.bridge(ctx, op, req)
	})
}

// BridgeAndTransfer bridges and then reports delivery to the recipient
func (p *OperationPipeline) BridgeAndTransfer(ctx context.Context, session *Session, req TransferRequest, onEvent EventHandler) OperationResult {
	op := p.begin("bridge_and_transfer", session, onEvent)
	return p.finish(op, func() (OperationResult, error) {
		if !common.IsHexAddress(req.Recipient) {
			return OperationResult{}, nexuserr.New(nexuserr.KindValidation, "recipient must be a hex address")
		}
		op.emit(entities.EventStepsList, map[string]any{"steps": slices.Clone(transferSteps)})

		result, err := p.bridge(ctx, op, req.BridgeRequest)
		if err != nil {
			return result, err
		}

		op.emit(entities.EventTransferComplete, map[string]any{
			"recipient": common.HexToAddress(req.Recipient).Hex(),
		})
		return result, nil
	})
}

func (p *OperationPipeline) bridge(ctx context.Context, op *operation, req BridgeRequest) (OperationResult, error) {
	session := op.session
	intent, err := p.engine.CreateQueued(ctx, session.book, session.unified(), session.identity, CreateIntentRequest{
		Token:              req.Token,
		Amount:             req.Amount,
		DestinationChainID: req.DestinationChainID,
		SourceChains:       req.SourceChains,
	})
	if err != nil {
		return OperationResult{}, fmt.Errorf("failed to create intent: %w", err)
	}
	session.publishIntent(intent)
	op.emit(entities.EventIntentCreated, map[string]any{"intent": NewIntentDTO(intent)})

	if !intent.Covered() {
		if _, err := p.engine.Deny(ctx, session.book, intent.ID); err != nil {
			p.logger.Warn("Failed to deny underfunded intent", zap.String("intent_id", intent.ID), zap.Error(err))
		}
		return OperationResult{IntentID: intent.ID}, nexuserr.New(nexuserr.KindExecution,
			fmt.Sprintf("insufficient %s balance: short by %s", intent.Token, intent.Shortfall))
	}

	settled, err := p.engine.Approve(ctx, session.book, intent.ID, session.publishIntent)
	if err != nil {
		return OperationResult{IntentID: intent.ID}, fmt.Errorf("failed to execute intent: %w", err)
	}

	op.emit(entities.EventStepComplete, map[string]any{
		"typeID":          entities.StepBridge,
		"transactionHash": settled.TxHash,
		"explorerURL":     explorerTxURL + settled.TxHash,
	})

	return OperationResult{
		Success:      true,
		TxHash:       settled.TxHash,
		IntentID:     settled.ID,
		OutputAmount: settled.Destination.Amount,
	}, nil
}

// SwapExactIn swaps Amount of the input token for whatever the rate yields
func (p *OperationPipeline) SwapExactIn(ctx context.Context, session *Session, req SwapExactInRequest, onEvent EventHandler) OperationResult {
	op := p.begin("swap_exact_in", session, onEvent)
	return p.finish(op, func() (OperationResult, error) {
		if err := validateSwapAmount(req.Amount, "amount"); err != nil {
			return OperationResult{}, err
		}
		op.emit(entities.EventStepsList, map[string]any{"steps": slices.Clone(swapSteps)})

		output, err := p.swaps.QuoteExactIn(ctx, normalizeLeg(req.From), normalizeLeg(req.To), req.Amount)
		if err != nil {
			return OperationResult{}, fmt.Errorf("failed to quote swap: %w", err)
		}

		return p.settleSwap(ctx, op, entities.SwapOrder{
			Identity:     session.identity,
			Mode:         entities.SwapExactIn,
			From:         normalizeLeg(req.From),
			To:           normalizeLeg(req.To),
			InputAmount:  new(big.Int).Set(req.Amount),
			OutputAmount: output,
		})
	})
}

// SwapExactOut buys ToAmount of the output token, spending at most MaxAmount
func (p *OperationPipeline) SwapExactOut(ctx context.Context, session *Session, req SwapExactOutRequest, onEvent EventHandler) OperationResult {
	op := p.begin("swap_exact_out", session, onEvent)
	return p.finish(op, func() (OperationResult, error) {
		if err := validateSwapAmount(req.ToAmount, "toAmount"); err != nil {
			return OperationResult{}, err
		}
		if err := validateSwapAmount(req.MaxAmount, "maxAmount"); err != nil {
			return OperationResult{}, err
		}
		op.emit(entities.EventStepsList, map[string]any{"steps": slices.Clone(swapSteps)})

		input, err := p.swaps.QuoteExactOut(ctx, normalizeLeg(req.From), normalizeLeg(req.To), req.ToAmount)
		if err != nil {
			return OperationResult{}, fmt.Errorf("failed to quote swap: %w", err)
		}
		if input.Cmp(req.MaxAmount) > 0 {
			return OperationResult{}, nexuserr.New(nexuserr.KindExecution,
				fmt.Sprintf("required input %s exceeds max amount %s", input, req.MaxAmount))
		}

		return p.settleSwap(ctx, op, entities.SwapOrder{
			Identity:     session.identity,
			Mode:         entities.SwapExactOut,
			From:         normalizeLeg(req.From),
			To:           normalizeLeg(req.To),
			InputAmount:  input,
			OutputAmount: new(big.Int).Set(req.ToAmount),
		})
	})
}

func (p *OperationPipeline) settleSwap(ctx context.Context, op *operation, order entities.SwapOrder) (OperationResult, error) {
	txHash, err := p.swaps.Execute(ctx, order)
	if err != nil {
		return OperationResult{}, fmt.Errorf("failed to execute swap: %w", err)
	}

	op.emit(entities.EventSwapComplete, map[string]any{
		"inputAmount":     order.InputAmount.String(),
		"outputAmount":    order.OutputAmount.String(),
		"transactionHash": txHash,
	})

	return OperationResult{
		Success:      true,
		TxHash:       txHash,
		InputAmount:  order.InputAmount,
		OutputAmount: order.OutputAmount,
	}, nil
}

func (p *OperationPipeline) begin(name string, session *Session, onEvent EventHandler) *operation {
	return &operation{
		name:    name,
		session: session,
		onEvent: onEvent,
		started: time.Now(),
	}
}

// finish runs script and converts any error or panic into a failed result
// after emitting an ERROR event.
func (p *OperationPipeline) finish(op *operation, script func() (OperationResult, error)) (result OperationResult) {
	defer func() {
		if r := recover(); r != nil {
			result = p.fail(op, result, fmt.Errorf("panic: %v", r))
		}
		operationsTotal.WithLabelValues(op.name, resultLabel(result.Success)).Inc()
		operationDuration.WithLabelValues(op.name).Observe(time.Since(op.started).Seconds())
	}()

	if err := op.session.checkOpen(); err != nil {
		return p.fail(op, OperationResult{}, err)
	}

	result, err := script()
	if err != nil {
		return p.fail(op, result, err)
	}
	return result
}

func (p *OperationPipeline) fail(op *operation, partial OperationResult, err error) OperationResult {
	p.logger.Warn("Operation failed",
		zap.String("operation", op.name),
		zap.String("identity", op.session.identity),
		zap.String("intent_id", partial.IntentID),
		zap.Error(err),
	)
	op.emit(entities.EventError, map[string]any{
		"operation": op.name,
		"message":   err.Error(),
		"kind":      string(nexuserr.KindOf(err)),
	})
	return OperationResult{
		Success:  false,
		IntentID: partial.IntentID,
		Error:    err.Error(),
	}
}

func validateSwapAmount(v *big.Int, field string) error {
	if v == nil || v.Sign() <= 0 {
		return nexuserr.New(nexuserr.KindValidation, field+" must be positive")
	}
	return nil
}

func normalizeLeg(leg entities.SwapLeg) entities.SwapLeg {
	leg.Token = strings.ToUpper(strings.TrimSpace(leg.Token))
	return leg
}
