package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
	"github.com/bimakw/nexus-orchestrator/internal/domain/repositories"
	nexuserr "github.com/bimakw/nexus-orchestrator/internal/errors"
)

const (
	bpsDenominator = 10000
	// defaultDecimals applies when the token is absent from the balance view
	defaultDecimals = 6
	nativeDecimals  = 18
)

// CreateIntentRequest describes the requested funding plan
type CreateIntentRequest struct {
	Token              string
	Amount             *big.Int
	DestinationChainID int64
	SourceChains       []int64
}

// IntentEngine builds intents and drives them through their lifecycle.
// It holds no session state: the book and balances are passed per call.
type IntentEngine struct {
	settlement repositories.SettlementService
	journal    repositories.IntentJournal
	feeBps     int64
	gasFee     *big.Int
	chainOrder []int64
	logger     *zap.Logger
}

// NewIntentEngine creates a new intent engine. journal may be nil.
func NewIntentEngine(
	settlement repositories.SettlementService,
	journal repositories.IntentJournal,
	feeBps int64,
	gasFee *big.Int,
	chainOrder []int64,
	logger *zap.Logger,
) *IntentEngine {
	if gasFee == nil {
		gasFee = new(big.Int)
	}
	if len(chainOrder) == 0 {
		chainOrder = entities.DefaultChainOrder
	}
	return &IntentEngine{
		settlement: settlement,
		journal:    journal,
		feeBps:     feeBps,
		gasFee:     gasFee,
		chainOrder: chainOrder,
		logger:     logger,
	}
}

// Create builds a pending intent and makes it current. It fails with
// ErrIntentInProgress if another intent is active.
func (e *IntentEngine) Create(ctx context.Context, book *IntentBook, balances entities.UnifiedBalances, identity string, req CreateIntentRequest) (*entities.Intent, error) {
	if err := validateIntentRequest(req); err != nil {
		return nil, err
	}
	if err := book.TryAcquire(); err != nil {
		return nil, err
	}
	return e.create(ctx, book, balances, identity, req)
}

// CreateQueued is Create but waits for the active intent to finish
func (e *IntentEngine) CreateQueued(ctx context.Context, book *IntentBook, balances entities.UnifiedBalances, identity string, req CreateIntentRequest) (*entities.Intent, error) {
	if err := validateIntentRequest(req); err != nil {
		return nil, err
	}
	if err := book.Acquire(ctx); err != nil {
		return nil, err
	}
	return e.create(ctx, book, balances, identity, req)
}

func (e *IntentEngine) create(ctx context.Context, book *IntentBook, balances entities.UnifiedBalances, identity string, req CreateIntentRequest) (*entities.Intent, error) {
	intent := e.Plan(balances, identity, req)

	estimated, err := e.settlement.Quote(ctx, intent)
	if err != nil {
		book.Abandon()
		return nil, nexuserr.Wrap(nexuserr.KindExecution, "failed to quote intent", err)
	}
	intent.EstimatedTime = estimated

	if err := book.Install(intent); err != nil {
		book.Abandon()
		return nil, err
	}

	fields := []zap.Field{
		zap.String("identity", identity),
		zap.String("intent_id", intent.ID),
		zap.String("token", intent.Token),
		zap.Int64("chain_id", intent.Destination.ChainID),
		zap.Int("sources", len(intent.Sources)),
	}
	if !intent.Covered() {
		e.logger.Warn("Intent sources do not cover requested amount",
			append(fields, zap.String("shortfall", intent.Shortfall.String()))...,
		)
	} else {
		e.logger.Info("Intent created", fields...)
	}
	intentsTotal.WithLabelValues(string(entities.IntentPending)).Inc()

	return intent, nil
}

// Plan computes sources, destination and fees without touching any state.
// Sources are drawn greedily in chain order, each contributing
// min(balance, remaining).
func (e *IntentEngine) Plan(balances entities.UnifiedBalances, identity string, req CreateIntentRequest) *entities.Intent {
	symbol := strings.ToUpper(strings.TrimSpace(req.Token))
	tokenBalance, known := balances[symbol]

	decimals := defaultDecimals
	if known {
		decimals = tokenBalance.Decimals
	}

	order := req.SourceChains
	if len(order) == 0 {
		order = e.chainOrder
	}

	remaining := new(big.Int).Set(req.Amount)
	sources := make([]entities.IntentSource, 0, len(order))
	for _, chainID := range order {
		if !known || remaining.Sign() <= 0 {
			break
		}
		chain, ok := tokenBalance.ChainBalanceFor(chainID)
		if !ok || chain.Balance.Sign() <= 0 {
			continue
		}
		use := new(big.Int).Set(chain.Balance)
		if use.Cmp(remaining) > 0 {
			use.Set(remaining)
		}
		sources = append(sources, entities.IntentSource{
			ChainID:   chainID,
			ChainName: entities.ChainName(chainID),
			Amount:    use,
		})
		remaining.Sub(remaining, use)
	}

	bridgeFee := e.BridgeFee(req.Amount)
	now := time.Now().UTC()

	return &entities.Intent{
		ID:        "intent-" + uuid.NewString(),
		Identity:  identity,
		Token:     symbol,
		Decimals:  decimals,
		Requested: new(big.Int).Set(req.Amount),
		Sources:   sources,
		Destination: entities.IntentDestination{
			ChainID:   req.DestinationChainID,
			ChainName: entities.ChainName(req.DestinationChainID),
			Amount:    new(big.Int).Sub(req.Amount, bridgeFee),
		},
		Fees: entities.IntentFees{
			BridgeFee: bridgeFee,
			GasFee:    new(big.Int).Set(e.gasFee),
			TotalFee:  totalFee(bridgeFee, e.gasFee, decimals),
		},
		Status:    entities.IntentPending,
		Shortfall: remaining,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// BridgeFee is floor(amount * bps / 10000)
func (e *IntentEngine) BridgeFee(amount *big.Int) *big.Int {
	fee := new(big.Int).Mul(amount, big.NewInt(e.feeBps))
	return fee.Quo(fee, big.NewInt(bpsDenominator))
}

// totalFee adds the gas fee rescaled from native decimals to token decimals
func totalFee(bridgeFee, gasFee *big.Int, decimals int) *big.Int {
	scaled := new(big.Int).Set(gasFee)
	if shift := nativeDecimals - decimals; shift > 0 {
		scaled.Quo(scaled, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(shift)), nil))
	} else if shift < 0 {
		scaled.Mul(scaled, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-shift)), nil))
	}
	return scaled.Add(scaled, bridgeFee)
}

// Approve drives a pending intent through approved and executing to a
// terminal state. notify is called after every committed transition.
// Once approved, execution runs to completion even if ctx is cancelled;
// a closed book discards the late result.
func (e *IntentEngine) Approve(ctx context.Context, book *IntentBook, id string, notify func(*entities.Intent)) (*entities.Intent, error) {
	approved, err := e.transition(book, id, entities.IntentApproved, nil)
	if err != nil {
		return nil, err
	}
	emit(notify, approved)

	ctx = context.WithoutCancel(ctx)
	if err := e.settlement.Submit(ctx, approved); err != nil {
		return e.fail(ctx, book, id, err, notify)
	}

	executing, err := e.transition(book, id, entities.IntentExecuting, nil)
	if err != nil {
		return nil, err
	}
	emit(notify, executing)

	txHash, err := e.settlement.Settle(ctx, executing)
	if err != nil {
		return e.fail(ctx, book, id, err, notify)
	}

	completed, err := e.transition(book, id, entities.IntentCompleted, func(i *entities.Intent) {
		i.TxHash = txHash
	})
	if err != nil {
		return nil, err
	}
	emit(notify, completed)
	e.record(ctx, completed)
	return completed, nil
}

// Deny fails a pending intent. Only pending intents may be denied.
func (e *IntentEngine) Deny(ctx context.Context, book *IntentBook, id string) (*entities.Intent, error) {
	intent, err := book.Update(id, func(i *entities.Intent) error {
		if i.Status != entities.IntentPending {
			return fmt.Errorf("deny %s: %w", i.Status, nexuserr.ErrInvalidTransition)
		}
		return i.Transition(entities.IntentFailed)
	})
	if err != nil {
		return nil, e.resolveMissing(book, id, err)
	}
	e.logTransition(intent)
	e.record(ctx, intent)
	return intent, nil
}

func (e *IntentEngine) fail(ctx context.Context, book *IntentBook, id string, cause error, notify func(*entities.Intent)) (*entities.Intent, error) {
	failed, err := e.transition(book, id, entities.IntentFailed, func(i *entities.Intent) {
		i.Error = cause.Error()
	})
	if err != nil {
		return nil, err
	}
	emit(notify, failed)
	e.record(ctx, failed)
	return failed, nexuserr.Wrap(nexuserr.KindExecution, "intent settlement failed", cause)
}

func (e *IntentEngine) transition(book *IntentBook, id string, to entities.IntentStatus, mutate func(*entities.Intent)) (*entities.Intent, error) {
	intent, err := book.Update(id, func(i *entities.Intent) error {
		if err := i.Transition(to); err != nil {
			return err
		}
		if mutate != nil {
			mutate(i)
		}
		return nil
	})
	if err != nil {
		return nil, e.resolveMissing(book, id, err)
	}
	e.logTransition(intent)
	return intent, nil
}

// resolveMissing reports a known terminal id as an invalid transition rather than not found
func (e *IntentEngine) resolveMissing(book *IntentBook, id string, err error) error {
	if !errors.Is(err, nexuserr.ErrIntentNotFound) {
		return err
	}
	if intent, ok := book.Lookup(id); ok {
		return fmt.Errorf("intent %s is %s: %w", id, intent.Status, nexuserr.ErrInvalidTransition)
	}
	return err
}

func (e *IntentEngine) logTransition(intent *entities.Intent) {
	intentsTotal.WithLabelValues(string(intent.Status)).Inc()
	e.logger.Info("Intent status changed",
		zap.String("identity", intent.Identity),
		zap.String("intent_id", intent.ID),
		zap.String("status", string(intent.Status)),
	)
}

// Archive returns a page of journaled intents for identity, most recent first
func (e *IntentEngine) Archive(ctx context.Context, identity string, limit, offset int) (*IntentArchiveResponse, error) {
	if e.journal == nil {
		return nil, nexuserr.ErrArchiveUnavailable
	}

	intents, err := e.journal.ListByIdentity(ctx, identity, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived intents: %w", err)
	}

	total, err := e.journal.CountByIdentity(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to count archived intents: %w", err)
	}

	return &IntentArchiveResponse{
		Data: NewIntentDTOs(intents),
		Pagination: PaginationResponse{
			Total:  total,
			Limit:  limit,
			Offset: offset,
		},
	}, nil
}

// record appends a terminal intent to the journal, if one is configured
func (e *IntentEngine) record(ctx context.Context, intent *entities.Intent) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Append(context.WithoutCancel(ctx), intent); err != nil {
		e.logger.Warn("Failed to journal intent",
			zap.String("intent_id", intent.ID),
			zap.Error(err),
		)
	}
}

func validateIntentRequest(req CreateIntentRequest) error {
	if strings.TrimSpace(req.Token) == "" {
		return nexuserr.New(nexuserr.KindValidation, "token is required")
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nexuserr.New(nexuserr.KindValidation, "amount must be positive")
	}
	if req.DestinationChainID <= 0 {
		return nexuserr.New(nexuserr.KindValidation, "destination chain is required")
	}
	return nil
}

func emit(notify func(*entities.Intent), intent *entities.Intent) {
	if notify != nil {
		notify(intent)
	}
}
