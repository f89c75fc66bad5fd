package services

import (
	"context"
	"errors"
	"math/big"
	"math/rand"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/nexus-orchestrator/internal/domain/amount"
	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
	nexuserr "github.com/bimakw/nexus-orchestrator/internal/errors"
	"github.com/bimakw/nexus-orchestrator/internal/testutil"
)

var testGasFee = big.NewInt(1_000_000_000_000_000)

func setupEngineTest() (*IntentEngine, *testutil.MockSettlementService, *testutil.MockIntentJournal) {
	settlement := testutil.NewMockSettlementService()
	journal := testutil.NewMockIntentJournal()
	engine := NewIntentEngine(settlement, journal, 5, testGasFee, entities.DefaultChainOrder, zap.NewNop())
	return engine, settlement, journal
}

func usdcBalances() entities.UnifiedBalances {
	return testutil.CreateTestBalances("USDC", 6, map[int64]*big.Int{
		1:     testutil.Units(60, 6),
		42161: testutil.Units(40, 6),
	})
}

func usdcRequest(n int64) CreateIntentRequest {
	return CreateIntentRequest{
		Token:              "USDC",
		Amount:             testutil.Units(n, 6),
		DestinationChainID: 137,
	}
}

func TestIntentEngine_Create_FundedFromTwoChains(t *testing.T) {
	engine, _, _ := setupEngineTest()
	book := NewIntentBook()

	intent, err := engine.Create(context.Background(), book, usdcBalances(), testutil.AliceAddress, usdcRequest(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if intent.Status != entities.IntentPending {
		t.Errorf("expected pending, got %s", intent.Status)
	}
	if !strings.HasPrefix(intent.ID, "intent-") {
		t.Errorf("unexpected id %s", intent.ID)
	}
	if len(intent.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(intent.Sources))
	}
	if intent.Sources[0].ChainID != 1 || intent.Sources[0].Amount.Cmp(testutil.Units(60, 6)) != 0 {
		t.Errorf("unexpected first source: %+v", intent.Sources[0])
	}
	if intent.Sources[1].ChainID != 42161 || intent.Sources[1].Amount.Cmp(testutil.Units(40, 6)) != 0 {
		t.Errorf("unexpected second source: %+v", intent.Sources[1])
	}
	if intent.Fees.BridgeFee.Int64() != 50_000 {
		t.Errorf("expected bridge fee 50000, got %s", intent.Fees.BridgeFee)
	}
	if intent.Destination.Amount.Int64() != 99_950_000 {
		t.Errorf("expected destination 99950000, got %s", intent.Destination.Amount)
	}
	if got := amount.Format(intent.Destination.Amount, intent.Decimals); got != "99.95" {
		t.Errorf("expected 99.95, got %s", got)
	}
	if intent.Destination.ChainName != "Polygon" {
		t.Errorf("expected Polygon, got %s", intent.Destination.ChainName)
	}
	if intent.Fees.TotalFee.Int64() != 51_000 {
		t.Errorf("expected total fee 51000, got %s", intent.Fees.TotalFee)
	}
	if intent.EstimatedTime != 45 {
		t.Errorf("expected estimated time 45, got %d", intent.EstimatedTime)
	}
	if !intent.Covered() {
		t.Error("expected intent to be covered")
	}
	if current := book.Current(); current == nil || current.ID != intent.ID {
		t.Error("expected intent to be current")
	}
}

func TestIntentEngine_Plan_Shortfall(t *testing.T) {
	engine, _, _ := setupEngineTest()

	intent := engine.Plan(usdcBalances(), testutil.AliceAddress, usdcRequest(150))
	if intent.Covered() {
		t.Fatal("expected shortfall")
	}
	if intent.Shortfall.Cmp(testutil.Units(50, 6)) != 0 {
		t.Errorf("expected shortfall 50 USDC, got %s", intent.Shortfall)
	}
	if intent.SourceTotal().Cmp(testutil.Units(100, 6)) != 0 {
		t.Errorf("expected sources to total 100 USDC, got %s", intent.SourceTotal())
	}
}

func TestIntentEngine_Plan_UnknownToken(t *testing.T) {
	engine, _, _ := setupEngineTest()

	intent := engine.Plan(usdcBalances(), testutil.AliceAddress, CreateIntentRequest{
		Token:              "FOO",
		Amount:             big.NewInt(1000),
		DestinationChainID: 10,
	})
	if len(intent.Sources) != 0 {
		t.Errorf("expected no sources, got %d", len(intent.Sources))
	}
	if intent.Decimals != defaultDecimals {
		t.Errorf("expected fallback decimals, got %d", intent.Decimals)
	}
	if intent.Shortfall.Int64() != 1000 {
		t.Errorf("expected full shortfall, got %s", intent.Shortfall)
	}
}

func TestIntentEngine_Plan_SourceChainOrder(t *testing.T) {
	engine, _, _ := setupEngineTest()
	req := usdcRequest(50)
	req.SourceChains = []int64{42161, 1}

	intent := engine.Plan(usdcBalances(), testutil.AliceAddress, req)
	if len(intent.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(intent.Sources))
	}
	if intent.Sources[0].ChainID != 42161 || intent.Sources[0].Amount.Cmp(testutil.Units(40, 6)) != 0 {
		t.Errorf("unexpected first source: %+v", intent.Sources[0])
	}
	if intent.Sources[1].Amount.Cmp(testutil.Units(10, 6)) != 0 {
		t.Errorf("expected 10 USDC from Ethereum, got %s", intent.Sources[1].Amount)
	}
}

func TestIntentEngine_FeeProperty(t *testing.T) {
	engine, _, _ := setupEngineTest()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		requested := big.NewInt(rng.Int63n(1_000_000_000_000) + 1)
		intent := engine.Plan(usdcBalances(), testutil.AliceAddress, CreateIntentRequest{
			Token:              "USDC",
			Amount:             requested,
			DestinationChainID: 137,
		})

		sum := new(big.Int).Add(intent.Destination.Amount, intent.Fees.BridgeFee)
		if sum.Cmp(requested) != 0 {
			t.Fatalf("destination + fee = %s, want %s", sum, requested)
		}
		if intent.Destination.Amount.Sign() < 0 {
			t.Fatalf("negative destination for %s", requested)
		}
		if intent.Fees.TotalFee.Cmp(intent.Fees.BridgeFee) < 0 {
			t.Fatalf("total fee below bridge fee for %s", requested)
		}
	}
}

func TestIntentEngine_Create_InProgress(t *testing.T) {
	engine, _, _ := setupEngineTest()
	book := NewIntentBook()
	ctx := context.Background()

	first, err := engine.Create(ctx, book, usdcBalances(), testutil.AliceAddress, usdcRequest(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = engine.Create(ctx, book, usdcBalances(), testutil.AliceAddress, usdcRequest(20))
	if !errors.Is(err, nexuserr.ErrIntentInProgress) {
		t.Fatalf("expected ErrIntentInProgress, got %v", err)
	}
	if current := book.Current(); current.ID != first.ID {
		t.Error("expected first intent to remain current")
	}

	if _, err := engine.Deny(ctx, book, first.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := engine.Create(ctx, book, usdcBalances(), testutil.AliceAddress, usdcRequest(20)); err != nil {
		t.Errorf("expected create to succeed after deny, got %v", err)
	}
}

func TestIntentEngine_Create_Validation(t *testing.T) {
	engine, _, _ := setupEngineTest()
	book := NewIntentBook()

	tests := []struct {
		name string
		req  CreateIntentRequest
	}{
		{name: "missing token", req: CreateIntentRequest{Amount: big.NewInt(1), DestinationChainID: 1}},
		{name: "zero amount", req: CreateIntentRequest{Token: "USDC", Amount: new(big.Int), DestinationChainID: 1}},
		{name: "missing destination", req: CreateIntentRequest{Token: "USDC", Amount: big.NewInt(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Create(context.Background(), book, usdcBalances(), testutil.AliceAddress, tt.req)
			if kind := nexuserr.KindOf(err); kind != nexuserr.KindValidation {
				t.Errorf("expected validation kind, got %v", err)
			}
		})
	}

	if book.Current() != nil {
		t.Error("expected no intent after validation failures")
	}
}

func TestIntentEngine_Create_QuoteFailureFreesSlot(t *testing.T) {
	engine, settlement, _ := setupEngineTest()
	book := NewIntentBook()
	settlement.QuoteFunc = func(ctx context.Context, intent *entities.Intent) (int, error) {
		return 0, errors.New("quote unavailable")
	}

	if _, err := engine.Create(context.Background(), book, usdcBalances(), testutil.AliceAddress, usdcRequest(10)); err == nil {
		t.Fatal("expected error")
	}
	if err := book.TryAcquire(); err != nil {
		t.Errorf("expected slot to be free, got %v", err)
	}
}

func TestIntentEngine_Approve(t *testing.T) {
	engine, _, journal := setupEngineTest()
	book := NewIntentBook()
	ctx := context.Background()

	intent, err := engine.Create(ctx, book, usdcBalances(), testutil.AliceAddress, usdcRequest(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var statuses []entities.IntentStatus
	completed, err := engine.Approve(ctx, book, intent.ID, func(i *entities.Intent) {
		statuses = append(statuses, i.Status)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []entities.IntentStatus{entities.IntentApproved, entities.IntentExecuting, entities.IntentCompleted}
	if len(statuses) != len(want) {
		t.Fatalf("expected %v, got %v", want, statuses)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("step %d: expected %s, got %s", i, want[i], statuses[i])
		}
	}
	if completed.TxHash != testutil.TestTxHash {
		t.Errorf("expected tx hash, got %s", completed.TxHash)
	}
	if book.Current() != nil {
		t.Error("expected no current intent after completion")
	}
	history := book.History()
	if len(history) != 1 || history[0].ID != intent.ID {
		t.Errorf("expected completed intent in history, got %d entries", len(history))
	}
	if journal.Len() != 1 {
		t.Errorf("expected intent to be journaled, got %d", journal.Len())
	}
}

func TestIntentEngine_Approve_SettlementFailure(t *testing.T) {
	engine, settlement, _ := setupEngineTest()
	book := NewIntentBook()
	ctx := context.Background()
	settlement.SettleFunc = func(ctx context.Context, intent *entities.Intent) (string, error) {
		return "", errors.New("bridge reverted")
	}

	intent, err := engine.Create(ctx, book, usdcBalances(), testutil.AliceAddress, usdcRequest(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	failed, err := engine.Approve(ctx, book, intent.ID, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if kind := nexuserr.KindOf(err); kind != nexuserr.KindExecution {
		t.Errorf("expected execution kind, got %s", kind)
	}
	if failed == nil || failed.Status != entities.IntentFailed {
		t.Fatalf("expected failed intent, got %+v", failed)
	}
	if !strings.Contains(failed.Error, "bridge reverted") {
		t.Errorf("expected cause in intent error, got %q", failed.Error)
	}
	if book.Current() != nil {
		t.Error("expected slot to be freed")
	}
}

func TestIntentEngine_Approve_RunsToCompletionAfterCancel(t *testing.T) {
	engine, settlement, journal := setupEngineTest()
	book := NewIntentBook()
	settlement.SubmitFunc = func(ctx context.Context, intent *entities.Intent) error {
		return ctx.Err()
	}
	settlement.SettleFunc = func(ctx context.Context, intent *entities.Intent) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(50 * time.Millisecond):
			return testutil.TestTxHash, nil
		}
	}

	intent, err := engine.Create(context.Background(), book, usdcBalances(), testutil.AliceAddress, usdcRequest(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name     string
		cancelOn entities.IntentStatus
	}{
		{name: "cancelled once approved", cancelOn: entities.IntentApproved},
		{name: "cancelled while executing", cancelOn: entities.IntentExecuting},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if i > 0 {
				if intent, err = engine.Create(context.Background(), book, usdcBalances(), testutil.AliceAddress, usdcRequest(10)); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			completed, err := engine.Approve(ctx, book, intent.ID, func(next *entities.Intent) {
				if next.Status == tt.cancelOn {
					cancel()
				}
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if completed.Status != entities.IntentCompleted {
				t.Errorf("expected completed, got %s", completed.Status)
			}
			if history := book.History(); history[0].ID != intent.ID || history[0].Status != entities.IntentCompleted {
				t.Errorf("expected completed intent at head of history, got %+v", history[0])
			}
		})
	}

	if journal.Len() != 2 {
		t.Errorf("expected 2 journaled intents, got %d", journal.Len())
	}
}

func TestIntentEngine_IllegalTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("approve completed", func(t *testing.T) {
		engine, _, _ := setupEngineTest()
		book := NewIntentBook()
		intent, _ := engine.Create(ctx, book, usdcBalances(), testutil.AliceAddress, usdcRequest(10))
		if _, err := engine.Approve(ctx, book, intent.ID, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err := engine.Approve(ctx, book, intent.ID, nil)
		if !errors.Is(err, nexuserr.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
		if got, _ := book.Lookup(intent.ID); got.Status != entities.IntentCompleted {
			t.Errorf("expected status unchanged, got %s", got.Status)
		}
	})

	t.Run("approve failed", func(t *testing.T) {
		engine, _, _ := setupEngineTest()
		book := NewIntentBook()
		intent, _ := engine.Create(ctx, book, usdcBalances(), testutil.AliceAddress, usdcRequest(10))
		if _, err := engine.Deny(ctx, book, intent.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err := engine.Approve(ctx, book, intent.ID, nil)
		if !errors.Is(err, nexuserr.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
		if got, _ := book.Lookup(intent.ID); got.Status != entities.IntentFailed {
			t.Errorf("expected status unchanged, got %s", got.Status)
		}
	})

	t.Run("deny approved", func(t *testing.T) {
		engine, settlement, _ := setupEngineTest()
		book := NewIntentBook()
		intent, _ := engine.Create(ctx, book, usdcBalances(), testutil.AliceAddress, usdcRequest(10))

		var denyErr error
		settlement.SubmitFunc = func(ctx context.Context, i *entities.Intent) error {
			_, denyErr = engine.Deny(ctx, book, i.ID)
			if got := book.Current(); got.Status != entities.IntentApproved {
				t.Errorf("expected approved to be unchanged, got %s", got.Status)
			}
			return nil
		}
		if _, err := engine.Approve(ctx, book, intent.ID, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !errors.Is(denyErr, nexuserr.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", denyErr)
		}
	})

	t.Run("deny executing", func(t *testing.T) {
		engine, settlement, _ := setupEngineTest()
		book := NewIntentBook()
		intent, _ := engine.Create(ctx, book, usdcBalances(), testutil.AliceAddress, usdcRequest(10))

		var denyErr error
		settlement.SettleFunc = func(ctx context.Context, i *entities.Intent) (string, error) {
			_, denyErr = engine.Deny(ctx, book, i.ID)
			if got := book.Current(); got.Status != entities.IntentExecuting {
				t.Errorf("expected executing to be unchanged, got %s", got.Status)
			}
			return testutil.TestTxHash, nil
		}
		completed, err := engine.Approve(ctx, book, intent.ID, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !errors.Is(denyErr, nexuserr.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", denyErr)
		}
		if completed.Status != entities.IntentCompleted {
			t.Errorf("expected completion, got %s", completed.Status)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		engine, _, _ := setupEngineTest()
		book := NewIntentBook()

		_, err := engine.Approve(ctx, book, "intent-missing", nil)
		if !errors.Is(err, nexuserr.ErrIntentNotFound) {
			t.Errorf("expected ErrIntentNotFound, got %v", err)
		}
	})
}

func TestIntentEngine_CreateQueued_WaitsForSlot(t *testing.T) {
	engine, _, _ := setupEngineTest()
	book := NewIntentBook()
	ctx := context.Background()

	first, err := engine.Create(ctx, book, usdcBalances(), testutil.AliceAddress, usdcRequest(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan *entities.Intent, 1)
	go func() {
		queued, err := engine.CreateQueued(ctx, book, usdcBalances(), testutil.AliceAddress, usdcRequest(20))
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- queued
	}()

	if _, err := engine.Approve(ctx, book, first.ID, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	queued := <-done
	if queued == nil || queued.ID == first.ID {
		t.Fatal("expected a new queued intent")
	}
	if current := book.Current(); current == nil || current.ID != queued.ID {
		t.Error("expected queued intent to be current")
	}
}

func TestIntentEngine_Archive(t *testing.T) {
	engine, _, journal := setupEngineTest()
	ctx := context.Background()

	_ = journal.Append(ctx, testutil.CreateTestIntent(testutil.WithIntentID("a"), testutil.WithIntentStatus(entities.IntentCompleted)))
	_ = journal.Append(ctx, testutil.CreateTestIntent(testutil.WithIntentID("b"), testutil.WithIntentStatus(entities.IntentFailed)))

	response, err := engine.Archive(ctx, testutil.AliceAddress, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response.Pagination.Total != 2 {
		t.Errorf("expected total 2, got %d", response.Pagination.Total)
	}
	if len(response.Data) != 1 {
		t.Errorf("expected 1 intent, got %d", len(response.Data))
	}

	noJournal := NewIntentEngine(testutil.NewMockSettlementService(), nil, 5, testGasFee, nil, zap.NewNop())
	if _, err := noJournal.Archive(ctx, testutil.AliceAddress, 10, 0); !errors.Is(err, nexuserr.ErrArchiveUnavailable) {
		t.Errorf("expected ErrArchiveUnavailable, got %v", err)
	}
}
