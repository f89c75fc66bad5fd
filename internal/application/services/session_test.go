package services

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
	nexuserr "github.com/bimakw/nexus-orchestrator/internal/errors"
	"github.com/bimakw/nexus-orchestrator/internal/testutil"
)

type sessionFixture struct {
	session    *Session
	balances   *testutil.MockBalanceSource
	allowances *testutil.MockAllowanceSource
	settlement *testutil.MockSettlementService
	swaps      *testutil.MockSwapService
	pipeline   *OperationPipeline
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	logger := zap.NewNop()

	f := &sessionFixture{
		balances:   testutil.NewMockBalanceSource(),
		allowances: testutil.NewMockAllowanceSource(),
		settlement: testutil.NewMockSettlementService(),
		swaps:      testutil.NewMockSwapService(),
	}
	f.balances.SetBalance(1, "USDC", testutil.Units(60, 6))
	f.balances.SetBalance(42161, "USDC", testutil.Units(40, 6))

	aggregator := NewBalanceAggregator(f.balances, nil, logger)
	engine := NewIntentEngine(f.settlement, nil, 5, testGasFee, nil, logger)
	registry := NewAllowanceRegistry(testutil.AliceAddress, testutil.SpenderAddress, f.allowances, f.allowances, logger)

	f.session = NewSession(testutil.AliceAddress, aggregator, registry, engine, logger)
	f.pipeline = NewOperationPipeline(engine, f.swaps, logger)

	if err := f.session.Init(context.Background(), 0); err != nil {
		t.Fatalf("init: %v", err)
	}
	return f
}

func TestSession_Init(t *testing.T) {
	f := newSessionFixture(t)

	status := f.session.Status()
	if !status.Initialized || status.Initializing || status.LoadingBalances {
		t.Errorf("unexpected status: %+v", status)
	}
	snapshot := f.session.Balances()
	if snapshot == nil {
		t.Fatal("expected a snapshot")
	}
	if snapshot.Unified["USDC"].Total.Cmp(testutil.Units(100, 6)) != 0 {
		t.Errorf("expected 100 USDC, got %s", snapshot.Unified["USDC"].Total)
	}
}

func TestSession_Init_Cancelled(t *testing.T) {
	f := newSessionFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.session.Init(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSession_RefreshFailureKeepsSnapshot(t *testing.T) {
	f := newSessionFixture(t)
	before := f.session.Balances()

	f.balances.FetchBalancesFunc = func(ctx context.Context, identity string, chainID int64, tokens []entities.Token) ([]entities.RawBalance, error) {
		return nil, errors.New("rpc down")
	}

	if _, err := f.session.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if f.session.Balances() != before {
		t.Error("expected previous snapshot to be kept")
	}
	if f.session.Status().Error == nil {
		t.Error("expected error to be recorded")
	}
}

func TestSession_RefreshPublishesEvent(t *testing.T) {
	f := newSessionFixture(t)
	events, cancel := f.session.Subscribe(4)
	defer cancel()

	if _, err := f.session.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case event := <-events:
		if event.Name != entities.EventBalancesUpdated {
			t.Errorf("expected %s, got %s", entities.EventBalancesUpdated, event.Name)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an event")
	}
}

func TestSession_Allowances(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	if _, err := f.session.SetAllowance(ctx, 1, "USDC", AllowanceMax); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.session.RevokeAllowance(ctx, 1, "USDC"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := f.session.Allowances()[1]
	if len(entries) != 1 || entries[0].Amount.Sign() != 0 {
		t.Errorf("expected a single revoked entry, got %+v", entries)
	}
	if f.session.Status().LoadingAllowances {
		t.Error("expected allowance loading flag to be cleared")
	}
}

func TestSession_CreateAndDenyIntent(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	intent, err := f.session.CreateIntent(ctx, usdcRequest(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intent.Sources) != 2 {
		t.Errorf("expected 2 sources, got %d", len(intent.Sources))
	}

	denied, err := f.session.DenyIntent(ctx, intent.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if denied.Status != entities.IntentFailed {
		t.Errorf("expected failed, got %s", denied.Status)
	}
	if f.session.CurrentIntent() != nil {
		t.Error("expected no current intent")
	}
	if len(f.session.IntentHistory()) != 1 {
		t.Error("expected one intent in history")
	}
}

func TestSession_CloseDiscardsLateResults(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	intent, err := f.session.CreateIntent(ctx, usdcRequest(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.settlement.SettleFunc = func(ctx context.Context, i *entities.Intent) (string, error) {
		f.session.Close()
		return testutil.TestTxHash, nil
	}

	_, err = f.session.ApproveIntent(ctx, intent.ID)
	if !errors.Is(err, nexuserr.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if len(f.session.IntentHistory()) != 0 {
		t.Error("expected completion after close to be discarded")
	}

	if _, err := f.session.Refresh(ctx); !errors.Is(err, nexuserr.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if f.session.Status().Initialized {
		t.Error("expected session to be uninitialised after close")
	}
}

func TestSession_CloseDuringRefresh(t *testing.T) {
	f := newSessionFixture(t)
	before := f.session.Balances()

	f.balances.FetchBalancesFunc = func(ctx context.Context, identity string, chainID int64, tokens []entities.Token) ([]entities.RawBalance, error) {
		f.session.Close()
		return []entities.RawBalance{{ChainID: chainID, Symbol: "USDC", Balance: big.NewInt(1)}}, nil
	}

	if _, err := f.session.Refresh(context.Background()); !errors.Is(err, nexuserr.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if f.session.Balances() != before {
		t.Error("expected late snapshot to be discarded")
	}
}

func TestSession_SharedRefreshOutlivesCancelledCaller(t *testing.T) {
	f := newSessionFixture(t)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.balances.FetchBalancesFunc = func(ctx context.Context, identity string, chainID int64, tokens []entities.Token) ([]entities.RawBalance, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []entities.RawBalance{{ChainID: chainID, Symbol: "USDC", Balance: big.NewInt(1)}}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.session.Refresh(ctx)
		firstErr <- err
	}()
	<-started

	joinedErr := make(chan error, 1)
	go func() {
		_, err := f.session.Refresh(context.Background())
		joinedErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	close(release)

	if err := <-firstErr; err != nil {
		t.Errorf("first caller: unexpected error: %v", err)
	}
	if err := <-joinedErr; err != nil {
		t.Errorf("joined caller: unexpected error: %v", err)
	}
	if err := f.session.Status().Error; err != nil {
		t.Errorf("expected no recorded error, got %v", err)
	}
	if total := f.session.Balances().Unified["USDC"].Total; total == nil || total.Sign() <= 0 {
		t.Errorf("expected refreshed USDC total, got %v", total)
	}
}

func TestSession_SubscribeAfterClose(t *testing.T) {
	f := newSessionFixture(t)
	f.session.Close()

	events, cancel := f.session.Subscribe(1)
	defer cancel()
	if _, ok := <-events; ok {
		t.Error("expected closed channel")
	}
}
