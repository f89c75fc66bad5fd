package testutil

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
)

func TestMockBalanceSource_FetchBalances(t *testing.T) {
	source := NewMockBalanceSource()
	source.SetBalance(1, "USDC", Units(60, 6))
	source.SetBalance(137, "USDC", Units(10, 6))

	balances, err := source.FetchBalances(context.Background(), AliceAddress, 1, entities.DefaultTokens)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(balances) != 1 {
		t.Fatalf("expected 1 balance, got %d", len(balances))
	}
	if balances[0].Balance.Cmp(Units(60, 6)) != 0 {
		t.Errorf("expected 60 USDC, got %s", balances[0].Balance)
	}
	if source.CallCount("FetchBalances") != 1 {
		t.Errorf("expected 1 call, got %d", source.CallCount("FetchBalances"))
	}
}

func TestMockAllowanceSource_SubmitThenFetch(t *testing.T) {
	source := NewMockAllowanceSource()
	ctx := context.Background()

	if err := source.SubmitApproval(ctx, AliceAddress, 1, "USDC", SpenderAddress, big.NewInt(5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := source.FetchAllowance(ctx, AliceAddress, 1, "USDC", SpenderAddress)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Int64() != 5 {
		t.Errorf("expected 5, got %s", got)
	}
}

func TestMockIntentJournal_ListByIdentity(t *testing.T) {
	journal := NewMockIntentJournal()
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	_ = journal.Append(ctx, CreateTestIntent(WithIntentID("a"), WithIntentUpdatedAt(base)))
	_ = journal.Append(ctx, CreateTestIntent(WithIntentID("b"), WithIntentUpdatedAt(base.Add(time.Minute))))
	_ = journal.Append(ctx, CreateTestIntent(WithIntentID("c"), WithIntentIdentity(BobAddress)))
	_ = journal.Append(ctx, CreateTestIntent(WithIntentID("a")))

	intents, err := journal.ListByIdentity(ctx, AliceAddress, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intents) != 2 {
		t.Fatalf("expected 2 intents, got %d", len(intents))
	}
	if intents[0].ID != "b" {
		t.Errorf("expected most recent first, got %s", intents[0].ID)
	}

	count, _ := journal.CountByIdentity(ctx, AliceAddress)
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
}

func TestCreateTestBalances(t *testing.T) {
	balances := CreateTestBalances("USDC", 6, map[int64]*big.Int{
		1:     Units(60, 6),
		42161: Units(40, 6),
		10:    new(big.Int),
	})

	usdc := balances["USDC"]
	if len(usdc.Chains) != 2 {
		t.Fatalf("expected 2 chains, got %d", len(usdc.Chains))
	}
	if usdc.Total.Cmp(Units(100, 6)) != 0 {
		t.Errorf("expected total 100 USDC, got %s", usdc.Total)
	}
}
