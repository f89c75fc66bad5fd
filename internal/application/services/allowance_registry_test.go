package services

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/nexus-orchestrator/internal/domain/amount"
	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
	nexuserr "github.com/bimakw/nexus-orchestrator/internal/errors"
	"github.com/bimakw/nexus-orchestrator/internal/testutil"
)

func setupRegistryTest() (*AllowanceRegistry, *testutil.MockAllowanceSource) {
	source := testutil.NewMockAllowanceSource()
	registry := NewAllowanceRegistry(testutil.AliceAddress, testutil.SpenderAddress, source, source, zap.NewNop())
	return registry, source
}

func TestParseAllowanceAmount(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    *big.Int
		wantErr bool
	}{
		{name: "max sentinel", value: "max", want: amount.MaxUint256},
		{name: "max upper case", value: "MAX", want: amount.MaxUint256},
		{name: "base units", value: "1000000", want: big.NewInt(1_000_000)},
		{name: "zero", value: "0", want: new(big.Int)},
		{name: "decimal rejected", value: "1.5", wantErr: true},
		{name: "garbage", value: "lots", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAllowanceAmount(tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if kind := nexuserr.KindOf(err); kind != nexuserr.KindValidation {
					t.Errorf("expected validation kind, got %s", kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Cmp(tt.want) != 0 {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestAllowanceRegistry_Get(t *testing.T) {
	registry, source := setupRegistryTest()
	source.SetAllowance(1, "USDC", big.NewInt(500))

	allowances, err := registry.Get(context.Background(), 1, []string{"usdc", "USDT", "USDC"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(allowances) != 2 {
		t.Fatalf("expected 2 allowances, got %d", len(allowances))
	}
	if allowances[0].Token != "USDC" || allowances[0].Amount.Int64() != 500 {
		t.Errorf("unexpected USDC allowance: %+v", allowances[0])
	}
	if allowances[1].Amount.Sign() != 0 {
		t.Errorf("expected zero USDT allowance, got %s", allowances[1].Amount)
	}

	entries := registry.Entries()
	if len(entries[1]) != 2 {
		t.Errorf("expected 2 cached entries, got %d", len(entries[1]))
	}
}

func TestAllowanceRegistry_Get_Failure(t *testing.T) {
	registry, source := setupRegistryTest()
	source.FetchAllowanceFunc = func(ctx context.Context, identity string, chainID int64, token, spender string) (*big.Int, error) {
		return nil, errors.New("rpc down")
	}

	_, err := registry.Get(context.Background(), 1, []string{"USDC"})
	if kind := nexuserr.KindOf(err); kind != nexuserr.KindRefresh {
		t.Errorf("expected refresh kind, got %v", err)
	}
}

func TestAllowanceRegistry_SetMax(t *testing.T) {
	registry, _ := setupRegistryTest()

	allowance, err := registry.Set(context.Background(), 1, "USDC", AllowanceMax)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowance.IsUnlimited {
		t.Error("expected unlimited allowance")
	}
	if allowance.Spender != testutil.SpenderAddress {
		t.Errorf("expected configured spender, got %s", allowance.Spender)
	}
}

func TestAllowanceRegistry_RevokeIdempotent(t *testing.T) {
	registry, _ := setupRegistryTest()
	ctx := context.Background()

	if _, err := registry.Set(ctx, 1, "USDC", "1000000"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 2; i++ {
		allowance, err := registry.Revoke(ctx, 1, "USDC")
		if err != nil {
			t.Fatalf("revoke %d: unexpected error: %v", i, err)
		}
		if allowance.Amount.Sign() != 0 || allowance.IsUnlimited {
			t.Errorf("revoke %d: expected zero allowance, got %+v", i, allowance)
		}
	}

	entries := registry.Entries()[1]
	if len(entries) != 1 {
		t.Fatalf("expected a single entry, got %d", len(entries))
	}
	if entries[0].Amount.Sign() != 0 {
		t.Errorf("expected zero amount, got %s", entries[0].Amount)
	}
}

func TestAllowanceRegistry_SetFailure(t *testing.T) {
	registry, source := setupRegistryTest()
	source.SubmitApprovalFunc = func(ctx context.Context, identity string, chainID int64, token, spender string, value *big.Int) error {
		return errors.New("rejected")
	}

	_, err := registry.Set(context.Background(), 1, "USDC", "10")
	if kind := nexuserr.KindOf(err); kind != nexuserr.KindExecution {
		t.Errorf("expected execution kind, got %v", err)
	}
	if len(registry.Entries()[1]) != 0 {
		t.Error("expected no cached entry after a failed approval")
	}
}

func keyFor(chainID int64, token string) entities.AllowanceKey {
	return entities.AllowanceKey{ChainID: chainID, Token: token}
}

func TestAllowanceRegistry_SameKeyOrder(t *testing.T) {
	registry, source := setupRegistryTest()
	ctx := context.Background()

	// the first submission is the slowest; it must still land first
	source.SubmitApprovalFunc = func(ctx context.Context, identity string, chainID int64, token, spender string, value *big.Int) error {
		if value.Int64() == 1 {
			time.Sleep(30 * time.Millisecond)
		}
		return nil
	}

	var wg sync.WaitGroup
	first := registry.issue(keyFor(1, "USDC"))
	second := registry.issue(keyFor(1, "USDC"))

	var order []int64
	var mu sync.Mutex
	record := func(v int64) func(context.Context) error {
		return func(ctx context.Context) error {
			if err := source.SubmitApproval(ctx, testutil.AliceAddress, 1, "USDC", testutil.SpenderAddress, big.NewInt(v)); err != nil {
				return err
			}
			mu.Lock()
			order = append(order, v)
			mu.Unlock()
			return nil
		}
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = second.run(ctx, record(2))
	}()
	go func() {
		defer wg.Done()
		_ = first.run(ctx, record(1))
	}()
	wg.Wait()

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("expected issue order [1 2], got %v", order)
	}
}

func TestAllowanceRegistry_CancelledWaiterKeepsOrder(t *testing.T) {
	registry, _ := setupRegistryTest()
	key := keyFor(1, "USDC")

	first := registry.issue(key)
	second := registry.issue(key)
	third := registry.issue(key)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := second.run(ctx, func(context.Context) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	ran := make(chan struct{})
	go func() {
		_ = third.run(context.Background(), func(context.Context) error {
			close(ran)
			return nil
		})
	}()

	select {
	case <-ran:
		t.Fatal("third ran before first released")
	case <-time.After(20 * time.Millisecond):
	}

	_ = first.run(context.Background(), func(context.Context) error { return nil })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("third never ran")
	}
}

func TestAllowanceRegistry_CloseDiscardsResults(t *testing.T) {
	registry, _ := setupRegistryTest()
	registry.Close()

	if _, err := registry.Set(context.Background(), 1, "USDC", "10"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(registry.Entries()) != 0 {
		t.Error("expected results after close to be discarded")
	}
}
