package services

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/bimakw/nexus-orchestrator/internal/domain/amount"
	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
	"github.com/bimakw/nexus-orchestrator/internal/testutil"
)

func TestNewIntentDTO(t *testing.T) {
	intent := testutil.CreateTestIntent()
	dto := NewIntentDTO(intent)

	if dto.Amount != "100000000" {
		t.Errorf("expected raw amount, got %s", dto.Amount)
	}
	if dto.Destination.FormattedAmount != "99.95" {
		t.Errorf("expected 99.95, got %s", dto.Destination.FormattedAmount)
	}
	if dto.Fees.FormattedBridgeFee != "0.05" {
		t.Errorf("expected 0.05, got %s", dto.Fees.FormattedBridgeFee)
	}
	if dto.Fees.FormattedGasFee != "0.001 ETH" {
		t.Errorf("expected 0.001 ETH, got %s", dto.Fees.FormattedGasFee)
	}
	if dto.Fees.FormattedTotalFee != "0.05 + 0.001 ETH" {
		t.Errorf("unexpected total fee %s", dto.Fees.FormattedTotalFee)
	}
	if dto.Shortfall != "" {
		t.Errorf("expected no shortfall, got %s", dto.Shortfall)
	}
	if len(dto.Sources) != 2 || dto.Sources[0].FormattedAmount != "60" {
		t.Errorf("unexpected sources: %+v", dto.Sources)
	}

	intent.Shortfall = big.NewInt(7)
	if got := NewIntentDTO(intent).Shortfall; got != "7" {
		t.Errorf("expected shortfall 7, got %s", got)
	}
}

func TestNewAllowanceDTO(t *testing.T) {
	tests := []struct {
		name      string
		allowance entities.Allowance
		want      string
	}{
		{
			name:      "unlimited",
			allowance: entities.NewAllowance("USDC", testutil.SpenderAddress, amount.MaxUint256),
			want:      "Unlimited",
		},
		{
			name:      "limited",
			allowance: entities.NewAllowance("USDC", testutil.SpenderAddress, big.NewInt(1_500_000)),
			want:      "1.5",
		},
		{
			name:      "zero",
			allowance: entities.NewAllowance("DAI", testutil.SpenderAddress, new(big.Int)),
			want:      "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dto := NewAllowanceDTO(1, tt.allowance)
			if dto.FormattedAllowance != tt.want {
				t.Errorf("expected %s, got %s", tt.want, dto.FormattedAllowance)
			}
		})
	}
}

func TestNewAllowanceDTOs_OrderedByChain(t *testing.T) {
	dtos := NewAllowanceDTOs(map[int64][]entities.Allowance{
		137: {entities.NewAllowance("USDC", testutil.SpenderAddress, big.NewInt(1))},
		1:   {entities.NewAllowance("USDT", testutil.SpenderAddress, big.NewInt(2))},
	})
	if len(dtos) != 2 || dtos[0].ChainID != 1 || dtos[1].ChainID != 137 {
		t.Errorf("unexpected order: %+v", dtos)
	}
}

func TestNewBalancesDTO_Nil(t *testing.T) {
	dto := NewBalancesDTO(nil)
	data, err := json.Marshal(dto)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"unified":{},"bridge":{},"swap":{},"updatedAt":""}` {
		t.Errorf("unexpected json %s", data)
	}
}

func TestNewOperationResultDTO(t *testing.T) {
	dto := NewOperationResultDTO(OperationResult{Success: false, Error: "nope"}, nil)
	if dto.Events == nil {
		t.Error("expected empty events slice")
	}
	if dto.OutputAmount != "" {
		t.Errorf("expected empty output, got %s", dto.OutputAmount)
	}
}
