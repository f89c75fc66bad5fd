package ethereum

import (
	"testing"

	"github.com/bimakw/nexus-orchestrator/internal/config"
	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
)

func clientsFor(ids ...int64) *MultiChainClient {
	m := &MultiChainClient{clients: make(map[int64]*Client, len(ids))}
	for _, id := range ids {
		m.clients[id] = &Client{}
	}
	return m
}

func equalChains(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMultiChainClient_Covering(t *testing.T) {
	tests := []struct {
		name        string
		dialed      []int64
		order       []int64
		wantCovered []int64
		wantMissing []int64
	}{
		{
			name:        "keeps the default walk order",
			dialed:      []int64{8453, 10, 42161, 137, 1},
			order:       entities.DefaultChainOrder,
			wantCovered: []int64{1, 137, 42161, 10, 8453},
		},
		{
			name:        "keeps a configured order",
			dialed:      []int64{1, 10, 137},
			order:       []int64{137, 10, 1},
			wantCovered: []int64{137, 10, 1},
		},
		{
			name:        "reports chains without endpoint",
			dialed:      []int64{1, 42161},
			order:       entities.DefaultChainOrder,
			wantCovered: []int64{1, 42161},
			wantMissing: []int64{137, 10, 8453},
		},
		{
			name:        "ignores endpoints outside the order",
			dialed:      []int64{1, 56},
			order:       []int64{1},
			wantCovered: []int64{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			covered, missing := clientsFor(tt.dialed...).Covering(tt.order)
			if !equalChains(covered, tt.wantCovered) {
				t.Errorf("covered = %v, want %v", covered, tt.wantCovered)
			}
			if !equalChains(missing, tt.wantMissing) {
				t.Errorf("missing = %v, want %v", missing, tt.wantMissing)
			}
		})
	}
}

func TestDialAll_NoEndpoints(t *testing.T) {
	if _, err := DialAll(config.EthereumConfig{}, nil); err == nil {
		t.Error("expected error without endpoints")
	}
}
