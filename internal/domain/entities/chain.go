package entities

import "fmt"

// ChainInfo is display metadata for a chain
type ChainInfo struct {
	ID      int64
	Name    string
	Testnet bool
}

var chainRegistry = map[int64]ChainInfo{
	1:        {ID: 1, Name: "Ethereum"},
	137:      {ID: 137, Name: "Polygon"},
	42161:    {ID: 42161, Name: "Arbitrum"},
	10:       {ID: 10, Name: "Optimism"},
	8453:     {ID: 8453, Name: "Base"},
	11155111: {ID: 11155111, Name: "Sepolia", Testnet: true},
	80001:    {ID: 80001, Name: "Mumbai", Testnet: true},
	421614:   {ID: 421614, Name: "Arb Sepolia", Testnet: true},
	11155420: {ID: 11155420, Name: "OP Sepolia", Testnet: true},
	84532:    {ID: 84532, Name: "Base Sepolia", Testnet: true},
}

// DefaultChainOrder is the fixed order used to walk source chains
var DefaultChainOrder = []int64{1, 137, 42161, 10, 8453}

// ChainName returns the display name for chainID, "Chain <id>" when unknown
func ChainName(chainID int64) string {
	if info, ok := chainRegistry[chainID]; ok {
		return info.Name
	}
	return fmt.Sprintf("Chain %d", chainID)
}

// LookupChain returns registry metadata for chainID
func LookupChain(chainID int64) (ChainInfo, bool) {
	info, ok := chainRegistry[chainID]
	return info, ok
}
