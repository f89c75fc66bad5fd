package entities

import "strings"

// Token is immutable reference data for an asset the orchestrator knows about
type Token struct {
	Symbol   string
	Name     string
	Decimals int
}

// NativeSymbol is the gas token on every supported EVM chain
const NativeSymbol = "ETH"

// DefaultTokens is the catalogue refreshed on every balance refresh, in display order
var DefaultTokens = []Token{
	{Symbol: "USDC", Name: "USD Coin", Decimals: 6},
	{Symbol: "USDT", Name: "Tether", Decimals: 6},
	{Symbol: "ETH", Name: "Ethereum", Decimals: 18},
	{Symbol: "WBTC", Name: "Wrapped Bitcoin", Decimals: 8},
	{Symbol: "DAI", Name: "Dai", Decimals: 18},
}

// DefaultBridgeTokens is the allow-list of core bridgeable tokens
var DefaultBridgeTokens = []string{"USDC", "USDT", "ETH"}

// LookupToken returns the catalogue entry for symbol (case-insensitive)
func LookupToken(symbol string) (Token, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, t := range DefaultTokens {
		if t.Symbol == symbol {
			return t, true
		}
	}
	return Token{}, false
}

// TokenDecimals returns the token's decimals, or fallback for unknown symbols
func TokenDecimals(symbol string, fallback int) int {
	if t, ok := LookupToken(symbol); ok {
		return t.Decimals
	}
	return fallback
}
