package ethereum

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
)

// polygonChainID is the one supported chain whose gas token is not ETH
const polygonChainID = 137

// tokenAddresses maps chain ID to ERC-20 contract addresses by symbol
var tokenAddresses = map[int64]map[string]common.Address{
	1: {
		"USDC": common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		"USDT": common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"),
		"WBTC": common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"),
		"DAI":  common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
	},
	137: {
		"USDC": common.HexToAddress("0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"),
		"USDT": common.HexToAddress("0xc2132D05D31c914a87C6611C10748AEb04B58e8F"),
		"ETH":  common.HexToAddress("0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619"),
		"WBTC": common.HexToAddress("0x1BFD67037B42Cf73acF2047067bd4F2C47D9BfD6"),
		"DAI":  common.HexToAddress("0x8f3Cf7ad23Cd3CaDbD9735AFf958023239c6A063"),
	},
	42161: {
		"USDC": common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"),
		"USDT": common.HexToAddress("0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9"),
		"WBTC": common.HexToAddress("0x2f2a2543B76A4166549F7aaB2e75Bef0aefC5B0f"),
		"DAI":  common.HexToAddress("0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1"),
	},
	10: {
		"USDC": common.HexToAddress("0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"),
		"USDT": common.HexToAddress("0x94b008aA00579c1307B0EF2c499aD98a8ce58e58"),
		"WBTC": common.HexToAddress("0x68f180fcCe6836688e9084f035309E29Bf0A2095"),
		"DAI":  common.HexToAddress("0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1"),
	},
	8453: {
		"USDC": common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		"DAI":  common.HexToAddress("0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb"),
	},
}

// tokenLocation describes how to read a token on a chain
type tokenLocation struct {
	native   bool
	contract common.Address
}

// locateToken resolves symbol on chainID. ok is false when the chain does not carry it.
func locateToken(chainID int64, symbol string) (tokenLocation, bool) {
	symbol = strings.ToUpper(symbol)
	if symbol == entities.NativeSymbol && chainID != polygonChainID {
		return tokenLocation{native: true}, true
	}
	addr, ok := tokenAddresses[chainID][symbol]
	if !ok {
		return tokenLocation{}, false
	}
	return tokenLocation{contract: addr}, true
}

// TokenAddress returns the ERC-20 contract for symbol on chainID
func TokenAddress(chainID int64, symbol string) (common.Address, bool) {
	loc, ok := locateToken(chainID, symbol)
	if !ok || loc.native {
		return common.Address{}, false
	}
	return loc.contract, true
}
