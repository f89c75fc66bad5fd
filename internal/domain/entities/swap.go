package entities

import "math/big"

// SwapMode distinguishes which side of a swap the caller fixes
type SwapMode string

const (
	SwapExactIn  SwapMode = "exact_in"
	SwapExactOut SwapMode = "exact_out"
)

// SwapLeg is a (token, chain) pair on one side of a swap
type SwapLeg struct {
	Token   string
	ChainID int64
}

// SwapOrder is a fully priced swap ready to settle
type SwapOrder struct {
	Identity     string
	Mode         SwapMode
	From         SwapLeg
	To           SwapLeg
	InputAmount  *big.Int
	OutputAmount *big.Int
}
