package entities

import "math/big"

// UnlimitedThreshold is the allowance above which an approval counts as unlimited
var UnlimitedThreshold = new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil)

// Allowance is the spending permission granted to Spender for Token on one chain
type Allowance struct {
	Token       string
	Spender     string
	Amount      *big.Int
	IsUnlimited bool
}

// NewAllowance builds an allowance with IsUnlimited derived from amount
func NewAllowance(token, spender string, amount *big.Int) Allowance {
	if amount == nil {
		amount = new(big.Int)
	}
	return Allowance{
		Token:       token,
		Spender:     spender,
		Amount:      amount,
		IsUnlimited: amount.Cmp(UnlimitedThreshold) > 0,
	}
}

// AllowanceKey identifies a registry entry
type AllowanceKey struct {
	ChainID int64
	Token   string
}
