// Package amount converts token amounts between integer base units and
// human-readable decimal strings.
package amount

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// DisplayDigits is the maximum number of fractional digits Format keeps.
const DisplayDigits = 4

// MaxUint256 is 2^256 - 1, the largest ERC-20 amount.
var MaxUint256 = new(uint256.Int).SetAllOne().ToBig()

// Format renders amount (base units) as a decimal string truncated to
// DisplayDigits fractional digits with trailing zeros removed. The result is
// display-only; the raw amount stays authoritative.
func Format(amount *big.Int, decimals int) string {
	if amount == nil || amount.Sign() == 0 {
		return "0"
	}
	if decimals <= 0 {
		return amount.String()
	}

	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	integerPart, fractionalPart := new(big.Int).QuoRem(amount, divisor, new(big.Int))

	frac := fractionalPart.String()
	if len(frac) < decimals {
		frac = strings.Repeat("0", decimals-len(frac)) + frac
	}
	if len(frac) > DisplayDigits {
		frac = frac[:DisplayDigits]
	}
	frac = strings.TrimRight(frac, "0")

	if frac == "" {
		return integerPart.String()
	}
	return integerPart.String() + "." + frac
}

// FormatUint64 is Format for small amounts.
func FormatUint64(amount uint64, decimals int) string {
	return Format(new(big.Int).SetUint64(amount), decimals)
}

// Parse converts a human-readable decimal string such as "99.95" into base
// units. Precision beyond decimals is rejected rather than rounded.
func Parse(value string, decimals int) (*big.Int, error) {
	if decimals < 0 {
		return nil, fmt.Errorf("decimals must be >= 0")
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("invalid decimal amount %q: %w", value, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount must be non-negative")
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("decimal precision exceeds token decimals (%d)", decimals)
	}
	return checkBounds(scaled.BigInt())
}

// ParseBaseUnits parses an integer base-unit string and checks it fits in 256 bits.
func ParseBaseUnits(value string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("amount %q must be an integer string in base units", value)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("amount must be non-negative")
	}
	return checkBounds(n)
}

func checkBounds(n *big.Int) (*big.Int, error) {
	if _, overflow := uint256.FromBig(n); overflow {
		return nil, fmt.Errorf("amount exceeds 256 bits")
	}
	return n, nil
}
