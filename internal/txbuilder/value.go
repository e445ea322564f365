package txbuilder

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// MaxValueDigits bounds numeric inputs to what fits a uint256.
const MaxValueDigits = 78

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ParseValue parses a non-negative integer amount given in base units.
func ParseValue(v string) (*big.Int, error) {
	if len(v) > MaxValueDigits {
		return nil, NewBuildError("Invalid value: %s exceeds %d digits", v, MaxValueDigits)
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, NewBuildError("Invalid value: %s", v)
	}
	if d.IsNegative() {
		return nil, NewBuildError("Value cannot be below less than zero")
	}
	if !d.IsInteger() {
		return nil, NewBuildError("Invalid value: %s is not an integer", v)
	}
	n := d.BigInt()
	if n.Cmp(maxUint256) > 0 {
		return nil, NewBuildError("Invalid value: %s exceeds maximum precision", v)
	}
	return n, nil
}

// ParseUint64 is ParseValue restricted to 64 bits, for counters and gas.
func ParseUint64(field, v string) (uint64, error) {
	n, err := ParseValue(v)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, NewBuildError("Invalid %s: %s", field, v)
	}
	return n.Uint64(), nil
}
