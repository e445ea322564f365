package util

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vultisig/vultisig-go/common"
)

// NativeDecimals maps chain to native token decimals
var NativeDecimals = map[common.Chain]int32{
	common.Ethereum:  18,
	common.Arbitrum:  18,
	common.Avalanche: 18,
	common.Base:      18,
	common.Blast:     18,
	common.Optimism:  18,
	common.Polygon:   18,
	common.BscChain:  18,
	common.Bitcoin:   8,
	common.Litecoin:  8,
	common.Dogecoin:  8,
	common.Solana:    9,
	common.XRP:       6,
	common.GaiaChain: 6,
}

// GweiDecimals converts wei to Gwei.
const GweiDecimals = 9

// GetNativeDecimals returns the native token decimals for a chain
func GetNativeDecimals(chain common.Chain) (int32, error) {
	decimals, ok := NativeDecimals[chain]
	if !ok {
		return 0, fmt.Errorf("unknown chain: %s", chain.String())
	}
	return decimals, nil
}

// ToBaseUnits converts a human-readable amount to base units, truncating
// digits beyond decimals. e.g., "10" USDC (6 decimals) -> "10000000"
func ToBaseUnits(amount string, decimals int32) (*big.Int, error) {
	if strings.TrimSpace(amount) == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}
	return d.Shift(decimals).Truncate(0).BigInt(), nil
}

// FromBaseUnits converts base units to a human-readable amount
// e.g., "10000000" with 6 decimals -> "10"
func FromBaseUnits(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// FormatGwei renders a wei amount in Gwei.
func FormatGwei(wei *big.Int) string {
	return FromBaseUnits(wei, GweiDecimals)
}
