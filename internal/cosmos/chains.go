package cosmos

import (
	"fmt"

	"github.com/vultisig/vultisig-go/common"
)

// ChainConfig holds the per-chain constants of a Cosmos-SDK network.
type ChainConfig struct {
	Chain     common.Chain
	ChainID   string
	HRP       string
	Denom     string
	FeeAmount string
	GasLimit  uint64
	// Staking is false on chains without the x/staking module.
	Staking bool
}

func (c ChainConfig) ValoperHRP() string { return c.HRP + "valoper" }

var (
	GaiaConfig = ChainConfig{
		Chain:     common.GaiaChain,
		ChainID:   "cosmoshub-4",
		HRP:       "cosmos",
		Denom:     "uatom",
		FeeAmount: "7500",
		GasLimit:  300000,
		Staking:   true,
	}

	THORChainConfig = ChainConfig{
		Chain:     common.THORChain,
		ChainID:   "thorchain-1",
		HRP:       "thor",
		Denom:     "rune",
		FeeAmount: "2000000",
		GasLimit:  4000000000,
	}
)

func ConfigForChain(chain common.Chain) (ChainConfig, error) {
	switch chain {
	case common.GaiaChain:
		return GaiaConfig, nil
	case common.THORChain:
		return THORChainConfig, nil
	default:
		return ChainConfig{}, fmt.Errorf("cosmos: unsupported chain %s", chain)
	}
}
