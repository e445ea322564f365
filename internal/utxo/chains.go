package utxo

import (
	"fmt"

	"github.com/vultisig/vultisig-go/common"
)

// ChainParams are the per-chain settings of the multisig builder.
type ChainParams struct {
	Chain common.Chain
	// Segwit selects P2WSH inputs; otherwise inputs are legacy P2SH.
	Segwit    bool
	DustLimit int64
	// Blockchair path segment, e.g. "bitcoin".
	ExplorerPath string
}

var (
	Bitcoin = &ChainParams{
		Chain:        common.Bitcoin,
		Segwit:       true,
		DustLimit:    546,
		ExplorerPath: "bitcoin",
	}
	Litecoin = &ChainParams{
		Chain:        common.Litecoin,
		Segwit:       true,
		DustLimit:    5460,
		ExplorerPath: "litecoin",
	}
	// Dogecoin keeps change of at least 1 DOGE to avoid the spam rules.
	Dogecoin = &ChainParams{
		Chain:        common.Dogecoin,
		Segwit:       false,
		DustLimit:    100000000,
		ExplorerPath: "dogecoin",
	}
)

func ParamsForChain(chain common.Chain) (*ChainParams, error) {
	switch chain {
	case common.Bitcoin:
		return Bitcoin, nil
	case common.Litecoin:
		return Litecoin, nil
	case common.Dogecoin:
		return Dogecoin, nil
	default:
		return nil, fmt.Errorf("unsupported UTXO chain: %s", chain)
	}
}
