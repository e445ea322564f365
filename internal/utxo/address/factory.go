package address

import (
	"errors"
	"fmt"

	"github.com/vultisig/vultisig-go/common"
)

var errNoSingleAddress = errors.New("script does not pay to a single address")

// NewFromString decodes an address string for chain.
func NewFromString(chain common.Chain, addrStr string) (UTXOAddress, error) {
	switch chain {
	case common.Bitcoin:
		return NewBTCAddress(addrStr)
	case common.Litecoin:
		return NewLTCAddress(addrStr)
	case common.Dogecoin:
		return NewDOGEAddress(addrStr)
	default:
		return nil, fmt.Errorf("unsupported UTXO chain: %s", chain)
	}
}

// NewFromScript returns the multisig address of script: P2WSH on Bitcoin and
// Litecoin, P2SH on Dogecoin.
func NewFromScript(chain common.Chain, script []byte) (UTXOAddress, error) {
	switch chain {
	case common.Bitcoin:
		return NewBTCAddressFromScript(script)
	case common.Litecoin:
		return NewLTCAddressFromScript(script)
	case common.Dogecoin:
		return NewDOGEAddressFromScript(script)
	default:
		return nil, fmt.Errorf("unsupported UTXO chain: %s", chain)
	}
}

// NewFromPkScript decodes the address an output script pays to.
func NewFromPkScript(chain common.Chain, pkScript []byte) (UTXOAddress, error) {
	switch chain {
	case common.Bitcoin:
		return NewBTCAddressFromPkScript(pkScript)
	case common.Litecoin:
		return NewLTCAddressFromPkScript(pkScript)
	case common.Dogecoin:
		return NewDOGEAddressFromPkScript(pkScript)
	default:
		return nil, fmt.Errorf("unsupported UTXO chain: %s", chain)
	}
}
