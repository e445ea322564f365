package address

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// BTCAddress wraps a btcutil.Address to implement UTXOAddress.
type BTCAddress struct {
	addr btcutil.Address
}

func NewBTCAddress(addrStr string) (*BTCAddress, error) {
	addr, err := btcutil.DecodeAddress(addrStr, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	return &BTCAddress{addr: addr}, nil
}

// NewBTCAddressFromScript returns the P2WSH address of a witness script.
func NewBTCAddressFromScript(script []byte) (*BTCAddress, error) {
	h := sha256.Sum256(script)
	addr, err := btcutil.NewAddressWitnessScriptHash(h[:], &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	return &BTCAddress{addr: addr}, nil
}

// NewBTCAddressFromPkScript decodes the address an output script pays to.
func NewBTCAddressFromPkScript(pkScript []byte) (*BTCAddress, error) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	if len(addrs) != 1 {
		return nil, errNoSingleAddress
	}
	return &BTCAddress{addr: addrs[0]}, nil
}

func (a *BTCAddress) String() string        { return a.addr.String() }
func (a *BTCAddress) ScriptAddress() []byte { return a.addr.ScriptAddress() }
func (a *BTCAddress) PayToAddrScript() ([]byte, error) {
	return txscript.PayToAddrScript(a.addr)
}

// Native returns the underlying btcutil.Address.
func (a *BTCAddress) Native() btcutil.Address { return a.addr }
