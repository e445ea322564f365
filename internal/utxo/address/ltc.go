package address

import (
	"crypto/sha256"

	ltcchaincfg "github.com/ltcsuite/ltcd/chaincfg"
	"github.com/ltcsuite/ltcd/ltcutil"
	ltctxscript "github.com/ltcsuite/ltcd/txscript"
)

// LTCAddress wraps a ltcutil.Address to implement UTXOAddress.
type LTCAddress struct {
	addr ltcutil.Address
}

func NewLTCAddress(addrStr string) (*LTCAddress, error) {
	addr, err := ltcutil.DecodeAddress(addrStr, &ltcchaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	return &LTCAddress{addr: addr}, nil
}

// NewLTCAddressFromScript returns the P2WSH address of a witness script.
func NewLTCAddressFromScript(script []byte) (*LTCAddress, error) {
	h := sha256.Sum256(script)
	addr, err := ltcutil.NewAddressWitnessScriptHash(h[:], &ltcchaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	return &LTCAddress{addr: addr}, nil
}

func NewLTCAddressFromPkScript(pkScript []byte) (*LTCAddress, error) {
	_, addrs, _, err := ltctxscript.ExtractPkScriptAddrs(pkScript, &ltcchaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	if len(addrs) != 1 {
		return nil, errNoSingleAddress
	}
	return &LTCAddress{addr: addrs[0]}, nil
}

func (a *LTCAddress) String() string        { return a.addr.String() }
func (a *LTCAddress) ScriptAddress() []byte { return a.addr.ScriptAddress() }
func (a *LTCAddress) PayToAddrScript() ([]byte, error) {
	return ltctxscript.PayToAddrScript(a.addr)
}

// Native returns the underlying ltcutil.Address.
func (a *LTCAddress) Native() ltcutil.Address { return a.addr }
