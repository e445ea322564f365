package address

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// DogeMainNetParams defines Dogecoin mainnet parameters.
var DogeMainNetParams = chaincfg.Params{
	Name:             "mainnet",
	Net:              0xc0c0c0c0,
	PubKeyHashAddrID: 0x1E, // D prefix
	ScriptHashAddrID: 0x16, // 9 or A prefix
}

// DOGEAddress wraps a btcutil.Address to implement UTXOAddress for Dogecoin.
type DOGEAddress struct {
	addr btcutil.Address
}

func NewDOGEAddress(addrStr string) (*DOGEAddress, error) {
	addr, err := btcutil.DecodeAddress(addrStr, &DogeMainNetParams)
	if err != nil {
		return nil, err
	}
	return &DOGEAddress{addr: addr}, nil
}

// NewDOGEAddressFromScript returns the P2SH address of a redeem script.
// Dogecoin has no SegWit.
func NewDOGEAddressFromScript(script []byte) (*DOGEAddress, error) {
	addr, err := btcutil.NewAddressScriptHash(script, &DogeMainNetParams)
	if err != nil {
		return nil, err
	}
	return &DOGEAddress{addr: addr}, nil
}

func NewDOGEAddressFromPkScript(pkScript []byte) (*DOGEAddress, error) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript, &DogeMainNetParams)
	if err != nil {
		return nil, err
	}
	if len(addrs) != 1 {
		return nil, errNoSingleAddress
	}
	return &DOGEAddress{addr: addrs[0]}, nil
}

func (a *DOGEAddress) String() string        { return a.addr.String() }
func (a *DOGEAddress) ScriptAddress() []byte { return a.addr.ScriptAddress() }
func (a *DOGEAddress) PayToAddrScript() ([]byte, error) {
	return txscript.PayToAddrScript(a.addr)
}

// Native returns the underlying btcutil.Address.
func (a *DOGEAddress) Native() btcutil.Address { return a.addr }
