package utxo

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/vultisig/app-recovery/internal/txbuilder"
	"github.com/vultisig/app-recovery/internal/utxo/address"
)

// RequiredSignatures is the m of the m-of-3 wallet script.
const RequiredSignatures = 2

// roles names the wallet keys in script order.
var roles = []string{txbuilder.RoleUser, txbuilder.RoleBackup, txbuilder.RolePlatform}

// Wallet is a 2-of-3 multisig wallet: user, backup and platform keys in that
// order in the script.
type Wallet struct {
	params  *ChainParams
	keys    [][]byte
	script  []byte
	address address.UTXOAddress
}

// NewWallet builds the wallet script from three compressed public keys.
func NewWallet(params *ChainParams, user, backup, platform []byte) (*Wallet, error) {
	keys := [][]byte{user, backup, platform}
	pubs := make([]*btcutil.AddressPubKey, 0, len(keys))
	for i, k := range keys {
		if _, err := btcec.ParsePubKey(k); err != nil || len(k) != btcec.PubKeyBytesLenCompressed {
			return nil, txbuilder.NewBuildError("Invalid %s public key: %x", roles[i], k)
		}
		for _, prev := range keys[:i] {
			if bytes.Equal(prev, k) {
				return nil, txbuilder.NewBuildError("Repeated public key: %x", k)
			}
		}
		// the network only matters for address encoding, which is unused here
		pub, err := btcutil.NewAddressPubKey(k, &chaincfg.MainNetParams)
		if err != nil {
			return nil, txbuilder.NewBuildError("Invalid %s public key: %x", roles[i], k)
		}
		pubs = append(pubs, pub)
	}

	script, err := txscript.MultiSigScript(pubs, RequiredSignatures)
	if err != nil {
		return nil, txbuilder.NewBuildError("failed to build multisig script: %v", err)
	}
	addr, err := address.NewFromScript(params.Chain, script)
	if err != nil {
		return nil, txbuilder.NewBuildError("failed to derive multisig address: %v", err)
	}
	return &Wallet{params: params, keys: keys, script: script, address: addr}, nil
}

// NewWalletFromHex is NewWallet over hex-encoded keys.
func NewWalletFromHex(params *ChainParams, user, backup, platform string) (*Wallet, error) {
	keys := make([][]byte, 0, 3)
	for _, h := range []string{user, backup, platform} {
		k, err := hex.DecodeString(h)
		if err != nil {
			return nil, txbuilder.NewBuildError("Invalid public key: %s", h)
		}
		keys = append(keys, k)
	}
	return NewWallet(params, keys[0], keys[1], keys[2])
}

// walletFromScript recovers the wallet a PSBT input spends from.
func walletFromScript(params *ChainParams, script []byte) (*Wallet, error) {
	pushes, err := txscript.PushedData(script)
	if err != nil {
		return nil, err
	}
	var keys [][]byte
	for _, p := range pushes {
		if len(p) == btcec.PubKeyBytesLenCompressed {
			keys = append(keys, p)
		}
	}
	if len(keys) != 3 {
		return nil, fmt.Errorf("expected a 2-of-3 script, found %d keys", len(keys))
	}
	w, err := NewWallet(params, keys[0], keys[1], keys[2])
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(w.script, script) {
		return nil, fmt.Errorf("script is not a 2-of-3 multisig")
	}
	return w, nil
}

func (w *Wallet) Address() address.UTXOAddress { return w.address }
func (w *Wallet) Script() []byte               { return w.script }

func (w *Wallet) PkScript() ([]byte, error) {
	return w.address.PayToAddrScript()
}

// role returns the role of pub, or false when pub is not a wallet key.
func (w *Wallet) role(pub []byte) (string, bool) {
	for i, k := range w.keys {
		if bytes.Equal(k, pub) {
			return roles[i], true
		}
	}
	return "", false
}
