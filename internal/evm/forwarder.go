package evm

import (
	"encoding/hex"
	"strings"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	proxyInitcodePrefix = "3d602d80600a3d3981f3363d3d373d3d3d363d73"
	proxyInitcodeSuffix = "5af43d82803e903d91602b57fd5bf3"
)

// ProxyInitcode is the EIP-1167 minimal proxy creation code for target.
func ProxyInitcode(target ecommon.Address) []byte {
	code, _ := hex.DecodeString(proxyInitcodePrefix + strings.ToLower(hex.EncodeToString(target.Bytes())) + proxyInitcodeSuffix)
	return code
}

// ForwarderAddress predicts a v0 forwarder created with CREATE by the wallet.
func ForwarderAddress(wallet ecommon.Address, contractCounter uint64) ecommon.Address {
	return crypto.CreateAddress(wallet, contractCounter)
}

// ForwarderSalt is the salt the v1+ factory derives from its inputs. The v4
// factory also binds the fee address.
func ForwarderSalt(version int, parent ecommon.Address, feeAddress ecommon.Address, salt [32]byte) [32]byte {
	var packed []byte
	packed = append(packed, parent.Bytes()...)
	if version >= 4 {
		packed = append(packed, feeAddress.Bytes()...)
	}
	packed = append(packed, salt[:]...)
	var res [32]byte
	copy(res[:], crypto.Keccak256(packed))
	return res
}

// ForwarderV1Address predicts a forwarder deployed by a factory with CREATE2.
func ForwarderV1Address(factory ecommon.Address, finalSalt [32]byte, implementation ecommon.Address) ecommon.Address {
	return crypto.CreateAddress2(factory, finalSalt, crypto.Keccak256(ProxyInitcode(implementation)))
}
