package evm

import (
	"encoding/hex"
	"math/big"
	"strings"

	ecommon "github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/vultisig/app-recovery/internal/txbuilder"
)

// rawTx is a decoded legacy transaction. Unsigned payloads carry the EIP-155
// signing fields (V = chain id, R = S = 0); signed ones carry a real signature.
type rawTx struct {
	legacy  etypes.LegacyTx
	chainID *big.Int
	sig     []byte
}

func (r *rawTx) signed() bool { return len(r.sig) != 0 }

// DecodeHex decodes a 0x-prefixed or bare hex transaction.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, txbuilder.NewInvalidTransactionError("There was error in decoding the hex string", err)
	}
	return b, nil
}

func decodeRaw(raw []byte) (*rawTx, error) {
	if len(raw) == 0 {
		return nil, txbuilder.NewInvalidTransactionError("Raw transaction is empty", nil)
	}
	var legacy etypes.LegacyTx
	if err := rlp.DecodeBytes(raw, &legacy); err != nil {
		return nil, txbuilder.NewInvalidTransactionError("failed to decode legacy transaction", err)
	}
	if legacy.V == nil || legacy.R == nil || legacy.S == nil || legacy.GasPrice == nil || legacy.Value == nil {
		return nil, txbuilder.NewInvalidTransactionError("incomplete legacy transaction", nil)
	}

	res := &rawTx{}
	if legacy.R.Sign() == 0 && legacy.S.Sign() == 0 {
		res.chainID = new(big.Int).Set(legacy.V)
	} else {
		if legacy.R.BitLen() > 256 || legacy.S.BitLen() > 256 {
			return nil, txbuilder.NewInvalidTransactionError("signature R or S exceeds 32 bytes", nil)
		}
		// EIP-155: V = chainId*2 + 35 + recovery id
		if legacy.V.Cmp(big.NewInt(35)) < 0 {
			return nil, txbuilder.NewInvalidTransactionError("transaction is not replay protected", nil)
		}
		chainID, recID := new(big.Int).DivMod(new(big.Int).Sub(legacy.V, big.NewInt(35)), big.NewInt(2), new(big.Int))
		if chainID.Sign() == 0 {
			return nil, txbuilder.NewInvalidTransactionError("Invalid signature V: "+legacy.V.String(), nil)
		}
		res.chainID = chainID
		res.sig = signatureFromVRS(legacy.R, legacy.S, byte(recID.Uint64()))
	}
	legacy.V, legacy.R, legacy.S = nil, nil, nil
	res.legacy = legacy
	return res, nil
}

// encodeUnsigned is the EIP-155 signing payload. Its keccak256 is the digest
// the sender signs.
func encodeUnsigned(legacy etypes.LegacyTx, chainID *big.Int) ([]byte, error) {
	legacy.V = new(big.Int).Set(chainID)
	legacy.R = new(big.Int)
	legacy.S = new(big.Int)
	b, err := rlp.EncodeToBytes(&legacy)
	if err != nil {
		return nil, txbuilder.NewInvalidTransactionError("failed to encode transaction", err)
	}
	return b, nil
}

func signedTx(legacy etypes.LegacyTx, chainID *big.Int, sig []byte) (*etypes.Transaction, error) {
	tx, err := etypes.NewTx(&legacy).WithSignature(etypes.NewEIP155Signer(chainID), sig)
	if err != nil {
		return nil, txbuilder.NewSigningError("failed to apply signature: %v", err)
	}
	return tx, nil
}

func signingHash(legacy etypes.LegacyTx, chainID *big.Int) ecommon.Hash {
	return etypes.NewEIP155Signer(chainID).Hash(etypes.NewTx(&legacy))
}

// signatureFromVRS expects R and S already checked to fit 32 bytes.
func signatureFromVRS(r, s *big.Int, recID byte) []byte {
	sig := make([]byte, 65)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:64])
	sig[64] = recID
	return sig
}
