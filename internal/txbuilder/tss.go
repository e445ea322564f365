package txbuilder

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vultisig/mobile-tss-lib/tss"
)

// FromKeysign turns a keysign ceremony response into a 65-byte r || s || v
// signature with v in {0, 1}.
func FromKeysign(resp tss.KeysignResponse) ([]byte, error) {
	r, err := decodeScalar("R", resp.R)
	if err != nil {
		return nil, err
	}
	s, err := decodeScalar("S", resp.S)
	if err != nil {
		return nil, err
	}
	v, err := hex.DecodeString(strings.TrimPrefix(resp.RecoveryID, "0x"))
	if err != nil || len(v) != 1 {
		return nil, NewSigningError("invalid recovery id %q", resp.RecoveryID)
	}
	if v[0] > 1 {
		return nil, NewSigningError("recovery id out of range: %d", v[0])
	}

	sig := make([]byte, 0, crypto.SignatureLength)
	sig = append(sig, r...)
	sig = append(sig, s...)
	sig = append(sig, v[0])
	return sig, nil
}

// ValidateECDSA checks that sig is a well-formed recoverable signature over
// digest and, when pubKey is given, that it recovers to that key.
func ValidateECDSA(digest, sig, pubKey []byte) error {
	if len(digest) != crypto.DigestLength {
		return NewSigningError("invalid digest length: expected %d bytes, got %d", crypto.DigestLength, len(digest))
	}
	if len(sig) != crypto.SignatureLength {
		return NewSigningError("invalid signature length: expected %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	if sig[64] > 1 {
		return NewSigningError("invalid recovery id: %d", sig[64])
	}
	recovered, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return NewSigningError("signature is not recoverable: %v", err)
	}
	if len(pubKey) == 0 {
		return nil
	}

	var expected []byte
	switch len(pubKey) {
	case 33:
		pk, er := crypto.DecompressPubkey(pubKey)
		if er != nil {
			return NewSigningError("invalid public key: %v", er)
		}
		expected = crypto.FromECDSAPub(pk)
	case 65:
		expected = pubKey
	default:
		return NewSigningError("invalid public key length: %d", len(pubKey))
	}
	if !bytes.Equal(crypto.FromECDSAPub(recovered), expected) {
		return NewSigningError("signature does not recover to public key %x", pubKey)
	}
	return nil
}

func decodeScalar(name, h string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(h, "0x"))
	if err != nil {
		return nil, NewSigningError("invalid %s: %v", name, err)
	}
	if len(b) == 0 || len(b) > 32 {
		return nil, NewSigningError("invalid %s length: %d", name, len(b))
	}
	return append(make([]byte, 32-len(b)), b...), nil
}

// FormatKeysign is the inverse of FromKeysign, used when a locally produced
// signature is handed to code that expects a keysign response.
func FormatKeysign(sig []byte) (tss.KeysignResponse, error) {
	if len(sig) != crypto.SignatureLength {
		return tss.KeysignResponse{}, fmt.Errorf("invalid signature length: %d", len(sig))
	}
	return tss.KeysignResponse{
		R:          hex.EncodeToString(sig[:32]),
		S:          hex.EncodeToString(sig[32:64]),
		RecoveryID: hex.EncodeToString(sig[64:]),
	}, nil
}

// FromKeysignEdDSA turns an EdDSA keysign response into the 64-byte R || S
// wire signature. The ceremony reports both scalars big-endian while ed25519
// encodes them little-endian.
func FromKeysignEdDSA(resp tss.KeysignResponse) ([]byte, error) {
	r, err := decodeScalar("R", resp.R)
	if err != nil {
		return nil, err
	}
	s, err := decodeScalar("S", resp.S)
	if err != nil {
		return nil, err
	}
	sig := make([]byte, 0, 64)
	sig = append(sig, reversed(r)...)
	sig = append(sig, reversed(s)...)
	return sig, nil
}

// FormatKeysignEdDSA is the inverse of FromKeysignEdDSA.
func FormatKeysignEdDSA(sig []byte) (tss.KeysignResponse, error) {
	if len(sig) != 64 {
		return tss.KeysignResponse{}, fmt.Errorf("invalid signature length: %d", len(sig))
	}
	return tss.KeysignResponse{
		R: hex.EncodeToString(reversed(sig[:32])),
		S: hex.EncodeToString(reversed(sig[32:])),
	}, nil
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}
