// Package keypair wraps secp256k1 and ed25519 key material: parsing the formats
// recovery inputs come in, deriving chain addresses and signing digests.
package keypair

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

type Curve string

const (
	CurveSecp256k1 Curve = "secp256k1"
	CurveEd25519   Curve = "ed25519"
)

// KeyPair is the curve-independent view used by signing coordinators.
type KeyPair interface {
	Curve() Curve
	PublicKey() []byte
	HasPrivateKey() bool
}

var errMissingPrivateKey = errors.New("key pair has no private key")

// IsExtendedPrivate reports whether s looks like a BIP32 private key.
func IsExtendedPrivate(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "xprv") || strings.HasPrefix(s, "tprv")
}

// IsExtendedPublic reports whether s looks like a BIP32 public key.
func IsExtendedPublic(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "xpub") || strings.HasPrefix(s, "tpub")
}

// Parse detects the format of a secp256k1 key: xprv/xpub, raw private key hex,
// compressed or uncompressed public key hex, or a BIP39 mnemonic.
func Parse(material string) (*Secp256k1, error) {
	s := strings.TrimSpace(material)
	switch {
	case s == "":
		return nil, fmt.Errorf("empty key material")
	case IsExtendedPrivate(s), IsExtendedPublic(s):
		return FromExtendedKey(s)
	case strings.Contains(s, " "):
		return FromMnemonic(s, "", "")
	}

	raw := strings.TrimPrefix(s, "0x")
	if _, err := hex.DecodeString(raw); err != nil {
		return nil, fmt.Errorf("unrecognized key format")
	}
	switch len(raw) {
	case 64:
		return FromPrivateKeyHex(raw)
	case 66, 130:
		return FromPublicKeyHex(raw)
	default:
		return nil, fmt.Errorf("unrecognized key length: %d hex chars", len(raw))
	}
}
