package keypair

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Ed25519 is a key pair on the ed25519 curve, addressed the Solana way.
type Ed25519 struct {
	priv solana.PrivateKey
	pub  solana.PublicKey
}

func (k *Ed25519) Curve() Curve        { return CurveEd25519 }
func (k *Ed25519) HasPrivateKey() bool { return len(k.priv) != 0 }
func (k *Ed25519) PublicKey() []byte   { return k.pub.Bytes() }
func (k *Ed25519) Address() solana.PublicKey {
	return k.pub
}

func (k *Ed25519) Sign(message []byte) ([]byte, error) {
	if len(k.priv) == 0 {
		return nil, errMissingPrivateKey
	}
	sig, err := k.priv.Sign(message)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	return sig[:], nil
}

func Ed25519FromBase58(privateKey string) (*Ed25519, error) {
	priv, err := solana.PrivateKeyFromBase58(privateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid ed25519 private key: %w", err)
	}
	return &Ed25519{priv: priv, pub: priv.PublicKey()}, nil
}

func Ed25519FromPublicKey(address string) (*Ed25519, error) {
	pub, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid ed25519 public key: %w", err)
	}
	return &Ed25519{pub: pub}, nil
}

func NewEd25519() (*Ed25519, error) {
	priv, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
	}
	return &Ed25519{priv: priv, pub: priv.PublicKey()}, nil
}
