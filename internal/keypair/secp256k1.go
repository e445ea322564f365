package keypair

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	cosmossecp "github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

// DefaultEthPath is the BIP44 path used when a mnemonic is imported without one.
const DefaultEthPath = "m/44'/60'/0'/0/0"

// Secp256k1 is a key pair on the secp256k1 curve. The private half is optional.
type Secp256k1 struct {
	priv     *btcec.PrivateKey
	pub      *btcec.PublicKey
	extended *hdkeychain.ExtendedKey
	path     string
}

func (k *Secp256k1) Curve() Curve       { return CurveSecp256k1 }
func (k *Secp256k1) HasPrivateKey() bool { return k.priv != nil }
func (k *Secp256k1) DerivationPath() string {
	return k.path
}

// PublicKey returns the 33-byte compressed public key.
func (k *Secp256k1) PublicKey() []byte {
	return k.pub.SerializeCompressed()
}

func (k *Secp256k1) UncompressedPublicKey() []byte {
	return k.pub.SerializeUncompressed()
}

// PrivateKeyHex returns the raw private key, or an empty string for a
// public-only pair.
func (k *Secp256k1) PrivateKeyHex() string {
	if k.priv == nil {
		return ""
	}
	return hex.EncodeToString(k.priv.Serialize())
}

// ExtendedPublicKey returns the xpub when the pair came from a BIP32 key.
func (k *Secp256k1) ExtendedPublicKey() (string, error) {
	if k.extended == nil {
		return "", fmt.Errorf("key pair was not created from an extended key")
	}
	pub, err := k.extended.Neuter()
	if err != nil {
		return "", fmt.Errorf("failed to neuter extended key: %w", err)
	}
	return pub.String(), nil
}

// BTCECPrivateKey exposes the private key to script signers.
func (k *Secp256k1) BTCECPrivateKey() (*btcec.PrivateKey, error) {
	if k.priv == nil {
		return nil, errMissingPrivateKey
	}
	return k.priv, nil
}

// EthAddress is keccak256(uncompressed[1:])[12:].
func (k *Secp256k1) EthAddress() ecommon.Address {
	return crypto.PubkeyToAddress(*k.pub.ToECDSA())
}

// CanSignFor reports whether this key derives the given EVM address.
func (k *Secp256k1) CanSignFor(address ecommon.Address) bool {
	return k.EthAddress() == address
}

// CosmosAddress is bech32(hrp, ripemd160(sha256(compressed))).
func (k *Secp256k1) CosmosAddress(hrp string) (string, error) {
	pk := &cosmossecp.PubKey{Key: k.PublicKey()}
	addr, err := bech32.ConvertAndEncode(hrp, pk.Address())
	if err != nil {
		return "", fmt.Errorf("failed to encode bech32 address: %w", err)
	}
	return addr, nil
}

// PubKeyHash is hash160 of the compressed key, the payload of P2PKH/P2WPKH
// addresses and of XRP account ids.
func (k *Secp256k1) PubKeyHash() []byte {
	return btcutil.Hash160(k.PublicKey())
}

// SignRecoverable signs a 32-byte digest and returns r || s || v, v in {0,1}.
func (k *Secp256k1) SignRecoverable(digest []byte) ([]byte, error) {
	if k.priv == nil {
		return nil, errMissingPrivateKey
	}
	sig, err := crypto.Sign(digest, k.priv.ToECDSA())
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}
	return sig, nil
}

// SignDER signs a 32-byte digest and returns a canonical low-S DER signature.
func (k *Secp256k1) SignDER(digest []byte) ([]byte, error) {
	if k.priv == nil {
		return nil, errMissingPrivateKey
	}
	if len(digest) != 32 {
		return nil, fmt.Errorf("invalid digest length: %d", len(digest))
	}
	return ecdsa.Sign(k.priv, digest).Serialize(), nil
}

// Derive walks a BIP32 path relative to the extended key this pair holds.
// Paths may start with "m/" and use ' or h for hardened indices.
func (k *Secp256k1) Derive(path string) (*Secp256k1, error) {
	if k.extended == nil {
		return nil, fmt.Errorf("key pair was not created from an extended key")
	}
	key := k.extended
	for _, idx := range splitPath(path) {
		child, err := parseIndex(idx)
		if err != nil {
			return nil, err
		}
		key, err = key.Derive(child)
		if err != nil {
			return nil, fmt.Errorf("failed to derive %s: %w", idx, err)
		}
	}
	res, err := fromExtended(key)
	if err != nil {
		return nil, err
	}
	res.path = path
	return res, nil
}

func FromPrivateKeyHex(s string) (*Secp256k1, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("invalid private key length: %d", len(b))
	}
	priv, pub := btcec.PrivKeyFromBytes(b)
	return &Secp256k1{priv: priv, pub: pub}, nil
}

// FromPublicKeyHex accepts a 33-byte compressed or 65-byte uncompressed key.
func FromPublicKeyHex(s string) (*Secp256k1, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid public key hex: %w", err)
	}
	pub, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	return &Secp256k1{pub: pub}, nil
}

// FromExtendedKey parses a BIP32 xprv or xpub.
func FromExtendedKey(s string) (*Secp256k1, error) {
	key, err := hdkeychain.NewKeyFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid extended key: %w", err)
	}
	return fromExtended(key)
}

// FromMnemonic derives a key from a BIP39 mnemonic. An empty path means
// DefaultEthPath.
func FromMnemonic(mnemonic, passphrase, path string) (*Secp256k1, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}
	root, err := fromExtended(master)
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = DefaultEthPath
	}
	return root.Derive(path)
}

func fromExtended(key *hdkeychain.ExtendedKey) (*Secp256k1, error) {
	res := &Secp256k1{extended: key}
	if key.IsPrivate() {
		priv, err := key.ECPrivKey()
		if err != nil {
			return nil, fmt.Errorf("failed to get private key: %w", err)
		}
		res.priv = priv
		res.pub = priv.PubKey()
		return res, nil
	}
	pub, err := key.ECPubKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}
	res.pub = pub
	return res, nil
}

func splitPath(path string) []string {
	path = strings.TrimPrefix(strings.TrimPrefix(path, "m"), "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func parseIndex(s string) (uint32, error) {
	hardened := strings.HasSuffix(s, "'") || strings.HasSuffix(s, "h")
	s = strings.TrimRight(s, "'h")
	n, err := strconv.ParseUint(s, 10, 31)
	if err != nil {
		return 0, fmt.Errorf("invalid path index %q: %w", s, err)
	}
	if hardened {
		return uint32(n) + hdkeychain.HardenedKeyStart, nil
	}
	return uint32(n), nil
}
