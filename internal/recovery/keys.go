package recovery

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"

	"github.com/vultisig/app-recovery/internal/keypair"
)

// scrypt cost of newly encrypted keys
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptMaxN   = 1 << 20
	keyLength    = 32
	saltLength   = 16
	envelopeKind = "scrypt-aes-256-gcm"
)

// envelope is the encrypted form of key material.
type envelope struct {
	Kind       string `json:"kind"`
	N          int    `json:"n"`
	R          int    `json:"r"`
	P          int    `json:"p"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// IsEncrypted reports whether material is an encrypted key envelope.
func IsEncrypted(material string) bool {
	return strings.HasPrefix(strings.TrimSpace(material), "{")
}

// Encrypt seals key material with a passphrase.
func Encrypt(passphrase string, plaintext []byte) (string, error) {
	if passphrase == "" {
		return "", errors.New("cannot encrypt without passphrase")
	}
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to read salt: %w", err)
	}
	gcm, err := newGCM(passphrase, salt, scryptN, scryptR, scryptP)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to read nonce: %w", err)
	}

	out, err := json.Marshal(envelope{
		Kind:       envelopeKind,
		N:          scryptN,
		R:          scryptR,
		P:          scryptP,
		Salt:       hex.EncodeToString(salt),
		Nonce:      hex.EncodeToString(nonce),
		Ciphertext: hex.EncodeToString(gcm.Seal(nil, nonce, plaintext, nil)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return string(out), nil
}

// Decrypt opens an envelope produced by Encrypt.
func Decrypt(passphrase, material string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("cannot decrypt without passphrase")
	}
	var env envelope
	if err := json.Unmarshal([]byte(material), &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}
	if env.Kind != envelopeKind {
		return nil, fmt.Errorf("unsupported envelope kind %q", env.Kind)
	}
	if env.N <= 1 || env.N > scryptMaxN || env.R <= 0 || env.P <= 0 {
		return nil, fmt.Errorf("invalid scrypt parameters")
	}
	salt, err := hex.DecodeString(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("invalid salt: %w", err)
	}
	nonce, err := hex.DecodeString(env.Nonce)
	if err != nil {
		return nil, fmt.Errorf("invalid nonce: %w", err)
	}
	ciphertext, err := hex.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("invalid ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, salt, env.N, env.R, env.P)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("invalid nonce length: %d", len(nonce))
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.New("wrong passphrase or corrupted key")
	}
	return plaintext, nil
}

func newGCM(passphrase string, salt []byte, n, r, p int) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, n, r, p, keyLength)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// AcquireKey turns key material into a key pair. Encrypted envelopes are
// opened with passphrase; anything else is parsed as is, so public keys and
// plain xprvs pass through.
func AcquireKey(name, material, passphrase string) (*keypair.Secp256k1, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return nil, &DecryptionError{Key: name, Err: errors.New("missing key material")}
	}
	if IsEncrypted(material) {
		plain, err := Decrypt(passphrase, material)
		if err != nil {
			return nil, &DecryptionError{Key: name, Err: err}
		}
		material = string(plain)
	}
	key, err := keypair.Parse(material)
	if err != nil {
		return nil, &DecryptionError{Key: name, Err: err}
	}
	return key, nil
}

// publicID is the shareable identifier of a key: its xpub when it came from
// an extended key, else its compressed public key in hex.
func publicID(k *keypair.Secp256k1) string {
	if xpub, err := k.ExtendedPublicKey(); err == nil {
		return xpub
	}
	return hex.EncodeToString(k.PublicKey())
}
