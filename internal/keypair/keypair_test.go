package keypair

import (
	"encoding/hex"
	"testing"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testAddress    = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
	testMnemonic   = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	bip32Xprv      = "xprv9s21ZrQH143K3QTDL4LXw2F7HEK3wJUD2nW2nRk4stbPy6cq3jPPqjiChkVvvNKmPGJxWUtg6LnF5kejMRNNU3TGtRBeJgk33yuGBxrMPHi"
	bip32Xpub      = "xpub661MyMwAqRbcFtXgS5sYJABqqG9YLmC4Q1Rdap9gSE8NqtwybGhePY2gZ29ESFjqJoCu1Rupje8YtGqsefD265TMg7usUDFdp6W1EGMcet8"
)

func TestFromPrivateKeyHex(t *testing.T) {
	kp, err := FromPrivateKeyHex(testPrivateKey)
	require.NoError(t, err)

	assert.True(t, kp.HasPrivateKey())
	assert.Equal(t, CurveSecp256k1, kp.Curve())
	assert.Equal(t, ecommon.HexToAddress(testAddress), kp.EthAddress())
	assert.True(t, kp.CanSignFor(ecommon.HexToAddress(testAddress)))
	assert.False(t, kp.CanSignFor(ecommon.HexToAddress("0x0000000000000000000000000000000000000001")))
	assert.Len(t, kp.PublicKey(), 33)
	assert.Len(t, kp.UncompressedPublicKey(), 65)
}

func TestFromMnemonic(t *testing.T) {
	kp, err := FromMnemonic(testMnemonic, "", "")
	require.NoError(t, err)
	assert.Equal(t, ecommon.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94"), kp.EthAddress())
	assert.Equal(t, DefaultEthPath, kp.DerivationPath())

	cosmosKey, err := FromMnemonic(testMnemonic, "", "m/44'/118'/0'/0/0")
	require.NoError(t, err)
	addr, err := cosmosKey.CosmosAddress("cosmos")
	require.NoError(t, err)
	assert.Equal(t, "cosmos19rl4cm2hmr8afy4kldpxz3fka4jguq0auqdal4", addr)

	_, err = FromMnemonic("abandon abandon", "", "")
	require.Error(t, err)
}

func TestFromExtendedKey(t *testing.T) {
	prv, err := FromExtendedKey(bip32Xprv)
	require.NoError(t, err)
	require.True(t, prv.HasPrivateKey())

	xpub, err := prv.ExtendedPublicKey()
	require.NoError(t, err)
	assert.Equal(t, bip32Xpub, xpub)

	pub, err := FromExtendedKey(bip32Xpub)
	require.NoError(t, err)
	require.False(t, pub.HasPrivateKey())
	assert.Equal(t, prv.PublicKey(), pub.PublicKey())

	// Non-hardened derivation agrees between the private and public halves.
	childPrv, err := prv.Derive("m/0/1")
	require.NoError(t, err)
	childPub, err := pub.Derive("m/0/1")
	require.NoError(t, err)
	assert.Equal(t, childPrv.EthAddress(), childPub.EthAddress())

	_, err = pub.Derive("m/0'")
	require.Error(t, err)
}

func TestSignRecoverable(t *testing.T) {
	kp, err := FromPrivateKeyHex(testPrivateKey)
	require.NoError(t, err)

	digest := crypto.Keccak256([]byte("message"))
	sig1, err := kp.SignRecoverable(digest)
	require.NoError(t, err)
	sig2, err := kp.SignRecoverable(digest)
	require.NoError(t, err)

	for _, sig := range [][]byte{sig1, sig2} {
		pub, er := crypto.SigToPub(digest, sig)
		require.NoError(t, er)
		assert.Equal(t, kp.EthAddress(), crypto.PubkeyToAddress(*pub))
	}

	der, err := kp.SignDER(digest)
	require.NoError(t, err)
	assert.Equal(t, byte(0x30), der[0])

	pubOnly, err := FromPublicKeyHex(hex.EncodeToString(kp.PublicKey()))
	require.NoError(t, err)
	_, err = pubOnly.SignRecoverable(digest)
	require.Error(t, err)
}

func TestParse(t *testing.T) {
	kp, err := FromPrivateKeyHex(testPrivateKey)
	require.NoError(t, err)

	tests := []struct {
		name       string
		material   string
		hasPrivate bool
		wantErr    bool
	}{
		{name: "raw private", material: "0x" + testPrivateKey, hasPrivate: true},
		{name: "compressed public", material: hex.EncodeToString(kp.PublicKey())},
		{name: "uncompressed public", material: hex.EncodeToString(kp.UncompressedPublicKey())},
		{name: "xprv", material: bip32Xprv, hasPrivate: true},
		{name: "xpub", material: bip32Xpub},
		{name: "mnemonic", material: testMnemonic, hasPrivate: true},
		{name: "empty", material: "  ", wantErr: true},
		{name: "garbage", material: "not-a-key", wantErr: true},
		{name: "bad length", material: "abcd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Parse(tt.material)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hasPrivate, res.HasPrivateKey())
		})
	}

	assert.True(t, IsExtendedPrivate(bip32Xprv))
	assert.True(t, IsExtendedPublic(bip32Xpub))
	assert.False(t, IsExtendedPublic(bip32Xprv))
}

func TestEd25519(t *testing.T) {
	kp, err := NewEd25519()
	require.NoError(t, err)
	require.True(t, kp.HasPrivateKey())

	sig, err := kp.Sign([]byte("payload"))
	require.NoError(t, err)
	assert.Len(t, sig, 64)

	pub, err := Ed25519FromPublicKey(kp.Address().String())
	require.NoError(t, err)
	assert.False(t, pub.HasPrivateKey())
	assert.Equal(t, kp.PublicKey(), pub.PublicKey())

	_, err = pub.Sign([]byte("payload"))
	require.Error(t, err)
}
