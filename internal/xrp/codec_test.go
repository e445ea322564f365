package xrp

import (
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xrpgo "github.com/xyield/xrpl-go/binary-codec"
)

const (
	unsignedTxHex = "1200002405e7f5da201b05ebd21c61400000000000000a6840000000000000147321038f9cb9c40dc1022079a986583cc8ac5b6afbfee1a733e5f0e5eb697fb56378768114fac6c2bb1eb09b66cabfde78b33927d2dc7f365d83143db4b4dbd138d1ba4df703927f0bd1dc19340998"
	signedTxHex   = "1200002405e7f5da201b05ebd21c61400000000000000a6840000000000000147321038f9cb9c40dc1022079a986583cc8ac5b6afbfee1a733e5f0e5eb697fb563787674463044022100e947a44094f27105b7eef58885fa5e43d1b583178b388c6bc64e1f1cb0408df8021f18ba1f763bf455916da8839584844f8dead29187476f6d44e7af32e8e2d8e68114fac6c2bb1eb09b66cabfde78b33927d2dc7f365d83143db4b4dbd138d1ba4df703927f0bd1dc19340998"
	memoTxHex     = "1200002405E7F5DB201B05ED69BF6140000000000F424068400000000000000F7321038F9CB9C40DC1022079A986583CC8AC5B6AFBFEE1A733E5F0E5EB697FB563787674463044022046E9C4222DEE74B61B811D170A461D426955AA41F51877402054D60E73CC3FDF02202634043BA6B0B987F017EC1F6D0C68DC3F91F5A96466A6CCE62B89B153A01C278114FAC6C2BB1EB09B66CABFDE78B33927D2DC7F365D8314A0B385F9260C1D1C90636DD71D6A2D7BE251361DF9EA7C0E74686F72636861696E2D6D656D6F7D3A3D3A4554482E4554483A3078643237466361636643376641366133423736373442663344333866383633433839436336463645613A303A743A30E1F1"
	vaultPubKey   = "038f9cb9c40dc1022079a986583cc8ac5b6afbfee1a733e5f0e5eb697fb5637876"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestSingleSigningHash(t *testing.T) {
	hashToSign, err := singleSigningHash(mustHex(t, unsignedTxHex))
	require.NoError(t, err)
	assert.Len(t, hashToSign, 32)

	expected, err := base64.StdEncoding.DecodeString("wqUF5GvhG3eyeE+WzqpSvRwJLDBVYVoaKA01NJ6tA+I=")
	require.NoError(t, err)
	assert.Equal(t, expected, hashToSign)

	decoded, err := xrpgo.Decode(unsignedTxHex)
	require.NoError(t, err)
	canonicalHex, err := xrpgo.Encode(decoded)
	require.NoError(t, err)
	preimage := append([]byte{0x53, 0x54, 0x58, 0x00}, mustHex(t, canonicalHex)...)
	hash := sha512.Sum512(preimage)
	assert.Equal(t, hash[:32], hashToSign)

	again, err := singleSigningHash(mustHex(t, unsignedTxHex))
	require.NoError(t, err)
	assert.Equal(t, hashToSign, again)
}

func TestSingleSigningHash_IgnoresSignature(t *testing.T) {
	unsigned, err := singleSigningHash(mustHex(t, unsignedTxHex))
	require.NoError(t, err)
	signed, err := singleSigningHash(mustHex(t, signedTxHex))
	require.NoError(t, err)
	assert.Equal(t, unsigned, signed)
}

func TestSigningPublicKey(t *testing.T) {
	tests := []struct {
		name        string
		txHex       string
		expected    string
		expectError bool
	}{
		{
			name:     "valid transaction with public key",
			txHex:    unsignedTxHex,
			expected: vaultPubKey,
		},
		{
			name:        "truncated transaction",
			txHex:       "120000",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub, err := signingPublicKey(mustHex(t, tt.txHex))
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, mustHex(t, tt.expected), pub)
		})
	}
}

func TestTransactionID(t *testing.T) {
	raw := mustHex(t, memoTxHex)
	id := transactionID(raw)

	preimage := append([]byte{0x54, 0x58, 0x4E, 0x00}, raw...)
	hash := sha512.Sum512(preimage)
	assert.Equal(t, strings.ToUpper(hex.EncodeToString(hash[:32])), id)
	assert.Len(t, id, 64)
}

func TestDecodedStructure(t *testing.T) {
	decoded, err := decodeBlob(mustHex(t, unsignedTxHex))
	require.NoError(t, err)

	assert.Equal(t, "Payment", decoded["TransactionType"])
	assert.Equal(t, "rPizsaGotY3WV3vPMCY6PUH7FhzFi8QeJN", decoded["Account"])
	assert.Equal(t, "10", decoded["Amount"])
	assert.Equal(t, "20", decoded["Fee"])
	assert.Equal(t, strings.ToUpper(vaultPubKey), decoded["SigningPubKey"])

	seq, ok, err := uintField(decoded, "Sequence")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 0x05e7f5da, seq)

	_, ok, err = uintField(decoded, "DestinationTag")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAccountIDEncoding(t *testing.T) {
	id, err := DecodeAccountID("rPizsaGotY3WV3vPMCY6PUH7FhzFi8QeJN")
	require.NoError(t, err)
	assert.Equal(t, "fac6c2bb1eb09b66cabfde78b33927d2dc7f365d", hex.EncodeToString(id[:]))
	assert.Equal(t, "rPizsaGotY3WV3vPMCY6PUH7FhzFi8QeJN", id.String())

	_, err = DecodeAccountID("rPizsaGotY3WV3vPMCY6PUH7FhzFi8QeJM")
	assert.Error(t, err)
	_, err = DecodeAccountID("0x1234")
	assert.Error(t, err)
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("rPizsaGotY3WV3vPMCY6PUH7FhzFi8QeJN?dt=12345")
	require.NoError(t, err)
	require.NotNil(t, addr.DestinationTag)
	assert.EqualValues(t, 12345, *addr.DestinationTag)
	assert.Equal(t, "rPizsaGotY3WV3vPMCY6PUH7FhzFi8QeJN?dt=12345", addr.String())

	addr, err = ParseAddress("rPizsaGotY3WV3vPMCY6PUH7FhzFi8QeJN")
	require.NoError(t, err)
	assert.Nil(t, addr.DestinationTag)

	for _, bad := range []string{
		"rPizsaGotY3WV3vPMCY6PUH7FhzFi8QeJN?dt=abc",
		"rPizsaGotY3WV3vPMCY6PUH7FhzFi8QeJN?tag=1",
		"rPizsaGotY3WV3vPMCY6PUH7FhzFi8QeJN?dt=4294967296",
	} {
		_, err = ParseAddress(bad)
		assert.Error(t, err, bad)
	}
}
