package evm

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"math"
	"math/big"
	"testing"
	"time"

	ecommon "github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vultisig/mobile-tss-lib/tss"
	"github.com/vultisig/vultisig-go/common"

	"github.com/vultisig/app-recovery/internal/keypair"
	"github.com/vultisig/app-recovery/internal/txbuilder"
)

const (
	userPrivateKey   = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	backupPrivateKey = "8da4ef21b864d2cc526dbdb2a120bd2874c36c9d0a1fb7f8c63d7f7a8b41de8f"

	walletAddress    = "0x8f977e912ef500548a0c3be6ddde9899f1199b81"
	recipientAddress = "0x19645032c7f1533395d44a629462e751084d3e4c"
	tokenAddress     = "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984"
	groupAddress     = "0x34649b6b52d8a1f8cab1a83a8d2b1d2bc0b4ca21"
	lesserAddress    = "0x0000000000000000000000000000000000000000"
	greaterAddress   = "0x4e6a2ba3aa2d3a43b6c1a7ca4ac4f9fa3a6a9c4c"

	fixedExpiry = int64(1700000000)
)

var testParams = []byte(`{"name":"test","chainId":31337,"forwarderImplementationAddress":"0x5397d0869aba0d55e96d5716d383f6e1d8695ed7"}`)

func mustParams(t *testing.T, blob []byte) *NetworkParams {
	t.Helper()
	p, err := ParseNetworkParams(blob)
	require.NoError(t, err)
	return p
}

func mustKey(t *testing.T, h string) *keypair.Secp256k1 {
	t.Helper()
	k, err := keypair.FromPrivateKeyHex(h)
	require.NoError(t, err)
	return k
}

func bigInt(s string) *big.Int {
	v, _ := new(big.Int).SetString(s, 10)
	return v
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func fixedClock() time.Time { return time.Unix(1690000000, 0) }

func newTestFactory(t *testing.T, blob []byte) *Factory {
	return NewFactory(mustParams(t, blob), WithClock(fixedClock))
}

func transferBuilder(t *testing.T, f *Factory) *Builder {
	t.Helper()
	b := f.GetTransferBuilder()
	require.NoError(t, b.Fee("1000000000", "12100000"))
	require.NoError(t, b.Counter(2))
	require.NoError(t, b.Contract(walletAddress))
	transfer, err := b.Transfer()
	require.NoError(t, err)
	transfer.
		Amount("1000000000").
		To(recipientAddress).
		ContractSequenceID(1).
		ExpirationTime(fixedExpiry)
	return b
}

func TestTransferBuildSignIsDeterministic(t *testing.T) {
	f := newTestFactory(t, testParams)

	run := func() []byte {
		b := transferBuilder(t, f)
		require.NoError(t, b.Sign(mustKey(t, userPrivateKey)))
		require.NoError(t, b.Sign(mustKey(t, backupPrivateKey)))
		tx, err := b.Build()
		require.NoError(t, err)
		require.Equal(t, txbuilder.FullySigned, tx.State())

		raw, err := tx.ToBroadcastFormat()
		require.NoError(t, err)
		require.Equal(t, txbuilder.Broadcastable, tx.State())

		again, err := tx.ToBroadcastFormat()
		require.NoError(t, err)
		require.Equal(t, raw, again)
		return raw
	}

	first := run()
	second := run()
	require.Equal(t, first, second)

	b, err := f.From(first)
	require.NoError(t, err)
	tx, err := b.Build()
	require.NoError(t, err)
	data, err := tx.ToJSON()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), data.Nonce)
	assert.Equal(t, "12100000", data.GasLimit)
	assert.Equal(t, "1000000000", data.GasPrice)
	assert.Equal(t, "31337", data.ChainID)
	assert.Equal(t, "Send", data.Type)
	assert.Equal(t, mustKey(t, backupPrivateKey).EthAddress().Hex(), data.From)
	assert.Equal(t, ecommon.HexToAddress(walletAddress).Hex(), data.To)
}

func TestFromUnsignedRoundTrip(t *testing.T) {
	f := newTestFactory(t, CeloMainnetParams)

	vote, err := f.GetStakingBuilder(TypeStakingVote)
	require.NoError(t, err)
	require.NoError(t, vote.Fee("5000000000", "100000"))
	require.NoError(t, vote.Counter(7))
	v, err := vote.Vote()
	require.NoError(t, err)
	v.Group(groupAddress).Amount("1000").Lesser(lesserAddress).Greater(greaterAddress)

	fwd := f.GetAddressInitializationBuilder()
	require.NoError(t, fwd.Fee("1000000000", "500000"))
	require.NoError(t, fwd.Counter(0))
	require.NoError(t, fwd.Contract(walletAddress))
	require.NoError(t, fwd.ForwarderVersion(4))
	require.NoError(t, fwd.BaseAddress(walletAddress))
	require.NoError(t, fwd.FeeAddress(recipientAddress))
	require.NoError(t, fwd.Salt("0x1234"))

	flush := f.GetFlushTokensBuilder()
	require.NoError(t, flush.Fee("1000000000", "500000"))
	require.NoError(t, flush.Counter(3))
	require.NoError(t, flush.Contract(walletAddress))
	require.NoError(t, flush.ForwarderAddress(recipientAddress))
	require.NoError(t, flush.TokenAddress(tokenAddress))

	single := f.GetSingleSigSendBuilder()
	require.NoError(t, single.Fee("1000000000", "21000"))
	require.NoError(t, single.Counter(1))
	require.NoError(t, single.To(recipientAddress))
	require.NoError(t, single.Value("42"))

	send := transferBuilder(t, f)
	transfer, err := send.Transfer()
	require.NoError(t, err)
	transfer.Key(mustKey(t, userPrivateKey))

	tests := []struct {
		name     string
		builder  *Builder
		expected TransactionType
	}{
		{"staking vote", vote, TypeStakingVote},
		{"forwarder v4", fwd, TypeAddressInitialization},
		{"flush tokens", flush, TypeFlushTokens},
		{"single sig send", single, TypeSingleSigSend},
		{"half-signed send", send, TypeSend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := tt.builder.Build()
			require.NoError(t, err)
			raw, err := tx.ToBroadcastFormat()
			require.NoError(t, err)

			b, err := f.From(raw)
			require.NoError(t, err)
			require.Equal(t, tt.expected, b.txType)
			rebuilt, err := b.Build()
			require.NoError(t, err)
			out, err := rebuilt.ToBroadcastFormat()
			require.NoError(t, err)
			require.Equal(t, raw, out)
		})
	}
}

func TestStakingSetterTypeMismatch(t *testing.T) {
	f := newTestFactory(t, CeloMainnetParams)
	b := f.GetAddressInitializationBuilder()

	v, err := b.Vote()
	require.Nil(t, v)
	require.Error(t, err)
	require.True(t, txbuilder.IsBuildError(err))
	require.Contains(t, err.Error(), "Staking transaction type mismatch: builder type is AddressInitialization, operation requires StakingVote")
	require.Nil(t, b.staking)

	// changing the type afterwards is allowed
	require.NoError(t, b.Type(TypeStakingVote))
	v, err = b.Vote()
	require.NoError(t, err)
	require.NotNil(t, v)
}

func TestStakingReplacesPreviousOperation(t *testing.T) {
	f := newTestFactory(t, CeloMainnetParams)
	b, err := f.GetStakingBuilder(TypeStakingLock)
	require.NoError(t, err)
	require.NoError(t, b.Fee("1", "100000"))
	require.NoError(t, b.Counter(0))

	first, err := b.Lock()
	require.NoError(t, err)
	first.Amount("10")
	second, err := b.Lock()
	require.NoError(t, err)
	second.Amount("20")

	tx, err := b.Build()
	require.NoError(t, err)
	data, err := tx.ToJSON()
	require.NoError(t, err)
	require.Equal(t, "20", data.Value)
	require.Equal(t, ecommon.HexToAddress("0x6cC083Aed9e3ebe302A6336dBC7c921C9f03349E").Hex(), data.To)
}

func TestStakingNotSupported(t *testing.T) {
	f := newTestFactory(t, testParams)
	_, err := f.GetStakingBuilder(TypeStakingLock)
	require.True(t, txbuilder.IsNotSupported(err))

	celo := newTestFactory(t, CeloMainnetParams)
	b, err := celo.GetStakingBuilder(TypeStakingActivate)
	require.NoError(t, err)
	require.NoError(t, b.Fee("1", "100000"))
	require.NoError(t, b.Counter(0))
	a, err := b.Activate()
	require.NoError(t, err)
	a.Group(groupAddress)
	tx, err := b.Build()
	require.NoError(t, err)
	raw, err := tx.ToBroadcastFormat()
	require.NoError(t, err)

	// the same payload on a network without staking contracts is a plain call
	other := newTestFactory(t, []byte(`{"name":"celo-nostaking","chainId":42220}`))
	decoded, err := other.From(raw)
	require.NoError(t, err)
	require.Equal(t, TypeContractCall, decoded.txType)
	rebuilt, err := decoded.Build()
	require.NoError(t, err)
	again, err := rebuilt.ToBroadcastFormat()
	require.NoError(t, err)
	require.Equal(t, raw, again)
}

func TestFromForeignInput(t *testing.T) {
	celoLockedGold := ecommon.HexToAddress("0x6cC083Aed9e3ebe302A6336dBC7c921C9f03349E")
	token := ecommon.HexToAddress(tokenAddress)
	withdraw5, err := withdrawMethod.pack(big.NewInt(5))
	require.NoError(t, err)
	lockWithTail, err := lockMethod.pack()
	require.NoError(t, err)
	lockWithTail = append(lockWithTail, 0x01)

	tests := []struct {
		name     string
		params   []byte
		to       ecommon.Address
		value    int64
		data     []byte
		expected TransactionType
	}{
		{"withdraw selector to a token contract", CeloMainnetParams, token, 0, withdraw5, TypeContractCall},
		{"withdraw selector on a network without staking", testParams, celoLockedGold, 0, withdraw5, TypeContractCall},
		{"lock with trailing calldata", CeloMainnetParams, celoLockedGold, 7, lockWithTail, TypeContractCall},
		{"withdraw to locked gold", CeloMainnetParams, celoLockedGold, 0, withdraw5, TypeStakingWithdraw},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustParams(t, tt.params)
			f := newTestFactory(t, tt.params)
			to := tt.to
			raw, err := encodeUnsigned(etypes.LegacyTx{
				Nonce:    1,
				GasPrice: big.NewInt(1e9),
				Gas:      100000,
				To:       &to,
				Value:    big.NewInt(tt.value),
				Data:     tt.data,
			}, p.ChainIDBig())
			require.NoError(t, err)

			b, err := f.From(raw)
			require.NoError(t, err)
			require.Equal(t, tt.expected, b.txType)

			tx, err := b.Build()
			require.NoError(t, err)
			again, err := tx.ToBroadcastFormat()
			require.NoError(t, err)
			require.Equal(t, raw, again)
			require.Equal(t, to, *tx.legacy.To)
		})
	}
}

func TestFromRejectsOutOfRangeCounters(t *testing.T) {
	p := mustParams(t, testParams)
	f := newTestFactory(t, testParams)
	recipient := ecommon.HexToAddress(recipientAddress)
	wallet := ecommon.HexToAddress(walletAddress)
	overInt64 := new(big.Int).Lsh(big.NewInt(1), 63)
	overUint64 := new(big.Int).Lsh(big.NewInt(1), 64)

	tests := []struct {
		name     string
		expire   *big.Int
		sequence *big.Int
	}{
		{"expire time above int64", overInt64, big.NewInt(1)},
		{"sequence id above uint64", big.NewInt(fixedExpiry), overUint64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := sendMultiSigMethod.pack(recipient, big.NewInt(1), []byte{}, tt.expire, tt.sequence, make([]byte, 65))
			require.NoError(t, err)
			raw, err := encodeUnsigned(etypes.LegacyTx{
				Nonce:    1,
				GasPrice: big.NewInt(1e9),
				Gas:      200000,
				To:       &wallet,
				Value:    big.NewInt(0),
				Data:     data,
			}, p.ChainIDBig())
			require.NoError(t, err)

			_, err = f.From(raw)
			var parseErr *txbuilder.ParseTransactionError
			require.True(t, errors.As(err, &parseErr), "got %v", err)
		})
	}
}

func TestFromRejectsMalformedSignature(t *testing.T) {
	f := newTestFactory(t, testParams)
	to := ecommon.HexToAddress(recipientAddress)
	huge := new(big.Int).Lsh(big.NewInt(1), 300)
	protectedV := big.NewInt(31337*2 + 35)

	tests := []struct {
		name    string
		v, r, s *big.Int
	}{
		{"R longer than 32 bytes", protectedV, huge, big.NewInt(1)},
		{"S longer than 32 bytes", protectedV, big.NewInt(1), huge},
		{"pre EIP-155 V", big.NewInt(27), big.NewInt(1), big.NewInt(1)},
		{"V below 27", big.NewInt(1), big.NewInt(1), big.NewInt(1)},
		{"V encoding chain id zero", big.NewInt(36), big.NewInt(1), big.NewInt(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := rlp.EncodeToBytes(&etypes.LegacyTx{
				Nonce:    1,
				GasPrice: big.NewInt(1e9),
				Gas:      21000,
				To:       &to,
				Value:    big.NewInt(1),
				V:        tt.v,
				R:        tt.r,
				S:        tt.s,
			})
			require.NoError(t, err)

			require.NotPanics(t, func() {
				_, err = f.From(raw)
			})
			require.True(t, txbuilder.IsInvalidTransaction(err), "got %v", err)
		})
	}
}

func TestBuildMissingFields(t *testing.T) {
	f := newTestFactory(t, testParams)

	tests := []struct {
		name    string
		setup   func(b *Builder)
		builder func() *Builder
		message string
	}{
		{
			name:    "missing fee",
			builder: f.GetTransferBuilder,
			setup:   func(b *Builder) { require.NoError(t, b.Counter(1)) },
			message: "Invalid transaction: missing fee",
		},
		{
			name:    "missing counter",
			builder: f.GetTransferBuilder,
			setup:   func(b *Builder) { require.NoError(t, b.Fee("1", "1")) },
			message: "Invalid transaction: missing address counter",
		},
		{
			name:    "missing contract",
			builder: f.GetTransferBuilder,
			setup: func(b *Builder) {
				require.NoError(t, b.Fee("1", "1"))
				require.NoError(t, b.Counter(1))
			},
			message: "Invalid transaction: missing contract address",
		},
		{
			name:    "missing transfer",
			builder: f.GetTransferBuilder,
			setup: func(b *Builder) {
				require.NoError(t, b.Fee("1", "1"))
				require.NoError(t, b.Counter(1))
				require.NoError(t, b.Contract(walletAddress))
			},
			message: "Missing transfer information",
		},
		{
			name:    "wrong owner count",
			builder: f.GetWalletInitializationBuilder,
			setup: func(b *Builder) {
				require.NoError(t, b.Fee("1", "1"))
				require.NoError(t, b.Counter(1))
				require.NoError(t, b.Owner(walletAddress))
			},
			message: "wrong number of owners -- required: 3, found: 1",
		},
		{
			name:    "flush without token",
			builder: f.GetFlushTokensBuilder,
			setup: func(b *Builder) {
				require.NoError(t, b.Fee("1", "1"))
				require.NoError(t, b.Counter(1))
				require.NoError(t, b.Contract(walletAddress))
				require.NoError(t, b.ForwarderAddress(recipientAddress))
			},
			message: "Invalid transaction: missing token address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.builder()
			tt.setup(b)
			tx, err := b.Build()
			require.Nil(t, tx)
			require.True(t, txbuilder.IsBuildError(err))
			require.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestSetterValidation(t *testing.T) {
	f := newTestFactory(t, testParams)
	b := f.GetWalletInitializationBuilder()

	require.EqualError(t, b.Counter(-1), "Invalid counter: -1")
	require.EqualError(t, b.Contract("0x123"), "Invalid address: 0x123")
	require.Error(t, b.Fee("-1", "21000"))
	require.Error(t, b.Fee("abc", "21000"))
	require.EqualError(t, b.ForwarderVersion(3), "Invalid forwarder version: 3")
	require.Error(t, b.Data("0x00"))

	require.NoError(t, b.Owner(walletAddress))
	require.Error(t, b.Owner(walletAddress))
	require.NoError(t, b.Owner(recipientAddress))
	require.NoError(t, b.Owner(tokenAddress))
	require.Error(t, b.Owner(groupAddress))
}

func TestThresholdGating(t *testing.T) {
	f := newTestFactory(t, testParams)
	b := transferBuilder(t, f)
	require.NoError(t, b.Sign(mustKey(t, userPrivateKey)))

	tx, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, txbuilder.PartiallySigned, tx.State())
	require.Empty(t, tx.ID())

	unsigned, err := tx.ToBroadcastFormat()
	require.NoError(t, err)
	require.Equal(t, txbuilder.PartiallySigned, tx.State())

	backup := mustKey(t, backupPrivateKey)
	require.True(t, tx.CanSign(backup))
	require.NoError(t, tx.Sign(backup))
	require.Equal(t, txbuilder.FullySigned, tx.State())
	require.NotEmpty(t, tx.ID())

	signed, err := tx.ToBroadcastFormat()
	require.NoError(t, err)
	require.NotEqual(t, unsigned, signed)
	require.Equal(t, txbuilder.Broadcastable, tx.State())

	err = tx.Sign(backup)
	require.True(t, txbuilder.IsSigningError(err))
	after, err := tx.ToBroadcastFormat()
	require.NoError(t, err)
	require.Equal(t, signed, after)
}

func TestSignNonSendTwice(t *testing.T) {
	f := newTestFactory(t, testParams)
	b := f.GetFlushCoinsBuilder()
	require.NoError(t, b.Fee("1", "100000"))
	require.NoError(t, b.Counter(0))
	require.NoError(t, b.Contract(walletAddress))
	require.NoError(t, b.Sign(mustKey(t, userPrivateKey)))

	err := b.Sign(mustKey(t, backupPrivateKey))
	require.EqualError(t, err, "Cannot sign multiple times a non send-type transaction")
}

func TestSignWrongSender(t *testing.T) {
	f := newTestFactory(t, testParams)
	b := f.GetFlushCoinsBuilder()
	require.NoError(t, b.Fee("1", "100000"))
	require.NoError(t, b.Counter(0))
	require.NoError(t, b.Contract(walletAddress))
	require.NoError(t, b.Sender(mustKey(t, backupPrivateKey).EthAddress().Hex()))

	err := b.Sign(mustKey(t, userPrivateKey))
	require.True(t, txbuilder.IsSigningError(err))

	tx, err := b.Build()
	require.NoError(t, err)
	require.False(t, tx.CanSign(mustKey(t, userPrivateKey)))
	pub, err := keypair.FromPublicKeyHex(hex.EncodeToString(mustKey(t, backupPrivateKey).PublicKey()))
	require.NoError(t, err)
	require.False(t, tx.CanSign(pub))
	require.True(t, tx.CanSign(mustKey(t, backupPrivateKey)))
}

func TestToJSONEmptyPayload(t *testing.T) {
	tx := &Transaction{params: mustParams(t, testParams)}
	_, err := tx.ToJSON()
	require.True(t, txbuilder.IsInvalidTransaction(err))
	require.Contains(t, err.Error(), "Raw transaction is empty")
}

func TestFromInvalidHex(t *testing.T) {
	f := newTestFactory(t, testParams)
	_, err := f.FromHex("0xzz")
	require.True(t, txbuilder.IsInvalidTransaction(err))
	require.Contains(t, err.Error(), "There was error in decoding the hex string")

	_, err = f.FromHex("0x01")
	require.True(t, txbuilder.IsInvalidTransaction(err))
}

func TestExplainDisplayOrder(t *testing.T) {
	f := newTestFactory(t, testParams)
	b := transferBuilder(t, f)
	tx, err := b.Build()
	require.NoError(t, err)

	ex, err := tx.Explain()
	require.NoError(t, err)
	require.Equal(t, []string{"id", "outputs", "outputAmount", "changeOutputs", "changeAmount", "fee", "type"}, ex.DisplayOrder)
	require.Equal(t, "1000000000", ex.Get("outputAmount"))
	require.Equal(t, "Send", ex.Get("type"))

	first, err := json.Marshal(ex)
	require.NoError(t, err)
	second, err := json.Marshal(ex)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		creation bool
		expected TransactionType
	}{
		{"empty", nil, false, TypeSingleSigSend},
		{"short", []byte{0x01, 0x02}, false, TypeSingleSigSend},
		{"send", sendMultiSigMethod.id, false, TypeSend},
		{"token send", sendMultiSigTokenMethod.id, false, TypeSend},
		{"forwarder", createForwarderMethod.id, false, TypeAddressInitialization},
		{"flush", flushMethod.id, false, TypeFlushCoins},
		{"vote", voteMethod.id, false, TypeStakingVote},
		{"unknown", []byte{0xde, 0xad, 0xbe, 0xef}, false, TypeContractCall},
		{"deploy", append([]byte{}, walletBytecodePrefix...), true, TypeWalletInitialization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, Classify(tt.data, tt.creation))
		})
	}
}

func TestOperationHashAndHalfSignedFlow(t *testing.T) {
	f := newTestFactory(t, testParams)
	user := mustKey(t, userPrivateKey)
	backup := mustKey(t, backupPrivateKey)

	half, err := f.SignPrebuild(TxPrebuild{
		WalletContract: walletAddress,
		Recipients:     []Recipient{{Address: recipientAddress, Amount: "5000"}},
		NextSequenceID: 9,
	}, user)
	require.NoError(t, err)
	require.Equal(t, fixedClock().Add(DefaultExpiration).Unix(), half.ExpireTime)
	require.NoError(t, f.VerifyOperationSigner(half, user.EthAddress()))
	require.Error(t, f.VerifyOperationSigner(half, backup.EthAddress()))

	op := Operation{
		To:         ecommon.HexToAddress(recipientAddress),
		Amount:     bigInt("5000"),
		ExpireTime: half.ExpireTime,
		SequenceID: 9,
	}
	require.Equal(t, "0x"+hex.EncodeToString(op.Hash(f.params)), half.OperationHash)

	tx, err := f.SignFinal(half, backup, 4, Fee{GasPrice: bigInt("20000000000"), GasLimit: 500000})
	require.NoError(t, err)
	require.Equal(t, txbuilder.FullySigned, tx.State())
	from, ok := tx.From()
	require.True(t, ok)
	require.Equal(t, backup.EthAddress(), from)

	decoded, err := decodeTransferData(tx.legacy.Data)
	require.NoError(t, err)
	require.Equal(t, uint64(9), decoded.sequenceID)
	require.Contains(t, []byte{27, 28}, decoded.signature[64])
}

func TestFinalRejectsNonceAboveInt64(t *testing.T) {
	f := newTestFactory(t, testParams)
	user := mustKey(t, userPrivateKey)
	backup := mustKey(t, backupPrivateKey)

	half, err := f.SignPrebuild(TxPrebuild{
		WalletContract: walletAddress,
		Recipients:     []Recipient{{Address: recipientAddress, Amount: "5000"}},
		NextSequenceID: 9,
	}, user)
	require.NoError(t, err)

	_, err = f.SignFinal(half, backup, uint64(math.MaxInt64)+1, Fee{GasPrice: bigInt("20000000000"), GasLimit: 500000})
	require.True(t, txbuilder.IsBuildError(err), "got %v", err)
	assert.Contains(t, err.Error(), "Invalid counter")
}

func TestTokenOperationHashUsesTokenPrefix(t *testing.T) {
	p := mustParams(t, testParams)
	token := ecommon.HexToAddress(tokenAddress)
	native := Operation{To: ecommon.HexToAddress(recipientAddress), Amount: bigInt("1"), ExpireTime: 1, SequenceID: 1}
	withToken := native
	withToken.Token = &token

	require.NotEqual(t, native.Hash(p), withToken.Hash(p))

	var packed []byte
	packed = append(packed, []byte("ERC20")...)
	packed = append(packed, native.To.Bytes()...)
	packed = append(packed, ecommon.LeftPadBytes([]byte{1}, 32)...)
	packed = append(packed, token.Bytes()...)
	packed = append(packed, ecommon.LeftPadBytes([]byte{1}, 32)...)
	packed = append(packed, ecommon.LeftPadBytes([]byte{1}, 32)...)
	require.Equal(t, crypto.Keccak256(packed), withToken.Hash(p))
}

func TestForwarderPrediction(t *testing.T) {
	f := newTestFactory(t, testParams)
	b := f.GetAddressInitializationBuilder()
	require.NoError(t, b.Contract(walletAddress))
	_, ok := b.PredictedAddress()
	require.False(t, ok)

	require.NoError(t, b.ContractCounter(3))
	addr, ok := b.PredictedAddress()
	require.True(t, ok)
	require.Equal(t, crypto.CreateAddress(ecommon.HexToAddress(walletAddress), 3), addr)

	impl := ecommon.HexToAddress("0x5397d0869aba0d55e96d5716d383f6e1d8695ed7")
	code := ProxyInitcode(impl)
	require.Len(t, code, 55)
	require.Equal(t, impl.Bytes(), code[20:40])

	require.NoError(t, b.ForwarderVersion(1))
	require.NoError(t, b.BaseAddress(recipientAddress))
	require.NoError(t, b.Salt("0x01"))
	v1, ok := b.PredictedAddress()
	require.True(t, ok)
	require.NotEqual(t, addr, v1)
}

type mockKeysigner struct {
	key   *keypair.Secp256k1
	extra bool
}

func (m *mockKeysigner) Sign(_ context.Context, _ string, messages [][]byte) (map[string]tss.KeysignResponse, error) {
	res := make(map[string]tss.KeysignResponse, len(messages))
	for _, msg := range messages {
		sig, err := m.key.SignRecoverable(msg)
		if err != nil {
			return nil, err
		}
		resp, err := txbuilder.FormatKeysign(sig)
		if err != nil {
			return nil, err
		}
		res[hex.EncodeToString(msg)] = resp
	}
	if m.extra {
		res["extra"] = tss.KeysignResponse{}
	}
	return res, nil
}

func TestSignerServiceAttachesTSSSignature(t *testing.T) {
	f := newTestFactory(t, testParams)
	key := mustKey(t, backupPrivateKey)
	pub := hex.EncodeToString(key.PublicKey())

	build := func() *Transaction {
		b := f.GetSingleSigSendBuilder()
		require.NoError(t, b.Fee("1000000000", "21000"))
		require.NoError(t, b.Counter(0))
		require.NoError(t, b.To(recipientAddress))
		require.NoError(t, b.Value("1"))
		tx, err := b.Build()
		require.NoError(t, err)
		return tx
	}

	svc := NewSignerService(&mockKeysigner{key: key}, nil, testLogger())
	tx := build()
	require.NoError(t, svc.Sign(context.Background(), tx, pub))
	require.Equal(t, txbuilder.FullySigned, tx.State())

	local := build()
	require.NoError(t, local.Sign(key))
	a, err := tx.ToBroadcastFormat()
	require.NoError(t, err)
	b, err := local.ToBroadcastFormat()
	require.NoError(t, err)
	require.Equal(t, b, a)

	bad := NewSignerService(&mockKeysigner{key: key, extra: true}, nil, testLogger())
	err = bad.Sign(context.Background(), build(), pub)
	require.EqualError(t, err, "expected 1 signature, got 2")
}

func TestParamsCacheSharesByContent(t *testing.T) {
	cache := NewParamsCache()
	a, err := LoadParams(cache, CeloMainnetParams)
	require.NoError(t, err)
	b, err := LoadParams(cache, append([]byte{}, CeloMainnetParams...))
	require.NoError(t, err)
	require.Same(t, a, b)
	require.Equal(t, 1, cache.Len())

	_, err = LoadParams(cache, CeloAlfajoresParams)
	require.NoError(t, err)
	require.Equal(t, 2, cache.Len())

	blob, err := ParamsForChain(common.Ethereum)
	require.NoError(t, err)
	eth, err := LoadParams(cache, blob)
	require.NoError(t, err)
	require.Equal(t, uint64(1), eth.ChainID)
	require.Equal(t, "ETHER", eth.NativeOperationPrefix)
	require.False(t, eth.SupportsStaking())
}
