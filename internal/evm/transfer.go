package evm

import (
	"encoding/hex"
	"math/big"
	"strings"
	"time"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vultisig/app-recovery/internal/keypair"
	"github.com/vultisig/app-recovery/internal/txbuilder"
)

// DefaultExpiration is how long a multisig operation stays valid when no
// expiration time is set.
const DefaultExpiration = 7 * 24 * time.Hour

// TransferBuilder accumulates the inner multisig operation of a Send. Setter
// errors are kept and returned by the enclosing Build.
type TransferBuilder struct {
	amount     *big.Int
	to         *ecommon.Address
	sequenceID *uint64
	expireTime *int64
	token      *ecommon.Address
	data       []byte
	key        *keypair.Secp256k1
	signature  []byte
	err        error
}

func (b *TransferBuilder) fail(err error) *TransferBuilder {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *TransferBuilder) Amount(v string) *TransferBuilder {
	amount, err := txbuilder.ParseValue(v)
	if err != nil {
		return b.fail(err)
	}
	b.amount = amount
	return b
}

func (b *TransferBuilder) To(address string) *TransferBuilder {
	addr, err := parseAddress(address)
	if err != nil {
		return b.fail(err)
	}
	b.to = &addr
	return b
}

func (b *TransferBuilder) ContractSequenceID(id uint64) *TransferBuilder {
	b.sequenceID = &id
	return b
}

// ExpirationTime is a unix timestamp in seconds.
func (b *TransferBuilder) ExpirationTime(ts int64) *TransferBuilder {
	if ts <= 0 {
		return b.fail(txbuilder.NewBuildError("Invalid expiration time: %d", ts))
	}
	b.expireTime = &ts
	return b
}

func (b *TransferBuilder) TokenContract(address string) *TransferBuilder {
	addr, err := parseAddress(address)
	if err != nil {
		return b.fail(err)
	}
	b.token = &addr
	return b
}

func (b *TransferBuilder) Data(h string) *TransferBuilder {
	d, err := hex.DecodeString(strings.TrimPrefix(h, "0x"))
	if err != nil {
		return b.fail(txbuilder.NewBuildError("Invalid data: %s", h))
	}
	b.data = d
	return b
}

// Key signs the operation hash with key at build time.
func (b *TransferBuilder) Key(key *keypair.Secp256k1) *TransferBuilder {
	if key == nil || !key.HasPrivateKey() {
		return b.fail(txbuilder.NewSigningError("Missing private key for operation signature"))
	}
	b.key = key
	b.signature = nil
	return b
}

// Signature sets an operation signature produced elsewhere (r || s || v).
func (b *TransferBuilder) Signature(h string) *TransferBuilder {
	sig, err := hex.DecodeString(strings.TrimPrefix(h, "0x"))
	if err != nil || len(sig) != crypto.SignatureLength {
		return b.fail(txbuilder.NewSigningError("Invalid operation signature: %s", h))
	}
	b.signature = sig
	b.key = nil
	return b
}

func (b *TransferBuilder) hasSignature() bool { return b.key != nil || len(b.signature) != 0 }

func (b *TransferBuilder) validate() error {
	if b.err != nil {
		return b.err
	}
	if b.amount == nil {
		return txbuilder.NewBuildError("Invalid transfer: missing amount")
	}
	if b.to == nil {
		return txbuilder.NewBuildError("Invalid transfer: missing to address")
	}
	if b.sequenceID == nil {
		return txbuilder.NewBuildError("Invalid transfer: missing contract sequence id")
	}
	return nil
}

func (b *TransferBuilder) expiration(now func() time.Time) int64 {
	if b.expireTime != nil {
		return *b.expireTime
	}
	return now().Add(DefaultExpiration).Unix()
}

// encode returns sendMultiSig or sendMultiSigToken calldata, signing the
// operation hash when a key was given.
func (b *TransferBuilder) encode(params *NetworkParams, now func() time.Time) ([]byte, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	expire := b.expiration(now)
	// pin the computed default so repeated builds are identical
	b.expireTime = &expire

	op := Operation{
		To:         *b.to,
		Amount:     b.amount,
		Data:       b.data,
		Token:      b.token,
		ExpireTime: expire,
		SequenceID: *b.sequenceID,
	}
	sig := b.signature
	if b.key != nil {
		var err error
		sig, err = op.Sign(params, b.key)
		if err != nil {
			return nil, err
		}
	}

	if b.token != nil {
		return SendMultiSigTokenData(*b.to, b.amount, *b.token, expire, *b.sequenceID, sig)
	}
	return SendMultiSigData(*b.to, b.amount, b.data, expire, *b.sequenceID, sig)
}

func transferFromDecoded(d *decodedTransfer) *TransferBuilder {
	to := d.to
	seq := d.sequenceID
	exp := d.expireTime
	b := &TransferBuilder{
		amount:     d.amount,
		to:         &to,
		sequenceID: &seq,
		expireTime: &exp,
		token:      d.token,
		data:       d.data,
	}
	if len(d.signature) != 0 {
		b.signature = d.signature
	}
	return b
}

// Operation is the multisig operation co-signers authorize.
type Operation struct {
	To         ecommon.Address
	Amount     *big.Int
	Data       []byte
	Token      *ecommon.Address
	ExpireTime int64
	SequenceID uint64
}

// Hash is keccak256 over the tightly packed operation, prefixed with the
// network's native or token operation prefix.
func (o Operation) Hash(params *NetworkParams) []byte {
	var packed []byte
	if o.Token != nil {
		packed = append(packed, []byte(params.TokenOperationPrefix)...)
	} else {
		packed = append(packed, []byte(params.NativeOperationPrefix)...)
	}
	packed = append(packed, o.To.Bytes()...)
	packed = append(packed, math.U256Bytes(new(big.Int).Set(o.Amount))...)
	if o.Token != nil {
		packed = append(packed, o.Token.Bytes()...)
	} else {
		packed = append(packed, o.Data...)
	}
	packed = append(packed, math.U256Bytes(big.NewInt(o.ExpireTime))...)
	packed = append(packed, math.U256Bytes(new(big.Int).SetUint64(o.SequenceID))...)
	return crypto.Keccak256(packed)
}

// Sign returns r || s || v with v in {27, 28}, the form the wallet contract
// passes to ecrecover.
func (o Operation) Sign(params *NetworkParams, key *keypair.Secp256k1) ([]byte, error) {
	sig, err := key.SignRecoverable(o.Hash(params))
	if err != nil {
		return nil, txbuilder.NewSigningError("failed to sign operation: %v", err)
	}
	sig[64] += 27
	return sig, nil
}

// RecoverSigner returns the address that produced an operation signature.
func (o Operation) RecoverSigner(params *NetworkParams, sig []byte) (ecommon.Address, error) {
	pub, err := crypto.SigToPub(o.Hash(params), normalizeV(sig))
	if err != nil {
		return ecommon.Address{}, txbuilder.NewSigningError("failed to recover operation signer: %v", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func parseAddress(s string) (ecommon.Address, error) {
	if !ecommon.IsHexAddress(s) {
		return ecommon.Address{}, txbuilder.NewBuildError("Invalid address: %s", s)
	}
	return ecommon.HexToAddress(s), nil
}
