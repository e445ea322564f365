package cosmos

import (
	"bytes"
	"encoding/hex"
	"strings"

	"cosmossdk.io/math"
	"github.com/cosmos/cosmos-sdk/codec"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/cosmos/cosmos-sdk/types/tx"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	stakingtypes "github.com/cosmos/cosmos-sdk/x/staking/types"

	"github.com/vultisig/app-recovery/internal/keypair"
	"github.com/vultisig/app-recovery/internal/txbuilder"
)

// Builder accumulates one bank send or staking message and the single signer
// that authorizes it.
type Builder struct {
	cfg ChainConfig
	cdc *codec.ProtoCodec

	txType        TransactionType
	sender        string
	senderBytes   []byte
	to            string
	validator     string
	amount        *math.Int
	feeAmount     *math.Int
	gasLimit      uint64
	accountNumber *uint64
	sequence      *uint64
	memo          string
	pubKey        []byte

	signKey  *keypair.Secp256k1
	external *txbuilder.Signature
	decoded  []byte
}

func (b *Builder) checkAddress(address, hrp string) error {
	_, err := decodeAddress(address, hrp)
	return err
}

func decodeAddress(address, hrp string) ([]byte, error) {
	prefix, raw, err := bech32.DecodeAndConvert(address)
	if err != nil || prefix != hrp {
		return nil, txbuilder.NewBuildError("Invalid address: %s", address)
	}
	return raw, nil
}

func (b *Builder) Sender(address string) error {
	raw, err := decodeAddress(address, b.cfg.HRP)
	if err != nil {
		return err
	}
	b.sender = address
	b.senderBytes = raw
	return nil
}

// To is the recipient of a Send.
func (b *Builder) To(address string) error {
	if b.txType != TypeSend {
		return txbuilder.NewBuildError("Recipient can only be set for send transactions")
	}
	if err := b.checkAddress(address, b.cfg.HRP); err != nil {
		return err
	}
	b.to = address
	return nil
}

// Validator is the operator address a delegation targets.
func (b *Builder) Validator(address string) error {
	if !b.txType.IsStaking() {
		return txbuilder.NewBuildError("Validator can only be set for staking transactions")
	}
	if err := b.checkAddress(address, b.cfg.ValoperHRP()); err != nil {
		return err
	}
	b.validator = address
	return nil
}

// Amount is in the chain's base denom.
func (b *Builder) Amount(v string) error {
	n, err := txbuilder.ParseValue(v)
	if err != nil {
		return err
	}
	amount := math.NewIntFromBigInt(n)
	b.amount = &amount
	return nil
}

func (b *Builder) Fee(amount, gasLimit string) error {
	n, err := txbuilder.ParseValue(amount)
	if err != nil {
		return err
	}
	limit, err := txbuilder.ParseUint64("gas limit", gasLimit)
	if err != nil {
		return err
	}
	fee := math.NewIntFromBigInt(n)
	b.feeAmount = &fee
	b.gasLimit = limit
	return nil
}

func (b *Builder) AccountNumber(n uint64) {
	b.accountNumber = &n
}

// Sequence is the signer's account sequence.
func (b *Builder) Sequence(n uint64) {
	b.sequence = &n
}

func (b *Builder) Memo(memo string) {
	b.memo = memo
}

// PublicKey is the compressed secp256k1 key of the sender.
func (b *Builder) PublicKey(h string) error {
	pub, err := hex.DecodeString(strings.TrimPrefix(h, "0x"))
	if err != nil || len(pub) != 33 {
		return txbuilder.NewBuildError("Invalid public key: %s", h)
	}
	b.pubKey = pub
	return nil
}

func (b *Builder) Sign(key *keypair.Secp256k1) error {
	if key == nil || !key.HasPrivateKey() {
		return txbuilder.NewSigningError("Missing private key")
	}
	if b.signKey != nil || b.external != nil {
		return txbuilder.NewSigningError("Transaction already has a signer")
	}
	b.signKey = key
	return nil
}

func (b *Builder) AddSignature(publicKey, sig []byte) error {
	if b.signKey != nil || b.external != nil {
		return txbuilder.NewSigningError("Transaction already has a signer")
	}
	b.external = &txbuilder.Signature{PublicKey: publicKey, Bytes: sig}
	return nil
}

func (b *Builder) validate() error {
	if b.pubKey == nil && b.signKey != nil {
		b.pubKey = b.signKey.PublicKey()
	}
	switch {
	case b.txType == 0:
		return txbuilder.NewBuildError("Invalid transaction: missing transaction type")
	case b.sender == "":
		return txbuilder.NewBuildError("Invalid transaction: missing sender")
	case b.pubKey == nil:
		return txbuilder.NewBuildError("Invalid transaction: missing public key")
	case b.accountNumber == nil:
		return txbuilder.NewBuildError("Invalid transaction: missing account number")
	case b.sequence == nil:
		return txbuilder.NewBuildError("Invalid transaction: missing sequence")
	case b.amount == nil:
		return txbuilder.NewBuildError("Invalid transaction: missing amount")
	case b.txType == TypeSend && b.to == "":
		return txbuilder.NewBuildError("Invalid transaction: missing to address")
	case b.txType.IsStaking() && b.validator == "":
		return txbuilder.NewBuildError("Invalid transaction: missing validator address")
	}

	if !bytes.Equal(b.senderBytes, (&secp256k1.PubKey{Key: b.pubKey}).Address()) {
		return txbuilder.NewBuildError("Invalid transaction: public key does not match sender %s", b.sender)
	}
	return nil
}

func (b *Builder) message() (sdk.Msg, string) {
	coin := sdk.NewCoin(b.cfg.Denom, *b.amount)
	switch b.txType {
	case TypeDelegate:
		return &stakingtypes.MsgDelegate{DelegatorAddress: b.sender, ValidatorAddress: b.validator, Amount: coin}, b.validator
	case TypeUndelegate:
		return &stakingtypes.MsgUndelegate{DelegatorAddress: b.sender, ValidatorAddress: b.validator, Amount: coin}, b.validator
	default:
		return &banktypes.MsgSend{FromAddress: b.sender, ToAddress: b.to, Amount: sdk.NewCoins(coin)}, b.to
	}
}

func (b *Builder) fee() (*tx.Fee, error) {
	if b.feeAmount != nil {
		return &tx.Fee{Amount: sdk.NewCoins(sdk.NewCoin(b.cfg.Denom, *b.feeAmount)), GasLimit: b.gasLimit}, nil
	}
	amount, ok := math.NewIntFromString(b.cfg.FeeAmount)
	if !ok {
		return nil, txbuilder.NewBuildError("Invalid fee amount: %s", b.cfg.FeeAmount)
	}
	return &tx.Fee{Amount: sdk.NewCoins(sdk.NewCoin(b.cfg.Denom, amount)), GasLimit: b.cfg.GasLimit}, nil
}

func (b *Builder) Build() (*Transaction, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	msg, target := b.message()
	msgAny, err := codectypes.NewAnyWithValue(msg)
	if err != nil {
		return nil, txbuilder.NewBuildError("failed to pack message: %v", err)
	}
	pubKeyAny, err := codectypes.NewAnyWithValue(&secp256k1.PubKey{Key: b.pubKey})
	if err != nil {
		return nil, txbuilder.NewBuildError("failed to pack public key: %v", err)
	}
	fee, err := b.fee()
	if err != nil {
		return nil, err
	}

	authInfo := &tx.AuthInfo{
		SignerInfos: []*tx.SignerInfo{{
			PublicKey: pubKeyAny,
			ModeInfo: &tx.ModeInfo{
				Sum: &tx.ModeInfo_Single_{
					Single: &tx.ModeInfo_Single{Mode: signing.SignMode_SIGN_MODE_DIRECT},
				},
			},
			Sequence: *b.sequence,
		}},
		Fee: fee,
	}
	body := &tx.TxBody{
		Messages: []*codectypes.Any{msgAny},
		Memo:     b.memo,
	}

	t, err := newTransaction(b.cdc, b.cfg, b.txType, b.sender, target, b.amount.String(), body, authInfo, *b.accountNumber, b.pubKey)
	if err != nil {
		return nil, err
	}

	// a decoded signature is only kept while it still verifies
	if len(b.decoded) != 0 {
		_ = t.AddSignature(b.pubKey, b.decoded)
	}
	if b.external != nil && t.State() == txbuilder.Unsigned {
		if err = t.AddSignature(b.external.PublicKey, b.external.Bytes); err != nil {
			return nil, err
		}
	}
	if b.signKey != nil && t.State() == txbuilder.Unsigned {
		if err = t.Sign(b.signKey); err != nil {
			return nil, err
		}
	}
	return t, nil
}
