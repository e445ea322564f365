package evm

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"strings"
	"time"

	ecommon "github.com/ethereum/go-ethereum/common"

	"github.com/vultisig/app-recovery/internal/txbuilder"
)

// Factory hands out independent builders for one network.
type Factory struct {
	params *NetworkParams
	now    func() time.Time
}

type FactoryOption func(*Factory)

// WithClock overrides the clock used for default expiration times.
func WithClock(now func() time.Time) FactoryOption {
	return func(f *Factory) { f.now = now }
}

func NewFactory(params *NetworkParams, opts ...FactoryOption) *Factory {
	f := &Factory{params: params, now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) Params() *NetworkParams { return f.params }

func (f *Factory) typed(t TransactionType) *Builder {
	b := newBuilder(f.params, f.now)
	b.txType = t
	return b
}

func (f *Factory) GetTransferBuilder() *Builder { return f.typed(TypeSend) }

func (f *Factory) GetWalletInitializationBuilder() *Builder {
	return f.typed(TypeWalletInitialization)
}

func (f *Factory) GetAddressInitializationBuilder() *Builder {
	return f.typed(TypeAddressInitialization)
}

func (f *Factory) GetFlushTokensBuilder() *Builder { return f.typed(TypeFlushTokens) }
func (f *Factory) GetFlushCoinsBuilder() *Builder { return f.typed(TypeFlushCoins) }
func (f *Factory) GetSingleSigSendBuilder() *Builder { return f.typed(TypeSingleSigSend) }
func (f *Factory) GetContractCallBuilder() *Builder { return f.typed(TypeContractCall) }

// GetStakingBuilder returns a builder for one of the staking types. Networks
// without staking contracts do not support any of them.
func (f *Factory) GetStakingBuilder(t TransactionType) (*Builder, error) {
	if !t.IsStaking() || !f.params.SupportsStaking() {
		return nil, &txbuilder.NotSupportedError{Operation: t.String()}
	}
	return f.typed(t), nil
}

// FromHex is From over a 0x-prefixed or bare hex string.
func (f *Factory) FromHex(raw string) (*Builder, error) {
	b, err := DecodeHex(raw)
	if err != nil {
		return nil, err
	}
	return f.From(b)
}

// From decodes raw, classifies its calldata and returns a builder carrying
// every decoded field. Building it without changes reproduces raw.
func (f *Factory) From(raw []byte) (*Builder, error) {
	decoded, err := decodeRaw(raw)
	if err != nil {
		return nil, err
	}
	if decoded.chainID.Cmp(f.params.ChainIDBig()) != 0 {
		return nil, txbuilder.NewInvalidTransactionError("chain id "+decoded.chainID.String()+" does not match network "+f.params.Name, nil)
	}

	l := decoded.legacy
	t := Classify(l.Data, l.To == nil)
	if t.IsStaking() {
		// a staking selector only means staking when sent to the staking contract
		target, ok := f.params.stakingTarget(t)
		if !ok || l.To == nil || *l.To != target {
			t = TypeContractCall
		}
	}

	b := f.typed(t)
	nonce := l.Nonce
	b.counter = &nonce
	b.fee = &Fee{GasPrice: l.GasPrice, GasLimit: l.Gas}
	if l.To != nil {
		to := *l.To
		b.contract = &to
	}
	if decoded.signed() {
		b.rawSig = decoded.sig
		if b.rawSigned, err = encodeUnsigned(l, decoded.chainID); err != nil {
			return nil, err
		}
	}

	if err = b.loadPayload(l.To, l.Value, l.Data); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Builder) loadPayload(to *ecommon.Address, value *big.Int, data []byte) error {
	switch b.txType {
	case TypeSend:
		op, err := decodeTransferData(data)
		if err != nil {
			return err
		}
		b.transfer = transferFromDecoded(op)

	case TypeWalletInitialization:
		if to == nil {
			b.loadWalletBytecode(data)
			return nil
		}
		v, err := createWalletMethod.unpack(data)
		if err != nil {
			return err
		}
		salt := v[1].([32]byte)
		b.walletVersion = 1
		b.owners = v[0].([]ecommon.Address)
		b.salt = &salt

	case TypeAddressInitialization:
		return b.loadForwarderInit(data)

	case TypeFlushTokens:
		if bytes.HasPrefix(data, flushTokensMethod.id) {
			v, err := flushTokensMethod.unpack(data)
			if err != nil {
				return err
			}
			token := v[0].(ecommon.Address)
			b.forwarderVersion = 4
			b.forwarderAddress = to
			b.tokenAddress = &token
			b.contract = nil
			return nil
		}
		v, err := flushForwarderTokensMethod.unpack(data)
		if err != nil {
			return err
		}
		fwd, token := v[0].(ecommon.Address), v[1].(ecommon.Address)
		b.forwarderAddress = &fwd
		b.tokenAddress = &token

	case TypeFlushCoins:

	case TypeSingleSigSend:
		if to == nil {
			return txbuilder.NewInvalidTransactionError("single sig send without recipient", nil)
		}
		b.value = value
		// calldata shorter than a selector is carried through as a contract call
		if len(data) != 0 {
			b.txType = TypeContractCall
			b.data = data
			return nil
		}
		b.to = to
		b.contract = nil

	case TypeContractCall:
		b.value = value
		b.data = data

	default:
		op, err := decodeStaking(b.txType, value, data)
		if err != nil {
			return err
		}
		// calls the staking builder cannot reproduce byte for byte stay generic
		target, reValue, reData, err := op.encode(b.params)
		if err != nil || to == nil || target != *to ||
			valueOrZero(reValue).Cmp(valueOrZero(value)) != 0 || !bytes.Equal(reData, data) {
			b.txType = TypeContractCall
			b.value = value
			b.data = data
			return nil
		}
		b.staking = op
	}
	return nil
}

func (b *Builder) loadWalletBytecode(data []byte) {
	code, err := hex.DecodeString(strings.TrimPrefix(b.params.WalletBytecode, "0x"))
	if err == nil && len(code) != 0 && bytes.HasPrefix(data, code) {
		if v, er := walletConstructor.args.Unpack(data[len(code):]); er == nil && len(v) == 1 {
			if owners, ok := v[0].([]ecommon.Address); ok && len(owners) == maxOwners {
				b.owners = owners
				return
			}
		}
	}
	b.initCode = bytes.Clone(data)
}

func (b *Builder) loadForwarderInit(data []byte) error {
	switch {
	case bytes.Equal(data, createForwarderMethod.id):
		b.forwarderVersion = 0
	case bytes.HasPrefix(data, createForwarderV1Method.id):
		v, err := createForwarderV1Method.unpack(data)
		if err != nil {
			return err
		}
		parent, salt := v[0].(ecommon.Address), v[1].([32]byte)
		b.forwarderVersion = 1
		b.baseAddress = &parent
		b.salt = &salt
	case bytes.HasPrefix(data, createForwarderV4Method.id):
		v, err := createForwarderV4Method.unpack(data)
		if err != nil {
			return err
		}
		parent, fee, salt := v[0].(ecommon.Address), v[1].(ecommon.Address), v[2].([32]byte)
		b.forwarderVersion = 4
		b.baseAddress = &parent
		b.feeAddress = &fee
		b.salt = &salt
	default:
		return txbuilder.NewParseError("unrecognized forwarder initialization data", nil)
	}
	return nil
}
