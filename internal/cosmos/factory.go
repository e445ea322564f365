package cosmos

import (
	"encoding/hex"
	"strings"

	"cosmossdk.io/math"
	"github.com/cosmos/cosmos-sdk/codec"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	"github.com/cosmos/cosmos-sdk/types/tx"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	stakingtypes "github.com/cosmos/cosmos-sdk/x/staking/types"

	"github.com/vultisig/app-recovery/internal/txbuilder"
)

// Factory hands out builders for one Cosmos-SDK chain.
type Factory struct {
	cfg ChainConfig
	cdc *codec.ProtoCodec
}

func NewFactory(cfg ChainConfig, cache *CodecCache) (*Factory, error) {
	cdc, err := LoadCodec(cache, cfg)
	if err != nil {
		return nil, err
	}
	return &Factory{cfg: cfg, cdc: cdc}, nil
}

func (f *Factory) Config() ChainConfig { return f.cfg }

func (f *Factory) typed(t TransactionType) *Builder {
	return &Builder{cfg: f.cfg, cdc: f.cdc, txType: t}
}

func (f *Factory) GetSendBuilder() *Builder { return f.typed(TypeSend) }

// GetStakingBuilder returns a Delegate or Undelegate builder on chains with
// the staking module.
func (f *Factory) GetStakingBuilder(t TransactionType) (*Builder, error) {
	if !t.IsStaking() || !f.cfg.Staking {
		return nil, &txbuilder.NotSupportedError{Operation: t.String()}
	}
	return f.typed(t), nil
}

func (f *Factory) FromHex(raw string) (*Builder, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return nil, txbuilder.NewInvalidTransactionError("There was error in decoding the hex string", err)
	}
	return f.From(b)
}

// From decodes TxRaw bytes. The account number is not part of the encoding
// and has to be set before Build.
func (f *Factory) From(raw []byte) (*Builder, error) {
	if len(raw) == 0 {
		return nil, txbuilder.NewInvalidTransactionError("Raw transaction is empty", nil)
	}
	var txRaw tx.TxRaw
	if err := txRaw.Unmarshal(raw); err != nil {
		return nil, txbuilder.NewParseError("invalid TxRaw", err)
	}
	var body tx.TxBody
	if err := body.Unmarshal(txRaw.BodyBytes); err != nil {
		return nil, txbuilder.NewParseError("invalid tx body", err)
	}
	var authInfo tx.AuthInfo
	if err := authInfo.Unmarshal(txRaw.AuthInfoBytes); err != nil {
		return nil, txbuilder.NewParseError("invalid auth info", err)
	}
	if len(body.Messages) != 1 || len(authInfo.SignerInfos) != 1 {
		return nil, &txbuilder.NotSupportedError{Operation: "multi-message or multi-signer cosmos transaction"}
	}

	b, err := f.loadMessage(body.Messages[0].TypeUrl, body.Messages[0].Value)
	if err != nil {
		return nil, err
	}
	b.memo = body.Memo

	info := authInfo.SignerInfos[0]
	var pub secp256k1.PubKey
	if info.PublicKey == nil {
		return nil, txbuilder.NewParseError("signer info without public key", nil)
	}
	if err = pub.Unmarshal(info.PublicKey.Value); err != nil {
		return nil, txbuilder.NewParseError("invalid signer public key", err)
	}
	b.pubKey = pub.Key
	b.Sequence(info.Sequence)

	if authInfo.Fee != nil {
		fee := math.ZeroInt()
		for _, c := range authInfo.Fee.Amount {
			if c.Denom == f.cfg.Denom {
				fee = c.Amount
			}
		}
		b.feeAmount = &fee
		b.gasLimit = authInfo.Fee.GasLimit
	}
	if len(txRaw.Signatures) == 1 && len(txRaw.Signatures[0]) != 0 {
		b.decoded = txRaw.Signatures[0]
	}
	return b, nil
}

func (f *Factory) loadMessage(typeURL string, value []byte) (*Builder, error) {
	msg, err := f.cdc.InterfaceRegistry().Resolve(typeURL)
	if err != nil {
		return nil, &txbuilder.NotSupportedError{Operation: "cosmos message " + typeURL}
	}
	if err = f.cdc.Unmarshal(value, msg); err != nil {
		return nil, txbuilder.NewParseError("invalid "+typeURL, err)
	}

	switch m := msg.(type) {
	case *banktypes.MsgSend:
		if len(m.Amount) != 1 || m.Amount[0].Denom != f.cfg.Denom {
			return nil, &txbuilder.NotSupportedError{Operation: "multi-denom send"}
		}
		b := f.typed(TypeSend)
		if err = b.Sender(m.FromAddress); err != nil {
			return nil, txbuilder.NewParseError("invalid sender", err)
		}
		b.to = m.ToAddress
		amount := m.Amount[0].Amount
		b.amount = &amount
		return b, nil
	case *stakingtypes.MsgDelegate:
		b := f.typed(TypeDelegate)
		if err = b.Sender(m.DelegatorAddress); err != nil {
			return nil, txbuilder.NewParseError("invalid delegator", err)
		}
		b.validator = m.ValidatorAddress
		b.amount = &m.Amount.Amount
		return b, nil
	case *stakingtypes.MsgUndelegate:
		b := f.typed(TypeUndelegate)
		if err = b.Sender(m.DelegatorAddress); err != nil {
			return nil, txbuilder.NewParseError("invalid delegator", err)
		}
		b.validator = m.ValidatorAddress
		b.amount = &m.Amount.Amount
		return b, nil
	default:
		return nil, &txbuilder.NotSupportedError{Operation: "cosmos message " + typeURL}
	}
}
