package evm

import (
	"bytes"
	"encoding/hex"
	"math/big"

	ecommon "github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vultisig/app-recovery/internal/keypair"
	"github.com/vultisig/app-recovery/internal/txbuilder"
)

// Signer roles of an EVM transaction. The operation signature lives inside
// sendMultiSig calldata, the sender signature wraps the outer transaction.
const (
	RoleOperation = "operation"
	RoleSender    = "sender"
)

var explainOrder = []string{"id", "outputs", "outputAmount", "changeOutputs", "changeAmount", "fee", "type"}

var _ txbuilder.Transaction = (*Transaction)(nil)

type Transaction struct {
	params      *NetworkParams
	txType      TransactionType
	legacy      etypes.LegacyTx
	from        *ecommon.Address
	coordinator *txbuilder.Coordinator
	raw         []byte
}

func newTransaction(params *NetworkParams, txType TransactionType, legacy etypes.LegacyTx, from *ecommon.Address) (*Transaction, error) {
	var (
		coordinator *txbuilder.Coordinator
		err         error
	)
	if txType == TypeSend {
		coordinator, err = txbuilder.NewCoordinator(2, RoleOperation, RoleSender)
	} else {
		coordinator, err = txbuilder.NewCoordinator(1, RoleSender)
	}
	if err != nil {
		return nil, err
	}

	t := &Transaction{
		params:      params,
		txType:      txType,
		legacy:      legacy,
		from:        from,
		coordinator: coordinator,
	}
	if txType == TypeSend {
		if op, er := decodeTransferData(legacy.Data); er == nil && len(op.signature) != 0 {
			if er = coordinator.Add(txbuilder.Signature{Signer: RoleOperation, Bytes: op.signature}); er != nil {
				return nil, er
			}
		}
	}
	if err = t.encode(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Transaction) Type() TransactionType { return t.txType }

func (t *Transaction) State() txbuilder.State { return t.coordinator.State() }

func (t *Transaction) Signatures() []txbuilder.Signature { return t.coordinator.Signatures() }

// From is the sender address, known once the outer transaction is signed or
// when it was declared on the builder.
func (t *Transaction) From() (ecommon.Address, bool) {
	if t.from == nil {
		return ecommon.Address{}, false
	}
	return *t.from, true
}

// SigningHash is the EIP-155 digest of the unsigned transaction.
func (t *Transaction) SigningHash() []byte {
	return signingHash(t.legacy, t.params.ChainIDBig()).Bytes()
}

// CanSign reports whether key holds a private key for the declared sender. A
// transaction with no declared sender can be signed by any private key.
func (t *Transaction) CanSign(key *keypair.Secp256k1) bool {
	if key == nil || !key.HasPrivateKey() {
		return false
	}
	if t.from == nil {
		return true
	}
	return key.CanSignFor(*t.from)
}

// Sign signs the outer transaction with key.
func (t *Transaction) Sign(key *keypair.Secp256k1) error {
	if len(t.raw) == 0 {
		return txbuilder.NewSigningError("Cannot sign an empty transaction")
	}
	if key == nil || !key.HasPrivateKey() {
		return txbuilder.NewSigningError("Missing private key")
	}
	if !t.CanSign(key) {
		return txbuilder.NewSigningError("Key %s cannot sign for sender %s", key.EthAddress().Hex(), t.from.Hex())
	}
	sig, err := key.SignRecoverable(t.SigningHash())
	if err != nil {
		return txbuilder.NewSigningError("failed to sign transaction: %v", err)
	}
	return t.AddSignature(key.PublicKey(), sig)
}

// AddSignature attaches an externally computed sender signature. The
// signature is checked to recover to publicKey when one is given, and to the
// declared sender when there is one.
func (t *Transaction) AddSignature(publicKey, sig []byte) error {
	sig = normalizeV(sig)
	digest := t.SigningHash()
	if err := txbuilder.ValidateECDSA(digest, sig, publicKey); err != nil {
		return err
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return txbuilder.NewSigningError("signature is not recoverable: %v", err)
	}
	signer := crypto.PubkeyToAddress(*pub)
	if t.from != nil && *t.from != signer {
		return txbuilder.NewSigningError("signature recovers to %s, expected sender %s", signer.Hex(), t.from.Hex())
	}

	if err = t.coordinator.Add(txbuilder.Signature{Signer: RoleSender, PublicKey: publicKey, Bytes: sig}); err != nil {
		return err
	}
	t.from = &signer
	if err = t.encode(); err != nil {
		return err
	}
	return nil
}

func (t *Transaction) senderSignature() []byte {
	for _, s := range t.coordinator.Signatures() {
		if s.Signer == RoleSender {
			return s.Bytes
		}
	}
	return nil
}

func (t *Transaction) encode() error {
	sig := t.senderSignature()
	if sig == nil {
		raw, err := encodeUnsigned(t.legacy, t.params.ChainIDBig())
		if err != nil {
			return err
		}
		t.raw = raw
		return nil
	}
	tx, err := signedTx(t.legacy, t.params.ChainIDBig(), sig)
	if err != nil {
		return err
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return txbuilder.NewInvalidTransactionError("failed to encode signed transaction", err)
	}
	t.raw = raw
	return nil
}

func (t *Transaction) ToBroadcastFormat() ([]byte, error) {
	if len(t.raw) == 0 {
		return nil, txbuilder.NewInvalidTransactionError("Raw transaction is empty", nil)
	}
	if t.coordinator.State() == txbuilder.FullySigned {
		if err := t.coordinator.Seal(); err != nil {
			return nil, err
		}
	}
	return bytes.Clone(t.raw), nil
}

// ToBroadcastHex is ToBroadcastFormat as 0x-prefixed hex.
func (t *Transaction) ToBroadcastHex() (string, error) {
	b, err := t.ToBroadcastFormat()
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(b), nil
}

// EthTransaction returns the signed go-ethereum transaction for broadcast.
func (t *Transaction) EthTransaction() (*etypes.Transaction, error) {
	sig := t.senderSignature()
	if sig == nil {
		return nil, txbuilder.NewSigningError("transaction is not signed")
	}
	return signedTx(t.legacy, t.params.ChainIDBig(), sig)
}

func (t *Transaction) ID() string {
	sig := t.senderSignature()
	if sig == nil {
		return ""
	}
	tx, err := signedTx(t.legacy, t.params.ChainIDBig(), sig)
	if err != nil {
		return ""
	}
	return tx.Hash().Hex()
}

// ToJSON decodes the current raw bytes on every call.
func (t *Transaction) ToJSON() (*TxData, error) {
	decoded, err := decodeRaw(t.raw)
	if err != nil {
		return nil, err
	}
	l := decoded.legacy
	res := &TxData{
		Type:     Classify(l.Data, l.To == nil).String(),
		Nonce:    l.Nonce,
		GasLimit: new(big.Int).SetUint64(l.Gas).String(),
		GasPrice: l.GasPrice.String(),
		Value:    l.Value.String(),
		Data:     "0x" + hex.EncodeToString(l.Data),
		ChainID:  decoded.chainID.String(),
	}
	if l.To != nil {
		res.To = l.To.Hex()
	}
	if decoded.signed() {
		tx, er := signedTx(l, decoded.chainID, decoded.sig)
		if er != nil {
			return nil, er
		}
		from, er := etypes.Sender(etypes.NewEIP155Signer(decoded.chainID), tx)
		if er != nil {
			return nil, txbuilder.NewInvalidTransactionError("failed to recover sender", er)
		}
		v, r, s := tx.RawSignatureValues()
		res.ID = tx.Hash().Hex()
		res.From = from.Hex()
		res.V = "0x" + v.Text(16)
		res.R = "0x" + r.Text(16)
		res.S = "0x" + s.Text(16)
	}
	return res, nil
}

func (t *Transaction) Explain() (*txbuilder.Explanation, error) {
	data, err := t.ToJSON()
	if err != nil {
		return nil, err
	}

	var outputs []txbuilder.Output
	total := new(big.Int)
	switch {
	case t.txType == TypeSend:
		op, er := decodeTransferData(t.legacy.Data)
		if er != nil {
			return nil, er
		}
		out := txbuilder.Output{Address: op.to.Hex(), Amount: op.amount.String()}
		if op.token != nil {
			out.Token = op.token.Hex()
		}
		outputs = append(outputs, out)
		total.Add(total, op.amount)
	case t.legacy.To != nil:
		outputs = append(outputs, txbuilder.Output{Address: t.legacy.To.Hex(), Amount: t.legacy.Value.String()})
		total.Add(total, t.legacy.Value)
	}

	fee := Fee{GasPrice: t.legacy.GasPrice, GasLimit: t.legacy.Gas}
	return txbuilder.NewExplanation(explainOrder).
		Set("id", data.ID).
		Set("outputs", outputs).
		Set("outputAmount", total.String()).
		Set("changeOutputs", []txbuilder.Output{}).
		Set("changeAmount", "0").
		Set("fee", map[string]string{
			"fee":      fee.Total().String(),
			"gasPrice": fee.GasPrice.String(),
			"gasLimit": data.GasLimit,
		}).
		Set("type", t.txType.String()), nil
}

// normalizeV accepts v in {0,1} or {27,28}.
func normalizeV(sig []byte) []byte {
	if len(sig) == crypto.SignatureLength && sig[64] >= 27 {
		out := bytes.Clone(sig)
		out[64] -= 27
		return out
	}
	return sig
}
