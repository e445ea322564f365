package cosmos

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/cosmos/cosmos-sdk/codec"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	"github.com/cosmos/cosmos-sdk/types/tx"

	"github.com/vultisig/app-recovery/internal/keypair"
	"github.com/vultisig/app-recovery/internal/txbuilder"
)

type TransactionType int

const (
	TypeSend TransactionType = iota + 1
	TypeDelegate
	TypeUndelegate
)

func (t TransactionType) String() string {
	switch t {
	case TypeSend:
		return "Send"
	case TypeDelegate:
		return "Delegate"
	case TypeUndelegate:
		return "Undelegate"
	default:
		return "Unknown"
	}
}

func (t TransactionType) IsStaking() bool { return t == TypeDelegate || t == TypeUndelegate }

var explainOrder = []string{"id", "outputs", "outputAmount", "fee", "memo", "type"}

var _ txbuilder.Transaction = (*Transaction)(nil)

// Transaction is a single-message, single-signer Cosmos transaction signed
// with SIGN_MODE_DIRECT.
type Transaction struct {
	cfg           ChainConfig
	txType        TransactionType
	sender        string
	target        string
	amount        string
	body          *tx.TxBody
	authInfo      *tx.AuthInfo
	bodyBytes     []byte
	authInfoBytes []byte
	accountNumber uint64
	pubKey        []byte
	coordinator   *txbuilder.Coordinator
}

func newTransaction(cdc *codec.ProtoCodec, cfg ChainConfig, t TransactionType, sender, target, amount string,
	body *tx.TxBody, authInfo *tx.AuthInfo, accountNumber uint64, pubKey []byte) (*Transaction, error) {
	bodyBytes, err := cdc.Marshal(body)
	if err != nil {
		return nil, txbuilder.NewBuildError("failed to marshal tx body: %v", err)
	}
	authInfoBytes, err := cdc.Marshal(authInfo)
	if err != nil {
		return nil, txbuilder.NewBuildError("failed to marshal auth info: %v", err)
	}
	c, err := txbuilder.NewCoordinator(1, sender)
	if err != nil {
		return nil, err
	}
	return &Transaction{
		cfg:           cfg,
		txType:        t,
		sender:        sender,
		target:        target,
		amount:        amount,
		body:          body,
		authInfo:      authInfo,
		bodyBytes:     bodyBytes,
		authInfoBytes: authInfoBytes,
		accountNumber: accountNumber,
		pubKey:        pubKey,
		coordinator:   c,
	}, nil
}

func (t *Transaction) Type() TransactionType { return t.txType }

func (t *Transaction) State() txbuilder.State { return t.coordinator.State() }

func (t *Transaction) Signatures() []txbuilder.Signature { return t.coordinator.Signatures() }

// SignBytes is the serialized SignDoc.
func (t *Transaction) SignBytes() ([]byte, error) {
	doc := &tx.SignDoc{
		BodyBytes:     t.bodyBytes,
		AuthInfoBytes: t.authInfoBytes,
		ChainId:       t.cfg.ChainID,
		AccountNumber: t.accountNumber,
	}
	b, err := doc.Marshal()
	if err != nil {
		return nil, txbuilder.NewSigningError("failed to marshal sign doc: %v", err)
	}
	return b, nil
}

// SigningHash is the digest a TSS ceremony signs: SHA-256 of the sign bytes.
func (t *Transaction) SigningHash() ([]byte, error) {
	b, err := t.SignBytes()
	if err != nil {
		return nil, err
	}
	h := sha256.Sum256(b)
	return h[:], nil
}

func (t *Transaction) Sign(key *keypair.Secp256k1) error {
	if key == nil || !key.HasPrivateKey() {
		return txbuilder.NewSigningError("Missing private key")
	}
	if !bytes.Equal(key.PublicKey(), t.pubKey) {
		return txbuilder.NewSigningError("Key %X cannot sign for sender %s", key.PublicKey(), t.sender)
	}
	digest, err := t.SigningHash()
	if err != nil {
		return err
	}
	sig, err := key.SignRecoverable(digest)
	if err != nil {
		return txbuilder.NewSigningError("failed to sign: %v", err)
	}
	return t.AddSignature(key.PublicKey(), sig[:64])
}

// AddSignature attaches a 64-byte r || s signature over the sign bytes.
func (t *Transaction) AddSignature(publicKey, sig []byte) error {
	if !bytes.Equal(publicKey, t.pubKey) {
		return txbuilder.NewSigningError("Key %X cannot sign for sender %s", publicKey, t.sender)
	}
	if len(sig) != 64 {
		return txbuilder.NewSigningError("invalid signature length: expected 64 bytes, got %d", len(sig))
	}
	signBytes, err := t.SignBytes()
	if err != nil {
		return err
	}
	if !(&secp256k1.PubKey{Key: publicKey}).VerifySignature(signBytes, sig) {
		return txbuilder.NewSigningError("signature does not verify for sender %s", t.sender)
	}
	return t.coordinator.Add(txbuilder.Signature{
		Signer:    t.sender,
		PublicKey: bytes.Clone(publicKey),
		Bytes:     bytes.Clone(sig),
	})
}

func (t *Transaction) txRaw() ([]byte, error) {
	sig := []byte{}
	if sigs := t.coordinator.Signatures(); len(sigs) == 1 {
		sig = sigs[0].Bytes
	}
	raw := &tx.TxRaw{
		BodyBytes:     t.bodyBytes,
		AuthInfoBytes: t.authInfoBytes,
		Signatures:    [][]byte{sig},
	}
	return raw.Marshal()
}

// ToBroadcastFormat returns the TxRaw bytes, with an empty signature slot
// while unsigned.
func (t *Transaction) ToBroadcastFormat() ([]byte, error) {
	if t.coordinator.State() >= txbuilder.FullySigned {
		if err := t.coordinator.Seal(); err != nil {
			return nil, err
		}
	}
	return t.txRaw()
}

// ID is the upper-case hex SHA-256 of the signed TxRaw.
func (t *Transaction) ID() string {
	if t.coordinator.Count() == 0 {
		return ""
	}
	raw, err := t.txRaw()
	if err != nil {
		return ""
	}
	h := sha256.Sum256(raw)
	return strings.ToUpper(hex.EncodeToString(h[:]))
}

func (t *Transaction) Explain() (*txbuilder.Explanation, error) {
	fee := map[string]string{"fee": "0", "gasLimit": strconv.FormatUint(t.authInfo.Fee.GasLimit, 10)}
	for _, c := range t.authInfo.Fee.Amount {
		if c.Denom == t.cfg.Denom {
			fee["fee"] = c.Amount.String()
		}
	}
	return txbuilder.NewExplanation(explainOrder).
		Set("id", t.ID()).
		Set("outputs", []txbuilder.Output{{Address: t.target, Amount: t.amount, Token: t.cfg.Denom}}).
		Set("outputAmount", t.amount).
		Set("fee", fee).
		Set("memo", t.body.Memo).
		Set("type", t.txType.String()), nil
}
