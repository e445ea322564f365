package xrp

import (
	"bytes"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/vultisig/app-recovery/internal/keypair"
	"github.com/vultisig/app-recovery/internal/txbuilder"
)

const (
	TypePayment = "Payment"

	// DefaultQuorum is the signer weight a 2-of-3 signer list requires.
	DefaultQuorum = 2
	// MaxSigners is the ledger limit on signer list entries.
	MaxSigners = 32
)

var explainOrder = []string{"id", "outputs", "outputAmount", "fee", "sequence", "signers", "type"}

var _ txbuilder.Transaction = (*Transaction)(nil)

// MultisigFee is the fee a multi-signed transaction must pay: the base fee for
// the transaction itself plus one base fee per signature.
func MultisigFee(baseFee uint64, quorum int) uint64 {
	return baseFee * uint64(1+quorum)
}

type payment struct {
	account            AccountID
	destination        Address
	amount             uint64
	fee                uint64
	sequence           uint32
	lastLedgerSequence *uint32
	flags              *uint32
	// fields this package does not model, such as Memos, carried as decoded
	extra map[string]any
}

func (p payment) fields() map[string]any {
	m := make(map[string]any, len(p.extra)+10)
	for k, v := range p.extra {
		m[k] = v
	}
	m["TransactionType"] = TypePayment
	m["Account"] = p.account.String()
	m["Destination"] = p.destination.Account.String()
	m["Amount"] = strconv.FormatUint(p.amount, 10)
	m["Fee"] = strconv.FormatUint(p.fee, 10)
	m["Sequence"] = int(p.sequence)
	if p.destination.DestinationTag != nil {
		m["DestinationTag"] = int(*p.destination.DestinationTag)
	}
	if p.lastLedgerSequence != nil {
		m["LastLedgerSequence"] = int(*p.lastLedgerSequence)
	}
	if p.flags != nil {
		m["Flags"] = int(*p.flags)
	}
	return m
}

// Transaction is an XRP Payment signed either by the key behind SigningPubKey
// or by a quorum of the account's signer list. Multisig signatures are
// assembled into Signers ordered by numeric account id.
type Transaction struct {
	payment       payment
	signingPubKey []byte
	signers       []AccountID
	coordinator   *txbuilder.Coordinator
	unsigned      []byte
}

func newTransaction(p payment, signingPubKey []byte, signers []AccountID, quorum int) (*Transaction, error) {
	t := &Transaction{payment: p, signingPubKey: signingPubKey}

	var (
		order     []string
		threshold int
	)
	if len(signingPubKey) != 0 {
		account, err := AccountIDFromPublicKey(signingPubKey)
		if err != nil {
			return nil, txbuilder.NewBuildError("Invalid signing public key: %v", err)
		}
		order, threshold = []string{account.String()}, 1
	} else {
		t.signers = sortedAccounts(signers)
		for _, s := range t.signers {
			order = append(order, s.String())
		}
		threshold = quorum
	}
	c, err := txbuilder.NewCoordinator(threshold, order...)
	if err != nil {
		return nil, txbuilder.NewBuildError("Invalid signer list: %v", err)
	}
	t.coordinator = c

	fields := p.fields()
	fields["SigningPubKey"] = strings.ToUpper(hex.EncodeToString(signingPubKey))
	if t.unsigned, err = canonicalize(fields); err != nil {
		return nil, txbuilder.NewBuildError("Invalid payment: %v", err)
	}
	return t, nil
}

func sortedAccounts(in []AccountID) []AccountID {
	res := append([]AccountID(nil), in...)
	slices.SortFunc(res, func(a, b AccountID) int { return bytes.Compare(a[:], b[:]) })
	return res
}

func (t *Transaction) State() txbuilder.State { return t.coordinator.State() }

func (t *Transaction) Signatures() []txbuilder.Signature { return t.coordinator.Signatures() }

func (t *Transaction) IsMultisig() bool { return len(t.signingPubKey) == 0 }

// Signers returns the signer list in the order signatures are serialized.
func (t *Transaction) Signers() []AccountID { return append([]AccountID(nil), t.signers...) }

func (t *Transaction) Sequence() uint32 { return t.payment.sequence }

// Unsigned is the canonical encoding without any signature.
func (t *Transaction) Unsigned() []byte { return bytes.Clone(t.unsigned) }

// SigningHash returns the digest the holder of publicKey has to sign.
func (t *Transaction) SigningHash(publicKey []byte) ([]byte, error) {
	account, err := AccountIDFromPublicKey(publicKey)
	if err != nil {
		return nil, txbuilder.NewSigningError("%v", err)
	}
	if !t.IsMultisig() {
		if !bytes.Equal(publicKey, t.signingPubKey) {
			return nil, txbuilder.NewSigningError("Key %s cannot sign for signing key %X", account, t.signingPubKey)
		}
		return singleSigningHash(t.unsigned)
	}
	for _, s := range t.signers {
		if s == account {
			return multisignHash(t.unsigned, account), nil
		}
	}
	return nil, txbuilder.NewSigningError("Account %s is not in the signer list", account)
}

func (t *Transaction) Sign(key *keypair.Secp256k1) error {
	if key == nil || !key.HasPrivateKey() {
		return txbuilder.NewSigningError("Missing private key")
	}
	digest, err := t.SigningHash(key.PublicKey())
	if err != nil {
		return err
	}
	sig, err := key.SignDER(digest)
	if err != nil {
		return txbuilder.NewSigningError("failed to sign: %v", err)
	}
	return t.AddSignature(key.PublicKey(), sig)
}

// AddSignature attaches a DER signature after checking it against the digest
// of the signer derived from publicKey.
func (t *Transaction) AddSignature(publicKey, sig []byte) error {
	digest, err := t.SigningHash(publicKey)
	if err != nil {
		return err
	}
	pub, err := btcec.ParsePubKey(publicKey)
	if err != nil {
		return txbuilder.NewSigningError("invalid public key: %v", err)
	}
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return txbuilder.NewSigningError("invalid DER signature: %v", err)
	}
	account, _ := AccountIDFromPublicKey(publicKey)
	if !parsed.Verify(digest, pub) {
		return txbuilder.NewSigningError("signature does not verify for account %s", account)
	}
	return t.coordinator.Add(txbuilder.Signature{
		Signer:    account.String(),
		PublicKey: bytes.Clone(publicKey),
		Bytes:     bytes.Clone(sig),
	})
}

func (t *Transaction) signed() ([]byte, error) {
	fields := t.payment.fields()
	sigs := t.coordinator.Signatures()
	if !t.IsMultisig() {
		fields["SigningPubKey"] = strings.ToUpper(hex.EncodeToString(t.signingPubKey))
		if len(sigs) == 1 {
			fields["TxnSignature"] = strings.ToUpper(hex.EncodeToString(sigs[0].Bytes))
		}
		return canonicalize(fields)
	}

	fields["SigningPubKey"] = ""
	if len(sigs) != 0 {
		entries := make([]any, 0, len(sigs))
		for _, s := range sigs {
			entries = append(entries, map[string]any{
				"Signer": map[string]any{
					"Account":       s.Signer,
					"SigningPubKey": strings.ToUpper(hex.EncodeToString(s.PublicKey)),
					"TxnSignature":  strings.ToUpper(hex.EncodeToString(s.Bytes)),
				},
			})
		}
		fields["Signers"] = entries
	}
	return canonicalize(fields)
}

// ToBroadcastFormat returns the signed blob and seals the transaction once
// the quorum is reached. Before that it returns the partially signed blob,
// which other signers can load with Factory.From.
func (t *Transaction) ToBroadcastFormat() ([]byte, error) {
	if t.coordinator.State() >= txbuilder.FullySigned {
		if err := t.coordinator.Seal(); err != nil {
			return nil, err
		}
	}
	return t.signed()
}

func (t *Transaction) ToBroadcastHex() (string, error) {
	b, err := t.ToBroadcastFormat()
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// ID is the ledger hash of the signed blob, empty while unsigned.
func (t *Transaction) ID() string {
	if t.coordinator.Count() == 0 {
		return ""
	}
	b, err := t.signed()
	if err != nil {
		return ""
	}
	return transactionID(b)
}

func (t *Transaction) Explain() (*txbuilder.Explanation, error) {
	amount := strconv.FormatUint(t.payment.amount, 10)
	signed := make([]string, 0, t.coordinator.Count())
	for _, s := range t.coordinator.Signatures() {
		signed = append(signed, s.Signer)
	}
	return txbuilder.NewExplanation(explainOrder).
		Set("id", t.ID()).
		Set("outputs", []txbuilder.Output{{Address: t.payment.destination.String(), Amount: amount}}).
		Set("outputAmount", amount).
		Set("fee", map[string]string{"fee": strconv.FormatUint(t.payment.fee, 10)}).
		Set("sequence", t.payment.sequence).
		Set("signers", signed).
		Set("type", TypePayment), nil
}
