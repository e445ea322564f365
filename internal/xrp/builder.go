package xrp

import (
	"encoding/hex"
	"strings"

	"github.com/vultisig/app-recovery/internal/keypair"
	"github.com/vultisig/app-recovery/internal/txbuilder"
)

// Builder accumulates one Payment. A payment is either single-signed, when
// SigningPubKey is set, or multi-signed by a quorum of the signer list.
type Builder struct {
	sender             *AccountID
	destination        *Address
	amount             *uint64
	fee                *uint64
	sequence           *uint32
	lastLedgerSequence *uint32
	flags              *uint32
	extra              map[string]any

	signingPubKey []byte
	signers       []AccountID
	quorum        int

	signKeys []*keypair.Secp256k1
	external []txbuilder.Signature
	decoded  []txbuilder.Signature
}

func (b *Builder) Sender(address string) error {
	id, err := DecodeAccountID(address)
	if err != nil {
		return txbuilder.NewBuildError("Invalid address: %s", address)
	}
	b.sender = &id
	return nil
}

// To accepts an r-address with an optional "?dt=" destination tag.
func (b *Builder) To(address string) error {
	addr, err := ParseAddress(address)
	if err != nil {
		return txbuilder.NewBuildError("Invalid address: %s", address)
	}
	b.destination = &addr
	return nil
}

// Amount is in drops.
func (b *Builder) Amount(drops string) error {
	v, err := txbuilder.ParseUint64("amount", drops)
	if err != nil {
		return err
	}
	if v == 0 {
		return txbuilder.NewBuildError("Invalid amount: %s", drops)
	}
	b.amount = &v
	return nil
}

// Fee is in drops. Multi-signed payments pay MultisigFee.
func (b *Builder) Fee(drops string) error {
	v, err := txbuilder.ParseUint64("fee", drops)
	if err != nil {
		return err
	}
	b.fee = &v
	return nil
}

// Sequence is the account sequence number.
func (b *Builder) Sequence(n uint32) {
	b.sequence = &n
}

func (b *Builder) LastLedgerSequence(n uint32) {
	b.lastLedgerSequence = &n
}

func (b *Builder) Flags(f uint32) {
	b.flags = &f
}

// Memo attaches a plain-text memo.
func (b *Builder) Memo(text string) {
	if b.extra == nil {
		b.extra = make(map[string]any)
	}
	b.extra["Memos"] = []any{
		map[string]any{
			"Memo": map[string]any{
				"MemoData": strings.ToUpper(hex.EncodeToString([]byte(text))),
			},
		},
	}
}

// SigningPubKey switches the payment to single-key signing.
func (b *Builder) SigningPubKey(h string) error {
	pub, err := hex.DecodeString(strings.TrimPrefix(h, "0x"))
	if err != nil || len(pub) != 33 {
		return txbuilder.NewBuildError("Invalid signing public key: %s", h)
	}
	b.signingPubKey = pub
	return nil
}

// Signer adds an account of the sender's signer list.
func (b *Builder) Signer(address string) error {
	id, err := DecodeAccountID(address)
	if err != nil {
		return txbuilder.NewBuildError("Invalid address: %s", address)
	}
	for _, s := range b.signers {
		if s == id {
			return txbuilder.NewBuildError("Repeated signer: %s", address)
		}
	}
	if len(b.signers) >= MaxSigners {
		return txbuilder.NewBuildError("Too many signers, at most %d are allowed", MaxSigners)
	}
	b.signers = append(b.signers, id)
	return nil
}

// Quorum is the number of signatures a multi-signed payment needs.
func (b *Builder) Quorum(n int) error {
	if n <= 0 {
		return txbuilder.NewBuildError("Invalid quorum: %d", n)
	}
	b.quorum = n
	return nil
}

// Sign queues key to sign at build time. Each key signs as the signer list
// account it derives.
func (b *Builder) Sign(key *keypair.Secp256k1) error {
	if key == nil || !key.HasPrivateKey() {
		return txbuilder.NewSigningError("Missing private key")
	}
	b.signKeys = append(b.signKeys, key)
	return nil
}

// AddSignature queues an externally produced DER signature.
func (b *Builder) AddSignature(publicKey, sig []byte) error {
	if len(publicKey) == 0 || len(sig) == 0 {
		return txbuilder.NewSigningError("Missing public key or signature")
	}
	b.external = append(b.external, txbuilder.Signature{PublicKey: publicKey, Bytes: sig})
	return nil
}

func (b *Builder) validate() error {
	switch {
	case b.sender == nil:
		return txbuilder.NewBuildError("Invalid transaction: missing sender")
	case b.destination == nil:
		return txbuilder.NewBuildError("Invalid transaction: missing destination")
	case b.amount == nil:
		return txbuilder.NewBuildError("Invalid transaction: missing amount")
	case b.fee == nil:
		return txbuilder.NewBuildError("Invalid transaction: missing fee")
	case b.sequence == nil:
		return txbuilder.NewBuildError("Invalid transaction: missing sequence")
	case len(b.signingPubKey) != 0 && len(b.signers) != 0:
		return txbuilder.NewBuildError("Invalid transaction: signing public key and signer list are exclusive")
	case len(b.signingPubKey) == 0 && len(b.signers) == 0:
		return txbuilder.NewBuildError("Invalid transaction: missing signer list")
	}
	return nil
}

func (b *Builder) Build() (*Transaction, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	quorum := b.quorum
	if quorum == 0 {
		quorum = DefaultQuorum
	}
	if len(b.signers) != 0 && quorum > len(b.signers) {
		return nil, txbuilder.NewBuildError("Invalid quorum: %d for %d signers", quorum, len(b.signers))
	}

	p := payment{
		account:            *b.sender,
		destination:        *b.destination,
		amount:             *b.amount,
		fee:                *b.fee,
		sequence:           *b.sequence,
		lastLedgerSequence: b.lastLedgerSequence,
		flags:              b.flags,
		extra:              b.extra,
	}
	tx, err := newTransaction(p, b.signingPubKey, b.signers, quorum)
	if err != nil {
		return nil, err
	}

	// decoded signatures only verify when nothing they commit to has changed
	for _, s := range b.decoded {
		_ = tx.AddSignature(s.PublicKey, s.Bytes)
	}
	for _, s := range b.external {
		if err = tx.AddSignature(s.PublicKey, s.Bytes); err != nil {
			return nil, err
		}
	}
	for _, key := range b.signKeys {
		if err = tx.Sign(key); err != nil {
			return nil, err
		}
	}
	return tx, nil
}
