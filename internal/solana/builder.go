package solana

import (
	"github.com/gagliardetto/solana-go"

	"github.com/vultisig/app-recovery/internal/keypair"
	"github.com/vultisig/app-recovery/internal/txbuilder"
)

// Builder accumulates one transfer. The sender pays the fee and is the only
// signer.
type Builder struct {
	txType    TransactionType
	sender    *solana.PublicKey
	to        *solana.PublicKey
	amount    *uint64
	blockhash *solana.Hash

	mint         *solana.PublicKey
	decimals     uint8
	tokenProgram solana.PublicKey
	// decoded token transfers carry the accounts as found on the wire
	source      *solana.PublicKey
	destination *solana.PublicKey

	signKey  *keypair.Ed25519
	external *txbuilder.Signature
	decoded  *txbuilder.Signature
}

func parsePublicKey(address string) (solana.PublicKey, error) {
	pub, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, txbuilder.NewBuildError("Invalid address: %s", address)
	}
	return pub, nil
}

func (b *Builder) Sender(address string) error {
	pub, err := parsePublicKey(address)
	if err != nil {
		return err
	}
	b.sender = &pub
	b.source = nil
	return nil
}

// To is the recipient wallet. Token transfers pay its associated token
// account.
func (b *Builder) To(address string) error {
	pub, err := parsePublicKey(address)
	if err != nil {
		return err
	}
	b.to = &pub
	b.destination = nil
	return nil
}

// Amount is in lamports, or in token base units for token transfers.
func (b *Builder) Amount(v string) error {
	amount, err := txbuilder.ParseUint64("amount", v)
	if err != nil {
		return err
	}
	if amount == 0 {
		return txbuilder.NewBuildError("Invalid amount: %s", v)
	}
	b.amount = &amount
	return nil
}

func (b *Builder) RecentBlockhash(h string) error {
	hash, err := solana.HashFromBase58(h)
	if err != nil {
		return txbuilder.NewBuildError("Invalid blockhash: %s", h)
	}
	b.blockhash = &hash
	return nil
}

// Token switches the builder to a TransferChecked of mint under tokenProgram,
// either the SPL token program or Token-2022.
func (b *Builder) Token(mint string, decimals uint8, tokenProgram string) error {
	if b.txType != TypeTokenTransfer {
		return txbuilder.NewBuildError("Token can only be set on a token transfer")
	}
	m, err := parsePublicKey(mint)
	if err != nil {
		return err
	}
	program, err := parsePublicKey(tokenProgram)
	if err != nil {
		return err
	}
	if !program.Equals(solana.TokenProgramID) && !program.Equals(solana.Token2022ProgramID) {
		return txbuilder.NewBuildError("Invalid token program: %s", tokenProgram)
	}
	b.mint = &m
	b.decimals = decimals
	b.tokenProgram = program
	b.source, b.destination = nil, nil
	return nil
}

func (b *Builder) Sign(key *keypair.Ed25519) error {
	if key == nil || !key.HasPrivateKey() {
		return txbuilder.NewSigningError("Missing private key")
	}
	if b.signKey != nil || b.external != nil {
		return txbuilder.NewSigningError("Transaction already has a signer")
	}
	b.signKey = key
	b.decoded = nil
	return nil
}

// AddSignature queues an externally produced ed25519 signature.
func (b *Builder) AddSignature(publicKey, sig []byte) error {
	if len(publicKey) == 0 || len(sig) == 0 {
		return txbuilder.NewSigningError("Missing public key or signature")
	}
	if b.signKey != nil || b.external != nil {
		return txbuilder.NewSigningError("Transaction already has a signer")
	}
	b.external = &txbuilder.Signature{PublicKey: publicKey, Bytes: sig}
	b.decoded = nil
	return nil
}

func (b *Builder) validate() error {
	switch {
	case b.sender == nil:
		return txbuilder.NewBuildError("Invalid transaction: missing sender")
	case b.to == nil && b.destination == nil:
		return txbuilder.NewBuildError("Invalid transaction: missing to address")
	case b.amount == nil:
		return txbuilder.NewBuildError("Invalid transaction: missing amount")
	case b.blockhash == nil:
		return txbuilder.NewBuildError("Invalid transaction: missing blockhash")
	case b.txType == TypeTokenTransfer && b.mint == nil:
		return txbuilder.NewBuildError("Invalid transaction: missing token")
	}
	return nil
}

func (b *Builder) transfer() (transfer, error) {
	t := transfer{
		txType:    b.txType,
		sender:    *b.sender,
		amount:    *b.amount,
		blockhash: *b.blockhash,
	}
	if b.to != nil {
		t.recipient = *b.to
	}
	if b.txType != TypeTokenTransfer {
		return t, nil
	}

	t.mint = *b.mint
	t.decimals = b.decimals
	t.tokenProgram = b.tokenProgram
	var err error
	if b.source != nil {
		t.source = *b.source
	} else if t.source, _, err = FindAssociatedTokenAddress(t.sender, t.mint, t.tokenProgram); err != nil {
		return transfer{}, txbuilder.NewBuildError("failed to derive source token account: %v", err)
	}
	if b.destination != nil {
		t.destination = *b.destination
	} else if t.destination, _, err = FindAssociatedTokenAddress(t.recipient, t.mint, t.tokenProgram); err != nil {
		return transfer{}, txbuilder.NewBuildError("failed to derive destination token account: %v", err)
	}
	return t, nil
}

func (b *Builder) Build() (*Transaction, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	t, err := b.transfer()
	if err != nil {
		return nil, err
	}
	tx, err := newTransaction(t)
	if err != nil {
		return nil, err
	}

	// a decoded signature survives only while the message is unchanged
	if b.decoded != nil {
		_ = tx.AddSignature(b.decoded.PublicKey, b.decoded.Bytes)
	}
	if b.external != nil {
		if err = tx.AddSignature(b.external.PublicKey, b.external.Bytes); err != nil {
			return nil, err
		}
	}
	if b.signKey != nil {
		if err = tx.Sign(b.signKey); err != nil {
			return nil, err
		}
	}
	return tx, nil
}
