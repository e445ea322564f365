package solana

import (
	"encoding/binary"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/vultisig/app-recovery/internal/keypair"
	"github.com/vultisig/app-recovery/internal/txbuilder"
)

// LamportsPerSignature is the base fee the cluster charges per signature.
const LamportsPerSignature = 5000

// transferCheckedDiscriminator selects TransferChecked in both token
// programs. Unlike Transfer it names the mint, so a decoded transaction still
// says which token it moves.
const transferCheckedDiscriminator = 12

type TransactionType int

const (
	TypeTransfer TransactionType = iota
	TypeTokenTransfer
)

func (t TransactionType) String() string {
	switch t {
	case TypeTransfer:
		return "Transfer"
	case TypeTokenTransfer:
		return "TokenTransfer"
	default:
		return "Unknown"
	}
}

var explainOrder = []string{"id", "outputs", "outputAmount", "fee", "blockhash", "type"}

var _ txbuilder.Transaction = (*Transaction)(nil)

// transfer is the single instruction a recovery transaction carries.
type transfer struct {
	txType    TransactionType
	sender    solana.PublicKey
	recipient solana.PublicKey
	amount    uint64
	blockhash solana.Hash
	// token transfers only
	mint         solana.PublicKey
	decimals     uint8
	tokenProgram solana.PublicKey
	source       solana.PublicKey
	destination  solana.PublicKey
}

func (t transfer) instruction() solana.Instruction {
	if t.txType == TypeTransfer {
		return system.NewTransferInstruction(t.amount, t.sender, t.recipient).Build()
	}

	data := make([]byte, 10)
	data[0] = transferCheckedDiscriminator
	binary.LittleEndian.PutUint64(data[1:9], t.amount)
	data[9] = t.decimals
	return solana.NewInstruction(
		t.tokenProgram,
		[]*solana.AccountMeta{
			{PublicKey: t.source, IsSigner: false, IsWritable: true},
			{PublicKey: t.mint, IsSigner: false, IsWritable: false},
			{PublicKey: t.destination, IsSigner: false, IsWritable: true},
			{PublicKey: t.sender, IsSigner: true, IsWritable: false},
		},
		data,
	)
}

// Transaction is a single-instruction transfer paid and signed by the sender.
type Transaction struct {
	transfer    transfer
	tx          *solana.Transaction
	message     []byte
	coordinator *txbuilder.Coordinator
}

func newTransaction(t transfer) (*Transaction, error) {
	tx, err := solana.NewTransaction(
		[]solana.Instruction{t.instruction()},
		t.blockhash,
		solana.TransactionPayer(t.sender),
	)
	if err != nil {
		return nil, txbuilder.NewBuildError("failed to create transaction: %v", err)
	}
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, txbuilder.NewBuildError("failed to encode message: %v", err)
	}
	c, err := txbuilder.NewCoordinator(1, t.sender.String())
	if err != nil {
		return nil, err
	}
	return &Transaction{transfer: t, tx: tx, message: message, coordinator: c}, nil
}

func (t *Transaction) Type() TransactionType { return t.transfer.txType }
func (t *Transaction) State() txbuilder.State {
	return t.coordinator.State()
}

// Message is what the fee payer signs. Ed25519 signs the serialized message
// itself, not a digest of it.
func (t *Transaction) Message() []byte {
	return append([]byte(nil), t.message...)
}

func (t *Transaction) Sign(key *keypair.Ed25519) error {
	if key == nil || !key.HasPrivateKey() {
		return txbuilder.NewSigningError("Missing private key")
	}
	sig, err := key.Sign(t.message)
	if err != nil {
		return txbuilder.NewSigningError("failed to sign transaction: %v", err)
	}
	return t.AddSignature(key.PublicKey(), sig)
}

// AddSignature attaches a signature by the fee payer after verifying it
// against the message.
func (t *Transaction) AddSignature(publicKey, sig []byte) error {
	if len(publicKey) != solana.PublicKeyLength {
		return txbuilder.NewSigningError("Invalid public key length: %d", len(publicKey))
	}
	pub := solana.PublicKeyFromBytes(publicKey)
	if !pub.Equals(t.transfer.sender) {
		return txbuilder.NewSigningError("Key %s cannot sign for fee payer %s", pub, t.transfer.sender)
	}
	if len(sig) != solana.SignatureLength {
		return txbuilder.NewSigningError("Invalid signature length: %d", len(sig))
	}
	if !solana.SignatureFromBytes(sig).Verify(pub, t.message) {
		return txbuilder.NewSigningError("Signature does not verify for %s", pub)
	}
	return t.coordinator.Add(txbuilder.Signature{
		Signer:    pub.String(),
		PublicKey: publicKey,
		Bytes:     append([]byte(nil), sig...),
	})
}

func (t *Transaction) signature() (solana.Signature, bool) {
	sigs := t.coordinator.Signatures()
	if len(sigs) == 0 {
		return solana.Signature{}, false
	}
	return solana.SignatureFromBytes(sigs[0].Bytes), true
}

// ToBroadcastFormat returns the wire transaction. An unsigned transaction
// carries a zeroed signature slot so it still decodes as a transaction.
func (t *Transaction) ToBroadcastFormat() ([]byte, error) {
	if t.coordinator.State() == txbuilder.FullySigned {
		if err := t.coordinator.Seal(); err != nil {
			return nil, err
		}
	}
	sig, _ := t.signature()
	t.tx.Signatures = []solana.Signature{sig}
	raw, err := t.tx.MarshalBinary()
	if err != nil {
		return nil, txbuilder.NewInvalidTransactionError("failed to encode transaction", err)
	}
	return raw, nil
}

// Signed returns the library transaction with the collected signature set.
func (t *Transaction) Signed() (*solana.Transaction, error) {
	sig, ok := t.signature()
	if !ok {
		return nil, txbuilder.NewSigningError("transaction is not signed")
	}
	t.tx.Signatures = []solana.Signature{sig}
	return t.tx, nil
}

// ID is the base58 fee payer signature, empty while unsigned.
func (t *Transaction) ID() string {
	sig, ok := t.signature()
	if !ok {
		return ""
	}
	return sig.String()
}

func (t *Transaction) Explain() (*txbuilder.Explanation, error) {
	amount := strconv.FormatUint(t.transfer.amount, 10)
	out := txbuilder.Output{Address: t.transfer.recipient.String(), Amount: amount}
	if t.transfer.txType == TypeTokenTransfer {
		// the owner is not on the wire, only its token account
		out.Address = t.transfer.destination.String()
		out.Token = t.transfer.mint.String()
	}
	return txbuilder.NewExplanation(explainOrder).
		Set("id", t.ID()).
		Set("outputs", []txbuilder.Output{out}).
		Set("outputAmount", amount).
		Set("fee", map[string]string{"fee": strconv.Itoa(LamportsPerSignature)}).
		Set("blockhash", t.transfer.blockhash.String()).
		Set("type", t.transfer.txType.String()), nil
}
