package solana

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/vultisig/app-recovery/internal/txbuilder"
)

// Factory hands out transfer builders and reloads serialized transactions.
type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) GetTransferBuilder() *Builder {
	return &Builder{txType: TypeTransfer}
}

func (f *Factory) GetTokenTransferBuilder() *Builder {
	return &Builder{txType: TypeTokenTransfer}
}

// FromBase64 is From over the base64 wire encoding RPC nodes use.
func (f *Factory) FromBase64(raw string) (*Builder, error) {
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, txbuilder.NewInvalidTransactionError("There was error in decoding the base64 string", err)
	}
	return f.From(b)
}

// From loads an unsigned or signed transfer. A fee payer signature is kept and
// re-attached at build time as long as it still verifies.
func (f *Factory) From(raw []byte) (*Builder, error) {
	if len(raw) == 0 {
		return nil, txbuilder.NewInvalidTransactionError("Raw transaction is empty", nil)
	}
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return nil, txbuilder.NewParseError("invalid Solana transaction", err)
	}
	msg := &tx.Message
	if len(msg.AddressTableLookups) != 0 {
		return nil, &txbuilder.NotSupportedError{Operation: "Solana address table lookup"}
	}
	if msg.Header.NumRequiredSignatures != 1 || len(msg.AccountKeys) == 0 {
		return nil, &txbuilder.NotSupportedError{Operation: "Solana multi-signer transaction"}
	}
	if len(msg.Instructions) != 1 {
		return nil, &txbuilder.NotSupportedError{Operation: fmt.Sprintf("Solana transaction with %d instructions", len(msg.Instructions))}
	}

	payer := msg.AccountKeys[0]
	blockhash := msg.RecentBlockhash
	b := &Builder{sender: &payer, blockhash: &blockhash}
	if err = b.loadInstruction(msg, msg.Instructions[0]); err != nil {
		return nil, err
	}

	if len(tx.Signatures) == 1 && tx.Signatures[0] != (solana.Signature{}) {
		b.decoded = &txbuilder.Signature{
			PublicKey: payer.Bytes(),
			Bytes:     tx.Signatures[0][:],
		}
	}
	return b, nil
}

func (b *Builder) loadInstruction(msg *solana.Message, inst solana.CompiledInstruction) error {
	if int(inst.ProgramIDIndex) >= len(msg.AccountKeys) {
		return txbuilder.NewParseError("program index out of range", nil)
	}
	accounts := make([]solana.PublicKey, len(inst.Accounts))
	for i, idx := range inst.Accounts {
		if int(idx) >= len(msg.AccountKeys) {
			return txbuilder.NewParseError("account index out of range", nil)
		}
		accounts[i] = msg.AccountKeys[idx]
	}

	program := msg.AccountKeys[inst.ProgramIDIndex]
	data := []byte(inst.Data)
	switch {
	case program.Equals(solana.SystemProgramID):
		return b.loadSystemTransfer(accounts, data)
	case program.Equals(solana.TokenProgramID), program.Equals(solana.Token2022ProgramID):
		return b.loadTokenTransfer(program, accounts, data)
	default:
		return &txbuilder.NotSupportedError{Operation: "Solana program " + program.String()}
	}
}

func (b *Builder) loadSystemTransfer(accounts []solana.PublicKey, data []byte) error {
	if len(data) != 12 || binary.LittleEndian.Uint32(data) != system.Instruction_Transfer {
		return &txbuilder.NotSupportedError{Operation: "Solana system instruction"}
	}
	if len(accounts) != 2 || !accounts[0].Equals(*b.sender) {
		return txbuilder.NewParseError("transfer is not funded by the fee payer", nil)
	}
	amount := binary.LittleEndian.Uint64(data[4:])
	to := accounts[1]
	b.txType = TypeTransfer
	b.to = &to
	b.amount = &amount
	return nil
}

func (b *Builder) loadTokenTransfer(program solana.PublicKey, accounts []solana.PublicKey, data []byte) error {
	if len(data) != 10 || data[0] != transferCheckedDiscriminator {
		return &txbuilder.NotSupportedError{Operation: "Solana token instruction"}
	}
	if len(accounts) != 4 || !accounts[3].Equals(*b.sender) {
		return txbuilder.NewParseError("token transfer is not owned by the fee payer", nil)
	}
	amount := binary.LittleEndian.Uint64(data[1:9])
	source, mint, destination := accounts[0], accounts[1], accounts[2]
	b.txType = TypeTokenTransfer
	b.amount = &amount
	b.mint = &mint
	b.decimals = data[9]
	b.tokenProgram = program
	b.source = &source
	b.destination = &destination
	return nil
}
