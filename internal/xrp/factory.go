package xrp

import (
	"encoding/hex"
	"strings"

	"github.com/vultisig/app-recovery/internal/txbuilder"
)

// Factory hands out Payment builders and reloads serialized payments.
type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) GetTransferBuilder() *Builder { return &Builder{} }

// FromHex is From over a hex blob.
func (f *Factory) FromHex(raw string) (*Builder, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return nil, txbuilder.NewInvalidTransactionError("There was error in decoding the hex string", err)
	}
	return f.From(b)
}

// From loads an unsigned, partially or fully signed Payment. Signatures are
// kept and re-attached at build time as long as they still verify.
func (f *Factory) From(raw []byte) (*Builder, error) {
	if len(raw) == 0 {
		return nil, txbuilder.NewInvalidTransactionError("Raw transaction is empty", nil)
	}
	fields, err := decodeBlob(raw)
	if err != nil {
		return nil, txbuilder.NewParseError("invalid XRP transaction", err)
	}
	if t, _ := stringField(fields, "TransactionType"); t != TypePayment {
		return nil, &txbuilder.NotSupportedError{Operation: "XRP " + t}
	}

	b := &Builder{}
	if err = b.loadPayment(fields); err != nil {
		return nil, txbuilder.NewParseError("invalid XRP payment", err)
	}
	if err = b.loadSignatures(fields); err != nil {
		return nil, txbuilder.NewParseError("invalid XRP signatures", err)
	}
	return b, nil
}

var modeledFields = map[string]struct{}{
	"TransactionType":    {},
	"Account":            {},
	"Destination":        {},
	"DestinationTag":     {},
	"Amount":             {},
	"Fee":                {},
	"Sequence":           {},
	"LastLedgerSequence": {},
	"Flags":              {},
	"SigningPubKey":      {},
	"TxnSignature":       {},
	"Signers":            {},
}

func (b *Builder) loadPayment(fields map[string]any) error {
	for k, v := range fields {
		if _, ok := modeledFields[k]; ok {
			continue
		}
		if b.extra == nil {
			b.extra = make(map[string]any)
		}
		b.extra[k] = v
	}

	account, _ := stringField(fields, "Account")
	if err := b.Sender(account); err != nil {
		return err
	}
	destination, _ := stringField(fields, "Destination")
	id, err := DecodeAccountID(destination)
	if err != nil {
		return err
	}
	addr := Address{Account: id}
	if tag, ok, er := uintField(fields, "DestinationTag"); er != nil {
		return er
	} else if ok {
		t := uint32(tag)
		addr.DestinationTag = &t
	}
	b.destination = &addr

	// issued-currency amounts decode to objects and are rejected here
	amount, ok, err := uintField(fields, "Amount")
	if err != nil || !ok {
		return txbuilder.NewBuildError("only XRP amounts are supported")
	}
	b.amount = &amount

	fee, _, err := uintField(fields, "Fee")
	if err != nil {
		return err
	}
	b.fee = &fee

	seq, _, err := uintField(fields, "Sequence")
	if err != nil {
		return err
	}
	b.Sequence(uint32(seq))

	if v, ok, er := uintField(fields, "LastLedgerSequence"); er != nil {
		return er
	} else if ok {
		b.LastLedgerSequence(uint32(v))
	}
	if v, ok, er := uintField(fields, "Flags"); er != nil {
		return er
	} else if ok {
		b.Flags(uint32(v))
	}
	return nil
}

func (b *Builder) loadSignatures(fields map[string]any) error {
	pubHex, _ := stringField(fields, "SigningPubKey")
	if pubHex != "" {
		if err := b.SigningPubKey(pubHex); err != nil {
			return err
		}
		if sigHex, ok := stringField(fields, "TxnSignature"); ok && sigHex != "" {
			sig, err := hex.DecodeString(sigHex)
			if err != nil {
				return err
			}
			b.decoded = append(b.decoded, txbuilder.Signature{PublicKey: b.signingPubKey, Bytes: sig})
		}
		return nil
	}

	entries, err := signerEntries(fields["Signers"])
	if err != nil {
		return err
	}
	for _, e := range entries {
		account, _ := stringField(e, "Account")
		if err = b.Signer(account); err != nil {
			return err
		}
		pubHex, _ := stringField(e, "SigningPubKey")
		sigHex, _ := stringField(e, "TxnSignature")
		pub, er := hex.DecodeString(pubHex)
		if er != nil {
			return er
		}
		sig, er := hex.DecodeString(sigHex)
		if er != nil {
			return er
		}
		b.decoded = append(b.decoded, txbuilder.Signature{Signer: account, PublicKey: pub, Bytes: sig})
	}
	return nil
}
