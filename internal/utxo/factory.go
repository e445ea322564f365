package utxo

import (
	"bytes"
	"encoding/base64"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/vultisig/app-recovery/internal/txbuilder"
	"github.com/vultisig/app-recovery/internal/utxo/address"
)

// Factory hands out multisig spend builders for one chain and reloads
// half-signed PSBTs.
type Factory struct {
	params *ChainParams
}

func NewFactory(params *ChainParams) *Factory {
	return &Factory{params: params}
}

func (f *Factory) Params() *ChainParams { return f.params }

func (f *Factory) GetTransferBuilder() *Builder { return newBuilder(f.params) }

// FromBase64 is From over a base64 PSBT, the half-signed transport format.
func (f *Factory) FromBase64(raw string) (*Builder, error) {
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, txbuilder.NewInvalidTransactionError("There was error in decoding the base64 string", err)
	}
	return f.From(b)
}

// From loads a PSBT spending one multisig wallet. Building it unchanged
// reproduces the packet, and its partial signatures are re-attached as long
// as they still verify. Changing recipients or the fee rate discards the
// decoded outputs.
func (f *Factory) From(raw []byte) (*Builder, error) {
	if len(raw) == 0 {
		return nil, txbuilder.NewInvalidTransactionError("Raw transaction is empty", nil)
	}
	p, err := psbt.NewFromRawBytes(bytes.NewReader(raw), false)
	if err != nil {
		return nil, txbuilder.NewParseError("invalid psbt", err)
	}
	if len(p.Inputs) == 0 {
		return nil, txbuilder.NewInvalidTransactionError("psbt has no inputs", nil)
	}

	b := newBuilder(f.params)
	if err = b.loadInputs(p); err != nil {
		return nil, err
	}
	if err = b.loadOutputs(p.UnsignedTx.TxOut); err != nil {
		return nil, err
	}
	b.loadSignatures(p)
	b.decoded = p
	return b, nil
}

func (b *Builder) loadInputs(p *psbt.Packet) error {
	for i, in := range p.Inputs {
		script := in.WitnessScript
		if !b.params.Segwit {
			script = in.RedeemScript
		}
		if len(script) == 0 {
			return &txbuilder.NotSupportedError{Operation: "UTXO input without multisig script"}
		}
		w, err := walletFromScript(b.params, script)
		if err != nil {
			return txbuilder.NewParseError("invalid multisig input", err)
		}
		if b.wallet == nil {
			b.wallet = w
		} else if !bytes.Equal(b.wallet.script, w.script) {
			return &txbuilder.NotSupportedError{Operation: "UTXO spend from more than one wallet"}
		}

		op := p.UnsignedTx.TxIn[i].PreviousOutPoint
		u := Unspent{TxHash: op.Hash.String(), Index: op.Index}
		switch {
		case in.WitnessUtxo != nil && b.params.Segwit:
			u.Value = uint64(in.WitnessUtxo.Value)
		case in.NonWitnessUtxo != nil && !b.params.Segwit:
			if int(op.Index) >= len(in.NonWitnessUtxo.TxOut) {
				return txbuilder.NewParseError("previous output index out of range", nil)
			}
			var buf bytes.Buffer
			if err = in.NonWitnessUtxo.Serialize(&buf); err != nil {
				return txbuilder.NewParseError("invalid previous transaction", err)
			}
			u.Value = uint64(in.NonWitnessUtxo.TxOut[op.Index].Value)
			u.PrevTx = buf.Bytes()
		default:
			return txbuilder.NewParseError("input is missing its previous output", nil)
		}
		b.unspents = append(b.unspents, u)
	}
	return nil
}

// loadOutputs keeps every output but the change as a recipient.
func (b *Builder) loadOutputs(outs []*wire.TxOut) error {
	walletScript, err := b.wallet.PkScript()
	if err != nil {
		return err
	}
	for _, out := range outs {
		if bytes.Equal(out.PkScript, walletScript) {
			continue
		}
		addr, err := address.NewFromPkScript(b.params.Chain, out.PkScript)
		if err != nil {
			return txbuilder.NewParseError("undecodable output script", err)
		}
		b.recipients = append(b.recipients, recipient{address: addr, amount: out.Value})
	}
	return nil
}

// loadSignatures groups partial signatures by key. A key missing from any
// input is dropped.
func (b *Builder) loadSignatures(p *psbt.Packet) {
	for _, k := range b.wallet.keys {
		sigs := make([][]byte, 0, len(p.Inputs))
		for _, in := range p.Inputs {
			for _, ps := range in.PartialSigs {
				n := len(ps.Signature)
				if bytes.Equal(ps.PubKey, k) && n > 1 && ps.Signature[n-1] == byte(txscript.SigHashAll) {
					sigs = append(sigs, ps.Signature[:n-1])
					break
				}
			}
		}
		if len(sigs) == len(p.Inputs) {
			b.loaded = append(b.loaded, inputSignatures{pub: k, sigs: sigs})
		}
	}
}
