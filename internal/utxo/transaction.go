package utxo

import (
	"bytes"
	"encoding/base64"
	"strconv"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/vultisig/app-recovery/internal/keypair"
	"github.com/vultisig/app-recovery/internal/txbuilder"
	"github.com/vultisig/app-recovery/internal/utxo/address"
)

var explainOrder = []string{"id", "outputs", "outputAmount", "changeOutputs", "changeAmount", "fee", "type"}

var _ txbuilder.Transaction = (*Transaction)(nil)

// Transaction is a PSBT spending 2-of-3 multisig outputs. Each co-signer signs
// every input; once two have signed the inputs are finalized and the network
// transaction extracted.
type Transaction struct {
	params      *ChainParams
	wallet      *Wallet
	packet      *psbt.Packet
	coordinator *txbuilder.Coordinator
}

func newTransaction(params *ChainParams, wallet *Wallet, packet *psbt.Packet) (*Transaction, error) {
	c, err := txbuilder.NewCoordinator(RequiredSignatures, roles...)
	if err != nil {
		return nil, err
	}
	return &Transaction{params: params, wallet: wallet, packet: packet, coordinator: c}, nil
}

func (t *Transaction) State() txbuilder.State { return t.coordinator.State() }
func (t *Transaction) Wallet() *Wallet        { return t.wallet }

// Signers returns the roles that signed, in script order.
func (t *Transaction) Signers() []string {
	sigs := t.coordinator.Signatures()
	res := make([]string, 0, len(sigs))
	for _, s := range sigs {
		res = append(res, s.Signer)
	}
	return res
}

func (t *Transaction) inputValue(i int) int64 {
	in := t.packet.Inputs[i]
	if in.WitnessUtxo != nil {
		return in.WitnessUtxo.Value
	}
	if in.NonWitnessUtxo != nil {
		idx := t.packet.UnsignedTx.TxIn[i].PreviousOutPoint.Index
		return in.NonWitnessUtxo.TxOut[idx].Value
	}
	return 0
}

// SigningHashes returns one SIGHASH_ALL digest per input, BIP143 for SegWit
// inputs and legacy for P2SH.
func (t *Transaction) SigningHashes() ([][]byte, error) {
	tx := t.packet.UnsignedTx
	res := make([][]byte, 0, len(tx.TxIn))
	if !t.params.Segwit {
		for i := range tx.TxIn {
			h, err := txscript.CalcSignatureHash(t.wallet.script, txscript.SigHashAll, tx, i)
			if err != nil {
				return nil, txbuilder.NewSigningError("failed to compute sighash of input %d: %v", i, err)
			}
			res = append(res, h)
		}
		return res, nil
	}

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range tx.TxIn {
		fetcher.AddPrevOut(in.PreviousOutPoint, t.packet.Inputs[i].WitnessUtxo)
	}
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	for i := range tx.TxIn {
		h, err := txscript.CalcWitnessSigHash(t.wallet.script, sigHashes, txscript.SigHashAll, tx, i, t.inputValue(i))
		if err != nil {
			return nil, txbuilder.NewSigningError("failed to compute sighash of input %d: %v", i, err)
		}
		res = append(res, h)
	}
	return res, nil
}

// Sign signs every input with key, which must be one of the wallet keys.
func (t *Transaction) Sign(key *keypair.Secp256k1) error {
	if key == nil || !key.HasPrivateKey() {
		return txbuilder.NewSigningError("Missing private key")
	}
	hashes, err := t.SigningHashes()
	if err != nil {
		return err
	}
	sigs := make([][]byte, 0, len(hashes))
	for _, h := range hashes {
		sig, err := key.SignDER(h)
		if err != nil {
			return txbuilder.NewSigningError("failed to sign input: %v", err)
		}
		sigs = append(sigs, sig)
	}
	return t.AddSignature(key.PublicKey(), sigs)
}

// AddSignature attaches one DER signature per input by the wallet key pub.
// Either every signature verifies and all are attached, or none is.
func (t *Transaction) AddSignature(pub []byte, sigs [][]byte) error {
	role, ok := t.wallet.role(pub)
	if !ok {
		return txbuilder.NewSigningError("Key %x is not a wallet key", pub)
	}
	if len(sigs) != len(t.packet.Inputs) {
		return txbuilder.NewSigningError("expected %d input signatures, got %d", len(t.packet.Inputs), len(sigs))
	}
	pubKey, err := btcec.ParsePubKey(pub)
	if err != nil {
		return txbuilder.NewSigningError("invalid public key: %v", err)
	}
	hashes, err := t.SigningHashes()
	if err != nil {
		return err
	}
	for i, der := range sigs {
		sig, err := ecdsa.ParseDERSignature(der)
		if err != nil {
			return txbuilder.NewSigningError("invalid signature for input %d: %v", i, err)
		}
		if !sig.Verify(hashes[i], pubKey) {
			return txbuilder.NewSigningError("signature for input %d does not verify for %s key", i, role)
		}
	}

	if err = t.coordinator.Add(txbuilder.Signature{
		Signer:    role,
		PublicKey: pub,
		Bytes:     bytes.Join(sigs, nil),
	}); err != nil {
		return err
	}

	u, err := psbt.NewUpdater(t.packet)
	if err != nil {
		return txbuilder.NewSigningError("invalid psbt: %v", err)
	}
	for i, der := range sigs {
		withType := append(append([]byte(nil), der...), byte(txscript.SigHashAll))
		if _, err = u.Sign(i, withType, pub, nil, nil); err != nil {
			return txbuilder.NewSigningError("failed to attach signature to input %d: %v", i, err)
		}
	}
	return nil
}

// PSBT returns the serialized packet, the half-signed transport format.
func (t *Transaction) PSBT() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.packet.Serialize(&buf); err != nil {
		return nil, txbuilder.NewInvalidTransactionError("failed to serialize psbt", err)
	}
	return buf.Bytes(), nil
}

func (t *Transaction) PSBTBase64() (string, error) {
	raw, err := t.PSBT()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// finalized returns the network transaction of a fully signed packet. The
// packet itself keeps its partial signatures.
func (t *Transaction) finalized() (*wire.MsgTx, error) {
	raw, err := t.PSBT()
	if err != nil {
		return nil, err
	}
	p, err := psbt.NewFromRawBytes(bytes.NewReader(raw), false)
	if err != nil {
		return nil, txbuilder.NewInvalidTransactionError("failed to copy psbt", err)
	}

	sigs := t.coordinator.Signatures()
	for i := range p.Inputs {
		var inputSigs [][]byte
		for _, s := range sigs {
			for _, ps := range p.Inputs[i].PartialSigs {
				if bytes.Equal(ps.PubKey, s.PublicKey) {
					inputSigs = append(inputSigs, ps.Signature)
				}
			}
		}
		if err = t.finalizeInput(&p.Inputs[i], inputSigs); err != nil {
			return nil, err
		}
	}

	tx, err := psbt.Extract(p)
	if err != nil {
		return nil, txbuilder.NewInvalidTransactionError("failed to extract transaction", err)
	}
	return tx, nil
}

// finalizeInput writes the multisig unlocking data. Signatures are already in
// script key order.
func (t *Transaction) finalizeInput(in *psbt.PInput, sigs [][]byte) error {
	if t.params.Segwit {
		witness := wire.TxWitness{nil}
		witness = append(witness, sigs...)
		witness = append(witness, t.wallet.script)
		var buf bytes.Buffer
		if err := wire.WriteVarInt(&buf, 0, uint64(len(witness))); err != nil {
			return err
		}
		for _, item := range witness {
			if err := wire.WriteVarBytes(&buf, 0, item); err != nil {
				return err
			}
		}
		in.FinalScriptWitness = buf.Bytes()
	} else {
		b := txscript.NewScriptBuilder().AddOp(txscript.OP_0)
		for _, s := range sigs {
			b.AddData(s)
		}
		script, err := b.AddData(t.wallet.script).Script()
		if err != nil {
			return txbuilder.NewSigningError("failed to build unlocking script: %v", err)
		}
		in.FinalScriptSig = script
	}
	in.PartialSigs = nil
	in.SighashType = 0
	in.RedeemScript = nil
	in.WitnessScript = nil
	return nil
}

// ToBroadcastFormat returns the serialized network transaction once two
// co-signers signed, sealing it. Before that it returns the PSBT.
func (t *Transaction) ToBroadcastFormat() ([]byte, error) {
	if t.coordinator.State() < txbuilder.FullySigned {
		return t.PSBT()
	}
	tx, err := t.finalized()
	if err != nil {
		return nil, err
	}
	if err = t.coordinator.Seal(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err = tx.Serialize(&buf); err != nil {
		return nil, txbuilder.NewInvalidTransactionError("failed to serialize transaction", err)
	}
	return buf.Bytes(), nil
}

// ID is the network transaction id, empty until two co-signers signed.
func (t *Transaction) ID() string {
	if t.coordinator.State() < txbuilder.FullySigned {
		return ""
	}
	tx, err := t.finalized()
	if err != nil {
		return ""
	}
	return tx.TxHash().String()
}

// Fee is the sum of the inputs minus the sum of the outputs.
func (t *Transaction) Fee() int64 {
	var fee int64
	for i := range t.packet.Inputs {
		fee += t.inputValue(i)
	}
	for _, out := range t.packet.UnsignedTx.TxOut {
		fee -= out.Value
	}
	return fee
}

func (t *Transaction) Explain() (*txbuilder.Explanation, error) {
	walletScript, err := t.wallet.PkScript()
	if err != nil {
		return nil, err
	}

	var outputs, change []txbuilder.Output
	var outputAmount, changeAmount int64
	for _, out := range t.packet.UnsignedTx.TxOut {
		addr, err := address.NewFromPkScript(t.params.Chain, out.PkScript)
		if err != nil {
			return nil, txbuilder.NewParseError("undecodable output script", err)
		}
		o := txbuilder.Output{Address: addr.String(), Amount: strconv.FormatInt(out.Value, 10)}
		if bytes.Equal(out.PkScript, walletScript) {
			change = append(change, o)
			changeAmount += out.Value
			continue
		}
		outputs = append(outputs, o)
		outputAmount += out.Value
	}

	return txbuilder.NewExplanation(explainOrder).
		Set("id", t.ID()).
		Set("outputs", outputs).
		Set("outputAmount", strconv.FormatInt(outputAmount, 10)).
		Set("changeOutputs", change).
		Set("changeAmount", strconv.FormatInt(changeAmount, 10)).
		Set("fee", map[string]string{"fee": strconv.FormatInt(t.Fee(), 10)}).
		Set("type", "Send"), nil
}
