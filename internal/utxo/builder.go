package utxo

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/vultisig/app-recovery/internal/keypair"
	"github.com/vultisig/app-recovery/internal/txbuilder"
	"github.com/vultisig/app-recovery/internal/utxo/address"
)

// Virtual sizes of the 2-of-3 spend, rounded up.
const (
	segwitOverhead = 11
	segwitInput    = 105
	legacyOverhead = 10
	legacyInput    = 297
)

// Unspent is an output of the wallet to spend.
type Unspent struct {
	TxHash string
	Index  uint32
	Value  uint64
	// PrevTx is the raw funding transaction, required for P2SH inputs.
	PrevTx []byte
}

type recipient struct {
	address address.UTXOAddress
	amount  int64
}

type inputSignatures struct {
	pub  []byte
	sigs [][]byte
}

// Builder accumulates a spend of multisig unspents. Either fixed recipients
// are paid and the remainder returns to the wallet as change, or everything
// is swept to one address.
type Builder struct {
	params     *ChainParams
	wallet     *Wallet
	unspents   []Unspent
	recipients []recipient
	sweepTo    address.UTXOAddress
	feeRate    *uint64

	// a decoded packet is rebuilt verbatim until outputs or fee rate change
	decoded *psbt.Packet

	signKeys []*keypair.Secp256k1
	external []inputSignatures
	loaded   []inputSignatures
}

func newBuilder(params *ChainParams) *Builder {
	return &Builder{params: params}
}

func (b *Builder) Wallet(w *Wallet) error {
	if w == nil || w.params != b.params {
		return txbuilder.NewBuildError("Invalid wallet for %s", b.params.Chain)
	}
	b.wallet = w
	return nil
}

// Keys sets the wallet from hex-encoded user, backup and platform keys.
func (b *Builder) Keys(user, backup, platform string) error {
	w, err := NewWalletFromHex(b.params, user, backup, platform)
	if err != nil {
		return err
	}
	b.wallet = w
	return nil
}

func (b *Builder) AddUnspent(u Unspent) error {
	if _, err := chainhash.NewHashFromStr(u.TxHash); err != nil {
		return txbuilder.NewBuildError("Invalid unspent transaction hash: %s", u.TxHash)
	}
	if u.Value == 0 {
		return txbuilder.NewBuildError("Invalid unspent value: %s:%d", u.TxHash, u.Index)
	}
	if !b.params.Segwit && len(u.PrevTx) == 0 {
		return txbuilder.NewBuildError("Invalid unspent %s:%d: missing previous transaction", u.TxHash, u.Index)
	}
	for _, prev := range b.unspents {
		if prev.TxHash == u.TxHash && prev.Index == u.Index {
			return txbuilder.NewBuildError("Repeated unspent: %s:%d", u.TxHash, u.Index)
		}
	}
	b.unspents = append(b.unspents, u)
	b.decoded = nil
	return nil
}

// To adds a recipient paid amount base units.
func (b *Builder) To(addr, amount string) error {
	if b.sweepTo != nil {
		return txbuilder.NewBuildError("Cannot add a recipient to a sweep")
	}
	a, err := address.NewFromString(b.params.Chain, addr)
	if err != nil {
		return txbuilder.NewBuildError("Invalid address: %s", addr)
	}
	v, err := txbuilder.ParseUint64("amount", amount)
	if err != nil {
		return err
	}
	if int64(v) < b.params.DustLimit {
		return txbuilder.NewBuildError("Amount %d is below the dust limit %d", v, b.params.DustLimit)
	}
	b.recipients = append(b.recipients, recipient{address: a, amount: int64(v)})
	b.decoded = nil
	return nil
}

// SweepTo sends every unspent, less the fee, to addr.
func (b *Builder) SweepTo(addr string) error {
	if len(b.recipients) != 0 {
		return txbuilder.NewBuildError("Cannot sweep a transaction with recipients")
	}
	a, err := address.NewFromString(b.params.Chain, addr)
	if err != nil {
		return txbuilder.NewBuildError("Invalid address: %s", addr)
	}
	b.sweepTo = a
	b.decoded = nil
	return nil
}

// FeeRate is in satoshis per virtual byte.
func (b *Builder) FeeRate(satsPerVByte uint64) error {
	if satsPerVByte == 0 {
		return txbuilder.NewBuildError("Invalid fee rate: 0")
	}
	b.feeRate = &satsPerVByte
	b.decoded = nil
	return nil
}

func (b *Builder) Sign(key *keypair.Secp256k1) error {
	if key == nil || !key.HasPrivateKey() {
		return txbuilder.NewSigningError("Missing private key")
	}
	b.signKeys = append(b.signKeys, key)
	return nil
}

// AddSignature queues one DER signature per input by the wallet key pub.
func (b *Builder) AddSignature(pub []byte, sigs [][]byte) error {
	if len(pub) == 0 || len(sigs) == 0 {
		return txbuilder.NewSigningError("Missing public key or signature")
	}
	b.external = append(b.external, inputSignatures{pub: pub, sigs: sigs})
	return nil
}

func (b *Builder) validate() error {
	switch {
	case b.wallet == nil:
		return txbuilder.NewBuildError("Invalid transaction: missing wallet keys")
	case b.decoded != nil:
		return nil
	case len(b.unspents) == 0:
		return txbuilder.NewBuildError("Invalid transaction: missing unspent outputs")
	case len(b.recipients) == 0 && b.sweepTo == nil:
		return txbuilder.NewBuildError("Invalid transaction: missing recipient")
	case b.feeRate == nil:
		return txbuilder.NewBuildError("Invalid transaction: missing fee")
	}
	return nil
}

func (b *Builder) vsize(inputs int, pkScripts ...[]byte) int64 {
	size := int64(legacyOverhead + legacyInput*inputs)
	if b.params.Segwit {
		size = int64(segwitOverhead + segwitInput*inputs)
	}
	for _, s := range pkScripts {
		size += int64(8 + wire.VarIntSerializeSize(uint64(len(s))) + len(s))
	}
	return size
}

// outputs pays the recipients, or the sweep address, and returns change to
// the wallet when it is above the dust limit.
func (b *Builder) outputs(total int64) ([]*wire.TxOut, error) {
	rate := int64(*b.feeRate)

	if b.sweepTo != nil {
		script, err := b.sweepTo.PayToAddrScript()
		if err != nil {
			return nil, txbuilder.NewBuildError("Invalid address: %s", b.sweepTo)
		}
		fee := rate * b.vsize(len(b.unspents), script)
		if total-fee < b.params.DustLimit {
			return nil, txbuilder.NewBuildError("Insufficient funds: %d available, fee %d", total, fee)
		}
		return []*wire.TxOut{wire.NewTxOut(total-fee, script)}, nil
	}

	outs := make([]*wire.TxOut, 0, len(b.recipients)+1)
	scripts := make([][]byte, 0, len(b.recipients)+1)
	var sent int64
	for _, r := range b.recipients {
		script, err := r.address.PayToAddrScript()
		if err != nil {
			return nil, txbuilder.NewBuildError("Invalid address: %s", r.address)
		}
		outs = append(outs, wire.NewTxOut(r.amount, script))
		scripts = append(scripts, script)
		sent += r.amount
	}

	changeScript, err := b.wallet.PkScript()
	if err != nil {
		return nil, err
	}
	fee := rate * b.vsize(len(b.unspents), append(scripts, changeScript)...)
	if change := total - sent - fee; change >= b.params.DustLimit {
		return append(outs, wire.NewTxOut(change, changeScript)), nil
	}
	fee = rate * b.vsize(len(b.unspents), scripts...)
	if total < sent+fee {
		return nil, txbuilder.NewBuildError("Insufficient funds: %d available, %d needed", total, sent+fee)
	}
	return outs, nil
}

func (b *Builder) packet() (*psbt.Packet, error) {
	if b.decoded != nil {
		var buf bytes.Buffer
		if err := b.decoded.Serialize(&buf); err != nil {
			return nil, err
		}
		p, err := psbt.NewFromRawBytes(&buf, false)
		if err != nil {
			return nil, err
		}
		for i := range p.Inputs {
			p.Inputs[i].PartialSigs = nil
		}
		return p, nil
	}

	walletScript, err := b.wallet.PkScript()
	if err != nil {
		return nil, err
	}
	prevOuts := make([]*wire.OutPoint, 0, len(b.unspents))
	sequences := make([]uint32, 0, len(b.unspents))
	var total int64
	for _, u := range b.unspents {
		h, _ := chainhash.NewHashFromStr(u.TxHash)
		prevOuts = append(prevOuts, wire.NewOutPoint(h, u.Index))
		sequences = append(sequences, wire.MaxTxInSequenceNum)
		total += int64(u.Value)
	}
	outs, err := b.outputs(total)
	if err != nil {
		return nil, err
	}

	version := int32(1)
	if b.params.Segwit {
		version = 2
	}
	p, err := psbt.New(prevOuts, outs, version, 0, sequences)
	if err != nil {
		return nil, txbuilder.NewBuildError("failed to create psbt: %v", err)
	}
	for i, u := range b.unspents {
		in := &p.Inputs[i]
		in.SighashType = txscript.SigHashAll
		if b.params.Segwit {
			in.WitnessUtxo = wire.NewTxOut(int64(u.Value), walletScript)
			in.WitnessScript = b.wallet.script
			continue
		}
		prev, err := decodePrevTx(u, walletScript)
		if err != nil {
			return nil, err
		}
		in.NonWitnessUtxo = prev
		in.RedeemScript = b.wallet.script
	}
	return p, nil
}

func decodePrevTx(u Unspent, walletScript []byte) (*wire.MsgTx, error) {
	prev := wire.NewMsgTx(wire.TxVersion)
	if err := prev.Deserialize(bytes.NewReader(u.PrevTx)); err != nil {
		return nil, txbuilder.NewBuildError("Invalid previous transaction for %s: %v", u.TxHash, err)
	}
	if prev.TxHash().String() != u.TxHash {
		return nil, txbuilder.NewBuildError("Previous transaction does not match %s", u.TxHash)
	}
	if int(u.Index) >= len(prev.TxOut) {
		return nil, txbuilder.NewBuildError("Invalid unspent index: %s:%d", u.TxHash, u.Index)
	}
	out := prev.TxOut[u.Index]
	if !bytes.Equal(out.PkScript, walletScript) || out.Value != int64(u.Value) {
		return nil, txbuilder.NewBuildError("Unspent %s:%d does not belong to the wallet", u.TxHash, u.Index)
	}
	return prev, nil
}

func (b *Builder) Build() (*Transaction, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	p, err := b.packet()
	if err != nil {
		return nil, err
	}
	tx, err := newTransaction(b.params, b.wallet, p)
	if err != nil {
		return nil, err
	}

	// decoded signatures survive only while every input sighash is unchanged
	for _, s := range b.loaded {
		_ = tx.AddSignature(s.pub, s.sigs)
	}
	for _, s := range b.external {
		if err = tx.AddSignature(s.pub, s.sigs); err != nil {
			return nil, err
		}
	}
	for _, k := range b.signKeys {
		if err = tx.Sign(k); err != nil {
			return nil, fmt.Errorf("failed to sign with %x: %w", k.PublicKey(), err)
		}
	}
	return tx, nil
}
