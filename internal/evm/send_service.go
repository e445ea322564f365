package evm

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"

	ecommon "github.com/ethereum/go-ethereum/common"

	"github.com/vultisig/app-recovery/internal/keypair"
	"github.com/vultisig/app-recovery/internal/txbuilder"
)

// TxPrebuild is what the wallet platform hands out for a multisig send.
type TxPrebuild struct {
	WalletContract string      `json:"walletContractAddress"`
	Recipients     []Recipient `json:"recipients"`
	ExpireTime     int64       `json:"expireTime,omitempty"`
	NextSequenceID uint64      `json:"nextContractSequenceId"`
	TokenContract  string      `json:"tokenContractAddress,omitempty"`
}

// HalfSigned is a multisig send carrying only the user's operation signature.
// It can be completed by a different process holding the backup key.
type HalfSigned struct {
	WalletContract     string      `json:"walletContractAddress"`
	Recipients         []Recipient `json:"recipients"`
	ExpireTime         int64       `json:"expireTime"`
	ContractSequenceID uint64      `json:"contractSequenceId"`
	OperationHash      string      `json:"operationHash"`
	Signature          string      `json:"signature"`
	TokenContract      string      `json:"tokenContractAddress,omitempty"`
	TxHex              string      `json:"txHex,omitempty"`
}

func (p TxPrebuild) operation() (Operation, error) {
	if len(p.Recipients) != 1 {
		return Operation{}, txbuilder.NewBuildError("Expected exactly 1 recipient, got %d", len(p.Recipients))
	}
	r := p.Recipients[0]
	to, err := parseAddress(r.Address)
	if err != nil {
		return Operation{}, err
	}
	amount, err := txbuilder.ParseValue(r.Amount)
	if err != nil {
		return Operation{}, err
	}
	op := Operation{To: to, Amount: amount, ExpireTime: p.ExpireTime, SequenceID: p.NextSequenceID}
	if r.Data != "" {
		if op.Data, err = DecodeHex(r.Data); err != nil {
			return Operation{}, err
		}
	}
	if p.TokenContract != "" {
		token, er := parseAddress(p.TokenContract)
		if er != nil {
			return Operation{}, er
		}
		op.Token = &token
	}
	return op, nil
}

// Prepare resolves the operation of a prebuild without signing it. The
// result carries the operation hash for an offline signer.
func (f *Factory) Prepare(prebuild TxPrebuild) (*HalfSigned, error) {
	half, _, err := f.prepare(prebuild)
	return half, err
}

func (f *Factory) prepare(prebuild TxPrebuild) (*HalfSigned, Operation, error) {
	if prebuild.ExpireTime == 0 {
		prebuild.ExpireTime = f.now().Add(DefaultExpiration).Unix()
	}
	op, err := prebuild.operation()
	if err != nil {
		return nil, Operation{}, err
	}
	return &HalfSigned{
		WalletContract:     prebuild.WalletContract,
		Recipients:         prebuild.Recipients,
		ExpireTime:         prebuild.ExpireTime,
		ContractSequenceID: prebuild.NextSequenceID,
		OperationHash:      "0x" + hex.EncodeToString(op.Hash(f.params)),
		TokenContract:      prebuild.TokenContract,
	}, op, nil
}

// SignPrebuild signs the operation of a prebuild with the user key.
func (f *Factory) SignPrebuild(prebuild TxPrebuild, userKey *keypair.Secp256k1) (*HalfSigned, error) {
	half, op, err := f.prepare(prebuild)
	if err != nil {
		return nil, err
	}
	if userKey == nil || !userKey.HasPrivateKey() {
		return nil, txbuilder.NewSigningError("Missing user private key")
	}
	sig, err := op.Sign(f.params, userKey)
	if err != nil {
		return nil, err
	}
	half.Signature = "0x" + hex.EncodeToString(sig)
	return half, nil
}

// TransferBuilderFor prepares a Send builder from a half-signed bundle; the
// caller still sets fee, counter and the sender signature.
func (f *Factory) TransferBuilderFor(half *HalfSigned) (*Builder, error) {
	b := f.GetTransferBuilder()
	if err := b.Contract(half.WalletContract); err != nil {
		return nil, err
	}
	if len(half.Recipients) != 1 {
		return nil, txbuilder.NewBuildError("Expected exactly 1 recipient, got %d", len(half.Recipients))
	}
	transfer, err := b.Transfer()
	if err != nil {
		return nil, err
	}
	r := half.Recipients[0]
	transfer.
		To(r.Address).
		Amount(r.Amount).
		ContractSequenceID(half.ContractSequenceID).
		ExpirationTime(half.ExpireTime)
	if half.Signature != "" {
		transfer.Signature(half.Signature)
	}
	if half.TokenContract != "" {
		transfer.TokenContract(half.TokenContract)
	} else if r.Data != "" {
		transfer.Data(r.Data)
	}
	return b, nil
}

// UnsignedFinal builds the outer transaction of a bundle for sender without
// signing it. The operation signature may be missing.
func (f *Factory) UnsignedFinal(half *HalfSigned, sender ecommon.Address, nonce uint64, fee Fee) (*Transaction, error) {
	b, err := f.finalBuilder(half, sender, nonce, fee)
	if err != nil {
		return nil, err
	}
	tx, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build final transaction: %w", err)
	}
	return tx, nil
}

// SignFinal completes a half-signed bundle with the backup key, which pays
// the gas.
func (f *Factory) SignFinal(half *HalfSigned, backupKey *keypair.Secp256k1, nonce uint64, fee Fee) (*Transaction, error) {
	if half.Signature == "" {
		return nil, txbuilder.NewSigningError("Half-signed transaction is missing the user signature")
	}
	if backupKey == nil || !backupKey.HasPrivateKey() {
		return nil, txbuilder.NewSigningError("Missing backup private key")
	}
	b, err := f.finalBuilder(half, backupKey.EthAddress(), nonce, fee)
	if err != nil {
		return nil, err
	}
	if err = b.Sign(backupKey); err != nil {
		return nil, err
	}
	tx, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build final transaction: %w", err)
	}
	return tx, nil
}

func (f *Factory) finalBuilder(half *HalfSigned, sender ecommon.Address, nonce uint64, fee Fee) (*Builder, error) {
	b, err := f.TransferBuilderFor(half)
	if err != nil {
		return nil, err
	}
	if err = b.Fee(fee.GasPrice.String(), strconv.FormatUint(fee.GasLimit, 10)); err != nil {
		return nil, err
	}
	if nonce > math.MaxInt64 {
		return nil, txbuilder.NewBuildError("Invalid counter: %d", nonce)
	}
	if err = b.Counter(int64(nonce)); err != nil {
		return nil, err
	}
	if err = b.Sender(sender.Hex()); err != nil {
		return nil, err
	}
	return b, nil
}

// VerifyOperationSigner checks that an operation signature was produced by
// expected.
func (f *Factory) VerifyOperationSigner(half *HalfSigned, expected ecommon.Address) error {
	op, err := TxPrebuild{
		Recipients:     half.Recipients,
		ExpireTime:     half.ExpireTime,
		NextSequenceID: half.ContractSequenceID,
		TokenContract:  half.TokenContract,
	}.operation()
	if err != nil {
		return err
	}
	sig, err := DecodeHex(half.Signature)
	if err != nil {
		return err
	}
	signer, err := op.RecoverSigner(f.params, sig)
	if err != nil {
		return err
	}
	if signer != expected {
		return txbuilder.NewSigningError("Invalid user signature: recovered %s, expected %s", signer.Hex(), expected.Hex())
	}
	return nil
}
