package recovery

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/vultisig/app-recovery/internal/evm"
	"github.com/vultisig/app-recovery/internal/keypair"
	"github.com/vultisig/app-recovery/internal/txbuilder"
)

// Outcome is either a SignedRecovery or an OfflineVaultBundle.
type Outcome interface {
	isOutcome()
}

// SignedRecovery is a broadcast-ready recovery transaction.
type SignedRecovery struct {
	ID    string `json:"id"`
	TxHex string `json:"tx"`
	// FixedFee is set when the gas price was configured rather than estimated.
	FixedFee bool `json:"fixedFee,omitempty"`
}

func (*SignedRecovery) isOutcome() {}

// BundleKind tells which signatures an offline bundle still needs.
type BundleKind string

const (
	// BundleKRS carries the user operation signature; only the backup key
	// holder has to sign the outer transaction.
	BundleKRS BundleKind = "krs"
	// BundleUnsignedSweep carries no signature at all.
	BundleUnsignedSweep BundleKind = "unsigned-sweep"
)

// OfflineVaultBundle is everything an air-gapped signer needs to finish a
// recovery without network access.
type OfflineVaultBundle struct {
	ID             uuid.UUID      `json:"id"`
	Kind           BundleKind     `json:"kind"`
	Chain          string         `json:"coin"`
	TxHex          string         `json:"tx"`
	UserKey        string         `json:"userKey"`
	UserAddress    string         `json:"userAddress"`
	BackupKey      string         `json:"backupKey"`
	BackupAddress  string         `json:"backupKeyAddress"`
	BackupKeyNonce uint64         `json:"backupKeyNonce"`
	Amount         string         `json:"amount"`
	GasPrice       string         `json:"gasPrice"`
	GasLimit       uint64         `json:"gasLimit"`
	HalfSigned     evm.HalfSigned `json:"halfSigned"`
	FixedFee       bool           `json:"fixedFee,omitempty"`
}

func (*OfflineVaultBundle) isOutcome() {}

func ParseBundle(raw []byte) (*OfflineVaultBundle, error) {
	var b OfflineVaultBundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, txbuilder.NewParseError("invalid offline vault bundle", err)
	}
	if b.TxHex == "" {
		return nil, txbuilder.NewInvalidTransactionError("Raw transaction is empty", nil)
	}
	return &b, nil
}

// Complete signs the bundle with local keys. The user key is needed only when
// the bundle carries no operation signature.
func (b *OfflineVaultBundle) Complete(factory *evm.Factory, userKey, backupKey *keypair.Secp256k1) (*SignedRecovery, error) {
	half := b.HalfSigned
	if half.Signature == "" {
		if userKey == nil || !userKey.HasPrivateKey() {
			return nil, txbuilder.NewSigningError("Missing user private key")
		}
		signed, err := factory.SignPrebuild(evm.TxPrebuild{
			WalletContract: half.WalletContract,
			Recipients:     half.Recipients,
			ExpireTime:     half.ExpireTime,
			NextSequenceID: half.ContractSequenceID,
			TokenContract:  half.TokenContract,
		}, userKey)
		if err != nil {
			return nil, err
		}
		if !strings.EqualFold(signed.OperationHash, half.OperationHash) {
			return nil, txbuilder.NewSigningError("Operation hash mismatch: bundle has %s, computed %s", half.OperationHash, signed.OperationHash)
		}
		half = *signed
	}
	if err := factory.VerifyOperationSigner(&half, ecommon.HexToAddress(b.UserAddress)); err != nil {
		return nil, err
	}

	if backupKey == nil || !backupKey.HasPrivateKey() {
		return nil, txbuilder.NewSigningError("Missing backup private key")
	}
	if !strings.EqualFold(backupKey.EthAddress().Hex(), b.BackupAddress) {
		return nil, txbuilder.NewSigningError("Key %s cannot sign for backup address %s", backupKey.EthAddress().Hex(), b.BackupAddress)
	}
	gasPrice, ok := new(big.Int).SetString(b.GasPrice, 10)
	if !ok {
		return nil, txbuilder.NewParseError(fmt.Sprintf("invalid gas price %q", b.GasPrice), nil)
	}

	tx, err := factory.SignFinal(&half, backupKey, b.BackupKeyNonce, evm.Fee{GasPrice: gasPrice, GasLimit: b.GasLimit})
	if err != nil {
		return nil, err
	}
	raw, err := tx.ToBroadcastHex()
	if err != nil {
		return nil, err
	}
	return &SignedRecovery{ID: tx.ID(), TxHex: raw, FixedFee: b.FixedFee}, nil
}
