package recovery

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/app-recovery/internal/evm"
	"github.com/vultisig/app-recovery/internal/keypair"
	"github.com/vultisig/app-recovery/internal/metrics"
	"github.com/vultisig/app-recovery/internal/util"
)

// DefaultPacing is the delay between two explorer calls of one run.
const DefaultPacing = time.Second

// Request describes one recovery run. Keys are raw or encrypted material:
// xprv/xpub, hex keys or mnemonics.
type Request struct {
	UserKey        string
	BackupKey      string
	Passphrase     string
	WalletContract string
	Destination    string
	TokenContract  string
	GasLimit       uint64
	FixedGasPrice  *big.Int
}

func (r Request) validate() error {
	if !ecommon.IsHexAddress(r.WalletContract) {
		return fmt.Errorf("Invalid wallet contract address: %q", r.WalletContract)
	}
	if !ecommon.IsHexAddress(r.Destination) {
		return fmt.Errorf("Invalid recovery destination: %q", r.Destination)
	}
	if r.TokenContract != "" && !ecommon.IsHexAddress(r.TokenContract) {
		return fmt.Errorf("Invalid token contract address: %q", r.TokenContract)
	}
	return nil
}

// Engine runs recoveries of multisig wallet contracts on one EVM chain.
type Engine struct {
	chain    string
	factory  *evm.Factory
	explorer Explorer
	oracle   GasPriceOracle
	logger   logrus.FieldLogger
	metrics  *metrics.RecoveryMetrics
	pace     time.Duration
}

type Option func(*Engine)

// WithPacing overrides DefaultPacing.
func WithPacing(d time.Duration) Option {
	return func(e *Engine) { e.pace = d }
}

func NewEngine(
	chain string,
	factory *evm.Factory,
	explorer Explorer,
	oracle GasPriceOracle,
	logger logrus.FieldLogger,
	opts ...Option,
) *Engine {
	e := &Engine{
		chain:    chain,
		factory:  factory,
		explorer: explorer,
		oracle:   oracle,
		logger:   logger,
		metrics:  metrics.NewRecoveryMetrics(),
		pace:     DefaultPacing,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run holds the state of one recovery; explorer calls go through it so that
// every call after the first is paced.
type run struct {
	*Engine
	id     uuid.UUID
	logger logrus.FieldLogger
	calls  int
}

func (r *run) paced(ctx context.Context) error {
	r.calls++
	if r.calls == 1 || r.pace <= 0 {
		return nil
	}
	timer := time.NewTimer(r.pace)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Recover sweeps the wallet contract to the destination. With both private
// keys the result is a SignedRecovery; otherwise it is an OfflineVaultBundle
// for an air-gapped signer.
func (e *Engine) Recover(ctx context.Context, req Request) (Outcome, error) {
	r := &run{Engine: e, id: uuid.New()}
	r.logger = e.logger.WithFields(logrus.Fields{
		"recovery_id": r.id.String(),
		"chain":       e.chain,
		"wallet":      req.WalletContract,
	})

	start := time.Now()
	outcome, err := r.recover(ctx, req)
	if err != nil {
		e.metrics.RecordRecovery(e.chain, metrics.StatusError, time.Since(start))
		r.logger.WithError(err).Error("recovery failed")
		return nil, err
	}
	label := metrics.OutcomeSigned
	if _, ok := outcome.(*OfflineVaultBundle); ok {
		label = metrics.OutcomeOffline
	}
	e.metrics.RecordRecovery(e.chain, label, time.Since(start))
	return outcome, nil
}

func (r *run) recover(ctx context.Context, req Request) (Outcome, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	user, err := AcquireKey("user", req.UserKey, req.Passphrase)
	if err != nil {
		return nil, err
	}
	backup, err := AcquireKey("backup", req.BackupKey, req.Passphrase)
	if err != nil {
		return nil, err
	}
	if !user.HasPrivateKey() && backup.HasPrivateKey() {
		return nil, errors.New("user key is public but backup key is private: provide the user private key or the backup public key")
	}
	backupAddress := backup.EthAddress()
	r.logger.WithFields(logrus.Fields{
		"user_address":   user.EthAddress().Hex(),
		"backup_address": backupAddress.Hex(),
		"user_private":   user.HasPrivateKey(),
		"backup_private": backup.HasPrivateKey(),
	}).Info("keys acquired")

	fee, fixed, err := resolveFee(ctx, r.oracle, FeeConfig{GasLimit: req.GasLimit, FixedGasPrice: req.FixedGasPrice}, r.logger)
	if err != nil {
		return nil, err
	}

	if err = r.paced(ctx); err != nil {
		return nil, err
	}
	nonce, err := r.explorer.Nonce(ctx, backupAddress)
	if err != nil {
		return nil, err
	}
	if err = r.paced(ctx); err != nil {
		return nil, err
	}
	backupBalance, err := r.explorer.Balance(ctx, backupAddress)
	if err != nil {
		return nil, err
	}
	required := fee.Total()
	if backupBalance.Cmp(required) < 0 {
		return nil, &InsufficientBalanceError{Address: backupAddress.Hex(), Balance: backupBalance, Required: required}
	}

	wallet := ecommon.HexToAddress(req.WalletContract)
	if err = r.paced(ctx); err != nil {
		return nil, err
	}
	var balance *big.Int
	if req.TokenContract != "" {
		balance, err = r.explorer.TokenBalance(ctx, ecommon.HexToAddress(req.TokenContract), wallet)
	} else {
		balance, err = r.explorer.Balance(ctx, wallet)
	}
	if err != nil {
		return nil, err
	}
	if balance.Sign() <= 0 {
		return nil, ErrNoFunds
	}
	if err = r.paced(ctx); err != nil {
		return nil, err
	}
	sequenceID, err := r.explorer.SequenceID(ctx, wallet)
	if err != nil {
		return nil, err
	}
	r.logger.WithFields(logrus.Fields{
		"nonce":          nonce,
		"backup_balance": util.FormatGwei(backupBalance),
		"balance":        balance.String(),
		"sequence_id":    sequenceID,
		"gas_price_gwei": util.FormatGwei(fee.GasPrice),
		"gas_limit":      fee.GasLimit,
		"fixed_fee":      fixed,
	}).Info("chain state fetched")

	prebuild := evm.TxPrebuild{
		WalletContract: wallet.Hex(),
		Recipients:     []evm.Recipient{{Address: ecommon.HexToAddress(req.Destination).Hex(), Amount: balance.String()}},
		NextSequenceID: sequenceID,
	}
	if req.TokenContract != "" {
		prebuild.TokenContract = ecommon.HexToAddress(req.TokenContract).Hex()
	}

	if !user.HasPrivateKey() {
		half, err := r.factory.Prepare(prebuild)
		if err != nil {
			return nil, err
		}
		return r.bundle(BundleUnsignedSweep, half, user, backup, nonce, fee, balance, fixed)
	}

	half, err := r.factory.SignPrebuild(prebuild, user)
	if err != nil {
		return nil, err
	}
	if err = r.factory.VerifyOperationSigner(half, user.EthAddress()); err != nil {
		return nil, err
	}
	r.metrics.RecordSignature(r.chain, "user")

	if !backup.HasPrivateKey() {
		return r.bundle(BundleKRS, half, user, backup, nonce, fee, balance, fixed)
	}

	tx, err := r.factory.SignFinal(half, backup, nonce, fee)
	r.metrics.RecordBuild(r.chain, evm.TypeSend.String(), err == nil)
	if err != nil {
		return nil, err
	}
	r.metrics.RecordSignature(r.chain, "backup")
	raw, err := tx.ToBroadcastHex()
	if err != nil {
		return nil, err
	}
	r.logger.WithFields(logrus.Fields{
		"tx_hash":   tx.ID(),
		"fixed_fee": fixed,
	}).Info("recovery transaction signed")
	return &SignedRecovery{ID: tx.ID(), TxHex: raw, FixedFee: fixed}, nil
}

func (r *run) bundle(
	kind BundleKind,
	half *evm.HalfSigned,
	user, backup *keypair.Secp256k1,
	nonce uint64,
	fee evm.Fee,
	amount *big.Int,
	fixed bool,
) (*OfflineVaultBundle, error) {
	tx, err := r.factory.UnsignedFinal(half, backup.EthAddress(), nonce, fee)
	r.metrics.RecordBuild(r.chain, evm.TypeSend.String(), err == nil)
	if err != nil {
		return nil, err
	}
	raw, err := tx.ToBroadcastHex()
	if err != nil {
		return nil, err
	}
	half.TxHex = raw

	b := &OfflineVaultBundle{
		ID:             r.id,
		Kind:           kind,
		Chain:          r.chain,
		TxHex:          raw,
		UserKey:        publicID(user),
		UserAddress:    user.EthAddress().Hex(),
		BackupKey:      publicID(backup),
		BackupAddress:  backup.EthAddress().Hex(),
		BackupKeyNonce: nonce,
		Amount:         amount.String(),
		GasPrice:       fee.GasPrice.String(),
		GasLimit:       fee.GasLimit,
		HalfSigned:     *half,
		FixedFee:       fixed,
	}
	r.logger.WithFields(logrus.Fields{
		"kind":      kind,
		"fixed_fee": fixed,
	}).Info("offline vault bundle created")
	return b, nil
}
