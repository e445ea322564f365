package evm

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"strings"
	"time"

	ecommon "github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/vultisig/app-recovery/internal/keypair"
	"github.com/vultisig/app-recovery/internal/txbuilder"
)

const maxOwners = 3

// Builder accumulates the fields of one EVM transaction. Setters validate
// their own input; cross-field checks run in Build.
type Builder struct {
	params *NetworkParams
	now    func() time.Time

	txType  TransactionType
	fee     *Fee
	counter *uint64
	sender  *ecommon.Address

	contract *ecommon.Address
	to       *ecommon.Address
	value    *big.Int
	data     []byte

	owners        []ecommon.Address
	walletVersion int
	initCode      []byte

	contractCounter  *uint64
	forwarderVersion int
	baseAddress      *ecommon.Address
	feeAddress       *ecommon.Address
	salt             *[32]byte

	forwarderAddress *ecommon.Address
	tokenAddress     *ecommon.Address

	transfer *TransferBuilder
	staking  stakingOperation

	signKey   *keypair.Secp256k1
	external  *txbuilder.Signature
	rawSig    []byte
	rawSigned []byte
}

func newBuilder(params *NetworkParams, now func() time.Time) *Builder {
	return &Builder{params: params, now: now}
}

func (b *Builder) Type(t TransactionType) error {
	if _, ok := typeNames[t]; !ok {
		return &txbuilder.NotSupportedError{Operation: t.String()}
	}
	b.txType = t
	return nil
}

func (b *Builder) Fee(gasPrice, gasLimit string) error {
	price, err := txbuilder.ParseValue(gasPrice)
	if err != nil {
		return err
	}
	limit, err := txbuilder.ParseUint64("gas limit", gasLimit)
	if err != nil {
		return err
	}
	b.fee = &Fee{GasPrice: price, GasLimit: limit}
	return nil
}

// Counter is the sender account nonce.
func (b *Builder) Counter(n int64) error {
	if n < 0 {
		return txbuilder.NewBuildError("Invalid counter: %d", n)
	}
	c := uint64(n)
	b.counter = &c
	return nil
}

// Sender declares the fee-paying address that must sign the outer transaction.
func (b *Builder) Sender(address string) error {
	addr, err := parseAddress(address)
	if err != nil {
		return err
	}
	b.sender = &addr
	return nil
}

// Contract is the wallet, forwarder or factory the transaction calls.
func (b *Builder) Contract(address string) error {
	addr, err := parseAddress(address)
	if err != nil {
		return err
	}
	b.contract = &addr
	return nil
}

// To is the recipient of a single-sig send.
func (b *Builder) To(address string) error {
	addr, err := parseAddress(address)
	if err != nil {
		return err
	}
	b.to = &addr
	return nil
}

func (b *Builder) Value(v string) error {
	value, err := txbuilder.ParseValue(v)
	if err != nil {
		return err
	}
	b.value = value
	return nil
}

func (b *Builder) Data(h string) error {
	if b.txType != TypeContractCall {
		return txbuilder.NewBuildError("Data can only be set for contract call transaction types")
	}
	d, err := hex.DecodeString(strings.TrimPrefix(h, "0x"))
	if err != nil {
		return txbuilder.NewBuildError("Invalid data: %s", h)
	}
	b.data = d
	return nil
}

func (b *Builder) Owner(address string) error {
	if b.txType != TypeWalletInitialization {
		return txbuilder.NewBuildError("Multisig wallet owner can only be set for initialization transactions")
	}
	if len(b.owners) >= maxOwners {
		return txbuilder.NewBuildError("A maximum of %d owners can be set for a multisig wallet", maxOwners)
	}
	addr, err := parseAddress(address)
	if err != nil {
		return err
	}
	for _, o := range b.owners {
		if o == addr {
			return txbuilder.NewBuildError("Repeated owner address: %s", address)
		}
	}
	b.owners = append(b.owners, addr)
	return nil
}

// WalletVersion 0 deploys the wallet bytecode directly; 1 and later call
// createWallet on a factory set as Contract.
func (b *Builder) WalletVersion(v int) error {
	if v < 0 || v > 4 {
		return txbuilder.NewBuildError("Invalid wallet version: %d", v)
	}
	b.walletVersion = v
	return nil
}

// ContractCounter is the wallet contract nonce used to predict a v0
// forwarder address.
func (b *Builder) ContractCounter(n uint64) error {
	if b.txType != TypeAddressInitialization {
		return txbuilder.NewBuildError("Contract counter can only be set for address initialization transactions")
	}
	b.contractCounter = &n
	return nil
}

func (b *Builder) ForwarderVersion(v int) error {
	switch v {
	case 0, 1, 2, 4:
		b.forwarderVersion = v
		return nil
	default:
		return txbuilder.NewBuildError("Invalid forwarder version: %d", v)
	}
}

func (b *Builder) BaseAddress(address string) error {
	addr, err := parseAddress(address)
	if err != nil {
		return err
	}
	b.baseAddress = &addr
	return nil
}

func (b *Builder) FeeAddress(address string) error {
	addr, err := parseAddress(address)
	if err != nil {
		return err
	}
	b.feeAddress = &addr
	return nil
}

// Salt is left-padded to 32 bytes.
func (b *Builder) Salt(h string) error {
	s, err := hex.DecodeString(strings.TrimPrefix(h, "0x"))
	if err != nil || len(s) > 32 {
		return txbuilder.NewBuildError("Invalid salt: %s", h)
	}
	var salt [32]byte
	copy(salt[32-len(s):], s)
	b.salt = &salt
	return nil
}

func (b *Builder) ForwarderAddress(address string) error {
	if b.txType != TypeFlushTokens {
		return txbuilder.NewBuildError("Forwarder address can only be set for flush tokens transactions")
	}
	addr, err := parseAddress(address)
	if err != nil {
		return err
	}
	b.forwarderAddress = &addr
	return nil
}

func (b *Builder) TokenAddress(address string) error {
	if b.txType != TypeFlushTokens {
		return txbuilder.NewBuildError("Token address can only be set for flush tokens transactions")
	}
	addr, err := parseAddress(address)
	if err != nil {
		return err
	}
	b.tokenAddress = &addr
	return nil
}

// Transfer returns the multisig send sub-builder, creating it on first use.
func (b *Builder) Transfer() (*TransferBuilder, error) {
	if b.txType != TypeSend {
		return nil, txbuilder.NewBuildError("Transfers can only be set for send transactions")
	}
	if b.transfer == nil {
		b.transfer = &TransferBuilder{}
	}
	return b.transfer, nil
}

func (b *Builder) checkStaking(required TransactionType) error {
	if b.txType != required {
		return txbuilder.NewBuildError("Staking transaction type mismatch: builder type is %s, operation requires %s", b.txType, required)
	}
	if !b.params.SupportsStaking() {
		return &txbuilder.NotSupportedError{Operation: required.String()}
	}
	return nil
}

func (b *Builder) Lock() (*LockBuilder, error) {
	if err := b.checkStaking(TypeStakingLock); err != nil {
		return nil, err
	}
	s := &LockBuilder{}
	b.staking = s
	return s, nil
}

func (b *Builder) Unlock() (*UnlockBuilder, error) {
	if err := b.checkStaking(TypeStakingUnlock); err != nil {
		return nil, err
	}
	s := &UnlockBuilder{}
	b.staking = s
	return s, nil
}

func (b *Builder) Withdraw() (*WithdrawBuilder, error) {
	if err := b.checkStaking(TypeStakingWithdraw); err != nil {
		return nil, err
	}
	s := &WithdrawBuilder{}
	b.staking = s
	return s, nil
}

func (b *Builder) Vote() (*VoteBuilder, error) {
	if err := b.checkStaking(TypeStakingVote); err != nil {
		return nil, err
	}
	s := &VoteBuilder{}
	b.staking = s
	return s, nil
}

func (b *Builder) Unvote() (*UnvoteBuilder, error) {
	if err := b.checkStaking(TypeStakingUnvote); err != nil {
		return nil, err
	}
	s := &UnvoteBuilder{}
	b.staking = s
	return s, nil
}

func (b *Builder) Activate() (*ActivateBuilder, error) {
	if err := b.checkStaking(TypeStakingActivate); err != nil {
		return nil, err
	}
	s := &ActivateBuilder{}
	b.staking = s
	return s, nil
}

// Sign registers a key to sign with at build time. On a Send the first key
// without an operation signature signs the operation; the next one signs the
// outer transaction.
func (b *Builder) Sign(key *keypair.Secp256k1) error {
	if key == nil || !key.HasPrivateKey() {
		return txbuilder.NewSigningError("Missing private key")
	}
	if b.txType == TypeSend {
		if b.transfer == nil {
			return txbuilder.NewSigningError("Missing transfer information")
		}
		if !b.transfer.hasSignature() {
			b.transfer.Key(key)
			return nil
		}
	}
	if b.signKey != nil || b.external != nil || len(b.rawSig) != 0 {
		if b.txType != TypeSend {
			return txbuilder.NewSigningError("Cannot sign multiple times a non send-type transaction")
		}
		return txbuilder.NewSigningError("Transaction already has a sender signature")
	}
	if b.sender != nil && !key.CanSignFor(*b.sender) {
		return txbuilder.NewSigningError("Key %s cannot sign for sender %s", key.EthAddress().Hex(), b.sender.Hex())
	}
	b.signKey = key
	return nil
}

// AddSignature attaches an externally computed sender signature at build time.
func (b *Builder) AddSignature(publicKey, sig []byte) error {
	if len(sig) == 0 {
		return txbuilder.NewSigningError("empty signature")
	}
	if b.signKey != nil || b.external != nil || len(b.rawSig) != 0 {
		return txbuilder.NewSigningError("Cannot sign multiple times a non send-type transaction")
	}
	b.external = &txbuilder.Signature{Signer: RoleSender, PublicKey: bytes.Clone(publicKey), Bytes: bytes.Clone(sig)}
	return nil
}

func (b *Builder) Build() (*Transaction, error) {
	if err := b.validateBase(); err != nil {
		return nil, err
	}
	to, value, data, err := b.payload()
	if err != nil {
		return nil, err
	}

	legacy := etypes.LegacyTx{
		Nonce:    *b.counter,
		GasPrice: new(big.Int).Set(b.fee.GasPrice),
		Gas:      b.fee.GasLimit,
		To:       to,
		Value:    value,
		Data:     data,
	}
	tx, err := newTransaction(b.params, b.txType, legacy, b.sender)
	if err != nil {
		return nil, err
	}
	if len(b.rawSig) != 0 {
		// a decoded signature only applies while the payload is unchanged
		unsigned, er := encodeUnsigned(legacy, b.params.ChainIDBig())
		if er != nil {
			return nil, er
		}
		if bytes.Equal(unsigned, b.rawSigned) {
			if er = tx.AddSignature(nil, b.rawSig); er != nil {
				return nil, er
			}
		}
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

// PredictedAddress returns the forwarder an address initialization will
// create, when enough information was set to compute it.
func (b *Builder) PredictedAddress() (ecommon.Address, bool) {
	switch b.txType {
	case TypeAddressInitialization:
		if b.contract == nil {
			return ecommon.Address{}, false
		}
		if b.forwarderVersion == 0 {
			if b.contractCounter == nil {
				return ecommon.Address{}, false
			}
			return ForwarderAddress(*b.contract, *b.contractCounter), true
		}
		if b.baseAddress == nil || b.salt == nil || b.params.ForwarderImplementation == "" {
			return ecommon.Address{}, false
		}
		var fee ecommon.Address
		if b.feeAddress != nil {
			fee = *b.feeAddress
		}
		salt := ForwarderSalt(b.forwarderVersion, *b.baseAddress, fee, *b.salt)
		return ForwarderV1Address(*b.contract, salt, ecommon.HexToAddress(b.params.ForwarderImplementation)), true
	default:
		return ecommon.Address{}, false
	}
}

func (b *Builder) validateBase() error {
	if b.txType == 0 {
		return txbuilder.NewBuildError("Invalid transaction: missing transaction type")
	}
	if b.fee == nil {
		return txbuilder.NewBuildError("Invalid transaction: missing fee")
	}
	if b.counter == nil {
		return txbuilder.NewBuildError("Invalid transaction: missing address counter")
	}
	return nil
}

func (b *Builder) requireContract() error {
	if b.contract == nil {
		return txbuilder.NewBuildError("Invalid transaction: missing contract address")
	}
	return nil
}

// payload resolves the destination, value and calldata for the declared type.
func (b *Builder) payload() (*ecommon.Address, *big.Int, []byte, error) {
	zero := new(big.Int)
	switch b.txType {
	case TypeSend:
		if err := b.requireContract(); err != nil {
			return nil, nil, nil, err
		}
		if b.transfer == nil {
			return nil, nil, nil, txbuilder.NewBuildError("Missing transfer information")
		}
		data, err := b.transfer.encode(b.params, b.now)
		if err != nil {
			return nil, nil, nil, err
		}
		return b.contract, zero, data, nil

	case TypeWalletInitialization:
		return b.walletInitPayload()

	case TypeAddressInitialization:
		return b.addressInitPayload()

	case TypeFlushTokens:
		if b.forwarderAddress == nil {
			return nil, nil, nil, txbuilder.NewBuildError("Invalid transaction: missing forwarder address")
		}
		if b.tokenAddress == nil {
			return nil, nil, nil, txbuilder.NewBuildError("Invalid transaction: missing token address")
		}
		if b.forwarderVersion >= 4 {
			data, err := flushTokensMethod.pack(*b.tokenAddress)
			return b.forwarderAddress, zero, data, err
		}
		if err := b.requireContract(); err != nil {
			return nil, nil, nil, err
		}
		data, err := flushForwarderTokensMethod.pack(*b.forwarderAddress, *b.tokenAddress)
		return b.contract, zero, data, err

	case TypeFlushCoins:
		if err := b.requireContract(); err != nil {
			return nil, nil, nil, err
		}
		data, err := flushMethod.pack()
		return b.contract, zero, data, err

	case TypeSingleSigSend:
		if b.to == nil {
			return nil, nil, nil, txbuilder.NewBuildError("Invalid transaction: missing to address")
		}
		return b.to, valueOrZero(b.value), nil, nil

	case TypeContractCall:
		if err := b.requireContract(); err != nil {
			return nil, nil, nil, err
		}
		if len(b.data) == 0 {
			return nil, nil, nil, txbuilder.NewBuildError("Invalid transaction: missing contract call data")
		}
		return b.contract, valueOrZero(b.value), b.data, nil

	default:
		if !b.txType.IsStaking() {
			return nil, nil, nil, &txbuilder.NotSupportedError{Operation: b.txType.String()}
		}
		if !b.params.SupportsStaking() {
			return nil, nil, nil, &txbuilder.NotSupportedError{Operation: b.txType.String()}
		}
		if b.staking == nil {
			return nil, nil, nil, txbuilder.NewBuildError("No staking information set")
		}
		if b.staking.kind() != b.txType {
			return nil, nil, nil, txbuilder.NewBuildError("Staking transaction type mismatch: builder type is %s, operation requires %s", b.txType, b.staking.kind())
		}
		to, value, data, err := b.staking.encode(b.params)
		if err != nil {
			return nil, nil, nil, err
		}
		return &to, value, data, nil
	}
}

func (b *Builder) walletInitPayload() (*ecommon.Address, *big.Int, []byte, error) {
	zero := new(big.Int)
	if len(b.initCode) != 0 {
		return nil, zero, b.initCode, nil
	}
	if len(b.owners) != maxOwners {
		return nil, nil, nil, txbuilder.NewBuildError("Invalid transaction: wrong number of owners -- required: %d, found: %d", maxOwners, len(b.owners))
	}
	if b.walletVersion == 0 {
		if b.params.WalletBytecode == "" {
			return nil, nil, nil, txbuilder.NewBuildError("Invalid transaction: missing wallet bytecode")
		}
		code, err := hex.DecodeString(strings.TrimPrefix(b.params.WalletBytecode, "0x"))
		if err != nil {
			return nil, nil, nil, txbuilder.NewBuildError("Invalid wallet bytecode")
		}
		args, err := walletConstructor.args.Pack(b.owners)
		if err != nil {
			return nil, nil, nil, txbuilder.NewBuildError("failed to encode wallet owners: %v", err)
		}
		return nil, zero, append(code, args...), nil
	}
	if err := b.requireContract(); err != nil {
		return nil, nil, nil, err
	}
	if b.salt == nil {
		return nil, nil, nil, txbuilder.NewBuildError("Invalid transaction: missing salt")
	}
	data, err := createWalletMethod.pack(b.owners, *b.salt)
	return b.contract, zero, data, err
}

func (b *Builder) addressInitPayload() (*ecommon.Address, *big.Int, []byte, error) {
	zero := new(big.Int)
	if err := b.requireContract(); err != nil {
		return nil, nil, nil, err
	}
	if b.forwarderVersion == 0 {
		data, err := createForwarderMethod.pack()
		return b.contract, zero, data, err
	}
	if b.baseAddress == nil {
		return nil, nil, nil, txbuilder.NewBuildError("Invalid transaction: missing base address")
	}
	if b.salt == nil {
		return nil, nil, nil, txbuilder.NewBuildError("Invalid transaction: missing salt")
	}
	if b.forwarderVersion >= 4 {
		if b.feeAddress == nil {
			return nil, nil, nil, txbuilder.NewBuildError("Invalid transaction: missing fee address")
		}
		data, err := createForwarderV4Method.pack(*b.baseAddress, *b.feeAddress, *b.salt)
		return b.contract, zero, data, err
	}
	data, err := createForwarderV1Method.pack(*b.baseAddress, *b.salt)
	return b.contract, zero, data, err
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
