package evm

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vultisig/app-recovery/internal/txbuilder"
)

type method struct {
	signature string
	id        []byte
	args      abi.Arguments
}

func newMethod(name string, types ...string) method {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(fmt.Sprintf("evm: invalid abi type %q: %v", t, err))
		}
		args = append(args, abi.Argument{Type: typ})
	}
	sig := name + "(" + strings.Join(types, ",") + ")"
	return method{
		signature: sig,
		id:        crypto.Keccak256([]byte(sig))[:4],
		args:      args,
	}
}

func (m method) pack(values ...any) ([]byte, error) {
	enc, err := m.args.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", m.signature, err)
	}
	return append(append([]byte{}, m.id...), enc...), nil
}

func (m method) unpack(data []byte) ([]any, error) {
	if !bytes.HasPrefix(data, m.id) {
		return nil, txbuilder.NewParseError(fmt.Sprintf("data does not start with %s selector", m.signature), nil)
	}
	values, err := m.args.Unpack(data[4:])
	if err != nil {
		return nil, txbuilder.NewParseError(fmt.Sprintf("failed to decode %s arguments", m.signature), err)
	}
	if len(values) != len(m.args) {
		return nil, txbuilder.NewParseError(fmt.Sprintf("%s: expected %d arguments, got %d", m.signature, len(m.args), len(values)), nil)
	}
	return values, nil
}

func (m method) idHex() string { return "0x" + hex.EncodeToString(m.id) }

// Multisig wallet and forwarder contracts.
var (
	sendMultiSigMethod         = newMethod("sendMultiSig", "address", "uint256", "bytes", "uint256", "uint256", "bytes")
	sendMultiSigTokenMethod    = newMethod("sendMultiSigToken", "address", "uint256", "address", "uint256", "uint256", "bytes")
	createForwarderMethod      = newMethod("createForwarder")
	createForwarderV1Method    = newMethod("createForwarder", "address", "bytes32")
	createForwarderV4Method    = newMethod("createForwarder", "address", "address", "bytes32")
	createWalletMethod         = newMethod("createWallet", "address[]", "bytes32")
	flushForwarderTokensMethod = newMethod("flushForwarderTokens", "address", "address")
	flushTokensMethod          = newMethod("flushTokens", "address")
	flushMethod                = newMethod("flush")
	getNextSequenceIDMethod    = newMethod("getNextSequenceId")
	balanceOfMethod            = newMethod("balanceOf", "address")

	// constructor arguments of the v0 wallet; only args is used
	walletConstructor = newMethod("constructor", "address[]")
)

// Celo LockedGold and Election contracts.
var (
	lockMethod          = newMethod("lock")
	unlockMethod        = newMethod("unlock", "uint256")
	withdrawMethod      = newMethod("withdraw", "uint256")
	voteMethod          = newMethod("vote", "address", "uint256", "address", "address")
	revokePendingMethod = newMethod("revokePending", "address", "uint256", "address", "address", "uint256")
	activateMethod      = newMethod("activate", "address")
)

// walletBytecodePrefix is how every solc-compiled creation bytecode starts.
var walletBytecodePrefix = []byte{0x60, 0x80, 0x60, 0x40}

// SendMultiSigData encodes a native multisig send.
func SendMultiSigData(to ecommon.Address, amount *big.Int, data []byte, expireTime int64, sequenceID uint64, signature []byte) ([]byte, error) {
	return sendMultiSigMethod.pack(
		to,
		amount,
		nonNilBytes(data),
		big.NewInt(expireTime),
		new(big.Int).SetUint64(sequenceID),
		nonNilBytes(signature),
	)
}

// SendMultiSigTokenData encodes a token multisig send.
func SendMultiSigTokenData(to ecommon.Address, amount *big.Int, token ecommon.Address, expireTime int64, sequenceID uint64, signature []byte) ([]byte, error) {
	return sendMultiSigTokenMethod.pack(
		to,
		amount,
		token,
		big.NewInt(expireTime),
		new(big.Int).SetUint64(sequenceID),
		nonNilBytes(signature),
	)
}

// GetNextSequenceIDData is the eth_call payload for the wallet's next sequence id.
func GetNextSequenceIDData() []byte {
	return append([]byte{}, getNextSequenceIDMethod.id...)
}

// BalanceOfData is the eth_call payload for an ERC20 balance.
func BalanceOfData(owner ecommon.Address) []byte {
	data, _ := balanceOfMethod.pack(owner)
	return data
}

// DecodeUint256 reads a single uint256 eth_call result.
func DecodeUint256(result []byte) (*big.Int, error) {
	if len(result) != 32 {
		return nil, fmt.Errorf("unexpected uint256 result length: %d", len(result))
	}
	return new(big.Int).SetBytes(result), nil
}

type decodedTransfer struct {
	to         ecommon.Address
	amount     *big.Int
	data       []byte
	token      *ecommon.Address
	expireTime int64
	sequenceID uint64
	signature  []byte
}

func decodeTransferData(data []byte) (*decodedTransfer, error) {
	switch {
	case bytes.HasPrefix(data, sendMultiSigMethod.id):
		v, err := sendMultiSigMethod.unpack(data)
		if err != nil {
			return nil, err
		}
		expireTime, sequenceID, err := transferCounters(v[3], v[4])
		if err != nil {
			return nil, err
		}
		return &decodedTransfer{
			to:         v[0].(ecommon.Address),
			amount:     v[1].(*big.Int),
			data:       v[2].([]byte),
			expireTime: expireTime,
			sequenceID: sequenceID,
			signature:  v[5].([]byte),
		}, nil
	case bytes.HasPrefix(data, sendMultiSigTokenMethod.id):
		v, err := sendMultiSigTokenMethod.unpack(data)
		if err != nil {
			return nil, err
		}
		expireTime, sequenceID, err := transferCounters(v[3], v[4])
		if err != nil {
			return nil, err
		}
		token := v[2].(ecommon.Address)
		return &decodedTransfer{
			to:         v[0].(ecommon.Address),
			amount:     v[1].(*big.Int),
			token:      &token,
			expireTime: expireTime,
			sequenceID: sequenceID,
			signature:  v[5].([]byte),
		}, nil
	default:
		return nil, txbuilder.NewParseError("data is not a multisig send", nil)
	}
}

// transferCounters narrows the uint256 expireTime and sequenceId arguments.
func transferCounters(expire, sequence any) (int64, uint64, error) {
	e, s := expire.(*big.Int), sequence.(*big.Int)
	if !e.IsInt64() {
		return 0, 0, txbuilder.NewParseError("expireTime out of range: "+e.String(), nil)
	}
	if !s.IsUint64() {
		return 0, 0, txbuilder.NewParseError("sequenceId out of range: "+s.String(), nil)
	}
	return e.Int64(), s.Uint64(), nil
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
