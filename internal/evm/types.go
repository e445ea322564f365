package evm

import (
	"fmt"
	"math/big"
)

// TransactionType is the closed set of operations an EVM builder produces.
type TransactionType int

const (
	TypeSend TransactionType = iota + 1
	TypeWalletInitialization
	TypeAddressInitialization
	TypeFlushTokens
	TypeFlushCoins
	TypeSingleSigSend
	TypeContractCall
	TypeStakingLock
	TypeStakingUnlock
	TypeStakingVote
	TypeStakingUnvote
	TypeStakingActivate
	TypeStakingWithdraw
)

var typeNames = map[TransactionType]string{
	TypeSend:                  "Send",
	TypeWalletInitialization:  "WalletInitialization",
	TypeAddressInitialization: "AddressInitialization",
	TypeFlushTokens:           "FlushTokens",
	TypeFlushCoins:            "FlushCoins",
	TypeSingleSigSend:         "SingleSigSend",
	TypeContractCall:          "ContractCall",
	TypeStakingLock:           "StakingLock",
	TypeStakingUnlock:         "StakingUnlock",
	TypeStakingVote:           "StakingVote",
	TypeStakingUnvote:         "StakingUnvote",
	TypeStakingActivate:       "StakingActivate",
	TypeStakingWithdraw:       "StakingWithdraw",
}

func (t TransactionType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("TransactionType(%d)", int(t))
}

func (t TransactionType) IsStaking() bool {
	return t >= TypeStakingLock && t <= TypeStakingWithdraw
}

// Fee is a legacy gas price and limit.
type Fee struct {
	GasPrice *big.Int
	GasLimit uint64
}

// Total is the most the sender can be charged.
func (f Fee) Total() *big.Int {
	return new(big.Int).Mul(f.GasPrice, new(big.Int).SetUint64(f.GasLimit))
}

// TxData is the decoded view of a transaction returned by ToJSON.
type TxData struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Nonce    uint64 `json:"nonce"`
	GasLimit string `json:"gasLimit"`
	GasPrice string `json:"gasPrice"`
	Value    string `json:"value"`
	Data     string `json:"data"`
	ChainID  string `json:"chainId"`
	V        string `json:"v,omitempty"`
	R        string `json:"r,omitempty"`
	S        string `json:"s,omitempty"`
}

// Recipient is one output of a multisig send.
type Recipient struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
	Data    string `json:"data,omitempty"`
}
