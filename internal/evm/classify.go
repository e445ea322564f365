package evm

import (
	"bytes"
	"encoding/hex"
)

// transactionTypes maps a 4-byte selector to the transaction type it starts.
var transactionTypes = map[string]TransactionType{
	createForwarderMethod.idHex():      TypeAddressInitialization,
	createForwarderV1Method.idHex():    TypeAddressInitialization,
	createForwarderV4Method.idHex():    TypeAddressInitialization,
	createWalletMethod.idHex():         TypeWalletInitialization,
	sendMultiSigMethod.idHex():         TypeSend,
	sendMultiSigTokenMethod.idHex():    TypeSend,
	flushForwarderTokensMethod.idHex(): TypeFlushTokens,
	flushTokensMethod.idHex():          TypeFlushTokens,
	flushMethod.idHex():                TypeFlushCoins,
	lockMethod.idHex():                 TypeStakingLock,
	unlockMethod.idHex():               TypeStakingUnlock,
	voteMethod.idHex():                 TypeStakingVote,
	revokePendingMethod.idHex():        TypeStakingUnvote,
	activateMethod.idHex():             TypeStakingActivate,
	withdrawMethod.idHex():             TypeStakingWithdraw,
}

// Classify returns the transaction type of calldata. Calls without a selector
// are plain sends, unknown selectors are generic contract calls and contract
// creation is a wallet deployment.
func Classify(data []byte, isCreation bool) TransactionType {
	if isCreation && bytes.HasPrefix(data, walletBytecodePrefix) {
		return TypeWalletInitialization
	}
	if len(data) < 4 {
		return TypeSingleSigSend
	}
	if t, ok := transactionTypes["0x"+hex.EncodeToString(data[:4])]; ok {
		return t
	}
	return TypeContractCall
}
