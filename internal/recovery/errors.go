package recovery

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/vultisig/app-recovery/internal/util"
)

// ErrRateLimited is returned when the explorer answers NOTOK.
var ErrRateLimited = errors.New("explorer rate limit reached")

// ErrNoFunds is returned when the wallet holds nothing to recover.
var ErrNoFunds = errors.New("Wallet does not have enough funds to recover")

// InsufficientBalanceError means the backup key address cannot pay the gas
// of the recovery transaction.
type InsufficientBalanceError struct {
	Address  string
	Balance  *big.Int
	Required *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("Backup key address %s has balance %s Gwei. "+
		"This address must have a balance of at least %s Gwei to perform recoveries. "+
		"Try sending some ETH to this address then retry.",
		e.Address, util.FormatGwei(e.Balance), util.FormatGwei(e.Required))
}

// DecryptionError names the key that could not be decrypted or parsed.
type DecryptionError struct {
	Key string
	Err error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("Error decrypting %s keychain: %v", e.Key, e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// ExplorerError is a failed or malformed explorer query.
type ExplorerError struct {
	Action string
	Err    error
}

func (e *ExplorerError) Error() string {
	return fmt.Sprintf("could not reach explorer (%s): %v", e.Action, e.Err)
}

func (e *ExplorerError) Unwrap() error { return e.Err }

func IsInsufficientBalance(err error) bool {
	var e *InsufficientBalanceError
	return errors.As(err, &e)
}

func IsDecryptionError(err error) bool {
	var e *DecryptionError
	return errors.As(err, &e)
}

func IsExplorerError(err error) bool {
	var e *ExplorerError
	return errors.As(err, &e)
}
