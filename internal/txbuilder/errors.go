package txbuilder

import (
	"errors"
	"fmt"
)

// BuildTransactionError is returned when a required field was never set or a
// setter received an invalid value.
type BuildTransactionError struct {
	Msg string
}

func (e *BuildTransactionError) Error() string { return e.Msg }

func NewBuildError(format string, args ...any) error {
	return &BuildTransactionError{Msg: fmt.Sprintf(format, args...)}
}

// InvalidTransactionError is returned when raw bytes cannot be decoded or a
// built transaction is empty.
type InvalidTransactionError struct {
	Msg string
	Err error
}

func (e *InvalidTransactionError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *InvalidTransactionError) Unwrap() error { return e.Err }

func NewInvalidTransactionError(msg string, err error) error {
	return &InvalidTransactionError{Msg: msg, Err: err}
}

// SigningError is returned when a signature cannot be produced or attached.
type SigningError struct {
	Msg string
}

func (e *SigningError) Error() string { return e.Msg }

func NewSigningError(format string, args ...any) error {
	return &SigningError{Msg: fmt.Sprintf(format, args...)}
}

// NotSupportedError is returned when a decoded operation has no builder.
type NotSupportedError struct {
	Operation string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("Unsupported transaction type: %s", e.Operation)
}

// ParseTransactionError is returned when a payload does not match the argument
// shape of the operation it claims to be.
type ParseTransactionError struct {
	Msg string
	Err error
}

func (e *ParseTransactionError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ParseTransactionError) Unwrap() error { return e.Err }

func NewParseError(msg string, err error) error {
	return &ParseTransactionError{Msg: msg, Err: err}
}

func IsBuildError(err error) bool {
	var target *BuildTransactionError
	return errors.As(err, &target)
}

func IsSigningError(err error) bool {
	var target *SigningError
	return errors.As(err, &target)
}

func IsInvalidTransaction(err error) bool {
	var target *InvalidTransactionError
	return errors.As(err, &target)
}

func IsNotSupported(err error) bool {
	var target *NotSupportedError
	return errors.As(err, &target)
}
