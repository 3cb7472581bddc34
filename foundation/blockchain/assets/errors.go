package assets

import (
	"errors"
	"fmt"
)

// Set of error variables for ledger operations.
var (
	ErrAssetNotFound       = errors.New("asset not found")
	ErrAssetExists         = errors.New("asset already exists")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// LedgerError describes a rejected ledger operation. It wraps one of the
// error variables so it can be checked with errors.Is.
type LedgerError struct {
	Err    error
	Reason string
}

func newError(err error, format string, args ...any) *LedgerError {
	return &LedgerError{
		Err:    err,
		Reason: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (le *LedgerError) Error() string {
	return fmt.Sprintf("%s: %s", le.Err, le.Reason)
}

// Unwrap returns the wrapped error variable.
func (le *LedgerError) Unwrap() error {
	return le.Err
}

// IsLedgerError checks if an error of type LedgerError exists.
func IsLedgerError(err error) bool {
	var le *LedgerError
	return errors.As(err, &le)
}
