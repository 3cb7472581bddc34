package database

import (
	"errors"
	"fmt"
)

// Reason names the validation check a block failed.
type Reason string

// Set of rejection reasons.
const (
	ReasonHashMismatch        Reason = "hash_mismatch"
	ReasonDifficultyNotMet    Reason = "difficulty_not_met"
	ReasonPreviousHash        Reason = "previous_hash_mismatch"
	ReasonPreviousUnknown     Reason = "previous_block_unknown"
	ReasonInsufficientSigners Reason = "insufficient_signatures"
	ReasonInvalidSignature    Reason = "invalid_signature"
)

// ErrNotFound is returned when a block can't be located.
var ErrNotFound = errors.New("block not found")

// RejectError is returned when a block fails validation. No state is
// changed when this error is returned.
type RejectError struct {
	Reason Reason
	Hash   string
	Msg    string
}

func newReject(reason Reason, hash string, format string, args ...any) *RejectError {
	return &RejectError{
		Reason: reason,
		Hash:   hash,
		Msg:    fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (re *RejectError) Error() string {
	return fmt.Sprintf("block %s rejected: %s: %s", re.Hash, re.Reason, re.Msg)
}

// IsReject checks if an error of type RejectError exists.
func IsReject(err error) bool {
	var re *RejectError
	return errors.As(err, &re)
}

// GetReject returns a copy of the RejectError pointer.
func GetReject(err error) *RejectError {
	var re *RejectError
	if !errors.As(err, &re) {
		return nil
	}
	return re
}
