// Package transaction error types.
//
// Every failure in this module is raised synchronously to the caller as
// one of the structured errors below. Nothing is retried and no operation
// returns a partial result. Callers match them with errors.As.
package transaction

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DecodeError is returned when transaction bytes are malformed.
//
// Common causes: wrong top-level arity, non-list where a list is expected,
// trailing bytes, oversized slots or addresses.
type DecodeError struct {
	Message string // Human-readable error message
	Cause   error  // Underlying RLP error (if any)
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("decode error: %s", e.Message)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// InsufficientFundsError is returned when the supplied UTXOs cannot cover
// the payments and fee in a currency.
type InsufficientFundsError struct {
	Currency  common.Address // Currency that is short
	Shortfall *big.Int       // Amount still needed
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: needs %s more of %s to cover payments and fees",
		e.Shortfall, e.Currency.Hex())
}

// SizeConstraintError is returned when a transaction, a merge or a
// metadata string does not fit the fixed format.
type SizeConstraintError struct {
	Code    string // Error code (e.g., ErrTooManyOutputs)
	Message string // Human-readable error message
}

func (e *SizeConstraintError) Error() string {
	return fmt.Sprintf("size constraint [%s]: %s", e.Code, e.Message)
}

// ConsistencyError is returned when UTXOs that must agree do not, such as
// a merge over mixed currencies or owners.
type ConsistencyError struct {
	Message string // Human-readable error message
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency error: %s", e.Message)
}

// Error codes used by SizeConstraintError.
const (
	ErrTooManyInputs   = "TOO_MANY_INPUTS"   // More than MaxInputs inputs
	ErrTooFewInputs    = "TOO_FEW_INPUTS"    // No inputs on a non-deposit transaction
	ErrTooManyOutputs  = "TOO_MANY_OUTPUTS"  // More than MaxOutputs outputs
	ErrMergeSize       = "MERGE_SIZE"        // Merge over fewer than 2 or more than 4 UTXOs
	ErrMetadataTooLong = "METADATA_TOO_LONG" // Metadata does not fit in 32 bytes
	ErrInvalidPosition = "INVALID_POSITION"  // txindex or oindex overflows its utxo_pos field
	ErrSignatureCount  = "SIGNATURE_COUNT"   // Signatures do not match the filled inputs
)
