// Package faults defines the closed set of failure classes used across the
// payout dispatcher. Callers branch on the kind, never on message text.
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the dispatcher's failure classes.
type Kind int

const (
	// Configuration errors are fatal and abort the run before any row is touched.
	Configuration Kind = iota
	// Validation errors are per-row: malformed address or amount.
	Validation
	// ChainDispatch errors are per-row: network failure, node rejection, timeout.
	ChainDispatch
	// Store errors cover ledger store reads and writes. A failed batch read is
	// fatal; a failed status write after a broadcast requires manual reconciliation.
	Store
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Validation:
		return "validation"
	case ChainDispatch:
		return "chain_dispatch"
	case Store:
		return "store"
	default:
		return "unknown"
	}
}

// Error pairs a failure kind with free-text detail and an optional cause.
type Error struct {
	kind   Kind
	detail string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.detail + ": " + e.cause.Error()
	}
	return e.detail
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// Kind returns the failure class of the error.
func (e *Error) Kind() Kind {
	return e.kind
}

// Configurationf creates a fatal configuration error.
func Configurationf(format string, args ...interface{}) *Error {
	return &Error{kind: Configuration, detail: fmt.Sprintf(format, args...)}
}

// Validationf creates a per-row validation error.
func Validationf(format string, args ...interface{}) *Error {
	return &Error{kind: Validation, detail: fmt.Sprintf(format, args...)}
}

// Dispatchf creates a per-row chain dispatch error.
func Dispatchf(format string, args ...interface{}) *Error {
	return &Error{kind: ChainDispatch, detail: fmt.Sprintf(format, args...)}
}

// Storef creates a ledger store error.
func Storef(format string, args ...interface{}) *Error {
	return &Error{kind: Store, detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and context to an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{kind: kind, detail: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf extracts the kind from err, reporting false for errors outside the taxonomy.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.kind, true
	}
	return 0, false
}

// IsKind reports whether err belongs to the given failure class.
func IsKind(err error, k Kind) bool {
	kind, ok := KindOf(err)
	return ok && kind == k
}
