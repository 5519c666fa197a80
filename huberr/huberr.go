// Package huberr classifies the error kinds described for the lending hub:
// validation, conflict, backend-unavailable, persistent and fatal failures.
// Packages that wrap their errors with a Kind (contract, auth, chain,
// coordinator) let callers (the coordinator, the RPC-equivalent layer, the chain watcher) can
// react uniformly without type-switching on package-specific error values.
package huberr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error classes from the error handling design.
type Kind uint8

const (
	// KindUnknown is the zero value and should not be produced deliberately.
	KindUnknown Kind = iota
	// KindValidation marks client-supplied input that violates a stated
	// invariant (bad address, out-of-range amount, malformed pubkey).
	KindValidation
	// KindConflict marks a rejected state transition; state is unchanged.
	KindConflict
	// KindBackendUnavailable marks a retriable dependency failure (chain
	// REST down, WebSocket dropped, SMTP refused).
	KindBackendUnavailable
	// KindPersistent marks a database constraint violation, signature
	// verification failure or decryption failure requiring intervention.
	KindPersistent
	// KindFatal marks an invariant breach that must abort the operation
	// without auto-recovery.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindBackendUnavailable:
		return "backend_unavailable"
	case KindPersistent:
		return "persistent"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a classified error wrapping an underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Retriable reports whether the operation that produced this error should be
// retried with backoff rather than surfaced to a human operator.
func Retriable(err error) bool {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind == KindBackendUnavailable
	}
	return false
}

// KindOf extracts the Kind of a classified error, or KindUnknown if err was
// never wrapped by this package.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindUnknown
}
