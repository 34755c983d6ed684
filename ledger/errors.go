package ledger

import (
	"errors"
	"fmt"
)

// Error classes. Package-level errors wrap one of these so callers can tell a
// wrong caller apart from a wrong state without knowing every sentinel.
var (
	// ErrUnauthorized is wrapped by every "wrong caller" error.
	ErrUnauthorized = errors.New("ledger: unauthorized")

	// ErrDuplicate is wrapped by every idempotency violation (reused proof id,
	// reused subscription key, engine already created).
	ErrDuplicate = errors.New("ledger: duplicate")

	// ErrExternal wraps failures reported by collaborators (asset transfers,
	// collection issuance, rate sources).
	ErrExternal = errors.New("ledger: external call failed")

	// ErrNotFound is wrapped by lookups of records that do not exist.
	ErrNotFound = errors.New("ledger: not found")
)

var (
	// ErrReentrantCall indicates an entry point was invoked from inside one of
	// its own collaborator calls.
	ErrReentrantCall = errors.New("ledger: reentrant call rejected")

	// ErrInsufficientBalance indicates a book debit larger than the balance.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")

	// ErrNegativeAmount indicates a nil or negative amount was supplied.
	ErrNegativeAmount = errors.New("ledger: amount must be non-negative")

	// ErrInsufficientPayment indicates the attached native value is below the
	// required amount.
	ErrInsufficientPayment = errors.New("ledger: insufficient payment")

	// ErrUnexpectedValue indicates native value was attached to a payment in a
	// fungible asset.
	ErrUnexpectedValue = errors.New("ledger: native value attached to fungible payment")
)

// External wraps a collaborator error so it matches ErrExternal.
func External(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrExternal, op, err)
}
