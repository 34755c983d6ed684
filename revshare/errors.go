package revshare

import "errors"

var (
	// ErrInvalidBps indicates a basis-point rate above 10000.
	ErrInvalidBps = errors.New("revshare: basis points exceed 10000")

	// ErrConservationViolation indicates a split created or destroyed value.
	ErrConservationViolation = errors.New("revshare: value conservation violated")

	// ErrNegativeValue indicates a negative or nil amount to divide.
	ErrNegativeValue = errors.New("revshare: negative value")

	// ErrNoEntries indicates a distribution with no payees.
	ErrNoEntries = errors.New("revshare: no payee entries")

	// ErrZeroShares indicates a payee weight of zero.
	ErrZeroShares = errors.New("revshare: zero share amount")
)
