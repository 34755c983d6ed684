package access

import (
	"errors"
	"fmt"

	"github.com/bitfsorg/libescrow-go/ledger"
)

var (
	// ErrNotOwner indicates the caller is not the owner.
	ErrNotOwner = fmt.Errorf("%w: access: caller is not the owner", ledger.ErrUnauthorized)

	// ErrNotAdmin indicates the caller is not the admin.
	ErrNotAdmin = fmt.Errorf("%w: access: caller is not the admin", ledger.ErrUnauthorized)

	// ErrNotValidator indicates the caller does not hold the validator role.
	ErrNotValidator = fmt.Errorf("%w: access: caller is not a validator", ledger.ErrUnauthorized)

	// ErrPaused indicates administrative mutation is frozen.
	ErrPaused = errors.New("access: paused")

	// ErrNotPaused indicates Unpause was called while not paused.
	ErrNotPaused = errors.New("access: not paused")

	// ErrZeroAddress indicates a role was bound to the zero address.
	ErrZeroAddress = errors.New("access: zero address")
)
