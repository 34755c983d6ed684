package registry

import (
	"errors"
	"fmt"

	"github.com/bitfsorg/libescrow-go/ledger"
)

var (
	// ErrAlreadyCreated indicates the seller already has an engine of the kind.
	ErrAlreadyCreated = fmt.Errorf("%w: registry: already created", ledger.ErrDuplicate)

	// ErrEngineNotFound indicates the seller has no engine of the kind.
	ErrEngineNotFound = fmt.Errorf("%w: registry: engine not found", ledger.ErrNotFound)

	// ErrZeroSeller indicates a creation call for the zero address.
	ErrZeroSeller = errors.New("registry: zero seller address")

	// ErrMissingDependency indicates a nil collaborator in Config.
	ErrMissingDependency = errors.New("registry: missing dependency")
)
