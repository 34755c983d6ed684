package reservation

import (
	"errors"
	"fmt"

	"github.com/bitfsorg/libescrow-go/ledger"
)

var (
	// ErrNotInitialized indicates the engine configuration is incomplete.
	ErrNotInitialized = errors.New("reservation: not initialized")

	// ErrInvalidSeller indicates an item addressed to another seller.
	ErrInvalidSeller = errors.New("reservation: item seller does not match engine")

	// ErrInvalidQuantity indicates a quantity outside the configured bounds.
	ErrInvalidQuantity = errors.New("reservation: invalid quantity")

	// ErrNotWhitelisted indicates a whitelist-stage reservation by an unlisted buyer.
	ErrNotWhitelisted = errors.New("reservation: buyer not whitelisted")

	// ErrInvalidWhitelistPrice indicates the caller's expected whitelist price is stale.
	ErrInvalidWhitelistPrice = errors.New("reservation: invalid whitelist price")

	// ErrInvalidMintPrice indicates the caller's expected mint price is stale.
	ErrInvalidMintPrice = errors.New("reservation: invalid mint price")

	// ErrUnsupportedAsset indicates the payment asset is not accepted.
	ErrUnsupportedAsset = errors.New("reservation: unsupported asset")

	// ErrInsufficientPayment indicates the attached native value is too small.
	ErrInsufficientPayment = ledger.ErrInsufficientPayment

	// ErrAlreadyReceived indicates the reservation is already confirmed.
	ErrAlreadyReceived = errors.New("reservation: already received")

	// ErrAlreadyRefunded indicates the reservation was already withdrawn.
	ErrAlreadyRefunded = errors.New("reservation: already refunded")

	// ErrSupplyExceeded indicates confirmation would exceed the supply cap.
	ErrSupplyExceeded = errors.New("reservation: supply cap exceeded")

	// ErrDeadlineNotPassed indicates a refund before the confirmation window closed.
	ErrDeadlineNotPassed = errors.New("reservation: deadline not passed")

	// ErrSaleEnded indicates a reservation after the sale deadline.
	ErrSaleEnded = errors.New("reservation: sale ended")

	// ErrSaleNotActive indicates a reservation while the stage is NotReady.
	ErrSaleNotActive = errors.New("reservation: sale not active")

	// ErrSaleClosed indicates a reservation while the stage is Closed.
	ErrSaleClosed = errors.New("reservation: sale closed")

	// ErrNothingToWithdraw indicates an empty balance.
	ErrNothingToWithdraw = errors.New("reservation: nothing to withdraw")

	// ErrInvalidSettings indicates inconsistent configuration values.
	ErrInvalidSettings = errors.New("reservation: invalid settings")

	// ErrMissingDependency indicates a nil collaborator in Config.
	ErrMissingDependency = errors.New("reservation: missing dependency")

	// ErrNotOwner indicates the caller does not own the reservation.
	ErrNotOwner = fmt.Errorf("%w: reservation: caller is not the reservation owner", ledger.ErrUnauthorized)

	// ErrNotFactory indicates a configuration call that did not come through the registry.
	ErrNotFactory = fmt.Errorf("%w: reservation: caller is not the factory", ledger.ErrUnauthorized)

	// ErrNotSeller indicates a proceeds withdrawal by someone other than the seller.
	ErrNotSeller = fmt.Errorf("%w: reservation: caller is not the seller", ledger.ErrUnauthorized)

	// ErrIndexOutOfRange indicates no reservation at the index.
	ErrIndexOutOfRange = fmt.Errorf("%w: reservation: index out of range", ledger.ErrNotFound)
)
