package collection

import (
	"errors"
	"fmt"

	"github.com/bitfsorg/libescrow-go/ledger"
)

var (
	// ErrAlreadyCreated indicates the seller already owns a collection.
	ErrAlreadyCreated = fmt.Errorf("%w: collection: already created", ledger.ErrDuplicate)

	// ErrCollectionNotFound indicates no collection lives at the address.
	ErrCollectionNotFound = fmt.Errorf("%w: collection: not found", ledger.ErrNotFound)

	// ErrNotMinter indicates the caller may not issue from the collection.
	ErrNotMinter = fmt.Errorf("%w: collection: caller is not the minter", ledger.ErrUnauthorized)

	// ErrZeroQuantity indicates an issuance of nothing.
	ErrZeroQuantity = errors.New("collection: zero quantity")

	// ErrZeroAddress indicates a zero seller, minter or recipient.
	ErrZeroAddress = errors.New("collection: zero address")
)
