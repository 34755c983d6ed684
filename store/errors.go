package store

import (
	"errors"
	"fmt"

	"github.com/bitfsorg/libescrow-go/ledger"
)

var (
	// ErrEventNotFound indicates no event carries the requested id.
	ErrEventNotFound = fmt.Errorf("%w: store: event not found", ledger.ErrNotFound)

	// ErrDuplicateEvent indicates an event with this id was already appended.
	ErrDuplicateEvent = fmt.Errorf("%w: store: duplicate event", ledger.ErrDuplicate)

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("store: required parameter is nil")

	// ErrMissingKind indicates an event without a kind.
	ErrMissingKind = errors.New("store: event kind is empty")
)
