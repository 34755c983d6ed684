package relay

import (
	"errors"
	"fmt"

	"github.com/bitfsorg/libescrow-go/ledger"
)

var (
	// ErrInvalidKind indicates a message kind other than reservation or payment.
	ErrInvalidKind = errors.New("relay: invalid message kind")

	// ErrEmptySubject indicates a message without a subject.
	ErrEmptySubject = errors.New("relay: empty subject")

	// ErrInvalidSubject indicates a reservation subject that is not an index.
	ErrInvalidSubject = errors.New("relay: invalid subject")

	// ErrInvalidSignature indicates a signature that is malformed or does not recover.
	ErrInvalidSignature = errors.New("relay: invalid signature")

	// ErrNilKey indicates signing with a nil private key.
	ErrNilKey = errors.New("relay: nil private key")

	// ErrUnknownSigner indicates a recovered signer without the validator role.
	ErrUnknownSigner = fmt.Errorf("%w: relay: signer is not a validator", ledger.ErrUnauthorized)

	// ErrMissingDependency indicates an inbox built without a collaborator.
	ErrMissingDependency = errors.New("relay: missing dependency")
)
