package simplepay

import (
	"errors"
	"fmt"

	"github.com/bitfsorg/libescrow-go/ledger"
)

var (
	// ErrExceedsMax indicates a USD value above the accepted maximum.
	ErrExceedsMax = errors.New("simplepay: usd value exceeds maximum")

	// ErrInvalidAmount indicates a zero or negative USD value.
	ErrInvalidAmount = errors.New("simplepay: usd value must be positive")

	// ErrEmptyProof indicates a deposit without a proof id.
	ErrEmptyProof = errors.New("simplepay: empty proof id")

	// ErrUnsupportedAsset indicates the payment asset is not accepted.
	ErrUnsupportedAsset = errors.New("simplepay: unsupported asset")

	// ErrInsufficientPayment indicates the attached native value is too small.
	ErrInsufficientPayment = ledger.ErrInsufficientPayment

	// ErrAlreadyPaid indicates the payment was already confirmed.
	ErrAlreadyPaid = errors.New("simplepay: already paid")

	// ErrAlreadyReceived indicates a withdrawal of a confirmed payment.
	ErrAlreadyReceived = errors.New("simplepay: already received")

	// ErrAlreadyRefunded indicates the payment was already returned to the buyer.
	ErrAlreadyRefunded = errors.New("simplepay: already refunded")

	// ErrDeadlineNotPassed indicates a withdrawal before the confirmation window closed.
	ErrDeadlineNotPassed = errors.New("simplepay: deadline not passed")

	// ErrNothingToWithdraw indicates an empty balance.
	ErrNothingToWithdraw = errors.New("simplepay: nothing to withdraw")

	// ErrNothingToRefund indicates the buyer has no pending deposits in the asset.
	ErrNothingToRefund = errors.New("simplepay: nothing to refund")

	// ErrInvalidSettings indicates inconsistent configuration values.
	ErrInvalidSettings = errors.New("simplepay: invalid settings")

	// ErrMissingDependency indicates a nil collaborator in Config.
	ErrMissingDependency = errors.New("simplepay: missing dependency")

	// ErrProofAlreadyUsed indicates a deposit under a proof id that already has a record.
	ErrProofAlreadyUsed = fmt.Errorf("%w: simplepay: proof already used", ledger.ErrDuplicate)

	// ErrNotFactory indicates a call that must come through the registry.
	ErrNotFactory = fmt.Errorf("%w: simplepay: caller is not the factory", ledger.ErrUnauthorized)

	// ErrNotSeller indicates a fund withdrawal by someone other than the seller.
	ErrNotSeller = fmt.Errorf("%w: simplepay: caller is not the seller", ledger.ErrUnauthorized)

	// ErrNotBuyer indicates a deposit withdrawal by someone other than its buyer.
	ErrNotBuyer = fmt.Errorf("%w: simplepay: caller is not the buyer", ledger.ErrUnauthorized)

	// ErrPaymentNotFound indicates no payment under the proof id.
	ErrPaymentNotFound = fmt.Errorf("%w: simplepay: payment not found", ledger.ErrNotFound)

	// ErrIndexOutOfRange indicates no payment at the index.
	ErrIndexOutOfRange = fmt.Errorf("%w: simplepay: index out of range", ledger.ErrNotFound)
)
