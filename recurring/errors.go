package recurring

import (
	"errors"
	"fmt"

	"github.com/bitfsorg/libescrow-go/ledger"
)

var (
	// ErrDurationZero indicates terms with a zero billing period.
	ErrDurationZero = errors.New("recurring: duration is zero")

	// ErrInvalidAmount indicates terms with a zero or negative USD value.
	ErrInvalidAmount = errors.New("recurring: usd value must be positive")

	// ErrEmptyID indicates an empty subscription or proof id.
	ErrEmptyID = errors.New("recurring: empty id")

	// ErrNoSetup indicates no terms for the seller and subscription id.
	ErrNoSetup = errors.New("recurring: no setup")

	// ErrNativeNotSupported indicates a subscription paid in the native asset.
	ErrNativeNotSupported = errors.New("recurring: native asset not supported")

	// ErrUnsupportedAsset indicates a payment asset that is not accepted.
	ErrUnsupportedAsset = errors.New("recurring: unsupported asset")

	// ErrNotYetTime indicates a renewal before the period elapsed.
	ErrNotYetTime = errors.New("recurring: not yet time to renew")

	// ErrSubscriptionDisabled indicates a cancelled subscription or disabled terms.
	ErrSubscriptionDisabled = errors.New("recurring: subscription disabled")

	// ErrAlreadyCancelled indicates a cancellation of a cancelled subscription.
	ErrAlreadyCancelled = errors.New("recurring: already cancelled")

	// ErrNothingToWithdraw indicates an empty balance.
	ErrNothingToWithdraw = errors.New("recurring: nothing to withdraw")

	// ErrMissingDependency indicates a nil collaborator in Config.
	ErrMissingDependency = errors.New("recurring: missing dependency")

	// ErrAlreadySetup indicates terms already exist for the key.
	ErrAlreadySetup = fmt.Errorf("%w: recurring: already setup", ledger.ErrDuplicate)

	// ErrAlreadySubscribed indicates an active subscription under the proof id.
	ErrAlreadySubscribed = fmt.Errorf("%w: recurring: already subscribed", ledger.ErrDuplicate)

	// ErrNotSeller indicates the caller does not own the subscription terms.
	ErrNotSeller = fmt.Errorf("%w: recurring: caller is not the seller", ledger.ErrUnauthorized)

	// ErrNotFactory indicates a configuration call that did not come through the registry.
	ErrNotFactory = fmt.Errorf("%w: recurring: caller is not the factory", ledger.ErrUnauthorized)

	// ErrSubscriptionNotFound indicates no subscription for the buyer and proof id.
	ErrSubscriptionNotFound = fmt.Errorf("%w: recurring: subscription not found", ledger.ErrNotFound)
)
