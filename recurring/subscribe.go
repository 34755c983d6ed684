package recurring

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libescrow-go/ledger"
	"github.com/bitfsorg/libescrow-go/revshare"
	"github.com/bitfsorg/libescrow-go/store"
)

// Setup publishes terms under id with the caller as seller. Terms cannot be
// changed afterwards; new terms need a new id.
func (e *Engine) Setup(caller common.Address, id string, usdValue *big.Int, duration time.Duration) error {
	return e.setup(caller, caller, id, usdValue, duration)
}

// SetupByValidator publishes terms on a seller's behalf.
func (e *Engine) SetupByValidator(caller, seller common.Address, id string, usdValue *big.Int, duration time.Duration) error {
	if err := e.roles.RequireValidator(caller); err != nil {
		return err
	}
	return e.setup(caller, seller, id, usdValue, duration)
}

func (e *Engine) setup(caller, seller common.Address, id string, usdValue *big.Int, duration time.Duration) error {
	_, release, err := e.guard.Enter(context.Background())
	if err != nil {
		return err
	}
	defer release()

	if err := checkID(id); err != nil {
		return err
	}
	if duration <= 0 {
		return ErrDurationZero
	}
	if usdValue == nil || usdValue.Sign() <= 0 {
		return ErrInvalidAmount
	}
	key := termsKey{seller, id}
	if _, ok := e.terms[key]; ok {
		return fmt.Errorf("%w: %s/%s", ErrAlreadySetup, seller.Hex(), id)
	}
	e.terms[key] = &Terms{
		Seller:    seller,
		ID:        id,
		USDValue:  new(big.Int).Set(usdValue),
		Duration:  duration,
		CreatedAt: e.clock.Now(),
	}
	e.log.Info("subscription setup", "seller", seller.Hex(), "id", id, "usd", usdValue.String(), "duration", duration)
	e.record(store.KindSetup, caller, seller, id, common.Address{}, usdValue)
	return nil
}

// Subscribe starts a subscription to the seller's terms under proofID and
// pulls the first payment from the buyer. asset is resolved by address against
// the accepted assets; the catalog descriptor is quoted and stored.
func (e *Engine) Subscribe(ctx context.Context, buyer, seller common.Address, id, proofID string, asset ledger.Asset) error {
	ctx, release, err := e.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := checkID(proofID); err != nil {
		return err
	}
	t, ok := e.terms[termsKey{seller, id}]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNoSetup, seller.Hex(), id)
	}
	if t.Disabled {
		return fmt.Errorf("%w: %s/%s", ErrSubscriptionDisabled, seller.Hex(), id)
	}
	if asset.IsNative() {
		return ErrNativeNotSupported
	}
	known, ok := e.supported[asset.Address]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
	}
	key := subKey{buyer, proofID}
	prev, exists := e.subs[key]
	if exists && prev.RenewEligible {
		return fmt.Errorf("%w: %s/%s", ErrAlreadySubscribed, buyer.Hex(), proofID)
	}

	amount, sellerPart, fee, err := e.quote(ctx, t, known)
	if err != nil {
		return err
	}
	now := e.clock.Now()
	sub := &Subscription{
		Buyer:          buyer,
		ProofID:        proofID,
		Seller:         seller,
		SubscriptionID: id,
		Asset:          known,
		Value:          amount,
		LastPaidAt:     now,
		Payments:       1,
		RenewEligible:  true,
	}
	e.subs[key] = sub
	revert, err := e.credit(seller, known.Address, sellerPart, fee)
	if err != nil {
		e.restore(key, prev, exists)
		return err
	}

	if err := e.treasury.TransferIn(ctx, known, buyer, amount); err != nil {
		revert()
		e.restore(key, prev, exists)
		e.log.Warn("subscription payment failed", "buyer", buyer.Hex(), "proof", proofID, "error", err)
		return ledger.External("transfer in", err)
	}

	e.log.Info("subscribed", "buyer", buyer.Hex(), "seller", seller.Hex(), "id", id, "proof", proofID, "amount", amount.String())
	e.record(store.KindSubscribed, buyer, seller, proofID, known.Address, amount)
	return nil
}

// Renew pulls the next payment for the buyer's subscription. Anyone may call
// it once the period since the last payment has elapsed.
func (e *Engine) Renew(ctx context.Context, caller, buyer common.Address, proofID string) error {
	ctx, release, err := e.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	sub, ok := e.subs[subKey{buyer, proofID}]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrSubscriptionNotFound, buyer.Hex(), proofID)
	}
	if !sub.RenewEligible {
		return fmt.Errorf("%w: cancelled by %s", ErrSubscriptionDisabled, sub.CancelledBy)
	}
	t := e.terms[termsKey{sub.Seller, sub.SubscriptionID}]
	if t.Disabled {
		return fmt.Errorf("%w: %s/%s", ErrSubscriptionDisabled, sub.Seller.Hex(), sub.SubscriptionID)
	}
	now := e.clock.Now()
	if due := sub.NextDue(t.Duration); now.Before(due) {
		return fmt.Errorf("%w: due %s", ErrNotYetTime, due.Format(time.RFC3339))
	}

	amount, sellerPart, fee, err := e.quote(ctx, t, sub.Asset)
	if err != nil {
		return err
	}
	old := *sub
	sub.Value = amount
	sub.LastPaidAt = now
	sub.Payments++
	revert, err := e.credit(sub.Seller, sub.Asset.Address, sellerPart, fee)
	if err != nil {
		*sub = old
		return err
	}

	if err := e.treasury.TransferIn(ctx, sub.Asset, buyer, amount); err != nil {
		revert()
		*sub = old
		e.log.Warn("renewal payment failed", "buyer", buyer.Hex(), "proof", proofID, "error", err)
		return ledger.External("transfer in", err)
	}

	e.log.Info("renewed", "buyer", buyer.Hex(), "proof", proofID, "caller", caller.Hex(), "amount", amount.String(), "payments", sub.Payments)
	e.record(store.KindRenewed, caller, sub.Seller, proofID, sub.Asset.Address, amount)
	return nil
}

// CancelBySeller ends a subscriber's subscription. Only the seller that owns
// the terms may call it.
func (e *Engine) CancelBySeller(caller, buyer common.Address, proofID string) error {
	return e.cancel(caller, buyer, proofID, CancelledBySeller, func(s *Subscription) error {
		if s.Seller != caller {
			return ErrNotSeller
		}
		return nil
	})
}

// CancelByValidator ends any subscription.
func (e *Engine) CancelByValidator(caller, buyer common.Address, proofID string) error {
	return e.cancel(caller, buyer, proofID, CancelledByValidator, func(*Subscription) error {
		return e.roles.RequireValidator(caller)
	})
}

// Unsubscribe ends the caller's own subscription under proofID.
func (e *Engine) Unsubscribe(caller common.Address, proofID string) error {
	return e.cancel(caller, caller, proofID, CancelledByBuyer, func(*Subscription) error { return nil })
}

func (e *Engine) cancel(caller, buyer common.Address, proofID string, by Canceller, authorize func(*Subscription) error) error {
	_, release, err := e.guard.Enter(context.Background())
	if err != nil {
		return err
	}
	defer release()

	sub, ok := e.subs[subKey{buyer, proofID}]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrSubscriptionNotFound, buyer.Hex(), proofID)
	}
	if err := authorize(sub); err != nil {
		return err
	}
	if !sub.RenewEligible {
		return fmt.Errorf("%w: by %s", ErrAlreadyCancelled, sub.CancelledBy)
	}
	sub.RenewEligible = false
	sub.CancelledBy = by

	e.log.Info("subscription cancelled", "buyer", buyer.Hex(), "proof", proofID, "by", string(by))
	e.record(store.KindCancelled, caller, sub.Seller, proofID, sub.Asset.Address, nil)
	return nil
}

// Disable blocks new subscriptions to the caller's terms and renewals of
// existing subscribers. Subscriber records are left as they are.
func (e *Engine) Disable(caller common.Address, id string) error {
	return e.setDisabled(caller, id, true)
}

// Enable reverses Disable.
func (e *Engine) Enable(caller common.Address, id string) error {
	return e.setDisabled(caller, id, false)
}

func (e *Engine) setDisabled(caller common.Address, id string, disabled bool) error {
	_, release, err := e.guard.Enter(context.Background())
	if err != nil {
		return err
	}
	defer release()

	t, ok := e.terms[termsKey{caller, id}]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNoSetup, caller.Hex(), id)
	}
	t.Disabled = disabled

	kind := store.KindEnabled
	if disabled {
		kind = store.KindDisabled
	}
	e.log.Info("subscription "+kind, "seller", caller.Hex(), "id", id)
	e.record(kind, caller, caller, id, common.Address{}, nil)
	return nil
}

// Withdraw pays the caller's accumulated subscription earnings in asset.
func (e *Engine) Withdraw(ctx context.Context, caller common.Address, asset ledger.Asset) (*big.Int, error) {
	ctx, release, err := e.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return e.payOut(ctx, e.balances, caller, caller, asset, store.KindFundWithdrawn)
}

// WithdrawFees pays the accrued platform fees in asset to the admin.
func (e *Engine) WithdrawFees(ctx context.Context, caller common.Address, asset ledger.Asset) (*big.Int, error) {
	ctx, release, err := e.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := e.roles.RequireAdmin(caller); err != nil {
		return nil, err
	}
	return e.payOut(ctx, e.fees, common.Address{}, caller, asset, store.KindFeesWithdrawn)
}

// quote converts the terms price into asset units and splits off the fee.
func (e *Engine) quote(ctx context.Context, t *Terms, asset ledger.Asset) (amount, sellerPart, fee *big.Int, err error) {
	amount, err = e.prices.UsdToAsset(ctx, t.USDValue, asset)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("recurring: quote %s: %w", asset, err)
	}
	sellerPart, fee, err = revshare.Split(amount, e.feeBps)
	if err != nil {
		return nil, nil, nil, err
	}
	return amount, sellerPart, fee, nil
}

// credit books the seller and fee parts and returns the func that undoes it.
func (e *Engine) credit(seller, asset common.Address, sellerPart, fee *big.Int) (func(), error) {
	if err := e.balances.Credit(asset, seller, sellerPart); err != nil {
		return nil, err
	}
	if err := e.fees.Credit(asset, common.Address{}, fee); err != nil {
		_ = e.balances.Debit(asset, seller, sellerPart)
		return nil, err
	}
	return func() {
		_ = e.balances.Debit(asset, seller, sellerPart)
		_ = e.fees.Debit(asset, common.Address{}, fee)
	}, nil
}

func (e *Engine) restore(key subKey, prev *Subscription, existed bool) {
	if existed {
		e.subs[key] = prev
		return
	}
	delete(e.subs, key)
}

func (e *Engine) payOut(ctx context.Context, book *ledger.Book, account, recipient common.Address, asset ledger.Asset, kind string) (*big.Int, error) {
	amount := book.Take(asset.Address, account)
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNothingToWithdraw, asset)
	}
	if err := e.treasury.TransferOut(ctx, asset, recipient, amount); err != nil {
		_ = book.Credit(asset.Address, account, amount)
		e.log.Warn("payout failed", "kind", kind, "recipient", recipient.Hex(), "error", err)
		return nil, ledger.External("transfer out", err)
	}
	e.log.Info("payout", "kind", kind, "recipient", recipient.Hex(), "asset", asset.String(), "amount", amount.String())
	e.record(kind, recipient, account, "", asset.Address, amount)
	return amount, nil
}
