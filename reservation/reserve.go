package reservation

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libescrow-go/ledger"
	"github.com/bitfsorg/libescrow-go/revshare"
	"github.com/bitfsorg/libescrow-go/store"
)

// Reserve records a paid reservation for item and returns its index. The USD
// total (item.MintPrice times item.Quantity) is converted to asset units; a
// native payment must attach at least that much and is kept whole, a fungible
// payment is pulled against the buyer's approval of the engine.
func (e *Engine) Reserve(ctx context.Context, buyer common.Address, item Item, asset ledger.Asset, pay ledger.Payment) (uint64, error) {
	ctx, release, err := e.guard.Enter(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	s := &e.settings
	if !s.complete() || len(e.supported) == 0 {
		return 0, ErrNotInitialized
	}
	switch s.Stage {
	case StageNotReady:
		return 0, ErrSaleNotActive
	case StageClosed:
		return 0, ErrSaleClosed
	}
	now := e.clock.Now()
	if !s.SaleDeadline.IsZero() && now.After(s.SaleDeadline) {
		return 0, fmt.Errorf("%w: deadline %s", ErrSaleEnded, s.SaleDeadline.Format("2006-01-02T15:04:05Z07:00"))
	}
	if item.Seller != e.seller {
		return 0, fmt.Errorf("%w: got %s", ErrInvalidSeller, item.Seller.Hex())
	}
	if item.Quantity == 0 || item.Quantity < s.MinQuantity || item.Quantity > s.MaxQuantity {
		return 0, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidQuantity, item.Quantity, s.MinQuantity, s.MaxQuantity)
	}

	price := item.MintPrice
	if price == nil {
		price = new(big.Int)
	}
	if s.Stage == StageWhitelistOnly {
		if _, ok := e.whitelist[buyer]; !ok {
			return 0, fmt.Errorf("%w: %s", ErrNotWhitelisted, buyer.Hex())
		}
		if s.WhitelistPrice == nil || price.Cmp(s.WhitelistPrice) != 0 {
			return 0, fmt.Errorf("%w: got %s, want %v", ErrInvalidWhitelistPrice, price, s.WhitelistPrice)
		}
	} else if price.Cmp(s.MintPrice) != 0 {
		return 0, fmt.Errorf("%w: got %s, want %s", ErrInvalidMintPrice, price, s.MintPrice)
	}

	known, ok := e.supported[asset.Address]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
	}
	usd := new(big.Int).Mul(price, new(big.Int).SetUint64(item.Quantity))
	required, err := e.prices.UsdToAsset(ctx, usd, known)
	if err != nil {
		return 0, fmt.Errorf("reservation: quote %s: %w", known, err)
	}
	value, err := ledger.PaymentDue(known, required, pay)
	if err != nil {
		return 0, err
	}

	r := &Reservation{
		Index:     uint64(len(e.reservations)),
		Owner:     buyer,
		CreatedAt: now,
		Deadline:  now.Add(s.ConfirmationWindow),
		Value:     value,
		Quantity:  item.Quantity,
		Asset:     known,
	}
	e.reservations = append(e.reservations, r)

	success := false
	defer func() {
		if !success {
			e.reservations = e.reservations[:r.Index]
		}
	}()

	if err := e.treasury.TransferIn(ctx, known, buyer, value); err != nil {
		e.log.Warn("reserve payment failed", "buyer", buyer.Hex(), "asset", known.String(), "amount", value.String(), "error", err)
		return 0, ledger.External("transfer in", err)
	}
	success = true

	e.log.Info("reserved", "index", r.Index, "buyer", buyer.Hex(), "quantity", r.Quantity, "asset", known.String(), "value", value.String())
	e.record(store.KindReserved, buyer, strconv.FormatUint(r.Index, 10), known.Address, value)
	return r.Index, nil
}

// Confirm marks the reservation at index as received, issues its units to the
// buyer and releases its value to the seller minus the platform fee. Only a
// validator may confirm.
func (e *Engine) Confirm(ctx context.Context, caller common.Address, index uint64) error {
	ctx, release, err := e.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := e.roles.RequireValidator(caller); err != nil {
		return err
	}
	r, err := e.at(index)
	if err != nil {
		return err
	}
	if r.Received {
		return fmt.Errorf("%w: index %d", ErrAlreadyReceived, index)
	}
	if r.Refunded {
		return fmt.Errorf("%w: index %d", ErrAlreadyRefunded, index)
	}
	s := &e.settings
	if e.confirmed > s.SupplyCap || r.Quantity > s.SupplyCap-e.confirmed {
		return fmt.Errorf("%w: confirmed %d + %d > cap %d", ErrSupplyExceeded, e.confirmed, r.Quantity, s.SupplyCap)
	}
	sellerPart, fee, err := revshare.Split(r.Value, s.FeeBps)
	if err != nil {
		return err
	}

	asset := r.Asset.Address
	if err := e.proceeds.Credit(asset, e.seller, sellerPart); err != nil {
		return err
	}
	if err := e.fees.Credit(asset, common.Address{}, fee); err != nil {
		_ = e.proceeds.Debit(asset, e.seller, sellerPart)
		return err
	}
	r.Received = true
	e.confirmed += r.Quantity

	success := false
	defer func() {
		if !success {
			r.Received = false
			e.confirmed -= r.Quantity
			_ = e.proceeds.Debit(asset, e.seller, sellerPart)
			_ = e.fees.Debit(asset, common.Address{}, fee)
		}
	}()

	if err := e.issuer.Issue(ctx, e.addr, e.collection, r.Owner, r.Quantity); err != nil {
		e.log.Warn("issuance failed", "index", index, "buyer", r.Owner.Hex(), "quantity", r.Quantity, "error", err)
		return ledger.External("issue", err)
	}
	success = true

	e.log.Info("reservation confirmed", "index", index, "validator", caller.Hex(), "seller_part", sellerPart.String(), "fee", fee.String())
	e.record(store.KindConfirmed, caller, strconv.FormatUint(index, 10), asset, r.Value)
	return nil
}

// Withdraw refunds an unconfirmed reservation to its owner after its
// confirmation window has passed. The record stays in the ledger.
func (e *Engine) Withdraw(ctx context.Context, caller common.Address, index uint64) error {
	ctx, release, err := e.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	r, err := e.at(index)
	if err != nil {
		return err
	}
	// A confirmed reservation is never refundable, whatever its deadline.
	if r.Received {
		return fmt.Errorf("%w: index %d", ErrAlreadyReceived, index)
	}
	if r.Refunded {
		return fmt.Errorf("%w: index %d", ErrAlreadyRefunded, index)
	}
	if !e.clock.Now().After(r.Deadline) {
		return fmt.Errorf("%w: index %d until %s", ErrDeadlineNotPassed, index, r.Deadline.Format("2006-01-02T15:04:05Z07:00"))
	}
	if caller != r.Owner {
		return ErrNotOwner
	}

	r.Refunded = true
	success := false
	defer func() {
		if !success {
			r.Refunded = false
		}
	}()

	if err := e.treasury.TransferOut(ctx, r.Asset, r.Owner, r.Value); err != nil {
		e.log.Warn("refund failed", "index", index, "buyer", r.Owner.Hex(), "error", err)
		return ledger.External("transfer out", err)
	}
	success = true

	e.log.Info("reservation refunded", "index", index, "buyer", r.Owner.Hex(), "value", r.Value.String())
	e.record(store.KindRefunded, caller, strconv.FormatUint(index, 10), r.Asset.Address, r.Value)
	return nil
}

// WithdrawProceeds pays the seller's whole confirmed balance in asset.
func (e *Engine) WithdrawProceeds(ctx context.Context, caller common.Address, asset ledger.Asset) (*big.Int, error) {
	ctx, release, err := e.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if caller != e.seller {
		return nil, ErrNotSeller
	}
	return e.payOut(ctx, e.proceeds, e.seller, caller, asset, store.KindProceedsWithdraw)
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

// payOut empties account in book and transfers it to recipient, restoring the
// balance if the transfer fails. Callers hold the guard.
func (e *Engine) payOut(ctx context.Context, book *ledger.Book, account, recipient common.Address, asset ledger.Asset, kind string) (*big.Int, error) {
	amount := book.Take(asset.Address, account)
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNothingToWithdraw, asset)
	}
	if err := e.treasury.TransferOut(ctx, asset, recipient, amount); err != nil {
		_ = book.Credit(asset.Address, account, amount)
		e.log.Warn("payout failed", "kind", kind, "recipient", recipient.Hex(), "asset", asset.String(), "error", err)
		return nil, ledger.External("transfer out", err)
	}
	e.log.Info("payout", "kind", kind, "recipient", recipient.Hex(), "asset", asset.String(), "amount", amount.String())
	e.record(kind, recipient, "", asset.Address, amount)
	return amount, nil
}
