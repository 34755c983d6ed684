package simplepay

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libescrow-go/ledger"
	"github.com/bitfsorg/libescrow-go/revshare"
	"github.com/bitfsorg/libescrow-go/store"
)

// Deposit escrows a payment of usdValue in asset under proofID and returns its
// index. Payment rules match reservations: native value must cover the quote
// and is kept whole, fungible assets are pulled against an approval.
func (e *Escrow) Deposit(ctx context.Context, buyer common.Address, asset ledger.Asset, usdValue *big.Int, proofID string, pay ledger.Payment) (uint64, error) {
	ctx, release, err := e.guard.Enter(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	if usdValue == nil || usdValue.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	if e.maxUSD != nil && usdValue.Cmp(e.maxUSD) > 0 {
		return 0, fmt.Errorf("%w: %s > %s", ErrExceedsMax, usdValue, e.maxUSD)
	}
	if strings.TrimSpace(proofID) == "" {
		return 0, ErrEmptyProof
	}
	known, ok := e.supported[asset.Address]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
	}
	if _, used := e.byProof[proofID]; used {
		return 0, fmt.Errorf("%w: %q", ErrProofAlreadyUsed, proofID)
	}
	required, err := e.prices.UsdToAsset(ctx, usdValue, known)
	if err != nil {
		return 0, fmt.Errorf("simplepay: quote %s: %w", known, err)
	}
	value, err := ledger.PaymentDue(known, required, pay)
	if err != nil {
		return 0, err
	}

	now := e.clock.Now()
	p := &Payment{
		Index:     uint64(len(e.payments)),
		ProofID:   proofID,
		Buyer:     buyer,
		Seller:    e.seller,
		Asset:     known,
		USDValue:  new(big.Int).Set(usdValue),
		Value:     value,
		CreatedAt: now,
		Deadline:  now.Add(e.window),
	}
	e.payments = append(e.payments, p)
	e.byProof[proofID] = p

	success := false
	defer func() {
		if !success {
			e.payments = e.payments[:p.Index]
			delete(e.byProof, proofID)
		}
	}()

	if err := e.treasury.TransferIn(ctx, known, buyer, value); err != nil {
		e.log.Warn("deposit payment failed", "proof", proofID, "buyer", buyer.Hex(), "error", err)
		return 0, ledger.External("transfer in", err)
	}
	success = true

	e.log.Info("deposited", "proof", proofID, "index", p.Index, "buyer", buyer.Hex(), "asset", known.String(), "value", value.String())
	e.record(store.KindDeposited, buyer, proofID, known.Address, value)
	return p.Index, nil
}

// SetReceiveStatus confirms the payment under proofID and credits its value,
// net of the platform fee, to the seller allowance. Only the factory may call
// it, on a validator's behalf.
func (e *Escrow) SetReceiveStatus(ctx context.Context, caller common.Address, proofID string) error {
	_, release, err := e.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if caller != e.factory {
		return ErrNotFactory
	}
	p, ok := e.byProof[proofID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrPaymentNotFound, proofID)
	}
	if p.Received {
		return fmt.Errorf("%w: %q", ErrAlreadyPaid, proofID)
	}
	if p.Refunded {
		return fmt.Errorf("%w: %q", ErrAlreadyRefunded, proofID)
	}
	sellerPart, fee, err := revshare.Split(p.Value, e.feeBps)
	if err != nil {
		return err
	}
	asset := p.Asset.Address
	if err := e.allowance.Credit(asset, e.seller, sellerPart); err != nil {
		return err
	}
	if err := e.fees.Credit(asset, common.Address{}, fee); err != nil {
		_ = e.allowance.Debit(asset, e.seller, sellerPart)
		return err
	}
	p.Received = true

	e.log.Info("payment received", "proof", proofID, "seller_part", sellerPart.String(), "fee", fee.String())
	e.record(store.KindReceived, caller, proofID, asset, p.Value)
	return nil
}

// WithdrawFund pays the seller's whole allowance in asset and zeroes it.
func (e *Escrow) WithdrawFund(ctx context.Context, caller common.Address, asset ledger.Asset) (*big.Int, error) {
	ctx, release, err := e.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if caller != e.seller {
		return nil, ErrNotSeller
	}
	return e.payOut(ctx, e.allowance, e.seller, caller, asset, store.KindFundWithdrawn)
}

// WithdrawFees pays the accrued platform fees in asset to the admin.
func (e *Escrow) WithdrawFees(ctx context.Context, caller common.Address, asset ledger.Asset) (*big.Int, error) {
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

// WithdrawDeposit returns an unconfirmed deposit to its buyer once its
// deadline has passed.
func (e *Escrow) WithdrawDeposit(ctx context.Context, caller common.Address, index uint64) error {
	ctx, release, err := e.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	p, err := e.at(index)
	if err != nil {
		return err
	}
	if p.Received {
		return fmt.Errorf("%w: index %d", ErrAlreadyReceived, index)
	}
	if p.Refunded {
		return fmt.Errorf("%w: index %d", ErrAlreadyRefunded, index)
	}
	if !e.clock.Now().After(p.Deadline) {
		return fmt.Errorf("%w: index %d", ErrDeadlineNotPassed, index)
	}
	if caller != p.Buyer {
		return ErrNotBuyer
	}

	p.Refunded = true
	if err := e.treasury.TransferOut(ctx, p.Asset, p.Buyer, p.Value); err != nil {
		p.Refunded = false
		e.log.Warn("deposit withdrawal failed", "proof", p.ProofID, "error", err)
		return ledger.External("transfer out", err)
	}

	e.log.Info("deposit withdrawn", "proof", p.ProofID, "buyer", p.Buyer.Hex(), "value", p.Value.String())
	e.record(store.KindRefunded, caller, p.ProofID, p.Asset.Address, p.Value)
	return nil
}

// Refund returns every pending deposit the caller made in asset, regardless of
// deadline, in a single transfer.
func (e *Escrow) Refund(ctx context.Context, caller common.Address, asset ledger.Asset) (*big.Int, error) {
	ctx, release, err := e.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		refunded []*Payment
		total    = new(big.Int)
	)
	for _, p := range e.payments {
		if p.Buyer == caller && p.Asset.Address == asset.Address && p.Pending() {
			refunded = append(refunded, p)
			total.Add(total, p.Value)
		}
	}
	if len(refunded) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNothingToRefund, asset)
	}
	for _, p := range refunded {
		p.Refunded = true
	}
	if err := e.treasury.TransferOut(ctx, refunded[0].Asset, caller, total); err != nil {
		for _, p := range refunded {
			p.Refunded = false
		}
		e.log.Warn("refund failed", "buyer", caller.Hex(), "asset", asset.String(), "error", err)
		return nil, ledger.External("transfer out", err)
	}

	e.log.Info("refunded", "buyer", caller.Hex(), "asset", asset.String(), "payments", len(refunded), "total", total.String())
	for _, p := range refunded {
		e.record(store.KindRefunded, caller, p.ProofID, p.Asset.Address, p.Value)
	}
	return total, nil
}

func (e *Escrow) payOut(ctx context.Context, book *ledger.Book, account, recipient common.Address, asset ledger.Asset, kind string) (*big.Int, error) {
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
	e.record(kind, recipient, "", asset.Address, amount)
	return amount, nil
}
