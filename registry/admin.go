package registry

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libescrow-go/ledger"
	"github.com/bitfsorg/libescrow-go/reservation"
	"github.com/bitfsorg/libescrow-go/revshare"
	"github.com/bitfsorg/libescrow-go/simplepay"
	"github.com/bitfsorg/libescrow-go/store"
)

// adminGate admits validators and the owner while the system is not paused.
func (r *Registry) adminGate(caller common.Address) error {
	if err := r.roles.RequireValidatorOrOwner(caller); err != nil {
		return err
	}
	return r.roles.RequireNotPaused()
}

func (r *Registry) withReservation(caller, seller common.Address, fn func(e *reservation.Engine) error) error {
	if err := r.adminGate(caller); err != nil {
		return err
	}
	e, err := r.ReservationEngine(seller)
	if err != nil {
		return err
	}
	return fn(e)
}

func (r *Registry) withEscrow(caller, seller common.Address, fn func(e *simplepay.Escrow) error) error {
	if err := r.adminGate(caller); err != nil {
		return err
	}
	e, err := r.PaymentEscrow(seller)
	if err != nil {
		return err
	}
	return fn(e)
}

// ChangeStage moves the seller's sale to stage.
func (r *Registry) ChangeStage(caller, seller common.Address, stage reservation.Stage) error {
	return r.withReservation(caller, seller, func(e *reservation.Engine) error {
		return e.SetStage(r.addr, stage)
	})
}

// ChangeMintPrice sets the seller's public USD price per unit.
func (r *Registry) ChangeMintPrice(caller, seller common.Address, usd *big.Int) error {
	return r.withReservation(caller, seller, func(e *reservation.Engine) error {
		return e.SetMintPrice(r.addr, usd)
	})
}

// ChangeWhitelistPrice sets the seller's whitelist USD price per unit.
func (r *Registry) ChangeWhitelistPrice(caller, seller common.Address, usd *big.Int) error {
	return r.withReservation(caller, seller, func(e *reservation.Engine) error {
		return e.SetWhitelistPrice(r.addr, usd)
	})
}

// ChangeQuantityLimits sets the seller's per-call quantity bounds.
func (r *Registry) ChangeQuantityLimits(caller, seller common.Address, minQty, maxQty uint64) error {
	return r.withReservation(caller, seller, func(e *reservation.Engine) error {
		return e.SetQuantityLimits(r.addr, minQty, maxQty)
	})
}

// ChangeSupplyCap sets the seller's total confirmable quantity.
func (r *Registry) ChangeSupplyCap(caller, seller common.Address, supplyCap uint64) error {
	return r.withReservation(caller, seller, func(e *reservation.Engine) error {
		return e.SetSupplyCap(r.addr, supplyCap)
	})
}

// ChangeSaleDeadline sets the seller's sale deadline.
func (r *Registry) ChangeSaleDeadline(caller, seller common.Address, deadline time.Time) error {
	return r.withReservation(caller, seller, func(e *reservation.Engine) error {
		return e.SetSaleDeadline(r.addr, deadline)
	})
}

// ChangeConfirmationWindow sets the refund delay for the seller's new reservations.
func (r *Registry) ChangeConfirmationWindow(caller, seller common.Address, window time.Duration) error {
	return r.withReservation(caller, seller, func(e *reservation.Engine) error {
		return e.SetConfirmationWindow(r.addr, window)
	})
}

// SetReservationAsset adds or removes a payment asset on the seller's engine.
func (r *Registry) SetReservationAsset(caller, seller common.Address, asset ledger.Asset, supported bool) error {
	return r.withReservation(caller, seller, func(e *reservation.Engine) error {
		return e.SetAssetSupport(r.addr, asset, supported)
	})
}

// AddWhitelist adds buyers to the seller's whitelist.
func (r *Registry) AddWhitelist(caller, seller common.Address, buyers ...common.Address) error {
	return r.withReservation(caller, seller, func(e *reservation.Engine) error {
		return e.AddWhitelist(r.addr, buyers...)
	})
}

// RemoveWhitelist removes buyers from the seller's whitelist.
func (r *Registry) RemoveWhitelist(caller, seller common.Address, buyers ...common.Address) error {
	return r.withReservation(caller, seller, func(e *reservation.Engine) error {
		return e.RemoveWhitelist(r.addr, buyers...)
	})
}

// SetPaymentAsset adds or removes a payment asset on the seller's escrow.
func (r *Registry) SetPaymentAsset(caller, seller common.Address, asset ledger.Asset, supported bool) error {
	return r.withEscrow(caller, seller, func(e *simplepay.Escrow) error {
		return e.SetAssetSupport(r.addr, asset, supported)
	})
}

// SetPaymentMaxUSD sets the seller's largest accepted deposit.
func (r *Registry) SetPaymentMaxUSD(caller, seller common.Address, usd *big.Int) error {
	return r.withEscrow(caller, seller, func(e *simplepay.Escrow) error {
		return e.SetMaxUSD(r.addr, usd)
	})
}

// SetPaymentConfirmationWindow sets the withdrawal delay for the seller's new deposits.
func (r *Registry) SetPaymentConfirmationWindow(caller, seller common.Address, window time.Duration) error {
	return r.withEscrow(caller, seller, func(e *simplepay.Escrow) error {
		return e.SetConfirmationWindow(r.addr, window)
	})
}

// SetFees replaces the fee schedule and applies it to every engine. Rates
// apply to confirmations and pulls made after the change. Owner only.
func (r *Registry) SetFees(caller common.Address, fees revshare.Schedule) error {
	if err := r.roles.RequireOwner(caller); err != nil {
		return err
	}
	if err := r.roles.RequireNotPaused(); err != nil {
		return err
	}
	if err := fees.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.reservations {
		if err := e.SetFeeBps(r.addr, fees.MintBps); err != nil {
			return err
		}
	}
	for _, e := range r.escrows {
		if err := e.SetFeeBps(r.addr, fees.PayBps); err != nil {
			return err
		}
	}
	if err := r.recurring.SetFeeBps(r.addr, fees.RecurringBps); err != nil {
		return err
	}
	r.fees = fees

	r.log.Info("fee schedule changed", "mint_bps", fees.MintBps, "pay_bps", fees.PayBps, "recurring_bps", fees.RecurringBps)
	r.record(store.KindConfigChanged, caller, common.Address{}, "fees")
	return nil
}

// SetupSubscription publishes subscription terms on a seller's behalf.
func (r *Registry) SetupSubscription(caller, seller common.Address, id string, usd *big.Int, period time.Duration) error {
	if err := r.roles.RequireNotPaused(); err != nil {
		return err
	}
	return r.recurring.SetupByValidator(caller, seller, id, usd, period)
}

// SetSubscriptionAsset adds or removes a payment asset on the shared
// recurring engine.
func (r *Registry) SetSubscriptionAsset(caller common.Address, asset ledger.Asset, supported bool) error {
	if err := r.adminGate(caller); err != nil {
		return err
	}
	return r.recurring.SetAssetSupport(r.addr, asset, supported)
}

// ConfirmPayment marks the seller's payment under proofID as received. Only a
// validator may confirm. Confirmations stay available while paused.
func (r *Registry) ConfirmPayment(ctx context.Context, caller, seller common.Address, proofID string) error {
	if err := r.roles.RequireValidator(caller); err != nil {
		return err
	}
	e, err := r.PaymentEscrow(seller)
	if err != nil {
		return err
	}
	return e.SetReceiveStatus(ctx, r.addr, proofID)
}

// ConfirmReservation confirms the seller's reservation at index.
func (r *Registry) ConfirmReservation(ctx context.Context, caller, seller common.Address, index uint64) error {
	e, err := r.ReservationEngine(seller)
	if err != nil {
		return err
	}
	return e.Confirm(ctx, caller, index)
}

// Pause freezes administrative mutation. Admin only.
func (r *Registry) Pause(caller common.Address) error { return r.roles.Pause(caller) }

// Unpause lifts Pause. Admin only.
func (r *Registry) Unpause(caller common.Address) error { return r.roles.Unpause(caller) }
