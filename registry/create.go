package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libescrow-go/reservation"
	"github.com/bitfsorg/libescrow-go/simplepay"
	"github.com/bitfsorg/libescrow-go/store"
)

// ReservationParams configure a new reservation engine. The fee rate comes
// from the registry's fee schedule.
type ReservationParams struct {
	Settings      reservation.Settings
	CollectionURI string
}

// CreateReservationEngine creates the seller's reservation engine and its
// collection. Owner only, once per seller.
func (r *Registry) CreateReservationEngine(caller, seller common.Address, p ReservationParams) (*reservation.Engine, error) {
	if err := r.roles.RequireOwner(caller); err != nil {
		return nil, err
	}
	if err := r.roles.RequireNotPaused(); err != nil {
		return nil, err
	}
	if seller == (common.Address{}) {
		return nil, ErrZeroSeller
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reservations[seller]; ok {
		return nil, fmt.Errorf("%w: reservation engine for %s", ErrAlreadyCreated, seller.Hex())
	}
	settings := p.Settings
	settings.FeeBps = r.fees.MintBps
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	addr := r.nextAddress()
	coll, err := r.collections.CreateCollection(seller, addr, p.CollectionURI)
	if err != nil {
		return nil, fmt.Errorf("registry: create collection: %w", err)
	}
	e, err := reservation.New(reservation.Config{
		Seller:     seller,
		Address:    addr,
		Factory:    r.addr,
		Collection: coll,
		Roles:      r.roles,
		Prices:     r.prices,
		Treasury:   r.vault.Treasury(addr),
		Issuer:     r.collections,
		Clock:      r.clock,
		Journal:    r.journal,
		Logger:     r.log,
		Settings:   settings,
	})
	if err != nil {
		return nil, err
	}
	r.reservations[seller] = e

	r.log.Info("reservation engine created", "seller", seller.Hex(), "engine", addr.Hex(), "collection", coll.Hex())
	r.record(store.KindEngineCreated, caller, seller, store.EngineReservation)
	return e, nil
}

// CreatePaymentEscrow creates the seller's one-time payment escrow. Owner
// only, once per seller.
func (r *Registry) CreatePaymentEscrow(caller, seller common.Address, settings simplepay.Settings) (*simplepay.Escrow, error) {
	if err := r.roles.RequireOwner(caller); err != nil {
		return nil, err
	}
	if err := r.roles.RequireNotPaused(); err != nil {
		return nil, err
	}
	if seller == (common.Address{}) {
		return nil, ErrZeroSeller
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.escrows[seller]; ok {
		return nil, fmt.Errorf("%w: payment escrow for %s", ErrAlreadyCreated, seller.Hex())
	}
	settings.FeeBps = r.fees.PayBps

	addr := r.nextAddress()
	e, err := simplepay.New(simplepay.Config{
		Seller:   seller,
		Address:  addr,
		Factory:  r.addr,
		Roles:    r.roles,
		Prices:   r.prices,
		Treasury: r.vault.Treasury(addr),
		Clock:    r.clock,
		Journal:  r.journal,
		Logger:   r.log,
		Settings: settings,
	})
	if err != nil {
		return nil, err
	}
	r.escrows[seller] = e

	r.log.Info("payment escrow created", "seller", seller.Hex(), "escrow", addr.Hex())
	r.record(store.KindEngineCreated, caller, seller, store.EngineSimplePay)
	return e, nil
}
