// Package registry is the administrative entry point of a deployment. It
// creates at most one reservation engine, one payment escrow and one
// collection per seller, owns the fee schedule, and forwards validator-gated
// configuration to the engines it created.
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/bitfsorg/libescrow-go/access"
	"github.com/bitfsorg/libescrow-go/clock"
	"github.com/bitfsorg/libescrow-go/collection"
	"github.com/bitfsorg/libescrow-go/ledger"
	"github.com/bitfsorg/libescrow-go/pricing"
	"github.com/bitfsorg/libescrow-go/recurring"
	"github.com/bitfsorg/libescrow-go/reservation"
	"github.com/bitfsorg/libescrow-go/revshare"
	"github.com/bitfsorg/libescrow-go/simplepay"
	"github.com/bitfsorg/libescrow-go/store"
)

// Vault hands out custody treasuries for engine accounts.
type Vault interface {
	Treasury(account common.Address) ledger.Treasury
}

// Collections creates seller collections and issues from them.
type Collections interface {
	collection.Issuer
	CreateCollection(seller, minter common.Address, uri string) (common.Address, error)
}

// Config wires the registry to its collaborators.
type Config struct {
	Address     common.Address // registry address; engine addresses derive from it
	Roles       *access.Controller
	Prices      pricing.Quoter
	Vault       Vault
	Collections Collections

	Clock   clock.Clock
	Journal store.Journal
	Logger  *slog.Logger

	Fees revshare.Schedule

	// SubscriptionAssets seeds the assets the shared recurring engine accepts.
	SubscriptionAssets []ledger.Asset
}

// Registry creates and routes to the per-seller engines. Safe for concurrent use.
type Registry struct {
	mu sync.RWMutex

	addr        common.Address
	roles       *access.Controller
	prices      pricing.Quoter
	vault       Vault
	collections Collections
	clock       clock.Clock
	journal     store.Journal
	log         *slog.Logger

	nonce        uint64
	fees         revshare.Schedule
	reservations map[common.Address]*reservation.Engine
	escrows      map[common.Address]*simplepay.Escrow
	recurring    *recurring.Engine
}

// New creates a registry together with the shared recurring engine.
func New(cfg Config) (*Registry, error) {
	switch {
	case cfg.Roles == nil:
		return nil, fmt.Errorf("%w: roles", ErrMissingDependency)
	case cfg.Prices == nil:
		return nil, fmt.Errorf("%w: prices", ErrMissingDependency)
	case cfg.Vault == nil:
		return nil, fmt.Errorf("%w: vault", ErrMissingDependency)
	case cfg.Collections == nil:
		return nil, fmt.Errorf("%w: collections", ErrMissingDependency)
	}
	if err := cfg.Fees.Validate(); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := &Registry{
		addr:         cfg.Address,
		roles:        cfg.Roles,
		prices:       cfg.Prices,
		vault:        cfg.Vault,
		collections:  cfg.Collections,
		clock:        cfg.Clock,
		journal:      cfg.Journal,
		log:          cfg.Logger,
		fees:         cfg.Fees,
		reservations: make(map[common.Address]*reservation.Engine),
		escrows:      make(map[common.Address]*simplepay.Escrow),
	}

	subsAddr := r.nextAddress()
	subs, err := recurring.New(recurring.Config{
		Address:  subsAddr,
		Factory:  r.addr,
		Roles:    r.roles,
		Prices:   r.prices,
		Treasury: r.vault.Treasury(subsAddr),
		Clock:    r.clock,
		Journal:  r.journal,
		Logger:   r.log,
		FeeBps:   r.fees.RecurringBps,
		Assets:   cfg.SubscriptionAssets,
	})
	if err != nil {
		return nil, err
	}
	r.recurring = subs
	return r, nil
}

// nextAddress derives the next engine address. Callers hold mu or run before
// the registry is shared.
func (r *Registry) nextAddress() common.Address {
	addr := crypto.CreateAddress(r.addr, r.nonce)
	r.nonce++
	return addr
}

// Address returns the registry address engines accept as their factory.
func (r *Registry) Address() common.Address { return r.addr }

// Roles returns the access controller.
func (r *Registry) Roles() *access.Controller { return r.roles }

// Recurring returns the shared recurring engine.
func (r *Registry) Recurring() *recurring.Engine { return r.recurring }

// Fees returns the current fee schedule.
func (r *Registry) Fees() revshare.Schedule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fees
}

// ReservationEngine returns the seller's reservation engine.
func (r *Registry) ReservationEngine(seller common.Address) (*reservation.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.reservations[seller]
	if !ok {
		return nil, fmt.Errorf("%w: reservation engine for %s", ErrEngineNotFound, seller.Hex())
	}
	return e, nil
}

// PaymentEscrow returns the seller's payment escrow.
func (r *Registry) PaymentEscrow(seller common.Address) (*simplepay.Escrow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.escrows[seller]
	if !ok {
		return nil, fmt.Errorf("%w: payment escrow for %s", ErrEngineNotFound, seller.Hex())
	}
	return e, nil
}

// Sellers returns every seller with at least one engine, sorted.
func (r *Registry) Sellers() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[common.Address]struct{}, len(r.reservations)+len(r.escrows))
	for s := range r.reservations {
		seen[s] = struct{}{}
	}
	for s := range r.escrows {
		seen[s] = struct{}{}
	}
	out := make([]common.Address, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

func (r *Registry) record(kind string, actor, seller common.Address, subject string) {
	store.Record(r.journal, r.log, &store.Event{
		Engine:  store.EngineRegistry,
		Kind:    kind,
		Seller:  seller,
		Actor:   actor,
		Subject: subject,
		At:      r.clock.Now(),
	})
}
