// Package reservation implements the per-seller reservation ledger. Buyers
// reserve capped, priced inventory; a validator confirms each reservation,
// which issues collection units and releases the funds to the seller. A
// reservation that is never confirmed can be withdrawn by its buyer once its
// confirmation window has passed.
package reservation

import (
	"fmt"
	"log/slog"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libescrow-go/access"
	"github.com/bitfsorg/libescrow-go/clock"
	"github.com/bitfsorg/libescrow-go/collection"
	"github.com/bitfsorg/libescrow-go/ledger"
	"github.com/bitfsorg/libescrow-go/pricing"
	"github.com/bitfsorg/libescrow-go/store"
)

// Config wires an engine to its seller and collaborators.
type Config struct {
	Seller     common.Address // owning seller
	Address    common.Address // engine address; custody account and collection minter
	Factory    common.Address // only caller allowed to change settings
	Collection common.Address

	Roles    *access.Controller
	Prices   pricing.Quoter
	Treasury ledger.Treasury
	Issuer   collection.Issuer

	Clock   clock.Clock   // defaults to the system clock
	Journal store.Journal // optional
	Logger  *slog.Logger  // defaults to slog.Default()

	Settings Settings
}

// Engine is one seller's reservation ledger. Safe for concurrent use; every
// mutating call is serialised and rejects re-entry from its collaborators.
type Engine struct {
	guard ledger.Guard

	seller     common.Address
	addr       common.Address
	factory    common.Address
	collection common.Address

	roles    *access.Controller
	prices   pricing.Quoter
	treasury ledger.Treasury
	issuer   collection.Issuer
	clock    clock.Clock
	journal  store.Journal
	log      *slog.Logger

	settings  Settings
	supported map[common.Address]ledger.Asset
	whitelist map[common.Address]struct{}

	reservations []*Reservation
	confirmed    uint64
	proceeds     *ledger.Book // seller earnings per asset
	fees         *ledger.Book // platform fees per asset, keyed by the zero account
}

// New creates an engine from cfg.
func New(cfg Config) (*Engine, error) {
	switch {
	case cfg.Roles == nil:
		return nil, fmt.Errorf("%w: roles", ErrMissingDependency)
	case cfg.Prices == nil:
		return nil, fmt.Errorf("%w: prices", ErrMissingDependency)
	case cfg.Treasury == nil:
		return nil, fmt.Errorf("%w: treasury", ErrMissingDependency)
	case cfg.Issuer == nil:
		return nil, fmt.Errorf("%w: issuer", ErrMissingDependency)
	case cfg.Seller == (common.Address{}):
		return nil, fmt.Errorf("%w: zero seller", ErrInvalidSettings)
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	e := &Engine{
		seller:     cfg.Seller,
		addr:       cfg.Address,
		factory:    cfg.Factory,
		collection: cfg.Collection,
		roles:      cfg.Roles,
		prices:     cfg.Prices,
		treasury:   cfg.Treasury,
		issuer:     cfg.Issuer,
		clock:      cfg.Clock,
		journal:    cfg.Journal,
		log:        cfg.Logger.With("engine", store.EngineReservation, "seller", cfg.Seller.Hex()),
		supported:  make(map[common.Address]ledger.Asset),
		whitelist:  make(map[common.Address]struct{}),
		proceeds:   ledger.NewBook(),
		fees:       ledger.NewBook(),
	}
	e.settings = cfg.Settings
	e.settings.MintPrice = copyBig(cfg.Settings.MintPrice)
	e.settings.WhitelistPrice = copyBig(cfg.Settings.WhitelistPrice)
	e.settings.Assets = nil
	e.settings.Whitelist = nil
	for _, a := range cfg.Settings.Assets {
		e.supported[a.Address] = a
	}
	for _, w := range cfg.Settings.Whitelist {
		e.whitelist[w] = struct{}{}
	}
	return e, nil
}

// Seller returns the owning seller.
func (e *Engine) Seller() common.Address { return e.seller }

// Address returns the engine address.
func (e *Engine) Address() common.Address { return e.addr }

// Collection returns the seller collection the engine issues from.
func (e *Engine) Collection() common.Address { return e.collection }

// Reservation returns a copy of the reservation at index.
func (e *Engine) Reservation(index uint64) (Reservation, error) {
	defer e.guard.View()()
	r, err := e.at(index)
	if err != nil {
		return Reservation{}, err
	}
	return r.clone(), nil
}

// ReservationsOf returns copies of every reservation owned by buyer.
func (e *Engine) ReservationsOf(buyer common.Address) []Reservation {
	defer e.guard.View()()
	var out []Reservation
	for _, r := range e.reservations {
		if r.Owner == buyer {
			out = append(out, r.clone())
		}
	}
	return out
}

// Count returns the number of reservations ever made.
func (e *Engine) Count() uint64 {
	defer e.guard.View()()
	return uint64(len(e.reservations))
}

// Confirmed returns the running confirmed quantity.
func (e *Engine) Confirmed() uint64 {
	defer e.guard.View()()
	return e.confirmed
}

// Settings returns a snapshot of the configuration.
func (e *Engine) Settings() Settings {
	defer e.guard.View()()
	s := e.settings
	s.MintPrice = copyBig(e.settings.MintPrice)
	s.WhitelistPrice = copyBig(e.settings.WhitelistPrice)
	s.Assets = make([]ledger.Asset, 0, len(e.supported))
	for _, a := range e.supported {
		s.Assets = append(s.Assets, a)
	}
	sort.Slice(s.Assets, func(i, j int) bool { return s.Assets[i].Address.Cmp(s.Assets[j].Address) < 0 })
	s.Whitelist = make([]common.Address, 0, len(e.whitelist))
	for w := range e.whitelist {
		s.Whitelist = append(s.Whitelist, w)
	}
	sort.Slice(s.Whitelist, func(i, j int) bool { return s.Whitelist[i].Cmp(s.Whitelist[j]) < 0 })
	return s
}

// Stage returns the current sale stage.
func (e *Engine) Stage() Stage {
	defer e.guard.View()()
	return e.settings.Stage
}

// IsWhitelisted reports whether buyer is on the whitelist.
func (e *Engine) IsWhitelisted(buyer common.Address) bool {
	defer e.guard.View()()
	_, ok := e.whitelist[buyer]
	return ok
}

// IsSupported reports whether asset is accepted for payment.
func (e *Engine) IsSupported(asset common.Address) bool {
	defer e.guard.View()()
	_, ok := e.supported[asset]
	return ok
}

// Proceeds returns the seller's withdrawable balance in asset.
func (e *Engine) Proceeds(asset common.Address) *big.Int {
	defer e.guard.View()()
	return e.proceeds.Balance(asset, e.seller)
}

// Fees returns the accrued platform fees in asset.
func (e *Engine) Fees(asset common.Address) *big.Int {
	defer e.guard.View()()
	return e.fees.Balance(asset, common.Address{})
}

func (e *Engine) at(index uint64) (*Reservation, error) {
	if index >= uint64(len(e.reservations)) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(e.reservations))
	}
	return e.reservations[index], nil
}

func (e *Engine) record(kind string, actor common.Address, subject string, asset common.Address, amount *big.Int) {
	store.Record(e.journal, e.log, &store.Event{
		Engine:  store.EngineReservation,
		Kind:    kind,
		Seller:  e.seller,
		Actor:   actor,
		Subject: subject,
		Asset:   asset,
		Amount:  copyBig(amount),
		At:      e.clock.Now(),
	})
}
