// Package simplepay implements the per-seller one-time payment escrow. Each
// deposit is keyed by a caller-supplied proof id that can be used once. A
// validator confirmation, routed through the registry, moves a deposit into
// the seller's withdrawable allowance; until then the buyer can cancel it, and
// after its deadline the buyer can withdraw it.
package simplepay

import (
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libescrow-go/access"
	"github.com/bitfsorg/libescrow-go/clock"
	"github.com/bitfsorg/libescrow-go/ledger"
	"github.com/bitfsorg/libescrow-go/pricing"
	"github.com/bitfsorg/libescrow-go/store"
)

// Config wires an escrow to its seller and collaborators.
type Config struct {
	Seller  common.Address
	Address common.Address // custody account
	Factory common.Address

	Roles    *access.Controller
	Prices   pricing.Quoter
	Treasury ledger.Treasury

	Clock   clock.Clock
	Journal store.Journal
	Logger  *slog.Logger

	Settings Settings
}

// Escrow is one seller's payment escrow. Safe for concurrent use.
type Escrow struct {
	guard ledger.Guard

	seller  common.Address
	addr    common.Address
	factory common.Address

	roles    *access.Controller
	prices   pricing.Quoter
	treasury ledger.Treasury
	clock    clock.Clock
	journal  store.Journal
	log      *slog.Logger

	maxUSD    *big.Int
	window    time.Duration
	feeBps    uint16
	supported map[common.Address]ledger.Asset

	payments  []*Payment
	byProof   map[string]*Payment
	allowance *ledger.Book // confirmed seller balance per asset
	fees      *ledger.Book // platform fees per asset, zero account
}

// New creates an escrow from cfg.
func New(cfg Config) (*Escrow, error) {
	switch {
	case cfg.Roles == nil:
		return nil, fmt.Errorf("%w: roles", ErrMissingDependency)
	case cfg.Prices == nil:
		return nil, fmt.Errorf("%w: prices", ErrMissingDependency)
	case cfg.Treasury == nil:
		return nil, fmt.Errorf("%w: treasury", ErrMissingDependency)
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

	e := &Escrow{
		seller:    cfg.Seller,
		addr:      cfg.Address,
		factory:   cfg.Factory,
		roles:     cfg.Roles,
		prices:    cfg.Prices,
		treasury:  cfg.Treasury,
		clock:     cfg.Clock,
		journal:   cfg.Journal,
		log:       cfg.Logger.With("engine", store.EngineSimplePay, "seller", cfg.Seller.Hex()),
		window:    cfg.Settings.ConfirmationWindow,
		feeBps:    cfg.Settings.FeeBps,
		supported: make(map[common.Address]ledger.Asset),
		byProof:   make(map[string]*Payment),
		allowance: ledger.NewBook(),
		fees:      ledger.NewBook(),
	}
	if cfg.Settings.MaxUSD != nil {
		e.maxUSD = new(big.Int).Set(cfg.Settings.MaxUSD)
	}
	for _, a := range cfg.Settings.Assets {
		e.supported[a.Address] = a
	}
	return e, nil
}

// Seller returns the owning seller.
func (e *Escrow) Seller() common.Address { return e.seller }

// Address returns the escrow custody address.
func (e *Escrow) Address() common.Address { return e.addr }

// Payment returns the payment recorded under proofID.
func (e *Escrow) Payment(proofID string) (Payment, error) {
	defer e.guard.View()()
	p, ok := e.byProof[proofID]
	if !ok {
		return Payment{}, fmt.Errorf("%w: %q", ErrPaymentNotFound, proofID)
	}
	return p.clone(), nil
}

// PaymentAt returns the payment at index.
func (e *Escrow) PaymentAt(index uint64) (Payment, error) {
	defer e.guard.View()()
	p, err := e.at(index)
	if err != nil {
		return Payment{}, err
	}
	return p.clone(), nil
}

// PaymentsOf returns every payment made by buyer.
func (e *Escrow) PaymentsOf(buyer common.Address) []Payment {
	defer e.guard.View()()
	var out []Payment
	for _, p := range e.payments {
		if p.Buyer == buyer {
			out = append(out, p.clone())
		}
	}
	return out
}

// Count returns the number of deposits ever made.
func (e *Escrow) Count() uint64 {
	defer e.guard.View()()
	return uint64(len(e.payments))
}

// Allowance returns the confirmed, not yet withdrawn seller balance in asset.
func (e *Escrow) Allowance(asset common.Address) *big.Int {
	defer e.guard.View()()
	return e.allowance.Balance(asset, e.seller)
}

// Fees returns the accrued platform fees in asset.
func (e *Escrow) Fees(asset common.Address) *big.Int {
	defer e.guard.View()()
	return e.fees.Balance(asset, common.Address{})
}

// IsSupported reports whether asset is accepted.
func (e *Escrow) IsSupported(asset common.Address) bool {
	defer e.guard.View()()
	_, ok := e.supported[asset]
	return ok
}

// Settings returns a snapshot of the configuration.
func (e *Escrow) Settings() Settings {
	defer e.guard.View()()
	s := Settings{ConfirmationWindow: e.window, FeeBps: e.feeBps}
	if e.maxUSD != nil {
		s.MaxUSD = new(big.Int).Set(e.maxUSD)
	}
	for _, a := range e.supported {
		s.Assets = append(s.Assets, a)
	}
	sort.Slice(s.Assets, func(i, j int) bool { return s.Assets[i].Address.Cmp(s.Assets[j].Address) < 0 })
	return s
}

func (e *Escrow) at(index uint64) (*Payment, error) {
	if index >= uint64(len(e.payments)) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(e.payments))
	}
	return e.payments[index], nil
}

func (e *Escrow) record(kind string, actor common.Address, subject string, asset common.Address, amount *big.Int) {
	var amt *big.Int
	if amount != nil {
		amt = new(big.Int).Set(amount)
	}
	store.Record(e.journal, e.log, &store.Event{
		Engine:  store.EngineSimplePay,
		Kind:    kind,
		Seller:  e.seller,
		Actor:   actor,
		Subject: subject,
		Asset:   asset,
		Amount:  amt,
		At:      e.clock.Now(),
	})
}
