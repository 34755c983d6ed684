// Package recurring implements the subscription ledger shared by all sellers.
// Sellers publish terms (USD price and period) under a subscription id; buyers
// subscribe with a fungible asset they have approved, and each renewal pulls
// the USD price again once the period has elapsed.
package recurring

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libescrow-go/access"
	"github.com/bitfsorg/libescrow-go/clock"
	"github.com/bitfsorg/libescrow-go/ledger"
	"github.com/bitfsorg/libescrow-go/pricing"
	"github.com/bitfsorg/libescrow-go/revshare"
	"github.com/bitfsorg/libescrow-go/store"
)

// Config wires the engine to its collaborators.
type Config struct {
	Address common.Address // custody account
	Factory common.Address

	Roles    *access.Controller
	Prices   pricing.Quoter
	Treasury ledger.Treasury

	Clock   clock.Clock
	Journal store.Journal
	Logger  *slog.Logger

	FeeBps uint16
	Assets []ledger.Asset // accepted payment assets
}

// Engine is the recurring payment ledger. Safe for concurrent use.
type Engine struct {
	guard ledger.Guard

	addr     common.Address
	factory  common.Address
	roles    *access.Controller
	prices   pricing.Quoter
	treasury ledger.Treasury
	clock    clock.Clock
	journal  store.Journal
	log      *slog.Logger

	feeBps    uint16
	supported map[common.Address]ledger.Asset
	terms     map[termsKey]*Terms
	subs      map[subKey]*Subscription
	balances  *ledger.Book // seller earnings per asset
	fees      *ledger.Book // platform fees per asset, zero account
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
	}
	if err := revshare.ValidateBps(cfg.FeeBps); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	e := &Engine{
		addr:     cfg.Address,
		factory:  cfg.Factory,
		roles:    cfg.Roles,
		prices:   cfg.Prices,
		treasury: cfg.Treasury,
		clock:    cfg.Clock,
		journal:  cfg.Journal,
		log:      cfg.Logger.With("engine", store.EngineRecurring),
		feeBps:   cfg.FeeBps,
		terms:    make(map[termsKey]*Terms),
		subs:     make(map[subKey]*Subscription),
		balances: ledger.NewBook(),
		fees:     ledger.NewBook(),

		supported: make(map[common.Address]ledger.Asset),
	}
	for _, a := range cfg.Assets {
		e.supported[a.Address] = a
	}
	return e, nil
}

// Address returns the engine custody address.
func (e *Engine) Address() common.Address { return e.addr }

// Terms returns the terms published by seller under id.
func (e *Engine) Terms(seller common.Address, id string) (Terms, error) {
	defer e.guard.View()()
	t, ok := e.terms[termsKey{seller, id}]
	if !ok {
		return Terms{}, fmt.Errorf("%w: %s/%s", ErrNoSetup, seller.Hex(), id)
	}
	return t.clone(), nil
}

// Subscription returns the record for buyer under proofID.
func (e *Engine) Subscription(buyer common.Address, proofID string) (Subscription, error) {
	defer e.guard.View()()
	s, ok := e.subs[subKey{buyer, proofID}]
	if !ok {
		return Subscription{}, fmt.Errorf("%w: %s/%s", ErrSubscriptionNotFound, buyer.Hex(), proofID)
	}
	return s.clone(), nil
}

// Subscribers returns every record under the seller's subscription id, sorted
// by buyer then proof id.
func (e *Engine) Subscribers(seller common.Address, id string) []Subscription {
	defer e.guard.View()()
	var out []Subscription
	for _, s := range e.subs {
		if s.Seller == seller && s.SubscriptionID == id {
			out = append(out, s.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Buyer.Cmp(out[j].Buyer); c != 0 {
			return c < 0
		}
		return out[i].ProofID < out[j].ProofID
	})
	return out
}

// Balance returns the seller's withdrawable earnings in asset.
func (e *Engine) Balance(seller, asset common.Address) *big.Int {
	defer e.guard.View()()
	return e.balances.Balance(asset, seller)
}

// Fees returns the accrued platform fees in asset.
func (e *Engine) Fees(asset common.Address) *big.Int {
	defer e.guard.View()()
	return e.fees.Balance(asset, common.Address{})
}

// FeeBps returns the platform fee rate.
func (e *Engine) FeeBps() uint16 {
	defer e.guard.View()()
	return e.feeBps
}

// SetFeeBps sets the platform fee taken from every pull. Factory only.
func (e *Engine) SetFeeBps(caller common.Address, bps uint16) error {
	_, release, err := e.guard.Enter(context.Background())
	if err != nil {
		return err
	}
	defer release()

	if caller != e.factory {
		return ErrNotFactory
	}
	if err := revshare.ValidateBps(bps); err != nil {
		return err
	}
	e.feeBps = bps
	e.log.Info("fee changed", "bps", bps)
	e.record(store.KindConfigChanged, caller, common.Address{}, "fee_bps", common.Address{}, nil)
	return nil
}

// Assets returns the accepted payment assets sorted by address.
func (e *Engine) Assets() []ledger.Asset {
	defer e.guard.View()()
	out := make([]ledger.Asset, 0, len(e.supported))
	for _, a := range e.supported {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address.Cmp(out[j].Address) < 0 })
	return out
}

// IsSupported reports whether asset is accepted for new subscriptions.
func (e *Engine) IsSupported(asset common.Address) bool {
	defer e.guard.View()()
	_, ok := e.supported[asset]
	return ok
}

// SetAssetSupport adds or removes asset from the accepted payment assets.
// Existing subscriptions keep renewing in the asset they were opened with.
// Factory only.
func (e *Engine) SetAssetSupport(caller common.Address, asset ledger.Asset, supported bool) error {
	_, release, err := e.guard.Enter(context.Background())
	if err != nil {
		return err
	}
	defer release()

	if caller != e.factory {
		return ErrNotFactory
	}
	if supported {
		if asset.IsNative() {
			return ErrNativeNotSupported
		}
		e.supported[asset.Address] = asset
	} else {
		delete(e.supported, asset.Address)
	}
	e.log.Info("asset support changed", "asset", asset.String(), "supported", supported)
	e.record(store.KindConfigChanged, caller, common.Address{}, "assets", asset.Address, nil)
	return nil
}

func checkID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyID
	}
	return nil
}

func (e *Engine) record(kind string, actor, seller common.Address, subject string, asset common.Address, amount *big.Int) {
	var amt *big.Int
	if amount != nil {
		amt = new(big.Int).Set(amount)
	}
	store.Record(e.journal, e.log, &store.Event{
		Engine:  store.EngineRecurring,
		Kind:    kind,
		Seller:  seller,
		Actor:   actor,
		Subject: subject,
		Asset:   asset,
		Amount:  amt,
		At:      e.clock.Now(),
	})
}
