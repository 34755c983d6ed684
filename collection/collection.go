// Package collection keeps per-seller mintable collections and issues units to
// buyers once their reservations are confirmed.
package collection

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Issuer issues units of a collection. Only the collection's minter may issue.
type Issuer interface {
	Issue(ctx context.Context, minter, collection, to common.Address, quantity uint64) error
}

// Info describes one collection.
type Info struct {
	Address common.Address `json:"address"`
	Seller  common.Address `json:"seller"`
	Minter  common.Address `json:"minter"`
	URI     string         `json:"uri"`
	Issued  uint64         `json:"issued"`
}

type state struct {
	info     Info
	holdings map[common.Address]uint64
}

// Registry creates at most one collection per seller.
type Registry struct {
	mu       sync.RWMutex
	deployer common.Address
	nonce    uint64
	bySeller map[common.Address]common.Address
	byAddr   map[common.Address]*state
	log      *slog.Logger
}

var _ Issuer = (*Registry)(nil)

// NewRegistry returns a registry whose collection addresses derive from deployer.
func NewRegistry(deployer common.Address) *Registry {
	return &Registry{
		deployer: deployer,
		bySeller: make(map[common.Address]common.Address),
		byAddr:   make(map[common.Address]*state),
		log:      slog.Default(),
	}
}

// SetLogger replaces the registry logger.
func (r *Registry) SetLogger(l *slog.Logger) {
	if l != nil {
		r.log = l
	}
}

// CreateCollection creates the seller's collection and authorizes minter to
// issue from it.
func (r *Registry) CreateCollection(seller, minter common.Address, uri string) (common.Address, error) {
	if seller == (common.Address{}) || minter == (common.Address{}) {
		return common.Address{}, ErrZeroAddress
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.bySeller[seller]; ok {
		return common.Address{}, fmt.Errorf("%w: seller %s owns %s", ErrAlreadyCreated, seller.Hex(), existing.Hex())
	}
	addr := crypto.CreateAddress(r.deployer, r.nonce)
	r.nonce++

	r.bySeller[seller] = addr
	r.byAddr[addr] = &state{
		info:     Info{Address: addr, Seller: seller, Minter: minter, URI: uri},
		holdings: make(map[common.Address]uint64),
	}
	r.log.Info("collection created", "seller", seller.Hex(), "collection", addr.Hex(), "minter", minter.Hex())
	return addr, nil
}

// Issue credits quantity units of collection to a buyer.
func (r *Registry) Issue(_ context.Context, minter, collection, to common.Address, quantity uint64) error {
	if quantity == 0 {
		return ErrZeroQuantity
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.byAddr[collection]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection.Hex())
	}
	if st.info.Minter != minter {
		return fmt.Errorf("%w: %s", ErrNotMinter, minter.Hex())
	}
	st.holdings[to] += quantity
	st.info.Issued += quantity
	r.log.Debug("units issued", "collection", collection.Hex(), "to", to.Hex(), "quantity", quantity)
	return nil
}

// CollectionOf returns the seller's collection address.
func (r *Registry) CollectionOf(seller common.Address) (common.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.bySeller[seller]
	return addr, ok
}

// Info returns a snapshot of a collection.
func (r *Registry) Info(collection common.Address) (Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.byAddr[collection]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection.Hex())
	}
	return st.info, nil
}

// BalanceOf returns the units of collection held by owner.
func (r *Registry) BalanceOf(collection, owner common.Address) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if st, ok := r.byAddr[collection]; ok {
		return st.holdings[owner]
	}
	return 0
}

// Sellers returns every seller with a collection, sorted.
func (r *Registry) Sellers() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.Address, 0, len(r.bySeller))
	for s := range r.bySeller {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

// MockIssuer is a test double for Issuer.
// All function fields must be set before the corresponding method is called.
type MockIssuer struct {
	IssueFn func(ctx context.Context, minter, collection, to common.Address, quantity uint64) error
}

func (m *MockIssuer) Issue(ctx context.Context, minter, collection, to common.Address, quantity uint64) error {
	return m.IssueFn(ctx, minter, collection, to, quantity)
}
