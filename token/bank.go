// Package token implements the asset transfer primitive consumed by the
// settlement engines: native and fungible balances, spender approvals and
// per-account custody handles.
package token

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libescrow-go/ledger"
)

// ReceiveHook runs after funds land in a hooked account. Returning an error
// reverts the transfer. The hook receives the caller's context, so a hook that
// calls back into an engine is seen as re-entrant. A hook must pass that
// context, or one derived from it, to any engine call: an engine entered with
// a fresh context from inside a hook deadlocks instead of failing.
type ReceiveHook func(ctx context.Context, asset ledger.Asset, from common.Address, amount *big.Int) error

type allowanceKey struct {
	asset   common.Address
	owner   common.Address
	spender common.Address
}

// Bank holds balances for every asset, keyed by the asset address. The native
// asset lives under the zero address.
type Bank struct {
	mu         sync.Mutex
	balances   map[common.Address]map[common.Address]*big.Int
	allowances map[allowanceKey]*big.Int
	hooks      map[common.Address]ReceiveHook
	log        *slog.Logger
}

// NewBank returns an empty bank.
func NewBank() *Bank {
	return &Bank{
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
		hooks:      make(map[common.Address]ReceiveHook),
		log:        slog.Default(),
	}
}

// SetLogger replaces the bank logger.
func (b *Bank) SetLogger(l *slog.Logger) {
	if l != nil {
		b.log = l
	}
}

// SetReceiveHook installs (or clears, with nil) the hook for account.
func (b *Bank) SetReceiveHook(account common.Address, hook ReceiveHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if hook == nil {
		delete(b.hooks, account)
		return
	}
	b.hooks[account] = hook
}

// Mint credits amount of asset to account out of thin air.
func (b *Bank) Mint(asset ledger.Asset, to common.Address, amount *big.Int) error {
	if err := ledger.CheckAmount(amount); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.add(asset.Address, to, amount)
	return nil
}

// BalanceOf returns a copy of the balance of account in asset.
func (b *Bank) BalanceOf(asset ledger.Asset, account common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance(asset.Address, account)
}

// Approve sets the amount spender may pull from owner in a fungible asset.
func (b *Bank) Approve(asset ledger.Asset, owner, spender common.Address, amount *big.Int) error {
	if asset.IsNative() {
		return ErrNativeApproval
	}
	if err := ledger.CheckAmount(amount); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allowances[allowanceKey{asset.Address, owner, spender}] = new(big.Int).Set(amount)
	return nil
}

// Allowance returns what spender may still pull from owner.
func (b *Bank) Allowance(asset ledger.Asset, owner, spender common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.allowances[allowanceKey{asset.Address, owner, spender}]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// Transfer moves amount of asset from one account to another.
func (b *Bank) Transfer(ctx context.Context, asset ledger.Asset, from, to common.Address, amount *big.Int) error {
	if err := ledger.CheckAmount(amount); err != nil {
		return err
	}
	b.mu.Lock()
	if err := b.move(asset.Address, from, to, amount); err != nil {
		b.mu.Unlock()
		return err
	}
	hook := b.hooks[to]
	b.mu.Unlock()

	return b.deliver(ctx, hook, asset, from, to, amount, func() {
		_ = b.move(asset.Address, to, from, amount)
	})
}

// TransferFrom moves amount of a fungible asset from owner to to, spending the
// allowance owner granted spender.
func (b *Bank) TransferFrom(ctx context.Context, asset ledger.Asset, spender, owner, to common.Address, amount *big.Int) error {
	if asset.IsNative() {
		return ErrNativeApproval
	}
	if err := ledger.CheckAmount(amount); err != nil {
		return err
	}
	key := allowanceKey{asset.Address, owner, spender}

	b.mu.Lock()
	allowed := b.allowances[key]
	if allowed == nil || allowed.Cmp(amount) < 0 {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s approved %v to %s, need %s",
			ErrInsufficientAllowance, owner.Hex(), allowed, spender.Hex(), amount)
	}
	if err := b.move(asset.Address, owner, to, amount); err != nil {
		b.mu.Unlock()
		return err
	}
	allowed.Sub(allowed, amount)
	hook := b.hooks[to]
	b.mu.Unlock()

	return b.deliver(ctx, hook, asset, owner, to, amount, func() {
		_ = b.move(asset.Address, to, owner, amount)
		allowed.Add(allowed, amount)
	})
}

// deliver runs the recipient hook outside the bank lock and undoes the
// transfer if the hook refuses it.
func (b *Bank) deliver(ctx context.Context, hook ReceiveHook, asset ledger.Asset, from, to common.Address, amount *big.Int, undo func()) error {
	if hook == nil {
		return nil
	}
	if err := hook(ctx, asset, from, amount); err != nil {
		b.mu.Lock()
		undo()
		b.mu.Unlock()
		b.log.Warn("transfer rejected", "asset", asset.Symbol, "from", from.Hex(), "to", to.Hex(), "amount", amount.String(), "error", err)
		return fmt.Errorf("%w: %s: %w", ErrTransferRejected, to.Hex(), err)
	}
	return nil
}

func (b *Bank) move(asset, from, to common.Address, amount *big.Int) error {
	have := b.balance(asset, from)
	if have.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, need %s", ErrInsufficientFunds, from.Hex(), have, amount)
	}
	if amount.Sign() == 0 {
		return nil
	}
	b.balances[asset][from] = have.Sub(have, amount)
	b.add(asset, to, amount)
	return nil
}

func (b *Bank) balance(asset, account common.Address) *big.Int {
	if v, ok := b.balances[asset][account]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (b *Bank) add(asset, account common.Address, amount *big.Int) {
	accounts := b.balances[asset]
	if accounts == nil {
		accounts = make(map[common.Address]*big.Int)
		b.balances[asset] = accounts
	}
	cur, ok := accounts[account]
	if !ok {
		cur = new(big.Int)
		accounts[account] = cur
	}
	cur.Add(cur, amount)
}
