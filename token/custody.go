package token

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libescrow-go/ledger"
)

// Custody is a ledger.Treasury that holds funds in one bank account on behalf
// of an engine.
type Custody struct {
	bank    *Bank
	account common.Address
}

var _ ledger.Treasury = (*Custody)(nil)

// Custody returns the treasury handle for account.
func (b *Bank) Custody(account common.Address) *Custody {
	return &Custody{bank: b, account: account}
}

// Treasury returns the custody handle for account as a ledger.Treasury.
func (b *Bank) Treasury(account common.Address) ledger.Treasury {
	return b.Custody(account)
}

// Account returns the custody account address.
func (c *Custody) Account() common.Address { return c.account }

// TransferIn pulls amount from a payer into custody. Native value moves
// directly; fungible assets are pulled against the payer's approval of the
// custody account.
func (c *Custody) TransferIn(ctx context.Context, asset ledger.Asset, from common.Address, amount *big.Int) error {
	if asset.IsNative() {
		return c.bank.Transfer(ctx, asset, from, c.account, amount)
	}
	return c.bank.TransferFrom(ctx, asset, c.account, from, c.account, amount)
}

// TransferOut pays amount from custody to a recipient.
func (c *Custody) TransferOut(ctx context.Context, asset ledger.Asset, to common.Address, amount *big.Int) error {
	return c.bank.Transfer(ctx, asset, c.account, to, amount)
}

// MockTreasury is a test double for ledger.Treasury.
// All function fields must be set before the corresponding method is called.
type MockTreasury struct {
	TransferInFn  func(ctx context.Context, asset ledger.Asset, from common.Address, amount *big.Int) error
	TransferOutFn func(ctx context.Context, asset ledger.Asset, to common.Address, amount *big.Int) error
}

func (m *MockTreasury) TransferIn(ctx context.Context, asset ledger.Asset, from common.Address, amount *big.Int) error {
	return m.TransferInFn(ctx, asset, from, amount)
}
func (m *MockTreasury) TransferOut(ctx context.Context, asset ledger.Asset, to common.Address, amount *big.Int) error {
	return m.TransferOutFn(ctx, asset, to, amount)
}
