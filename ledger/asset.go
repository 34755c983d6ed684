// Package ledger holds the primitives shared by the settlement engines: asset
// identity, attached payments, per-account balance books, the custody transfer
// interface and the re-entrancy guard.
package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// USDDecimals is the fixed-point precision of every reference-currency amount.
const USDDecimals = 8

// Asset identifies a payment asset. The native asset uses the zero address.
type Asset struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// NativeAsset returns the descriptor of the chain's native value type.
func NativeAsset(symbol string, decimals uint8) Asset {
	return Asset{Symbol: symbol, Decimals: decimals}
}

// IsNative reports whether a is the native value type.
func (a Asset) IsNative() bool {
	return a.Address == (common.Address{})
}

// String returns the asset symbol, or its address when no symbol is set.
func (a Asset) String() string {
	if a.Symbol != "" {
		return a.Symbol
	}
	return a.Address.Hex()
}

// Payment is the native value attached to a call.
type Payment struct {
	Value *big.Int
}

// Attached returns the attached value, treating a nil value as zero.
func (p Payment) Attached() *big.Int {
	if p.Value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(p.Value)
}

// NoPayment is a call with no native value attached.
var NoPayment = Payment{}

// Pay attaches v units of the native asset to a call.
func Pay(v *big.Int) Payment {
	return Payment{Value: v}
}

// USD returns whole dollars as an 8-decimal fixed-point amount.
func USD(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), big.NewInt(100_000_000))
}

// Units returns n * 10^decimals.
func Units(n int64, decimals uint8) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), Pow10(int(decimals)))
}

// Pow10 returns 10^n for n >= 0.
func Pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Treasury moves value in and out of one custody account.
//
// TransferIn pulls amount from an external account into custody. For fungible
// assets the owner must have approved the custody account beforehand. For the
// native asset the value is the one attached to the current call.
// TransferOut pays amount from custody to an external account.
type Treasury interface {
	TransferIn(ctx context.Context, asset Asset, from common.Address, amount *big.Int) error
	TransferOut(ctx context.Context, asset Asset, to common.Address, amount *big.Int) error
}

// CheckAmount returns ErrNegativeAmount for nil or negative amounts.
func CheckAmount(v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// PaymentDue returns the amount to pull for a payment of required units of
// asset. A native payment must attach at least required and the whole attached
// value is taken. A fungible payment must attach nothing and exactly required
// is pulled against the payer's approval.
func PaymentDue(asset Asset, required *big.Int, pay Payment) (*big.Int, error) {
	if err := CheckAmount(required); err != nil {
		return nil, err
	}
	attached := pay.Attached()
	if attached.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	if !asset.IsNative() {
		if attached.Sign() != 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedValue, attached)
		}
		return new(big.Int).Set(required), nil
	}
	if attached.Cmp(required) < 0 {
		return nil, fmt.Errorf("%w: attached %s, required %s", ErrInsufficientPayment, attached, required)
	}
	return attached, nil
}
