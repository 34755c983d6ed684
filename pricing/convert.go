// Package pricing converts reference-currency (USD, 8 decimals) amounts to and
// from payment-asset units using registered rate sources. All arithmetic is
// integer fixed point and rounds toward zero.
package pricing

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libescrow-go/access"
	"github.com/bitfsorg/libescrow-go/clock"
	"github.com/bitfsorg/libescrow-go/ledger"
)

// Quoter converts USD amounts into payment-asset units. Engines depend on it
// rather than on Converter.
type Quoter interface {
	UsdToAsset(ctx context.Context, usd *big.Int, asset ledger.Asset) (*big.Int, error)
	Supports(asset ledger.Asset) bool
}

var _ Quoter = (*Converter)(nil)

// Converter is the price conversion service. Reads are permissionless; rate
// source registration is owner-gated. Safe for concurrent use.
type Converter struct {
	mu      sync.RWMutex
	roles   *access.Controller
	sources map[string]RateSource
	clock   clock.Clock
	maxAge  time.Duration
}

// Option configures a Converter.
type Option func(*Converter)

// WithClock sets the clock used for staleness checks.
func WithClock(c clock.Clock) Option {
	return func(cv *Converter) {
		if c != nil {
			cv.clock = c
		}
	}
}

// WithMaxAge rejects rates older than d. Zero disables the check.
func WithMaxAge(d time.Duration) Option {
	return func(cv *Converter) {
		if d >= 0 {
			cv.maxAge = d
		}
	}
}

// NewConverter returns a converter with no rate sources registered.
func NewConverter(roles *access.Controller, opts ...Option) *Converter {
	c := &Converter{
		roles:   roles,
		sources: make(map[string]RateSource),
		clock:   clock.NewSystem(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// SetRateSource registers src for symbol, replacing any previous source.
func (c *Converter) SetRateSource(caller common.Address, symbol string, src RateSource) error {
	if err := c.roles.RequireOwner(caller); err != nil {
		return err
	}
	sym := normalizeSymbol(symbol)
	if sym == "" {
		return ErrInvalidSymbol
	}
	if src == nil {
		return ErrNilSource
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[sym] = src
	return nil
}

// RemoveRateSource unregisters the source for symbol.
func (c *Converter) RemoveRateSource(caller common.Address, symbol string) error {
	if err := c.roles.RequireOwner(caller); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sources, normalizeSymbol(symbol))
	return nil
}

// Supports reports whether a rate source is registered for asset.
func (c *Converter) Supports(asset ledger.Asset) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sources[normalizeSymbol(asset.Symbol)]
	return ok
}

// rate fetches and validates the latest rate for asset.
func (c *Converter) rate(ctx context.Context, asset ledger.Asset) (Rate, error) {
	sym := normalizeSymbol(asset.Symbol)
	c.mu.RLock()
	src, ok := c.sources[sym]
	maxAge := c.maxAge
	c.mu.RUnlock()
	if !ok {
		return Rate{}, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
	}

	r, err := src.LatestRate(ctx, sym)
	if err != nil {
		return Rate{}, ledger.External("rate source "+sym, err)
	}
	if r.Value == nil || r.Value.Sign() <= 0 {
		return Rate{}, fmt.Errorf("%w: %s", ErrInvalidRate, sym)
	}
	if maxAge > 0 && !r.UpdatedAt.IsZero() {
		if age := c.clock.Now().Sub(r.UpdatedAt); age > maxAge {
			return Rate{}, fmt.Errorf("%w: %s is %s old", ErrStaleRate, sym, age)
		}
	}
	return r, nil
}

// UsdToAsset converts an 8-decimal USD amount into asset-native units.
//
//	amount = usd * 10^assetDecimals * 10^rateDecimals / (rate * 10^8)
func (c *Converter) UsdToAsset(ctx context.Context, usd *big.Int, asset ledger.Asset) (*big.Int, error) {
	if err := ledger.CheckAmount(usd); err != nil {
		return nil, err
	}
	r, err := c.rate(ctx, asset)
	if err != nil {
		return nil, err
	}
	return usdToUnits(usd, asset.Decimals, r), nil
}

// AssetToUsd converts asset-native units into an 8-decimal USD amount.
//
//	usd = amount * rate * 10^8 / (10^assetDecimals * 10^rateDecimals)
func (c *Converter) AssetToUsd(ctx context.Context, amount *big.Int, asset ledger.Asset) (*big.Int, error) {
	if err := ledger.CheckAmount(amount); err != nil {
		return nil, err
	}
	r, err := c.rate(ctx, asset)
	if err != nil {
		return nil, err
	}
	return unitsToUSD(amount, asset.Decimals, r), nil
}

func usdToUnits(usd *big.Int, assetDecimals uint8, r Rate) *big.Int {
	num := new(big.Int).Mul(usd, ledger.Pow10(int(assetDecimals)))
	den := new(big.Int).Mul(r.Value, ledger.Pow10(ledger.USDDecimals))
	if r.Decimals >= 0 {
		num.Mul(num, ledger.Pow10(int(r.Decimals)))
	} else {
		den.Mul(den, ledger.Pow10(int(-r.Decimals)))
	}
	return num.Quo(num, den)
}

func unitsToUSD(amount *big.Int, assetDecimals uint8, r Rate) *big.Int {
	num := new(big.Int).Mul(amount, r.Value)
	num.Mul(num, ledger.Pow10(ledger.USDDecimals))
	den := ledger.Pow10(int(assetDecimals))
	if r.Decimals >= 0 {
		den.Mul(den, ledger.Pow10(int(r.Decimals)))
	} else {
		num.Mul(num, ledger.Pow10(int(-r.Decimals)))
	}
	return num.Quo(num, den)
}
