package pricing

import (
	"context"
	"math/big"
	"time"
)

// Rate is the USD price of one whole asset unit: Value / 10^Decimals.
// Decimals may be negative, in which case the price is Value * 10^-Decimals.
type Rate struct {
	Value     *big.Int
	Decimals  int32
	UpdatedAt time.Time
}

// RateSource is a read-only price feed for one or more asset symbols.
type RateSource interface {
	// LatestRate returns the most recent USD rate for symbol.
	LatestRate(ctx context.Context, symbol string) (Rate, error)
}

// FixedSource always reports the same rate. A zero UpdatedAt marks the rate
// as timeless, so staleness checks never reject it.
type FixedSource struct {
	Value     *big.Int
	Decimals  int32
	UpdatedAt time.Time
}

// NewFixedSource returns a FixedSource for value at decimals.
func NewFixedSource(value int64, decimals int32) *FixedSource {
	return &FixedSource{Value: big.NewInt(value), Decimals: decimals}
}

// LatestRate implements RateSource.
func (f *FixedSource) LatestRate(_ context.Context, _ string) (Rate, error) {
	return Rate{Value: new(big.Int).Set(f.Value), Decimals: f.Decimals, UpdatedAt: f.UpdatedAt}, nil
}

// MockSource is a test double for RateSource.
// LatestRateFn must be set before LatestRate is called.
type MockSource struct {
	LatestRateFn func(ctx context.Context, symbol string) (Rate, error)
}

// LatestRate implements RateSource.
func (m *MockSource) LatestRate(ctx context.Context, symbol string) (Rate, error) {
	return m.LatestRateFn(ctx, symbol)
}
