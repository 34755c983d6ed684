package pricing

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libescrow-go/access"
	"github.com/bitfsorg/libescrow-go/clock"
	"github.com/bitfsorg/libescrow-go/ledger"
)

var (
	owner    = common.HexToAddress("0x0000000000000000000000000000000000000001")
	admin    = common.HexToAddress("0x0000000000000000000000000000000000000002")
	stranger = common.HexToAddress("0x0000000000000000000000000000000000000009")

	eth  = ledger.NativeAsset("ETH", 18)
	usdc = ledger.Asset{Address: common.HexToAddress("0x00000000000000000000000000000000000000c1"), Symbol: "USDC", Decimals: 6}
)

func newConverter(t *testing.T, opts ...Option) *Converter {
	t.Helper()
	roles, err := access.New(owner, admin)
	require.NoError(t, err)
	return NewConverter(roles, opts...)
}

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, s)
	return v
}

// --- Conversion tests ---

func TestUsdToAsset(t *testing.T) {
	tests := []struct {
		name   string
		asset  ledger.Asset
		source RateSource
		usd    *big.Int
		want   string
	}{
		{"eth at 2000 (8dp feed)", eth, NewFixedSource(2000_00000000, 8), ledger.USD(100), "50000000000000000"},
		{"usdc at par", usdc, NewFixedSource(1_00000000, 8), ledger.USD(100), "100000000"},
		{"negative rate exponent", eth, NewFixedSource(2, -3), ledger.USD(100), "50000000000000000"},
		{"rounds toward zero", usdc, NewFixedSource(3, 0), ledger.USD(1), "333333"},
		{"zero usd", usdc, NewFixedSource(1, 0), new(big.Int), "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newConverter(t)
			require.NoError(t, c.SetRateSource(owner, tt.asset.Symbol, tt.source))

			got, err := c.UsdToAsset(context.Background(), tt.usd, tt.asset)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestAssetToUsd(t *testing.T) {
	tests := []struct {
		name   string
		asset  ledger.Asset
		source RateSource
		amount *big.Int
		want   *big.Int
	}{
		{"eth at 2000", eth, NewFixedSource(2000_00000000, 8), mustBig(t, "50000000000000000"), ledger.USD(100)},
		{"usdc at par", usdc, NewFixedSource(1_00000000, 8), big.NewInt(100_000_000), ledger.USD(100)},
		{"negative rate exponent", eth, NewFixedSource(2, -3), mustBig(t, "50000000000000000"), ledger.USD(100)},
		{"sub-cent truncates", usdc, NewFixedSource(1_00000000, 8), big.NewInt(1), big.NewInt(100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newConverter(t)
			require.NoError(t, c.SetRateSource(owner, tt.asset.Symbol, tt.source))

			got, err := c.AssetToUsd(context.Background(), tt.amount, tt.asset)
			require.NoError(t, err)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestRoundTripNeverCreatesValue(t *testing.T) {
	c := newConverter(t)
	require.NoError(t, c.SetRateSource(owner, "ETH", NewFixedSource(1234_56789012, 8)))

	for _, whole := range []int64{1, 7, 99, 1000, 123456} {
		usd := ledger.USD(whole)
		units, err := c.UsdToAsset(context.Background(), usd, eth)
		require.NoError(t, err)
		back, err := c.AssetToUsd(context.Background(), units, eth)
		require.NoError(t, err)
		assert.LessOrEqual(t, back.Cmp(usd), 0, "round trip of $%d must not exceed input", whole)
	}
}

// --- Error tests ---

func TestUsdToAsset_Unsupported(t *testing.T) {
	c := newConverter(t)
	_, err := c.UsdToAsset(context.Background(), ledger.USD(1), usdc)
	assert.ErrorIs(t, err, ErrUnsupportedAsset)
	assert.False(t, c.Supports(usdc))
}

func TestUsdToAsset_InvalidRate(t *testing.T) {
	c := newConverter(t)
	require.NoError(t, c.SetRateSource(owner, "USDC", NewFixedSource(0, 8)))
	_, err := c.UsdToAsset(context.Background(), ledger.USD(1), usdc)
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestUsdToAsset_NegativeAmount(t *testing.T) {
	c := newConverter(t)
	require.NoError(t, c.SetRateSource(owner, "USDC", NewFixedSource(1, 0)))
	_, err := c.UsdToAsset(context.Background(), big.NewInt(-1), usdc)
	assert.ErrorIs(t, err, ledger.ErrNegativeAmount)
}

func TestUsdToAsset_SourceFailure(t *testing.T) {
	c := newConverter(t)
	boom := errors.New("feed offline")
	require.NoError(t, c.SetRateSource(owner, "USDC", &MockSource{
		LatestRateFn: func(context.Context, string) (Rate, error) { return Rate{}, boom },
	}))

	_, err := c.UsdToAsset(context.Background(), ledger.USD(1), usdc)
	assert.ErrorIs(t, err, ledger.ErrExternal)
	assert.ErrorIs(t, err, boom)
}

func TestUsdToAsset_StaleRate(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewManual(now)
	c := newConverter(t, WithClock(clk), WithMaxAge(time.Hour))

	src := &FixedSource{Value: big.NewInt(1_00000000), Decimals: 8, UpdatedAt: now}
	require.NoError(t, c.SetRateSource(owner, "USDC", src))

	_, err := c.UsdToAsset(context.Background(), ledger.USD(1), usdc)
	require.NoError(t, err)

	clk.Advance(time.Hour + time.Second)
	_, err = c.UsdToAsset(context.Background(), ledger.USD(1), usdc)
	assert.ErrorIs(t, err, ErrStaleRate)
}

func TestMockSource_ReceivesSymbol(t *testing.T) {
	c := newConverter(t)
	var seen string
	require.NoError(t, c.SetRateSource(owner, " usdc ", &MockSource{
		LatestRateFn: func(_ context.Context, symbol string) (Rate, error) {
			seen = symbol
			return Rate{Value: big.NewInt(1), Decimals: 0}, nil
		},
	}))

	_, err := c.UsdToAsset(context.Background(), ledger.USD(1), usdc)
	require.NoError(t, err)
	assert.Equal(t, "USDC", seen)
}

// --- Registration tests ---

func TestSetRateSource_OwnerOnly(t *testing.T) {
	c := newConverter(t)
	err := c.SetRateSource(stranger, "USDC", NewFixedSource(1, 0))
	assert.ErrorIs(t, err, access.ErrNotOwner)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
}

func TestSetRateSource_Validation(t *testing.T) {
	c := newConverter(t)
	assert.ErrorIs(t, c.SetRateSource(owner, "  ", NewFixedSource(1, 0)), ErrInvalidSymbol)
	assert.ErrorIs(t, c.SetRateSource(owner, "USDC", nil), ErrNilSource)
}

func TestRemoveRateSource(t *testing.T) {
	c := newConverter(t)
	require.NoError(t, c.SetRateSource(owner, "USDC", NewFixedSource(1, 0)))
	assert.True(t, c.Supports(usdc))

	assert.ErrorIs(t, c.RemoveRateSource(stranger, "USDC"), access.ErrNotOwner)
	require.NoError(t, c.RemoveRateSource(owner, "usdc"))
	assert.False(t, c.Supports(usdc))
}
