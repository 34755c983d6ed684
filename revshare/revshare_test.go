package revshare

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeAddr(seed byte) common.Address {
	var addr common.Address
	for i := range addr {
		addr[i] = seed
	}
	return addr
}

// --- Split tests ---

func TestSplit(t *testing.T) {
	tests := []struct {
		name       string
		value      int64
		bps        uint16
		wantSeller int64
		wantFee    int64
	}{
		{"no fee", 1000, 0, 1000, 0},
		{"2.5 percent", 1000, 250, 975, 25},
		{"fee rounds down", 999, 250, 975, 24},
		{"full fee", 1000, 10_000, 0, 1000},
		{"zero value", 0, 500, 0, 0},
		{"one unit", 1, 9_999, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value := big.NewInt(tt.value)
			seller, fee, err := Split(value, tt.bps)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSeller, seller.Int64())
			assert.Equal(t, tt.wantFee, fee.Int64())
			assert.NoError(t, ValidateConservation(value, seller, fee))
		})
	}
}

func TestSplit_Errors(t *testing.T) {
	_, _, err := Split(big.NewInt(1), 10_001)
	assert.ErrorIs(t, err, ErrInvalidBps)

	_, _, err = Split(big.NewInt(-1), 100)
	assert.ErrorIs(t, err, ErrNegativeValue)

	_, _, err = Split(nil, 100)
	assert.ErrorIs(t, err, ErrNegativeValue)
}

func TestSplit_DoesNotAliasInput(t *testing.T) {
	value := big.NewInt(1000)
	seller, _, err := Split(value, 0)
	require.NoError(t, err)
	seller.SetInt64(1)
	assert.Equal(t, int64(1000), value.Int64())
}

func TestSplit_MatchesFeeSellerDistribution(t *testing.T) {
	value, ok := new(big.Int).SetString("123456789012345678901", 10)
	require.True(t, ok)
	for _, bps := range []uint16{1, 100, 250, 3333, 9999} {
		seller, fee, err := Split(value, bps)
		require.NoError(t, err)

		dists, err := Distribute(value, []Entry{
			{makeAddr(0xFE), uint64(bps)},
			{makeAddr(0x5E), uint64(MaxBps - bps)},
		})
		require.NoError(t, err)
		assert.Equal(t, dists[0].Amount.String(), fee.String(), "bps %d", bps)
		assert.Equal(t, dists[1].Amount.String(), seller.String(), "bps %d", bps)
	}
}

// --- Distribute tests ---

func TestDistribute(t *testing.T) {
	tests := []struct {
		name    string
		total   int64
		entries []Entry
		want    []int64
	}{
		{"single payee", 1000, []Entry{{makeAddr(0xAA), 1}}, []int64{1000}},
		{"even split", 1000, []Entry{{makeAddr(0xAA), 1}, {makeAddr(0xBB), 1}}, []int64{500, 500}},
		{"remainder to last", 100, []Entry{
			{makeAddr(0xAA), 1}, {makeAddr(0xBB), 1}, {makeAddr(0xCC), 1},
		}, []int64{33, 33, 34}},
		{"weighted", 10_000, []Entry{
			{makeAddr(0xAA), 3000}, {makeAddr(0xBB), 2000}, {makeAddr(0xCC), 5000},
		}, []int64{3000, 2000, 5000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total := big.NewInt(tt.total)
			dists, err := Distribute(total, tt.entries)
			require.NoError(t, err)
			require.Len(t, dists, len(tt.want))

			parts := make([]*big.Int, len(dists))
			for i, d := range dists {
				assert.Equal(t, tt.entries[i].Address, d.Address)
				assert.Equal(t, tt.want[i], d.Amount.Int64(), "entry %d", i)
				parts[i] = d.Amount
			}
			assert.NoError(t, ValidateConservation(total, parts...))
		})
	}
}

func TestDistribute_Errors(t *testing.T) {
	_, err := Distribute(big.NewInt(10), nil)
	assert.ErrorIs(t, err, ErrNoEntries)

	_, err = Distribute(big.NewInt(10), []Entry{{makeAddr(1), 0}})
	assert.ErrorIs(t, err, ErrZeroShares)

	_, err = Distribute(big.NewInt(-10), []Entry{{makeAddr(1), 1}})
	assert.ErrorIs(t, err, ErrNegativeValue)
}

func TestValidateConservation(t *testing.T) {
	assert.NoError(t, ValidateConservation(big.NewInt(10), big.NewInt(3), big.NewInt(7)))
	assert.ErrorIs(t, ValidateConservation(big.NewInt(10), big.NewInt(3), big.NewInt(6)), ErrConservationViolation)
	assert.ErrorIs(t, ValidateConservation(big.NewInt(10), big.NewInt(-1)), ErrNegativeValue)
}

// --- Schedule tests ---

func TestSchedule_Validate(t *testing.T) {
	assert.NoError(t, Schedule{MintBps: 250, PayBps: 0, RecurringBps: 10_000}.Validate())
	assert.ErrorIs(t, Schedule{RecurringBps: 10_001}.Validate(), ErrInvalidBps)
}
