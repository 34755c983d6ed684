package collection

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libescrow-go/ledger"
)

var (
	deployer = common.HexToAddress("0x00000000000000000000000000000000000000d0")
	seller   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	seller2  = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	minter   = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	buyer    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func TestCreateCollection_OneShot(t *testing.T) {
	r := NewRegistry(deployer)
	addr, err := r.CreateCollection(seller, minter, "ipfs://seller")
	require.NoError(t, err)
	assert.NotEqual(t, common.Address{}, addr)

	_, err = r.CreateCollection(seller, minter, "ipfs://again")
	assert.ErrorIs(t, err, ErrAlreadyCreated)
	assert.ErrorIs(t, err, ledger.ErrDuplicate)

	got, ok := r.CollectionOf(seller)
	require.True(t, ok)
	assert.Equal(t, addr, got)
}

func TestCreateCollection_DistinctAddresses(t *testing.T) {
	r := NewRegistry(deployer)
	a, err := r.CreateCollection(seller, minter, "")
	require.NoError(t, err)
	b, err := r.CreateCollection(seller2, minter, "")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Equal(t, []common.Address{seller, seller2}, r.Sellers())
}

func TestCreateCollection_ZeroAddress(t *testing.T) {
	r := NewRegistry(deployer)
	_, err := r.CreateCollection(common.Address{}, minter, "")
	assert.ErrorIs(t, err, ErrZeroAddress)
	_, err = r.CreateCollection(seller, common.Address{}, "")
	assert.ErrorIs(t, err, ErrZeroAddress)
}

func TestIssue(t *testing.T) {
	r := NewRegistry(deployer)
	addr, err := r.CreateCollection(seller, minter, "ipfs://x")
	require.NoError(t, err)

	require.NoError(t, r.Issue(context.Background(), minter, addr, buyer, 3))
	require.NoError(t, r.Issue(context.Background(), minter, addr, buyer, 2))
	assert.Equal(t, uint64(5), r.BalanceOf(addr, buyer))

	info, err := r.Info(addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), info.Issued)
	assert.Equal(t, "ipfs://x", info.URI)
}

func TestIssue_Errors(t *testing.T) {
	r := NewRegistry(deployer)
	addr, err := r.CreateCollection(seller, minter, "")
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, r.Issue(ctx, buyer, addr, buyer, 1), ledger.ErrUnauthorized)
	assert.ErrorIs(t, r.Issue(ctx, minter, addr, buyer, 0), ErrZeroQuantity)
	assert.ErrorIs(t, r.Issue(ctx, minter, seller, buyer, 1), ErrCollectionNotFound)
	assert.ErrorIs(t, r.Issue(ctx, minter, addr, common.Address{}, 1), ErrZeroAddress)
	assert.Zero(t, r.BalanceOf(addr, buyer))

	_, err = r.Info(seller)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
