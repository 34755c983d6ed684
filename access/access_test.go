package access

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libescrow-go/ledger"
)

var (
	owner     = common.HexToAddress("0x0000000000000000000000000000000000000001")
	admin     = common.HexToAddress("0x0000000000000000000000000000000000000002")
	validator = common.HexToAddress("0x0000000000000000000000000000000000000003")
	stranger  = common.HexToAddress("0x0000000000000000000000000000000000000004")
)

func newController(t *testing.T) *Controller {
	t.Helper()
	c, err := New(owner, admin, validator)
	require.NoError(t, err)
	return c
}

func TestNew_ZeroAddress(t *testing.T) {
	_, err := New(common.Address{}, admin)
	assert.ErrorIs(t, err, ErrZeroAddress)

	_, err = New(owner, admin, common.Address{})
	assert.ErrorIs(t, err, ErrZeroAddress)
}

func TestRequireChecks(t *testing.T) {
	c := newController(t)

	assert.NoError(t, c.RequireOwner(owner))
	assert.NoError(t, c.RequireAdmin(admin))
	assert.NoError(t, c.RequireValidator(validator))
	assert.NoError(t, c.RequireValidatorOrOwner(owner))
	assert.NoError(t, c.RequireValidatorOrOwner(validator))

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"owner", c.RequireOwner(stranger), ErrNotOwner},
		{"admin", c.RequireAdmin(owner), ErrNotAdmin},
		{"validator", c.RequireValidator(owner), ErrNotValidator},
		{"validator or owner", c.RequireValidatorOrOwner(stranger), ErrNotValidator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.want)
			assert.ErrorIs(t, tt.err, ledger.ErrUnauthorized)
		})
	}
}

func TestValidatorLifecycle(t *testing.T) {
	c := newController(t)

	assert.ErrorIs(t, c.GrantValidator(stranger, stranger), ErrNotOwner)
	require.NoError(t, c.GrantValidator(owner, stranger))
	assert.True(t, c.IsValidator(stranger))
	assert.Equal(t, []common.Address{validator, stranger}, c.Validators())

	assert.ErrorIs(t, c.RevokeValidator(validator, stranger), ErrNotOwner)
	require.NoError(t, c.RevokeValidator(owner, stranger))
	assert.False(t, c.IsValidator(stranger))

	assert.ErrorIs(t, c.GrantValidator(owner, common.Address{}), ErrZeroAddress)
}

func TestTransferOwnership(t *testing.T) {
	c := newController(t)

	assert.ErrorIs(t, c.TransferOwnership(admin, stranger), ErrNotOwner)
	require.NoError(t, c.TransferOwnership(owner, stranger))
	assert.Equal(t, stranger, c.Owner())
	assert.ErrorIs(t, c.RequireOwner(owner), ErrNotOwner)
}

func TestSetAdmin(t *testing.T) {
	c := newController(t)

	assert.ErrorIs(t, c.SetAdmin(admin, stranger), ErrNotOwner)
	require.NoError(t, c.SetAdmin(owner, stranger))
	assert.Equal(t, stranger, c.Admin())
}

func TestPause(t *testing.T) {
	c := newController(t)

	assert.NoError(t, c.RequireNotPaused())
	assert.ErrorIs(t, c.Pause(owner), ErrNotAdmin)

	require.NoError(t, c.Pause(admin))
	assert.True(t, c.Paused())
	assert.ErrorIs(t, c.RequireNotPaused(), ErrPaused)
	assert.ErrorIs(t, c.Pause(admin), ErrPaused)

	assert.ErrorIs(t, c.Unpause(validator), ErrNotAdmin)
	require.NoError(t, c.Unpause(admin))
	assert.False(t, c.Paused())
	assert.ErrorIs(t, c.Unpause(admin), ErrNotPaused)
}
