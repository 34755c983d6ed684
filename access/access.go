// Package access owns the role bindings shared by every ledger: a single
// owner, a single admin (also the fee recipient) and a set of validators,
// plus the pause switch for administrative mutation.
package access

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Controller is the single source of truth for roles. Safe for concurrent use.
type Controller struct {
	mu         sync.RWMutex
	owner      common.Address
	admin      common.Address
	validators map[common.Address]struct{}
	paused     bool
	log        *slog.Logger
}

// New creates a controller with the initial bindings. Validators may be empty.
func New(owner, admin common.Address, validators ...common.Address) (*Controller, error) {
	if owner == (common.Address{}) || admin == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	c := &Controller{
		owner:      owner,
		admin:      admin,
		validators: make(map[common.Address]struct{}, len(validators)),
		log:        slog.Default(),
	}
	for _, v := range validators {
		if v == (common.Address{}) {
			return nil, fmt.Errorf("%w: validator", ErrZeroAddress)
		}
		c.validators[v] = struct{}{}
	}
	return c, nil
}

// SetLogger replaces the logger used for role changes.
func (c *Controller) SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = l
}

// Owner returns the current owner.
func (c *Controller) Owner() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owner
}

// Admin returns the current admin, who also receives platform fees.
func (c *Controller) Admin() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.admin
}

// IsValidator reports whether addr holds the validator role.
func (c *Controller) IsValidator(addr common.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.validators[addr]
	return ok
}

// Validators returns the validator set in address order.
func (c *Controller) Validators() []common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]common.Address, 0, len(c.validators))
	for v := range c.validators {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

// Paused reports whether administrative mutation is frozen.
func (c *Controller) Paused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// RequireOwner returns ErrNotOwner unless caller is the owner.
func (c *Controller) RequireOwner(caller common.Address) error {
	if caller != c.Owner() {
		return ErrNotOwner
	}
	return nil
}

// RequireAdmin returns ErrNotAdmin unless caller is the admin.
func (c *Controller) RequireAdmin(caller common.Address) error {
	if caller != c.Admin() {
		return ErrNotAdmin
	}
	return nil
}

// RequireValidator returns ErrNotValidator unless caller is a validator.
func (c *Controller) RequireValidator(caller common.Address) error {
	if !c.IsValidator(caller) {
		return ErrNotValidator
	}
	return nil
}

// RequireValidatorOrOwner accepts either role.
func (c *Controller) RequireValidatorOrOwner(caller common.Address) error {
	if caller == c.Owner() || c.IsValidator(caller) {
		return nil
	}
	return ErrNotValidator
}

// RequireNotPaused returns ErrPaused while paused.
func (c *Controller) RequireNotPaused() error {
	if c.Paused() {
		return ErrPaused
	}
	return nil
}

// TransferOwnership hands the owner role to next.
func (c *Controller) TransferOwnership(caller, next common.Address) error {
	if next == (common.Address{}) {
		return ErrZeroAddress
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.owner {
		return ErrNotOwner
	}
	c.log.Info("ownership transferred", "from", c.owner.Hex(), "to", next.Hex())
	c.owner = next
	return nil
}

// SetAdmin binds the admin role. Owner only.
func (c *Controller) SetAdmin(caller, admin common.Address) error {
	if admin == (common.Address{}) {
		return ErrZeroAddress
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.owner {
		return ErrNotOwner
	}
	c.log.Info("admin changed", "from", c.admin.Hex(), "to", admin.Hex())
	c.admin = admin
	return nil
}

// GrantValidator adds v to the validator set. Owner only.
func (c *Controller) GrantValidator(caller, v common.Address) error {
	if v == (common.Address{}) {
		return ErrZeroAddress
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.owner {
		return ErrNotOwner
	}
	c.validators[v] = struct{}{}
	c.log.Info("validator granted", "validator", v.Hex())
	return nil
}

// RevokeValidator removes v from the validator set. Owner only.
// Revoking an address that is not a validator is a no-op.
func (c *Controller) RevokeValidator(caller, v common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.owner {
		return ErrNotOwner
	}
	delete(c.validators, v)
	c.log.Info("validator revoked", "validator", v.Hex())
	return nil
}

// Pause freezes administrative mutation. Admin only.
func (c *Controller) Pause(caller common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.admin {
		return ErrNotAdmin
	}
	if c.paused {
		return ErrPaused
	}
	c.paused = true
	c.log.Warn("administrative mutation paused", "by", caller.Hex())
	return nil
}

// Unpause lifts the freeze. Admin only.
func (c *Controller) Unpause(caller common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.admin {
		return ErrNotAdmin
	}
	if !c.paused {
		return ErrNotPaused
	}
	c.paused = false
	c.log.Info("administrative mutation resumed", "by", caller.Hex())
	return nil
}
