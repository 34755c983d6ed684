package reservation

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libescrow-go/ledger"
	"github.com/bitfsorg/libescrow-go/store"
)

// update applies fn to a copy of the settings and commits it if the result is
// valid. Only the factory may change settings; changes never touch existing
// reservations.
func (e *Engine) update(caller common.Address, what string, fn func(s *Settings) error) error {
	_, release, err := e.guard.Enter(context.Background())
	if err != nil {
		return err
	}
	defer release()

	if caller != e.factory {
		return ErrNotFactory
	}
	next := e.settings
	if err := fn(&next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	e.settings = next
	e.log.Info("settings changed", "field", what)
	e.record(store.KindConfigChanged, caller, what, common.Address{}, nil)
	return nil
}

// SetStage moves the sale to stage.
func (e *Engine) SetStage(caller common.Address, stage Stage) error {
	return e.update(caller, "stage", func(s *Settings) error {
		s.Stage = stage
		return nil
	})
}

// SetMintPrice sets the public USD price per unit.
func (e *Engine) SetMintPrice(caller common.Address, usd *big.Int) error {
	return e.update(caller, "mint_price", func(s *Settings) error {
		if usd == nil || usd.Sign() <= 0 {
			return fmt.Errorf("%w: mint price must be positive", ErrInvalidSettings)
		}
		s.MintPrice = new(big.Int).Set(usd)
		return nil
	})
}

// SetWhitelistPrice sets the whitelist-stage USD price per unit.
func (e *Engine) SetWhitelistPrice(caller common.Address, usd *big.Int) error {
	return e.update(caller, "whitelist_price", func(s *Settings) error {
		if err := ledger.CheckAmount(usd); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
		}
		s.WhitelistPrice = new(big.Int).Set(usd)
		return nil
	})
}

// SetQuantityLimits sets the per-call quantity bounds.
func (e *Engine) SetQuantityLimits(caller common.Address, minQty, maxQty uint64) error {
	return e.update(caller, "quantity_limits", func(s *Settings) error {
		if maxQty == 0 {
			return fmt.Errorf("%w: max quantity must be positive", ErrInvalidSettings)
		}
		s.MinQuantity, s.MaxQuantity = minQty, maxQty
		return nil
	})
}

// SetSupplyCap sets the total confirmable quantity. It cannot drop below what
// is already confirmed.
func (e *Engine) SetSupplyCap(caller common.Address, supplyCap uint64) error {
	return e.update(caller, "supply_cap", func(s *Settings) error {
		if supplyCap < e.confirmed {
			return fmt.Errorf("%w: cap %d below confirmed %d", ErrInvalidSettings, supplyCap, e.confirmed)
		}
		s.SupplyCap = supplyCap
		return nil
	})
}

// SetSaleDeadline sets the last instant reservations are accepted. The zero
// time removes the deadline.
func (e *Engine) SetSaleDeadline(caller common.Address, deadline time.Time) error {
	return e.update(caller, "sale_deadline", func(s *Settings) error {
		s.SaleDeadline = deadline
		return nil
	})
}

// SetConfirmationWindow sets the refund delay applied to new reservations.
func (e *Engine) SetConfirmationWindow(caller common.Address, window time.Duration) error {
	return e.update(caller, "confirmation_window", func(s *Settings) error {
		if window <= 0 {
			return fmt.Errorf("%w: confirmation window must be positive", ErrInvalidSettings)
		}
		s.ConfirmationWindow = window
		return nil
	})
}

// SetFeeBps sets the platform fee taken at confirmation.
func (e *Engine) SetFeeBps(caller common.Address, bps uint16) error {
	return e.update(caller, "fee_bps", func(s *Settings) error {
		s.FeeBps = bps
		return nil
	})
}

// SetAssetSupport adds or removes asset from the accepted payment assets.
func (e *Engine) SetAssetSupport(caller common.Address, asset ledger.Asset, supported bool) error {
	return e.update(caller, "assets", func(*Settings) error {
		if supported {
			e.supported[asset.Address] = asset
		} else {
			delete(e.supported, asset.Address)
		}
		return nil
	})
}

// AddWhitelist adds buyers to the whitelist.
func (e *Engine) AddWhitelist(caller common.Address, buyers ...common.Address) error {
	return e.update(caller, "whitelist", func(*Settings) error {
		for _, b := range buyers {
			e.whitelist[b] = struct{}{}
		}
		return nil
	})
}

// RemoveWhitelist removes buyers from the whitelist.
func (e *Engine) RemoveWhitelist(caller common.Address, buyers ...common.Address) error {
	return e.update(caller, "whitelist", func(*Settings) error {
		for _, b := range buyers {
			delete(e.whitelist, b)
		}
		return nil
	})
}
