package simplepay

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libescrow-go/ledger"
	"github.com/bitfsorg/libescrow-go/revshare"
	"github.com/bitfsorg/libescrow-go/store"
)

func (e *Escrow) update(caller common.Address, what string, fn func() error) error {
	_, release, err := e.guard.Enter(context.Background())
	if err != nil {
		return err
	}
	defer release()

	if caller != e.factory {
		return ErrNotFactory
	}
	if err := fn(); err != nil {
		return err
	}
	e.log.Info("settings changed", "field", what)
	e.record(store.KindConfigChanged, caller, what, common.Address{}, nil)
	return nil
}

// SetMaxUSD sets the largest accepted deposit. Nil removes the limit.
func (e *Escrow) SetMaxUSD(caller common.Address, usd *big.Int) error {
	return e.update(caller, "max_usd", func() error {
		if usd == nil {
			e.maxUSD = nil
			return nil
		}
		if usd.Sign() <= 0 {
			return fmt.Errorf("%w: max usd must be positive", ErrInvalidSettings)
		}
		e.maxUSD = new(big.Int).Set(usd)
		return nil
	})
}

// SetConfirmationWindow sets the withdrawal delay for new deposits.
func (e *Escrow) SetConfirmationWindow(caller common.Address, window time.Duration) error {
	return e.update(caller, "confirmation_window", func() error {
		if window < 0 {
			return fmt.Errorf("%w: negative confirmation window", ErrInvalidSettings)
		}
		e.window = window
		return nil
	})
}

// SetFeeBps sets the platform fee taken at confirmation.
func (e *Escrow) SetFeeBps(caller common.Address, bps uint16) error {
	return e.update(caller, "fee_bps", func() error {
		if err := revshare.ValidateBps(bps); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
		}
		e.feeBps = bps
		return nil
	})
}

// SetAssetSupport adds or removes asset from the accepted payment assets.
func (e *Escrow) SetAssetSupport(caller common.Address, asset ledger.Asset, supported bool) error {
	return e.update(caller, "assets", func() error {
		if supported {
			e.supported[asset.Address] = asset
		} else {
			delete(e.supported, asset.Address)
		}
		return nil
	})
}
