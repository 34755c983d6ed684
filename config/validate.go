// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/bitfsorg/libescrow-go/revshare"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks every field and returns the first error encountered.
// Role addresses are checked only when set; the daemon requires them.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if cfg.Network != "mainnet" && cfg.Network != "testnet" && cfg.Network != "regtest" {
		return ErrInvalidNetwork
	}

	if _, _, err := net.SplitHostPort(cfg.ListenAddr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidListenAddr, err)
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if cfg.Owner != "" {
		if _, err := cfg.OwnerAddress(); err != nil {
			return err
		}
	}
	if cfg.Admin != "" {
		if _, err := cfg.AdminAddress(); err != nil {
			return err
		}
	}
	if _, err := cfg.ValidatorAddresses(); err != nil {
		return err
	}

	for _, bps := range []uint16{cfg.MintFeeBps, cfg.PayFeeBps, cfg.RecurringFeeBps} {
		if bps > revshare.MaxBps {
			return fmt.Errorf("%w: %d", ErrInvalidFeeBps, bps)
		}
	}

	if cfg.RateMaxAge < 0 {
		return ErrNegativeRateMaxAge
	}
	if _, err := cfg.RateSpecs(); err != nil {
		return err
	}
	if _, err := cfg.AssetSpecs(); err != nil {
		return err
	}
	return nil
}

// FeeSchedule returns the configured fee rates.
func (c Config) FeeSchedule() revshare.Schedule {
	return revshare.Schedule{
		MintBps:      c.MintFeeBps,
		PayBps:       c.PayFeeBps,
		RecurringBps: c.RecurringFeeBps,
	}
}
