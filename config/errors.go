// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"mainnet\", \"testnet\", or \"regtest\")")

	// ErrInvalidListenAddr indicates the listen address is malformed.
	ErrInvalidListenAddr = errors.New("config: invalid listen address")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")

	// ErrInvalidConfigValue indicates a value that does not parse for its key.
	ErrInvalidConfigValue = errors.New("config: invalid configuration value")

	// ErrInvalidAddress indicates a role address that is not a non-zero hex address.
	ErrInvalidAddress = errors.New("config: invalid address")

	// ErrInvalidFeeBps indicates a fee rate above 10000 basis points.
	ErrInvalidFeeBps = errors.New("config: fee basis points exceed 10000")

	// ErrInvalidRate indicates a malformed SYMBOL:rate:decimals entry.
	ErrInvalidRate = errors.New("config: invalid rate (want SYMBOL:rate:decimals)")

	// ErrInvalidAsset indicates a malformed SYMBOL:address:decimals entry.
	ErrInvalidAsset = errors.New("config: invalid asset (want SYMBOL:address:decimals)")

	// ErrNegativeRateMaxAge indicates a negative staleness bound.
	ErrNegativeRateMaxAge = errors.New("config: rate max age must not be negative")
)
