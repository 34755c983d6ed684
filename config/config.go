// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads and saves the escrow daemon configuration. The file is
// a list of "key = value" lines; "#" starts a comment.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config holds the daemon settings.
type Config struct {
	DataDir    string
	ListenAddr string
	Network    string
	LogLevel   string
	LogFile    string

	// Role bindings as hex addresses. Validators is comma separated.
	Owner      string
	Admin      string
	Validators string

	MintFeeBps      uint16
	PayFeeBps       uint16
	RecurringFeeBps uint16

	// RateMaxAge rejects rates older than this. Zero disables the check.
	RateMaxAge time.Duration

	// Rates lists fixed rate sources as SYMBOL:rate:decimals, comma separated.
	Rates string

	// Assets is the payment asset catalog as SYMBOL:address:decimals, comma
	// separated. The zero address is the native asset.
	Assets string
}

// RateSpec is one parsed entry of Config.Rates.
type RateSpec struct {
	Symbol   string
	Value    int64
	Decimals int32
}

// AssetSpec is one parsed entry of Config.Assets.
type AssetSpec struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
}

// DefaultDataDir returns ~/.escrow, or ./.escrow if the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".escrow"
	}
	return filepath.Join(home, ".escrow")
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:         DefaultDataDir(),
		ListenAddr:      ":8080",
		Network:         "mainnet",
		LogLevel:        "info",
		MintFeeBps:      250,
		PayFeeBps:       100,
		RecurringFeeBps: 500,
	}
}

// ConfigPath returns the config file location inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(filepath.Clean(dataDir), "config")
}

// LoadConfig reads path on top of DefaultConfig. Unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, err := parseKeyValue(line)
		if err != nil {
			return cfg, fmt.Errorf("%w: line %d", err, lineNo)
		}
		if err := cfg.set(key, value); err != nil {
			return cfg, fmt.Errorf("%w: line %d", err, lineNo)
		}
	}
	if err := sc.Err(); err != nil {
		return cfg, fmt.Errorf("config: read: %w", err)
	}
	return cfg, nil
}

// parseKeyValue splits a line on the first '='.
func parseKeyValue(line string) (string, string, error) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", ErrInvalidConfigLine
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", "", ErrInvalidConfigLine
	}
	return key, strings.TrimSpace(value), nil
}

func (c *Config) set(key, value string) error {
	var err error
	switch key {
	case "datadir":
		c.DataDir = value
	case "listen":
		c.ListenAddr = value
	case "network":
		c.Network = value
	case "loglevel":
		c.LogLevel = value
	case "logfile":
		c.LogFile = value
	case "owner":
		c.Owner = value
	case "admin":
		c.Admin = value
	case "validators":
		c.Validators = value
	case "mintfeebps":
		c.MintFeeBps, err = parseBps(value)
	case "payfeebps":
		c.PayFeeBps, err = parseBps(value)
	case "recurringfeebps":
		c.RecurringFeeBps, err = parseBps(value)
	case "ratemaxage":
		c.RateMaxAge, err = time.ParseDuration(value)
	case "rates":
		c.Rates = value
	case "assets":
		c.Assets = value
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfigValue, key, err)
	}
	return nil
}

func parseBps(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	return uint16(v), err
}

// SaveConfig writes cfg to path, creating parent directories.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Escrow Configuration\n\n")
	fmt.Fprintf(&b, "datadir = %s\n", cfg.DataDir)
	fmt.Fprintf(&b, "listen = %s\n", cfg.ListenAddr)
	fmt.Fprintf(&b, "network = %s\n", cfg.Network)
	fmt.Fprintf(&b, "loglevel = %s\n", cfg.LogLevel)
	fmt.Fprintf(&b, "logfile = %s\n", cfg.LogFile)
	b.WriteString("\n# Roles\n")
	fmt.Fprintf(&b, "owner = %s\n", cfg.Owner)
	fmt.Fprintf(&b, "admin = %s\n", cfg.Admin)
	fmt.Fprintf(&b, "validators = %s\n", cfg.Validators)
	b.WriteString("\n# Fees (basis points)\n")
	fmt.Fprintf(&b, "mintfeebps = %d\n", cfg.MintFeeBps)
	fmt.Fprintf(&b, "payfeebps = %d\n", cfg.PayFeeBps)
	fmt.Fprintf(&b, "recurringfeebps = %d\n", cfg.RecurringFeeBps)
	b.WriteString("\n# Pricing\n")
	fmt.Fprintf(&b, "ratemaxage = %s\n", cfg.RateMaxAge)
	fmt.Fprintf(&b, "rates = %s\n", cfg.Rates)
	fmt.Fprintf(&b, "assets = %s\n", cfg.Assets)

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}

// OwnerAddress parses Owner.
func (c Config) OwnerAddress() (common.Address, error) {
	return parseAddress("owner", c.Owner)
}

// AdminAddress parses Admin.
func (c Config) AdminAddress() (common.Address, error) {
	return parseAddress("admin", c.Admin)
}

// ValidatorAddresses parses Validators. An empty list is valid.
func (c Config) ValidatorAddresses() ([]common.Address, error) {
	var out []common.Address
	for _, field := range splitList(c.Validators) {
		addr, err := parseAddress("validators", field)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// RateSpecs parses Rates.
func (c Config) RateSpecs() ([]RateSpec, error) {
	var out []RateSpec
	for _, field := range splitList(c.Rates) {
		parts := strings.Split(field, ":")
		if len(parts) != 3 || parts[0] == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRate, field)
		}
		value, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || value <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRate, field)
		}
		dec, err := strconv.ParseInt(parts[2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRate, field)
		}
		out = append(out, RateSpec{Symbol: strings.ToUpper(parts[0]), Value: value, Decimals: int32(dec)})
	}
	return out, nil
}

// AssetSpecs parses Assets.
func (c Config) AssetSpecs() ([]AssetSpec, error) {
	var out []AssetSpec
	seen := make(map[common.Address]bool)
	for _, field := range splitList(c.Assets) {
		parts := strings.Split(field, ":")
		if len(parts) != 3 || parts[0] == "" || !common.IsHexAddress(parts[1]) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAsset, field)
		}
		dec, err := strconv.ParseUint(parts[2], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAsset, field)
		}
		addr := common.HexToAddress(parts[1])
		if seen[addr] {
			return nil, fmt.Errorf("%w: duplicate address in %q", ErrInvalidAsset, field)
		}
		seen[addr] = true
		out = append(out, AssetSpec{Symbol: strings.ToUpper(parts[0]), Address: addr, Decimals: uint8(dec)})
	}
	return out, nil
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %s %q", ErrInvalidAddress, field, s)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s is the zero address", ErrInvalidAddress, field)
	}
	return addr, nil
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
