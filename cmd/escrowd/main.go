// Command escrowd runs the settlement engines behind the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"

	"github.com/bitfsorg/libescrow-go/access"
	"github.com/bitfsorg/libescrow-go/api"
	"github.com/bitfsorg/libescrow-go/collection"
	"github.com/bitfsorg/libescrow-go/config"
	"github.com/bitfsorg/libescrow-go/ledger"
	"github.com/bitfsorg/libescrow-go/logging"
	"github.com/bitfsorg/libescrow-go/pricing"
	"github.com/bitfsorg/libescrow-go/registry"
	"github.com/bitfsorg/libescrow-go/relay"
	"github.com/bitfsorg/libescrow-go/store"
	"github.com/bitfsorg/libescrow-go/token"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "escrowd:", err)
		os.Exit(1)
	}
}

func run() error {
	dataDir := flag.String("datadir", config.DefaultDataDir(), "data directory")
	configPath := flag.String("config", "", "config file (default <datadir>/config)")
	writeConfig := flag.Bool("init", false, "write a default config file and exit")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = config.ConfigPath(*dataDir)
	}
	if *writeConfig {
		cfg := config.DefaultConfig()
		cfg.DataDir = *dataDir
		return config.SaveConfig(path, cfg)
	}

	cfg, err := config.LoadConfig(path)
	switch {
	case errors.Is(err, config.ErrConfigNotFound):
		cfg.DataDir = *dataDir
	case err != nil:
		return err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}

	log, closeLog, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg, log)
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	owner, err := cfg.OwnerAddress()
	if err != nil {
		return err
	}
	admin, err := cfg.AdminAddress()
	if err != nil {
		return err
	}
	validators, err := cfg.ValidatorAddresses()
	if err != nil {
		return err
	}
	roles, err := access.New(owner, admin, validators...)
	if err != nil {
		return err
	}
	roles.SetLogger(log)

	prices := pricing.NewConverter(roles, pricing.WithMaxAge(cfg.RateMaxAge))
	rates, err := cfg.RateSpecs()
	if err != nil {
		return err
	}
	for _, r := range rates {
		if err := prices.SetRateSource(owner, r.Symbol, pricing.NewFixedSource(r.Value, r.Decimals)); err != nil {
			return err
		}
	}

	specs, err := cfg.AssetSpecs()
	if err != nil {
		return err
	}
	var assets, fungible []ledger.Asset
	for _, a := range specs {
		asset := ledger.Asset{Address: a.Address, Symbol: a.Symbol, Decimals: a.Decimals}
		assets = append(assets, asset)
		if !asset.IsNative() {
			fungible = append(fungible, asset)
		}
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	journal, err := store.OpenBoltJournal(filepath.Join(cfg.DataDir, "journal.db"))
	if err != nil {
		return err
	}
	defer journal.Close()

	// The registry address is derived from the owner so restarts keep the
	// same engine addresses.
	regAddr := crypto.CreateAddress(owner, 0)

	bank := token.NewBank()
	bank.SetLogger(log)
	collections := collection.NewRegistry(regAddr)
	collections.SetLogger(log)

	reg, err := registry.New(registry.Config{
		Address:     regAddr,
		Roles:       roles,
		Prices:      prices,
		Vault:       bank,
		Collections: collections,
		Journal:     journal,
		Logger:      log,
		Fees:        cfg.FeeSchedule(),

		SubscriptionAssets: fungible,
	})
	if err != nil {
		return err
	}
	inbox, err := relay.NewInbox(roles, reg, log)
	if err != nil {
		return err
	}

	if !debugLogging(cfg.LogLevel) {
		gin.SetMode(gin.ReleaseMode)
	}
	srv, err := api.New(api.Config{
		Registry: reg,
		Prices:   prices,
		Assets:   assets,
		Inbox:    inbox,
		Journal:  journal,
		Bank:     bank,
		Faucet:   cfg.Network == "regtest",
		Logger:   log,
	})
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.ListenAddr, "network", cfg.Network, "registry", regAddr.Hex())
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func debugLogging(level string) bool {
	l, err := logging.ParseLevel(level)
	return err == nil && l <= slog.LevelDebug
}
