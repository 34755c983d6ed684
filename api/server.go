// Package api exposes the settlement engines over HTTP. Callers are
// identified by the X-Caller header, which an authenticating gateway sets.
package api

import (
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/bitfsorg/libescrow-go/ledger"
	"github.com/bitfsorg/libescrow-go/pricing"
	"github.com/bitfsorg/libescrow-go/registry"
	"github.com/bitfsorg/libescrow-go/relay"
	"github.com/bitfsorg/libescrow-go/store"
)

const (
	ctxRequestID = "request_id"
	ctxCaller    = "caller"

	maxEventLimit = 1000
)

// Config wires the server to the engines.
type Config struct {
	Registry *registry.Registry
	Prices   pricing.Quoter
	// Assets is the catalog used to resolve asset addresses in requests.
	Assets  []ledger.Asset
	Inbox   *relay.Inbox  // optional; enables POST /v1/relay
	Journal store.Journal // optional; enables GET /v1/events
	Bank    Bank          // optional; enables approvals and balances
	// Faucet exposes POST /v1/dev/mint. Requires Bank; regtest only.
	Faucet bool
	Logger *slog.Logger
}

// Server routes HTTP requests to the registry and its engines.
type Server struct {
	reg     *registry.Registry
	prices  pricing.Quoter
	assets  map[common.Address]ledger.Asset
	inbox   *relay.Inbox
	journal store.Journal
	bank    Bank
	log     *slog.Logger
	engine  *gin.Engine
}

// New builds the server and its routes.
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil || cfg.Prices == nil {
		return nil, ErrMissingDependency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		reg:     cfg.Registry,
		prices:  cfg.Prices,
		assets:  make(map[common.Address]ledger.Asset, len(cfg.Assets)),
		inbox:   cfg.Inbox,
		journal: cfg.Journal,
		bank:    cfg.Bank,
		log:     cfg.Logger,
	}
	for _, a := range cfg.Assets {
		s.assets[a.Address] = a
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestIDMiddleware(), s.logMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	v1.GET("/quote", s.handleQuote)
	v1.GET("/events", s.handleEvents)

	authed := v1.Group("", s.callerMiddleware())

	sellers := authed.Group("/sellers/:seller")
	sellers.POST("/reservation-engine", s.handleCreateReservationEngine)
	sellers.GET("/reservation-engine", s.handleGetReservationEngine)
	sellers.PATCH("/reservation-engine", s.handleUpdateReservationEngine)
	sellers.POST("/reservations", s.handleReserve)
	sellers.POST("/reservations/withdraw-proceeds", s.handleWithdrawProceeds)
	sellers.POST("/reservations/withdraw-fees", s.handleWithdrawReservationFees)
	sellers.GET("/reservations/:index", s.handleGetReservation)
	sellers.POST("/reservations/:index/confirm", s.handleConfirmReservation)
	sellers.POST("/reservations/:index/withdraw", s.handleWithdrawReservation)

	sellers.POST("/payment-escrow", s.handleCreatePaymentEscrow)
	sellers.GET("/payment-escrow", s.handleGetPaymentEscrow)
	sellers.PATCH("/payment-escrow", s.handleUpdatePaymentEscrow)
	sellers.POST("/payments", s.handleDeposit)
	sellers.POST("/payments/withdraw-fund", s.handleWithdrawFund)
	sellers.POST("/payments/withdraw-fees", s.handleWithdrawPaymentFees)
	sellers.POST("/payments/refund", s.handleRefund)
	sellers.GET("/payments/:proof", s.handleGetPayment)
	sellers.POST("/payments/:proof/confirm", s.handleConfirmPayment)
	sellers.POST("/payments/:proof/withdraw", s.handleWithdrawDeposit)

	subs := authed.Group("/subscriptions")
	subs.POST("/renew", s.handleRenew)
	subs.POST("/cancel", s.handleCancel)
	subs.POST("/withdraw", s.handleWithdrawEarnings)
	subs.POST("/withdraw-fees", s.handleWithdrawSubscriptionFees)
	subs.GET("/assets", s.handleSubscriptionAssets)
	subs.PUT("/assets/:asset", s.handleAddSubscriptionAsset)
	subs.DELETE("/assets/:asset", s.handleRemoveSubscriptionAsset)
	subs.POST("/:seller/:id", s.handleSetup)
	subs.POST("/:seller/:id/subscribe", s.handleSubscribe)
	subs.POST("/:seller/:id/disable", s.handleDisable)
	subs.POST("/:seller/:id/enable", s.handleEnable)
	subs.GET("/:seller/:id", s.handleGetTerms)

	platform := authed.Group("/admin")
	platform.GET("/fees", s.handleGetFees)
	platform.PUT("/fees", s.handleSetFees)
	platform.POST("/pause", s.handlePause)
	platform.POST("/unpause", s.handleUnpause)

	if s.inbox != nil {
		v1.POST("/relay", s.handleRelay)
	}
	if s.bank != nil {
		v1.GET("/balances/:account", s.handleBalance)
		authed.POST("/approvals", s.handleApprove)
		if cfg.Faucet {
			v1.POST("/dev/mint", s.handleMint)
		}
	}

	s.engine = r
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := requestID(c.Request)
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func (s *Server) logMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString(ctxRequestID))
	}
}

func (s *Server) callerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, err := CallerFromRequest(c.Request)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.Set(ctxCaller, caller)
		c.Next()
	}
}

func caller(c *gin.Context) common.Address {
	v, _ := c.Get(ctxCaller)
	addr, _ := v.(common.Address)
	return addr
}

func (s *Server) asset(addr string) (ledger.Asset, error) {
	if !common.IsHexAddress(addr) {
		return ledger.Asset{}, fmt.Errorf("%w: asset %q", ErrBadRequest, addr)
	}
	a, ok := s.assets[common.HexToAddress(addr)]
	if !ok {
		return ledger.Asset{}, fmt.Errorf("%w: %s", ErrUnknownAsset, addr)
	}
	return a, nil
}

func pathAddress(c *gin.Context, name string) (common.Address, error) {
	v := c.Param(name)
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("%w: %s %q", ErrBadRequest, name, v)
	}
	return common.HexToAddress(v), nil
}

// parseAmount parses a non-negative decimal string. Empty means zero when
// optional is set.
func parseAmount(field, v string, optional bool) (*big.Int, error) {
	if v == "" && optional {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(v, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s %q", ErrBadRequest, field, v)
	}
	return n, nil
}
