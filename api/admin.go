package api

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/bitfsorg/libescrow-go/ledger"
	"github.com/bitfsorg/libescrow-go/recurring"
	"github.com/bitfsorg/libescrow-go/registry"
	"github.com/bitfsorg/libescrow-go/reservation"
	"github.com/bitfsorg/libescrow-go/revshare"
	"github.com/bitfsorg/libescrow-go/simplepay"
)

var errNoChanges = fmt.Errorf("%w: no changes", ErrBadRequest)

func (s *Server) assetList(field string, addrs []string) ([]ledger.Asset, error) {
	out := make([]ledger.Asset, 0, len(addrs))
	for _, v := range addrs {
		a, err := s.asset(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func addressList(field string, v []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(v))
	for _, a := range v {
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("%w: %s %q", ErrBadRequest, field, a)
		}
		out = append(out, common.HexToAddress(a))
	}
	return out, nil
}

// parseDuration parses a Go duration string. Empty is zero.
func parseDuration(field, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %s %q", ErrBadRequest, field, v)
	}
	return d, nil
}

// optionalAmount parses v, returning nil for the empty string.
func optionalAmount(field, v string) (*big.Int, error) {
	if v == "" {
		return nil, nil
	}
	return parseAmount(field, v, false)
}

func parseStage(v string) (reservation.Stage, error) {
	if v == "" {
		return reservation.StageNotReady, nil
	}
	st, err := reservation.ParseStage(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return st, nil
}

// --- engine creation ---

type createReservationRequest struct {
	Stage              string     `json:"stage"`
	Assets             []string   `json:"assets"`
	MintPrice          string     `json:"mint_price"`
	WhitelistPrice     string     `json:"whitelist_price"`
	MinQuantity        uint64     `json:"min_quantity"`
	MaxQuantity        uint64     `json:"max_quantity"`
	SupplyCap          uint64     `json:"supply_cap"`
	SaleDeadline       *time.Time `json:"sale_deadline"`
	ConfirmationWindow string     `json:"confirmation_window"`
	Whitelist          []string   `json:"whitelist"`
	CollectionURI      string     `json:"collection_uri"`
}

func (r *createReservationRequest) params(s *Server) (registry.ReservationParams, error) {
	var p registry.ReservationParams
	st, err := parseStage(r.Stage)
	if err != nil {
		return p, err
	}
	assets, err := s.assetList("assets", r.Assets)
	if err != nil {
		return p, err
	}
	mint, err := optionalAmount("mint_price", r.MintPrice)
	if err != nil {
		return p, err
	}
	wl, err := optionalAmount("whitelist_price", r.WhitelistPrice)
	if err != nil {
		return p, err
	}
	window, err := parseDuration("confirmation_window", r.ConfirmationWindow)
	if err != nil {
		return p, err
	}
	buyers, err := addressList("whitelist", r.Whitelist)
	if err != nil {
		return p, err
	}
	p.Settings = reservation.Settings{
		Stage:              st,
		Assets:             assets,
		MintPrice:          mint,
		WhitelistPrice:     wl,
		MinQuantity:        r.MinQuantity,
		MaxQuantity:        r.MaxQuantity,
		SupplyCap:          r.SupplyCap,
		ConfirmationWindow: window,
		Whitelist:          buyers,
	}
	if r.SaleDeadline != nil {
		p.Settings.SaleDeadline = *r.SaleDeadline
	}
	p.CollectionURI = r.CollectionURI
	return p, nil
}

func (s *Server) handleCreateReservationEngine(c *gin.Context) {
	seller, err := pathAddress(c, "seller")
	if err != nil {
		s.fail(c, err)
		return
	}
	var req createReservationRequest
	if !s.bind(c, &req) {
		return
	}
	p, err := req.params(s)
	if err != nil {
		s.fail(c, err)
		return
	}
	e, err := s.reg.CreateReservationEngine(caller(c), seller, p)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewReservationEngine(e))
}

func (s *Server) handleGetReservationEngine(c *gin.Context) {
	e, _, ok := s.reservationEngine(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, viewReservationEngine(e))
}

type createEscrowRequest struct {
	Assets             []string `json:"assets"`
	MaxUSD             string   `json:"max_usd"`
	ConfirmationWindow string   `json:"confirmation_window"`
}

func (s *Server) handleCreatePaymentEscrow(c *gin.Context) {
	seller, err := pathAddress(c, "seller")
	if err != nil {
		s.fail(c, err)
		return
	}
	var req createEscrowRequest
	if !s.bind(c, &req) {
		return
	}
	assets, err := s.assetList("assets", req.Assets)
	if err != nil {
		s.fail(c, err)
		return
	}
	maxUSD, err := optionalAmount("max_usd", req.MaxUSD)
	if err != nil {
		s.fail(c, err)
		return
	}
	window, err := parseDuration("confirmation_window", req.ConfirmationWindow)
	if err != nil {
		s.fail(c, err)
		return
	}
	e, err := s.reg.CreatePaymentEscrow(caller(c), seller, simplepay.Settings{
		Assets:             assets,
		MaxUSD:             maxUSD,
		ConfirmationWindow: window,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewPaymentEscrow(e))
}

func (s *Server) handleGetPaymentEscrow(c *gin.Context) {
	e, ok := s.paymentEscrow(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, viewPaymentEscrow(e))
}

// --- configuration ---

// updateReservationRequest carries optional changes. Fields are applied in
// declaration order and the first rejected change stops the update.
type updateReservationRequest struct {
	Stage              *string    `json:"stage"`
	MintPrice          *string    `json:"mint_price"`
	WhitelistPrice     *string    `json:"whitelist_price"`
	MinQuantity        *uint64    `json:"min_quantity"`
	MaxQuantity        *uint64    `json:"max_quantity"`
	SupplyCap          *uint64    `json:"supply_cap"`
	SaleDeadline       *time.Time `json:"sale_deadline"`
	ConfirmationWindow *string    `json:"confirmation_window"`
	AddAssets          []string   `json:"add_assets"`
	RemoveAssets       []string   `json:"remove_assets"`
	AddWhitelist       []string   `json:"add_whitelist"`
	RemoveWhitelist    []string   `json:"remove_whitelist"`
}

func (s *Server) reservationChanges(req *updateReservationRequest, who, seller common.Address, current reservation.Settings) ([]func() error, error) {
	var ops []func() error
	if req.Stage != nil {
		st, err := reservation.ParseStage(*req.Stage)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		ops = append(ops, func() error { return s.reg.ChangeStage(who, seller, st) })
	}
	if req.MintPrice != nil {
		usd, err := parseAmount("mint_price", *req.MintPrice, false)
		if err != nil {
			return nil, err
		}
		ops = append(ops, func() error { return s.reg.ChangeMintPrice(who, seller, usd) })
	}
	if req.WhitelistPrice != nil {
		usd, err := parseAmount("whitelist_price", *req.WhitelistPrice, false)
		if err != nil {
			return nil, err
		}
		ops = append(ops, func() error { return s.reg.ChangeWhitelistPrice(who, seller, usd) })
	}
	if req.MinQuantity != nil || req.MaxQuantity != nil {
		minQty, maxQty := current.MinQuantity, current.MaxQuantity
		if req.MinQuantity != nil {
			minQty = *req.MinQuantity
		}
		if req.MaxQuantity != nil {
			maxQty = *req.MaxQuantity
		}
		ops = append(ops, func() error { return s.reg.ChangeQuantityLimits(who, seller, minQty, maxQty) })
	}
	if req.SupplyCap != nil {
		supplyCap := *req.SupplyCap
		ops = append(ops, func() error { return s.reg.ChangeSupplyCap(who, seller, supplyCap) })
	}
	if req.SaleDeadline != nil {
		deadline := *req.SaleDeadline
		ops = append(ops, func() error { return s.reg.ChangeSaleDeadline(who, seller, deadline) })
	}
	if req.ConfirmationWindow != nil {
		window, err := parseDuration("confirmation_window", *req.ConfirmationWindow)
		if err != nil {
			return nil, err
		}
		ops = append(ops, func() error { return s.reg.ChangeConfirmationWindow(who, seller, window) })
	}
	for _, set := range []struct {
		field     string
		addrs     []string
		supported bool
	}{{"add_assets", req.AddAssets, true}, {"remove_assets", req.RemoveAssets, false}} {
		assets, err := s.assetList(set.field, set.addrs)
		if err != nil {
			return nil, err
		}
		for _, a := range assets {
			supported := set.supported
			ops = append(ops, func() error { return s.reg.SetReservationAsset(who, seller, a, supported) })
		}
	}
	if len(req.AddWhitelist) > 0 {
		buyers, err := addressList("add_whitelist", req.AddWhitelist)
		if err != nil {
			return nil, err
		}
		ops = append(ops, func() error { return s.reg.AddWhitelist(who, seller, buyers...) })
	}
	if len(req.RemoveWhitelist) > 0 {
		buyers, err := addressList("remove_whitelist", req.RemoveWhitelist)
		if err != nil {
			return nil, err
		}
		ops = append(ops, func() error { return s.reg.RemoveWhitelist(who, seller, buyers...) })
	}
	if len(ops) == 0 {
		return nil, errNoChanges
	}
	return ops, nil
}

func (s *Server) handleUpdateReservationEngine(c *gin.Context) {
	e, seller, ok := s.reservationEngine(c)
	if !ok {
		return
	}
	var req updateReservationRequest
	if !s.bind(c, &req) {
		return
	}
	ops, err := s.reservationChanges(&req, caller(c), seller, e.Settings())
	if err != nil {
		s.fail(c, err)
		return
	}
	if !s.apply(c, ops) {
		return
	}
	c.JSON(http.StatusOK, viewReservationEngine(e))
}

// updateEscrowRequest carries optional changes. An empty max_usd removes the
// deposit limit.
type updateEscrowRequest struct {
	MaxUSD             *string  `json:"max_usd"`
	ConfirmationWindow *string  `json:"confirmation_window"`
	AddAssets          []string `json:"add_assets"`
	RemoveAssets       []string `json:"remove_assets"`
}

func (s *Server) handleUpdatePaymentEscrow(c *gin.Context) {
	e, ok := s.paymentEscrow(c)
	if !ok {
		return
	}
	var req updateEscrowRequest
	if !s.bind(c, &req) {
		return
	}
	who, seller := caller(c), e.Seller()

	var ops []func() error
	if req.MaxUSD != nil {
		usd, err := optionalAmount("max_usd", *req.MaxUSD)
		if err != nil {
			s.fail(c, err)
			return
		}
		ops = append(ops, func() error { return s.reg.SetPaymentMaxUSD(who, seller, usd) })
	}
	if req.ConfirmationWindow != nil {
		window, err := parseDuration("confirmation_window", *req.ConfirmationWindow)
		if err != nil {
			s.fail(c, err)
			return
		}
		ops = append(ops, func() error { return s.reg.SetPaymentConfirmationWindow(who, seller, window) })
	}
	for _, set := range []struct {
		field     string
		addrs     []string
		supported bool
	}{{"add_assets", req.AddAssets, true}, {"remove_assets", req.RemoveAssets, false}} {
		assets, err := s.assetList(set.field, set.addrs)
		if err != nil {
			s.fail(c, err)
			return
		}
		for _, a := range assets {
			supported := set.supported
			ops = append(ops, func() error { return s.reg.SetPaymentAsset(who, seller, a, supported) })
		}
	}
	if len(ops) == 0 {
		s.fail(c, errNoChanges)
		return
	}
	if !s.apply(c, ops) {
		return
	}
	c.JSON(http.StatusOK, viewPaymentEscrow(e))
}

func (s *Server) apply(c *gin.Context, ops []func() error) bool {
	for _, op := range ops {
		if err := op(); err != nil {
			s.fail(c, err)
			return false
		}
	}
	return true
}

// --- payouts ---

type payoutFunc func(ctx context.Context, caller common.Address, asset ledger.Asset) (*big.Int, error)

// payout binds an asset request and pays it through fn.
func (s *Server) payout(c *gin.Context, fn payoutFunc) {
	var req assetRequest
	if !s.bind(c, &req) {
		return
	}
	a, err := s.asset(req.Asset)
	if err != nil {
		s.fail(c, err)
		return
	}
	paid, err := fn(c.Request.Context(), caller(c), a)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": viewAsset(a), "amount": paid.String()})
}

func (s *Server) handleWithdrawProceeds(c *gin.Context) {
	if e, _, ok := s.reservationEngine(c); ok {
		s.payout(c, e.WithdrawProceeds)
	}
}

func (s *Server) handleWithdrawReservationFees(c *gin.Context) {
	if e, _, ok := s.reservationEngine(c); ok {
		s.payout(c, e.WithdrawFees)
	}
}

func (s *Server) handleWithdrawPaymentFees(c *gin.Context) {
	if e, ok := s.paymentEscrow(c); ok {
		s.payout(c, e.WithdrawFees)
	}
}

func (s *Server) handleRefund(c *gin.Context) {
	if e, ok := s.paymentEscrow(c); ok {
		s.payout(c, e.Refund)
	}
}

func (s *Server) handleWithdrawDeposit(c *gin.Context) {
	e, ok := s.paymentEscrow(c)
	if !ok {
		return
	}
	p, err := e.Payment(c.Param("proof"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := e.WithdrawDeposit(c.Request.Context(), caller(c), p.Index); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proof_id": p.ProofID, "refunded": true})
}

func (s *Server) handleWithdrawEarnings(c *gin.Context) {
	s.payout(c, s.reg.Recurring().Withdraw)
}

func (s *Server) handleWithdrawSubscriptionFees(c *gin.Context) {
	s.payout(c, s.reg.Recurring().WithdrawFees)
}

// --- subscription terms ---

type setupRequest struct {
	USDValue string `json:"usd_value" binding:"required"`
	Duration string `json:"duration" binding:"required"`
}

// handleSetup publishes terms. A seller publishes its own; a validator
// publishes on the seller's behalf.
func (s *Server) handleSetup(c *gin.Context) {
	seller, err := pathAddress(c, "seller")
	if err != nil {
		s.fail(c, err)
		return
	}
	var req setupRequest
	if !s.bind(c, &req) {
		return
	}
	usd, err := parseAmount("usd_value", req.USDValue, false)
	if err != nil {
		s.fail(c, err)
		return
	}
	period, err := parseDuration("duration", req.Duration)
	if err != nil {
		s.fail(c, err)
		return
	}
	id := c.Param("id")
	if who := caller(c); who == seller {
		err = s.reg.Recurring().Setup(who, id, usd, period)
	} else {
		err = s.reg.SetupSubscription(who, seller, id, usd, period)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	s.writeTerms(c, http.StatusCreated, seller, id)
}

func (s *Server) handleDisable(c *gin.Context) { s.toggleTerms(c, true) }

func (s *Server) handleEnable(c *gin.Context) { s.toggleTerms(c, false) }

func (s *Server) toggleTerms(c *gin.Context, disable bool) {
	seller, err := pathAddress(c, "seller")
	if err != nil {
		s.fail(c, err)
		return
	}
	if caller(c) != seller {
		s.fail(c, recurring.ErrNotSeller)
		return
	}
	id := c.Param("id")
	subs := s.reg.Recurring()
	if disable {
		err = subs.Disable(seller, id)
	} else {
		err = subs.Enable(seller, id)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	s.writeTerms(c, http.StatusOK, seller, id)
}

func (s *Server) handleSubscriptionAssets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"assets": viewAssets(s.reg.Recurring().Assets())})
}

func (s *Server) handleAddSubscriptionAsset(c *gin.Context) { s.setSubscriptionAsset(c, true) }

func (s *Server) handleRemoveSubscriptionAsset(c *gin.Context) { s.setSubscriptionAsset(c, false) }

func (s *Server) setSubscriptionAsset(c *gin.Context, supported bool) {
	a, err := s.asset(c.Param("asset"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.reg.SetSubscriptionAsset(caller(c), a, supported); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": viewAsset(a), "supported": supported})
}

// --- platform ---

func (s *Server) handleGetFees(c *gin.Context) {
	c.JSON(http.StatusOK, s.reg.Fees())
}

func (s *Server) handleSetFees(c *gin.Context) {
	var req revshare.Schedule
	if !s.bind(c, &req) {
		return
	}
	if err := s.reg.SetFees(caller(c), req); err != nil {
		if errors.Is(err, revshare.ErrInvalidBps) {
			err = fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.reg.Fees())
}

func (s *Server) handlePause(c *gin.Context) { s.setPaused(c, true) }

func (s *Server) handleUnpause(c *gin.Context) { s.setPaused(c, false) }

func (s *Server) setPaused(c *gin.Context, paused bool) {
	var err error
	if paused {
		err = s.reg.Pause(caller(c))
	} else {
		err = s.reg.Unpause(caller(c))
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": s.reg.Roles().Paused()})
}
