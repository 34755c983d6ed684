package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/bitfsorg/libescrow-go/ledger"
	"github.com/bitfsorg/libescrow-go/recurring"
	"github.com/bitfsorg/libescrow-go/relay"
	"github.com/bitfsorg/libescrow-go/reservation"
	"github.com/bitfsorg/libescrow-go/simplepay"
	"github.com/bitfsorg/libescrow-go/store"
)

func (s *Server) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		s.fail(c, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return false
	}
	return true
}

// --- quote ---

func (s *Server) handleQuote(c *gin.Context) {
	a, err := s.asset(c.Query("asset"))
	if err != nil {
		s.fail(c, err)
		return
	}
	usd, err := parseAmount("usd", c.Query("usd"), false)
	if err != nil {
		s.fail(c, err)
		return
	}
	out, err := s.prices.UsdToAsset(c.Request.Context(), usd, a)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": viewAsset(a), "usd": usd.String(), "amount": out.String()})
}

// --- reservations ---

func (s *Server) reservationEngine(c *gin.Context) (*reservation.Engine, common.Address, bool) {
	seller, err := pathAddress(c, "seller")
	if err != nil {
		s.fail(c, err)
		return nil, seller, false
	}
	e, err := s.reg.ReservationEngine(seller)
	if err != nil {
		s.fail(c, err)
		return nil, seller, false
	}
	return e, seller, true
}

func pathIndex(c *gin.Context) (uint64, error) {
	idx, err := strconv.ParseUint(c.Param("index"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: index %q", ErrBadRequest, c.Param("index"))
	}
	return idx, nil
}

// reserveRequest carries mint_price per unit; the charge is mint_price times
// quantity.
type reserveRequest struct {
	Asset     string `json:"asset" binding:"required"`
	MintPrice string `json:"mint_price" binding:"required"`
	Quantity  uint64 `json:"quantity"`
	Value     string `json:"value"`
}

func (s *Server) handleReserve(c *gin.Context) {
	e, seller, ok := s.reservationEngine(c)
	if !ok {
		return
	}
	var req reserveRequest
	if !s.bind(c, &req) {
		return
	}
	a, err := s.asset(req.Asset)
	if err != nil {
		s.fail(c, err)
		return
	}
	price, err := parseAmount("mint_price", req.MintPrice, false)
	if err != nil {
		s.fail(c, err)
		return
	}
	value, err := parseAmount("value", req.Value, true)
	if err != nil {
		s.fail(c, err)
		return
	}
	item := reservation.Item{Seller: seller, MintPrice: price, Quantity: req.Quantity}
	idx, err := e.Reserve(c.Request.Context(), caller(c), item, a, ledger.Pay(value))
	if err != nil {
		s.fail(c, err)
		return
	}
	r, err := e.Reservation(idx)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewReservation(r))
}

func (s *Server) handleGetReservation(c *gin.Context) {
	e, _, ok := s.reservationEngine(c)
	if !ok {
		return
	}
	idx, err := pathIndex(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	r, err := e.Reservation(idx)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewReservation(r))
}

func (s *Server) handleConfirmReservation(c *gin.Context) {
	seller, err := pathAddress(c, "seller")
	if err != nil {
		s.fail(c, err)
		return
	}
	idx, err := pathIndex(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.reg.ConfirmReservation(c.Request.Context(), caller(c), seller, idx); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"index": idx, "received": true})
}

func (s *Server) handleWithdrawReservation(c *gin.Context) {
	e, _, ok := s.reservationEngine(c)
	if !ok {
		return
	}
	idx, err := pathIndex(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := e.Withdraw(c.Request.Context(), caller(c), idx); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"index": idx, "refunded": true})
}

// --- one-time payments ---

func (s *Server) paymentEscrow(c *gin.Context) (*simplepay.Escrow, bool) {
	seller, err := pathAddress(c, "seller")
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	e, err := s.reg.PaymentEscrow(seller)
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return e, true
}

type depositRequest struct {
	Asset    string `json:"asset" binding:"required"`
	USDValue string `json:"usd_value" binding:"required"`
	ProofID  string `json:"proof_id" binding:"required"`
	Value    string `json:"value"`
}

func (s *Server) handleDeposit(c *gin.Context) {
	e, ok := s.paymentEscrow(c)
	if !ok {
		return
	}
	var req depositRequest
	if !s.bind(c, &req) {
		return
	}
	a, err := s.asset(req.Asset)
	if err != nil {
		s.fail(c, err)
		return
	}
	usd, err := parseAmount("usd_value", req.USDValue, false)
	if err != nil {
		s.fail(c, err)
		return
	}
	value, err := parseAmount("value", req.Value, true)
	if err != nil {
		s.fail(c, err)
		return
	}
	if _, err := e.Deposit(c.Request.Context(), caller(c), a, usd, req.ProofID, ledger.Pay(value)); err != nil {
		s.fail(c, err)
		return
	}
	p, err := e.Payment(req.ProofID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewPayment(p))
}

func (s *Server) handleGetPayment(c *gin.Context) {
	e, ok := s.paymentEscrow(c)
	if !ok {
		return
	}
	p, err := e.Payment(c.Param("proof"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewPayment(p))
}

func (s *Server) handleConfirmPayment(c *gin.Context) {
	seller, err := pathAddress(c, "seller")
	if err != nil {
		s.fail(c, err)
		return
	}
	proof := c.Param("proof")
	if err := s.reg.ConfirmPayment(c.Request.Context(), caller(c), seller, proof); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proof_id": proof, "received": true})
}

type assetRequest struct {
	Asset string `json:"asset" binding:"required"`
}

func (s *Server) handleWithdrawFund(c *gin.Context) {
	if e, ok := s.paymentEscrow(c); ok {
		s.payout(c, e.WithdrawFund)
	}
}

// --- subscriptions ---

type subscribeRequest struct {
	ProofID string `json:"proof_id" binding:"required"`
	Asset   string `json:"asset" binding:"required"`
}

func (s *Server) handleSubscribe(c *gin.Context) {
	seller, err := pathAddress(c, "seller")
	if err != nil {
		s.fail(c, err)
		return
	}
	var req subscribeRequest
	if !s.bind(c, &req) {
		return
	}
	a, err := s.asset(req.Asset)
	if err != nil {
		s.fail(c, err)
		return
	}
	subs := s.reg.Recurring()
	buyer := caller(c)
	if err := subs.Subscribe(c.Request.Context(), buyer, seller, c.Param("id"), req.ProofID, a); err != nil {
		s.fail(c, err)
		return
	}
	sub, err := subs.Subscription(buyer, req.ProofID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewSubscription(sub))
}

func (s *Server) handleGetTerms(c *gin.Context) {
	seller, err := pathAddress(c, "seller")
	if err != nil {
		s.fail(c, err)
		return
	}
	s.writeTerms(c, http.StatusOK, seller, c.Param("id"))
}

func (s *Server) writeTerms(c *gin.Context, status int, seller common.Address, id string) {
	t, err := s.reg.Recurring().Terms(seller, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(status, viewTerms(t))
}

type subscriptionRef struct {
	Buyer   string `json:"buyer" binding:"required"`
	ProofID string `json:"proof_id" binding:"required"`
	// By names the canceller for /cancel: buyer, seller or validator.
	By string `json:"by"`
}

func (s *Server) bindRef(c *gin.Context) (common.Address, *subscriptionRef, bool) {
	var req subscriptionRef
	if !s.bind(c, &req) {
		return common.Address{}, nil, false
	}
	if !common.IsHexAddress(req.Buyer) {
		s.fail(c, fmt.Errorf("%w: buyer %q", ErrBadRequest, req.Buyer))
		return common.Address{}, nil, false
	}
	return common.HexToAddress(req.Buyer), &req, true
}

func (s *Server) handleRenew(c *gin.Context) {
	buyer, req, ok := s.bindRef(c)
	if !ok {
		return
	}
	subs := s.reg.Recurring()
	if err := subs.Renew(c.Request.Context(), caller(c), buyer, req.ProofID); err != nil {
		s.fail(c, err)
		return
	}
	sub, err := subs.Subscription(buyer, req.ProofID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewSubscription(sub))
}

func (s *Server) handleCancel(c *gin.Context) {
	buyer, req, ok := s.bindRef(c)
	if !ok {
		return
	}
	subs := s.reg.Recurring()
	var err error
	switch recurring.Canceller(req.By) {
	case recurring.CancelledByBuyer, "":
		if buyer != caller(c) {
			err = fmt.Errorf("%w: buyer cancellation must come from the buyer", ErrBadRequest)
			break
		}
		err = subs.Unsubscribe(caller(c), req.ProofID)
	case recurring.CancelledBySeller:
		err = subs.CancelBySeller(caller(c), buyer, req.ProofID)
	case recurring.CancelledByValidator:
		err = subs.CancelByValidator(caller(c), buyer, req.ProofID)
	default:
		err = fmt.Errorf("%w: by %q", ErrBadRequest, req.By)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	sub, err := subs.Subscription(buyer, req.ProofID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewSubscription(sub))
}

// --- relay and journal ---

func (s *Server) handleRelay(c *gin.Context) {
	var env relay.Envelope
	if !s.bind(c, &env) {
		return
	}
	outcome, err := s.inbox.Deliver(c.Request.Context(), &env)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": env.Message.ID(), "outcome": outcome.String()})
}

func (s *Server) handleEvents(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusOK, gin.H{"events": []*store.Event{}})
		return
	}
	f := store.Filter{
		Engine:  c.Query("engine"),
		Kind:    c.Query("kind"),
		Subject: c.Query("subject"),
		Limit:   100,
	}
	if v := c.Query("seller"); v != "" {
		if !common.IsHexAddress(v) {
			s.fail(c, fmt.Errorf("%w: seller %q", ErrBadRequest, v))
			return
		}
		f.Seller = common.HexToAddress(v)
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxEventLimit {
			s.fail(c, fmt.Errorf("%w: limit %q", ErrBadRequest, v))
			return
		}
		f.Limit = n
	}
	evs, err := s.journal.List(f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evs})
}
