package api

import (
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/bitfsorg/libescrow-go/ledger"
)

// Bank is the asset ledger behind custody. *token.Bank implements it.
type Bank interface {
	Approve(asset ledger.Asset, owner, spender common.Address, amount *big.Int) error
	Allowance(asset ledger.Asset, owner, spender common.Address) *big.Int
	BalanceOf(asset ledger.Asset, account common.Address) *big.Int
	Mint(asset ledger.Asset, to common.Address, amount *big.Int) error
}

type approveRequest struct {
	Asset   string `json:"asset" binding:"required"`
	Spender string `json:"spender" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
}

// handleApprove lets the caller authorize an engine to pull fungible payments.
func (s *Server) handleApprove(c *gin.Context) {
	var req approveRequest
	if !s.bind(c, &req) {
		return
	}
	a, err := s.asset(req.Asset)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !common.IsHexAddress(req.Spender) {
		s.fail(c, fmt.Errorf("%w: spender %q", ErrBadRequest, req.Spender))
		return
	}
	amt, err := parseAmount("amount", req.Amount, false)
	if err != nil {
		s.fail(c, err)
		return
	}
	spender := common.HexToAddress(req.Spender)
	if err := s.bank.Approve(a, caller(c), spender, amt); err != nil {
		s.fail(c, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"asset":     viewAsset(a),
		"spender":   spender,
		"allowance": amount(s.bank.Allowance(a, caller(c), spender)),
	})
}

func (s *Server) handleBalance(c *gin.Context) {
	account, err := pathAddress(c, "account")
	if err != nil {
		s.fail(c, err)
		return
	}
	a, err := s.asset(c.Query("asset"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": viewAsset(a), "account": account, "balance": amount(s.bank.BalanceOf(a, account))})
}

type mintRequest struct {
	Asset  string `json:"asset" binding:"required"`
	To     string `json:"to" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

// handleMint credits test funds. Routed only when the server is built with
// Faucet set.
func (s *Server) handleMint(c *gin.Context) {
	var req mintRequest
	if !s.bind(c, &req) {
		return
	}
	a, err := s.asset(req.Asset)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !common.IsHexAddress(req.To) {
		s.fail(c, fmt.Errorf("%w: to %q", ErrBadRequest, req.To))
		return
	}
	amt, err := parseAmount("amount", req.Amount, false)
	if err != nil {
		s.fail(c, err)
		return
	}
	to := common.HexToAddress(req.To)
	if err := s.bank.Mint(a, to, amt); err != nil {
		s.fail(c, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	s.log.Info("faucet mint", "asset", a.String(), "to", to.Hex(), "amount", amt.String())
	c.JSON(http.StatusOK, gin.H{"asset": viewAsset(a), "account": to, "balance": amount(s.bank.BalanceOf(a, to))})
}
