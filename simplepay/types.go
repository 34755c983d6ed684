package simplepay

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libescrow-go/ledger"
	"github.com/bitfsorg/libescrow-go/revshare"
)

// Payment is one proof-keyed deposit.
type Payment struct {
	Index     uint64         `json:"index"`
	ProofID   string         `json:"proof_id"`
	Buyer     common.Address `json:"buyer"`
	Seller    common.Address `json:"seller"`
	Asset     ledger.Asset   `json:"asset"`
	USDValue  *big.Int       `json:"usd_value"`
	Value     *big.Int       `json:"value"`
	CreatedAt time.Time      `json:"created_at"`
	Deadline  time.Time      `json:"deadline"`
	Received  bool           `json:"received"`
	Refunded  bool           `json:"refunded"`
}

// Pending reports whether the payment is neither confirmed nor refunded.
func (p *Payment) Pending() bool { return !p.Received && !p.Refunded }

func (p *Payment) clone() Payment {
	cp := *p
	cp.USDValue = new(big.Int).Set(p.USDValue)
	cp.Value = new(big.Int).Set(p.Value)
	return cp
}

// Settings is the escrow configuration. A nil MaxUSD accepts any value.
type Settings struct {
	Assets             []ledger.Asset `json:"assets"`
	MaxUSD             *big.Int       `json:"max_usd,omitempty"`
	ConfirmationWindow time.Duration  `json:"confirmation_window"`
	FeeBps             uint16         `json:"fee_bps"`
}

// Validate checks the settings.
func (s *Settings) Validate() error {
	if s.MaxUSD != nil && s.MaxUSD.Sign() <= 0 {
		return fmt.Errorf("%w: max usd must be positive", ErrInvalidSettings)
	}
	if s.ConfirmationWindow < 0 {
		return fmt.Errorf("%w: negative confirmation window", ErrInvalidSettings)
	}
	if err := revshare.ValidateBps(s.FeeBps); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return nil
}
