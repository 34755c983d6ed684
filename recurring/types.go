package recurring

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libescrow-go/ledger"
)

// Terms are the immutable price and period of one seller subscription.
// Disabled blocks new subscribers and renewals.
type Terms struct {
	Seller    common.Address `json:"seller"`
	ID        string         `json:"id"`
	USDValue  *big.Int       `json:"usd_value"`
	Duration  time.Duration  `json:"duration"`
	CreatedAt time.Time      `json:"created_at"`
	Disabled  bool           `json:"disabled"`
}

func (t *Terms) clone() Terms {
	cp := *t
	cp.USDValue = new(big.Int).Set(t.USDValue)
	return cp
}

// Canceller names who ended a subscription.
type Canceller string

const (
	CancelledByBuyer     Canceller = "buyer"
	CancelledBySeller    Canceller = "seller"
	CancelledByValidator Canceller = "validator"
)

// Subscription is one buyer's payment record under a proof id.
type Subscription struct {
	Buyer          common.Address `json:"buyer"`
	ProofID        string         `json:"proof_id"`
	Seller         common.Address `json:"seller"`
	SubscriptionID string         `json:"subscription_id"`
	Asset          ledger.Asset   `json:"asset"`
	Value          *big.Int       `json:"value"`
	LastPaidAt     time.Time      `json:"last_paid_at"`
	Payments       uint64         `json:"payments"`
	RenewEligible  bool           `json:"renew_eligible"`
	CancelledBy    Canceller      `json:"cancelled_by,omitempty"`
}

// NextDue returns when the subscription may next be renewed.
func (s *Subscription) NextDue(period time.Duration) time.Time {
	return s.LastPaidAt.Add(period)
}

func (s *Subscription) clone() Subscription {
	cp := *s
	cp.Value = new(big.Int).Set(s.Value)
	return cp
}

type termsKey struct {
	seller common.Address
	id     string
}

type subKey struct {
	buyer common.Address
	proof string
}
