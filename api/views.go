package api

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libescrow-go/ledger"
	"github.com/bitfsorg/libescrow-go/recurring"
	"github.com/bitfsorg/libescrow-go/reservation"
	"github.com/bitfsorg/libescrow-go/simplepay"
)

// Amounts are rendered as decimal strings.

type assetView struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

func viewAsset(a ledger.Asset) assetView {
	return assetView{Address: a.Address, Symbol: a.Symbol, Decimals: a.Decimals}
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type reservationView struct {
	Index     uint64         `json:"index"`
	Owner     common.Address `json:"owner"`
	CreatedAt time.Time      `json:"created_at"`
	Deadline  time.Time      `json:"deadline"`
	Value     string         `json:"value"`
	Quantity  uint64         `json:"quantity"`
	Asset     assetView      `json:"asset"`
	Received  bool           `json:"received"`
	Refunded  bool           `json:"refunded"`
}

func viewReservation(r reservation.Reservation) reservationView {
	return reservationView{
		Index:     r.Index,
		Owner:     r.Owner,
		CreatedAt: r.CreatedAt,
		Deadline:  r.Deadline,
		Value:     amount(r.Value),
		Quantity:  r.Quantity,
		Asset:     viewAsset(r.Asset),
		Received:  r.Received,
		Refunded:  r.Refunded,
	}
}

type paymentView struct {
	Index     uint64         `json:"index"`
	ProofID   string         `json:"proof_id"`
	Buyer     common.Address `json:"buyer"`
	Seller    common.Address `json:"seller"`
	Asset     assetView      `json:"asset"`
	USDValue  string         `json:"usd_value"`
	Value     string         `json:"value"`
	CreatedAt time.Time      `json:"created_at"`
	Deadline  time.Time      `json:"deadline"`
	Received  bool           `json:"received"`
	Refunded  bool           `json:"refunded"`
}

func viewPayment(p simplepay.Payment) paymentView {
	return paymentView{
		Index:     p.Index,
		ProofID:   p.ProofID,
		Buyer:     p.Buyer,
		Seller:    p.Seller,
		Asset:     viewAsset(p.Asset),
		USDValue:  amount(p.USDValue),
		Value:     amount(p.Value),
		CreatedAt: p.CreatedAt,
		Deadline:  p.Deadline,
		Received:  p.Received,
		Refunded:  p.Refunded,
	}
}

type subscriptionView struct {
	Buyer          common.Address `json:"buyer"`
	ProofID        string         `json:"proof_id"`
	Seller         common.Address `json:"seller"`
	SubscriptionID string         `json:"subscription_id"`
	Asset          assetView      `json:"asset"`
	Value          string         `json:"value"`
	LastPaidAt     time.Time      `json:"last_paid_at"`
	Payments       uint64         `json:"payments"`
	RenewEligible  bool           `json:"renew_eligible"`
	CancelledBy    string         `json:"cancelled_by,omitempty"`
}

func viewSubscription(s recurring.Subscription) subscriptionView {
	return subscriptionView{
		Buyer:          s.Buyer,
		ProofID:        s.ProofID,
		Seller:         s.Seller,
		SubscriptionID: s.SubscriptionID,
		Asset:          viewAsset(s.Asset),
		Value:          amount(s.Value),
		LastPaidAt:     s.LastPaidAt,
		Payments:       s.Payments,
		RenewEligible:  s.RenewEligible,
		CancelledBy:    string(s.CancelledBy),
	}
}

type termsView struct {
	Seller    common.Address `json:"seller"`
	ID        string         `json:"id"`
	USDValue  string         `json:"usd_value"`
	Duration  string         `json:"duration"`
	CreatedAt time.Time      `json:"created_at"`
	Disabled  bool           `json:"disabled"`
}

func viewTerms(t recurring.Terms) termsView {
	return termsView{
		Seller:    t.Seller,
		ID:        t.ID,
		USDValue:  amount(t.USDValue),
		Duration:  t.Duration.String(),
		CreatedAt: t.CreatedAt,
		Disabled:  t.Disabled,
	}
}

func viewAssets(assets []ledger.Asset) []assetView {
	out := make([]assetView, 0, len(assets))
	for _, a := range assets {
		out = append(out, viewAsset(a))
	}
	return out
}

type reservationEngineView struct {
	Seller             common.Address   `json:"seller"`
	Address            common.Address   `json:"address"`
	Collection         common.Address   `json:"collection"`
	Stage              string           `json:"stage"`
	Assets             []assetView      `json:"assets"`
	MintPrice          string           `json:"mint_price"`
	WhitelistPrice     string           `json:"whitelist_price"`
	MinQuantity        uint64           `json:"min_quantity"`
	MaxQuantity        uint64           `json:"max_quantity"`
	SupplyCap          uint64           `json:"supply_cap"`
	SaleDeadline       *time.Time       `json:"sale_deadline,omitempty"`
	ConfirmationWindow string           `json:"confirmation_window"`
	Whitelist          []common.Address `json:"whitelist"`
	FeeBps             uint16           `json:"fee_bps"`
	Reservations       uint64           `json:"reservations"`
	Confirmed          uint64           `json:"confirmed"`
}

func viewReservationEngine(e *reservation.Engine) reservationEngineView {
	st := e.Settings()
	v := reservationEngineView{
		Seller:             e.Seller(),
		Address:            e.Address(),
		Collection:         e.Collection(),
		Stage:              st.Stage.String(),
		Assets:             viewAssets(st.Assets),
		MintPrice:          amount(st.MintPrice),
		WhitelistPrice:     amount(st.WhitelistPrice),
		MinQuantity:        st.MinQuantity,
		MaxQuantity:        st.MaxQuantity,
		SupplyCap:          st.SupplyCap,
		ConfirmationWindow: st.ConfirmationWindow.String(),
		Whitelist:          st.Whitelist,
		FeeBps:             st.FeeBps,
		Reservations:       e.Count(),
		Confirmed:          e.Confirmed(),
	}
	if !st.SaleDeadline.IsZero() {
		d := st.SaleDeadline
		v.SaleDeadline = &d
	}
	return v
}

type paymentEscrowView struct {
	Seller             common.Address `json:"seller"`
	Address            common.Address `json:"address"`
	Assets             []assetView    `json:"assets"`
	MaxUSD             string         `json:"max_usd,omitempty"`
	ConfirmationWindow string         `json:"confirmation_window"`
	FeeBps             uint16         `json:"fee_bps"`
	Payments           uint64         `json:"payments"`
}

func viewPaymentEscrow(e *simplepay.Escrow) paymentEscrowView {
	st := e.Settings()
	v := paymentEscrowView{
		Seller:             e.Seller(),
		Address:            e.Address(),
		Assets:             viewAssets(st.Assets),
		ConfirmationWindow: st.ConfirmationWindow.String(),
		FeeBps:             st.FeeBps,
		Payments:           e.Count(),
	}
	if st.MaxUSD != nil {
		v.MaxUSD = st.MaxUSD.String()
	}
	return v
}
