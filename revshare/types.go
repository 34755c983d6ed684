// Package revshare divides payments between sellers, fee collectors and other
// payees. All arithmetic is exact over big.Int; rounding remainders always go
// to the seller side so no value is created or lost.
package revshare

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MaxBps is the basis-point denominator.
const MaxBps = 10_000

// Entry is a payee and its relative weight.
type Entry struct {
	Address common.Address
	Share   uint64
}

// Distribution is a single payout.
type Distribution struct {
	Address common.Address
	Amount  *big.Int
}

// Schedule holds the per-product fee rates in basis points.
type Schedule struct {
	MintBps      uint16 `json:"mint_bps"`
	PayBps       uint16 `json:"pay_bps"`
	RecurringBps uint16 `json:"recurring_bps"`
}

// Validate checks every rate in the schedule.
func (s Schedule) Validate() error {
	for _, bps := range []uint16{s.MintBps, s.PayBps, s.RecurringBps} {
		if err := ValidateBps(bps); err != nil {
			return err
		}
	}
	return nil
}
