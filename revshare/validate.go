package revshare

import (
	"fmt"
	"math/big"
)

// ValidateBps rejects rates above MaxBps.
func ValidateBps(bps uint16) error {
	if bps > MaxBps {
		return fmt.Errorf("%w: %d", ErrInvalidBps, bps)
	}
	return nil
}

// ValidateConservation checks that the parts sum exactly to total.
func ValidateConservation(total *big.Int, parts ...*big.Int) error {
	sum := new(big.Int)
	for _, p := range parts {
		if p == nil || p.Sign() < 0 {
			return ErrNegativeValue
		}
		sum.Add(sum, p)
	}
	if total == nil || sum.Cmp(total) != 0 {
		return fmt.Errorf("%w: total=%v parts=%s", ErrConservationViolation, total, sum)
	}
	return nil
}
