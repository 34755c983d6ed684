package revshare

import (
	"fmt"
	"math/big"
)

// Split divides value into a seller part and a fee part at feeBps. It
// distributes value over a fee share of feeBps and a seller share of the rest,
// so the fee is rounded down and seller + fee == value always holds.
func Split(value *big.Int, feeBps uint16) (seller, fee *big.Int, err error) {
	if value == nil || value.Sign() < 0 {
		return nil, nil, ErrNegativeValue
	}
	if err := ValidateBps(feeBps); err != nil {
		return nil, nil, err
	}
	switch feeBps {
	case 0:
		return new(big.Int).Set(value), new(big.Int), nil
	case MaxBps:
		return new(big.Int), new(big.Int).Set(value), nil
	}

	parts, err := Distribute(value, []Entry{
		{Share: uint64(feeBps)},
		{Share: uint64(MaxBps - feeBps)},
	})
	if err != nil {
		return nil, nil, err
	}
	fee, seller = parts[0].Amount, parts[1].Amount
	if err := ValidateConservation(value, seller, fee); err != nil {
		return nil, nil, err
	}
	return seller, fee, nil
}

// Distribute divides total among entries in proportion to their shares.
// The last entry gets the remainder to avoid integer division precision loss.
func Distribute(total *big.Int, entries []Entry) ([]Distribution, error) {
	if total == nil || total.Sign() < 0 {
		return nil, ErrNegativeValue
	}
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}

	totalShares := new(big.Int)
	for i, e := range entries {
		if e.Share == 0 {
			return nil, fmt.Errorf("%w: entry %d", ErrZeroShares, i)
		}
		totalShares.Add(totalShares, new(big.Int).SetUint64(e.Share))
	}

	out := make([]Distribution, len(entries))
	distributed := new(big.Int)
	for i, e := range entries {
		out[i].Address = e.Address
		if i == len(entries)-1 {
			out[i].Amount = new(big.Int).Sub(total, distributed)
			continue
		}
		amount := new(big.Int).Mul(total, new(big.Int).SetUint64(e.Share))
		amount.Quo(amount, totalShares)
		out[i].Amount = amount
		distributed.Add(distributed, amount)
	}
	return out, nil
}
