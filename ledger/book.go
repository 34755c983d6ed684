package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Book tracks withdrawable balances per asset and account. It is not safe for
// concurrent use; engines guard it with their own Guard.
type Book struct {
	balances map[common.Address]map[common.Address]*big.Int
}

// NewBook returns an empty book.
func NewBook() *Book {
	return &Book{balances: make(map[common.Address]map[common.Address]*big.Int)}
}

// Balance returns a copy of the balance of account in asset.
func (b *Book) Balance(asset, account common.Address) *big.Int {
	if v, ok := b.balances[asset][account]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// Credit adds amount to the balance of account in asset.
func (b *Book) Credit(asset, account common.Address, amount *big.Int) error {
	if err := CheckAmount(amount); err != nil {
		return err
	}
	accounts := b.balances[asset]
	if accounts == nil {
		accounts = make(map[common.Address]*big.Int)
		b.balances[asset] = accounts
	}
	cur, ok := accounts[account]
	if !ok {
		cur = new(big.Int)
		accounts[account] = cur
	}
	cur.Add(cur, amount)
	return nil
}

// Debit subtracts amount from the balance of account in asset.
func (b *Book) Debit(asset, account common.Address, amount *big.Int) error {
	if err := CheckAmount(amount); err != nil {
		return err
	}
	cur := b.Balance(asset, account)
	if cur.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, cur, amount)
	}
	if amount.Sign() == 0 {
		return nil
	}
	b.balances[asset][account] = cur.Sub(cur, amount)
	return nil
}

// Take zeroes the balance of account in asset and returns what it held.
func (b *Book) Take(asset, account common.Address) *big.Int {
	v := b.Balance(asset, account)
	if accounts := b.balances[asset]; accounts != nil {
		delete(accounts, account)
	}
	return v
}

// Total returns the sum of all balances held in asset.
func (b *Book) Total(asset common.Address) *big.Int {
	total := new(big.Int)
	for _, v := range b.balances[asset] {
		total.Add(total, v)
	}
	return total
}
