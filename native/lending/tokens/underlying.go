package tokens

import (
	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
	"moneymarket/crypto"
	"moneymarket/native/lending/wadray"
)

// BalanceStore persists plain asset balances.
type BalanceStore interface {
	Balance(asset, holder crypto.Address) (*uint256.Int, error)
	SetBalance(asset, holder crypto.Address, amount *uint256.Int) error
}

// Underlying moves one underlying asset between accounts. Reserve liquidity
// is the balance held by the reserve's receipt token account.
type Underlying struct {
	store BalanceStore
	asset crypto.Address
}

// NewUnderlying binds a ledger to one asset.
func NewUnderlying(store BalanceStore, asset crypto.Address) *Underlying {
	return &Underlying{store: store, asset: asset}
}

// BalanceOf returns the holder's balance.
func (u *Underlying) BalanceOf(holder crypto.Address) (*uint256.Int, error) {
	return u.store.Balance(u.asset, holder)
}

// Transfer moves amount from one holder to another.
func (u *Underlying) Transfer(from, to crypto.Address, amount *uint256.Int) error {
	if amount.IsZero() || from.Equal(to) {
		return nil
	}
	fromBalance, err := u.BalanceOf(from)
	if err != nil {
		return err
	}
	if amount.Gt(fromBalance) {
		return lerrors.ErrInsufficientBalance
	}
	toBalance, err := u.BalanceOf(to)
	if err != nil {
		return err
	}
	nextTo, err := wadray.Add(toBalance, amount)
	if err != nil {
		return err
	}
	if err := u.store.SetBalance(u.asset, from, new(uint256.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return u.store.SetBalance(u.asset, to, nextTo)
}

// Credit increases a holder's balance out of thin air. It backs genesis
// allocations and test funding.
func (u *Underlying) Credit(holder crypto.Address, amount *uint256.Int) error {
	balance, err := u.BalanceOf(holder)
	if err != nil {
		return err
	}
	next, err := wadray.Add(balance, amount)
	if err != nil {
		return err
	}
	return u.store.SetBalance(u.asset, holder, next)
}
