// Package tokens implements the ledgers the lending engine moves value
// through: scaled receipt and debt token balances, and the underlying asset
// balances held by accounts and reserves.
package tokens

import (
	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
	"moneymarket/crypto"
	"moneymarket/native/lending/wadray"
)

// ScaledStore persists scaled token balances.
type ScaledStore interface {
	ScaledBalance(token, holder crypto.Address) (*uint256.Int, error)
	SetScaledBalance(token, holder crypto.Address, amount *uint256.Int) error
	ScaledTotalSupply(token crypto.Address) (*uint256.Int, error)
	SetScaledTotalSupply(token crypto.Address, amount *uint256.Int) error
}

// ScaledLedger stores balances divided by a growth index so that interest
// accrues without touching every holder. Receipt tokens scale by the
// liquidity index, debt tokens by the variable borrow index.
type ScaledLedger struct {
	store ScaledStore
	token crypto.Address
}

// NewScaledLedger binds a ledger to one token account.
func NewScaledLedger(store ScaledStore, token crypto.Address) *ScaledLedger {
	return &ScaledLedger{store: store, token: token}
}

// ScaledBalanceOf returns the holder's principal-normalised balance.
func (l *ScaledLedger) ScaledBalanceOf(holder crypto.Address) (*uint256.Int, error) {
	return l.store.ScaledBalance(l.token, holder)
}

// ScaledTotalSupply returns the sum of scaled balances.
func (l *ScaledLedger) ScaledTotalSupply() (*uint256.Int, error) {
	return l.store.ScaledTotalSupply(l.token)
}

// BalanceOf returns the holder's balance at the supplied index.
func (l *ScaledLedger) BalanceOf(holder crypto.Address, index *uint256.Int) (*uint256.Int, error) {
	scaled, err := l.ScaledBalanceOf(holder)
	if err != nil {
		return nil, err
	}
	return wadray.RayMul(scaled, index)
}

// TotalSupply returns the total supply at the supplied index.
func (l *ScaledLedger) TotalSupply(index *uint256.Int) (*uint256.Int, error) {
	scaled, err := l.ScaledTotalSupply()
	if err != nil {
		return nil, err
	}
	return wadray.RayMul(scaled, index)
}

// Mint credits amount at index and reports whether the holder's scaled
// balance was zero beforehand.
func (l *ScaledLedger) Mint(holder crypto.Address, amount, index *uint256.Int) (bool, error) {
	scaled, err := wadray.RayDiv(amount, index)
	if err != nil {
		return false, err
	}
	if scaled.IsZero() {
		return false, lerrors.ErrInvalidMintAmount
	}
	prev, err := l.ScaledBalanceOf(holder)
	if err != nil {
		return false, err
	}
	next, err := wadray.Add(prev, scaled)
	if err != nil {
		return false, err
	}
	if err := l.adjustSupply(scaled, true); err != nil {
		return false, err
	}
	if err := l.store.SetScaledBalance(l.token, holder, next); err != nil {
		return false, err
	}
	return prev.IsZero(), nil
}

// Burn debits amount at index. A scaled amount exceeding the holder's
// balance by a single unit of rounding is clamped to the balance.
func (l *ScaledLedger) Burn(holder crypto.Address, amount, index *uint256.Int) error {
	scaled, err := wadray.RayDiv(amount, index)
	if err != nil {
		return err
	}
	if scaled.IsZero() {
		return lerrors.ErrInvalidBurnAmount
	}
	return l.BurnScaled(holder, scaled)
}

// BurnScaled debits an already scaled amount.
func (l *ScaledLedger) BurnScaled(holder crypto.Address, scaled *uint256.Int) error {
	balance, err := l.ScaledBalanceOf(holder)
	if err != nil {
		return err
	}
	scaled = new(uint256.Int).Set(scaled)
	if scaled.Gt(balance) {
		if new(uint256.Int).Sub(scaled, balance).GtUint64(1) {
			return lerrors.ErrInsufficientBalance
		}
		scaled.Set(balance)
	}
	if err := l.adjustSupply(scaled, false); err != nil {
		return err
	}
	return l.store.SetScaledBalance(l.token, holder, new(uint256.Int).Sub(balance, scaled))
}

// Transfer moves amount at index between holders without changing supply.
func (l *ScaledLedger) Transfer(from, to crypto.Address, amount, index *uint256.Int) error {
	scaled, err := wadray.RayDiv(amount, index)
	if err != nil {
		return err
	}
	return l.TransferScaled(from, to, scaled)
}

// TransferScaled moves an already scaled amount between holders.
func (l *ScaledLedger) TransferScaled(from, to crypto.Address, scaled *uint256.Int) error {
	if scaled.IsZero() || from.Equal(to) {
		return nil
	}
	fromBalance, err := l.ScaledBalanceOf(from)
	if err != nil {
		return err
	}
	if scaled.Gt(fromBalance) {
		return lerrors.ErrInsufficientBalance
	}
	toBalance, err := l.ScaledBalanceOf(to)
	if err != nil {
		return err
	}
	nextTo, err := wadray.Add(toBalance, scaled)
	if err != nil {
		return err
	}
	if err := l.store.SetScaledBalance(l.token, from, new(uint256.Int).Sub(fromBalance, scaled)); err != nil {
		return err
	}
	return l.store.SetScaledBalance(l.token, to, nextTo)
}

// TransferOnLiquidation moves amount at index from a liquidated account.
// Like BurnScaled it clamps a single unit of rounding overshoot to the
// sender's balance.
func (l *ScaledLedger) TransferOnLiquidation(from, to crypto.Address, amount, index *uint256.Int) error {
	scaled, err := wadray.RayDiv(amount, index)
	if err != nil {
		return err
	}
	balance, err := l.ScaledBalanceOf(from)
	if err != nil {
		return err
	}
	if scaled.Gt(balance) && !new(uint256.Int).Sub(scaled, balance).GtUint64(1) {
		scaled = balance
	}
	return l.TransferScaled(from, to, scaled)
}

func (l *ScaledLedger) adjustSupply(delta *uint256.Int, increase bool) error {
	supply, err := l.ScaledTotalSupply()
	if err != nil {
		return err
	}
	var next *uint256.Int
	if increase {
		next, err = wadray.Add(supply, delta)
	} else {
		next, err = wadray.Sub(supply, delta)
	}
	if err != nil {
		return err
	}
	return l.store.SetScaledTotalSupply(l.token, next)
}
