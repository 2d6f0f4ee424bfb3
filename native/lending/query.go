package lending

import (
	"github.com/holiman/uint256"

	"moneymarket/crypto"
	"moneymarket/native/lending/reserve"
)

// Reserve returns a copy of the reserve listed for asset with its indexes
// projected to now.
func (e *Engine) Reserve(asset crypto.Address) (*reserve.Data, error) {
	var out *reserve.Data
	err := e.view(func(tx *txn) error {
		r, err := tx.reserve(asset)
		if err != nil {
			return err
		}
		out = r.Clone()
		if out.LiquidityIndex, err = NormalizedIncome(r, tx.now); err != nil {
			return err
		}
		out.VariableBorrowIndex, err = NormalizedDebt(r, tx.now)
		return err
	})
	return out, err
}

// ReservesList returns the listed assets in reserve id order.
func (e *Engine) ReservesList() ([]crypto.Address, error) {
	var out []crypto.Address
	err := e.view(func(tx *txn) error {
		list, err := tx.state.ReservesList()
		if err != nil {
			return err
		}
		out = make([]crypto.Address, 0, len(list))
		for _, asset := range list {
			if !asset.IsZero() {
				out = append(out, asset)
			}
		}
		return nil
	})
	return out, err
}

func (e *Engine) UserConfiguration(user crypto.Address) (reserve.UserConfiguration, error) {
	var out reserve.UserConfiguration
	err := e.view(func(tx *txn) error {
		var err error
		out, err = tx.state.UserConfiguration(user)
		return err
	})
	return out, err
}

func (e *Engine) UserEMode(user crypto.Address) (uint8, error) {
	var out uint8
	err := e.view(func(tx *txn) error {
		var err error
		out, err = tx.state.UserEMode(user)
		return err
	})
	return out, err
}

// EModeCategory returns the category definition, or nil when undefined.
func (e *Engine) EModeCategory(id uint8) (*reserve.EModeCategory, error) {
	var out *reserve.EModeCategory
	err := e.view(func(tx *txn) error {
		var err error
		out, err = tx.state.EModeCategory(id)
		return err
	})
	return out, err
}

// ReceiptBalance is user's supplied balance of asset including accrued
// interest.
func (e *Engine) ReceiptBalance(asset, user crypto.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := e.view(func(tx *txn) error {
		r, err := tx.reserve(asset)
		if err != nil {
			return err
		}
		out, err = tx.receiptBalance(r, user)
		return err
	})
	return out, err
}

// DebtBalance is user's variable debt in asset including accrued interest.
func (e *Engine) DebtBalance(asset, user crypto.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := e.view(func(tx *txn) error {
		r, err := tx.reserve(asset)
		if err != nil {
			return err
		}
		out, err = tx.debtBalance(r, user)
		return err
	})
	return out, err
}

// UnderlyingBalance is holder's balance of the underlying asset.
func (e *Engine) UnderlyingBalance(asset, holder crypto.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := e.view(func(tx *txn) error {
		var err error
		out, err = tx.state.Balance(asset, holder)
		return err
	})
	return out, err
}
