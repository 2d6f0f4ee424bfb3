package lending

import (
	"moneymarket/core/events"
	"moneymarket/crypto"
	"moneymarket/native/lending/validation"
)

// SetUserEMode switches caller into eMode category categoryID, or out of
// eMode with 0. Every asset the account borrows must belong to the new
// category and leaving a category must keep the account healthy.
func (e *Engine) SetUserEMode(caller crypto.Address, categoryID uint8) error {
	return e.execute("set_user_emode", true, func(tx *txn) error {
		return tx.setUserEMode(caller, categoryID)
	})
}

func (tx *txn) setUserEMode(caller crypto.Address, categoryID uint8) error {
	category, err := tx.state.EModeCategory(categoryID)
	if err != nil {
		return err
	}
	userCfg, err := tx.state.UserConfiguration(caller)
	if err != nil {
		return err
	}
	borrowed, err := tx.borrowedCategories(userCfg.ActiveIDs(), userCfg.IsBorrowing)
	if err != nil {
		return err
	}
	if err := validation.ValidateSetUserEMode(category, categoryID, userCfg, borrowed); err != nil {
		return err
	}
	prev, err := tx.state.UserEMode(caller)
	if err != nil {
		return err
	}
	if err := tx.state.PutUserEMode(caller, categoryID); err != nil {
		return err
	}
	if prev != 0 {
		account, err := tx.accountData(caller, userCfg, categoryID)
		if err != nil {
			return err
		}
		if err := validation.ValidateHealthFactor(account); err != nil {
			return err
		}
	}
	tx.emit(events.UserEModeSet{User: caller, CategoryID: categoryID})
	return nil
}

// borrowedCategories lists the eMode category of every reserve id selected
// by borrowing.
func (tx *txn) borrowedCategories(ids []uint16, borrowing func(uint16) bool) ([]uint8, error) {
	list, err := tx.state.ReservesList()
	if err != nil {
		return nil, err
	}
	var out []uint8
	for _, id := range ids {
		if !borrowing(id) {
			continue
		}
		r, err := tx.reserveByID(list, id)
		if err != nil {
			return nil, err
		}
		if r != nil {
			out = append(out, r.Config().EModeCategory)
		}
	}
	return out, nil
}
