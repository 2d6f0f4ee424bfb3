package lending

import (
	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
	"moneymarket/core/events"
	"moneymarket/crypto"
	"moneymarket/native/lending/acl"
	"moneymarket/native/lending/reserve"
	"moneymarket/native/lending/validation"
	"moneymarket/native/lending/wadray"
)

// Supply moves amount of asset from caller into the reserve and credits
// receipt tokens to onBehalfOf. The first supply of an asset becomes
// collateral when the automatic collateral rules allow it.
func (e *Engine) Supply(caller, asset crypto.Address, amount *uint256.Int, onBehalfOf crypto.Address) error {
	return e.execute("supply", true, func(tx *txn) error {
		return tx.supply(caller, asset, amount, onBehalfOf)
	})
}

func (tx *txn) supply(caller, asset crypto.Address, amount *uint256.Int, onBehalfOf crypto.Address) error {
	r, err := tx.reserve(asset)
	if err != nil {
		return err
	}
	if err := tx.updateState(r); err != nil {
		return err
	}
	supplied, err := tx.totalSupplied(r)
	if err != nil {
		return err
	}
	if err := validation.ValidateSupply(r.Config(), amount, supplied); err != nil {
		return err
	}
	if err := tx.updateInterestRates(r, amount, new(uint256.Int)); err != nil {
		return err
	}
	if err := tx.underlying(r).Transfer(caller, r.ReceiptToken, amount); err != nil {
		return err
	}
	first, err := tx.receiptLedger(r).Mint(onBehalfOf, amount, r.LiquidityIndex)
	if err != nil {
		return err
	}
	if first {
		if err := tx.autoEnableCollateral(r, onBehalfOf, acl.IsIsolatedCollateralSupplier(tx.state, caller)); err != nil {
			return err
		}
	}
	tx.emit(events.Supply{Asset: asset, User: caller, OnBehalfOf: onBehalfOf, Amount: new(uint256.Int).Set(amount)})
	return nil
}

// totalSupplied is the receipt supply including the treasury's unminted
// share, at the reserve's current liquidity index.
func (tx *txn) totalSupplied(r *reserve.Data) (*uint256.Int, error) {
	scaled, err := tx.receiptLedger(r).ScaledTotalSupply()
	if err != nil {
		return nil, err
	}
	if scaled, err = wadray.Add(scaled, r.AccruedToTreasury); err != nil {
		return nil, err
	}
	return wadray.RayMul(scaled, r.LiquidityIndex)
}

func (tx *txn) autoEnableCollateral(r *reserve.Data, holder crypto.Address, isolatedSupplier bool) error {
	userCfg, err := tx.state.UserConfiguration(holder)
	if err != nil {
		return err
	}
	isolation, err := tx.isolationModeState(userCfg)
	if err != nil {
		return err
	}
	if !validation.ValidateAutomaticUseAsCollateral(userCfg, isolation.Active, r.Config(), isolatedSupplier) {
		return nil
	}
	if err := userCfg.SetUsingAsCollateral(r.ID, true); err != nil {
		return err
	}
	if err := tx.state.PutUserConfiguration(holder, userCfg); err != nil {
		return err
	}
	tx.emit(events.CollateralToggled{Asset: r.Asset, User: holder, Enabled: true})
	return nil
}

// Withdraw redeems amount of caller's receipt tokens for the underlying asset
// and sends it to to. wadray.MaxUint256 withdraws the whole balance. It
// returns the amount withdrawn.
func (e *Engine) Withdraw(caller, asset crypto.Address, amount *uint256.Int, to crypto.Address) (*uint256.Int, error) {
	var withdrawn *uint256.Int
	err := e.execute("withdraw", true, func(tx *txn) error {
		var err error
		withdrawn, err = tx.withdraw(caller, asset, amount, to)
		return err
	})
	return withdrawn, err
}

func (tx *txn) withdraw(caller, asset crypto.Address, amount *uint256.Int, to crypto.Address) (*uint256.Int, error) {
	r, err := tx.reserve(asset)
	if err != nil {
		return nil, err
	}
	if err := tx.updateState(r); err != nil {
		return nil, err
	}
	ledger := tx.receiptLedger(r)
	scaled, err := ledger.ScaledBalanceOf(caller)
	if err != nil {
		return nil, err
	}
	balance, err := wadray.RayMul(scaled, r.LiquidityIndex)
	if err != nil {
		return nil, err
	}
	if amount == nil {
		amount = new(uint256.Int)
	}
	full := amount.Eq(wadray.MaxUint256) || amount.Eq(balance)
	if amount.Eq(wadray.MaxUint256) {
		amount = balance
	}
	if err := validation.ValidateWithdraw(r.Config(), amount, balance); err != nil {
		return nil, err
	}
	if err := tx.updateInterestRates(r, new(uint256.Int), amount); err != nil {
		return nil, err
	}

	userCfg, err := tx.state.UserConfiguration(caller)
	if err != nil {
		return nil, err
	}
	if full {
		err = ledger.BurnScaled(caller, scaled)
	} else {
		err = ledger.Burn(caller, amount, r.LiquidityIndex)
	}
	if err != nil {
		return nil, err
	}
	remaining, err := ledger.ScaledBalanceOf(caller)
	if err != nil {
		return nil, err
	}
	collateral := userCfg.IsUsingAsCollateral(r.ID)
	if collateral && remaining.IsZero() {
		if err := userCfg.SetUsingAsCollateral(r.ID, false); err != nil {
			return nil, err
		}
		if err := tx.state.PutUserConfiguration(caller, userCfg); err != nil {
			return nil, err
		}
		tx.emit(events.CollateralToggled{Asset: asset, User: caller, Enabled: false})
	}
	if err := tx.underlying(r).Transfer(r.ReceiptToken, to, amount); err != nil {
		return nil, err
	}

	if collateral && userCfg.IsBorrowingAny() {
		if err := tx.validateHFAndLTV(caller, userCfg, r.Config()); err != nil {
			return nil, err
		}
	}
	tx.emit(events.Withdraw{Asset: asset, User: caller, To: to, Amount: new(uint256.Int).Set(amount)})
	return amount, nil
}

// validateHFAndLTV re-evaluates the account after collateral was reduced.
func (tx *txn) validateHFAndLTV(user crypto.Address, userCfg reserve.UserConfiguration, cfg reserve.Configuration) error {
	eModeID, err := tx.state.UserEMode(user)
	if err != nil {
		return err
	}
	account, err := tx.accountData(user, userCfg, eModeID)
	if err != nil {
		return err
	}
	return validation.ValidateHFAndLTV(account, cfg)
}

// SetUserUseReserveAsCollateral enables or disables caller's supply of asset
// as collateral. Disabling is refused when it would leave the account
// liquidatable.
func (e *Engine) SetUserUseReserveAsCollateral(caller, asset crypto.Address, enabled bool) error {
	return e.execute("set_use_reserve_as_collateral", true, func(tx *txn) error {
		return tx.setUseReserveAsCollateral(caller, asset, enabled)
	})
}

func (tx *txn) setUseReserveAsCollateral(caller, asset crypto.Address, enabled bool) error {
	r, err := tx.reserve(asset)
	if err != nil {
		return err
	}
	balance, err := tx.receiptBalance(r, caller)
	if err != nil {
		return err
	}
	cfg := r.Config()
	if err := validation.ValidateSetUseReserveAsCollateral(cfg, balance); err != nil {
		return err
	}
	userCfg, err := tx.state.UserConfiguration(caller)
	if err != nil {
		return err
	}
	if userCfg.IsUsingAsCollateral(r.ID) == enabled {
		return nil
	}

	if enabled {
		isolation, err := tx.isolationModeState(userCfg)
		if err != nil {
			return err
		}
		if !validation.ValidateUseAsCollateral(userCfg, isolation.Active, cfg) {
			return lerrors.ErrUserInIsolationModeOrLTV
		}
	}
	if err := userCfg.SetUsingAsCollateral(r.ID, enabled); err != nil {
		return err
	}
	if err := tx.state.PutUserConfiguration(caller, userCfg); err != nil {
		return err
	}
	if !enabled {
		if err := tx.validateHFAndLTV(caller, userCfg, cfg); err != nil {
			return err
		}
	}
	tx.emit(events.CollateralToggled{Asset: asset, User: caller, Enabled: enabled})
	return nil
}
