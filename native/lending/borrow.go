package lending

import (
	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
	"moneymarket/core/events"
	"moneymarket/crypto"
	"moneymarket/native/lending/reserve"
	"moneymarket/native/lending/validation"
	"moneymarket/native/lending/wadray"
)

// Borrow opens or grows caller's variable rate debt in asset and sends the
// borrowed amount to caller. onBehalfOf must be the caller.
func (e *Engine) Borrow(caller, asset crypto.Address, amount *uint256.Int, onBehalfOf crypto.Address) error {
	return e.execute("borrow", true, func(tx *txn) error {
		return tx.borrow(caller, asset, amount, onBehalfOf)
	})
}

func (tx *txn) borrow(caller, asset crypto.Address, amount *uint256.Int, onBehalfOf crypto.Address) error {
	if !caller.Equal(onBehalfOf) {
		return lerrors.ErrBorrowOnBehalf
	}
	r, err := tx.reserve(asset)
	if err != nil {
		return err
	}
	if err := tx.updateState(r); err != nil {
		return err
	}
	userCfg, err := tx.state.UserConfiguration(onBehalfOf)
	if err != nil {
		return err
	}
	eModeID, err := tx.state.UserEMode(onBehalfOf)
	if err != nil {
		return err
	}
	isolation, err := tx.isolationModeState(userCfg)
	if err != nil {
		return err
	}
	siloed, err := tx.siloedBorrowingState(userCfg)
	if err != nil {
		return err
	}
	account, err := tx.accountData(onBehalfOf, userCfg, eModeID)
	if err != nil {
		return err
	}
	reserveDebt, err := tx.debtLedger(r).TotalSupply(r.VariableBorrowIndex)
	if err != nil {
		return err
	}
	cfg := r.Config()
	params := validation.BorrowParams{
		Asset:                 asset,
		Config:                cfg,
		Amount:                amount,
		ReserveTotalDebt:      reserveDebt,
		UserEModeCategory:     eModeID,
		Account:               account,
		IsolationModeActive:   isolation.Active,
		IsolationModeCeiling:  isolation.DebtCeiling,
		UserBorrowingAny:      userCfg.IsBorrowingAny(),
		SiloedBorrowingActive: siloed.Active,
		SiloedBorrowingAsset:  siloed.Asset,
	}
	var isolated *reserve.Data
	if isolation.Active {
		if isolated, err = tx.reserve(isolation.Collateral); err != nil {
			return err
		}
		params.IsolationModeTotalDebt = isolated.IsolationModeTotalDebt
	}
	if amount != nil && !amount.IsZero() {
		price, err := tx.riskPrice(r, eModeID)
		if err != nil {
			return err
		}
		if params.AmountInBase, err = toBase(amount, price, cfg.Decimals); err != nil {
			return err
		}
	}
	if err := validation.ValidateBorrow(params); err != nil {
		return err
	}

	first, err := tx.debtLedger(r).Mint(onBehalfOf, amount, r.VariableBorrowIndex)
	if err != nil {
		return err
	}
	if first {
		if err := userCfg.SetBorrowing(r.ID, true); err != nil {
			return err
		}
		if err := tx.state.PutUserConfiguration(onBehalfOf, userCfg); err != nil {
			return err
		}
	}
	if isolated != nil {
		added, err := validation.IsolatedDebt(amount, cfg.Decimals)
		if err != nil {
			return err
		}
		if isolated.IsolationModeTotalDebt, err = wadray.Add(isolated.IsolationModeTotalDebt, added); err != nil {
			return err
		}
		if err := tx.putReserve(isolated); err != nil {
			return err
		}
		tx.emit(events.IsolationModeTotalDebtUpdated{
			Asset:     isolated.Asset,
			TotalDebt: new(uint256.Int).Set(isolated.IsolationModeTotalDebt),
		})
	}
	if err := tx.updateInterestRates(r, new(uint256.Int), amount); err != nil {
		return err
	}
	if err := tx.underlying(r).Transfer(r.ReceiptToken, caller, amount); err != nil {
		return err
	}
	tx.emit(events.Borrow{
		Asset:      asset,
		User:       caller,
		OnBehalfOf: onBehalfOf,
		Amount:     new(uint256.Int).Set(amount),
		BorrowRate: new(uint256.Int).Set(r.CurrentVariableBorrowRate),
	})
	return nil
}

// riskPrice is the price of r used for the account's risk, honouring the
// eMode category price source.
func (tx *txn) riskPrice(r *reserve.Data, eModeID uint8) (*uint256.Int, error) {
	if eModeID != 0 && r.Config().EModeCategory == eModeID {
		category, err := tx.state.EModeCategory(eModeID)
		if err != nil {
			return nil, err
		}
		if category != nil && !category.PriceSource.IsZero() {
			return tx.price(category.PriceSource)
		}
	}
	return tx.price(r.Asset)
}

// Repay pays back up to amount of onBehalfOf's debt in asset. With
// useReceiptTokens the caller's own debt is settled by burning its receipt
// tokens. wadray.MaxUint256 repays the whole debt. It returns the amount
// repaid.
func (e *Engine) Repay(caller, asset crypto.Address, amount *uint256.Int, onBehalfOf crypto.Address, useReceiptTokens bool) (*uint256.Int, error) {
	var repaid *uint256.Int
	err := e.execute("repay", true, func(tx *txn) error {
		var err error
		repaid, err = tx.repay(caller, asset, amount, onBehalfOf, useReceiptTokens)
		return err
	})
	return repaid, err
}

func (tx *txn) repay(caller, asset crypto.Address, amount *uint256.Int, onBehalfOf crypto.Address, useReceiptTokens bool) (*uint256.Int, error) {
	if useReceiptTokens {
		onBehalfOf = caller
	}
	r, err := tx.reserve(asset)
	if err != nil {
		return nil, err
	}
	if err := tx.updateState(r); err != nil {
		return nil, err
	}
	debt, err := tx.debtBalance(r, onBehalfOf)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateRepay(r.Config(), amount, caller, onBehalfOf, debt); err != nil {
		return nil, err
	}

	if useReceiptTokens && amount.Eq(wadray.MaxUint256) {
		if amount, err = tx.receiptLedger(r).BalanceOf(caller, r.LiquidityIndex); err != nil {
			return nil, err
		}
	}
	payback := wadray.Min(amount, debt)
	if payback.IsZero() {
		return nil, lerrors.ErrInvalidAmount
	}

	userCfg, err := tx.state.UserConfiguration(onBehalfOf)
	if err != nil {
		return nil, err
	}
	isolation, err := tx.isolationModeState(userCfg)
	if err != nil {
		return nil, err
	}
	if err := tx.burnLiquidatedDebt(r, onBehalfOf, payback, payback.Eq(debt)); err != nil {
		return nil, err
	}
	added := payback
	if useReceiptTokens {
		added = new(uint256.Int)
	}
	if err := tx.updateInterestRates(r, added, new(uint256.Int)); err != nil {
		return nil, err
	}
	if _, err := tx.clearSettledBorrowing(&userCfg, r, onBehalfOf); err != nil {
		return nil, err
	}
	if isolation.Active {
		if err := tx.reduceIsolatedDebt(isolation.Collateral, payback, r.Config().Decimals); err != nil {
			return nil, err
		}
	}

	if useReceiptTokens {
		ledger := tx.receiptLedger(r)
		if err := ledger.Burn(caller, payback, r.LiquidityIndex); err != nil {
			return nil, err
		}
		remaining, err := ledger.ScaledBalanceOf(caller)
		if err != nil {
			return nil, err
		}
		if remaining.IsZero() && userCfg.IsUsingAsCollateral(r.ID) {
			if err := userCfg.SetUsingAsCollateral(r.ID, false); err != nil {
				return nil, err
			}
			tx.emit(events.CollateralToggled{Asset: asset, User: caller, Enabled: false})
		}
	} else if err := tx.underlying(r).Transfer(caller, r.ReceiptToken, payback); err != nil {
		return nil, err
	}
	if err := tx.state.PutUserConfiguration(onBehalfOf, userCfg); err != nil {
		return nil, err
	}

	tx.emit(events.Repay{
		Asset:            asset,
		User:             onBehalfOf,
		Repayer:          caller,
		Amount:           new(uint256.Int).Set(payback),
		UseReceiptTokens: useReceiptTokens,
	})
	return payback, nil
}
