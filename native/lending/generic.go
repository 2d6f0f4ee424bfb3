package lending

import (
	"github.com/holiman/uint256"

	"moneymarket/crypto"
	"moneymarket/native/lending/reserve"
	"moneymarket/native/lending/validation"
	"moneymarket/native/lending/wadray"
)

// AccountData is the risk position of an account valued in base currency.
type AccountData = validation.AccountData

// IsolationModeState describes the single isolated collateral of an account,
// if any.
type IsolationModeState struct {
	Active      bool
	Collateral  crypto.Address
	DebtCeiling uint64
}

// SiloedBorrowingState describes the single siloed debt of an account, if
// any.
type SiloedBorrowingState struct {
	Active bool
	Asset  crypto.Address
}

// isolationModeState reports whether the account's only collateral carries a
// debt ceiling.
func (tx *txn) isolationModeState(user reserve.UserConfiguration) (IsolationModeState, error) {
	if !user.IsUsingAsCollateralOne() {
		return IsolationModeState{}, nil
	}
	id, _ := user.FirstCollateralID()
	list, err := tx.state.ReservesList()
	if err != nil {
		return IsolationModeState{}, err
	}
	r, err := tx.reserveByID(list, id)
	if err != nil || r == nil {
		return IsolationModeState{}, err
	}
	ceiling := r.Config().DebtCeiling
	if ceiling == 0 {
		return IsolationModeState{}, nil
	}
	return IsolationModeState{Active: true, Collateral: r.Asset, DebtCeiling: ceiling}, nil
}

// siloedBorrowingState reports whether the account's only debt is a siloed
// asset.
func (tx *txn) siloedBorrowingState(user reserve.UserConfiguration) (SiloedBorrowingState, error) {
	if !user.IsBorrowingOne() {
		return SiloedBorrowingState{}, nil
	}
	id, _ := user.FirstBorrowingID()
	list, err := tx.state.ReservesList()
	if err != nil {
		return SiloedBorrowingState{}, err
	}
	r, err := tx.reserveByID(list, id)
	if err != nil || r == nil {
		return SiloedBorrowingState{}, err
	}
	if !r.Config().SiloedBorrowing {
		return SiloedBorrowingState{}, nil
	}
	return SiloedBorrowingState{Active: true, Asset: r.Asset}, nil
}

// riskParams holds the LTV and liquidation threshold that apply to one
// reserve for one account.
type riskParams struct {
	ltv                  uint64
	liquidationThreshold uint64
	inEMode              bool
}

func effectiveRisk(cfg reserve.Configuration, eModeID uint8, category *reserve.EModeCategory) riskParams {
	if eModeID != 0 && cfg.EModeCategory == eModeID && category != nil {
		return riskParams{
			ltv:                  uint64(category.LTV),
			liquidationThreshold: uint64(category.LiquidationThreshold),
			inEMode:              true,
		}
	}
	return riskParams{ltv: uint64(cfg.LTV), liquidationThreshold: uint64(cfg.LiquidationThreshold)}
}

func toBase(amount, price *uint256.Int, decimals uint8) (*uint256.Int, error) {
	unit, err := wadray.Pow10(decimals)
	if err != nil {
		return nil, err
	}
	return wadray.MulDiv(amount, price, unit)
}

// receiptBalance is the account's receipt token balance at the current
// normalized income.
func (tx *txn) receiptBalance(r *reserve.Data, holder crypto.Address) (*uint256.Int, error) {
	income, err := NormalizedIncome(r, tx.now)
	if err != nil {
		return nil, err
	}
	return tx.receiptLedger(r).BalanceOf(holder, income)
}

// debtBalance is the account's variable debt at the current normalized debt.
func (tx *txn) debtBalance(r *reserve.Data, holder crypto.Address) (*uint256.Int, error) {
	scaled, err := tx.debtLedger(r).ScaledBalanceOf(holder)
	if err != nil || scaled.IsZero() {
		return scaled, err
	}
	index, err := NormalizedDebt(r, tx.now)
	if err != nil {
		return nil, err
	}
	return wadray.RayMul(scaled, index)
}

// accountData aggregates every reserve the account supplies as collateral or
// borrows. Reserves without either bit are never visited.
func (tx *txn) accountData(user crypto.Address, cfg reserve.UserConfiguration, eModeID uint8) (AccountData, error) {
	out := AccountData{
		TotalCollateralBase:  new(uint256.Int),
		TotalDebtBase:        new(uint256.Int),
		AvailableBorrowsBase: new(uint256.Int),
		HealthFactor:         wadray.Max(),
	}
	if cfg.IsEmpty() {
		return out, nil
	}

	var (
		category   *reserve.EModeCategory
		eModePrice *uint256.Int
		err        error
	)
	if eModeID != 0 {
		if category, err = tx.state.EModeCategory(eModeID); err != nil {
			return out, err
		}
		if category != nil && !category.PriceSource.IsZero() {
			if eModePrice, err = tx.price(category.PriceSource); err != nil {
				return out, err
			}
		}
	}
	list, err := tx.state.ReservesList()
	if err != nil {
		return out, err
	}

	weightedLTV := new(uint256.Int)
	weightedThreshold := new(uint256.Int)
	for _, id := range cfg.ActiveIDs() {
		r, err := tx.reserveByID(list, id)
		if err != nil {
			return out, err
		}
		if r == nil {
			continue
		}
		rc := r.Config()
		risk := effectiveRisk(rc, eModeID, category)
		price := eModePrice
		if price == nil || !risk.inEMode {
			if price, err = tx.price(r.Asset); err != nil {
				return out, err
			}
		}

		if rc.LiquidationThreshold != 0 && cfg.IsUsingAsCollateral(id) {
			balance, err := tx.receiptBalance(r, user)
			if err != nil {
				return out, err
			}
			inBase, err := toBase(balance, price, rc.Decimals)
			if err != nil {
				return out, err
			}
			if out.TotalCollateralBase, err = wadray.Add(out.TotalCollateralBase, inBase); err != nil {
				return out, err
			}
			if rc.LTV != 0 {
				weighted, err := wadray.Mul(inBase, uint256.NewInt(risk.ltv))
				if err != nil {
					return out, err
				}
				if weightedLTV, err = wadray.Add(weightedLTV, weighted); err != nil {
					return out, err
				}
			} else {
				out.HasZeroLTVCollateral = true
			}
			weighted, err := wadray.Mul(inBase, uint256.NewInt(risk.liquidationThreshold))
			if err != nil {
				return out, err
			}
			if weightedThreshold, err = wadray.Add(weightedThreshold, weighted); err != nil {
				return out, err
			}
		}

		if cfg.IsBorrowing(id) {
			debt, err := tx.debtBalance(r, user)
			if err != nil {
				return out, err
			}
			inBase, err := toBase(debt, price, rc.Decimals)
			if err != nil {
				return out, err
			}
			if out.TotalDebtBase, err = wadray.Add(out.TotalDebtBase, inBase); err != nil {
				return out, err
			}
		}
	}

	if !out.TotalCollateralBase.IsZero() {
		out.CurrentLTV = new(uint256.Int).Div(weightedLTV, out.TotalCollateralBase).Uint64()
		out.CurrentLiquidationThreshold = new(uint256.Int).Div(weightedThreshold, out.TotalCollateralBase).Uint64()
	}
	if !out.TotalDebtBase.IsZero() {
		adjusted, err := wadray.PercentMulU64(out.TotalCollateralBase, out.CurrentLiquidationThreshold)
		if err != nil {
			return out, err
		}
		if out.HealthFactor, err = wadray.WadDiv(adjusted, out.TotalDebtBase); err != nil {
			return out, err
		}
	}
	borrowable, err := wadray.PercentMulU64(out.TotalCollateralBase, out.CurrentLTV)
	if err != nil {
		return out, err
	}
	out.AvailableBorrowsBase = wadray.SaturatingSub(borrowable, out.TotalDebtBase)
	return out, nil
}

// userAccountData loads the account's configuration and eMode and aggregates
// its position.
func (tx *txn) userAccountData(user crypto.Address) (AccountData, error) {
	cfg, err := tx.state.UserConfiguration(user)
	if err != nil {
		return AccountData{}, err
	}
	eModeID, err := tx.state.UserEMode(user)
	if err != nil {
		return AccountData{}, err
	}
	return tx.accountData(user, cfg, eModeID)
}

// CalculateUserAccountData returns the account's collateral, debt, borrowing
// power and health factor at the engine's current time.
func (e *Engine) CalculateUserAccountData(user crypto.Address) (AccountData, error) {
	var out AccountData
	err := e.view(func(tx *txn) error {
		var err error
		out, err = tx.userAccountData(user)
		return err
	})
	return out, err
}

// IsolationMode reports the account's isolation mode state.
func (e *Engine) IsolationMode(user crypto.Address) (IsolationModeState, error) {
	var out IsolationModeState
	err := e.view(func(tx *txn) error {
		cfg, err := tx.state.UserConfiguration(user)
		if err != nil {
			return err
		}
		out, err = tx.isolationModeState(cfg)
		return err
	})
	return out, err
}

// SiloedBorrowing reports the account's siloed borrowing state.
func (e *Engine) SiloedBorrowing(user crypto.Address) (SiloedBorrowingState, error) {
	var out SiloedBorrowingState
	err := e.view(func(tx *txn) error {
		cfg, err := tx.state.UserConfiguration(user)
		if err != nil {
			return err
		}
		out, err = tx.siloedBorrowingState(cfg)
		return err
	})
	return out, err
}
