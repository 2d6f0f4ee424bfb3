package lending

import (
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
	"moneymarket/core/events"
	"moneymarket/crypto"
	"moneymarket/native/lending/acl"
	"moneymarket/native/lending/rates"
	"moneymarket/native/lending/reserve"
	"moneymarket/native/lending/wadray"
)

// Percentage bounds of risk parameters, in basis points.
const (
	percentageFactor = 10000
	maxReserveFactor = percentageFactor
)

type authorizer func(r acl.RoleReader, addr crypto.Address) error

// reserveChange mutates cfg and reports the parameter's old and new values.
type reserveChange func(tx *txn, r *reserve.Data, cfg *reserve.Configuration) (old, next string, err error)

// configure applies one administrative change to asset's configuration.
// Changes that alter the interest rates accrue the reserve first and reprice
// it afterwards.
func (e *Engine) configure(op, parameter string, caller, asset crypto.Address, authorize authorizer, reprice bool, change reserveChange) error {
	return e.execute(op, false, func(tx *txn) error {
		if err := authorize(tx.state, caller); err != nil {
			return err
		}
		r, err := tx.reserve(asset)
		if err != nil {
			return err
		}
		if reprice {
			if err := tx.updateState(r); err != nil {
				return err
			}
		}
		cfg := r.Config()
		old, next, err := change(tx, r, &cfg)
		if err != nil {
			return err
		}
		if err := r.SetConfig(cfg); err != nil {
			return err
		}
		if reprice {
			if err := tx.updateInterestRates(r, wadray.Zero(), wadray.Zero()); err != nil {
				return err
			}
		} else if err := tx.putReserve(r); err != nil {
			return err
		}
		tx.emit(events.ReserveConfigChanged{Asset: asset, Parameter: parameter, Old: old, New: next})
		return nil
	})
}

func formatBool(v bool) string   { return strconv.FormatBool(v) }
func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }
func formatU16(v uint16) string  { return strconv.FormatUint(uint64(v), 10) }

func formatTriple(a, b, c uint16) string {
	return formatU16(a) + "/" + formatU16(b) + "/" + formatU16(c)
}

func formatStrategy(p rates.Params) string {
	parts := []string{"0", "0", "0", "0"}
	for i, v := range []*uint256.Int{p.OptimalUsageRatio, p.BaseVariableBorrowRate, p.VariableRateSlope1, p.VariableRateSlope2} {
		if v != nil {
			parts[i] = v.Dec()
		}
	}
	return strings.Join(parts, "/")
}

// checkNoSuppliers refuses changes that need an empty receipt token.
func (tx *txn) checkNoSuppliers(r *reserve.Data) error {
	supply, err := tx.receiptLedger(r).ScaledTotalSupply()
	if err != nil {
		return err
	}
	if !supply.IsZero() || !r.AccruedToTreasury.IsZero() {
		return lerrors.ErrReserveLiquidityNotZero
	}
	return nil
}

// checkNoBorrowers refuses changes that need an empty debt token.
func (tx *txn) checkNoBorrowers(r *reserve.Data) error {
	supply, err := tx.debtLedger(r).ScaledTotalSupply()
	if err != nil {
		return err
	}
	if !supply.IsZero() {
		return lerrors.ErrReserveDebtNotZero
	}
	return nil
}

// SetReserveActive activates or deactivates a reserve. Only a reserve without
// suppliers may be deactivated.
func (e *Engine) SetReserveActive(caller, asset crypto.Address, active bool) error {
	return e.configure("set_reserve_active", "active", caller, asset, acl.OnlyPoolAdmin, false,
		func(tx *txn, r *reserve.Data, cfg *reserve.Configuration) (string, string, error) {
			if !active {
				if err := tx.checkNoSuppliers(r); err != nil {
					return "", "", err
				}
			}
			old := cfg.Active
			cfg.Active = active
			return formatBool(old), formatBool(active), nil
		})
}

// SetReserveFreeze stops new supplies and borrows while keeping withdrawals,
// repayments and liquidations open.
func (e *Engine) SetReserveFreeze(caller, asset crypto.Address, freeze bool) error {
	return e.configure("set_reserve_freeze", "frozen", caller, asset, acl.OnlyRiskOrPoolAdmin, false,
		func(_ *txn, _ *reserve.Data, cfg *reserve.Configuration) (string, string, error) {
			old := cfg.Frozen
			cfg.Frozen = freeze
			return formatBool(old), formatBool(freeze), nil
		})
}

// SetReservePause halts every user operation on the reserve.
func (e *Engine) SetReservePause(caller, asset crypto.Address, paused bool) error {
	return e.configure("set_reserve_pause", "paused", caller, asset, acl.OnlyEmergencyOrPoolAdmin, false,
		func(_ *txn, _ *reserve.Data, cfg *reserve.Configuration) (string, string, error) {
			old := cfg.Paused
			cfg.Paused = paused
			return formatBool(old), formatBool(paused), nil
		})
}

// SetPoolPause pauses or unpauses every listed reserve.
func (e *Engine) SetPoolPause(caller crypto.Address, paused bool) error {
	return e.execute("set_pool_pause", false, func(tx *txn) error {
		if err := acl.OnlyEmergencyAdmin(tx.state, caller); err != nil {
			return err
		}
		listed, err := tx.listedReserves()
		if err != nil {
			return err
		}
		for _, r := range listed {
			cfg := r.Config()
			old := cfg.Paused
			cfg.Paused = paused
			if err := r.SetConfig(cfg); err != nil {
				return err
			}
			if err := tx.putReserve(r); err != nil {
				return err
			}
			tx.emit(events.ReserveConfigChanged{Asset: r.Asset, Parameter: "paused", Old: formatBool(old), New: formatBool(paused)})
		}
		return nil
	})
}

func (e *Engine) SetReserveBorrowing(caller, asset crypto.Address, enabled bool) error {
	return e.configure("set_reserve_borrowing", "borrowing_enabled", caller, asset, acl.OnlyRiskOrPoolAdmin, false,
		func(_ *txn, _ *reserve.Data, cfg *reserve.Configuration) (string, string, error) {
			old := cfg.BorrowingEnabled
			cfg.BorrowingEnabled = enabled
			return formatBool(old), formatBool(enabled), nil
		})
}

func (e *Engine) SetReserveFlashLoaning(caller, asset crypto.Address, enabled bool) error {
	return e.configure("set_reserve_flash_loaning", "flash_loan_enabled", caller, asset, acl.OnlyRiskOrPoolAdmin, false,
		func(_ *txn, _ *reserve.Data, cfg *reserve.Configuration) (string, string, error) {
			old := cfg.FlashLoanEnabled
			cfg.FlashLoanEnabled = enabled
			return formatBool(old), formatBool(enabled), nil
		})
}

// ConfigureReserveAsCollateral sets the LTV, liquidation threshold and
// liquidation bonus. A zero threshold disables the asset as collateral and
// requires a zero bonus and no suppliers.
func (e *Engine) ConfigureReserveAsCollateral(caller, asset crypto.Address, ltv, threshold, bonus uint16) error {
	return e.configure("configure_reserve_as_collateral", "collateral", caller, asset, acl.OnlyRiskOrPoolAdmin, false,
		func(tx *txn, r *reserve.Data, cfg *reserve.Configuration) (string, string, error) {
			if ltv > threshold {
				return "", "", lerrors.ErrInvalidReserveParams
			}
			if threshold != 0 {
				if bonus <= percentageFactor {
					return "", "", lerrors.ErrInvalidReserveParams
				}
				covered, err := wadray.PercentMulU64(wadray.Zero().SetUint64(uint64(threshold)), uint64(bonus))
				if err != nil {
					return "", "", err
				}
				if covered.GtUint64(percentageFactor) {
					return "", "", lerrors.ErrInvalidReserveParams
				}
			} else {
				if bonus != 0 {
					return "", "", lerrors.ErrInvalidReserveParams
				}
				if err := tx.checkNoSuppliers(r); err != nil {
					return "", "", err
				}
			}
			old := formatTriple(cfg.LTV, cfg.LiquidationThreshold, cfg.LiquidationBonus)
			cfg.LTV, cfg.LiquidationThreshold, cfg.LiquidationBonus = ltv, threshold, bonus
			return old, formatTriple(ltv, threshold, bonus), nil
		})
}

// SetReserveFactor changes the share of interest booked to the treasury.
func (e *Engine) SetReserveFactor(caller, asset crypto.Address, factor uint16) error {
	return e.configure("set_reserve_factor", "reserve_factor", caller, asset, acl.OnlyRiskOrPoolAdmin, true,
		func(_ *txn, _ *reserve.Data, cfg *reserve.Configuration) (string, string, error) {
			if factor > maxReserveFactor {
				return "", "", lerrors.ErrInvalidReserveFactor
			}
			old := cfg.ReserveFactor
			cfg.ReserveFactor = factor
			return formatU16(old), formatU16(factor), nil
		})
}

// SetBorrowCap sets the borrow cap in whole units; 0 disables it.
func (e *Engine) SetBorrowCap(caller, asset crypto.Address, limit uint64) error {
	return e.configure("set_borrow_cap", "borrow_cap", caller, asset, acl.OnlyRiskOrPoolAdmin, false,
		func(_ *txn, _ *reserve.Data, cfg *reserve.Configuration) (string, string, error) {
			if limit > reserve.MaxValidBorrowCap {
				return "", "", lerrors.ErrInvalidBorrowCap
			}
			old := cfg.BorrowCap
			cfg.BorrowCap = limit
			return formatUint(old), formatUint(limit), nil
		})
}

// SetSupplyCap sets the supply cap in whole units; 0 disables it.
func (e *Engine) SetSupplyCap(caller, asset crypto.Address, limit uint64) error {
	return e.configure("set_supply_cap", "supply_cap", caller, asset, acl.OnlyRiskOrPoolAdmin, false,
		func(_ *txn, _ *reserve.Data, cfg *reserve.Configuration) (string, string, error) {
			if limit > reserve.MaxValidSupplyCap {
				return "", "", lerrors.ErrInvalidSupplyCap
			}
			old := cfg.SupplyCap
			cfg.SupplyCap = limit
			return formatUint(old), formatUint(limit), nil
		})
}

// SetDebtCeiling makes the asset isolated collateral with the given ceiling
// (two decimals), or removes isolation with 0. An asset can only become
// isolated while it has no suppliers; removing isolation resets its
// outstanding isolated debt.
func (e *Engine) SetDebtCeiling(caller, asset crypto.Address, ceiling uint64) error {
	return e.configure("set_debt_ceiling", "debt_ceiling", caller, asset, acl.OnlyRiskOrPoolAdmin, false,
		func(tx *txn, r *reserve.Data, cfg *reserve.Configuration) (string, string, error) {
			if ceiling > reserve.MaxValidDebtCeiling {
				return "", "", lerrors.ErrInvalidDebtCeiling
			}
			old := cfg.DebtCeiling
			if old == 0 && ceiling != 0 {
				if err := tx.checkNoSuppliers(r); err != nil {
					return "", "", err
				}
			}
			cfg.DebtCeiling = ceiling
			if ceiling == 0 && !r.IsolationModeTotalDebt.IsZero() {
				r.IsolationModeTotalDebt = wadray.Zero()
				tx.emit(events.IsolationModeTotalDebtUpdated{Asset: asset, TotalDebt: wadray.Zero()})
			}
			return formatUint(old), formatUint(ceiling), nil
		})
}

func (e *Engine) SetBorrowableInIsolation(caller, asset crypto.Address, borrowable bool) error {
	return e.configure("set_borrowable_in_isolation", "borrowable_in_isolation", caller, asset, acl.OnlyRiskOrPoolAdmin, false,
		func(_ *txn, _ *reserve.Data, cfg *reserve.Configuration) (string, string, error) {
			old := cfg.BorrowableInIsolation
			cfg.BorrowableInIsolation = borrowable
			return formatBool(old), formatBool(borrowable), nil
		})
}

// SetSiloedBorrowing marks the asset as one that must be borrowed alone. It
// can only be switched on while the asset has no borrowers.
func (e *Engine) SetSiloedBorrowing(caller, asset crypto.Address, siloed bool) error {
	return e.configure("set_siloed_borrowing", "siloed_borrowing", caller, asset, acl.OnlyRiskOrPoolAdmin, false,
		func(tx *txn, r *reserve.Data, cfg *reserve.Configuration) (string, string, error) {
			if siloed {
				if err := tx.checkNoBorrowers(r); err != nil {
					return "", "", err
				}
			}
			old := cfg.SiloedBorrowing
			cfg.SiloedBorrowing = siloed
			return formatBool(old), formatBool(siloed), nil
		})
}

// SetLiquidationProtocolFee sets the share of the liquidation bonus kept by
// the protocol.
func (e *Engine) SetLiquidationProtocolFee(caller, asset crypto.Address, fee uint16) error {
	return e.configure("set_liquidation_protocol_fee", "liquidation_protocol_fee", caller, asset, acl.OnlyRiskOrPoolAdmin, false,
		func(_ *txn, _ *reserve.Data, cfg *reserve.Configuration) (string, string, error) {
			if fee > percentageFactor {
				return "", "", lerrors.ErrInvalidLiquidationFee
			}
			old := cfg.LiquidationProtocolFee
			cfg.LiquidationProtocolFee = fee
			return formatU16(old), formatU16(fee), nil
		})
}

func (e *Engine) SetUnbackedMintCap(caller, asset crypto.Address, limit uint64) error {
	return e.configure("set_unbacked_mint_cap", "unbacked_mint_cap", caller, asset, acl.OnlyRiskOrPoolAdmin, false,
		func(_ *txn, _ *reserve.Data, cfg *reserve.Configuration) (string, string, error) {
			if limit > reserve.MaxValidUnbackedMintCap {
				return "", "", lerrors.ErrInvalidUnbackedMintCap
			}
			old := cfg.UnbackedMintCap
			cfg.UnbackedMintCap = limit
			return formatUint(old), formatUint(limit), nil
		})
}

// SetAssetEModeCategory tags the asset with an eMode category, or untags it
// with 0. The category must be defined with a liquidation threshold above
// the asset's own.
func (e *Engine) SetAssetEModeCategory(caller, asset crypto.Address, categoryID uint8) error {
	return e.configure("set_asset_emode_category", "emode_category", caller, asset, acl.OnlyRiskOrPoolAdmin, false,
		func(tx *txn, _ *reserve.Data, cfg *reserve.Configuration) (string, string, error) {
			if categoryID != 0 {
				category, err := tx.state.EModeCategory(categoryID)
				if err != nil {
					return "", "", err
				}
				if !category.Defined() || category.LiquidationThreshold <= cfg.LiquidationThreshold {
					return "", "", lerrors.ErrInvalidEModeCategoryAssign
				}
			}
			old := cfg.EModeCategory
			cfg.EModeCategory = categoryID
			return formatUint(uint64(old)), formatUint(uint64(categoryID)), nil
		})
}

// SetReserveInterestRateStrategy replaces the reserve's rate curve and
// reprices it.
func (e *Engine) SetReserveInterestRateStrategy(caller, asset crypto.Address, strategy rates.Params) error {
	return e.configure("set_reserve_interest_rate_strategy", "interest_rate_strategy", caller, asset, acl.OnlyRiskOrPoolAdmin, true,
		func(_ *txn, r *reserve.Data, _ *reserve.Configuration) (string, string, error) {
			if err := strategy.Validate(); err != nil {
				return "", "", err
			}
			old := formatStrategy(r.Strategy)
			r.Strategy = strategy.Clone()
			return old, formatStrategy(strategy), nil
		})
}

// EModeCategoryInput defines an eMode category.
type EModeCategoryInput struct {
	ID                   uint8
	LTV                  uint16
	LiquidationThreshold uint16
	LiquidationBonus     uint16
	PriceSource          crypto.Address
	Label                string
}

// SetEModeCategory creates or updates an eMode category. Its LTV and
// liquidation threshold must exceed those of every asset already tagged with
// it.
func (e *Engine) SetEModeCategory(caller crypto.Address, in EModeCategoryInput) error {
	return e.execute("set_emode_category", false, func(tx *txn) error {
		if err := acl.OnlyRiskOrPoolAdmin(tx.state, caller); err != nil {
			return err
		}
		if in.ID == 0 {
			return lerrors.ErrEModeCategoryReserved
		}
		if in.LTV == 0 || in.LiquidationThreshold == 0 || in.LTV > in.LiquidationThreshold || in.LiquidationBonus <= percentageFactor {
			return lerrors.ErrInvalidEModeCategoryParams
		}
		covered, err := wadray.PercentMulU64(wadray.Zero().SetUint64(uint64(in.LiquidationThreshold)), uint64(in.LiquidationBonus))
		if err != nil {
			return err
		}
		if covered.GtUint64(percentageFactor) {
			return lerrors.ErrInvalidEModeCategoryParams
		}
		listed, err := tx.listedReserves()
		if err != nil {
			return err
		}
		for _, r := range listed {
			cfg := r.Config()
			if cfg.EModeCategory != in.ID {
				continue
			}
			if in.LTV <= cfg.LTV || in.LiquidationThreshold <= cfg.LiquidationThreshold {
				return lerrors.ErrInvalidEModeCategoryParams
			}
		}
		if err := tx.state.PutEModeCategory(in.ID, &reserve.EModeCategory{
			LTV:                  in.LTV,
			LiquidationThreshold: in.LiquidationThreshold,
			LiquidationBonus:     in.LiquidationBonus,
			PriceSource:          in.PriceSource,
			Label:                in.Label,
		}); err != nil {
			return err
		}
		tx.emit(events.EModeCategoryAdded{
			CategoryID:           in.ID,
			LTV:                  in.LTV,
			LiquidationThreshold: in.LiquidationThreshold,
			LiquidationBonus:     in.LiquidationBonus,
			PriceSource:          in.PriceSource,
			Label:                in.Label,
		})
		return nil
	})
}
