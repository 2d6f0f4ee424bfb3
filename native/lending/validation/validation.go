// Package validation holds the pure precondition checks run by the lending
// engine before it mutates state. Predicates receive every value they need
// already derived; none of them read storage.
package validation

import (
	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
	"moneymarket/crypto"
	"moneymarket/native/lending/reserve"
	"moneymarket/native/lending/wadray"
)

// HealthFactorLiquidationThreshold is 1.0 in wad.
var HealthFactorLiquidationThreshold = uint256.NewInt(1_000_000_000_000_000_000)

// AccountData is the aggregated risk position of an account, valued in the
// oracle's base currency.
type AccountData struct {
	TotalCollateralBase  *uint256.Int
	TotalDebtBase        *uint256.Int
	AvailableBorrowsBase *uint256.Int
	// CurrentLTV and CurrentLiquidationThreshold are collateral weighted
	// averages in basis points.
	CurrentLTV                  uint64
	CurrentLiquidationThreshold uint64
	// HealthFactor is a wad; accounts without debt report MaxUint256.
	HealthFactor         *uint256.Int
	HasZeroLTVCollateral bool
}

func isZero(v *uint256.Int) bool {
	return v == nil || v.IsZero()
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

func validateReserveState(cfg reserve.Configuration, rejectFrozen bool) error {
	if !cfg.Active {
		return lerrors.ErrReserveInactive
	}
	if cfg.Paused {
		return lerrors.ErrReservePaused
	}
	if rejectFrozen && cfg.Frozen {
		return lerrors.ErrReserveFrozen
	}
	return nil
}

// capInUnits converts a whole-token cap to the asset's smallest unit.
func capInUnits(capTokens uint64, decimals uint8) (*uint256.Int, error) {
	unit, err := wadray.Pow10(decimals)
	if err != nil {
		return nil, err
	}
	return wadray.Mul(uint256.NewInt(capTokens), unit)
}

// ValidateSupply checks a deposit of amount into a reserve whose current
// receipt supply, treasury accrual included, is totalSupplied.
func ValidateSupply(cfg reserve.Configuration, amount, totalSupplied *uint256.Int) error {
	if isZero(amount) {
		return lerrors.ErrInvalidAmount
	}
	if err := validateReserveState(cfg, true); err != nil {
		return err
	}
	if cfg.SupplyCap == 0 {
		return nil
	}
	limit, err := capInUnits(cfg.SupplyCap, cfg.Decimals)
	if err != nil {
		return err
	}
	next, err := wadray.Add(orZero(totalSupplied), amount)
	if err != nil {
		return err
	}
	if next.Gt(limit) {
		return lerrors.ErrSupplyCapExceeded
	}
	return nil
}

// ValidateWithdraw checks a withdrawal against the account's receipt balance.
func ValidateWithdraw(cfg reserve.Configuration, amount, userBalance *uint256.Int) error {
	if isZero(amount) {
		return lerrors.ErrInvalidAmount
	}
	if amount.Gt(orZero(userBalance)) {
		return lerrors.ErrNotEnoughAvailableBalance
	}
	return validateReserveState(cfg, false)
}

// BorrowParams is the derived context of a borrow request.
type BorrowParams struct {
	Asset  crypto.Address
	Config reserve.Configuration
	Amount *uint256.Int
	// AmountInBase is Amount valued at the price used for risk.
	AmountInBase *uint256.Int
	// ReserveTotalDebt is the reserve's variable debt before the borrow.
	ReserveTotalDebt  *uint256.Int
	UserEModeCategory uint8
	Account           AccountData

	IsolationModeActive    bool
	IsolationModeCeiling   uint64
	IsolationModeTotalDebt *uint256.Int

	UserBorrowingAny      bool
	SiloedBorrowingActive bool
	SiloedBorrowingAsset  crypto.Address
}

// IsolatedDebt converts an asset amount to the two-decimal precision of debt
// ceilings.
func IsolatedDebt(amount *uint256.Int, decimals uint8) (*uint256.Int, error) {
	if decimals >= reserve.DebtCeilingDecimals {
		unit, err := wadray.Pow10(decimals - reserve.DebtCeilingDecimals)
		if err != nil {
			return nil, err
		}
		return wadray.Div(amount, unit)
	}
	unit, err := wadray.Pow10(reserve.DebtCeilingDecimals - decimals)
	if err != nil {
		return nil, err
	}
	return wadray.Mul(amount, unit)
}

// ValidateBorrow checks a variable rate borrow.
func ValidateBorrow(p BorrowParams) error {
	if isZero(p.Amount) {
		return lerrors.ErrInvalidAmount
	}
	if err := validateReserveState(p.Config, true); err != nil {
		return err
	}
	if !p.Config.BorrowingEnabled {
		return lerrors.ErrBorrowingNotEnabled
	}

	if p.Config.BorrowCap != 0 {
		limit, err := capInUnits(p.Config.BorrowCap, p.Config.Decimals)
		if err != nil {
			return err
		}
		next, err := wadray.Add(orZero(p.ReserveTotalDebt), p.Amount)
		if err != nil {
			return err
		}
		if next.Gt(limit) {
			return lerrors.ErrBorrowCapExceeded
		}
	}

	if p.IsolationModeActive {
		if !p.Config.BorrowableInIsolation {
			return lerrors.ErrAssetNotBorrowableIsolation
		}
		added, err := IsolatedDebt(p.Amount, p.Config.Decimals)
		if err != nil {
			return err
		}
		next, err := wadray.Add(orZero(p.IsolationModeTotalDebt), added)
		if err != nil {
			return err
		}
		if next.GtUint64(p.IsolationModeCeiling) {
			return lerrors.ErrDebtCeilingExceeded
		}
	}

	if p.UserEModeCategory != 0 && p.Config.EModeCategory != p.UserEModeCategory {
		return lerrors.ErrInconsistentEModeCategory
	}

	if isZero(p.Account.TotalCollateralBase) {
		return lerrors.ErrCollateralBalanceIsZero
	}
	if p.Account.CurrentLTV == 0 {
		return lerrors.ErrLTVValidationFailed
	}
	if p.Account.HealthFactor == nil || !p.Account.HealthFactor.Gt(HealthFactorLiquidationThreshold) {
		return lerrors.ErrHealthFactorBelowThreshold
	}

	needed, err := wadray.Add(orZero(p.Account.TotalDebtBase), orZero(p.AmountInBase))
	if err != nil {
		return err
	}
	if needed, err = wadray.PercentDivU64(needed, p.Account.CurrentLTV); err != nil {
		return err
	}
	if needed.Gt(p.Account.TotalCollateralBase) {
		return lerrors.ErrCollateralCannotCoverBorrow
	}

	if p.UserBorrowingAny {
		if p.SiloedBorrowingActive {
			if !p.SiloedBorrowingAsset.Equal(p.Asset) {
				return lerrors.ErrSiloedBorrowingViolation
			}
		} else if p.Config.SiloedBorrowing {
			return lerrors.ErrSiloedBorrowingViolation
		}
	}
	return nil
}

// ValidateRepay checks a repayment. Repaying the full debt of another
// account requires an explicit amount.
func ValidateRepay(cfg reserve.Configuration, amount *uint256.Int, caller, onBehalfOf crypto.Address, variableDebt *uint256.Int) error {
	if isZero(amount) {
		return lerrors.ErrInvalidAmount
	}
	if amount.Eq(wadray.MaxUint256) && !caller.Equal(onBehalfOf) {
		return lerrors.ErrNoExplicitAmountOnBehalf
	}
	if err := validateReserveState(cfg, false); err != nil {
		return err
	}
	if isZero(variableDebt) {
		return lerrors.ErrNoDebtOfSelectedType
	}
	return nil
}

// ValidateSetUseReserveAsCollateral checks a collateral toggle.
func ValidateSetUseReserveAsCollateral(cfg reserve.Configuration, userBalance *uint256.Int) error {
	if isZero(userBalance) {
		return lerrors.ErrUnderlyingBalanceZero
	}
	return validateReserveState(cfg, false)
}

// ValidateUseAsCollateral reports whether a reserve may be enabled as
// collateral for the account. Zero LTV assets never qualify; an account
// already holding collateral may add more only when neither side is isolated.
func ValidateUseAsCollateral(user reserve.UserConfiguration, isolationModeActive bool, cfg reserve.Configuration) bool {
	if cfg.LTV == 0 {
		return false
	}
	if !user.IsUsingAsCollateralAny() {
		return true
	}
	return !isolationModeActive && cfg.DebtCeiling == 0
}

// ValidateAutomaticUseAsCollateral is ValidateUseAsCollateral for collateral
// enabled as a side effect of a supply or liquidation. Isolated assets are
// only enabled for callers holding the isolated collateral supplier role.
func ValidateAutomaticUseAsCollateral(user reserve.UserConfiguration, isolationModeActive bool, cfg reserve.Configuration, isolatedSupplier bool) bool {
	if cfg.DebtCeiling != 0 && !isolatedSupplier {
		return false
	}
	return ValidateUseAsCollateral(user, isolationModeActive, cfg)
}

// ValidateHealthFactor rejects positions at or under the liquidation
// threshold.
func ValidateHealthFactor(account AccountData) error {
	if account.HealthFactor == nil || account.HealthFactor.Lt(HealthFactorLiquidationThreshold) {
		return lerrors.ErrHealthFactorBelowThreshold
	}
	return nil
}

// ValidateHFAndLTV is run after collateral leaves an account. While the
// account holds any zero LTV collateral only zero LTV assets may be removed.
func ValidateHFAndLTV(account AccountData, cfg reserve.Configuration) error {
	if err := ValidateHealthFactor(account); err != nil {
		return err
	}
	if account.HasZeroLTVCollateral && cfg.LTV != 0 {
		return lerrors.ErrLTVValidationFailed
	}
	return nil
}

// LiquidationParams is the derived context of a liquidation call.
type LiquidationParams struct {
	CollateralConfig reserve.Configuration
	CollateralID     uint16
	DebtConfig       reserve.Configuration
	User             reserve.UserConfiguration
	// TotalDebt is the account's debt in the debt asset.
	TotalDebt    *uint256.Int
	HealthFactor *uint256.Int
}

// ValidateLiquidationCall checks that the account is liquidatable in the
// requested pair.
func ValidateLiquidationCall(p LiquidationParams) error {
	if !p.CollateralConfig.Active || !p.DebtConfig.Active {
		return lerrors.ErrReserveInactive
	}
	if p.CollateralConfig.Paused || p.DebtConfig.Paused {
		return lerrors.ErrReservePaused
	}
	if p.HealthFactor == nil || !p.HealthFactor.Lt(HealthFactorLiquidationThreshold) {
		return lerrors.ErrHealthFactorNotBelow
	}
	if p.CollateralConfig.LiquidationThreshold == 0 || !p.User.IsUsingAsCollateral(p.CollateralID) {
		return lerrors.ErrCollateralCannotBeLiquidated
	}
	if isZero(p.TotalDebt) {
		return lerrors.ErrSpecifiedCurrencyNotBorrowed
	}
	return nil
}

// ValidateSetUserEMode checks a switch to categoryID. borrowedCategories
// holds the eMode category of every reserve the account borrows.
func ValidateSetUserEMode(category *reserve.EModeCategory, categoryID uint8, user reserve.UserConfiguration, borrowedCategories []uint8) error {
	if categoryID != 0 && !category.Defined() {
		return lerrors.ErrInconsistentEModeCategory
	}
	if user.IsEmpty() || categoryID == 0 {
		return nil
	}
	for _, c := range borrowedCategories {
		if c != categoryID {
			return lerrors.ErrInconsistentEModeCategory
		}
	}
	return nil
}

// DropParams is the derived context of a reserve removal.
type DropParams struct {
	Asset              crypto.Address
	Listed             bool
	VariableDebtSupply *uint256.Int
	ReceiptSupply      *uint256.Int
	AccruedToTreasury  *uint256.Int
}

// ValidateDropReserve allows removing only an empty reserve.
func ValidateDropReserve(p DropParams) error {
	if p.Asset.IsZero() {
		return lerrors.ErrZeroAddressNotValid
	}
	if !p.Listed {
		return lerrors.ErrAssetNotListed
	}
	if !isZero(p.VariableDebtSupply) {
		return lerrors.ErrVariableDebtSupplyNotZero
	}
	if !isZero(p.ReceiptSupply) || !isZero(p.AccruedToTreasury) {
		return lerrors.ErrUnderlyingClaimableRights
	}
	return nil
}
