package lending

import (
	"log/slog"

	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
	"moneymarket/core/events"
	"moneymarket/crypto"
	"moneymarket/native/lending/acl"
	"moneymarket/native/lending/reserve"
	"moneymarket/native/lending/validation"
	"moneymarket/native/lending/wadray"
)

const (
	// DefaultLiquidationCloseFactor is the share of a debt position that may
	// be repaid while the health factor is at or above CloseFactorHFThreshold.
	DefaultLiquidationCloseFactor uint64 = 5000
	// MaxLiquidationCloseFactor applies below CloseFactorHFThreshold.
	MaxLiquidationCloseFactor uint64 = 10000
)

// CloseFactorHFThreshold is the health factor (wad) under which a position
// may be liquidated in full.
var CloseFactorHFThreshold = uint256.NewInt(950_000_000_000_000_000)

// LiquidationResult summarises the effects of a successful liquidation.
type LiquidationResult struct {
	// DebtCovered is the debt repaid by the liquidator.
	DebtCovered *uint256.Int
	// CollateralToLiquidator excludes the protocol fee.
	CollateralToLiquidator *uint256.Int
	ProtocolFee            *uint256.Int
	CollateralDisabled     bool
	BorrowingCleared       bool
}

// CloseFactor returns the close factor in basis points for a health factor.
func CloseFactor(healthFactor *uint256.Int) uint64 {
	if healthFactor.Lt(CloseFactorHFThreshold) {
		return MaxLiquidationCloseFactor
	}
	return DefaultLiquidationCloseFactor
}

// MaxLiquidatableDebt bounds a requested repayment by the close factor.
func MaxLiquidatableDebt(totalDebt, debtToCover, healthFactor *uint256.Int) (*uint256.Int, error) {
	limit, err := wadray.PercentMulU64(totalDebt, CloseFactor(healthFactor))
	if err != nil {
		return nil, err
	}
	return wadray.Min(debtToCover, limit), nil
}

// CollateralQuote is the input of CalculateAvailableCollateralToLiquidate.
type CollateralQuote struct {
	CollateralPrice    *uint256.Int
	DebtPrice          *uint256.Int
	CollateralDecimals uint8
	DebtDecimals       uint8
	DebtToCover        *uint256.Int
	// UserCollateralBalance is the borrower's receipt balance in the
	// collateral asset.
	UserCollateralBalance  *uint256.Int
	LiquidationBonus       uint64
	LiquidationProtocolFee uint64
}

// CalculateAvailableCollateralToLiquidate converts DebtToCover into collateral
// including the liquidation bonus. When the borrower's collateral cannot
// cover it the whole balance is seized and the debt is solved back from it.
// The protocol fee is carved out of the bonus share; collateral plus fee
// equals the total seized.
func CalculateAvailableCollateralToLiquidate(q CollateralQuote) (collateral, debt, fee *uint256.Int, err error) {
	collateralUnit, err := wadray.Pow10(q.CollateralDecimals)
	if err != nil {
		return nil, nil, nil, err
	}
	debtUnit, err := wadray.Pow10(q.DebtDecimals)
	if err != nil {
		return nil, nil, nil, err
	}

	num, err := wadray.Mul(q.DebtPrice, q.DebtToCover)
	if err != nil {
		return nil, nil, nil, err
	}
	if num, err = wadray.Mul(num, collateralUnit); err != nil {
		return nil, nil, nil, err
	}
	den, err := wadray.Mul(q.CollateralPrice, debtUnit)
	if err != nil {
		return nil, nil, nil, err
	}
	base, err := wadray.Div(num, den)
	if err != nil {
		return nil, nil, nil, err
	}
	maxCollateral, err := wadray.PercentMulU64(base, q.LiquidationBonus)
	if err != nil {
		return nil, nil, nil, err
	}

	seized := maxCollateral
	debt = new(uint256.Int).Set(q.DebtToCover)
	if maxCollateral.Gt(q.UserCollateralBalance) {
		seized = new(uint256.Int).Set(q.UserCollateralBalance)
		num, err := wadray.Mul(q.CollateralPrice, seized)
		if err != nil {
			return nil, nil, nil, err
		}
		if num, err = wadray.Mul(num, debtUnit); err != nil {
			return nil, nil, nil, err
		}
		den, err := wadray.Mul(q.DebtPrice, collateralUnit)
		if err != nil {
			return nil, nil, nil, err
		}
		needed, err := wadray.Div(num, den)
		if err != nil {
			return nil, nil, nil, err
		}
		if debt, err = wadray.PercentDivU64(needed, q.LiquidationBonus); err != nil {
			return nil, nil, nil, err
		}
	}

	if q.LiquidationProtocolFee == 0 {
		return seized, debt, new(uint256.Int), nil
	}
	principal, err := wadray.PercentDivU64(seized, q.LiquidationBonus)
	if err != nil {
		return nil, nil, nil, err
	}
	bonus := wadray.SaturatingSub(seized, principal)
	if fee, err = wadray.PercentMulU64(bonus, q.LiquidationProtocolFee); err != nil {
		return nil, nil, nil, err
	}
	return new(uint256.Int).Sub(seized, fee), debt, fee, nil
}

// liquidationPricing resolves the bonus and price sources of a liquidation,
// applying the account's eMode category to the legs that belong to it.
type liquidationPricing struct {
	bonus            uint64
	collateralSource crypto.Address
	debtSource       crypto.Address
}

func (tx *txn) liquidationPricing(collateral, debt *reserve.Data, eModeID uint8) (liquidationPricing, error) {
	out := liquidationPricing{
		bonus:            uint64(collateral.Config().LiquidationBonus),
		collateralSource: collateral.Asset,
		debtSource:       debt.Asset,
	}
	if eModeID == 0 {
		return out, nil
	}
	category, err := tx.state.EModeCategory(eModeID)
	if err != nil || category == nil {
		return out, err
	}
	if collateral.Config().EModeCategory == eModeID {
		out.bonus = uint64(category.LiquidationBonus)
		if !category.PriceSource.IsZero() {
			out.collateralSource = category.PriceSource
		}
	}
	if debt.Config().EModeCategory == eModeID && !category.PriceSource.IsZero() {
		out.debtSource = category.PriceSource
	}
	return out, nil
}

// LiquidationCall repays up to debtToCover of user's debt in debtAsset on
// behalf of liquidator and seizes the matching collateral plus bonus. With
// receiveReceipt the liquidator receives receipt tokens, otherwise the
// underlying collateral leaves the pool.
func (e *Engine) LiquidationCall(liquidator, collateralAsset, debtAsset, user crypto.Address, debtToCover *uint256.Int, receiveReceipt bool) (*LiquidationResult, error) {
	var result *LiquidationResult
	err := e.execute("liquidation_call", true, func(tx *txn) error {
		var err error
		result, err = tx.liquidationCall(liquidator, collateralAsset, debtAsset, user, debtToCover, receiveReceipt)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.metrics.RecordLiquidation(collateralAsset.String(), debtAsset.String())
	e.logger.Info("position liquidated",
		slog.String("user", user.String()),
		slog.String("liquidator", liquidator.String()),
		slog.String("collateral", collateralAsset.String()),
		slog.String("debt", debtAsset.String()),
		slog.String("debtCovered", result.DebtCovered.Dec()),
		slog.String("collateralSeized", result.CollateralToLiquidator.Dec()),
		slog.String("protocolFee", result.ProtocolFee.Dec()))
	return result, nil
}

func (tx *txn) liquidationCall(liquidator, collateralAsset, debtAsset, user crypto.Address, debtToCover *uint256.Int, receiveReceipt bool) (*LiquidationResult, error) {
	if debtToCover == nil || debtToCover.IsZero() {
		return nil, lerrors.ErrInvalidAmount
	}
	collateral, err := tx.reserve(collateralAsset)
	if err != nil {
		return nil, err
	}
	debt, err := tx.reserve(debtAsset)
	if err != nil {
		return nil, err
	}
	userCfg, err := tx.state.UserConfiguration(user)
	if err != nil {
		return nil, err
	}
	eModeID, err := tx.state.UserEMode(user)
	if err != nil {
		return nil, err
	}
	isolation, err := tx.isolationModeState(userCfg)
	if err != nil {
		return nil, err
	}

	if err := tx.updateState(debt); err != nil {
		return nil, err
	}
	account, err := tx.accountData(user, userCfg, eModeID)
	if err != nil {
		return nil, err
	}
	userDebt, err := tx.debtBalance(debt, user)
	if err != nil {
		return nil, err
	}
	actualDebt, err := MaxLiquidatableDebt(userDebt, debtToCover, account.HealthFactor)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateLiquidationCall(validation.LiquidationParams{
		CollateralConfig: collateral.Config(),
		CollateralID:     collateral.ID,
		DebtConfig:       debt.Config(),
		User:             userCfg,
		TotalDebt:        userDebt,
		HealthFactor:     account.HealthFactor,
	}); err != nil {
		return nil, err
	}

	pricing, err := tx.liquidationPricing(collateral, debt, eModeID)
	if err != nil {
		return nil, err
	}
	if err := tx.updateState(collateral); err != nil {
		return nil, err
	}
	userCollateral, err := tx.receiptLedger(collateral).BalanceOf(user, collateral.LiquidityIndex)
	if err != nil {
		return nil, err
	}
	collateralPrice, err := tx.price(pricing.collateralSource)
	if err != nil {
		return nil, err
	}
	debtPrice, err := tx.price(pricing.debtSource)
	if err != nil {
		return nil, err
	}
	collateralCfg, debtCfg := collateral.Config(), debt.Config()
	toLiquidator, debtCovered, fee, err := CalculateAvailableCollateralToLiquidate(CollateralQuote{
		CollateralPrice:        collateralPrice,
		DebtPrice:              debtPrice,
		CollateralDecimals:     collateralCfg.Decimals,
		DebtDecimals:           debtCfg.Decimals,
		DebtToCover:            actualDebt,
		UserCollateralBalance:  userCollateral,
		LiquidationBonus:       pricing.bonus,
		LiquidationProtocolFee: uint64(collateralCfg.LiquidationProtocolFee),
	})
	if err != nil {
		return nil, err
	}
	if debtCovered.IsZero() {
		return nil, lerrors.ErrInvalidAmount
	}

	result := &LiquidationResult{DebtCovered: debtCovered, CollateralToLiquidator: toLiquidator, ProtocolFee: fee}
	seizedAll := new(uint256.Int).Add(toLiquidator, fee).Eq(userCollateral)

	if err := tx.burnLiquidatedDebt(debt, user, debtCovered, debtCovered.Eq(userDebt)); err != nil {
		return nil, err
	}
	if result.BorrowingCleared, err = tx.clearSettledBorrowing(&userCfg, debt, user); err != nil {
		return nil, err
	}
	if err := tx.state.PutUserConfiguration(user, userCfg); err != nil {
		return nil, err
	}
	if err := tx.updateInterestRates(debt, debtCovered, new(uint256.Int)); err != nil {
		return nil, err
	}
	if isolation.Active {
		if err := tx.reduceIsolatedDebt(isolation.Collateral, debtCovered, debtCfg.Decimals); err != nil {
			return nil, err
		}
	}

	if receiveReceipt {
		if err := tx.seizeReceiptTokens(collateral, user, liquidator, toLiquidator); err != nil {
			return nil, err
		}
	} else if err := tx.seizeUnderlying(collateral, user, liquidator, toLiquidator); err != nil {
		return nil, err
	}

	if !fee.IsZero() {
		if result.ProtocolFee, err = tx.transferLiquidationFee(collateral, user, fee); err != nil {
			return nil, err
		}
	}

	if result.CollateralDisabled, err = tx.disableSpentCollateral(collateral, user, seizedAll); err != nil {
		return nil, err
	}

	if err := tx.underlying(debt).Transfer(liquidator, debt.ReceiptToken, debtCovered); err != nil {
		return nil, err
	}

	tx.emit(events.LiquidationCall{
		CollateralAsset:            collateralAsset,
		DebtAsset:                  debtAsset,
		User:                       user,
		DebtToCover:                debtCovered,
		LiquidatedCollateralAmount: toLiquidator,
		ProtocolFee:                result.ProtocolFee,
		Liquidator:                 liquidator,
		ReceiveReceiptToken:        receiveReceipt,
	})
	return result, nil
}

// burnLiquidatedDebt burns the covered debt. A fully repaid position burns
// its exact scaled balance so no rounding dust is left behind.
func (tx *txn) burnLiquidatedDebt(debt *reserve.Data, user crypto.Address, amount *uint256.Int, full bool) error {
	ledger := tx.debtLedger(debt)
	if full {
		scaled, err := ledger.ScaledBalanceOf(user)
		if err != nil {
			return err
		}
		return ledger.BurnScaled(user, scaled)
	}
	return ledger.Burn(user, amount, debt.VariableBorrowIndex)
}

// clearSettledBorrowing clears user's borrowing bit for debt once no scaled
// debt is left, whatever amount the burn was asked for. It reports whether the
// bit was cleared.
func (tx *txn) clearSettledBorrowing(userCfg *reserve.UserConfiguration, debt *reserve.Data, user crypto.Address) (bool, error) {
	if !userCfg.IsBorrowing(debt.ID) {
		return false, nil
	}
	remaining, err := tx.debtLedger(debt).ScaledBalanceOf(user)
	if err != nil {
		return false, err
	}
	if !remaining.IsZero() {
		return false, nil
	}
	return true, userCfg.SetBorrowing(debt.ID, false)
}

// disableSpentCollateral clears user's collateral bit after a seizure that
// took the whole balance or left no scaled receipt tokens behind.
func (tx *txn) disableSpentCollateral(collateral *reserve.Data, user crypto.Address, seizedAll bool) (bool, error) {
	userCfg, err := tx.state.UserConfiguration(user)
	if err != nil {
		return false, err
	}
	if !userCfg.IsUsingAsCollateral(collateral.ID) {
		return false, nil
	}
	if !seizedAll {
		remaining, err := tx.receiptLedger(collateral).ScaledBalanceOf(user)
		if err != nil {
			return false, err
		}
		if !remaining.IsZero() {
			return false, nil
		}
	}
	if err := userCfg.SetUsingAsCollateral(collateral.ID, false); err != nil {
		return false, err
	}
	if err := tx.state.PutUserConfiguration(user, userCfg); err != nil {
		return false, err
	}
	tx.emit(events.CollateralToggled{Asset: collateral.Asset, User: user, Enabled: false})
	return true, nil
}

// reduceIsolatedDebt lowers the isolated collateral's outstanding debt by
// repaid, floored at zero.
func (tx *txn) reduceIsolatedDebt(collateralAsset crypto.Address, repaid *uint256.Int, debtDecimals uint8) error {
	isolated, err := tx.reserve(collateralAsset)
	if err != nil {
		return err
	}
	amount, err := validation.IsolatedDebt(repaid, debtDecimals)
	if err != nil {
		return err
	}
	isolated.IsolationModeTotalDebt = wadray.SaturatingSub(isolated.IsolationModeTotalDebt, amount)
	if err := tx.putReserve(isolated); err != nil {
		return err
	}
	tx.emit(events.IsolationModeTotalDebtUpdated{
		Asset:     isolated.Asset,
		TotalDebt: new(uint256.Int).Set(isolated.IsolationModeTotalDebt),
	})
	return nil
}

// seizeReceiptTokens moves the seized collateral to the liquidator in receipt
// form. The liquidator's first unit of the asset becomes collateral when the
// automatic collateral rules allow it.
func (tx *txn) seizeReceiptTokens(collateral *reserve.Data, user, liquidator crypto.Address, amount *uint256.Int) error {
	if err := tx.putReserve(collateral); err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}
	ledger := tx.receiptLedger(collateral)
	prev, err := ledger.ScaledBalanceOf(liquidator)
	if err != nil {
		return err
	}
	if err := ledger.TransferOnLiquidation(user, liquidator, amount, collateral.LiquidityIndex); err != nil {
		return err
	}
	if !prev.IsZero() {
		return nil
	}
	liquidatorCfg, err := tx.state.UserConfiguration(liquidator)
	if err != nil {
		return err
	}
	isolation, err := tx.isolationModeState(liquidatorCfg)
	if err != nil {
		return err
	}
	supplier := acl.IsIsolatedCollateralSupplier(tx.state, liquidator)
	if !validation.ValidateAutomaticUseAsCollateral(liquidatorCfg, isolation.Active, collateral.Config(), supplier) {
		return nil
	}
	if err := liquidatorCfg.SetUsingAsCollateral(collateral.ID, true); err != nil {
		return err
	}
	if err := tx.state.PutUserConfiguration(liquidator, liquidatorCfg); err != nil {
		return err
	}
	tx.emit(events.CollateralToggled{Asset: collateral.Asset, User: liquidator, Enabled: true})
	return nil
}

// seizeUnderlying burns the seized receipt tokens and releases the underlying
// collateral to the liquidator.
func (tx *txn) seizeUnderlying(collateral *reserve.Data, user, liquidator crypto.Address, amount *uint256.Int) error {
	if err := tx.updateInterestRates(collateral, new(uint256.Int), amount); err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}
	if err := tx.receiptLedger(collateral).Burn(user, amount, collateral.LiquidityIndex); err != nil {
		return err
	}
	return tx.underlying(collateral).Transfer(collateral.ReceiptToken, liquidator, amount)
}

// transferLiquidationFee moves the protocol fee to the treasury in receipt
// form, lowering it to the borrower's remaining balance when rounding would
// otherwise overdraw it. It returns the fee actually transferred.
func (tx *txn) transferLiquidationFee(collateral *reserve.Data, user crypto.Address, fee *uint256.Int) (*uint256.Int, error) {
	index := collateral.LiquidityIndex
	ledger := tx.receiptLedger(collateral)
	scaledFee, err := wadray.RayDiv(fee, index)
	if err != nil {
		return nil, err
	}
	scaledBalance, err := ledger.ScaledBalanceOf(user)
	if err != nil {
		return nil, err
	}
	if scaledFee.Gt(scaledBalance) {
		if fee, err = wadray.RayMul(scaledBalance, index); err != nil {
			return nil, err
		}
	}
	if fee.IsZero() {
		return fee, nil
	}
	if err := ledger.TransferOnLiquidation(user, tx.treasury, fee, index); err != nil {
		return nil, err
	}
	return fee, nil
}
