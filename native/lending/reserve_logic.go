package lending

import (
	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
	"moneymarket/core/events"
	"moneymarket/native/lending/rates"
	"moneymarket/native/lending/reserve"
	"moneymarket/native/lending/wadray"
)

// NormalizedIncome is the liquidity index of r projected to now. It does not
// modify r.
func NormalizedIncome(r *reserve.Data, now uint64) (*uint256.Int, error) {
	if r.LastUpdateTimestamp == now {
		return new(uint256.Int).Set(r.LiquidityIndex), nil
	}
	cumulated, err := wadray.CalculateLinearInterest(r.CurrentLiquidityRate, r.LastUpdateTimestamp, now)
	if err != nil {
		return nil, err
	}
	return wadray.RayMul(cumulated, r.LiquidityIndex)
}

// NormalizedDebt is the variable borrow index of r projected to now. It does
// not modify r.
func NormalizedDebt(r *reserve.Data, now uint64) (*uint256.Int, error) {
	if r.LastUpdateTimestamp == now {
		return new(uint256.Int).Set(r.VariableBorrowIndex), nil
	}
	cumulated, err := wadray.CalculateCompoundedInterest(r.CurrentVariableBorrowRate, r.LastUpdateTimestamp, now)
	if err != nil {
		return nil, err
	}
	return wadray.RayMul(cumulated, r.VariableBorrowIndex)
}

// UpdateState advances the indexes of r to now and books the reserve factor
// share of the newly accrued debt interest to the treasury, in scaled receipt
// units. scaledVariableDebt is the debt token's scaled supply. A second call
// with the same timestamp changes nothing.
func UpdateState(r *reserve.Data, scaledVariableDebt *uint256.Int, now uint64) error {
	if r.LastUpdateTimestamp == now {
		return nil
	}
	if now < r.LastUpdateTimestamp {
		return lerrors.ErrUnderflow
	}
	prevBorrowIndex := new(uint256.Int).Set(r.VariableBorrowIndex)

	if !r.CurrentLiquidityRate.IsZero() {
		cumulated, err := wadray.CalculateLinearInterest(r.CurrentLiquidityRate, r.LastUpdateTimestamp, now)
		if err != nil {
			return err
		}
		next, err := wadray.RayMul(cumulated, r.LiquidityIndex)
		if err != nil {
			return err
		}
		r.LiquidityIndex = next
	}
	if !scaledVariableDebt.IsZero() {
		cumulated, err := wadray.CalculateCompoundedInterest(r.CurrentVariableBorrowRate, r.LastUpdateTimestamp, now)
		if err != nil {
			return err
		}
		next, err := wadray.RayMul(cumulated, r.VariableBorrowIndex)
		if err != nil {
			return err
		}
		r.VariableBorrowIndex = next
	}
	if err := accrueToTreasury(r, scaledVariableDebt, prevBorrowIndex); err != nil {
		return err
	}
	r.LastUpdateTimestamp = now
	return nil
}

func accrueToTreasury(r *reserve.Data, scaledVariableDebt, prevBorrowIndex *uint256.Int) error {
	factor := r.Config().ReserveFactor
	if factor == 0 {
		return nil
	}
	prevDebt, err := wadray.RayMul(scaledVariableDebt, prevBorrowIndex)
	if err != nil {
		return err
	}
	currDebt, err := wadray.RayMul(scaledVariableDebt, r.VariableBorrowIndex)
	if err != nil {
		return err
	}
	accrued, err := wadray.Sub(currDebt, prevDebt)
	if err != nil {
		return err
	}
	toMint, err := wadray.PercentMulU64(accrued, uint64(factor))
	if err != nil || toMint.IsZero() {
		return err
	}
	scaled, err := wadray.RayDiv(toMint, r.LiquidityIndex)
	if err != nil {
		return err
	}
	total, err := wadray.Add(r.AccruedToTreasury, scaled)
	if err != nil {
		return err
	}
	r.AccruedToTreasury = total
	return nil
}

// updateState accrues r to the call's timestamp. The record is not persisted.
func (tx *txn) updateState(r *reserve.Data) error {
	scaledDebt, err := tx.debtLedger(r).ScaledTotalSupply()
	if err != nil {
		return err
	}
	return UpdateState(r, scaledDebt, tx.now)
}

// updateInterestRates reprices r after liquidityAdded enters and
// liquidityTaken leaves its receipt token account, persists it and records
// the new rates.
func (tx *txn) updateInterestRates(r *reserve.Data, liquidityAdded, liquidityTaken *uint256.Int) error {
	totalDebt, err := tx.debtLedger(r).TotalSupply(r.VariableBorrowIndex)
	if err != nil {
		return err
	}
	available, err := tx.underlying(r).BalanceOf(r.ReceiptToken)
	if err != nil {
		return err
	}
	result, err := r.Strategy.Calculate(rates.Input{
		Unbacked:           r.Unbacked,
		LiquidityAdded:     liquidityAdded,
		LiquidityTaken:     liquidityTaken,
		TotalVariableDebt:  totalDebt,
		AvailableLiquidity: available,
		ReserveFactor:      uint64(r.Config().ReserveFactor),
	})
	if err != nil {
		return err
	}
	r.CurrentLiquidityRate = result.LiquidityRate
	r.CurrentVariableBorrowRate = result.VariableBorrowRate
	if err := tx.putReserve(r); err != nil {
		return err
	}
	tx.emit(events.ReserveDataUpdated{
		Asset:               r.Asset,
		LiquidityRate:       result.LiquidityRate,
		VariableBorrowRate:  result.VariableBorrowRate,
		LiquidityIndex:      new(uint256.Int).Set(r.LiquidityIndex),
		VariableBorrowIndex: new(uint256.Int).Set(r.VariableBorrowIndex),
	})
	return nil
}
