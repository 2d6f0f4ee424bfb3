// Package rates implements the kinked utilisation curve that prices variable
// borrowing and derives the matching supply rate.
package rates

import (
	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
	"moneymarket/native/lending/wadray"
)

// Params shapes the borrow rate curve. All values are annual rates or ratios
// expressed in rays.
type Params struct {
	// OptimalUsageRatio is the utilisation at which the curve switches from
	// the first slope to the steeper second slope.
	OptimalUsageRatio *uint256.Int
	// BaseVariableBorrowRate applies at zero utilisation.
	BaseVariableBorrowRate *uint256.Int
	// VariableRateSlope1 is the rate increase reached at optimal usage.
	VariableRateSlope1 *uint256.Int
	// VariableRateSlope2 is the rate increase reached between optimal and
	// full usage.
	VariableRateSlope2 *uint256.Int
}

// Input captures the reserve snapshot the strategy prices.
type Input struct {
	Unbacked          *uint256.Int
	LiquidityAdded    *uint256.Int
	LiquidityTaken    *uint256.Int
	TotalVariableDebt *uint256.Int
	// AvailableLiquidity is the underlying currently held by the receipt
	// token, before LiquidityAdded and LiquidityTaken are applied.
	AvailableLiquidity *uint256.Int
	// ReserveFactor is the treasury share of interest in basis points.
	ReserveFactor uint64
}

// Result holds the recomputed annual rates in rays.
type Result struct {
	LiquidityRate      *uint256.Int
	VariableBorrowRate *uint256.Int
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

// Clone returns a deep copy of the parameters.
func (p Params) Clone() Params {
	return Params{
		OptimalUsageRatio:      new(uint256.Int).Set(orZero(p.OptimalUsageRatio)),
		BaseVariableBorrowRate: new(uint256.Int).Set(orZero(p.BaseVariableBorrowRate)),
		VariableRateSlope1:     new(uint256.Int).Set(orZero(p.VariableRateSlope1)),
		VariableRateSlope2:     new(uint256.Int).Set(orZero(p.VariableRateSlope2)),
	}
}

// Validate rejects curves whose optimal usage is zero or above 100%.
func (p Params) Validate() error {
	optimal := orZero(p.OptimalUsageRatio)
	if optimal.IsZero() || optimal.Gt(wadray.Ray) {
		return lerrors.ErrInvalidOptimalUsageRatio
	}
	if _, err := p.MaxVariableBorrowRate(); err != nil {
		return err
	}
	return nil
}

// MaxVariableBorrowRate is the borrow rate at full utilisation.
func (p Params) MaxVariableBorrowRate() (*uint256.Int, error) {
	sum, err := wadray.Add(orZero(p.BaseVariableBorrowRate), orZero(p.VariableRateSlope1))
	if err != nil {
		return nil, err
	}
	return wadray.Add(sum, orZero(p.VariableRateSlope2))
}

// Calculate prices the reserve. The variable rate follows the two-slope
// curve on borrow usage; the liquidity rate is the variable rate scaled by
// supply usage, which also counts unbacked supply, net of the reserve factor.
func (p Params) Calculate(in Input) (*Result, error) {
	if in.ReserveFactor > 10_000 {
		return nil, lerrors.ErrInvalidReserveFactor
	}
	optimal := orZero(p.OptimalUsageRatio)
	totalDebt := orZero(in.TotalVariableDebt)

	variableRate := new(uint256.Int).Set(orZero(p.BaseVariableBorrowRate))
	borrowUsage := new(uint256.Int)
	supplyUsage := new(uint256.Int)

	if !totalDebt.IsZero() {
		available, err := wadray.Add(orZero(in.AvailableLiquidity), orZero(in.LiquidityAdded))
		if err != nil {
			return nil, err
		}
		if orZero(in.LiquidityTaken).Gt(available) {
			return nil, lerrors.ErrInsufficientLiquidity
		}
		available.Sub(available, orZero(in.LiquidityTaken))

		availablePlusDebt, err := wadray.Add(available, totalDebt)
		if err != nil {
			return nil, err
		}
		if borrowUsage, err = wadray.RayDiv(totalDebt, availablePlusDebt); err != nil {
			return nil, err
		}
		withUnbacked, err := wadray.Add(availablePlusDebt, orZero(in.Unbacked))
		if err != nil {
			return nil, err
		}
		if supplyUsage, err = wadray.RayDiv(totalDebt, withUnbacked); err != nil {
			return nil, err
		}
	}

	if borrowUsage.Gt(optimal) {
		maxExcess := new(uint256.Int).Sub(wadray.Ray, optimal)
		excess, err := wadray.RayDiv(new(uint256.Int).Sub(borrowUsage, optimal), maxExcess)
		if err != nil {
			return nil, err
		}
		steep, err := wadray.RayMul(orZero(p.VariableRateSlope2), excess)
		if err != nil {
			return nil, err
		}
		if variableRate, err = wadray.Add(variableRate, orZero(p.VariableRateSlope1)); err != nil {
			return nil, err
		}
		if variableRate, err = wadray.Add(variableRate, steep); err != nil {
			return nil, err
		}
	} else {
		gentle, err := wadray.RayMul(orZero(p.VariableRateSlope1), borrowUsage)
		if err != nil {
			return nil, err
		}
		if gentle, err = wadray.RayDiv(gentle, optimal); err != nil {
			return nil, err
		}
		if variableRate, err = wadray.Add(variableRate, gentle); err != nil {
			return nil, err
		}
	}

	liquidityRate := new(uint256.Int)
	if !totalDebt.IsZero() {
		scaled, err := wadray.RayMul(variableRate, supplyUsage)
		if err != nil {
			return nil, err
		}
		if liquidityRate, err = wadray.PercentMulU64(scaled, 10_000-in.ReserveFactor); err != nil {
			return nil, err
		}
	}
	return &Result{LiquidityRate: liquidityRate, VariableBorrowRate: variableRate}, nil
}
