package rates

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
	"moneymarket/native/lending/wadray"
)

func pct(numerator uint64) *uint256.Int {
	v := new(uint256.Int).Mul(wadray.Ray, uint256.NewInt(numerator))
	return v.Div(v, uint256.NewInt(100))
}

func defaultParams() Params {
	return Params{
		OptimalUsageRatio:      pct(80),
		BaseVariableBorrowRate: new(uint256.Int),
		VariableRateSlope1:     pct(4),
		VariableRateSlope2:     pct(75),
	}
}

func TestCalculateBelowOptimal(t *testing.T) {
	res, err := defaultParams().Calculate(Input{
		TotalVariableDebt:  uint256.NewInt(500),
		AvailableLiquidity: uint256.NewInt(1500),
		ReserveFactor:      1000,
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !res.VariableBorrowRate.Eq(uint256.MustFromDecimal("12500000000000000000000000")) {
		t.Fatalf("unexpected variable rate %s", res.VariableBorrowRate)
	}
	if !res.LiquidityRate.Eq(uint256.MustFromDecimal("2812500000000000000000000")) {
		t.Fatalf("unexpected liquidity rate %s", res.LiquidityRate)
	}
}

func TestCalculateAboveOptimal(t *testing.T) {
	res, err := defaultParams().Calculate(Input{
		TotalVariableDebt:  uint256.NewInt(900),
		AvailableLiquidity: uint256.NewInt(100),
		ReserveFactor:      1000,
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !res.VariableBorrowRate.Eq(uint256.MustFromDecimal("415000000000000000000000000")) {
		t.Fatalf("unexpected variable rate %s", res.VariableBorrowRate)
	}
	if !res.LiquidityRate.Eq(uint256.MustFromDecimal("336150000000000000000000000")) {
		t.Fatalf("unexpected liquidity rate %s", res.LiquidityRate)
	}
}

func TestCalculateUnbackedDilutesSupplyRate(t *testing.T) {
	res, err := defaultParams().Calculate(Input{
		TotalVariableDebt:  uint256.NewInt(500),
		AvailableLiquidity: uint256.NewInt(1500),
		Unbacked:           uint256.NewInt(100),
		ReserveFactor:      2000,
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !res.LiquidityRate.Eq(uint256.MustFromDecimal("2380952380952380952380952")) {
		t.Fatalf("unexpected liquidity rate %s", res.LiquidityRate)
	}
}

func TestCalculateNoDebtUsesBaseRate(t *testing.T) {
	params := defaultParams()
	params.BaseVariableBorrowRate = pct(1)
	res, err := params.Calculate(Input{AvailableLiquidity: uint256.NewInt(1500), ReserveFactor: 1000})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !res.VariableBorrowRate.Eq(pct(1)) || !res.LiquidityRate.IsZero() {
		t.Fatalf("unexpected rates %s / %s", res.VariableBorrowRate, res.LiquidityRate)
	}
}

func TestCalculateAppliesLiquidityDelta(t *testing.T) {
	res, err := defaultParams().Calculate(Input{
		TotalVariableDebt:  uint256.NewInt(500),
		AvailableLiquidity: uint256.NewInt(1500),
		LiquidityAdded:     uint256.NewInt(200),
		LiquidityTaken:     uint256.NewInt(700),
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !res.VariableBorrowRate.Eq(uint256.MustFromDecimal("16666666666666666666666666")) {
		t.Fatalf("unexpected variable rate %s", res.VariableBorrowRate)
	}
	if !res.LiquidityRate.Eq(uint256.MustFromDecimal("5555555555555555555555555")) {
		t.Fatalf("unexpected liquidity rate %s", res.LiquidityRate)
	}
}

func TestCalculateRejectsOverdraw(t *testing.T) {
	_, err := defaultParams().Calculate(Input{
		TotalVariableDebt:  uint256.NewInt(1),
		AvailableLiquidity: uint256.NewInt(10),
		LiquidityTaken:     uint256.NewInt(11),
	})
	if !errors.Is(err, lerrors.ErrInsufficientLiquidity) {
		t.Fatalf("expected insufficient liquidity, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	if err := defaultParams().Validate(); err != nil {
		t.Fatalf("default params rejected: %v", err)
	}
	bad := defaultParams()
	bad.OptimalUsageRatio = new(uint256.Int).AddUint64(wadray.Ray, 1)
	if err := bad.Validate(); !errors.Is(err, lerrors.ErrInvalidOptimalUsageRatio) {
		t.Fatalf("expected invalid optimal usage ratio, got %v", err)
	}
	bad.OptimalUsageRatio = nil
	if err := bad.Validate(); !errors.Is(err, lerrors.ErrInvalidOptimalUsageRatio) {
		t.Fatalf("expected invalid optimal usage ratio for zero, got %v", err)
	}
}

func TestVariableRateMonotonicInUtilisation(t *testing.T) {
	params := defaultParams()
	prev := new(uint256.Int)
	for debt := uint64(0); debt <= 1000; debt += 25 {
		res, err := params.Calculate(Input{
			TotalVariableDebt:  uint256.NewInt(debt),
			AvailableLiquidity: uint256.NewInt(1000 - debt),
		})
		if err != nil {
			t.Fatalf("calculate: %v", err)
		}
		if res.VariableBorrowRate.Lt(prev) {
			t.Fatalf("variable rate decreased at debt %d", debt)
		}
		prev = res.VariableBorrowRate
	}
	maxRate, err := params.MaxVariableBorrowRate()
	if err != nil {
		t.Fatalf("max rate: %v", err)
	}
	if !prev.Eq(maxRate) {
		t.Fatalf("full utilisation rate %s != max %s", prev, maxRate)
	}
}
