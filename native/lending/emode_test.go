package lending

import (
	"testing"

	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
	"moneymarket/core/events"
)

func TestUserEModeRaisesBorrowingPower(t *testing.T) {
	f, coll, debt, borrower := borrowFixture(t)
	outside := asset(3)
	f.list(outside, fixedRate(0))
	f.borrowable(outside)
	f.supply(outside, account(2), units(1000))

	category := EModeCategoryInput{ID: 1, LTV: 9000, LiquidationThreshold: 9300, LiquidationBonus: 10200, Label: "correlated"}
	f.must(f.engine.SetEModeCategory(f.risk, category))
	f.must(f.engine.SetAssetEModeCategory(f.risk, coll, 1))
	f.must(f.engine.SetAssetEModeCategory(f.risk, debt, 1))

	f.expectErr(f.engine.Borrow(borrower, debt, units(880), borrower), lerrors.ErrCollateralCannotCoverBorrow)
	f.expectErr(f.engine.SetUserEMode(borrower, 2), lerrors.ErrInconsistentEModeCategory)

	f.recorder.Reset()
	f.must(f.engine.SetUserEMode(borrower, 1))
	if len(f.recorder.OfType(events.TypeUserEModeSet)) != 1 {
		t.Fatalf("expected an eMode event")
	}
	id, err := f.engine.UserEMode(borrower)
	f.must(err)
	if id != 1 {
		t.Fatalf("expected category 1, got %d", id)
	}

	f.must(f.engine.Borrow(borrower, debt, units(880), borrower))
	f.expectErr(f.engine.Borrow(borrower, outside, units(1), borrower), lerrors.ErrInconsistentEModeCategory)

	data, err := f.engine.CalculateUserAccountData(borrower)
	f.must(err)
	if data.CurrentLTV != 9000 || data.CurrentLiquidationThreshold != 9300 {
		t.Fatalf("expected category risk parameters, got %d/%d", data.CurrentLTV, data.CurrentLiquidationThreshold)
	}

	// Leaving eMode would drop the threshold to 85% and the account under 1.
	f.expectErr(f.engine.SetUserEMode(borrower, 0), lerrors.ErrHealthFactorBelowThreshold)
}

func TestUserEModeRejectsForeignDebt(t *testing.T) {
	f, coll, debt, borrower := borrowFixture(t)
	f.must(f.engine.SetEModeCategory(f.risk, EModeCategoryInput{ID: 1, LTV: 9000, LiquidationThreshold: 9300, LiquidationBonus: 10200}))
	f.must(f.engine.SetAssetEModeCategory(f.risk, coll, 1))

	f.must(f.engine.Borrow(borrower, debt, units(10), borrower))
	f.expectErr(f.engine.SetUserEMode(borrower, 1), lerrors.ErrInconsistentEModeCategory)
}

func TestEModePriceSource(t *testing.T) {
	f, coll, debt, borrower := borrowFixture(t)
	source := asset(50)
	f.oracle.SetPrice(source, uint256.NewInt(2*unitPrice))
	f.must(f.engine.SetEModeCategory(f.risk, EModeCategoryInput{ID: 1, LTV: 9000, LiquidationThreshold: 9300, LiquidationBonus: 10200, PriceSource: source}))
	f.must(f.engine.SetAssetEModeCategory(f.risk, coll, 1))
	f.must(f.engine.SetAssetEModeCategory(f.risk, debt, 1))
	f.must(f.engine.SetUserEMode(borrower, 1))

	data, err := f.engine.CalculateUserAccountData(borrower)
	f.must(err)
	expectAmount(t, "collateral base", data.TotalCollateralBase, units(2000))

	f.must(f.engine.Borrow(borrower, debt, units(100), borrower))
	data, err = f.engine.CalculateUserAccountData(borrower)
	f.must(err)
	expectAmount(t, "debt base", data.TotalDebtBase, units(200))
}
