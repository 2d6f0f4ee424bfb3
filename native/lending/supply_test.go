package lending

import (
	"testing"

	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
	"moneymarket/native/lending/wadray"
)

func TestSupplyCap(t *testing.T) {
	f := newFixture(t)
	a := asset(1)
	f.list(a, fixedRate(5))
	f.must(f.engine.SetSupplyCap(f.risk, a, 100))
	user := account(1)
	f.fund(a, user, units(200))

	f.must(f.engine.Supply(user, a, units(100), user))
	f.expectErr(f.engine.Supply(user, a, amount(1), user), lerrors.ErrSupplyCapExceeded)
	expectAmount(t, "receipt", f.receipt(a, user), units(100))
}

func TestSupplyRejectsFrozenAndZero(t *testing.T) {
	f := newFixture(t)
	a := asset(1)
	f.list(a, fixedRate(5))
	user := account(1)
	f.fund(a, user, units(10))

	f.expectErr(f.engine.Supply(user, a, new(uint256.Int), user), lerrors.ErrInvalidAmount)
	f.must(f.engine.SetReserveFreeze(f.risk, a, true))
	f.expectErr(f.engine.Supply(user, a, units(1), user), lerrors.ErrReserveFrozen)
	f.expectErr(f.engine.Supply(user, asset(9), units(1), user), lerrors.ErrAssetNotListed)
}

func TestSupplyOnBehalfCreditsBeneficiary(t *testing.T) {
	f := newFixture(t)
	a := asset(1)
	f.list(a, fixedRate(5))
	f.collateral(a, 8000, 8500, 10500)
	payer, beneficiary := account(1), account(2)
	f.fund(a, payer, units(10))

	f.must(f.engine.Supply(payer, a, units(10), beneficiary))
	expectAmount(t, "beneficiary receipt", f.receipt(a, beneficiary), units(10))
	expectAmount(t, "payer receipt", f.receipt(a, payer), new(uint256.Int))
	cfg, err := f.engine.UserConfiguration(beneficiary)
	f.must(err)
	if !cfg.IsUsingAsCollateral(0) {
		t.Fatalf("first supply must enable collateral for the beneficiary")
	}
}

func TestSupplyZeroLTVIsNotCollateral(t *testing.T) {
	f := newFixture(t)
	a := asset(1)
	f.list(a, fixedRate(5))
	user := account(1)
	f.supply(a, user, units(10))
	cfg, err := f.engine.UserConfiguration(user)
	f.must(err)
	if cfg.IsUsingAsCollateral(0) {
		t.Fatalf("zero ltv asset must not become collateral")
	}
	f.expectErr(f.engine.SetUserUseReserveAsCollateral(user, a, true), lerrors.ErrUserInIsolationModeOrLTV)
}

func TestWithdrawFullClearsCollateral(t *testing.T) {
	f := newFixture(t)
	a := asset(1)
	f.list(a, fixedRate(5))
	f.collateral(a, 8000, 8500, 10500)
	user := account(1)
	f.supply(a, user, units(10))

	withdrawn, err := f.engine.Withdraw(user, a, wadray.Max(), account(5))
	f.must(err)
	expectAmount(t, "withdrawn", withdrawn, units(10))
	expectAmount(t, "recipient", f.underlying(a, account(5)), units(10))
	cfg, err := f.engine.UserConfiguration(user)
	f.must(err)
	if !cfg.IsEmpty() {
		t.Fatalf("expected empty configuration after full withdrawal")
	}
	_, err = f.engine.Withdraw(user, a, units(1), user)
	f.expectErr(err, lerrors.ErrNotEnoughAvailableBalance)
}

func TestWithdrawKeepsAccountHealthy(t *testing.T) {
	f := newLiquidationFixture(t, unitPrice)

	_, err := f.engine.Withdraw(f.borrower, f.collateralAsset, units(200), f.borrower)
	f.expectErr(err, lerrors.ErrHealthFactorBelowThreshold)
	expectAmount(t, "collateral after rejection", f.receipt(f.collateralAsset, f.borrower), units(1000))

	_, err = f.engine.Withdraw(f.borrower, f.collateralAsset, units(50), f.borrower)
	f.must(err)
	expectAmount(t, "collateral", f.receipt(f.collateralAsset, f.borrower), units(950))
}

func TestDisableCollateralWithDebt(t *testing.T) {
	f := newLiquidationFixture(t, unitPrice)
	f.expectErr(f.engine.SetUserUseReserveAsCollateral(f.borrower, f.collateralAsset, false), lerrors.ErrHealthFactorBelowThreshold)
	f.expectErr(f.engine.SetUserUseReserveAsCollateral(account(9), f.collateralAsset, false), lerrors.ErrUnderlyingBalanceZero)

	// The lender's deposit was never collateral; toggling an unchanged bit is a no-op.
	f.must(f.engine.SetUserUseReserveAsCollateral(account(2), f.debtAsset, false))
}
