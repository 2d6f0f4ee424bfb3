package lending

import (
	"testing"

	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
	"moneymarket/core/events"
	"moneymarket/crypto"
	"moneymarket/native/lending/wadray"
)

// wad converts thousandths to a wad.
func wad(frac uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(frac), uint256.NewInt(1_000_000_000_000_000))
}

func TestMaxLiquidatableDebt(t *testing.T) {
	total := units(1000)
	cases := []struct {
		name string
		hf   *uint256.Int
		want *uint256.Int
	}{
		{"deep under threshold", wad(900), units(1000)},
		{"above close factor threshold", wad(980), units(500)},
		{"at close factor threshold", wad(950), units(500)},
	}
	for _, tc := range cases {
		got, err := MaxLiquidatableDebt(total, wadray.Max(), tc.hf)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		expectAmount(t, tc.name, got, tc.want)
	}
	got, err := MaxLiquidatableDebt(total, units(100), wad(900))
	if err != nil {
		t.Fatalf("small request: %v", err)
	}
	expectAmount(t, "small request", got, units(100))
}

func TestCalculateAvailableCollateralToLiquidate(t *testing.T) {
	cases := []struct {
		name            string
		collateralPrice uint64
		debtToCover     *uint256.Int
		collateral      uint64
		debt            uint64
		fee             uint64
	}{
		{"partial", 85_000_000, units(375), 46_102_941_176, 37_500_000_000, 220_588_235},
		{"whole debt", 80_000_000, units(750), 97_968_750_000, 75_000_000_000, 468_750_000},
		{"capped by balance", 50_000_000, units(750), 99_523_809_524, 47_619_047_619, 476_190_476},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := CollateralQuote{
				CollateralPrice:        uint256.NewInt(tc.collateralPrice),
				DebtPrice:              uint256.NewInt(unitPrice),
				CollateralDecimals:     8,
				DebtDecimals:           8,
				DebtToCover:            tc.debtToCover,
				UserCollateralBalance:  units(1000),
				LiquidationBonus:       10500,
				LiquidationProtocolFee: 1000,
			}
			collateral, debt, fee, err := CalculateAvailableCollateralToLiquidate(q)
			if err != nil {
				t.Fatalf("quote: %v", err)
			}
			expectAmount(t, "collateral", collateral, amount(tc.collateral))
			expectAmount(t, "debt", debt, amount(tc.debt))
			expectAmount(t, "fee", fee, amount(tc.fee))
			seized := new(uint256.Int).Add(collateral, fee)
			if seized.Gt(q.UserCollateralBalance) {
				t.Fatalf("seized %s exceeds balance", seized.Dec())
			}
		})
	}
}

func TestCalculateAvailableCollateralWithoutFee(t *testing.T) {
	collateral, debt, fee, err := CalculateAvailableCollateralToLiquidate(CollateralQuote{
		CollateralPrice:       uint256.NewInt(unitPrice),
		DebtPrice:             uint256.NewInt(unitPrice),
		CollateralDecimals:    6,
		DebtDecimals:          8,
		DebtToCover:           units(10),
		UserCollateralBalance: uint256.NewInt(1_000_000_000),
		LiquidationBonus:      10500,
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	expectAmount(t, "collateral", collateral, amount(10_500_000))
	expectAmount(t, "debt", debt, units(10))
	if !fee.IsZero() {
		t.Fatalf("expected no fee, got %s", fee.Dec())
	}
}

type liquidationFixture struct {
	*fixture
	collateralAsset crypto.Address
	debtAsset       crypto.Address
	borrower        crypto.Address
	liquidator      crypto.Address
}

// newLiquidationFixture opens a 750 token debt against 1000 tokens of
// collateral and reprices the collateral to collateralPrice.
func newLiquidationFixture(t *testing.T, collateralPrice uint64) *liquidationFixture {
	t.Helper()
	f := &liquidationFixture{
		fixture:         newFixture(t),
		collateralAsset: asset(1),
		debtAsset:       asset(2),
		borrower:        account(1),
		liquidator:      account(3),
	}
	f.list(f.collateralAsset, fixedRate(0))
	f.list(f.debtAsset, fixedRate(0))
	f.collateral(f.collateralAsset, 8000, 8500, 10500)
	f.must(f.engine.SetLiquidationProtocolFee(f.risk, f.collateralAsset, 1000))
	f.borrowable(f.debtAsset)

	f.supply(f.collateralAsset, f.borrower, units(1000))
	f.supply(f.debtAsset, account(2), units(1000))
	f.must(f.engine.Borrow(f.borrower, f.debtAsset, units(750), f.borrower))
	f.fund(f.debtAsset, f.liquidator, units(1000))
	f.oracle.SetPrice(f.collateralAsset, uint256.NewInt(collateralPrice))
	return f
}

// expectBacked checks that the collateral pool holds at least every receipt
// claim.
func (f *liquidationFixture) expectBacked() {
	f.t.Helper()
	claims := new(uint256.Int)
	for _, holder := range []crypto.Address{f.borrower, f.liquidator, f.treasury} {
		claims.Add(claims, f.receipt(f.collateralAsset, holder))
	}
	if pool := f.pool(f.collateralAsset); pool.Lt(claims) {
		f.t.Fatalf("pool %s does not cover receipt claims %s", pool.Dec(), claims.Dec())
	}
}

func TestLiquidationRejectsHealthyPosition(t *testing.T) {
	f := newLiquidationFixture(t, unitPrice)
	_, err := f.engine.LiquidationCall(f.liquidator, f.collateralAsset, f.debtAsset, f.borrower, units(100), false)
	f.expectErr(err, lerrors.ErrHealthFactorNotBelow)
}

func TestLiquidationRejectsZeroAmount(t *testing.T) {
	f := newLiquidationFixture(t, 85_000_000)
	_, err := f.engine.LiquidationCall(f.liquidator, f.collateralAsset, f.debtAsset, f.borrower, new(uint256.Int), false)
	f.expectErr(err, lerrors.ErrInvalidAmount)
}

func TestLiquidationRejectsUnborrowedDebt(t *testing.T) {
	f := newLiquidationFixture(t, 85_000_000)
	_, err := f.engine.LiquidationCall(f.liquidator, f.collateralAsset, f.collateralAsset, f.borrower, units(1), false)
	f.expectErr(err, lerrors.ErrSpecifiedCurrencyNotBorrowed)
}

func TestLiquidationHalfCloseFactor(t *testing.T) {
	f := newLiquidationFixture(t, 85_000_000)
	f.recorder.Reset()

	res, err := f.engine.LiquidationCall(f.liquidator, f.collateralAsset, f.debtAsset, f.borrower, units(1000), false)
	f.must(err)
	expectAmount(t, "debt covered", res.DebtCovered, units(375))
	expectAmount(t, "collateral", res.CollateralToLiquidator, amount(46_102_941_176))
	expectAmount(t, "fee", res.ProtocolFee, amount(220_588_235))
	if res.BorrowingCleared || res.CollateralDisabled {
		t.Fatalf("partial liquidation must keep both positions open")
	}

	expectAmount(t, "liquidator collateral", f.underlying(f.collateralAsset, f.liquidator), amount(46_102_941_176))
	expectAmount(t, "liquidator debt asset", f.underlying(f.debtAsset, f.liquidator), units(625))
	expectAmount(t, "treasury receipt", f.receipt(f.collateralAsset, f.treasury), amount(220_588_235))
	expectAmount(t, "borrower debt", f.debt(f.debtAsset, f.borrower), units(375))
	expectAmount(t, "borrower collateral", f.receipt(f.collateralAsset, f.borrower), amount(53_676_470_589))
	expectAmount(t, "debt pool", f.pool(f.debtAsset), units(625))
	f.expectBacked()

	if got := len(f.recorder.OfType(events.TypeLiquidationCall)); got != 1 {
		t.Fatalf("expected one liquidation event, got %d", got)
	}
}

func TestLiquidationClearsRepaidDebt(t *testing.T) {
	f := newLiquidationFixture(t, 80_000_000)
	res, err := f.engine.LiquidationCall(f.liquidator, f.collateralAsset, f.debtAsset, f.borrower, wadray.Max(), true)
	f.must(err)
	expectAmount(t, "debt covered", res.DebtCovered, units(750))
	expectAmount(t, "collateral", res.CollateralToLiquidator, amount(97_968_750_000))
	expectAmount(t, "fee", res.ProtocolFee, amount(468_750_000))
	if !res.BorrowingCleared || res.CollateralDisabled {
		t.Fatalf("unexpected flags %+v", res)
	}

	cfg, err := f.engine.UserConfiguration(f.borrower)
	f.must(err)
	if cfg.IsBorrowing(1) {
		t.Fatalf("borrowing bit must be cleared")
	}
	if !cfg.IsUsingAsCollateral(0) {
		t.Fatalf("remaining collateral must stay enabled")
	}
	expectAmount(t, "borrower debt", f.debt(f.debtAsset, f.borrower), new(uint256.Int))
	expectAmount(t, "borrower collateral", f.receipt(f.collateralAsset, f.borrower), amount(1_562_500_000))

	// Receipt tokens stay in the pool and become the liquidator's collateral.
	expectAmount(t, "liquidator receipt", f.receipt(f.collateralAsset, f.liquidator), amount(97_968_750_000))
	expectAmount(t, "collateral pool", f.pool(f.collateralAsset), units(1000))
	liquidatorCfg, err := f.engine.UserConfiguration(f.liquidator)
	f.must(err)
	if !liquidatorCfg.IsUsingAsCollateral(0) {
		t.Fatalf("seized receipt tokens must be enabled as collateral")
	}
	f.expectBacked()
}

func TestLiquidationSeizesAllCollateral(t *testing.T) {
	f := newLiquidationFixture(t, 50_000_000)
	res, err := f.engine.LiquidationCall(f.liquidator, f.collateralAsset, f.debtAsset, f.borrower, wadray.Max(), false)
	f.must(err)
	expectAmount(t, "debt covered", res.DebtCovered, amount(47_619_047_619))
	expectAmount(t, "collateral", res.CollateralToLiquidator, amount(99_523_809_524))
	expectAmount(t, "fee", res.ProtocolFee, amount(476_190_476))
	if res.BorrowingCleared || !res.CollateralDisabled {
		t.Fatalf("unexpected flags %+v", res)
	}

	cfg, err := f.engine.UserConfiguration(f.borrower)
	f.must(err)
	if cfg.IsUsingAsCollateral(0) {
		t.Fatalf("collateral bit must be cleared")
	}
	if !cfg.IsBorrowing(1) {
		t.Fatalf("outstanding debt must stay flagged")
	}
	expectAmount(t, "borrower collateral", f.receipt(f.collateralAsset, f.borrower), new(uint256.Int))
	expectAmount(t, "borrower debt", f.debt(f.debtAsset, f.borrower), amount(27_380_952_381))
	expectAmount(t, "treasury receipt", f.receipt(f.collateralAsset, f.treasury), amount(476_190_476))
	expectAmount(t, "collateral pool", f.pool(f.collateralAsset), amount(476_190_476))
	f.expectBacked()
}

func TestLiquidationClearsBorrowingWhenRoundingSettlesDebt(t *testing.T) {
	f := newFixture(t)
	coll, debt := asset(1), asset(2)
	borrower, liquidator := account(1), account(3)
	f.list(coll, fixedRate(0))
	f.list(debt, fixedRate(50))
	f.collateral(coll, 8000, 8500, 10500)
	f.borrowable(debt)
	f.supply(coll, borrower, amount(3))
	f.supply(debt, account(2), units(10))
	f.must(f.engine.Borrow(borrower, debt, amount(1), borrower))
	f.fund(debt, liquidator, units(1))

	f.advance(wadray.SecondsPerYear)
	f.oracle.SetPrice(coll, uint256.NewInt(unitPrice/2))
	expectAmount(t, "owed", f.debt(debt, borrower), amount(2))

	res, err := f.engine.LiquidationCall(liquidator, coll, debt, borrower, amount(1), false)
	f.must(err)
	expectAmount(t, "debt covered", res.DebtCovered, amount(1))
	expectAmount(t, "collateral", res.CollateralToLiquidator, amount(2))
	if !res.BorrowingCleared || res.CollateralDisabled {
		t.Fatalf("unexpected flags %+v", res)
	}
	expectAmount(t, "borrower debt", f.debt(debt, borrower), new(uint256.Int))
	cfg, err := f.engine.UserConfiguration(borrower)
	f.must(err)
	if cfg.IsBorrowing(1) {
		t.Fatalf("borrowing bit left set without debt")
	}
	if !cfg.IsUsingAsCollateral(0) {
		t.Fatalf("remaining collateral must stay enabled")
	}
}

func TestDisableSpentCollateralChecksRemainingBalance(t *testing.T) {
	f := newFixture(t)
	a := asset(1)
	id := f.list(a, fixedRate(0))
	f.collateral(a, 8000, 8500, 10500)
	user := account(1)
	f.supply(a, user, units(1))

	f.must(f.engine.execute("test", false, func(tx *txn) error {
		r, err := tx.reserve(a)
		if err != nil {
			return err
		}
		disabled, err := tx.disableSpentCollateral(r, user, false)
		if err != nil {
			return err
		}
		if disabled {
			t.Fatalf("collateral with a balance must stay enabled")
		}
		ledger := tx.receiptLedger(r)
		scaled, err := ledger.ScaledBalanceOf(user)
		if err != nil {
			return err
		}
		if err := ledger.BurnScaled(user, scaled); err != nil {
			return err
		}
		if disabled, err = tx.disableSpentCollateral(r, user, false); err != nil {
			return err
		}
		if !disabled {
			t.Fatalf("empty receipt balance must disable collateral")
		}
		return nil
	}))

	cfg, err := f.engine.UserConfiguration(user)
	f.must(err)
	if cfg.IsUsingAsCollateral(id) {
		t.Fatalf("collateral bit left set without a balance")
	}
	if got := len(f.recorder.OfType(events.TypeCollateralDisabled)); got != 1 {
		t.Fatalf("expected one collateral disabled event, got %d", got)
	}
}

// newIsolatedLiquidationFixture borrows 750 tokens against 1000 tokens of an
// isolated collateral priced down to 0.85.
func newIsolatedLiquidationFixture(t *testing.T) *liquidationFixture {
	t.Helper()
	f := &liquidationFixture{
		fixture:         newFixture(t),
		collateralAsset: asset(1),
		debtAsset:       asset(2),
		borrower:        account(1),
		liquidator:      account(3),
	}
	f.list(f.collateralAsset, fixedRate(0))
	f.list(f.debtAsset, fixedRate(0))
	f.collateral(f.collateralAsset, 8000, 8500, 10500)
	f.must(f.engine.SetLiquidationProtocolFee(f.risk, f.collateralAsset, 1000))
	f.must(f.engine.SetDebtCeiling(f.risk, f.collateralAsset, 100_000))
	f.borrowable(f.debtAsset)
	f.must(f.engine.SetBorrowableInIsolation(f.risk, f.debtAsset, true))

	f.supply(f.collateralAsset, f.borrower, units(1000))
	f.must(f.engine.SetUserUseReserveAsCollateral(f.borrower, f.collateralAsset, true))
	f.supply(f.debtAsset, account(2), units(1000))
	f.must(f.engine.Borrow(f.borrower, f.debtAsset, units(750), f.borrower))
	f.fund(f.debtAsset, f.liquidator, units(1000))
	f.oracle.SetPrice(f.collateralAsset, uint256.NewInt(85_000_000))
	return f
}

func TestLiquidationReducesIsolatedDebt(t *testing.T) {
	for _, receive := range []bool{false, true} {
		name := "underlying"
		if receive {
			name = "receipt"
		}
		t.Run(name, func(t *testing.T) {
			f := newIsolatedLiquidationFixture(t)
			r, err := f.engine.Reserve(f.collateralAsset)
			f.must(err)
			expectAmount(t, "isolated debt before", r.IsolationModeTotalDebt, amount(75_000))
			f.recorder.Reset()

			res, err := f.engine.LiquidationCall(f.liquidator, f.collateralAsset, f.debtAsset, f.borrower, units(1000), receive)
			f.must(err)
			expectAmount(t, "debt covered", res.DebtCovered, units(375))

			r, err = f.engine.Reserve(f.collateralAsset)
			f.must(err)
			expectAmount(t, "isolated debt after", r.IsolationModeTotalDebt, amount(37_500))
			if got := len(f.recorder.OfType(events.TypeIsolationModeTotalDebtUpdated)); got != 1 {
				t.Fatalf("expected one isolated debt event, got %d", got)
			}
			f.expectBacked()
		})
	}
}

func TestLiquidationUsesEModeBonus(t *testing.T) {
	f := newLiquidationFixture(t, unitPrice)
	f.must(f.engine.SetEModeCategory(f.risk, EModeCategoryInput{ID: 1, LTV: 9000, LiquidationThreshold: 9300, LiquidationBonus: 10200, Label: "correlated"}))
	f.must(f.engine.SetAssetEModeCategory(f.risk, f.collateralAsset, 1))
	f.must(f.engine.SetAssetEModeCategory(f.risk, f.debtAsset, 1))
	f.must(f.engine.SetUserEMode(f.borrower, 1))
	// 800 * 0.93 / 750 = 0.992
	f.oracle.SetPrice(f.collateralAsset, uint256.NewInt(80_000_000))

	res, err := f.engine.LiquidationCall(f.liquidator, f.collateralAsset, f.debtAsset, f.borrower, units(1000), false)
	f.must(err)
	expectAmount(t, "debt covered", res.DebtCovered, units(375))
	expectAmount(t, "collateral", res.CollateralToLiquidator, amount(47_718_750_000))
	expectAmount(t, "fee", res.ProtocolFee, amount(93_750_000))
	f.expectBacked()
}

func TestLiquidationUsesEModeDebtPriceSource(t *testing.T) {
	f := newLiquidationFixture(t, unitPrice)
	source := asset(50)
	f.oracle.SetPrice(source, uint256.NewInt(unitPrice))
	f.must(f.engine.SetEModeCategory(f.risk, EModeCategoryInput{ID: 1, LTV: 9000, LiquidationThreshold: 9300, LiquidationBonus: 10200, PriceSource: source}))
	f.must(f.engine.SetAssetEModeCategory(f.risk, f.debtAsset, 1))
	f.must(f.engine.SetUserEMode(f.borrower, 1))
	_, err := f.engine.LiquidationCall(f.liquidator, f.collateralAsset, f.debtAsset, f.borrower, units(100), false)
	f.expectErr(err, lerrors.ErrHealthFactorNotBelow)

	// Debt is valued at the category source: 850 / 862.5 = 0.9855.
	f.oracle.SetPrice(source, uint256.NewInt(115_000_000))
	res, err := f.engine.LiquidationCall(f.liquidator, f.collateralAsset, f.debtAsset, f.borrower, units(1000), false)
	f.must(err)
	expectAmount(t, "debt covered", res.DebtCovered, units(375))
	// The collateral is outside the category and keeps its own 5% bonus.
	expectAmount(t, "collateral", res.CollateralToLiquidator, amount(45_065_625_000))
	expectAmount(t, "fee", res.ProtocolFee, amount(215_625_000))
	f.expectBacked()
}

func TestLiquidationSameAsset(t *testing.T) {
	a := asset(1)
	f := &liquidationFixture{
		fixture:         newFixture(t),
		collateralAsset: a,
		debtAsset:       a,
		borrower:        account(1),
		liquidator:      account(3),
	}
	f.list(a, fixedRate(0))
	f.collateral(a, 8000, 8500, 10500)
	f.borrowable(a)
	f.supply(a, account(2), units(1000))
	f.supply(a, f.borrower, units(1000))
	f.must(f.engine.Borrow(f.borrower, a, units(750), f.borrower))
	f.fund(a, f.liquidator, units(1000))
	// 1000 * 0.60 / 750 = 0.8
	f.collateral(a, 5000, 6000, 10500)

	res, err := f.engine.LiquidationCall(f.liquidator, a, a, f.borrower, wadray.Max(), false)
	f.must(err)
	expectAmount(t, "debt covered", res.DebtCovered, units(750))
	expectAmount(t, "collateral", res.CollateralToLiquidator, amount(78_750_000_000))
	if !res.BorrowingCleared || res.CollateralDisabled {
		t.Fatalf("unexpected flags %+v", res)
	}

	expectAmount(t, "borrower debt", f.debt(a, f.borrower), new(uint256.Int))
	expectAmount(t, "borrower collateral", f.receipt(a, f.borrower), amount(21_250_000_000))
	expectAmount(t, "liquidator balance", f.underlying(a, f.liquidator), amount(103_750_000_000))
	expectAmount(t, "pool", f.pool(a), amount(121_250_000_000))
	cfg, err := f.engine.UserConfiguration(f.borrower)
	f.must(err)
	if cfg.IsBorrowing(0) || !cfg.IsUsingAsCollateral(0) {
		t.Fatalf("unexpected user configuration after same asset liquidation")
	}
	f.expectBacked()
}
