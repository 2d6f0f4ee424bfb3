package reserve

import (
	"errors"
	"reflect"
	"testing"

	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
)

func sampleConfig() Configuration {
	return Configuration{
		LTV:                    8000,
		LiquidationThreshold:   8250,
		LiquidationBonus:       10500,
		Decimals:               18,
		Active:                 true,
		BorrowingEnabled:       true,
		FlashLoanEnabled:       true,
		ReserveFactor:          1000,
		BorrowCap:              2_000_000,
		SupplyCap:              3_000_000,
		LiquidationProtocolFee: 1000,
		EModeCategory:          1,
		DebtCeiling:            150_000,
	}
}

func TestConfigurationPackLayout(t *testing.T) {
	packed, err := sampleConfig().Pack()
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	want := uint256.MustFromHex("0x249f00000000000103e80002dc6c00001e848003e885122904203a1f40")
	if !packed.Eq(want) {
		t.Fatalf("unexpected bitmap %s", packed.Hex())
	}
	if got := Unpack(packed); !reflect.DeepEqual(got, sampleConfig()) {
		t.Fatalf("unpack mismatch: %+v", got)
	}
}

func TestConfigurationRoundTripFlags(t *testing.T) {
	cfg := Configuration{
		Frozen:                true,
		Paused:                true,
		BorrowableInIsolation: true,
		SiloedBorrowing:       true,
		BorrowCap:             MaxValidBorrowCap,
		SupplyCap:             MaxValidSupplyCap,
		UnbackedMintCap:       MaxValidUnbackedMintCap,
		DebtCeiling:           MaxValidDebtCeiling,
		EModeCategory:         255,
		LTV:                   65535,
	}
	packed, err := cfg.Pack()
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if got := Unpack(packed); !reflect.DeepEqual(got, cfg) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestConfigurationPackRejectsWideFields(t *testing.T) {
	cases := []struct {
		cfg  Configuration
		want error
	}{
		{Configuration{BorrowCap: MaxValidBorrowCap + 1}, lerrors.ErrInvalidBorrowCap},
		{Configuration{SupplyCap: MaxValidSupplyCap + 1}, lerrors.ErrInvalidSupplyCap},
		{Configuration{UnbackedMintCap: MaxValidUnbackedMintCap + 1}, lerrors.ErrInvalidUnbackedMintCap},
		{Configuration{DebtCeiling: MaxValidDebtCeiling + 1}, lerrors.ErrInvalidDebtCeiling},
	}
	for _, tc := range cases {
		if _, err := tc.cfg.Pack(); !errors.Is(err, tc.want) {
			t.Fatalf("expected %v, got %v", tc.want, err)
		}
	}
}

func TestUnpackNil(t *testing.T) {
	if got := Unpack(nil); got != (Configuration{}) {
		t.Fatalf("expected zero configuration, got %+v", got)
	}
}

func TestUserConfigurationBits(t *testing.T) {
	var cfg UserConfiguration
	if !cfg.IsEmpty() {
		t.Fatalf("zero value must be empty")
	}
	if err := cfg.SetUsingAsCollateral(3, true); err != nil {
		t.Fatalf("set collateral: %v", err)
	}
	if err := cfg.SetBorrowing(70, true); err != nil {
		t.Fatalf("set borrowing: %v", err)
	}
	if !cfg.IsUsingAsCollateral(3) || cfg.IsBorrowing(3) {
		t.Fatalf("unexpected bits for reserve 3")
	}
	if !cfg.IsBorrowing(70) || cfg.IsUsingAsCollateral(70) {
		t.Fatalf("unexpected bits for reserve 70")
	}
	if !cfg.IsUsingAsCollateralOne() || !cfg.IsBorrowingOne() {
		t.Fatalf("expected exactly one collateral and one borrow")
	}
	if id, ok := cfg.FirstCollateralID(); !ok || id != 3 {
		t.Fatalf("unexpected first collateral id %d %v", id, ok)
	}
	if id, ok := cfg.FirstBorrowingID(); !ok || id != 70 {
		t.Fatalf("unexpected first borrowing id %d %v", id, ok)
	}
	if err := cfg.SetUsingAsCollateral(127, true); err != nil {
		t.Fatalf("set collateral: %v", err)
	}
	if cfg.IsUsingAsCollateralOne() || !cfg.IsUsingAsCollateralAny() {
		t.Fatalf("expected two collateral bits")
	}
	if got := cfg.ActiveIDs(); !reflect.DeepEqual(got, []uint16{3, 70, 127}) {
		t.Fatalf("unexpected active ids %v", got)
	}

	if err := cfg.SetBorrowing(70, false); err != nil {
		t.Fatalf("clear borrowing: %v", err)
	}
	if cfg.IsBorrowingAny() {
		t.Fatalf("borrowing bit not cleared")
	}
	restored := NewUserConfiguration(cfg.Data())
	if !restored.IsUsingAsCollateral(127) || !restored.IsUsingAsCollateral(3) {
		t.Fatalf("bitmap did not survive round trip")
	}
}

func TestUserConfigurationRejectsOutOfRangeID(t *testing.T) {
	var cfg UserConfiguration
	if err := cfg.SetBorrowing(MaxReserves, true); !errors.Is(err, lerrors.ErrInvalidReserveIndex) {
		t.Fatalf("expected invalid reserve index, got %v", err)
	}
	if cfg.IsBorrowing(MaxReserves) {
		t.Fatalf("out of range id must read false")
	}
}

func TestDataCloneIsDeep(t *testing.T) {
	d := &Data{LiquidityIndex: uint256.NewInt(5)}
	clone := d.Clone()
	clone.LiquidityIndex.SetUint64(9)
	if d.LiquidityIndex.Uint64() != 5 {
		t.Fatalf("clone aliases the original")
	}
	if clone.AccruedToTreasury == nil || !clone.AccruedToTreasury.IsZero() {
		t.Fatalf("nil fields must clone to zero")
	}
}
