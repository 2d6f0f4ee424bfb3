package wadray

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func dec(s string) *uint256.Int { return uint256.MustFromDecimal(s) }

func TestRayMulRoundsHalfUp(t *testing.T) {
	// 1.5e-27 * 1 ray rounds to 2 units when multiplied by half a ray plus one.
	got, err := RayMul(u(3), HalfRay)
	if err != nil {
		t.Fatalf("ray mul: %v", err)
	}
	if !got.Eq(u(2)) {
		t.Fatalf("expected 2, got %s", got)
	}
	got, err = RayMul(u(1), new(uint256.Int).SubUint64(HalfRay, 1))
	if err != nil {
		t.Fatalf("ray mul: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("expected 0, got %s", got)
	}
}

func TestRayMulZeroOperand(t *testing.T) {
	got, err := RayMul(MaxUint256, u(0))
	if err != nil || !got.IsZero() {
		t.Fatalf("expected zero without error, got %v %v", got, err)
	}
}

func TestRayMulOverflowBoundary(t *testing.T) {
	bound := dec("115792089237316195423570985008687907853269984665640")
	if _, err := RayMul(bound, Ray); err != nil {
		t.Fatalf("boundary operand must not overflow: %v", err)
	}
	over := new(uint256.Int).AddUint64(bound, 1)
	if _, err := RayMul(over, Ray); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestRayDivFailures(t *testing.T) {
	if _, err := RayDiv(Ray, u(0)); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
	bound := new(uint256.Int).Sub(MaxUint256, u(1))
	bound.Div(bound, Ray)
	if _, err := RayDiv(bound, u(2)); err != nil {
		t.Fatalf("boundary operand must not overflow: %v", err)
	}
	if _, err := RayDiv(new(uint256.Int).AddUint64(bound, 1), u(2)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestRayRoundTripWithinOneUnit(t *testing.T) {
	values := []*uint256.Int{u(1), u(7), u(999_999), dec("123456789012345678901234567890"), dec("1000000000000000000000000")}
	divisors := []*uint256.Int{Ray, dec("1000000000000000000000000001"), dec("1234567890123456789012345678"), dec("5000000000000000000000000000")}
	for _, a := range values {
		for _, b := range divisors {
			product, err := RayMul(a, b)
			if err != nil {
				t.Fatalf("ray mul: %v", err)
			}
			back, err := RayDiv(product, b)
			if err != nil {
				t.Fatalf("ray div: %v", err)
			}
			diff := new(uint256.Int)
			if back.Gt(a) {
				diff.Sub(back, a)
			} else {
				diff.Sub(a, back)
			}
			if diff.GtUint64(1) {
				t.Fatalf("round trip of %s through %s drifted to %s", a, b, back)
			}
		}
	}
}

func TestWadOps(t *testing.T) {
	got, err := WadMul(dec("2500000000000000000"), dec("2000000000000000000"))
	if err != nil || !got.Eq(dec("5000000000000000000")) {
		t.Fatalf("wad mul: %v %v", got, err)
	}
	got, err = WadDiv(u(1), u(3))
	if err != nil || !got.Eq(dec("333333333333333333")) {
		t.Fatalf("wad div: %v %v", got, err)
	}
	if _, err := WadDiv(Wad, u(0)); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
}

func TestPercentOps(t *testing.T) {
	cases := []struct {
		value, pct, mul, div uint64
	}{
		{value: 1000, pct: 5000, mul: 500, div: 2000},
		{value: 1000, pct: 10500, mul: 1050, div: 952},
		{value: 1, pct: 5000, mul: 1, div: 2},
		{value: 3, pct: 1, mul: 0, div: 30000},
	}
	for _, tc := range cases {
		mul, err := PercentMulU64(u(tc.value), tc.pct)
		if err != nil || mul.Uint64() != tc.mul {
			t.Fatalf("percent mul(%d,%d) = %v %v, want %d", tc.value, tc.pct, mul, err, tc.mul)
		}
		div, err := PercentDivU64(u(tc.value), tc.pct)
		if err != nil || div.Uint64() != tc.div {
			t.Fatalf("percent div(%d,%d) = %v %v, want %d", tc.value, tc.pct, div, err, tc.div)
		}
	}
	if _, err := PercentDivU64(u(1), 0); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
	if got, err := PercentMulU64(u(0), 9999); err != nil || !got.IsZero() {
		t.Fatalf("zero value must yield zero")
	}
	if _, err := PercentMulU64(MaxUint256, 2); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestRayWadConversion(t *testing.T) {
	if got := RayToWad(dec("1500000000")); !got.Eq(u(2)) {
		t.Fatalf("expected 2, got %s", got)
	}
	if got := RayToWad(dec("1499999999")); !got.Eq(u(1)) {
		t.Fatalf("expected 1, got %s", got)
	}
	got, err := WadToRay(Wad)
	if err != nil || !got.Eq(Ray) {
		t.Fatalf("wad to ray: %v %v", got, err)
	}
}

func TestCheckedHelpers(t *testing.T) {
	if _, err := Add(MaxUint256, u(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow")
	}
	if _, err := Sub(u(1), u(2)); !errors.Is(err, ErrUnderflow) {
		t.Fatalf("expected underflow")
	}
	if got := SaturatingSub(u(1), u(2)); !got.IsZero() {
		t.Fatalf("expected saturation at zero")
	}
	if _, err := MulDiv(MaxUint256, u(2), u(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow")
	}
	got, err := Pow10(18)
	if err != nil || !got.Eq(Wad) {
		t.Fatalf("pow10: %v %v", got, err)
	}
	if _, err := Pow10(78); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow for 10^78")
	}
}
