package wadray

import (
	"errors"
	"testing"
)

func TestLinearInterest(t *testing.T) {
	rate := dec("200000000000000000000000000") // 20%
	cases := []struct {
		years uint64
		want  string
	}{
		{1, "1200000000000000000000000000"},
		{2, "1400000000000000000000000000"},
		{5, "2000000000000000000000000000"},
	}
	for _, tc := range cases {
		got, err := CalculateLinearInterest(rate, 0, tc.years*SecondsPerYear)
		if err != nil {
			t.Fatalf("linear interest: %v", err)
		}
		if !got.Eq(dec(tc.want)) {
			t.Fatalf("%d years: got %s want %s", tc.years, got, tc.want)
		}
	}
}

func TestCompoundedInterestFixtures(t *testing.T) {
	rate := dec("200000000000000000000000000")
	cases := []struct {
		years uint64
		want  string
	}{
		{1, "1221332933560973813055552000"},
		{2, "1490663472800458446207104000"},
		{5, "2666616783912550066237760000"},
	}
	for _, tc := range cases {
		got, err := CalculateCompoundedInterest(rate, 100, 100+tc.years*SecondsPerYear)
		if err != nil {
			t.Fatalf("compounded interest: %v", err)
		}
		if !got.Eq(dec(tc.want)) {
			t.Fatalf("%d years: got %s want %s", tc.years, got, tc.want)
		}
		linear, err := CalculateLinearInterest(rate, 100, 100+tc.years*SecondsPerYear)
		if err != nil {
			t.Fatalf("linear interest: %v", err)
		}
		if got.Lt(linear) {
			t.Fatalf("compounded growth %s below linear %s", got, linear)
		}
	}

	daily, err := CalculateCompoundedInterest(dec("50000000000000000000000000"), 0, 86_400)
	if err != nil {
		t.Fatalf("compounded interest: %v", err)
	}
	if !daily.Eq(dec("1000136995684207123907444230")) {
		t.Fatalf("unexpected daily factor %s", daily)
	}
}

func TestInterestZeroElapsed(t *testing.T) {
	rate := dec("900000000000000000000000000")
	got, err := CalculateCompoundedInterest(rate, 55, 55)
	if err != nil || !got.Eq(Ray) {
		t.Fatalf("expected one ray, got %v %v", got, err)
	}
	got, err = CalculateLinearInterest(rate, 55, 55)
	if err != nil || !got.Eq(Ray) {
		t.Fatalf("expected one ray, got %v %v", got, err)
	}
}

func TestInterestRejectsTimestampRegression(t *testing.T) {
	if _, err := CalculateCompoundedInterest(Ray, 10, 9); !errors.Is(err, ErrUnderflow) {
		t.Fatalf("expected underflow, got %v", err)
	}
	if _, err := CalculateLinearInterest(Ray, 10, 9); !errors.Is(err, ErrUnderflow) {
		t.Fatalf("expected underflow, got %v", err)
	}
}

func TestInterestMonotonicInElapsedTime(t *testing.T) {
	rate := dec("75000000000000000000000000")
	prevLinear, prevCompound := RayOne(), RayOne()
	for elapsed := uint64(0); elapsed <= 10*SecondsPerYear; elapsed += SecondsPerYear / 7 {
		linear, err := CalculateLinearInterest(rate, 0, elapsed)
		if err != nil {
			t.Fatalf("linear: %v", err)
		}
		compound, err := CalculateCompoundedInterest(rate, 0, elapsed)
		if err != nil {
			t.Fatalf("compound: %v", err)
		}
		if linear.Lt(prevLinear) || compound.Lt(prevCompound) {
			t.Fatalf("interest factors decreased at %d", elapsed)
		}
		prevLinear, prevCompound = linear, compound
	}
}
