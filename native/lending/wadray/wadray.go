// Package wadray implements the fixed-point arithmetic used by the lending
// module. Ray values carry 27 decimals, wad values 18 and percentages are
// expressed in basis points. Every operation rounds half up and reports
// overflow instead of wrapping.
package wadray

import (
	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
)

// Shared constants. Callers must treat them as read-only.
var (
	Ray              = uint256.MustFromDecimal("1000000000000000000000000000")
	HalfRay          = uint256.MustFromDecimal("500000000000000000000000000")
	Wad              = uint256.NewInt(1_000_000_000_000_000_000)
	HalfWad          = uint256.NewInt(500_000_000_000_000_000)
	WadRayRatio      = uint256.NewInt(1_000_000_000)
	PercentageFactor = uint256.NewInt(10_000)
	HalfPercentage   = uint256.NewInt(5_000)
	MaxUint256       = new(uint256.Int).SetAllOne()
)

var (
	ErrOverflow       = lerrors.ErrOverflow
	ErrUnderflow      = lerrors.ErrUnderflow
	ErrDivisionByZero = lerrors.ErrDivisionByZero
)

// Zero returns a fresh zero value.
func Zero() *uint256.Int { return new(uint256.Int) }

// RayOne returns a fresh copy of one ray.
func RayOne() *uint256.Int { return new(uint256.Int).Set(Ray) }

// Max returns a fresh copy of the maximum representable value.
func Max() *uint256.Int { return new(uint256.Int).Set(MaxUint256) }

// mulHalfUp computes (a*b + half) / unit, failing when a > (MAX - half) / b.
func mulHalfUp(a, b, unit, half *uint256.Int) (*uint256.Int, error) {
	if a.IsZero() || b.IsZero() {
		return new(uint256.Int), nil
	}
	bound := new(uint256.Int).Sub(MaxUint256, half)
	bound.Div(bound, b)
	if a.Gt(bound) {
		return nil, ErrOverflow
	}
	z := new(uint256.Int).Mul(a, b)
	z.Add(z, half)
	return z.Div(z, unit), nil
}

// divHalfUp computes (a*unit + b/2) / b, failing when a > (MAX - b/2) / unit.
func divHalfUp(a, b, unit *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, ErrDivisionByZero
	}
	half := new(uint256.Int).Rsh(b, 1)
	bound := new(uint256.Int).Sub(MaxUint256, half)
	bound.Div(bound, unit)
	if a.Gt(bound) {
		return nil, ErrOverflow
	}
	z := new(uint256.Int).Mul(a, unit)
	z.Add(z, half)
	return z.Div(z, b), nil
}

// RayMul multiplies two rays, rounding half up.
func RayMul(a, b *uint256.Int) (*uint256.Int, error) {
	return mulHalfUp(a, b, Ray, HalfRay)
}

// RayDiv divides two rays, rounding half up.
func RayDiv(a, b *uint256.Int) (*uint256.Int, error) {
	return divHalfUp(a, b, Ray)
}

// WadMul multiplies two wads, rounding half up.
func WadMul(a, b *uint256.Int) (*uint256.Int, error) {
	return mulHalfUp(a, b, Wad, HalfWad)
}

// WadDiv divides two wads, rounding half up.
func WadDiv(a, b *uint256.Int) (*uint256.Int, error) {
	return divHalfUp(a, b, Wad)
}

// PercentMul scales value by a basis point percentage.
func PercentMul(value, percentage *uint256.Int) (*uint256.Int, error) {
	return mulHalfUp(value, percentage, PercentageFactor, HalfPercentage)
}

// PercentMulU64 is PercentMul for percentages held as plain integers.
func PercentMulU64(value *uint256.Int, percentage uint64) (*uint256.Int, error) {
	return PercentMul(value, uint256.NewInt(percentage))
}

// PercentDiv divides value by a basis point percentage.
func PercentDiv(value, percentage *uint256.Int) (*uint256.Int, error) {
	return divHalfUp(value, percentage, PercentageFactor)
}

// PercentDivU64 is PercentDiv for percentages held as plain integers.
func PercentDivU64(value *uint256.Int, percentage uint64) (*uint256.Int, error) {
	return PercentDiv(value, uint256.NewInt(percentage))
}

// RayToWad converts a ray to a wad, rounding half up.
func RayToWad(a *uint256.Int) *uint256.Int {
	quotient, remainder := new(uint256.Int), new(uint256.Int)
	quotient.DivMod(a, WadRayRatio, remainder)
	if !remainder.Lt(new(uint256.Int).Rsh(WadRayRatio, 1)) {
		quotient.AddUint64(quotient, 1)
	}
	return quotient
}

// WadToRay converts a wad to a ray.
func WadToRay(a *uint256.Int) (*uint256.Int, error) {
	return Mul(a, WadRayRatio)
}

// Add returns a+b or ErrOverflow.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Sub returns a-b or ErrUnderflow.
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, ErrUnderflow
	}
	return z, nil
}

// Mul returns a*b or ErrOverflow.
func Mul(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Div returns the truncated quotient a/b or ErrDivisionByZero.
func Div(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, ErrDivisionByZero
	}
	return new(uint256.Int).Div(a, b), nil
}

// MulDiv returns (a*b)/c with a checked product and truncating division.
func MulDiv(a, b, c *uint256.Int) (*uint256.Int, error) {
	product, err := Mul(a, b)
	if err != nil {
		return nil, err
	}
	return Div(product, c)
}

// SaturatingSub returns a-b, or zero when b exceeds a.
func SaturatingSub(a, b *uint256.Int) *uint256.Int {
	if b.Gt(a) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(a, b)
}

// Min returns a copy of the smaller operand.
func Min(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int).Set(a)
	}
	return new(uint256.Int).Set(b)
}

// Pow10 returns 10^exp or ErrOverflow for exponents beyond 77.
func Pow10(exp uint8) (*uint256.Int, error) {
	if exp > 77 {
		return nil, ErrOverflow
	}
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(exp))), nil
}
