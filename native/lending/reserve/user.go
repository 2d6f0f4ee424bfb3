package reserve

import (
	"math/bits"

	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
)

// MaxReserves bounds the number of reserve slots; each slot takes two bits of
// the 256-bit user configuration.
const MaxReserves = 128

var (
	borrowingMask  = uint256.MustFromHex("0x5555555555555555555555555555555555555555555555555555555555555555")
	collateralMask = uint256.MustFromHex("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
)

// UserConfiguration tracks, per reserve id, whether an account borrows the
// asset (bit 2*id) and whether it uses the asset as collateral (bit 2*id+1).
// The zero value is an account with no positions.
type UserConfiguration struct {
	data uint256.Int
}

// NewUserConfiguration wraps a stored bitmap. A nil bitmap yields the empty
// configuration.
func NewUserConfiguration(data *uint256.Int) UserConfiguration {
	var cfg UserConfiguration
	if data != nil {
		cfg.data.Set(data)
	}
	return cfg
}

// Data returns a copy of the raw bitmap.
func (u UserConfiguration) Data() *uint256.Int {
	return new(uint256.Int).Set(&u.data)
}

func (u *UserConfiguration) setBit(bit uint, set bool) {
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), bit)
	if set {
		u.data.Or(&u.data, mask)
		return
	}
	u.data.And(&u.data, mask.Not(mask))
}

func (u UserConfiguration) bit(bit uint) bool {
	v := new(uint256.Int).Rsh(&u.data, bit)
	return v[0]&1 == 1
}

// SetBorrowing flags the reserve as borrowed or not.
func (u *UserConfiguration) SetBorrowing(id uint16, borrowing bool) error {
	if id >= MaxReserves {
		return lerrors.ErrInvalidReserveIndex
	}
	u.setBit(uint(id)*2, borrowing)
	return nil
}

// SetUsingAsCollateral flags the reserve as collateral or not.
func (u *UserConfiguration) SetUsingAsCollateral(id uint16, using bool) error {
	if id >= MaxReserves {
		return lerrors.ErrInvalidReserveIndex
	}
	u.setBit(uint(id)*2+1, using)
	return nil
}

func (u UserConfiguration) IsUsingAsCollateralOrBorrowing(id uint16) bool {
	return u.IsBorrowing(id) || u.IsUsingAsCollateral(id)
}

func (u UserConfiguration) IsBorrowing(id uint16) bool {
	return id < MaxReserves && u.bit(uint(id)*2)
}

func (u UserConfiguration) IsUsingAsCollateral(id uint16) bool {
	return id < MaxReserves && u.bit(uint(id)*2+1)
}

func popcount(v *uint256.Int) int {
	return bits.OnesCount64(v[0]) + bits.OnesCount64(v[1]) + bits.OnesCount64(v[2]) + bits.OnesCount64(v[3])
}

func (u UserConfiguration) masked(mask *uint256.Int) *uint256.Int {
	return new(uint256.Int).And(&u.data, mask)
}

// IsUsingAsCollateralOne reports whether exactly one collateral bit is set.
func (u UserConfiguration) IsUsingAsCollateralOne() bool {
	return popcount(u.masked(collateralMask)) == 1
}

func (u UserConfiguration) IsUsingAsCollateralAny() bool {
	return !u.masked(collateralMask).IsZero()
}

// IsBorrowingOne reports whether exactly one borrowing bit is set.
func (u UserConfiguration) IsBorrowingOne() bool {
	return popcount(u.masked(borrowingMask)) == 1
}

func (u UserConfiguration) IsBorrowingAny() bool {
	return !u.masked(borrowingMask).IsZero()
}

func (u UserConfiguration) IsEmpty() bool {
	return u.data.IsZero()
}

func firstID(v *uint256.Int) (uint16, bool) {
	if v.IsZero() {
		return 0, false
	}
	for word := 0; word < 4; word++ {
		if v[word] != 0 {
			return uint16((word*64 + bits.TrailingZeros64(v[word])) / 2), true
		}
	}
	return 0, false
}

// FirstCollateralID returns the lowest reserve id used as collateral.
func (u UserConfiguration) FirstCollateralID() (uint16, bool) {
	return firstID(u.masked(collateralMask))
}

// FirstBorrowingID returns the lowest reserve id being borrowed.
func (u UserConfiguration) FirstBorrowingID() (uint16, bool) {
	return firstID(u.masked(borrowingMask))
}

// ActiveIDs lists, in ascending order, every reserve id with either bit set.
func (u UserConfiguration) ActiveIDs() []uint16 {
	var ids []uint16
	for word := 0; word < 4; word++ {
		w := u.data[word]
		for w != 0 {
			pos := bits.TrailingZeros64(w)
			id := uint16((word*64 + pos) / 2)
			if len(ids) == 0 || ids[len(ids)-1] != id {
				ids = append(ids, id)
			}
			w &= w - 1
		}
	}
	return ids
}
