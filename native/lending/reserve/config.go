// Package reserve defines the per-asset reserve record, its packed
// configuration and the per-account configuration bitmap.
package reserve

import (
	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
)

// Bit offsets of the packed reserve configuration.
const (
	ltvStart                    = 0
	liquidationThresholdStart   = 16
	liquidationBonusStart       = 32
	decimalsStart               = 48
	activeBit                   = 56
	frozenBit                   = 57
	borrowingEnabledBit         = 58
	pausedBit                   = 60
	borrowableInIsolationBit    = 61
	siloedBorrowingBit          = 62
	flashLoanEnabledBit         = 63
	reserveFactorStart          = 64
	borrowCapStart              = 80
	supplyCapStart              = 116
	liquidationProtocolFeeStart = 152
	eModeCategoryStart          = 168
	unbackedMintCapStart        = 176
	debtCeilingStart            = 212
)

// Field widths that are not implied by the Go field type.
const (
	MaxValidBorrowCap       = 1<<36 - 1
	MaxValidSupplyCap       = 1<<36 - 1
	MaxValidUnbackedMintCap = 1<<36 - 1
	MaxValidDebtCeiling     = 1<<40 - 1
)

// DebtCeilingDecimals is the precision of debt ceilings and of the isolation
// mode debt counter.
const DebtCeilingDecimals = 2

// Configuration is the unpacked form of a reserve's configuration bitmap.
// Percentages are basis points; caps are whole units of the asset.
type Configuration struct {
	LTV                    uint16
	LiquidationThreshold   uint16
	LiquidationBonus       uint16
	Decimals               uint8
	Active                 bool
	Frozen                 bool
	BorrowingEnabled       bool
	Paused                 bool
	BorrowableInIsolation  bool
	SiloedBorrowing        bool
	FlashLoanEnabled       bool
	ReserveFactor          uint16
	BorrowCap              uint64
	SupplyCap              uint64
	LiquidationProtocolFee uint16
	EModeCategory          uint8
	UnbackedMintCap        uint64
	DebtCeiling            uint64
}

func setField(dst *uint256.Int, value uint64, offset uint) {
	field := uint256.NewInt(value)
	field.Lsh(field, offset)
	dst.Or(dst, field)
}

func setFlag(dst *uint256.Int, set bool, bit uint) {
	if set {
		setField(dst, 1, bit)
	}
}

func getField(src *uint256.Int, offset, width uint) uint64 {
	v := new(uint256.Int).Rsh(src, offset)
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), width)
	mask.SubUint64(mask, 1)
	return v.And(v, mask).Uint64()
}

func getFlag(src *uint256.Int, bit uint) bool {
	return getField(src, bit, 1) == 1
}

// Pack encodes the configuration into its bitmap form.
func (c Configuration) Pack() (*uint256.Int, error) {
	if c.BorrowCap > MaxValidBorrowCap {
		return nil, lerrors.ErrInvalidBorrowCap
	}
	if c.SupplyCap > MaxValidSupplyCap {
		return nil, lerrors.ErrInvalidSupplyCap
	}
	if c.UnbackedMintCap > MaxValidUnbackedMintCap {
		return nil, lerrors.ErrInvalidUnbackedMintCap
	}
	if c.DebtCeiling > MaxValidDebtCeiling {
		return nil, lerrors.ErrInvalidDebtCeiling
	}
	out := new(uint256.Int)
	setField(out, uint64(c.LTV), ltvStart)
	setField(out, uint64(c.LiquidationThreshold), liquidationThresholdStart)
	setField(out, uint64(c.LiquidationBonus), liquidationBonusStart)
	setField(out, uint64(c.Decimals), decimalsStart)
	setFlag(out, c.Active, activeBit)
	setFlag(out, c.Frozen, frozenBit)
	setFlag(out, c.BorrowingEnabled, borrowingEnabledBit)
	setFlag(out, c.Paused, pausedBit)
	setFlag(out, c.BorrowableInIsolation, borrowableInIsolationBit)
	setFlag(out, c.SiloedBorrowing, siloedBorrowingBit)
	setFlag(out, c.FlashLoanEnabled, flashLoanEnabledBit)
	setField(out, uint64(c.ReserveFactor), reserveFactorStart)
	setField(out, c.BorrowCap, borrowCapStart)
	setField(out, c.SupplyCap, supplyCapStart)
	setField(out, uint64(c.LiquidationProtocolFee), liquidationProtocolFeeStart)
	setField(out, uint64(c.EModeCategory), eModeCategoryStart)
	setField(out, c.UnbackedMintCap, unbackedMintCapStart)
	setField(out, c.DebtCeiling, debtCeilingStart)
	return out, nil
}

// Unpack decodes a configuration bitmap. A nil bitmap decodes to the zero
// configuration.
func Unpack(data *uint256.Int) Configuration {
	if data == nil {
		return Configuration{}
	}
	return Configuration{
		LTV:                    uint16(getField(data, ltvStart, 16)),
		LiquidationThreshold:   uint16(getField(data, liquidationThresholdStart, 16)),
		LiquidationBonus:       uint16(getField(data, liquidationBonusStart, 16)),
		Decimals:               uint8(getField(data, decimalsStart, 8)),
		Active:                 getFlag(data, activeBit),
		Frozen:                 getFlag(data, frozenBit),
		BorrowingEnabled:       getFlag(data, borrowingEnabledBit),
		Paused:                 getFlag(data, pausedBit),
		BorrowableInIsolation:  getFlag(data, borrowableInIsolationBit),
		SiloedBorrowing:        getFlag(data, siloedBorrowingBit),
		FlashLoanEnabled:       getFlag(data, flashLoanEnabledBit),
		ReserveFactor:          uint16(getField(data, reserveFactorStart, 16)),
		BorrowCap:              getField(data, borrowCapStart, 36),
		SupplyCap:              getField(data, supplyCapStart, 36),
		LiquidationProtocolFee: uint16(getField(data, liquidationProtocolFeeStart, 16)),
		EModeCategory:          uint8(getField(data, eModeCategoryStart, 8)),
		UnbackedMintCap:        getField(data, unbackedMintCapStart, 36),
		DebtCeiling:            getField(data, debtCeilingStart, 40),
	}
}
