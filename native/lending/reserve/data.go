package reserve

import (
	"github.com/holiman/uint256"

	"moneymarket/crypto"
	"moneymarket/native/lending/rates"
	"moneymarket/native/lending/wadray"
)

// Data is the persisted state of one listed reserve.
type Data struct {
	Asset crypto.Address
	// Configuration is the packed bitmap; use Config and SetConfig.
	Configuration *uint256.Int
	// LiquidityIndex converts scaled receipt balances to underlying (ray).
	LiquidityIndex *uint256.Int
	// VariableBorrowIndex converts scaled debt balances to debt (ray).
	VariableBorrowIndex       *uint256.Int
	CurrentLiquidityRate      *uint256.Int
	CurrentVariableBorrowRate *uint256.Int
	LastUpdateTimestamp       uint64
	ID                        uint16
	ReceiptToken              crypto.Address
	DebtToken                 crypto.Address
	Strategy                  rates.Params
	// AccruedToTreasury is denominated in scaled receipt units.
	AccruedToTreasury *uint256.Int
	Unbacked          *uint256.Int
	// IsolationModeTotalDebt is kept with DebtCeilingDecimals precision.
	IsolationModeTotalDebt *uint256.Int
}

// New returns a freshly initialised reserve with unit indices.
func New(asset, receiptToken, debtToken crypto.Address, strategy rates.Params, now uint64) *Data {
	return &Data{
		Asset:                     asset,
		Configuration:             new(uint256.Int),
		LiquidityIndex:            wadray.RayOne(),
		VariableBorrowIndex:       wadray.RayOne(),
		CurrentLiquidityRate:      new(uint256.Int),
		CurrentVariableBorrowRate: new(uint256.Int),
		LastUpdateTimestamp:       now,
		ReceiptToken:              receiptToken,
		DebtToken:                 debtToken,
		Strategy:                  strategy.Clone(),
		AccruedToTreasury:         new(uint256.Int),
		Unbacked:                  new(uint256.Int),
		IsolationModeTotalDebt:    new(uint256.Int),
	}
}

// Config unpacks the configuration bitmap.
func (d *Data) Config() Configuration {
	if d == nil {
		return Configuration{}
	}
	return Unpack(d.Configuration)
}

// SetConfig packs and stores the configuration.
func (d *Data) SetConfig(cfg Configuration) error {
	packed, err := cfg.Pack()
	if err != nil {
		return err
	}
	d.Configuration = packed
	return nil
}

func cloneInt(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

// Clone returns a deep copy with nil numeric fields normalised to zero.
func (d *Data) Clone() *Data {
	if d == nil {
		return nil
	}
	return &Data{
		Asset:                     d.Asset,
		Configuration:             cloneInt(d.Configuration),
		LiquidityIndex:            cloneInt(d.LiquidityIndex),
		VariableBorrowIndex:       cloneInt(d.VariableBorrowIndex),
		CurrentLiquidityRate:      cloneInt(d.CurrentLiquidityRate),
		CurrentVariableBorrowRate: cloneInt(d.CurrentVariableBorrowRate),
		LastUpdateTimestamp:       d.LastUpdateTimestamp,
		ID:                        d.ID,
		ReceiptToken:              d.ReceiptToken,
		DebtToken:                 d.DebtToken,
		Strategy:                  d.Strategy.Clone(),
		AccruedToTreasury:         cloneInt(d.AccruedToTreasury),
		Unbacked:                  cloneInt(d.Unbacked),
		IsolationModeTotalDebt:    cloneInt(d.IsolationModeTotalDebt),
	}
}

// EModeCategory is an opt-in risk profile shared by correlated assets.
// Category 0 is reserved for "no eMode".
type EModeCategory struct {
	LTV                  uint16
	LiquidationThreshold uint16
	LiquidationBonus     uint16
	// PriceSource, when non-zero, is priced by the oracle in place of every
	// member asset.
	PriceSource crypto.Address
	Label       string
}

// Defined reports whether the category has been configured.
func (c *EModeCategory) Defined() bool {
	return c != nil && c.LiquidationThreshold != 0
}
