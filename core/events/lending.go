package events

import (
	"strconv"

	"github.com/holiman/uint256"

	"moneymarket/core/types"
	"moneymarket/crypto"
)

const (
	TypeReserveInitialized            = "lending.reserve_initialized"
	TypeReserveDropped                = "lending.reserve_dropped"
	TypeReserveDataUpdated            = "lending.reserve_data_updated"
	TypeReserveConfigChanged          = "lending.reserve_config_changed"
	TypeEModeCategoryAdded            = "lending.emode_category_added"
	TypeSupply                        = "lending.supply"
	TypeWithdraw                      = "lending.withdraw"
	TypeBorrow                        = "lending.borrow"
	TypeRepay                         = "lending.repay"
	TypeCollateralEnabled             = "lending.collateral_enabled"
	TypeCollateralDisabled            = "lending.collateral_disabled"
	TypeUserEModeSet                  = "lending.user_emode_set"
	TypeLiquidationCall               = "lending.liquidation_call"
	TypeMintedToTreasury              = "lending.minted_to_treasury"
	TypeIsolationModeTotalDebtUpdated = "lending.isolation_mode_total_debt_updated"
)

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func addressString(a crypto.Address) string {
	if a.IsZero() {
		return ""
	}
	return a.String()
}

// ReserveInitialized reports a newly listed reserve.
type ReserveInitialized struct {
	Asset        crypto.Address
	ID           uint16
	ReceiptToken crypto.Address
	DebtToken    crypto.Address
}

func (ReserveInitialized) EventType() string { return TypeReserveInitialized }

func (e ReserveInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypeReserveInitialized,
		Attributes: map[string]string{
			"asset":        addressString(e.Asset),
			"id":           strconv.FormatUint(uint64(e.ID), 10),
			"receiptToken": addressString(e.ReceiptToken),
			"debtToken":    addressString(e.DebtToken),
		},
	}
}

// ReserveDropped reports a delisted reserve.
type ReserveDropped struct {
	Asset crypto.Address
}

func (ReserveDropped) EventType() string { return TypeReserveDropped }

func (e ReserveDropped) Event() *types.Event {
	return &types.Event{
		Type:       TypeReserveDropped,
		Attributes: map[string]string{"asset": addressString(e.Asset)},
	}
}

// ReserveDataUpdated carries the rates and indices after a rate update.
type ReserveDataUpdated struct {
	Asset               crypto.Address
	LiquidityRate       *uint256.Int
	VariableBorrowRate  *uint256.Int
	LiquidityIndex      *uint256.Int
	VariableBorrowIndex *uint256.Int
}

func (ReserveDataUpdated) EventType() string { return TypeReserveDataUpdated }

func (e ReserveDataUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeReserveDataUpdated,
		Attributes: map[string]string{
			"asset":               addressString(e.Asset),
			"liquidityRate":       amountString(e.LiquidityRate),
			"variableBorrowRate":  amountString(e.VariableBorrowRate),
			"liquidityIndex":      amountString(e.LiquidityIndex),
			"variableBorrowIndex": amountString(e.VariableBorrowIndex),
		},
	}
}

// ReserveConfigChanged records one administrative parameter change.
type ReserveConfigChanged struct {
	Asset     crypto.Address
	Parameter string
	Old       string
	New       string
}

func (ReserveConfigChanged) EventType() string { return TypeReserveConfigChanged }

func (e ReserveConfigChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeReserveConfigChanged,
		Attributes: map[string]string{
			"asset":     addressString(e.Asset),
			"parameter": e.Parameter,
			"old":       e.Old,
			"new":       e.New,
		},
	}
}

// EModeCategoryAdded reports a created or updated eMode category.
type EModeCategoryAdded struct {
	CategoryID           uint8
	LTV                  uint16
	LiquidationThreshold uint16
	LiquidationBonus     uint16
	PriceSource          crypto.Address
	Label                string
}

func (EModeCategoryAdded) EventType() string { return TypeEModeCategoryAdded }

func (e EModeCategoryAdded) Event() *types.Event {
	return &types.Event{
		Type: TypeEModeCategoryAdded,
		Attributes: map[string]string{
			"categoryId":           strconv.FormatUint(uint64(e.CategoryID), 10),
			"ltv":                  strconv.FormatUint(uint64(e.LTV), 10),
			"liquidationThreshold": strconv.FormatUint(uint64(e.LiquidationThreshold), 10),
			"liquidationBonus":     strconv.FormatUint(uint64(e.LiquidationBonus), 10),
			"priceSource":          addressString(e.PriceSource),
			"label":                e.Label,
		},
	}
}

// Supply reports liquidity deposited on behalf of an account.
type Supply struct {
	Asset      crypto.Address
	User       crypto.Address
	OnBehalfOf crypto.Address
	Amount     *uint256.Int
}

func (Supply) EventType() string { return TypeSupply }

func (e Supply) Event() *types.Event {
	return &types.Event{
		Type: TypeSupply,
		Attributes: map[string]string{
			"asset":      addressString(e.Asset),
			"user":       addressString(e.User),
			"onBehalfOf": addressString(e.OnBehalfOf),
			"amount":     amountString(e.Amount),
		},
	}
}

// Withdraw reports liquidity redeemed by an account.
type Withdraw struct {
	Asset  crypto.Address
	User   crypto.Address
	To     crypto.Address
	Amount *uint256.Int
}

func (Withdraw) EventType() string { return TypeWithdraw }

func (e Withdraw) Event() *types.Event {
	return &types.Event{
		Type: TypeWithdraw,
		Attributes: map[string]string{
			"asset":  addressString(e.Asset),
			"user":   addressString(e.User),
			"to":     addressString(e.To),
			"amount": amountString(e.Amount),
		},
	}
}

// Borrow reports new variable debt.
type Borrow struct {
	Asset      crypto.Address
	User       crypto.Address
	OnBehalfOf crypto.Address
	Amount     *uint256.Int
	BorrowRate *uint256.Int
}

func (Borrow) EventType() string { return TypeBorrow }

func (e Borrow) Event() *types.Event {
	return &types.Event{
		Type: TypeBorrow,
		Attributes: map[string]string{
			"asset":      addressString(e.Asset),
			"user":       addressString(e.User),
			"onBehalfOf": addressString(e.OnBehalfOf),
			"amount":     amountString(e.Amount),
			"borrowRate": amountString(e.BorrowRate),
		},
	}
}

// Repay reports repaid variable debt.
type Repay struct {
	Asset            crypto.Address
	User             crypto.Address
	Repayer          crypto.Address
	Amount           *uint256.Int
	UseReceiptTokens bool
}

func (Repay) EventType() string { return TypeRepay }

func (e Repay) Event() *types.Event {
	return &types.Event{
		Type: TypeRepay,
		Attributes: map[string]string{
			"asset":            addressString(e.Asset),
			"user":             addressString(e.User),
			"repayer":          addressString(e.Repayer),
			"amount":           amountString(e.Amount),
			"useReceiptTokens": strconv.FormatBool(e.UseReceiptTokens),
		},
	}
}

// CollateralToggled reports a change of an account's collateral bit.
type CollateralToggled struct {
	Asset   crypto.Address
	User    crypto.Address
	Enabled bool
}

func (e CollateralToggled) EventType() string {
	if e.Enabled {
		return TypeCollateralEnabled
	}
	return TypeCollateralDisabled
}

func (e CollateralToggled) Event() *types.Event {
	return &types.Event{
		Type: e.EventType(),
		Attributes: map[string]string{
			"asset": addressString(e.Asset),
			"user":  addressString(e.User),
		},
	}
}

// UserEModeSet reports an account switching eMode category.
type UserEModeSet struct {
	User       crypto.Address
	CategoryID uint8
}

func (UserEModeSet) EventType() string { return TypeUserEModeSet }

func (e UserEModeSet) Event() *types.Event {
	return &types.Event{
		Type: TypeUserEModeSet,
		Attributes: map[string]string{
			"user":       addressString(e.User),
			"categoryId": strconv.FormatUint(uint64(e.CategoryID), 10),
		},
	}
}

// LiquidationCall records a completed liquidation.
type LiquidationCall struct {
	CollateralAsset            crypto.Address
	DebtAsset                  crypto.Address
	User                       crypto.Address
	DebtToCover                *uint256.Int
	LiquidatedCollateralAmount *uint256.Int
	ProtocolFee                *uint256.Int
	Liquidator                 crypto.Address
	ReceiveReceiptToken        bool
}

func (LiquidationCall) EventType() string { return TypeLiquidationCall }

func (e LiquidationCall) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidationCall,
		Attributes: map[string]string{
			"collateralAsset":            addressString(e.CollateralAsset),
			"debtAsset":                  addressString(e.DebtAsset),
			"user":                       addressString(e.User),
			"debtToCover":                amountString(e.DebtToCover),
			"liquidatedCollateralAmount": amountString(e.LiquidatedCollateralAmount),
			"protocolFee":                amountString(e.ProtocolFee),
			"liquidator":                 addressString(e.Liquidator),
			"receiveReceiptToken":        strconv.FormatBool(e.ReceiveReceiptToken),
		},
	}
}

// MintedToTreasury reports accrued reserve income credited to the treasury.
type MintedToTreasury struct {
	Asset  crypto.Address
	Amount *uint256.Int
}

func (MintedToTreasury) EventType() string { return TypeMintedToTreasury }

func (e MintedToTreasury) Event() *types.Event {
	return &types.Event{
		Type: TypeMintedToTreasury,
		Attributes: map[string]string{
			"asset":  addressString(e.Asset),
			"amount": amountString(e.Amount),
		},
	}
}

// IsolationModeTotalDebtUpdated reports the debt counter of an isolated
// collateral.
type IsolationModeTotalDebtUpdated struct {
	Asset     crypto.Address
	TotalDebt *uint256.Int
}

func (IsolationModeTotalDebtUpdated) EventType() string { return TypeIsolationModeTotalDebtUpdated }

func (e IsolationModeTotalDebtUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeIsolationModeTotalDebtUpdated,
		Attributes: map[string]string{
			"asset":     addressString(e.Asset),
			"totalDebt": amountString(e.TotalDebt),
		},
	}
}
