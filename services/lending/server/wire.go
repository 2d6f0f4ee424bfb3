package server

import (
	"strings"

	"github.com/holiman/uint256"

	"moneymarket/core/genesis"
	"moneymarket/crypto"
	"moneymarket/native/lending"
	"moneymarket/native/lending/reserve"
	"moneymarket/native/lending/wadray"
)

// MaxAmount is the amount keyword selecting the caller's whole balance or
// debt.
const MaxAmount = "max"

// SupplyRequest deposits Amount of Asset on behalf of OnBehalfOf.
type SupplyRequest struct {
	Caller     string `json:"caller"`
	Asset      string `json:"asset"`
	Amount     string `json:"amount"`
	OnBehalfOf string `json:"onBehalfOf,omitempty"`
}

// WithdrawRequest redeems receipt tokens for underlying sent to To.
type WithdrawRequest struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
	To     string `json:"to,omitempty"`
}

// BorrowRequest opens or extends a variable rate position.
type BorrowRequest struct {
	Caller     string `json:"caller"`
	Asset      string `json:"asset"`
	Amount     string `json:"amount"`
	OnBehalfOf string `json:"onBehalfOf,omitempty"`
}

// RepayRequest repays debt with underlying or, when UseReceiptTokens is set,
// with the caller's receipt tokens.
type RepayRequest struct {
	Caller           string `json:"caller"`
	Asset            string `json:"asset"`
	Amount           string `json:"amount"`
	OnBehalfOf       string `json:"onBehalfOf,omitempty"`
	UseReceiptTokens bool   `json:"useReceiptTokens,omitempty"`
}

// CollateralRequest toggles the use of a supplied asset as collateral.
type CollateralRequest struct {
	Caller  string `json:"caller"`
	Asset   string `json:"asset"`
	Enabled bool   `json:"enabled"`
}

// UserEModeRequest enters or leaves (category 0) an eMode category.
type UserEModeRequest struct {
	Caller     string `json:"caller"`
	CategoryID uint8  `json:"categoryId"`
}

// LiquidationRequest liquidates an account below a health factor of one.
type LiquidationRequest struct {
	Caller              string `json:"caller"`
	CollateralAsset     string `json:"collateralAsset"`
	DebtAsset           string `json:"debtAsset"`
	User                string `json:"user"`
	DebtToCover         string `json:"debtToCover"`
	ReceiveReceiptToken bool   `json:"receiveReceiptToken,omitempty"`
}

// MintToTreasuryRequest mints the accrued treasury share of Assets, or of
// every listed reserve when empty.
type MintToTreasuryRequest struct {
	Assets []string `json:"assets,omitempty"`
}

// PriceRequest publishes an oracle price in base currency units.
type PriceRequest struct {
	Asset string `json:"asset"`
	Price string `json:"price"`
	// Timestamp is the observation time in unix seconds; zero uses the
	// server clock.
	Timestamp int64 `json:"timestamp,omitempty"`
}

// InitReserveRequest lists a new reserve.
type InitReserveRequest struct {
	Caller   string               `json:"caller"`
	Asset    string               `json:"asset"`
	Decimals uint8                `json:"decimals"`
	Strategy genesis.StrategySpec `json:"strategy"`
}

// DropReserveRequest delists an empty reserve.
type DropReserveRequest struct {
	Caller string `json:"caller"`
}

// ConfigRequest updates one reserve parameter. The fields read depend on the
// parameter: Enabled for flags, Value for factors, caps and the eMode
// category, the three risk fields for collateral and Strategy for the rate
// curve.
type ConfigRequest struct {
	Caller               string                `json:"caller"`
	Enabled              bool                  `json:"enabled,omitempty"`
	Value                uint64                `json:"value,omitempty"`
	LTV                  uint16                `json:"ltv,omitempty"`
	LiquidationThreshold uint16                `json:"liquidationThreshold,omitempty"`
	LiquidationBonus     uint16                `json:"liquidationBonus,omitempty"`
	Strategy             *genesis.StrategySpec `json:"strategy,omitempty"`
}

// EModeCategoryRequest creates or updates an eMode category.
type EModeCategoryRequest struct {
	Caller               string `json:"caller"`
	ID                   uint8  `json:"id"`
	LTV                  uint16 `json:"ltv"`
	LiquidationThreshold uint16 `json:"liquidationThreshold"`
	LiquidationBonus     uint16 `json:"liquidationBonus"`
	PriceSource          string `json:"priceSource,omitempty"`
	Label                string `json:"label,omitempty"`
}

// PoolPauseRequest pauses or unpauses every reserve.
type PoolPauseRequest struct {
	Caller string `json:"caller"`
	Paused bool   `json:"paused"`
}

// AmountResponse reports the amount an operation moved.
type AmountResponse struct {
	Amount string `json:"amount"`
}

// IDResponse reports the id assigned to a new reserve.
type IDResponse struct {
	ID uint16 `json:"id"`
}

// StatusResponse acknowledges operations without a result.
type StatusResponse struct {
	Status string `json:"status"`
}

// LiquidationResponse mirrors lending.LiquidationResult.
type LiquidationResponse struct {
	DebtCovered            string `json:"debtCovered"`
	CollateralToLiquidator string `json:"collateralToLiquidator"`
	ProtocolFee            string `json:"protocolFee"`
	CollateralDisabled     bool   `json:"collateralDisabled"`
	BorrowingCleared       bool   `json:"borrowingCleared"`
}

// MintResponse lists the amounts minted to the treasury per asset.
type MintResponse struct {
	Minted map[string]string `json:"minted"`
}

// PriceResponse reports the feed's view of an asset price.
type PriceResponse struct {
	Asset      string `json:"asset"`
	Price      string `json:"price"`
	AgeSeconds uint32 `json:"ageSeconds"`
	Status     string `json:"status"`
}

// ConfigurationView is the unpacked reserve configuration.
type ConfigurationView struct {
	LTV                    uint16 `json:"ltv"`
	LiquidationThreshold   uint16 `json:"liquidationThreshold"`
	LiquidationBonus       uint16 `json:"liquidationBonus"`
	Decimals               uint8  `json:"decimals"`
	Active                 bool   `json:"active"`
	Frozen                 bool   `json:"frozen"`
	Paused                 bool   `json:"paused"`
	BorrowingEnabled       bool   `json:"borrowingEnabled"`
	BorrowableInIsolation  bool   `json:"borrowableInIsolation"`
	SiloedBorrowing        bool   `json:"siloedBorrowing"`
	FlashLoanEnabled       bool   `json:"flashLoanEnabled"`
	ReserveFactor          uint16 `json:"reserveFactor"`
	BorrowCap              uint64 `json:"borrowCap"`
	SupplyCap              uint64 `json:"supplyCap"`
	LiquidationProtocolFee uint16 `json:"liquidationProtocolFee"`
	EModeCategory          uint8  `json:"emodeCategory"`
	UnbackedMintCap        uint64 `json:"unbackedMintCap"`
	DebtCeiling            uint64 `json:"debtCeiling"`
}

// StrategyView is a rate curve in rays.
type StrategyView struct {
	OptimalUsageRatio      string `json:"optimalUsageRatio"`
	BaseVariableBorrowRate string `json:"baseVariableBorrowRate"`
	VariableRateSlope1     string `json:"variableRateSlope1"`
	VariableRateSlope2     string `json:"variableRateSlope2"`
}

// ReserveView is the stored state of a reserve. Indexes and rates are rays.
type ReserveView struct {
	Asset                     string            `json:"asset"`
	ID                        uint16            `json:"id"`
	ReceiptToken              string            `json:"receiptToken"`
	DebtToken                 string            `json:"debtToken"`
	LiquidityIndex            string            `json:"liquidityIndex"`
	VariableBorrowIndex       string            `json:"variableBorrowIndex"`
	CurrentLiquidityRate      string            `json:"currentLiquidityRate"`
	CurrentVariableBorrowRate string            `json:"currentVariableBorrowRate"`
	LastUpdateTimestamp       uint64            `json:"lastUpdateTimestamp"`
	AccruedToTreasury         string            `json:"accruedToTreasury"`
	IsolationModeTotalDebt    string            `json:"isolationModeTotalDebt"`
	Configuration             ConfigurationView `json:"configuration"`
	Strategy                  StrategyView      `json:"strategy"`
}

// AccountView aggregates the risk position of an account. Base amounts use
// the oracle's base currency units and the health factor is a wad.
type AccountView struct {
	Account                     string   `json:"account"`
	TotalCollateralBase         string   `json:"totalCollateralBase"`
	TotalDebtBase               string   `json:"totalDebtBase"`
	AvailableBorrowsBase        string   `json:"availableBorrowsBase"`
	CurrentLTV                  uint64   `json:"currentLtv"`
	CurrentLiquidationThreshold uint64   `json:"currentLiquidationThreshold"`
	HealthFactor                string   `json:"healthFactor"`
	EModeCategory               uint8    `json:"emodeCategory"`
	Collateral                  []string `json:"collateral"`
	Borrowing                   []string `json:"borrowing"`
	IsolatedCollateral          string   `json:"isolatedCollateral,omitempty"`
	SiloedAsset                 string   `json:"siloedAsset,omitempty"`
}

// BalanceView reports an account's position in one reserve.
type BalanceView struct {
	Account    string `json:"account"`
	Asset      string `json:"asset"`
	Receipt    string `json:"receipt"`
	Debt       string `json:"debt"`
	Underlying string `json:"underlying"`
}

// EModeCategoryView is a configured eMode category.
type EModeCategoryView struct {
	ID                   uint8  `json:"id"`
	LTV                  uint16 `json:"ltv"`
	LiquidationThreshold uint16 `json:"liquidationThreshold"`
	LiquidationBonus     uint16 `json:"liquidationBonus"`
	PriceSource          string `json:"priceSource,omitempty"`
	Label                string `json:"label,omitempty"`
}

// EventView is an archived event.
type EventView struct {
	ID         string            `json:"id"`
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  int64             `json:"createdAt"`
}

func decimal(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func optionalAddress(a crypto.Address) string {
	if a.IsZero() {
		return ""
	}
	return a.String()
}

func parseAccount(field, value string) (crypto.Address, error) {
	return parseAddress(field, value, crypto.AccountPrefix)
}

func parseAsset(field, value string) (crypto.Address, error) {
	return parseAddress(field, value, crypto.AssetPrefix)
}

func parseAddress(field, value string, prefix crypto.AddressPrefix) (crypto.Address, error) {
	if strings.TrimSpace(value) == "" {
		return crypto.Address{}, badRequest("%s is required", field)
	}
	addr, err := genesis.ParseBech32(value, prefix)
	if err != nil {
		return crypto.Address{}, badRequest("%s: %v", field, err)
	}
	return addr, nil
}

// parseOptionalAccount falls back to def when value is empty.
func parseOptionalAccount(field, value string, def crypto.Address) (crypto.Address, error) {
	if strings.TrimSpace(value) == "" {
		return def, nil
	}
	return parseAccount(field, value)
}

func parseAmount(field, value string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(value)
	if strings.EqualFold(trimmed, MaxAmount) {
		return wadray.Max(), nil
	}
	if trimmed == "" {
		return nil, badRequest("%s is required", field)
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, badRequest("%s: invalid amount %q", field, value)
	}
	return amount, nil
}

func reserveView(r *reserve.Data) ReserveView {
	cfg := r.Config()
	return ReserveView{
		Asset:                     r.Asset.String(),
		ID:                        r.ID,
		ReceiptToken:              r.ReceiptToken.String(),
		DebtToken:                 r.DebtToken.String(),
		LiquidityIndex:            decimal(r.LiquidityIndex),
		VariableBorrowIndex:       decimal(r.VariableBorrowIndex),
		CurrentLiquidityRate:      decimal(r.CurrentLiquidityRate),
		CurrentVariableBorrowRate: decimal(r.CurrentVariableBorrowRate),
		LastUpdateTimestamp:       r.LastUpdateTimestamp,
		AccruedToTreasury:         decimal(r.AccruedToTreasury),
		IsolationModeTotalDebt:    decimal(r.IsolationModeTotalDebt),
		Configuration: ConfigurationView{
			LTV:                    cfg.LTV,
			LiquidationThreshold:   cfg.LiquidationThreshold,
			LiquidationBonus:       cfg.LiquidationBonus,
			Decimals:               cfg.Decimals,
			Active:                 cfg.Active,
			Frozen:                 cfg.Frozen,
			Paused:                 cfg.Paused,
			BorrowingEnabled:       cfg.BorrowingEnabled,
			BorrowableInIsolation:  cfg.BorrowableInIsolation,
			SiloedBorrowing:        cfg.SiloedBorrowing,
			FlashLoanEnabled:       cfg.FlashLoanEnabled,
			ReserveFactor:          cfg.ReserveFactor,
			BorrowCap:              cfg.BorrowCap,
			SupplyCap:              cfg.SupplyCap,
			LiquidationProtocolFee: cfg.LiquidationProtocolFee,
			EModeCategory:          cfg.EModeCategory,
			UnbackedMintCap:        cfg.UnbackedMintCap,
			DebtCeiling:            cfg.DebtCeiling,
		},
		Strategy: StrategyView{
			OptimalUsageRatio:      decimal(r.Strategy.OptimalUsageRatio),
			BaseVariableBorrowRate: decimal(r.Strategy.BaseVariableBorrowRate),
			VariableRateSlope1:     decimal(r.Strategy.VariableRateSlope1),
			VariableRateSlope2:     decimal(r.Strategy.VariableRateSlope2),
		},
	}
}

func liquidationResponse(res *lending.LiquidationResult) LiquidationResponse {
	return LiquidationResponse{
		DebtCovered:            decimal(res.DebtCovered),
		CollateralToLiquidator: decimal(res.CollateralToLiquidator),
		ProtocolFee:            decimal(res.ProtocolFee),
		CollateralDisabled:     res.CollateralDisabled,
		BorrowingCleared:       res.BorrowingCleared,
	}
}

func categoryView(id uint8, c *reserve.EModeCategory) EModeCategoryView {
	return EModeCategoryView{
		ID:                   id,
		LTV:                  c.LTV,
		LiquidationThreshold: c.LiquidationThreshold,
		LiquidationBonus:     c.LiquidationBonus,
		PriceSource:          optionalAddress(c.PriceSource),
		Label:                c.Label,
	}
}
