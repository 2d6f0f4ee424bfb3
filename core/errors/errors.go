package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a protocol failure independently of its code.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInvalidState
	KindInvalidParameter
	KindArithmetic
	KindAuthorization
	KindPolicyViolation
	KindConsistency
)

func (k Kind) String() string {
	switch k {
	case KindInvalidState:
		return "invalid_state"
	case KindInvalidParameter:
		return "invalid_parameter"
	case KindArithmetic:
		return "arithmetic"
	case KindAuthorization:
		return "authorization"
	case KindPolicyViolation:
		return "policy_violation"
	case KindConsistency:
		return "consistency"
	default:
		return "unknown"
	}
}

// Error is a terminal protocol failure carrying a stable numeric code.
type Error struct {
	Kind Kind
	Code uint16
	Msg  string
}

// New constructs a protocol error.
func New(kind Kind, code uint16, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

func (e *Error) Error() string {
	return fmt.Sprintf("lending: %s (code %d)", e.Msg, e.Code)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var target *Error
	if stderrors.As(err, &target) {
		return target.Kind
	}
	return KindUnknown
}

// CodeOf returns the protocol code of the first *Error in err's chain, or 0.
func CodeOf(err error) uint16 {
	var target *Error
	if stderrors.As(err, &target) {
		return target.Code
	}
	return 0
}

// Authorization.
var (
	ErrCallerNotPoolAdmin               = New(KindAuthorization, 1, "caller not pool admin")
	ErrCallerNotEmergencyAdmin          = New(KindAuthorization, 2, "caller not emergency admin")
	ErrCallerNotPoolOrEmergencyAdmin    = New(KindAuthorization, 3, "caller not pool or emergency admin")
	ErrCallerNotRiskOrPoolAdmin         = New(KindAuthorization, 4, "caller not risk or pool admin")
	ErrCallerNotAssetListingOrPoolAdmin = New(KindAuthorization, 5, "caller not asset listing or pool admin")
)

// Reserve listing and state.
var (
	ErrReserveAlreadyAdded          = New(KindInvalidState, 14, "reserve already added")
	ErrNoMoreReservesAllowed        = New(KindPolicyViolation, 15, "no more reserves allowed")
	ErrEModeCategoryReserved        = New(KindInvalidParameter, 16, "emode category reserved")
	ErrInvalidEModeCategoryAssign   = New(KindInvalidParameter, 17, "invalid emode category assignment")
	ErrReserveLiquidityNotZero      = New(KindConsistency, 18, "reserve liquidity not zero")
	ErrInvalidReserveParams         = New(KindInvalidParameter, 20, "invalid reserve params")
	ErrInvalidEModeCategoryParams   = New(KindInvalidParameter, 21, "invalid emode category params")
	ErrInvalidMintAmount            = New(KindInvalidParameter, 24, "invalid mint amount")
	ErrInvalidBurnAmount            = New(KindInvalidParameter, 25, "invalid burn amount")
	ErrInvalidAmount                = New(KindInvalidParameter, 26, "invalid amount")
	ErrReserveInactive              = New(KindInvalidState, 27, "reserve inactive")
	ErrReserveFrozen                = New(KindInvalidState, 28, "reserve frozen")
	ErrReservePaused                = New(KindInvalidState, 29, "reserve paused")
	ErrBorrowingNotEnabled          = New(KindInvalidState, 30, "borrowing not enabled")
	ErrNotEnoughAvailableBalance    = New(KindPolicyViolation, 32, "not enough available user balance")
	ErrCollateralBalanceIsZero      = New(KindPolicyViolation, 34, "collateral balance is zero")
	ErrHealthFactorBelowThreshold   = New(KindPolicyViolation, 35, "health factor lower than liquidation threshold")
	ErrCollateralCannotCoverBorrow  = New(KindPolicyViolation, 36, "collateral cannot cover new borrow")
	ErrNoDebtOfSelectedType         = New(KindPolicyViolation, 39, "no debt of selected type")
	ErrNoExplicitAmountOnBehalf     = New(KindInvalidParameter, 40, "no explicit amount to repay on behalf")
	ErrUnderlyingBalanceZero        = New(KindPolicyViolation, 43, "underlying balance zero")
	ErrHealthFactorNotBelow         = New(KindPolicyViolation, 45, "health factor not below threshold")
	ErrCollateralCannotBeLiquidated = New(KindPolicyViolation, 46, "collateral cannot be liquidated")
	ErrSpecifiedCurrencyNotBorrowed = New(KindPolicyViolation, 47, "specified currency not borrowed by user")
	ErrBorrowCapExceeded            = New(KindPolicyViolation, 50, "borrow cap exceeded")
	ErrSupplyCapExceeded            = New(KindPolicyViolation, 51, "supply cap exceeded")
	ErrDebtCeilingExceeded          = New(KindPolicyViolation, 53, "debt ceiling exceeded")
	ErrUnderlyingClaimableRights    = New(KindConsistency, 54, "underlying claimable rights not zero")
	ErrVariableDebtSupplyNotZero    = New(KindConsistency, 56, "variable debt supply not zero")
	ErrLTVValidationFailed          = New(KindPolicyViolation, 57, "ltv validation failed")
	ErrInconsistentEModeCategory    = New(KindPolicyViolation, 58, "inconsistent emode category")
	ErrAssetNotBorrowableIsolation  = New(KindPolicyViolation, 60, "asset not borrowable in isolation")
	ErrReserveAlreadyInitialized    = New(KindInvalidState, 61, "reserve already initialized")
	ErrUserInIsolationModeOrLTV     = New(KindPolicyViolation, 62, "user in isolation mode or ltv zero")
	ErrInvalidLTV                   = New(KindInvalidParameter, 63, "invalid ltv")
	ErrInvalidLiqThreshold          = New(KindInvalidParameter, 64, "invalid liquidation threshold")
	ErrInvalidLiqBonus              = New(KindInvalidParameter, 65, "invalid liquidation bonus")
	ErrInvalidDecimals              = New(KindInvalidParameter, 66, "invalid decimals")
	ErrInvalidReserveFactor         = New(KindInvalidParameter, 67, "invalid reserve factor")
	ErrInvalidBorrowCap             = New(KindInvalidParameter, 68, "invalid borrow cap")
	ErrInvalidSupplyCap             = New(KindInvalidParameter, 69, "invalid supply cap")
	ErrInvalidLiquidationFee        = New(KindInvalidParameter, 70, "invalid liquidation protocol fee")
	ErrInvalidEModeCategory         = New(KindInvalidParameter, 71, "invalid emode category")
	ErrInvalidUnbackedMintCap       = New(KindInvalidParameter, 72, "invalid unbacked mint cap")
	ErrInvalidDebtCeiling           = New(KindInvalidParameter, 73, "invalid debt ceiling")
	ErrInvalidReserveIndex          = New(KindInvalidParameter, 74, "invalid reserve index")
	ErrZeroAddressNotValid          = New(KindInvalidParameter, 77, "zero address not valid")
	ErrDebtCeilingNotZero           = New(KindPolicyViolation, 81, "debt ceiling not zero")
	ErrAssetNotListed               = New(KindInvalidState, 82, "asset not listed")
	ErrInvalidOptimalUsageRatio     = New(KindInvalidParameter, 83, "invalid optimal usage ratio")
	ErrSiloedBorrowingViolation     = New(KindPolicyViolation, 89, "siloed borrowing violation")
	ErrReserveDebtNotZero           = New(KindConsistency, 90, "reserve debt not zero")
)

// Failures without an upstream protocol code.
var (
	ErrOverflow              = New(KindArithmetic, 1001, "arithmetic overflow")
	ErrDivisionByZero        = New(KindArithmetic, 1002, "division by zero")
	ErrPriceUnavailable      = New(KindInvalidState, 1003, "asset price unavailable")
	ErrReserveListMismatch   = New(KindConsistency, 1004, "reserve list inconsistent with reserve records")
	ErrInsufficientLiquidity = New(KindPolicyViolation, 1005, "insufficient available liquidity")
	ErrInsufficientBalance   = New(KindPolicyViolation, 1006, "insufficient balance")
	ErrModulePaused          = New(KindInvalidState, 1007, "module paused")
	ErrUnderflow             = New(KindArithmetic, 1008, "arithmetic underflow")
	ErrBorrowOnBehalf        = New(KindAuthorization, 1009, "borrowing on behalf of another account")
)
