// Package acl names the administrative roles of the lending module and the
// predicates configuration entry points consult.
package acl

import (
	lerrors "moneymarket/core/errors"
	"moneymarket/crypto"
)

const (
	RolePoolAdmin                  = "POOL_ADMIN"
	RoleEmergencyAdmin             = "EMERGENCY_ADMIN"
	RoleRiskAdmin                  = "RISK_ADMIN"
	RoleAssetListingAdmin          = "ASSET_LISTING_ADMIN"
	RoleIsolatedCollateralSupplier = "ISOLATED_COLLATERAL_SUPPLIER"
)

// Roles lists every role understood by the module.
var Roles = []string{
	RolePoolAdmin,
	RoleEmergencyAdmin,
	RoleRiskAdmin,
	RoleAssetListingAdmin,
	RoleIsolatedCollateralSupplier,
}

// RoleReader answers role membership queries.
type RoleReader interface {
	HasRole(role string, addr crypto.Address) bool
}

// Known reports whether role is one of Roles.
func Known(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

func has(r RoleReader, addr crypto.Address, roles ...string) bool {
	if r == nil {
		return false
	}
	for _, role := range roles {
		if r.HasRole(role, addr) {
			return true
		}
	}
	return false
}

func IsPoolAdmin(r RoleReader, addr crypto.Address) bool {
	return has(r, addr, RolePoolAdmin)
}

func IsRiskAdmin(r RoleReader, addr crypto.Address) bool {
	return has(r, addr, RoleRiskAdmin)
}

func IsIsolatedCollateralSupplier(r RoleReader, addr crypto.Address) bool {
	return has(r, addr, RoleIsolatedCollateralSupplier)
}

// OnlyPoolAdmin guards operations reserved to pool admins.
func OnlyPoolAdmin(r RoleReader, addr crypto.Address) error {
	if !has(r, addr, RolePoolAdmin) {
		return lerrors.ErrCallerNotPoolAdmin
	}
	return nil
}

// OnlyEmergencyOrPoolAdmin guards pause switches.
func OnlyEmergencyOrPoolAdmin(r RoleReader, addr crypto.Address) error {
	if !has(r, addr, RolePoolAdmin, RoleEmergencyAdmin) {
		return lerrors.ErrCallerNotPoolOrEmergencyAdmin
	}
	return nil
}

// OnlyRiskOrPoolAdmin guards risk parameter updates.
func OnlyRiskOrPoolAdmin(r RoleReader, addr crypto.Address) error {
	if !has(r, addr, RolePoolAdmin, RoleRiskAdmin) {
		return lerrors.ErrCallerNotRiskOrPoolAdmin
	}
	return nil
}

// OnlyAssetListingOrPoolAdmin guards reserve listing.
func OnlyAssetListingOrPoolAdmin(r RoleReader, addr crypto.Address) error {
	if !has(r, addr, RolePoolAdmin, RoleAssetListingAdmin) {
		return lerrors.ErrCallerNotAssetListingOrPoolAdmin
	}
	return nil
}

// OnlyEmergencyAdmin guards the pool-wide pause switch.
func OnlyEmergencyAdmin(r RoleReader, addr crypto.Address) error {
	if !has(r, addr, RoleEmergencyAdmin) {
		return lerrors.ErrCallerNotEmergencyAdmin
	}
	return nil
}
