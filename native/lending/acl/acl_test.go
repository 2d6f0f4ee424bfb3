package acl

import (
	"bytes"
	"errors"
	"testing"

	lerrors "moneymarket/core/errors"
	"moneymarket/crypto"
)

type staticRoles map[string]map[[20]byte]bool

func (s staticRoles) HasRole(role string, addr crypto.Address) bool {
	return s[role][addr.Key()]
}

func TestGuards(t *testing.T) {
	admin := crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0x01}, 20))
	risk := crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0x02}, 20))
	nobody := crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0x03}, 20))
	roles := staticRoles{
		RolePoolAdmin: {admin.Key(): true},
		RoleRiskAdmin: {risk.Key(): true},
	}

	if err := OnlyPoolAdmin(roles, admin); err != nil {
		t.Fatalf("pool admin rejected: %v", err)
	}
	if err := OnlyPoolAdmin(roles, risk); !errors.Is(err, lerrors.ErrCallerNotPoolAdmin) {
		t.Fatalf("expected pool admin error, got %v", err)
	}
	if err := OnlyRiskOrPoolAdmin(roles, risk); err != nil {
		t.Fatalf("risk admin rejected: %v", err)
	}
	if err := OnlyRiskOrPoolAdmin(roles, admin); err != nil {
		t.Fatalf("pool admin rejected for risk update: %v", err)
	}
	if err := OnlyEmergencyOrPoolAdmin(roles, nobody); lerrors.KindOf(err) != lerrors.KindAuthorization {
		t.Fatalf("expected authorization failure, got %v", err)
	}
	if err := OnlyAssetListingOrPoolAdmin(nil, admin); err == nil {
		t.Fatalf("nil reader must deny")
	}
	if err := OnlyEmergencyAdmin(roles, admin); !errors.Is(err, lerrors.ErrCallerNotEmergencyAdmin) {
		t.Fatalf("pool admin must not pass the emergency guard, got %v", err)
	}
	if !Known(RoleIsolatedCollateralSupplier) || Known("ROOT") {
		t.Fatalf("unexpected role catalogue")
	}
}
