package state

import (
	"fmt"
	"sort"
	"strings"

	"moneymarket/crypto"
)

var rolePrefix = []byte("role:")

func roleKey(role string) []byte {
	return kvKey(rolePrefix, []byte(role))
}

func (m *Manager) roleMembers(role string) ([]crypto.Address, error) {
	var members []crypto.Address
	if _, err := m.kvGet(roleKey(role), &members); err != nil {
		return nil, err
	}
	return members, nil
}

// SetRole associates an address with the specified role. Duplicate
// assignments are ignored while the stored list remains sorted for
// determinism.
func (m *Manager) SetRole(role string, addr crypto.Address) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	if addr.IsZero() {
		return fmt.Errorf("address must not be empty")
	}
	members, err := m.roleMembers(trimmed)
	if err != nil {
		return err
	}
	for _, existing := range members {
		if existing.Equal(addr) {
			return nil
		}
	}
	members = append(members, addr)
	sort.Slice(members, func(i, j int) bool { return members[i].Compare(members[j]) < 0 })
	return m.kvPut(roleKey(trimmed), members)
}

// RemoveRole dissociates an address from the role.
func (m *Manager) RemoveRole(role string, addr crypto.Address) error {
	trimmed := strings.TrimSpace(role)
	members, err := m.roleMembers(trimmed)
	if err != nil {
		return err
	}
	kept := members[:0]
	for _, existing := range members {
		if !existing.Equal(addr) {
			kept = append(kept, existing)
		}
	}
	if len(kept) == 0 {
		m.kvDelete(roleKey(trimmed))
		return nil
	}
	return m.kvPut(roleKey(trimmed), kept)
}

// RoleMembers returns all addresses assigned to the provided role.
func (m *Manager) RoleMembers(role string) ([]crypto.Address, error) {
	members, err := m.roleMembers(strings.TrimSpace(role))
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []crypto.Address{}
	}
	return members, nil
}

// HasRole reports whether the provided address is associated with the
// specified role. Errors while reading the underlying state result in a false
// return.
func (m *Manager) HasRole(role string, addr crypto.Address) bool {
	if addr.IsZero() {
		return false
	}
	members, err := m.roleMembers(strings.TrimSpace(role))
	if err != nil {
		return false
	}
	for _, member := range members {
		if member.Equal(addr) {
			return true
		}
	}
	return false
}
