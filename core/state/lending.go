package state

import (
	"fmt"

	"github.com/holiman/uint256"

	"moneymarket/crypto"
	"moneymarket/native/lending/reserve"
)

var (
	reservePrefix       = []byte("lending/reserve:")
	reserveListKey      = kvKey([]byte("lending/reserve-list"))
	userConfigPrefix    = []byte("lending/user-config:")
	userEModePrefix     = []byte("lending/user-emode:")
	eModeCategoryPrefix = []byte("lending/emode:")
	scaledBalancePrefix = []byte("lending/scaled-balance:")
	scaledSupplyPrefix  = []byte("lending/scaled-supply:")
	balancePrefix       = []byte("balance:")
)

func reserveKey(asset crypto.Address) []byte {
	return kvKey(reservePrefix, asset.Bytes())
}

func userConfigKey(user crypto.Address) []byte {
	return kvKey(userConfigPrefix, user.Bytes())
}

func userEModeKey(user crypto.Address) []byte {
	return kvKey(userEModePrefix, user.Bytes())
}

func eModeCategoryKey(id uint8) []byte {
	return kvKey(eModeCategoryPrefix, []byte{id})
}

func scaledBalanceKey(token, holder crypto.Address) []byte {
	return kvKey(scaledBalancePrefix, token.Bytes(), []byte{':'}, holder.Bytes())
}

func scaledSupplyKey(token crypto.Address) []byte {
	return kvKey(scaledSupplyPrefix, token.Bytes())
}

func balanceKey(asset, holder crypto.Address) []byte {
	return kvKey(balancePrefix, asset.Bytes(), []byte{':'}, holder.Bytes())
}

// Reserve loads the reserve listed for asset, or nil when none is.
func (m *Manager) Reserve(asset crypto.Address) (*reserve.Data, error) {
	data := new(reserve.Data)
	ok, err := m.kvGet(reserveKey(asset), data)
	if err != nil || !ok {
		return nil, err
	}
	return data, nil
}

// PutReserve stores a reserve record keyed by its asset.
func (m *Manager) PutReserve(data *reserve.Data) error {
	if data == nil {
		return fmt.Errorf("state: nil reserve")
	}
	if data.Asset.IsZero() {
		return fmt.Errorf("state: reserve asset must not be zero")
	}
	return m.kvPut(reserveKey(data.Asset), data.Clone())
}

// DeleteReserve removes the reserve record for asset.
func (m *Manager) DeleteReserve(asset crypto.Address) error {
	m.kvDelete(reserveKey(asset))
	return nil
}

// ReservesList returns the id-indexed reserve slots. Free slots hold the
// zero address.
func (m *Manager) ReservesList() ([]crypto.Address, error) {
	var list []crypto.Address
	if _, err := m.kvGet(reserveListKey, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []crypto.Address{}
	}
	return list, nil
}

// PutReservesList replaces the reserve slots.
func (m *Manager) PutReservesList(list []crypto.Address) error {
	if len(list) > reserve.MaxReserves {
		return fmt.Errorf("state: reserve list exceeds %d slots", reserve.MaxReserves)
	}
	return m.kvPut(reserveListKey, list)
}

// UserConfiguration returns the account's bitmap, empty when never written.
func (m *Manager) UserConfiguration(user crypto.Address) (reserve.UserConfiguration, error) {
	data := new(uint256.Int)
	if _, err := m.kvGet(userConfigKey(user), data); err != nil {
		return reserve.UserConfiguration{}, err
	}
	return reserve.NewUserConfiguration(data), nil
}

// PutUserConfiguration stores the account's bitmap.
func (m *Manager) PutUserConfiguration(user crypto.Address, cfg reserve.UserConfiguration) error {
	return m.kvPut(userConfigKey(user), cfg.Data())
}

// UserEMode returns the account's eMode category id (0 when unset).
func (m *Manager) UserEMode(user crypto.Address) (uint8, error) {
	var id uint8
	if _, err := m.kvGet(userEModeKey(user), &id); err != nil {
		return 0, err
	}
	return id, nil
}

// PutUserEMode stores the account's eMode category id.
func (m *Manager) PutUserEMode(user crypto.Address, id uint8) error {
	return m.kvPut(userEModeKey(user), id)
}

// EModeCategory returns the category or nil when it was never configured.
func (m *Manager) EModeCategory(id uint8) (*reserve.EModeCategory, error) {
	category := new(reserve.EModeCategory)
	ok, err := m.kvGet(eModeCategoryKey(id), category)
	if err != nil || !ok {
		return nil, err
	}
	return category, nil
}

// PutEModeCategory stores a category definition.
func (m *Manager) PutEModeCategory(id uint8, category *reserve.EModeCategory) error {
	if category == nil {
		return fmt.Errorf("state: nil emode category")
	}
	return m.kvPut(eModeCategoryKey(id), category)
}

func (m *Manager) loadAmount(key []byte) (*uint256.Int, error) {
	amount := new(uint256.Int)
	if _, err := m.kvGet(key, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

func (m *Manager) storeAmount(key []byte, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		m.kvDelete(key)
		return nil
	}
	return m.kvPut(key, amount)
}

// ScaledBalance returns a holder's scaled balance of a receipt or debt token.
func (m *Manager) ScaledBalance(token, holder crypto.Address) (*uint256.Int, error) {
	return m.loadAmount(scaledBalanceKey(token, holder))
}

func (m *Manager) SetScaledBalance(token, holder crypto.Address, amount *uint256.Int) error {
	return m.storeAmount(scaledBalanceKey(token, holder), amount)
}

// ScaledTotalSupply returns the token's scaled supply.
func (m *Manager) ScaledTotalSupply(token crypto.Address) (*uint256.Int, error) {
	return m.loadAmount(scaledSupplyKey(token))
}

func (m *Manager) SetScaledTotalSupply(token crypto.Address, amount *uint256.Int) error {
	return m.storeAmount(scaledSupplyKey(token), amount)
}

// Balance returns a holder's underlying asset balance.
func (m *Manager) Balance(asset, holder crypto.Address) (*uint256.Int, error) {
	return m.loadAmount(balanceKey(asset, holder))
}

func (m *Manager) SetBalance(asset, holder crypto.Address, amount *uint256.Int) error {
	return m.storeAmount(balanceKey(asset, holder), amount)
}
