package lending

import (
	lerrors "moneymarket/core/errors"
	"moneymarket/core/events"
	"moneymarket/crypto"
	"moneymarket/native/lending/acl"
	"moneymarket/native/lending/rates"
	"moneymarket/native/lending/reserve"
	"moneymarket/native/lending/validation"
)

// MaxReserveDecimals is the largest asset precision the fixed-point kernel
// can scale.
const MaxReserveDecimals = 77

// InitReserveInput describes a new listing.
type InitReserveInput struct {
	Asset    crypto.Address
	Decimals uint8
	Strategy rates.Params
}

// InitReserve lists a new asset in the lowest free reserve slot. The reserve
// starts active and unpaused with every risk parameter at zero; it accepts
// supplies only and cannot back borrows until configured. It returns the
// assigned reserve id.
func (e *Engine) InitReserve(caller crypto.Address, in InitReserveInput) (uint16, error) {
	var id uint16
	err := e.execute("init_reserve", false, func(tx *txn) error {
		var err error
		id, err = tx.initReserve(caller, in)
		return err
	})
	return id, err
}

func (tx *txn) initReserve(caller crypto.Address, in InitReserveInput) (uint16, error) {
	if err := acl.OnlyAssetListingOrPoolAdmin(tx.state, caller); err != nil {
		return 0, err
	}
	if in.Asset.IsZero() {
		return 0, lerrors.ErrZeroAddressNotValid
	}
	if in.Decimals > MaxReserveDecimals {
		return 0, lerrors.ErrInvalidDecimals
	}
	if err := in.Strategy.Validate(); err != nil {
		return 0, err
	}
	existing, err := tx.state.Reserve(in.Asset)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, lerrors.ErrReserveAlreadyInitialized
	}

	list, err := tx.state.ReservesList()
	if err != nil {
		return 0, err
	}
	id, list, err := addToList(list, in.Asset)
	if err != nil {
		return 0, err
	}
	if err := tx.state.PutReservesList(list); err != nil {
		return 0, err
	}

	receipt, debt := DeriveTokenAddresses(in.Asset)
	r := reserve.New(in.Asset, receipt, debt, in.Strategy, tx.now)
	r.ID = id
	if err := r.SetConfig(reserve.Configuration{Decimals: in.Decimals, Active: true}); err != nil {
		return 0, err
	}
	if err := tx.putReserve(r); err != nil {
		return 0, err
	}
	tx.emit(events.ReserveInitialized{Asset: in.Asset, ID: id, ReceiptToken: receipt, DebtToken: debt})
	return id, nil
}

// addToList places asset in the lowest free slot, growing the list when it
// has no holes.
func addToList(list []crypto.Address, asset crypto.Address) (uint16, []crypto.Address, error) {
	for _, listed := range list {
		if listed.Equal(asset) {
			return 0, nil, lerrors.ErrReserveAlreadyAdded
		}
	}
	for i, listed := range list {
		if listed.IsZero() {
			out := append([]crypto.Address(nil), list...)
			out[i] = asset
			return uint16(i), out, nil
		}
	}
	if len(list) >= reserve.MaxReserves {
		return 0, nil, lerrors.ErrNoMoreReservesAllowed
	}
	return uint16(len(list)), append(append([]crypto.Address(nil), list...), asset), nil
}

// DropReserve delists an empty reserve and frees its id for reuse.
func (e *Engine) DropReserve(caller, asset crypto.Address) error {
	return e.execute("drop_reserve", false, func(tx *txn) error {
		return tx.dropReserve(caller, asset)
	})
}

func (tx *txn) dropReserve(caller, asset crypto.Address) error {
	if err := acl.OnlyPoolAdmin(tx.state, caller); err != nil {
		return err
	}
	r, err := tx.state.Reserve(asset)
	if err != nil {
		return err
	}
	params := validation.DropParams{Asset: asset, Listed: r != nil}
	if r != nil {
		if params.VariableDebtSupply, err = tx.debtLedger(r).ScaledTotalSupply(); err != nil {
			return err
		}
		if params.ReceiptSupply, err = tx.receiptLedger(r).ScaledTotalSupply(); err != nil {
			return err
		}
		params.AccruedToTreasury = r.AccruedToTreasury
	}
	if err := validation.ValidateDropReserve(params); err != nil {
		return err
	}

	list, err := tx.state.ReservesList()
	if err != nil {
		return err
	}
	if int(r.ID) >= len(list) || !list[r.ID].Equal(asset) {
		return lerrors.ErrReserveListMismatch
	}
	// User bits for this id are left in place. Both scaled supplies are zero,
	// and every path that empties a holder's scaled balance clears the matching
	// bit, so no account still flags the slot a later listing reuses.
	list = append([]crypto.Address(nil), list...)
	list[r.ID] = crypto.Address{}
	for len(list) > 0 && list[len(list)-1].IsZero() {
		list = list[:len(list)-1]
	}
	if err := tx.state.PutReservesList(list); err != nil {
		return err
	}
	if err := tx.state.DeleteReserve(asset); err != nil {
		return err
	}
	tx.forgetReserve(asset)
	tx.emit(events.ReserveDropped{Asset: asset})
	return nil
}

// listedReserves returns every listed reserve in id order.
func (tx *txn) listedReserves() ([]*reserve.Data, error) {
	list, err := tx.state.ReservesList()
	if err != nil {
		return nil, err
	}
	out := make([]*reserve.Data, 0, len(list))
	for id := range list {
		r, err := tx.reserveByID(list, uint16(id))
		if err != nil {
			return nil, err
		}
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}
