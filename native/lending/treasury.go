package lending

import (
	"errors"
	"log/slog"

	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
	"moneymarket/core/events"
	"moneymarket/crypto"
	"moneymarket/native/lending/wadray"
)

// MintToTreasury mints the accrued reserve factor share of each asset to the
// treasury as receipt tokens. Unlisted and inactive reserves are skipped.
// It returns the amount minted per asset.
func (e *Engine) MintToTreasury(assets ...crypto.Address) (map[string]*uint256.Int, error) {
	minted := make(map[string]*uint256.Int)
	err := e.execute("mint_to_treasury", false, func(tx *txn) error {
		for _, asset := range assets {
			amount, err := tx.mintToTreasury(asset)
			if err != nil {
				return err
			}
			if amount != nil {
				minted[asset.String()] = amount
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for asset, amount := range minted {
		e.logger.Info("reserve income minted to treasury",
			slog.String("asset", asset),
			slog.String("amount", amount.Dec()),
			slog.String("treasury", e.treasury.String()))
	}
	return minted, nil
}

func (tx *txn) mintToTreasury(asset crypto.Address) (*uint256.Int, error) {
	r, err := tx.reserve(asset)
	if errors.Is(err, lerrors.ErrAssetNotListed) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !r.Config().Active || r.AccruedToTreasury.IsZero() {
		return nil, nil
	}
	index, err := NormalizedIncome(r, tx.now)
	if err != nil {
		return nil, err
	}
	amount, err := wadray.RayMul(r.AccruedToTreasury, index)
	if err != nil {
		return nil, err
	}
	r.AccruedToTreasury = new(uint256.Int)
	if err := tx.putReserve(r); err != nil {
		return nil, err
	}
	if _, err := tx.receiptLedger(r).Mint(tx.treasury, amount, index); err != nil {
		return nil, err
	}
	tx.emit(events.MintedToTreasury{Asset: asset, Amount: new(uint256.Int).Set(amount)})
	return amount, nil
}
