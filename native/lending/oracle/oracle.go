// Package oracle defines the price feed consumed by the risk and liquidation
// engines.
package oracle

import (
	"sync"

	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
	"moneymarket/crypto"
)

// PriceOracle returns asset prices in base currency units.
type PriceOracle interface {
	AssetPrice(asset crypto.Address) (*uint256.Int, error)
}

// Static is an in-memory oracle with administratively set prices.
type Static struct {
	mu     sync.RWMutex
	prices map[[crypto.AddressLength]byte]*uint256.Int
}

// NewStatic creates an empty oracle.
func NewStatic() *Static {
	return &Static{prices: make(map[[crypto.AddressLength]byte]*uint256.Int)}
}

// SetPrice records the price of an asset or eMode price source.
func (o *Static) SetPrice(asset crypto.Address, price *uint256.Int) {
	if o == nil || price == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[asset.Key()] = new(uint256.Int).Set(price)
}

// AssetPrice implements PriceOracle.
func (o *Static) AssetPrice(asset crypto.Address) (*uint256.Int, error) {
	if o == nil {
		return nil, lerrors.ErrPriceUnavailable
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	price, ok := o.prices[asset.Key()]
	if !ok {
		return nil, lerrors.ErrPriceUnavailable
	}
	return new(uint256.Int).Set(price), nil
}
