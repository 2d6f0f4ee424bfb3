package oracle

import (
	"bytes"
	"errors"
	"testing"

	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
	"moneymarket/crypto"
)

func TestStaticOracle(t *testing.T) {
	o := NewStatic()
	asset := crypto.NewAddress(crypto.AssetPrefix, bytes.Repeat([]byte{0x01}, 20))

	if _, err := o.AssetPrice(asset); !errors.Is(err, lerrors.ErrPriceUnavailable) {
		t.Fatalf("expected missing price error, got %v", err)
	}

	price := uint256.NewInt(2_000)
	o.SetPrice(asset, price)
	price.SetUint64(1)

	got, err := o.AssetPrice(asset)
	if err != nil {
		t.Fatalf("asset price: %v", err)
	}
	if got.Uint64() != 2_000 {
		t.Fatalf("oracle must copy prices, got %s", got)
	}
	got.SetUint64(3)
	again, _ := o.AssetPrice(asset)
	if again.Uint64() != 2_000 {
		t.Fatalf("returned price aliases internal state")
	}
}
