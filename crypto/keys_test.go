package crypto

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
)

func TestAddressStringRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0x42}, AddressLength)
	addr := NewAddress(AssetPrefix, raw)

	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Prefix() != AssetPrefix {
		t.Fatalf("unexpected prefix %q", decoded.Prefix())
	}
	if !decoded.Equal(addr) {
		t.Fatalf("decoded address mismatch: %s vs %s", decoded, addr)
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-an-address"); err == nil {
		t.Fatalf("expected decode failure")
	}
}

func TestAddressRLP(t *testing.T) {
	addr := NewAddress(TokenPrefix, bytes.Repeat([]byte{0x07}, AddressLength))
	encoded, err := rlp.EncodeToBytes(addr)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out Address
	if err := rlp.DecodeBytes(encoded, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != addr {
		t.Fatalf("rlp round trip mismatch: %s vs %s", out, addr)
	}
}

func TestDeriveAddressDeterministic(t *testing.T) {
	asset := NewAddress(AssetPrefix, bytes.Repeat([]byte{0x01}, AddressLength))
	a := DeriveAddress(TokenPrefix, []byte("receipt"), asset.Bytes())
	b := DeriveAddress(TokenPrefix, []byte("receipt"), asset.Bytes())
	c := DeriveAddress(TokenPrefix, []byte("debt"), asset.Bytes())
	if a != b {
		t.Fatalf("derivation not deterministic")
	}
	if a.Equal(c) {
		t.Fatalf("distinct labels must derive distinct addresses")
	}
	if a.IsZero() {
		t.Fatalf("derived address must not be zero")
	}
}
