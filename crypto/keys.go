package crypto

import (
	"bytes"
	"fmt"
	"io"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// AddressPrefix defines the different types of human-readable address prefixes.
type AddressPrefix string

const (
	// AccountPrefix tags externally owned accounts (suppliers, borrowers,
	// liquidators, admins, treasury).
	AccountPrefix AddressPrefix = "mm"
	// AssetPrefix tags underlying assets listed as reserves.
	AssetPrefix AddressPrefix = "mmasset"
	// TokenPrefix tags the receipt and debt token accounts owned by a reserve.
	TokenPrefix AddressPrefix = "mmtoken"
)

// AddressLength is the size of the raw address payload.
const AddressLength = 20

// Address represents a 20-byte address with a specific prefix. The zero value
// is the zero address.
type Address struct {
	prefix AddressPrefix
	bytes  [AddressLength]byte
}

func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != AddressLength {
		panic("address must be 20 bytes long")
	}
	addr := Address{prefix: prefix}
	copy(addr.bytes[:], b)
	return addr
}

// DeriveAddress hashes the supplied parts and keeps the trailing 20 bytes, the
// same way contract addresses are derived on EVM chains.
func DeriveAddress(prefix AddressPrefix, parts ...[]byte) Address {
	digest := crypto.Keccak256(parts...)
	return NewAddress(prefix, digest[len(digest)-AddressLength:])
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	prefix := a.prefix
	if prefix == "" {
		prefix = AccountPrefix
	}
	encoded, err := bech32.Encode(string(prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Bytes returns a copy of the raw address payload.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a.bytes[:])
	return out
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// IsZero reports whether every byte of the address payload is zero.
func (a Address) IsZero() bool {
	return a.bytes == [AddressLength]byte{}
}

// Equal compares the raw payloads and ignores the prefix.
func (a Address) Equal(other Address) bool {
	return a.bytes == other.bytes
}

// Key returns a comparable representation suitable for map keys.
func (a Address) Key() [AddressLength]byte {
	return a.bytes
}

// Compare orders addresses by their raw payload.
func (a Address) Compare(other Address) int {
	return bytes.Compare(a.bytes[:], other.bytes[:])
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != AddressLength {
		return Address{}, fmt.Errorf("invalid address length %d", len(conv))
	}
	return NewAddress(AddressPrefix(prefix), conv), nil
}

type rlpAddress struct {
	Prefix string
	Bytes  []byte
}

// EncodeRLP implements rlp.Encoder.
func (a Address) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, rlpAddress{Prefix: string(a.prefix), Bytes: a.bytes[:]})
}

// DecodeRLP implements rlp.Decoder.
func (a *Address) DecodeRLP(s *rlp.Stream) error {
	var raw rlpAddress
	if err := s.Decode(&raw); err != nil {
		return err
	}
	if len(raw.Bytes) != AddressLength {
		return fmt.Errorf("invalid address length %d", len(raw.Bytes))
	}
	*a = NewAddress(AddressPrefix(raw.Prefix), raw.Bytes)
	return nil
}
