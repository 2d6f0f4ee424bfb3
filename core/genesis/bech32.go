package genesis

import (
	"fmt"
	"strings"

	"moneymarket/crypto"
)

// ParseBech32 decodes addr and requires the given human readable prefix.
func ParseBech32(addr string, prefix crypto.AddressPrefix) (crypto.Address, error) {
	parsed, err := crypto.DecodeAddress(strings.TrimSpace(addr))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("decode bech32 address: %w", err)
	}
	if parsed.Prefix() != prefix {
		return crypto.Address{}, fmt.Errorf("decode bech32 address: expected hrp %q, got %q", prefix, parsed.Prefix())
	}
	return parsed, nil
}
