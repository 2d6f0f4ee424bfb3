package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/holiman/uint256"

	"moneymarket/crypto"
	"moneymarket/native/lending/acl"
	"moneymarket/native/lending/rates"
	"moneymarket/native/lending/wadray"
)

const bpsDenominator = 10_000

// Spec describes the initial market: roles, the treasury, underlying
// balances, eMode categories and listed reserves.
type Spec struct {
	Treasury        string                       `json:"treasury"`
	Roles           map[string][]string          `json:"roles"` // role -> []addr
	Alloc           map[string]map[string]string `json:"alloc"` // account -> asset -> amount
	EModeCategories []EModeCategorySpec          `json:"emodeCategories,omitempty"`
	Reserves        []ReserveSpec                `json:"reserves"`

	treasury crypto.Address
	admin    crypto.Address
}

// EModeCategorySpec defines an eMode category. Risk parameters are in basis
// points.
type EModeCategorySpec struct {
	ID                   uint8  `json:"id"`
	Label                string `json:"label"`
	LTV                  uint16 `json:"ltv"`
	LiquidationThreshold uint16 `json:"liquidationThreshold"`
	LiquidationBonus     uint16 `json:"liquidationBonus"`
	PriceSource          string `json:"priceSource,omitempty"`
	Price                string `json:"price,omitempty"`

	priceSource crypto.Address
	price       *uint256.Int
}

// StrategySpec is a rate curve in basis points per year.
type StrategySpec struct {
	OptimalUsageBps uint32 `json:"optimalUsageBps"`
	BaseRateBps     uint32 `json:"baseRateBps"`
	Slope1Bps       uint32 `json:"slope1Bps"`
	Slope2Bps       uint32 `json:"slope2Bps"`
}

// ReserveSpec lists an asset with its risk configuration. Percentages are in
// basis points, caps in whole tokens and the debt ceiling in hundredths of
// the base currency.
type ReserveSpec struct {
	Asset                  string       `json:"asset"`
	Decimals               uint8        `json:"decimals"`
	Price                  string       `json:"price"`
	Strategy               StrategySpec `json:"strategy"`
	LTV                    uint16       `json:"ltv"`
	LiquidationThreshold   uint16       `json:"liquidationThreshold"`
	LiquidationBonus       uint16       `json:"liquidationBonus"`
	ReserveFactor          uint16       `json:"reserveFactor"`
	LiquidationProtocolFee uint16       `json:"liquidationProtocolFee"`
	BorrowCap              uint64       `json:"borrowCap"`
	SupplyCap              uint64       `json:"supplyCap"`
	DebtCeiling            uint64       `json:"debtCeiling"`
	BorrowingEnabled       bool         `json:"borrowingEnabled"`
	BorrowableInIsolation  bool         `json:"borrowableInIsolation"`
	SiloedBorrowing        bool         `json:"siloedBorrowing"`
	FlashLoanEnabled       bool         `json:"flashLoanEnabled"`
	EModeCategory          uint8        `json:"emodeCategory"`

	asset crypto.Address
	price *uint256.Int
}

// LoadSpec reads and validates a genesis file.
func LoadSpec(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseSpec decodes and validates a JSON genesis document.
func ParseSpec(raw []byte) (*Spec, error) {
	var spec Spec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

// TreasuryAddress returns the parsed treasury account.
func (s *Spec) TreasuryAddress() crypto.Address { return s.treasury }

// Admin returns the pool admin that performs the genesis configuration.
func (s *Spec) Admin() crypto.Address { return s.admin }

func (s *Spec) validate() error {
	treasury, err := ParseBech32(s.Treasury, crypto.AccountPrefix)
	if err != nil {
		return fmt.Errorf("treasury: %w", err)
	}
	s.treasury = treasury

	for role, members := range s.Roles {
		if !acl.Known(role) {
			return fmt.Errorf("roles: unknown role %q", role)
		}
		for _, member := range members {
			if _, err := ParseBech32(member, crypto.AccountPrefix); err != nil {
				return fmt.Errorf("roles[%q]: %w", role, err)
			}
		}
	}
	admins := s.Roles[acl.RolePoolAdmin]
	if len(admins) == 0 {
		return fmt.Errorf("roles: at least one %s is required", acl.RolePoolAdmin)
	}
	s.admin, _ = ParseBech32(admins[0], crypto.AccountPrefix)

	categories := make(map[uint8]struct{}, len(s.EModeCategories))
	for i := range s.EModeCategories {
		c := &s.EModeCategories[i]
		if err := c.validate(); err != nil {
			return fmt.Errorf("emodeCategory[%d]: %w", i, err)
		}
		if _, dup := categories[c.ID]; dup {
			return fmt.Errorf("emodeCategory[%d]: duplicate id %d", i, c.ID)
		}
		categories[c.ID] = struct{}{}
	}

	assets := make(map[[crypto.AddressLength]byte]struct{}, len(s.Reserves))
	for i := range s.Reserves {
		r := &s.Reserves[i]
		if err := r.validate(); err != nil {
			return fmt.Errorf("reserve[%d]: %w", i, err)
		}
		if _, dup := assets[r.asset.Key()]; dup {
			return fmt.Errorf("reserve[%d]: duplicate asset %s", i, r.Asset)
		}
		if r.EModeCategory != 0 {
			if _, ok := categories[r.EModeCategory]; !ok {
				return fmt.Errorf("reserve[%d]: undefined emode category %d", i, r.EModeCategory)
			}
		}
		assets[r.asset.Key()] = struct{}{}
	}

	for account, balances := range s.Alloc {
		if _, err := ParseBech32(account, crypto.AccountPrefix); err != nil {
			return fmt.Errorf("alloc[%q]: %w", account, err)
		}
		for asset, amount := range balances {
			parsed, err := ParseBech32(asset, crypto.AssetPrefix)
			if err != nil {
				return fmt.Errorf("alloc[%q][%q]: %w", account, asset, err)
			}
			if _, ok := assets[parsed.Key()]; !ok {
				return fmt.Errorf("alloc[%q][%q]: asset is not a listed reserve", account, asset)
			}
			if _, err := parseAmountString(amount); err != nil {
				return fmt.Errorf("alloc[%q][%q]: %w", account, asset, err)
			}
		}
	}
	return nil
}

func (c *EModeCategorySpec) validate() error {
	if c.ID == 0 {
		return fmt.Errorf("id 0 is reserved")
	}
	if c.PriceSource == "" {
		if c.Price != "" {
			return fmt.Errorf("price requires a priceSource")
		}
		return nil
	}
	source, err := ParseBech32(c.PriceSource, crypto.AssetPrefix)
	if err != nil {
		return fmt.Errorf("priceSource: %w", err)
	}
	c.priceSource = source
	if c.Price != "" {
		price, err := parseAmountString(c.Price)
		if err != nil {
			return fmt.Errorf("price: %w", err)
		}
		c.price = price
	}
	return nil
}

func (r *ReserveSpec) validate() error {
	asset, err := ParseBech32(r.Asset, crypto.AssetPrefix)
	if err != nil {
		return fmt.Errorf("asset: %w", err)
	}
	r.asset = asset
	price, err := parseAmountString(r.Price)
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}
	if price.IsZero() {
		return fmt.Errorf("price must be positive")
	}
	r.price = price
	if err := r.Strategy.Params().Validate(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	return nil
}

// Params converts the basis point curve to ray rates.
func (s StrategySpec) Params() rates.Params {
	return rates.Params{
		OptimalUsageRatio:      bpsToRay(s.OptimalUsageBps),
		BaseVariableBorrowRate: bpsToRay(s.BaseRateBps),
		VariableRateSlope1:     bpsToRay(s.Slope1Bps),
		VariableRateSlope2:     bpsToRay(s.Slope2Bps),
	}
}

func bpsToRay(bps uint32) *uint256.Int {
	out := new(uint256.Int).Mul(wadray.Ray, uint256.NewInt(uint64(bps)))
	return out.Div(out, uint256.NewInt(bpsDenominator))
}

func parseAmountString(value string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount must be provided")
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return amount, nil
}
