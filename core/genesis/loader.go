package genesis

import (
	"errors"
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"moneymarket/core/state"
	"moneymarket/crypto"
	"moneymarket/native/lending"
)

// ErrAlreadyApplied reports a state that already lists reserves.
var ErrAlreadyApplied = errors.New("genesis: market already initialised")

// PriceSetter receives the genesis prices.
type PriceSetter interface {
	SetPrice(asset crypto.Address, price *uint256.Int)
}

// SeedPrices publishes the reserve and eMode price source prices of spec.
func SeedPrices(spec *Spec, prices PriceSetter) {
	if spec == nil || prices == nil {
		return
	}
	for _, r := range spec.Reserves {
		prices.SetPrice(r.asset, r.price)
	}
	for _, c := range spec.EModeCategories {
		if c.price != nil {
			prices.SetPrice(c.priceSource, c.price)
		}
	}
}

// Apply writes the genesis market into st through engine. The engine must be
// bound to st and priced, see SeedPrices. Reserve ids follow the order of
// spec.Reserves.
func Apply(spec *Spec, st *state.Manager, engine *lending.Engine) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if st == nil || engine == nil {
		return fmt.Errorf("state and engine must not be nil")
	}
	listed, err := engine.ReservesList()
	if err != nil {
		return fmt.Errorf("load reserves: %w", err)
	}
	if len(listed) > 0 {
		return ErrAlreadyApplied
	}

	// 1) Roles (role name sorted; addresses sorted)
	roleNames := make([]string, 0, len(spec.Roles))
	for role := range spec.Roles {
		roleNames = append(roleNames, role)
	}
	sort.Strings(roleNames)
	for _, role := range roleNames {
		members := append([]string(nil), spec.Roles[role]...)
		sort.Strings(members)
		for _, member := range members {
			addr, err := ParseBech32(member, crypto.AccountPrefix)
			if err != nil {
				return fmt.Errorf("roles[%q]: %w", role, err)
			}
			if err := st.SetRole(role, addr); err != nil {
				return fmt.Errorf("roles[%q]: %w", role, err)
			}
		}
	}
	if err := st.Commit(); err != nil {
		return fmt.Errorf("commit roles: %w", err)
	}
	engine.SetTreasury(spec.treasury)

	// 2) eMode categories (id sorted)
	categories := append([]EModeCategorySpec(nil), spec.EModeCategories...)
	sort.Slice(categories, func(i, j int) bool { return categories[i].ID < categories[j].ID })
	for _, c := range categories {
		err := engine.SetEModeCategory(spec.admin, lending.EModeCategoryInput{
			ID:                   c.ID,
			LTV:                  c.LTV,
			LiquidationThreshold: c.LiquidationThreshold,
			LiquidationBonus:     c.LiquidationBonus,
			PriceSource:          c.priceSource,
			Label:                c.Label,
		})
		if err != nil {
			return fmt.Errorf("emodeCategory %d: %w", c.ID, err)
		}
	}

	// 3) Reserves (file order fixes the reserve ids)
	for i := range spec.Reserves {
		if err := applyReserve(engine, spec.admin, &spec.Reserves[i]); err != nil {
			return fmt.Errorf("reserve %s: %w", spec.Reserves[i].Asset, err)
		}
	}

	// 4) Underlying balances (accounts sorted; assets sorted)
	accounts := make([]string, 0, len(spec.Alloc))
	for account := range spec.Alloc {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	for _, account := range accounts {
		holder, err := ParseBech32(account, crypto.AccountPrefix)
		if err != nil {
			return fmt.Errorf("alloc[%q]: %w", account, err)
		}
		balances := spec.Alloc[account]
		assets := make([]string, 0, len(balances))
		for asset := range balances {
			assets = append(assets, asset)
		}
		sort.Strings(assets)
		for _, asset := range assets {
			parsed, err := ParseBech32(asset, crypto.AssetPrefix)
			if err != nil {
				return fmt.Errorf("alloc[%q][%q]: %w", account, asset, err)
			}
			amount, err := parseAmountString(balances[asset])
			if err != nil {
				return fmt.Errorf("alloc[%q][%q]: %w", account, asset, err)
			}
			if err := st.SetBalance(parsed, holder, amount); err != nil {
				return fmt.Errorf("alloc[%q][%q]: %w", account, asset, err)
			}
		}
	}
	if err := st.Commit(); err != nil {
		return fmt.Errorf("commit balances: %w", err)
	}
	return nil
}

func applyReserve(engine *lending.Engine, admin crypto.Address, r *ReserveSpec) error {
	if _, err := engine.InitReserve(admin, lending.InitReserveInput{
		Asset:    r.asset,
		Decimals: r.Decimals,
		Strategy: r.Strategy.Params(),
	}); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	steps := []struct {
		name  string
		skip  bool
		apply func() error
	}{
		{"collateral", r.LiquidationThreshold == 0, func() error {
			return engine.ConfigureReserveAsCollateral(admin, r.asset, r.LTV, r.LiquidationThreshold, r.LiquidationBonus)
		}},
		{"reserve factor", r.ReserveFactor == 0, func() error { return engine.SetReserveFactor(admin, r.asset, r.ReserveFactor) }},
		{"liquidation protocol fee", r.LiquidationProtocolFee == 0, func() error {
			return engine.SetLiquidationProtocolFee(admin, r.asset, r.LiquidationProtocolFee)
		}},
		{"borrow cap", r.BorrowCap == 0, func() error { return engine.SetBorrowCap(admin, r.asset, r.BorrowCap) }},
		{"supply cap", r.SupplyCap == 0, func() error { return engine.SetSupplyCap(admin, r.asset, r.SupplyCap) }},
		{"debt ceiling", r.DebtCeiling == 0, func() error { return engine.SetDebtCeiling(admin, r.asset, r.DebtCeiling) }},
		{"borrowing", !r.BorrowingEnabled, func() error { return engine.SetReserveBorrowing(admin, r.asset, true) }},
		{"borrowable in isolation", !r.BorrowableInIsolation, func() error {
			return engine.SetBorrowableInIsolation(admin, r.asset, true)
		}},
		{"siloed borrowing", !r.SiloedBorrowing, func() error { return engine.SetSiloedBorrowing(admin, r.asset, true) }},
		{"flash loans", !r.FlashLoanEnabled, func() error { return engine.SetReserveFlashLoaning(admin, r.asset, true) }},
		{"emode category", r.EModeCategory == 0, func() error { return engine.SetAssetEModeCategory(admin, r.asset, r.EModeCategory) }},
	}
	for _, step := range steps {
		if step.skip {
			continue
		}
		if err := step.apply(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return nil
}
