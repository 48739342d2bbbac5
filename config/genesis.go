package config

import (
	"fmt"

	"vaultusd/crypto"
	"vaultusd/native/treasury"
)

// Genesis bundles the parsed runtime addresses the engines are built from.
type Genesis struct {
	Roles      treasury.RoleState
	Keepers    []crypto.Address
	Custody    crypto.Address
	Stablecoin crypto.Address
	Collateral []treasury.CollateralEntry
}

// Genesis parses the configured bech32 strings into engine addresses. Validate
// must have succeeded first; parse failures here still surface as errors.
func (c *Config) Genesis() (*Genesis, error) {
	g := &Genesis{}
	var err error
	if g.Roles.Governor, err = crypto.DecodeAddress(c.Governor); err != nil {
		return nil, fmt.Errorf("config: governor: %w", err)
	}
	if c.Redeemer != "" {
		if g.Roles.Redeemer, err = crypto.DecodeAddress(c.Redeemer); err != nil {
			return nil, fmt.Errorf("config: redeemer: %w", err)
		}
	}
	if c.SwapManager != "" {
		if g.Roles.SwapManager, err = crypto.DecodeAddress(c.SwapManager); err != nil {
			return nil, fmt.Errorf("config: swap manager: %w", err)
		}
	}
	if g.Custody, err = crypto.DecodeAddress(c.Custody); err != nil {
		return nil, fmt.Errorf("config: custody: %w", err)
	}
	if g.Stablecoin, err = crypto.DecodeAddress(c.Stablecoin); err != nil {
		return nil, fmt.Errorf("config: stablecoin: %w", err)
	}
	for _, raw := range c.Keepers {
		keeper, err := crypto.DecodeAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("config: keeper: %w", err)
		}
		g.Keepers = append(g.Keepers, keeper)
	}
	for i, entry := range c.Collateral {
		parsed := treasury.CollateralEntry{}
		if parsed.Token, err = crypto.DecodeAddress(entry.Token); err != nil {
			return nil, fmt.Errorf("config: collateral entry %d: %w", i, err)
		}
		if parsed.WrappedToken, err = crypto.DecodeAddress(entry.WrappedToken); err != nil {
			return nil, fmt.Errorf("config: collateral entry %d: %w", i, err)
		}
		if parsed.PriceFeed, err = crypto.DecodeAddress(entry.PriceFeed); err != nil {
			return nil, fmt.Errorf("config: collateral entry %d: %w", i, err)
		}
		g.Collateral = append(g.Collateral, parsed)
	}
	return g, nil
}
