package events

import (
	"vaultusd/crypto"
)

const (
	// TypeCollateralWhitelisted is emitted when a collateral token is accepted.
	TypeCollateralWhitelisted = "collateral.whitelisted"
	// TypeCollateralRemoved is emitted when a collateral token is delisted.
	TypeCollateralRemoved = "collateral.removed"
)

// CollateralWhitelisted records a new collateral entry together with the
// wrapped token and price feed it was registered against.
type CollateralWhitelisted struct {
	Token        crypto.Address
	WrappedToken crypto.Address
	PriceFeed    crypto.Address
}

func (CollateralWhitelisted) EventType() string { return TypeCollateralWhitelisted }

func (e CollateralWhitelisted) Attributes() map[string]string {
	return map[string]string{
		"token":        e.Token.String(),
		"wrappedToken": e.WrappedToken.String(),
		"priceFeed":    e.PriceFeed.String(),
	}
}

// CollateralRemoved records a delisting.
type CollateralRemoved struct {
	Token        crypto.Address
	WrappedToken crypto.Address
}

func (CollateralRemoved) EventType() string { return TypeCollateralRemoved }

func (e CollateralRemoved) Attributes() map[string]string {
	return map[string]string{
		"token":        e.Token.String(),
		"wrappedToken": e.WrappedToken.String(),
	}
}
