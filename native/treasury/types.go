package treasury

import (
	"math/big"

	"vaultusd/crypto"
)

// CollateralEntry maps an accepted collateral token to its yield-bearing
// wrapped token and the price feed used for valuation. Token and WrappedToken
// are unique across all entries and always distinct from each other.
type CollateralEntry struct {
	Token        crypto.Address
	WrappedToken crypto.Address
	PriceFeed    crypto.Address
}

// Clone returns a copy safe for callers to hold.
func (e CollateralEntry) Clone() CollateralEntry {
	return CollateralEntry{Token: e.Token, WrappedToken: e.WrappedToken, PriceFeed: e.PriceFeed}
}

// RoleState captures the singleton privileged slots. Governor mutates the
// other two; governor itself only changes via an explicit transfer.
type RoleState struct {
	Governor    crypto.Address
	Redeemer    crypto.Address
	SwapManager crypto.Address
}

// TokenBank abstracts the external token ledgers holding raw collateral,
// wrapped tokens and reward tokens. Custody moves happen here; the treasury
// never keeps a parallel balance counter.
type TokenBank interface {
	BalanceOf(token, account crypto.Address) (*big.Int, error)
	Transfer(token, from, to crypto.Address, amount *big.Int) error
	Decimals(token crypto.Address) (uint8, error)
}

// YieldMarket abstracts the external yield venue that wraps collateral into
// interest-bearing positions.
type YieldMarket interface {
	// Deposit supplies amount of token from the custody account and credits
	// the minted wrapped tokens back to custody. Returns the wrapped amount.
	Deposit(token crypto.Address, amount *big.Int, custody crypto.Address) (*big.Int, error)
	// Redeem burns wrappedAmount of wrappedToken held by custody and credits
	// the released raw collateral back to custody. Returns the raw amount.
	Redeem(wrappedToken crypto.Address, wrappedAmount *big.Int, custody crypto.Address) (*big.Int, error)
	// ExchangeRate reports the raw-per-wrapped rate together with its
	// fixed-point scale.
	ExchangeRate(wrappedToken crypto.Address) (rate *big.Int, scale *big.Int, err error)
	// ClaimReward claims accrued rewards for custody across the given wrapped
	// markets, crediting the market's reward token to custody.
	ClaimReward(markets []crypto.Address, custody crypto.Address) (*big.Int, error)
	// RewardToken identifies the token paid out by ClaimReward.
	RewardToken() crypto.Address
}

// SwapVenue abstracts the conversion venue used to liquidate harvested
// rewards into a whitelisted collateral token.
type SwapVenue interface {
	Swap(tokenIn, tokenOut crypto.Address, amountIn, minOut *big.Int, recipient crypto.Address) (*big.Int, error)
}
