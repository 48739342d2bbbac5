package events

import (
	"math/big"

	"vaultusd/crypto"
)

const (
	// TypeCollateralDeposited is emitted when raw collateral enters custody
	// and is supplied to the yield market.
	TypeCollateralDeposited = "treasury.deposited"
	// TypeCollateralWithdrawn is emitted when raw collateral is redeemed from
	// the yield market and delivered to a recipient.
	TypeCollateralWithdrawn = "treasury.withdrawn"
	// TypeTokenSwept is emitted when a stray token balance is recovered.
	TypeTokenSwept = "treasury.swept"
	// TypeYieldHarvested is emitted when rewards are claimed and converted.
	TypeYieldHarvested = "treasury.harvested"
	// TypePositionsMigrated is emitted when all positions move to a successor.
	TypePositionsMigrated = "treasury.migrated"
)

func amountString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

// CollateralDeposited records a wrap of raw collateral into a yield position.
type CollateralDeposited struct {
	Token         crypto.Address
	From          crypto.Address
	Amount        *big.Int
	WrappedMinted *big.Int
}

func (CollateralDeposited) EventType() string { return TypeCollateralDeposited }

func (e CollateralDeposited) Attributes() map[string]string {
	return map[string]string{
		"token":         e.Token.String(),
		"from":          e.From.String(),
		"amount":        amountString(e.Amount),
		"wrappedMinted": amountString(e.WrappedMinted),
	}
}

// CollateralWithdrawn records an unwrap and delivery of raw collateral.
type CollateralWithdrawn struct {
	Token     crypto.Address
	Recipient crypto.Address
	Amount    *big.Int
}

func (CollateralWithdrawn) EventType() string { return TypeCollateralWithdrawn }

func (e CollateralWithdrawn) Attributes() map[string]string {
	return map[string]string{
		"token":     e.Token.String(),
		"recipient": e.Recipient.String(),
		"amount":    amountString(e.Amount),
	}
}

// TokenSwept records the recovery of an accidentally-sent token balance.
type TokenSwept struct {
	Token     crypto.Address
	Recipient crypto.Address
	Amount    *big.Int
}

func (TokenSwept) EventType() string { return TypeTokenSwept }

func (e TokenSwept) Attributes() map[string]string {
	return map[string]string{
		"token":     e.Token.String(),
		"recipient": e.Recipient.String(),
		"amount":    amountString(e.Amount),
	}
}

// YieldHarvested records a reward claim plus its conversion into a
// whitelisted collateral position.
type YieldHarvested struct {
	RewardToken  crypto.Address
	TargetToken  crypto.Address
	RewardAmount *big.Int
	Converted    *big.Int
}

func (YieldHarvested) EventType() string { return TypeYieldHarvested }

func (e YieldHarvested) Attributes() map[string]string {
	return map[string]string{
		"rewardToken":  e.RewardToken.String(),
		"targetToken":  e.TargetToken.String(),
		"rewardAmount": amountString(e.RewardAmount),
		"converted":    amountString(e.Converted),
	}
}

// PositionsMigrated records a wholesale move of wrapped positions to a
// successor treasury custody address.
type PositionsMigrated struct {
	Successor crypto.Address
	Tokens    int
}

func (PositionsMigrated) EventType() string { return TypePositionsMigrated }

func (e PositionsMigrated) Attributes() map[string]string {
	return map[string]string{
		"successor": e.Successor.String(),
		"tokens":    itoa(e.Tokens),
	}
}

func itoa(v int) string {
	return big.NewInt(int64(v)).String()
}
