package events

import (
	"math/big"

	"vaultusd/crypto"
)

const (
	// TypeMintSettled is emitted whenever a collateral-backed mint completes.
	TypeMintSettled = "issuance.mint_settled"
	// TypeRedeemSettled is emitted whenever a burn-for-collateral completes.
	TypeRedeemSettled = "issuance.redeem_settled"
)

// MintSettled captures a completed mint: collateral pulled, position wrapped,
// stablecoin issued.
type MintSettled struct {
	Caller     crypto.Address
	Token      crypto.Address
	Collateral *big.Int
	Minted     *big.Int
}

func (MintSettled) EventType() string { return TypeMintSettled }

func (e MintSettled) Attributes() map[string]string {
	return map[string]string{
		"caller":     e.Caller.String(),
		"token":      e.Token.String(),
		"collateral": amountString(e.Collateral),
		"minted":     amountString(e.Minted),
	}
}

// RedeemSettled captures a completed redemption: stablecoin burned first,
// collateral delivered after.
type RedeemSettled struct {
	Caller     crypto.Address
	Token      crypto.Address
	Burned     *big.Int
	Collateral *big.Int
}

func (RedeemSettled) EventType() string { return TypeRedeemSettled }

func (e RedeemSettled) Attributes() map[string]string {
	return map[string]string{
		"caller":     e.Caller.String(),
		"token":      e.Token.String(),
		"burned":     amountString(e.Burned),
		"collateral": amountString(e.Collateral),
	}
}
