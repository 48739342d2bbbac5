package issuance

import (
	"errors"
	"fmt"
	"math/big"

	"vaultusd/core/events"
	"vaultusd/crypto"
	"vaultusd/native/oracle"
	"vaultusd/native/stablecoin"
	"vaultusd/native/treasury"
)

// Redeemer burns stablecoin and releases the proportional collateral. The
// burn always precedes the withdrawal so a reentrant caller cannot redeem the
// same balance twice.
type Redeemer struct {
	treasury *treasury.Treasury
	stable   Stablecoin
	oracle   oracle.PriceOracle
	bank     treasury.TokenBank
	// principal is the address holding both the supply ledger's burn right
	// and the treasury's redeemer role.
	principal crypto.Address
	emitter   events.Emitter
}

// NewRedeemer wires the redeem orchestrator.
func NewRedeemer(t *treasury.Treasury, stable Stablecoin, priceOracle oracle.PriceOracle, bank treasury.TokenBank, principal crypto.Address) (*Redeemer, error) {
	if t == nil || stable == nil || priceOracle == nil || bank == nil {
		return nil, errNotConfigured
	}
	if principal.IsZero() {
		return nil, errNotConfigured
	}
	return &Redeemer{
		treasury:  t,
		stable:    stable,
		oracle:    priceOracle,
		bank:      bank,
		principal: principal,
		emitter:   events.NoopEmitter{},
	}, nil
}

// SetEmitter configures the event sink. Nil restores the no-op emitter.
func (r *Redeemer) SetEmitter(emitter events.Emitter) {
	if r == nil {
		return
	}
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// Principal returns the redeeming principal.
func (r *Redeemer) Principal() crypto.Address { return r.principal }

// Quote computes the collateral owed for a stablecoin amount without
// executing: the mint formula inverted, floored so the treasury never pays
// out more than the burn covers.
func (r *Redeemer) Quote(token crypto.Address, stableAmount *big.Int) (*big.Int, error) {
	if r == nil {
		return nil, errNotConfigured
	}
	if stableAmount == nil || stableAmount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	entry, ok := r.treasury.Registry().EntryOf(token)
	if !ok {
		return nil, ErrTokenNotSupported
	}
	price, priceDecimals, err := r.oracle.Price(entry.PriceFeed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	tokenDecimals, err := r.bank.Decimals(token)
	if err != nil {
		return nil, err
	}
	numerator := pow10(uint(tokenDecimals) + uint(priceDecimals))
	denominator := new(big.Int).Mul(price, pow10(uint(stablecoin.Decimals)))
	return mulDiv(stableAmount, numerator, denominator), nil
}

// Redeem burns stableAmount from the caller and delivers the proportional
// raw collateral to them.
func (r *Redeemer) Redeem(caller, token crypto.Address, stableAmount *big.Int) (*big.Int, error) {
	if r == nil {
		return nil, errNotConfigured
	}
	if caller.IsZero() {
		return nil, ErrZeroAmount
	}
	collateral, err := r.Quote(token, stableAmount)
	if err != nil {
		return nil, err
	}
	if collateral.Sign() == 0 {
		return nil, ErrZeroAmount
	}
	available, err := r.treasury.Withdrawable(token)
	if err != nil {
		return nil, err
	}
	if available.Cmp(collateral) < 0 {
		return nil, treasury.ErrInsufficientWithdrawable
	}
	// Burn before withdraw: the supply shrinks before any external transfer
	// can reenter.
	if err := r.stable.Burn(r.principal, caller, stableAmount); err != nil {
		return nil, err
	}
	if err := r.treasury.Withdraw(r.principal, token, collateral, caller); err != nil {
		if errors.Is(err, treasury.ErrTokenNotSupported) {
			return nil, ErrTokenNotSupported
		}
		return nil, err
	}
	r.emitter.Emit(events.RedeemSettled{Caller: caller, Token: token, Burned: stableAmount, Collateral: collateral})
	return collateral, nil
}
