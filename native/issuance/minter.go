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

var (
	// ErrZeroAmount is returned for nil, zero, or dust inputs that would
	// round to nothing.
	ErrZeroAmount = errors.New("issuance: amount must be positive")
	// ErrTokenNotSupported is returned for collateral absent from the
	// whitelist.
	ErrTokenNotSupported = errors.New("issuance: token not supported")
	// ErrOracleUnavailable is returned when the price feed cannot produce a
	// usable quote. The mint or redeem aborts; no retry.
	ErrOracleUnavailable = errors.New("issuance: oracle unavailable")

	errNotConfigured = errors.New("issuance: engine not configured")
)

// Stablecoin is the supply-ledger surface the issuance engines require.
type Stablecoin interface {
	Mint(caller, to crypto.Address, amount *big.Int) error
	Burn(caller, from crypto.Address, amount *big.Int) error
	Token() crypto.Address
}

// Minter values whitelisted collateral via the price oracle, pulls it into
// the treasury, and issues stablecoin to the depositor.
type Minter struct {
	treasury *treasury.Treasury
	stable   Stablecoin
	oracle   oracle.PriceOracle
	bank     treasury.TokenBank
	// principal is the address registered with the stablecoin ledger as its
	// sole authorized minter.
	principal crypto.Address
	emitter   events.Emitter
}

// NewMinter wires the mint orchestrator.
func NewMinter(t *treasury.Treasury, stable Stablecoin, priceOracle oracle.PriceOracle, bank treasury.TokenBank, principal crypto.Address) (*Minter, error) {
	if t == nil || stable == nil || priceOracle == nil || bank == nil {
		return nil, errNotConfigured
	}
	if principal.IsZero() {
		return nil, errNotConfigured
	}
	return &Minter{
		treasury:  t,
		stable:    stable,
		oracle:    priceOracle,
		bank:      bank,
		principal: principal,
		emitter:   events.NoopEmitter{},
	}, nil
}

// SetEmitter configures the event sink. Nil restores the no-op emitter.
func (m *Minter) SetEmitter(emitter events.Emitter) {
	if m == nil {
		return
	}
	if emitter == nil {
		m.emitter = events.NoopEmitter{}
		return
	}
	m.emitter = emitter
}

// Principal returns the minting principal registered with the supply ledger.
func (m *Minter) Principal() crypto.Address { return m.principal }

// Quote computes the stablecoin mintage for an amount of collateral without
// executing: amount * price * 10^18 / 10^(tokenDecimals + priceDecimals),
// floored.
func (m *Minter) Quote(token crypto.Address, amount *big.Int) (*big.Int, error) {
	if m == nil {
		return nil, errNotConfigured
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	entry, ok := m.treasury.Registry().EntryOf(token)
	if !ok {
		return nil, ErrTokenNotSupported
	}
	price, priceDecimals, err := m.oracle.Price(entry.PriceFeed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	tokenDecimals, err := m.bank.Decimals(token)
	if err != nil {
		return nil, err
	}
	scaled := new(big.Int).Mul(amount, price)
	return mulDiv(scaled, pow10(uint(stablecoin.Decimals)), pow10(uint(tokenDecimals)+uint(priceDecimals))), nil
}

// Mint pulls amount of token from the caller into the treasury, which wraps
// it immediately, then credits the computed mintage to the caller.
func (m *Minter) Mint(caller, token crypto.Address, amount *big.Int) (*big.Int, error) {
	if m == nil {
		return nil, errNotConfigured
	}
	if caller.IsZero() {
		return nil, ErrZeroAmount
	}
	mintage, err := m.Quote(token, amount)
	if err != nil {
		return nil, err
	}
	if mintage.Sign() == 0 {
		return nil, ErrZeroAmount
	}
	if _, err := m.treasury.Deposit(caller, token, amount); err != nil {
		if errors.Is(err, treasury.ErrNotWhitelisted) {
			return nil, ErrTokenNotSupported
		}
		return nil, err
	}
	if err := m.stable.Mint(m.principal, caller, mintage); err != nil {
		return nil, err
	}
	m.emitter.Emit(events.MintSettled{Caller: caller, Token: token, Collateral: amount, Minted: mintage})
	return mintage, nil
}
