package issuance

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"vaultusd/crypto"
	"vaultusd/native/oracle"
	"vaultusd/native/stablecoin"
	"vaultusd/native/treasury"
	"vaultusd/state"
	"vaultusd/storage"
)

func addr(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[crypto.AddressLength-1] = b
	return crypto.MustNewAddress(crypto.VusdPrefix, raw)
}

// testBank is a minimal in-memory treasury.TokenBank.
type testBank struct {
	balances map[string]map[string]*big.Int
	decimals map[string]uint8
}

func newTestBank() *testBank {
	return &testBank{
		balances: make(map[string]map[string]*big.Int),
		decimals: make(map[string]uint8),
	}
}

func (b *testBank) credit(token, account crypto.Address, amount *big.Int) {
	accounts, ok := b.balances[token.Key()]
	if !ok {
		accounts = make(map[string]*big.Int)
		b.balances[token.Key()] = accounts
	}
	current, ok := accounts[account.Key()]
	if !ok {
		current = big.NewInt(0)
	}
	accounts[account.Key()] = new(big.Int).Add(current, amount)
}

func (b *testBank) BalanceOf(token, account crypto.Address) (*big.Int, error) {
	accounts, ok := b.balances[token.Key()]
	if !ok {
		return big.NewInt(0), nil
	}
	balance, ok := accounts[account.Key()]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(balance), nil
}

func (b *testBank) Transfer(token, from, to crypto.Address, amount *big.Int) error {
	balance, err := b.BalanceOf(token, from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return errors.New("bank: insufficient balance")
	}
	b.credit(token, from, new(big.Int).Neg(amount))
	b.credit(token, to, amount)
	return nil
}

func (b *testBank) Decimals(token crypto.Address) (uint8, error) {
	decimals, ok := b.decimals[token.Key()]
	if !ok {
		return 18, nil
	}
	return decimals, nil
}

// parMarket wraps collateral 1:1. Par keeps mint/redeem arithmetic exact so
// the tests can assert precise stablecoin amounts.
type parMarket struct {
	bank    *testBank
	self    crypto.Address
	wrapped map[string]crypto.Address
	raw     map[string]crypto.Address
}

func newParMarket(bank *testBank, self crypto.Address) *parMarket {
	return &parMarket{
		bank:    bank,
		self:    self,
		wrapped: make(map[string]crypto.Address),
		raw:     make(map[string]crypto.Address),
	}
}

func (m *parMarket) list(raw, wrapped crypto.Address) {
	m.wrapped[raw.Key()] = wrapped
	m.raw[wrapped.Key()] = raw
}

func (m *parMarket) Deposit(token crypto.Address, amount *big.Int, custody crypto.Address) (*big.Int, error) {
	wrapped, ok := m.wrapped[token.Key()]
	if !ok {
		return nil, errors.New("market: unsupported token")
	}
	if err := m.bank.Transfer(token, custody, m.self, amount); err != nil {
		return nil, err
	}
	m.bank.credit(wrapped, custody, amount)
	return new(big.Int).Set(amount), nil
}

func (m *parMarket) Redeem(wrappedToken crypto.Address, wrappedAmount *big.Int, custody crypto.Address) (*big.Int, error) {
	raw, ok := m.raw[wrappedToken.Key()]
	if !ok {
		return nil, errors.New("market: unsupported wrapped token")
	}
	held, err := m.bank.BalanceOf(wrappedToken, custody)
	if err != nil {
		return nil, err
	}
	if held.Cmp(wrappedAmount) < 0 {
		return nil, errors.New("market: insufficient wrapped balance")
	}
	m.bank.credit(wrappedToken, custody, new(big.Int).Neg(wrappedAmount))
	if err := m.bank.Transfer(raw, m.self, custody, wrappedAmount); err != nil {
		return nil, err
	}
	return new(big.Int).Set(wrappedAmount), nil
}

func (m *parMarket) ExchangeRate(wrappedToken crypto.Address) (*big.Int, *big.Int, error) {
	if _, ok := m.raw[wrappedToken.Key()]; !ok {
		return nil, nil, errors.New("market: unsupported wrapped token")
	}
	scale := big.NewInt(1_000_000_000_000_000_000)
	return new(big.Int).Set(scale), scale, nil
}

func (m *parMarket) ClaimReward(markets []crypto.Address, custody crypto.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (m *parMarket) RewardToken() crypto.Address { return addr(0x40) }

// idleVenue never trades; issuance flows do not touch the swap path.
type idleVenue struct{}

func (idleVenue) Swap(tokenIn, tokenOut crypto.Address, amountIn, minOut *big.Int, recipient crypto.Address) (*big.Int, error) {
	return nil, errors.New("venue: not available")
}

type fixture struct {
	bank   *testBank
	market *parMarket
	vault  *treasury.Treasury
	stable *stablecoin.Ledger
	oracle *oracle.ManualOracle
	minter *Minter
	redeem *Redeemer

	governor  crypto.Address
	principal crypto.Address
	user      crypto.Address
	custody   crypto.Address
	token     crypto.Address
	wrapped   crypto.Address
	feed      crypto.Address
}

// newFixture wires the full mint/redeem stack: a six-decimal collateral token
// listed at par, a manual oracle, and one principal holding the supply
// ledger's mint/burn rights and the treasury's redeemer role.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		governor:  addr(0x01),
		principal: addr(0x05),
		user:      addr(0x06),
		custody:   addr(0x10),
		token:     addr(0x20),
		wrapped:   addr(0x21),
		feed:      addr(0x22),
	}
	manager, err := state.NewManager(storage.NewMemDB())
	if err != nil {
		t.Fatalf("new state manager: %v", err)
	}
	f.bank = newTestBank()
	f.bank.decimals[f.token.Key()] = 6
	f.market = newParMarket(f.bank, addr(0x50))
	f.market.list(f.token, f.wrapped)

	registry, err := treasury.NewCollateralRegistry(manager)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	roles, err := treasury.NewRoles(manager, treasury.RoleState{Governor: f.governor, Redeemer: f.principal})
	if err != nil {
		t.Fatalf("new roles: %v", err)
	}
	ledger, err := treasury.NewPositionLedger(registry, f.bank, f.market, idleVenue{}, f.custody)
	if err != nil {
		t.Fatalf("new position ledger: %v", err)
	}

	stableToken := addr(0x11)
	f.stable, err = stablecoin.NewLedger(manager, stableToken)
	if err != nil {
		t.Fatalf("new stablecoin ledger: %v", err)
	}
	f.stable.SetMinter(f.principal)
	f.stable.SetRedeemer(f.principal)

	f.vault, err = treasury.NewTreasury(registry, ledger, roles, f.bank, stableToken)
	if err != nil {
		t.Fatalf("new treasury: %v", err)
	}
	if err := f.vault.AddWhitelistedToken(f.governor, f.token, f.wrapped, f.feed); err != nil {
		t.Fatalf("whitelist: %v", err)
	}

	f.oracle = oracle.NewManualOracle(time.Hour)
	f.minter, err = NewMinter(f.vault, f.stable, f.oracle, f.bank, f.principal)
	if err != nil {
		t.Fatalf("new minter: %v", err)
	}
	f.redeem, err = NewRedeemer(f.vault, f.stable, f.oracle, f.bank, f.principal)
	if err != nil {
		t.Fatalf("new redeemer: %v", err)
	}
	return f
}

// postDollarPrice posts a $1.00 quote with six price decimals.
func (f *fixture) postDollarPrice(t *testing.T) {
	t.Helper()
	if err := f.oracle.Post(f.feed, big.NewInt(1_000_000), 6); err != nil {
		t.Fatalf("post price: %v", err)
	}
}
