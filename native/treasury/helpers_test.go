package treasury

import (
	"errors"
	"math/big"
	"testing"

	"vaultusd/core/events"
	"vaultusd/crypto"
	"vaultusd/state"
	"vaultusd/storage"
)

func addr(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[crypto.AddressLength-1] = b
	return crypto.MustNewAddress(crypto.VusdPrefix, raw)
}

func newTestState(t *testing.T) *state.Manager {
	t.Helper()
	manager, err := state.NewManager(storage.NewMemDB())
	if err != nil {
		t.Fatalf("new state manager: %v", err)
	}
	return manager
}

// memBank is an in-memory TokenBank covering every token the tests touch.
type memBank struct {
	balances map[string]map[string]*big.Int
	decimals map[string]uint8
	failNext error
}

func newMemBank() *memBank {
	return &memBank{
		balances: make(map[string]map[string]*big.Int),
		decimals: make(map[string]uint8),
	}
}

func (b *memBank) setDecimals(token crypto.Address, decimals uint8) {
	b.decimals[token.Key()] = decimals
}

func (b *memBank) credit(token, account crypto.Address, amount *big.Int) {
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

func (b *memBank) BalanceOf(token, account crypto.Address) (*big.Int, error) {
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

func (b *memBank) Transfer(token, from, to crypto.Address, amount *big.Int) error {
	if b.failNext != nil {
		err := b.failNext
		b.failNext = nil
		return err
	}
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

func (b *memBank) Decimals(token crypto.Address) (uint8, error) {
	decimals, ok := b.decimals[token.Key()]
	if !ok {
		return 18, nil
	}
	return decimals, nil
}

// fakeMarket wraps raw collateral at a configurable exchange rate against the
// shared memBank balances.
type fakeMarket struct {
	bank       *memBank
	self       crypto.Address
	rewardTok  crypto.Address
	pending    *big.Int
	rates      map[string]*big.Int // wrapped token key -> raw per scale wrapped
	scale      *big.Int
	wrappedFor map[string]crypto.Address // raw token key -> wrapped token
	rawFor     map[string]crypto.Address // wrapped token key -> raw token
	redeemErr  error
	claimErr   error
}

func newFakeMarket(bank *memBank, self, rewardToken crypto.Address) *fakeMarket {
	return &fakeMarket{
		bank:       bank,
		self:       self,
		rewardTok:  rewardToken,
		pending:    big.NewInt(0),
		rates:      make(map[string]*big.Int),
		scale:      big.NewInt(1_000_000_000_000_000_000),
		wrappedFor: make(map[string]crypto.Address),
		rawFor:     make(map[string]crypto.Address),
	}
}

func (m *fakeMarket) listMarket(raw, wrapped crypto.Address, rate *big.Int) {
	m.rates[wrapped.Key()] = new(big.Int).Set(rate)
	m.wrappedFor[raw.Key()] = wrapped
	m.rawFor[wrapped.Key()] = raw
}

func (m *fakeMarket) Deposit(token crypto.Address, amount *big.Int, custody crypto.Address) (*big.Int, error) {
	wrapped, ok := m.wrappedFor[token.Key()]
	if !ok {
		return nil, errors.New("market: unsupported token")
	}
	if err := m.bank.Transfer(token, custody, m.self, amount); err != nil {
		return nil, err
	}
	rate := m.rates[wrapped.Key()]
	minted := new(big.Int).Mul(amount, m.scale)
	minted.Quo(minted, rate)
	m.bank.credit(wrapped, custody, minted)
	return minted, nil
}

func (m *fakeMarket) Redeem(wrappedToken crypto.Address, wrappedAmount *big.Int, custody crypto.Address) (*big.Int, error) {
	if m.redeemErr != nil {
		return nil, m.redeemErr
	}
	raw, ok := m.rawFor[wrappedToken.Key()]
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
	rate := m.rates[wrappedToken.Key()]
	released := new(big.Int).Mul(wrappedAmount, rate)
	released.Quo(released, m.scale)
	m.bank.credit(wrappedToken, custody, new(big.Int).Neg(wrappedAmount))
	if err := m.bank.Transfer(raw, m.self, custody, released); err != nil {
		return nil, err
	}
	return released, nil
}

func (m *fakeMarket) ExchangeRate(wrappedToken crypto.Address) (*big.Int, *big.Int, error) {
	rate, ok := m.rates[wrappedToken.Key()]
	if !ok {
		return nil, nil, errors.New("market: unsupported wrapped token")
	}
	return new(big.Int).Set(rate), new(big.Int).Set(m.scale), nil
}

func (m *fakeMarket) ClaimReward(markets []crypto.Address, custody crypto.Address) (*big.Int, error) {
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	claimed := new(big.Int).Set(m.pending)
	if claimed.Sign() > 0 {
		m.bank.credit(m.rewardTok, custody, claimed)
		m.pending = big.NewInt(0)
	}
	return claimed, nil
}

func (m *fakeMarket) RewardToken() crypto.Address { return m.rewardTok }

// fakeVenue converts at a fixed numerator/denominator pair.
type fakeVenue struct {
	bank     *memBank
	self     crypto.Address
	num, den *big.Int
	swapErr  error
}

func newFakeVenue(bank *memBank, self crypto.Address) *fakeVenue {
	return &fakeVenue{bank: bank, self: self, num: big.NewInt(1), den: big.NewInt(1)}
}

func (v *fakeVenue) Swap(tokenIn, tokenOut crypto.Address, amountIn, minOut *big.Int, recipient crypto.Address) (*big.Int, error) {
	if v.swapErr != nil {
		return nil, v.swapErr
	}
	out := new(big.Int).Mul(amountIn, v.num)
	out.Quo(out, v.den)
	if minOut != nil && out.Cmp(minOut) < 0 {
		return nil, ErrSlippageExceeded
	}
	if err := v.bank.Transfer(tokenIn, recipient, v.self, amountIn); err != nil {
		return nil, err
	}
	v.bank.credit(tokenOut, recipient, out)
	return out, nil
}

// recordingEmitter captures emitted event types in order.
type recordingEmitter struct {
	types []string
}

func (r *recordingEmitter) Emit(evt events.Event) {
	r.types = append(r.types, evt.EventType())
}

type fixture struct {
	state    *state.Manager
	bank     *memBank
	market   *fakeMarket
	venue    *fakeVenue
	registry *CollateralRegistry
	roles    *Roles
	ledger   *PositionLedger
	treasury *Treasury

	governor   crypto.Address
	redeemer   crypto.Address
	keeper     crypto.Address
	outsider   crypto.Address
	custody    crypto.Address
	stablecoin crypto.Address

	tokenA   crypto.Address
	wrappedA crypto.Address
	feedA    crypto.Address
	tokenB   crypto.Address
	wrappedB crypto.Address
	feedB    crypto.Address
	reward   crypto.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		governor:   addr(0x01),
		redeemer:   addr(0x02),
		keeper:     addr(0x03),
		outsider:   addr(0x04),
		custody:    addr(0x10),
		stablecoin: addr(0x11),
		tokenA:     addr(0x20),
		wrappedA:   addr(0x21),
		feedA:      addr(0x22),
		tokenB:     addr(0x30),
		wrappedB:   addr(0x31),
		feedB:      addr(0x32),
		reward:     addr(0x40),
	}
	f.state = newTestState(t)
	f.bank = newMemBank()
	f.market = newFakeMarket(f.bank, addr(0x50), f.reward)
	f.venue = newFakeVenue(f.bank, addr(0x51))

	var err error
	f.registry, err = NewCollateralRegistry(f.state)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	f.roles, err = NewRoles(f.state, RoleState{Governor: f.governor, Redeemer: f.redeemer})
	if err != nil {
		t.Fatalf("new roles: %v", err)
	}
	f.ledger, err = NewPositionLedger(f.registry, f.bank, f.market, f.venue, f.custody)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	f.treasury, err = NewTreasury(f.registry, f.ledger, f.roles, f.bank, f.stablecoin)
	if err != nil {
		t.Fatalf("new treasury: %v", err)
	}
	return f
}

// whitelistA registers token A at a 1:1 exchange rate.
func (f *fixture) whitelistA(t *testing.T) {
	t.Helper()
	f.market.listMarket(f.tokenA, f.wrappedA, new(big.Int).Set(f.market.scale))
	if err := f.treasury.AddWhitelistedToken(f.governor, f.tokenA, f.wrappedA, f.feedA); err != nil {
		t.Fatalf("whitelist token A: %v", err)
	}
}

// whitelistB registers token B at a 2x exchange rate (each wrapped unit is
// worth two raw units).
func (f *fixture) whitelistB(t *testing.T) {
	t.Helper()
	rate := new(big.Int).Mul(f.market.scale, big.NewInt(2))
	f.market.listMarket(f.tokenB, f.wrappedB, rate)
	if err := f.treasury.AddWhitelistedToken(f.governor, f.tokenB, f.wrappedB, f.feedB); err != nil {
		t.Fatalf("whitelist token B: %v", err)
	}
}

func (f *fixture) depositA(t *testing.T, from crypto.Address, amount int64) {
	t.Helper()
	f.bank.credit(f.tokenA, from, big.NewInt(amount))
	if _, err := f.treasury.Deposit(from, f.tokenA, big.NewInt(amount)); err != nil {
		t.Fatalf("deposit token A: %v", err)
	}
}
