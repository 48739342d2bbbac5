package market

import (
	"errors"
	"fmt"
	"math/big"

	"vaultusd/crypto"
	"vaultusd/native/tokenbank"
)

var (
	// ErrNotListed is returned for tokens without a wrapped listing.
	ErrNotListed = errors.New("market: token not listed")
	// ErrAlreadyListed is returned when re-listing a token or wrapped token.
	ErrAlreadyListed = errors.New("market: already listed")
	// ErrRateRegression is returned when an accrual would lower the rate.
	// Exchange rates only rise; positions never lose backing here.
	ErrRateRegression = errors.New("market: exchange rate cannot decrease")
	// ErrZeroAddress is returned for zero listing addresses.
	ErrZeroAddress = errors.New("market: zero address")

	errStateNotConfigured = errors.New("market: state not configured")
)

var (
	listingsKey = []byte("market/listings")
	pendingKey  = []byte("market/reward/pending")
)

// RateScale is the fixed denominator of listing exchange rates: a rate equal
// to RateScale redeems one raw unit per wrapped unit.
var RateScale = big.NewInt(1_000_000_000_000_000_000)

type marketState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type storedListing struct {
	Raw     [20]byte
	Wrapped [20]byte
	Rate    []byte
}

type listing struct {
	raw     crypto.Address
	wrapped crypto.Address
	rate    *big.Int
}

// Market is the in-process yield market: it wraps raw collateral held by the
// token bank into wrapped positions at a monotonically rising exchange rate.
// Deployments fronting an external money market substitute their adapter
// behind the same treasury.YieldMarket interface.
type Market struct {
	state     marketState
	bank      *tokenbank.Ledger
	self      crypto.Address
	reward    crypto.Address
	listings  []listing
	byRaw     map[string]int
	byWrapped map[string]int
}

// NewMarket hydrates the market's listings from state.
func NewMarket(state marketState, bank *tokenbank.Ledger, self, rewardToken crypto.Address) (*Market, error) {
	if state == nil || bank == nil {
		return nil, errStateNotConfigured
	}
	if self.IsZero() || rewardToken.IsZero() {
		return nil, ErrZeroAddress
	}
	m := &Market{
		state:     state,
		bank:      bank,
		self:      self,
		reward:    rewardToken,
		byRaw:     make(map[string]int),
		byWrapped: make(map[string]int),
	}
	var stored []storedListing
	ok, err := state.KVGet(listingsKey, &stored)
	if err != nil {
		return nil, fmt.Errorf("market: load listings: %w", err)
	}
	if ok {
		for _, entry := range stored {
			l := listing{
				raw:     addressFrom(entry.Raw),
				wrapped: addressFrom(entry.Wrapped),
				rate:    new(big.Int).SetBytes(entry.Rate),
			}
			m.byRaw[l.raw.Key()] = len(m.listings)
			m.byWrapped[l.wrapped.Key()] = len(m.listings)
			m.listings = append(m.listings, l)
		}
	}
	return m, nil
}

func addressFrom(raw [20]byte) crypto.Address {
	return crypto.MustNewAddress(crypto.VusdPrefix, raw[:])
}

func (m *Market) persist() error {
	stored := make([]storedListing, len(m.listings))
	for i, l := range m.listings {
		copy(stored[i].Raw[:], l.raw.Bytes())
		copy(stored[i].Wrapped[:], l.wrapped.Bytes())
		stored[i].Rate = l.rate.Bytes()
	}
	return m.state.KVPut(listingsKey, stored)
}

// List opens a wrapped listing for the raw token at par.
func (m *Market) List(raw, wrapped crypto.Address) error {
	if m == nil {
		return errStateNotConfigured
	}
	if raw.IsZero() || wrapped.IsZero() || raw.Equal(wrapped) {
		return ErrZeroAddress
	}
	if _, ok := m.byRaw[raw.Key()]; ok {
		return ErrAlreadyListed
	}
	if _, ok := m.byWrapped[wrapped.Key()]; ok {
		return ErrAlreadyListed
	}
	m.byRaw[raw.Key()] = len(m.listings)
	m.byWrapped[wrapped.Key()] = len(m.listings)
	m.listings = append(m.listings, listing{raw: raw, wrapped: wrapped, rate: new(big.Int).Set(RateScale)})
	if err := m.persist(); err != nil {
		m.listings = m.listings[:len(m.listings)-1]
		delete(m.byRaw, raw.Key())
		delete(m.byWrapped, wrapped.Key())
		return fmt.Errorf("market: persist listings: %w", err)
	}
	return nil
}

// Deposit wraps amount of the raw token held by custody.
func (m *Market) Deposit(token crypto.Address, amount *big.Int, custody crypto.Address) (*big.Int, error) {
	if m == nil {
		return nil, errStateNotConfigured
	}
	idx, ok := m.byRaw[token.Key()]
	if !ok {
		return nil, ErrNotListed
	}
	l := m.listings[idx]
	if err := m.bank.Transfer(token, custody, m.self, amount); err != nil {
		return nil, err
	}
	minted := new(big.Int).Mul(amount, RateScale)
	minted.Quo(minted, l.rate)
	if err := m.bank.Credit(l.wrapped, custody, minted); err != nil {
		return nil, err
	}
	return minted, nil
}

// Redeem burns wrappedAmount from custody and releases the equivalent raw
// collateral, floored.
func (m *Market) Redeem(wrappedToken crypto.Address, wrappedAmount *big.Int, custody crypto.Address) (*big.Int, error) {
	if m == nil {
		return nil, errStateNotConfigured
	}
	idx, ok := m.byWrapped[wrappedToken.Key()]
	if !ok {
		return nil, ErrNotListed
	}
	l := m.listings[idx]
	if err := m.bank.Debit(wrappedToken, custody, wrappedAmount); err != nil {
		return nil, err
	}
	released := new(big.Int).Mul(wrappedAmount, l.rate)
	released.Quo(released, RateScale)
	if err := m.bank.Transfer(l.raw, m.self, custody, released); err != nil {
		return nil, err
	}
	return released, nil
}

// ExchangeRate reports the raw-per-wrapped rate and its scale.
func (m *Market) ExchangeRate(wrappedToken crypto.Address) (*big.Int, *big.Int, error) {
	if m == nil {
		return nil, nil, errStateNotConfigured
	}
	idx, ok := m.byWrapped[wrappedToken.Key()]
	if !ok {
		return nil, nil, ErrNotListed
	}
	return new(big.Int).Set(m.listings[idx].rate), new(big.Int).Set(RateScale), nil
}

// Accrue raises the listing's exchange rate and credits the backing raw
// collateral into the market so existing positions redeem at the new rate.
func (m *Market) Accrue(wrappedToken crypto.Address, newRate, backing *big.Int) error {
	if m == nil {
		return errStateNotConfigured
	}
	idx, ok := m.byWrapped[wrappedToken.Key()]
	if !ok {
		return ErrNotListed
	}
	if newRate == nil || newRate.Cmp(m.listings[idx].rate) < 0 {
		return ErrRateRegression
	}
	if backing != nil && backing.Sign() > 0 {
		if err := m.bank.Credit(m.listings[idx].raw, m.self, backing); err != nil {
			return err
		}
	}
	previous := m.listings[idx].rate
	m.listings[idx].rate = new(big.Int).Set(newRate)
	if err := m.persist(); err != nil {
		m.listings[idx].rate = previous
		return fmt.Errorf("market: persist listings: %w", err)
	}
	return nil
}

// AddReward accrues claimable reward tokens.
func (m *Market) AddReward(amount *big.Int) error {
	if m == nil {
		return errStateNotConfigured
	}
	if amount == nil || amount.Sign() <= 0 {
		return tokenbank.ErrZeroAmount
	}
	pending, err := m.pendingReward()
	if err != nil {
		return err
	}
	return m.state.KVPut(pendingKey, new(big.Int).Add(pending, amount).Bytes())
}

// ClaimReward mints the pending reward balance to custody and resets it.
func (m *Market) ClaimReward(_ []crypto.Address, custody crypto.Address) (*big.Int, error) {
	if m == nil {
		return nil, errStateNotConfigured
	}
	pending, err := m.pendingReward()
	if err != nil {
		return nil, err
	}
	if pending.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if err := m.bank.Credit(m.reward, custody, pending); err != nil {
		return nil, err
	}
	if err := m.state.KVPut(pendingKey, []byte{}); err != nil {
		return nil, fmt.Errorf("market: reset pending reward: %w", err)
	}
	return pending, nil
}

// RewardToken returns the reward token address.
func (m *Market) RewardToken() crypto.Address { return m.reward }

func (m *Market) pendingReward() (*big.Int, error) {
	var raw []byte
	ok, err := m.state.KVGet(pendingKey, &raw)
	if err != nil {
		return nil, err
	}
	if !ok || len(raw) == 0 {
		return big.NewInt(0), nil
	}
	return new(big.Int).SetBytes(raw), nil
}
