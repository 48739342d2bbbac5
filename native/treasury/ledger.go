package treasury

import (
	"errors"
	"fmt"
	"math/big"

	"vaultusd/crypto"
)

// PositionLedger converts between raw collateral and wrapped yield positions
// and reports redeemable amounts. Backing is always recomputed from the live
// wrapped-token balance and exchange rate; no parallel deposit counter exists
// to drift from custody.
type PositionLedger struct {
	registry *CollateralRegistry
	bank     TokenBank
	market   YieldMarket
	venue    SwapVenue
	custody  crypto.Address
}

// NewPositionLedger wires the ledger to its collaborators. Custody is the
// account whose balances back the outstanding stablecoin supply.
func NewPositionLedger(registry *CollateralRegistry, bank TokenBank, market YieldMarket, venue SwapVenue, custody crypto.Address) (*PositionLedger, error) {
	if registry == nil || bank == nil || market == nil {
		return nil, errStateNotConfigured
	}
	if custody.IsZero() {
		return nil, ErrZeroAddress
	}
	return &PositionLedger{registry: registry, bank: bank, market: market, venue: venue, custody: custody}, nil
}

// Custody returns the ledger's custody account.
func (l *PositionLedger) Custody() crypto.Address { return l.custody }

// Deposit pulls amount of token from the supplier into custody and
// immediately supplies it to the yield market. Returns the wrapped amount
// minted to custody.
func (l *PositionLedger) Deposit(from, token crypto.Address, amount *big.Int) (*big.Int, error) {
	if l == nil {
		return nil, errStateNotConfigured
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if !l.registry.IsWhitelisted(token) {
		return nil, ErrNotWhitelisted
	}
	if err := l.bank.Transfer(token, from, l.custody, amount); err != nil {
		return nil, fmt.Errorf("treasury: pull collateral: %w", err)
	}
	minted, err := l.market.Deposit(token, amount, l.custody)
	if err != nil {
		return nil, fmt.Errorf("treasury: supply to yield market: %w", err)
	}
	return minted, nil
}

// Withdrawable returns the raw-collateral equivalent of custody's current
// wrapped balance for token, floored in the treasury's favor. A
// non-whitelisted token reads zero rather than failing; callers must not
// infer whitelisting from a zero result.
func (l *PositionLedger) Withdrawable(token crypto.Address) (*big.Int, error) {
	if l == nil {
		return nil, errStateNotConfigured
	}
	entry, ok := l.registry.EntryOf(token)
	if !ok {
		return big.NewInt(0), nil
	}
	balance, err := l.bank.BalanceOf(entry.WrappedToken, l.custody)
	if err != nil {
		return nil, err
	}
	if balance == nil || balance.Sign() == 0 {
		return big.NewInt(0), nil
	}
	rate, scale, err := l.market.ExchangeRate(entry.WrappedToken)
	if err != nil {
		return nil, err
	}
	if rate == nil || rate.Sign() <= 0 || scale == nil || scale.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	raw := new(big.Int).Mul(balance, rate)
	return raw.Quo(raw, scale), nil
}

// WrappedCost returns the wrapped quantity a Withdraw of amount would burn:
// the minimal quantity whose redemption covers the raw amount, by ceil
// division. Batch callers must sum these costs per token and compare against
// custody's wrapped balance; summing raw amounts against Withdrawable
// undercounts whenever the exchange rate leaves a fractional remainder.
func (l *PositionLedger) WrappedCost(token crypto.Address, amount *big.Int) (*big.Int, error) {
	if l == nil {
		return nil, errStateNotConfigured
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	entry, ok := l.registry.EntryOf(token)
	if !ok {
		return nil, ErrTokenNotSupported
	}
	rate, scale, err := l.market.ExchangeRate(entry.WrappedToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWithdrawalFailed, err)
	}
	if rate == nil || rate.Sign() <= 0 || scale == nil || scale.Sign() <= 0 {
		return nil, ErrWithdrawalFailed
	}
	needed := new(big.Int).Mul(amount, scale)
	needed.Add(needed, new(big.Int).Sub(rate, big.NewInt(1)))
	return needed.Quo(needed, rate), nil
}

// Withdraw redeems the minimal wrapped quantity sufficient to deliver exactly
// amount of raw collateral to the recipient. A yield-market redemption
// failure surfaces as ErrWithdrawalFailed and is never retried here.
func (l *PositionLedger) Withdraw(token crypto.Address, amount *big.Int, to crypto.Address) error {
	if l == nil {
		return errStateNotConfigured
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	entry, ok := l.registry.EntryOf(token)
	if !ok {
		return ErrTokenNotSupported
	}
	available, err := l.Withdrawable(token)
	if err != nil {
		return err
	}
	if available.Cmp(amount) < 0 {
		return ErrInsufficientWithdrawable
	}
	wrappedNeeded, err := l.WrappedCost(token, amount)
	if err != nil {
		return err
	}
	released, err := l.market.Redeem(entry.WrappedToken, wrappedNeeded, l.custody)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWithdrawalFailed, err)
	}
	if released == nil || released.Cmp(amount) < 0 {
		return ErrWithdrawalFailed
	}
	if err := l.bank.Transfer(token, l.custody, to, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrWithdrawalFailed, err)
	}
	return nil
}

// ClaimAndConvert claims accrued yield-market rewards across every tracked
// position and converts custody's full reward balance into the whitelisted
// target token, re-supplying the proceeds to the yield market. Only the
// target token's wrapped balance grows; no stablecoin is minted. A positive
// minOut with no reward balance to convert fails with ErrSlippageExceeded, so
// the minimum-output guard holds on every return path.
func (l *PositionLedger) ClaimAndConvert(targetToken crypto.Address, minOut *big.Int) (claimed, converted *big.Int, err error) {
	if l == nil {
		return nil, nil, errStateNotConfigured
	}
	if l.venue == nil {
		return nil, nil, ErrSwapFailed
	}
	if !l.registry.IsWhitelisted(targetToken) {
		return nil, nil, ErrTokenNotSupported
	}
	rewardToken := l.market.RewardToken()
	claimed, err = l.market.ClaimReward(l.registry.WrappedTokens(), l.custody)
	if err != nil {
		return nil, nil, fmt.Errorf("treasury: claim reward: %w", err)
	}
	balance, err := l.bank.BalanceOf(rewardToken, l.custody)
	if err != nil {
		return nil, nil, err
	}
	if balance == nil || balance.Sign() == 0 {
		if minOut != nil && minOut.Sign() > 0 {
			return nil, nil, ErrSlippageExceeded
		}
		return claimed, big.NewInt(0), nil
	}
	out, err := l.venue.Swap(rewardToken, targetToken, balance, minOut, l.custody)
	if err != nil {
		if errors.Is(err, ErrSlippageExceeded) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrSwapFailed, err)
	}
	if minOut != nil && out.Cmp(minOut) < 0 {
		return nil, nil, ErrSlippageExceeded
	}
	if _, err := l.market.Deposit(targetToken, out, l.custody); err != nil {
		return nil, nil, fmt.Errorf("treasury: supply converted yield: %w", err)
	}
	return claimed, out, nil
}

// MigratePositions moves every wrapped balance held by custody to the
// successor custody account. Balances are pre-validated before the first
// transfer; a transfer fault mid-sequence aborts with ErrMigrationFailed and
// is a manual-recovery condition.
func (l *PositionLedger) MigratePositions(successor crypto.Address) (int, error) {
	if l == nil {
		return 0, errStateNotConfigured
	}
	if successor.IsZero() {
		return 0, ErrZeroAddress
	}
	type position struct {
		wrapped crypto.Address
		balance *big.Int
	}
	entries := l.registry.Entries()
	positions := make([]position, 0, len(entries))
	for _, entry := range entries {
		balance, err := l.bank.BalanceOf(entry.WrappedToken, l.custody)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
		}
		if balance == nil || balance.Sign() == 0 {
			continue
		}
		positions = append(positions, position{wrapped: entry.WrappedToken, balance: balance})
	}
	for _, pos := range positions {
		if err := l.bank.Transfer(pos.wrapped, l.custody, successor, pos.balance); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
		}
	}
	return len(positions), nil
}
