package treasury

import (
	"math/big"

	"vaultusd/core/events"
	"vaultusd/crypto"
)

// Treasury is the composition root gating every privileged operation through
// the role lattice and operating over the registry and position ledger.
// Validation and internal state changes always precede external transfers.
type Treasury struct {
	registry   *CollateralRegistry
	ledger     *PositionLedger
	roles      *Roles
	bank       TokenBank
	stablecoin crypto.Address
	emitter    events.Emitter
}

// NewTreasury assembles the treasury over its collaborators. The stablecoin
// address identifies the supply ledger this treasury backs and is compared
// during migration.
func NewTreasury(registry *CollateralRegistry, ledger *PositionLedger, roles *Roles, bank TokenBank, stablecoin crypto.Address) (*Treasury, error) {
	if registry == nil || ledger == nil || roles == nil || bank == nil {
		return nil, errStateNotConfigured
	}
	if stablecoin.IsZero() {
		return nil, ErrZeroAddress
	}
	return &Treasury{
		registry:   registry,
		ledger:     ledger,
		roles:      roles,
		bank:       bank,
		stablecoin: stablecoin,
		emitter:    events.NoopEmitter{},
	}, nil
}

// SetEmitter configures the event sink. Passing nil restores the no-op
// emitter.
func (t *Treasury) SetEmitter(emitter events.Emitter) {
	if t == nil {
		return
	}
	if emitter == nil {
		t.emitter = events.NoopEmitter{}
		return
	}
	t.emitter = emitter
}

// Registry exposes read access to the collateral whitelist.
func (t *Treasury) Registry() *CollateralRegistry { return t.registry }

// Roles exposes read access to the authorization state.
func (t *Treasury) Roles() *Roles { return t.roles }

// Custody returns the account holding the treasury's positions.
func (t *Treasury) Custody() crypto.Address { return t.ledger.Custody() }

// Stablecoin returns the address of the stablecoin this treasury backs.
func (t *Treasury) Stablecoin() crypto.Address { return t.stablecoin }

// Withdrawable reports the redeemable raw-collateral amount for token.
func (t *Treasury) Withdrawable(token crypto.Address) (*big.Int, error) {
	return t.ledger.Withdrawable(token)
}

// Deposit pulls collateral from the supplier and wraps it into a yield
// position. Deposits are not role-gated; custody only ever grows.
func (t *Treasury) Deposit(from, token crypto.Address, amount *big.Int) (*big.Int, error) {
	if t == nil {
		return nil, errStateNotConfigured
	}
	minted, err := t.ledger.Deposit(from, token, amount)
	if err != nil {
		return nil, err
	}
	t.emitter.Emit(events.CollateralDeposited{Token: token, From: from, Amount: amount, WrappedMinted: minted})
	return minted, nil
}

// AddWhitelistedToken registers a new collateral entry. Governor only. The
// backed stablecoin can never appear on either side of the mapping: accepting
// it as collateral would let supply back itself.
func (t *Treasury) AddWhitelistedToken(caller, token, wrappedToken, priceFeed crypto.Address) error {
	if t == nil {
		return errStateNotConfigured
	}
	if err := t.roles.RequireGovernor(caller); err != nil {
		return err
	}
	if token.Equal(t.stablecoin) || wrappedToken.Equal(t.stablecoin) {
		return ErrStablecoinCollateral
	}
	if err := t.registry.AddWhitelistedToken(token, wrappedToken, priceFeed); err != nil {
		return err
	}
	t.emitter.Emit(events.CollateralWhitelisted{Token: token, WrappedToken: wrappedToken, PriceFeed: priceFeed})
	return nil
}

// RemoveWhitelistedToken delists a collateral token. Governor only. Removal
// while custody still holds the wrapped token is rejected so positions can
// never be orphaned; withdraw or migrate first.
func (t *Treasury) RemoveWhitelistedToken(caller, token crypto.Address) error {
	if t == nil {
		return errStateNotConfigured
	}
	if err := t.roles.RequireGovernor(caller); err != nil {
		return err
	}
	entry, ok := t.registry.EntryOf(token)
	if !ok {
		return ErrNotWhitelisted
	}
	balance, err := t.bank.BalanceOf(entry.WrappedToken, t.Custody())
	if err != nil {
		return err
	}
	if balance != nil && balance.Sign() > 0 {
		return ErrPositionsOutstanding
	}
	removed, err := t.registry.RemoveWhitelistedToken(token)
	if err != nil {
		return err
	}
	t.emitter.Emit(events.CollateralRemoved{Token: removed.Token, WrappedToken: removed.WrappedToken})
	return nil
}

// TransferGovernor hands governance to a new principal. Governor only.
func (t *Treasury) TransferGovernor(caller, next crypto.Address) error {
	previous, err := t.roles.TransferGovernor(caller, next)
	if err != nil {
		return err
	}
	t.emitter.Emit(events.RoleUpdated{Role: RoleGovernor, Previous: previous, Current: next})
	return nil
}

// UpdateRedeemer assigns the redeemer slot. Governor only.
func (t *Treasury) UpdateRedeemer(caller, next crypto.Address) error {
	previous, err := t.roles.UpdateRedeemer(caller, next)
	if err != nil {
		return err
	}
	t.emitter.Emit(events.RoleUpdated{Role: RoleRedeemer, Previous: previous, Current: next})
	return nil
}

// UpdateSwapManager assigns the swap-manager slot. Governor only.
func (t *Treasury) UpdateSwapManager(caller, next crypto.Address) error {
	previous, err := t.roles.UpdateSwapManager(caller, next)
	if err != nil {
		return err
	}
	t.emitter.Emit(events.RoleUpdated{Role: RoleSwapManager, Previous: previous, Current: next})
	return nil
}

// AddKeeper grows the keeper set. Governor only.
func (t *Treasury) AddKeeper(caller, keeper crypto.Address) error {
	if err := t.roles.AddKeeper(caller, keeper); err != nil {
		return err
	}
	t.emitter.Emit(events.KeeperAdded{Keeper: keeper})
	return nil
}

// RemoveKeeper shrinks the keeper set. Governor only; removing a non-member
// fails with ErrNotAKeeper.
func (t *Treasury) RemoveKeeper(caller, keeper crypto.Address) error {
	if err := t.roles.RemoveKeeper(caller, keeper); err != nil {
		return err
	}
	t.emitter.Emit(events.KeeperRemoved{Keeper: keeper})
	return nil
}

// Withdraw delivers amount of raw collateral to the recipient. Governor and
// redeemer only. A zero recipient defaults to the governor.
func (t *Treasury) Withdraw(caller, token crypto.Address, amount *big.Int, to crypto.Address) error {
	if t == nil {
		return errStateNotConfigured
	}
	if err := t.roles.RequireWithdrawer(caller); err != nil {
		return err
	}
	if to.IsZero() {
		to = t.roles.Governor()
	}
	if err := t.ledger.Withdraw(token, amount, to); err != nil {
		return err
	}
	t.emitter.Emit(events.CollateralWithdrawn{Token: token, Recipient: to, Amount: amount})
	return nil
}

// WithdrawMulti performs a batch of withdrawals to the governor with
// all-or-nothing semantics: every pair is validated before the first
// redemption executes. Validation runs in wrapped-token terms, summing the
// ceil-rounded cost of each element, because each withdrawal burns slightly
// more backing than its raw amount at fractional exchange rates.
func (t *Treasury) WithdrawMulti(caller crypto.Address, tokens []crypto.Address, amounts []*big.Int) error {
	if t == nil {
		return errStateNotConfigured
	}
	if err := t.roles.RequireWithdrawer(caller); err != nil {
		return err
	}
	if len(tokens) != len(amounts) {
		return ErrLengthMismatch
	}
	needed := make(map[string]*big.Int, len(tokens))
	unique := make([]crypto.Address, 0, len(tokens))
	for i, token := range tokens {
		amount := amounts[i]
		if amount == nil || amount.Sign() <= 0 {
			return ErrZeroAmount
		}
		if !t.registry.IsWhitelisted(token) {
			return ErrTokenNotSupported
		}
		cost, err := t.ledger.WrappedCost(token, amount)
		if err != nil {
			return err
		}
		key := token.Key()
		if total, ok := needed[key]; ok {
			needed[key] = new(big.Int).Add(total, cost)
		} else {
			needed[key] = cost
			unique = append(unique, token)
		}
	}
	for _, token := range unique {
		entry, ok := t.registry.EntryOf(token)
		if !ok {
			return ErrTokenNotSupported
		}
		balance, err := t.bank.BalanceOf(entry.WrappedToken, t.Custody())
		if err != nil {
			return err
		}
		if balance == nil || balance.Cmp(needed[token.Key()]) < 0 {
			return ErrInsufficientWithdrawable
		}
	}
	recipient := t.roles.Governor()
	for i, token := range tokens {
		if err := t.ledger.Withdraw(token, amounts[i], recipient); err != nil {
			return err
		}
		t.emitter.Emit(events.CollateralWithdrawn{Token: token, Recipient: recipient, Amount: amounts[i]})
	}
	return nil
}

// WithdrawAll drains the full withdrawable amount of each listed token to the
// governor. Every listed token must be whitelisted.
func (t *Treasury) WithdrawAll(caller crypto.Address, tokens []crypto.Address) error {
	if t == nil {
		return errStateNotConfigured
	}
	if err := t.roles.RequireWithdrawer(caller); err != nil {
		return err
	}
	for _, token := range tokens {
		if !t.registry.IsWhitelisted(token) {
			return ErrTokenNotSupported
		}
	}
	recipient := t.roles.Governor()
	for _, token := range tokens {
		available, err := t.ledger.Withdrawable(token)
		if err != nil {
			return err
		}
		if available.Sign() == 0 {
			continue
		}
		if err := t.ledger.Withdraw(token, available, recipient); err != nil {
			return err
		}
		t.emitter.Emit(events.CollateralWithdrawn{Token: token, Recipient: recipient, Amount: available})
	}
	return nil
}

// Sweep recovers the custody balance of a token that is neither whitelisted
// nor a wrapped token in use, transferring it to the governor. Governor only.
func (t *Treasury) Sweep(caller, token crypto.Address) (*big.Int, error) {
	if t == nil {
		return nil, errStateNotConfigured
	}
	if err := t.roles.RequireGovernor(caller); err != nil {
		return nil, err
	}
	if token.IsZero() {
		return nil, ErrZeroAddress
	}
	if t.registry.IsWhitelisted(token) || t.registry.IsWrappedToken(token) {
		return nil, ErrSweepNotAllowed
	}
	balance, err := t.bank.BalanceOf(token, t.Custody())
	if err != nil {
		return nil, err
	}
	if balance == nil || balance.Sign() == 0 {
		return big.NewInt(0), nil
	}
	recipient := t.roles.Governor()
	if err := t.bank.Transfer(token, t.Custody(), recipient, balance); err != nil {
		return nil, err
	}
	t.emitter.Emit(events.TokenSwept{Token: token, Recipient: recipient, Amount: balance})
	return balance, nil
}

// ClaimAndConvert harvests accrued rewards and converts them into the target
// collateral position. Governor and keepers only.
func (t *Treasury) ClaimAndConvert(caller, targetToken crypto.Address, minOut *big.Int) (*big.Int, error) {
	if t == nil {
		return nil, errStateNotConfigured
	}
	if err := t.roles.RequireHarvester(caller); err != nil {
		return nil, err
	}
	claimed, converted, err := t.ledger.ClaimAndConvert(targetToken, minOut)
	if err != nil {
		return nil, err
	}
	t.emitter.Emit(events.YieldHarvested{
		RewardToken:  t.ledger.market.RewardToken(),
		TargetToken:  targetToken,
		RewardAmount: claimed,
		Converted:    converted,
	})
	return converted, nil
}

// Migrate moves every wrapped position to the successor treasury. Governor
// only. The successor must back the same stablecoin; afterwards this
// instance's withdrawable amounts read zero for all tokens.
func (t *Treasury) Migrate(caller crypto.Address, successor *Treasury) error {
	if t == nil {
		return errStateNotConfigured
	}
	if err := t.roles.RequireGovernor(caller); err != nil {
		return err
	}
	if successor == nil || successor.Custody().IsZero() {
		return ErrZeroAddress
	}
	if !successor.Stablecoin().Equal(t.stablecoin) {
		return ErrStablecoinMismatch
	}
	moved, err := t.ledger.MigratePositions(successor.Custody())
	if err != nil {
		return err
	}
	t.emitter.Emit(events.PositionsMigrated{Successor: successor.Custody(), Tokens: moved})
	return nil
}
