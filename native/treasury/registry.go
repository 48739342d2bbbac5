package treasury

import (
	"vaultusd/crypto"
)

// registryState is the narrow persistence surface the registry needs.
type registryState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type storedCollateralEntry struct {
	Token        [20]byte
	WrappedToken [20]byte
	PriceFeed    [20]byte
}

// CollateralRegistry maintains the whitelist of accepted collateral tokens and
// their bijective mapping to wrapped tokens and price feeds. Enumeration
// preserves insertion order; removal uses swap-and-pop, so relative order is
// not preserved across removals.
type CollateralRegistry struct {
	state     registryState
	entries   []CollateralEntry
	byToken   map[string]int
	byWrapped map[string]int
}

// NewCollateralRegistry hydrates the registry from state. A missing index key
// yields an empty whitelist.
func NewCollateralRegistry(state registryState) (*CollateralRegistry, error) {
	if state == nil {
		return nil, errStateNotConfigured
	}
	r := &CollateralRegistry{
		state:     state,
		byToken:   make(map[string]int),
		byWrapped: make(map[string]int),
	}
	var stored []storedCollateralEntry
	if _, err := state.KVGet(collateralIndexKey, &stored); err != nil {
		return nil, err
	}
	for _, s := range stored {
		entry := CollateralEntry{
			Token:        crypto.MustNewAddress(crypto.VusdPrefix, s.Token[:]),
			WrappedToken: crypto.MustNewAddress(crypto.VusdPrefix, s.WrappedToken[:]),
			PriceFeed:    crypto.MustNewAddress(crypto.VusdPrefix, s.PriceFeed[:]),
		}
		r.index(entry)
	}
	return r, nil
}

func (r *CollateralRegistry) index(entry CollateralEntry) {
	r.entries = append(r.entries, entry)
	r.byToken[entry.Token.Key()] = len(r.entries) - 1
	r.byWrapped[entry.WrappedToken.Key()] = len(r.entries) - 1
}

func (r *CollateralRegistry) persist() error {
	stored := make([]storedCollateralEntry, len(r.entries))
	for i, entry := range r.entries {
		copy(stored[i].Token[:], entry.Token.Bytes())
		copy(stored[i].WrappedToken[:], entry.WrappedToken.Bytes())
		copy(stored[i].PriceFeed[:], entry.PriceFeed.Bytes())
	}
	return r.state.KVPut(collateralIndexKey, stored)
}

// AddWhitelistedToken registers a collateral token with its wrapped token and
// price feed. Both the token and the wrapped token must be new to the
// registry.
func (r *CollateralRegistry) AddWhitelistedToken(token, wrappedToken, priceFeed crypto.Address) error {
	if r == nil || r.state == nil {
		return errStateNotConfigured
	}
	if token.IsZero() || wrappedToken.IsZero() || priceFeed.IsZero() {
		return ErrZeroAddress
	}
	if token.Equal(wrappedToken) {
		return ErrZeroAddress
	}
	if _, ok := r.byToken[token.Key()]; ok {
		return ErrAlreadyWhitelisted
	}
	if _, ok := r.byWrapped[wrappedToken.Key()]; ok {
		return ErrAlreadyWhitelisted
	}
	// Reject a raw token that is already serving as another entry's wrapped
	// token and vice versa; the mapping must stay bijective.
	if _, ok := r.byWrapped[token.Key()]; ok {
		return ErrAlreadyWhitelisted
	}
	if _, ok := r.byToken[wrappedToken.Key()]; ok {
		return ErrAlreadyWhitelisted
	}
	r.index(CollateralEntry{Token: token, WrappedToken: wrappedToken, PriceFeed: priceFeed})
	if err := r.persist(); err != nil {
		r.remove(token)
		return err
	}
	return nil
}

// RemoveWhitelistedToken delists a collateral token and returns the removed
// entry.
func (r *CollateralRegistry) RemoveWhitelistedToken(token crypto.Address) (CollateralEntry, error) {
	if r == nil || r.state == nil {
		return CollateralEntry{}, errStateNotConfigured
	}
	idx, ok := r.byToken[token.Key()]
	if !ok {
		return CollateralEntry{}, ErrNotWhitelisted
	}
	removed := r.entries[idx]
	r.remove(token)
	if err := r.persist(); err != nil {
		r.index(removed)
		return CollateralEntry{}, err
	}
	return removed.Clone(), nil
}

func (r *CollateralRegistry) remove(token crypto.Address) {
	idx, ok := r.byToken[token.Key()]
	if !ok {
		return
	}
	entry := r.entries[idx]
	last := len(r.entries) - 1
	if idx != last {
		moved := r.entries[last]
		r.entries[idx] = moved
		r.byToken[moved.Token.Key()] = idx
		r.byWrapped[moved.WrappedToken.Key()] = idx
	}
	r.entries = r.entries[:last]
	delete(r.byToken, entry.Token.Key())
	delete(r.byWrapped, entry.WrappedToken.Key())
}

// IsWhitelisted reports whether token is an accepted collateral token.
func (r *CollateralRegistry) IsWhitelisted(token crypto.Address) bool {
	if r == nil {
		return false
	}
	_, ok := r.byToken[token.Key()]
	return ok
}

// IsWrappedToken reports whether token is the wrapped token of any entry.
func (r *CollateralRegistry) IsWrappedToken(token crypto.Address) bool {
	if r == nil {
		return false
	}
	_, ok := r.byWrapped[token.Key()]
	return ok
}

// WrappedTokenOf resolves the wrapped token for a whitelisted collateral
// token.
func (r *CollateralRegistry) WrappedTokenOf(token crypto.Address) (crypto.Address, bool) {
	if r == nil {
		return crypto.Address{}, false
	}
	idx, ok := r.byToken[token.Key()]
	if !ok {
		return crypto.Address{}, false
	}
	return r.entries[idx].WrappedToken, true
}

// EntryOf resolves the full collateral entry for a whitelisted token.
func (r *CollateralRegistry) EntryOf(token crypto.Address) (CollateralEntry, bool) {
	if r == nil {
		return CollateralEntry{}, false
	}
	idx, ok := r.byToken[token.Key()]
	if !ok {
		return CollateralEntry{}, false
	}
	return r.entries[idx].Clone(), true
}

// WhitelistedTokens enumerates the accepted collateral tokens.
func (r *CollateralRegistry) WhitelistedTokens() []crypto.Address {
	if r == nil {
		return nil
	}
	tokens := make([]crypto.Address, len(r.entries))
	for i, entry := range r.entries {
		tokens[i] = entry.Token
	}
	return tokens
}

// WrappedTokens enumerates the wrapped tokens, index-aligned with
// WhitelistedTokens.
func (r *CollateralRegistry) WrappedTokens() []crypto.Address {
	if r == nil {
		return nil
	}
	tokens := make([]crypto.Address, len(r.entries))
	for i, entry := range r.entries {
		tokens[i] = entry.WrappedToken
	}
	return tokens
}

// Entries returns a defensive copy of every collateral entry.
func (r *CollateralRegistry) Entries() []CollateralEntry {
	if r == nil {
		return nil
	}
	entries := make([]CollateralEntry, len(r.entries))
	for i, entry := range r.entries {
		entries[i] = entry.Clone()
	}
	return entries
}

// Len reports the number of whitelisted tokens.
func (r *CollateralRegistry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}
