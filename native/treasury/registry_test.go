package treasury

import (
	"errors"
	"testing"

	"vaultusd/crypto"
)

func TestRegistryAddAndLookup(t *testing.T) {
	f := newFixture(t)
	if err := f.registry.AddWhitelistedToken(f.tokenA, f.wrappedA, f.feedA); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !f.registry.IsWhitelisted(f.tokenA) {
		t.Fatalf("expected token A to be whitelisted")
	}
	if !f.registry.IsWrappedToken(f.wrappedA) {
		t.Fatalf("expected wrapped A to be indexed")
	}
	wrapped, ok := f.registry.WrappedTokenOf(f.tokenA)
	if !ok || !wrapped.Equal(f.wrappedA) {
		t.Fatalf("expected wrapped A, got %v ok=%v", wrapped, ok)
	}
	if f.registry.IsWhitelisted(f.tokenB) {
		t.Fatalf("token B must not be whitelisted")
	}
}

func TestRegistryRejectsZeroAddresses(t *testing.T) {
	f := newFixture(t)
	if err := f.registry.AddWhitelistedToken(crypto.Address{}, f.wrappedA, f.feedA); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress for token, got %v", err)
	}
	if err := f.registry.AddWhitelistedToken(f.tokenA, crypto.Address{}, f.feedA); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress for wrapped, got %v", err)
	}
	if err := f.registry.AddWhitelistedToken(f.tokenA, f.wrappedA, crypto.Address{}); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress for feed, got %v", err)
	}
	if err := f.registry.AddWhitelistedToken(f.tokenA, f.tokenA, f.feedA); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected rejection when token equals wrapped, got %v", err)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	if err := f.registry.AddWhitelistedToken(f.tokenA, f.wrappedA, f.feedA); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.registry.AddWhitelistedToken(f.tokenA, f.wrappedB, f.feedB); !errors.Is(err, ErrAlreadyWhitelisted) {
		t.Fatalf("expected ErrAlreadyWhitelisted for duplicate token, got %v", err)
	}
	if err := f.registry.AddWhitelistedToken(f.tokenB, f.wrappedA, f.feedB); !errors.Is(err, ErrAlreadyWhitelisted) {
		t.Fatalf("expected ErrAlreadyWhitelisted for duplicate wrapped, got %v", err)
	}
	// A wrapped token may not be re-registered as a raw token.
	if err := f.registry.AddWhitelistedToken(f.wrappedA, f.wrappedB, f.feedB); !errors.Is(err, ErrAlreadyWhitelisted) {
		t.Fatalf("expected ErrAlreadyWhitelisted for wrapped-as-raw, got %v", err)
	}
}

func TestRegistryListsStayAligned(t *testing.T) {
	f := newFixture(t)
	if err := f.registry.AddWhitelistedToken(f.tokenA, f.wrappedA, f.feedA); err != nil {
		t.Fatalf("add A: %v", err)
	}
	if err := f.registry.AddWhitelistedToken(f.tokenB, f.wrappedB, f.feedB); err != nil {
		t.Fatalf("add B: %v", err)
	}
	tokens := f.registry.WhitelistedTokens()
	wrapped := f.registry.WrappedTokens()
	if len(tokens) != len(wrapped) {
		t.Fatalf("list lengths diverged: %d vs %d", len(tokens), len(wrapped))
	}
	for i := range tokens {
		got, ok := f.registry.WrappedTokenOf(tokens[i])
		if !ok || !got.Equal(wrapped[i]) {
			t.Fatalf("entry %d inconsistent", i)
		}
	}
	if _, err := f.registry.RemoveWhitelistedToken(f.tokenA); err != nil {
		t.Fatalf("remove A: %v", err)
	}
	tokens = f.registry.WhitelistedTokens()
	wrapped = f.registry.WrappedTokens()
	if len(tokens) != 1 || len(wrapped) != 1 {
		t.Fatalf("expected one entry after removal, got %d/%d", len(tokens), len(wrapped))
	}
	if !tokens[0].Equal(f.tokenB) || !wrapped[0].Equal(f.wrappedB) {
		t.Fatalf("surviving entry mismatched")
	}
}

func TestRegistryRemoveTwiceFails(t *testing.T) {
	f := newFixture(t)
	if err := f.registry.AddWhitelistedToken(f.tokenA, f.wrappedA, f.feedA); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.registry.RemoveWhitelistedToken(f.tokenA); err != nil {
		t.Fatalf("first remove: %v", err)
	}
	if _, err := f.registry.RemoveWhitelistedToken(f.tokenA); !errors.Is(err, ErrNotWhitelisted) {
		t.Fatalf("expected ErrNotWhitelisted on second remove, got %v", err)
	}
}

func TestRegistrySurvivesReload(t *testing.T) {
	f := newFixture(t)
	if err := f.registry.AddWhitelistedToken(f.tokenA, f.wrappedA, f.feedA); err != nil {
		t.Fatalf("add: %v", err)
	}
	reloaded, err := NewCollateralRegistry(f.state)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.IsWhitelisted(f.tokenA) {
		t.Fatalf("whitelist lost across reload")
	}
	entry, ok := reloaded.EntryOf(f.tokenA)
	if !ok || !entry.WrappedToken.Equal(f.wrappedA) || !entry.PriceFeed.Equal(f.feedA) {
		t.Fatalf("entry mangled across reload: %+v", entry)
	}
}
