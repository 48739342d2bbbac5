package issuance

import (
	"errors"
	"math/big"
	"testing"

	"vaultusd/core/events"
	"vaultusd/crypto"
	"vaultusd/native/oracle"
	"vaultusd/native/treasury"
)

func TestRedeemerQuoteInvertsMint(t *testing.T) {
	f := newFixture(t)
	f.postDollarPrice(t)

	collateral, err := f.redeem.Quote(f.token, units18(1_000))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if collateral.Cmp(units6(1_000)) != 0 {
		t.Fatalf("expected 1000e6 collateral, got %s", collateral)
	}

	// Sub-unit stablecoin amounts floor to zero collateral.
	dust, err := f.redeem.Quote(f.token, big.NewInt(999_999_999_999))
	if err != nil {
		t.Fatalf("dust quote: %v", err)
	}
	if dust.Sign() != 0 {
		t.Fatalf("expected dust to floor to zero, got %s", dust)
	}
}

func TestRedeemerRoundTripNeverProfits(t *testing.T) {
	f := newFixture(t)
	f.postDollarPrice(t)
	deposited := units6(1_000)
	f.bank.credit(f.token, f.user, deposited)

	minted, err := f.minter.Mint(f.user, f.token, deposited)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	rec := &recordingEmitter{}
	f.redeem.SetEmitter(rec)
	returned, err := f.redeem.Redeem(f.user, f.token, minted)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if returned.Cmp(deposited) > 0 {
		t.Fatalf("round trip paid out more than deposited: %s > %s", returned, deposited)
	}
	held, _ := f.bank.BalanceOf(f.token, f.user)
	if held.Cmp(returned) != 0 {
		t.Fatalf("user holds %s, expected %s", held, returned)
	}
	balance, _ := f.stable.BalanceOf(f.user)
	if balance.Sign() != 0 {
		t.Fatalf("stablecoin not fully burned: %s", balance)
	}
	supply, _ := f.stable.TotalSupply()
	if supply.Sign() != 0 {
		t.Fatalf("supply not fully retired: %s", supply)
	}
	if len(rec.types) != 1 || rec.types[0] != events.TypeRedeemSettled {
		t.Fatalf("expected one redeem_settled event, got %v", rec.types)
	}
}

func TestRedeemerRejectsDust(t *testing.T) {
	f := newFixture(t)
	f.postDollarPrice(t)
	f.bank.credit(f.token, f.user, units6(10))
	if _, err := f.minter.Mint(f.user, f.token, units6(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := f.redeem.Redeem(f.user, f.token, big.NewInt(1)); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount for dust redeem, got %v", err)
	}
}

func TestRedeemerInsufficientBacking(t *testing.T) {
	f := newFixture(t)
	f.postDollarPrice(t)
	f.bank.credit(f.token, f.user, units6(100))
	minted, err := f.minter.Mint(f.user, f.token, units6(100))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	// Governor withdraws part of the backing; full redemption now exceeds
	// the withdrawable amount.
	if err := f.vault.Withdraw(f.governor, f.token, units6(50), f.governor); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, err := f.redeem.Redeem(f.user, f.token, minted); !errors.Is(err, treasury.ErrInsufficientWithdrawable) {
		t.Fatalf("expected ErrInsufficientWithdrawable, got %v", err)
	}
	// The failed redeem must not have burned anything.
	balance, _ := f.stable.BalanceOf(f.user)
	if balance.Cmp(minted) != 0 {
		t.Fatalf("failed redeem burned supply: %s", balance)
	}
}

func TestRedeemerOracleUnavailable(t *testing.T) {
	f := newFixture(t)
	f.postDollarPrice(t)
	f.bank.credit(f.token, f.user, units6(10))
	minted, err := f.minter.Mint(f.user, f.token, units6(10))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	// A redeemer bound to an oracle with no quote halts rather than falling
	// back to a stale price.
	redeem, err := NewRedeemer(f.vault, f.stable, emptyOracle{}, f.bank, f.principal)
	if err != nil {
		t.Fatalf("new redeemer: %v", err)
	}
	if _, err := redeem.Redeem(f.user, f.token, minted); !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable, got %v", err)
	}
}

// emptyOracle never has a price.
type emptyOracle struct{}

func (emptyOracle) Price(feed crypto.Address) (*big.Int, uint8, error) {
	return nil, 0, oracle.ErrUnavailable
}
