package stablecoin

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"vaultusd/crypto"
)

// Decimals is the fixed precision of the stablecoin.
const Decimals uint8 = 18

var (
	// ErrUnauthorized is returned when mint or burn is invoked by anyone
	// other than the registered principal (or the holder, for self-burn).
	ErrUnauthorized = errors.New("stablecoin: caller not authorized")
	// ErrZeroAmount is returned for nil or non-positive amounts.
	ErrZeroAmount = errors.New("stablecoin: amount must be positive")
	// ErrInsufficientBalance is returned when burning more than the holder's
	// balance.
	ErrInsufficientBalance = errors.New("stablecoin: insufficient balance")
	// ErrAmountOverflow is returned when an amount or the resulting supply
	// exceeds 256 bits.
	ErrAmountOverflow = errors.New("stablecoin: amount overflows")

	errStateNotConfigured = errors.New("stablecoin: state not configured")
)

var (
	balancePrefix = []byte("stablecoin/balance/")
	supplyKey     = []byte("stablecoin/supply")
)

func balanceKey(addr crypto.Address) []byte {
	raw := addr.Bytes()
	buf := make([]byte, len(balancePrefix)+len(raw))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], raw)
	return buf
}

type ledgerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Ledger is the stablecoin supply ledger: a plain balance map with mint gated
// to the registered minter and burn gated to the registered redeemer or the
// holder themself.
type Ledger struct {
	state    ledgerState
	token    crypto.Address
	minter   crypto.Address
	redeemer crypto.Address
}

// NewLedger binds the ledger to state under the given token identity.
func NewLedger(state ledgerState, token crypto.Address) (*Ledger, error) {
	if state == nil {
		return nil, errStateNotConfigured
	}
	if token.IsZero() {
		return nil, ErrUnauthorized
	}
	return &Ledger{state: state, token: token}, nil
}

// SetMinter registers the sole principal allowed to mint.
func (l *Ledger) SetMinter(minter crypto.Address) {
	if l == nil {
		return
	}
	l.minter = minter
}

// SetRedeemer registers the principal allowed to burn third-party balances.
func (l *Ledger) SetRedeemer(redeemer crypto.Address) {
	if l == nil {
		return
	}
	l.redeemer = redeemer
}

// Token returns the stablecoin's identity address.
func (l *Ledger) Token() crypto.Address { return l.token }

func (l *Ledger) load(key []byte) (*uint256.Int, error) {
	var raw []byte
	ok, err := l.state.KVGet(key, &raw)
	if err != nil {
		return nil, err
	}
	if !ok || len(raw) == 0 {
		return uint256.NewInt(0), nil
	}
	value := new(uint256.Int)
	if overflow := value.SetFromBig(new(big.Int).SetBytes(raw)); overflow {
		return nil, ErrAmountOverflow
	}
	return value, nil
}

func (l *Ledger) store(key []byte, value *uint256.Int) error {
	return l.state.KVPut(key, value.Bytes())
}

// BalanceOf reports the holder's balance.
func (l *Ledger) BalanceOf(addr crypto.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errStateNotConfigured
	}
	balance, err := l.load(balanceKey(addr))
	if err != nil {
		return nil, err
	}
	return balance.ToBig(), nil
}

// TotalSupply reports the outstanding stablecoin supply.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errStateNotConfigured
	}
	supply, err := l.load(supplyKey)
	if err != nil {
		return nil, err
	}
	return supply.ToBig(), nil
}

func checkedAmount(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return value, nil
}

// Mint credits amount to the recipient. Only the registered minter may call.
func (l *Ledger) Mint(caller, to crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errStateNotConfigured
	}
	if l.minter.IsZero() || !caller.Equal(l.minter) {
		return ErrUnauthorized
	}
	if to.IsZero() {
		return ErrUnauthorized
	}
	delta, err := checkedAmount(amount)
	if err != nil {
		return err
	}
	supply, err := l.load(supplyKey)
	if err != nil {
		return err
	}
	newSupply := new(uint256.Int)
	if _, overflow := newSupply.AddOverflow(supply, delta); overflow {
		return ErrAmountOverflow
	}
	balance, err := l.load(balanceKey(to))
	if err != nil {
		return err
	}
	newBalance := new(uint256.Int)
	if _, overflow := newBalance.AddOverflow(balance, delta); overflow {
		return ErrAmountOverflow
	}
	if err := l.store(balanceKey(to), newBalance); err != nil {
		return err
	}
	return l.store(supplyKey, newSupply)
}

// Burn debits amount from the holder. Only the registered redeemer or the
// holder themself may call.
func (l *Ledger) Burn(caller, from crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errStateNotConfigured
	}
	if caller.IsZero() {
		return ErrUnauthorized
	}
	if !caller.Equal(from) && (l.redeemer.IsZero() || !caller.Equal(l.redeemer)) {
		return ErrUnauthorized
	}
	delta, err := checkedAmount(amount)
	if err != nil {
		return err
	}
	balance, err := l.load(balanceKey(from))
	if err != nil {
		return err
	}
	if balance.Lt(delta) {
		return ErrInsufficientBalance
	}
	supply, err := l.load(supplyKey)
	if err != nil {
		return err
	}
	newBalance := new(uint256.Int).Sub(balance, delta)
	newSupply := new(uint256.Int).Sub(supply, delta)
	if err := l.store(balanceKey(from), newBalance); err != nil {
		return err
	}
	return l.store(supplyKey, newSupply)
}
