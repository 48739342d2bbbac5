package tokenbank

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"vaultusd/crypto"
)

var (
	// ErrZeroAmount is returned for nil or non-positive transfer amounts.
	ErrZeroAmount = errors.New("tokenbank: amount must be positive")
	// ErrInsufficientBalance is returned when a transfer exceeds the sender's
	// balance.
	ErrInsufficientBalance = errors.New("tokenbank: insufficient balance")
	// ErrAmountOverflow is returned when a balance would exceed 256 bits.
	ErrAmountOverflow = errors.New("tokenbank: amount overflows")
	// ErrZeroAddress is returned for zero token or account addresses.
	ErrZeroAddress = errors.New("tokenbank: zero address")

	errStateNotConfigured = errors.New("tokenbank: state not configured")
)

var (
	balancePrefix  = []byte("tokenbank/balance/")
	decimalsPrefix = []byte("tokenbank/decimals/")
)

type bankState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Ledger is a persisted multi-token balance ledger. It provides the token
// custody surface the treasury and yield market operate against.
type Ledger struct {
	state bankState
}

// NewLedger binds the ledger to state.
func NewLedger(state bankState) (*Ledger, error) {
	if state == nil {
		return nil, errStateNotConfigured
	}
	return &Ledger{state: state}, nil
}

func balanceKey(token, account crypto.Address) []byte {
	tokenRaw := token.Bytes()
	accountRaw := account.Bytes()
	buf := make([]byte, 0, len(balancePrefix)+len(tokenRaw)+1+len(accountRaw))
	buf = append(buf, balancePrefix...)
	buf = append(buf, tokenRaw...)
	buf = append(buf, '/')
	buf = append(buf, accountRaw...)
	return buf
}

func decimalsKey(token crypto.Address) []byte {
	raw := token.Bytes()
	buf := make([]byte, 0, len(decimalsPrefix)+len(raw))
	buf = append(buf, decimalsPrefix...)
	buf = append(buf, raw...)
	return buf
}

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

// BalanceOf reports the account's balance of token.
func (l *Ledger) BalanceOf(token, account crypto.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errStateNotConfigured
	}
	balance, err := l.load(balanceKey(token, account))
	if err != nil {
		return nil, err
	}
	return balance.ToBig(), nil
}

// Transfer moves amount of token between accounts.
func (l *Ledger) Transfer(token, from, to crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errStateNotConfigured
	}
	if token.IsZero() || from.IsZero() || to.IsZero() {
		return ErrZeroAddress
	}
	delta, err := checkedAmount(amount)
	if err != nil {
		return err
	}
	if from.Equal(to) {
		return nil
	}
	fromBalance, err := l.load(balanceKey(token, from))
	if err != nil {
		return err
	}
	if fromBalance.Lt(delta) {
		return ErrInsufficientBalance
	}
	toBalance, err := l.load(balanceKey(token, to))
	if err != nil {
		return err
	}
	newTo := new(uint256.Int)
	if _, overflow := newTo.AddOverflow(toBalance, delta); overflow {
		return ErrAmountOverflow
	}
	if err := l.store(balanceKey(token, from), new(uint256.Int).Sub(fromBalance, delta)); err != nil {
		return err
	}
	return l.store(balanceKey(token, to), newTo)
}

// Credit mints amount of token into the account. Intended for genesis funding
// and for bridged inflows settled outside the ledger.
func (l *Ledger) Credit(token, account crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errStateNotConfigured
	}
	if token.IsZero() || account.IsZero() {
		return ErrZeroAddress
	}
	delta, err := checkedAmount(amount)
	if err != nil {
		return err
	}
	balance, err := l.load(balanceKey(token, account))
	if err != nil {
		return err
	}
	updated := new(uint256.Int)
	if _, overflow := updated.AddOverflow(balance, delta); overflow {
		return ErrAmountOverflow
	}
	return l.store(balanceKey(token, account), updated)
}

// Debit burns amount of token from the account, the inverse of Credit.
func (l *Ledger) Debit(token, account crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errStateNotConfigured
	}
	if token.IsZero() || account.IsZero() {
		return ErrZeroAddress
	}
	delta, err := checkedAmount(amount)
	if err != nil {
		return err
	}
	balance, err := l.load(balanceKey(token, account))
	if err != nil {
		return err
	}
	if balance.Lt(delta) {
		return ErrInsufficientBalance
	}
	return l.store(balanceKey(token, account), new(uint256.Int).Sub(balance, delta))
}

// SetDecimals registers the display precision for a token.
func (l *Ledger) SetDecimals(token crypto.Address, decimals uint8) error {
	if l == nil || l.state == nil {
		return errStateNotConfigured
	}
	if token.IsZero() {
		return ErrZeroAddress
	}
	return l.state.KVPut(decimalsKey(token), []byte{decimals})
}

// Decimals reports the token's precision, defaulting to 18 when unset.
func (l *Ledger) Decimals(token crypto.Address) (uint8, error) {
	if l == nil || l.state == nil {
		return 0, errStateNotConfigured
	}
	var raw []byte
	ok, err := l.state.KVGet(decimalsKey(token), &raw)
	if err != nil {
		return 0, err
	}
	if !ok || len(raw) == 0 {
		return 18, nil
	}
	return raw[0], nil
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
