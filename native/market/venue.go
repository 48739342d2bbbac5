package market

import (
	"errors"
	"fmt"
	"math/big"

	"vaultusd/crypto"
	"vaultusd/native/tokenbank"
	"vaultusd/native/treasury"
)

// ErrNoQuote is returned when swapping a pair without a posted rate.
var ErrNoQuote = errors.New("market: no quote for pair")

var quotePrefix = []byte("market/quote/")

type storedQuote struct {
	Num []byte
	Den []byte
}

// InventoryVenue is a posted-rate swap venue trading against its own token
// inventory. The treasury uses it to convert harvested reward tokens into
// collateral during ClaimAndConvert.
type InventoryVenue struct {
	state marketState
	bank  *tokenbank.Ledger
	self  crypto.Address
}

// NewInventoryVenue binds the venue to state and the token bank.
func NewInventoryVenue(state marketState, bank *tokenbank.Ledger, self crypto.Address) (*InventoryVenue, error) {
	if state == nil || bank == nil {
		return nil, errStateNotConfigured
	}
	if self.IsZero() {
		return nil, ErrZeroAddress
	}
	return &InventoryVenue{state: state, bank: bank, self: self}, nil
}

func quoteKey(tokenIn, tokenOut crypto.Address) []byte {
	in := tokenIn.Bytes()
	out := tokenOut.Bytes()
	buf := make([]byte, 0, len(quotePrefix)+len(in)+1+len(out))
	buf = append(buf, quotePrefix...)
	buf = append(buf, in...)
	buf = append(buf, '/')
	buf = append(buf, out...)
	return buf
}

// SetQuote posts the tokenIn -> tokenOut rate as a num/den fraction:
// out = in * num / den, floored.
func (v *InventoryVenue) SetQuote(tokenIn, tokenOut crypto.Address, num, den *big.Int) error {
	if v == nil || v.state == nil {
		return errStateNotConfigured
	}
	if tokenIn.IsZero() || tokenOut.IsZero() {
		return ErrZeroAddress
	}
	if num == nil || den == nil || num.Sign() <= 0 || den.Sign() <= 0 {
		return tokenbank.ErrZeroAmount
	}
	return v.state.KVPut(quoteKey(tokenIn, tokenOut), storedQuote{Num: num.Bytes(), Den: den.Bytes()})
}

// Swap trades amountIn of tokenIn for tokenOut at the posted rate, paying
// from the venue's own inventory. An output below minOut aborts with
// treasury.ErrSlippageExceeded before any balance moves.
func (v *InventoryVenue) Swap(tokenIn, tokenOut crypto.Address, amountIn, minOut *big.Int, recipient crypto.Address) (*big.Int, error) {
	if v == nil || v.state == nil {
		return nil, errStateNotConfigured
	}
	var stored storedQuote
	ok, err := v.state.KVGet(quoteKey(tokenIn, tokenOut), &stored)
	if err != nil {
		return nil, fmt.Errorf("market: load quote: %w", err)
	}
	if !ok {
		return nil, ErrNoQuote
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, tokenbank.ErrZeroAmount
	}
	out := new(big.Int).Mul(amountIn, new(big.Int).SetBytes(stored.Num))
	out.Quo(out, new(big.Int).SetBytes(stored.Den))
	if minOut != nil && out.Cmp(minOut) < 0 {
		return nil, treasury.ErrSlippageExceeded
	}
	if err := v.bank.Transfer(tokenIn, recipient, v.self, amountIn); err != nil {
		return nil, err
	}
	if err := v.bank.Transfer(tokenOut, v.self, recipient, out); err != nil {
		return nil, err
	}
	return out, nil
}
