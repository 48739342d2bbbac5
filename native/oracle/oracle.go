package oracle

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"vaultusd/crypto"
)

// ErrUnavailable is returned when a feed has no fresh, positive quote.
// Callers abort; there is no stale-price fallback.
var ErrUnavailable = errors.New("oracle: price unavailable")

// Quote captures a posted price observation for a feed.
type Quote struct {
	Value     *big.Int
	Decimals  uint8
	Timestamp time.Time
}

// Clone returns a deep copy so callers cannot mutate the stored quote.
func (q Quote) Clone() Quote {
	clone := Quote{Decimals: q.Decimals, Timestamp: q.Timestamp}
	if q.Value != nil {
		clone.Value = new(big.Int).Set(q.Value)
	}
	return clone
}

// PriceOracle resolves the current price for a feed address.
type PriceOracle interface {
	Price(feed crypto.Address) (*big.Int, uint8, error)
}

// ManualOracle keeps operator-posted quotes in memory with a staleness
// window. It is the reference PriceOracle used by the issuance engines; a
// production deployment substitutes an attested aggregator behind the same
// interface.
type ManualOracle struct {
	mu     sync.RWMutex
	quotes map[string]Quote
	maxAge time.Duration
	nowFn  func() time.Time
}

// NewManualOracle constructs an oracle whose quotes expire after maxAge. A
// non-positive maxAge disables expiry.
func NewManualOracle(maxAge time.Duration) *ManualOracle {
	return &ManualOracle{
		quotes: make(map[string]Quote),
		maxAge: maxAge,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock used for staleness checks. Nil restores the
// default UTC clock.
func (o *ManualOracle) SetNowFunc(now func() time.Time) {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if now == nil {
		o.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	o.nowFn = now
}

// Post records a quote for the feed. Non-positive values are rejected.
func (o *ManualOracle) Post(feed crypto.Address, value *big.Int, decimals uint8) error {
	if o == nil {
		return ErrUnavailable
	}
	if feed.IsZero() || value == nil || value.Sign() <= 0 {
		return ErrUnavailable
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.quotes[feed.Key()] = Quote{
		Value:     new(big.Int).Set(value),
		Decimals:  decimals,
		Timestamp: o.nowFn(),
	}
	return nil
}

// Price implements PriceOracle. Missing, stale, or non-positive quotes all
// surface ErrUnavailable.
func (o *ManualOracle) Price(feed crypto.Address) (*big.Int, uint8, error) {
	if o == nil {
		return nil, 0, ErrUnavailable
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	quote, ok := o.quotes[feed.Key()]
	if !ok || quote.Value == nil || quote.Value.Sign() <= 0 {
		return nil, 0, ErrUnavailable
	}
	if o.maxAge > 0 && o.nowFn().Sub(quote.Timestamp) > o.maxAge {
		return nil, 0, ErrUnavailable
	}
	return new(big.Int).Set(quote.Value), quote.Decimals, nil
}
