package oracle

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"vaultusd/crypto"
)

func feedAddr(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[crypto.AddressLength-1] = b
	return crypto.MustNewAddress(crypto.VusdPrefix, raw)
}

func TestManualOraclePostAndPrice(t *testing.T) {
	o := NewManualOracle(0)
	feed := feedAddr(0x01)
	if err := o.Post(feed, big.NewInt(1_000_000), 6); err != nil {
		t.Fatalf("post: %v", err)
	}
	value, decimals, err := o.Price(feed)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if value.Cmp(big.NewInt(1_000_000)) != 0 || decimals != 6 {
		t.Fatalf("unexpected quote %s/%d", value, decimals)
	}
}

func TestManualOracleRejectsBadQuotes(t *testing.T) {
	o := NewManualOracle(0)
	feed := feedAddr(0x01)
	if err := o.Post(crypto.Address{}, big.NewInt(1), 0); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected rejection of zero feed, got %v", err)
	}
	if err := o.Post(feed, nil, 0); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected rejection of nil value, got %v", err)
	}
	if err := o.Post(feed, big.NewInt(0), 0); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected rejection of zero value, got %v", err)
	}
	if _, _, err := o.Price(feed); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for unposted feed, got %v", err)
	}
}

func TestManualOracleStaleness(t *testing.T) {
	o := NewManualOracle(time.Minute)
	now := time.Unix(1_700_000_000, 0).UTC()
	o.SetNowFunc(func() time.Time { return now })

	feed := feedAddr(0x01)
	if err := o.Post(feed, big.NewInt(42), 2); err != nil {
		t.Fatalf("post: %v", err)
	}
	if _, _, err := o.Price(feed); err != nil {
		t.Fatalf("fresh quote: %v", err)
	}

	now = now.Add(59 * time.Second)
	if _, _, err := o.Price(feed); err != nil {
		t.Fatalf("quote inside window: %v", err)
	}

	now = now.Add(2 * time.Second)
	if _, _, err := o.Price(feed); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable once stale, got %v", err)
	}

	// A fresh post revives the feed.
	if err := o.Post(feed, big.NewInt(43), 2); err != nil {
		t.Fatalf("repost: %v", err)
	}
	value, _, err := o.Price(feed)
	if err != nil {
		t.Fatalf("revived quote: %v", err)
	}
	if value.Cmp(big.NewInt(43)) != 0 {
		t.Fatalf("expected reposted value, got %s", value)
	}
}

func TestManualOracleReturnsCopies(t *testing.T) {
	o := NewManualOracle(0)
	feed := feedAddr(0x01)
	posted := big.NewInt(100)
	if err := o.Post(feed, posted, 0); err != nil {
		t.Fatalf("post: %v", err)
	}
	posted.SetInt64(999)

	value, _, err := o.Price(feed)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if value.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("stored quote aliased caller value: %s", value)
	}
	value.SetInt64(1)
	again, _, _ := o.Price(feed)
	if again.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("returned quote aliased stored value: %s", again)
	}
}
