package config

import (
	"os"
	"path/filepath"
	"testing"

	"vaultusd/crypto"
)

func testAddr(t *testing.T, b byte) string {
	t.Helper()
	raw := make([]byte, crypto.AddressLength)
	raw[crypto.AddressLength-1] = b
	return crypto.MustNewAddress(crypto.VusdPrefix, raw).String()
}

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if _, err := os.Stat(cfg.GovernorKeystorePath); err != nil {
		t.Fatalf("keystore not created: %v", err)
	}
	if _, err := crypto.DecodeAddress(cfg.Governor); err != nil {
		t.Fatalf("generated governor does not parse: %v", err)
	}
	if cfg.OracleMaxAgeSecs == 0 {
		t.Fatalf("expected default oracle max age")
	}

	// A second load reads the persisted file instead of regenerating.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Governor != cfg.Governor {
		t.Fatalf("governor changed across reloads")
	}
}

func TestLoadParsesCollateral(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := &Config{
		ListenAddress: ":8545",
		DataDir:       dir,
		Governor:      testAddr(t, 0x01),
		Redeemer:      testAddr(t, 0x02),
		Custody:       testAddr(t, 0x10),
		Stablecoin:    testAddr(t, 0x11),
		Keepers:       []string{testAddr(t, 0x03)},
		Collateral: []CollateralConfig{{
			Token:        testAddr(t, 0x20),
			WrappedToken: testAddr(t, 0x21),
			PriceFeed:    testAddr(t, 0x22),
		}},
	}
	if err := persist(path, cfg); err != nil {
		t.Fatalf("persist: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	genesis, err := loaded.Genesis()
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if genesis.Roles.Governor.IsZero() || genesis.Roles.Redeemer.IsZero() {
		t.Fatalf("roles not parsed")
	}
	if len(genesis.Keepers) != 1 || len(genesis.Collateral) != 1 {
		t.Fatalf("keepers/collateral not parsed: %d/%d", len(genesis.Keepers), len(genesis.Collateral))
	}
	if genesis.Collateral[0].Token.IsZero() || genesis.Collateral[0].WrappedToken.IsZero() {
		t.Fatalf("collateral entry not parsed")
	}
}

func TestValidateRejections(t *testing.T) {
	base := func() *Config {
		return &Config{
			Governor:   testAddr(t, 0x01),
			Custody:    testAddr(t, 0x10),
			Stablecoin: testAddr(t, 0x11),
		}
	}

	cfg := base()
	cfg.Governor = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing governor rejection")
	}

	cfg = base()
	cfg.Custody = "not-an-address"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected malformed custody rejection")
	}

	cfg = base()
	cfg.Keepers = []string{"bogus"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected malformed keeper rejection")
	}

	cfg = base()
	token := testAddr(t, 0x20)
	cfg.Collateral = []CollateralConfig{{Token: token, WrappedToken: token, PriceFeed: testAddr(t, 0x22)}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected token==wrapped rejection")
	}

	cfg = base()
	cfg.Collateral = []CollateralConfig{
		{Token: token, WrappedToken: testAddr(t, 0x21), PriceFeed: testAddr(t, 0x22)},
		{Token: token, WrappedToken: testAddr(t, 0x31), PriceFeed: testAddr(t, 0x32)},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected duplicate token rejection")
	}
}
