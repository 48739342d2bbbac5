package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vaultusd/crypto"

	"github.com/BurntSushi/toml"
)

// CollateralConfig describes one whitelisted collateral entry in the config
// file. All three addresses are bech32 strings.
type CollateralConfig struct {
	Token        string `toml:"Token"`
	WrappedToken string `toml:"WrappedToken"`
	PriceFeed    string `toml:"PriceFeed"`
}

// Telemetry captures the OTLP exporter knobs.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}

type Config struct {
	ListenAddress        string `toml:"ListenAddress"`
	DataDir              string `toml:"DataDir"`
	AuditDBPath          string `toml:"AuditDBPath"`
	GovernorKeystorePath string `toml:"GovernorKeystorePath"`
	Environment          string `toml:"Environment"`
	LogFile              string `toml:"LogFile"`
	OracleMaxAgeSecs     uint64 `toml:"OracleMaxAgeSecs"`

	Governor    string   `toml:"Governor"`
	Redeemer    string   `toml:"Redeemer"`
	SwapManager string   `toml:"SwapManager"`
	Keepers     []string `toml:"Keepers"`
	Custody     string   `toml:"Custody"`
	Stablecoin  string   `toml:"Stablecoin"`

	Collateral []CollateralConfig `toml:"Collateral"`
	Telemetry  Telemetry          `toml:"Telemetry"`
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8545"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./vusd-data"
	}
	if strings.TrimSpace(cfg.AuditDBPath) == "" {
		cfg.AuditDBPath = filepath.Join(cfg.DataDir, "audit.db")
	}
	if cfg.OracleMaxAgeSecs == 0 {
		cfg.OracleMaxAgeSecs = 300
	}
	if cfg.Keepers == nil {
		cfg.Keepers = []string{}
	}
	if cfg.Collateral == nil {
		cfg.Collateral = []CollateralConfig{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks address syntax and structural invariants before the engines
// are constructed.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Governor) == "" {
		return fmt.Errorf("config: Governor address required")
	}
	for field, value := range map[string]string{
		"Governor":   c.Governor,
		"Custody":    c.Custody,
		"Stablecoin": c.Stablecoin,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("config: %s address required", field)
		}
		if _, err := crypto.DecodeAddress(value); err != nil {
			return fmt.Errorf("config: invalid %s address: %w", field, err)
		}
	}
	for _, optional := range []string{c.Redeemer, c.SwapManager} {
		if strings.TrimSpace(optional) == "" {
			continue
		}
		if _, err := crypto.DecodeAddress(optional); err != nil {
			return fmt.Errorf("config: invalid role address: %w", err)
		}
	}
	for _, keeper := range c.Keepers {
		if _, err := crypto.DecodeAddress(keeper); err != nil {
			return fmt.Errorf("config: invalid keeper address: %w", err)
		}
	}
	seen := make(map[string]struct{}, len(c.Collateral))
	for i, entry := range c.Collateral {
		for _, addr := range []string{entry.Token, entry.WrappedToken, entry.PriceFeed} {
			if _, err := crypto.DecodeAddress(addr); err != nil {
				return fmt.Errorf("config: collateral entry %d: %w", i, err)
			}
		}
		if entry.Token == entry.WrappedToken {
			return fmt.Errorf("config: collateral entry %d: token equals wrapped token", i)
		}
		if _, dup := seen[entry.Token]; dup {
			return fmt.Errorf("config: collateral entry %d: duplicate token %s", i, entry.Token)
		}
		seen[entry.Token] = struct{}{}
	}
	return nil
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.GovernorKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.GovernorKeystorePath != keystorePath {
		cfg.GovernorKeystorePath = keystorePath
		return persist(configPath, cfg)
	}

	return nil
}

// createDefault creates and saves a default configuration file. The generated
// governor key defines the default genesis roles and accounts so a fresh node
// starts without manual editing.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	governor := key.PubKey().Address().String()
	cfg := &Config{
		ListenAddress:        ":8545",
		DataDir:              "./vusd-data",
		AuditDBPath:          "./vusd-data/audit.db",
		GovernorKeystorePath: keystorePath,
		Environment:          "local",
		OracleMaxAgeSecs:     300,
		Governor:             governor,
		Custody:              governor,
		Stablecoin:           governor,
		Keepers:              []string{},
		Collateral:           []CollateralConfig{},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "governor.keystore")
}
