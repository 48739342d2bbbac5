package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"lukechampine.com/blake3"

	"vaultusd/config"
	"vaultusd/core/events"
	"vaultusd/crypto"
	"vaultusd/gateway"
	gwconfig "vaultusd/gateway/config"
	"vaultusd/native/issuance"
	"vaultusd/native/market"
	"vaultusd/native/oracle"
	"vaultusd/native/stablecoin"
	"vaultusd/native/tokenbank"
	"vaultusd/native/treasury"
	"vaultusd/observability"
	"vaultusd/observability/logging"
	"vaultusd/observability/otel"
	"vaultusd/services/auditd"
	auditstorage "vaultusd/services/auditd/storage"
	"vaultusd/state"
	"vaultusd/storage"
)

const otlpHeadersEnv = "VUSD_OTLP_HEADERS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the node configuration file")
	gatewayFile := flag.String("gateway-config", "", "Path to the gateway configuration file (defaults apply when empty)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("vaultd", cfg.Environment, logging.Options{File: cfg.LogFile})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Metrics || cfg.Telemetry.Traces {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: "vaultd",
			Environment: cfg.Environment,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     otel.ParseHeaders(os.Getenv(otlpHeadersEnv)),
			Metrics:     cfg.Telemetry.Metrics,
			Traces:      cfg.Telemetry.Traces,
		})
		if err != nil {
			logger.Error("Failed to initialise telemetry", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Error("Telemetry shutdown failed", slog.Any("error", err))
			}
		}()
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	engines, err := buildEngines(cfg, db, logger)
	if err != nil {
		logger.Error("Failed to build engines", slog.Any("error", err))
		os.Exit(1)
	}
	defer engines.close()

	gwCfg, err := gwconfig.Load(*gatewayFile)
	if err != nil {
		logger.Error("Failed to load gateway config", slog.Any("error", err))
		os.Exit(1)
	}
	if strings.TrimSpace(*gatewayFile) == "" {
		gwCfg.ListenAddress = cfg.ListenAddress
	}

	server, err := gateway.NewServer(gwCfg, gateway.Engines{
		Treasury: engines.vault,
		Minter:   engines.minter,
		Redeemer: engines.redeemer,
		Supply:   engines.supply,
		Oracle:   engines.oracle,
	}, log.Default())
	if err != nil {
		logger.Error("Failed to build gateway", slog.Any("error", err))
		os.Exit(1)
	}

	httpSrv := &http.Server{
		Addr:         gwCfg.ListenAddress,
		Handler:      server.Handler(),
		ReadTimeout:  gwCfg.ReadTimeout,
		WriteTimeout: gwCfg.WriteTimeout,
		IdleTimeout:  gwCfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("vaultd listening",
			slog.String("address", gwCfg.ListenAddress),
			slog.String("governor", cfg.Governor),
		)
		if gwCfg.TLS.CertFile != "" {
			errCh <- httpSrv.ListenAndServeTLS(gwCfg.TLS.CertFile, gwCfg.TLS.KeyFile)
			return
		}
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server terminated", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", slog.Any("error", err))
	}
}

// engineSet holds the constructed protocol engines plus the resources they own.
type engineSet struct {
	vault    *treasury.Treasury
	minter   *issuance.Minter
	redeemer *issuance.Redeemer
	supply   *stablecoin.Ledger
	oracle   *oracle.ManualOracle

	audit *auditstorage.Storage
}

func (e *engineSet) close() {
	if e == nil || e.audit == nil {
		return
	}
	if err := e.audit.Close(); err != nil {
		slog.Default().Error("Failed to close audit store", slog.Any("error", err))
	}
}

func buildEngines(cfg *config.Config, db storage.Database, logger *slog.Logger) (*engineSet, error) {
	genesis, err := cfg.Genesis()
	if err != nil {
		return nil, err
	}

	manager, err := state.NewManager(db)
	if err != nil {
		return nil, err
	}
	bank, err := tokenbank.NewLedger(manager)
	if err != nil {
		return nil, err
	}

	yieldMarket, err := market.NewMarket(manager, bank, moduleAddress("market"), moduleAddress("market/reward"))
	if err != nil {
		return nil, err
	}
	venue, err := market.NewInventoryVenue(manager, bank, moduleAddress("venue"))
	if err != nil {
		return nil, err
	}

	registry, err := treasury.NewCollateralRegistry(manager)
	if err != nil {
		return nil, err
	}
	roles, err := treasury.NewRoles(manager, genesis.Roles)
	if err != nil {
		return nil, err
	}
	if err := seedGenesis(registry, roles, yieldMarket, genesis); err != nil {
		return nil, err
	}

	ledger, err := treasury.NewPositionLedger(registry, bank, yieldMarket, venue, genesis.Custody)
	if err != nil {
		return nil, err
	}
	vault, err := treasury.NewTreasury(registry, ledger, roles, bank, genesis.Stablecoin)
	if err != nil {
		return nil, err
	}

	supply, err := stablecoin.NewLedger(manager, genesis.Stablecoin)
	if err != nil {
		return nil, err
	}
	// The issuance principal defaults to the governor until a dedicated
	// redeemer role is assigned.
	principal := roles.Redeemer()
	if principal.IsZero() {
		principal = roles.Governor()
	}
	supply.SetMinter(principal)
	supply.SetRedeemer(principal)

	priceOracle := oracle.NewManualOracle(time.Duration(cfg.OracleMaxAgeSecs) * time.Second)

	minter, err := issuance.NewMinter(vault, supply, priceOracle, bank, principal)
	if err != nil {
		return nil, err
	}
	redeemer, err := issuance.NewRedeemer(vault, supply, priceOracle, bank, principal)
	if err != nil {
		return nil, err
	}

	auditStore, err := auditstorage.Open(cfg.AuditDBPath)
	if err != nil {
		return nil, err
	}
	emitter := events.NewMultiEmitter(
		auditd.NewRecorder(auditStore, logger),
		observability.Events(),
	)
	vault.SetEmitter(emitter)
	minter.SetEmitter(emitter)
	redeemer.SetEmitter(emitter)

	return &engineSet{
		vault:    vault,
		minter:   minter,
		redeemer: redeemer,
		supply:   supply,
		oracle:   priceOracle,
		audit:    auditStore,
	}, nil
}

// seedGenesis applies the configured collateral whitelist and keeper set on
// first boot. Entries already hydrated from state are left untouched.
func seedGenesis(registry *treasury.CollateralRegistry, roles *treasury.Roles, yieldMarket *market.Market, genesis *config.Genesis) error {
	for _, entry := range genesis.Collateral {
		if !registry.IsWhitelisted(entry.Token) {
			if err := registry.AddWhitelistedToken(entry.Token, entry.WrappedToken, entry.PriceFeed); err != nil {
				return fmt.Errorf("whitelist %s: %w", entry.Token, err)
			}
		}
		if err := yieldMarket.List(entry.Token, entry.WrappedToken); err != nil && !errors.Is(err, market.ErrAlreadyListed) {
			return fmt.Errorf("list %s: %w", entry.Token, err)
		}
	}
	for _, keeper := range genesis.Keepers {
		if err := roles.AddKeeper(roles.Governor(), keeper); err != nil && !errors.Is(err, treasury.ErrNoOp) {
			return fmt.Errorf("add keeper %s: %w", keeper, err)
		}
	}
	return nil
}

// moduleAddress derives a stable protocol-owned address for an internal
// account such as the yield market's inventory.
func moduleAddress(name string) crypto.Address {
	digest := blake3.Sum256([]byte("vusd/module/" + name))
	return crypto.MustNewAddress(crypto.VusdPrefix, digest[:crypto.AddressLength])
}
