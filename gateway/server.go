package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"vaultusd/crypto"
	"vaultusd/gateway/config"
	"vaultusd/gateway/middleware"
	"vaultusd/native/issuance"
	"vaultusd/native/oracle"
	"vaultusd/native/stablecoin"
	"vaultusd/native/treasury"
	"vaultusd/observability"
)

// Engines bundles the protocol engines the gateway fronts.
type Engines struct {
	Treasury *treasury.Treasury
	Minter   *issuance.Minter
	Redeemer *issuance.Redeemer
	Supply   *stablecoin.Ledger
	Oracle   *oracle.ManualOracle
}

// Server exposes the engine operations over an authenticated JSON API.
type Server struct {
	cfg     config.Config
	engines Engines
	logger  *log.Logger
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	obs     *middleware.Observability
}

// NewServer wires the HTTP surface over the engines.
func NewServer(cfg config.Config, engines Engines, logger *log.Logger) (*Server, error) {
	if engines.Treasury == nil || engines.Minter == nil || engines.Redeemer == nil || engines.Supply == nil {
		return nil, fmt.Errorf("gateway: engines not configured")
	}
	if logger == nil {
		logger = log.Default()
	}
	limits := make(map[string]middleware.RateLimit, len(cfg.RateLimits))
	for _, limit := range cfg.RateLimits {
		limits[limit.ID] = middleware.RateLimit{
			RequestsPerMinute: limit.RequestsPerMinute,
			Burst:             limit.Burst,
		}
	}
	return &Server{
		cfg:     cfg,
		engines: engines,
		logger:  logger,
		auth: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:        cfg.Auth.Enabled,
			HMACSecret:     cfg.Auth.HMACSecret,
			Issuer:         cfg.Auth.Issuer,
			Audience:       cfg.Auth.Audience,
			ScopeClaim:     cfg.Auth.ScopeClaim,
			OptionalPaths:  cfg.Auth.OptionalPaths,
			AllowAnonymous: cfg.Auth.AllowAnonymous,
			ClockSkew:      cfg.Auth.ClockSkew,
		}, logger),
		limiter: middleware.NewRateLimiter(limits, logger),
		obs: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName:   cfg.Observability.ServiceName,
			MetricsPrefix: cfg.Observability.MetricsPrefix,
			LogRequests:   cfg.Observability.LogRequests,
			Enabled:       cfg.Observability.Metrics,
		}, logger),
	}, nil
}

// Handler builds the routed handler, wrapped for trace propagation.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CORS(middleware.CORSConfig{}))
	r.Use(s.obs.Middleware("root"))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", s.obs.MetricsHandler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(s.limiter.Middleware("api"))

		v1.Group(func(read chi.Router) {
			read.Use(s.auth.Middleware())
			read.Get("/collateral", s.handleCollateralList)
			read.Get("/collateral/{token}/withdrawable", s.handleWithdrawable)
			read.Get("/supply", s.handleSupply)
			read.Get("/balance/{address}", s.handleBalance)
			read.Post("/mint/quote", s.handleMintQuote)
			read.Post("/redeem/quote", s.handleRedeemQuote)
		})

		v1.Group(func(mint chi.Router) {
			mint.Use(s.auth.Middleware("issuance:mint"))
			mint.Post("/mint", s.handleMint)
		})
		v1.Group(func(redeem chi.Router) {
			redeem.Use(s.auth.Middleware("issuance:redeem"))
			redeem.Post("/redeem", s.handleRedeem)
		})
		v1.Group(func(ops chi.Router) {
			ops.Use(s.auth.Middleware("treasury:write"))
			ops.Post("/treasury/withdraw", s.handleWithdraw)
			ops.Post("/treasury/harvest", s.handleHarvest)
		})
		v1.Group(func(feed chi.Router) {
			feed.Use(s.auth.Middleware("oracle:write"))
			feed.Post("/oracle/price", s.handlePostPrice)
		})
	})

	return otelhttp.NewHandler(r, s.cfg.Observability.ServiceName)
}

type collateralEntry struct {
	Token        string `json:"token"`
	WrappedToken string `json:"wrappedToken"`
	PriceFeed    string `json:"priceFeed"`
}

func (s *Server) handleCollateralList(w http.ResponseWriter, _ *http.Request) {
	entries := s.engines.Treasury.Registry().Entries()
	out := make([]collateralEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, collateralEntry{
			Token:        entry.Token.String(),
			WrappedToken: entry.WrappedToken.String(),
			PriceFeed:    entry.PriceFeed.String(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"collateral": out})
}

func (s *Server) handleWithdrawable(w http.ResponseWriter, r *http.Request) {
	token, err := pathAddress(r, "token")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	available, err := s.engines.Treasury.Withdrawable(token)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":        token.String(),
		"withdrawable": available.String(),
	})
}

func (s *Server) handleSupply(w http.ResponseWriter, _ *http.Request) {
	supply, err := s.engines.Supply.TotalSupply()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"totalSupply": supply.String()})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	holder, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	balance, err := s.engines.Supply.BalanceOf(holder)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address": holder.String(),
		"balance": balance.String(),
	})
}

type issuanceRequest struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

func (s *Server) handleMintQuote(w http.ResponseWriter, r *http.Request) {
	var req issuanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	token, amount, err := parseTokenAmount(req.Token, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	mintage, err := s.engines.Minter.Quote(token, amount)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mintage": mintage.String()})
}

func (s *Server) handleRedeemQuote(w http.ResponseWriter, r *http.Request) {
	var req issuanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	token, amount, err := parseTokenAmount(req.Token, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	collateral, err := s.engines.Redeemer.Quote(token, amount)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"collateral": collateral.String()})
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req issuanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := crypto.DecodeAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("caller: %w", err))
		return
	}
	token, amount, err := parseTokenAmount(req.Token, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	start := time.Now()
	minted, err := s.engines.Minter.Mint(caller, token, amount)
	observability.Issuance().ObserveMint(req.Token, time.Since(start), err)
	if err != nil {
		if errors.Is(err, issuance.ErrOracleUnavailable) {
			observability.Issuance().RecordOracleMiss()
		}
		s.writeEngineError(w, err)
		return
	}
	observability.Treasury().RecordDeposit(req.Token)
	s.refreshGauges(token)
	writeJSON(w, http.StatusOK, map[string]string{"minted": minted.String()})
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req issuanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := crypto.DecodeAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("caller: %w", err))
		return
	}
	token, amount, err := parseTokenAmount(req.Token, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	start := time.Now()
	collateral, err := s.engines.Redeemer.Redeem(caller, token, amount)
	observability.Issuance().ObserveRedeem(req.Token, time.Since(start), err)
	if err != nil {
		if errors.Is(err, issuance.ErrOracleUnavailable) {
			observability.Issuance().RecordOracleMiss()
		}
		s.writeEngineError(w, err)
		return
	}
	observability.Treasury().RecordWithdrawal(req.Token)
	s.refreshGauges(token)
	writeJSON(w, http.StatusOK, map[string]string{"collateral": collateral.String()})
}

type withdrawRequest struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
	To     string `json:"to"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := crypto.DecodeAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("caller: %w", err))
		return
	}
	token, amount, err := parseTokenAmount(req.Token, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var to crypto.Address
	if strings.TrimSpace(req.To) != "" {
		if to, err = crypto.DecodeAddress(req.To); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("to: %w", err))
			return
		}
	}
	if err := s.engines.Treasury.Withdraw(caller, token, amount, to); err != nil {
		observability.Treasury().RecordError("withdraw", errReason(err))
		s.writeEngineError(w, err)
		return
	}
	observability.Treasury().RecordWithdrawal(req.Token)
	s.refreshGauges(token)
	writeJSON(w, http.StatusOK, map[string]string{"status": "settled"})
}

type harvestRequest struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
	MinOut string `json:"minOut"`
}

func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request) {
	var req harvestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := crypto.DecodeAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("caller: %w", err))
		return
	}
	token, err := crypto.DecodeAddress(req.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("token: %w", err))
		return
	}
	var minOut *big.Int
	if strings.TrimSpace(req.MinOut) != "" {
		if minOut, err = parseAmount(req.MinOut); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("minOut: %w", err))
			return
		}
	}
	converted, err := s.engines.Treasury.ClaimAndConvert(caller, token, minOut)
	if err != nil {
		observability.Treasury().RecordError("harvest", errReason(err))
		s.writeEngineError(w, err)
		return
	}
	observability.Treasury().RecordHarvest()
	writeJSON(w, http.StatusOK, map[string]string{"converted": converted.String()})
}

type priceRequest struct {
	Feed     string `json:"feed"`
	Value    string `json:"value"`
	Decimals uint8  `json:"decimals"`
}

func (s *Server) handlePostPrice(w http.ResponseWriter, r *http.Request) {
	if s.engines.Oracle == nil {
		writeError(w, http.StatusNotImplemented, fmt.Errorf("manual oracle not enabled"))
		return
	}
	var req priceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	feed, err := crypto.DecodeAddress(req.Feed)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("feed: %w", err))
		return
	}
	value, err := parseAmount(req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("value: %w", err))
		return
	}
	if err := s.engines.Oracle.Post(feed, value, req.Decimals); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "posted"})
}

// refreshGauges best-effort updates the supply and withdrawable gauges after a
// settled operation. Read failures here never fail the request.
func (s *Server) refreshGauges(token crypto.Address) {
	if supply, err := s.engines.Supply.TotalSupply(); err == nil {
		observability.Issuance().SetSupply(supply)
	}
	if available, err := s.engines.Treasury.Withdrawable(token); err == nil {
		observability.Treasury().SetWithdrawable(token.String(), available)
	}
}

func errReason(err error) string {
	switch {
	case errors.Is(err, treasury.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, treasury.ErrTokenNotSupported), errors.Is(err, treasury.ErrNotWhitelisted):
		return "not_whitelisted"
	case errors.Is(err, treasury.ErrInsufficientWithdrawable):
		return "insufficient_withdrawable"
	case errors.Is(err, treasury.ErrSlippageExceeded):
		return "slippage"
	case errors.Is(err, treasury.ErrZeroAmount):
		return "zero_amount"
	default:
		return "other"
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, treasury.ErrUnauthorized), errors.Is(err, stablecoin.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, treasury.ErrTokenNotSupported),
		errors.Is(err, treasury.ErrNotWhitelisted),
		errors.Is(err, issuance.ErrTokenNotSupported):
		status = http.StatusNotFound
	case errors.Is(err, treasury.ErrInsufficientWithdrawable),
		errors.Is(err, stablecoin.ErrInsufficientBalance):
		status = http.StatusConflict
	case errors.Is(err, issuance.ErrOracleUnavailable), errors.Is(err, oracle.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	s.logger.Printf("gateway: request failed: %v", err)
	writeError(w, status, err)
}

func pathAddress(r *http.Request, param string) (crypto.Address, error) {
	raw := chi.URLParam(r, param)
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%s: %w", param, err)
	}
	return addr, nil
}

func parseTokenAmount(token, amount string) (crypto.Address, *big.Int, error) {
	addr, err := crypto.DecodeAddress(token)
	if err != nil {
		return crypto.Address{}, nil, fmt.Errorf("token: %w", err)
	}
	value, err := parseAmount(amount)
	if err != nil {
		return crypto.Address{}, nil, fmt.Errorf("amount: %w", err)
	}
	return addr, value, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("malformed integer amount %q", raw)
	}
	return value, nil
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
