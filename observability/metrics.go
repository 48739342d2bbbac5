package observability

import (
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type treasuryMetrics struct {
	deposits     *prometheus.CounterVec
	withdrawals  *prometheus.CounterVec
	harvests     prometheus.Counter
	sweeps       prometheus.Counter
	migrations   prometheus.Counter
	withdrawable *prometheus.GaugeVec
	errors       *prometheus.CounterVec
}

type issuanceMetrics struct {
	mints       *prometheus.CounterVec
	redemptions *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	supply      prometheus.Gauge
	oracleMiss  prometheus.Counter
}

var (
	treasuryMetricsOnce sync.Once
	treasuryRegistry    *treasuryMetrics

	issuanceMetricsOnce sync.Once
	issuanceRegistry    *issuanceMetrics
)

// Treasury returns the lazily-initialised metrics registry tracking vault
// custody activity.
func Treasury() *treasuryMetrics {
	treasuryMetricsOnce.Do(func() {
		treasuryRegistry = &treasuryMetrics{
			deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vusd",
				Subsystem: "treasury",
				Name:      "deposits_total",
				Help:      "Count of collateral deposits segmented by token.",
			}, []string{"token"}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vusd",
				Subsystem: "treasury",
				Name:      "withdrawals_total",
				Help:      "Count of collateral withdrawals segmented by token.",
			}, []string{"token"}),
			harvests: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "vusd",
				Subsystem: "treasury",
				Name:      "harvests_total",
				Help:      "Count of completed reward harvest-and-convert cycles.",
			}),
			sweeps: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "vusd",
				Subsystem: "treasury",
				Name:      "sweeps_total",
				Help:      "Count of stray-token sweeps executed by governance.",
			}),
			migrations: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "vusd",
				Subsystem: "treasury",
				Name:      "migrations_total",
				Help:      "Count of completed position migrations to a successor treasury.",
			}),
			withdrawable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "vusd",
				Subsystem: "treasury",
				Name:      "withdrawable_units",
				Help:      "Current withdrawable collateral per token in integer base units.",
			}, []string{"token"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vusd",
				Subsystem: "treasury",
				Name:      "errors_total",
				Help:      "Count of rejected treasury operations segmented by operation and reason.",
			}, []string{"operation", "reason"}),
		}
		prometheus.MustRegister(
			treasuryRegistry.deposits,
			treasuryRegistry.withdrawals,
			treasuryRegistry.harvests,
			treasuryRegistry.sweeps,
			treasuryRegistry.migrations,
			treasuryRegistry.withdrawable,
			treasuryRegistry.errors,
		)
	})
	return treasuryRegistry
}

// RecordDeposit increments the deposit counter for the supplied token label.
func (m *treasuryMetrics) RecordDeposit(token string) {
	if m == nil {
		return
	}
	m.deposits.WithLabelValues(labelToken(token)).Inc()
}

// RecordWithdrawal increments the withdrawal counter for the supplied token.
func (m *treasuryMetrics) RecordWithdrawal(token string) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(labelToken(token)).Inc()
}

// RecordHarvest increments the harvest counter.
func (m *treasuryMetrics) RecordHarvest() {
	if m == nil {
		return
	}
	m.harvests.Inc()
}

// RecordSweep increments the sweep counter.
func (m *treasuryMetrics) RecordSweep() {
	if m == nil {
		return
	}
	m.sweeps.Inc()
}

// RecordMigration increments the migration counter.
func (m *treasuryMetrics) RecordMigration() {
	if m == nil {
		return
	}
	m.migrations.Inc()
}

// SetWithdrawable updates the withdrawable gauge for a token.
func (m *treasuryMetrics) SetWithdrawable(token string, amount *big.Int) {
	if m == nil {
		return
	}
	m.withdrawable.WithLabelValues(labelToken(token)).Set(bigToFloat(amount))
}

// RecordError increments the rejection counter for an operation and reason.
// Reasons should be stable strings such as "unauthorized" or "not_whitelisted"
// so dashboards and alerts remain consistent.
func (m *treasuryMetrics) RecordError(operation, reason string) {
	if m == nil {
		return
	}
	if operation = strings.TrimSpace(operation); operation == "" {
		operation = "unknown"
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "unspecified"
	}
	m.errors.WithLabelValues(operation, reason).Inc()
}

// Issuance returns the metrics registry for mint and redeem flows.
func Issuance() *issuanceMetrics {
	issuanceMetricsOnce.Do(func() {
		issuanceRegistry = &issuanceMetrics{
			mints: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vusd",
				Subsystem: "issuance",
				Name:      "mints_total",
				Help:      "Count of settled mints segmented by collateral token and outcome.",
			}, []string{"token", "outcome"}),
			redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vusd",
				Subsystem: "issuance",
				Name:      "redemptions_total",
				Help:      "Count of settled redemptions segmented by collateral token and outcome.",
			}, []string{"token", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "vusd",
				Subsystem: "issuance",
				Name:      "settle_duration_seconds",
				Help:      "Latency distribution for mint and redeem settlement.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			supply: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "vusd",
				Subsystem: "issuance",
				Name:      "total_supply_units",
				Help:      "Outstanding stablecoin supply in integer base units.",
			}),
			oracleMiss: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "vusd",
				Subsystem: "issuance",
				Name:      "oracle_unavailable_total",
				Help:      "Count of mint or redeem attempts aborted because no fresh price was available.",
			}),
		}
		prometheus.MustRegister(
			issuanceRegistry.mints,
			issuanceRegistry.redemptions,
			issuanceRegistry.latency,
			issuanceRegistry.supply,
			issuanceRegistry.oracleMiss,
		)
	})
	return issuanceRegistry
}

// ObserveMint records the outcome and latency of a mint attempt.
func (m *issuanceMetrics) ObserveMint(token string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.mints.WithLabelValues(labelToken(token), outcomeLabel(err)).Inc()
	m.latency.WithLabelValues("mint").Observe(duration.Seconds())
}

// ObserveRedeem records the outcome and latency of a redeem attempt.
func (m *issuanceMetrics) ObserveRedeem(token string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(labelToken(token), outcomeLabel(err)).Inc()
	m.latency.WithLabelValues("redeem").Observe(duration.Seconds())
}

// SetSupply updates the outstanding-supply gauge.
func (m *issuanceMetrics) SetSupply(supply *big.Int) {
	if m == nil {
		return
	}
	m.supply.Set(bigToFloat(supply))
}

// RecordOracleMiss increments the oracle-unavailable counter.
func (m *issuanceMetrics) RecordOracleMiss() {
	if m == nil {
		return
	}
	m.oracleMiss.Inc()
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func labelToken(token string) string {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "unknown"
	}
	return strings.ToLower(trimmed)
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
