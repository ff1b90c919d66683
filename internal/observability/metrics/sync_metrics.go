// Package metrics registers the prometheus instruments for the HTTP surface
// and the reconciliation pipeline.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config labels every instrument with the service identity.
type Config struct {
	ServiceName string
	Environment string
}

// SyncMetrics tracks reconciliation throughput and the ledger backlog.
type SyncMetrics struct {
	processed        *prometheus.CounterVec
	reconcileSeconds prometheus.Histogram
	ledgerBacklog    *prometheus.GaugeVec
}

func newSyncMetrics(registerer prometheus.Registerer, constLabels prometheus.Labels) *SyncMetrics {
	processed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "paymentsync_events_processed_total",
			Help:        "Payment events processed, by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	reconcileSeconds := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "paymentsync_reconcile_duration_seconds",
			Help: "End-to-end reconciliation duration per event.",
			Buckets: []float64{
				0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
			},
			ConstLabels: constLabels,
		},
	)
	ledgerBacklog := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "paymentsync_ledger_records_total",
			Help:        "Ledger records by status, refreshed on stats reads.",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	registerer.MustRegister(processed, reconcileSeconds, ledgerBacklog)
	return &SyncMetrics{
		processed:        processed,
		reconcileSeconds: reconcileSeconds,
		ledgerBacklog:    ledgerBacklog,
	}
}

// IncProcessed counts one finished reconciliation.
func (m *SyncMetrics) IncProcessed(outcome string) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(outcome).Inc()
}

// ObserveReconcile records one reconciliation's wall time.
func (m *SyncMetrics) ObserveReconcile(d time.Duration) {
	if m == nil {
		return
	}
	m.reconcileSeconds.Observe(d.Seconds())
}

// SetLedgerBacklog publishes the ledger record count for one status.
func (m *SyncMetrics) SetLedgerBacklog(status string, count int64) {
	if m == nil {
		return
	}
	m.ledgerBacklog.WithLabelValues(status).Set(float64(count))
}

func constLabels(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "paymentsync"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{"service": serviceName, "env": environment}
}
