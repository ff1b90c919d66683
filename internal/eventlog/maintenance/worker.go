// Package maintenance runs the periodic housekeeping loop over the payment
// event ledger: retention cleanup of terminal records, backlog gauge
// refresh, and, only when explicitly enabled, a bounded replay of failed
// records.
package maintenance

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ZhulikovN/platform-payment-sync/internal/clock"
	eventlogdomain "github.com/ZhulikovN/platform-payment-sync/internal/eventlog/domain"
	"github.com/ZhulikovN/platform-payment-sync/internal/observability/metrics"
	reconciledomain "github.com/ZhulikovN/platform-payment-sync/internal/reconcile/domain"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Ledger     eventlogdomain.Repository
	Reconciler reconciledomain.Service
	Clock      clock.Clock
	Metrics    *metrics.SyncMetrics `optional:"true"`
	Config     Config               `optional:"true"`
}

type Worker struct {
	log        *zap.Logger
	ledger     eventlogdomain.Repository
	reconciler reconciledomain.Service
	clock      clock.Clock
	metrics    *metrics.SyncMetrics
	cfg        Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		log:        p.Log.Named("eventlog.maintenance"),
		ledger:     p.Ledger,
		reconciler: p.Reconciler,
		clock:      p.Clock,
		metrics:    p.Metrics,
		cfg:        p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("ledger maintenance run failed", zap.Error(err))
		}
	}
}

// RunOnce executes one maintenance cycle. Each step is independent; a
// failing step is logged and does not block the remaining ones, and the
// first error is returned.
func (w *Worker) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.PollInterval)
	defer cancel()

	var firstErr error

	if removed, err := w.cleanup(ctx); err != nil {
		w.log.Warn("ledger cleanup failed", zap.Error(err))
		firstErr = err
	} else if removed > 0 {
		w.log.Info("ledger cleanup removed records", zap.Int64("removed", removed))
	}

	if err := w.replayFailed(ctx); err != nil {
		w.log.Warn("automatic replay failed", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}

	if err := w.publishBacklog(ctx); err != nil {
		w.log.Warn("backlog refresh failed", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (w *Worker) cleanup(ctx context.Context) (int64, error) {
	cutoff := w.clock.Now().Add(-w.cfg.Retention)
	return w.ledger.Cleanup(ctx, cutoff)
}

func (w *Worker) replayFailed(ctx context.Context) error {
	if w.cfg.ReplayBatch <= 0 {
		return nil
	}
	outcomes, err := w.reconciler.ReplayFailed(ctx, w.cfg.ReplayBatch)
	if err != nil {
		return err
	}
	recovered := 0
	for _, outcome := range outcomes {
		if outcome.Status == reconciledomain.OutcomeSuccess {
			recovered++
		}
	}
	if len(outcomes) > 0 {
		w.log.Info("replayed failed records",
			zap.Int("attempted", len(outcomes)),
			zap.Int("recovered", recovered),
		)
	}
	return nil
}

func (w *Worker) publishBacklog(ctx context.Context) error {
	stats, err := w.ledger.Stats(ctx)
	if err != nil {
		return err
	}
	for status, count := range stats.ByStatus {
		w.metrics.SetLedgerBacklog(string(status), count)
	}
	return nil
}
