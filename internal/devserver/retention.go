package devserver

import (
	"context"
	"time"

	"github.com/adhocore/gronx"

	"chatkit/pkg/logger"
)

// startRetention launches the soft-delete purge scheduler when enabled.
// Returns a cancel func; a no-op one when retention is off or misconfigured.
func (s *Server) startRetention(ctx context.Context) context.CancelFunc {
	ret := s.cfg.Retention
	if !ret.Enabled {
		logger.Info("retention_disabled")
		return func() {}
	}

	cronExpr := ret.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", ret.Cron)
		return func() {}
	}

	period := time.Duration(ret.Period)
	if period <= 0 {
		period = 30 * 24 * time.Hour
	}

	logger.Info("retention_enabled", "cron", cronExpr, "period", period.String())
	ctx2, cancel := context.WithCancel(ctx)
	go s.runRetention(ctx2, cronExpr, period)
	return cancel
}

// runRetention sleeps until each next cron tick and purges soft-deleted
// rows older than the retention period.
func (s *Server) runRetention(ctx context.Context, cronExpr string, period time.Duration) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			cutoff := time.Now().UTC().Add(-period)
			n, err := s.store.purgeDeleted(cutoff)
			if err != nil {
				logger.Error("retention_run_error", "error", err)
				continue
			}
			logger.Info("retention_purged", "count", n, "cutoff", cutoff.Format(time.RFC3339))
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}
