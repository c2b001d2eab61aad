package app

import (
	"context"

	"github.com/stayknown/core/internal/modules/ingest"
	pkgcron "github.com/stayknown/core/internal/pkg/cron"
	"go.uber.org/zap"
)

// registerCronJobs wires background policy jobs. Only the visit sweeper for
// now: it ends visits that outlived their cap, which also pushes the "ended"
// transition to any open viewer streams.
func (a *App) registerCronJobs() {
	if !a.cfg.Sweep.Enable {
		return
	}

	svc := ingest.NewService(a.db, a.feed, a.logger)
	maxDuration := a.cfg.Sweep.MaxVisitDuration

	a.sched.Register(pkgcron.Job{
		Name:        "visit-sweeper",
		Description: "End visits that exceeded their maximum duration",
		Interval:    a.cfg.Sweep.Interval,
		Fn: func(ctx context.Context) error {
			ended, err := svc.SweepOverdue(ctx, maxDuration)
			if err != nil {
				return err
			}
			if ended > 0 {
				a.logger.Info("visit sweeper ended overdue visits", zap.Int("count", ended))
			}
			return nil
		},
	})
}
