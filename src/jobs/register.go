package jobs

import (
	"context"

	"github.com/stake-plus/netstate-gov/src/config"
	"github.com/stake-plus/netstate-gov/src/outbox"
	"github.com/stake-plus/netstate-gov/src/tally"
	"github.com/stake-plus/netstate-gov/src/voting"
)

const (
	JobOutbox    = "outbox"
	JobReconcile = "reconcile"
	JobFinalize  = "finalize"
)

// Register adds the maintenance jobs. w may be nil when no ledger is configured.
func Register(s *Scheduler, cfg config.Jobs, w *outbox.Worker, rc *tally.Recomputer, svc *voting.Service) error {
	if w != nil {
		err := s.Add(JobOutbox, cfg.OutboxSchedule, func(ctx context.Context) error {
			_, err := w.Drain(ctx)
			return err
		})
		if err != nil {
			return err
		}
	}

	err := s.Add(JobReconcile, cfg.ReconcileSchedule, func(ctx context.Context) error {
		_, err := rc.ReconcileAll(ctx)
		return err
	})
	if err != nil {
		return err
	}

	return s.Add(JobFinalize, cfg.FinalizeSchedule, func(ctx context.Context) error {
		_, err := svc.FinalizeEnded(ctx)
		return err
	})
}
