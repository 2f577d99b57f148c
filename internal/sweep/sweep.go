// Package sweep runs the overdue check-in escalation on a fixed cadence,
// independent of request handling.
package sweep

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"campus-guardian-backend/config"
	"campus-guardian-backend/internal/guardian"
)

// Sweeper ticks the overdue escalation. Each run is time-bounded; if a
// run is still going when the next tick fires, the tick is skipped, not
// queued.
type Sweeper struct {
	sessions *guardian.Manager
	policy   guardian.EscalationPolicy
	timeout  time.Duration
	cron     *cron.Cron
	inFlight atomic.Bool
	log      *zap.Logger
}

// New creates a sweeper from the sweep configuration.
func New(sessions *guardian.Manager, cfg config.SweepConfig, log *zap.Logger) *Sweeper {
	return &Sweeper{
		sessions: sessions,
		policy: guardian.EscalationPolicy{
			DedupWindow:              time.Duration(cfg.EscalationDedupMinutes) * time.Minute,
			StaffThresholdMultiplier: cfg.StaffThresholdMultiplier,
		},
		timeout: time.Duration(cfg.RunTimeoutSeconds) * time.Second,
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		log:     log,
	}
}

// Start schedules the sweep at the given interval and runs one sweep
// immediately.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) error {
	spec := fmt.Sprintf("@every %s", interval)
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	s.cron.Start()
	go s.RunOnce(ctx)
	s.log.Info("overdue check-in sweep scheduled", zap.Duration("interval", interval))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

// RunOnce executes a single time-bounded sweep. Returns the number of
// sessions escalated; a sweep skipped because one is already in flight
// returns zero.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.log.Warn("previous sweep still running, skipping tick")
		return 0
	}
	defer s.inFlight.Store(false)

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	escalated, err := s.sessions.EscalateOverdue(runCtx, s.policy)
	if err != nil {
		s.log.Error("sweep failed", zap.Error(err))
		return escalated
	}
	if escalated > 0 {
		s.log.Info("sweep escalated overdue sessions", zap.Int("count", escalated))
	}
	return escalated
}
