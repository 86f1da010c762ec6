package scheduler

import (
	"context"
	"errors"

	obsmetrics "github.com/smallbiznis/eroom/internal/observability/metrics"
	"github.com/smallbiznis/eroom/internal/ratelimit"
	"go.uber.org/zap"
)

const lockKeyPrefix = "eroom:scheduler:"

// jobError separates a failure of the job itself from a failure to lock.
type jobError struct {
	err error
}

func (e *jobError) Error() string { return e.err.Error() }

// withJobLock keeps a job on one instance at a time when several replicas
// run the scheduler. Without redis every instance runs every job; the jobs
// stay correct because sweeps lock rows and sends are deduplicated.
func (s *Scheduler) withJobLock(ctx context.Context, job string, fn func(context.Context) error) error {
	if !s.locker.Enabled() {
		return fn(ctx)
	}
	err := s.locker.WithLock(ctx, lockKeyPrefix+job, s.cfg.LockTTL, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return &jobError{err: err}
		}
		return nil
	})
	if err == nil || errors.Is(err, ratelimit.ErrLockHeld) {
		return err
	}
	var runErr *jobError
	if errors.As(err, &runErr) {
		return runErr.err
	}

	// redis unavailable: run unguarded rather than miss the day
	obsmetrics.Scheduler().IncJobSkipped(job, obsmetrics.SchedulerSkipReasonLockErr)
	s.logger(ctx).Warn("scheduler lock unavailable, running without it", zap.String("job", job), zap.Error(err))
	return fn(ctx)
}
