package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/eroom/internal/audit/domain"
	"github.com/smallbiznis/eroom/internal/auditcontext"
	"github.com/smallbiznis/eroom/internal/clock"
	contractdomain "github.com/smallbiznis/eroom/internal/contract/domain"
	notificationdomain "github.com/smallbiznis/eroom/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/eroom/internal/observability/metrics"
	"github.com/smallbiznis/eroom/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type contractSweeper interface {
	SweepExpired(ctx context.Context, today time.Time, batchSize int) (contractdomain.SweepResult, error)
}

type notificationBatch interface {
	RunDaily(ctx context.Context, today time.Time, batchSize int) (notificationdomain.BatchResult, error)
}

type Params struct {
	fx.In

	Log           *zap.Logger
	Contracts     contractdomain.Service
	Notifications notificationdomain.Service
	Locker        *ratelimit.Locker `optional:"true"`
	GenID         *snowflake.Node
	Clock         clock.Clock
	Config        Config `optional:"true"`
}

type Scheduler struct {
	log           *zap.Logger
	cfg           Config
	genID         *snowflake.Node
	clock         clock.Clock
	locker        *ratelimit.Locker
	contracts     contractSweeper
	notifications notificationBatch
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Contracts == nil || p.Notifications == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:           p.Config.withDefaults(),
		genID:         p.GenID,
		clock:         p.Clock,
		locker:        p.Locker,
		contracts:     p.Contracts,
		notifications: p.Notifications,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "scheduler")
	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := s.withJobLock(ctx, name, func(ctx context.Context) error {
		return safeRun(ctx, fn)
	})
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if errors.Is(err, ratelimit.ErrLockHeld) {
		schedMetrics.IncJobSkipped(name, obsmetrics.SchedulerSkipReasonLockHeld)
		log.Info("job skipped, lock held by another instance")
		err = nil
	}
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next tick picks up where this one stopped
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	log.Error("job failed", append([]zap.Field{zap.Error(err)}, panicFields(err)...)...)
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job once. One job failing does not stop the
// others; their errors are joined.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobExpireContracts, s.ExpireContractsJob},
		{JobDailyNotifications, s.DailyNotificationsJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.BatchSize, s.cfg.JobTimeout, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// empty list enables every job
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}

// ExpireContractsJob terminates active contracts whose end date has passed.
func (s *Scheduler) ExpireContractsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobExpireContracts, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	res, err := s.contracts.SweepExpired(ctx, clock.Today(s.clock), s.cfg.BatchSize)
	run.AddProcessed(res.Scanned)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.AddBatchProcessed(JobExpireContracts, "terminated", res.Terminated)
	schedMetrics.AddBatchProcessed(JobExpireContracts, "failed", res.Failed)
	if err != nil {
		s.logSchedulerError(ctx, run, "contracts.sweep.failed", JobExpireContracts, err,
			zap.Int("scanned", res.Scanned),
			zap.Int("terminated", res.Terminated),
			zap.Int("failed", res.Failed),
		)
		return err
	}
	return nil
}

// DailyNotificationsJob sends the date-driven SMS notifications for today.
func (s *Scheduler) DailyNotificationsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobDailyNotifications, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	res, err := s.notifications.RunDaily(ctx, clock.Today(s.clock), s.cfg.BatchSize)
	run.AddProcessed(res.Scanned)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.AddBatchProcessed(JobDailyNotifications, "delivered", res.Delivered)
	schedMetrics.AddBatchProcessed(JobDailyNotifications, "skipped", res.Skipped)
	schedMetrics.AddBatchProcessed(JobDailyNotifications, "failed", res.Failed)
	if err != nil {
		s.logSchedulerError(ctx, run, "notifications.daily.failed", JobDailyNotifications, err,
			zap.Int("delivered", res.Delivered),
			zap.Int("failed", res.Failed),
		)
		return err
	}
	return nil
}
