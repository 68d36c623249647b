package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/spotlight/internal/audit/domain"
	"github.com/smallbiznis/spotlight/internal/auditcontext"
	"github.com/smallbiznis/spotlight/internal/authorization"
	"github.com/smallbiznis/spotlight/internal/clock"
	"github.com/smallbiznis/spotlight/internal/events"
	obsmetrics "github.com/smallbiznis/spotlight/internal/observability/metrics"
	reservationdomain "github.com/smallbiznis/spotlight/internal/reservation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// maxBatchesPerRun bounds a single job so one run cannot starve the others.
const maxBatchesPerRun = 50

type Params struct {
	fx.In

	Log          *zap.Logger
	Reservations reservationdomain.Service
	Relay        *events.Relay `optional:"true"`
	AuthzSvc     authorization.Service
	GenID        *snowflake.Node
	Clock        clock.Clock
	Config       Config `optional:"true"`
}

type outboxRelay interface {
	RelayBatch(ctx context.Context, limit int) (int, error)
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	genID        *snowflake.Node
	clock        clock.Clock
	reservations reservationdomain.Service
	relay        outboxRelay
	authzSvc     authorization.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Reservations == nil || p.AuthzSvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		genID:        p.GenID,
		clock:        p.Clock,
		reservations: p.Reservations,
		authzSvc:     p.AuthzSvc,
	}
	if p.Relay != nil {
		s.relay = p.Relay
	}
	return s, nil
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
	ctx, run, owner := s.beginRun(ctx, name, batchSize)
	if owner {
		s.logRunStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.id),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run.errors == 0 {
			run.fail()
		}
		s.logRunFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next tick resumes the work
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

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobSyncReservationStatuses, s.isJobEnabled(JobSyncReservationStatuses), func(ctx context.Context) error {
			return s.runJob(ctx, JobSyncReservationStatuses, s.cfg.BatchSize, s.cfg.JobTimeout, s.SyncReservationStatusesJob)
		}},
		{JobPublishOutbox, s.relay != nil && s.isJobEnabled(JobPublishOutbox), func(ctx context.Context) error {
			return s.runJob(ctx, JobPublishOutbox, s.cfg.BatchSize, s.cfg.JobTimeout, s.PublishOutboxJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
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
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// SyncReservationStatusesJob persists pending→active and live→expired
// transitions in batches until no stale rows remain.
func (s *Scheduler) SyncReservationStatusesJob(ctx context.Context) error {
	ctx, run, owner := s.beginRun(ctx, JobSyncReservationStatuses, s.cfg.BatchSize)
	if owner {
		s.logRunStart(ctx, run)
		defer s.logRunFinish(ctx, run)
	}
	if err := s.authorizeSystem(ctx, authorization.ObjectReservation, authorization.ActionReservationSync); err != nil {
		s.logJobError(ctx, run, "scheduler.authorize.failed", err)
		return err
	}

	schedMetrics := obsmetrics.Scheduler()
	for i := 0; i < maxBatchesPerRun; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := s.reservations.SyncStatuses(ctx, s.cfg.BatchSize)
		if err != nil {
			schedMetrics.IncStageError(JobSyncReservationStatuses, err)
			s.logJobError(ctx, run, "scheduler.batch.failed", err)
			return err
		}
		processed := result.Activated + result.Expired
		run.count("activated", result.Activated)
		run.count("expired", result.Expired)
		schedMetrics.AddBatchProcessed(JobSyncReservationStatuses, "reservation", processed)
		if processed > 0 {
			s.logger(ctx).Debug("scheduler.reservations.synced",
				zap.Int("activated", result.Activated),
				zap.Int("expired", result.Expired),
			)
		}
		if processed < s.cfg.BatchSize {
			return nil
		}
	}
	schedMetrics.IncBatchDeferred(JobSyncReservationStatuses, "max_batches")
	return nil
}

// PublishOutboxJob drains committed outbox events to the message broker.
func (s *Scheduler) PublishOutboxJob(ctx context.Context) error {
	ctx, run, owner := s.beginRun(ctx, JobPublishOutbox, s.cfg.BatchSize)
	if owner {
		s.logRunStart(ctx, run)
		defer s.logRunFinish(ctx, run)
	}
	if s.relay == nil {
		return nil
	}

	schedMetrics := obsmetrics.Scheduler()
	for i := 0; i < maxBatchesPerRun; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		published, err := s.relay.RelayBatch(ctx, s.cfg.BatchSize)
		if err != nil {
			schedMetrics.IncStageError(JobPublishOutbox, err)
			s.logJobError(ctx, run, "scheduler.batch.failed", err)
			return err
		}
		run.count("published", published)
		schedMetrics.AddBatchProcessed(JobPublishOutbox, "outbox_event", published)
		if published < s.cfg.BatchSize {
			return nil
		}
	}
	schedMetrics.IncBatchDeferred(JobPublishOutbox, "max_batches")
	return nil
}

func (s *Scheduler) authorizeSystem(ctx context.Context, object string, action string) error {
	if s.authzSvc == nil {
		return nil
	}
	return s.authzSvc.Authorize(ctx, authorization.ActorSystem, object, action)
}
