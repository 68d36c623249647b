package scheduler

import (
	"context"
	"sort"
	"time"

	obscontext "github.com/smallbiznis/spotlight/internal/observability/context"
	obslogger "github.com/smallbiznis/spotlight/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/spotlight/internal/observability/metrics"
	"go.uber.org/zap"
)

// jobRun accumulates what one job invocation did. Counts are keyed by
// outcome (activated, expired, published) so the finish line says what
// changed rather than a bare total.
type jobRun struct {
	job       string
	id        string
	batchSize int
	startedAt time.Time
	counts    map[string]int
	errors    int
}

type jobRunKey struct{}

func (r *jobRun) count(outcome string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.counts[outcome] += n
}

func (r *jobRun) fail() {
	if r != nil {
		r.errors++
	}
}

func (r *jobRun) total() int {
	sum := 0
	for _, n := range r.counts {
		sum += n
	}
	return sum
}

// beginRun attaches a run to ctx unless an outer call already did. owner
// reports whether the caller is responsible for logging start and finish.
func (s *Scheduler) beginRun(ctx context.Context, job string, batchSize int) (context.Context, *jobRun, bool) {
	if run, ok := ctx.Value(jobRunKey{}).(*jobRun); ok && run != nil {
		return ctx, run, false
	}
	run := &jobRun{
		job:       job,
		id:        s.genID.Generate().String(),
		batchSize: batchSize,
		startedAt: s.clock.Now(),
		counts:    map[string]int{},
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	return ctx, run, true
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logRunStart(ctx context.Context, run *jobRun) {
	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.id),
		zap.Int("batch_size", run.batchSize),
	)
}

func (s *Scheduler) logRunFinish(ctx context.Context, run *jobRun) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.id),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.total()),
		zap.Int("error_count", run.errors),
	}
	outcomes := make([]string, 0, len(run.counts))
	for outcome := range run.counts {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	for _, outcome := range outcomes {
		fields = append(fields, zap.Int(outcome, run.counts[outcome]))
	}

	log := s.logger(ctx)
	if run.errors > 0 {
		log.Warn("scheduler.job.finish", fields...)
		return
	}
	log.Info("scheduler.job.finish", fields...)
}

func (s *Scheduler) logJobError(ctx context.Context, run *jobRun, msg string, err error) {
	if err == nil {
		return
	}
	run.fail()
	job := ""
	if run != nil {
		job = run.job
	}
	s.logger(ctx).Error(msg,
		zap.String("job", job),
		zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
		zap.Error(err),
	)
}
